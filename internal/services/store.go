package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/docsync/internal/shared"
	"golang.org/x/time/rate"
)

// Credentials are the user name and password embedded in the store URL.
type Credentials struct {
	Username string
	Password string
}

// StoreOpts configures a [StoreService].
type StoreOpts struct {
	URL       string        // database URL, optionally with user:password@
	Client    *http.Client  // defaults to a client with a cookie jar
	Timeout   time.Duration // applied to the default client only
	RateLimit float64       // requests per second, 0 disables limiting
}

// StoreService sends JSON requests to one database on the store.
type StoreService struct {
	root        *url.URL
	credentials *Credentials
	httpClient  *http.Client
	limiter     *rate.Limiter
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Status     string // status text without the code, e.g. "Not Found"
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// OK reports a 2xx status.
func (r *APIResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Decode unmarshals the body into v.
func (r *APIResponse) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// NewStoreService parses the store URL and builds the HTTP client used for every exchange.
func NewStoreService(opts StoreOpts) (*StoreService, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("%w: store url is required", shared.ErrMissingConfig)
	}

	root, creds, err := ParseStoreURL(opts.URL)
	if err != nil {
		return nil, err
	}

	client, err := withCookieJar(opts.Client, opts.Timeout)
	if err != nil {
		return nil, err
	}

	srv := &StoreService{root: root, credentials: creds, httpClient: client}
	if opts.RateLimit > 0 {
		srv.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}
	return srv, nil
}

// ParseStoreURL splits a store URL into the credential-free request root and the embedded credentials.
//
// Credentials are nil when the URL has no user name.
func ParseStoreURL(raw string) (*url.URL, *Credentials, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: store url: %v", shared.ErrInvalidConfig, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, nil, fmt.Errorf("%w: store url must be absolute, got %q", shared.ErrInvalidConfig, raw)
	}

	var creds *Credentials
	if u.User != nil && u.User.Username() != "" {
		password, _ := u.User.Password()
		creds = &Credentials{Username: u.User.Username(), Password: password}
	}

	u.User = nil
	u.Fragment = ""
	u.RawFragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawPath = strings.TrimSuffix(u.RawPath, "/")
	return u, creds, nil
}

// withCookieJar returns a client that keeps session cookies between requests.
func withCookieJar(client *http.Client, timeout time.Duration) (*http.Client, error) {
	if client != nil && client.Jar != nil {
		return client, nil
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	if client == nil {
		return &http.Client{Jar: jar, Timeout: timeout}, nil
	}

	withJar := *client
	withJar.Jar = jar
	return &withJar, nil
}

// Root returns the credential-free database URL.
func (s *StoreService) Root() string {
	return s.root.String()
}

// Credentials returns the credentials embedded in the configured URL, or nil for anonymous access.
func (s *StoreService) Credentials() *Credentials {
	return s.credentials
}

// Endpoint resolves an escaped path fragment against the database URL and adds the query.
//
// The configured URL's own query parameters are kept; query wins on conflicts.
func (s *StoreService) Endpoint(path string, query url.Values) string {
	u := s.root.JoinPath(path)

	q := s.root.Query()
	for k, v := range query {
		q[k] = v
	}
	u.RawQuery = q.Encode()

	return u.String()
}

// Get performs a GET request and returns the raw response.
func (s *StoreService) Get(ctx context.Context, path string, query url.Values) (*APIResponse, error) {
	return s.do(ctx, http.MethodGet, path, query, nil)
}

// Post performs a POST request with a JSON body and returns the raw response.
func (s *StoreService) Post(ctx context.Context, path string, query url.Values, body []byte) (*APIResponse, error) {
	return s.do(ctx, http.MethodPost, path, query, body)
}

func (s *StoreService) do(ctx context.Context, method, path string, query url.Values, body []byte) (*APIResponse, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.Endpoint(path, query), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	apiResp := &APIResponse{
		StatusCode: resp.StatusCode,
		Status:     statusText(resp),
		Headers:    resp.Header,
		Body:       data,
	}

	var jsonData any
	if err := json.Unmarshal(data, &jsonData); err == nil {
		apiResp.IsJSON = true
		apiResp.JSONData = jsonData
	}

	return apiResp, nil
}

// statusText strips the numeric code from resp.Status, falling back to the standard text.
func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}
