package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Cursor is an opaque change-feed position. The empty cursor means "from the beginning".
//
// Stores report it either as a number or as a string; both decode to the same textual form.
type Cursor string

// Since returns the value sent as the since parameter.
func (c Cursor) Since() string {
	if c == "" {
		return "0"
	}
	return string(c)
}

func (c Cursor) String() string { return c.Since() }

// UnmarshalJSON accepts a JSON string, number or null.
func (c *Cursor) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*c = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = Cursor(s)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("cursor must be a string or number: %w", err)
		}
		*c = Cursor(n.String())
	}
	return nil
}
