package shared

import "sync/atomic"

// Connectivity reports whether the store is reachable.
//
// The sync engine only ever reads it; the application that owns the network
// event subscription is the only writer.
type Connectivity interface {
	Offline() bool
}

// OnlineFlag is a [Connectivity] backed by an atomic boolean.
//
// The zero value reports online.
type OnlineFlag struct {
	offline atomic.Bool
}

// Offline implements [Connectivity].
func (f *OnlineFlag) Offline() bool {
	return f.offline.Load()
}

// Set records a connectivity change. Call it from the event source that observes the network.
func (f *OnlineFlag) Set(offline bool) {
	f.offline.Store(offline)
}
