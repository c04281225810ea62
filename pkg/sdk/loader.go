// Package sdk tracks the process-wide hosted-SDK bootstrap.
//
// Loading the hosted SDK (injecting its script context) must happen at most
// once per process: repeated loads would spawn duplicate hosted-flow
// contexts. Loader wraps the actual fetch in init-once semantics so callers
// can invoke Load freely.
package sdk

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// LoadOptions selects what the hosted SDK is bootstrapped with.
type LoadOptions struct {
	ClientID   string
	Currency   string
	Intent     string
	Components []string
}

// FetchFunc performs the actual SDK bootstrap. It runs at most once per
// Loader.
type FetchFunc func(ctx context.Context, opts LoadOptions) error

// Loader guards a single SDK bootstrap.
type Loader struct {
	fetch  FetchFunc
	once   sync.Once
	loaded atomic.Bool
	err    error
}

// NewLoader creates a Loader around fetch.
func NewLoader(fetch FetchFunc) *Loader {
	return &Loader{fetch: fetch}
}

// Load bootstraps the SDK on first call and is a no-op afterwards. Every
// caller observes the outcome of the one real bootstrap, including its error.
func (l *Loader) Load(ctx context.Context, opts LoadOptions) error {
	if opts.ClientID == "" {
		return fmt.Errorf("client id is required to load the hosted SDK")
	}

	l.once.Do(func() {
		if l.fetch != nil {
			l.err = l.fetch(ctx, opts)
		}
		if l.err == nil {
			l.loaded.Store(true)
		}
	})
	return l.err
}

// Loaded reports whether the SDK bootstrap completed successfully.
func (l *Loader) Loaded() bool {
	return l.loaded.Load()
}

// defaultLoader backs the package-level functions, mirroring the global
// surface merchants integrate against.
var (
	defaultMu     sync.Mutex
	defaultLoader = NewLoader(nil)
)

// SetFetch installs the bootstrap function used by the package-level Load.
// Call it during process startup, before the first Load; it has no effect
// once the SDK has been loaded.
func SetFetch(fetch FetchFunc) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if !defaultLoader.Loaded() {
		defaultLoader.fetch = fetch
	}
}

// Load bootstraps the process-wide SDK context with init-once semantics.
func Load(ctx context.Context, opts LoadOptions) error {
	defaultMu.Lock()
	l := defaultLoader
	defaultMu.Unlock()
	return l.Load(ctx, opts)
}

// Loaded reports whether the process-wide SDK context is up.
func Loaded() bool {
	defaultMu.Lock()
	l := defaultLoader
	defaultMu.Unlock()
	return l.Loaded()
}
