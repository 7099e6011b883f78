package queue

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrRegistryClosed is returned by Get after Close.
var ErrRegistryClosed = errors.New("queue registry closed")

// PathFunc maps an account name to its database file path.
type PathFunc func(account string) string

// Registry owns one Store per account. The daemon creates a single Registry
// and passes it to every component that needs a queue.
type Registry struct {
	mu     sync.Mutex
	path   PathFunc
	opts   []Option
	stores map[string]*Store
	closed bool
}

// NewRegistry returns a registry that opens stores lazily using path and opts.
func NewRegistry(path PathFunc, opts ...Option) *Registry {
	return &Registry{
		path:   path,
		opts:   opts,
		stores: make(map[string]*Store),
	}
}

// Get returns the store for account, opening it on first use.
func (r *Registry) Get(account string) (*Store, error) {
	if account == "" {
		return nil, fmt.Errorf("%w: account is required", ErrInvalidInput)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRegistryClosed
	}
	if store, ok := r.stores[account]; ok {
		return store, nil
	}
	if r.path == nil {
		return nil, fmt.Errorf("%w: registry has no path function", ErrInvalidInput)
	}
	store, err := Open(r.path(account), r.opts...)
	if err != nil {
		return nil, fmt.Errorf("open queue for account %s: %w", account, err)
	}
	r.stores[account] = store
	return store, nil
}

// Lookup returns the store for account only if it is already open.
func (r *Registry) Lookup(account string) (*Store, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	store, ok := r.stores[account]
	return store, ok
}

// Accounts lists the accounts with an open store, sorted.
func (r *Registry) Accounts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	accounts := make([]string, 0, len(r.stores))
	for account := range r.stores {
		accounts = append(accounts, account)
	}
	sort.Strings(accounts)
	return accounts
}

// Close closes every open store. The registry cannot be reused afterwards.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	var errs []error
	for account, store := range r.stores {
		if err := store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close queue %s: %w", account, err))
		}
		delete(r.stores, account)
	}
	return errors.Join(errs...)
}
