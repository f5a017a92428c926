package storage

import (
	"fmt"
	"sync"
)

// Factory hands out Storage implementations by scheme. Implementations for
// remote schemes (S3, MinIO, Redis) are registered by the hosting process;
// the compiler itself only needs ListPaths and stays agnostic of the
// client libraries behind them.
type Factory struct {
	mu       sync.RWMutex
	backends map[Scheme]Storage
}

// NewFactory creates a factory with the local and in-memory backends
// registered.
func NewFactory() *Factory {
	f := &Factory{backends: make(map[Scheme]Storage)}
	f.Register(NewLocal())
	f.Register(NewMem())
	return f
}

// Register adds or replaces the backend for its scheme.
func (f *Factory) Register(s Storage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.backends[s.Scheme()] = s
}

// ForScheme returns the backend registered for the scheme.
func (f *Factory) ForScheme(scheme Scheme) (Storage, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	s, ok := f.backends[scheme]
	if !ok {
		return nil, fmt.Errorf("no storage backend registered for scheme %q", scheme)
	}
	return s, nil
}
