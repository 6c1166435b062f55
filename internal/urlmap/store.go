package urlmap

import (
	"sync"
	"sync/atomic"
)

// Store holds the current URL map snapshot. Readers call Load once per
// request and keep using that snapshot; Rebuild replaces it as a whole.
type Store struct {
	root    string
	opts    Options
	current atomic.Pointer[URLMap]
	version atomic.Uint64

	// rebuildMu serializes rebuilds so versions are assigned in swap order.
	rebuildMu sync.Mutex
}

// NewStore creates a store for root. The store is empty until the first
// Rebuild.
func NewStore(root string, opts Options) *Store {
	s := &Store{root: root, opts: opts.withDefaults()}
	s.current.Store(Empty(root))
	return s
}

// Root returns the scanned directory.
func (s *Store) Root() string {
	return s.root
}

// Options returns the scan options.
func (s *Store) Options() Options {
	return s.opts
}

// Load returns the current snapshot. It never returns nil.
func (s *Store) Load() *URLMap {
	return s.current.Load()
}

// Version returns the version of the current snapshot; 0 before the first
// successful rebuild.
func (s *Store) Version() uint64 {
	return s.Load().Version
}

// Rebuild scans the root and swaps in the new snapshot. On failure the
// previous snapshot stays current and the error is returned.
func (s *Store) Rebuild() (*URLMap, error) {
	s.rebuildMu.Lock()
	defer s.rebuildMu.Unlock()

	m, err := Build(s.root, s.opts)
	if err != nil {
		return nil, err
	}
	m.Version = s.version.Add(1)
	s.current.Store(m)
	return m, nil
}
