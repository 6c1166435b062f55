package module

import (
	"context"
	"errors"
	"sort"
	"sync"

	pmerrors "github.com/conneroisu/pagemill/internal/errors"
	"github.com/conneroisu/pagemill/internal/urlmap"
)

// Registry serves modules registered in code, keyed by the page source's
// path relative to the pages root.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]Module
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{modules: make(map[string]Module)}
}

// Register adds or replaces the module for relPath.
func (r *Registry) Register(relPath string, m Module) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modules[relPath] = m
}

// Unregister removes the module for relPath.
func (r *Registry) Unregister(relPath string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.modules, relPath)
}

// Paths returns registered paths, sorted.
func (r *Registry) Paths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	paths := make([]string, 0, len(r.modules))
	for p := range r.modules {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Load implements Loader.
func (r *Registry) Load(_ context.Context, source *urlmap.PageSource) (Module, error) {
	r.mu.RLock()
	m, ok := r.modules[source.RelPath]
	r.mu.RUnlock()

	if !ok {
		return nil, &pmerrors.ModuleLoadError{File: source.RelPath, Cause: pmerrors.ErrModuleNotFound}
	}
	return m, nil
}

// Chain tries loaders in order. It moves on only when a loader does not
// know the source at all; a missing import stops the chain.
type Chain []Loader

// Load implements Loader.
func (c Chain) Load(ctx context.Context, source *urlmap.PageSource) (Module, error) {
	lastErr := error(&pmerrors.ModuleLoadError{File: source.RelPath, Cause: pmerrors.ErrModuleNotFound})
	for _, loader := range c {
		m, err := loader.Load(ctx, source)
		if err == nil {
			return m, nil
		}
		if !sourceMissing(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func sourceMissing(err error) bool {
	var loadErr *pmerrors.ModuleLoadError
	if !errors.As(err, &loadErr) {
		return false
	}
	return loadErr.Module == "" && errors.Is(err, pmerrors.ErrModuleNotFound)
}
