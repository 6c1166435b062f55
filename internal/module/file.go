package module

import (
	"context"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	pmerrors "github.com/conneroisu/pagemill/internal/errors"
	"github.com/conneroisu/pagemill/internal/urlmap"
)

// Compiler turns the contents of one page source into a module.
type Compiler interface {
	Compile(ctx context.Context, source *urlmap.PageSource, content []byte) (Module, error)
}

// CompilerFunc adapts a function to Compiler.
type CompilerFunc func(ctx context.Context, source *urlmap.PageSource, content []byte) (Module, error)

// Compile calls f.
func (f CompilerFunc) Compile(ctx context.Context, source *urlmap.PageSource, content []byte) (Module, error) {
	return f(ctx, source, content)
}

type cacheEntry struct {
	hash   uint32
	module Module
}

// FileLoader reads page sources from disk and compiles them with the
// compiler registered for their extension. Compiled modules are cached by
// path and reused while the content hash is unchanged.
type FileLoader struct {
	mu        sync.RWMutex
	compilers map[string]Compiler
	cache     map[string]cacheEntry
	crcTable  *crc32.Table

	hits   int64
	misses int64
}

// NewFileLoader creates a loader with no compilers.
func NewFileLoader() *FileLoader {
	return &FileLoader{
		compilers: make(map[string]Compiler),
		cache:     make(map[string]cacheEntry),
		crcTable:  crc32.MakeTable(crc32.Castagnoli),
	}
}

// Register sets the compiler for ext, e.g. ".md".
func (l *FileLoader) Register(ext string, c Compiler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.compilers[strings.ToLower(ext)] = c
}

// Load implements Loader.
func (l *FileLoader) Load(ctx context.Context, source *urlmap.PageSource) (Module, error) {
	content, err := os.ReadFile(source.FilePath)
	if err != nil {
		cause := err
		if os.IsNotExist(err) {
			cause = pmerrors.ErrModuleNotFound
		}
		return nil, &pmerrors.ModuleLoadError{File: source.RelPath, Cause: cause}
	}

	hash := crc32.Checksum(content, l.crcTable)

	l.mu.RLock()
	entry, cached := l.cache[source.FilePath]
	compiler := l.compilers[strings.ToLower(filepath.Ext(source.FilePath))]
	l.mu.RUnlock()

	if cached && entry.hash == hash {
		atomic.AddInt64(&l.hits, 1)
		return entry.module, nil
	}
	atomic.AddInt64(&l.misses, 1)

	if compiler == nil {
		return nil, &pmerrors.ModuleLoadError{
			File:  source.RelPath,
			Cause: fmt.Errorf("no compiler for %q files: %w", filepath.Ext(source.FilePath), pmerrors.ErrModuleNotFound),
		}
	}

	m, err := compiler.Compile(ctx, source, content)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.cache[source.FilePath] = cacheEntry{hash: hash, module: m}
	l.mu.Unlock()

	return m, nil
}

// Invalidate drops the cached module for a file.
func (l *FileLoader) Invalidate(filePath string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.cache, filePath)
}

// Reset drops every cached module. Used when a shared input such as a
// layout changes.
func (l *FileLoader) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache = make(map[string]cacheEntry)
}

// Stats returns cache hits and misses.
func (l *FileLoader) Stats() (hits, misses int64) {
	return atomic.LoadInt64(&l.hits), atomic.LoadInt64(&l.misses)
}
