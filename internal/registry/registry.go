// Package registry is the process-wide definition registry. It parses
// service definition files into their model representation exactly once per
// path and shares the result for the process lifetime.
//
// There is deliberately no invalidation: a path's definition is fixed at
// first successful parse, even if the file changes afterward. Parse failures
// are never cached, so a later call may retry after the source is fixed.
package registry

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/vk/proxyforge/internal/ctxlog"
	"github.com/vk/proxyforge/internal/hcl"
	"github.com/vk/proxyforge/internal/model"
)

// DefinitionParseError reports malformed definition source or a definition
// whose named references do not resolve.
type DefinitionParseError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *DefinitionParseError) Error() string {
	return fmt.Sprintf("parsing definition %s: %v", e.Path, e.Err)
}

// Unwrap exposes the cause.
func (e *DefinitionParseError) Unwrap() error { return e.Err }

// ParseFunc parses one definition file. It exists as a seam for tests; the
// default is the HCL translator.
type ParseFunc func(ctx context.Context, path string) (*model.ServiceDefinition, error)

// Registry memoizes parsed service definitions by path. Paths are assumed to
// already be canonical, stable identities; resolving them is the caller's
// concern.
type Registry struct {
	parse ParseFunc

	mu    sync.RWMutex
	defs  map[string]*model.ServiceDefinition
	group singleflight.Group
}

// New returns a registry backed by the HCL translator.
func New() *Registry {
	return NewWithParser(hcl.ParseFile)
}

// NewWithParser returns a registry backed by a custom parser.
func NewWithParser(parse ParseFunc) *Registry {
	return &Registry{
		parse: parse,
		defs:  make(map[string]*model.ServiceDefinition),
	}
}

// GetDefinition returns the definition identified by path, parsing and
// validating it on first access. Concurrent first access is single-flight:
// one parse runs, and every concurrent caller observes its outcome. A
// successful result is immutable and shared; an error is surfaced to all
// waiters and not cached.
func (r *Registry) GetDefinition(ctx context.Context, path string) (*model.ServiceDefinition, error) {
	r.mu.RLock()
	def, ok := r.defs[path]
	r.mu.RUnlock()
	if ok {
		return def, nil
	}

	v, err, _ := r.group.Do(path, func() (any, error) {
		// A racing caller may have populated the entry between the read
		// lock and the flight starting.
		r.mu.RLock()
		def, ok := r.defs[path]
		r.mu.RUnlock()
		if ok {
			return def, nil
		}

		logger := ctxlog.FromContext(ctx)
		logger.Debug("Parsing service definition.", "path", path)

		def, perr := r.parse(ctx, path)
		if perr != nil {
			return nil, &DefinitionParseError{Path: path, Err: perr}
		}

		r.mu.Lock()
		r.defs[path] = def
		r.mu.Unlock()

		logger.Info("Service definition registered.", "path", path, "service", def.Name)
		return def, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.ServiceDefinition), nil
}
