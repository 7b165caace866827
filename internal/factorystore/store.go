// Package factorystore is the process-wide proxy factory cache. It owns one
// compiled Factory per definition path, built lazily through the registry,
// synthesizer, and loader, and applies it per connection.
package factorystore

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/vk/proxyforge/internal/ctxlog"
	"github.com/vk/proxyforge/internal/loader"
	"github.com/vk/proxyforge/internal/proxy"
	"github.com/vk/proxyforge/internal/registry"
	"github.com/vk/proxyforge/internal/rpc"
	"github.com/vk/proxyforge/internal/synth"
)

// Options configures how cached factories are applied.
type Options struct {
	// Builders used at factory application. Zero value falls back to the
	// rpc defaults.
	Builders rpc.Builders
	// Timing instruments every bound call, keyed by declared name. Nil
	// means no instrumentation.
	Timing rpc.TimingWrapper
}

// Store caches one Factory per definition path. A cached Factory is a pure,
// connection-independent artifact; Store shares it across unboundedly many
// contexts and re-applies it for every proxy request.
type Store struct {
	reg  *registry.Registry
	opts Options

	mu        sync.RWMutex
	factories map[string]proxy.Factory
	group     singleflight.Group
}

// New returns a store over the given definition registry with default
// application options.
func New(reg *registry.Registry) *Store {
	return NewWithOptions(reg, Options{})
}

// NewWithOptions returns a store with explicit application options.
func NewWithOptions(reg *registry.Registry, opts Options) *Store {
	return &Store{
		reg:       reg,
		opts:      opts,
		factories: make(map[string]proxy.Factory),
	}
}

// FactoryFor returns the cached Factory for a definition path, building it
// on first access. The build chain is registry parse, synthesis, load, run
// inline under a single-flight guarantee per path; a failure at any stage is
// surfaced and nothing partial is cached.
func (s *Store) FactoryFor(ctx context.Context, path string) (proxy.Factory, error) {
	s.mu.RLock()
	f, ok := s.factories[path]
	s.mu.RUnlock()
	if ok {
		return f, nil
	}

	v, err, _ := s.group.Do(path, func() (any, error) {
		s.mu.RLock()
		f, ok := s.factories[path]
		s.mu.RUnlock()
		if ok {
			return f, nil
		}

		f, berr := s.build(ctx, path, "", false)
		if berr != nil {
			return nil, berr
		}

		s.mu.Lock()
		s.factories[path] = f
		s.mu.Unlock()
		return f, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(proxy.Factory), nil
}

// Proxy applies the cached Factory for path to the supplied per-connection
// context and returns the bound surface. Application is never memoized:
// contexts are per connection, so every call yields an independent bound
// object even for one shared Factory. serviceName must match the
// definition's declared name.
func (s *Store) Proxy(ctx context.Context, serviceName, path string, rc rpc.Context) (*proxy.Service, error) {
	f, err := s.FactoryFor(ctx, path)
	if err != nil {
		return nil, err
	}
	svc, err := f(rc, s.opts.Builders, s.opts.Timing)
	if err != nil {
		return nil, err
	}
	if svc.Name() != serviceName {
		return nil, fmt.Errorf("definition %s declares service %q, not %q", path, svc.Name(), serviceName)
	}
	return svc, nil
}

// CreateFactory builds a Factory with explicit synthesis options.
// serviceName must match the definition's declared name on every path; it
// also names the export surface. With preserveNames off this is the
// canonical artifact and comes from the cache (surface naming is diagnostic
// only and never part of cache identity). With preserveNames on the build
// runs uncached, so a name collision can never poison the per-path entry.
func (s *Store) CreateFactory(ctx context.Context, serviceName string, preserveNames bool, path string) (proxy.Factory, error) {
	def, err := s.reg.GetDefinition(ctx, path)
	if err != nil {
		return nil, err
	}
	if def.Name != serviceName {
		return nil, fmt.Errorf("definition %s declares service %q, not %q", path, def.Name, serviceName)
	}
	if !preserveNames {
		return s.FactoryFor(ctx, path)
	}
	return s.build(ctx, path, serviceName, true)
}

func (s *Store) build(ctx context.Context, path, surface string, preserveNames bool) (proxy.Factory, error) {
	logger := ctxlog.FromContext(ctx)

	def, err := s.reg.GetDefinition(ctx, path)
	if err != nil {
		return nil, err
	}

	prog, err := synth.Synthesize(ctx, def, synth.Options{PreserveNames: preserveNames, Surface: surface})
	if err != nil {
		return nil, err
	}

	f, err := loader.Load(ctx, prog, syntheticName(def.Name))
	if err != nil {
		return nil, err
	}

	logger.Debug("Built proxy factory.", "path", path, "service", def.Name)
	return f, nil
}

// syntheticName derives the diagnostic unit name from the service's
// declared name.
func syntheticName(service string) string {
	return service + ".proxy"
}
