package proxy

import (
	"context"
	"fmt"

	"github.com/vk/proxyforge/internal/model"
	"github.com/vk/proxyforge/internal/rpc"
)

// Factory binds a synthesized proxy unit to one marshaling context. The
// builders and timing wrapper are explicit arguments so the bound code
// depends on nothing ambient. Applying a Factory never mutates shared
// synthesized state; every application returns an independent Service.
type Factory func(rc rpc.Context, b rpc.Builders, tw rpc.TimingWrapper) (*Service, error)

// Service is one bound export surface: a mapping from exported symbol name
// to a Function or a Constructor.
type Service struct {
	name    string
	module  string
	exports []string
	funcs   map[string]*Function
	ctors   map[string]*Constructor
}

// NewService returns an empty bound surface. module is the synthetic
// diagnostic name of the loaded unit.
func NewService(name, module string) *Service {
	return &Service{
		name:   name,
		module: module,
		funcs:  make(map[string]*Function),
		ctors:  make(map[string]*Constructor),
	}
}

// Name returns the service's declared name.
func (s *Service) Name() string { return s.name }

// Module returns the synthetic unit name, for diagnostics only.
func (s *Service) Module() string { return s.module }

// Exports returns the exported symbol names in surface order.
func (s *Service) Exports() []string {
	out := make([]string, len(s.exports))
	copy(out, s.exports)
	return out
}

// Function returns the free callable exported under the given name.
func (s *Service) Function(export string) (*Function, bool) {
	f, ok := s.funcs[export]
	return f, ok
}

// Constructor returns the proxy-type constructor exported under the given
// name.
func (s *Service) Constructor(export string) (*Constructor, bool) {
	c, ok := s.ctors[export]
	return c, ok
}

// AddFunction registers a free callable under an export name.
func (s *Service) AddFunction(export string, f *Function) error {
	if err := s.claim(export); err != nil {
		return err
	}
	s.funcs[export] = f
	return nil
}

// AddConstructor registers a proxy-type constructor under an export name.
func (s *Service) AddConstructor(export string, c *Constructor) error {
	if err := s.claim(export); err != nil {
		return err
	}
	s.ctors[export] = c
	return nil
}

func (s *Service) claim(export string) error {
	if _, dup := s.funcs[export]; dup {
		return fmt.Errorf("module %s: duplicate export %q", s.module, export)
	}
	if _, dup := s.ctors[export]; dup {
		return fmt.Errorf("module %s: duplicate export %q", s.module, export)
	}
	s.exports = append(s.exports, export)
	return nil
}

// Function is one bound free callable. Call marshals its arguments against
// the declared parameter types, dispatches through the bound context, and
// forwards the context's result shape untouched.
type Function struct {
	name string
	call rpc.CallFn
}

// NewFunction binds one free-function call plan to a context. The timing
// wrapper is applied keyed by the declared function name.
func NewFunction(rc rpc.Context, b rpc.Builders, tw rpc.TimingWrapper, name string, params []*model.Parameter, ret model.Return) *Function {
	base := func(ctx context.Context, args []any) (rpc.Result, error) {
		bag, err := rc.MarshalArguments(ctx, args, params)
		if err != nil {
			return nil, err
		}
		res, err := rc.CallRemoteFunction(ctx, name, ret.Kind, bag)
		return deferFailure(b, ret.Kind, res, err)
	}
	return &Function{name: name, call: wrap(tw, name, base)}
}

// Name returns the declared remote name.
func (f *Function) Name() string { return f.name }

// Call invokes the remote function. The result shape is determined by the
// declared return kind; Call itself never blocks on the remote outcome.
func (f *Function) Call(ctx context.Context, args ...any) (rpc.Result, error) {
	return f.call(ctx, args)
}

func wrap(tw rpc.TimingWrapper, name string, call rpc.CallFn) rpc.CallFn {
	if tw == nil {
		return call
	}
	return tw(name, call)
}

// deferFailure routes a synchronous dispatch failure of a deferred-kind call
// into the future/stream failure channel, preserving the invariant that
// remote failures never surface as a synchronous error from a bound call.
// Value-kind calls return the error as-is: their result is synchronous by
// declaration.
func deferFailure(b rpc.Builders, kind model.ReturnKind, res rpc.Result, err error) (rpc.Result, error) {
	if err == nil {
		return res, nil
	}
	switch kind {
	case model.ReturnFuture:
		f := b.NewFuture()
		f.Reject(err)
		return f, nil
	case model.ReturnStream:
		s := b.NewStream(nil)
		s.Fail(err)
		return s, nil
	default:
		return nil, err
	}
}
