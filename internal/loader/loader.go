// Package loader executes synthesized proxy programs in isolation.
//
// Go has no runtime evaluation, so "executing" a unit means binding its
// Program into closures. The isolation property still holds and matters: a
// bound closure references only the program it was loaded from and the three
// arguments injected at factory application. Symbols resolve exclusively
// against the program's own table — never against a process-global registry —
// so a generated unit cannot accidentally bind to a same-named artifact
// elsewhere in the process.
package loader

import (
	"context"
	"fmt"

	"github.com/vk/proxyforge/internal/ctxlog"
	"github.com/vk/proxyforge/internal/proxy"
	"github.com/vk/proxyforge/internal/rpc"
	"github.com/vk/proxyforge/internal/synth"
)

// LoadError reports a synthesized unit that failed to initialize.
type LoadError struct {
	// Module is the synthetic unit name, for diagnostics only.
	Module string
	Err    error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	return fmt.Sprintf("loading module %s: %v", e.Module, e.Err)
}

// Unwrap exposes the cause.
func (e *LoadError) Unwrap() error { return e.Err }

// Load binds a program into a reusable Factory. syntheticName, derived from
// the service's name, identifies the unit in diagnostics; it is never a
// cache key. The returned Factory is pure: it closes over nothing mutable,
// and each application assembles a fresh bound surface.
func Load(ctx context.Context, prog *synth.Program, syntheticName string) (proxy.Factory, error) {
	logger := ctxlog.FromContext(ctx)

	if err := check(prog); err != nil {
		return nil, &LoadError{Module: syntheticName, Err: err}
	}

	logger.Debug("Loaded proxy module.", "module", syntheticName, "service", prog.Service, "symbols", len(prog.Symbols))

	return func(rc rpc.Context, b rpc.Builders, tw rpc.TimingWrapper) (*proxy.Service, error) {
		if rc == nil {
			return nil, fmt.Errorf("module %s: applied with a nil context", syntheticName)
		}
		if b.NewFuture == nil || b.NewStream == nil {
			defaults := rpc.DefaultBuilders()
			if b.NewFuture == nil {
				b.NewFuture = defaults.NewFuture
			}
			if b.NewStream == nil {
				b.NewStream = defaults.NewStream
			}
		}

		svc := proxy.NewService(prog.Service, syntheticName)
		for _, sym := range prog.Symbols {
			switch sym.Kind {
			case synth.SymbolFunction:
				plan := sym.Call
				fn := proxy.NewFunction(rc, b, tw, plan.Name, plan.Params, plan.Return)
				if err := svc.AddFunction(sym.Export, fn); err != nil {
					return nil, err
				}
			case synth.SymbolInterface:
				plan := sym.Iface
				methods := make([]proxy.MethodSpec, len(plan.Methods))
				for i, m := range plan.Methods {
					methods[i] = proxy.MethodSpec{Name: m.Name, Params: m.Params, Return: m.Return}
				}
				ctor := proxy.NewConstructor(rc, b, tw, plan.Name, plan.Ctor, methods)
				if err := svc.AddConstructor(sym.Export, ctor); err != nil {
					return nil, err
				}
			}
		}
		return svc, nil
	}, nil
}

// check validates the structural integrity of a program before any closure
// is bound. A program that fails here never yields a partial factory.
func check(prog *synth.Program) error {
	if prog == nil {
		return fmt.Errorf("nil program")
	}
	if prog.Service == "" {
		return fmt.Errorf("program has no service name")
	}
	seen := make(map[string]struct{}, len(prog.Symbols))
	for i, sym := range prog.Symbols {
		if sym == nil || sym.Export == "" {
			return fmt.Errorf("symbol %d has no export name", i)
		}
		if _, dup := seen[sym.Export]; dup {
			return fmt.Errorf("duplicate export %q", sym.Export)
		}
		seen[sym.Export] = struct{}{}

		switch sym.Kind {
		case synth.SymbolFunction:
			if sym.Call == nil || sym.Iface != nil {
				return fmt.Errorf("export %q: function symbol without a call plan", sym.Export)
			}
		case synth.SymbolInterface:
			if sym.Iface == nil || sym.Call != nil {
				return fmt.Errorf("export %q: interface symbol without an interface plan", sym.Export)
			}
		default:
			return fmt.Errorf("export %q: unknown symbol kind %d", sym.Export, sym.Kind)
		}
	}
	return nil
}
