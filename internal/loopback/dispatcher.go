package loopback

import (
	"context"
	"fmt"
	"sync"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/proxyforge/internal/ctxlog"
	"github.com/vk/proxyforge/internal/model"
	"github.com/vk/proxyforge/internal/rpc"
)

// FuncHandler implements one remote function. Arguments arrive as generic
// natives keyed by parameter name. For stream-kind calls the returned value
// must be a []any holding the sequence elements.
type FuncHandler func(ctx context.Context, args map[string]any) (any, error)

// MethodHandler implements one interface method against per-object state.
type MethodHandler func(ctx context.Context, state any, args map[string]any) (any, error)

// InterfaceHandler implements one remote interface: an optional constructor
// producing per-object state, the method set, and an optional dispose hook.
type InterfaceHandler struct {
	New       func(ctx context.Context, args map[string]any) (any, error)
	Methods   map[string]MethodHandler
	OnDispose func(state any) error
}

type objectEntry struct {
	id       rpc.ObjectID
	iface    string
	state    any
	disposed bool
}

// Dispatcher is an in-process rpc.Context. Remote object handles it assigns
// are owned by this instance and are meaningless to any other context.
type Dispatcher struct {
	mu      sync.Mutex
	funcs   map[string]FuncHandler
	ifaces  map[string]*InterfaceHandler
	objects map[rpc.Instance]*objectEntry
	byID    map[rpc.ObjectID]*objectEntry
	nextID  rpc.ObjectID
}

// NewDispatcher returns an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		funcs:   make(map[string]FuncHandler),
		ifaces:  make(map[string]*InterfaceHandler),
		objects: make(map[rpc.Instance]*objectEntry),
		byID:    make(map[rpc.ObjectID]*objectEntry),
	}
}

// RegisterFunction registers the implementation of a free function.
func (d *Dispatcher) RegisterFunction(name string, h FuncHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.funcs[name]; exists {
		panic(fmt.Sprintf("loopback: function handler %q already registered", name))
	}
	d.funcs[name] = h
}

// RegisterInterface registers the implementation of an interface.
func (d *Dispatcher) RegisterInterface(name string, h *InterfaceHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.ifaces[name]; exists {
		panic(fmt.Sprintf("loopback: interface handler %q already registered", name))
	}
	d.ifaces[name] = h
}

// CallRemoteFunction implements rpc.Context.
func (d *Dispatcher) CallRemoteFunction(ctx context.Context, name string, kind model.ReturnKind, args cty.Value) (rpc.Result, error) {
	d.mu.Lock()
	h, ok := d.funcs[name]
	d.mu.Unlock()
	if !ok {
		return d.failure(name, kind, fmt.Errorf("no handler for function %q", name))
	}
	run := func(ctx context.Context) (any, error) { return h(ctx, bagToMap(args)) }
	return d.dispatch(ctx, name, kind, run)
}

// CallRemoteMethod implements rpc.Context.
func (d *Dispatcher) CallRemoteMethod(ctx context.Context, id rpc.ObjectID, name string, kind model.ReturnKind, args cty.Value) (rpc.Result, error) {
	call := fmt.Sprintf("#%d.%s", id, name)

	d.mu.Lock()
	entry, ok := d.byID[id]
	var h MethodHandler
	var disposed bool
	if ok {
		disposed = entry.disposed
		if iface := d.ifaces[entry.iface]; iface != nil {
			h = iface.Methods[name]
		}
	}
	d.mu.Unlock()

	if !ok {
		return d.failure(call, kind, fmt.Errorf("unknown remote object #%d", id))
	}
	if disposed {
		return d.kindError(kind, rpc.ErrUseAfterDispose)
	}
	if h == nil {
		return d.failure(call, kind, fmt.Errorf("interface %q has no method %q", entry.iface, name))
	}
	run := func(ctx context.Context) (any, error) { return h(ctx, entry.state, bagToMap(args)) }
	return d.dispatch(ctx, call, kind, run)
}

// CreateRemoteObject implements rpc.Context. It assigns the handle the
// local instance will carry for its lifetime.
func (d *Dispatcher) CreateRemoteObject(ctx context.Context, interfaceName string, local rpc.Instance, args cty.Value, params []*model.Parameter) (rpc.ObjectID, error) {
	logger := ctxlog.FromContext(ctx)

	d.mu.Lock()
	h, ok := d.ifaces[interfaceName]
	d.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("no handler for interface %q", interfaceName)
	}

	var state any
	if h.New != nil {
		var err error
		state, err = h.New(ctx, bagToMap(args))
		if err != nil {
			return 0, fmt.Errorf("constructing %s: %w", interfaceName, err)
		}
	}

	d.mu.Lock()
	d.nextID++
	entry := &objectEntry{id: d.nextID, iface: interfaceName, state: state}
	d.objects[local] = entry
	d.byID[entry.id] = entry
	d.mu.Unlock()

	logger.Debug("Created remote object.", "interface", interfaceName, "id", uint64(entry.id))
	return entry.id, nil
}

// DisposeRemoteObject implements rpc.Context. The returned future settles
// exactly once; a second dispose of the same instance settles its future
// with ErrUseAfterDispose.
func (d *Dispatcher) DisposeRemoteObject(ctx context.Context, local rpc.Instance) *rpc.Future {
	f := rpc.NewFuture()

	d.mu.Lock()
	entry, ok := d.objects[local]
	if ok && !entry.disposed {
		entry.disposed = true
	} else {
		ok = false
	}
	var hook func(state any) error
	var state any
	if ok {
		if iface := d.ifaces[entry.iface]; iface != nil {
			hook = iface.OnDispose
		}
		state = entry.state
	}
	d.mu.Unlock()

	if !ok {
		f.Reject(rpc.ErrUseAfterDispose)
		return f
	}

	go func() {
		if hook != nil {
			if err := hook(state); err != nil {
				f.Reject(&rpc.RemoteCallError{Call: "dispose " + local.InterfaceName(), Err: err})
				return
			}
		}
		f.Resolve(nil)
	}()
	return f
}

// dispatch shapes one handler invocation per the declared return kind.
func (d *Dispatcher) dispatch(ctx context.Context, call string, kind model.ReturnKind, run func(context.Context) (any, error)) (rpc.Result, error) {
	switch kind {
	case model.ReturnValue:
		out, err := run(ctx)
		if err != nil {
			return nil, &rpc.RemoteCallError{Call: call, Err: err}
		}
		return rpc.Value{V: out}, nil

	case model.ReturnFuture:
		f := rpc.NewFuture()
		go func() {
			out, err := run(context.WithoutCancel(ctx))
			if err != nil {
				f.Reject(&rpc.RemoteCallError{Call: call, Err: err})
				return
			}
			f.Resolve(out)
		}()
		return f, nil

	case model.ReturnStream:
		sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		st := rpc.NewStream(streamBuffer, cancel)
		go func() {
			out, err := run(sctx)
			if err != nil {
				st.Fail(&rpc.RemoteCallError{Call: call, Err: err})
				return
			}
			elems, ok := out.([]any)
			if !ok && out != nil {
				st.Fail(&rpc.RemoteCallError{Call: call, Err: fmt.Errorf("stream handler returned %T, want []any", out)})
				return
			}
			for _, e := range elems {
				if err := st.SendContext(sctx, e); err != nil {
					break
				}
			}
			st.Close()
		}()
		return st, nil

	default:
		return nil, fmt.Errorf("call %s: unknown return kind %d", call, kind)
	}
}

// failure surfaces a dispatch error through the channel the declared kind
// prescribes.
func (d *Dispatcher) failure(call string, kind model.ReturnKind, err error) (rpc.Result, error) {
	return d.kindError(kind, &rpc.RemoteCallError{Call: call, Err: err})
}

func (d *Dispatcher) kindError(kind model.ReturnKind, err error) (rpc.Result, error) {
	switch kind {
	case model.ReturnFuture:
		f := rpc.NewFuture()
		f.Reject(err)
		return f, nil
	case model.ReturnStream:
		st := rpc.NewStream(1, nil)
		st.Fail(err)
		return st, nil
	default:
		return nil, err
	}
}

const streamBuffer = 64
