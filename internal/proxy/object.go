package proxy

import (
	"context"
	"fmt"

	"github.com/vk/proxyforge/internal/model"
	"github.com/vk/proxyforge/internal/rpc"
)

// MethodSpec is the dispatch metadata for one interface method.
type MethodSpec struct {
	Name   string
	Params []*model.Parameter
	Return model.Return
}

// Constructor builds local proxy instances for one declared interface. It
// supports both construction paths: New creates a fresh remote counterpart,
// Attach binds behavior to a handle the context already produced as some
// other call's result.
type Constructor struct {
	rc      rpc.Context
	b       rpc.Builders
	tw      rpc.TimingWrapper
	iface   string
	ctor    []*model.Parameter
	methods []MethodSpec
}

// NewConstructor binds one interface plan to a context.
func NewConstructor(rc rpc.Context, b rpc.Builders, tw rpc.TimingWrapper, iface string, ctor []*model.Parameter, methods []MethodSpec) *Constructor {
	return &Constructor{rc: rc, b: b, tw: tw, iface: iface, ctor: ctor, methods: methods}
}

// Interface returns the declared interface name.
func (c *Constructor) Interface() string { return c.iface }

// Methods returns the flattened method names in declaration order.
func (c *Constructor) Methods() []string {
	out := make([]string, len(c.methods))
	for i, m := range c.methods {
		out[i] = m.Name
	}
	return out
}

// New constructs a local instance and creates its remote counterpart. The
// remote id is bound before the instance is returned, so every later method
// call carries a valid handle.
func (c *Constructor) New(ctx context.Context, args ...any) (*Object, error) {
	o := &Object{ctor: c}
	bag, err := c.rc.MarshalArguments(ctx, args, c.ctor)
	if err != nil {
		return nil, fmt.Errorf("constructing %s: %w", c.iface, err)
	}
	id, err := c.rc.CreateRemoteObject(ctx, c.iface, o, bag, c.ctor)
	if err != nil {
		return nil, fmt.Errorf("constructing %s: %w", c.iface, err)
	}
	o.bind(id)
	return o, nil
}

// Attach binds a local instance to a handle that already has a remote
// counterpart. No remote call is made; identity comes from the context.
func (c *Constructor) Attach(id rpc.ObjectID) *Object {
	o := &Object{ctor: c}
	o.bind(id)
	return o
}

// Object is one local proxy instance paired with a remote object. It stores
// the handle and forwards; the owning context does all lifecycle
// enforcement, including rejection of use after dispose.
type Object struct {
	ctor  *Constructor
	id    rpc.ObjectID
	bound bool
	calls map[string]rpc.CallFn
}

// bind fixes the remote identity and materializes the per-instance method
// table. Each bound call is timing-wrapped keyed by the declared method
// name.
func (o *Object) bind(id rpc.ObjectID) {
	o.id = id
	o.bound = true
	o.calls = make(map[string]rpc.CallFn, len(o.ctor.methods))
	for _, m := range o.ctor.methods {
		spec := m
		base := func(ctx context.Context, args []any) (rpc.Result, error) {
			bag, err := o.ctor.rc.MarshalArguments(ctx, args, spec.Params)
			if err != nil {
				return nil, err
			}
			res, err := o.ctor.rc.CallRemoteMethod(ctx, o.id, spec.Name, spec.Return.Kind, bag)
			return deferFailure(o.ctor.b, spec.Return.Kind, res, err)
		}
		o.calls[spec.Name] = wrap(o.ctor.tw, spec.Name, base)
	}
}

// RemoteID implements rpc.Instance.
func (o *Object) RemoteID() (rpc.ObjectID, bool) { return o.id, o.bound }

// InterfaceName implements rpc.Instance.
func (o *Object) InterfaceName() string { return o.ctor.iface }

// Invoke calls a declared method on the remote counterpart. The result
// shape follows the method's declared return kind, exactly as for free
// functions.
func (o *Object) Invoke(ctx context.Context, method string, args ...any) (rpc.Result, error) {
	call, ok := o.calls[method]
	if !ok {
		return nil, fmt.Errorf("interface %s has no method %q", o.ctor.iface, method)
	}
	return call(ctx, args)
}

// Dispose releases the remote counterpart. The returned future settles
// exactly once when remote cleanup completes. Disposing twice, or invoking
// methods afterward, is caller misuse rejected by the context, not here.
func (o *Object) Dispose(ctx context.Context) *rpc.Future {
	return o.ctor.rc.DisposeRemoteObject(ctx, o)
}
