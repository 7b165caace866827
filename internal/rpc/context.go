package rpc

import (
	"context"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/proxyforge/internal/model"
)

// ObjectID is an opaque remote object handle. It is assigned and owned by
// the Context that created the object; a handle is never valid with a
// different Context instance.
type ObjectID uint64

// Instance is the local half of a remote object pairing, as seen by a
// Context. The proxy layer implements it; the Context uses it as the key for
// object lifecycle bookkeeping.
type Instance interface {
	// RemoteID returns the bound handle, or false before binding.
	RemoteID() (ObjectID, bool)
	// InterfaceName returns the declared interface the instance proxies.
	InterfaceName() string
}

// Context is the per-connection capability object generated proxies call
// back into. Marshaled values are cty values; an argument bag is a cty
// object keyed by parameter name.
//
// Marshal and Unmarshal are single-level from the caller's point of view:
// the implementation is responsible for recursing through compound Types, so
// synthesized call plans stay independent of type nesting depth.
type Context interface {
	// CallRemoteFunction invokes a free function. The result is shaped
	// solely by kind; remote failures for deferred kinds travel through the
	// Future/Stream failure channel, never as the returned error.
	CallRemoteFunction(ctx context.Context, name string, kind model.ReturnKind, args cty.Value) (Result, error)

	// CallRemoteMethod invokes a method on a bound remote object.
	CallRemoteMethod(ctx context.Context, id ObjectID, name string, kind model.ReturnKind, args cty.Value) (Result, error)

	// CreateRemoteObject creates the remote counterpart of a freshly
	// constructed local instance and returns the handle to bind. It must be
	// called before any method call on that instance.
	CreateRemoteObject(ctx context.Context, interfaceName string, local Instance, args cty.Value, params []*model.Parameter) (ObjectID, error)

	// DisposeRemoteObject releases the remote counterpart. The returned
	// future settles exactly once, when remote cleanup completes. Calling it
	// again for the same instance, or using the instance afterward, is
	// caller misuse the Context rejects with ErrUseAfterDispose.
	DisposeRemoteObject(ctx context.Context, local Instance) *Future

	// Marshal converts one native value against its declared type.
	Marshal(v any, t *model.Type) (cty.Value, error)

	// Unmarshal is the inverse of Marshal.
	Unmarshal(v cty.Value, t *model.Type) (any, error)

	// MarshalArguments marshals an ordered argument list against the
	// declared parameters into an argument bag.
	MarshalArguments(ctx context.Context, args []any, params []*model.Parameter) (cty.Value, error)

	// UnmarshalArguments is the inverse of MarshalArguments.
	UnmarshalArguments(ctx context.Context, bag cty.Value, params []*model.Parameter) ([]any, error)
}

// CallFn is the bound form of one remote call, after argument marshaling and
// dispatch have been closed over. TimingWrapper wraps values of this type.
type CallFn func(ctx context.Context, args []any) (Result, error)

// TimingWrapper instruments a bound call, keyed by the declared function or
// method name. It is injected explicitly at factory application.
type TimingWrapper func(name string, call CallFn) CallFn

// NopTiming returns the call unwrapped.
func NopTiming(name string, call CallFn) CallFn { return call }

// Builders supplies the Future/Stream constructors a factory application
// uses for deferred results. Injected explicitly, never ambient.
type Builders struct {
	NewFuture func() *Future
	NewStream func(onCancel func()) *Stream
}

// DefaultBuilders returns builders backed by this package's Future and
// Stream implementations.
func DefaultBuilders() Builders {
	return Builders{
		NewFuture: NewFuture,
		NewStream: func(onCancel func()) *Stream { return NewStream(defaultStreamBuffer, onCancel) },
	}
}
