// Package testutil provides shared helpers for this module's tests, chiefly
// a recording stub implementation of the marshaling-context contract.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/proxyforge/internal/model"
	"github.com/vk/proxyforge/internal/rpc"
)

// MarshalArgsCall records one MarshalArguments invocation.
type MarshalArgsCall struct {
	Args   []any
	Params []*model.Parameter
}

// RemoteCall records one CallRemoteFunction or CallRemoteMethod invocation.
type RemoteCall struct {
	ObjectID rpc.ObjectID
	Name     string
	Kind     model.ReturnKind
	Args     cty.Value
}

// CreateCall records one CreateRemoteObject invocation.
type CreateCall struct {
	Interface string
	Args      cty.Value
	Params    []*model.Parameter
}

// StubContext is a recording rpc.Context for proxy-layer tests. Results are
// canned per call name; everything observable is recorded.
type StubContext struct {
	mu sync.Mutex

	// FunctionResults and MethodResults supply canned results by declared
	// name. A missing entry yields a zero result of the requested kind.
	FunctionResults map[string]rpc.Result
	MethodResults   map[string]rpc.Result
	// CreateErr, if set, fails every CreateRemoteObject.
	CreateErr error

	MarshalArgs   []MarshalArgsCall
	FunctionCalls []RemoteCall
	MethodCalls   []RemoteCall
	Creates       []CreateCall
	Disposes      []rpc.Instance

	nextID   rpc.ObjectID
	disposed map[rpc.Instance]bool
}

// NewStubContext returns an empty recording context.
func NewStubContext() *StubContext {
	return &StubContext{
		FunctionResults: make(map[string]rpc.Result),
		MethodResults:   make(map[string]rpc.Result),
		disposed:        make(map[rpc.Instance]bool),
	}
}

// CallRemoteFunction implements rpc.Context.
func (s *StubContext) CallRemoteFunction(ctx context.Context, name string, kind model.ReturnKind, args cty.Value) (rpc.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FunctionCalls = append(s.FunctionCalls, RemoteCall{Name: name, Kind: kind, Args: args})
	if res, ok := s.FunctionResults[name]; ok {
		return res, nil
	}
	return zeroResult(kind), nil
}

// CallRemoteMethod implements rpc.Context.
func (s *StubContext) CallRemoteMethod(ctx context.Context, id rpc.ObjectID, name string, kind model.ReturnKind, args cty.Value) (rpc.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.MethodCalls = append(s.MethodCalls, RemoteCall{ObjectID: id, Name: name, Kind: kind, Args: args})
	if res, ok := s.MethodResults[name]; ok {
		return res, nil
	}
	return zeroResult(kind), nil
}

// CreateRemoteObject implements rpc.Context.
func (s *StubContext) CreateRemoteObject(ctx context.Context, interfaceName string, local rpc.Instance, args cty.Value, params []*model.Parameter) (rpc.ObjectID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CreateErr != nil {
		return 0, s.CreateErr
	}
	s.Creates = append(s.Creates, CreateCall{Interface: interfaceName, Args: args, Params: params})
	s.nextID++
	return s.nextID, nil
}

// DisposeRemoteObject implements rpc.Context. The second dispose of an
// instance settles its future with rpc.ErrUseAfterDispose.
func (s *StubContext) DisposeRemoteObject(ctx context.Context, local rpc.Instance) *rpc.Future {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := rpc.NewFuture()
	s.Disposes = append(s.Disposes, local)
	if s.disposed[local] {
		f.Reject(rpc.ErrUseAfterDispose)
		return f
	}
	s.disposed[local] = true
	f.Resolve(nil)
	return f
}

// Marshal implements rpc.Context with a stringified placeholder encoding.
func (s *StubContext) Marshal(v any, t *model.Type) (cty.Value, error) {
	return cty.StringVal(fmt.Sprintf("%v", v)), nil
}

// Unmarshal implements rpc.Context.
func (s *StubContext) Unmarshal(v cty.Value, t *model.Type) (any, error) {
	return v.AsString(), nil
}

// MarshalArguments implements rpc.Context, recording the exact parameter
// metadata it is handed.
func (s *StubContext) MarshalArguments(ctx context.Context, args []any, params []*model.Parameter) (cty.Value, error) {
	s.mu.Lock()
	s.MarshalArgs = append(s.MarshalArgs, MarshalArgsCall{Args: args, Params: params})
	s.mu.Unlock()

	if len(args) > len(params) {
		return cty.NilVal, fmt.Errorf("%d arguments for %d parameters", len(args), len(params))
	}
	attrs := make(map[string]cty.Value, len(args))
	for i, arg := range args {
		attrs[params[i].Name] = cty.StringVal(fmt.Sprintf("%v", arg))
	}
	if len(attrs) == 0 {
		return cty.EmptyObjectVal, nil
	}
	return cty.ObjectVal(attrs), nil
}

// UnmarshalArguments implements rpc.Context.
func (s *StubContext) UnmarshalArguments(ctx context.Context, bag cty.Value, params []*model.Parameter) ([]any, error) {
	out := make([]any, len(params))
	for i, p := range params {
		if bag.Type().IsObjectType() && bag.Type().HasAttribute(p.Name) {
			out[i] = bag.GetAttr(p.Name).AsString()
		}
	}
	return out, nil
}

func zeroResult(kind model.ReturnKind) rpc.Result {
	switch kind {
	case model.ReturnFuture:
		f := rpc.NewFuture()
		f.Resolve(nil)
		return f
	case model.ReturnStream:
		st := rpc.NewStream(1, nil)
		st.Close()
		return st
	default:
		return rpc.Value{}
	}
}
