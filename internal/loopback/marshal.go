package loopback

import (
	"context"
	"fmt"
	"reflect"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/vk/proxyforge/internal/model"
	"github.com/vk/proxyforge/internal/rpc"
)

// Marshal converts one native value against its declared type, recursing
// through compound variants. Interface-named types marshal as remote object
// handles.
func (d *Dispatcher) Marshal(v any, t *model.Type) (cty.Value, error) {
	if t == nil {
		return cty.NilVal, fmt.Errorf("marshal: missing type")
	}
	switch t.Kind {
	case model.KindPrimitive:
		val, err := gocty.ToCtyValue(v, t.Prim)
		if err != nil {
			return cty.NilVal, fmt.Errorf("marshal %s: %w", t, err)
		}
		return val, nil

	case model.KindArray:
		rv := reflect.ValueOf(v)
		if v == nil || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
			return cty.NilVal, fmt.Errorf("marshal %s: expected a slice, got %T", t, v)
		}
		if rv.Len() == 0 {
			return cty.EmptyTupleVal, nil
		}
		elems := make([]cty.Value, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			ev, err := d.Marshal(rv.Index(i).Interface(), t.Elem)
			if err != nil {
				return cty.NilVal, fmt.Errorf("element %d: %w", i, err)
			}
			elems[i] = ev
		}
		// Tuples rather than lists: element types may legitimately differ
		// in cty terms (e.g. union members) while matching the model type.
		return cty.TupleVal(elems), nil

	case model.KindNullable:
		if isNil(v) {
			return cty.NullVal(cty.DynamicPseudoType), nil
		}
		return d.Marshal(v, t.Elem)

	case model.KindObject:
		fields, ok := v.(map[string]any)
		if !ok {
			return cty.NilVal, fmt.Errorf("marshal %s: expected map[string]any, got %T", t, v)
		}
		attrs := make(map[string]cty.Value, len(t.Fields))
		for _, name := range t.FieldNames() {
			fv, present := fields[name]
			if !present {
				return cty.NilVal, fmt.Errorf("marshal %s: missing field %q", t, name)
			}
			av, err := d.Marshal(fv, t.Fields[name])
			if err != nil {
				return cty.NilVal, fmt.Errorf("field %q: %w", name, err)
			}
			attrs[name] = av
		}
		return cty.ObjectVal(attrs), nil

	case model.KindNamed:
		id, err := handleOf(v)
		if err != nil {
			return cty.NilVal, fmt.Errorf("marshal %s: %w", t, err)
		}
		return cty.NumberUIntVal(uint64(id)), nil

	case model.KindUnion:
		for _, lit := range t.Literals {
			cand, err := gocty.ToCtyValue(v, lit.Type())
			if err != nil {
				continue
			}
			if cand.RawEquals(lit) {
				return lit, nil
			}
		}
		return cty.NilVal, fmt.Errorf("marshal %s: %v is not a member", t, v)

	default:
		return cty.NilVal, fmt.Errorf("marshal: unknown type kind %d", t.Kind)
	}
}

// Unmarshal is the inverse of Marshal. Numbers come back as float64,
// sequences as []any, objects as map[string]any, interface handles as
// rpc.ObjectID.
func (d *Dispatcher) Unmarshal(v cty.Value, t *model.Type) (any, error) {
	if t == nil {
		return nil, fmt.Errorf("unmarshal: missing type")
	}
	switch t.Kind {
	case model.KindPrimitive:
		return nativePrimitive(v, t.Prim)

	case model.KindArray:
		if !v.CanIterateElements() {
			return nil, fmt.Errorf("unmarshal %s: %s is not iterable", t, v.Type().FriendlyName())
		}
		out := make([]any, 0, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			native, err := d.Unmarshal(ev, t.Elem)
			if err != nil {
				return nil, err
			}
			out = append(out, native)
		}
		return out, nil

	case model.KindNullable:
		if v.IsNull() {
			return nil, nil
		}
		return d.Unmarshal(v, t.Elem)

	case model.KindObject:
		out := make(map[string]any, len(t.Fields))
		for _, name := range t.FieldNames() {
			if !v.Type().IsObjectType() || !v.Type().HasAttribute(name) {
				return nil, fmt.Errorf("unmarshal %s: missing field %q", t, name)
			}
			native, err := d.Unmarshal(v.GetAttr(name), t.Fields[name])
			if err != nil {
				return nil, err
			}
			out[name] = native
		}
		return out, nil

	case model.KindNamed:
		var id uint64
		if err := gocty.FromCtyValue(v, &id); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", t, err)
		}
		return rpc.ObjectID(id), nil

	case model.KindUnion:
		for _, lit := range t.Literals {
			cand, err := convert.Convert(v, lit.Type())
			if err != nil {
				continue
			}
			if cand.RawEquals(lit) {
				return nativePrimitive(lit, lit.Type())
			}
		}
		return nil, fmt.Errorf("unmarshal %s: %s is not a member", t, v.GoString())

	default:
		return nil, fmt.Errorf("unmarshal: unknown type kind %d", t.Kind)
	}
}

// MarshalArguments marshals an ordered argument list into the argument bag:
// a cty object keyed by parameter name. Trailing arguments may be omitted
// for optional parameters; an explicit nil for an optional parameter
// marshals as null.
func (d *Dispatcher) MarshalArguments(ctx context.Context, args []any, params []*model.Parameter) (cty.Value, error) {
	if len(args) > len(params) {
		return cty.NilVal, fmt.Errorf("marshal arguments: %d arguments for %d parameters", len(args), len(params))
	}
	attrs := make(map[string]cty.Value, len(params))
	for i, p := range params {
		if i >= len(args) || (args[i] == nil && p.Optional) {
			if !p.Optional {
				return cty.NilVal, fmt.Errorf("marshal arguments: missing required argument %q", p.Name)
			}
			attrs[p.Name] = cty.NullVal(cty.DynamicPseudoType)
			continue
		}
		av, err := d.Marshal(args[i], p.Type)
		if err != nil {
			return cty.NilVal, fmt.Errorf("argument %q: %w", p.Name, err)
		}
		attrs[p.Name] = av
	}
	if len(attrs) == 0 {
		return cty.EmptyObjectVal, nil
	}
	return cty.ObjectVal(attrs), nil
}

// UnmarshalArguments is the inverse of MarshalArguments, restoring declared
// parameter order.
func (d *Dispatcher) UnmarshalArguments(ctx context.Context, bag cty.Value, params []*model.Parameter) ([]any, error) {
	out := make([]any, len(params))
	for i, p := range params {
		if !bag.Type().IsObjectType() || !bag.Type().HasAttribute(p.Name) {
			if p.Optional {
				continue
			}
			return nil, fmt.Errorf("unmarshal arguments: missing required argument %q", p.Name)
		}
		av := bag.GetAttr(p.Name)
		if av.IsNull() && p.Optional {
			continue
		}
		native, err := d.Unmarshal(av, p.Type)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", p.Name, err)
		}
		out[i] = native
	}
	return out, nil
}

func nativePrimitive(v cty.Value, prim cty.Type) (any, error) {
	converted, err := convert.Convert(v, prim)
	if err != nil {
		return nil, err
	}
	if converted.IsNull() {
		return nil, nil
	}
	switch prim {
	case cty.String:
		return converted.AsString(), nil
	case cty.Bool:
		return converted.True(), nil
	case cty.Number:
		f, _ := converted.AsBigFloat().Float64()
		return f, nil
	default:
		return nil, fmt.Errorf("unsupported primitive %s", prim.FriendlyName())
	}
}

// bagToMap converts an argument bag to generic natives for handler
// dispatch: numbers as float64, sequences as []any, nested objects as
// map[string]any.
func bagToMap(bag cty.Value) map[string]any {
	if bag == cty.NilVal || !bag.Type().IsObjectType() {
		return map[string]any{}
	}
	out := make(map[string]any, len(bag.Type().AttributeTypes()))
	for name := range bag.Type().AttributeTypes() {
		out[name] = genericNative(bag.GetAttr(name))
	}
	return out
}

func genericNative(v cty.Value) any {
	switch {
	case v.IsNull():
		return nil
	case v.Type() == cty.String:
		return v.AsString()
	case v.Type() == cty.Bool:
		return v.True()
	case v.Type() == cty.Number:
		f, _ := v.AsBigFloat().Float64()
		return f
	case v.Type().IsTupleType() || v.Type().IsListType() || v.Type().IsSetType():
		out := make([]any, 0, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			out = append(out, genericNative(ev))
		}
		return out
	case v.Type().IsObjectType() || v.Type().IsMapType():
		out := make(map[string]any)
		for it := v.ElementIterator(); it.Next(); {
			k, ev := it.Element()
			out[k.AsString()] = genericNative(ev)
		}
		return out
	default:
		return v.GoString()
	}
}

func handleOf(v any) (rpc.ObjectID, error) {
	switch h := v.(type) {
	case rpc.Instance:
		id, bound := h.RemoteID()
		if !bound {
			return 0, fmt.Errorf("instance of %s has no remote id yet", h.InterfaceName())
		}
		return id, nil
	case rpc.ObjectID:
		return h, nil
	default:
		return 0, fmt.Errorf("expected a remote object, got %T", v)
	}
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
