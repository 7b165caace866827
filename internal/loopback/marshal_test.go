package loopback

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/proxyforge/internal/model"
	"github.com/vk/proxyforge/internal/rpc"
)

type boundInstance struct {
	id    rpc.ObjectID
	iface string
}

func (b boundInstance) RemoteID() (rpc.ObjectID, bool) { return b.id, b.id != 0 }
func (b boundInstance) InterfaceName() string          { return b.iface }

func TestMarshal(t *testing.T) {
	d := NewDispatcher()

	t.Run("primitives", func(t *testing.T) {
		v, err := d.Marshal("hi", model.Primitive(cty.String))
		require.NoError(t, err)
		assert.Equal(t, cty.StringVal("hi"), v)

		v, err = d.Marshal(3, model.Primitive(cty.Number))
		require.NoError(t, err)
		assert.True(t, cty.NumberIntVal(3).RawEquals(v))

		v, err = d.Marshal(true, model.Primitive(cty.Bool))
		require.NoError(t, err)
		assert.Equal(t, cty.True, v)

		_, err = d.Marshal([]int{1}, model.Primitive(cty.Number))
		assert.ErrorContains(t, err, "marshal number")
	})

	t.Run("arrays", func(t *testing.T) {
		v, err := d.Marshal([]any{"a", "b"}, model.Array(model.Primitive(cty.String)))
		require.NoError(t, err)
		assert.True(t, cty.TupleVal([]cty.Value{cty.StringVal("a"), cty.StringVal("b")}).RawEquals(v))

		v, err = d.Marshal([]any{}, model.Array(model.Primitive(cty.String)))
		require.NoError(t, err)
		assert.True(t, cty.EmptyTupleVal.RawEquals(v))

		_, err = d.Marshal("not a slice", model.Array(model.Primitive(cty.String)))
		assert.ErrorContains(t, err, "expected a slice")
	})

	t.Run("nullable", func(t *testing.T) {
		v, err := d.Marshal(nil, model.Nullable(model.Primitive(cty.String)))
		require.NoError(t, err)
		assert.True(t, v.IsNull())

		var p *int
		v, err = d.Marshal(p, model.Nullable(model.Primitive(cty.Number)))
		require.NoError(t, err)
		assert.True(t, v.IsNull())

		v, err = d.Marshal("set", model.Nullable(model.Primitive(cty.String)))
		require.NoError(t, err)
		assert.Equal(t, cty.StringVal("set"), v)
	})

	t.Run("objects", func(t *testing.T) {
		point := model.Object(map[string]*model.Type{
			"x": model.Primitive(cty.Number),
			"y": model.Primitive(cty.Number),
		})

		v, err := d.Marshal(map[string]any{"x": 1, "y": 2}, point)
		require.NoError(t, err)
		assert.True(t, v.Type().IsObjectType())
		assert.True(t, cty.NumberIntVal(1).RawEquals(v.GetAttr("x")))

		_, err = d.Marshal(map[string]any{"x": 1}, point)
		assert.ErrorContains(t, err, `missing field "y"`)
	})

	t.Run("nested compound", func(t *testing.T) {
		typ := model.Object(map[string]*model.Type{
			"tags": model.Array(model.Primitive(cty.String)),
			"note": model.Nullable(model.Primitive(cty.String)),
		})
		v, err := d.Marshal(map[string]any{"tags": []any{"a"}, "note": nil}, typ)
		require.NoError(t, err)
		assert.True(t, v.GetAttr("note").IsNull())
		assert.Equal(t, 1, v.GetAttr("tags").LengthInt())
	})

	t.Run("interface handles", func(t *testing.T) {
		v, err := d.Marshal(boundInstance{id: 7, iface: "Session"}, model.Named("Session"))
		require.NoError(t, err)
		assert.True(t, cty.NumberUIntVal(7).RawEquals(v))

		_, err = d.Marshal(boundInstance{iface: "Session"}, model.Named("Session"))
		assert.ErrorContains(t, err, "no remote id")

		_, err = d.Marshal("plain string", model.Named("Session"))
		assert.ErrorContains(t, err, "expected a remote object")
	})

	t.Run("union membership", func(t *testing.T) {
		mode := model.Union(cty.StringVal("r"), cty.StringVal("w"))

		v, err := d.Marshal("w", mode)
		require.NoError(t, err)
		assert.Equal(t, cty.StringVal("w"), v)

		_, err = d.Marshal("x", mode)
		assert.ErrorContains(t, err, "not a member")
	})
}

func TestUnmarshal(t *testing.T) {
	d := NewDispatcher()

	t.Run("round trips compound values", func(t *testing.T) {
		typ := model.Object(map[string]*model.Type{
			"n":    model.Primitive(cty.Number),
			"tags": model.Array(model.Primitive(cty.String)),
			"note": model.Nullable(model.Primitive(cty.Bool)),
		})
		in := map[string]any{"n": 4, "tags": []any{"a", "b"}, "note": nil}

		wire, err := d.Marshal(in, typ)
		require.NoError(t, err)
		out, err := d.Unmarshal(wire, typ)
		require.NoError(t, err)

		assert.Equal(t, map[string]any{
			"n":    float64(4),
			"tags": []any{"a", "b"},
			"note": nil,
		}, out)
	})

	t.Run("handles come back as object ids", func(t *testing.T) {
		out, err := d.Unmarshal(cty.NumberUIntVal(12), model.Named("Session"))
		require.NoError(t, err)
		assert.Equal(t, rpc.ObjectID(12), out)
	})

	t.Run("union members come back native", func(t *testing.T) {
		mode := model.Union(cty.StringVal("r"), cty.StringVal("w"))
		out, err := d.Unmarshal(cty.StringVal("r"), mode)
		require.NoError(t, err)
		assert.Equal(t, "r", out)

		_, err = d.Unmarshal(cty.StringVal("x"), mode)
		assert.ErrorContains(t, err, "not a member")
	})
}

func TestMarshalArguments(t *testing.T) {
	d := NewDispatcher()
	ctx := context.Background()

	params := []*model.Parameter{
		{Name: "name", Type: model.Primitive(cty.String)},
		{Name: "limit", Type: model.Primitive(cty.Number), Optional: true},
	}

	t.Run("keys the bag by parameter name", func(t *testing.T) {
		bag, err := d.MarshalArguments(ctx, []any{"q", 5}, params)
		require.NoError(t, err)
		assert.Equal(t, cty.StringVal("q"), bag.GetAttr("name"))
		assert.True(t, cty.NumberIntVal(5).RawEquals(bag.GetAttr("limit")))
	})

	t.Run("trailing optionals may be omitted", func(t *testing.T) {
		bag, err := d.MarshalArguments(ctx, []any{"q"}, params)
		require.NoError(t, err)
		assert.True(t, bag.GetAttr("limit").IsNull())
	})

	t.Run("missing required argument fails", func(t *testing.T) {
		_, err := d.MarshalArguments(ctx, nil, params)
		assert.ErrorContains(t, err, `missing required argument "name"`)
	})

	t.Run("extra arguments fail", func(t *testing.T) {
		_, err := d.MarshalArguments(ctx, []any{"q", 5, true}, params)
		assert.ErrorContains(t, err, "3 arguments for 2 parameters")
	})

	t.Run("no parameters marshal as the empty bag", func(t *testing.T) {
		bag, err := d.MarshalArguments(ctx, nil, nil)
		require.NoError(t, err)
		assert.True(t, cty.EmptyObjectVal.RawEquals(bag))
	})

	t.Run("round trips through UnmarshalArguments in declared order", func(t *testing.T) {
		bag, err := d.MarshalArguments(ctx, []any{"q", 5}, params)
		require.NoError(t, err)
		args, err := d.UnmarshalArguments(ctx, bag, params)
		require.NoError(t, err)
		assert.Equal(t, []any{"q", float64(5)}, args)
	})

	t.Run("omitted optional stays nil after the round trip", func(t *testing.T) {
		bag, err := d.MarshalArguments(ctx, []any{"q"}, params)
		require.NoError(t, err)
		args, err := d.UnmarshalArguments(ctx, bag, params)
		require.NoError(t, err)
		assert.Equal(t, []any{"q", nil}, args)
	})
}
