// Package integrationtests exercises the full chain: definition source on
// disk, registry parse, synthesis, load, and calls dispatched through an
// in-process marshaling context.
package integrationtests

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/proxyforge/internal/factorystore"
	"github.com/vk/proxyforge/internal/loopback"
	"github.com/vk/proxyforge/internal/registry"
	"github.com/vk/proxyforge/internal/rpc"
)

const mathSource = `
service "MathService" {
  type "Pair" {
    type = object({ a = number, b = number })
  }

  function "add" {
    param "pair" { type = Pair }
    returns { type = number }
  }

  function "countdown" {
    param "from" { type = number }
    returns {
      kind = "stream"
      type = number
    }
  }

  interface "Accumulator" {
    constructor {
      param "start" { type = number }
    }
    method "push" {
      param "n" { type = number }
      returns {
        kind = "future"
        type = number
      }
    }
  }
}
`

func newMathDispatcher() *loopback.Dispatcher {
	d := loopback.NewDispatcher()
	d.RegisterFunction("add", func(ctx context.Context, args map[string]any) (any, error) {
		pair := args["pair"].(map[string]any)
		return pair["a"].(float64) + pair["b"].(float64), nil
	})
	d.RegisterFunction("countdown", func(ctx context.Context, args map[string]any) (any, error) {
		from := int(args["from"].(float64))
		out := make([]any, 0, from)
		for n := from; n > 0; n-- {
			out = append(out, float64(n))
		}
		return out, nil
	})
	d.RegisterInterface("Accumulator", &loopback.InterfaceHandler{
		New: func(ctx context.Context, args map[string]any) (any, error) {
			start := args["start"].(float64)
			return &start, nil
		},
		Methods: map[string]loopback.MethodHandler{
			"push": func(ctx context.Context, state any, args map[string]any) (any, error) {
				total := state.(*float64)
				*total += args["n"].(float64)
				return *total, nil
			},
		},
	})
	return d
}

func writeMathDefinition(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "math.hcl")
	require.NoError(t, os.WriteFile(path, []byte(mathSource), 0o644))
	return path
}

func TestProxyChain(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	path := writeMathDefinition(t)
	store := factorystore.New(registry.New())

	t.Run("value function round trip", func(t *testing.T) {
		svc, err := store.Proxy(ctx, "MathService", path, newMathDispatcher())
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"add", "countdown", "Accumulator"}, svc.Exports())

		fn, ok := svc.Function("add")
		require.True(t, ok)
		res, err := fn.Call(ctx, map[string]any{"a": 19, "b": 23})
		require.NoError(t, err)
		assert.Equal(t, rpc.Value{V: float64(42)}, res)
	})

	t.Run("stream function delivers then closes", func(t *testing.T) {
		svc, err := store.Proxy(ctx, "MathService", path, newMathDispatcher())
		require.NoError(t, err)

		fn, ok := svc.Function("countdown")
		require.True(t, ok)
		res, err := fn.Call(ctx, 3)
		require.NoError(t, err)
		st, ok := res.(*rpc.Stream)
		require.True(t, ok)

		var got []float64
		for {
			v, rerr := st.Recv(ctx)
			if errors.Is(rerr, rpc.ErrStreamClosed) {
				break
			}
			require.NoError(t, rerr)
			got = append(got, v.(float64))
		}
		assert.Equal(t, []float64{3, 2, 1}, got)
	})

	t.Run("object lifecycle across construct, call, dispose", func(t *testing.T) {
		svc, err := store.Proxy(ctx, "MathService", path, newMathDispatcher())
		require.NoError(t, err)

		ctor, ok := svc.Constructor("Accumulator")
		require.True(t, ok)
		obj, err := ctor.New(ctx, 100)
		require.NoError(t, err)

		id, bound := obj.RemoteID()
		require.True(t, bound)
		require.NotZero(t, id)

		res, err := obj.Invoke(ctx, "push", 7)
		require.NoError(t, err)
		f, ok := res.(*rpc.Future)
		require.True(t, ok)
		total, err := f.Await(ctx)
		require.NoError(t, err)
		assert.Equal(t, float64(107), total)

		_, err = obj.Dispose(ctx).Await(ctx)
		require.NoError(t, err)

		// Use after dispose is the context's error, routed through the
		// declared future kind.
		res, err = obj.Invoke(ctx, "push", 1)
		require.NoError(t, err)
		_, ferr := res.(*rpc.Future).Await(ctx)
		assert.ErrorIs(t, ferr, rpc.ErrUseAfterDispose)
	})

	t.Run("one cached factory serves independent contexts", func(t *testing.T) {
		d1 := newMathDispatcher()
		d2 := newMathDispatcher()

		svc1, err := store.Proxy(ctx, "MathService", path, d1)
		require.NoError(t, err)
		svc2, err := store.Proxy(ctx, "MathService", path, d2)
		require.NoError(t, err)

		ctor1, _ := svc1.Constructor("Accumulator")
		ctor2, _ := svc2.Constructor("Accumulator")

		obj1, err := ctor1.New(ctx, 1)
		require.NoError(t, err)
		obj2, err := ctor2.New(ctx, 2)
		require.NoError(t, err)

		// Handles are per-context identities; each dispatcher starts its own
		// sequence, so the same numeric handle can appear in both.
		res, err := obj1.Invoke(ctx, "push", 0)
		require.NoError(t, err)
		v1, err := res.(*rpc.Future).Await(ctx)
		require.NoError(t, err)
		assert.Equal(t, float64(1), v1)

		res, err = obj2.Invoke(ctx, "push", 0)
		require.NoError(t, err)
		v2, err := res.(*rpc.Future).Await(ctx)
		require.NoError(t, err)
		assert.Equal(t, float64(2), v2)
	})
}
