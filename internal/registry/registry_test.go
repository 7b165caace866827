package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/proxyforge/internal/model"
)

const pingSource = `
service "Ping" {
  function "ping" {
    returns { type = string }
  }
}
`

func writeDefinition(t *testing.T, source string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "svc.hcl")
	require.NoError(t, os.WriteFile(path, []byte(source), 0o644))
	return path
}

func TestGetDefinition(t *testing.T) {
	ctx := context.Background()

	t.Run("parses and caches by identity", func(t *testing.T) {
		path := writeDefinition(t, pingSource)

		var parses atomic.Int32
		reg := NewWithParser(countingParser(&parses))

		first, err := reg.GetDefinition(ctx, path)
		require.NoError(t, err)
		second, err := reg.GetDefinition(ctx, path)
		require.NoError(t, err)

		assert.Same(t, first, second)
		assert.Equal(t, int32(1), parses.Load())
	})

	t.Run("ignores source changes after first parse", func(t *testing.T) {
		path := writeDefinition(t, pingSource)
		reg := New()

		first, err := reg.GetDefinition(ctx, path)
		require.NoError(t, err)

		require.NoError(t, os.WriteFile(path, []byte(`service "Other" {}`), 0o644))
		second, err := reg.GetDefinition(ctx, path)
		require.NoError(t, err)
		assert.Same(t, first, second)
		assert.Equal(t, "Ping", second.Name)
	})

	t.Run("concurrent first access parses once", func(t *testing.T) {
		path := writeDefinition(t, pingSource)

		var parses atomic.Int32
		reg := NewWithParser(countingParser(&parses))

		const callers = 32
		results := make([]*model.ServiceDefinition, callers)
		var wg sync.WaitGroup
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				def, err := reg.GetDefinition(ctx, path)
				assert.NoError(t, err)
				results[i] = def
			}(i)
		}
		wg.Wait()

		assert.Equal(t, int32(1), parses.Load())
		for _, def := range results {
			assert.Same(t, results[0], def)
		}
	})

	t.Run("parse failures surface and are not cached", func(t *testing.T) {
		path := writeDefinition(t, pingSource)

		broken := true
		reg := NewWithParser(func(ctx context.Context, p string) (*model.ServiceDefinition, error) {
			if broken {
				return nil, fmt.Errorf("boom")
			}
			return parseReal(ctx, p)
		})

		_, err := reg.GetDefinition(ctx, path)
		var parseErr *DefinitionParseError
		require.ErrorAs(t, err, &parseErr)
		assert.Equal(t, path, parseErr.Path)

		// Retrying after the external fix succeeds.
		broken = false
		def, err := reg.GetDefinition(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, "Ping", def.Name)
	})

	t.Run("malformed file yields DefinitionParseError", func(t *testing.T) {
		path := writeDefinition(t, `service "X" {`)
		reg := New()

		_, err := reg.GetDefinition(ctx, path)
		var parseErr *DefinitionParseError
		assert.ErrorAs(t, err, &parseErr)
	})
}

func countingParser(parses *atomic.Int32) ParseFunc {
	return func(ctx context.Context, path string) (*model.ServiceDefinition, error) {
		parses.Add(1)
		return parseReal(ctx, path)
	}
}

func parseReal(ctx context.Context, path string) (*model.ServiceDefinition, error) {
	return New().parse(ctx, path)
}
