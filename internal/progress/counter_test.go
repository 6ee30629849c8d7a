package progress_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desertthunder/pulse/internal/progress"
)

func TestAtomicCounter(t *testing.T) {
	t.Run("starts at one", func(t *testing.T) {
		c := progress.NewCounter()
		assert.Equal(t, int64(1), c.Value())
		assert.Equal(t, int64(2), c.Next())
		assert.Equal(t, int64(3), c.Next())
	})

	t.Run("concurrent Next yields distinct values", func(t *testing.T) {
		const n = 500
		c := progress.NewCounter()

		var wg sync.WaitGroup
		results := make(chan int64, n)
		for range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results <- c.Next()
			}()
		}
		wg.Wait()
		close(results)

		seen := make(map[int64]bool, n)
		for v := range results {
			require.False(t, seen[v], "value %d returned twice", v)
			seen[v] = true
		}
		assert.Len(t, seen, n)
		assert.Equal(t, int64(n+1), c.Value())
	})
}

func TestNewCounterSource(t *testing.T) {
	t.Run("session scope hands out fresh counters", func(t *testing.T) {
		source, err := progress.NewCounterSource(progress.ScopeSession)
		require.NoError(t, err)

		a, b := source(), source()
		assert.Equal(t, int64(2), a.Next())
		assert.Equal(t, int64(2), b.Next())
	})

	t.Run("global scope shares one counter", func(t *testing.T) {
		source, err := progress.NewCounterSource(progress.ScopeGlobal)
		require.NoError(t, err)

		a, b := source(), source()
		assert.Equal(t, int64(2), a.Next())
		assert.Equal(t, int64(3), b.Next())
	})

	t.Run("unknown scope", func(t *testing.T) {
		_, err := progress.NewCounterSource("tenant")
		assert.ErrorIs(t, err, progress.ErrUnknownScope)
	})
}
