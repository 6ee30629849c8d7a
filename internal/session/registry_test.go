package session

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	t.Run("Register rejects duplicates", func(t *testing.T) {
		r := NewRegistry()
		first, second := &Session{id: "a"}, &Session{id: "a"}

		require.NoError(t, r.Register("a", first))
		err := r.Register("a", second)
		assert.ErrorIs(t, err, ErrDuplicateSession)

		got, ok := r.Lookup("a")
		require.True(t, ok)
		assert.Same(t, first, got)
	})

	t.Run("Remove is idempotent", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register("a", &Session{id: "a"}))

		assert.True(t, r.Remove("a"))
		assert.False(t, r.Remove("a"))
		assert.False(t, r.Remove("missing"))
		assert.Zero(t, r.Len())
	})

	t.Run("Take hands the session to exactly one caller", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register("a", &Session{id: "a"}))

		var (
			wg    sync.WaitGroup
			taken atomic.Int32
		)
		for range 32 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, ok := r.Take("a"); ok {
					taken.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), taken.Load())
		_, ok := r.Lookup("a")
		assert.False(t, ok)
	})

	t.Run("Snapshot and Len", func(t *testing.T) {
		r := NewRegistry()
		for _, id := range []string{"a", "b", "c"} {
			require.NoError(t, r.Register(id, &Session{id: id}))
		}

		assert.Equal(t, 3, r.Len())
		ids := []string{}
		for _, s := range r.Snapshot() {
			ids = append(ids, s.ID())
		}
		assert.ElementsMatch(t, []string{"a", "b", "c"}, ids)
	})
}
