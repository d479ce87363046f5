package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	st := NewMemoryStore(time.Hour)
	st.now = func() time.Time { return clock }

	require.NoError(t, st.Create(ctx, &Session{ID: "a", UserID: 1, Username: "ann", Role: "sales"}))
	require.NoError(t, st.Create(ctx, &Session{ID: "b", UserID: 1, Username: "ann", Role: "sales"}))
	require.NoError(t, st.Create(ctx, &Session{ID: "c", UserID: 2, Username: "bob", Role: "admin"}))

	t.Run("get touches last activity", func(t *testing.T) {
		clock = clock.Add(50 * time.Minute)
		s, err := st.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, "ann", s.Username)
		assert.Equal(t, clock, s.LastActivity)

		clock = clock.Add(50 * time.Minute)
		_, err = st.Get(ctx, "a")
		assert.NoError(t, err)
	})

	t.Run("idle sessions expire", func(t *testing.T) {
		_, err := st.Get(ctx, "c")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("delete user drops all sessions", func(t *testing.T) {
		require.NoError(t, st.DeleteUser(ctx, 1))
		_, err := st.Get(ctx, "a")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = st.Get(ctx, "b")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, st.Create(ctx, &Session{ID: "d", UserID: 3}))
		require.NoError(t, st.Delete(ctx, "d"))
		_, err := st.Get(ctx, "d")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("sweep drops idle sessions", func(t *testing.T) {
		require.NoError(t, st.Create(ctx, &Session{ID: "e", UserID: 4}))
		require.NoError(t, st.Create(ctx, &Session{ID: "f", UserID: 5}))
		clock = clock.Add(30 * time.Minute)
		_, err := st.Get(ctx, "f")
		require.NoError(t, err)
		clock = clock.Add(45 * time.Minute)

		n, err := st.Sweep(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		st.mu.Lock()
		_, stale := st.sessions["e"]
		_, live := st.sessions["f"]
		st.mu.Unlock()
		assert.False(t, stale)
		assert.True(t, live)
	})
}
