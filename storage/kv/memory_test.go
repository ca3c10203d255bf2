package kv

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/eskwela/core/attendance"
)

func TestMemoryCodeStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 9, 2, 8, 0, 0, 0, time.UTC)
	store := NewMemoryCodeStore()
	store.nowFunc = func() time.Time { return now }

	s := attendance.Session{Code: "abc", ClassID: 1, OpenedBy: 2, OpenedAt: now, ExpiresAt: now.Add(time.Minute)}
	require.NoError(t, store.SaveSession(ctx, s, time.Minute))

	got, err := store.GetSession(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, s, got)

	_, err = store.GetSession(ctx, "unknown")
	assert.Equal(t, attendance.ErrSessionNotFound, err)

	now = now.Add(time.Minute)
	_, err = store.GetSession(ctx, "abc")
	assert.Equal(t, attendance.ErrSessionNotFound, err)
}
