package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_GetSet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := NewMemory()

	_, ok := c.Get(ctx, "missing")
	assert.False(t, ok)

	c.Set(ctx, "k", []byte("v"), 0)
	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)
}

func TestMemory_Expiry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := &memory{m: map[string]entry{}, now: func() time.Time { return now }}

	c.Set(ctx, "k", []byte("v"), time.Minute)
	_, ok := c.Get(ctx, "k")
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemory_SetCopiesValue(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := NewMemory()
	buf := []byte("abc")
	c.Set(ctx, "k", buf, 0)
	buf[0] = 'z'

	got, _ := c.Get(ctx, "k")
	assert.Equal(t, []byte("abc"), got)
}

func TestRedis_GetSet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	c := NewRedis(db, "vet:")

	mock.ExpectSet("vet:wallet", []byte("data"), time.Hour).SetVal("OK")
	c.Set(ctx, "wallet", []byte("data"), time.Hour)

	mock.ExpectGet("vet:wallet").SetVal("data")
	got, ok := c.Get(ctx, "wallet")
	require.True(t, ok)
	assert.Equal(t, []byte("data"), got)

	mock.ExpectGet("vet:other").RedisNil()
	_, ok = c.Get(ctx, "other")
	assert.False(t, ok)

	mock.ExpectGet("vet:broken").SetErr(errors.New("connection reset"))
	_, ok = c.Get(ctx, "broken")
	assert.False(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpen_EmptyURLIsMemory(t *testing.T) {
	t.Parallel()

	c, closeFn, err := Open(context.Background(), "", "vet:")
	require.NoError(t, err)
	assert.IsType(t, &memory{}, c)
	assert.NoError(t, closeFn())
}
