package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := Connect(context.Background(), Options{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestConnectSelectsDatabaseWithPassword(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.RequireAuth("s3cret")

	_, err := Connect(context.Background(), Options{Addr: mr.Addr()})
	require.Error(t, err)

	client, err := Connect(context.Background(), Options{Addr: mr.Addr(), Password: "s3cret", DB: 2})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())

	assert.True(t, mr.DB(2).Exists("k"))
	assert.False(t, mr.Exists("k"))
}

func TestConnectFailsWhenUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := Connect(context.Background(), Options{Addr: addr, PingTimeout: time.Second})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache: redis at "+addr+" unreachable")

	_, err = Connect(context.Background(), Options{})
	require.EqualError(t, err, "cache: redis address required")
}
