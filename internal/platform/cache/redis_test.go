package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestNewPingsServer(t *testing.T) {
	srv := miniredis.RunT(t)
	addr := srv.Addr()
	client, err := New(context.Background(), Options{Addr: addr})
	require.NoError(t, err)
	defer client.Close()
	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())

	srv.Close()
	_, err = New(context.Background(), Options{Addr: addr})
	require.ErrorContains(t, err, "platform/cache: ping")
}

func TestOptionsAsynq(t *testing.T) {
	opts := Options{Addr: "redis:6379", Password: "rahasia", DB: 2}
	require.True(t, opts.Enabled())
	require.False(t, Options{}.Enabled())
	a := opts.Asynq()
	require.Equal(t, "redis:6379", a.Addr)
	require.Equal(t, 2, a.DB)
}
