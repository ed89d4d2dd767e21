//go:build integration

package redis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"supplyledger/internal/platform/config"
	"supplyledger/pkg/testutil/containers"
)

func TestNew(t *testing.T) {
	rc := containers.GetManager().GetRedis(t)
	ctx := context.Background()

	client, err := New(ctx, config.RedisConfig{URL: rc.Addr, PoolSize: 4})
	require.NoError(t, err)
	defer client.Close()
	require.NoError(t, client.Health(ctx))

	none, err := New(ctx, config.RedisConfig{})
	require.NoError(t, err)
	require.Nil(t, none)
}
