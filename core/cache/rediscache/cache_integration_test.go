package rediscache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/liquers/liquers-go/core/cache"
	"github.com/liquers/liquers-go/core/metadata"
)

// startRedis spins up a disposable Redis container. The test is skipped
// unless LIQUERS_INTEGRATION=1 is set.
func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	if os.Getenv("LIQUERS_INTEGRATION") != "1" {
		t.Skip("set LIQUERS_INTEGRATION=1 to run container-backed tests")
	}
	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})
	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisCacheRoundTrip(t *testing.T) {
	client := startRedis(t)
	c := New(Options{Client: client, KeyPrefix: "it:", TTL: time.Minute})
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "hello/greet")
	require.NoError(t, err)
	assert.False(t, ok)

	meta := metadata.New()
	meta.Query = "hello/greet"
	meta.Status = metadata.StatusReady
	require.NoError(t, c.Set(ctx, "hello/greet", &cache.Entry{
		Data:       []byte("Hello, world!"),
		Metadata:   meta,
		DataFormat: "txt",
	}))

	entry, ok, err := c.Get(ctx, "hello/greet")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("Hello, world!"), entry.Data)
	require.NotNil(t, entry.Metadata)
	assert.Equal(t, metadata.StatusReady, entry.Metadata.Status)

	ok, err = c.Contains(ctx, "hello/greet")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, c.Remove(ctx, "hello/greet"))
	_, ok, err = c.Get(ctx, "hello/greet")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCacheRemovePrefix(t *testing.T) {
	client := startRedis(t)
	c := New(Options{Client: client, KeyPrefix: "it2:"})
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "data/a", &cache.Entry{Data: []byte("1")}))
	require.NoError(t, c.Set(ctx, "data/b", &cache.Entry{Data: []byte("2")}))
	require.NoError(t, c.Set(ctx, "other", &cache.Entry{Data: []byte("3")}))

	require.NoError(t, c.RemovePrefix(ctx, "data/"))

	ok, err := c.Contains(ctx, "data/a")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = c.Contains(ctx, "other")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisCacheRejectsMismatchedQuery(t *testing.T) {
	client := startRedis(t)
	c := New(Options{Client: client})
	meta := metadata.New()
	meta.Query = "other/query"
	err := c.Set(context.Background(), "this/query", &cache.Entry{Metadata: meta})
	require.Error(t, err)
}
