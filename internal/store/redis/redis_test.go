package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyPrefix(t *testing.T) {
	s := New(goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:0"}))
	defer s.Close()
	assert.Equal(t, "mindcheck:profile:a:userName", s.key("profile:a:userName"))

	custom := New(goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:0"}), WithPrefix("test:"), WithTTL(time.Hour))
	defer custom.Close()
	assert.Equal(t, "test:k", custom.key("k"))
	assert.Equal(t, time.Hour, custom.ttl)
}

func TestDialRejectsInvalidURL(t *testing.T) {
	_, err := Dial(context.Background(), "not-a-url")
	assert.Error(t, err)
}

// TestStoreAgainstLiveRedis 需要设置 REDIS_URL 才会运行。
func TestStoreAgainstLiveRedis(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}

	ctx := context.Background()
	s, err := Dial(ctx, url, WithPrefix("mindcheck-test:"+uuid.NewString()+":"), WithTTL(time.Minute))
	require.NoError(t, err)
	defer s.Close()

	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "k", "v"))
	v, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	require.NoError(t, s.Remove(ctx, "k"))
	_, ok, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}
