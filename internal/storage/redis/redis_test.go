package redis

import (
	"context"
	"testing"
	"time"

	"github.com/joshu-sajeev/wastewise/internal/skill"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unreachableStore(t *testing.T) *Store {
	t.Helper()

	client := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { client.Close() })

	log, _ := test.NewNullLogger()
	return NewStore(client, log)
}

func TestStore_Keys(t *testing.T) {
	s := unreachableStore(t)

	assert.Equal(t, "wastewise:worker:host-1-abcd1234", s.heartbeatKey("host-1-abcd1234"))
	assert.Equal(t, "wastewise:skill-config:invalidate", s.invalidationChannel())
}

func TestStore_ErrorsAreWrapped(t *testing.T) {
	s := unreachableStore(t)
	ctx := context.Background()

	err := s.Beat(ctx, "w-1", time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "heartbeat w-1")

	alive, err := s.Alive(ctx, "w-1")
	require.Error(t, err)
	assert.False(t, alive)

	err = s.PublishInvalidation(ctx, "report-generator")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish invalidation report-generator")

	subCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	resyncs := 0
	err = s.SubscribeInvalidations(subCtx, func(skill.Name) {}, func() { resyncs++ })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subscribe invalidations")
	assert.Zero(t, resyncs, "no resync before the subscription is live")
}
