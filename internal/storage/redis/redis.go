// Package redis keeps worker heartbeats and broadcasts skill configuration
// invalidations between worker processes.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/joshu-sajeev/wastewise/internal/config"
	"github.com/joshu-sajeev/wastewise/internal/logger"
	"github.com/joshu-sajeev/wastewise/internal/skill"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	keyPrefix   = "wastewise"
	pingTimeout = 5 * time.Second
)

type Store struct {
	client *goredis.Client
	prefix string
	log    logrus.FieldLogger
}

// Connect opens a client and pings it before returning.
func Connect(ctx context.Context, cfg config.RedisConfig, log logrus.FieldLogger) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", cfg.Addr, err)
	}

	return NewStore(client, log), nil
}

func NewStore(client *goredis.Client, log logrus.FieldLogger) *Store {
	return &Store{
		client: client,
		prefix: keyPrefix,
		log:    logger.WithComponent(log, "redis"),
	}
}

func (s *Store) heartbeatKey(workerID string) string {
	return fmt.Sprintf("%s:worker:%s", s.prefix, workerID)
}

func (s *Store) invalidationChannel() string {
	return fmt.Sprintf("%s:skill-config:invalidate", s.prefix)
}

// Beat marks workerID alive for ttl.
func (s *Store) Beat(ctx context.Context, workerID string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.heartbeatKey(workerID), time.Now().UTC().Format(time.RFC3339), ttl).Err(); err != nil {
		return fmt.Errorf("heartbeat %s: %w", workerID, err)
	}
	return nil
}

// Alive reports whether workerID has beaten within its ttl.
func (s *Store) Alive(ctx context.Context, workerID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.heartbeatKey(workerID)).Result()
	if err != nil {
		return false, fmt.Errorf("heartbeat lookup %s: %w", workerID, err)
	}
	return n > 0, nil
}

// PublishInvalidation tells every subscribed worker process to drop its
// cached configuration for name.
func (s *Store) PublishInvalidation(ctx context.Context, name skill.Name) error {
	if err := s.client.Publish(ctx, s.invalidationChannel(), string(name)).Err(); err != nil {
		return fmt.Errorf("publish invalidation %s: %w", name, err)
	}
	return nil
}

// SubscribeInvalidations calls drop for every invalidation published until
// ctx is cancelled. Broadcasts sent while the subscription is down are lost,
// so resync runs once the subscription is live and again after every
// reconnect.
func (s *Store) SubscribeInvalidations(ctx context.Context, drop func(skill.Name), resync func()) error {
	sub := s.client.Subscribe(ctx, s.invalidationChannel())
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe invalidations: %w", err)
	}
	s.log.WithField("channel", s.invalidationChannel()).Info("listening for skill config invalidations")
	resync()

	ch := sub.ChannelWithSubscriptions()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			switch m := msg.(type) {
			case *goredis.Subscription:
				if m.Kind == "subscribe" {
					s.log.WithField("channel", m.Channel).Warn("invalidation subscription restored, dropping cached skill configs")
					resync()
				}
			case *goredis.Message:
				s.log.WithField("skill", m.Payload).Info("skill config invalidated by broadcast")
				drop(skill.Name(m.Payload))
			}
		}
	}
}

func (s *Store) Close() error {
	return s.client.Close()
}
