// Package testutil provides an in-memory database for package tests.
package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/joshu-sajeev/wastewise/internal/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens an in-memory sqlite database with every model migrated. The
// pool is pinned to one connection so all callers share the same database;
// concurrent callers queue on it.
func NewDB(tb testing.TB) *gorm.DB {
	tb.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(tb, err)

	sqlDB, err := db.DB()
	require.NoError(tb, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(0)

	require.NoError(tb, db.AutoMigrate(models.All()...))

	tb.Cleanup(func() { sqlDB.Close() })
	return db
}

// Fixed is a deterministic UTC clock for repositories that accept one.
func Fixed(t time.Time) func() time.Time {
	return func() time.Time { return t.UTC() }
}

// Clock is a settable clock for tests that advance time.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start.UTC()}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
