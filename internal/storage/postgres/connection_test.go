package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

func validConfig() Config {
	return Config{
		User:           "testuser",
		Password:       "testpass",
		Host:           "localhost",
		Port:           "5432",
		Database:       "testdb",
		MaxRetries:     10,
		RetryDelay:     2 * time.Second,
		ConnectTimeout: 5,
		MaxOpenConns:   50,
		LogLevelString: "warn",
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	tests := []struct {
		name          string
		setupEnv      func(*Config) error
		expectError   bool
		errorContains string
		validate      func(*testing.T, *Config)
	}{
		{
			name: "valid configuration with defaults",
			setupEnv: func(cfg *Config) error {
				*cfg = validConfig()
				return nil
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "testuser", cfg.User)
				assert.Equal(t, 10, cfg.MaxRetries)
				assert.Equal(t, 2*time.Second, cfg.RetryDelay)
				assert.Equal(t, logger.Warn, cfg.LogLevel)
			},
		},
		{
			name: "missing required POSTGRES_USER",
			setupEnv: func(cfg *Config) error {
				return errors.New("env: POSTGRES_USER is required but not set")
			},
			expectError:   true,
			errorContains: "failed to process env config",
		},
		{
			name: "custom values override defaults",
			setupEnv: func(cfg *Config) error {
				*cfg = validConfig()
				cfg.Host = "db.example.com"
				cfg.MaxRetries = 5
				cfg.RetryDelay = 5 * time.Second
				cfg.LogLevelString = "info"
				return nil
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "db.example.com", cfg.Host)
				assert.Equal(t, 5, cfg.MaxRetries)
				assert.Equal(t, logger.Info, cfg.LogLevel)
			},
		},
		{
			name: "validation error after successful env processing",
			setupEnv: func(cfg *Config) error {
				*cfg = validConfig()
				cfg.User = ""
				return nil
			},
			expectError:   true,
			errorContains: "config validation failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			originalEnvProcess := envProcess
			defer func() { envProcess = originalEnvProcess }()

			envProcess = func(ctx context.Context, v any, mus ...envconfig.Mutator) error {
				return tt.setupEnv(v.(*Config))
			}

			cfg, err := LoadConfigFromEnv(context.Background())

			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorContains)
				assert.Nil(t, cfg)
				return
			}

			require.NoError(t, err)
			if tt.validate != nil {
				tt.validate(t, cfg)
			}
		})
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name          string
		mutate        func(*Config)
		expectError   bool
		errorContains []string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:          "empty user",
			mutate:        func(c *Config) { c.User = "" },
			expectError:   true,
			errorContains: []string{"POSTGRES_USER is required"},
		},
		{
			name:          "empty password",
			mutate:        func(c *Config) { c.Password = " " },
			expectError:   true,
			errorContains: []string{"POSTGRES_PASSWORD is required"},
		},
		{
			name:          "non numeric port",
			mutate:        func(c *Config) { c.Port = "abc" },
			expectError:   true,
			errorContains: []string{"POSTGRES_PORT must be a valid number"},
		},
		{
			name:          "port out of range",
			mutate:        func(c *Config) { c.Port = "70000" },
			expectError:   true,
			errorContains: []string{"POSTGRES_PORT must be between 1 and 65535"},
		},
		{
			name: "several problems at once",
			mutate: func(c *Config) {
				c.MaxRetries = -1
				c.RetryDelay = 0
				c.MaxOpenConns = 0
			},
			expectError: true,
			errorContains: []string{
				"DB_MAX_RETRIES must be non-negative",
				"DB_RETRY_DELAY must be positive",
				"DB_MAX_OPEN_CONNS must be at least 1",
			},
		},
		{
			name:          "retry delay too large",
			mutate:        func(c *Config) { c.RetryDelay = time.Hour },
			expectError:   true,
			errorContains: []string{"DB_RETRY_DELAY must not exceed 10 minutes"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := validateConfig(&cfg)

			if !tt.expectError {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, substr := range tt.errorContains {
				assert.Contains(t, err.Error(), substr)
			}
		})
	}
}

func TestSimplifyDBError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"password authentication failed", errors.New("pq: password authentication failed for user"), "invalid database credentials"},
		{"missing database", errors.New(`FATAL: database "nope" does not exist`), "database does not exist"},
		{"i/o timeout", errors.New("dial tcp: i/o timeout"), "database connection timed out"},
		{"connection refused", errors.New("connect: connection refused"), "cannot reach database server"},
		{"SASL authentication error", errors.New("SASL authentication failed"), "authentication error"},
		{"empty error message", errors.New(""), "database error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, simplifyDBError(tt.err))
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected logger.LogLevel
	}{
		{"silent", logger.Silent},
		{"error", logger.Error},
		{"warn", logger.Warn},
		{"WARN", logger.Warn},
		{"info", logger.Info},
		{"bogus", logger.Warn},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLogLevel(tt.input))
		})
	}
}

func TestBuildDSN(t *testing.T) {
	cfg := validConfig()
	cfg.Host = "db.example.com"
	assert.Equal(t,
		"host=db.example.com user=testuser password=testpass dbname=testdb port=5432 sslmode=disable TimeZone=UTC connect_timeout=5",
		buildDSN(&cfg),
	)

	cfg.ConnectTimeout = 0
	assert.NotContains(t, buildDSN(&cfg), "connect_timeout")
}

func TestConnectDB_FailsFast(t *testing.T) {
	log, _ := test.NewNullLogger()

	t.Run("zero retries fails immediately", func(t *testing.T) {
		cfg := validConfig()
		cfg.MaxRetries = 0

		db, err := ConnectDB(context.Background(), &cfg, log)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "after 0 attempts")
		assert.Nil(t, db)
	})

	t.Run("invalid explicit config", func(t *testing.T) {
		cfg := validConfig()
		cfg.Database = ""

		db, err := ConnectDB(context.Background(), &cfg, log)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "POSTGRES_DB is required")
		assert.Nil(t, db)
	})

	t.Run("context canceled before connection", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		cfg := validConfig()
		cfg.MaxRetries = 3
		cfg.RetryDelay = 10 * time.Millisecond

		db, err := ConnectDB(ctx, &cfg, log)
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, db)
	})
}
