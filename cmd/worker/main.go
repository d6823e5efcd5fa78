package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/joshu-sajeev/wastewise/internal/config"
	"github.com/joshu-sajeev/wastewise/internal/logger"
	"github.com/joshu-sajeev/wastewise/internal/monitor"
	"github.com/joshu-sajeev/wastewise/internal/pool"
	"github.com/joshu-sajeev/wastewise/internal/skill"
	"github.com/joshu-sajeev/wastewise/internal/skills"
	"github.com/joshu-sajeev/wastewise/internal/storage/postgres"
	"github.com/joshu-sajeev/wastewise/internal/storage/redis"
	"github.com/joshu-sajeev/wastewise/internal/worker"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Info("no .env file found, using environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadWorkerConfig(ctx)
	if err != nil {
		logrus.WithError(err).Fatal("failed to load worker config")
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("worker stopped with error")
	}
	log.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.WorkerConfig, log *logrus.Logger) error {
	redisCfg, err := config.LoadRedisConfig(ctx)
	if err != nil {
		return err
	}

	db, err := postgres.ConnectDB(ctx, nil, log)
	if err != nil {
		return err
	}
	if err := postgres.RunMigrations(db, log); err != nil {
		return err
	}

	configs := postgres.NewSkillConfigRepository(db)
	if err := configs.Seed(ctx, skill.CanonicalRecords()); err != nil {
		return err
	}

	registry := skill.NewRegistry(configs, log)
	if err := skills.RegisterAll(registry); err != nil {
		return err
	}

	var (
		heartbeat pool.HeartbeatStore
		liveness  monitor.Liveness
		store     *redis.Store
	)
	if redisCfg.Enabled() {
		store, err = redis.Connect(ctx, *redisCfg, log)
		if err != nil {
			return err
		}
		defer store.Close()

		heartbeat, liveness = store, store
		registry.OnInvalidate(func(name skill.Name) {
			if err := store.PublishInvalidation(context.WithoutCancel(ctx), name); err != nil {
				log.WithError(err).WithField("skill", name).Warn("failed to broadcast config invalidation")
			}
		})
	} else {
		log.Info("redis not configured, heartbeats and invalidation broadcasts disabled")
	}

	jobs := postgres.NewJobRepository(db)
	builder := skill.NewBuilder(postgres.NewPropertyRepository(db), nil)
	processor := worker.NewProcessor(jobs, registry, builder, cfg.JobTimeout, log)

	workers := pool.NewWorkerPool(pool.Config{
		Workers:           cfg.MaxWorkers,
		PollInterval:      cfg.PollInterval,
		MaxIdleInterval:   cfg.MaxIdleInterval,
		HeartbeatInterval: cfg.HeartbeatInterval,
		HeartbeatTTL:      cfg.HeartbeatTTL,
	}, jobs, processor, heartbeat, log)
	mon := monitor.New(monitor.ConfigFrom(cfg), jobs, postgres.NewAlertRepository(db), liveness, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		workers.Start()
		<-gctx.Done()
		log.Info("stopping worker pool, releasing in-flight jobs")
		workers.Stop()
		return nil
	})
	g.Go(func() error {
		mon.Run(gctx)
		return nil
	})
	if store != nil {
		g.Go(func() error {
			return store.SubscribeInvalidations(gctx, registry.Forget, registry.InvalidateAll)
		})
	}
	return g.Wait()
}
