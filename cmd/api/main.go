package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/joshu-sajeev/wastewise/internal/alert"
	"github.com/joshu-sajeev/wastewise/internal/config"
	"github.com/joshu-sajeev/wastewise/internal/job"
	"github.com/joshu-sajeev/wastewise/internal/logger"
	"github.com/joshu-sajeev/wastewise/internal/storage/postgres"
	"github.com/joshu-sajeev/wastewise/middleware"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Info("no .env file found, using environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadAPIConfig(ctx)
	if err != nil {
		logrus.WithError(err).Fatal("failed to load api config")
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("api stopped with error")
	}
	log.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.APIConfig, log *logrus.Logger) error {
	db, err := postgres.ConnectDB(ctx, nil, log)
	if err != nil {
		return err
	}
	if err := postgres.RunMigrations(db, log); err != nil {
		return err
	}

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(cfg, db, log),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("addr", cfg.Addr).Info("poll api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down poll api")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newRouter(cfg *config.APIConfig, db *gorm.DB, log logrus.FieldLogger) http.Handler {
	gin.SetMode(cfg.GinMode)

	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.RequestLogger(logger.WithComponent(log, "http")),
		middleware.TimeoutMiddleware(cfg.RequestTimeout),
		middleware.ErrorHandler(),
	)

	r.GET("/healthz", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	jobs := postgres.NewJobRepository(db)
	properties := postgres.NewPropertyRepository(db)
	alerts := postgres.NewAlertRepository(db)

	v1 := r.Group("/api/v1")
	job.NewJobHandler(job.NewJobService(jobs, properties)).RegisterRoutes(v1)
	alert.NewAlertHandler(alert.NewAlertService(alerts)).RegisterRoutes(v1)

	return cors.New(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", job.PrincipalHeader},
	}).Handler(r)
}
