package pool

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/joshu-sajeev/wastewise/internal/logger"
	"github.com/joshu-sajeev/wastewise/internal/worker"
	"github.com/sirupsen/logrus"
)

// HeartbeatStore records that a worker is alive for ttl.
type HeartbeatStore interface {
	Beat(ctx context.Context, workerID string, ttl time.Duration) error
}

type Config struct {
	Workers           int
	PollInterval      time.Duration
	MaxIdleInterval   time.Duration
	HeartbeatInterval time.Duration
	HeartbeatTTL      time.Duration
}

type WorkerPool struct {
	workers   []*worker.Worker
	heartbeat HeartbeatStore
	cfg       Config
	log       logrus.FieldLogger
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewWorkerPool builds cfg.Workers workers sharing queue and processor. A
// nil heartbeat store disables heartbeats.
func NewWorkerPool(cfg Config, queue worker.JobQueue, processor worker.JobProcessor, heartbeat HeartbeatStore, log logrus.FieldLogger) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())
	p := &WorkerPool{
		heartbeat: heartbeat,
		cfg:       cfg,
		log:       logger.WithComponent(log, "pool"),
		ctx:       ctx,
		cancel:    cancel,
	}

	host := hostname()
	for i := 1; i <= cfg.Workers; i++ {
		id := WorkerID(host, i)
		p.workers = append(p.workers, worker.NewWorker(id, queue, processor, cfg.PollInterval, cfg.MaxIdleInterval, log))
	}
	return p
}

// WorkerID renders <hostname>-<n>-<short uuid>.
func WorkerID(host string, n int) string {
	return fmt.Sprintf("%s-%d-%s", host, n, uuid.NewString()[:8])
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "worker"
	}
	return h
}

func (p *WorkerPool) IDs() []string {
	ids := make([]string, 0, len(p.workers))
	for _, w := range p.workers {
		ids = append(ids, w.ID)
	}
	return ids
}

func (p *WorkerPool) Start() {
	p.log.WithField("workers", len(p.workers)).Info("starting worker pool")

	for _, w := range p.workers {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			w.Run(p.ctx)
		}()
	}

	if p.heartbeat != nil {
		p.beat()
		p.wg.Add(1)
		go p.heartbeats()
	}
}

func (p *WorkerPool) heartbeats() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.beat()
		case <-p.ctx.Done():
			return
		}
	}
}

func (p *WorkerPool) beat() {
	for _, id := range p.IDs() {
		if err := p.heartbeat.Beat(p.ctx, id, p.cfg.HeartbeatTTL); err != nil && p.ctx.Err() == nil {
			p.log.WithError(err).WithField("worker_id", id).Warn("heartbeat failed")
		}
	}
}

// Stop cancels every worker and waits for in-flight jobs to be finalized.
func (p *WorkerPool) Stop() {
	p.cancel()
	p.wg.Wait()
	p.log.Info("worker pool stopped")
}
