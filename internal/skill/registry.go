package skill

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/joshu-sajeev/wastewise/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const configLoadTimeout = 10 * time.Second

// ConfigStore reads the active configuration row for a skill.
type ConfigStore interface {
	GetActive(ctx context.Context, name string) (*models.SkillConfig, error)
}

// Registry resolves skills by name and caches their validated
// configuration. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	skills  map[Name]Skill
	configs map[Name]Config

	store  ConfigStore
	loads  singleflight.Group
	notify func(Name)
	log    logrus.FieldLogger
}

func NewRegistry(store ConfigStore, log logrus.FieldLogger) *Registry {
	return &Registry{
		skills:  make(map[Name]Skill),
		configs: make(map[Name]Config),
		store:   store,
		log:     log.WithField("component", "skill-registry"),
	}
}

// Register adds s, replacing any skill already registered under its name.
func (r *Registry) Register(s Skill) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.skills[s.Name()]; ok {
		r.log.WithFields(logrus.Fields{
			"skill":      s.Name(),
			"oldVersion": old.Version(),
			"newVersion": s.Version(),
		}).Warn("overwriting registered skill")
	}
	r.skills[s.Name()] = s
}

func (r *Registry) Get(name Name) (Skill, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.skills[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSkillNotFound, name)
	}
	return s, nil
}

// names lists registered skills in name order.
func (r *Registry) names() []Name {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.skills))
}

// RequireAll fails if any of names is not registered.
func (r *Registry) RequireAll(names ...Name) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var missing []string
	for _, n := range names {
		if _, ok := r.skills[n]; !ok {
			missing = append(missing, string(n))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrSkillNotFound, strings.Join(missing, ", "))
	}
	return nil
}

// GetConfig returns the validated configuration for name. Concurrent
// callers share one store read. A configuration that drifts from the
// canonical values is reloaded once before the failure is returned.
func (r *Registry) GetConfig(ctx context.Context, name Name) (Config, error) {
	r.mu.RLock()
	cfg, ok := r.configs[name]
	r.mu.RUnlock()
	if ok {
		return cfg, nil
	}

	// The load is shared by every waiting caller and runs detached from
	// any one caller's context.
	ch := r.loads.DoChan(string(name), func() (any, error) {
		r.mu.RLock()
		cached, ok := r.configs[name]
		r.mu.RUnlock()
		if ok {
			return cached, nil
		}

		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), configLoadTimeout)
		defer cancel()

		cfg, err := r.load(lctx, name)
		if err != nil && errors.Is(err, errDrift) {
			r.log.WithField("skill", name).WithError(err).Warn("skill configuration drifted, reloading")
			cfg, err = r.load(lctx, name)
		}
		if err != nil {
			return Config{}, err
		}

		r.mu.Lock()
		r.configs[name] = cfg
		r.mu.Unlock()
		return cfg, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return Config{}, res.Err
		}
		return res.Val.(Config), nil
	case <-ctx.Done():
		return Config{}, ctx.Err()
	}
}

var errDrift = errors.New("configuration drift")

func (r *Registry) load(ctx context.Context, name Name) (Config, error) {
	rec, err := r.store.GetActive(ctx, string(name))
	if err != nil {
		if errors.Is(err, ErrConfigNotFound) {
			return Config{}, ConfigurationErr("CONFIG_NOT_FOUND", err, "no configuration for skill %s", name)
		}
		return Config{}, InfrastructureErr("CONFIG_STORE_UNAVAILABLE", err, "load configuration for skill %s", name)
	}

	cfg, err := ParseRecord(rec)
	if err != nil {
		return Config{}, ConfigurationErr("CONFIG_INVALID", err, "configuration for skill %s is malformed", name)
	}

	if err := Validate(cfg); err != nil {
		return Config{}, ConfigurationErr("CONFIG_MISMATCH", fmt.Errorf("%w: %w", errDrift, err), "configuration for skill %s failed validation", name)
	}
	return cfg, nil
}

// OnInvalidate sets a hook run after Invalidate, used to broadcast the
// invalidation to other processes.
func (r *Registry) OnInvalidate(fn func(Name)) {
	r.mu.Lock()
	r.notify = fn
	r.mu.Unlock()
}

// Invalidate drops the cached configuration for name and runs the
// invalidation hook.
func (r *Registry) Invalidate(name Name) {
	r.Forget(name)

	r.mu.RLock()
	notify := r.notify
	r.mu.RUnlock()
	if notify != nil {
		notify(name)
	}
}

// Forget drops the cached configuration for name without running the hook.
func (r *Registry) Forget(name Name) {
	r.mu.Lock()
	delete(r.configs, name)
	r.mu.Unlock()
	r.loads.Forget(string(name))
}

// InvalidateAll drops every cached configuration and any load in flight,
// so the next GetConfig for each skill reads the store again.
func (r *Registry) InvalidateAll() {
	r.mu.Lock()
	names := slices.AppendSeq(slices.Collect(maps.Keys(r.configs)), maps.Keys(r.skills))
	clear(r.configs)
	r.mu.Unlock()

	for _, n := range names {
		r.loads.Forget(string(n))
	}
}
