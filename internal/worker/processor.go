package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/joshu-sajeev/wastewise/internal/config"
	"github.com/joshu-sajeev/wastewise/internal/logger"
	"github.com/joshu-sajeev/wastewise/internal/models"
	"github.com/joshu-sajeev/wastewise/internal/skill"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// Failure codes recorded by the processor itself.
const (
	CodeJobTimeout     = "JOB_TIMEOUT"
	CodeSkillPanic     = "SKILL_PANIC"
	CodeInfrastructure = "INFRASTRUCTURE_ERROR"
	CodeResultEncoding = "RESULT_ENCODING_FAILED"
)

const (
	configCodePrefix = "CONFIG_"
	finalizeTimeout  = 10 * time.Second
)

// JobQueue is the part of the job store a worker drives.
type JobQueue interface {
	ClaimNext(ctx context.Context, workerID string) (*models.Job, error)
	UpdateProgress(ctx context.Context, id string, p models.Progress) error
	Complete(ctx context.Context, id string, result datatypes.JSON) error
	Fail(ctx context.Context, id, message, code string) error
	FailTerminal(ctx context.Context, id, message, code string) error
	IsCancelRequested(ctx context.Context, id string) (bool, error)
	MarkCancelled(ctx context.Context, id string) error
	Release(ctx context.Context, id string) error
}

// SkillSource resolves skills and their validated configuration.
type SkillSource interface {
	Get(name skill.Name) (skill.Skill, error)
	GetConfig(ctx context.Context, name skill.Name) (skill.Config, error)
	Invalidate(name skill.Name)
}

// ResultDocument is stored as the result data of a completed job.
type ResultDocument struct {
	JobType config.JobType     `json:"jobType"`
	Steps   map[skill.Name]any `json:"steps"`
	Summary map[string]any     `json:"summary,omitempty"`
}

// stepError ties a failure to the pipeline step that raised it.
type stepError struct {
	step skill.Name
	err  error
}

func (e *stepError) Error() string { return fmt.Sprintf("step %s: %v", e.step, e.err) }
func (e *stepError) Unwrap() error { return e.err }

type Processor struct {
	queue   JobQueue
	skills  SkillSource
	builder *skill.Builder
	timeout time.Duration
	log     logrus.FieldLogger
}

func NewProcessor(queue JobQueue, skills SkillSource, builder *skill.Builder, timeout time.Duration, log logrus.FieldLogger) *Processor {
	return &Processor{
		queue:   queue,
		skills:  skills,
		builder: builder,
		timeout: timeout,
		log:     logger.WithComponent(log, "processor"),
	}
}

// Process runs the pipeline of a claimed job and records its outcome. It
// always leaves the job finalized, even when ctx is cancelled mid-run.
func (p *Processor) Process(ctx context.Context, job *models.Job) {
	log := logger.WithWorker(logger.WithJob(p.log, job.ID, string(job.JobType)), job.WorkerID)
	log.WithField("attempt", job.RetryCount+1).Info("processing job")

	jobCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	doc, err := p.run(jobCtx, job, log)

	fctx, fcancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer fcancel()
	p.finalize(fctx, ctx, jobCtx, job, doc, err, log.WithField("elapsed", time.Since(start).Round(time.Millisecond)))
}

func (p *Processor) run(ctx context.Context, job *models.Job, log logrus.FieldLogger) (*ResultDocument, error) {
	steps, err := skill.PipelineFor(job.JobType)
	if err != nil {
		return nil, err
	}

	base, err := p.builder.Load(ctx, job)
	if err != nil {
		return nil, err
	}

	doc := &ResultDocument{JobType: job.JobType, Steps: make(map[skill.Name]any, len(steps))}
	previous := make(map[skill.Name]skill.Result, len(steps))
	percent := 0

	for i, step := range steps {
		if err := p.checkCancel(ctx, job.ID, string(step.Skill)); err != nil {
			return nil, err
		}

		s, err := p.skills.Get(step.Skill)
		if err != nil {
			return nil, &stepError{step.Skill, skill.ConfigurationErr("SKILL_NOT_REGISTERED", err, "resolve skill")}
		}
		cfg, err := p.skills.GetConfig(ctx, step.Skill)
		if err != nil {
			return nil, &stepError{step.Skill, err}
		}

		p.reportProgress(ctx, job.ID, models.Progress{
			Percent:        percent,
			CurrentStep:    step.Label,
			StepsCompleted: i,
			TotalSteps:     len(steps),
		}, log)

		res, err := p.execute(ctx, s, p.builder.ForStep(base, cfg, previous), log)
		if err != nil {
			return nil, &stepError{step.Skill, err}
		}
		log.WithFields(logrus.Fields{"skill": step.Skill, "version": s.Version()}).Debug("step finished")

		previous[step.Skill] = res
		doc.Steps[step.Skill] = res.Data
		doc.Summary = res.Summary
		percent = step.Percent

		p.reportProgress(ctx, job.ID, models.Progress{
			Percent:        percent,
			CurrentStep:    step.Label,
			StepsCompleted: i + 1,
			TotalSteps:     len(steps),
		}, log)
	}

	// a cancel requested during the last step still discards its output
	if err := p.checkCancel(ctx, job.ID, "completion"); err != nil {
		return nil, err
	}
	return doc, nil
}

func (p *Processor) checkCancel(ctx context.Context, jobID, boundary string) error {
	requested, err := p.queue.IsCancelRequested(ctx, jobID)
	if err != nil {
		return skill.InfrastructureErr("STORE_UNAVAILABLE", err, "check cancel request")
	}
	if requested {
		return skill.CancellationErr("cancel requested before %s", boundary)
	}
	return nil
}

// execute runs one skill, converting a panic into an infrastructure error.
// A skill that ignores ctx is abandoned once ctx ends.
func (p *Processor) execute(ctx context.Context, s skill.Skill, sc *skill.Context, log logrus.FieldLogger) (skill.Result, error) {
	type outcome struct {
		res skill.Result
		err error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.WithFields(logrus.Fields{
					"skill": s.Name(),
					"panic": r,
					"stack": string(debug.Stack()),
				}).Error("skill panicked")
				done <- outcome{err: skill.InfrastructureErr(CodeSkillPanic, fmt.Errorf("%v", r), "skill %s panicked", s.Name())}
			}
		}()
		res, err := s.Execute(ctx, sc)
		done <- outcome{res: res, err: err}
	}()

	select {
	case o := <-done:
		return o.res, o.err
	case <-ctx.Done():
		return skill.Result{}, ctx.Err()
	}
}

func (p *Processor) reportProgress(ctx context.Context, jobID string, progress models.Progress, log logrus.FieldLogger) {
	if err := p.queue.UpdateProgress(ctx, jobID, progress); err != nil && ctx.Err() == nil {
		log.WithError(err).WithField("percent", progress.Percent).Warn("failed to record progress")
	}
}

// finalize records the outcome. parent is the worker context and jobCtx the
// per-job context derived from it; both tell a timeout from a shutdown.
func (p *Processor) finalize(ctx, parent, jobCtx context.Context, job *models.Job, doc *ResultDocument, runErr error, log logrus.FieldLogger) {
	if runErr == nil {
		raw, err := json.Marshal(doc)
		if err != nil {
			runErr = skill.InfrastructureErr(CodeResultEncoding, err, "encode result document")
		} else {
			if err := p.queue.Complete(ctx, job.ID, datatypes.JSON(raw)); err != nil {
				log.WithError(err).Error("failed to complete job")
				return
			}
			log.Info("job completed")
			return
		}
	}

	message := runErr.Error()
	var err error

	switch {
	case skill.IsCancellation(runErr):
		err = p.queue.MarkCancelled(ctx, job.ID)
		log.Info("job cancelled")

	case isContextErr(runErr) && parent.Err() != nil:
		err = p.queue.Release(ctx, job.ID)
		log.WithField("interrupted", message).Warn("job released after worker shutdown")

	case isContextErr(runErr) && errors.Is(jobCtx.Err(), context.DeadlineExceeded):
		err = p.queue.Fail(ctx, job.ID, fmt.Sprintf("job exceeded timeout of %s: %s", p.timeout, message), CodeJobTimeout)
		log.WithField("timeout", p.timeout).Warn("job timed out, scheduled for retry")

	case skill.IsValidation(runErr):
		code := skill.CodeOf(runErr, "VALIDATION_ERROR")
		err = p.queue.FailTerminal(ctx, job.ID, message, code)
		log.WithError(runErr).WithField("code", code).Warn("job failed validation")

	case skill.IsConfiguration(runErr):
		var se *stepError
		if errors.As(runErr, &se) {
			p.skills.Invalidate(se.step)
		}
		code := skill.CodeOf(runErr, "ERROR")
		if !strings.HasPrefix(code, configCodePrefix) {
			code = configCodePrefix + code
		}
		err = p.queue.FailTerminal(ctx, job.ID, message, code)
		log.WithError(runErr).WithField("code", code).Error("job failed on skill configuration")

	default:
		code := skill.CodeOf(runErr, CodeInfrastructure)
		err = p.queue.Fail(ctx, job.ID, message, code)
		log.WithError(runErr).WithField("code", code).Warn("job failed, retry policy applied")
	}

	if err != nil {
		log.WithError(err).Error("failed to finalize job")
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
