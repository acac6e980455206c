// Package fleet runs one monitor per rig and collects their failures.
package fleet

import (
	"context"
	"errors"
	"sync"

	"github.com/powerhive/rig-restarter/internal/logger"
	"github.com/powerhive/rig-restarter/internal/observability"
	"github.com/powerhive/rig-restarter/pkg/monitor"
	"github.com/powerhive/rig-restarter/pkg/rig"
)

// Runner is a long-running per-rig task.
type Runner interface {
	Run(ctx context.Context) error
}

// Factory builds the runner for one rig.
type Factory func(cfg rig.Config) Runner

// Reporter receives every rig failure.
type Reporter func(worker string, err error)

// Supervisor runs rigs as independent failure domains.
type Supervisor struct {
	factory Factory
	log     *logger.Logger
	report  Reporter
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithLogger sets the supervisor logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Supervisor) {
		s.log = l
	}
}

// WithReporter replaces the Sentry reporter.
func WithReporter(r Reporter) Option {
	return func(s *Supervisor) {
		s.report = r
	}
}

// NewSupervisor creates a supervisor.
func NewSupervisor(factory Factory, opts ...Option) *Supervisor {
	s := &Supervisor{
		factory: factory,
		log:     logger.Nop(),
		report:  captureRigError,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run starts one runner per rig and waits for all of them. A failing rig
// never stops its siblings. The result joins every rig failure; rigs that
// stop because ctx was cancelled do not count as failures.
func (s *Supervisor) Run(ctx context.Context, rigs []rig.Config) error {
	if len(rigs) == 0 {
		return rig.ErrNoRigs
	}

	s.log.Infof("Starting %d rig monitors", len(rigs))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, cfg := range rigs {
		wg.Add(1)
		go func(cfg rig.Config) {
			defer wg.Done()

			err := s.factory(cfg).Run(ctx)
			if err == nil || (ctx.Err() != nil && errors.Is(err, ctx.Err())) {
				s.log.Infof("Monitor for %s stopped", cfg.WorkerName)
				return
			}

			s.log.Errorf("Monitor for %s ended: %v", cfg.WorkerName, err)
			s.report(cfg.WorkerName, err)

			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}(cfg)
	}
	wg.Wait()

	return errors.Join(errs...)
}

func captureRigError(worker string, err error) {
	tags := map[string]string{"rig": worker}
	if kind, ok := monitor.KindOf(err); ok {
		tags["kind"] = kind.String()
	}
	observability.CaptureError(err, tags, nil)
}
