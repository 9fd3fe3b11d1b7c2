// Package scheduler runs the reconciliation pipeline for every site on a
// cron schedule and records the results in the history store.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/rxops/orderlens/internal/report"
)

// Runner is the slice of the report pipeline the scheduler drives.
type Runner interface {
	Sites(ctx context.Context) ([]string, error)
	Run(ctx context.Context, site string) (*report.Result, error)
}

// Recorder persists pipeline results.
type Recorder interface {
	SaveResult(res *report.Result, triggeredBy string) (int64, error)
}

// Scheduler triggers scheduled reconciliation runs.
type Scheduler struct {
	pipeline Runner
	store    Recorder
	spec     string
	timeout  time.Duration
	cron     *cron.Cron
}

// New builds a scheduler; spec is a standard cron expression.
func New(pipeline Runner, store Recorder, spec string) *Scheduler {
	return &Scheduler{
		pipeline: pipeline,
		store:    store,
		spec:     spec,
		timeout:  10 * time.Minute,
		cron:     cron.New(),
	}
}

// Start registers the cron entry and begins scheduling. A scheduler built
// with an empty spec stays idle.
func (s *Scheduler) Start() error {
	if s.spec == "" {
		log.Debug().Msg("Scheduler not started (no cron spec configured)")
		return nil
	}
	if _, err := s.cron.AddFunc(s.spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		s.RunAll(ctx)
	}); err != nil {
		return fmt.Errorf("invalid cron spec %q: %w", s.spec, err)
	}
	s.cron.Start()
	log.Info().Str("spec", s.spec).Msg("Scheduler started")
	return nil
}

// Stop halts scheduling and waits for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// RunAll reconciles every site once, recording each result. A site that
// fails is logged and skipped; it never stops the sweep.
func (s *Scheduler) RunAll(ctx context.Context) {
	sites, err := s.pipeline.Sites(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Scheduled sweep failed to list sites")
		return
	}

	for _, site := range sites {
		res, err := s.pipeline.Run(ctx, site)
		if err != nil {
			var serr *report.InvalidOrderStatusError
			if errors.As(err, &serr) {
				log.Warn().Str("site", site).Ints64("statuses", serr.Statuses).Msg("Scheduled run blocked by order status")
			} else {
				log.Error().Err(err).Str("site", site).Msg("Scheduled run failed")
			}
			continue
		}
		if _, err := s.store.SaveResult(res, "scheduled"); err != nil {
			log.Error().Err(err).Str("site", site).Msg("Failed to record scheduled run")
		}
	}
}
