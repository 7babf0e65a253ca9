// Package scheduler drives the period reset on a cron cadence. The actual
// roll lives in the repository; this only decides when to run it and logs
// the outcome. One pool failing never aborts the rest of a pass.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"quotaledger/internal/service"
)

type ResetScheduler struct {
	svc  service.Engine
	cron *cron.Cron
	spec string
}

// New builds a scheduler with the given cron spec (e.g. "@hourly" or
// "17 * * * *"). The spec is validated at Start.
func New(svc service.Engine, spec string) *ResetScheduler {
	return &ResetScheduler{
		svc:  svc,
		cron: cron.New(),
		spec: spec,
	}
}

// Start registers the job and blocks until ctx is cancelled.
func (s *ResetScheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.runOnce(ctx)
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	slog.Info("Period reset scheduler is running", "spec", s.spec)

	<-ctx.Done()

	stopCtx := s.cron.Stop()
	// Let an in-flight pass finish before reporting shutdown.
	select {
	case <-stopCtx.Done():
	case <-time.After(30 * time.Second):
		slog.Warn("scheduler: shutdown timed out waiting for in-flight reset pass")
	}
	return nil
}

func (s *ResetScheduler) Stop(ctx context.Context) error {
	s.cron.Stop()
	return nil
}

func (s *ResetScheduler) runOnce(ctx context.Context) {
	summary, err := s.svc.ResetDuePools(ctx)
	if err != nil {
		slog.Error("scheduler: reset pass failed", "error", err)
		return
	}
	slog.Info("scheduler: reset pass finished",
		"run_id", summary.RunID,
		"scanned", summary.Scanned,
		"reset", summary.Reset,
		"failed", summary.Failed,
	)
}
