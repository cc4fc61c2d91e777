package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/samirrijal/casaview/internal/core/ports"
)

type syncer interface {
	Sync(ctx context.Context) (*ports.SyncEvent, error)
}

// scheduler runs a mirror pass immediately and then on every tick. Passes
// never overlap.
type scheduler struct {
	cron     *gocron.Scheduler
	svc      syncer
	interval time.Duration
	timeout  time.Duration
}

func newScheduler(svc syncer, interval, timeout time.Duration) *scheduler {
	return &scheduler{
		cron:     gocron.NewScheduler(time.UTC),
		svc:      svc,
		interval: interval,
		timeout:  timeout,
	}
}

func (s *scheduler) Start() error {
	_, err := s.cron.Every(s.interval).SingletonMode().Do(s.run)
	if err != nil {
		return err
	}
	s.cron.StartAsync()
	slog.Info("sync scheduled", "interval", s.interval.String())
	return nil
}

func (s *scheduler) Stop() {
	s.cron.Stop()
}

func (s *scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	if _, err := s.svc.Sync(ctx); err != nil {
		slog.Error("sync failed", "error", err, "elapsed", time.Since(start).String())
	}
}
