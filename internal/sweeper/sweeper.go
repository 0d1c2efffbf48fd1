// Package sweeper periodically re-runs conflict detection for every activity
// that still has unresolved conflicts, so records left stale by writes made
// outside the scheduling service are retired.
package sweeper

import (
	"context"
	"errors"
	"time"

	charmlog "github.com/charmbracelet/log"

	"custody-schedule-backend/config"
	"custody-schedule-backend/internal/metrics"
	"custody-schedule-backend/internal/scheduling"
	"custody-schedule-backend/internal/store"
)

// systemActor marks writes the sweeper makes on its own behalf.
const systemActor = 0

// Redetector is the part of the scheduling service the sweeper drives.
type Redetector interface {
	OpenConflictActivities(ctx context.Context) ([]int64, error)
	Redetect(ctx context.Context, activityID, actorID int64) (scheduling.Result, error)
}

// Report summarizes one sweep.
type Report struct {
	Checked int
	Created int
	Retired int
	Failed  int
	// Orphans are activity ids referenced by live conflicts that no longer exist.
	Orphans []int64
}

// Invalidator drops cached reads after the sweeper changed conflicts.
type Invalidator interface {
	Flush()
}

// Service runs the sweep loop.
type Service struct {
	cfg     config.SweeperConfig
	target  Redetector
	log     *charmlog.Logger
	metrics *metrics.Recorder
	cache   Invalidator
}

// NewService creates a sweeper.
func NewService(cfg config.SweeperConfig, target Redetector, logger *charmlog.Logger, rec *metrics.Recorder) *Service {
	return &Service{
		cfg:     cfg,
		target:  target,
		log:     logger.WithPrefix("sweeper"),
		metrics: rec,
	}
}

// SetInvalidator registers a cache to flush whenever a sweep creates or
// retires conflicts.
func (s *Service) SetInvalidator(inv Invalidator) {
	s.cache = inv
}

// Run sweeps immediately and then every configured interval until ctx is done.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		s.log.Info("sweeper is disabled, not starting")
		return
	}
	s.log.Info("starting sweeper", "interval", s.cfg.Interval)

	s.SweepOnce(ctx)

	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("sweeper shutting down")
			return
		case <-timer.C:
			s.SweepOnce(ctx)
			timer.Reset(s.cfg.Interval)
		}
	}
}

// SweepOnce re-detects every activity with open conflicts. One failing
// activity does not stop the sweep.
func (s *Service) SweepOnce(ctx context.Context) Report {
	var report Report

	ids, err := s.target.OpenConflictActivities(ctx)
	if err != nil {
		s.log.Error("failed to list activities with open conflicts", "err", err)
		s.metrics.Sweep(false)
		return report
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		report.Checked++
		res, err := s.target.Redetect(ctx, id, systemActor)
		switch {
		case errors.Is(err, store.ErrNotFound):
			report.Orphans = append(report.Orphans, id)
			continue
		case err != nil:
			report.Failed++
			s.log.Warn("redetect failed", "activity", id, "err", err)
			continue
		}
		report.Created += len(res.Created)
		report.Retired += len(res.Retired)
	}

	if len(report.Orphans) > 0 {
		s.log.Warn("conflicts reference missing activities", "activities", report.Orphans)
	}
	s.log.Info("sweep finished",
		"checked", report.Checked,
		"created", report.Created,
		"retired", report.Retired,
		"failed", report.Failed,
	)
	s.metrics.Sweep(report.Failed == 0)
	if s.cache != nil && report.Created+report.Retired > 0 {
		s.cache.Flush()
	}
	return report
}
