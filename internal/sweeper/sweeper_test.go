package sweeper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"testing"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"custody-schedule-backend/config"
	"custody-schedule-backend/internal/dbtest"
	"custody-schedule-backend/internal/model"
	"custody-schedule-backend/internal/scheduling"
	"custody-schedule-backend/internal/store"
)

// mockTarget is a mock implementation of the Redetector interface.
type mockTarget struct {
	OpenFunc     func(ctx context.Context) ([]int64, error)
	RedetectFunc func(ctx context.Context, id int64) (scheduling.Result, error)
}

func (m *mockTarget) OpenConflictActivities(ctx context.Context) ([]int64, error) {
	return m.OpenFunc(ctx)
}

func (m *mockTarget) Redetect(ctx context.Context, id, actorID int64) (scheduling.Result, error) {
	return m.RedetectFunc(ctx, id)
}

type countingCache struct {
	flushes int
}

func (c *countingCache) Flush() { c.flushes++ }

func quietLogger() *charmlog.Logger {
	return charmlog.New(io.Discard)
}

func TestSweepOnce_Report(t *testing.T) {
	target := &mockTarget{
		OpenFunc: func(ctx context.Context) ([]int64, error) { return []int64{1, 2, 3, 4}, nil },
		RedetectFunc: func(ctx context.Context, id int64) (scheduling.Result, error) {
			switch id {
			case 1:
				return scheduling.Result{Retired: []int64{10, 11}}, nil
			case 2:
				return scheduling.Result{Created: []int64{12}}, nil
			case 3:
				return scheduling.Result{}, fmt.Errorf("activity 3: %w", store.ErrNotFound)
			default:
				return scheduling.Result{}, errors.New("database is locked")
			}
		},
	}
	s := NewService(config.SweeperConfig{Enabled: true, Interval: time.Hour}, target, quietLogger(), nil)

	report := s.SweepOnce(context.Background())
	assert.Equal(t, 4, report.Checked)
	assert.Equal(t, 2, report.Retired)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, []int64{3}, report.Orphans)
}

func TestSweepOnce_ListError(t *testing.T) {
	target := &mockTarget{
		OpenFunc: func(ctx context.Context) ([]int64, error) { return nil, errors.New("boom") },
		RedetectFunc: func(ctx context.Context, id int64) (scheduling.Result, error) {
			t.Fatal("redetect must not run")
			return scheduling.Result{}, nil
		},
	}
	s := NewService(config.SweeperConfig{Enabled: true, Interval: time.Hour}, target, quietLogger(), nil)
	assert.Equal(t, Report{}, s.SweepOnce(context.Background()))
}

func TestRun_DisabledReturns(t *testing.T) {
	s := NewService(config.SweeperConfig{Enabled: false}, &mockTarget{}, quietLogger(), nil)

	done := make(chan struct{})
	go func() {
		s.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disabled sweeper kept running")
	}
}

func TestRun_SweepsOnInterval(t *testing.T) {
	var sweeps atomic.Int32
	target := &mockTarget{
		OpenFunc: func(ctx context.Context) ([]int64, error) {
			sweeps.Add(1)
			return nil, nil
		},
	}
	s := NewService(config.SweeperConfig{Enabled: true, Interval: 10 * time.Millisecond}, target, quietLogger(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return sweeps.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop on cancel")
	}
}

func TestSweepOnce_RetiresStaleConflicts(t *testing.T) {
	gormDB := dbtest.Open(t)
	s := store.NewGormStore(gormDB)
	svc := scheduling.NewService(s, nil, quietLogger(), nil)
	ctx := context.Background()
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	_, err := svc.CreateActivity(ctx, scheduling.ActivityInput{Type: "visit", SubjectID: 42, StartsAt: day.Add(10 * time.Hour), EndsAt: day.Add(11 * time.Hour)}, 1)
	require.NoError(t, err)
	second, err := svc.CreateActivity(ctx, scheduling.ActivityInput{Type: "visit", SubjectID: 42, StartsAt: day.Add(10 * time.Hour), EndsAt: day.Add(11 * time.Hour)}, 1)
	require.NoError(t, err)
	require.Len(t, second.Conflicts, 1)

	// A write that bypasses the service moves the second visit away.
	require.NoError(t, gormDB.Model(&model.Activity{}).Where("id = ?", second.Activity.ID).
		Updates(map[string]any{"starts_at": day.Add(13 * time.Hour), "ends_at": day.Add(14 * time.Hour)}).Error)

	report := NewService(config.SweeperConfig{Enabled: true, Interval: time.Hour}, svc, quietLogger(), nil).SweepOnce(ctx)
	assert.Equal(t, 1, report.Retired)
	assert.Empty(t, report.Orphans)

	open, err := svc.OpenConflictActivities(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestSweepOnce_FlushesCacheOnChange(t *testing.T) {
	retired := []int64{10}
	target := &mockTarget{
		OpenFunc: func(ctx context.Context) ([]int64, error) { return []int64{1}, nil },
		RedetectFunc: func(ctx context.Context, id int64) (scheduling.Result, error) {
			return scheduling.Result{Retired: retired}, nil
		},
	}
	cache := &countingCache{}
	s := NewService(config.SweeperConfig{Enabled: true, Interval: time.Hour}, target, quietLogger(), nil)
	s.SetInvalidator(cache)

	s.SweepOnce(context.Background())
	assert.Equal(t, 1, cache.flushes)

	// A sweep that changes nothing keeps cached reads.
	retired = nil
	s.SweepOnce(context.Background())
	assert.Equal(t, 1, cache.flushes)
}
