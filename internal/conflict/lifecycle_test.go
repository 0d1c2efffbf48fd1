package conflict

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"custody-schedule-backend/internal/model"
	"custody-schedule-backend/internal/store"
)

// seedConflict creates two overlapping activities for subject and returns
// the detected record.
func (f *fixture) seedConflict(t *testing.T, subject int64) model.Conflict {
	t.Helper()
	f.add(t, model.Activity{SubjectID: subject, StartsAt: hm(10, 0), EndsAt: hm(11, 0)})
	b := f.add(t, model.Activity{SubjectID: subject, StartsAt: hm(10, 30), EndsAt: hm(11, 30)})
	conflicts, err := f.detector.DetectConflicts(context.Background(), b)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	return conflicts[0]
}

func TestResolve_ThenIgnoreFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.seedConflict(t, 42)

	resolved, err := f.manager.Resolve(ctx, c.ID, 9, "split into two rooms")
	require.NoError(t, err)
	assert.Equal(t, model.ConflictResolved, resolved.Status)
	require.NotNil(t, resolved.ResolvedBy)
	assert.Equal(t, int64(9), *resolved.ResolvedBy)
	assert.NotNil(t, resolved.ResolvedAt)
	assert.Equal(t, "split into two rooms", resolved.ResolutionNotes)

	_, err = f.manager.Ignore(ctx, c.ID, 9, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	after, err := f.store.GetConflict(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ConflictResolved, after.Status)
	assert.Equal(t, "split into two rooms", after.ResolutionNotes)
}

func TestAcknowledge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.seedConflict(t, 42)

	fixed := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	f.manager.now = func() time.Time { return fixed }

	acked, err := f.manager.Acknowledge(ctx, c.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, model.ConflictAcknowledged, acked.Status)
	require.NotNil(t, acked.AcknowledgedBy)
	assert.Equal(t, int64(3), *acked.AcknowledgedBy)
	require.NotNil(t, acked.AcknowledgedAt)
	assert.True(t, fixed.Equal(*acked.AcknowledgedAt))

	// A second acknowledgement keeps the first actor.
	again, err := f.manager.Acknowledge(ctx, c.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, model.ConflictAcknowledged, again.Status)
	assert.Equal(t, int64(3), *again.AcknowledgedBy)

	resolved, err := f.manager.Resolve(ctx, c.ID, 4, "")
	require.NoError(t, err)
	assert.Equal(t, model.ConflictResolved, resolved.Status)

	_, err = f.manager.Acknowledge(ctx, c.ID, 3)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestIgnore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.seedConflict(t, 42)

	ignored, err := f.manager.Ignore(ctx, c.ID, 5, "court confirmed both")
	require.NoError(t, err)
	assert.Equal(t, model.ConflictIgnored, ignored.Status)
	assert.Equal(t, "court confirmed both", ignored.ResolutionNotes)
	require.NotNil(t, ignored.ResolvedBy)
	assert.Equal(t, int64(5), *ignored.ResolvedBy)

	_, err = f.manager.Resolve(ctx, c.ID, 5, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = f.manager.Ignore(ctx, c.ID, 5, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTransition_UnknownAndRetired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.manager.Acknowledge(ctx, 999, 1)
	assert.ErrorIs(t, err, store.ErrNotFound)

	c := f.seedConflict(t, 42)
	require.NoError(t, f.store.RetireConflicts(ctx, []int64{c.ID}, time.Now()))

	_, err = f.manager.Resolve(ctx, c.ID, 1, "")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestListUnresolved_Ordering(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	at := func(h int) { f.detector.now = func() time.Time { return hm(h, 0) } }

	// Officer conflict (medium), detected early.
	at(8)
	f.add(t, model.Activity{SubjectID: 1, Officer: "Officer Reyes", StartsAt: hm(9, 0), EndsAt: hm(10, 0)})
	o := f.add(t, model.Activity{SubjectID: 2, Officer: "Officer Reyes", StartsAt: hm(9, 0), EndsAt: hm(10, 0)})
	_, err := f.detector.DetectConflicts(ctx, o)
	require.NoError(t, err)

	// Subject conflict (critical), detected before the second one.
	at(9)
	older := f.seedConflict(t, 42)

	// Another critical, detected later.
	at(10)
	newer := f.seedConflict(t, 43)

	// Resolved records drop out of the unresolved queue.
	at(11)
	closed := f.seedConflict(t, 44)
	_, err = f.manager.Resolve(ctx, closed.ID, 1, "")
	require.NoError(t, err)

	views, err := f.manager.ListUnresolved(ctx, store.ConflictFilter{Group: store.GroupAll})
	require.NoError(t, err)
	require.Len(t, views, 3)
	assert.Equal(t, newer.ID, views[0].ID)
	assert.Equal(t, older.ID, views[1].ID)
	assert.Equal(t, model.ConflictOfficer, views[2].Type)

	for _, v := range views {
		assert.False(t, v.Stale)
		require.NotNil(t, v.ActivityA)
		require.NotNil(t, v.ActivityB)
		assert.Equal(t, v.ActivityAID, v.ActivityA.ID)
		assert.Equal(t, v.ActivityBID, v.ActivityB.ID)
	}

	all, err := f.manager.List(ctx, store.ConflictFilter{Group: store.GroupAll})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	critical, err := f.manager.List(ctx, store.ConflictFilter{Group: store.GroupUnresolved, Severity: model.SeverityCritical})
	require.NoError(t, err)
	assert.Len(t, critical, 2)

	page, err := f.manager.ListUnresolved(ctx, store.ConflictFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, older.ID, page[0].ID)
}

func TestList_MarksStaleViews(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.seedConflict(t, 42)

	require.NoError(t, f.store.DeleteActivity(ctx, c.ActivityAID))

	views, err := f.manager.ListUnresolved(ctx, store.ConflictFilter{})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.True(t, views[0].Stale)
	assert.Nil(t, views[0].ActivityA)
	require.NotNil(t, views[0].ActivityB)
	assert.Equal(t, c.ActivityBID, views[0].ActivityB.ID)
}
