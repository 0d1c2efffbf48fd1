package availability_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"custody-schedule-backend/internal/availability"
	"custody-schedule-backend/internal/capacity"
	"custody-schedule-backend/internal/dbtest"
	"custody-schedule-backend/internal/interval"
	"custody-schedule-backend/internal/model"
	"custody-schedule-backend/internal/store"
)

var day = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func hm(h, m int) time.Time {
	return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func span(h1, m1, h2, m2 int) interval.Interval {
	return interval.Interval{Start: hm(h1, m1), End: hm(h2, m2)}
}

func int64p(v int64) *int64 { return &v }

func TestOracle_IsAvailable(t *testing.T) {
	gormDB := dbtest.Open(t)
	s := store.NewGormStore(gormDB)
	ctx := context.Background()

	existing := model.Activity{
		Type: "hearing", SubjectID: 42, FacilityID: int64p(7), Officer: "Officer Reyes",
		StartsAt: hm(9, 0), EndsAt: hm(10, 0), Status: model.ActivityScheduled,
	}
	require.NoError(t, s.CreateActivity(ctx, &existing))
	cancelled := model.Activity{
		Type: "visit", SubjectID: 42, StartsAt: hm(14, 0), EndsAt: hm(15, 0), Status: model.ActivityCancelled,
	}
	require.NoError(t, s.CreateActivity(ctx, &cancelled))

	oracle := availability.NewOracle(s, s.Capacity())

	testCases := []struct {
		name      string
		key       model.DimensionKey
		iv        interval.Interval
		excludeID int64
		expected  bool
	}{
		{"Subject busy in overlapping window", model.SubjectKey(42), span(9, 30, 10, 30), 0, false},
		{"Subject free when touching at end", model.SubjectKey(42), span(10, 0, 11, 0), 0, true},
		{"Subject free when touching at start", model.SubjectKey(42), span(8, 0, 9, 0), 0, true},
		{"Other subject free", model.SubjectKey(43), span(9, 0, 10, 0), 0, true},
		{"Facility busy", model.FacilityKey(7), span(9, 59, 10, 30), 0, false},
		{"Officer busy", model.OfficerKey("Officer Reyes"), span(8, 0, 12, 0), 0, false},
		{"Officer labels are case sensitive", model.OfficerKey("officer reyes"), span(8, 0, 12, 0), 0, true},
		{"Cancelled activity does not block", model.SubjectKey(42), span(14, 0, 15, 0), 0, true},
		{"Excluded activity does not block itself", model.SubjectKey(42), span(9, 0, 10, 0), existing.ID, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := oracle.IsAvailable(ctx, tc.key, tc.iv, tc.excludeID)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, ok)
		})
	}
}

func TestOracle_IsAvailable_InvalidInterval(t *testing.T) {
	s := store.NewGormStore(dbtest.Open(t))
	oracle := availability.NewOracle(s, nil)

	_, err := oracle.IsAvailable(context.Background(), model.SubjectKey(1), span(10, 0, 10, 0), 0)
	assert.ErrorIs(t, err, interval.ErrInvalidInterval)
}

func TestOracle_IsAvailable_CapacityVeto(t *testing.T) {
	gormDB := dbtest.Open(t)
	s := store.NewGormStore(gormDB)
	ctx := context.Background()
	dbtest.Facility(t, gormDB, 7, 20)

	gate := capacity.NewGormGate(gormDB)
	require.NoError(t, gate.UpsertSlots(ctx, []model.CapacitySlot{
		{SlotKey: "visit-am", FacilityID: int64p(7), StartsAt: hm(9, 0), EndsAt: hm(12, 0), MaxCapacity: 1},
	}))
	oracle := availability.NewOracle(s, gate)

	ok, err := oracle.IsAvailable(ctx, model.FacilityKey(7), span(10, 0, 11, 0), 0)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, gate.Reserve(ctx, "visit-am"))

	ok, err = oracle.IsAvailable(ctx, model.FacilityKey(7), span(10, 0, 11, 0), 0)
	require.NoError(t, err)
	assert.False(t, ok, "full slot vetoes the facility")

	ok, err = oracle.IsAvailable(ctx, model.FacilityKey(7), span(12, 0, 13, 0), 0)
	require.NoError(t, err)
	assert.True(t, ok, "window after the slot is unaffected")

	// Subjects are not gated by facility slots.
	ok, err = oracle.IsAvailable(ctx, model.SubjectKey(1), span(10, 0, 11, 0), 0)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestOracle_IsAvailable_ExcludedActivityKeepsItsSlot(t *testing.T) {
	gormDB := dbtest.Open(t)
	s := store.NewGormStore(gormDB)
	ctx := context.Background()

	gate := capacity.NewGormGate(gormDB)
	require.NoError(t, gate.UpsertSlots(ctx, []model.CapacitySlot{
		{SlotKey: "visit-am", FacilityID: int64p(7), StartsAt: hm(9, 0), EndsAt: hm(12, 0), MaxCapacity: 1},
	}))
	slot := "visit-am"
	holder := model.Activity{
		Type: "visit", SubjectID: 1, FacilityID: int64p(7), SlotKey: &slot,
		StartsAt: hm(10, 0), EndsAt: hm(11, 0), Status: model.ActivityScheduled,
	}
	require.NoError(t, s.CreateActivity(ctx, &holder))
	require.NoError(t, gate.Reserve(ctx, slot))
	oracle := availability.NewOracle(s, gate)

	ok, err := oracle.IsAvailable(ctx, model.FacilityKey(7), span(10, 15, 10, 45), holder.ID)
	require.NoError(t, err)
	assert.True(t, ok, "moving the holder within its own slot is free")

	ok, err = oracle.IsAvailable(ctx, model.FacilityKey(7), span(11, 15, 11, 45), 0)
	require.NoError(t, err)
	assert.False(t, ok, "anyone else still sees the slot full")

	ok, err = oracle.IsAvailable(ctx, model.FacilityKey(7), span(11, 15, 11, 45), 999)
	require.NoError(t, err)
	assert.False(t, ok, "excluding a missing activity frees nothing")

	// A cancelled holder has already given its unit back.
	holder.Status = model.ActivityCancelled
	require.NoError(t, s.SaveActivity(ctx, &holder))
	ok, err = oracle.IsAvailable(ctx, model.FacilityKey(7), span(11, 15, 11, 45), holder.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOracle_Overlapping(t *testing.T) {
	gormDB := dbtest.Open(t)
	s := store.NewGormStore(gormDB)
	ctx := context.Background()

	for _, iv := range []interval.Interval{span(8, 0, 9, 0), span(9, 30, 10, 30), span(10, 0, 12, 0), span(12, 0, 13, 0)} {
		a := model.Activity{Type: "visit", SubjectID: 5, Resource: "van-3", StartsAt: iv.Start, EndsAt: iv.End, Status: model.ActivityConfirmed}
		require.NoError(t, s.CreateActivity(ctx, &a))
	}

	oracle := availability.NewOracle(s, nil)
	got, err := oracle.Overlapping(ctx, model.ResourceKey("van-3"), span(9, 0, 12, 0), 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].StartsAt.Equal(hm(9, 30)))
	assert.True(t, got[1].StartsAt.Equal(hm(10, 0)))
}
