package availability

import (
	"context"
	"errors"
	"fmt"

	"custody-schedule-backend/internal/capacity"
	"custody-schedule-backend/internal/interval"
	"custody-schedule-backend/internal/model"
	"custody-schedule-backend/internal/store"
)

// CandidateFinder is the slice of the activity store the oracle reads.
type CandidateFinder interface {
	FindOverlappingCandidates(ctx context.Context, key model.DimensionKey, iv interval.Interval, excludeID int64) ([]model.Activity, error)
	GetActivity(ctx context.Context, id int64) (model.Activity, error)
}

// Oracle answers whether a dimension is free over an interval. Its answers are
// advisory: nothing is locked between the check and a later booking.
type Oracle struct {
	activities CandidateFinder
	gate       capacity.Gate
}

// NewOracle creates an oracle. gate may be nil when no capacity slots are in use.
func NewOracle(activities CandidateFinder, gate capacity.Gate) *Oracle {
	return &Oracle{activities: activities, gate: gate}
}

// Overlapping returns the non-cancelled activities on key that overlap iv,
// excluding excludeID (0 excludes nothing).
func (o *Oracle) Overlapping(ctx context.Context, key model.DimensionKey, iv interval.Interval, excludeID int64) ([]model.Activity, error) {
	candidates, err := o.activities.FindOverlappingCandidates(ctx, key, iv, excludeID)
	if err != nil {
		return nil, err
	}
	overlapping := candidates[:0]
	for _, c := range candidates {
		if c.ID == excludeID || !c.Status.Participates() {
			continue
		}
		if interval.Overlaps(c.StartsAt, c.EndsAt, iv.Start, iv.End) {
			overlapping = append(overlapping, c)
		}
	}
	return overlapping, nil
}

// IsAvailable reports whether key is free over iv. For facilities, every
// capacity slot overlapping iv must also have capacity left; the unit held by
// the excluded activity counts as free.
func (o *Oracle) IsAvailable(ctx context.Context, key model.DimensionKey, iv interval.Interval, excludeID int64) (bool, error) {
	if _, err := interval.New(iv.Start, iv.End); err != nil {
		return false, err
	}

	overlapping, err := o.Overlapping(ctx, key, iv, excludeID)
	if err != nil {
		return false, err
	}
	if len(overlapping) > 0 {
		return false, nil
	}

	if key.Kind != model.DimensionFacility || o.gate == nil {
		return true, nil
	}
	slots, err := o.gate.SlotsFor(ctx, key.ID, iv)
	if err != nil {
		return false, err
	}
	if len(slots) == 0 {
		return true, nil
	}
	held, err := o.heldSlot(ctx, excludeID)
	if err != nil {
		return false, err
	}
	for _, slot := range slots {
		remaining, err := o.gate.RemainingCapacity(ctx, slot.SlotKey)
		if err != nil {
			return false, fmt.Errorf("capacity check for %s: %w", key, err)
		}
		if slot.SlotKey == held {
			remaining++
		}
		if remaining <= 0 {
			return false, nil
		}
	}
	return true, nil
}

// heldSlot returns the slot key the activity currently occupies, or "" when
// it holds none or no longer exists.
func (o *Oracle) heldSlot(ctx context.Context, activityID int64) (string, error) {
	if activityID <= 0 {
		return "", nil
	}
	a, err := o.activities.GetActivity(ctx, activityID)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if a.SlotKey == nil || !a.Status.Participates() {
		return "", nil
	}
	return *a.SlotKey, nil
}
