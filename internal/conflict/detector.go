package conflict

import (
	"context"
	"errors"
	"fmt"
	"time"

	"custody-schedule-backend/internal/availability"
	"custody-schedule-backend/internal/interval"
	"custody-schedule-backend/internal/model"
	"custody-schedule-backend/internal/store"
)

// DetectorStore is what the detector reads and writes.
type DetectorStore interface {
	FindConflictByPair(ctx context.Context, idA, idB int64, t model.ConflictType) (model.Conflict, error)
	CreateConflict(ctx context.Context, c *model.Conflict) (bool, error)
	ListConflictsForActivity(ctx context.Context, activityID int64) ([]model.Conflict, error)
	RetireConflicts(ctx context.Context, ids []int64, at time.Time) error
	GetFacility(ctx context.Context, id int64) (model.Facility, error)
}

// Detection describes everything one detection run touched.
type Detection struct {
	// Conflicts are the live records touching the activity after the run,
	// newly created or pre-existing.
	Conflicts []model.Conflict
	// Created is the subset of Conflicts written by this run.
	Created []model.Conflict
	// Retired lists records that no longer hold and were suppressed.
	Retired []int64
}

// Detector finds overlaps between one activity and the rest of the schedule
// and keeps the conflict records in step with them.
type Detector struct {
	store  DetectorStore
	oracle *availability.Oracle
	now    func() time.Time
}

// NewDetector creates a detector. Both arguments should be bound to the same
// transaction as the write that triggered detection.
func NewDetector(s DetectorStore, oracle *availability.Oracle) *Detector {
	return &Detector{store: s, oracle: oracle, now: time.Now}
}

// DetectConflicts runs detection for a and returns the live conflict records
// touching it. Finding conflicts is a normal outcome, not an error.
func (d *Detector) DetectConflicts(ctx context.Context, a model.Activity) ([]model.Conflict, error) {
	det, err := d.Detect(ctx, a)
	if err != nil {
		return nil, err
	}
	return det.Conflicts, nil
}

// Detect is DetectConflicts with the full account of created and retired records.
// It must run after a has been persisted.
func (d *Detector) Detect(ctx context.Context, a model.Activity) (Detection, error) {
	var det Detection
	if a.ID == 0 {
		return det, fmt.Errorf("detect conflicts: activity has no id")
	}
	if _, err := interval.New(a.StartsAt, a.EndsAt); err != nil {
		return det, err
	}

	types, order, err := d.classify(ctx, a)
	if err != nil {
		return det, err
	}

	now := d.now().UTC()
	keep := make(map[int64]struct{}, len(order))
	for _, otherID := range order {
		t := types[otherID]
		existing, err := d.store.FindConflictByPair(ctx, a.ID, otherID, t)
		switch {
		case err == nil:
			det.Conflicts = append(det.Conflicts, existing)
			keep[existing.ID] = struct{}{}
			continue
		case !errors.Is(err, store.ErrNotFound):
			return det, err
		}

		severity, err := d.severity(ctx, t, a)
		if err != nil {
			return det, err
		}
		rec := model.Conflict{
			ActivityAID: a.ID,
			ActivityBID: otherID,
			Type:        t,
			Severity:    severity,
			Status:      model.ConflictDetected,
			DetectedAt:  now,
		}
		created, err := d.store.CreateConflict(ctx, &rec)
		if err != nil {
			return det, err
		}
		if created {
			det.Created = append(det.Created, rec)
		}
		det.Conflicts = append(det.Conflicts, rec)
		keep[rec.ID] = struct{}{}
	}

	live, err := d.store.ListConflictsForActivity(ctx, a.ID)
	if err != nil {
		return det, err
	}
	for _, c := range live {
		if _, ok := keep[c.ID]; !ok {
			det.Retired = append(det.Retired, c.ID)
		}
	}
	if err := d.store.RetireConflicts(ctx, det.Retired, now); err != nil {
		return det, err
	}
	return det, nil
}

// classify collects every activity overlapping a on any of its dimensions and
// assigns each one the highest precedence conflict type. order preserves
// discovery order so results are deterministic.
func (d *Detector) classify(ctx context.Context, a model.Activity) (map[int64]model.ConflictType, []int64, error) {
	types := make(map[int64]model.ConflictType)
	var order []int64
	if !a.Status.Participates() {
		return types, order, nil
	}

	for _, key := range a.Dimensions() {
		overlapping, err := d.oracle.Overlapping(ctx, key, a.Interval(), a.ID)
		if err != nil {
			return nil, nil, err
		}
		t := key.ConflictType()
		for _, other := range overlapping {
			prev, seen := types[other.ID]
			if !seen {
				order = append(order, other.ID)
				types[other.ID] = t
				continue
			}
			if t.Precedence() > prev.Precedence() {
				types[other.ID] = t
			}
		}
	}
	return types, order, nil
}
