// Package scheduling is the unit of work around activity writes: every
// create, update, cancel or delete persists the activity, adjusts slot
// capacity and re-runs conflict detection in one transaction.
package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	charmlog "github.com/charmbracelet/log"

	"custody-schedule-backend/internal/availability"
	"custody-schedule-backend/internal/capacity"
	"custody-schedule-backend/internal/conflict"
	"custody-schedule-backend/internal/interval"
	"custody-schedule-backend/internal/metrics"
	"custody-schedule-backend/internal/model"
	"custody-schedule-backend/internal/store"
)

// ErrInvalidActivity is returned when activity input fails validation.
var ErrInvalidActivity = errors.New("invalid activity")

// Dispatcher receives newly created conflicts after their transaction commits.
type Dispatcher interface {
	Dispatch(conflicts ...model.Conflict)
}

// Result describes every entity a write touched.
type Result struct {
	Activity  model.Activity   `json:"activity"`
	Conflicts []model.Conflict `json:"conflicts"`
	Created   []int64          `json:"created_conflicts"`
	Retired   []int64          `json:"retired_conflicts"`

	created []model.Conflict
}

// ActivityInput is the caller-supplied part of an activity.
type ActivityInput struct {
	Type          string               `json:"type"`
	SubjectID     int64                `json:"subject_id"`
	FacilityID    *int64               `json:"facility_id"`
	ProgramID     *int64               `json:"program_id"`
	CounterpartID *int64               `json:"counterpart_id"`
	Officer       string               `json:"officer"`
	Resource      string               `json:"resource"`
	SlotKey       *string              `json:"slot_key"`
	StartsAt      time.Time            `json:"starts_at"`
	EndsAt        time.Time            `json:"ends_at"`
	Status        model.ActivityStatus `json:"status"`
}

// maxLabelLen matches the column size of officer, resource and slot key.
const maxLabelLen = 128

// Validate checks the input. An empty status is allowed: creation defaults it
// to scheduled and updates keep the stored status.
func (in *ActivityInput) Validate() error {
	if strings.TrimSpace(in.Type) == "" {
		return fmt.Errorf("%w: type is required", ErrInvalidActivity)
	}
	if in.SubjectID <= 0 {
		return fmt.Errorf("%w: subject_id is required", ErrInvalidActivity)
	}
	if in.FacilityID != nil && *in.FacilityID <= 0 {
		return fmt.Errorf("%w: facility_id must be positive", ErrInvalidActivity)
	}
	labels := map[string]string{"officer": in.Officer, "resource": in.Resource}
	if in.SlotKey != nil {
		labels["slot_key"] = *in.SlotKey
	}
	for field, v := range labels {
		if utf8.RuneCountInString(strings.TrimSpace(v)) > maxLabelLen {
			return fmt.Errorf("%w: %s exceeds %d characters", ErrInvalidActivity, field, maxLabelLen)
		}
	}
	if _, err := interval.New(in.StartsAt, in.EndsAt); err != nil {
		return err
	}
	if in.Status != "" && !in.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidActivity, in.Status)
	}
	return nil
}

func (in ActivityInput) apply(a *model.Activity) {
	a.Type = strings.TrimSpace(in.Type)
	a.SubjectID = in.SubjectID
	a.FacilityID = in.FacilityID
	a.ProgramID = in.ProgramID
	a.CounterpartID = in.CounterpartID
	a.Officer = in.Officer
	a.Resource = in.Resource
	a.SlotKey = in.SlotKey
	a.StartsAt = in.StartsAt
	a.EndsAt = in.EndsAt
	if in.Status != "" {
		a.Status = in.Status
	}
}

// Service coordinates the stores, the detector and the lifecycle manager.
type Service struct {
	store   store.Store
	alerts  Dispatcher
	log     *charmlog.Logger
	metrics *metrics.Recorder
}

// NewService creates the scheduling service. alerts and rec may be nil.
func NewService(s store.Store, alerts Dispatcher, logger *charmlog.Logger, rec *metrics.Recorder) *Service {
	return &Service{
		store:   s,
		alerts:  alerts,
		log:     logger.WithPrefix("scheduler"),
		metrics: rec,
	}
}

// CreateActivity persists a new activity, takes its slot and detects its conflicts.
func (s *Service) CreateActivity(ctx context.Context, in ActivityInput, actorID int64) (Result, error) {
	start := time.Now()
	if err := in.Validate(); err != nil {
		return Result{}, err
	}
	if in.Status == "" {
		in.Status = model.ActivityScheduled
	}

	var res Result
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		var a model.Activity
		in.apply(&a)
		a.CreatedBy, a.UpdatedBy = actorID, actorID
		if err := tx.CreateActivity(ctx, &a); err != nil {
			return err
		}
		if holdsSlot(a) {
			if err := tx.Capacity().Reserve(ctx, *a.SlotKey); err != nil {
				return err
			}
		}
		var err error
		res, err = detect(ctx, tx, a)
		return err
	})
	s.finish(ctx, "create_activity", start, actorID, res, err)
	return res, err
}

// UpdateActivity replaces an activity's interval, bindings and status, moves
// its slot reservation when needed and re-runs detection. An empty status
// keeps the stored one.
func (s *Service) UpdateActivity(ctx context.Context, id int64, in ActivityInput, actorID int64) (Result, error) {
	start := time.Now()
	if err := in.Validate(); err != nil {
		return Result{}, err
	}

	var res Result
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		current, err := tx.GetActivity(ctx, id)
		if err != nil {
			return err
		}
		next := current
		in.apply(&next)
		next.UpdatedBy = actorID
		next.Normalize()

		if err := moveSlot(ctx, tx.Capacity(), current, next); err != nil {
			return err
		}
		if err := tx.SaveActivity(ctx, &next); err != nil {
			return err
		}
		res, err = detect(ctx, tx, next)
		return err
	})
	s.finish(ctx, "update_activity", start, actorID, res, err)
	return res, err
}

// CancelActivity marks an activity cancelled, gives back its slot and retires
// its conflicts. Cancelling twice is a no-op beyond re-running detection.
func (s *Service) CancelActivity(ctx context.Context, id, actorID int64) (Result, error) {
	start := time.Now()
	var res Result
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		current, err := tx.GetActivity(ctx, id)
		if err != nil {
			return err
		}
		next := current
		if current.Status != model.ActivityCancelled {
			next.Status = model.ActivityCancelled
			next.UpdatedBy = actorID
			if err := moveSlot(ctx, tx.Capacity(), current, next); err != nil {
				return err
			}
			if err := tx.SaveActivity(ctx, &next); err != nil {
				return err
			}
		}
		res, err = detect(ctx, tx, next)
		return err
	})
	s.finish(ctx, "cancel_activity", start, actorID, res, err)
	return res, err
}

// DeleteActivity removes an activity. Its slot is released and its live
// conflicts are retired before the row goes.
func (s *Service) DeleteActivity(ctx context.Context, id, actorID int64) (Result, error) {
	start := time.Now()
	var res Result
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		current, err := tx.GetActivity(ctx, id)
		if err != nil {
			return err
		}
		gone := current
		gone.Status = model.ActivityCancelled
		if err := moveSlot(ctx, tx.Capacity(), current, gone); err != nil {
			return err
		}
		res, err = detect(ctx, tx, gone)
		if err != nil {
			return err
		}
		res.Activity = current
		return tx.DeleteActivity(ctx, id)
	})
	s.finish(ctx, "delete_activity", start, actorID, res, err)
	return res, err
}

// Redetect re-runs detection for a stored activity. actorID is 0 for
// system-initiated runs.
func (s *Service) Redetect(ctx context.Context, id, actorID int64) (Result, error) {
	start := time.Now()
	var res Result
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		a, err := tx.GetActivity(ctx, id)
		if err != nil {
			return err
		}
		res, err = detect(ctx, tx, a)
		return err
	})
	s.finish(ctx, "redetect", start, actorID, res, err)
	return res, err
}

// OpenConflictActivities lists the activities referenced by unresolved conflicts.
func (s *Service) OpenConflictActivities(ctx context.Context) ([]int64, error) {
	return s.store.ActivitiesWithOpenConflicts(ctx)
}

// Activity loads one activity.
func (s *Service) Activity(ctx context.Context, id int64) (model.Activity, error) {
	return s.store.GetActivity(ctx, id)
}

// ActivityConflicts returns the live conflicts touching an activity.
func (s *Service) ActivityConflicts(ctx context.Context, id int64) ([]model.Conflict, error) {
	if _, err := s.store.GetActivity(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListConflictsForActivity(ctx, id)
}

// CheckAvailability reports whether key is free over iv. The answer is advisory.
func (s *Service) CheckAvailability(ctx context.Context, key model.DimensionKey, iv interval.Interval, excludeID int64) (bool, error) {
	return availability.NewOracle(s.store, s.store.Capacity()).IsAvailable(ctx, key, iv, excludeID)
}

// Acknowledge marks a conflict as seen by actorID.
func (s *Service) Acknowledge(ctx context.Context, conflictID, actorID int64) (model.Conflict, error) {
	start := time.Now()
	c, err := conflict.NewManager(s.store).Acknowledge(ctx, conflictID, actorID)
	s.transitioned(ctx, "acknowledge_conflict", start, conflictID, actorID, c, err)
	return c, err
}

// Resolve closes a conflict with resolver and notes.
func (s *Service) Resolve(ctx context.Context, conflictID, resolverID int64, notes string) (model.Conflict, error) {
	start := time.Now()
	c, err := conflict.NewManager(s.store).Resolve(ctx, conflictID, resolverID, notes)
	s.transitioned(ctx, "resolve_conflict", start, conflictID, resolverID, c, err)
	return c, err
}

// Ignore closes a conflict as non-actionable.
func (s *Service) Ignore(ctx context.Context, conflictID, actorID int64, notes string) (model.Conflict, error) {
	start := time.Now()
	c, err := conflict.NewManager(s.store).Ignore(ctx, conflictID, actorID, notes)
	s.transitioned(ctx, "ignore_conflict", start, conflictID, actorID, c, err)
	return c, err
}

// ListConflicts returns conflicts matching f joined with their activities.
func (s *Service) ListConflicts(ctx context.Context, f store.ConflictFilter) ([]conflict.View, error) {
	return conflict.NewManager(s.store).List(ctx, f)
}

// ListUnresolved returns the triage queue: detected and acknowledged conflicts,
// most severe first, then most recent.
func (s *Service) ListUnresolved(ctx context.Context, f store.ConflictFilter) ([]conflict.View, error) {
	return conflict.NewManager(s.store).ListUnresolved(ctx, f)
}

// RemainingCapacity returns the capacity left on a slot.
func (s *Service) RemainingCapacity(ctx context.Context, slotKey string) (int, error) {
	return s.store.Capacity().RemainingCapacity(ctx, slotKey)
}

// ReserveSlot takes one unit of a slot outside any activity write.
func (s *Service) ReserveSlot(ctx context.Context, slotKey string, actorID int64) error {
	err := s.store.Capacity().Reserve(ctx, slotKey)
	if errors.Is(err, capacity.ErrCapacityExhausted) {
		s.metrics.CapacityRejected()
	}
	if err == nil {
		s.log.Info("slot reserved", "slot", slotKey, "actor", actorID)
	}
	return err
}

// ReleaseSlot gives one unit of a slot back.
func (s *Service) ReleaseSlot(ctx context.Context, slotKey string, actorID int64) error {
	err := s.store.Capacity().Release(ctx, slotKey)
	if err == nil {
		s.log.Info("slot released", "slot", slotKey, "actor", actorID)
	}
	return err
}

// detect runs the detector bound to tx and folds its outcome into a Result.
func detect(ctx context.Context, tx store.Store, a model.Activity) (Result, error) {
	detector := conflict.NewDetector(tx, availability.NewOracle(tx, tx.Capacity()))
	det, err := detector.Detect(ctx, a)
	if err != nil {
		return Result{}, err
	}
	res := Result{
		Activity:  a,
		Conflicts: det.Conflicts,
		Retired:   det.Retired,
		created:   det.Created,
	}
	if res.Conflicts == nil {
		res.Conflicts = []model.Conflict{}
	}
	for _, c := range det.Created {
		res.Created = append(res.Created, c.ID)
	}
	return res, nil
}

// holdsSlot reports whether a currently occupies one unit of its slot.
func holdsSlot(a model.Activity) bool {
	return a.SlotKey != nil && a.Status.Participates()
}

// moveSlot releases and reserves so that exactly the slot held by next is taken.
func moveSlot(ctx context.Context, gate capacity.Gate, current, next model.Activity) error {
	same := holdsSlot(current) && holdsSlot(next) && *current.SlotKey == *next.SlotKey
	if same {
		return nil
	}
	if holdsSlot(current) {
		if err := gate.Release(ctx, *current.SlotKey); err != nil {
			return err
		}
	}
	if holdsSlot(next) {
		if err := gate.Reserve(ctx, *next.SlotKey); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) finish(ctx context.Context, op string, start time.Time, actorID int64, res Result, err error) {
	s.metrics.Observe(ctx, op, err == nil, time.Since(start))
	if err != nil {
		if errors.Is(err, capacity.ErrCapacityExhausted) {
			s.metrics.CapacityRejected()
		}
		s.log.Warn("activity write failed", "op", op, "actor", actorID, "err", err)
		return
	}

	s.metrics.ConflictsDetected(res.created)
	s.metrics.ConflictsRetired(len(res.Retired))
	if len(res.created) > 0 || len(res.Retired) > 0 {
		s.log.Info("conflicts updated",
			"op", op,
			"activity", res.Activity.ID,
			"actor", actorID,
			"created", len(res.created),
			"retired", len(res.Retired),
			"live", len(res.Conflicts),
		)
	}
	if s.alerts != nil && len(res.created) > 0 {
		s.alerts.Dispatch(res.created...)
	}
}

func (s *Service) transitioned(ctx context.Context, op string, start time.Time, conflictID, actorID int64, c model.Conflict, err error) {
	s.metrics.Observe(ctx, op, err == nil, time.Since(start))
	if err != nil {
		s.log.Debug("conflict transition refused", "op", op, "conflict", conflictID, "actor", actorID, "err", err)
		return
	}
	s.metrics.Transition(c.Status)
	s.log.Info("conflict transitioned", "conflict", conflictID, "status", c.Status, "actor", actorID)
}
