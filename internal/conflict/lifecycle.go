package conflict

import (
	"context"
	"errors"
	"fmt"
	"time"

	"custody-schedule-backend/internal/model"
	"custody-schedule-backend/internal/store"
)

// ErrInvalidTransition is returned when a conflict is moved out of a terminal state.
var ErrInvalidTransition = errors.New("invalid conflict transition")

// LifecycleStore is what the lifecycle manager reads and writes.
type LifecycleStore interface {
	GetConflict(ctx context.Context, id int64) (model.Conflict, error)
	TransitionConflict(ctx context.Context, id int64, from []model.ConflictStatus, changes map[string]any) (bool, error)
	ListConflicts(ctx context.Context, f store.ConflictFilter) ([]model.Conflict, error)
	FindActivities(ctx context.Context, ids []int64) (map[int64]model.Activity, error)
}

// View is a conflict joined with its two activities. Stale is set when either
// activity no longer exists.
type View struct {
	model.Conflict
	ActivityA *model.Activity `json:"activity_a,omitempty"`
	ActivityB *model.Activity `json:"activity_b,omitempty"`
	Stale     bool            `json:"stale"`
}

// Manager moves conflicts through detected -> acknowledged -> resolved|ignored.
type Manager struct {
	store LifecycleStore
	now   func() time.Time
}

// NewManager creates a lifecycle manager.
func NewManager(s LifecycleStore) *Manager {
	return &Manager{store: s, now: time.Now}
}

// Acknowledge marks a detected conflict as seen by actorID. Acknowledging an
// already acknowledged conflict changes nothing.
func (m *Manager) Acknowledge(ctx context.Context, conflictID, actorID int64) (model.Conflict, error) {
	now := m.now().UTC()
	return m.transition(ctx, conflictID, model.ConflictAcknowledged, []model.ConflictStatus{model.ConflictDetected}, map[string]any{
		"status":          model.ConflictAcknowledged,
		"acknowledged_by": actorID,
		"acknowledged_at": now,
		"updated_at":      now,
	})
}

// Resolve closes a conflict, recording who resolved it and how.
func (m *Manager) Resolve(ctx context.Context, conflictID, resolverID int64, notes string) (model.Conflict, error) {
	now := m.now().UTC()
	return m.transition(ctx, conflictID, model.ConflictResolved, model.UnresolvedStatuses, map[string]any{
		"status":           model.ConflictResolved,
		"resolved_by":      resolverID,
		"resolved_at":      now,
		"resolution_notes": notes,
		"updated_at":       now,
	})
}

// Ignore closes a conflict the operator judged non-actionable.
func (m *Manager) Ignore(ctx context.Context, conflictID, actorID int64, notes string) (model.Conflict, error) {
	now := m.now().UTC()
	return m.transition(ctx, conflictID, model.ConflictIgnored, model.UnresolvedStatuses, map[string]any{
		"status":           model.ConflictIgnored,
		"resolved_by":      actorID,
		"resolved_at":      now,
		"resolution_notes": notes,
		"updated_at":       now,
	})
}

func (m *Manager) transition(ctx context.Context, id int64, to model.ConflictStatus, from []model.ConflictStatus, changes map[string]any) (model.Conflict, error) {
	current, err := m.store.GetConflict(ctx, id)
	if err != nil {
		return model.Conflict{}, err
	}
	if current.Status.Terminal() {
		return model.Conflict{}, fmt.Errorf("conflict %d is %s, cannot move to %s: %w", id, current.Status, to, ErrInvalidTransition)
	}
	if current.Status == to {
		return current, nil
	}

	ok, err := m.store.TransitionConflict(ctx, id, from, changes)
	if err != nil {
		return model.Conflict{}, err
	}
	if !ok {
		// Lost a race with another operator or with retirement.
		latest, err := m.store.GetConflict(ctx, id)
		if err != nil {
			return model.Conflict{}, err
		}
		if latest.Status == to && to == model.ConflictAcknowledged {
			return latest, nil
		}
		return model.Conflict{}, fmt.Errorf("conflict %d is %s, cannot move to %s: %w", id, latest.Status, to, ErrInvalidTransition)
	}
	return m.store.GetConflict(ctx, id)
}

// List returns conflicts matching f, most severe first, then most recent,
// each joined with its activities.
func (m *Manager) List(ctx context.Context, f store.ConflictFilter) ([]View, error) {
	conflicts, err := m.store.ListConflicts(ctx, f)
	if err != nil {
		return nil, err
	}
	return m.join(ctx, conflicts)
}

// ListUnresolved is List restricted to detected and acknowledged conflicts.
func (m *Manager) ListUnresolved(ctx context.Context, f store.ConflictFilter) ([]View, error) {
	f.Group = store.GroupUnresolved
	return m.List(ctx, f)
}

// join attaches activities to conflicts. Missing activities mark the row
// stale instead of failing the listing.
func (m *Manager) join(ctx context.Context, conflicts []model.Conflict) ([]View, error) {
	ids := make([]int64, 0, len(conflicts)*2)
	for _, c := range conflicts {
		ids = append(ids, c.ActivityAID, c.ActivityBID)
	}
	activities, err := m.store.FindActivities(ctx, ids)
	if err != nil {
		return nil, err
	}

	views := make([]View, 0, len(conflicts))
	for _, c := range conflicts {
		v := View{Conflict: c}
		if a, ok := activities[c.ActivityAID]; ok {
			v.ActivityA = &a
		}
		if b, ok := activities[c.ActivityBID]; ok {
			v.ActivityB = &b
		}
		v.Stale = v.ActivityA == nil || v.ActivityB == nil
		views = append(views, v)
	}
	return views, nil
}
