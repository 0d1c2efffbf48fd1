package store

import (
	"fmt"

	"custody-schedule-backend/internal/model"
)

// StatusGroup selects conflicts by lifecycle state for triage queues.
// Besides the named groups a single status name is accepted.
type StatusGroup string

const (
	GroupUnresolved StatusGroup = "unresolved"
	GroupAll        StatusGroup = "all"
)

// Statuses expands the group into the statuses it covers. An empty result
// means no status restriction.
func (g StatusGroup) Statuses() ([]model.ConflictStatus, error) {
	switch g {
	case "", GroupUnresolved:
		return model.UnresolvedStatuses, nil
	case GroupAll:
		return nil, nil
	}
	switch s := model.ConflictStatus(g); s {
	case model.ConflictDetected, model.ConflictAcknowledged, model.ConflictResolved, model.ConflictIgnored:
		return []model.ConflictStatus{s}, nil
	}
	return nil, fmt.Errorf("unknown status group %q", string(g))
}

// ConflictFilter narrows ListConflicts. Zero values mean "any".
type ConflictFilter struct {
	Group      StatusGroup
	Severity   model.Severity
	Type       model.ConflictType
	ActivityID int64
	Limit      int
	Offset     int
}
