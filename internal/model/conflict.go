package model

import "time"

// ConflictType classifies which dimension two activities clash on.
type ConflictType string

const (
	ConflictSubjectDoubleBooking  ConflictType = "subject_double_booking"
	ConflictFacilityDoubleBooking ConflictType = "facility_double_booking"
	ConflictOfficer               ConflictType = "officer_conflict"
	ConflictResource              ConflictType = "resource_conflict"
)

// Precedence ranks conflict types; when a pair clashes on several dimensions
// only the highest ranked type is recorded.
func (t ConflictType) Precedence() int {
	switch t {
	case ConflictSubjectDoubleBooking:
		return 4
	case ConflictFacilityDoubleBooking:
		return 3
	case ConflictOfficer:
		return 2
	case ConflictResource:
		return 1
	}
	return 0
}

// Valid reports whether t is a known conflict type.
func (t ConflictType) Valid() bool { return t.Precedence() > 0 }

// Severity is the operator-facing triage priority of a conflict.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities from low (1) to critical (4). Unknown values rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	}
	return 0
}

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool { return s.Rank() > 0 }

// ConflictStatus is the lifecycle state of a conflict record.
type ConflictStatus string

const (
	ConflictDetected     ConflictStatus = "detected"
	ConflictAcknowledged ConflictStatus = "acknowledged"
	ConflictResolved     ConflictStatus = "resolved"
	ConflictIgnored      ConflictStatus = "ignored"
)

// Terminal reports whether no further transition is allowed from s.
func (s ConflictStatus) Terminal() bool {
	return s == ConflictResolved || s == ConflictIgnored
}

// UnresolvedStatuses is the "unresolved" status group used by triage queues.
var UnresolvedStatuses = []ConflictStatus{ConflictDetected, ConflictAcknowledged}

// Conflict records an overlap between exactly two activities on one dimension.
// The pair is stored normalized (ActivityAID < ActivityBID); at most one
// non-retired record exists per pair and type.
type Conflict struct {
	ID              int64          `gorm:"primaryKey" json:"id"`
	ActivityAID     int64          `gorm:"column:activity_a_id;not null;index;uniqueIndex:idx_conflicts_live_pair,where:retired_at IS NULL" json:"activity_a_id"`
	ActivityBID     int64          `gorm:"column:activity_b_id;not null;index;uniqueIndex:idx_conflicts_live_pair,where:retired_at IS NULL" json:"activity_b_id"`
	Type            ConflictType   `gorm:"size:32;not null;uniqueIndex:idx_conflicts_live_pair,where:retired_at IS NULL" json:"type"`
	Severity        Severity       `gorm:"size:16;not null;index" json:"severity"`
	Status          ConflictStatus `gorm:"size:16;not null;index" json:"status"`
	ResolutionNotes string         `gorm:"type:text" json:"resolution_notes,omitempty"`
	ResolvedBy      *int64         `json:"resolved_by,omitempty"`
	ResolvedAt      *time.Time     `json:"resolved_at,omitempty"`
	AcknowledgedBy  *int64         `json:"acknowledged_by,omitempty"`
	AcknowledgedAt  *time.Time     `json:"acknowledged_at,omitempty"`
	DetectedAt      time.Time      `gorm:"not null;index" json:"detected_at"`
	RetiredAt       *time.Time     `gorm:"index" json:"retired_at,omitempty"`
	CreatedAt       time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null" json:"updated_at"`
}

// Pair returns the normalized form of an unordered activity pair.
func Pair(x, y int64) (lo, hi int64) {
	if x < y {
		return x, y
	}
	return y, x
}

// Other returns the id of the activity on the other side of the conflict.
func (c Conflict) Other(activityID int64) int64 {
	if c.ActivityAID == activityID {
		return c.ActivityBID
	}
	return c.ActivityAID
}

// Touches reports whether the conflict references the activity.
func (c Conflict) Touches(activityID int64) bool {
	return c.ActivityAID == activityID || c.ActivityBID == activityID
}
