package model

import (
	"fmt"
	"strconv"
)

// DimensionKind names a shared-resource axis along which two activities can clash.
type DimensionKind string

const (
	DimensionSubject  DimensionKind = "subject"
	DimensionFacility DimensionKind = "facility"
	DimensionOfficer  DimensionKind = "officer"
	DimensionResource DimensionKind = "resource"
)

// DimensionKey identifies one value on a dimension: a subject id, a facility id,
// an officer label or a resource label.
type DimensionKey struct {
	Kind  DimensionKind
	ID    int64
	Label string
}

// SubjectKey is the dimension of the person the activity is held for.
func SubjectKey(id int64) DimensionKey { return DimensionKey{Kind: DimensionSubject, ID: id} }

// FacilityKey is the dimension of a room or area.
func FacilityKey(id int64) DimensionKey { return DimensionKey{Kind: DimensionFacility, ID: id} }

// OfficerKey is the dimension of a supervising officer label.
func OfficerKey(label string) DimensionKey { return DimensionKey{Kind: DimensionOfficer, Label: label} }

// ResourceKey is the dimension of any other declared shared resource.
func ResourceKey(label string) DimensionKey { return DimensionKey{Kind: DimensionResource, Label: label} }

// ConflictType maps the dimension to the conflict type it produces.
func (k DimensionKey) ConflictType() ConflictType {
	switch k.Kind {
	case DimensionSubject:
		return ConflictSubjectDoubleBooking
	case DimensionFacility:
		return ConflictFacilityDoubleBooking
	case DimensionOfficer:
		return ConflictOfficer
	default:
		return ConflictResource
	}
}

func (k DimensionKey) String() string {
	switch k.Kind {
	case DimensionSubject, DimensionFacility:
		return fmt.Sprintf("%s:%s", k.Kind, strconv.FormatInt(k.ID, 10))
	default:
		return fmt.Sprintf("%s:%s", k.Kind, k.Label)
	}
}
