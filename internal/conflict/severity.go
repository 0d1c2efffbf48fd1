package conflict

import (
	"context"
	"errors"

	"custody-schedule-backend/internal/model"
	"custody-schedule-backend/internal/store"
)

// SeverityFor is the fixed severity policy. singleOccupancy only matters for
// facility conflicts.
//
//	subject  -> critical
//	facility -> high for single-occupancy rooms, medium otherwise
//	officer  -> medium
//	resource -> low
func SeverityFor(t model.ConflictType, singleOccupancy bool) model.Severity {
	switch t {
	case model.ConflictSubjectDoubleBooking:
		return model.SeverityCritical
	case model.ConflictFacilityDoubleBooking:
		if singleOccupancy {
			return model.SeverityHigh
		}
		return model.SeverityMedium
	case model.ConflictOfficer:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}

// severity resolves the facility capacity when the policy needs it. A facility
// without a record has no declared capacity and rates medium.
func (d *Detector) severity(ctx context.Context, t model.ConflictType, a model.Activity) (model.Severity, error) {
	if t != model.ConflictFacilityDoubleBooking || a.FacilityID == nil {
		return SeverityFor(t, false), nil
	}
	facility, err := d.store.GetFacility(ctx, *a.FacilityID)
	if errors.Is(err, store.ErrNotFound) {
		return SeverityFor(t, false), nil
	}
	if err != nil {
		return "", err
	}
	return SeverityFor(t, facility.SingleOccupancy()), nil
}
