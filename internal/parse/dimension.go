package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"custody-schedule-backend/internal/interval"
	"custody-schedule-backend/internal/model"
)

var (
	keyRe = regexp.MustCompile(`^\s*([A-Za-z]+)\s*:\s*(.*?)\s*$`)
	idRe  = regexp.MustCompile(`^#?(\d+)$`)
)

// ParseDimension reads a dimension key written as "kind:value", e.g.
// "subject:42", "facility:#7", "officer:Officer Reyes" or "resource:van-3".
// Kinds are case-insensitive; officer and resource labels are kept as written
// apart from surrounding whitespace.
func ParseDimension(raw string) (model.DimensionKey, error) {
	m := keyRe.FindStringSubmatch(raw)
	if m == nil {
		return model.DimensionKey{}, fmt.Errorf("unable to parse dimension: %q", raw)
	}
	kind, value := model.DimensionKind(strings.ToLower(m[1])), m[2]

	switch kind {
	case model.DimensionSubject, model.DimensionFacility:
		id, err := parseID(value)
		if err != nil {
			return model.DimensionKey{}, fmt.Errorf("unable to parse %s id from %q: %w", kind, raw, err)
		}
		if kind == model.DimensionSubject {
			return model.SubjectKey(id), nil
		}
		return model.FacilityKey(id), nil
	case model.DimensionOfficer, model.DimensionResource:
		if value == "" {
			return model.DimensionKey{}, fmt.Errorf("empty %s label in %q", kind, raw)
		}
		if kind == model.DimensionOfficer {
			return model.OfficerKey(value), nil
		}
		return model.ResourceKey(value), nil
	}
	return model.DimensionKey{}, fmt.Errorf("unknown dimension kind %q in %q", m[1], raw)
}

func parseID(s string) (int64, error) {
	m := idRe.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("not a positive integer")
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, fmt.Errorf("id must be positive")
	}
	return id, nil
}

// ParseInterval reads an RFC 3339 start and end into a valid interval.
func ParseInterval(start, end string) (interval.Interval, error) {
	s, err := time.Parse(time.RFC3339, strings.TrimSpace(start))
	if err != nil {
		return interval.Interval{}, fmt.Errorf("%w: start: %v", interval.ErrInvalidInterval, err)
	}
	e, err := time.Parse(time.RFC3339, strings.TrimSpace(end))
	if err != nil {
		return interval.Interval{}, fmt.Errorf("%w: end: %v", interval.ErrInvalidInterval, err)
	}
	return interval.New(s, e)
}
