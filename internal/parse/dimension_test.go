package parse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"custody-schedule-backend/internal/interval"
	"custody-schedule-backend/internal/model"
)

func TestParseDimension(t *testing.T) {
	testCases := []struct {
		name      string
		raw       string
		expected  model.DimensionKey
		expectErr bool
	}{
		{
			name:     "Subject",
			raw:      "subject:42",
			expected: model.SubjectKey(42),
		},
		{
			name:     "Facility with hash",
			raw:      "facility:#7",
			expected: model.FacilityKey(7),
		},
		{
			name:     "Kind is case-insensitive",
			raw:      "  Facility : 7 ",
			expected: model.FacilityKey(7),
		},
		{
			name:     "Officer label keeps case and inner spaces",
			raw:      "officer: Officer Reyes ",
			expected: model.OfficerKey("Officer Reyes"),
		},
		{
			name:     "Resource label may contain colons",
			raw:      "resource:van:3",
			expected: model.ResourceKey("van:3"),
		},
		{
			name:      "Zero id",
			raw:       "subject:0",
			expectErr: true,
		},
		{
			name:      "Negative id",
			raw:       "facility:-7",
			expectErr: true,
		},
		{
			name:      "Non numeric id",
			raw:       "subject:abc",
			expectErr: true,
		},
		{
			name:      "Empty officer",
			raw:       "officer:   ",
			expectErr: true,
		},
		{
			name:      "Unknown kind",
			raw:       "program:3",
			expectErr: true,
		},
		{
			name:      "Missing separator",
			raw:       "subject42",
			expectErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseDimension(tc.raw)
			if tc.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tc.expected, got)
			}
		})
	}
}

func TestParseInterval(t *testing.T) {
	iv, err := ParseInterval("2026-03-02T10:00:00Z", "2026-03-02T12:00:00+01:00")
	assert.NoError(t, err)
	assert.True(t, iv.Start.Equal(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)))
	assert.Equal(t, time.Hour, iv.Duration())

	_, err = ParseInterval("2026-03-02T10:00:00Z", "2026-03-02T11:00:00+01:00")
	assert.ErrorIs(t, err, interval.ErrInvalidInterval, "same instant in another zone is empty")

	_, err = ParseInterval("2026-03-02T10:00:00Z", "2026-03-02T09:00:00Z")
	assert.ErrorIs(t, err, interval.ErrInvalidInterval)

	_, err = ParseInterval("yesterday", "2026-03-02T09:00:00Z")
	assert.ErrorIs(t, err, interval.ErrInvalidInterval)
}
