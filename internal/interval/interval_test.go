package interval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(hhmm string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", "2026-03-02 "+hhmm)
	if err != nil {
		panic(err)
	}
	return t
}

func TestOverlaps(t *testing.T) {
	testCases := []struct {
		name     string
		a, b     [2]string
		expected bool
	}{
		{name: "Partial overlap", a: [2]string{"10:00", "11:00"}, b: [2]string{"10:30", "11:30"}, expected: true},
		{name: "Touching end to start", a: [2]string{"09:00", "10:00"}, b: [2]string{"10:00", "11:00"}, expected: false},
		{name: "Touching start to end", a: [2]string{"10:00", "11:00"}, b: [2]string{"09:00", "10:00"}, expected: false},
		{name: "Identical", a: [2]string{"10:00", "11:00"}, b: [2]string{"10:00", "11:00"}, expected: true},
		{name: "Contained", a: [2]string{"09:00", "12:00"}, b: [2]string{"10:00", "11:00"}, expected: true},
		{name: "Same start", a: [2]string{"10:00", "10:30"}, b: [2]string{"10:00", "11:00"}, expected: true},
		{name: "Same end", a: [2]string{"10:30", "11:00"}, b: [2]string{"10:00", "11:00"}, expected: true},
		{name: "Disjoint", a: [2]string{"08:00", "09:00"}, b: [2]string{"10:00", "11:00"}, expected: false},
		{name: "One minute overlap", a: [2]string{"09:00", "10:01"}, b: [2]string{"10:00", "11:00"}, expected: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			aStart, aEnd := at(tc.a[0]), at(tc.a[1])
			bStart, bEnd := at(tc.b[0]), at(tc.b[1])

			assert.Equal(t, tc.expected, Overlaps(aStart, aEnd, bStart, bEnd))
			// Symmetry.
			assert.Equal(t, tc.expected, Overlaps(bStart, bEnd, aStart, aEnd))
		})
	}
}

func TestOverlaps_SymmetryGrid(t *testing.T) {
	base := at("10:00")
	for as := 0; as < 6; as++ {
		for ae := as + 1; ae <= 6; ae++ {
			for bs := 0; bs < 6; bs++ {
				for be := bs + 1; be <= 6; be++ {
					a0 := base.Add(time.Duration(as) * 15 * time.Minute)
					a1 := base.Add(time.Duration(ae) * 15 * time.Minute)
					b0 := base.Add(time.Duration(bs) * 15 * time.Minute)
					b1 := base.Add(time.Duration(be) * 15 * time.Minute)

					got := Overlaps(a0, a1, b0, b1)
					require.Equal(t, got, Overlaps(b0, b1, a0, a1))
					if ae == bs || be == as {
						require.False(t, got, "boundary-touching intervals must not overlap")
					}
				}
			}
		}
	}
}

func TestNew(t *testing.T) {
	iv, err := New(at("10:00"), at("11:00"))
	require.NoError(t, err)
	assert.Equal(t, time.Hour, iv.Duration())

	_, err = New(at("11:00"), at("11:00"))
	assert.ErrorIs(t, err, ErrInvalidInterval)

	_, err = New(at("11:00"), at("10:00"))
	assert.ErrorIs(t, err, ErrInvalidInterval)
}

func TestInterval_Overlaps(t *testing.T) {
	a := Interval{Start: at("10:00"), End: at("11:00")}
	b := Interval{Start: at("11:00"), End: at("12:00")}
	c := Interval{Start: at("10:59"), End: at("12:00")}

	assert.False(t, a.Overlaps(b))
	assert.True(t, a.Overlaps(c))
	assert.True(t, c.Overlaps(b))
}
