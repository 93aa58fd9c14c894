package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPoints_Formula(t *testing.T) {
	e := DefaultPointsEngine()

	tests := []struct {
		name     string
		workouts int64
		streak   int64
		wins     int64
		want     int64
	}{
		{"nothing", 0, 0, 0, 0},
		{"workouts only", 5, 0, 0, 50},
		{"wins only", 0, 0, 2, 100},
		{"streak of one", 5, 1, 0, 55},
		{"streak of two rounds half up", 5, 2, 0, 61},
		{"streak of three", 10, 3, 0, 133},
		{"everything", 3, 2, 1, 97},
		{"streak without base", 0, 7, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Points(tt.workouts, tt.streak, tt.wins))
		})
	}
}

func TestPoints_MonotonicInEachArgument(t *testing.T) {
	e := DefaultPointsEngine()

	for w := int64(1); w < 20; w++ {
		assert.Greater(t, e.Points(w+1, 2, 1), e.Points(w, 2, 1), "workouts %d", w)
	}
	for s := int64(0); s < 20; s++ {
		assert.Greater(t, e.Points(10, s+1, 1), e.Points(10, s, 1), "streak %d", s)
	}
	for c := int64(0); c < 20; c++ {
		assert.Greater(t, e.Points(10, 2, c+1), e.Points(10, 2, c), "wins %d", c)
	}
}

func TestPoints_StreakIsExponential(t *testing.T) {
	e := DefaultPointsEngine()

	assert.Greater(t, e.Points(10, 3, 0), e.Points(10, 0, 0))

	// Successive streak days add more and more points; a linear term would add
	// the same amount every time.
	gain1 := e.Points(100, 11, 0) - e.Points(100, 10, 0)
	gain2 := e.Points(100, 21, 0) - e.Points(100, 20, 0)
	assert.Greater(t, gain2, gain1)

	long := e.Points(10, 30, 0)
	assert.Greater(t, long, 10*e.Points(10, 0, 0), "a month-long streak beats ten times the volume")
}

func TestPoints_CustomConstants(t *testing.T) {
	e := PointsEngine{WorkoutWeight: 1, CompetitionWinWeight: 3, StreakMultiplier: 2}

	assert.Equal(t, int64(5), e.Points(2, 0, 1))
	assert.Equal(t, int64(40), e.Points(2, 3, 1))
}
