package scoring

import "math"

// Default points constants.
const (
	DefaultWorkoutWeight        int64   = 10
	DefaultCompetitionWinWeight int64   = 50
	DefaultStreakMultiplier     float64 = 1.1
)

// PointsEngine turns activity counts into a ranking score:
//
//	base   = workouts*WorkoutWeight + wins*CompetitionWinWeight
//	points = round(base * StreakMultiplier^streak)
type PointsEngine struct {
	WorkoutWeight        int64
	CompetitionWinWeight int64
	StreakMultiplier     float64
}

// DefaultPointsEngine returns the engine with the default constants.
func DefaultPointsEngine() PointsEngine {
	return PointsEngine{
		WorkoutWeight:        DefaultWorkoutWeight,
		CompetitionWinWeight: DefaultCompetitionWinWeight,
		StreakMultiplier:     DefaultStreakMultiplier,
	}
}

// Points computes the score for the given counts.
func (e PointsEngine) Points(workouts, streak, wins int64) int64 {
	base := float64(workouts*e.WorkoutWeight + wins*e.CompetitionWinWeight)
	multiplier := 1.0
	if streak > 0 {
		multiplier = math.Pow(e.StreakMultiplier, float64(streak))
	}
	return int64(math.Round(base * multiplier))
}
