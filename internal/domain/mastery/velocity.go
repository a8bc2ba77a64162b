package mastery

import (
	"fmt"
	"math"
)

// Trend labels the direction of mastery change over a window.
type Trend string

const (
	TrendImproving        Trend = "improving"
	TrendDeclining        Trend = "declining"
	TrendStable           Trend = "stable"
	TrendInsufficientData Trend = "insufficient_data"
)

// Category buckets a student's learning pace.
type Category string

const (
	CategoryFast       Category = "Fast Progressing"
	CategorySteady     Category = "Steady Progressing"
	CategoryPlateaued  Category = "Plateaued"
	CategoryStruggling Category = "Struggling"
	CategoryUnknown    Category = "Unknown"
)

// Velocity classification boundaries, in score points per day.
const (
	fastVelocity      = 1.5
	steadyVelocity    = 0.2
	plateauedVelocity = -0.5

	// minElapsedDays guards the division when the window boundary
	// snapshots are recorded in rapid succession.
	minElapsedDays = 0.1

	// DefaultWindowDays is the default velocity window.
	DefaultWindowDays = 14
)

// VelocityResult describes the learning pace of one student over a
// snapshot window. Velocity is nil when the window holds fewer than two
// snapshots.
type VelocityResult struct {
	StudentID   StudentID
	Velocity    *float64
	Trend       Trend
	Category    Category
	Explanation string
}

// ComputeVelocity derives learning velocity from a window of snapshots
// ordered by timestamp ascending. Only the window boundary snapshots
// participate; intermediate regressions inside the window do not affect
// the result.
func ComputeVelocity(studentID StudentID, snapshots []*Snapshot) VelocityResult {
	if len(snapshots) < 2 {
		return VelocityResult{
			StudentID:   studentID,
			Velocity:    nil,
			Trend:       TrendInsufficientData,
			Category:    CategoryUnknown,
			Explanation: "Not enough data points to calculate velocity.",
		}
	}

	first := snapshots[0]
	last := snapshots[len(snapshots)-1]

	elapsedDays := last.Timestamp.Sub(first.Timestamp).Hours() / 24
	if elapsedDays < minElapsedDays {
		elapsedDays = minElapsedDays
	}

	masteryDelta := last.MasteryScore - first.MasteryScore
	velocity := masteryDelta / elapsedDays

	// Classify on the raw velocity; rounding applies to the reported
	// value only, so boundary-adjacent inputs land in the right band.
	var category Category
	switch {
	case velocity > fastVelocity:
		category = CategoryFast
	case velocity >= steadyVelocity:
		category = CategorySteady
	case velocity > plateauedVelocity:
		category = CategoryPlateaued
	default:
		category = CategoryStruggling
	}

	trend := TrendStable
	if velocity > 0 {
		trend = TrendImproving
	} else if velocity < 0 {
		trend = TrendDeclining
	}

	reported := roundTo(velocity, 2)

	return VelocityResult{
		StudentID:   studentID,
		Velocity:    &reported,
		Trend:       trend,
		Category:    category,
		Explanation: fmt.Sprintf("Mastery changed by %.1f over %.1f days.", masteryDelta, elapsedDays),
	}
}

func roundTo(v float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(v*factor) / factor
}
