// Package progress derives display percentages from flow and walkthrough state.
// Nothing in here holds state.
package progress

import "math"

// Discrete is the "step X of Y" percentage used by wizards.
func Discrete(currentIndex, totalSteps int) int {
	if totalSteps <= 1 {
		return 100
	}

	return int(math.Round(float64(currentIndex) / float64(totalSteps-1) * 100))
}

// Continuous is the percentage of a timed flow, including progress within the current step.
func Continuous(currentIndex, totalSteps int, withinStep float64) float64 {
	if totalSteps <= 0 {
		return 0
	}

	return (float64(currentIndex) + withinStep/100) / float64(totalSteps) * 100
}
