package utils

import (
	"math"
)

// Position is a screen coordinate in pixels.
type Position struct {
	X int
	Y int
}

// CalculateDistance returns the Euclidean distance between two positions.
func CalculateDistance(p1, p2 Position) float64 {
	dx := float64(p1.X - p2.X)
	dy := float64(p1.Y - p2.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

// Nearest returns the index of the position closest to origin. Ties keep the
// earliest index. Returns -1 for an empty slice.
func Nearest(origin Position, positions []Position) int {
	best := -1
	bestDist := math.MaxFloat64
	for i, p := range positions {
		d := CalculateDistance(origin, p)
		if d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best
}

// Abs returns the absolute value of an int.
func Abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
