// Package formulas contains the numeric building blocks used by the
// analysis module. Statistical functions delegate to gonum; indicator
// functions delegate to go-talib.
package formulas

import (
	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the standard deviation of a slice of float64 values
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// Herfindahl calculates the Herfindahl-Hirschman concentration index of a
// set of portfolio weights. Weights are normalized first, so the input
// does not have to sum to 1. Result is in (0, 1]; 1 means everything is
// concentrated in a single asset.
func Herfindahl(weights []float64) float64 {
	var total float64
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total == 0 {
		return 0
	}

	var hhi float64
	for _, w := range weights {
		if w > 0 {
			share := w / total
			hhi += share * share
		}
	}
	return hhi
}

// DiversificationScore converts a Herfindahl index into a 0..1 score where
// 1 is perfectly even across assets and 0 is a single-asset portfolio.
// With n assets the minimum possible HHI is 1/n, so the score rescales the
// observed index over the [1/n, 1] range.
func DiversificationScore(weights []float64) float64 {
	n := 0
	for _, w := range weights {
		if w > 0 {
			n++
		}
	}
	if n <= 1 {
		return 0
	}

	hhi := Herfindahl(weights)
	minHHI := 1.0 / float64(n)
	return (1 - hhi) / (1 - minHHI)
}

// PercentChange returns the percentage change from first to last value.
func PercentChange(first, last float64) float64 {
	if first == 0 {
		return 0
	}
	return (last - first) / first * 100
}
