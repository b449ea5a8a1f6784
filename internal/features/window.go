package features

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// window is the trailing observation count for moving averages and volatility
const window = 3

// pctChange returns cur/prev - 1, or 0 when the change is undefined
func pctChange(prev, cur float64) float64 {
	change := cur/prev - 1
	if math.IsNaN(change) || math.IsInf(change, 0) {
		return 0
	}
	return change
}

// trailingMean is the mean of the last window values ending at i, 0 until the window fills
func trailingMean(series []float64, i int) float64 {
	if i < window-1 {
		return 0
	}
	return stat.Mean(series[i-window+1:i+1], nil)
}

// trailingStdDev is the sample standard deviation of the last window values ending at i
func trailingStdDev(series []float64, i int) float64 {
	if i < window-1 {
		return 0
	}
	return stat.StdDev(series[i-window+1:i+1], nil)
}
