package fleet

import "gonum.org/v1/gonum/stat"

// estimateDailyMiles fits a least-squares line through the odometer history
// and converts the slope to miles per day. At least two samples spanning a
// non-zero interval are required.
func estimateDailyMiles(h []odoSample) (float64, bool) {
	if len(h) < 2 {
		return 0, false
	}
	first := h[0].at
	xs := make([]float64, len(h))
	ys := make([]float64, len(h))
	for i, s := range h {
		xs[i] = s.at.Sub(first).Hours()
		ys[i] = s.odometer
	}
	if xs[len(xs)-1] <= 0 {
		return 0, false
	}
	_, slope := stat.LinearRegression(xs, ys, nil, false)
	daily := slope * 24
	if daily < 0 {
		daily = 0
	}
	return daily, true
}
