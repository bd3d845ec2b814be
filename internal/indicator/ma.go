package indicator

// SMA computes the simple moving average of the last `period` values.
// Returns 0 when there is not enough history.
func SMA(values []float64, period int) float64 {
	if period <= 0 || len(values) < period {
		return 0
	}
	sum := 0.0
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period)
}

// AvgVolume computes the average of the last `period` volumes.
func AvgVolume(volumes []float64, period int) float64 {
	return SMA(volumes, period)
}
