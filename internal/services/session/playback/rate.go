package playback

const (
	maxRate = 16
	minRate = -16
)

// NextRate moves rate one step along the playback-rate ladder
// -16 .. -2, -1, 0.25, 0.5, 0.75, 1, 2 .. 16. Steps are additive by 0.25
// in (0, 1] and multiplicative by 2 when |rate| >= 1. Stepping down from
// 0.25 jumps to -1 and stepping up from -1 jumps to 0.25. Stepping past
// either end returns rate unchanged.
func NextRate(rate float64, direction int) float64 {
	switch {
	case direction > 0:
		switch {
		case rate == -1:
			return 0.25
		case rate < -1:
			return rate / 2
		case rate > 0 && rate < 1:
			return rate + 0.25
		case rate >= 1 && rate < maxRate:
			return rate * 2
		}
	case direction < 0:
		switch {
		case rate > 1:
			return rate / 2
		case rate > 0.25 && rate <= 1:
			return rate - 0.25
		case rate == 0.25:
			return -1
		case rate <= -1 && rate > minRate:
			return rate * 2
		}
	}
	return rate
}
