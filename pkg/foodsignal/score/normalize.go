package score

import "math"

// normalize rescales values onto [0,1]. A constant cohort maps
// positive values to 1 and zeros to 0.
func normalize(scheme Normalization, values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	for i, v := range values {
		switch {
		case hi == lo:
			if v > 0 {
				out[i] = 1
			}
		case scheme == NormalizeMax:
			if hi > 0 {
				out[i] = v / hi
			}
		default:
			out[i] = (v - lo) / (hi - lo)
		}
		out[i] = clamp01(out[i])
	}
	return out
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
