package utils

import "math"

const (
	NODETOL = 1.e-12
)

func ConstArray(N int, val float64) (v []float64) {
	v = make([]float64, N)
	for i := range v {
		v[i] = val
	}
	return
}

// POW is an integer power that avoids math.Pow for the small exponents used by
// the polynomial bases.
func POW(x float64, p int) (y float64) {
	if p > 8 || p < -8 {
		return math.Pow(x, float64(p))
	}
	flipped := p < 0
	if flipped {
		p = -p
	}
	y = 1
	for i := 0; i < p; i++ {
		y *= x
	}
	if flipped {
		y = 1. / y
	}
	return
}

func MinMax(v []float64) (min, max float64) {
	if len(v) == 0 {
		return
	}
	min, max = v[0], v[0]
	for _, val := range v {
		if val < min {
			min = val
		}
		if val > max {
			max = val
		}
	}
	return
}

func MaxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
