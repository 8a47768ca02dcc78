package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSparse(t *testing.T) {
	dok := NewDOK(3, 4)
	dok.Set(0, 0, 2).Set(0, 3, -1).Set(2, 1, 4)
	dok.Set(2, 1, 5) // Overwrites
	assert.Equal(t, 3, dok.NNZ())
	assert.Equal(t, 5., dok.At(2, 1))

	A := dok.ToCSR()
	nr, nc := A.Dims()
	assert.Equal(t, []int{3, 4}, []int{nr, nc})
	assert.Equal(t, []float64{2, -1, 5}, A.Data())
	assert.Equal(t, []float64{2 - 4, 0, 5}, A.MulVec([]float64{1, 1, 1, 4}))
	var entries [][3]float64
	A.DoNonZero(func(i, j int, v float64) {
		entries = append(entries, [3]float64{float64(i), float64(j), v})
	})
	assert.Equal(t, [][3]float64{{0, 0, 2}, {0, 3, -1}, {2, 1, 5}}, entries)
	assert.Panics(t, func() { A.MulVec([]float64{1}) })

	dok.SetReadOnly("dok")
	assert.Panics(t, func() { dok.Set(1, 1, 1) })
}
