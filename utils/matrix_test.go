package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatrixOps(t *testing.T) {
	A := NewMatrix(2, 3, []float64{
		1, 2, 3,
		4, 5, 6,
	})
	At := A.Transpose()
	nr, nc := At.Dims()
	assert.Equal(t, 3, nr)
	assert.Equal(t, 2, nc)
	assert.Equal(t, []float64{1, 4, 2, 5, 3, 6}, At.DataP)
	assert.Equal(t, []float64{4, 5, 6}, A.Row(1))
	assert.Equal(t, []float64{3, 6}, A.Col(2))
	assert.Equal(t, []float64{14, 32}, A.MulVec([]float64{1, 2, 3}))
	assert.Equal(t, []float64{6, 15}, A.RowSums())

	AAt := A.Mul(At)
	assert.Equal(t, []float64{14, 32, 32, 77}, AAt.DataP)

	B := NewMatrix(2, 2, []float64{4, 7, 2, 6})
	Binv, err := B.Inverse()
	require.NoError(t, err)
	I := B.Mul(Binv)
	for i, val := range NewIdentity(2).DataP {
		assert.InDelta(t, val, I.DataP[i], 1e-14)
	}
	X := B.LUSolve(NewIdentity(2))
	for i, val := range Binv.DataP {
		assert.InDelta(t, val, X.DataP[i], 1e-14)
	}

	S := NewMatrix(2, 2, []float64{1, 2, 2, 4})
	_, err = S.Inverse()
	assert.Error(t, err)

	C := A.Copy().Scale(2)
	assert.Equal(t, 12., C.Max())
	assert.Equal(t, 1., A.Min())
	C.SetReadOnly("C")
	assert.Panics(t, func() { C.Scale(2) })
	assert.Panics(t, func() { A.Add(B) })
}
