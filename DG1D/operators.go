package DG1D

import (
	"github.com/notargets/gosem/utils"
)

// Vandermonde1D is V[i][j] = P_j(r_i) for the normalized Legendre basis
func Vandermonde1D(N int, r []float64) (V utils.Matrix) {
	V = utils.NewMatrix(len(r), N+1)
	for j := 0; j < N+1; j++ {
		V.SetCol(j, JacobiP(r, 0, 0, j))
	}
	return
}

func GradVandermonde1D(N int, r []float64) (Vr utils.Matrix) {
	Vr = utils.NewMatrix(len(r), N+1)
	for j := 0; j < N+1; j++ {
		Vr.SetCol(j, GradJacobiP(r, 0, 0, j))
	}
	return
}

// Dmatrix1D is the nodal differentiation matrix Vr*inv(V)
func Dmatrix1D(N int, r []float64, V utils.Matrix) (Dr utils.Matrix) {
	Vr := GradVandermonde1D(N, r)
	Dr = V.Transpose().LUSolve(Vr.Transpose()).Transpose()
	return
}

// MassMatrix1D is the exact nodal mass matrix inv(V*V^T)
func MassMatrix1D(V utils.Matrix) (M utils.Matrix) {
	M = V.Mul(V.Transpose()).InverseWithCheck()
	return
}

// GLL returns the Gauss-Lobatto-Legendre nodes, weights and differentiation
// matrix of order N.
func GLL(N int) (r, w []float64, Dr utils.Matrix) {
	r = JacobiGL(0, 0, N)
	w = GLLWeights(N, r)
	Dr = Dmatrix1D(N, r, Vandermonde1D(N, r))
	return
}
