package DG1D

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gosem/utils"
)

// JacobiGL returns the N+1 Gauss-Lobatto points of the (alpha, beta) Jacobi
// weight on [-1, 1], in ascending order.
func JacobiGL(alpha, beta float64, N int) (x []float64) {
	x = make([]float64, N+1)
	if N == 0 {
		return
	}
	x[0], x[N] = -1, 1
	if N == 1 {
		return
	}
	xint, _ := JacobiGQ(alpha+1, beta+1, N-2)
	copy(x[1:N], xint)
	if alpha == beta {
		// Enforce exact antisymmetry so that mirrored nodes coincide bitwise
		for i := 0; i <= N/2; i++ {
			val := 0.5 * (x[N-i] - x[i])
			x[i], x[N-i] = -val, val
		}
		if N%2 == 0 {
			x[N/2] = 0
		}
	}
	return
}

// GLLWeights returns the Gauss-Lobatto-Legendre quadrature weights for the nodes
// returned by JacobiGL(0, 0, N).
func GLLWeights(N int, x []float64) (w []float64) {
	w = make([]float64, len(x))
	if N == 0 {
		w[0] = 2
		return
	}
	fN := float64(N)
	// JacobiP is normalized; recover the classical Legendre value P_N
	pN := JacobiP(x, 0, 0, N)
	scale := math.Sqrt((2*fN + 1) / 2)
	for i := range x {
		p := pN[i] / scale
		w[i] = 2 / (fN * (fN + 1) * p * p)
	}
	return
}

// JacobiGQ computes the N+1 Gauss quadrature points and weights of the (alpha,
// beta) Jacobi weight from the eigen-decomposition of the Golub-Welsch matrix.
func JacobiGQ(alpha, beta float64, N int) (x, w []float64) {
	if N == 0 {
		x = []float64{-(alpha - beta) / (alpha + beta + 2.)}
		w = []float64{2.}
		return
	}
	var (
		h1 = make([]float64, N+1)
		JJ = mat.NewSymDense(N+1, nil)
	)
	for i := range h1 {
		h1[i] = 2*float64(i) + alpha + beta
	}
	fac := -(alpha*alpha - beta*beta)
	for i := 0; i <= N; i++ {
		if i == 0 && alpha+beta < 10*1.e-16 {
			continue
		}
		JJ.SetSym(i, i, fac/(h1[i]*(h1[i]+2.)))
	}
	for i := 0; i < N; i++ {
		ip1 := float64(i + 1)
		val := h1[i]
		JJ.SetSym(i, i+1, 2./(val+2.)*
			math.Sqrt(ip1*(ip1+alpha+beta)*(ip1+alpha)*(ip1+beta)/((val+1.)*(val+3.))))
	}
	var eig mat.EigenSym
	if ok := eig.Factorize(JJ, true); !ok {
		panic("eigenvalue decomposition failed")
	}
	x = eig.Values(nil)
	var VV mat.Dense
	eig.VectorsTo(&VV)
	w = make([]float64, N+1)
	g0 := gamma0(alpha, beta)
	for i := range w {
		v := VV.At(0, i)
		w[i] = v * v * g0
	}
	return
}

// JacobiP evaluates the normalized Jacobi polynomial of order N at r.
func JacobiP(r []float64, alpha, beta float64, N int) (p []float64) {
	var (
		Nc = len(r)
		rg = 1. / math.Sqrt(gamma0(alpha, beta))
	)
	pOld := utils.ConstArray(Nc, rg)
	if N == 0 {
		return pOld
	}
	var (
		ab  = alpha + beta
		rg1 = 1. / math.Sqrt(gamma1(alpha, beta))
		pl  = make([]float64, Nc)
	)
	for i, val := range r {
		pl[i] = rg1 * ((ab+2.0)*val/2.0 + (alpha-beta)/2.0)
	}
	if N == 1 {
		return pl
	}
	var (
		a1   = alpha + 1.
		b1   = beta + 1.
		ab1  = ab + 1.
		aold = 2.0 * math.Sqrt(a1*b1/(ab+3.0)) / (ab + 2.0)
	)
	for i := 0; i < N-1; i++ {
		ip1 := float64(i + 1)
		ip2 := ip1 + 1
		h1 := 2.0*ip1 + ab
		anew := 2.0 / (h1 + 2.0) * math.Sqrt(ip2*(ip1+ab1)*(ip1+a1)*(ip1+b1)/(h1+1.0)/(h1+3.0))
		bnew := -(alpha*alpha - beta*beta) / h1 / (h1 + 2.0)
		pNew := make([]float64, Nc)
		for j, val := range r {
			pNew[j] = (-aold*pOld[j] + (val-bnew)*pl[j]) / anew
		}
		pOld, pl = pl, pNew
		aold = anew
	}
	return pl
}

// GradJacobiP evaluates the derivative of the normalized Jacobi polynomial.
func GradJacobiP(r []float64, alpha, beta float64, N int) (p []float64) {
	if N == 0 {
		return make([]float64, len(r))
	}
	p = JacobiP(r, alpha+1, beta+1, N-1)
	fN := float64(N)
	fac := math.Sqrt(fN * (fN + alpha + beta + 1))
	for i := range p {
		p[i] *= fac
	}
	return
}
