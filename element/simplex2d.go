package element

import (
	"math"

	"github.com/notargets/gosem/DG1D"
	"github.com/notargets/gosem/utils"
)

func newTri(N int) (re *Reference) {
	var (
		Np   = (N + 1) * (N + 2) / 2
		x, y = Nodes2D(N)
	)
	re = &Reference{
		Type: utils.Triangle, N: N, Np: Np, Nverts: 3, Dim: 2,
		Lattice: make([][]int, Np), LatticeScale: N,
	}
	re.R, re.S = XYtoRS(x, y)
	// Same traversal as Nodes2D: l1 = n/N weights vertex 2, l3 = m/N weights vertex 1
	var sk int
	for n := 0; n <= N; n++ {
		for m := 0; m <= N-n; m++ {
			re.Lattice[sk] = []int{N - n - m, m, n}
			sk++
		}
	}
	re.V = Vandermonde2D(N, re.R, re.S)
	re.Vinv = re.V.InverseWithCheck()
	Vr, Vs := GradVandermonde2D(N, re.R, re.S)
	re.Dr, re.Ds = Vr.Mul(re.Vinv), Vs.Mul(re.Vinv)
	re.Mass = re.Vinv.Transpose().Mul(re.Vinv)
	re.W = re.Mass.RowSums()
	re.finishFaces()
	// Face parameter: r on faces 0 and 1, s on face 2
	re.FaceMass = make([]utils.Matrix, re.Nfaces)
	for f, fm := range re.Fmask {
		src := re.R
		if f == 2 {
			src = re.S
		}
		fr := make([]float64, len(fm))
		for i, n := range fm {
			fr[i] = src[n]
		}
		re.FaceMass[f] = DG1D.MassMatrix1D(DG1D.Vandermonde1D(N, fr))
		re.FaceMass[f].SetReadOnly("FaceMass")
	}
	return
}

// Nodes2D computes the warp & blend nodes of order N in the equilateral triangle
func Nodes2D(N int) (x, y []float64) {
	var (
		alpha      float64
		Np         = (N + 1) * (N + 2) / 2
		L1, L2, L3 = make([]float64, Np), make([]float64, Np), make([]float64, Np)
	)
	alpopt := []float64{
		0.0000, 0.0000, 1.4152, 0.1001, 0.2751,
		0.9800, 1.0999, 1.2832, 1.3648, 1.4773,
		1.4959, 1.5743, 1.5770, 1.6223, 1.6258,
	}
	if N < 16 {
		alpha = alpopt[N-1]
	} else {
		alpha = 5. / 3.
	}
	// Equidistributed nodes on the equilateral triangle
	var (
		fn = 1. / float64(N)
		sk int
	)
	for n := 0; n < N+1; n++ {
		for m := 0; m < (N + 1 - n); m++ {
			L1[sk] = float64(n) * fn
			L3[sk] = float64(m) * fn
			sk++
		}
	}
	x, y = make([]float64, Np), make([]float64, Np)
	d32, d13, d21 := make([]float64, Np), make([]float64, Np), make([]float64, Np)
	for i := range x {
		L2[i] = 1 - L1[i] - L3[i]
		x[i] = L3[i] - L2[i]
		y[i] = (2*L1[i] - L3[i] - L2[i]) / math.Sqrt(3)
		d32[i], d13[i], d21[i] = L3[i]-L2[i], L1[i]-L3[i], L2[i]-L1[i]
	}
	// Amount of warp for each node, for each edge
	warpf1 := Warpfactor(N, d32)
	warpf2 := Warpfactor(N, d13)
	warpf3 := Warpfactor(N, d21)
	for i := range x {
		blend1 := 4 * L2[i] * L3[i]
		blend2 := 4 * L1[i] * L3[i]
		blend3 := 4 * L1[i] * L2[i]
		warp1 := blend1 * warpf1[i] * (1 + utils.POW(alpha*L1[i], 2))
		warp2 := blend2 * warpf2[i] * (1 + utils.POW(alpha*L2[i], 2))
		warp3 := blend3 * warpf3[i] * (1 + utils.POW(alpha*L3[i], 2))
		x[i] += warp1 + math.Cos(2*math.Pi/3)*warp2 + math.Cos(4*math.Pi/3)*warp3
		y[i] += math.Sin(2*math.Pi/3)*warp2 + math.Sin(4*math.Pi/3)*warp3
	}
	return
}

// Warpfactor interpolates the displacement from equidistant to GLL nodes at rout
// and divides out the edge blend (1-r^2) away from the endpoints.
func Warpfactor(N int, rout []float64) (warp []float64) {
	var (
		LGLr = DG1D.JacobiGL(0, 0, N)
		req  = make([]float64, N+1)
	)
	for i := range req {
		req[i] = -1 + 2*float64(i)/float64(N)
	}
	warp = make([]float64, len(rout))
	for k, r := range rout {
		var val float64
		for i := 0; i <= N; i++ {
			l := 1.
			for j := 0; j <= N; j++ {
				if j != i {
					l *= (r - req[j]) / (req[i] - req[j])
				}
			}
			val += l * (LGLr[i] - req[i])
		}
		if math.Abs(r) < 1.0-1.e-10 {
			val /= 1 - r*r
		} else {
			val = 0
		}
		warp[k] = val
	}
	return
}

// XYtoRS maps the equilateral triangle to the reference triangle
func XYtoRS(x, y []float64) (r, s []float64) {
	r, s = make([]float64, len(x)), make([]float64, len(x))
	sr3 := math.Sqrt(3)
	for i := range x {
		l1 := (sr3*y[i] + 1) / 3
		l2 := (-3*x[i] - sr3*y[i] + 2) / 6
		l3 := (3*x[i] - sr3*y[i] + 2) / 6
		r[i] = -l2 + l3 - l1
		s[i] = -l2 - l3 + l1
	}
	return
}

func RStoAB(r, s []float64) (a, b []float64) {
	a, b = make([]float64, len(r)), make([]float64, len(r))
	for n := range r {
		if s[n] != 1 {
			a[n] = 2*(1+r[n])/(1-s[n]) - 1
		} else {
			a[n] = -1
		}
		b[n] = s[n]
	}
	return
}

// Simplex2DP evaluates the orthonormal (i,j) mode on the triangle
func Simplex2DP(r, s []float64, i, j int) (P []float64) {
	var (
		a, b = RStoAB(r, s)
		h1   = DG1D.JacobiP(a, 0, 0, i)
		h2   = DG1D.JacobiP(b, float64(2*i+1), 0, j)
		sq2  = math.Sqrt(2)
	)
	P = make([]float64, len(r))
	for ii := range P {
		P[ii] = sq2 * h1[ii] * h2[ii] * utils.POW(1-b[ii], i)
	}
	return
}

func GradSimplex2DP(r, s []float64, id, jd int) (ddr, dds []float64) {
	var (
		a, b = RStoAB(r, s)
		fa   = DG1D.JacobiP(a, 0, 0, id)
		dfa  = DG1D.GradJacobiP(a, 0, 0, id)
		gb   = DG1D.JacobiP(b, 2*float64(id)+1, 0, jd)
		dgb  = DG1D.GradJacobiP(b, 2*float64(id)+1, 0, jd)
		norm = math.Pow(2, float64(id)+0.5)
	)
	ddr, dds = make([]float64, len(r)), make([]float64, len(r))
	for i := range ddr {
		// d/dr = (2/(1-b)) d/da
		ddr[i] = dfa[i] * gb[i]
		if id > 0 {
			ddr[i] *= utils.POW(0.5*(1-b[i]), id-1)
		}
		// d/ds = ((1+a)/2)/((1-b)/2) d/da + d/db
		dds[i] = 0.5 * dfa[i] * gb[i] * (1 + a[i])
		if id > 0 {
			dds[i] *= utils.POW(0.5*(1-b[i]), id-1)
		}
		tmp := dgb[i] * utils.POW(0.5*(1-b[i]), id)
		if id > 0 {
			tmp -= 0.5 * float64(id) * gb[i] * utils.POW(0.5*(1-b[i]), id-1)
		}
		dds[i] += fa[i] * tmp
		ddr[i] *= norm
		dds[i] *= norm
	}
	return
}

func Vandermonde2D(N int, r, s []float64) (V2D utils.Matrix) {
	V2D = utils.NewMatrix(len(r), (N+1)*(N+2)/2)
	var sk int
	for i := 0; i <= N; i++ {
		for j := 0; j <= (N - i); j++ {
			V2D.SetCol(sk, Simplex2DP(r, s, i, j))
			sk++
		}
	}
	return
}

func GradVandermonde2D(N int, r, s []float64) (V2Dr, V2Ds utils.Matrix) {
	var (
		Np = (N + 1) * (N + 2) / 2
		Nr = len(r)
	)
	V2Dr, V2Ds = utils.NewMatrix(Nr, Np), utils.NewMatrix(Nr, Np)
	var sk int
	for i := 0; i <= N; i++ {
		for j := 0; j <= (N - i); j++ {
			ddr, dds := GradSimplex2DP(r, s, i, j)
			V2Dr.SetCol(sk, ddr)
			V2Ds.SetCol(sk, dds)
			sk++
		}
	}
	return
}
