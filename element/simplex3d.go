package element

import (
	"math"

	"github.com/notargets/gosem/DG1D"
	"github.com/notargets/gosem/utils"
)

func newTet(N int) (re *Reference) {
	var (
		Np      = (N + 1) * (N + 2) * (N + 3) / 6
		X, Y, Z = Nodes3D(N)
	)
	re = &Reference{
		Type: utils.Tet, N: N, Np: Np, Nverts: 4, Dim: 3,
		Lattice: make([][]int, Np), LatticeScale: N,
	}
	re.R, re.S, re.T = XYZtoRST(X, Y, Z)
	// Same traversal as EquiNodes3D: l weights vertex 1, m vertex 2, n vertex 3
	var sk int
	for n := 0; n <= N; n++ {
		for m := 0; m <= N-n; m++ {
			for l := 0; l <= N-n-m; l++ {
				re.Lattice[sk] = []int{N - l - m - n, l, m, n}
				sk++
			}
		}
	}
	re.V = Vandermonde3D(N, re.R, re.S, re.T)
	re.Vinv = re.V.InverseWithCheck()
	Vr, Vs, Vt := GradVandermonde3D(N, re.R, re.S, re.T)
	re.Dr, re.Ds, re.Dt = Vr.Mul(re.Vinv), Vs.Mul(re.Vinv), Vt.Mul(re.Vinv)
	re.Mass = re.Vinv.Transpose().Mul(re.Vinv)
	re.W = re.Mass.RowSums()
	re.finishFaces()
	// Face parameters: (r,s), (r,t), (s,t), (s,t)
	params := [4][2][]float64{{re.R, re.S}, {re.R, re.T}, {re.S, re.T}, {re.S, re.T}}
	re.FaceMass = make([]utils.Matrix, re.Nfaces)
	for f, fm := range re.Fmask {
		fa, fb := make([]float64, len(fm)), make([]float64, len(fm))
		for i, n := range fm {
			fa[i], fb[i] = params[f][0][n], params[f][1][n]
		}
		Vf := Vandermonde2D(N, fa, fb)
		re.FaceMass[f] = Vf.Mul(Vf.Transpose()).InverseWithCheck()
		re.FaceMass[f].SetReadOnly("FaceMass")
	}
	return
}

var (
	tetV1 = []float64{-1.0, -1.0 / math.Sqrt(3.0), -1.0 / math.Sqrt(6.0)}
	tetV2 = []float64{1.0, -1.0 / math.Sqrt(3.0), -1.0 / math.Sqrt(6.0)}
	tetV3 = []float64{0.0, 2.0 / math.Sqrt(3.0), -1.0 / math.Sqrt(6.0)}
	tetV4 = []float64{0.0, 0.0, 3.0 / math.Sqrt(6.0)}
)

// Nodes3D computes the warp & blend nodes of order N in the equilateral
// tetrahedron.
func Nodes3D(N int) (X, Y, Z []float64) {
	alpopt := []float64{
		0.0000, 0.0000, 0.0000, 0.1002, 1.1332,
		1.5608, 1.3413, 1.2577, 1.1603, 1.10153,
		0.6080, 0.4523, 0.8856, 0.8717, 0.9655,
	}
	alpha := 1.0
	if N < 16 {
		alpha = alpopt[N-1]
	}
	var (
		Np                     = (N + 1) * (N + 2) * (N + 3) / 6
		tol                    = 1.e-10
		r, s, t                = EquiNodes3D(N)
		L1, L2, L3, L4         = make([]float64, Np), make([]float64, Np), make([]float64, Np), make([]float64, Np)
		t1, t2                 [4][]float64
		shiftX, shiftY, shiftZ = make([]float64, Np), make([]float64, Np), make([]float64, Np)
	)
	for i := 0; i < Np; i++ {
		L1[i] = (1.0 + t[i]) / 2.0
		L2[i] = (1.0 + s[i]) / 2.0
		L3[i] = -(1.0 + r[i] + s[i] + t[i]) / 2.0
		L4[i] = (1.0 + r[i]) / 2.0
	}
	// Orthogonal axis tangents on the faces
	t1[0], t2[0] = vecSub(tetV2, tetV1), vecSub(tetV3, vecMid(tetV1, tetV2))
	t1[1], t2[1] = vecSub(tetV2, tetV1), vecSub(tetV4, vecMid(tetV1, tetV2))
	t1[2], t2[2] = vecSub(tetV3, tetV2), vecSub(tetV4, vecMid(tetV2, tetV3))
	t1[3], t2[3] = vecSub(tetV3, tetV1), vecSub(tetV4, vecMid(tetV1, tetV3))
	for n := 0; n < 4; n++ {
		t1[n], t2[n] = vecNormalize(t1[n]), vecNormalize(t2[n])
	}
	X, Y, Z = make([]float64, Np), make([]float64, Np), make([]float64, Np)
	for i := 0; i < Np; i++ {
		X[i] = L3[i]*tetV1[0] + L4[i]*tetV2[0] + L2[i]*tetV3[0] + L1[i]*tetV4[0]
		Y[i] = L3[i]*tetV1[1] + L4[i]*tetV2[1] + L2[i]*tetV3[1] + L1[i]*tetV4[1]
		Z[i] = L3[i]*tetV1[2] + L4[i]*tetV2[2] + L2[i]*tetV3[2] + L1[i]*tetV4[2]
	}
	for face := 0; face < 4; face++ {
		var La, Lb, Lc, Ld []float64
		switch face {
		case 0:
			La, Lb, Lc, Ld = L1, L2, L3, L4
		case 1:
			La, Lb, Lc, Ld = L2, L1, L3, L4
		case 2:
			La, Lb, Lc, Ld = L3, L1, L4, L2
		case 3:
			La, Lb, Lc, Ld = L4, L1, L3, L2
		}
		// Warp tangential to the face
		warp1, warp2 := evalshift(N, alpha, Lb, Lc, Ld)
		for i := 0; i < Np; i++ {
			blend := Lb[i] * Lc[i] * Ld[i]
			denom := (Lb[i] + 0.5*La[i]) * (Lc[i] + 0.5*La[i]) * (Ld[i] + 0.5*La[i])
			if denom > tol {
				blend = (1.0 + utils.POW(alpha*La[i], 2)) * blend / denom
			}
			shiftX[i] += blend*warp1[i]*t1[face][0] + blend*warp2[i]*t2[face][0]
			shiftY[i] += blend*warp1[i]*t1[face][1] + blend*warp2[i]*t2[face][1]
			shiftZ[i] += blend*warp1[i]*t1[face][2] + blend*warp2[i]*t2[face][2]
		}
		// Nodes on the face but not on all three of its edges take the face warp
		for i := 0; i < Np; i++ {
			var count int
			for _, L := range [][]float64{Lb, Lc, Ld} {
				if L[i] > tol {
					count++
				}
			}
			if La[i] < tol && count < 3 {
				shiftX[i] = warp1[i]*t1[face][0] + warp2[i]*t2[face][0]
				shiftY[i] = warp1[i]*t1[face][1] + warp2[i]*t2[face][1]
				shiftZ[i] = warp1[i]*t1[face][2] + warp2[i]*t2[face][2]
			}
		}
	}
	for i := 0; i < Np; i++ {
		X[i] += shiftX[i]
		Y[i] += shiftY[i]
		Z[i] += shiftZ[i]
	}
	return
}

// EquiNodes3D returns the equidistributed lattice of order N on the reference
// tetrahedron, l (r) fastest, then m (s), then n (t).
func EquiNodes3D(N int) (r, s, t []float64) {
	Np := (N + 1) * (N + 2) * (N + 3) / 6
	r, s, t = make([]float64, Np), make([]float64, Np), make([]float64, Np)
	var sk int
	for n := 0; n <= N; n++ {
		for m := 0; m <= N-n; m++ {
			for l := 0; l <= N-n-m; l++ {
				r[sk] = -1.0 + 2.0*float64(l)/float64(N)
				s[sk] = -1.0 + 2.0*float64(m)/float64(N)
				t[sk] = -1.0 + 2.0*float64(n)/float64(N)
				sk++
			}
		}
	}
	return
}

// evalshift computes the in-face warp of the face with barycentric coordinates
// L1, L2, L3, returned along the two face tangents.
func evalshift(N int, pval float64, L1, L2, L3 []float64) (dx, dy []float64) {
	var (
		n      = len(L1)
		gaussX = DG1D.JacobiGL(0, 0, N)
	)
	for i := range gaussX {
		gaussX[i] = -gaussX[i]
	}
	tv1, tv2, tv3 := make([]float64, n), make([]float64, n), make([]float64, n)
	for i := 0; i < n; i++ {
		tv1[i], tv2[i], tv3[i] = L3[i]-L2[i], L1[i]-L3[i], L2[i]-L1[i]
	}
	warpf1 := evalwarp(N, gaussX, tv1)
	warpf2 := evalwarp(N, gaussX, tv2)
	warpf3 := evalwarp(N, gaussX, tv3)
	dx, dy = make([]float64, n), make([]float64, n)
	for i := 0; i < n; i++ {
		warp1 := L2[i] * L3[i] * 4 * warpf1[i] * (1.0 + utils.POW(pval*L1[i], 2))
		warp2 := L1[i] * L3[i] * 4 * warpf2[i] * (1.0 + utils.POW(pval*L2[i], 2))
		warp3 := L1[i] * L2[i] * 4 * warpf3[i] * (1.0 + utils.POW(pval*L3[i], 2))
		dx[i] = warp1 + math.Cos(2*math.Pi/3)*warp2 + math.Cos(4*math.Pi/3)*warp3
		dy[i] = math.Sin(2*math.Pi/3)*warp2 + math.Sin(4*math.Pi/3)*warp3
	}
	return
}

// evalwarp interpolates the GLL displacement over the descending equidistant
// nodes, with the (1-x^2) edge factor divided out term by term.
func evalwarp(N int, xnodes, xout []float64) (warp []float64) {
	xeq := make([]float64, N+1)
	for i := 0; i <= N; i++ {
		xeq[i] = -1 + 2*float64(N-i)/float64(N)
	}
	warp = make([]float64, len(xout))
	for k, x := range xout {
		for i := 0; i <= N; i++ {
			d := xnodes[i] - xeq[i]
			for j := 1; j < N; j++ {
				if i != j {
					d *= (x - xeq[j]) / (xeq[i] - xeq[j])
				}
			}
			if i != 0 {
				d = -d / (xeq[i] - xeq[0])
			}
			if i != N {
				d = d / (xeq[i] - xeq[N])
			}
			warp[k] += d
		}
	}
	return
}

// XYZtoRST maps the equilateral tetrahedron to the reference tetrahedron
func XYZtoRST(X, Y, Z []float64) (r, s, t []float64) {
	A := utils.NewMatrix(3, 3)
	for d := 0; d < 3; d++ {
		A.Set(d, 0, 0.5*(tetV2[d]-tetV1[d]))
		A.Set(d, 1, 0.5*(tetV3[d]-tetV1[d]))
		A.Set(d, 2, 0.5*(tetV4[d]-tetV1[d]))
	}
	Ainv := A.InverseWithCheck()
	offset := make([]float64, 3)
	for d := range offset {
		offset[d] = 0.5 * (tetV2[d] + tetV3[d] + tetV4[d] - tetV1[d])
	}
	Nc := len(X)
	r, s, t = make([]float64, Nc), make([]float64, Nc), make([]float64, Nc)
	for n := 0; n < Nc; n++ {
		rst := Ainv.MulVec([]float64{X[n] - offset[0], Y[n] - offset[1], Z[n] - offset[2]})
		r[n], s[n], t[n] = rst[0], rst[1], rst[2]
	}
	return
}

func RSTtoABC(r, s, t []float64) (a, b, c []float64) {
	Np := len(r)
	a, b, c = make([]float64, Np), make([]float64, Np), make([]float64, Np)
	for n := 0; n < Np; n++ {
		if s[n]+t[n] != 0.0 {
			a[n] = 2.0*(1.0+r[n])/(-s[n]-t[n]) - 1.0
		} else {
			a[n] = -1.0
		}
		if t[n] != 1.0 {
			b[n] = 2.0*(1.0+s[n])/(1.0-t[n]) - 1.0
		} else {
			b[n] = -1.0
		}
	}
	copy(c, t)
	return
}

// Simplex3DP evaluates the orthonormal (i,j,k) mode on the tetrahedron
func Simplex3DP(a, b, c []float64, i, j, k int) (P []float64) {
	var (
		h1 = DG1D.JacobiP(a, 0, 0, i)
		h2 = DG1D.JacobiP(b, float64(2*i+1), 0, j)
		h3 = DG1D.JacobiP(c, float64(2*(i+j)+2), 0, k)
	)
	P = make([]float64, len(a))
	for n := range P {
		P[n] = 2.0 * math.Sqrt(2.0) * h1[n] * h2[n] * utils.POW(1.0-b[n], i) *
			h3[n] * utils.POW(1.0-c[n], i+j)
	}
	return
}

func GradSimplex3DP(r, s, t []float64, id, jd, kd int) (dr, ds, dt []float64) {
	var (
		n       = len(r)
		a, b, c = RSTtoABC(r, s, t)
		fa      = DG1D.JacobiP(a, 0, 0, id)
		gb      = DG1D.JacobiP(b, float64(2*id+1), 0, jd)
		hc      = DG1D.JacobiP(c, float64(2*(id+jd)+2), 0, kd)
		dfa     = DG1D.GradJacobiP(a, 0, 0, id)
		dgb     = DG1D.GradJacobiP(b, float64(2*id+1), 0, jd)
		dhc     = DG1D.GradJacobiP(c, float64(2*(id+jd)+2), 0, kd)
		norm    = math.Pow(2, float64(2*id+jd)+1.5)
	)
	dr, ds, dt = make([]float64, n), make([]float64, n), make([]float64, n)
	for i := 0; i < n; i++ {
		hb, hcc := 0.5*(1.0-b[i]), 0.5*(1.0-c[i])
		vr := dfa[i] * gb[i] * hc[i]
		if id > 0 {
			vr *= utils.POW(hb, id-1)
		}
		if id+jd > 0 {
			vr *= utils.POW(hcc, id+jd-1)
		}
		vs := 0.5 * (1.0 + a[i]) * vr
		tmp := dgb[i] * utils.POW(hb, id)
		if id > 0 {
			tmp -= 0.5 * float64(id) * gb[i] * utils.POW(hb, id-1)
		}
		if id+jd > 0 {
			tmp *= utils.POW(hcc, id+jd-1)
		}
		tmp = fa[i] * tmp * hc[i]
		vs += tmp
		vt := 0.5*(1.0+a[i])*vr + 0.5*(1.0+b[i])*tmp
		tmp2 := dhc[i] * utils.POW(hcc, id+jd)
		if id+jd > 0 {
			tmp2 -= 0.5 * float64(id+jd) * hc[i] * utils.POW(hcc, id+jd-1)
		}
		vt += fa[i] * gb[i] * tmp2 * utils.POW(hb, id)
		dr[i], ds[i], dt[i] = vr*norm, vs*norm, vt*norm
	}
	return
}

func Vandermonde3D(N int, r, s, t []float64) (V utils.Matrix) {
	var (
		Np      = (N + 1) * (N + 2) * (N + 3) / 6
		a, b, c = RSTtoABC(r, s, t)
		sk      int
	)
	V = utils.NewMatrix(len(r), Np)
	for i := 0; i <= N; i++ {
		for j := 0; j <= N-i; j++ {
			for k := 0; k <= N-i-j; k++ {
				V.SetCol(sk, Simplex3DP(a, b, c, i, j, k))
				sk++
			}
		}
	}
	return
}

func GradVandermonde3D(N int, r, s, t []float64) (Vr, Vs, Vt utils.Matrix) {
	var (
		Np = (N + 1) * (N + 2) * (N + 3) / 6
		sk int
	)
	Vr, Vs, Vt = utils.NewMatrix(len(r), Np), utils.NewMatrix(len(r), Np), utils.NewMatrix(len(r), Np)
	for i := 0; i <= N; i++ {
		for j := 0; j <= N-i; j++ {
			for k := 0; k <= N-i-j; k++ {
				dr, ds, dt := GradSimplex3DP(r, s, t, i, j, k)
				Vr.SetCol(sk, dr)
				Vs.SetCol(sk, ds)
				Vt.SetCol(sk, dt)
				sk++
			}
		}
	}
	return
}

func vecSub(a, b []float64) []float64 {
	return []float64{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

func vecMid(a, b []float64) []float64 {
	return []float64{0.5 * (a[0] + b[0]), 0.5 * (a[1] + b[1]), 0.5 * (a[2] + b[2])}
}

func vecNormalize(v []float64) []float64 {
	norm := math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
	return []float64{v[0] / norm, v[1] / norm, v[2] / norm}
}
