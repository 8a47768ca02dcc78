package elliptic

import (
	"fmt"
	"math"
)

// buildGradient computes the physical gradient at the nodes,
// grad_d = sum_a d(r_a)/d(x_d) D_a q. Arguments are q followed by one output
// array per ambient axis. It runs over local and halo elements.
func buildGradient(kd *KernelData) (Kernel, error) {
	var (
		re   = kd.Ref
		geo  = kd.Geo
		D    = derivatives(re)
		Np   = re.Np
		rdim = re.Dim
	)
	return func(kMin, kMax int, args ...[]float64) {
		var (
			q    = args[0]
			grad = args[1:]
			dq   = make([][]float64, rdim)
		)
		for a := range dq {
			dq[a] = make([]float64, Np)
		}
		for k := kMin; k < kMax; k++ {
			qe := q[k*Np : (k+1)*Np]
			for a := 0; a < rdim; a++ {
				mulVec(D[a], qe, dq[a])
			}
			for n := 0; n < Np; n++ {
				node := k*Np + n
				for d := range grad {
					var sum float64
					for a := 0; a < rdim; a++ {
						sum += geo.Drdx(a, d)[node] * dq[a][n]
					}
					grad[d][node] = sum
				}
			}
		}
	}, nil
}

// buildAxIpdg is the symmetric interior penalty action. Arguments are q, the
// output, then the gradient arrays from buildGradient; q and the gradients must
// hold current halo values.
func buildAxIpdg(kd *KernelData) (Kernel, error) {
	if kd.Faces == nil {
		return nil, fmt.Errorf("%w: interior penalty routine needs face maps", ErrConfig)
	}
	var (
		re     = kd.Ref
		geo    = kd.Geo
		fm     = kd.Faces
		D      = derivatives(re)
		Np     = re.Np
		Nfp    = re.Nfp
		rdim   = re.Dim
		dim    = kd.Dim
		tau    = kd.Tau
		tensor = re.Type.IsTensor()
		mass   = re.Mass.DataP
		// DF[a][f] holds the rows of D_a at the nodes of face f
		DF = make([][][]float64, rdim)
		MF = make([][]float64, re.Nfaces)
	)
	for a := range DF {
		DF[a] = make([][]float64, re.Nfaces)
		for f, fmask := range re.Fmask {
			DF[a][f] = re.D(a).SliceRows(fmask).DataP
		}
	}
	for f := range MF {
		MF[f] = re.FaceMass[f].DataP
	}
	return func(kMin, kMax int, args ...[]float64) {
		var (
			q, Aq = args[0], args[1]
			grad  = args[2:]
			vol   = make([][]float64, dim)
			t     = make([]float64, Np)
			xs    = make([]float64, dim)
			jump  = make([]float64, Nfp)
			r     = make([]float64, Nfp)
			mr    = make([]float64, Nfp)
			c     = make([]float64, Nfp)
		)
		for d := range vol {
			vol[d] = make([]float64, Np)
		}
		for k := kMin; k < kMax; k++ {
			out := Aq[k*Np : (k+1)*Np]
			for i := range out {
				out[i] = 0
			}
			// Volume term: sum_a D_a^T (sum_d rx_ad M_J grad_d)
			for d := 0; d < dim; d++ {
				gd := grad[d][k*Np : (k+1)*Np]
				if tensor {
					for n := 0; n < Np; n++ {
						vol[d][n] = re.W[n] * geo.J[k*Np+n] * gd[n]
					}
				} else {
					mulVec(mass, gd, vol[d])
					J := geo.J[k*Np]
					for n := range vol[d] {
						vol[d][n] *= J
					}
				}
			}
			for a := 0; a < rdim; a++ {
				for n := 0; n < Np; n++ {
					var sum float64
					for d := 0; d < dim; d++ {
						sum += geo.Drdx(a, d)[k*Np+n] * vol[d][n]
					}
					t[n] = sum
				}
				mulTransVecAdd(D[a], t, out)
			}
			for f, fmask := range re.Fmask {
				closure := fm.Closure[k*re.Nfaces+f]
				for i := 0; i < Nfp; i++ {
					fi := geo.FaceIndex(k, f, i)
					m, p := fm.VmapM[fi], fm.VmapP[fi]
					var dudnM, dudnP float64
					for d := 0; d < dim; d++ {
						dudnM += geo.Normal[d][fi] * grad[d][m]
					}
					uM := q[m]
					hinvM := geo.SJ[fi] / geo.J[m]
					var uP, hinvP float64
					if closure != nil {
						for d := range xs {
							xs[d] = fm.X[d][m]
						}
						uP, dudnP = closure(xs, uM, dudnM)
						hinvP = hinvM
					} else {
						uP = q[p]
						for d := 0; d < dim; d++ {
							dudnP += geo.Normal[d][fi] * grad[d][p]
						}
						hinvP = geo.SJ[fm.FaceP[fi]] / geo.J[p]
					}
					sJ := geo.SJ[fi]
					jump[i] = sJ * (uM - uP)
					sigma := tau * math.Max(hinvM, hinvP)
					r[i] = sigma*jump[i] - sJ*0.5*(dudnM+dudnP)
				}
				// Penalty and flux terms
				mulVec(MF[f], r, mr)
				for i, n := range fmask {
					out[n] += mr[i]
				}
				// Symmetrizing term: -1/2 (grad phi . n) against the jump
				mulVec(MF[f], jump, mr)
				for a := 0; a < rdim; a++ {
					for i := 0; i < Nfp; i++ {
						fi := geo.FaceIndex(k, f, i)
						m := fm.VmapM[fi]
						var coef float64
						for d := 0; d < dim; d++ {
							coef += geo.Normal[d][fi] * geo.Drdx(a, d)[m]
						}
						c[i] = -0.5 * coef * mr[i]
					}
					mulTransVecAdd(DF[a][f], c, out)
				}
			}
		}
	}, nil
}
