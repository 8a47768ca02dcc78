package elliptic

import (
	"fmt"

	"github.com/notargets/gosem/geometry"
	"github.com/notargets/gosem/utils"
)

// buildAx is the continuous stiffness action. Tensor elements contract the
// per-node metric Ggeo_ab = W J grad(r_a).grad(r_b) against the derivatives;
// affine simplices use the precomputed reference stiffness blocks
// S_ab = D_a^T M D_b weighted by one metric value per element.
func buildAx(kd *KernelData) (Kernel, error) {
	if kd.Ref.Type.IsTensor() {
		return tensorAx(kd), nil
	}
	return simplexAx(kd), nil
}

func tensorAx(kd *KernelData) Kernel {
	var (
		re   = kd.Ref
		geo  = kd.Geo
		rdim = re.Dim
		Np   = re.Np
		D    = derivatives(re)
		ggeo = make([][]float64, rdim*rdim)
	)
	for i := range ggeo {
		ggeo[i] = make([]float64, geo.K*Np)
	}
	for k := 0; k < geo.K; k++ {
		for n := 0; n < Np; n++ {
			node := k*Np + n
			for a := 0; a < rdim; a++ {
				for b := 0; b < rdim; b++ {
					var g float64
					for d := 0; d < geo.Dim; d++ {
						g += geo.Drdx(a, d)[node] * geo.Drdx(b, d)[node]
					}
					ggeo[a*rdim+b][node] = re.W[n] * geo.J[node] * g
				}
			}
		}
	}
	return func(kMin, kMax int, args ...[]float64) {
		var (
			q, Aq = args[0], args[1]
			sc    = newTensorScratch(rdim, Np)
			ge    = make([][]float64, rdim*rdim)
		)
		for k := kMin; k < kMax; k++ {
			for i := range ge {
				ge[i] = ggeo[i][k*Np : (k+1)*Np]
			}
			sc.apply(D, ge, q[k*Np:(k+1)*Np], Aq[k*Np:(k+1)*Np])
		}
	}
}

// buildAxTrilinear evaluates the hex metric from the element vertices at every
// node instead of reading stored factors.
func buildAxTrilinear(kd *KernelData) (Kernel, error) {
	re := kd.Ref
	if re.Type != utils.Hex {
		return nil, fmt.Errorf("%w: trilinear map on %v elements", ErrUnsupported, re.Type)
	}
	if len(kd.Verts) == 0 && kd.Geo.K != 0 {
		return nil, fmt.Errorf("%w: trilinear routine needs element vertices", ErrConfig)
	}
	var (
		tl = geometry.NewTrilinear(re)
		D  = derivatives(re)
		Np = re.Np
	)
	for k, xv := range kd.Verts {
		for n := 0; n < Np; n++ {
			if _, _, ok := tl.Node(xv, n); !ok {
				return nil, fmt.Errorf("%w: trilinear map of element %d is degenerate at node %d",
					ErrConfig, k, n)
			}
		}
	}
	return func(kMin, kMax int, args ...[]float64) {
		var (
			q, Aq = args[0], args[1]
			sc    = newTensorScratch(3, Np)
			ge    = make([][]float64, 9)
		)
		for i := range ge {
			ge[i] = make([]float64, Np)
		}
		for k := kMin; k < kMax; k++ {
			for n := 0; n < Np; n++ {
				J, G, _ := tl.Node(kd.Verts[k], n) // Checked above
				for a := 0; a < 3; a++ {
					for b := 0; b < 3; b++ {
						ge[a*3+b][n] = re.W[n] * J * (G[a][0]*G[b][0] + G[a][1]*G[b][1] + G[a][2]*G[b][2])
					}
				}
			}
			sc.apply(D, ge, q[k*Np:(k+1)*Np], Aq[k*Np:(k+1)*Np])
		}
	}, nil
}

type tensorScratch struct {
	rdim  int
	dq, t [][]float64
}

func newTensorScratch(rdim, Np int) (sc *tensorScratch) {
	sc = &tensorScratch{rdim: rdim, dq: make([][]float64, rdim), t: make([][]float64, rdim)}
	for a := 0; a < rdim; a++ {
		sc.dq[a] = make([]float64, Np)
		sc.t[a] = make([]float64, Np)
	}
	return
}

// apply sets out = sum_a D_a^T (sum_b G_ab * D_b q) for one element
func (sc *tensorScratch) apply(D, G [][]float64, qe, out []float64) {
	rdim := sc.rdim
	for b := 0; b < rdim; b++ {
		mulVec(D[b], qe, sc.dq[b])
	}
	for n := range qe {
		for a := 0; a < rdim; a++ {
			var sum float64
			for b := 0; b < rdim; b++ {
				sum += G[a*rdim+b][n] * sc.dq[b][n]
			}
			sc.t[a][n] = sum
		}
	}
	for i := range out {
		out[i] = 0
	}
	for a := 0; a < rdim; a++ {
		mulTransVecAdd(D[a], sc.t[a], out)
	}
}

func simplexAx(kd *KernelData) Kernel {
	var (
		re   = kd.Ref
		geo  = kd.Geo
		rdim = re.Dim
		Np   = re.Np
		S    = make([][]float64, rdim*rdim)
		gel  = make([][]float64, rdim*rdim)
	)
	for a := 0; a < rdim; a++ {
		DaTM := re.D(a).Transpose().Mul(re.Mass)
		for b := 0; b < rdim; b++ {
			S[a*rdim+b] = DaTM.Mul(re.D(b)).DataP
			gel[a*rdim+b] = make([]float64, geo.K)
		}
	}
	// The map is affine, node 0 carries the element metric
	for k := 0; k < geo.K; k++ {
		node := k * Np
		for a := 0; a < rdim; a++ {
			for b := 0; b < rdim; b++ {
				var g float64
				for d := 0; d < geo.Dim; d++ {
					g += geo.Drdx(a, d)[node] * geo.Drdx(b, d)[node]
				}
				gel[a*rdim+b][k] = geo.J[node] * g
			}
		}
	}
	return func(kMin, kMax int, args ...[]float64) {
		var (
			q, Aq = args[0], args[1]
			tmp   = make([]float64, Np)
		)
		for k := kMin; k < kMax; k++ {
			qe, out := q[k*Np:(k+1)*Np], Aq[k*Np:(k+1)*Np]
			for i := range out {
				out[i] = 0
			}
			for ab, Sab := range S {
				mulVec(Sab, qe, tmp)
				g := gel[ab][k]
				for i, v := range tmp {
					out[i] += g * v
				}
			}
		}
	}
}
