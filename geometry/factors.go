package geometry

import (
	"errors"
	"fmt"
	"math"

	"github.com/notargets/gosem/element"
	"github.com/notargets/gosem/utils"
)

var ErrDegenerate = errors.New("degenerate element")

// Factors holds the metric terms of a set of elements at the volume and face
// nodes. The reference dimension may be lower than the ambient dimension, in
// which case the metric inverse is the pseudo-inverse of the Jacobian.
type Factors struct {
	Dim, RefDim        int
	K, Np, Nfp, Nfaces int
	// J[k*Np+n] is the volume (or area) Jacobian
	J []float64
	// Rx[a*Dim+d][k*Np+n] is d(r_a)/d(x_d)
	Rx [][]float64
	// Face node arrays are indexed (k*Nfaces+f)*Nfp+i for node i of face f
	Normal [][]float64 // [d], outward unit normal
	SJ     []float64   // Surface Jacobian
}

// Drdx returns d(r_a)/d(x_d) at every node
func (g *Factors) Drdx(a, d int) []float64 { return g.Rx[a*g.Dim+d] }

// FaceIndex returns the index of node i of face f of element k in face arrays
func (g *Factors) FaceIndex(k, f, i int) int { return (k*g.Nfaces+f)*g.Nfp + i }

// NewFactors computes the metric terms of the elements whose node coordinates
// are X[d][k*Np+n].
func NewFactors(re *element.Reference, X [][]float64, threads int) (g *Factors, err error) {
	var (
		dim  = len(X)
		rdim = re.Dim
	)
	if dim < rdim || dim > 3 || len(X[0])%re.Np != 0 {
		return nil, fmt.Errorf("%w: %d coordinate arrays of length %d for %v with Np=%d",
			ErrDegenerate, dim, len(X[0]), re.Type, re.Np)
	}
	K := len(X[0]) / re.Np
	g = &Factors{
		Dim: dim, RefDim: rdim, K: K, Np: re.Np, Nfp: re.Nfp, Nfaces: re.Nfaces,
		J:      make([]float64, K*re.Np),
		Rx:     make([][]float64, rdim*dim),
		Normal: make([][]float64, dim),
		SJ:     make([]float64, K*re.Nfaces*re.Nfp),
	}
	for i := range g.Rx {
		g.Rx[i] = make([]float64, K*re.Np)
	}
	for d := range g.Normal {
		g.Normal[d] = make([]float64, K*re.Nfaces*re.Nfp)
	}
	if K == 0 {
		return
	}
	pm := utils.NewPartitionMap(threads, K)
	errs := make([]error, pm.ParallelDegree)
	pm.RunBuckets(func(bn, kMin, kMax int) {
		var (
			xa  = make([][]float64, dim*rdim) // [d*rdim+a] local derivative arrays
			jac [3][3]float64
		)
		for k := kMin; k < kMax; k++ {
			for d := 0; d < dim; d++ {
				xe := X[d][k*re.Np : (k+1)*re.Np]
				for a := 0; a < rdim; a++ {
					xa[d*rdim+a] = re.D(a).MulVec(xe)
				}
			}
			for n := 0; n < re.Np; n++ {
				for d := 0; d < dim; d++ {
					for a := 0; a < rdim; a++ {
						jac[d][a] = xa[d*rdim+a][n]
					}
				}
				J, G, ok := Metric(jac, dim, rdim)
				if !ok {
					errs[bn] = fmt.Errorf("%w: element %d node %d has Jacobian %g", ErrDegenerate, k, n, J)
					return
				}
				g.J[k*re.Np+n] = J
				for a := 0; a < rdim; a++ {
					for d := 0; d < dim; d++ {
						g.Rx[a*dim+d][k*re.Np+n] = G[a][d]
					}
				}
			}
			g.faces(re, k)
		}
	})
	for _, e := range errs {
		if e != nil {
			return nil, e
		}
	}
	return
}

// faces computes normals and surface Jacobians of element k from its volume
// metric: the unnormalized normal is sum_a n_a grad(r_a) and sJ = J*|normal|.
func (g *Factors) faces(re *element.Reference, k int) {
	nv := make([]float64, g.Dim)
	for f, fm := range re.Fmask {
		nref := re.FaceNormal[f]
		for i, n := range fm {
			node := k*re.Np + n
			var norm float64
			for d := range nv {
				nv[d] = 0
				for a, na := range nref {
					nv[d] += na * g.Rx[a*g.Dim+d][node]
				}
				norm += nv[d] * nv[d]
			}
			norm = math.Sqrt(norm)
			fi := g.FaceIndex(k, f, i)
			g.SJ[fi] = g.J[node] * norm
			for d := range nv {
				g.Normal[d][fi] = nv[d] / norm
			}
		}
	}
}

// Metric returns the Jacobian and the metric inverse G[a][d] = d(r_a)/d(x_d)
// from the columns jac[d][a] = d(x_d)/d(r_a). With the metric tensor
// g = jac^T jac, J = sqrt(det g) and G = g^-1 jac^T, which is the ordinary
// inverse for volume elements and the pseudo-inverse on embedded surfaces.
func Metric(jac [3][3]float64, dim, rdim int) (J float64, G [3][3]float64, ok bool) {
	var gm, gi [3][3]float64
	for a := 0; a < rdim; a++ {
		for b := 0; b < rdim; b++ {
			for d := 0; d < dim; d++ {
				gm[a][b] += jac[d][a] * jac[d][b]
			}
		}
	}
	var det float64
	switch rdim {
	case 2:
		det = gm[0][0]*gm[1][1] - gm[0][1]*gm[1][0]
		if det > 0 {
			gi[0][0], gi[0][1] = gm[1][1]/det, -gm[0][1]/det
			gi[1][0], gi[1][1] = -gm[1][0]/det, gm[0][0]/det
		}
	case 3:
		det = gm[0][0]*(gm[1][1]*gm[2][2]-gm[1][2]*gm[2][1]) -
			gm[0][1]*(gm[1][0]*gm[2][2]-gm[1][2]*gm[2][0]) +
			gm[0][2]*(gm[1][0]*gm[2][1]-gm[1][1]*gm[2][0])
		if det > 0 {
			for a := 0; a < 3; a++ {
				for b := 0; b < 3; b++ {
					// Cofactor of the symmetric metric, transposed
					a1, a2 := (b+1)%3, (b+2)%3
					b1, b2 := (a+1)%3, (a+2)%3
					gi[a][b] = (gm[a1][b1]*gm[a2][b2] - gm[a1][b2]*gm[a2][b1]) / det
				}
			}
		}
	}
	if !(det > 0) || math.IsInf(det, 0) {
		return math.Sqrt(math.Max(det, 0)), G, false
	}
	J = math.Sqrt(det)
	for a := 0; a < rdim; a++ {
		for d := 0; d < dim; d++ {
			for b := 0; b < rdim; b++ {
				G[a][d] += gi[a][b] * jac[d][b]
			}
		}
	}
	ok = true
	return
}
