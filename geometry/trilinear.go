package geometry

import (
	"github.com/notargets/gosem/element"
	"github.com/notargets/gosem/utils"
)

// Trilinear evaluates hex metric terms directly from the 8 element vertices, so
// an operator can skip storing per-node factors.
type Trilinear struct {
	Np   int
	dphi [][][]float64 // [n][v][a]
}

func NewTrilinear(re *element.Reference) (tl *Trilinear) {
	if re.Type != utils.Hex {
		panic("trilinear map needs hexahedra, have " + re.Type.String())
	}
	tl = &Trilinear{Np: re.Np, dphi: make([][][]float64, re.Np)}
	for n := 0; n < re.Np; n++ {
		tl.dphi[n] = element.GradShape(utils.Hex, []float64{re.R[n], re.S[n], re.T[n]})
	}
	return
}

// Node returns J and d(r_a)/d(x_d) at reference node n of the hex with vertices
// xv[v][d].
func (tl *Trilinear) Node(xv [][]float64, n int) (J float64, G [3][3]float64, ok bool) {
	var jac [3][3]float64
	for v, dp := range tl.dphi[n] {
		for d := 0; d < 3; d++ {
			for a := 0; a < 3; a++ {
				jac[d][a] += dp[a] * xv[v][d]
			}
		}
	}
	return Metric(jac, 3, 3)
}
