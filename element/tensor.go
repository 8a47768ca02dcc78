package element

import (
	"github.com/notargets/gosem/DG1D"
	"github.com/notargets/gosem/utils"
)

// Tensor-product elements use GLL nodes in every direction. Node (i,j[,k]) is
// n = i + j*(N+1) [+ k*(N+1)^2]. Mass matrices are the GLL collocated diagonal.

func newQuad(N int) (re *Reference) {
	var (
		r1, w1, D1 = DG1D.GLL(N)
		Nq         = N + 1
		Np         = Nq * Nq
	)
	re = &Reference{
		Type: utils.Quad, N: N, Np: Np, Nverts: 4, Dim: 2,
		R: make([]float64, Np), S: make([]float64, Np), W: make([]float64, Np),
		Lattice: make([][]int, Np), LatticeScale: N * N,
	}
	re.Dr, re.Ds = utils.NewMatrix(Np, Np), utils.NewMatrix(Np, Np)
	for j := 0; j < Nq; j++ {
		for i := 0; i < Nq; i++ {
			n := i + j*Nq
			re.R[n], re.S[n] = r1[i], r1[j]
			re.W[n] = w1[i] * w1[j]
			re.Lattice[n] = []int{(N - i) * (N - j), i * (N - j), i * j, (N - i) * j}
			for m := 0; m < Nq; m++ {
				re.Dr.DataP[n*Np+m+j*Nq] = D1.At(i, m)
				re.Ds.DataP[n*Np+i+m*Nq] = D1.At(j, m)
			}
		}
	}
	re.Mass = diagonal(re.W)
	re.finishFaces()
	re.tensorFaceMass(w1[0])
	return
}

func newHex(N int) (re *Reference) {
	var (
		r1, w1, D1 = DG1D.GLL(N)
		Nq         = N + 1
		Nq2        = Nq * Nq
		Np         = Nq2 * Nq
	)
	re = &Reference{
		Type: utils.Hex, N: N, Np: Np, Nverts: 8, Dim: 3,
		R: make([]float64, Np), S: make([]float64, Np), T: make([]float64, Np),
		W: make([]float64, Np), Lattice: make([][]int, Np), LatticeScale: N * N * N,
	}
	re.Dr, re.Ds, re.Dt = utils.NewMatrix(Np, Np), utils.NewMatrix(Np, Np), utils.NewMatrix(Np, Np)
	vcs := VertexCoords(utils.Hex)
	for k := 0; k < Nq; k++ {
		for j := 0; j < Nq; j++ {
			for i := 0; i < Nq; i++ {
				n := i + j*Nq + k*Nq2
				re.R[n], re.S[n], re.T[n] = r1[i], r1[j], r1[k]
				re.W[n] = w1[i] * w1[j] * w1[k]
				lat := make([]int, 8)
				idx := [3]int{i, j, k}
				for v, vc := range vcs {
					lat[v] = 1
					for a := 0; a < 3; a++ {
						if vc[a] < 0 {
							lat[v] *= N - idx[a]
						} else {
							lat[v] *= idx[a]
						}
					}
				}
				re.Lattice[n] = lat
				for m := 0; m < Nq; m++ {
					re.Dr.DataP[n*Np+m+j*Nq+k*Nq2] = D1.At(i, m)
					re.Ds.DataP[n*Np+i+m*Nq+k*Nq2] = D1.At(j, m)
					re.Dt.DataP[n*Np+i+j*Nq+m*Nq2] = D1.At(k, m)
				}
			}
		}
	}
	re.Mass = diagonal(re.W)
	re.finishFaces()
	re.tensorFaceMass(w1[0])
	return
}

// tensorFaceMass divides the volume weight by the endpoint GLL weight of the
// direction normal to the face, leaving the product of the in-face weights.
func (re *Reference) tensorFaceMass(wEnd float64) {
	re.FaceMass = make([]utils.Matrix, re.Nfaces)
	for f, fm := range re.Fmask {
		wf := make([]float64, len(fm))
		for i, n := range fm {
			wf[i] = re.W[n] / wEnd
		}
		re.FaceMass[f] = diagonal(wf)
		re.FaceMass[f].SetReadOnly("FaceMass")
	}
}

func diagonal(d []float64) (D utils.Matrix) {
	n := len(d)
	D = utils.NewMatrix(n, n)
	for i, val := range d {
		D.DataP[i+n*i] = val
	}
	return
}
