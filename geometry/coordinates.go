package geometry

import (
	"fmt"

	"github.com/notargets/gosem/element"
	"github.com/notargets/gosem/utils"
)

// ShapeMatrix returns the Np x Nverts matrix of vertex shape functions evaluated
// at the reference nodes.
func ShapeMatrix(re *element.Reference) (Phi utils.Matrix) {
	Phi = utils.NewMatrix(re.Np, re.Nverts)
	rst := make([]float64, re.Dim)
	for n := 0; n < re.Np; n++ {
		for a := range rst {
			rst[a] = re.Coord(a)[n]
		}
		Phi.SetRow(n, element.Shape(re.Type, rst))
	}
	return
}

// BuildCoordinates maps the vertex coordinates of every element onto the
// reference nodes with the vertex shape functions. verts[k][v] holds the dim
// coordinates of vertex v of element k; the result is X[d][k*Np+n]. Elements are
// split into threads buckets that run concurrently.
func BuildCoordinates(re *element.Reference, verts [][][]float64, dim, threads int) (X [][]float64) {
	var (
		K   = len(verts)
		Phi = ShapeMatrix(re)
	)
	for k, xv := range verts {
		if len(xv) != re.Nverts {
			panic(fmt.Errorf("element %d has %d vertices, %v needs %d", k, len(xv), re.Type, re.Nverts))
		}
		for v, x := range xv {
			if len(x) != dim {
				panic(fmt.Errorf("element %d vertex %d has %d coordinates, need %d", k, v, len(x), dim))
			}
		}
	}
	X = make([][]float64, dim)
	for d := range X {
		X[d] = make([]float64, K*re.Np)
	}
	if K == 0 {
		return
	}
	utils.NewPartitionMap(threads, K).RunBuckets(func(_, kMin, kMax int) {
		for k := kMin; k < kMax; k++ {
			for n := 0; n < re.Np; n++ {
				for d := 0; d < dim; d++ {
					var x float64
					for v := 0; v < re.Nverts; v++ {
						x += Phi.DataP[n*re.Nverts+v] * verts[k][v][d]
					}
					X[d][k*re.Np+n] = x
				}
			}
		}
	})
	return
}
