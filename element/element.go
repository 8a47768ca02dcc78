package element

import (
	"errors"
	"fmt"

	"github.com/notargets/gosem/utils"
)

var ErrUnsupported = errors.New("unsupported element")

// Reference is the degree N reference element used by every per-element array of
// a level. Node n of element e lives at index e*Np+n in all node fields.
type Reference struct {
	Type                            utils.ElementType
	N, Np, Nfp, Nfaces, Nverts, Dim int
	// Reference node coordinates, T is nil in 2D
	R, S, T []float64
	// Nodal differentiation matrices, one per reference axis
	Dr, Ds, Dt utils.Matrix
	// Exact reference mass matrix; diagonal (GLL collocation) for tensor elements
	Mass utils.Matrix
	// Quadrature weights at the nodes: GLL tensor weights or lumped mass
	W []float64
	// Fmask[f] lists the volume nodes on face f in increasing node order
	Fmask [][]int
	// FaceMass[f] is the Nfp x Nfp reference face mass in the face parameter
	FaceMass []utils.Matrix
	// FaceNormal[f] holds the reference normal coefficients of face f; the
	// physical normal is sum_a FaceNormal[f][a] * grad(r_a)
	FaceNormal [][]float64
	// FaceVertices[f] are the element-local vertex numbers of face f
	FaceVertices [][]int
	// VertexCoords[v] are the reference coordinates of vertex v
	VertexCoords [][]float64
	// Lattice[n][v] is the integer weight of vertex v at node n; the weights sum
	// to LatticeScale. Coincident nodes of neighboring elements share the same
	// (global vertex, weight) pairs.
	Lattice      [][]int
	LatticeScale int
	// Modal basis for simplices (nil Matrix for tensor elements)
	V, Vinv utils.Matrix
}

// NewReference builds the reference element of type et and degree N >= 1.
func NewReference(et utils.ElementType, N int) (re *Reference, err error) {
	if N < 1 {
		err = fmt.Errorf("%w: degree %d for %v, need N >= 1", ErrUnsupported, N, et)
		return
	}
	switch et {
	case utils.Quad:
		re = newQuad(N)
	case utils.Hex:
		re = newHex(N)
	case utils.Triangle:
		re = newTri(N)
	case utils.Tet:
		re = newTet(N)
	default:
		err = fmt.Errorf("%w: element type %v", ErrUnsupported, et)
		return
	}
	re.Dr.SetReadOnly("Dr")
	re.Ds.SetReadOnly("Ds")
	if re.Dim == 3 {
		re.Dt.SetReadOnly("Dt")
	}
	re.Mass.SetReadOnly("Mass")
	return
}

// NumNodes returns Np for an element type and degree
func NumNodes(et utils.ElementType, N int) int {
	switch et {
	case utils.Quad:
		return (N + 1) * (N + 1)
	case utils.Hex:
		return (N + 1) * (N + 1) * (N + 1)
	case utils.Triangle:
		return (N + 1) * (N + 2) / 2
	case utils.Tet:
		return (N + 1) * (N + 2) * (N + 3) / 6
	}
	return 0
}

// D returns the differentiation matrix along reference axis a
func (re *Reference) D(a int) utils.Matrix {
	switch a {
	case 0:
		return re.Dr
	case 1:
		return re.Ds
	default:
		return re.Dt
	}
}

// Coord returns the reference coordinate array along axis a
func (re *Reference) Coord(a int) []float64 {
	switch a {
	case 0:
		return re.R
	case 1:
		return re.S
	default:
		return re.T
	}
}

// IsDiagonalMass is true when Mass and FaceMass are diagonal
func (re *Reference) IsDiagonalMass() bool { return re.Type.IsTensor() }

// Suffix is the routine-name suffix for this element in an ambient space of
// dimension dim, e.g. Quad2D, Tri3D, Hex3D.
func (re *Reference) Suffix(dim int) string {
	return Suffix(re.Type, dim)
}

func Suffix(et utils.ElementType, dim int) string {
	var name string
	switch et {
	case utils.Triangle:
		name = "Tri"
	case utils.Quad:
		name = "Quad"
	case utils.Tet:
		name = "Tet"
	case utils.Hex:
		name = "Hex"
	}
	return fmt.Sprintf("%s%dD", name, dim)
}

// FaceVertices returns the local vertex numbers of each face, ordered so that
// faces are traversed consistently with the reference vertex layout.
func FaceVertices(et utils.ElementType) [][]int {
	switch et {
	case utils.Quad:
		return [][]int{{0, 1}, {1, 2}, {2, 3}, {3, 0}}
	case utils.Triangle:
		return [][]int{{0, 1}, {1, 2}, {2, 0}}
	case utils.Hex:
		return [][]int{
			{0, 3, 2, 1}, // t = -1
			{4, 5, 6, 7}, // t = +1
			{0, 1, 5, 4}, // s = -1
			{1, 2, 6, 5}, // r = +1
			{2, 3, 7, 6}, // s = +1
			{3, 0, 4, 7}, // r = -1
		}
	case utils.Tet:
		return [][]int{
			{0, 2, 1}, // t = -1
			{0, 1, 3}, // s = -1
			{1, 2, 3}, // r+s+t = -1
			{0, 3, 2}, // r = -1
		}
	}
	return nil
}

func faceNormals(et utils.ElementType) [][]float64 {
	switch et {
	case utils.Quad:
		return [][]float64{{0, -1}, {1, 0}, {0, 1}, {-1, 0}}
	case utils.Triangle:
		return [][]float64{{0, -1}, {1, 1}, {-1, 0}}
	case utils.Hex:
		return [][]float64{{0, 0, -1}, {0, 0, 1}, {0, -1, 0}, {1, 0, 0}, {0, 1, 0}, {-1, 0, 0}}
	case utils.Tet:
		return [][]float64{{0, 0, -1}, {0, -1, 0}, {1, 1, 1}, {-1, 0, 0}}
	}
	return nil
}

// VertexCoords returns the reference coordinates of the element vertices
func VertexCoords(et utils.ElementType) [][]float64 {
	switch et {
	case utils.Quad:
		return [][]float64{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}
	case utils.Triangle:
		return [][]float64{{-1, -1}, {1, -1}, {-1, 1}}
	case utils.Hex:
		return [][]float64{
			{-1, -1, -1}, {1, -1, -1}, {1, 1, -1}, {-1, 1, -1},
			{-1, -1, 1}, {1, -1, 1}, {1, 1, 1}, {-1, 1, 1},
		}
	case utils.Tet:
		return [][]float64{{-1, -1, -1}, {1, -1, -1}, {-1, 1, -1}, {-1, -1, 1}}
	}
	return nil
}

// Shape evaluates the vertex shape functions at reference point rst: bilinear
// for quads, trilinear for hexes, barycentric for simplices.
func Shape(et utils.ElementType, rst []float64) (phi []float64) {
	switch et {
	case utils.Quad:
		r, s := rst[0], rst[1]
		phi = []float64{
			0.25 * (1 - r) * (1 - s),
			0.25 * (1 + r) * (1 - s),
			0.25 * (1 + r) * (1 + s),
			0.25 * (1 - r) * (1 + s),
		}
	case utils.Hex:
		phi = make([]float64, 8)
		for v, vc := range VertexCoords(utils.Hex) {
			phi[v] = 0.125 * (1 + vc[0]*rst[0]) * (1 + vc[1]*rst[1]) * (1 + vc[2]*rst[2])
		}
	case utils.Triangle:
		r, s := rst[0], rst[1]
		phi = []float64{-0.5 * (r + s), 0.5 * (1 + r), 0.5 * (1 + s)}
	case utils.Tet:
		r, s, t := rst[0], rst[1], rst[2]
		phi = []float64{-0.5 * (1 + r + s + t), 0.5 * (1 + r), 0.5 * (1 + s), 0.5 * (1 + t)}
	default:
		panic(fmt.Errorf("%w: shape functions for %v", ErrUnsupported, et))
	}
	return
}

// GradShape evaluates d(phi_v)/d(r_a) at reference point rst, indexed [v][a].
func GradShape(et utils.ElementType, rst []float64) (dphi [][]float64) {
	switch et {
	case utils.Quad, utils.Hex:
		vcs := VertexCoords(et)
		dim := et.GetDimension()
		scale := 1. / float64(int(1)<<dim)
		dphi = make([][]float64, len(vcs))
		for v, vc := range vcs {
			dphi[v] = make([]float64, dim)
			for a := 0; a < dim; a++ {
				val := scale * vc[a]
				for b := 0; b < dim; b++ {
					if b != a {
						val *= 1 + vc[b]*rst[b]
					}
				}
				dphi[v][a] = val
			}
		}
	case utils.Triangle:
		dphi = [][]float64{{-0.5, -0.5}, {0.5, 0}, {0, 0.5}}
	case utils.Tet:
		dphi = [][]float64{{-0.5, -0.5, -0.5}, {0.5, 0, 0}, {0, 0.5, 0}, {0, 0, 0.5}}
	default:
		panic(fmt.Errorf("%w: shape functions for %v", ErrUnsupported, et))
	}
	return
}

// finishFaces fills the face tables from the lattice: a node lies on a face when
// every vertex off that face has zero weight at the node.
func (re *Reference) finishFaces() {
	re.FaceVertices = FaceVertices(re.Type)
	re.FaceNormal = faceNormals(re.Type)
	re.VertexCoords = VertexCoords(re.Type)
	re.Nfaces = len(re.FaceVertices)
	re.Fmask = make([][]int, re.Nfaces)
	for f, fv := range re.FaceVertices {
		onFace := make([]bool, re.Nverts)
		for _, v := range fv {
			onFace[v] = true
		}
		for n := 0; n < re.Np; n++ {
			in := true
			for v := 0; v < re.Nverts; v++ {
				if !onFace[v] && re.Lattice[n][v] != 0 {
					in = false
					break
				}
			}
			if in {
				re.Fmask[f] = append(re.Fmask[f], n)
			}
		}
	}
	re.Nfp = len(re.Fmask[0])
}
