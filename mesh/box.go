package mesh

import (
	"fmt"
	"math"

	"github.com/notargets/gosem/utils"
)

// Box describes a structured mesh of the axis aligned box [Lo, Hi]. Quads and
// hexes use one element per cell, triangles split each cell in two and tets
// split each cell into six (Kuhn subdivision), which keeps the mesh conforming.
type Box struct {
	Type   utils.ElementType
	Cells  []int     // Cells per axis
	Lo, Hi []float64 // Box corners
	// SideTags holds the boundary id of each box side in the order x-, x+, y-,
	// y+, z-, z+. A missing entry leaves the side untagged, entries past the
	// box dimension are ignored.
	SideTags []int
	Names    map[int]string
}

// NewBoxMesh builds the box mesh and tags its sides
func NewBoxMesh(b Box) (m *Mesh, err error) {
	dim := b.Type.GetDimension()
	if dim < 2 {
		return nil, fmt.Errorf("%w: box of %v elements", ErrMalformed, b.Type)
	}
	if len(b.Cells) != dim || len(b.Lo) != dim || len(b.Hi) != dim {
		return nil, fmt.Errorf("%w: box of %v elements needs %d cells and bounds", ErrMalformed, b.Type, dim)
	}
	for a := 0; a < dim; a++ {
		if b.Cells[a] < 1 || !(b.Hi[a] > b.Lo[a]) {
			return nil, fmt.Errorf("%w: box axis %d has %d cells on [%g,%g]",
				ErrMalformed, a, b.Cells[a], b.Lo[a], b.Hi[a])
		}
	}
	var (
		verts [][]float64
		EToV  [][]int
	)
	if dim == 2 {
		verts, EToV = box2D(b)
	} else {
		verts, EToV = box3D(b)
	}
	if m, err = NewMesh(b.Type, dim, verts, EToV); err != nil {
		return
	}
	for id, name := range b.Names {
		m.BoundaryNames[id] = name
	}
	m.TagBoundaryFaces(func(fv [][]float64) int {
		for side, tag := range b.SideTags {
			if side/2 >= dim {
				break
			}
			a, bound := side/2, b.Lo[side/2]
			if side%2 == 1 {
				bound = b.Hi[a]
			}
			tol := utils.NODETOL * math.Max(1, math.Abs(b.Hi[a]-b.Lo[a]))
			on := true
			for _, x := range fv {
				if math.Abs(x[a]-bound) > tol {
					on = false
					break
				}
			}
			if on {
				return tag
			}
		}
		return 0
	})
	return
}

func axisCoords(b Box, a int) (x []float64) {
	x = make([]float64, b.Cells[a]+1)
	h := (b.Hi[a] - b.Lo[a]) / float64(b.Cells[a])
	for i := range x {
		x[i] = b.Lo[a] + float64(i)*h
	}
	x[b.Cells[a]] = b.Hi[a]
	return
}

func box2D(b Box) (verts [][]float64, EToV [][]int) {
	var (
		nx, ny = b.Cells[0], b.Cells[1]
		xc, yc = axisCoords(b, 0), axisCoords(b, 1)
		vid    = func(i, j int) int { return i + j*(nx+1) }
	)
	verts = make([][]float64, 0, (nx+1)*(ny+1))
	for j := 0; j <= ny; j++ {
		for i := 0; i <= nx; i++ {
			verts = append(verts, []float64{xc[i], yc[j]})
		}
	}
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			v00, v10, v11, v01 := vid(i, j), vid(i+1, j), vid(i+1, j+1), vid(i, j+1)
			if b.Type == utils.Quad {
				EToV = append(EToV, []int{v00, v10, v11, v01})
			} else {
				EToV = append(EToV, []int{v00, v10, v11}, []int{v00, v11, v01})
			}
		}
	}
	return
}

// Kuhn subdivision: every tet runs from the cell's low corner to its high corner
// along the axes in one of the six orders.
var kuhnOrders = [6][3]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}

func box3D(b Box) (verts [][]float64, EToV [][]int) {
	var (
		nx, ny, nz = b.Cells[0], b.Cells[1], b.Cells[2]
		xc, yc, zc = axisCoords(b, 0), axisCoords(b, 1), axisCoords(b, 2)
		vid        = func(i, j, k int) int { return i + j*(nx+1) + k*(nx+1)*(ny+1) }
	)
	verts = make([][]float64, 0, (nx+1)*(ny+1)*(nz+1))
	for k := 0; k <= nz; k++ {
		for j := 0; j <= ny; j++ {
			for i := 0; i <= nx; i++ {
				verts = append(verts, []float64{xc[i], yc[j], zc[k]})
			}
		}
	}
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				if b.Type == utils.Hex {
					EToV = append(EToV, []int{
						vid(i, j, k), vid(i+1, j, k), vid(i+1, j+1, k), vid(i, j+1, k),
						vid(i, j, k+1), vid(i+1, j, k+1), vid(i+1, j+1, k+1), vid(i, j+1, k+1),
					})
					continue
				}
				for _, order := range kuhnOrders {
					idx := [3]int{i, j, k}
					tet := []int{vid(idx[0], idx[1], idx[2])}
					for _, a := range order {
						idx[a]++
						tet = append(tet, vid(idx[0], idx[1], idx[2]))
					}
					if signedVolume(verts, tet) < 0 {
						tet[1], tet[2] = tet[2], tet[1]
					}
					EToV = append(EToV, tet)
				}
			}
		}
	}
	return
}

func signedVolume(verts [][]float64, tet []int) float64 {
	var d [3][3]float64
	for i := 0; i < 3; i++ {
		for a := 0; a < 3; a++ {
			d[i][a] = verts[tet[i+1]][a] - verts[tet[0]][a]
		}
	}
	return d[0][0]*(d[1][1]*d[2][2]-d[1][2]*d[2][1]) -
		d[0][1]*(d[1][0]*d[2][2]-d[1][2]*d[2][0]) +
		d[0][2]*(d[1][0]*d[2][1]-d[1][1]*d[2][0])
}

// Embed maps the vertices of a 2D mesh into 3D with f, producing a surface mesh
// whose elements use the embedded (Quad3D, Tri3D) operators. Topology and tags
// are shared with the receiver.
func (m *Mesh) Embed(f func(x []float64) []float64) (em *Mesh, err error) {
	if m.Type.GetDimension() != 2 || m.Dim != 2 {
		return nil, fmt.Errorf("%w: only 2D meshes can be embedded, have %v in %dD",
			ErrMalformed, m.Type, m.Dim)
	}
	verts := make([][]float64, m.NumVertices)
	for i, v := range m.Vertices {
		if verts[i] = f(v); len(verts[i]) != 3 {
			return nil, fmt.Errorf("%w: embedding returned %d coordinates", ErrMalformed, len(verts[i]))
		}
	}
	em = &Mesh{}
	*em = *m
	em.Dim = 3
	em.Vertices = verts
	return
}
