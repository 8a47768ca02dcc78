package mesh

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"

	"github.com/notargets/gosem/element"
	"github.com/notargets/gosem/utils"
)

var (
	ErrMalformed   = errors.New("malformed mesh")
	ErrNonManifold = errors.New("face shared by more than two elements")
)

// Mesh is the global topology of a single-type element mesh. Vertex coordinates
// have Dim components, which exceeds the element dimension for embedded surfaces.
type Mesh struct {
	Type     utils.ElementType
	Dim      int
	Vertices [][]float64 // [nvertices][Dim]
	EToV     [][]int     // [nelems][nverts_per_elem]

	// Built by BuildConnectivity
	EToE [][]int // Neighbor element per face, -1 on a boundary
	EToF [][]int // Neighbor's local face index, -1 on a boundary

	// BoundaryTags[k][f] is the boundary id of face f of element k, 0 when the
	// face is interior or untagged
	BoundaryTags  [][]int
	BoundaryNames map[int]string

	NumElements int
	NumVertices int
	NumFaces    int
}

// NewMesh validates the element to vertex table and builds face connectivity
func NewMesh(et utils.ElementType, dim int, verts [][]float64, EToV [][]int) (m *Mesh, err error) {
	if et.GetDimension() < 2 {
		err = fmt.Errorf("%w: element type %v", ErrMalformed, et)
		return
	}
	if dim < et.GetDimension() || dim > 3 {
		err = fmt.Errorf("%w: %v elements in %d dimensions", ErrMalformed, et, dim)
		return
	}
	for i, v := range verts {
		if len(v) != dim {
			err = fmt.Errorf("%w: vertex %d has %d coordinates, need %d", ErrMalformed, i, len(v), dim)
			return
		}
	}
	nv := et.GetNumVertices()
	for k, ev := range EToV {
		if len(ev) != nv {
			err = fmt.Errorf("%w: element %d has %d vertices, %v needs %d", ErrMalformed, k, len(ev), et, nv)
			return
		}
		for _, v := range ev {
			if v < 0 || v >= len(verts) {
				err = fmt.Errorf("%w: element %d references vertex %d of %d", ErrMalformed, k, v, len(verts))
				return
			}
		}
	}
	m = &Mesh{
		Type:          et,
		Dim:           dim,
		Vertices:      verts,
		EToV:          EToV,
		BoundaryNames: make(map[int]string),
		NumElements:   len(EToV),
		NumVertices:   len(verts),
	}
	if err = m.BuildConnectivity(); err != nil {
		m = nil
	}
	return
}

// FaceKey is the sorted global vertex list of a face rendered as a map key
func FaceKey(vertices []int) string {
	sorted := make([]int, len(vertices))
	copy(sorted, vertices)
	sort.Ints(sorted)
	var b strings.Builder
	for i, v := range sorted {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(v))
	}
	return b.String()
}

// GetElementFaces returns the global vertices of each face of element k
func (m *Mesh) GetElementFaces(k int) (faces [][]int) {
	local := element.FaceVertices(m.Type)
	faces = make([][]int, len(local))
	for f, lv := range local {
		faces[f] = make([]int, len(lv))
		for i, v := range lv {
			faces[f][i] = m.EToV[k][v]
		}
	}
	return
}

// BuildConnectivity fills EToE and EToF. EToF stores the neighbor's local face
// index, so the connectivity is reciprocal.
func (m *Mesh) BuildConnectivity() (err error) {
	type faceRef struct{ elem, face int }
	var (
		nf      = m.Type.GetNumFaces()
		faceMap = make(map[string]faceRef, m.NumElements*nf)
	)
	m.EToE = make([][]int, m.NumElements)
	m.EToF = make([][]int, m.NumElements)
	m.BoundaryTags = make([][]int, m.NumElements)
	for k := 0; k < m.NumElements; k++ {
		m.EToE[k] = make([]int, nf)
		m.EToF[k] = make([]int, nf)
		m.BoundaryTags[k] = make([]int, nf)
		for f := range m.EToE[k] {
			m.EToE[k][f], m.EToF[k][f] = -1, -1
		}
	}
	m.NumFaces = 0
	for k := 0; k < m.NumElements; k++ {
		for f, fv := range m.GetElementFaces(k) {
			key := FaceKey(fv)
			nbr, exists := faceMap[key]
			if !exists {
				faceMap[key] = faceRef{k, f}
				m.NumFaces++
				continue
			}
			if m.EToE[nbr.elem][nbr.face] != -1 {
				return fmt.Errorf("%w: face [%s] of element %d", ErrNonManifold, key, k)
			}
			m.EToE[k][f], m.EToF[k][f] = nbr.elem, nbr.face
			m.EToE[nbr.elem][nbr.face], m.EToF[nbr.elem][nbr.face] = k, f
		}
	}
	return
}

// TagBoundaryFaces assigns the id returned by tagger to every boundary face.
// tagger receives the coordinates of the face vertices; returning 0 leaves the
// face untagged.
func (m *Mesh) TagBoundaryFaces(tagger func(faceVerts [][]float64) int) {
	for k := 0; k < m.NumElements; k++ {
		for f, fv := range m.GetElementFaces(k) {
			if m.EToE[k][f] != -1 {
				continue
			}
			coords := make([][]float64, len(fv))
			for i, v := range fv {
				coords[i] = m.Vertices[v]
			}
			m.BoundaryTags[k][f] = tagger(coords)
		}
	}
}

// CountBoundaryFaces returns the number of boundary faces per tag
func (m *Mesh) CountBoundaryFaces() (counts map[int]int) {
	counts = make(map[int]int)
	for k := 0; k < m.NumElements; k++ {
		for f, nbr := range m.EToE[k] {
			if nbr == -1 {
				counts[m.BoundaryTags[k][f]]++
			}
		}
	}
	return
}

// ElementVertexCoords returns the vertex coordinates of element k
func (m *Mesh) ElementVertexCoords(k int) (xv [][]float64) {
	xv = make([][]float64, len(m.EToV[k]))
	for i, v := range m.EToV[k] {
		xv[i] = m.Vertices[v]
	}
	return
}

// Centroid returns the vertex average of element k
func (m *Mesh) Centroid(k int) (c []float64) {
	c = make([]float64, m.Dim)
	for _, v := range m.EToV[k] {
		for a := range c {
			c[a] += m.Vertices[v][a]
		}
	}
	for a := range c {
		c[a] /= float64(len(m.EToV[k]))
	}
	return
}

// PrintStatistics logs mesh statistics
func (m *Mesh) PrintStatistics() {
	log.Printf("Mesh: %d %v elements in %dD, %d vertices, %d faces",
		m.NumElements, m.Type, m.Dim, m.NumVertices, m.NumFaces)
	counts := m.CountBoundaryFaces()
	tags := make([]int, 0, len(counts))
	for tag := range counts {
		tags = append(tags, tag)
	}
	sort.Ints(tags)
	for _, tag := range tags {
		name := m.BoundaryNames[tag]
		if tag == 0 {
			name = "untagged"
		}
		log.Printf("  boundary id %d (%s): %d faces", tag, name, counts[tag])
	}
}
