package mesh

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/notargets/gosem/utils"
)

var ErrNoMetis = errors.New("metis partitioner not built, rebuild with -tags metis")

type FaceKind uint8

const (
	BoundaryFace FaceKind = iota // Physical boundary, see Tag
	InteriorFace                 // Neighbor on this rank
	RemoteFace                   // Neighbor owned by another rank
)

func (fk FaceKind) String() string {
	return [...]string{"Boundary", "Interior", "Remote"}[fk]
}

// FaceLink describes what lies across one face of a local element
type FaceLink struct {
	Kind FaceKind
	// Elem is the neighbor's local index for InteriorFace and its global element
	// id for RemoteFace
	Elem int
	Face int // Neighbor's local face
	Rank int // Rank owning the neighbor
	Tag  int // Boundary id, BoundaryFace only
}

// Partition is one rank's read-only view of the mesh. It carries only the local
// elements plus the identity of what lies across partition boundaries; remote
// geometry has to be exchanged.
type Partition struct {
	Type       utils.ElementType
	Dim        int
	Rank, Size int
	// GlobalIDs are the global ids of the local elements, increasing
	GlobalIDs []int
	EToV      [][]int       // Global vertex ids
	Coords    [][][]float64 // [elem][vertex][Dim]
	Links     [][]FaceLink  // [elem][face]
	// VertexRanks lists, for every local vertex also held by another rank, all
	// ranks holding it in increasing order
	VertexRanks   map[int][]int
	BoundaryNames map[int]string
}

func (p *Partition) NumElements() int { return len(p.GlobalIDs) }

// NeighborRanks returns the ranks sharing at least one face with this partition
func (p *Partition) NeighborRanks() (ranks []int) {
	seen := make(map[int]bool)
	for _, links := range p.Links {
		for _, l := range links {
			if l.Kind == RemoteFace && !seen[l.Rank] {
				seen[l.Rank] = true
				ranks = append(ranks, l.Rank)
			}
		}
	}
	sort.Ints(ranks)
	return
}

// Whole returns the single-rank partition of the mesh
func (m *Mesh) Whole() *Partition {
	parts, err := m.Split(make([]int, m.NumElements), 1)
	if err != nil {
		panic(err)
	}
	return parts[0]
}

// Split builds the per-rank views from an element to rank assignment
func (m *Mesh) Split(EToP []int, nparts int) (parts []*Partition, err error) {
	if len(EToP) != m.NumElements {
		return nil, fmt.Errorf("%w: partition assigns %d elements, mesh has %d",
			ErrMalformed, len(EToP), m.NumElements)
	}
	parts = make([]*Partition, nparts)
	for r := range parts {
		parts[r] = &Partition{
			Type: m.Type, Dim: m.Dim, Rank: r, Size: nparts,
			VertexRanks:   make(map[int][]int),
			BoundaryNames: m.BoundaryNames,
		}
	}
	var (
		localIndex  = make([]int, m.NumElements)
		vertexRanks = make([][]int, m.NumVertices)
	)
	for k, r := range EToP {
		if r < 0 || r >= nparts {
			return nil, fmt.Errorf("%w: element %d assigned to rank %d of %d", ErrMalformed, k, r, nparts)
		}
		p := parts[r]
		localIndex[k] = len(p.GlobalIDs)
		p.GlobalIDs = append(p.GlobalIDs, k)
		p.EToV = append(p.EToV, append([]int{}, m.EToV[k]...))
		p.Coords = append(p.Coords, m.ElementVertexCoords(k))
		for _, v := range m.EToV[k] {
			vr := vertexRanks[v]
			if i := sort.SearchInts(vr, r); i == len(vr) || vr[i] != r {
				vr = append(vr, 0)
				copy(vr[i+1:], vr[i:])
				vr[i] = r
				vertexRanks[v] = vr
			}
		}
	}
	for v, vr := range vertexRanks {
		if len(vr) > 1 {
			for _, r := range vr {
				parts[r].VertexRanks[v] = vr
			}
		}
	}
	var cut int
	for r, p := range parts {
		p.Links = make([][]FaceLink, p.NumElements())
		for kl, k := range p.GlobalIDs {
			p.Links[kl] = make([]FaceLink, len(m.EToE[k]))
			for f, nbr := range m.EToE[k] {
				switch {
				case nbr == -1:
					p.Links[kl][f] = FaceLink{Kind: BoundaryFace, Elem: -1, Face: -1, Rank: r,
						Tag: m.BoundaryTags[k][f]}
				case EToP[nbr] == r:
					p.Links[kl][f] = FaceLink{Kind: InteriorFace, Elem: localIndex[nbr],
						Face: m.EToF[k][f], Rank: r}
				default:
					p.Links[kl][f] = FaceLink{Kind: RemoteFace, Elem: nbr,
						Face: m.EToF[k][f], Rank: EToP[nbr]}
					cut++
				}
			}
		}
	}
	if nparts > 1 {
		var b strings.Builder
		for r, p := range parts {
			fmt.Fprintf(&b, " %d:%d", r, p.NumElements())
		}
		log.Printf("Split %d elements into %d parts (rank:elements%s), %d cut faces",
			m.NumElements, nparts, b.String(), cut/2)
	}
	return
}

// PartitionCoordinate assigns elements to nparts ranks by sorting element
// centroids along the longest axis of the mesh bounding box and cutting the
// sorted list into nearly equal pieces.
func PartitionCoordinate(m *Mesh, nparts int) (EToP []int) {
	var (
		lo, hi = make([]float64, m.Dim), make([]float64, m.Dim)
		cent   = make([][]float64, m.NumElements)
		order  = make([]int, m.NumElements)
		axis   int
	)
	for a := 0; a < m.Dim; a++ {
		col := make([]float64, m.NumVertices)
		for i, v := range m.Vertices {
			col[i] = v[a]
		}
		lo[a], hi[a] = utils.MinMax(col)
		if hi[a]-lo[a] > hi[axis]-lo[axis] {
			axis = a
		}
	}
	for k := range order {
		order[k] = k
		cent[k] = m.Centroid(k)
	}
	sort.SliceStable(order, func(i, j int) bool {
		return cent[order[i]][axis] < cent[order[j]][axis]
	})
	pm := utils.NewPartitionMap(nparts, m.NumElements)
	EToP = make([]int, m.NumElements)
	for i, k := range order {
		bn, _, _ := pm.GetBucket(i)
		EToP[k] = bn
	}
	return
}

// PartitionBy runs the named partitioner, "coord" or "metis"
func PartitionBy(name string, m *Mesh, nparts int) (EToP []int, err error) {
	if nparts == 1 {
		return make([]int, m.NumElements), nil
	}
	switch strings.ToLower(name) {
	case "", "coord", "coordinate":
		return PartitionCoordinate(m, nparts), nil
	case "metis":
		return PartitionMetis(m, nparts)
	}
	return nil, fmt.Errorf("unknown partitioner %q", name)
}
