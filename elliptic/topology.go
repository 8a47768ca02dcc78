package elliptic

import (
	"fmt"

	"github.com/notargets/gosem/comm"
	"github.com/notargets/gosem/halo"
	"github.com/notargets/gosem/mesh"
	"github.com/notargets/gosem/utils"
)

// Topology is the degree independent part of a level: the rank's partition,
// its communicator and the element halo with the vertex data of the halo
// elements. Levels of every degree share one Topology and never modify it.
type Topology struct {
	Comm      comm.Comm
	Partition *mesh.Partition
	Type      utils.ElementType
	Dim       int
	K         int
	Halo      *halo.ElementHalo
	// Global vertex ids and vertex coordinates of the halo elements, in halo
	// order
	HaloEToV   [][]int
	HaloCoords [][][]float64
}

// NewTopology exchanges the halo element vertices once. All ranks must call it
// together.
func NewTopology(c comm.Comm, p *mesh.Partition) (topo *Topology, err error) {
	if p.Rank != c.Rank() || p.Size != c.Size() {
		return nil, fmt.Errorf("%w: partition %d of %d on rank %d of %d",
			ErrConfig, p.Rank, p.Size, c.Rank(), c.Size())
	}
	var (
		h      = halo.NewElementHalo(c, p)
		nverts = p.Type.GetNumVertices()
		K      = p.NumElements()
		ntot   = h.Nlocal + h.Nhalo
	)
	topo = &Topology{
		Comm: c, Partition: p, Type: p.Type, Dim: p.Dim, K: K, Halo: h,
	}
	etov := make([]int, ntot*nverts)
	xv := make([]float64, ntot*nverts*p.Dim)
	for k := 0; k < K; k++ {
		copy(etov[k*nverts:], p.EToV[k])
		for v := 0; v < nverts; v++ {
			copy(xv[(k*nverts+v)*p.Dim:], p.Coords[k][v])
		}
	}
	if err = halo.ExchangeElements(h, etov, nverts); err != nil {
		return nil, err
	}
	if err = halo.ExchangeElements(h, xv, nverts*p.Dim); err != nil {
		return nil, err
	}
	topo.HaloEToV = make([][]int, h.Nhalo)
	topo.HaloCoords = make([][][]float64, h.Nhalo)
	for i := range topo.HaloEToV {
		k := K + i
		topo.HaloEToV[i] = etov[k*nverts : (k+1)*nverts]
		topo.HaloCoords[i] = make([][]float64, nverts)
		for v := 0; v < nverts; v++ {
			topo.HaloCoords[i][v] = xv[(k*nverts+v)*p.Dim : (k*nverts+v+1)*p.Dim]
		}
	}
	return
}

// Nhalo is the number of halo elements
func (topo *Topology) Nhalo() int { return topo.Halo.Nhalo }

// EToV returns the global vertex ids of local or halo element k
func (topo *Topology) EToV(k int) []int {
	if k < topo.K {
		return topo.Partition.EToV[k]
	}
	return topo.HaloEToV[k-topo.K]
}

// vertexCoords returns the vertex coordinates of the local elements, followed by
// the halo elements when withHalo is set.
func (topo *Topology) vertexCoords(withHalo bool) (verts [][][]float64) {
	verts = topo.Partition.Coords
	if withHalo && topo.Nhalo() > 0 {
		verts = append(append(make([][][]float64, 0, topo.K+topo.Nhalo()), verts...), topo.HaloCoords...)
	}
	return
}
