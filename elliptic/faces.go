package elliptic

import (
	"fmt"

	"github.com/notargets/gosem/element"
	"github.com/notargets/gosem/geometry"
	"github.com/notargets/gosem/halo"
	"github.com/notargets/gosem/mesh"
)

// FaceMaps connects every face node of the local elements to the matching node
// across the face. Face node arrays are indexed (k*Nfaces+f)*Nfp+i like the
// face arrays of geometry.Factors.
type FaceMaps struct {
	Nfp, Nfaces int
	// VmapM and VmapP are the volume node indices inside and across the face;
	// across a boundary face VmapP repeats VmapM
	VmapM, VmapP []int
	// FaceP is the face array index of the exterior node, the node's own index
	// on boundary faces
	FaceP []int
	// Closure[k*Nfaces+f] builds the exterior trace on boundary faces and is nil
	// on faces shared with another element
	Closure []ExteriorFunc
	// X[d][k*Np+n] are the node coordinates handed to closures
	X [][]float64
}

// buildFaceMaps matches face nodes by their lattice keys, so neighbors with
// any relative face orientation line up exactly. geo must cover the local and
// halo elements.
func buildFaceMaps(topo *Topology, re *element.Reference, geo *geometry.Factors, X [][]float64,
	bt BoundaryTable) (fm *FaceMaps, err error) {
	var (
		K      = topo.K
		nfaces = re.Nfaces
		nfp    = re.Nfp
		nface  = K * nfaces * nfp
	)
	fm = &FaceMaps{
		Nfp: nfp, Nfaces: nfaces,
		VmapM:   make([]int, nface),
		VmapP:   make([]int, nface),
		FaceP:   make([]int, nface),
		Closure: make([]ExteriorFunc, K*nfaces),
		X:       X,
	}
	exterior := make(map[string]int, nfp)
	for k := 0; k < K; k++ {
		for f, link := range topo.Partition.Links[k] {
			for i, n := range re.Fmask[f] {
				fi := geo.FaceIndex(k, f, i)
				fm.VmapM[fi] = k*re.Np + n
				fm.VmapP[fi] = k*re.Np + n
				fm.FaceP[fi] = fi
			}
			var kn int
			switch link.Kind {
			case mesh.BoundaryFace:
				if link.Tag == 0 {
					fm.Closure[k*nfaces+f] = neumannExterior
				} else {
					fm.Closure[k*nfaces+f] = bt.exterior(link.Tag)
				}
				continue
			case mesh.InteriorFace:
				kn = link.Elem
			case mesh.RemoteFace:
				kn = topo.Halo.Index(link.Elem)
			}
			fn := link.Face
			for key := range exterior {
				delete(exterior, key)
			}
			for j, n := range re.Fmask[fn] {
				key, _ := halo.NodeKey(re, topo.EToV(kn), n)
				exterior[key] = j
			}
			for i, n := range re.Fmask[f] {
				key, _ := halo.NodeKey(re, topo.EToV(k), n)
				j, ok := exterior[key]
				if !ok {
					return nil, fmt.Errorf("%w: face %d of element %d does not match face %d of its neighbor",
						ErrConfig, f, topo.Partition.GlobalIDs[k], fn)
				}
				fi := geo.FaceIndex(k, f, i)
				fm.VmapP[fi] = kn*re.Np + re.Fmask[fn][j]
				fm.FaceP[fi] = geo.FaceIndex(kn, fn, j)
			}
		}
	}
	return
}
