package elliptic

import (
	"math"

	"github.com/notargets/gosem/element"
	"github.com/notargets/gosem/halo"
	"github.com/notargets/gosem/mesh"
	"github.com/notargets/gosem/utils"
)

// Mask is the continuous boundary classification of one level
type Mask struct {
	// NodeKind[k*Np+n] is the vote of element k for node n under the mask
	// rule, BCNone when no tagged face of k touches n
	NodeKind []utils.BCType
	// Masked[g] is set for gathered ids with a prescribed value
	Masked []bool
	// MaskedNodes lists the local nodes whose gathered id is masked
	MaskedNodes []int
	// DirichletTag[i] is the smallest Dirichlet id touching masked local node
	// MaskedNodes[i] on any rank
	DirichletTag []int
}

// classifyNodes marks the nodes of every tagged boundary face. A node on faces
// of different kinds is reduced the same way copies are reduced across
// elements, so how the elements split the faces around a node does not matter:
// Neumann wins under MaskAllDirichlet, Dirichlet wins under MaskAnyDirichlet.
func classifyNodes(p *mesh.Partition, re *element.Reference, bt BoundaryTable,
	rule MaskRule) (kind []utils.BCType, dtag []float64) {
	kind = make([]utils.BCType, p.NumElements()*re.Np)
	dtag = utils.ConstArray(len(kind), math.Inf(1))
	wins := func(bk, cur utils.BCType) bool {
		if rule == MaskAnyDirichlet {
			return bk < cur
		}
		return bk > cur
	}
	for k, links := range p.Links {
		for f, l := range links {
			if l.Kind != mesh.BoundaryFace || l.Tag == 0 {
				continue
			}
			bk := bt.Kind(l.Tag)
			for _, n := range re.Fmask[f] {
				node := k*re.Np + n
				if kind[node] == utils.BCNone || wins(bk, kind[node]) {
					kind[node] = bk
				}
				if bk == utils.BCDirichlet {
					dtag[node] = math.Min(dtag[node], float64(l.Tag))
				}
			}
		}
	}
	return
}

// buildMask reduces the node kinds over every copy of a gathered id. Untagged
// copies do not vote. Under MaskAllDirichlet a Neumann copy keeps the id free,
// under MaskAnyDirichlet a single Dirichlet copy masks it. Both rules only ever
// mask more ids when Dirichlet tags are added.
func buildMask(gs *halo.GatherScatter, p *mesh.Partition, re *element.Reference, bt BoundaryTable,
	rule MaskRule) (mk *Mask, err error) {
	kind, dtag := classifyNodes(p, re, bt, rule)
	mk = &Mask{NodeKind: kind, Masked: make([]bool, gs.Ngather)}
	var (
		vote = make([]float64, gs.Nlocal)
		op   = halo.OpMax
		none = math.Inf(-1)
	)
	if rule == MaskAnyDirichlet {
		op, none = halo.OpMin, math.Inf(1)
	}
	for i, bk := range kind {
		vote[i] = none
		if bk != utils.BCNone {
			vote[i] = float64(bk)
		}
	}
	g, err := gs.Gather(vote, op)
	if err != nil {
		return nil, err
	}
	for gid, v := range g {
		mk.Masked[gid] = v == float64(utils.BCDirichlet)
	}
	if g, err = gs.Gather(dtag, halo.OpMin); err != nil {
		return nil, err
	}
	for i, gid := range gs.LocalToGathered {
		if mk.Masked[gid] {
			mk.MaskedNodes = append(mk.MaskedNodes, i)
			mk.DirichletTag = append(mk.DirichletTag, int(g[gid]))
		}
	}
	return
}
