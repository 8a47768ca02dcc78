package elliptic

import (
	"fmt"
	"sort"

	"github.com/notargets/gosem/mesh"
	"github.com/notargets/gosem/utils"
)

// ExteriorFunc returns the exterior trace (uP, dudnP) seen across a boundary
// face node, given the interior trace and the node position.
type ExteriorFunc func(x []float64, uM, dudnM float64) (uP, dudnP float64)

// ValueFunc returns the prescribed value at a boundary node
type ValueFunc func(x []float64) float64

// BoundaryBehavior is what a boundary id means to the operator
type BoundaryBehavior struct {
	Kind utils.BCType
	// Exterior closes the IPDG flux on faces with this id; nil selects the
	// homogeneous closure of Kind
	Exterior ExteriorFunc
	// Value gives Dirichlet data for ApplyBoundaryValues; nil means zero
	Value ValueFunc
}

// BoundaryTable maps nonzero boundary ids to their behavior. Id 0 is never in
// the table: an untagged boundary face is natural.
type BoundaryTable map[int]BoundaryBehavior

func DefaultBoundaryTable() BoundaryTable {
	return BoundaryTable{
		1: {Kind: utils.BCDirichlet},
		2: {Kind: utils.BCNeumann},
	}
}

// NewBoundaryTable builds a table from boundary condition names per id, as
// read from an input file.
func NewBoundaryTable(names map[int]string) (bt BoundaryTable, err error) {
	bt = make(BoundaryTable, len(names))
	for id, name := range names {
		var kind utils.BCType
		if kind, err = utils.ParseBCName(name); err != nil {
			return nil, fmt.Errorf("%w: boundary id %d: %v", ErrConfig, id, err)
		}
		bt[id] = BoundaryBehavior{Kind: kind}
	}
	return bt, bt.check()
}

func (bt BoundaryTable) check() error {
	for id, bb := range bt {
		if id <= 0 {
			return fmt.Errorf("%w: boundary id %d must be positive", ErrConfig, id)
		}
		if bb.Kind != utils.BCDirichlet && bb.Kind != utils.BCNeumann {
			return fmt.Errorf("%w: boundary id %d has kind %v", ErrConfig, id, bb.Kind)
		}
	}
	return nil
}

// Kind returns the condition of a face tag; tag 0 is BCNone
func (bt BoundaryTable) Kind(tag int) utils.BCType {
	if tag == 0 {
		return utils.BCNone
	}
	return bt[tag].Kind
}

// exterior returns the closure applied on faces with the given tag
func (bt BoundaryTable) exterior(tag int) ExteriorFunc {
	bb := bt[tag]
	if bb.Exterior != nil {
		return bb.Exterior
	}
	if bb.Kind == utils.BCDirichlet {
		return dirichletExterior
	}
	return neumannExterior
}

func dirichletExterior(_ []float64, uM, dudnM float64) (float64, float64) { return -uM, dudnM }

func neumannExterior(_ []float64, uM, dudnM float64) (float64, float64) { return uM, -dudnM }

// ValidateTags checks every boundary face tag of the partition against the
// table. The error names each unknown id once.
func (bt BoundaryTable) ValidateTags(p *mesh.Partition) error {
	unknown := make(map[int]int)
	for _, links := range p.Links {
		for _, l := range links {
			if l.Kind != mesh.BoundaryFace || l.Tag == 0 {
				continue
			}
			if _, ok := bt[l.Tag]; !ok {
				unknown[l.Tag]++
			}
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	var (
		ids    = make([]int, 0, len(unknown))
		nfaces int
	)
	for id, cnt := range unknown {
		ids = append(ids, id)
		nfaces += cnt
	}
	sort.Ints(ids)
	return fmt.Errorf("%w: %v on rank %d (%d faces)", ErrUnknownBoundary, ids, p.Rank, nfaces)
}
