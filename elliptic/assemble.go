package elliptic

import (
	"fmt"
	"sort"

	"github.com/notargets/gosem/comm"
	"github.com/notargets/gosem/utils"
)

// Assembled is the global matrix of a level restricted to the rows this rank
// owns. Rows held elsewhere are empty.
type Assembled struct {
	Matrix  utils.CSR
	NGlobal int
	// Rows are the owned global rows
	Rows []int
	// GlobalOf[i] is the global DOF of local node i, -1 for masked nodes
	GlobalOf []int
}

// GlobalNumbering returns the global DOF of every local node and the global
// size. Continuous levels number unmasked gathered nodes, IPDG levels number
// node n of the element with global id e as e*Np+n.
func (lvl *Level) GlobalNumbering() (globalOf []int, nglobal int, err error) {
	Np := lvl.Ref.Np
	globalOf = make([]int, lvl.Nlocal())
	if lvl.Config.Mode == Continuous {
		for i, gid := range lvl.GS.LocalToGathered {
			globalOf[i] = lvl.Numbering.Global[gid]
		}
		return globalOf, lvl.Numbering.NGlobal, nil
	}
	for k, e := range lvl.Topo.Partition.GlobalIDs {
		for n := 0; n < Np; n++ {
			globalOf[k*Np+n] = e*Np + n
		}
	}
	var nelem int
	if nelem, err = comm.AllSum(lvl.Topo.Comm, lvl.Topo.K); err != nil {
		return
	}
	return globalOf, nelem * Np, nil
}

// Assemble probes the operator with every global unit vector in turn. It costs
// one collective Apply per global DOF and is meant for coarse levels and
// checks.
func Assemble(lvl *Level) (as *Assembled, err error) {
	globalOf, nglobal, err := lvl.GlobalNumbering()
	if err != nil {
		return
	}
	var (
		rowOwner = make([]bool, len(globalOf))
		seen     = make(map[int]bool)
		dok      = utils.NewDOK(nglobal, nglobal)
		e        = make([]float64, lvl.Nlocal())
		Ae       = make([]float64, lvl.Nlocal())
		cols     = make(map[int][]int)
	)
	as = &Assembled{NGlobal: nglobal, GlobalOf: globalOf}
	for i, g := range globalOf {
		if g < 0 {
			continue
		}
		cols[g] = append(cols[g], i)
		if seen[g] || (lvl.Config.Mode == Continuous && !lvl.GS.Owned(lvl.GS.LocalToGathered[i])) {
			continue
		}
		seen[g] = true
		rowOwner[i] = true
		as.Rows = append(as.Rows, g)
	}
	sort.Ints(as.Rows)
	for col := 0; col < nglobal; col++ {
		for _, i := range cols[col] {
			e[i] = 1
		}
		if err = lvl.ApplyTo(e, Ae); err != nil {
			return nil, fmt.Errorf("assembling column %d: %w", col, err)
		}
		for _, i := range cols[col] {
			e[i] = 0
		}
		for i, owner := range rowOwner {
			if owner && Ae[i] != 0 {
				dok.Set(globalOf[i], col, Ae[i])
			}
		}
	}
	as.Matrix = dok.ToCSR()
	return
}
