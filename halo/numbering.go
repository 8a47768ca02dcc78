package halo

import (
	"fmt"

	"github.com/notargets/gosem/comm"
)

// Numbering is a global DOF numbering of a subset of the gathered ids
type Numbering struct {
	// Global[g] is the global DOF of gathered id g, -1 when g is not numbered
	Global []int
	// NOwned is the number of numbered ids owned by this rank, NHalo the number
	// numbered here but owned elsewhere
	NOwned, NHalo int
	// Offset is the first global DOF owned by this rank, NGlobal the total
	Offset, NGlobal int
}

// Number assigns consecutive global DOFs to the gathered ids with keep[g] true.
// Owners number their ids in key order starting at the prefix sum of the owned
// counts of lower ranks; other holders receive the owner's numbers. keep must
// agree on all ranks holding an id.
func (gs *GatherScatter) Number(keep []bool) (nb *Numbering, err error) {
	if len(keep) != gs.Ngather {
		panic(fmt.Errorf("numbering mask of %d values, plan has %d gathered ids", len(keep), gs.Ngather))
	}
	nb = &Numbering{Global: make([]int, gs.Ngather)}
	for g := range nb.Global {
		nb.Global[g] = -1
		if !keep[g] {
			continue
		}
		if gs.Owned(g) {
			nb.NOwned++
		} else {
			nb.NHalo++
		}
	}
	counts, err := comm.AllGather(gs.comm, nb.NOwned)
	if err != nil {
		return nil, fmt.Errorf("numbering: %w", err)
	}
	for r, cnt := range counts {
		if r < gs.comm.Rank() {
			nb.Offset += cnt
		}
		nb.NGlobal += cnt
	}
	next := nb.Offset
	for g := range nb.Global {
		if keep[g] && gs.Owned(g) {
			nb.Global[g] = next
			next++
		}
	}
	send := make(map[int][]int, len(gs.Neighbors))
	recv := make(map[int][]int, len(gs.Neighbors))
	for _, r := range gs.Neighbors {
		send[r] = make([]int, len(gs.Shared[r]))
		recv[r] = make([]int, len(gs.Shared[r]))
		for i, g := range gs.Shared[r] {
			send[r][i] = -1
			if gs.Owned(g) {
				send[r][i] = nb.Global[g]
			}
		}
	}
	if err = comm.ExchangeInto(gs.comm, send, recv); err != nil {
		return nil, fmt.Errorf("numbering: %w", err)
	}
	for _, r := range gs.Neighbors {
		for i, g := range gs.Shared[r] {
			if gs.Owner[g] == r && keep[g] {
				nb.Global[g] = recv[r][i]
			}
		}
	}
	return
}
