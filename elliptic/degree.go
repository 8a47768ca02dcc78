package elliptic

import (
	"fmt"
	"log"
)

// BuildAtDegree returns the operator at degree N on the topology and
// configuration of lvl. Asking for the degree lvl already has returns lvl
// itself. The new level shares the topology and nothing indexed by node.
func BuildAtDegree(lvl *Level, N int) (*Level, error) {
	if N == lvl.N {
		return lvl, nil
	}
	nl, err := BuildLevel(lvl.Topo, N, lvl.Config)
	if err != nil {
		return nil, fmt.Errorf("level at degree %d: %w", N, err)
	}
	return nl, nil
}

// BuildHierarchy builds one level per degree, in the order given, starting
// from base. Repeated degrees yield the same level.
func BuildHierarchy(base *Level, degrees ...int) (levels []*Level, err error) {
	byDegree := map[int]*Level{base.N: base}
	for _, N := range degrees {
		lvl, ok := byDegree[N]
		if !ok {
			if lvl, err = BuildAtDegree(base, N); err != nil {
				return nil, err
			}
			byDegree[N] = lvl
		}
		levels = append(levels, lvl)
	}
	if base.Topo.Comm.Rank() == 0 {
		for _, lvl := range levels {
			log.Printf("level %s N=%-2d Np=%-4d tau=%g", lvl.Suffix, lvl.N, lvl.Ref.Np, lvl.Tau)
		}
	}
	return
}
