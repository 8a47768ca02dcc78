package halo

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/notargets/gosem/comm"
	"github.com/notargets/gosem/element"
	"github.com/notargets/gosem/mesh"
)

type Op uint8

const (
	OpAdd Op = iota
	OpMin
	OpMax
)

func (op Op) String() string {
	return [...]string{"Add", "Min", "Max"}[op]
}

func (op Op) identity() float64 {
	switch op {
	case OpMin:
		return math.Inf(1)
	case OpMax:
		return math.Inf(-1)
	}
	return 0
}

func (op Op) apply(a, b float64) float64 {
	switch op {
	case OpMin:
		return math.Min(a, b)
	case OpMax:
		return math.Max(a, b)
	}
	return a + b
}

// NodeKey identifies node n of an element with global vertex ids vids. The key
// lists the (vertex, lattice weight) pairs with nonzero weight in vertex order,
// so coincident nodes of different elements produce the same key without any
// coordinate comparison.
func NodeKey(re *element.Reference, vids []int, n int) (key string, verts []int) {
	type pair struct{ v, w int }
	pairs := make([]pair, 0, re.Nverts)
	for v, w := range re.Lattice[n] {
		if w != 0 {
			pairs = append(pairs, pair{vids[v], w})
		}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].v < pairs[j].v })
	var b strings.Builder
	verts = make([]int, len(pairs))
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(p.v))
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(p.w))
		verts[i] = p.v
	}
	return b.String(), verts
}

// GatherScatter is the continuous node numbering of a degree N field. Local
// node k*Np+n maps to a gathered id; gathered ids are numbered in key order, and
// ids shared with other ranks are listed per rank in the same key order on both
// sides.
type GatherScatter struct {
	comm    comm.Comm
	Nlocal  int
	Ngather int
	// LocalToGathered[k*Np+n] is the gathered id of a local node
	LocalToGathered []int
	Keys            []string
	// Owner is the lowest rank holding each gathered id
	Owner []int
	// Shared[r] lists the gathered ids held by rank r as well, in key order
	Shared map[int][]int
	// Neighbors are all ranks sharing a vertex with this one; every exchange
	// sends to and receives from each of them
	Neighbors []int
	// Local gather lists in CSR form: nodes of gathered id g are
	// gatherNodes[gatherStart[g]:gatherStart[g+1]]
	gatherStart, gatherNodes []int
	gathered                 []float64
	partial                  []float64
	send, recv               map[int][]float64
}

// NewGatherScatter builds the plan for partition p at the degree of re. All
// ranks of the world must call it together.
func NewGatherScatter(c comm.Comm, p *mesh.Partition, re *element.Reference) (gs *GatherScatter, err error) {
	var (
		K     = p.NumElements()
		keyOf = make([]string, K*re.Np)
		vsOf  = make(map[string][]int)
	)
	gs = &GatherScatter{comm: c, Nlocal: K * re.Np, Shared: make(map[int][]int)}
	for k := 0; k < K; k++ {
		for n := 0; n < re.Np; n++ {
			key, verts := NodeKey(re, p.EToV[k], n)
			keyOf[k*re.Np+n] = key
			if _, ok := vsOf[key]; !ok {
				vsOf[key] = verts
			}
		}
	}
	gs.Keys = make([]string, 0, len(vsOf))
	for key := range vsOf {
		gs.Keys = append(gs.Keys, key)
	}
	sort.Strings(gs.Keys)
	gs.Ngather = len(gs.Keys)
	idOf := make(map[string]int, gs.Ngather)
	for g, key := range gs.Keys {
		idOf[key] = g
	}
	gs.LocalToGathered = make([]int, gs.Nlocal)
	counts := make([]int, gs.Ngather+1)
	for i, key := range keyOf {
		g := idOf[key]
		gs.LocalToGathered[i] = g
		counts[g+1]++
	}
	for g := 0; g < gs.Ngather; g++ {
		counts[g+1] += counts[g]
	}
	gs.gatherStart = counts
	gs.gatherNodes = make([]int, gs.Nlocal)
	fill := append([]int{}, counts[:gs.Ngather]...)
	for i, g := range gs.LocalToGathered {
		gs.gatherNodes[fill[g]] = i
		fill[g]++
	}

	// Candidate ranks of a key hold every one of its vertices
	neighborSet := make(map[int]bool)
	for _, vr := range p.VertexRanks {
		for _, r := range vr {
			if r != c.Rank() {
				neighborSet[r] = true
			}
		}
	}
	for r := range neighborSet {
		gs.Neighbors = append(gs.Neighbors, r)
	}
	sort.Ints(gs.Neighbors)
	cand := make(map[int][]int, len(gs.Neighbors))
	for g, key := range gs.Keys {
		for _, r := range candidateRanks(p.VertexRanks, vsOf[key], c.Rank()) {
			cand[r] = append(cand[r], g)
		}
	}
	send := make(map[int][]string, len(gs.Neighbors))
	for _, r := range gs.Neighbors {
		list := make([]string, len(cand[r]))
		for i, g := range cand[r] {
			list[i] = gs.Keys[g]
		}
		send[r] = list
	}
	recv, err := comm.ExchangeVar(c, send, gs.Neighbors)
	if err != nil {
		return nil, fmt.Errorf("gather-scatter setup: %w", err)
	}
	gs.Owner = make([]int, gs.Ngather)
	for g := range gs.Owner {
		gs.Owner[g] = c.Rank()
	}
	for _, r := range gs.Neighbors {
		// Both lists are in key order, so a merge finds the common keys
		var (
			mine   = cand[r]
			theirs = recv[r]
			i, j   int
		)
		for i < len(mine) && j < len(theirs) {
			switch {
			case gs.Keys[mine[i]] < theirs[j]:
				i++
			case gs.Keys[mine[i]] > theirs[j]:
				j++
			default:
				g := mine[i]
				gs.Shared[r] = append(gs.Shared[r], g)
				if r < gs.Owner[g] {
					gs.Owner[g] = r
				}
				i++
				j++
			}
		}
	}
	gs.gathered = make([]float64, gs.Ngather)
	gs.partial = make([]float64, gs.Ngather)
	gs.send = make(map[int][]float64, len(gs.Neighbors))
	gs.recv = make(map[int][]float64, len(gs.Neighbors))
	for _, r := range gs.Neighbors {
		gs.send[r] = make([]float64, len(gs.Shared[r]))
		gs.recv[r] = make([]float64, len(gs.Shared[r]))
	}
	return
}

func candidateRanks(vertexRanks map[int][]int, verts []int, self int) (ranks []int) {
	for i, v := range verts {
		vr, ok := vertexRanks[v]
		if !ok {
			return nil
		}
		if i == 0 {
			for _, r := range vr {
				if r != self {
					ranks = append(ranks, r)
				}
			}
			continue
		}
		kept := ranks[:0]
		for _, r := range ranks {
			if j := sort.SearchInts(vr, r); j < len(vr) && vr[j] == r {
				kept = append(kept, r)
			}
		}
		if ranks = kept; len(ranks) == 0 {
			return nil
		}
	}
	return
}

// Owned reports whether this rank owns gathered id g
func (gs *GatherScatter) Owned(g int) bool { return gs.Owner[g] == gs.comm.Rank() }

// Gather reduces the local field q (length Nlocal) over coincident nodes of all
// ranks and returns the gathered values. The returned slice is reused by the
// next call. Sums add rank contributions in rank order, so every rank holding a
// node computes the identical value.
func (gs *GatherScatter) Gather(q []float64, op Op) (g []float64, err error) {
	if len(q) != gs.Nlocal {
		panic(fmt.Errorf("gather of %d values, plan has %d local nodes", len(q), gs.Nlocal))
	}
	id := op.identity()
	for gid := 0; gid < gs.Ngather; gid++ {
		val := id
		for _, i := range gs.gatherNodes[gs.gatherStart[gid]:gs.gatherStart[gid+1]] {
			val = op.apply(val, q[i])
		}
		gs.partial[gid] = val
	}
	if len(gs.Neighbors) == 0 {
		copy(gs.gathered, gs.partial)
		return gs.gathered, nil
	}
	for _, r := range gs.Neighbors {
		for i, gid := range gs.Shared[r] {
			gs.send[r][i] = gs.partial[gid]
		}
	}
	if err = comm.ExchangeInto(gs.comm, gs.send, gs.recv); err != nil {
		return nil, fmt.Errorf("gather-scatter exchange: %w", err)
	}
	if op != OpAdd {
		copy(gs.gathered, gs.partial)
		for _, r := range gs.Neighbors {
			for i, gid := range gs.Shared[r] {
				gs.gathered[gid] = op.apply(gs.gathered[gid], gs.recv[r][i])
			}
		}
		return gs.gathered, nil
	}
	for gid := range gs.gathered {
		gs.gathered[gid] = 0
	}
	var (
		self     = gs.comm.Rank()
		selfDone bool
	)
	addSelf := func() {
		for gid, val := range gs.partial {
			gs.gathered[gid] += val
		}
		selfDone = true
	}
	for _, r := range gs.Neighbors {
		if r > self && !selfDone {
			addSelf()
		}
		for i, gid := range gs.Shared[r] {
			gs.gathered[gid] += gs.recv[r][i]
		}
	}
	if !selfDone {
		addSelf()
	}
	return gs.gathered, nil
}

// Scatter copies gathered values to every local node
func (gs *GatherScatter) Scatter(g, q []float64) {
	for i, gid := range gs.LocalToGathered {
		q[i] = g[gid]
	}
}

// GatherScatter reduces q over coincident nodes in place
func (gs *GatherScatter) GatherScatter(q []float64, op Op) error {
	g, err := gs.Gather(q, op)
	if err != nil {
		return err
	}
	gs.Scatter(g, q)
	return nil
}
