package elliptic

import (
	"fmt"
	"log"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/notargets/gosem/comm"
	"github.com/notargets/gosem/element"
	"github.com/notargets/gosem/geometry"
	"github.com/notargets/gosem/halo"
)

// Level is the matrix-free elliptic operator at one polynomial degree. It is
// only handed out fully built and is never modified afterwards, except for the
// scratch space used by Apply, so Apply calls on one Level must not overlap.
type Level struct {
	N      int
	Topo   *Topology
	Config Config
	Ref    *element.Reference
	Selection
	// X[d][k*Np+n] are the node coordinates of the local elements, followed by
	// the halo elements for IPDG
	X   [][]float64
	Geo *geometry.Factors
	// Ndofs is the number of unknowns owned by this rank; NhaloDofs the number
	// of unknowns held here but owned by a neighbor
	Ndofs, NhaloDofs int
	// Continuous levels only
	GS        *halo.GatherScatter
	Numbering *halo.Numbering
	Mask      *Mask
	// IPDG levels only
	Faces *FaceMaps

	program *KernelProgram
	work    []float64
	grad    [][]float64
	haloBuf *halo.Buffers
}

// BuildLevel builds the degree N operator on a topology. Every rank must call
// it together with the same degree and configuration; a setup error on any
// rank fails the build on all of them.
func BuildLevel(topo *Topology, N int, cfg Config) (lvl *Level, err error) {
	if err = cfg.validate(); err != nil {
		return
	}
	var (
		re  *element.Reference
		X   [][]float64
		geo *geometry.Factors
		sel Selection
		dg  = cfg.Mode == IPDG
	)
	if re, err = element.NewReference(topo.Type, N); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	if sel, err = Select(re, topo.Dim, cfg); err != nil {
		return
	}
	// Geometry of the local elements, plus the halo elements for IPDG
	X = geometry.BuildCoordinates(re, topo.vertexCoords(dg), topo.Dim, cfg.ParallelDegree)
	geo, err = geometry.NewFactors(re, X, cfg.ParallelDegree)
	if err = collective(topo.Comm, err); err != nil {
		return
	}
	if err = collective(topo.Comm, cfg.Boundary.ValidateTags(topo.Partition)); err != nil {
		return
	}
	lvl = &Level{
		N: N, Topo: topo, Config: cfg, Ref: re, Selection: sel, X: X, Geo: geo,
	}
	if dg {
		err = lvl.buildTraces()
	} else {
		err = lvl.buildContinuous()
	}
	if err = collective(topo.Comm, err); err != nil {
		return nil, err
	}
	if err = lvl.buildKernels(); err != nil {
		return nil, err
	}
	return
}

// collective turns a local setup error into an error on every rank
func collective(c comm.Comm, err error) error {
	var bad int
	if err != nil {
		bad = 1
	}
	nbad, cerr := comm.AllSum(c, bad)
	switch {
	case err != nil:
		return err
	case cerr != nil:
		return cerr
	case nbad > 0:
		return fmt.Errorf("%w: setup failed on %d other rank(s)", ErrConfig, nbad)
	}
	return nil
}

// buildContinuous plans the gather-scatter, the mask and the DOF numbering
func (lvl *Level) buildContinuous() (err error) {
	topo := lvl.Topo
	if lvl.GS, err = halo.NewGatherScatter(topo.Comm, topo.Partition, lvl.Ref); err != nil {
		return
	}
	if lvl.Mask, err = buildMask(lvl.GS, topo.Partition, lvl.Ref, lvl.Config.Boundary, lvl.Config.MaskRule); err != nil {
		return
	}
	keep := make([]bool, lvl.GS.Ngather)
	for g, masked := range lvl.Mask.Masked {
		keep[g] = !masked
	}
	if lvl.Numbering, err = lvl.GS.Number(keep); err != nil {
		return
	}
	lvl.Ndofs, lvl.NhaloDofs = lvl.Numbering.NOwned, lvl.Numbering.NHalo
	lvl.work = make([]float64, topo.K*lvl.Ref.Np)
	return
}

// buildTraces matches the face nodes across element faces
func (lvl *Level) buildTraces() (err error) {
	topo := lvl.Topo
	if lvl.Faces, err = buildFaceMaps(topo, lvl.Ref, lvl.Geo, lvl.X, lvl.Config.Boundary); err != nil {
		return
	}
	Np := lvl.Ref.Np
	lvl.Ndofs, lvl.NhaloDofs = topo.K*Np, topo.Nhalo()*Np
	lvl.work = make([]float64, (topo.K+topo.Nhalo())*Np)
	lvl.haloBuf = topo.Halo.NewBuffers(Np)
	lvl.grad = make([][]float64, topo.Dim)
	for d := range lvl.grad {
		lvl.grad[d] = make([]float64, len(lvl.work))
	}
	return
}

func (lvl *Level) buildKernels() (err error) {
	kd := &KernelData{
		Ref:        lvl.Ref,
		Dim:        lvl.Topo.Dim,
		Mode:       lvl.Config.Mode,
		ElementMap: lvl.Config.ElementMap,
		Geo:        lvl.Geo,
		Verts:      lvl.Topo.Partition.Coords,
		Faces:      lvl.Faces,
		Tau:        lvl.Tau,
	}
	lvl.program = NewKernelProgram(lvl.Config.Kernels, kd, lvl.Selection, lvl.Config.ParallelDegree)
	for _, name := range lvl.Routines {
		if err = lvl.program.BuildKernel(name); err != nil {
			return
		}
	}
	return
}

// Nlocal is the length of the node fields Apply works on
func (lvl *Level) Nlocal() int { return lvl.Topo.K * lvl.Ref.Np }

// Apply returns the operator applied to q, a field of Np values per local
// element. It is collective over all ranks.
func (lvl *Level) Apply(q []float64) (Aq []float64, err error) {
	Aq = make([]float64, lvl.Nlocal())
	if err = lvl.ApplyTo(q, Aq); err != nil {
		return nil, err
	}
	return
}

// ApplyTo is Apply writing into Aq. q is never modified.
func (lvl *Level) ApplyTo(q, Aq []float64) (err error) {
	if len(q) != lvl.Nlocal() || len(Aq) != lvl.Nlocal() {
		return fmt.Errorf("%w: apply of %d values into %d, level has %d",
			ErrFieldSize, len(q), len(Aq), lvl.Nlocal())
	}
	var (
		K  = lvl.Topo.K
		kp = lvl.program
	)
	if lvl.Config.Mode == IPDG {
		copy(lvl.work, q)
		if err = lvl.Topo.Halo.Exchange(lvl.work, lvl.haloBuf); err != nil {
			return
		}
		args := append([][]float64{lvl.work}, lvl.grad...)
		if err = kp.RunKernel(lvl.Routines[0], K+lvl.Topo.Nhalo(), args...); err != nil {
			return
		}
		args = append([][]float64{lvl.work, Aq}, lvl.grad...)
		return kp.RunKernel(lvl.Routines[1], K, args...)
	}
	// Masked values are prescribed: they leave the product and keep their input
	copy(lvl.work, q)
	for _, i := range lvl.Mask.MaskedNodes {
		lvl.work[i] = 0
	}
	if err = kp.RunKernel(lvl.Routines[0], K, lvl.work, Aq); err != nil {
		return
	}
	if err = lvl.GS.GatherScatter(Aq, halo.OpAdd); err != nil {
		return
	}
	for _, i := range lvl.Mask.MaskedNodes {
		Aq[i] = q[i]
	}
	return
}

// ApplyBoundaryValues writes the Dirichlet data of the boundary table into the
// masked nodes of q. Every copy of a masked node receives the value computed
// by the owning rank, so q stays continuous. IPDG levels take Dirichlet data
// weakly and leave q alone.
func (lvl *Level) ApplyBoundaryValues(q []float64) (err error) {
	if len(q) != lvl.Nlocal() {
		return fmt.Errorf("%w: boundary values for %d values, level has %d", ErrFieldSize, len(q), lvl.Nlocal())
	}
	if lvl.Config.Mode == IPDG {
		return
	}
	var (
		gs   = lvl.GS
		seen = make(map[int]bool)
		x    = make([]float64, lvl.Topo.Dim)
	)
	for i := range lvl.work {
		lvl.work[i] = 0
	}
	for j, node := range lvl.Mask.MaskedNodes {
		gid := gs.LocalToGathered[node]
		if !gs.Owned(gid) || seen[gid] {
			continue
		}
		seen[gid] = true
		vf := lvl.Config.Boundary[lvl.Mask.DirichletTag[j]].Value
		if vf == nil {
			continue
		}
		for d := range x {
			x[d] = lvl.X[d][node]
		}
		lvl.work[node] = vf(x)
	}
	if err = gs.GatherScatter(lvl.work, halo.OpAdd); err != nil {
		return
	}
	for _, node := range lvl.Mask.MaskedNodes {
		q[node] = lvl.work[node]
	}
	return
}

// Report logs a one line summary of q for output frame frame and returns the
// next frame number. Continuous fields count every gathered node once. It is
// collective; rank 0 writes the log line.
func (lvl *Level) Report(frame int, q []float64) (next int, err error) {
	if len(q) != lvl.Nlocal() {
		return frame, fmt.Errorf("%w: report of %d values, level has %d", ErrFieldSize, len(q), lvl.Nlocal())
	}
	vals := q
	if lvl.Config.Mode == Continuous {
		vals = make([]float64, 0, lvl.GS.Ngather)
		seen := make([]bool, lvl.GS.Ngather)
		for i, gid := range lvl.GS.LocalToGathered {
			if lvl.GS.Owned(gid) && !seen[gid] {
				seen[gid] = true
				vals = append(vals, q[i])
			}
		}
	}
	var (
		c        = lvl.Topo.Comm
		sumSq    = floats.Dot(vals, vals)
		min, max = math.Inf(1), math.Inf(-1)
		ndofs    int
	)
	if len(vals) > 0 {
		min, max = floats.Min(vals), floats.Max(vals)
	}
	if sumSq, err = comm.AllSum(c, sumSq); err != nil {
		return frame, err
	}
	if min, err = comm.AllMin(c, min); err != nil {
		return frame, err
	}
	if max, err = comm.AllMax(c, max); err != nil {
		return frame, err
	}
	if ndofs, err = comm.AllSum(c, lvl.Ndofs); err != nil {
		return frame, err
	}
	if c.Rank() == 0 {
		log.Printf("frame %4d: %s N=%d Ndofs=%d |q|=%.6e min=%.6e max=%.6e",
			frame, lvl.Suffix, lvl.N, ndofs, math.Sqrt(sumSq), min, max)
	}
	return frame + 1, nil
}
