package elliptic

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/gosem/comm"
	"github.com/notargets/gosem/halo"
	"github.com/notargets/gosem/mesh"
	"github.com/notargets/gosem/utils"
)

var allTypes = []utils.ElementType{utils.Quad, utils.Triangle, utils.Hex, utils.Tet}

func boxMesh(t *testing.T, et utils.ElementType, n int, sideTags ...int) *mesh.Mesh {
	dim := et.GetDimension()
	b := mesh.Box{Type: et, SideTags: sideTags}
	for a := 0; a < dim; a++ {
		b.Cells = append(b.Cells, n)
		b.Lo = append(b.Lo, 0)
		b.Hi = append(b.Hi, 1)
	}
	m, err := mesh.NewBoxMesh(b)
	require.NoError(t, err)
	return m
}

// embedded lifts a 2D box mesh onto a tilted plane in 3D
func embedded(t *testing.T, et utils.ElementType, n int, sideTags ...int) *mesh.Mesh {
	em, err := boxMesh(t, et, n, sideTags...).Embed(func(x []float64) []float64 {
		return []float64{x[0], x[1], 0.5*x[0] - 0.25*x[1]}
	})
	require.NoError(t, err)
	return em
}

// onRanks splits m over nparts ranks, builds the degree N level on each and
// calls f with it
func onRanks(m *mesh.Mesh, nparts, N int, cfg Config, f func(p *mesh.Partition, lvl *Level) error) error {
	parts, err := m.Split(mesh.PartitionCoordinate(m, nparts), nparts)
	if err != nil {
		return err
	}
	return comm.Run(nparts, func(c comm.Comm) error {
		topo, err := NewTopology(c, parts[c.Rank()])
		if err != nil {
			return err
		}
		lvl, err := BuildLevel(topo, N, cfg)
		if err != nil {
			return err
		}
		return f(parts[c.Rank()], lvl)
	})
}

// smooth evaluates a nonlinear test function at every node of the level
func smooth(lvl *Level) (q []float64) {
	q = make([]float64, lvl.Nlocal())
	for i := range q {
		var (
			x = lvl.X[0][i]
			y = lvl.X[1][i]
			z float64
		)
		if len(lvl.X) == 3 {
			z = lvl.X[2][i]
		}
		q[i] = 1 + x + 0.5*y*y + x*y - z*z*x + math.Sin(z)
	}
	return
}

func maxAbs(v []float64) (m float64) {
	for _, x := range v {
		m = math.Max(m, math.Abs(x))
	}
	return
}

func TestLevel_Scenario2x2Quads(t *testing.T) {
	m := boxMesh(t, utils.Quad, 2)
	err := onRanks(m, 1, 2, DefaultConfig(Continuous), func(_ *mesh.Partition, lvl *Level) error {
		assert.Equal(t, 9, lvl.Ref.Np)
		assert.Equal(t, 25, lvl.Ndofs)
		assert.Equal(t, 0, lvl.NhaloDofs)
		assert.Empty(t, lvl.Mask.MaskedNodes)
		Aq, err := lvl.Apply(utils.ConstArray(lvl.Nlocal(), 3))
		if err != nil {
			return err
		}
		assert.Less(t, maxAbs(Aq), 1.e-12)
		return nil
	})
	require.NoError(t, err)
}

func TestLevel_ConstantNullSpace(t *testing.T) {
	type meshCase struct {
		name string
		m    *mesh.Mesh
	}
	var cases []meshCase
	for _, et := range allTypes {
		cases = append(cases, meshCase{et.String(), boxMesh(t, et, 2, 2, 2)})
	}
	cases = append(cases,
		meshCase{"Quad3D", embedded(t, utils.Quad, 2)},
		meshCase{"Tri3D", embedded(t, utils.Triangle, 2)},
	)
	degrees := []int{1, 2, 3}
	if testing.Short() {
		degrees = []int{1, 2}
	}
	for _, tc := range cases {
		for _, mode := range []Discretization{Continuous, IPDG} {
			err := onRanks(tc.m, 1, degrees[0], DefaultConfig(mode), func(_ *mesh.Partition, base *Level) error {
				for _, N := range degrees {
					lvl, err := BuildAtDegree(base, N)
					if err != nil {
						return err
					}
					Aq, err := lvl.Apply(utils.ConstArray(lvl.Nlocal(), 1))
					if err != nil {
						return err
					}
					assert.Less(t, maxAbs(Aq), 1.e-10, "%s %v N=%d", tc.name, mode, N)
				}
				return nil
			})
			require.NoError(t, err, "%s %v", tc.name, mode)
		}
	}
}

func TestLevel_MaskMonotonicity(t *testing.T) {
	type tagCase struct {
		tags             []int
		wantAll, wantAny int
		description      string
	}
	// 3x3 quads at N=2 gather into 7x7 nodes
	cases := []tagCase{
		{nil, 49, 49, "no tags"},
		{[]int{2, 2, 2, 2}, 49, 49, "all Neumann"},
		{[]int{1}, 42, 42, "x- Dirichlet"},
		{[]int{1, 0, 2}, 43, 42, "x- Dirichlet, y- Neumann"},
		{[]int{1, 1, 1, 1}, 25, 25, "all Dirichlet"},
	}
	for _, tc := range cases {
		m := boxMesh(t, utils.Quad, 3, tc.tags...)
		for rule, want := range map[MaskRule]int{MaskAllDirichlet: tc.wantAll, MaskAnyDirichlet: tc.wantAny} {
			cfg := DefaultConfig(Continuous)
			cfg.MaskRule = rule
			err := onRanks(m, 1, 2, cfg, func(_ *mesh.Partition, lvl *Level) error {
				assert.Equal(t, want, lvl.Ndofs, "%s, rule %v", tc.description, rule)
				return nil
			})
			require.NoError(t, err)
		}
	}
	// Adding Dirichlet sides one at a time never frees a DOF, in 3D as well
	for _, et := range []utils.ElementType{utils.Tet, utils.Hex} {
		prev := math.MaxInt
		var tags []int
		for side := 0; side <= 6; side++ {
			if side > 0 {
				tags = append(tags, 1)
			}
			total := totalDofs(t, boxMesh(t, et, 2, tags...), 2, DefaultConfig(Continuous))
			if side == 0 {
				assert.Equal(t, 125, total, "%v", et)
			}
			assert.LessOrEqual(t, total, prev, "%v with %d Dirichlet sides", et, side)
			prev = total
		}
		assert.Equal(t, 27, prev, "%v interior nodes", et)
	}
}

func totalDofs(t *testing.T, m *mesh.Mesh, nparts int, cfg Config) (total int) {
	var mu sync.Mutex
	require.NoError(t, onRanks(m, nparts, 2, cfg, func(_ *mesh.Partition, lvl *Level) error {
		mu.Lock()
		defer mu.Unlock()
		total += lvl.Ndofs
		return nil
	}))
	return
}

func TestLevel_MaskRuleTieBreak(t *testing.T) {
	// Where the Dirichlet x- side meets the Neumann y- side the rule decides,
	// whichever way the elements split the faces along that edge. 2x2x2 cells
	// at N=2 gather into 5x5x5 nodes, 25 on the x- side, 5 on the shared edge.
	for _, nparts := range []int{1, 2} {
		counts := map[MaskRule][]int{}
		for _, et := range []utils.ElementType{utils.Hex, utils.Tet} {
			m := boxMesh(t, et, 2, 1, 0, 2)
			for _, rule := range []MaskRule{MaskAllDirichlet, MaskAnyDirichlet} {
				cfg := DefaultConfig(Continuous)
				cfg.MaskRule = rule
				counts[rule] = append(counts[rule], totalDofs(t, m, nparts, cfg))
			}
		}
		assert.Equal(t, []int{125 - 20, 125 - 20}, counts[MaskAllDirichlet], "hex, tet on %d ranks", nparts)
		assert.Equal(t, []int{125 - 25, 125 - 25}, counts[MaskAnyDirichlet], "hex, tet on %d ranks", nparts)
	}
	// One cell at N=1, the corner edge of a single hex against six tets
	for _, et := range []utils.ElementType{utils.Hex, utils.Tet} {
		m := boxMesh(t, et, 1, 1, 0, 2)
		var mu sync.Mutex
		for rule, want := range map[MaskRule]int{MaskAllDirichlet: 6, MaskAnyDirichlet: 4} {
			cfg := DefaultConfig(Continuous)
			cfg.MaskRule = rule
			require.NoError(t, onRanks(m, 1, 1, cfg, func(_ *mesh.Partition, lvl *Level) error {
				mu.Lock()
				defer mu.Unlock()
				assert.Equal(t, want, lvl.Ndofs, "%v rule %v", et, rule)
				return nil
			}))
		}
	}
}

func TestLevel_PartitionIndependent(t *testing.T) {
	nranks := []int{2, 3}
	if testing.Short() {
		nranks = []int{2}
	}
	for _, et := range allTypes {
		m := boxMesh(t, et, 3, 1, 2, 1, 0, 2)
		for _, mode := range []Discretization{Continuous, IPDG} {
			var (
				ref    []float64
				np     int
				refDof int
			)
			require.NoError(t, onRanks(m, 1, 2, DefaultConfig(mode), func(_ *mesh.Partition, lvl *Level) (err error) {
				np, refDof = lvl.Ref.Np, lvl.Ndofs
				ref, err = lvl.Apply(smooth(lvl))
				return
			}))
			for _, nparts := range nranks {
				var (
					mu    sync.Mutex
					ndofs int
				)
				err := onRanks(m, nparts, 2, DefaultConfig(mode), func(p *mesh.Partition, lvl *Level) error {
					Aq, err := lvl.Apply(smooth(lvl))
					if err != nil {
						return err
					}
					// Apply twice gives the same answer
					Aq2, err := lvl.Apply(smooth(lvl))
					if err != nil {
						return err
					}
					assert.Equal(t, Aq, Aq2)
					for kl, k := range p.GlobalIDs {
						for n := 0; n < np; n++ {
							assert.InDelta(t, ref[k*np+n], Aq[kl*np+n], 1.e-10,
								"%v %v %d ranks, element %d node %d", et, mode, nparts, k, n)
						}
					}
					mu.Lock()
					ndofs += lvl.Ndofs
					mu.Unlock()
					return nil
				})
				require.NoError(t, err)
				assert.Equal(t, refDof, ndofs, "%v %v on %d ranks", et, mode, nparts)
			}
		}
	}
}

func TestLevel_HaloSizes(t *testing.T) {
	m := boxMesh(t, utils.Quad, 4)
	for _, mode := range []Discretization{Continuous, IPDG} {
		err := onRanks(m, 2, 2, DefaultConfig(mode), func(_ *mesh.Partition, lvl *Level) error {
			if mode == IPDG {
				// Each half sees the 4 elements across the cut
				assert.Equal(t, 8*9, lvl.Ndofs)
				assert.Equal(t, 4*9, lvl.NhaloDofs)
			} else {
				// The cut line carries 9 nodes, owned by rank 0
				if lvl.Topo.Comm.Rank() == 0 {
					assert.Equal(t, 45, lvl.Ndofs)
					assert.Equal(t, 0, lvl.NhaloDofs)
				} else {
					assert.Equal(t, 36, lvl.Ndofs)
					assert.Equal(t, 9, lvl.NhaloDofs)
				}
			}
			return nil
		})
		require.NoError(t, err)
	}
}

func TestLevel_InterleavedDegrees(t *testing.T) {
	// Levels of different degree on one topology keep their own halo space, so
	// alternating between them gives the same products as calling each alone
	m := boxMesh(t, utils.Quad, 3, 1, 2, 1, 2)
	err := onRanks(m, 3, 2, DefaultConfig(IPDG), func(_ *mesh.Partition, lo *Level) error {
		hi, err := BuildAtDegree(lo, 3)
		if err != nil {
			return err
		}
		qLo, qHi := smooth(lo), smooth(hi)
		refLo, err := lo.Apply(qLo)
		if err != nil {
			return err
		}
		refHi, err := hi.Apply(qHi)
		if err != nil {
			return err
		}
		for i := 0; i < 3; i++ {
			aHi, err := hi.Apply(qHi)
			if err != nil {
				return err
			}
			aLo, err := lo.Apply(qLo)
			if err != nil {
				return err
			}
			assert.Equal(t, refHi, aHi)
			assert.Equal(t, refLo, aLo)
		}
		assert.NotSame(t, lo.haloBuf, hi.haloBuf)
		return nil
	})
	require.NoError(t, err)
}

func TestLevel_BuildAtDegree(t *testing.T) {
	m := boxMesh(t, utils.Triangle, 3, 1, 1, 2, 2)
	for _, mode := range []Discretization{Continuous, IPDG} {
		err := onRanks(m, 2, 2, DefaultConfig(mode), func(_ *mesh.Partition, lvl *Level) error {
			same, err := BuildAtDegree(lvl, 2)
			if err != nil {
				return err
			}
			assert.Same(t, lvl, same)
			q := smooth(lvl)
			a1, err := lvl.Apply(q)
			if err != nil {
				return err
			}
			a2, err := same.Apply(q)
			if err != nil {
				return err
			}
			assert.Equal(t, a1, a2)

			hi, err := BuildAtDegree(lvl, 4)
			if err != nil {
				return err
			}
			assert.Equal(t, 4, hi.N)
			assert.Same(t, lvl.Topo, hi.Topo)
			assert.Equal(t, lvl.Config.Mode, hi.Config.Mode)
			assert.Equal(t, 15, hi.Ref.Np)
			assert.Greater(t, hi.Ndofs, lvl.Ndofs)
			// No node indexed array is shared
			hi.X[0][0] = -1000
			assert.NotEqual(t, -1000., lvl.X[0][0])
			back, err := BuildAtDegree(hi, 2)
			if err != nil {
				return err
			}
			assert.NotSame(t, lvl, back)
			a3, err := back.Apply(q)
			if err != nil {
				return err
			}
			for i := range a1 {
				assert.InDelta(t, a1[i], a3[i], 1.e-12)
			}
			return nil
		})
		require.NoError(t, err)
	}
}

func TestLevel_Hierarchy(t *testing.T) {
	m := boxMesh(t, utils.Hex, 2, 1, 1)
	err := onRanks(m, 2, 4, DefaultConfig(Continuous), func(_ *mesh.Partition, base *Level) error {
		levels, err := BuildHierarchy(base, 4, 3, 2, 1, 1)
		if err != nil {
			return err
		}
		if !assert.Len(t, levels, 5) {
			return nil
		}
		assert.Same(t, base, levels[0])
		assert.Same(t, levels[3], levels[4])
		total := func(lvl *Level) int {
			n, err := comm.AllSum(lvl.Topo.Comm, lvl.Ndofs)
			assert.NoError(t, err)
			return n
		}
		for i := 1; i < 4; i++ {
			assert.Equal(t, 4-i, levels[i].N)
			assert.Less(t, total(levels[i]), total(levels[i-1]))
		}
		return nil
	})
	require.NoError(t, err)
}

func TestLevel_UnknownBoundary(t *testing.T) {
	// Tag 7 is not in the default table; only the x- side carries it, so only
	// one rank sees the bad tag but every rank fails
	m := boxMesh(t, utils.Quad, 4, 7)
	var (
		mu   sync.Mutex
		errs []error
	)
	parts, err := m.Split(mesh.PartitionCoordinate(m, 2), 2)
	require.NoError(t, err)
	err = comm.Run(2, func(c comm.Comm) error {
		topo, err := NewTopology(c, parts[c.Rank()])
		if err != nil {
			return err
		}
		lvl, err := BuildLevel(topo, 2, DefaultConfig(Continuous))
		assert.Nil(t, lvl)
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	require.Len(t, errs, 2)
	var unknown int
	for _, e := range errs {
		require.Error(t, e)
		if errors.Is(e, ErrUnknownBoundary) {
			unknown++
			assert.Contains(t, e.Error(), "[7]")
		} else {
			assert.ErrorIs(t, e, ErrConfig)
		}
	}
	assert.Equal(t, 1, unknown)

	// A table naming the id accepts it
	cfg := DefaultConfig(IPDG)
	cfg.Boundary, err = NewBoundaryTable(map[int]string{7: "wall"})
	require.NoError(t, err)
	require.NoError(t, onRanks(m, 2, 2, cfg, func(*mesh.Partition, *Level) error { return nil }))
}

func TestLevel_FieldSize(t *testing.T) {
	m := boxMesh(t, utils.Quad, 2)
	for _, mode := range []Discretization{Continuous, IPDG} {
		err := onRanks(m, 1, 2, DefaultConfig(mode), func(_ *mesh.Partition, lvl *Level) error {
			_, err := lvl.Apply(make([]float64, lvl.Nlocal()-1))
			assert.ErrorIs(t, err, ErrFieldSize)
			err = lvl.ApplyTo(make([]float64, lvl.Nlocal()), make([]float64, lvl.Nlocal()+1))
			assert.ErrorIs(t, err, ErrFieldSize)
			assert.ErrorIs(t, lvl.ApplyBoundaryValues(nil), ErrFieldSize)
			_, err = lvl.Report(0, nil)
			assert.ErrorIs(t, err, ErrFieldSize)
			return nil
		})
		require.NoError(t, err)
	}
}

func TestLevel_InputUnchanged(t *testing.T) {
	m := boxMesh(t, utils.Tet, 2, 1, 1, 2)
	for _, mode := range []Discretization{Continuous, IPDG} {
		err := onRanks(m, 2, 2, DefaultConfig(mode), func(_ *mesh.Partition, lvl *Level) error {
			q := smooth(lvl)
			keep := append([]float64{}, q...)
			if _, err := lvl.Apply(q); err != nil {
				return err
			}
			assert.Equal(t, keep, q)
			return nil
		})
		require.NoError(t, err)
	}
}

func TestLevel_DirichletData(t *testing.T) {
	for _, et := range allTypes {
		cfg := DefaultConfig(Continuous)
		cfg.Boundary = BoundaryTable{1: {Kind: utils.BCDirichlet, Value: linear}}
		m := boxMesh(t, et, 2, 1, 1, 1, 1, 1, 1)
		err := onRanks(m, 2, 3, cfg, func(_ *mesh.Partition, lvl *Level) error {
			q := make([]float64, lvl.Nlocal())
			if err := lvl.ApplyBoundaryValues(q); err != nil {
				return err
			}
			x := make([]float64, lvl.Topo.Dim)
			masked := make(map[int]bool)
			for _, i := range lvl.Mask.MaskedNodes {
				masked[i] = true
				for d := range x {
					x[d] = lvl.X[d][i]
				}
				assert.InDelta(t, linear(x), q[i], 1.e-12)
			}
			for i := range q {
				if !masked[i] {
					assert.Equal(t, 0., q[i])
				}
			}
			// Prescribed values pass through, and do not feed the free rows
			Aq, err := lvl.Apply(q)
			if err != nil {
				return err
			}
			for i := range Aq {
				if masked[i] {
					assert.Equal(t, q[i], Aq[i])
				} else {
					assert.Equal(t, 0., Aq[i])
				}
			}
			return nil
		})
		require.NoError(t, err)
	}
}

func TestLevel_LinearIsHarmonic(t *testing.T) {
	// Without constraints, a linear field gives no residual at nodes away
	// from the boundary
	for _, et := range allTypes {
		m := boxMesh(t, et, 3)
		err := onRanks(m, 2, 3, DefaultConfig(Continuous), func(_ *mesh.Partition, lvl *Level) error {
			var (
				q = make([]float64, lvl.Nlocal())
				x = make([]float64, lvl.Topo.Dim)
			)
			inside := make([]bool, len(q))
			for i := range q {
				inside[i] = true
				for d := range x {
					x[d] = lvl.X[d][i]
					if x[d] < 1.e-10 || x[d] > 1-1.e-10 {
						inside[i] = false
					}
				}
				q[i] = linear(x)
			}
			Aq, err := lvl.Apply(q)
			if err != nil {
				return err
			}
			for i, in := range inside {
				if in {
					assert.InDelta(t, 0, Aq[i], 1.e-10, "%v node %d", et, i)
				}
			}
			return nil
		})
		require.NoError(t, err)
	}
}

func linear(x []float64) (u float64) {
	u = 0.5
	for d, xd := range x {
		u += float64(d+1) * xd
	}
	return
}

func TestLevel_TrilinearMatchesIsoparametric(t *testing.T) {
	m := boxMesh(t, utils.Hex, 3, 1, 2, 1, 2, 1, 2)
	// Move the interior vertices so the elements are genuinely trilinear
	for v, x := range m.Vertices {
		interior := true
		for _, xd := range x {
			if xd < 1.e-12 || xd > 1-1.e-12 {
				interior = false
			}
		}
		if interior {
			x[0] += 0.05 * math.Sin(float64(3*v))
			x[1] += 0.05 * math.Cos(float64(5*v))
			x[2] += 0.03 * math.Sin(float64(7*v))
		}
	}
	results := make(map[ElementMap][]float64)
	for _, em := range []ElementMap{Isoparametric, Trilinear} {
		cfg := DefaultConfig(Continuous)
		cfg.ElementMap = em
		err := onRanks(m, 1, 3, cfg, func(_ *mesh.Partition, lvl *Level) (err error) {
			want := AxKernel + "Hex3D"
			if em == Trilinear {
				want = AxTrilinearKernel + "Hex3D"
			}
			assert.Equal(t, []string{want}, lvl.Routines)
			results[em], err = lvl.Apply(smooth(lvl))
			return
		})
		require.NoError(t, err)
	}
	require.Len(t, results[Trilinear], len(results[Isoparametric]))
	for i, v := range results[Isoparametric] {
		assert.InDelta(t, v, results[Trilinear][i], 1.e-10)
	}
}

func TestLevel_Report(t *testing.T) {
	m := boxMesh(t, utils.Quad, 2)
	err := onRanks(m, 2, 2, DefaultConfig(Continuous), func(_ *mesh.Partition, lvl *Level) error {
		frame := 0
		for i := 0; i < 3; i++ {
			next, err := lvl.Report(frame, utils.ConstArray(lvl.Nlocal(), 2))
			if err != nil {
				return err
			}
			assert.Equal(t, frame+1, next)
			frame = next
		}
		assert.Equal(t, 3, frame)
		return nil
	})
	require.NoError(t, err)
}

func TestLevel_GatherScatterAgrees(t *testing.T) {
	// The continuous product is continuous: every copy of a node carries the
	// same value
	m := boxMesh(t, utils.Tet, 2, 2)
	err := onRanks(m, 3, 2, DefaultConfig(Continuous), func(_ *mesh.Partition, lvl *Level) error {
		Aq, err := lvl.Apply(smooth(lvl))
		if err != nil {
			return err
		}
		lo := append([]float64{}, Aq...)
		hi := append([]float64{}, Aq...)
		if err = lvl.GS.GatherScatter(lo, halo.OpMin); err != nil {
			return err
		}
		if err = lvl.GS.GatherScatter(hi, halo.OpMax); err != nil {
			return err
		}
		assert.Equal(t, lo, hi)
		return nil
	})
	require.NoError(t, err)
}
