package elliptic

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/gosem/element"
	"github.com/notargets/gosem/mesh"
	"github.com/notargets/gosem/utils"
)

func TestTau(t *testing.T) {
	tests := []struct {
		et       utils.ElementType
		N, dim   int
		expected float64
	}{
		{utils.Triangle, 1, 2, 6},
		{utils.Triangle, 3, 2, 20},
		{utils.Triangle, 3, 3, 30},
		{utils.Quad, 1, 2, 16},
		{utils.Quad, 2, 3, 30},
		{utils.Hex, 4, 3, 70},
		{utils.Tet, 2, 3, 30},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, Tau(tt.et, tt.N, tt.dim), "%v N=%d dim=%d", tt.et, tt.N, tt.dim)
	}
}

func TestSelect(t *testing.T) {
	tests := []struct {
		et       utils.ElementType
		dim      int
		mode     Discretization
		em       ElementMap
		routines []string
	}{
		{utils.Quad, 2, Continuous, Isoparametric, []string{"ellipticPartialAxQuad2D"}},
		{utils.Quad, 3, Continuous, Trilinear, []string{"ellipticPartialAxQuad3D"}},
		{utils.Triangle, 3, IPDG, Isoparametric,
			[]string{"ellipticPartialGradientTri3D", "ellipticPartialAxIpdgTri3D"}},
		{utils.Hex, 3, Continuous, Trilinear, []string{"ellipticPartialAxTrilinearHex3D"}},
		{utils.Hex, 3, IPDG, Trilinear,
			[]string{"ellipticPartialGradientHex3D", "ellipticPartialAxIpdgHex3D"}},
		{utils.Tet, 3, Continuous, Isoparametric, []string{"ellipticPartialAxTet3D"}},
	}
	for _, tt := range tests {
		re, err := element.NewReference(tt.et, 2)
		require.NoError(t, err)
		cfg := DefaultConfig(tt.mode)
		cfg.ElementMap = tt.em
		sel, err := Select(re, tt.dim, cfg)
		require.NoError(t, err)
		assert.Equal(t, tt.routines, sel.Routines)
		assert.Equal(t, re.Np, sel.Defines["p_Np"])
		assert.Equal(t, tt.dim, sel.Defines["p_dim"])
		_, hasNmax := sel.Defines["p_Nmax"]
		assert.Equal(t, tt.mode == IPDG, hasNmax)
		if tt.mode == IPDG {
			assert.Equal(t, Tau(tt.et, 2, tt.dim), sel.Tau)
		} else {
			assert.Zero(t, sel.Tau)
		}
	}
	// Volume elements only live in 3D
	for _, tc := range []struct {
		et  utils.ElementType
		dim int
	}{{utils.Hex, 2}, {utils.Tet, 2}, {utils.Quad, 1}} {
		re, err := element.NewReference(tc.et, 1)
		require.NoError(t, err)
		_, err = Select(re, tc.dim, DefaultConfig(Continuous))
		assert.ErrorIs(t, err, ErrUnsupported)
	}
	re, err := element.NewReference(utils.Quad, 1)
	require.NoError(t, err)
	_, err = Select(re, 2, Config{Mode: Discretization(9)})
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestDefines(t *testing.T) {
	re, err := element.NewReference(utils.Hex, 3)
	require.NoError(t, err)
	defs := NewDefines(re, 3, IPDG)
	assert.Equal(t, Defines{
		"p_Np": 64, "p_Nfp": 16, "p_Nfaces": 6, "p_Nverts": 8, "p_dim": 3,
		"p_NblockV": 4, "p_Nmax": 96,
	}, defs)
	re, err = element.NewReference(utils.Hex, 8)
	require.NoError(t, err)
	assert.Equal(t, 1, NewDefines(re, 3, Continuous)["p_NblockV"])
}

func TestParse(t *testing.T) {
	for s, want := range map[string]Discretization{"CONTINUOUS": Continuous, "ipdg": IPDG, " cg ": Continuous} {
		got, err := ParseDiscretization(s)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseDiscretization("FEM")
	assert.ErrorIs(t, err, ErrConfig)
	assert.Equal(t, Trilinear, ParseElementMap("trilinear"))
	assert.Equal(t, Isoparametric, ParseElementMap("ISOPARAMETRIC"))
	assert.Equal(t, Isoparametric, ParseElementMap(""))
	rule, err := ParseMaskRule("any")
	require.NoError(t, err)
	assert.Equal(t, MaskAnyDirichlet, rule)
	_, err = ParseMaskRule("most")
	assert.Error(t, err)
	assert.Equal(t, "IPDG", IPDG.String())
	assert.Equal(t, "TRILINEAR", Trilinear.String())
}

func TestBoundaryTable(t *testing.T) {
	bt, err := NewBoundaryTable(map[int]string{3: "Dirichlet", 4: "flux"})
	require.NoError(t, err)
	assert.Equal(t, utils.BCDirichlet, bt.Kind(3))
	assert.Equal(t, utils.BCNeumann, bt.Kind(4))
	assert.Equal(t, utils.BCNone, bt.Kind(0))
	uP, dudnP := bt.exterior(3)(nil, 2, 5)
	assert.Equal(t, []float64{-2, 5}, []float64{uP, dudnP})
	uP, dudnP = bt.exterior(4)(nil, 2, 5)
	assert.Equal(t, []float64{2, -5}, []float64{uP, dudnP})

	_, err = NewBoundaryTable(map[int]string{1: "periodic"})
	assert.ErrorIs(t, err, ErrConfig)
	_, err = NewBoundaryTable(map[int]string{0: "wall"})
	assert.ErrorIs(t, err, ErrConfig)
	_, err = NewBoundaryTable(map[int]string{5: "none"})
	assert.ErrorIs(t, err, ErrConfig)

	m := boxMesh(t, utils.Quad, 2, 1, 5, 6)
	err = DefaultBoundaryTable().ValidateTags(m.Whole())
	require.ErrorIs(t, err, ErrUnknownBoundary)
	assert.Contains(t, err.Error(), "[5 6]")
}

// countingFactory wraps the host kernels and records what it was asked for
type countingFactory struct {
	mu     sync.Mutex
	names  []string
	tamper bool
}

func (cf *countingFactory) BuildKernel(name string, defs Defines, kd *KernelData) (Kernel, error) {
	cf.mu.Lock()
	cf.names = append(cf.names, name)
	cf.mu.Unlock()
	if cf.tamper {
		bad := Defines{}
		for k, v := range defs {
			bad[k] = v
		}
		bad["p_Np"]++
		defs = bad
	}
	return HostKernels{}.BuildKernel(name, defs, kd)
}

func TestKernelFactory(t *testing.T) {
	m := boxMesh(t, utils.Tet, 1)
	cf := &countingFactory{}
	cfg := DefaultConfig(IPDG)
	cfg.Kernels = cf
	err := onRanks(m, 2, 2, cfg, func(_ *mesh.Partition, lvl *Level) error {
		defs := lvl.program.Defines
		assert.Equal(t, 25, defs["p_NblockV"])
		assert.Equal(t, 10, defs["p_Np"])
		assert.Equal(t, 24, defs["p_Nmax"])
		assert.Error(t, lvl.program.RunKernel("ellipticPartialAxTet3D", lvl.Topo.K))
		return nil
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"ellipticPartialGradientTet3D", "ellipticPartialAxIpdgTet3D",
		"ellipticPartialGradientTet3D", "ellipticPartialAxIpdgTet3D",
	}, cf.names)

	// Defines that disagree with the element are refused
	cfg.Kernels = &countingFactory{tamper: true}
	err = onRanks(m, 1, 2, cfg, func(*mesh.Partition, *Level) error { return nil })
	assert.ErrorIs(t, err, ErrConfig)
	assert.Contains(t, err.Error(), "p_Np")

	// Routine names the host does not know
	re, err := element.NewReference(utils.Tet, 2)
	require.NoError(t, err)
	kd := &KernelData{Ref: re, Dim: 3}
	for _, name := range []string{"ellipticPartialAxHex3D", "ellipticPartialLaplaceTet3D", "Tet3D"} {
		_, err = HostKernels{}.BuildKernel(name, NewDefines(re, 3, Continuous), kd)
		assert.True(t, errors.Is(err, ErrUnsupported), name)
	}
	_, err = HostKernels{}.BuildKernel(AxTrilinearKernel+"Tet3D", NewDefines(re, 3, Continuous), kd)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestTrilinearDegenerate(t *testing.T) {
	re, err := element.NewReference(utils.Hex, 2)
	require.NoError(t, err)
	unit := [][]float64{
		{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
		{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1},
	}
	flat := make([][]float64, len(unit))
	for v, x := range unit {
		flat[v] = []float64{x[0], x[1], 0}
	}
	name := AxTrilinearKernel + "Hex3D"
	defs := NewDefines(re, 3, Continuous)
	kd := &KernelData{Ref: re, Dim: 3, ElementMap: Trilinear, Verts: [][][]float64{unit}}
	kern, err := HostKernels{}.BuildKernel(name, defs, kd)
	require.NoError(t, err)
	assert.NotNil(t, kern)

	kd.Verts = append(kd.Verts, flat)
	_, err = HostKernels{}.BuildKernel(name, defs, kd)
	assert.ErrorIs(t, err, ErrConfig)
	assert.Contains(t, err.Error(), "element 1")
}
