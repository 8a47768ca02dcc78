package InputParameters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/gosem/elliptic"
	"github.com/notargets/gosem/utils"
)

var setup = `
Title: "Tilted plane"
ElementType: Tri
Cells: [3, 2]
Lo: [0, 0]
Hi: [1, 2]
Slope: [0.5, 0.25]
Degrees: [3, 1]
Discretization: IPDG
MaskRule: any
Partitioner: coord
SideTags: [1, 1, 3, 3]
BCs:
  1: Dirichlet
  3: Neumann
`

func TestInputParameters_Parse(t *testing.T) {
	ip := &InputParameters{}
	require.NoError(t, ip.Parse([]byte(setup)))
	assert.Equal(t, "Tilted plane", ip.Title)
	assert.Equal(t, []int{3, 2}, ip.Cells)
	assert.Equal(t, []int{3, 1}, ip.Degrees)
	assert.Equal(t, map[int]string{1: "Dirichlet", 3: "Neumann"}, ip.BCs)

	m, err := ip.Mesh()
	require.NoError(t, err)
	assert.Equal(t, 3, m.Dim)
	assert.Equal(t, 12, m.NumElements)
	for _, v := range m.Vertices {
		assert.InDelta(t, 0.5*v[0]+0.25*v[1], v[2], 1.e-14)
	}
	assert.Equal(t, map[int]int{1: 4, 3: 6}, m.CountBoundaryFaces())

	cfg, err := ip.Config()
	require.NoError(t, err)
	assert.Equal(t, elliptic.IPDG, cfg.Mode)
	assert.Equal(t, elliptic.MaskAnyDirichlet, cfg.MaskRule)
	assert.Equal(t, utils.BCNeumann, cfg.Boundary.Kind(3))
}

func TestInputParameters_Default(t *testing.T) {
	ip := Default()
	m, err := ip.Mesh()
	require.NoError(t, err)
	assert.Equal(t, 16, m.NumElements)
	cfg, err := ip.Config()
	require.NoError(t, err)
	assert.Equal(t, elliptic.Continuous, cfg.Mode)
	assert.Equal(t, elliptic.Isoparametric, cfg.ElementMap)
}

func TestInputParameters_Errors(t *testing.T) {
	for _, bad := range []string{
		"ElementType: Prism\nCells: [1,1]\nLo: [0,0]\nHi: [1,1]",
		"ElementType: Quad\nCells: [1,1]\nLo: [0,0]\nHi: [1,1]\nSlope: [1]",
	} {
		ip := &InputParameters{}
		require.NoError(t, ip.Parse([]byte(bad)))
		_, err := ip.Mesh()
		assert.Error(t, err, bad)
	}
	for _, bad := range []string{
		"Discretization: FEM\nDegrees: [1]",
		"Degrees: []",
		"Degrees: [2, 0]",
		"Degrees: [1]\nMaskRule: most",
		"Degrees: [1]\nBCs:\n  1: periodic",
	} {
		ip := &InputParameters{}
		require.NoError(t, ip.Parse([]byte(bad)))
		_, err := ip.Config()
		assert.Error(t, err, bad)
	}
}
