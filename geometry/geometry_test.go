package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/gosem/element"
	"github.com/notargets/gosem/mesh"
	"github.com/notargets/gosem/utils"
)

func boxMesh(t *testing.T, et utils.ElementType, n int) *mesh.Mesh {
	dim := et.GetDimension()
	b := mesh.Box{Type: et}
	for a := 0; a < dim; a++ {
		b.Cells = append(b.Cells, n)
		b.Lo = append(b.Lo, 0)
		b.Hi = append(b.Hi, 1)
	}
	m, err := mesh.NewBoxMesh(b)
	require.NoError(t, err)
	return m
}

func elementVerts(m *mesh.Mesh) (verts [][][]float64) {
	for k := 0; k < m.NumElements; k++ {
		verts = append(verts, m.ElementVertexCoords(k))
	}
	return
}

func TestBuildCoordinates_VertexReproduction(t *testing.T) {
	for _, et := range []utils.ElementType{utils.Quad, utils.Triangle, utils.Hex, utils.Tet} {
		m := boxMesh(t, et, 2)
		re, err := element.NewReference(et, 3)
		require.NoError(t, err)
		verts := elementVerts(m)
		X := BuildCoordinates(re, verts, m.Dim, 3)
		for k := range verts {
			for n := 0; n < re.Np; n++ {
				for v, w := range re.Lattice[n] {
					if w != re.LatticeScale {
						continue
					}
					for d := 0; d < m.Dim; d++ {
						assert.InDelta(t, verts[k][v][d], X[d][k*re.Np+n], 1.e-14, "%v", et)
					}
				}
			}
		}
	}
}

func TestBuildCoordinates_PartitionOfUnity(t *testing.T) {
	re, err := element.NewReference(utils.Tet, 4)
	require.NoError(t, err)
	Phi := ShapeMatrix(re)
	for _, s := range Phi.RowSums() {
		assert.InDelta(t, 1., s, 1.e-12)
	}
	// Constant vertex data gives a constant field
	xv := [][]float64{{2.5, -1, 0}, {2.5, -1, 0}, {2.5, -1, 0}, {2.5, -1, 0}}
	X := BuildCoordinates(re, [][][]float64{xv}, 3, 1)
	for n := 0; n < re.Np; n++ {
		assert.InDelta(t, 2.5, X[0][n], 1.e-12)
		assert.InDelta(t, -1., X[1][n], 1.e-12)
	}
}

func TestBuildCoordinates_Malformed(t *testing.T) {
	re, err := element.NewReference(utils.Quad, 2)
	require.NoError(t, err)
	assert.Panics(t, func() {
		BuildCoordinates(re, [][][]float64{{{0, 0}, {1, 0}, {1, 1}}}, 2, 1)
	})
	assert.Panics(t, func() {
		BuildCoordinates(re, [][][]float64{{{0, 0}, {1, 0}, {1, 1}, {0}}}, 2, 1)
	})
}

func TestFactors_VolumeAndSurface(t *testing.T) {
	for _, et := range []utils.ElementType{utils.Quad, utils.Triangle, utils.Hex, utils.Tet} {
		for N := 1; N <= 3; N++ {
			m := boxMesh(t, et, 2)
			re, err := element.NewReference(et, N)
			require.NoError(t, err)
			X := BuildCoordinates(re, elementVerts(m), m.Dim, 2)
			g, err := NewFactors(re, X, 2)
			require.NoError(t, err)
			var vol, area float64
			for k := 0; k < g.K; k++ {
				for n := 0; n < re.Np; n++ {
					vol += re.W[n] * g.J[k*re.Np+n]
				}
				for f := 0; f < re.Nfaces; f++ {
					if m.EToE[k][f] != -1 {
						continue
					}
					// Face mass times sJ, summed, is the face measure
					for i := 0; i < re.Nfp; i++ {
						row := re.FaceMass[f].Row(i)
						for _, val := range row {
							area += val * g.SJ[g.FaceIndex(k, f, i)]
						}
					}
				}
			}
			assert.InDelta(t, 1., vol, 1.e-10, "%v N=%d", et, N)
			assert.InDelta(t, float64(2*m.Dim), area, 1.e-10, "%v N=%d", et, N)
		}
	}
}

func TestFactors_OutwardNormals(t *testing.T) {
	for _, et := range []utils.ElementType{utils.Quad, utils.Triangle, utils.Hex, utils.Tet} {
		m := boxMesh(t, et, 1)
		re, err := element.NewReference(et, 2)
		require.NoError(t, err)
		X := BuildCoordinates(re, elementVerts(m), m.Dim, 1)
		g, err := NewFactors(re, X, 1)
		require.NoError(t, err)
		for k := 0; k < g.K; k++ {
			c := m.Centroid(k)
			for f, fm := range re.Fmask {
				for i, n := range fm {
					fi := g.FaceIndex(k, f, i)
					var dot, norm float64
					for d := 0; d < g.Dim; d++ {
						dot += g.Normal[d][fi] * (X[d][k*re.Np+n] - c[d])
						norm += g.Normal[d][fi] * g.Normal[d][fi]
					}
					assert.InDelta(t, 1., norm, 1.e-12)
					assert.Greater(t, dot, 0., "%v element %d face %d", et, k, f)
				}
			}
		}
	}
}

func TestFactors_AffineQuad(t *testing.T) {
	m := boxMesh(t, utils.Quad, 2)
	re, err := element.NewReference(utils.Quad, 2)
	require.NoError(t, err)
	g, err := NewFactors(re, BuildCoordinates(re, elementVerts(m), 2, 1), 1)
	require.NoError(t, err)
	for i := range g.J {
		assert.InDelta(t, 1./16., g.J[i], 1.e-14)
		assert.InDelta(t, 4., g.Drdx(0, 0)[i], 1.e-12)
		assert.InDelta(t, 0., g.Drdx(0, 1)[i], 1.e-12)
		assert.InDelta(t, 4., g.Drdx(1, 1)[i], 1.e-12)
	}
	for _, sJ := range g.SJ {
		assert.InDelta(t, 0.25, sJ, 1.e-14)
	}
}

func TestFactors_EmbeddedSurface(t *testing.T) {
	// The tilted plane z = x + y over the unit square has area sqrt(3)
	for _, et := range []utils.ElementType{utils.Quad, utils.Triangle} {
		m := boxMesh(t, et, 3)
		em, err := m.Embed(func(x []float64) []float64 { return []float64{x[0], x[1], x[0] + x[1]} })
		require.NoError(t, err)
		re, err := element.NewReference(et, 2)
		require.NoError(t, err)
		X := BuildCoordinates(re, elementVerts(em), 3, 2)
		g, err := NewFactors(re, X, 2)
		require.NoError(t, err)
		var area float64
		for i, J := range g.J {
			area += re.W[i%re.Np] * J
		}
		assert.InDelta(t, math.Sqrt(3), area, 1.e-10, "%v", et)
		// The surface gradient of x recovers the tangential projection of e_x:
		// grad_s(x) = e_x - (e_x.n)n with n = (-1,-1,1)/sqrt(3)
		ex := []float64{2. / 3., -1. / 3., 1. / 3.}
		for d := 0; d < 3; d++ {
			gx := make([]float64, re.Np)
			for a := 0; a < 2; a++ {
				dx := re.D(a).MulVec(X[0][:re.Np])
				for n := range gx {
					gx[n] += g.Drdx(a, d)[n] * dx[n]
				}
			}
			for _, val := range gx {
				assert.InDelta(t, ex[d], val, 1.e-12)
			}
		}
	}
}

func TestTrilinearMatchesIsoparametric(t *testing.T) {
	xv := [][]float64{
		{0, 0, 0}, {1.2, 0.1, 0}, {1.1, 1.3, 0.2}, {-0.1, 0.9, 0},
		{0.1, 0, 1}, {1, 0.2, 1.1}, {1.3, 1.2, 1.4}, {0, 1.1, 0.9},
	}
	re, err := element.NewReference(utils.Hex, 3)
	require.NoError(t, err)
	X := BuildCoordinates(re, [][][]float64{xv}, 3, 1)
	g, err := NewFactors(re, X, 1)
	require.NoError(t, err)
	tl := NewTrilinear(re)
	for n := 0; n < re.Np; n++ {
		J, G, ok := tl.Node(xv, n)
		require.True(t, ok)
		assert.InDelta(t, g.J[n], J, 1.e-12)
		for a := 0; a < 3; a++ {
			for d := 0; d < 3; d++ {
				assert.InDelta(t, g.Drdx(a, d)[n], G[a][d], 1.e-10)
			}
		}
	}
	quad, _ := element.NewReference(utils.Quad, 2)
	assert.Panics(t, func() { NewTrilinear(quad) })
}

func TestFactors_Degenerate(t *testing.T) {
	re, err := element.NewReference(utils.Triangle, 2)
	require.NoError(t, err)
	X := BuildCoordinates(re, [][][]float64{{{0, 0}, {1, 1}, {2, 2}}}, 2, 1)
	_, err = NewFactors(re, X, 1)
	assert.ErrorIs(t, err, ErrDegenerate)
}
