package utils

import (
	"fmt"

	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/lapack/lapack64"
	"gonum.org/v1/gonum/mat"
)

// Matrix is a row-major dense matrix with chainable operations. DataP aliases the
// storage of M.
type Matrix struct {
	M        *mat.Dense
	DataP    []float64
	readOnly bool
	name     string
}

func NewMatrix(nr, nc int, dataO ...[]float64) (R Matrix) {
	var data []float64
	if len(dataO) != 0 {
		if len(dataO[0]) != nr*nc {
			panic(fmt.Errorf("mismatch in allocation: NewMatrix nr,nc = %v,%v, len(data[0]) = %v",
				nr, nc, len(dataO[0])))
		}
		data = dataO[0]
	} else {
		data = make([]float64, nr*nc)
	}
	R = Matrix{
		M:     mat.NewDense(nr, nc, data),
		DataP: data,
		name:  "unnamed - hint: pass a variable name to SetReadOnly()",
	}
	return
}

// NewMatrixFromRows copies a ragged-free slice of rows.
func NewMatrixFromRows(rows [][]float64) (R Matrix) {
	nr := len(rows)
	if nr == 0 {
		panic("NewMatrixFromRows: no rows")
	}
	nc := len(rows[0])
	R = NewMatrix(nr, nc)
	for i, row := range rows {
		if len(row) != nc {
			panic(fmt.Errorf("NewMatrixFromRows: row %d has %d columns, expected %d", i, len(row), nc))
		}
		copy(R.DataP[i*nc:(i+1)*nc], row)
	}
	return
}

func NewIdentity(n int) (R Matrix) {
	R = NewMatrix(n, n)
	for i := 0; i < n; i++ {
		R.DataP[i+n*i] = 1
	}
	return
}

// Dims, At and T minimally satisfy the mat.Matrix interface.
func (m Matrix) Dims() (r, c int)          { return m.M.Dims() }
func (m Matrix) At(i, j int) float64       { return m.M.At(i, j) }
func (m Matrix) T() mat.Matrix             { return m.M.T() }
func (m Matrix) RawMatrix() blas64.General { return m.M.RawMatrix() }

func (m *Matrix) SetReadOnly(name ...string) Matrix {
	if len(name) != 0 {
		m.name = name[0]
	}
	m.readOnly = true
	return *m
}

func (m Matrix) IsReadOnly() bool { return m.readOnly }

func (m Matrix) Copy() (R Matrix) { // Does not change receiver
	var (
		nr, nc = m.Dims()
	)
	R = NewMatrix(nr, nc)
	copy(R.DataP, m.DataP)
	return
}

func (m Matrix) Transpose() (R Matrix) { // Does not change receiver
	var (
		nr, nc = m.Dims()
	)
	R = NewMatrix(nc, nr)
	for i := 0; i < nr; i++ {
		for j := 0; j < nc; j++ {
			R.DataP[i+nr*j] = m.DataP[j+nc*i]
		}
	}
	return
}

func (m Matrix) Mul(A Matrix) (R Matrix) { // Does not change receiver
	var (
		nrM, ncM = m.Dims()
		nrA, ncA = A.Dims()
	)
	if ncM != nrA {
		panic(fmt.Errorf("dimension mismatch in Mul: %dx%d * %dx%d", nrM, ncM, nrA, ncA))
	}
	R = NewMatrix(nrM, ncA)
	R.M.Mul(m.M, A.M)
	return
}

// MulVec returns m*x as a fresh slice.
func (m Matrix) MulVec(x []float64) (y []float64) { // Does not change receiver
	var (
		nr, nc = m.Dims()
	)
	if len(x) != nc {
		panic(fmt.Errorf("dimension mismatch in MulVec: %dx%d * %d", nr, nc, len(x)))
	}
	y = make([]float64, nr)
	for i := 0; i < nr; i++ {
		var (
			sum float64
			row = m.DataP[i*nc : (i+1)*nc]
		)
		for j, val := range row {
			sum += val * x[j]
		}
		y[i] = sum
	}
	return
}

func (m Matrix) Set(i, j int, val float64) Matrix { // Changes receiver
	m.checkWritable()
	m.M.Set(i, j, val)
	return m
}

func (m Matrix) SetCol(j int, data []float64) Matrix { // Changes receiver
	m.checkWritable()
	m.M.SetCol(j, data)
	return m
}

func (m Matrix) SetRow(i int, data []float64) Matrix { // Changes receiver
	m.checkWritable()
	m.M.SetRow(i, data)
	return m
}

func (m Matrix) Col(j int) []float64 {
	var (
		nr, nc = m.Dims()
		col    = make([]float64, nr)
	)
	for i := range col {
		col[i] = m.DataP[i*nc+j]
	}
	return col
}

func (m Matrix) Row(i int) []float64 {
	var (
		_, nc = m.Dims()
		row   = make([]float64, nc)
	)
	copy(row, m.DataP[i*nc:(i+1)*nc])
	return row
}

// SliceRows returns the rows listed in I, in order.
func (m Matrix) SliceRows(I []int) (R Matrix) { // Does not change receiver
	var (
		_, nc = m.Dims()
	)
	R = NewMatrix(len(I), nc)
	for ii, i := range I {
		copy(R.DataP[ii*nc:(ii+1)*nc], m.DataP[i*nc:(i+1)*nc])
	}
	return
}

func (m Matrix) Scale(a float64) Matrix { // Changes receiver
	m.checkWritable()
	for i := range m.DataP {
		m.DataP[i] *= a
	}
	return m
}

func (m Matrix) Add(A Matrix) Matrix { // Changes receiver
	m.checkWritable()
	m.checkSameDims(A, "Add")
	for i, val := range A.DataP {
		m.DataP[i] += val
	}
	return m
}

func (m Matrix) Subtract(A Matrix) Matrix { // Changes receiver
	m.checkWritable()
	m.checkSameDims(A, "Subtract")
	for i, val := range A.DataP {
		m.DataP[i] -= val
	}
	return m
}

func (m Matrix) ElMul(A Matrix) Matrix { // Changes receiver
	m.checkWritable()
	m.checkSameDims(A, "ElMul")
	for i, val := range A.DataP {
		m.DataP[i] *= val
	}
	return m
}

// RowSums returns the sum of each row, used to lump mass matrices.
func (m Matrix) RowSums() (s []float64) {
	var (
		nr, nc = m.Dims()
	)
	s = make([]float64, nr)
	for i := 0; i < nr; i++ {
		for _, val := range m.DataP[i*nc : (i+1)*nc] {
			s[i] += val
		}
	}
	return
}

func (m Matrix) Inverse() (R Matrix, err error) {
	var (
		nr, nc = m.Dims()
	)
	if nr != nc {
		err = fmt.Errorf("unable to invert non square matrix %dx%d", nr, nc)
		return
	}
	R = m.Copy()
	iPiv := make([]int, nr)
	if ok := lapack64.Getrf(R.RawMatrix(), iPiv); !ok {
		err = fmt.Errorf("unable to invert, matrix is singular")
		return
	}
	work := make([]float64, nr*nc)
	if ok := lapack64.Getri(R.RawMatrix(), iPiv, work, nr*nc); !ok {
		err = fmt.Errorf("unable to invert, matrix is singular")
	}
	return
}

// InverseWithCheck panics on a singular matrix; reference operators are built
// from unisolvent node sets, so failure here is a programming error.
func (m Matrix) InverseWithCheck() (R Matrix) {
	var err error
	if R, err = m.Inverse(); err != nil {
		panic(fmt.Errorf("%s: %w", m.name, err))
	}
	return
}

// LUSolve returns X such that m*X = B.
func (m Matrix) LUSolve(B Matrix) (X Matrix) {
	var (
		lu  mat.LU
		_, nc = B.Dims()
		nr, _ = m.Dims()
	)
	lu.Factorize(m.M)
	X = NewMatrix(nr, nc)
	if err := lu.SolveTo(X.M, false, B.M); err != nil {
		panic(err)
	}
	return
}

func (m Matrix) Max() (max float64) {
	max = m.DataP[0]
	for _, val := range m.DataP {
		if val > max {
			max = val
		}
	}
	return
}

func (m Matrix) Min() (min float64) {
	min = m.DataP[0]
	for _, val := range m.DataP {
		if val < min {
			min = val
		}
	}
	return
}

func (m Matrix) String() string {
	return fmt.Sprintf("%s = %v", m.name, mat.Formatted(m.M, mat.Squeeze()))
}

func (m Matrix) checkWritable() {
	if m.readOnly {
		panic(fmt.Errorf("attempt to write to a read only matrix named: \"%v\"", m.name))
	}
}

func (m Matrix) checkSameDims(A Matrix, op string) {
	var (
		nr, nc   = m.Dims()
		nrA, ncA = A.Dims()
	)
	if nr != nrA || nc != ncA {
		panic(fmt.Errorf("dimension mismatch in %s: %dx%d vs %dx%d", op, nr, nc, nrA, ncA))
	}
}
