package elliptic

import (
	"fmt"
	"strings"

	"github.com/notargets/gosem/element"
	"github.com/notargets/gosem/geometry"
	"github.com/notargets/gosem/utils"
)

// Kernel runs one routine over the elements [kMin, kMax). Arguments are node
// fields laid out k*Np+n; a kernel only writes the entries of its own elements,
// so buckets of elements may run concurrently.
type Kernel func(kMin, kMax int, args ...[]float64)

// KernelData is everything a routine may read besides its arguments
type KernelData struct {
	Ref        *element.Reference
	Dim        int
	Mode       Discretization
	ElementMap ElementMap
	// Geo covers the local elements, followed by the halo elements for IPDG
	Geo *geometry.Factors
	// Verts[k][v] are the vertex coordinates of local element k
	Verts [][][]float64
	// Faces is the IPDG trace connectivity, nil for continuous levels
	Faces *FaceMaps
	Tau   float64
}

// KernelFactory turns a routine identity and its defines into a callable bound
// to the level data. The level treats the result as opaque.
type KernelFactory interface {
	BuildKernel(name string, defs Defines, kd *KernelData) (Kernel, error)
}

type hostBuilder func(kd *KernelData) (Kernel, error)

var hostRegistry = map[string]hostBuilder{
	AxKernel:          buildAx,
	AxTrilinearKernel: buildAxTrilinear,
	GradientKernel:    buildGradient,
	AxIpdgKernel:      buildAxIpdg,
}

// HostKernels builds routines as Go closures running on the calling rank
type HostKernels struct{}

func (HostKernels) BuildKernel(name string, defs Defines, kd *KernelData) (kern Kernel, err error) {
	suffix := kd.Ref.Suffix(kd.Dim)
	base := strings.TrimSuffix(name, suffix)
	builder, ok := hostRegistry[base]
	if base == name || !ok {
		return nil, fmt.Errorf("%w: no host routine %s", ErrUnsupported, name)
	}
	if err = checkDefines(name, defs, kd); err != nil {
		return
	}
	return builder(kd)
}

// checkDefines compares the defines a routine is compiled with against the
// reference element it will run on.
func checkDefines(name string, defs Defines, kd *KernelData) error {
	want := NewDefines(kd.Ref, kd.Dim, kd.Mode)
	for key, val := range want {
		got, ok := defs[key]
		if !ok {
			return fmt.Errorf("%w: routine %s is missing define %s", ErrConfig, name, key)
		}
		if got != val {
			return fmt.Errorf("%w: routine %s has %s = %d, element needs %d", ErrConfig, name, key, got, val)
		}
	}
	return nil
}

// KernelProgram holds the routines of one level, bound to its data
type KernelProgram struct {
	Suffix         string
	Defines        Defines
	ParallelDegree int
	factory        KernelFactory
	data           *KernelData
	kernels        map[string]Kernel
	maps           map[int]*utils.PartitionMap
}

func NewKernelProgram(factory KernelFactory, kd *KernelData, sel Selection, parallelDegree int) *KernelProgram {
	return &KernelProgram{
		Suffix:         sel.Suffix,
		Defines:        sel.Defines,
		ParallelDegree: parallelDegree,
		factory:        factory,
		data:           kd,
		kernels:        make(map[string]Kernel),
		maps:           make(map[int]*utils.PartitionMap),
	}
}

// BuildKernel builds the routine through the factory and registers it
func (kp *KernelProgram) BuildKernel(name string) (err error) {
	var kern Kernel
	if kern, err = kp.factory.BuildKernel(name, kp.Defines, kp.data); err != nil {
		return fmt.Errorf("failed to build kernel %s: %w", name, err)
	}
	if kern == nil {
		return fmt.Errorf("kernel build returned nil for %s", name)
	}
	kp.RegisterKernel(name, kern)
	return
}

func (kp *KernelProgram) RegisterKernel(name string, kern Kernel) {
	if kern == nil {
		return
	}
	kp.kernels[name] = kern
}

// RunKernel runs a registered routine over K elements, split into
// ParallelDegree concurrent buckets.
func (kp *KernelProgram) RunKernel(name string, K int, args ...[]float64) error {
	kern, exists := kp.kernels[name]
	if !exists {
		return fmt.Errorf("kernel %s not found", name)
	}
	pm, ok := kp.maps[K]
	if !ok {
		pm = utils.NewPartitionMap(kp.ParallelDegree, K)
		kp.maps[K] = pm
	}
	if K == 0 {
		return nil
	}
	pm.RunBuckets(func(_, kMin, kMax int) { kern(kMin, kMax, args...) })
	return nil
}

// Shared dense kernels on row-major Np x Np data

// mulVec sets y = A x
func mulVec(A []float64, x, y []float64) {
	nc := len(x)
	for i := range y {
		var sum float64
		for j, a := range A[i*nc : (i+1)*nc] {
			sum += a * x[j]
		}
		y[i] = sum
	}
}

// mulTransVecAdd adds A^T x to y
func mulTransVecAdd(A []float64, x, y []float64) {
	nc := len(y)
	for i, xi := range x {
		if xi == 0 {
			continue
		}
		for j, a := range A[i*nc : (i+1)*nc] {
			y[j] += a * xi
		}
	}
}

// derivatives returns the row-major reference derivative matrices
func derivatives(re *element.Reference) (D [][]float64) {
	D = make([][]float64, re.Dim)
	for a := range D {
		D[a] = re.D(a).DataP
	}
	return
}
