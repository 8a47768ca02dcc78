package elliptic

import (
	"fmt"

	"github.com/notargets/gosem/element"
	"github.com/notargets/gosem/utils"
)

// Kernel routine base names; the element suffix (Quad2D, Tet3D, ...) is
// appended to form the routine identity.
const (
	AxKernel          = "ellipticPartialAx"
	AxTrilinearKernel = "ellipticPartialAxTrilinear"
	GradientKernel    = "ellipticPartialGradient"
	AxIpdgKernel      = "ellipticPartialAxIpdg"
)

// Selection is the outcome of the discretization selector for one level
type Selection struct {
	Suffix string
	// Routines are the full routine names in the order they run in Apply
	Routines []string
	Tau      float64
	Defines  Defines
}

// Select maps element type, ambient dimension and mode to the routines and
// penalty of a degree N level.
func Select(re *element.Reference, dim int, cfg Config) (sel Selection, err error) {
	if err = checkDimension(re.Type, dim); err != nil {
		return
	}
	sel.Suffix = re.Suffix(dim)
	sel.Defines = NewDefines(re, dim, cfg.Mode)
	switch cfg.Mode {
	case Continuous:
		base := AxKernel
		if re.Type == utils.Hex && cfg.ElementMap == Trilinear {
			base = AxTrilinearKernel
		}
		sel.Routines = []string{base + sel.Suffix}
	case IPDG:
		sel.Tau = Tau(re.Type, re.N, dim)
		sel.Routines = []string{GradientKernel + sel.Suffix, AxIpdgKernel + sel.Suffix}
	default:
		err = fmt.Errorf("%w: mode %v", ErrUnsupported, cfg.Mode)
	}
	return
}

func checkDimension(et utils.ElementType, dim int) error {
	switch et {
	case utils.Triangle, utils.Quad:
		if dim == 2 || dim == 3 {
			return nil
		}
	case utils.Tet, utils.Hex:
		if dim == 3 {
			return nil
		}
	}
	return fmt.Errorf("%w: %v elements in %d dimensions", ErrUnsupported, et, dim)
}

// Tau is the interior penalty parameter. Triangles use (N+1)(N+2), raised by
// half on surfaces embedded in 3D; every other element uses 2(N+1)(N+3).
func Tau(et utils.ElementType, N, dim int) (tau float64) {
	n := float64(N)
	if et == utils.Triangle {
		tau = (n + 1) * (n + 2)
		if dim == 3 {
			tau *= 1.5
		}
		return
	}
	return 2 * (n + 1) * (n + 3)
}

// Defines are the named integer parameters handed to the kernel factory with a
// routine name.
type Defines map[string]int

func NewDefines(re *element.Reference, dim int, mode Discretization) (defs Defines) {
	defs = Defines{
		"p_Np":      re.Np,
		"p_Nfp":     re.Nfp,
		"p_Nfaces":  re.Nfaces,
		"p_Nverts":  re.Nverts,
		"p_dim":     dim,
		"p_NblockV": utils.MaxInt(1, 256/re.Np),
	}
	if mode == IPDG {
		defs["p_Nmax"] = utils.MaxInt(re.Np, re.Nfaces*re.Nfp)
	}
	return
}
