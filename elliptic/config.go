package elliptic

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnsupported     = errors.New("unsupported discretization")
	ErrUnknownBoundary = errors.New("unrecognized boundary id")
	ErrFieldSize       = errors.New("field size mismatch")
	ErrConfig          = errors.New("invalid configuration")
)

// Discretization selects continuous Galerkin or interior penalty DG
type Discretization uint8

const (
	Continuous Discretization = iota
	IPDG
)

func (d Discretization) String() string {
	switch d {
	case Continuous:
		return "CONTINUOUS"
	case IPDG:
		return "IPDG"
	}
	return fmt.Sprintf("Discretization(%d)", uint8(d))
}

func ParseDiscretization(s string) (Discretization, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CONTINUOUS", "CG":
		return Continuous, nil
	case "IPDG", "DG":
		return IPDG, nil
	}
	return 0, fmt.Errorf("%w: discretization %q", ErrConfig, s)
}

// ElementMap selects how hex geometric factors are obtained. Trilinear
// recomputes them from the element vertices inside the operator instead of
// reading stored per-node factors; other element types ignore it.
type ElementMap uint8

const (
	Isoparametric ElementMap = iota
	Trilinear
)

func (em ElementMap) String() string {
	switch em {
	case Isoparametric:
		return "ISOPARAMETRIC"
	case Trilinear:
		return "TRILINEAR"
	}
	return fmt.Sprintf("ElementMap(%d)", uint8(em))
}

// ParseElementMap accepts TRILINEAR; any other value is the isoparametric map
func ParseElementMap(s string) ElementMap {
	if strings.ToUpper(strings.TrimSpace(s)) == "TRILINEAR" {
		return Trilinear
	}
	return Isoparametric
}

// MaskRule decides which gathered CG DOFs are constrained. Only contributions
// from nodes lying on a tagged boundary face take part.
type MaskRule uint8

const (
	// MaskAllDirichlet masks a DOF when every tagged contribution is Dirichlet
	MaskAllDirichlet MaskRule = iota
	// MaskAnyDirichlet masks a DOF when any tagged contribution is Dirichlet
	MaskAnyDirichlet
)

func (mr MaskRule) String() string {
	switch mr {
	case MaskAllDirichlet:
		return "ALL"
	case MaskAnyDirichlet:
		return "ANY"
	}
	return fmt.Sprintf("MaskRule(%d)", uint8(mr))
}

func ParseMaskRule(s string) (MaskRule, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "ALL":
		return MaskAllDirichlet, nil
	case "ANY":
		return MaskAnyDirichlet, nil
	}
	return 0, fmt.Errorf("%w: mask rule %q", ErrConfig, s)
}

// Config carries everything a level needs besides the topology and degree. It
// is copied into every level and never modified afterwards.
type Config struct {
	Mode       Discretization
	ElementMap ElementMap
	MaskRule   MaskRule
	Boundary   BoundaryTable
	// Kernels builds the routines; nil selects the host kernels
	Kernels KernelFactory
	// ParallelDegree is the number of concurrent element buckets per rank
	ParallelDegree int
}

func DefaultConfig(mode Discretization) Config {
	return Config{
		Mode:           mode,
		Boundary:       DefaultBoundaryTable(),
		Kernels:        HostKernels{},
		ParallelDegree: 1,
	}
}

func (cfg *Config) validate() error {
	if cfg.Mode != Continuous && cfg.Mode != IPDG {
		return fmt.Errorf("%w: %v", ErrUnsupported, cfg.Mode)
	}
	if cfg.MaskRule != MaskAllDirichlet && cfg.MaskRule != MaskAnyDirichlet {
		return fmt.Errorf("%w: %v", ErrConfig, cfg.MaskRule)
	}
	if cfg.Boundary == nil {
		cfg.Boundary = DefaultBoundaryTable()
	}
	if cfg.Kernels == nil {
		cfg.Kernels = HostKernels{}
	}
	if cfg.ParallelDegree < 1 {
		cfg.ParallelDegree = 1
	}
	return cfg.Boundary.check()
}
