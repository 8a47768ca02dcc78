package InputParameters

import (
	"fmt"
	"sort"

	"github.com/ghodss/yaml"

	"github.com/notargets/gosem/elliptic"
	"github.com/notargets/gosem/mesh"
	"github.com/notargets/gosem/utils"
)

// InputParameters are read from the YAML setup file
type InputParameters struct {
	Title          string         `json:"Title"`
	ElementType    string         `json:"ElementType"`
	Cells          []int          `json:"Cells"`
	Lo             []float64      `json:"Lo"`
	Hi             []float64      `json:"Hi"`
	// Slope lifts a 2D box onto the plane z = Slope[0]*x + Slope[1]*y
	Slope          []float64      `json:"Slope"`
	Degrees        []int          `json:"Degrees"`
	Discretization string         `json:"Discretization"`
	ElementMap     string         `json:"ElementMap"`
	MaskRule       string         `json:"MaskRule"`
	Partitioner    string         `json:"Partitioner"`
	SideTags       []int          `json:"SideTags"` // x-, x+, y-, y+, z-, z+
	BCs            map[int]string `json:"BCs"`      // Boundary id to condition name
}

// Default is the setup used when no file is given
func Default() *InputParameters {
	return &InputParameters{
		Title:          "Unit square",
		ElementType:    "Quad",
		Cells:          []int{4, 4},
		Lo:             []float64{0, 0},
		Hi:             []float64{1, 1},
		Degrees:        []int{4, 3, 2, 1},
		Discretization: "CONTINUOUS",
		SideTags:       []int{1, 1, 2, 2},
		BCs:            map[int]string{1: "Dirichlet", 2: "Neumann"},
	}
}

func (ip *InputParameters) Parse(data []byte) error {
	return yaml.Unmarshal(data, ip)
}

func (ip *InputParameters) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", ip.Title)
	fmt.Printf("[%s]\t\t\t= Element Type\n", ip.ElementType)
	fmt.Printf("%v\t\t\t= Cells\n", ip.Cells)
	fmt.Printf("%v\t\t\t= Degrees\n", ip.Degrees)
	fmt.Printf("[%s]\t\t= Discretization\n", ip.Discretization)
	if ip.ElementMap != "" {
		fmt.Printf("[%s]\t\t= Element Map\n", ip.ElementMap)
	}
	keys := make([]int, 0, len(ip.BCs))
	for k := range ip.BCs {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	for _, key := range keys {
		fmt.Printf("BCs[%d] = %v\n", key, ip.BCs[key])
	}
}

// Mesh builds the box mesh described by the parameters
func (ip *InputParameters) Mesh() (m *mesh.Mesh, err error) {
	var et utils.ElementType
	if et, err = utils.ParseElementType(ip.ElementType); err != nil {
		return
	}
	names := make(map[int]string, len(ip.BCs))
	for id, name := range ip.BCs {
		names[id] = name
	}
	if m, err = mesh.NewBoxMesh(mesh.Box{
		Type: et, Cells: ip.Cells, Lo: ip.Lo, Hi: ip.Hi, SideTags: ip.SideTags, Names: names,
	}); err != nil {
		return
	}
	if len(ip.Slope) != 0 {
		if len(ip.Slope) != 2 {
			return nil, fmt.Errorf("slope needs 2 values, have %d", len(ip.Slope))
		}
		a, b := ip.Slope[0], ip.Slope[1]
		m, err = m.Embed(func(x []float64) []float64 {
			return []float64{x[0], x[1], a*x[0] + b*x[1]}
		})
	}
	return
}

// Config builds the operator configuration. Degrees must be at least one.
func (ip *InputParameters) Config() (cfg elliptic.Config, err error) {
	var mode elliptic.Discretization
	if mode, err = elliptic.ParseDiscretization(ip.Discretization); err != nil {
		return
	}
	cfg = elliptic.DefaultConfig(mode)
	cfg.ElementMap = elliptic.ParseElementMap(ip.ElementMap)
	if cfg.MaskRule, err = elliptic.ParseMaskRule(ip.MaskRule); err != nil {
		return
	}
	if len(ip.BCs) != 0 {
		if cfg.Boundary, err = elliptic.NewBoundaryTable(ip.BCs); err != nil {
			return
		}
	}
	if len(ip.Degrees) == 0 {
		err = fmt.Errorf("no degrees given")
		return
	}
	for _, N := range ip.Degrees {
		if N < 1 {
			err = fmt.Errorf("degree %d, need N >= 1", N)
			return
		}
	}
	return
}
