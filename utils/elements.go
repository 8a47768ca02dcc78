package utils

import (
	"fmt"
	"strings"
)

// ElementType represents the element geometries supported by the operators
type ElementType uint8

const (
	Unknown ElementType = iota
	Triangle
	Quad
	Tet
	Hex
)

var elementNames = map[ElementType]string{
	Unknown:  "Unknown",
	Triangle: "Triangle",
	Quad:     "Quad",
	Tet:      "Tet",
	Hex:      "Hex",
}

func (e ElementType) String() string {
	if name, ok := elementNames[e]; ok {
		return name
	}
	return "Invalid"
}

// GetDimension returns the reference (topological) dimension of the element
func (e ElementType) GetDimension() int {
	switch e {
	case Triangle, Quad:
		return 2
	case Tet, Hex:
		return 3
	default:
		return -1
	}
}

// GetNumVertices returns the number of geometric vertices
func (e ElementType) GetNumVertices() int {
	switch e {
	case Triangle:
		return 3
	case Quad, Tet:
		return 4
	case Hex:
		return 8
	default:
		return 0
	}
}

// GetNumFaces returns the number of faces (edges in 2D)
func (e ElementType) GetNumFaces() int {
	switch e {
	case Triangle:
		return 3
	case Quad, Tet:
		return 4
	case Hex:
		return 6
	default:
		return 0
	}
}

// IsTensor is true for tensor-product (quad, hex) elements
func (e ElementType) IsTensor() bool {
	return e == Quad || e == Hex
}

// IsSimplex is true for triangles and tetrahedra
func (e ElementType) IsSimplex() bool {
	return e == Triangle || e == Tet
}

// ParseElementType accepts the common spellings found in mesh and input files
func ParseElementType(name string) (ElementType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "tri", "triangle":
		return Triangle, nil
	case "quad", "quadrilateral":
		return Quad, nil
	case "tet", "tetrahedron":
		return Tet, nil
	case "hex", "hexahedron":
		return Hex, nil
	}
	return Unknown, fmt.Errorf("unknown element type %q", name)
}
