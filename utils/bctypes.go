package utils

import (
	"fmt"
	"strings"
)

// BCType is the kind of boundary condition attached to a boundary id. The order
// matters: when a node sits on faces of different kinds, the smaller kind wins.
type BCType uint16

const (
	// BCNone marks an interior face, or a physical boundary without a condition
	BCNone BCType = iota
	BCDirichlet // Fixed value
	BCNeumann   // Fixed normal flux
)

var bcNames = map[BCType]string{
	BCNone:      "None",
	BCDirichlet: "Dirichlet",
	BCNeumann:   "Neumann",
}

// String returns the string representation of a BCType
func (bc BCType) String() string {
	if name, ok := bcNames[bc]; ok {
		return name
	}
	return fmt.Sprintf("BCType(%d)", uint16(bc))
}

// BCNameMap maps lowercase names used in input files to BCType
var BCNameMap = map[string]BCType{
	"none":      BCNone,
	"interior":  BCNone,
	"dirichlet": BCDirichlet,
	"wall":      BCDirichlet,
	"neumann":   BCNeumann,
	"flux":      BCNeumann,
}

// ParseBCName converts a boundary condition name to BCType
func ParseBCName(name string) (BCType, error) {
	if bc, ok := BCNameMap[strings.ToLower(strings.TrimSpace(name))]; ok {
		return bc, nil
	}
	return BCNone, fmt.Errorf("unrecognized boundary condition name %q", name)
}
