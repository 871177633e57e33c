// Package analysis turns decoded PSF results into name-indexed signal views
// for transient, AC and DC analyses.
package analysis

import (
	"fmt"
	"strings"

	"example.com/psfgate/internal/psf"
	"example.com/psfgate/internal/psfascii"
)

// View is implemented by *Transient, *AC and *DC.
type View interface {
	Names() []string
	Len() int
	Columns() []Column
}

type Kind string

const (
	KindTransient Kind = "tran"
	KindAC        Kind = "ac"
	KindDC        Kind = "dc"
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindTransient, KindAC, KindDC:
		return k, nil
	case "transient":
		return KindTransient, nil
	default:
		return "", fmt.Errorf("unknown analysis %q (want tran, ac or dc)", s)
	}
}

// FromBinary builds the view of the given kind from a decoded binary file.
func FromBinary(kind Kind, ast *psf.AST) (View, error) {
	switch kind {
	case KindTransient:
		v, err := TransientFromBinary(ast)
		if err != nil {
			return nil, err
		}
		return v, nil
	case KindAC:
		v, err := ACFromBinary(ast)
		if err != nil {
			return nil, err
		}
		return v, nil
	case KindDC:
		v, err := DCFromBinary(ast)
		if err != nil {
			return nil, err
		}
		return v, nil
	}
	return nil, fmt.Errorf("unknown analysis %q", kind)
}

// FromASCII builds the view of the given kind from a parsed text file.
func FromASCII(kind Kind, ast *psfascii.AST) (View, error) {
	switch kind {
	case KindTransient:
		v, err := TransientFromASCII(ast)
		if err != nil {
			return nil, err
		}
		return v, nil
	case KindAC:
		v, err := ACFromASCII(ast)
		if err != nil {
			return nil, err
		}
		return v, nil
	case KindDC:
		v, err := DCFromASCII(ast)
		if err != nil {
			return nil, err
		}
		return v, nil
	}
	return nil, fmt.Errorf("unknown analysis %q", kind)
}
