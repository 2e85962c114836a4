// Package mesh parses the CAD exchange formats accepted for submissions
// (OBJ, STL, PLY, OFF) into triangle meshes. Loaders only extract what the
// deviation pipeline needs: vertex positions and triangulated faces.
package mesh

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cadworks/go_cad_assessment/internal/core/domain"
	"github.com/cadworks/go_cad_assessment/internal/ports"
)

// ErrUnsupportedFormat is returned for file types outside the accepted set.
var ErrUnsupportedFormat = errors.New("mesh: unsupported format")

// ErrMalformedMesh is returned when a file parses but yields no usable
// geometry, or references vertices that do not exist.
var ErrMalformedMesh = errors.New("mesh: malformed mesh")

// Format identifies a supported CAD file format.
type Format int

const (
	FormatOBJ Format = iota
	FormatSTL
	FormatPLY
	FormatOFF
)

// String returns the canonical file extension for the format.
func (f Format) String() string {
	switch f {
	case FormatOBJ:
		return ".obj"
	case FormatSTL:
		return ".stl"
	case FormatPLY:
		return ".ply"
	case FormatOFF:
		return ".off"
	default:
		return "unknown"
	}
}

// LoaderFactory creates loaders per format.
type LoaderFactory struct{}

// NewLoaderFactory creates a loader factory.
func NewLoaderFactory() *LoaderFactory {
	return &LoaderFactory{}
}

// Create returns the loader for the given format.
func (lf *LoaderFactory) Create(format Format) (ports.MeshLoader, error) {
	switch format {
	case FormatOBJ:
		return &OBJLoader{}, nil
	case FormatSTL:
		return &STLLoader{}, nil
	case FormatPLY:
		return &PLYLoader{}, nil
	case FormatOFF:
		return &OFFLoader{}, nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, format)
	}
}

// ForFile picks a loader from the file name's extension.
func (lf *LoaderFactory) ForFile(name string) (ports.MeshLoader, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".obj":
		return lf.Create(FormatOBJ)
	case ".stl":
		return lf.Create(FormatSTL)
	case ".ply":
		return lf.Create(FormatPLY)
	case ".off":
		return lf.Create(FormatOFF)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(name))
	}
}

// validateMesh enforces the minimal structure every loader must deliver.
func validateMesh(m domain.Mesh) error {
	if len(m.Vertices) == 0 {
		return fmt.Errorf("%w: no vertices", ErrMalformedMesh)
	}
	for i, f := range m.Faces {
		for _, idx := range []int{f.A, f.B, f.C} {
			if idx < 0 || idx >= len(m.Vertices) {
				return fmt.Errorf("%w: face %d references vertex %d of %d", ErrMalformedMesh, i, idx, len(m.Vertices))
			}
		}
	}
	return nil
}
