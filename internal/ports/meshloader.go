package ports

import (
	"io"

	"github.com/cadworks/go_cad_assessment/internal/core/domain"
)

// MeshLoader defines the interface for parsing one CAD file format
// into a triangle mesh.
type MeshLoader interface {
	Load(r io.Reader) (domain.Mesh, error)
}
