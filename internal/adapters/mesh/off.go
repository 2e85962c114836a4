package mesh

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cadworks/go_cad_assessment/internal/core/domain"
)

// OFFLoader parses Object File Format meshes: an OFF magic line, a counts
// line, vertex rows, then polygon rows.
type OFFLoader struct{}

// Load parses an OFF stream. Polygons are fan-triangulated.
func (o *OFFLoader) Load(r io.Reader) (domain.Mesh, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	first, err := nextDataLine(scanner, "off header")
	if err != nil {
		return domain.Mesh{}, err
	}

	// The counts may share the magic line ("OFF 8 12 18") or follow it.
	var counts []string
	if strings.EqualFold(first[0], "OFF") {
		if len(first) > 1 {
			counts = first[1:]
		} else {
			counts, err = nextDataLine(scanner, "off counts")
			if err != nil {
				return domain.Mesh{}, err
			}
		}
	} else {
		counts = first
	}
	if len(counts) < 2 {
		return domain.Mesh{}, fmt.Errorf("%w: off counts line needs vertex and face counts", ErrMalformedMesh)
	}
	vertexCount, err := strconv.Atoi(counts[0])
	if err != nil || vertexCount < 0 {
		return domain.Mesh{}, fmt.Errorf("%w: bad off vertex count %q", ErrMalformedMesh, counts[0])
	}
	faceCount, err := strconv.Atoi(counts[1])
	if err != nil || faceCount < 0 {
		return domain.Mesh{}, fmt.Errorf("%w: bad off face count %q", ErrMalformedMesh, counts[1])
	}

	var m domain.Mesh
	m.Vertices = make([]domain.Vec3, 0, vertexCount)
	for i := 0; i < vertexCount; i++ {
		fields, err := nextDataLine(scanner, "off vertex")
		if err != nil {
			return domain.Mesh{}, err
		}
		if len(fields) < 3 {
			return domain.Mesh{}, fmt.Errorf("%w: off vertex %d needs 3 coordinates", ErrMalformedMesh, i)
		}
		v, err := parseVec3(fields[0], fields[1], fields[2])
		if err != nil {
			return domain.Mesh{}, fmt.Errorf("%w: off vertex %d: %v", ErrMalformedMesh, i, err)
		}
		m.Vertices = append(m.Vertices, v)
	}

	for i := 0; i < faceCount; i++ {
		fields, err := nextDataLine(scanner, "off face")
		if err != nil {
			return domain.Mesh{}, err
		}
		n, err := strconv.Atoi(fields[0])
		if err != nil || n < 3 || len(fields) < n+1 {
			return domain.Mesh{}, fmt.Errorf("%w: off face %d is not a polygon", ErrMalformedMesh, i)
		}
		indices := make([]int, n)
		for j := 0; j < n; j++ {
			idx, err := strconv.Atoi(fields[j+1])
			if err != nil {
				return domain.Mesh{}, fmt.Errorf("%w: off face %d: bad index %q", ErrMalformedMesh, i, fields[j+1])
			}
			indices[j] = idx
		}
		for j := 1; j < n-1; j++ {
			m.Faces = append(m.Faces, domain.Triangle{A: indices[0], B: indices[j], C: indices[j+1]})
		}
	}

	if err := validateMesh(m); err != nil {
		return domain.Mesh{}, err
	}
	return m, nil
}
