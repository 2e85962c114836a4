package mesh

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cadworks/go_cad_assessment/internal/core/domain"
)

// OBJLoader parses Wavefront OBJ files. Only vertex and face statements are
// consumed; normals, texture coordinates, groups and materials are skipped.
type OBJLoader struct{}

// Load parses an OBJ stream into a mesh. Polygon faces are triangulated
// with a fan; negative (relative) indices are resolved against the vertices
// seen so far, per the OBJ specification.
func (o *OBJLoader) Load(r io.Reader) (domain.Mesh, error) {
	var m domain.Mesh
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		switch fields[0] {
		case "v":
			if len(fields) < 4 {
				return domain.Mesh{}, fmt.Errorf("%w: obj line %d: vertex needs 3 coordinates", ErrMalformedMesh, lineNo)
			}
			v, err := parseVec3(fields[1], fields[2], fields[3])
			if err != nil {
				return domain.Mesh{}, fmt.Errorf("%w: obj line %d: %v", ErrMalformedMesh, lineNo, err)
			}
			m.Vertices = append(m.Vertices, v)
		case "f":
			if len(fields) < 4 {
				return domain.Mesh{}, fmt.Errorf("%w: obj line %d: face needs 3 vertices", ErrMalformedMesh, lineNo)
			}
			indices := make([]int, 0, len(fields)-1)
			for _, ref := range fields[1:] {
				idx, err := objVertexIndex(ref, len(m.Vertices))
				if err != nil {
					return domain.Mesh{}, fmt.Errorf("%w: obj line %d: %v", ErrMalformedMesh, lineNo, err)
				}
				indices = append(indices, idx)
			}
			for i := 1; i < len(indices)-1; i++ {
				m.Faces = append(m.Faces, domain.Triangle{A: indices[0], B: indices[i], C: indices[i+1]})
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return domain.Mesh{}, fmt.Errorf("mesh: reading obj: %w", err)
	}
	if err := validateMesh(m); err != nil {
		return domain.Mesh{}, err
	}
	return m, nil
}

// objVertexIndex resolves a face vertex reference like "3", "3/1" or
// "3/1/2" to a zero-based index. OBJ indices are 1-based; negative values
// count back from the most recent vertex.
func objVertexIndex(ref string, vertexCount int) (int, error) {
	if slash := strings.IndexByte(ref, '/'); slash >= 0 {
		ref = ref[:slash]
	}
	n, err := strconv.Atoi(ref)
	if err != nil {
		return 0, fmt.Errorf("bad vertex reference %q", ref)
	}
	switch {
	case n > 0:
		return n - 1, nil
	case n < 0:
		return vertexCount + n, nil
	default:
		return 0, fmt.Errorf("vertex index 0 is not valid")
	}
}

func parseVec3(sx, sy, sz string) (domain.Vec3, error) {
	x, err := strconv.ParseFloat(sx, 64)
	if err != nil {
		return domain.Vec3{}, fmt.Errorf("bad coordinate %q", sx)
	}
	y, err := strconv.ParseFloat(sy, 64)
	if err != nil {
		return domain.Vec3{}, fmt.Errorf("bad coordinate %q", sy)
	}
	z, err := strconv.ParseFloat(sz, 64)
	if err != nil {
		return domain.Vec3{}, fmt.Errorf("bad coordinate %q", sz)
	}
	return domain.Vec3{X: x, Y: y, Z: z}, nil
}
