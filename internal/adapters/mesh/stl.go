package mesh

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/cadworks/go_cad_assessment/internal/core/domain"
)

const (
	stlHeaderSize   = 84
	stlTriangleSize = 50
)

// STLLoader parses STL files, both binary and ascii. STL stores loose
// triangle soup; identical corner positions are merged into shared vertices
// so the watertightness check can see the topology.
type STLLoader struct{}

// Load reads the whole stream and dispatches on the encoding. A file is
// binary when its length matches the 84-byte header plus 50 bytes per
// triangle declared in it; everything else is treated as ascii.
func (s *STLLoader) Load(r io.Reader) (domain.Mesh, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return domain.Mesh{}, fmt.Errorf("mesh: reading stl: %w", err)
	}
	if isBinarySTL(data) {
		return s.loadBinary(data)
	}
	return s.loadASCII(data)
}

func isBinarySTL(data []byte) bool {
	if len(data) < stlHeaderSize {
		return false
	}
	count := binary.LittleEndian.Uint32(data[80:84])
	return len(data) == stlHeaderSize+int(count)*stlTriangleSize
}

func (s *STLLoader) loadBinary(data []byte) (domain.Mesh, error) {
	count := binary.LittleEndian.Uint32(data[80:84])
	builder := newVertexMerger()
	offset := stlHeaderSize
	for t := uint32(0); t < count; t++ {
		// Skip the 12-byte normal; corners follow.
		base := offset + 12
		var corners [3]int
		for c := 0; c < 3; c++ {
			x := math.Float32frombits(binary.LittleEndian.Uint32(data[base:]))
			y := math.Float32frombits(binary.LittleEndian.Uint32(data[base+4:]))
			z := math.Float32frombits(binary.LittleEndian.Uint32(data[base+8:]))
			corners[c] = builder.index(domain.Vec3{X: float64(x), Y: float64(y), Z: float64(z)})
			base += 12
		}
		builder.face(corners)
		offset += stlTriangleSize
	}
	m := builder.mesh()
	if err := validateMesh(m); err != nil {
		return domain.Mesh{}, err
	}
	return m, nil
}

func (s *STLLoader) loadASCII(data []byte) (domain.Mesh, error) {
	builder := newVertexMerger()
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var corners []int
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "vertex":
			if len(fields) < 4 {
				return domain.Mesh{}, fmt.Errorf("%w: stl line %d: vertex needs 3 coordinates", ErrMalformedMesh, lineNo)
			}
			v, err := parseVec3(fields[1], fields[2], fields[3])
			if err != nil {
				return domain.Mesh{}, fmt.Errorf("%w: stl line %d: %v", ErrMalformedMesh, lineNo, err)
			}
			corners = append(corners, builder.index(v))
		case "endfacet":
			if len(corners) != 3 {
				return domain.Mesh{}, fmt.Errorf("%w: stl line %d: facet has %d vertices", ErrMalformedMesh, lineNo, len(corners))
			}
			builder.face([3]int{corners[0], corners[1], corners[2]})
			corners = corners[:0]
		}
	}
	if err := scanner.Err(); err != nil {
		return domain.Mesh{}, fmt.Errorf("mesh: reading stl: %w", err)
	}
	m := builder.mesh()
	if err := validateMesh(m); err != nil {
		return domain.Mesh{}, err
	}
	return m, nil
}

// vertexMerger deduplicates exactly repeated corner positions.
type vertexMerger struct {
	seen  map[domain.Vec3]int
	verts []domain.Vec3
	faces []domain.Triangle
}

func newVertexMerger() *vertexMerger {
	return &vertexMerger{seen: make(map[domain.Vec3]int)}
}

func (vm *vertexMerger) index(v domain.Vec3) int {
	if idx, ok := vm.seen[v]; ok {
		return idx
	}
	idx := len(vm.verts)
	vm.verts = append(vm.verts, v)
	vm.seen[v] = idx
	return idx
}

func (vm *vertexMerger) face(corners [3]int) {
	vm.faces = append(vm.faces, domain.Triangle{A: corners[0], B: corners[1], C: corners[2]})
}

func (vm *vertexMerger) mesh() domain.Mesh {
	return domain.Mesh{Vertices: vm.verts, Faces: vm.faces}
}
