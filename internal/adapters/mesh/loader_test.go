package mesh

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
	"testing"

	"github.com/cadworks/go_cad_assessment/internal/core/domain"
)

func TestLoaderFactoryForFile(t *testing.T) {
	factory := NewLoaderFactory()
	tests := []struct {
		name   string
		loader interface{}
	}{
		{name: "part.obj", loader: &OBJLoader{}},
		{name: "PART.STL", loader: &STLLoader{}},
		{name: "scan.ply", loader: &PLYLoader{}},
		{name: "model.off", loader: &OFFLoader{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			loader, err := factory.ForFile(tc.name)
			if err != nil {
				t.Fatalf("ForFile(%s): %v", tc.name, err)
			}
			if loader == nil {
				t.Fatal("nil loader")
			}
		})
	}

	if _, err := factory.ForFile("model.step"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("ForFile(step) error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestOBJLoader(t *testing.T) {
	obj := `# unit square, two ways of writing faces
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
f 1 2 3 4
f -4/1 -3/2/3 -2/1
`
	m, err := (&OBJLoader{}).Load(strings.NewReader(obj))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(m.Vertices) != 4 {
		t.Errorf("vertices = %d, want 4", len(m.Vertices))
	}
	// Quad fans into 2 triangles, the second face adds 1.
	if len(m.Faces) != 3 {
		t.Errorf("faces = %d, want 3", len(m.Faces))
	}
	if m.Faces[0] != (domain.Triangle{A: 0, B: 1, C: 2}) {
		t.Errorf("first triangle = %+v", m.Faces[0])
	}
	if m.Faces[2] != (domain.Triangle{A: 0, B: 1, C: 2}) {
		t.Errorf("negative indices resolved to %+v", m.Faces[2])
	}
}

func TestOBJLoaderMalformed(t *testing.T) {
	tests := []struct {
		name string
		obj  string
	}{
		{name: "Bad coordinate", obj: "v 0 zero 0\n"},
		{name: "Face before vertices", obj: "f 1 2 3\nv 0 0 0\n"},
		{name: "Zero index", obj: "v 0 0 0\nf 0 0 0\n"},
		{name: "Out of range index", obj: "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 9\n"},
		{name: "Empty file", obj: ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := (&OBJLoader{}).Load(strings.NewReader(tc.obj)); !errors.Is(err, ErrMalformedMesh) {
				t.Errorf("error = %v, want ErrMalformedMesh", err)
			}
		})
	}
}

func TestSTLLoaderASCII(t *testing.T) {
	stl := `solid square
facet normal 0 0 1
  outer loop
    vertex 0 0 0
    vertex 1 0 0
    vertex 1 1 0
  endloop
endfacet
facet normal 0 0 1
  outer loop
    vertex 0 0 0
    vertex 1 1 0
    vertex 0 1 0
  endloop
endfacet
endsolid square
`
	m, err := (&STLLoader{}).Load(strings.NewReader(stl))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	// Shared corners must merge: 6 corner rows, 4 distinct positions.
	if len(m.Vertices) != 4 {
		t.Errorf("vertices = %d, want 4 after merging", len(m.Vertices))
	}
	if len(m.Faces) != 2 {
		t.Errorf("faces = %d, want 2", len(m.Faces))
	}
}

func writeBinarySTL(t *testing.T, m domain.Mesh) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.Write(make([]byte, 80))
	if err := binary.Write(&buf, binary.LittleEndian, uint32(len(m.Faces))); err != nil {
		t.Fatal(err)
	}
	for _, f := range m.Faces {
		if err := binary.Write(&buf, binary.LittleEndian, [3]float32{}); err != nil {
			t.Fatal(err)
		}
		for _, idx := range []int{f.A, f.B, f.C} {
			v := m.Vertices[idx]
			if err := binary.Write(&buf, binary.LittleEndian, [3]float32{float32(v.X), float32(v.Y), float32(v.Z)}); err != nil {
				t.Fatal(err)
			}
		}
		if err := binary.Write(&buf, binary.LittleEndian, uint16(0)); err != nil {
			t.Fatal(err)
		}
	}
	return buf.Bytes()
}

func TestSTLLoaderBinary(t *testing.T) {
	src := domain.Mesh{
		Vertices: []domain.Vec3{
			{X: 0, Y: 0, Z: 0},
			{X: 1, Y: 0, Z: 0},
			{X: 0, Y: 1, Z: 0},
			{X: 0, Y: 0, Z: 1},
		},
		Faces: []domain.Triangle{
			{A: 0, B: 1, C: 2},
			{A: 0, B: 1, C: 3},
			{A: 0, B: 2, C: 3},
			{A: 1, B: 2, C: 3},
		},
	}
	data := writeBinarySTL(t, src)

	m, err := (&STLLoader{}).Load(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(m.Vertices) != 4 {
		t.Errorf("vertices = %d, want 4", len(m.Vertices))
	}
	if len(m.Faces) != 4 {
		t.Errorf("faces = %d, want 4", len(m.Faces))
	}
}

func TestPLYLoader(t *testing.T) {
	ply := `ply
format ascii 1.0
comment exported fixture
element vertex 3
property float x
property float y
property float z
property float confidence
element face 1
property list uchar int vertex_indices
end_header
0 0 0 0.9
1 0 0 0.9
0 1 0 0.9
3 0 1 2
`
	m, err := (&PLYLoader{}).Load(strings.NewReader(ply))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(m.Vertices) != 3 || len(m.Faces) != 1 {
		t.Errorf("got %d vertices, %d faces", len(m.Vertices), len(m.Faces))
	}
}

func TestPLYLoaderRejectsBinary(t *testing.T) {
	ply := "ply\nformat binary_little_endian 1.0\nelement vertex 0\nend_header\n"
	if _, err := (&PLYLoader{}).Load(strings.NewReader(ply)); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestPLYLoaderMissingMagic(t *testing.T) {
	if _, err := (&PLYLoader{}).Load(strings.NewReader("obj\n")); !errors.Is(err, ErrMalformedMesh) {
		t.Errorf("error = %v, want ErrMalformedMesh", err)
	}
}

func TestOFFLoader(t *testing.T) {
	tests := []struct {
		name string
		off  string
	}{
		{
			name: "Counts on separate line",
			off:  "OFF\n4 2 0\n0 0 0\n1 0 0\n1 1 0\n0 1 0\n3 0 1 2\n3 0 2 3\n",
		},
		{
			name: "Counts on magic line",
			off:  "OFF 4 2 0\n0 0 0\n1 0 0\n1 1 0\n0 1 0\n3 0 1 2\n3 0 2 3\n",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m, err := (&OFFLoader{}).Load(strings.NewReader(tc.off))
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if len(m.Vertices) != 4 || len(m.Faces) != 2 {
				t.Errorf("got %d vertices, %d faces", len(m.Vertices), len(m.Faces))
			}
		})
	}
}

func TestOFFLoaderQuadTriangulation(t *testing.T) {
	off := "OFF\n4 1 0\n0 0 0\n1 0 0\n1 1 0\n0 1 0\n4 0 1 2 3\n"
	m, err := (&OFFLoader{}).Load(strings.NewReader(off))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(m.Faces) != 2 {
		t.Errorf("quad should fan into 2 triangles, got %d", len(m.Faces))
	}
}
