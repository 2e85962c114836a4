package mesh

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cadworks/go_cad_assessment/internal/core/domain"
)

// PLYLoader parses ascii PLY files. Binary PLY is rejected; the course
// tooling exports ascii.
type PLYLoader struct{}

// Load parses a PLY stream: header first, then vertex rows, then face rows.
// Vertex properties other than x/y/z are tolerated and skipped by position.
func (p *PLYLoader) Load(r io.Reader) (domain.Mesh, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	header, err := parsePLYHeader(scanner)
	if err != nil {
		return domain.Mesh{}, err
	}

	var m domain.Mesh
	m.Vertices = make([]domain.Vec3, 0, header.vertexCount)
	for i := 0; i < header.vertexCount; i++ {
		fields, err := nextDataLine(scanner, "ply vertex")
		if err != nil {
			return domain.Mesh{}, err
		}
		if len(fields) <= header.zIndex {
			return domain.Mesh{}, fmt.Errorf("%w: ply vertex %d has %d fields", ErrMalformedMesh, i, len(fields))
		}
		v, err := parseVec3(fields[header.xIndex], fields[header.yIndex], fields[header.zIndex])
		if err != nil {
			return domain.Mesh{}, fmt.Errorf("%w: ply vertex %d: %v", ErrMalformedMesh, i, err)
		}
		m.Vertices = append(m.Vertices, v)
	}

	for i := 0; i < header.faceCount; i++ {
		fields, err := nextDataLine(scanner, "ply face")
		if err != nil {
			return domain.Mesh{}, err
		}
		n, err := strconv.Atoi(fields[0])
		if err != nil || n < 3 || len(fields) < n+1 {
			return domain.Mesh{}, fmt.Errorf("%w: ply face %d is not a polygon", ErrMalformedMesh, i)
		}
		indices := make([]int, n)
		for j := 0; j < n; j++ {
			idx, err := strconv.Atoi(fields[j+1])
			if err != nil {
				return domain.Mesh{}, fmt.Errorf("%w: ply face %d: bad index %q", ErrMalformedMesh, i, fields[j+1])
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

type plyHeader struct {
	vertexCount int
	faceCount   int
	xIndex      int
	yIndex      int
	zIndex      int
}

func parsePLYHeader(scanner *bufio.Scanner) (plyHeader, error) {
	if !scanner.Scan() || strings.TrimSpace(scanner.Text()) != "ply" {
		return plyHeader{}, fmt.Errorf("%w: missing ply magic", ErrMalformedMesh)
	}

	h := plyHeader{xIndex: -1, yIndex: -1, zIndex: -1}
	element := ""
	propIndex := 0
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || fields[0] == "comment" {
			continue
		}
		switch fields[0] {
		case "format":
			if len(fields) < 2 || fields[1] != "ascii" {
				return plyHeader{}, fmt.Errorf("%w: only ascii ply is supported", ErrUnsupportedFormat)
			}
		case "element":
			if len(fields) < 3 {
				return plyHeader{}, fmt.Errorf("%w: bad ply element", ErrMalformedMesh)
			}
			count, err := strconv.Atoi(fields[2])
			if err != nil || count < 0 {
				return plyHeader{}, fmt.Errorf("%w: bad ply element count %q", ErrMalformedMesh, fields[2])
			}
			element = fields[1]
			propIndex = 0
			switch element {
			case "vertex":
				h.vertexCount = count
			case "face":
				h.faceCount = count
			}
		case "property":
			if element == "vertex" && len(fields) >= 3 && fields[1] != "list" {
				switch fields[len(fields)-1] {
				case "x":
					h.xIndex = propIndex
				case "y":
					h.yIndex = propIndex
				case "z":
					h.zIndex = propIndex
				}
				propIndex++
			}
		case "end_header":
			if h.vertexCount == 0 {
				return plyHeader{}, fmt.Errorf("%w: ply declares no vertices", ErrMalformedMesh)
			}
			if h.xIndex < 0 || h.yIndex < 0 || h.zIndex < 0 {
				return plyHeader{}, fmt.Errorf("%w: ply vertex element lacks x/y/z properties", ErrMalformedMesh)
			}
			return h, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return plyHeader{}, fmt.Errorf("mesh: reading ply: %w", err)
	}
	return plyHeader{}, fmt.Errorf("%w: ply header not terminated", ErrMalformedMesh)
}

func nextDataLine(scanner *bufio.Scanner, what string) ([]string, error) {
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) > 0 {
			return fields, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("mesh: reading %s: %w", what, err)
	}
	return nil, fmt.Errorf("%w: unexpected end of %s data", ErrMalformedMesh, what)
}
