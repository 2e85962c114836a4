package geometry

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/cadworks/go_cad_assessment/internal/core/domain"
	"github.com/cadworks/go_cad_assessment/internal/pool"
	"github.com/cadworks/go_cad_assessment/internal/ports"
)

// ErrEmptyMesh is returned when a mesh has no vertices to sample from.
var ErrEmptyMesh = errors.New("geometry: mesh has no vertices")

// SamplerConfig holds configuration for point cloud extraction.
type SamplerConfig struct {
	// Points is the number of sample points per cloud.
	Points int
	// Seed makes sampling deterministic when non-zero.
	Seed int64
}

// DefaultSamplerConfig returns the default sampling configuration.
func DefaultSamplerConfig() SamplerConfig {
	return SamplerConfig{Points: 2048}
}

// Validate checks if the configuration is valid.
func (c SamplerConfig) Validate() error {
	if c.Points <= 0 {
		return fmt.Errorf("geometry: sample points must be positive, got %d", c.Points)
	}
	return nil
}

// Sampler extracts normalized point clouds from triangle meshes.
// Watertight meshes are sampled uniformly over their surface area;
// open meshes fall back to vertex sampling. Every cloud is centered and
// scaled to the unit sphere so deviations compare across model sizes.
type Sampler struct {
	config SamplerConfig
	logger ports.Logger
	areas  *pool.FloatBufferPool
}

// NewSampler creates a point cloud sampler.
func NewSampler(config SamplerConfig, logger ports.Logger) (*Sampler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Sampler{
		config: config,
		logger: logger,
		areas:  pool.NewFloatBufferPool(4096),
	}, nil
}

// PointCloud samples the mesh into a normalized point cloud.
func (s *Sampler) PointCloud(mesh domain.Mesh) ([]domain.Vec3, error) {
	if len(mesh.Vertices) == 0 {
		return nil, ErrEmptyMesh
	}

	seed := s.config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	var points []domain.Vec3
	if IsWatertight(mesh) {
		points = s.sampleSurface(mesh, rng)
	}
	if points == nil {
		points = s.sampleVertices(mesh, rng)
	}

	normalizeToUnitSphere(points)

	s.logger.Debug("Extracted point cloud",
		"vertices", len(mesh.Vertices),
		"faces", len(mesh.Faces),
		"points", len(points),
	)
	return points, nil
}

// IsWatertight reports whether every edge of the mesh is shared by exactly
// two triangles.
func IsWatertight(mesh domain.Mesh) bool {
	if len(mesh.Faces) == 0 {
		return false
	}
	type edge struct{ lo, hi int }
	counts := make(map[edge]int, len(mesh.Faces)*3)
	add := func(a, b int) {
		if a > b {
			a, b = b, a
		}
		counts[edge{a, b}]++
	}
	for _, f := range mesh.Faces {
		add(f.A, f.B)
		add(f.B, f.C)
		add(f.C, f.A)
	}
	for _, n := range counts {
		if n != 2 {
			return false
		}
	}
	return true
}

// sampleSurface draws points uniformly over the mesh surface, weighting
// faces by area. Returns nil when the total area is degenerate so the
// caller can fall back to vertex sampling.
func (s *Sampler) sampleSurface(mesh domain.Mesh, rng *rand.Rand) []domain.Vec3 {
	cumulative := s.areas.Get()
	defer s.areas.Put(cumulative)

	total := 0.0
	for _, f := range mesh.Faces {
		total += triangleArea(mesh.Vertices[f.A], mesh.Vertices[f.B], mesh.Vertices[f.C])
		*cumulative = append(*cumulative, total)
	}
	if total <= 0 {
		return nil
	}

	points := make([]domain.Vec3, s.config.Points)
	for i := range points {
		target := rng.Float64() * total
		idx := sort.SearchFloat64s(*cumulative, target)
		if idx >= len(mesh.Faces) {
			idx = len(mesh.Faces) - 1
		}
		f := mesh.Faces[idx]
		points[i] = samplePointInTriangle(mesh.Vertices[f.A], mesh.Vertices[f.B], mesh.Vertices[f.C], rng)
	}
	return points
}

// sampleVertices draws points directly from the vertex set: without
// replacement when enough vertices exist, with replacement otherwise.
func (s *Sampler) sampleVertices(mesh domain.Mesh, rng *rand.Rand) []domain.Vec3 {
	n := s.config.Points
	points := make([]domain.Vec3, 0, n)
	if len(mesh.Vertices) >= n {
		perm := rng.Perm(len(mesh.Vertices))
		for _, idx := range perm[:n] {
			points = append(points, mesh.Vertices[idx])
		}
		return points
	}
	for i := 0; i < n; i++ {
		points = append(points, mesh.Vertices[rng.Intn(len(mesh.Vertices))])
	}
	return points
}

// normalizeToUnitSphere centers the cloud on its centroid and scales it so
// the farthest point sits on the unit sphere.
func normalizeToUnitSphere(points []domain.Vec3) {
	if len(points) == 0 {
		return
	}
	var cx, cy, cz float64
	for _, p := range points {
		cx += p.X
		cy += p.Y
		cz += p.Z
	}
	n := float64(len(points))
	cx, cy, cz = cx/n, cy/n, cz/n

	scale := 0.0
	for i := range points {
		points[i].X -= cx
		points[i].Y -= cy
		points[i].Z -= cz
		r := math.Sqrt(points[i].X*points[i].X + points[i].Y*points[i].Y + points[i].Z*points[i].Z)
		if r > scale {
			scale = r
		}
	}
	if scale <= 0 {
		return
	}
	for i := range points {
		points[i].X /= scale
		points[i].Y /= scale
		points[i].Z /= scale
	}
}

func triangleArea(a, b, c domain.Vec3) float64 {
	ux, uy, uz := b.X-a.X, b.Y-a.Y, b.Z-a.Z
	vx, vy, vz := c.X-a.X, c.Y-a.Y, c.Z-a.Z
	crossX := uy*vz - uz*vy
	crossY := uz*vx - ux*vz
	crossZ := ux*vy - uy*vx
	return 0.5 * math.Sqrt(crossX*crossX+crossY*crossY+crossZ*crossZ)
}

// samplePointInTriangle draws a uniformly distributed point using the
// square-root barycentric transform.
func samplePointInTriangle(a, b, c domain.Vec3, rng *rand.Rand) domain.Vec3 {
	r1 := math.Sqrt(rng.Float64())
	r2 := rng.Float64()
	wa := 1 - r1
	wb := r1 * (1 - r2)
	wc := r1 * r2
	return domain.Vec3{
		X: wa*a.X + wb*b.X + wc*c.X,
		Y: wa*a.Y + wb*b.Y + wc*c.Y,
		Z: wa*a.Z + wb*b.Z + wc*c.Z,
	}
}
