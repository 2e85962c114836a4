package grading

import (
	"fmt"
	"math"
	"sort"
)

// ErrInvalidScale is returned when a grading scale violates the band
// invariants. It is raised once at construction, never during Classify.
var ErrInvalidScale = fmt.Errorf("grading: invalid scale")

// Band maps an inclusive upper deviation bound to a letter grade and the
// percentage range scores in this band interpolate over.
type Band struct {
	Letter string
	// Bound is the inclusive upper limit on mean deviation for this band.
	// The worst band carries +Inf.
	Bound float64
	// ScoreLo and ScoreHi delimit the numeric score range of the band.
	ScoreLo float64
	ScoreHi float64
}

// Scale is an ordered set of grade bands, best grade first. A Scale is
// immutable after construction and safe for concurrent use.
type Scale struct {
	bands []Band
}

// failTailFalloff is the score lost per deviation unit past the last finite
// bound, inside the unbounded worst band.
const failTailFalloff = 10.0

// DefaultScale returns the documented grading scale:
// A<=0.1 (95-100), B<=0.5 (85-94), C<=1.0 (75-84), D<=2.0 (65-74), F unbounded (0-64).
func DefaultScale() Scale {
	s, err := NewScale([]Band{
		{Letter: "A", Bound: 0.1, ScoreLo: 95, ScoreHi: 100},
		{Letter: "B", Bound: 0.5, ScoreLo: 85, ScoreHi: 94},
		{Letter: "C", Bound: 1.0, ScoreLo: 75, ScoreHi: 84},
		{Letter: "D", Bound: 2.0, ScoreLo: 65, ScoreHi: 74},
		{Letter: "F", Bound: math.Inf(1), ScoreLo: 0, ScoreHi: 64},
	})
	if err != nil {
		// The default table is a constant; it cannot fail validation.
		panic(err)
	}
	return s
}

// NewScale builds a validated scale from bands ordered best grade first.
func NewScale(bands []Band) (Scale, error) {
	s := Scale{bands: append([]Band(nil), bands...)}
	if err := s.validate(); err != nil {
		return Scale{}, err
	}
	return s, nil
}

// ScaleFromBounds builds a scale from a letter->bound mapping, such as an
// operator-supplied threshold override. Bands are ordered by ascending bound
// and take their score ranges from the default scale by letter. The worst
// letter may map to +Inf explicitly; if no bound is infinite the largest one
// is rejected by validation, so overrides must keep an unbounded tail.
func ScaleFromBounds(bounds map[string]float64) (Scale, error) {
	if len(bounds) == 0 {
		return Scale{}, fmt.Errorf("%w: no bands supplied", ErrInvalidScale)
	}
	ranges := make(map[string][2]float64, len(DefaultScale().bands))
	for _, b := range DefaultScale().bands {
		ranges[b.Letter] = [2]float64{b.ScoreLo, b.ScoreHi}
	}
	bands := make([]Band, 0, len(bounds))
	for letter, bound := range bounds {
		r, ok := ranges[letter]
		if !ok {
			return Scale{}, fmt.Errorf("%w: unknown grade letter %q", ErrInvalidScale, letter)
		}
		bands = append(bands, Band{Letter: letter, Bound: bound, ScoreLo: r[0], ScoreHi: r[1]})
	}
	sort.Slice(bands, func(i, j int) bool {
		if bands[i].Bound == bands[j].Bound {
			return bands[i].ScoreHi > bands[j].ScoreHi
		}
		return bands[i].Bound < bands[j].Bound
	})
	return NewScale(bands)
}

// Bands returns a copy of the scale's bands, best grade first.
func (s Scale) Bands() []Band {
	return append([]Band(nil), s.bands...)
}

// validate enforces the scale invariants: at least two bands, positive
// monotone non-decreasing bounds, a single unbounded worst band, and score
// ranges ordered consistently with the grades.
func (s Scale) validate() error {
	if len(s.bands) < 2 {
		return fmt.Errorf("%w: need at least two bands, got %d", ErrInvalidScale, len(s.bands))
	}
	for i, b := range s.bands {
		if b.Letter == "" {
			return fmt.Errorf("%w: band %d has no letter", ErrInvalidScale, i)
		}
		if math.IsNaN(b.Bound) || b.Bound <= 0 {
			return fmt.Errorf("%w: band %s has non-positive bound %v", ErrInvalidScale, b.Letter, b.Bound)
		}
		if i > 0 && b.Bound < s.bands[i-1].Bound {
			return fmt.Errorf("%w: bound for %s (%v) is below bound for %s (%v)",
				ErrInvalidScale, b.Letter, b.Bound, s.bands[i-1].Letter, s.bands[i-1].Bound)
		}
		if math.IsInf(b.Bound, 1) && i != len(s.bands)-1 {
			return fmt.Errorf("%w: only the worst band may be unbounded, %s is not last", ErrInvalidScale, b.Letter)
		}
		if b.ScoreLo < 0 || b.ScoreHi > 100 || b.ScoreLo > b.ScoreHi {
			return fmt.Errorf("%w: band %s has bad score range [%v,%v]", ErrInvalidScale, b.Letter, b.ScoreLo, b.ScoreHi)
		}
		if i > 0 && b.ScoreHi > s.bands[i-1].ScoreLo {
			return fmt.Errorf("%w: score range for %s overlaps the better band %s",
				ErrInvalidScale, b.Letter, s.bands[i-1].Letter)
		}
	}
	last := s.bands[len(s.bands)-1]
	if !math.IsInf(last.Bound, 1) {
		return fmt.Errorf("%w: worst band %s must be unbounded, got %v", ErrInvalidScale, last.Letter, last.Bound)
	}
	return nil
}

// score interpolates the numeric score for a deviation known to fall in the
// band at index idx. Within a band the score decreases linearly from the
// band's high end (at the previous bound) to its low end (at its own bound).
// The unbounded tail decays linearly from its high end past the last finite
// bound and clamps at zero, so the score stays monotone in the deviation.
func (s Scale) score(idx int, deviation float64) float64 {
	b := s.bands[idx]
	var raw float64
	switch {
	case idx == 0:
		factor := 1 - deviation/b.Bound
		if factor < 0 {
			factor = 0
		}
		raw = b.ScoreLo + (b.ScoreHi-b.ScoreLo)*factor
	case math.IsInf(b.Bound, 1):
		prev := s.bands[idx-1].Bound
		raw = b.ScoreHi - failTailFalloff*(deviation-prev)
	default:
		prev := s.bands[idx-1].Bound
		factor := (b.Bound - deviation) / (b.Bound - prev)
		raw = b.ScoreLo + (b.ScoreHi-b.ScoreLo)*factor
	}
	if raw < 0 {
		return 0
	}
	if raw > 100 {
		return 100
	}
	return raw
}
