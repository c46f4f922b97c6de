package xentune

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Tuning maps scale degrees to pitches. Implementations must be monotonic:
// a higher degree never has a lower pitch.
type Tuning interface {
	PitchOf(degree int) Pitch
	// FindByPitch returns the degree closest to p and the deviation of p from
	// that degree's pitch.
	FindByPitch(p Pitch) (degree int, deviation Cents)
}

type (
	// EqualTuning divides Period into Divisions equal steps, with Reference
	// sounding at degree RefDegree.
	EqualTuning struct {
		Divisions int
		Period    Cents
		RefDegree int
		Reference Pitch
	}

	// ScaleTuning is a periodic scale given as the cents of each step above
	// the degree that starts the period. Steps must be strictly increasing and
	// below Period; the root (0 cents) is implicit.
	ScaleTuning struct {
		Steps     []Cents
		Period    Cents
		RefDegree int
		Reference Pitch
	}
)

// EDO returns an equal division of the octave with degree 69 at 440 Hz, so
// EDO(12) reproduces MIDI note numbering.
func EDO(divisions int) EqualTuning {
	return EqualTuning{Divisions: divisions, Period: 1200, RefDegree: ConcertANote, Reference: ConcertA}
}

func (t EqualTuning) step() Cents {
	return t.Period / Cents(t.Divisions)
}

func (t EqualTuning) PitchOf(degree int) Pitch {
	return t.Reference.Plus(t.step() * Cents(degree-t.RefDegree))
}

func (t EqualTuning) FindByPitch(p Pitch) (int, Cents) {
	steps := float64(CentsBetween(p, t.Reference) / t.step())
	rounded := math.Round(steps)
	return int(rounded) + t.RefDegree, Cents(steps-rounded) * t.step()
}

// Validate checks that the tuning is well-formed.
func (t EqualTuning) Validate() error {
	if t.Divisions <= 0 {
		return errors.New("equal tuning needs a positive number of divisions")
	}
	if t.Period <= 0 {
		return errors.New("equal tuning needs a positive period")
	}
	if t.Reference <= 0 {
		return errors.New("equal tuning needs a positive reference pitch")
	}
	return nil
}

func (t ScaleTuning) size() int {
	return len(t.Steps) + 1
}

// cents returns the offset of degree above the reference degree.
func (t ScaleTuning) cents(degree int) Cents {
	n := t.size()
	rel := degree - t.RefDegree
	period := floorDiv(rel, n)
	idx := rel - period*n
	var c Cents
	if idx > 0 {
		c = t.Steps[idx-1]
	}
	return Cents(period)*t.Period + c
}

func (t ScaleTuning) PitchOf(degree int) Pitch {
	return t.Reference.Plus(t.cents(degree))
}

func (t ScaleTuning) FindByPitch(p Pitch) (int, Cents) {
	target := CentsBetween(p, t.Reference)
	n := t.size()
	period := int(math.Floor(float64(target / t.Period)))
	base := t.RefDegree + period*n
	// degrees of this period plus the next root are the only candidates
	offset := target - Cents(period)*t.Period
	i := sort.Search(len(t.Steps), func(i int) bool { return t.Steps[i] >= offset })
	best := base + i
	bestDev := target - t.cents(best)
	if cand := best + 1; math.Abs(float64(target-t.cents(cand))) < math.Abs(float64(bestDev)) {
		best, bestDev = cand, target-t.cents(cand)
	}
	if cand := best - 1; math.Abs(float64(target-t.cents(cand))) < math.Abs(float64(bestDev)) {
		best, bestDev = cand, target-t.cents(cand)
	}
	return best, bestDev
}

// Validate checks that the scale is well-formed.
func (t ScaleTuning) Validate() error {
	if t.Period <= 0 {
		return errors.New("scale needs a positive period")
	}
	if t.Reference <= 0 {
		return errors.New("scale needs a positive reference pitch")
	}
	prev := Cents(0)
	for i, s := range t.Steps {
		if s <= prev {
			return fmt.Errorf("scale step %d (%v) is not above the previous step (%v)", i+1, s, prev)
		}
		prev = s
	}
	if prev >= t.Period {
		return fmt.Errorf("last scale step (%v) must be below the period (%v)", prev, t.Period)
	}
	return nil
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
