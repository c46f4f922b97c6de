package xentune

import (
	"fmt"
	"math"
)

type (
	// Pitch is a frequency in Hz.
	Pitch float64

	// Cents is a logarithmic pitch difference; 100 cents is one
	// equal-tempered semitone and 1200 cents is an octave.
	Cents float64

	// Range is a half-open range [Lo, Hi) of scale degrees.
	Range struct {
		Lo int `yaml:"lo"`
		Hi int `yaml:"hi"`
	}
)

const (
	// ConcertA is the pitch of MIDI note 69.
	ConcertA Pitch = 440
	// ConcertANote is the MIDI note number of ConcertA.
	ConcertANote = 69
	// NumNotes is the number of fixed notes a MIDI channel can address.
	NumNotes = 128
)

// CentsBetween returns the interval from b up to a.
func CentsBetween(a, b Pitch) Cents {
	return Cents(1200 * math.Log2(float64(a)/float64(b)))
}

// Plus returns the pitch c cents above p.
func (p Pitch) Plus(c Cents) Pitch {
	return Pitch(float64(p) * math.Exp2(float64(c)/1200))
}

func (p Pitch) String() string {
	return fmt.Sprintf("%.3f Hz", float64(p))
}

func (c Cents) String() string {
	return fmt.Sprintf("%+.3f¢", float64(c))
}

// NoteToPitch returns the 12-EDO pitch of a MIDI note number. Note numbers
// outside 0..127 are extrapolated.
func NoteToPitch(note int) Pitch {
	return ConcertA.Plus(Cents(100 * (note - ConcertANote)))
}

// NearestNote returns the 12-EDO note number closest to p and the deviation of
// p from that note. The note number may fall outside 0..127; see ValidNote.
func NearestNote(p Pitch) (note int, deviation Cents) {
	semis := float64(CentsBetween(p, ConcertA)) / 100
	rounded := math.Round(semis)
	return int(rounded) + ConcertANote, Cents(100 * (semis - rounded))
}

// ValidNote reports whether note is addressable on a MIDI channel.
func ValidNote(note int) bool {
	return note >= 0 && note < NumNotes
}

// Len returns the number of degrees in the range.
func (r Range) Len() int {
	if r.Hi < r.Lo {
		return 0
	}
	return r.Hi - r.Lo
}

// Contains reports whether degree lies in the range.
func (r Range) Contains(degree int) bool {
	return degree >= r.Lo && degree < r.Hi
}
