// Package aot distributes a whole scale across MIDI channels ahead of time, so
// that any combination of its degrees can sound at once without two degrees
// needing different corrections in the same slot of a channel.
package aot

import (
	"fmt"

	"github.com/xentune/xentune"
)

// MaxChannels is the number of channels a MIDI port offers.
const MaxChannels = 16

type (
	// Result is a partition of a scale's degrees onto channels.
	Result struct {
		GroupBy xentune.GroupBy
		Tables  []ChannelTable
		Degrees map[int]Placement
		// OutOfRange counts degrees skipped because their nearest note lies
		// outside 0..127.
		OutOfRange int
	}

	// ChannelTable holds the corrections of one channel, indexed by slot (see
	// xentune.GroupBy.Slot).
	ChannelTable struct {
		Cents [xentune.NumNotes]xentune.Cents
		Notes [xentune.NumNotes]byte // a note that addresses the slot
		Used  [xentune.NumNotes]bool
	}

	// Placement tells where a degree sounds.
	Placement struct {
		Channel int
		Note    byte
	}

	// OverflowError is returned when the scale does not fit on the available
	// channels.
	OverflowError struct {
		RequiredChannels  int
		AvailableChannels int
		Unplaced          int // degrees left without a channel
	}

	candidate struct {
		degree    int
		note      int
		deviation xentune.Cents
	}
)

func (e *OverflowError) Error() string {
	return fmt.Sprintf("tuning needs %d channels but only %d are available (%d degrees unplaced)", e.RequiredChannels, e.AvailableChannels, e.Unplaced)
}

// Partition assigns every degree in degrees to a channel and a note. Channels
// are filled in order: each one takes, in degree order, every remaining
// degree whose slot is still free on it. If more than maxChannels channels
// would be needed, Partition returns an *OverflowError telling how many.
//
// Partition allocates and is meant to run when the tuning changes, not while
// notes are being played.
func Partition(tuning xentune.Tuning, degrees xentune.Range, groupBy xentune.GroupBy, maxChannels int) (*Result, error) {
	maxChannels = min(maxChannels, MaxChannels)
	res := &Result{
		GroupBy: groupBy,
		Degrees: make(map[int]Placement, degrees.Len()),
	}
	remaining := make([]candidate, 0, degrees.Len())
	for d := degrees.Lo; d < degrees.Hi; d++ {
		note, deviation := xentune.NearestNote(tuning.PitchOf(d))
		if !xentune.ValidNote(note) {
			res.OutOfRange++
			continue
		}
		remaining = append(remaining, candidate{degree: d, note: note, deviation: deviation})
	}
	channels, unplaced := 0, len(remaining)
	for ; len(remaining) > 0; channels++ {
		var table ChannelTable
		next := remaining[:0]
		for _, c := range remaining {
			slot, _ := groupBy.Slot(c.note)
			if table.Used[slot] {
				next = append(next, c)
				continue
			}
			table.Used[slot] = true
			table.Cents[slot] = c.deviation
			table.Notes[slot] = byte(c.note)
			if channels < maxChannels {
				res.Degrees[c.degree] = Placement{Channel: channels, Note: byte(c.note)}
			}
		}
		remaining = next
		if channels < maxChannels {
			res.Tables = append(res.Tables, table)
			unplaced = len(remaining)
		}
	}
	if channels > maxChannels {
		return nil, &OverflowError{RequiredChannels: channels, AvailableChannels: maxChannels, Unplaced: unplaced}
	}
	return res, nil
}

// PitchOf reconstructs the pitch a degree sounds at from the channel tables.
func (r *Result) PitchOf(degree int) (xentune.Pitch, bool) {
	p, ok := r.Degrees[degree]
	if !ok {
		return 0, false
	}
	slot, _ := r.GroupBy.Slot(int(p.Note))
	return xentune.NoteToPitch(int(p.Note)).Plus(r.Tables[p.Channel].Cents[slot]), true
}

// NumChannels returns the number of channels the partition uses.
func (r *Result) NumChannels() int {
	return len(r.Tables)
}
