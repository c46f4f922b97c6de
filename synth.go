package xentune

import (
	"errors"
	"fmt"
)

type (
	// Synth is the capability the allocation engine drives. Channels are
	// numbered 0..NumChannels()-1; notes are MIDI note numbers 0..127.
	//
	// Implementations must reclaim voices on their own: when a pool runs in
	// Ignore mode, a note whose channel was taken over never receives a
	// NoteOff.
	Synth interface {
		NoteOn(channel int, note byte, velocity byte) error
		NoteOff(channel int, note byte, velocity byte) error
		// NoteAttr sets a per-note attribute, e.g. polyphonic key pressure.
		NoteAttr(channel int, note byte, value byte) error
		// Detune sets the correction applied to note on channel. How wide the
		// correction reaches is given by GroupBy: the whole channel, every note
		// with the same pitch class, or the single note.
		Detune(channel int, note byte, cents Cents) error
		// Global forwards a channel-wide message.
		Global(channel int, msg ChannelMessage) error
		NumChannels() int
		GroupBy() GroupBy
	}

	// GroupBy tells how far a single detuning reaches on a channel.
	GroupBy int

	// ChannelMessage is a monophonic, channel-wide message such as a program
	// change or a pitch bend.
	ChannelMessage struct {
		Kind  MessageKind
		Value int // 0..127, or -8192..8191 for PitchBend
		Param int // controller number for ControlChange
	}

	MessageKind int
)

const (
	GroupByChannel GroupBy = iota
	GroupByNoteLetter
	GroupByNote
)

const (
	ProgramChange MessageKind = iota
	PitchBend
	ChannelPressure
	ControlChange
)

var (
	// ErrIllegalState is returned when a key is pressed twice without a
	// release, or when an unknown key is moved or released.
	ErrIllegalState = errors.New("illegal key state")
	// ErrPoolExhausted is returned when no channel can be granted.
	ErrPoolExhausted = errors.New("no free channel")
	// ErrUnmappedDegree is returned when a degree has no channel assigned.
	ErrUnmappedDegree = errors.New("degree is not mapped to any channel")
	// ErrNoteRange is returned when a pitch is nearest to a note outside
	// 0..127.
	ErrNoteRange = errors.New("pitch is outside the MIDI note range")
)

// Slot returns the index of the detuning slot note occupies, and the number
// of slots a channel has, for this grouping.
func (g GroupBy) Slot(note int) (slot int, numSlots int) {
	switch g {
	case GroupByNoteLetter:
		return ((note % 12) + 12) % 12, 12
	case GroupByNote:
		return note, NumNotes
	default:
		return 0, 1
	}
}

func (g GroupBy) String() string {
	switch g {
	case GroupByChannel:
		return "channel"
	case GroupByNoteLetter:
		return "noteLetter"
	case GroupByNote:
		return "note"
	}
	return fmt.Sprintf("GroupBy(%d)", int(g))
}

// ParseGroupBy parses the names returned by GroupBy.String.
func ParseGroupBy(s string) (GroupBy, error) {
	switch s {
	case "channel":
		return GroupByChannel, nil
	case "noteLetter":
		return GroupByNoteLetter, nil
	case "note":
		return GroupByNote, nil
	}
	return GroupByChannel, fmt.Errorf("unknown grouping %q (expected channel, noteLetter or note)", s)
}

func (k MessageKind) String() string {
	switch k {
	case ProgramChange:
		return "program change"
	case PitchBend:
		return "pitch bend"
	case ChannelPressure:
		return "channel pressure"
	case ControlChange:
		return "control change"
	}
	return fmt.Sprintf("MessageKind(%d)", int(k))
}
