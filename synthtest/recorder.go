// Package synthtest provides a xentune.Synth that records every command, for
// use in tests.
package synthtest

import (
	"fmt"

	"github.com/xentune/xentune"
)

type (
	// Recorder implements xentune.Synth by appending each command to Events.
	// If Fail is set and returns an error for a command, the command is not
	// recorded and the error is returned.
	Recorder struct {
		Channels int
		Grouping xentune.GroupBy
		Events   []Event
		Fail     func(Event) error
	}

	Event struct {
		Kind    EventKind
		Channel int
		Note    byte
		Value   byte // velocity or attribute value
		Cents   xentune.Cents
		Message xentune.ChannelMessage
	}

	EventKind int
)

const (
	NoteOn EventKind = iota
	NoteOff
	NoteAttr
	Detune
	Global
)

// NewRecorder returns a recorder with the given number of channels.
func NewRecorder(channels int, groupBy xentune.GroupBy) *Recorder {
	return &Recorder{Channels: channels, Grouping: groupBy}
}

func (r *Recorder) NoteOn(channel int, note byte, velocity byte) error {
	return r.record(Event{Kind: NoteOn, Channel: channel, Note: note, Value: velocity})
}

func (r *Recorder) NoteOff(channel int, note byte, velocity byte) error {
	return r.record(Event{Kind: NoteOff, Channel: channel, Note: note, Value: velocity})
}

func (r *Recorder) NoteAttr(channel int, note byte, value byte) error {
	return r.record(Event{Kind: NoteAttr, Channel: channel, Note: note, Value: value})
}

func (r *Recorder) Detune(channel int, note byte, cents xentune.Cents) error {
	return r.record(Event{Kind: Detune, Channel: channel, Note: note, Cents: cents})
}

func (r *Recorder) Global(channel int, msg xentune.ChannelMessage) error {
	return r.record(Event{Kind: Global, Channel: channel, Message: msg})
}

func (r *Recorder) NumChannels() int { return r.Channels }

func (r *Recorder) GroupBy() xentune.GroupBy { return r.Grouping }

// Reset forgets the recorded events.
func (r *Recorder) Reset() {
	r.Events = r.Events[:0]
}

// Kinds returns the kinds of the recorded events, in order.
func (r *Recorder) Kinds() []EventKind {
	ret := make([]EventKind, len(r.Events))
	for i, e := range r.Events {
		ret[i] = e.Kind
	}
	return ret
}

// Sounding replays the recorded note-ons and note-offs and returns how many
// times each (channel, note) pair is still sounding.
func (r *Recorder) Sounding() map[[2]int]int {
	ret := make(map[[2]int]int)
	for _, e := range r.Events {
		k := [2]int{e.Channel, int(e.Note)}
		switch e.Kind {
		case NoteOn:
			ret[k]++
		case NoteOff:
			if ret[k]--; ret[k] <= 0 {
				delete(ret, k)
			}
		}
	}
	return ret
}

func (r *Recorder) record(e Event) error {
	if r.Fail != nil {
		if err := r.Fail(e); err != nil {
			return err
		}
	}
	r.Events = append(r.Events, e)
	return nil
}

func (k EventKind) String() string {
	switch k {
	case NoteOn:
		return "NoteOn"
	case NoteOff:
		return "NoteOff"
	case NoteAttr:
		return "NoteAttr"
	case Detune:
		return "Detune"
	case Global:
		return "Global"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

func (e Event) String() string {
	switch e.Kind {
	case Detune:
		return fmt.Sprintf("Detune(ch %d, note %d, %v)", e.Channel, e.Note, e.Cents)
	case Global:
		return fmt.Sprintf("Global(ch %d, %v %d)", e.Channel, e.Message.Kind, e.Message.Value)
	}
	return fmt.Sprintf("%v(ch %d, note %d, %d)", e.Kind, e.Channel, e.Note, e.Value)
}
