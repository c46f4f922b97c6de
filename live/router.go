// Package live connects MIDI ports to a tuner running in its own goroutine.
package live

import (
	"sync/atomic"

	"gitlab.com/gomidi/midi/v2"

	"github.com/xentune/xentune"
	"github.com/xentune/xentune/tuner"
)

// Router turns incoming MIDI messages into driver messages. An incoming key
// plays the scale degree of the same number; keys on different input
// channels are different keys. Handle is safe to call from a MIDI callback
// goroutine.
type Router struct {
	broker  *tuner.Broker
	tuning  atomic.Pointer[xentune.Tuning]
	dropped atomic.Int64
}

func NewRouter(broker *tuner.Broker, tuning xentune.Tuning) *Router {
	r := &Router{broker: broker}
	r.tuning.Store(&tuning)
	return r
}

// Key identifies an incoming key.
func Key(channel, note uint8) int {
	return int(channel)*xentune.NumNotes + int(note)
}

// Handle has the signature midi.ListenTo expects. If the driver is not
// keeping up, the message is dropped.
func (r *Router) Handle(msg midi.Message, timestampms int32) {
	m, ok := r.Translate(msg)
	if !ok {
		return
	}
	if !tuner.TrySend(r.broker.ToDriver, m) {
		r.dropped.Add(1)
	}
}

// Dropped returns the number of messages dropped so far.
func (r *Router) Dropped() int64 {
	return r.dropped.Load()
}

// SetTuning changes the tuning used for the pitches of new notes and sends
// it to the driver for partitioning.
func (r *Router) SetTuning(tuning xentune.Tuning, degrees xentune.Range) bool {
	r.tuning.Store(&tuning)
	return tuner.TrySend[any](r.broker.ToDriver, tuner.SetTuningMsg{Tuning: tuning, Degrees: degrees})
}

// Translate returns the driver message for msg, if there is one.
func (r *Router) Translate(msg midi.Message) (any, bool) {
	var ch, key, val uint8
	var rel int16
	var abs uint16
	switch {
	case msg.GetNoteStart(&ch, &key, &val):
		return tuner.NoteOnMsg[int]{Key: Key(ch, key), Degree: int(key), Pitch: r.pitchOf(key), Velocity: val}, true
	case msg.GetNoteOff(&ch, &key, &val):
		return tuner.NoteOffMsg[int]{Key: Key(ch, key), Velocity: val}, true
	case msg.GetNoteEnd(&ch, &key):
		// note on with zero velocity
		return tuner.NoteOffMsg[int]{Key: Key(ch, key)}, true
	case msg.GetPolyAfterTouch(&ch, &key, &val):
		return tuner.PressureMsg[int]{Key: Key(ch, key), Pressure: val}, true
	case msg.GetPitchBend(&ch, &rel, &abs):
		return monophonic(xentune.PitchBend, 0, int(rel)), true
	case msg.GetControlChange(&ch, &key, &val):
		return monophonic(xentune.ControlChange, int(key), int(val)), true
	case msg.GetProgramChange(&ch, &val):
		return monophonic(xentune.ProgramChange, 0, int(val)), true
	case msg.GetAfterTouch(&ch, &val):
		return monophonic(xentune.ChannelPressure, 0, int(val)), true
	}
	return nil, false
}

func (r *Router) pitchOf(note uint8) xentune.Pitch {
	return (*r.tuning.Load()).PitchOf(int(note))
}

func monophonic(kind xentune.MessageKind, param, value int) tuner.MonophonicMsg {
	return tuner.MonophonicMsg{ChannelMessage: xentune.ChannelMessage{Kind: kind, Param: param, Value: value}}
}
