// Package midiout implements xentune.Synth on top of MIDI messages, for
// synthesizers that accept pitch bend or MIDI Tuning Standard messages.
package midiout

import (
	"errors"
	"fmt"
	"math"

	"github.com/xentune/xentune"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

type (
	// Synth translates allocator commands to MIDI messages and passes them to
	// a send function. How a detuning is expressed depends on the grouping:
	// GroupByChannel bends the whole channel, GroupByNoteLetter sends an MTS
	// scale/octave tuning message addressed to the channel, and GroupByNote
	// sends an MTS single note tuning change to the tuning program the
	// channel has selected (see Init).
	Synth struct {
		send      func(midi.Message) error
		channels  []uint8
		groupBy   xentune.GroupBy
		bendRange xentune.Cents
		deviceID  byte

		tuningBend []int
		userBend   []int
		letters    [][12]xentune.Cents
	}

	Options struct {
		// Channels lists the MIDI channels (0..15) played on, in allocation
		// order. Empty means all 16.
		Channels []uint8
		GroupBy  xentune.GroupBy
		// BendRange is the pitch bend range the receiving synth is set to,
		// upwards and downwards. Only used with GroupByChannel.
		BendRange xentune.Cents
		// DeviceID addresses the tuning messages. Nil means AllDevices;
		// 0 is an ordinary device id.
		DeviceID *byte
	}
)

// AllDevices is the MTS device id every receiver responds to.
const AllDevices = 0x7F

const (
	maxBend       = 8191
	minBend       = -8192
	centerTuning  = 0x2000
	maxTuningData = 0x3FFF

	sysExRealTime  = 0x7F
	subIDTuning    = 0x08
	singleNoteReal = 0x02
	scaleOctave2B  = 0x09

	rpnMSB        = 101
	rpnLSB        = 100
	dataEntryMSB  = 6
	rpnTuningProg = 3
	rpnNull       = 127
)

var errChannel = errors.New("channel out of range")

// New returns a synth that passes every message to send.
func New(send func(midi.Message) error, opts Options) (*Synth, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	channels := opts.Channels
	if len(channels) == 0 {
		channels = make([]uint8, 16)
		for i := range channels {
			channels[i] = uint8(i)
		}
	}
	deviceID := byte(AllDevices)
	if opts.DeviceID != nil {
		deviceID = *opts.DeviceID & 0x7F
	}
	return &Synth{
		send:       send,
		channels:   channels,
		groupBy:    opts.GroupBy,
		bendRange:  opts.BendRange,
		deviceID:   deviceID,
		tuningBend: make([]int, len(channels)),
		userBend:   make([]int, len(channels)),
		letters:    make([][12]xentune.Cents, len(channels)),
	}, nil
}

// Validate checks that the channels exist and are distinct, and that the bend
// range can express every correction.
func (o Options) Validate() error {
	var seen [16]bool
	for _, c := range o.Channels {
		if c > 15 {
			return fmt.Errorf("MIDI channel %d: %w", c, errChannel)
		}
		if seen[c] {
			return fmt.Errorf("MIDI channel %d listed twice", c)
		}
		seen[c] = true
	}
	if o.GroupBy == xentune.GroupByChannel && o.BendRange < 50 {
		return fmt.Errorf("pitch bend range of %v cannot reach a quarter tone", o.BendRange)
	}
	return nil
}

// Open returns a synth sending to a MIDI output port, opening it if needed.
func Open(out drivers.Out, opts Options) (*Synth, error) {
	send, err := midi.SendTo(out)
	if err != nil {
		return nil, fmt.Errorf("opening MIDI output %v: %w", out, err)
	}
	return New(send, opts)
}

// Init prepares the receiver. With GroupByNote, channel i selects tuning
// program i, so that the same note can be tuned differently on each channel.
// Every other grouping resets the tuning of all channels.
func (s *Synth) Init() error {
	for ch, c := range s.channels {
		var err error
		switch s.groupBy {
		case xentune.GroupByNote:
			err = s.sendAll(
				midi.ControlChange(c, rpnMSB, 0),
				midi.ControlChange(c, rpnLSB, rpnTuningProg),
				midi.ControlChange(c, dataEntryMSB, uint8(ch)),
				midi.ControlChange(c, rpnMSB, rpnNull),
				midi.ControlChange(c, rpnLSB, rpnNull),
			)
		case xentune.GroupByNoteLetter:
			s.letters[ch] = [12]xentune.Cents{}
			err = s.send(s.scaleOctave(ch))
		default:
			s.tuningBend[ch], s.userBend[ch] = 0, 0
			err = s.send(midi.Pitchbend(c, 0))
		}
		if err != nil {
			return fmt.Errorf("initializing channel %d: %w", c, err)
		}
	}
	return nil
}

func (s *Synth) NoteOn(channel int, note byte, velocity byte) error {
	c, err := s.channel(channel)
	if err != nil {
		return err
	}
	return s.send(midi.NoteOn(c, note, velocity))
}

func (s *Synth) NoteOff(channel int, note byte, velocity byte) error {
	c, err := s.channel(channel)
	if err != nil {
		return err
	}
	return s.send(midi.NoteOffVelocity(c, note, velocity))
}

// NoteAttr sends polyphonic key pressure.
func (s *Synth) NoteAttr(channel int, note byte, value byte) error {
	c, err := s.channel(channel)
	if err != nil {
		return err
	}
	return s.send(midi.PolyAfterTouch(c, note, value))
}

func (s *Synth) Detune(channel int, note byte, cents xentune.Cents) error {
	c, err := s.channel(channel)
	if err != nil {
		return err
	}
	switch s.groupBy {
	case xentune.GroupByNote:
		return s.send(s.singleNote(channel, note, cents))
	case xentune.GroupByNoteLetter:
		s.letters[channel][note%12] = cents
		return s.send(s.scaleOctave(channel))
	default:
		s.tuningBend[channel] = int(math.Round(float64(cents / s.bendRange * (maxBend + 1))))
		return s.send(midi.Pitchbend(c, s.bend(channel)))
	}
}

// Global forwards a channel-wide message. With GroupByChannel a pitch bend is
// added to the bend that tunes the channel.
func (s *Synth) Global(channel int, msg xentune.ChannelMessage) error {
	c, err := s.channel(channel)
	if err != nil {
		return err
	}
	switch msg.Kind {
	case xentune.ProgramChange:
		return s.send(midi.ProgramChange(c, uint8(msg.Value&0x7F)))
	case xentune.PitchBend:
		s.userBend[channel] = msg.Value
		return s.send(midi.Pitchbend(c, s.bend(channel)))
	case xentune.ChannelPressure:
		return s.send(midi.AfterTouch(c, uint8(msg.Value&0x7F)))
	case xentune.ControlChange:
		return s.send(midi.ControlChange(c, uint8(msg.Param&0x7F), uint8(msg.Value&0x7F)))
	}
	return fmt.Errorf("unsupported channel message %v", msg.Kind)
}

// AllNotesOff sends All Notes Off to every channel.
func (s *Synth) AllNotesOff() error {
	for _, c := range s.channels {
		if err := s.send(midi.ControlChange(c, midi.AllNotesOff, midi.Off)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Synth) NumChannels() int { return len(s.channels) }

func (s *Synth) GroupBy() xentune.GroupBy { return s.groupBy }

func (s *Synth) channel(channel int) (uint8, error) {
	if channel < 0 || channel >= len(s.channels) {
		return 0, fmt.Errorf("channel %d: %w", channel, errChannel)
	}
	return s.channels[channel], nil
}

func (s *Synth) sendAll(msgs ...midi.Message) error {
	for _, m := range msgs {
		if err := s.send(m); err != nil {
			return err
		}
	}
	return nil
}

func (s *Synth) bend(channel int) int16 {
	if s.groupBy != xentune.GroupByChannel {
		return int16(min(max(s.userBend[channel], minBend), maxBend))
	}
	return int16(min(max(s.tuningBend[channel]+s.userBend[channel], minBend), maxBend))
}

// scaleOctave builds an MTS scale/octave tuning message (2-byte form) holding
// the twelve pitch class corrections of channel.
func (s *Synth) scaleOctave(channel int) midi.Message {
	c := s.channels[channel]
	data := make([]byte, 0, 8+24)
	data = append(data, sysExRealTime, s.deviceID, subIDTuning, scaleOctave2B)
	var mask [3]byte // channels 14-15, 7-13, 0-6
	switch {
	case c < 7:
		mask[2] = 1 << c
	case c < 14:
		mask[1] = 1 << (c - 7)
	default:
		mask[0] = 1 << (c - 14)
	}
	data = append(data, mask[:]...)
	for _, cents := range s.letters[channel] {
		v := centerTuning + int(math.Round(float64(cents/100*centerTuning)))
		v = min(max(v, 0), maxTuningData)
		data = append(data, byte(v>>7), byte(v&0x7F))
	}
	return midi.SysEx(data)
}

// singleNote builds an MTS real-time single note tuning change, retuning note
// in the tuning program of channel.
func (s *Synth) singleNote(channel int, note byte, cents xentune.Cents) midi.Message {
	semitones := float64(note) + float64(cents)/100
	base := math.Floor(semitones)
	frac := int(math.Round((semitones - base) * 16384))
	xx := int(base)
	if frac == 16384 {
		xx, frac = xx+1, 0
	}
	switch {
	case xx < 0:
		xx, frac = 0, 0
	case xx > 127:
		xx, frac = 127, 16382
	case xx == 127 && frac == 16383:
		frac = 16382 // 7F 7F 7F means no change
	}
	return midi.SysEx([]byte{
		sysExRealTime, s.deviceID, subIDTuning, singleNoteReal,
		byte(channel & 0x7F), 1,
		note & 0x7F, byte(xx), byte(frac >> 7), byte(frac & 0x7F),
	})
}
