package midiout_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/xentune/xentune"
	"github.com/xentune/xentune/jit"
	"github.com/xentune/xentune/midiout"
	"gitlab.com/gomidi/midi/v2"
)

type capture struct {
	msgs []midi.Message
}

func (c *capture) send(msg midi.Message) error {
	c.msgs = append(c.msgs, msg)
	return nil
}

func newSynth(t *testing.T, opts midiout.Options) (*capture, *midiout.Synth) {
	t.Helper()
	c := &capture{}
	s, err := midiout.New(c.send, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, s
}

func TestNoteMessages(t *testing.T) {
	c, s := newSynth(t, midiout.Options{Channels: []uint8{3, 5}, GroupBy: xentune.GroupByNote})
	if s.NumChannels() != 2 {
		t.Fatalf("expected 2 channels, got %d", s.NumChannels())
	}
	s.NoteOn(1, 60, 100)
	s.NoteAttr(1, 60, 30)
	s.NoteOff(1, 60, 0)
	var ch, key, vel uint8
	if !c.msgs[0].GetNoteOn(&ch, &key, &vel) || ch != 5 || key != 60 || vel != 100 {
		t.Fatalf("expected note-on on MIDI channel 5, got %v", c.msgs[0])
	}
	if !c.msgs[2].GetNoteOff(&ch, &key, &vel) || ch != 5 || key != 60 {
		t.Fatalf("expected note-off on MIDI channel 5, got %v", c.msgs[2])
	}
	if !bytes.Equal(c.msgs[1], []byte{0xA5, 60, 30}) {
		t.Fatalf("expected polyphonic pressure, got % X", []byte(c.msgs[1]))
	}
	if err := s.NoteOn(2, 60, 100); err == nil {
		t.Fatal("expected an error for a channel the synth does not have")
	}
}

func TestPitchBendTuning(t *testing.T) {
	c, s := newSynth(t, midiout.Options{GroupBy: xentune.GroupByChannel, BendRange: 200})
	if err := s.Detune(0, 60, 25); err != nil {
		t.Fatal(err)
	}
	// 25 cents of 200 is 1024 steps above the center 0x2000
	if !bytes.Equal(c.msgs[0], []byte{0xE0, 0x00, 0x48}) {
		t.Fatalf("got % X", []byte(c.msgs[0]))
	}
	s.Global(0, xentune.ChannelMessage{Kind: xentune.PitchBend, Value: 1024})
	if !bytes.Equal(c.msgs[1], []byte{0xE0, 0x00, 0x50}) {
		t.Fatalf("a player's bend should add to the tuning bend, got % X", []byte(c.msgs[1]))
	}
	s.Global(0, xentune.ChannelMessage{Kind: xentune.PitchBend, Value: 8000})
	if !bytes.Equal(c.msgs[2], []byte{0xE0, 0x7F, 0x7F}) {
		t.Fatalf("bends must be clamped, got % X", []byte(c.msgs[2]))
	}
}

func TestBendRangeTooSmall(t *testing.T) {
	if _, err := midiout.New(func(midi.Message) error { return nil }, midiout.Options{GroupBy: xentune.GroupByChannel, BendRange: 20}); err == nil {
		t.Fatal("expected an error for a bend range below a quarter tone")
	}
	if _, err := midiout.New(func(midi.Message) error { return nil }, midiout.Options{Channels: []uint8{1, 1}, GroupBy: xentune.GroupByNote}); err == nil {
		t.Fatal("expected an error for a duplicate channel")
	}
}

func TestSingleNoteTuning(t *testing.T) {
	c, s := newSynth(t, midiout.Options{GroupBy: xentune.GroupByNote})
	if err := s.Detune(2, 69, -25); err != nil {
		t.Fatal(err)
	}
	// 68 semitones plus 3/4 of a semitone: 0.75*16384 = 12288 = 0x60<<7
	expected := []byte{0xF0, 0x7F, 0x7F, 0x08, 0x02, 2, 1, 69, 68, 0x60, 0x00, 0xF7}
	if !bytes.Equal(c.msgs[0], expected) {
		t.Fatalf("got % X, expected % X", []byte(c.msgs[0]), expected)
	}
}

func TestDeviceID(t *testing.T) {
	zero := byte(0)
	c, s := newSynth(t, midiout.Options{GroupBy: xentune.GroupByNote, DeviceID: &zero})
	if err := s.Detune(0, 60, 0); err != nil {
		t.Fatal(err)
	}
	if c.msgs[0][2] != 0 {
		t.Fatalf("expected device id 0, got % X", []byte(c.msgs[0]))
	}
}

func TestScaleOctaveTuning(t *testing.T) {
	c, s := newSynth(t, midiout.Options{GroupBy: xentune.GroupByNoteLetter})
	if err := s.Detune(9, 61, 50); err != nil {
		t.Fatal(err)
	}
	msg := c.msgs[0]
	if len(msg) != 8+24+1 {
		t.Fatalf("unexpected message length %d: % X", len(msg), []byte(msg))
	}
	if !bytes.Equal(msg[:8], []byte{0xF0, 0x7F, 0x7F, 0x08, 0x09, 0x00, 1 << 2, 0x00}) {
		t.Fatalf("expected a scale/octave header addressed to channel 9, got % X", []byte(msg[:8]))
	}
	// C# is raised by 50 cents: 0x2000 + 0x1000 = 0x3000
	if msg[8+2] != 0x60 || msg[8+3] != 0x00 {
		t.Fatalf("unexpected C# data % X", []byte(msg[10:12]))
	}
	for i := 0; i < 12; i++ {
		if i != 1 && (msg[8+2*i] != 0x40 || msg[8+2*i+1] != 0x00) {
			t.Fatalf("pitch class %d should be untuned, got % X", i, []byte(msg[8+2*i:8+2*i+2]))
		}
	}
}

func TestInitSelectsTuningPrograms(t *testing.T) {
	c, s := newSynth(t, midiout.Options{Channels: []uint8{0, 1}, GroupBy: xentune.GroupByNote})
	if err := s.Init(); err != nil {
		t.Fatal(err)
	}
	if len(c.msgs) != 10 {
		t.Fatalf("expected 5 control changes per channel, got %d", len(c.msgs))
	}
	if !bytes.Equal(c.msgs[7], []byte{0xB1, 6, 1}) {
		t.Fatalf("channel 1 should select tuning program 1, got % X", []byte(c.msgs[7]))
	}
}

func TestGlobalMessages(t *testing.T) {
	c, s := newSynth(t, midiout.Options{GroupBy: xentune.GroupByNote})
	s.Global(4, xentune.ChannelMessage{Kind: xentune.ProgramChange, Value: 7})
	s.Global(4, xentune.ChannelMessage{Kind: xentune.ChannelPressure, Value: 9})
	s.Global(4, xentune.ChannelMessage{Kind: xentune.ControlChange, Param: 64, Value: 127})
	s.Global(4, xentune.ChannelMessage{Kind: xentune.PitchBend, Value: -8192})
	expected := [][]byte{{0xC4, 7}, {0xD4, 9}, {0xB4, 64, 127}, {0xE4, 0, 0}}
	for i, e := range expected {
		if !bytes.Equal(c.msgs[i], e) {
			t.Errorf("message %d: got % X, expected % X", i, []byte(c.msgs[i]), e)
		}
	}
}

func TestAllNotesOff(t *testing.T) {
	c, s := newSynth(t, midiout.Options{Channels: []uint8{3, 5}, GroupBy: xentune.GroupByNote})
	if err := s.AllNotesOff(); err != nil {
		t.Fatal(err)
	}
	if len(c.msgs) != 2 || !bytes.Equal(c.msgs[0], []byte{0xB3, 0x7B, 0}) || !bytes.Equal(c.msgs[1], []byte{0xB5, 0x7B, 0}) {
		t.Fatalf("expected all notes off on channels 3 and 5, got %v", c.msgs)
	}
}

func TestDrivesJitTuner(t *testing.T) {
	failure := errors.New("port closed")
	fail := false
	var msgs []midi.Message
	s, err := midiout.New(func(m midi.Message) error {
		if fail {
			return failure
		}
		msgs = append(msgs, m)
		return nil
	}, midiout.Options{Channels: []uint8{0}, GroupBy: xentune.GroupByChannel, BendRange: 200})
	if err != nil {
		t.Fatal(err)
	}
	tuner := jit.NewTuner[int](s, jit.Stop)
	if _, err := tuner.NoteOn(1, xentune.NoteToPitch(64).Plus(-14), 90); err != nil {
		t.Fatal(err)
	}
	var ch, key, vel uint8
	if len(msgs) != 2 || msgs[0][0] != 0xE0 || !msgs[1].GetNoteOn(&ch, &key, &vel) || key != 64 {
		t.Fatalf("expected a bend then note 64, got %v", msgs)
	}
	fail = true
	if _, err := tuner.NoteOn(2, 440, 90); !errors.Is(err, failure) {
		t.Fatalf("expected the send failure, got %v", err)
	}
}
