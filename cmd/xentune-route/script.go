package main

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
	"gopkg.in/yaml.v3"

	"github.com/xentune/xentune"
)

type (
	// Script is a list of events, read from YAML:
	//
	//	events:
	//	  - {on: 1, degree: 60, velocity: 100}
	//	  - {wait: 480, move: 1, degree: 61}
	//	  - {wait: 480, off: 1}
	//	  - {tuning: jit}
	Script struct {
		Ticks  uint16 `yaml:",omitempty"` // ticks per quarter note
		Events []Event
	}

	// Event is one step of a script. Exactly one of the action fields
	// (Tuning, On, Off, Move, Pressure, Program, Bend, CC, ChannelPressure,
	// Tempo) should be set.
	Event struct {
		Wait uint32 `yaml:",omitempty"` // ticks since the previous event

		Tuning string `yaml:",omitempty"` // aot, jit or none

		On       *int `yaml:",omitempty"`
		Off      *int `yaml:",omitempty"`
		Move     *int `yaml:",omitempty"`
		Pressure *int `yaml:",omitempty"`

		Program         *int    `yaml:",omitempty"`
		Bend            *int    `yaml:",omitempty"`
		CC              *int    `yaml:"cc,omitempty"`
		ChannelPressure *int    `yaml:"channelPressure,omitempty"`
		Tempo           float64 `yaml:",omitempty"` // beats per minute

		Degree   int           `yaml:",omitempty"`
		Cents    xentune.Cents `yaml:",omitempty"` // added to the degree's pitch in jit tuning
		Velocity int           `yaml:",omitempty"`
		Value    int           `yaml:",omitempty"`
	}
)

const defaultTicks = 960

func readScript(r io.Reader) (*Script, error) {
	var s Script
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding script: %w", err)
	}
	if s.Ticks == 0 {
		s.Ticks = defaultTicks
	}
	return &s, nil
}

func loadScript(path string) (*Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readScript(f)
}

// loadMIDIFile turns a standard MIDI file into a script. Tracks are merged;
// every input key is mapped to the scale degree of the same number, and keys
// on different input channels are told apart.
func loadMIDIFile(path string) (*Script, error) {
	rd, err := smf.ReadFile(path)
	if err != nil {
		return nil, err
	}
	ticks, ok := rd.TimeFormat.(smf.MetricTicks)
	if !ok {
		return nil, errors.New("only metric time is supported")
	}
	type timed struct {
		abs   uint64
		event Event
	}
	var all []timed
	for _, track := range rd.Tracks {
		var abs uint64
		for _, ev := range track {
			abs += uint64(ev.Delta)
			if e, ok := convert(ev.Message); ok {
				all = append(all, timed{abs: abs, event: e})
			}
		}
	}
	slices.SortStableFunc(all, func(a, b timed) int { return cmp.Compare(a.abs, b.abs) })
	s := &Script{Ticks: uint16(ticks), Events: make([]Event, len(all))}
	var prev uint64
	for i, t := range all {
		s.Events[i] = t.event
		s.Events[i].Wait = uint32(t.abs - prev)
		prev = t.abs
	}
	return s, nil
}

func convert(msg smf.Message) (Event, bool) {
	var ch, key, val uint8
	var rel int16
	var abs uint16
	var bpm float64
	if msg.GetMetaTempo(&bpm) {
		return Event{Tempo: bpm}, true
	}
	m := midi.Message(msg)
	switch {
	case m.GetNoteStart(&ch, &key, &val):
		return Event{On: ptr(inputKey(ch, key)), Degree: int(key), Velocity: int(val)}, true
	case m.GetNoteEnd(&ch, &key):
		return Event{Off: ptr(inputKey(ch, key))}, true
	case m.GetPolyAfterTouch(&ch, &key, &val):
		return Event{Pressure: ptr(inputKey(ch, key)), Value: int(val)}, true
	case m.GetPitchBend(&ch, &rel, &abs):
		return Event{Bend: ptr(int(rel))}, true
	case m.GetControlChange(&ch, &key, &val):
		return Event{CC: ptr(int(key)), Value: int(val)}, true
	case m.GetProgramChange(&ch, &val):
		return Event{Program: ptr(int(val))}, true
	case m.GetAfterTouch(&ch, &val):
		return Event{ChannelPressure: ptr(int(val))}, true
	}
	return Event{}, false
}

func inputKey(channel, key uint8) int {
	return int(channel)*xentune.NumNotes + int(key)
}

func ptr[T any](v T) *T {
	return &v
}
