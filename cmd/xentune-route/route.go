package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/xentune/xentune"
	"github.com/xentune/xentune/aot"
	"github.com/xentune/xentune/tuner"
)

type (
	// router plays a script through a tuner.
	router struct {
		tuner   *tuner.Tuner[int]
		tuning  xentune.Tuning
		degrees xentune.Range
		sink    *sink
		logger  *slog.Logger
	}

	// sink collects the messages the synth sends into a track, timed by the
	// script, and optionally prints them.
	sink struct {
		track smf.Track
		delta uint32
		abs   uint64
		print io.Writer
	}
)

const defaultVelocity = 100

func (r *router) play(s *Script) error {
	for i, e := range s.Events {
		r.sink.wait(e.Wait)
		if err := r.apply(e); err != nil {
			return fmt.Errorf("event %d: %w", i+1, err)
		}
	}
	return nil
}

func (r *router) apply(e Event) error {
	var err error
	switch {
	case e.Tuning != "":
		err = r.setTuning(e.Tuning)
	case e.On != nil:
		velocity := e.Velocity
		if velocity == 0 {
			velocity = defaultVelocity
		}
		err = r.tuner.Start(*e.On, e.Degree, r.pitch(e), byte(velocity))
	case e.Off != nil:
		err = r.tuner.Stop(*e.Off, byte(e.Velocity))
	case e.Move != nil:
		err = r.tuner.UpdatePitch(*e.Move, e.Degree, r.pitch(e))
	case e.Pressure != nil:
		err = r.tuner.UpdatePressure(*e.Pressure, byte(e.Value))
	case e.Program != nil:
		err = r.tuner.SendMonophonic(xentune.ChannelMessage{Kind: xentune.ProgramChange, Value: *e.Program})
	case e.Bend != nil:
		err = r.tuner.SendMonophonic(xentune.ChannelMessage{Kind: xentune.PitchBend, Value: *e.Bend})
	case e.CC != nil:
		err = r.tuner.SendMonophonic(xentune.ChannelMessage{Kind: xentune.ControlChange, Param: *e.CC, Value: e.Value})
	case e.ChannelPressure != nil:
		err = r.tuner.SendMonophonic(xentune.ChannelMessage{Kind: xentune.ChannelPressure, Value: *e.ChannelPressure})
	case e.Tempo != 0:
		r.sink.add(smf.MetaTempo(e.Tempo))
	}
	if errors.Is(err, xentune.ErrPoolExhausted) {
		r.logger.Warn("note dropped, no free channel", "key", *e.On)
		return nil
	}
	return err
}

func (r *router) setTuning(name string) error {
	var err error
	switch name {
	case "aot":
		err = r.tuner.SetTuning(r.tuning, r.degrees)
	case "jit":
		err = r.tuner.SetNoTuning()
	case "none":
		err = r.tuner.Reset()
	default:
		return fmt.Errorf("unknown tuning %q (expected aot, jit or none)", name)
	}
	var overflow *aot.OverflowError
	if errors.As(err, &overflow) {
		r.logger.Warn("scale does not fit, notes are muted until the tuning changes", "err", overflow)
		return nil
	}
	return err
}

func (r *router) pitch(e Event) xentune.Pitch {
	return r.tuning.PitchOf(e.Degree).Plus(e.Cents)
}

func (s *sink) send(msg midi.Message) error {
	if s.print != nil {
		if _, err := fmt.Fprintf(s.print, "%8d %v\n", s.abs, msg); err != nil {
			return err
		}
	}
	s.add(msg)
	return nil
}

func (s *sink) add(msg []byte) {
	s.track.Add(s.delta, msg)
	s.delta = 0
}

func (s *sink) wait(ticks uint32) {
	s.delta += ticks
	s.abs += uint64(ticks)
}

// write stores the collected track as a standard MIDI file.
func (s *sink) write(path string, ticks uint16) error {
	sm := smf.New()
	sm.TimeFormat = smf.MetricTicks(ticks)
	s.track.Close(s.delta)
	if err := sm.Add(s.track); err != nil {
		return err
	}
	return sm.WriteFile(path)
}
