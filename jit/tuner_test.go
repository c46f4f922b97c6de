package jit_test

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/xentune/xentune"
	"github.com/xentune/xentune/jit"
	"github.com/xentune/xentune/synthtest"
)

const centsTolerance = 1e-6

func TestTunerNoteOnOrder(t *testing.T) {
	rec := synthtest.NewRecorder(2, xentune.GroupByChannel)
	tuner := jit.NewTuner[string](rec, jit.Stop)
	pitch := xentune.NoteToPitch(60).Plus(30)
	ch, err := tuner.NoteOn("a", pitch, 100)
	if err != nil || ch != 0 {
		t.Fatalf("NoteOn: got %d, %v", ch, err)
	}
	expected := []synthtest.EventKind{synthtest.Detune, synthtest.NoteOn}
	if !reflect.DeepEqual(rec.Kinds(), expected) {
		t.Fatalf("got events %v, expected %v", rec.Events, expected)
	}
	if d := rec.Events[0]; d.Note != 60 || math.Abs(float64(d.Cents-30)) > centsTolerance {
		t.Fatalf("expected note 60 detuned by 30 cents, got %v", d)
	}
}

func TestTunerStopEviction(t *testing.T) {
	rec := synthtest.NewRecorder(2, xentune.GroupByChannel)
	tuner := jit.NewTuner[string](rec, jit.Stop)
	tuner.NoteOn("a", xentune.NoteToPitch(60), 100)
	tuner.NoteOn("b", xentune.NoteToPitch(62), 100)
	rec.Reset()
	ch, err := tuner.NoteOn("c", xentune.NoteToPitch(64).Plus(-20), 90)
	if err != nil || ch != 0 {
		t.Fatalf("NoteOn c: got %d, %v", ch, err)
	}
	expected := []synthtest.EventKind{synthtest.NoteOff, synthtest.Detune, synthtest.NoteOn}
	if !reflect.DeepEqual(rec.Kinds(), expected) {
		t.Fatalf("got events %v, expected %v", rec.Events, expected)
	}
	if off := rec.Events[0]; off.Channel != 0 || off.Note != 60 {
		t.Fatalf("expected note-off of note 60 on channel 0, got %v", off)
	}
	rec.Reset()
	if err := tuner.NoteOff("a", 0); err != nil {
		t.Fatalf("NoteOff of evicted key: %v", err)
	}
	if len(rec.Events) != 0 {
		t.Fatalf("note-off of an evicted key must be silent, got %v", rec.Events)
	}
}

func TestTunerIgnoreOrphans(t *testing.T) {
	rec := synthtest.NewRecorder(1, xentune.GroupByChannel)
	tuner := jit.NewTuner[string](rec, jit.Ignore)
	tuner.NoteOn("a", xentune.NoteToPitch(60), 100)
	rec.Reset()
	if _, err := tuner.NoteOn("b", xentune.NoteToPitch(61), 100); err != nil {
		t.Fatalf("NoteOn b: %v", err)
	}
	expected := []synthtest.EventKind{synthtest.Detune, synthtest.NoteOn}
	if !reflect.DeepEqual(rec.Kinds(), expected) {
		t.Fatalf("ignore mode must not stop the old note, got %v", rec.Events)
	}
	rec.Reset()
	tuner.UpdatePitch("a", 300)
	tuner.NoteAttr("a", 10)
	tuner.NoteOff("a", 0)
	if len(rec.Events) != 0 {
		t.Fatalf("orphaned key must be silent, got %v", rec.Events)
	}
	if _, err := tuner.NoteOn("a", xentune.NoteToPitch(60), 100); err != nil {
		t.Fatalf("re-pressing a released orphan: %v", err)
	}
}

func TestTunerBlock(t *testing.T) {
	rec := synthtest.NewRecorder(1, xentune.GroupByChannel)
	tuner := jit.NewTuner[string](rec, jit.Block)
	tuner.NoteOn("a", xentune.NoteToPitch(60), 100)
	rec.Reset()
	if _, err := tuner.NoteOn("b", xentune.NoteToPitch(61), 100); !errors.Is(err, xentune.ErrPoolExhausted) {
		t.Fatalf("expected ErrPoolExhausted, got %v", err)
	}
	if len(rec.Events) != 0 {
		t.Fatalf("blocked note must not send anything, got %v", rec.Events)
	}
}

func TestTunerUpdatePitch(t *testing.T) {
	rec := synthtest.NewRecorder(4, xentune.GroupByChannel)
	tuner := jit.NewTuner[int](rec, jit.Stop)
	tuner.NoteOn(1, xentune.NoteToPitch(69), 100)
	rec.Reset()
	if err := tuner.UpdatePitch(1, xentune.NoteToPitch(69).Plus(75)); err != nil {
		t.Fatalf("UpdatePitch: %v", err)
	}
	if len(rec.Events) != 1 || rec.Events[0].Kind != synthtest.Detune || math.Abs(float64(rec.Events[0].Cents-75)) > centsTolerance {
		t.Fatalf("expected a single 75 cent detune, got %v", rec.Events)
	}
	tuner.NoteAttr(1, 64)
	if e := rec.Events[1]; e.Kind != synthtest.NoteAttr || e.Note != 69 || e.Value != 64 {
		t.Fatalf("expected key pressure on note 69, got %v", e)
	}
	if tuner.Len() != 1 {
		t.Fatalf("pitch updates must not change pool membership, %d tracked", tuner.Len())
	}
}

func TestTunerNoteLetterGroups(t *testing.T) {
	rec := synthtest.NewRecorder(1, xentune.GroupByNoteLetter)
	tuner := jit.NewTuner[string](rec, jit.Block)
	if _, err := tuner.NoteOn("c", xentune.NoteToPitch(60), 100); err != nil {
		t.Fatal(err)
	}
	if _, err := tuner.NoteOn("d", xentune.NoteToPitch(62), 100); err != nil {
		t.Fatalf("different pitch classes must not compete: %v", err)
	}
	if _, err := tuner.NoteOn("c'", xentune.NoteToPitch(72).Plus(10), 100); !errors.Is(err, xentune.ErrPoolExhausted) {
		t.Fatalf("same pitch class on one channel must be exhausted, got %v", err)
	}
}

func TestTunerBackendFailureReleasesChannel(t *testing.T) {
	rec := synthtest.NewRecorder(1, xentune.GroupByChannel)
	failure := errors.New("port closed")
	rec.Fail = func(e synthtest.Event) error {
		if e.Kind == synthtest.NoteOn {
			return failure
		}
		return nil
	}
	tuner := jit.NewTuner[string](rec, jit.Block)
	if _, err := tuner.NoteOn("a", xentune.NoteToPitch(60), 100); !errors.Is(err, failure) {
		t.Fatalf("expected the backend error, got %v", err)
	}
	rec.Fail = nil
	if _, err := tuner.NoteOn("a", xentune.NoteToPitch(60), 100); err != nil {
		t.Fatalf("channel leaked after a failed note-on: %v", err)
	}
}

func TestTunerStop(t *testing.T) {
	rec := synthtest.NewRecorder(3, xentune.GroupByChannel)
	tuner := jit.NewTuner[string](rec, jit.Stop)
	for i, k := range []string{"a", "b", "c"} {
		tuner.NoteOn(k, xentune.NoteToPitch(60+i), 100)
	}
	if err := tuner.Stop(); err != nil {
		t.Fatal(err)
	}
	if s := rec.Sounding(); len(s) != 0 {
		t.Fatalf("notes still sounding after Stop: %v", s)
	}
	if tuner.Len() != 0 {
		t.Fatalf("%d keys tracked after Stop", tuner.Len())
	}
}

func TestTunerOutOfRange(t *testing.T) {
	rec := synthtest.NewRecorder(1, xentune.GroupByChannel)
	tuner := jit.NewTuner[string](rec, jit.Stop)
	if _, err := tuner.NoteOn("a", 1, 100); !errors.Is(err, xentune.ErrNoteRange) {
		t.Fatalf("expected ErrNoteRange for a pitch below MIDI note 0, got %v", err)
	}
	if tuner.Len() != 0 || len(rec.Events) != 0 {
		t.Fatal("out of range pitch must not allocate or send")
	}
}
