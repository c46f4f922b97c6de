package tuner_test

import (
	"testing"
	"time"

	"github.com/xentune/xentune"
	"github.com/xentune/xentune/jit"
	"github.com/xentune/xentune/synthtest"
	"github.com/xentune/xentune/tuner"
)

const timeout = 3 * time.Second

func TestDriverRun(t *testing.T) {
	rec := synthtest.NewRecorder(16, xentune.GroupByNote)
	broker := tuner.NewBroker()
	driver := tuner.NewDriver(tuner.New[int](rec, jit.Stop, nil), broker, nil)
	go driver.Run()

	broker.ToDriver <- tuner.SetTuningMsg{Tuning: thirdToneTuning, Degrees: thirdTones}
	msg, ok := tuner.TimeoutReceive(broker.ToModel, timeout)
	if !ok || msg.State != tuner.Aot || msg.Data != nil {
		t.Fatalf("expected state aot, got %+v", msg)
	}
	broker.ToDriver <- tuner.NoteOnMsg[int]{Key: 1, Degree: 73, Velocity: 100}
	broker.ToDriver <- tuner.MonophonicMsg{ChannelMessage: xentune.ChannelMessage{Kind: xentune.PitchBend, Value: 0}}
	tuner.TrySend(broker.CloseDriver, struct{}{})
	select {
	case <-broker.FinishedDriver:
	case <-time.After(timeout):
		t.Fatal("driver did not finish")
	}
	var noteOns, globals int
	for _, e := range rec.Events {
		switch e.Kind {
		case synthtest.NoteOn:
			noteOns++
			if e.Channel != 2 || e.Note != 70 {
				t.Fatalf("degree 73 should sound on channel 2 note 70, got %v", e)
			}
		case synthtest.Global:
			globals++
		}
	}
	if noteOns != 1 || globals != 16 {
		t.Fatalf("expected 1 note-on and 16 channel messages, got %d and %d", noteOns, globals)
	}
	if len(rec.Sounding()) != 0 {
		t.Fatalf("closing the driver must stop all notes, got %v", rec.Sounding())
	}
}

func TestDriverDiscardsSupersededPartitions(t *testing.T) {
	rec := synthtest.NewRecorder(16, xentune.GroupByNote)
	broker := tuner.NewBroker()
	tn := tuner.New[int](rec, jit.Stop, nil)
	driver := tuner.NewDriver(tn, broker, nil)
	defer driver.Close()

	broker.ToDriver <- tuner.SetTuningMsg{Tuning: xentune.EDO(12), Degrees: xentune.Range{Lo: 0, Hi: 128}}
	broker.ToDriver <- tuner.SetTuningMsg{Tuning: thirdToneTuning, Degrees: thirdTones}
	deadline := time.Now().Add(timeout)
	var msg tuner.MsgToModel
	for ok := false; !ok; {
		if time.Now().After(deadline) {
			t.Fatal("no partition was applied")
		}
		driver.ProcessMessages()
		msg, ok = tuner.TimeoutReceive(broker.ToModel, 10*time.Millisecond)
	}
	if msg.State != tuner.Aot {
		t.Fatalf("expected state aot, got %+v", msg)
	}
	res, ok := tn.Partition()
	if !ok || res.NumChannels() != 3 {
		t.Fatalf("the latest tuning should be applied, got %v", res)
	}
}

func TestDriverAlerts(t *testing.T) {
	rec := synthtest.NewRecorder(1, xentune.GroupByChannel)
	broker := tuner.NewBroker()
	driver := tuner.NewDriver(tuner.New[int](rec, jit.Block, nil), broker, nil)
	defer driver.Close()

	broker.ToDriver <- tuner.NoTuningMsg{}
	broker.ToDriver <- tuner.NoteOnMsg[int]{Key: 1, Pitch: 440, Velocity: 100}
	broker.ToDriver <- tuner.NoteOnMsg[int]{Key: 2, Pitch: 450, Velocity: 100}
	driver.ProcessMessages()
	msg := <-broker.ToModel
	if msg.State != tuner.Jit || msg.Data != nil {
		t.Fatalf("expected state jit, got %+v", msg)
	}
	msg = <-broker.ToModel
	alert, ok := msg.Data.(tuner.Alert)
	if !ok || alert.Name != "NoteDropped" || alert.Priority != tuner.Info {
		t.Fatalf("expected a NoteDropped alert, got %+v", msg)
	}
	broker.ToDriver <- tuner.NoteOnMsg[int]{Key: 3, Pitch: 1, Velocity: 100}
	driver.ProcessMessages()
	msg = <-broker.ToModel
	alert, ok = msg.Data.(tuner.Alert)
	if !ok || alert.Name != "NoteOutOfRange" || alert.Priority != tuner.Info {
		t.Fatalf("expected a NoteOutOfRange alert, got %+v", msg)
	}

	broker.ToDriver <- tuner.SetTuningMsg{Tuning: thirdToneTuning, Degrees: thirdTones}
	deadline := time.Now().Add(timeout)
	for ok = false; !ok; {
		if time.Now().After(deadline) {
			t.Fatal("no partition was applied")
		}
		driver.ProcessMessages()
		msg, ok = tuner.TimeoutReceive(broker.ToModel, 10*time.Millisecond)
	}
	alert, ok = msg.Data.(tuner.Alert)
	if msg.State != tuner.AotBroken || !ok || alert.Name != "TuningOverflow" || alert.Priority != tuner.Warning {
		t.Fatalf("expected a TuningOverflow warning in state aot broken, got %+v", msg)
	}
}
