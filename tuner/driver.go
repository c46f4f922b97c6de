package tuner

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/xentune/xentune"
	"github.com/xentune/xentune/aot"
)

// Driver owns a Tuner and applies the messages sent to it through a Broker.
// Partitioning a new tuning allocates, so it is done on a separate goroutine
// and the finished partition is applied by the driver when it arrives; until
// then the old tuning keeps playing.
type Driver[K comparable] struct {
	tuner  *Tuner[K]
	broker *Broker
	logger *slog.Logger
	seq    uint64
	closed bool
}

func NewDriver[K comparable](tuner *Tuner[K], broker *Broker, logger *slog.Logger) *Driver[K] {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Driver[K]{tuner: tuner, broker: broker, logger: logger}
}

// Run handles messages until something is sent to CloseDriver, then handles
// the messages still queued and closes the driver.
func (d *Driver[K]) Run() {
	for {
		select {
		case msg := <-d.broker.ToDriver:
			d.handle(msg)
		case <-d.broker.CloseDriver:
			d.ProcessMessages()
			d.Close()
			return
		}
	}
}

// ProcessMessages handles every message queued so far and returns without
// blocking. It is for owners that have a loop of their own, e.g. an audio
// callback; they must call Close when done.
func (d *Driver[K]) ProcessMessages() {
loop:
	for {
		select {
		case msg := <-d.broker.ToDriver:
			d.handle(msg)
		default:
			break loop
		}
	}
}

// Close stops every sounding note and closes FinishedDriver. Closing twice
// does nothing.
func (d *Driver[K]) Close() {
	if d.closed {
		return
	}
	d.closed = true
	if err := d.tuner.Reset(); err != nil {
		d.logger.Error("stopping notes on close", "err", err)
	}
	close(d.broker.FinishedDriver)
}

func (d *Driver[K]) handle(msg any) {
	switch m := msg.(type) {
	case NoteOnMsg[K]:
		err := d.tuner.Start(m.Key, m.Degree, m.Pitch, m.Velocity)
		switch {
		case errors.Is(err, xentune.ErrPoolExhausted):
			d.alert("NoteDropped", Info, fmt.Sprintf("no free channel for %v", m.Key))
			return
		case errors.Is(err, xentune.ErrNoteRange):
			d.alert("NoteOutOfRange", Info, fmt.Sprintf("%v cannot be played: %v", m.Key, err))
			return
		}
		d.check("NoteOn", err)
	case NoteOffMsg[K]:
		d.check("NoteOff", d.tuner.Stop(m.Key, m.Velocity))
	case PitchMsg[K]:
		d.check("UpdatePitch", d.tuner.UpdatePitch(m.Key, m.Degree, m.Pitch))
	case PressureMsg[K]:
		d.check("UpdatePressure", d.tuner.UpdatePressure(m.Key, m.Pressure))
	case MonophonicMsg:
		d.check("SendMonophonic", d.tuner.SendMonophonic(m.ChannelMessage))
	case SetTuningMsg:
		d.seq++
		d.partition(d.seq, m)
	case partitionMsg:
		if m.seq != d.seq {
			d.logger.Debug("discarding superseded partition", "seq", m.seq)
			return
		}
		err := d.tuner.ApplyPartition(m.result, m.err)
		var overflow *aot.OverflowError
		switch {
		case errors.As(err, &overflow):
			d.alert("TuningOverflow", Warning, overflow.Error())
		case err != nil:
			d.alert("TuningFailed", Error, err.Error())
		default:
			d.sendState(nil)
		}
	case NoTuningMsg:
		d.seq++
		d.check("SetNoTuning", d.tuner.SetNoTuning())
		d.sendState(nil)
	case ResetMsg:
		d.seq++
		d.check("Reset", d.tuner.Reset())
		d.sendState(nil)
	default:
		// ignore unknown messages
	}
}

func (d *Driver[K]) partition(seq uint64, m SetTuningMsg) {
	groupBy, channels := d.tuner.synth.GroupBy(), d.tuner.synth.NumChannels()
	go func() {
		res, err := aot.Partition(m.Tuning, m.Degrees, groupBy, channels)
		select {
		case d.broker.ToDriver <- partitionMsg{seq: seq, result: res, err: err}:
		case <-d.broker.FinishedDriver:
		}
	}()
}

func (d *Driver[K]) check(op string, err error) {
	if err != nil {
		d.alert("SynthFailed", Error, fmt.Sprintf("%s: %s", op, err.Error()))
	}
}

func (d *Driver[K]) alert(name string, priority AlertPriority, message string) {
	d.sendState(Alert{Name: name, Priority: priority, Message: message})
}

func (d *Driver[K]) sendState(data any) {
	if !TrySend(d.broker.ToModel, MsgToModel{State: d.tuner.State(), Data: data}) {
		d.logger.Debug("model is not keeping up, dropped message", "data", data)
	}
}
