// Package tuner owns the allocator that currently drives a synth, and switches
// between allocators without leaving notes stuck.
package tuner

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/xentune/xentune"
	"github.com/xentune/xentune/aot"
	"github.com/xentune/xentune/jit"
	"github.com/xentune/xentune/keypress"
)

type (
	// Tuner routes note events to exactly one allocator at a time: nothing,
	// a just-in-time pool, or an ahead-of-time partition. It is not safe for
	// concurrent use; see Driver for owning it from a single goroutine.
	Tuner[K comparable] struct {
		synth  xentune.Synth
		mode   jit.PoolingMode
		logger *slog.Logger
		state  State

		jit *jit.Tuner[K]

		aot        *aot.Tuner
		keys       *keypress.Tracker[K, int]
		velocities map[K]byte
	}

	State int
)

const (
	// Destroyed is only observable while switching allocators.
	Destroyed State = iota
	// None passes nothing through; no scale is active.
	None
	// Jit assigns channels as notes are pressed.
	Jit
	// Aot plays a scale partitioned onto channels in advance.
	Aot
	// AotBroken is entered when the scale could not be partitioned. Note
	// events are dropped, channel-wide messages are still forwarded. The
	// synth is kept instead of falling back to None because some synths
	// misbehave when torn down and rebuilt.
	AotBroken
)

// New returns a tuner in the None state. mode is the pooling mode used
// whenever the tuner switches to Jit. A nil logger discards log output.
func New[K comparable](synth xentune.Synth, mode jit.PoolingMode, logger *slog.Logger) *Tuner[K] {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Tuner[K]{synth: synth, mode: mode, logger: logger, state: None}
}

func (t *Tuner[K]) State() State {
	return t.state
}

// SetTuning stops every sounding note and partitions tuning over degrees. On
// success the tuner is in the Aot state; if the scale needs more channels
// than the synth has, the tuner is in the AotBroken state and the returned
// error wraps an *aot.OverflowError telling how many channels were needed.
func (t *Tuner[K]) SetTuning(tuning xentune.Tuning, degrees xentune.Range) error {
	err := t.destroy()
	res, partitionErr := aot.Partition(tuning, degrees, t.synth.GroupBy(), t.synth.NumChannels())
	return errors.Join(err, t.build(res, partitionErr))
}

// ApplyPartition is SetTuning with a partition computed elsewhere, typically
// on a goroutine that may allocate. res and partitionErr are the results of
// aot.Partition.
func (t *Tuner[K]) ApplyPartition(res *aot.Result, partitionErr error) error {
	err := t.destroy()
	return errors.Join(err, t.build(res, partitionErr))
}

// SetNoTuning stops every sounding note and switches to a fresh just-in-time
// pool.
func (t *Tuner[K]) SetNoTuning() error {
	err := t.destroy()
	t.jit = jit.NewTuner[K](t.synth, t.mode)
	t.state = Jit
	t.logger.Debug("tuner switched", "state", t.state, "pooling", t.jit.Mode())
	return err
}

// Reset stops every sounding note and switches to None.
func (t *Tuner[K]) Reset() error {
	err := t.destroy()
	t.state = None
	return err
}

// Start presses key. Jit uses pitch, Aot uses degree. If the pool is
// exhausted, xentune.ErrPoolExhausted is returned and the note is dropped.
// Pressing a key that is already pressed is logged and ignored.
func (t *Tuner[K]) Start(key K, degree int, pitch xentune.Pitch, velocity byte) error {
	switch t.state {
	case Jit:
		_, err := t.jit.NoteOn(key, pitch, velocity)
		return t.filter(err, "start", key)
	case Aot:
		action, err := t.keys.PlaceFingerAt(key, degree)
		if err != nil {
			return t.filter(err, "start", key)
		}
		t.velocities[key] = velocity
		if action != keypress.KeyPressed {
			return nil
		}
		if err := t.aot.NoteOn(degree, velocity); err != nil {
			if !errors.Is(err, xentune.ErrUnmappedDegree) {
				t.keys.LiftFinger(key)
				delete(t.velocities, key)
			}
			return t.filter(err, "start", key)
		}
	}
	return nil
}

// Stop releases key.
func (t *Tuner[K]) Stop(key K, velocity byte) error {
	switch t.state {
	case Jit:
		return t.jit.NoteOff(key, velocity)
	case Aot:
		lift, err := t.keys.LiftFinger(key)
		if err != nil {
			return t.filter(err, "stop", key)
		}
		delete(t.velocities, key)
		if lift.Released {
			return t.filter(t.aot.NoteOff(lift.Location, velocity), "stop", key)
		}
	}
	return nil
}

// UpdatePitch moves a pressed key. Jit retunes the key's channel to pitch. Aot
// moves the key to degree; if that degree was not sounding yet it is started
// before the old one is stopped, so the two overlap for legato.
func (t *Tuner[K]) UpdatePitch(key K, degree int, pitch xentune.Pitch) error {
	switch t.state {
	case Jit:
		return t.jit.UpdatePitch(key, pitch)
	case Aot:
		from, _ := t.keys.LocationOf(key)
		lift, place, err := t.keys.MoveFingerTo(key, degree)
		if err != nil {
			return t.filter(err, "update pitch", key)
		}
		if place == keypress.KeyPressed {
			err := t.aot.NoteOn(degree, t.velocities[key])
			if err != nil && !errors.Is(err, xentune.ErrUnmappedDegree) {
				// the old degree is still sounding; leave the finger on it
				t.keys.MoveFingerTo(key, from)
				return err
			}
			t.filter(err, "update pitch", key)
		}
		if lift.Released {
			return t.filter(t.aot.NoteOff(lift.Location, 0), "update pitch", key)
		}
		return nil
	}
	return nil
}

// UpdatePressure sends polyphonic key pressure for a pressed key.
func (t *Tuner[K]) UpdatePressure(key K, pressure byte) error {
	switch t.state {
	case Jit:
		return t.jit.NoteAttr(key, pressure)
	case Aot:
		degree, ok := t.keys.LocationOf(key)
		if !ok {
			return nil
		}
		return t.filter(t.aot.NoteAttr(degree, pressure), "update pressure", key)
	}
	return nil
}

// SendMonophonic forwards a channel-wide message to every channel. It does
// nothing in the None state.
func (t *Tuner[K]) SendMonophonic(msg xentune.ChannelMessage) error {
	switch t.state {
	case Jit, Aot, AotBroken:
		for ch := 0; ch < t.synth.NumChannels(); ch++ {
			if err := t.synth.Global(ch, msg); err != nil {
				return fmt.Errorf("forwarding %v to channel %d: %w", msg.Kind, ch, err)
			}
		}
	}
	return nil
}

// Partition returns the partition played in the Aot state.
func (t *Tuner[K]) Partition() (*aot.Result, bool) {
	if t.state != Aot {
		return nil, false
	}
	return t.aot.Result(), true
}

// destroy stops every note of the current allocator and leaves the tuner
// Destroyed. The allocator is dropped even if the synth fails.
func (t *Tuner[K]) destroy() error {
	var err error
	switch t.state {
	case Jit:
		err = t.jit.Stop()
	case Aot:
		for degree := range t.keys.PressedLocations {
			if e := t.aot.NoteOff(degree, 0); e != nil && err == nil {
				err = e
			}
		}
	}
	t.jit, t.aot, t.keys, t.velocities = nil, nil, nil, nil
	t.state = Destroyed
	if err != nil {
		return fmt.Errorf("stopping notes: %w", err)
	}
	return nil
}

func (t *Tuner[K]) build(res *aot.Result, partitionErr error) error {
	if partitionErr != nil {
		t.state = AotBroken
		t.logger.Warn("tuning does not fit the synth", "err", partitionErr)
		return partitionErr
	}
	tuner := aot.NewTuner(t.synth, res)
	if err := tuner.Upload(); err != nil {
		t.state = AotBroken
		t.logger.Warn("tuning upload failed", "err", err)
		return err
	}
	t.aot = tuner
	t.keys = keypress.NewTracker[K, int]()
	t.velocities = make(map[K]byte)
	t.state = Aot
	t.logger.Debug("tuner switched", "state", t.state, "channels", res.NumChannels(), "degrees", len(res.Degrees))
	return nil
}

// filter logs and drops the errors that only mean an event was out of place.
func (t *Tuner[K]) filter(err error, op string, key K) error {
	if errors.Is(err, xentune.ErrIllegalState) || errors.Is(err, xentune.ErrUnmappedDegree) {
		t.logger.Debug("ignored event", "op", op, "key", key, "err", err)
		return nil
	}
	return err
}

func (s State) String() string {
	switch s {
	case Destroyed:
		return "destroyed"
	case None:
		return "none"
	case Jit:
		return "jit"
	case Aot:
		return "aot"
	case AotBroken:
		return "aot broken"
	}
	return fmt.Sprintf("State(%d)", int(s))
}
