package tuner

import (
	"time"

	"github.com/xentune/xentune"
	"github.com/xentune/xentune/aot"
)

type (
	// Broker connects the goroutine that owns a Tuner (see Driver) with the
	// rest of the program. Note events and tuning changes go in through
	// ToDriver; state changes and alerts come out through ToModel.
	//
	// CloseDriver has a capacity of 1, so an empty struct can always be sent
	// to it without blocking; if it is full, the driver is already closing.
	// FinishedDriver is closed, never sent to, when the driver has stopped all
	// notes and returned. Combine it with a timeout to avoid deadlocks:
	//    select {
	//      case <-FinishedDriver:
	//      case <-time.After(3 * time.Second):
	//    }
	Broker struct {
		ToDriver chan any
		ToModel  chan MsgToModel

		CloseDriver    chan struct{}
		FinishedDriver chan struct{}
	}

	// MsgToModel is a message sent from the driver. State is always the state
	// of the tuner after the driver handled the message that caused it. Data
	// is nil or an Alert.
	MsgToModel struct {
		State State
		Data  any
	}

	// NoteOnMsg presses Key. Degree is used by a partitioned tuning, Pitch by
	// just-in-time tuning.
	NoteOnMsg[K comparable] struct {
		Key      K
		Degree   int
		Pitch    xentune.Pitch
		Velocity byte
	}

	NoteOffMsg[K comparable] struct {
		Key      K
		Velocity byte
	}

	PitchMsg[K comparable] struct {
		Key    K
		Degree int
		Pitch  xentune.Pitch
	}

	PressureMsg[K comparable] struct {
		Key      K
		Pressure byte
	}

	MonophonicMsg struct {
		xentune.ChannelMessage
	}

	// SetTuningMsg asks the driver to partition Tuning over Degrees. The
	// partition is computed on a separate goroutine; the driver keeps playing
	// the old tuning until it is done.
	SetTuningMsg struct {
		Tuning  xentune.Tuning
		Degrees xentune.Range
	}

	// NoTuningMsg switches to just-in-time tuning.
	NoTuningMsg struct{}

	// ResetMsg stops all notes and disables tuning.
	ResetMsg struct{}

	// partitionMsg carries a finished partition back to the driver. seq
	// identifies the SetTuningMsg it answers; answers to superseded requests
	// are discarded.
	partitionMsg struct {
		seq    uint64
		result *aot.Result
		err    error
	}
)

func NewBroker() *Broker {
	return &Broker{
		ToDriver:       make(chan any, 1024),
		ToModel:        make(chan MsgToModel, 1024),
		CloseDriver:    make(chan struct{}, 1),
		FinishedDriver: make(chan struct{}),
	}
}

// TrySend is a helper function to send a value to a channel if it is not full.
// It is guaranteed to be non-blocking. Return true if the value was sent, false
// otherwise.
func TrySend[T any](c chan<- T, v T) bool {
	select {
	case c <- v:
	default:
		return false
	}
	return true
}

// TimeoutReceive is a helper function to block until a value is received from a
// channel, or timing out after t. ok will be false if the timeout occurred or
// if the channel is closed.
func TimeoutReceive[T any](c <-chan T, t time.Duration) (v T, ok bool) {
	select {
	case v, ok = <-c:
		return v, ok
	case <-time.After(t):
		return v, false
	}
}
