// Package keypress turns press, move and release events from several
// independent fingers into key-down and key-up transitions of the locations
// they hold.
package keypress

import (
	"fmt"

	"github.com/xentune/xentune"
)

type (
	// Tracker counts how many fingers hold each location. A finger holds at
	// most one location at a time.
	Tracker[F, L comparable] struct {
		fingers   map[F]L
		locations map[L]int
	}

	PlaceAction int

	// LiftAction tells whether lifting a finger released its location.
	// Location is only meaningful when Released is true.
	LiftAction[L comparable] struct {
		Released bool
		Location L
	}
)

const (
	// KeyPressed means the location went from no fingers to one.
	KeyPressed PlaceAction = iota
	// KeyAlreadyPressed means another finger already held the location.
	KeyAlreadyPressed
)

func NewTracker[F, L comparable]() *Tracker[F, L] {
	return &Tracker[F, L]{
		fingers:   make(map[F]L),
		locations: make(map[L]int),
	}
}

// KeyReleased returns the action of a location going from one finger to none.
func KeyReleased[L comparable](location L) LiftAction[L] {
	return LiftAction[L]{Released: true, Location: location}
}

// KeyRemainsPressed returns the action of a lift that leaves the location
// held by other fingers.
func KeyRemainsPressed[L comparable]() LiftAction[L] {
	return LiftAction[L]{}
}

// PlaceFingerAt registers finger at location. It fails with
// xentune.ErrIllegalState if the finger is already registered.
func (t *Tracker[F, L]) PlaceFingerAt(finger F, location L) (PlaceAction, error) {
	if _, ok := t.fingers[finger]; ok {
		return KeyAlreadyPressed, fmt.Errorf("finger %v placed twice: %w", finger, xentune.ErrIllegalState)
	}
	t.fingers[finger] = location
	return t.press(location), nil
}

// MoveFingerTo moves a registered finger. Moving to the location it already
// holds changes nothing and reports (KeyRemainsPressed, KeyAlreadyPressed).
func (t *Tracker[F, L]) MoveFingerTo(finger F, location L) (LiftAction[L], PlaceAction, error) {
	old, ok := t.fingers[finger]
	if !ok {
		return KeyRemainsPressed[L](), KeyAlreadyPressed, fmt.Errorf("moved unknown finger %v: %w", finger, xentune.ErrIllegalState)
	}
	if old == location {
		return KeyRemainsPressed[L](), KeyAlreadyPressed, nil
	}
	lift := t.release(old)
	t.fingers[finger] = location
	return lift, t.press(location), nil
}

// LiftFinger unregisters finger.
func (t *Tracker[F, L]) LiftFinger(finger F) (LiftAction[L], error) {
	location, ok := t.fingers[finger]
	if !ok {
		return KeyRemainsPressed[L](), fmt.Errorf("lifted unknown finger %v: %w", finger, xentune.ErrIllegalState)
	}
	delete(t.fingers, finger)
	return t.release(location), nil
}

// LocationOf returns the location held by finger.
func (t *Tracker[F, L]) LocationOf(finger F) (L, bool) {
	l, ok := t.fingers[finger]
	return l, ok
}

// PressedLocations iterates over every location held by at least one finger.
// The order is unspecified.
func (t *Tracker[F, L]) PressedLocations(yield func(L) bool) {
	for l := range t.locations {
		if !yield(l) {
			return
		}
	}
}

// Len returns the number of registered fingers.
func (t *Tracker[F, L]) Len() int {
	return len(t.fingers)
}

func (t *Tracker[F, L]) press(location L) PlaceAction {
	t.locations[location]++
	if t.locations[location] == 1 {
		return KeyPressed
	}
	return KeyAlreadyPressed
}

func (t *Tracker[F, L]) release(location L) LiftAction[L] {
	t.locations[location]--
	if t.locations[location] > 0 {
		return KeyRemainsPressed[L]()
	}
	delete(t.locations, location)
	return KeyReleased(location)
}

func (a PlaceAction) String() string {
	if a == KeyPressed {
		return "KeyPressed"
	}
	return "KeyAlreadyPressed"
}

func (a LiftAction[L]) String() string {
	if a.Released {
		return fmt.Sprintf("KeyReleased(%v)", a.Location)
	}
	return "KeyRemainsPressed"
}
