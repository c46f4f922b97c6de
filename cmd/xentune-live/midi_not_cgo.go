//go:build !cgo

package main

import (
	"errors"

	"gitlab.com/gomidi/midi/v2/drivers"
)

func openDriver() (drivers.Driver, error) {
	// rtmidi needs cgo
	return nil, errors.New("built without cgo, no MIDI driver available")
}
