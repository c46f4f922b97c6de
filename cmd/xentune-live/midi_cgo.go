//go:build cgo

package main

import (
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

func openDriver() (drivers.Driver, error) {
	return rtmididrv.New()
}
