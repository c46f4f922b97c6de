package config_test

import (
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/xentune/xentune"
	"github.com/xentune/xentune/config"
	"github.com/xentune/xentune/jit"
	"github.com/xentune/xentune/midiout"
)

func TestEmptyConfigIsDefault(t *testing.T) {
	c, err := config.Read(strings.NewReader(""))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(c, config.Default()) {
		t.Fatalf("got %+v, expected %+v", c, config.Default())
	}
	tuning, err := c.Tuning()
	if err != nil {
		t.Fatal(err)
	}
	if tuning.PitchOf(60) != xentune.EDO(12).PitchOf(60) {
		t.Fatalf("the default scale should be 12-EDO, got %v for degree 60", tuning.PitchOf(60))
	}
	if c.NumChannels() != 16 {
		t.Fatalf("expected 16 channels, got %d", c.NumChannels())
	}
}

func TestReadScaleSteps(t *testing.T) {
	const doc = `
channels: [0, 1, 2, 9]
pooling: ignore
groupBy: noteLetter
degrees: {lo: 48, hi: 72}
scale:
  steps: [203.91, 386.31, 498.04, 701.96, 884.36, 1088.27]
  reference: {degree: 60, pitch: 261.63}
deviceId: 16
`
	c, err := config.Read(strings.NewReader(doc))
	if err != nil {
		t.Fatal(err)
	}
	if mode, _ := c.PoolingMode(); mode != jit.Ignore {
		t.Errorf("expected ignore pooling, got %v", mode)
	}
	if c.Degrees != (xentune.Range{Lo: 48, Hi: 72}) {
		t.Errorf("unexpected degrees %v", c.Degrees)
	}
	tuning, err := c.Tuning()
	if err != nil {
		t.Fatal(err)
	}
	// one period of seven degrees above the reference is an octave higher
	if got := tuning.PitchOf(67); math.Abs(float64(got)-2*261.63) > 1e-9 {
		t.Errorf("degree 67 should sound at 523.26 Hz, got %v", got)
	}
	opts, err := c.SynthOptions()
	if err != nil {
		t.Fatal(err)
	}
	deviceID := byte(16)
	expected := midiout.Options{Channels: []uint8{0, 1, 2, 9}, GroupBy: xentune.GroupByNoteLetter, BendRange: 200, DeviceID: &deviceID}
	if !reflect.DeepEqual(opts, expected) {
		t.Errorf("got %+v, expected %+v", opts, expected)
	}
}

func TestReadErrors(t *testing.T) {
	docs := map[string]string{
		"unknown key":     "channel: 3",
		"pooling":         "pooling: sometimes",
		"grouping":        "groupBy: octave",
		"empty range":     "degrees: {lo: 10, hi: 10}",
		"edo and steps":   "scale: {edo: 19, steps: [100]}",
		"unsorted steps":  "scale: {steps: [300, 200]}",
		"step beyond":     "scale: {steps: [1300]}",
		"channel":         "channels: [16]",
		"duplicate":       "channels: [3, 3]",
		"small bend":      "{groupBy: channel, bendRange: 0.25}",
		"device":          "deviceId: 200",
		"negative period": "scale: {edo: 12, period: -1200}",
	}
	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			if _, err := config.Read(strings.NewReader(doc)); err == nil {
				t.Fatalf("expected %q to be rejected", doc)
			}
		})
	}
}
