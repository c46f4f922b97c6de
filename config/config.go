// Package config reads the YAML description of a tuning setup: which channels
// to play on, how to allocate them, and the scale to play.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/xentune/xentune"
	"github.com/xentune/xentune/jit"
	"github.com/xentune/xentune/midiout"
)

type (
	Config struct {
		// Channels are the MIDI channels (0..15) to play on. Empty means all.
		Channels []uint8 `yaml:",flow,omitempty"`
		// Pooling is the just-in-time pooling mode: block, stop or ignore.
		Pooling string `yaml:",omitempty"`
		// GroupBy tells how far a detuning reaches: channel, noteLetter or
		// note.
		GroupBy string `yaml:"groupBy,omitempty"`
		// Degrees are the scale degrees to partition.
		Degrees xentune.Range `yaml:",flow"`
		Scale   Scale
		// BendRange is the pitch bend range of the receiver in semitones.
		BendRange float64 `yaml:"bendRange,omitempty"`
		DeviceID  *int    `yaml:"deviceId,omitempty"`
	}

	// Scale is either an equal division (EDO) or a list of steps in cents.
	Scale struct {
		EDO       int             `yaml:"edo,omitempty"`
		Steps     []xentune.Cents `yaml:",flow,omitempty"`
		Period    xentune.Cents   `yaml:",omitempty"`
		Reference *Reference      `yaml:",omitempty,flow"`
	}

	// Reference pins a degree of the scale to a pitch.
	Reference struct {
		Degree int
		Pitch  xentune.Pitch
	}
)

const (
	DefaultPooling   = "stop"
	DefaultGroupBy   = "note"
	DefaultBendRange = 2
	DefaultEDO       = 12
)

// Load reads a configuration file.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	c, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Read decodes a configuration, fills in defaults and validates it. Unknown
// keys are an error.
func Read(r io.Reader) (*Config, error) {
	var c Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	c.setDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Default returns the configuration of an empty file: 12-EDO over every MIDI
// note, on all 16 channels.
func Default() *Config {
	var c Config
	c.setDefaults()
	return &c
}

func (c *Config) setDefaults() {
	if c.Pooling == "" {
		c.Pooling = DefaultPooling
	}
	if c.GroupBy == "" {
		c.GroupBy = DefaultGroupBy
	}
	if c.Degrees == (xentune.Range{}) {
		c.Degrees = xentune.Range{Lo: 0, Hi: xentune.NumNotes}
	}
	if c.BendRange == 0 {
		c.BendRange = DefaultBendRange
	}
	if c.Scale.EDO == 0 && len(c.Scale.Steps) == 0 {
		c.Scale.EDO = DefaultEDO
	}
	if c.Scale.Period == 0 {
		c.Scale.Period = 1200
	}
	if c.Scale.Reference == nil {
		c.Scale.Reference = &Reference{Degree: xentune.ConcertANote, Pitch: xentune.ConcertA}
	}
}

// Validate checks every field and returns the first problem found.
func (c *Config) Validate() error {
	if _, err := c.PoolingMode(); err != nil {
		return err
	}
	if _, err := c.Grouping(); err != nil {
		return err
	}
	if c.Degrees.Len() == 0 {
		return fmt.Errorf("degree range %d..%d is empty", c.Degrees.Lo, c.Degrees.Hi)
	}
	if c.DeviceID != nil && (*c.DeviceID < 0 || *c.DeviceID > midiout.AllDevices) {
		return fmt.Errorf("device id %d is not in 0..127", *c.DeviceID)
	}
	if _, err := c.Tuning(); err != nil {
		return err
	}
	return c.synthOptions().Validate()
}

// Tuning returns the scale as a xentune.Tuning.
func (c *Config) Tuning() (xentune.Tuning, error) {
	s := c.Scale
	if s.EDO != 0 && len(s.Steps) > 0 {
		return nil, errors.New("scale has both edo and steps")
	}
	if s.Reference == nil {
		return nil, errors.New("scale has no reference")
	}
	if s.EDO != 0 {
		t := xentune.EqualTuning{Divisions: s.EDO, Period: s.Period, RefDegree: s.Reference.Degree, Reference: s.Reference.Pitch}
		if err := t.Validate(); err != nil {
			return nil, err
		}
		return t, nil
	}
	t := xentune.ScaleTuning{Steps: s.Steps, Period: s.Period, RefDegree: s.Reference.Degree, Reference: s.Reference.Pitch}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func (c *Config) PoolingMode() (jit.PoolingMode, error) {
	return jit.ParsePoolingMode(c.Pooling)
}

func (c *Config) Grouping() (xentune.GroupBy, error) {
	return xentune.ParseGroupBy(c.GroupBy)
}

// SynthOptions returns the options for a midiout.Synth.
func (c *Config) SynthOptions() (midiout.Options, error) {
	if _, err := c.Grouping(); err != nil {
		return midiout.Options{}, err
	}
	return c.synthOptions(), nil
}

func (c *Config) synthOptions() midiout.Options {
	groupBy, _ := c.Grouping()
	opts := midiout.Options{
		Channels:  c.Channels,
		GroupBy:   groupBy,
		BendRange: xentune.Cents(c.BendRange * 100),
	}
	if c.DeviceID != nil {
		id := byte(*c.DeviceID)
		opts.DeviceID = &id
	}
	return opts
}

// NumChannels returns the number of channels played on.
func (c *Config) NumChannels() int {
	if len(c.Channels) == 0 {
		return 16
	}
	return len(c.Channels)
}
