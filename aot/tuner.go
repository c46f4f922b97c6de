package aot

import (
	"fmt"

	"github.com/xentune/xentune"
)

// Tuner plays the degrees of a partitioned scale on a xentune.Synth. Every
// degree always sounds on the channel and note of its placement.
type Tuner struct {
	synth  xentune.Synth
	result *Result
}

func NewTuner(synth xentune.Synth, result *Result) *Tuner {
	return &Tuner{synth: synth, result: result}
}

// Upload sends the correction of every used slot to the synth.
func (t *Tuner) Upload() error {
	for ch := range t.result.Tables {
		table := &t.result.Tables[ch]
		for slot, used := range table.Used {
			if !used {
				continue
			}
			if err := t.synth.Detune(ch, table.Notes[slot], table.Cents[slot]); err != nil {
				return fmt.Errorf("uploading tuning of channel %d: %w", ch, err)
			}
		}
	}
	return nil
}

func (t *Tuner) NoteOn(degree int, velocity byte) error {
	p, err := t.placement(degree)
	if err != nil {
		return err
	}
	return t.synth.NoteOn(p.Channel, p.Note, velocity)
}

func (t *Tuner) NoteOff(degree int, velocity byte) error {
	p, err := t.placement(degree)
	if err != nil {
		return err
	}
	return t.synth.NoteOff(p.Channel, p.Note, velocity)
}

func (t *Tuner) NoteAttr(degree int, value byte) error {
	p, err := t.placement(degree)
	if err != nil {
		return err
	}
	return t.synth.NoteAttr(p.Channel, p.Note, value)
}

// Result returns the partition the tuner plays.
func (t *Tuner) Result() *Result {
	return t.result
}

func (t *Tuner) placement(degree int) (Placement, error) {
	p, ok := t.result.Degrees[degree]
	if !ok {
		return Placement{}, fmt.Errorf("degree %d: %w", degree, xentune.ErrUnmappedDegree)
	}
	return p, nil
}
