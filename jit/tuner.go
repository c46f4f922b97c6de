package jit

import (
	"fmt"

	"github.com/xentune/xentune"
)

// Tuner plays arbitrary pitches on a xentune.Synth, granting each pressed key
// a channel from a pool and detuning that channel's nearest 12-EDO note to the
// requested pitch.
//
// The synth's GroupBy decides which keys compete for channels: with
// GroupByChannel every key needs a channel of its own, with GroupByNoteLetter
// only keys whose nearest notes share a pitch class compete, and with
// GroupByNote only keys with the same nearest note.
type Tuner[K comparable] struct {
	synth   xentune.Synth
	groupBy xentune.GroupBy
	notes   xentune.Tuning // the synth's fixed notes
	pools   []*Pool[K, int, byte]
	groups  map[K]int // key -> index into pools
}

func NewTuner[K comparable](synth xentune.Synth, mode PoolingMode) *Tuner[K] {
	channels := make([]int, synth.NumChannels())
	for i := range channels {
		channels[i] = i
	}
	groupBy := synth.GroupBy()
	_, numSlots := groupBy.Slot(0)
	pools := make([]*Pool[K, int, byte], numSlots)
	for i := range pools {
		pools[i] = NewPool[K, int, byte](mode, channels)
	}
	return &Tuner[K]{
		synth:   synth,
		groupBy: groupBy,
		notes:   xentune.EDO(12),
		pools:   pools,
		groups:  make(map[K]int),
	}
}

// NoteOn starts pitch for key and returns the channel it was granted. If the
// pool is exhausted, nothing is sent and xentune.ErrPoolExhausted is returned.
// If the synth rejects a command, the key is unregistered again before the
// error is returned.
func (t *Tuner[K]) NoteOn(key K, pitch xentune.Pitch, velocity byte) (int, error) {
	if _, ok := t.groups[key]; ok {
		return 0, fmt.Errorf("key %v pressed twice: %w", key, xentune.ErrIllegalState)
	}
	note, deviation := t.notes.FindByPitch(pitch)
	if !xentune.ValidNote(note) {
		return 0, fmt.Errorf("%v: %w", pitch, xentune.ErrNoteRange)
	}
	group, _ := t.groupBy.Slot(note)
	grant, err := t.pools[group].KeyPressed(key, byte(note))
	if err != nil {
		return 0, err
	}
	t.groups[key] = group
	if grant.Evicted {
		delete(t.groups, grant.EvictedKey)
		if err := t.synth.NoteOff(grant.Channel, grant.EvictedPayload, velocity); err != nil {
			t.unregister(key)
			return 0, fmt.Errorf("stopping evicted note: %w", err)
		}
	}
	if err := t.synth.Detune(grant.Channel, byte(note), deviation); err != nil {
		t.unregister(key)
		return 0, fmt.Errorf("detuning channel %d: %w", grant.Channel, err)
	}
	if err := t.synth.NoteOn(grant.Channel, byte(note), velocity); err != nil {
		t.unregister(key)
		return 0, fmt.Errorf("note on, channel %d: %w", grant.Channel, err)
	}
	return grant.Channel, nil
}

// UpdatePitch retunes the channel of a sounding key. Unknown or orphaned keys
// are ignored.
func (t *Tuner[K]) UpdatePitch(key K, pitch xentune.Pitch) error {
	channel, note, ok := t.find(key)
	if !ok {
		return nil
	}
	deviation := xentune.CentsBetween(pitch, t.notes.PitchOf(int(note)))
	if err := t.synth.Detune(channel, note, deviation); err != nil {
		return fmt.Errorf("detuning channel %d: %w", channel, err)
	}
	return nil
}

// NoteAttr sends a per-note attribute, e.g. key pressure, for a sounding key.
func (t *Tuner[K]) NoteAttr(key K, value byte) error {
	channel, note, ok := t.find(key)
	if !ok {
		return nil
	}
	return t.synth.NoteAttr(channel, note, value)
}

// NoteOff stops key. Unknown or orphaned keys are ignored.
func (t *Tuner[K]) NoteOff(key K, velocity byte) error {
	group, ok := t.groups[key]
	if !ok {
		return nil
	}
	delete(t.groups, key)
	channel, note, ok := t.pools[group].KeyReleased(key)
	if !ok {
		return nil
	}
	return t.synth.NoteOff(channel, note, velocity)
}

// FindKey returns the channel and note a key is sounding on.
func (t *Tuner[K]) FindKey(key K) (channel int, note byte, ok bool) {
	return t.find(key)
}

// Stop sends a note-off for every tracked key and frees all channels. Every
// key is unregistered even if the synth fails; the first error is returned.
func (t *Tuner[K]) Stop() error {
	var firstErr error
	for _, pool := range t.pools {
		pool.Drain(func(_ K, channel int, note byte) bool {
			if err := t.synth.NoteOff(channel, note, 0); err != nil && firstErr == nil {
				firstErr = err
			}
			return true
		})
	}
	clear(t.groups)
	return firstErr
}

// Mode returns the pooling mode of the tuner's pools.
func (t *Tuner[K]) Mode() PoolingMode {
	return t.pools[0].Mode()
}

// Len returns the number of tracked keys.
func (t *Tuner[K]) Len() int {
	n := 0
	for _, pool := range t.pools {
		n += pool.Len()
	}
	return n
}

func (t *Tuner[K]) find(key K) (int, byte, bool) {
	group, ok := t.groups[key]
	if !ok {
		return 0, 0, false
	}
	return t.pools[group].FindKey(key)
}

func (t *Tuner[K]) unregister(key K) {
	group := t.groups[key]
	delete(t.groups, key)
	t.pools[group].KeyReleased(key)
}
