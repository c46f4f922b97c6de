// Package jit assigns channels to notes on demand, as the notes are pressed.
package jit

import (
	"container/list"
	"fmt"

	"github.com/xentune/xentune"
)

type (
	// Pool maps a live stream of key presses onto a fixed set of channels. N
	// is an opaque payload stored with each assignment.
	//
	// A channel is either free or held by exactly one tracked key. Keys are
	// tracked in the order they were granted a channel; when the pool is full,
	// Stop and Ignore modes take the channel of the oldest tracked key.
	Pool[K comparable, C any, N any] struct {
		mode   PoolingMode
		free   channelQueue[C]
		tuned  *list.List // of K, oldest first
		active map[K]assignment[C, N]
	}

	// Grant is the result of a successful KeyPressed. Evicted is set only in
	// Stop mode, when the channel was taken from another key.
	Grant[K comparable, C any, N any] struct {
		Channel        C
		Evicted        bool
		EvictedKey     K
		EvictedPayload N
	}

	PoolingMode int

	assignment[C any, N any] struct {
		channel C
		payload N
		elem    *list.Element // nil once orphaned
	}

	channelQueue[C any] struct {
		buf   []C
		head  int
		count int
	}
)

const (
	// Block drops new notes while every channel is in use.
	Block PoolingMode = iota
	// Stop ends the oldest note and gives its channel to the new one.
	Stop
	// Ignore gives the oldest note's channel to the new one without ending
	// it. The old note is forgotten and left to the synth to reclaim.
	Ignore
)

// NewPool returns a pool over the given channels. The channels are handed out
// in the order given.
func NewPool[K comparable, C any, N any](mode PoolingMode, channels []C) *Pool[K, C, N] {
	p := &Pool[K, C, N]{
		mode:   mode,
		free:   channelQueue[C]{buf: make([]C, len(channels))},
		tuned:  list.New(),
		active: make(map[K]assignment[C, N], len(channels)),
	}
	for _, c := range channels {
		p.free.push(c)
	}
	return p
}

// KeyPressed grants a channel to key. It returns xentune.ErrPoolExhausted if
// no channel can be granted and xentune.ErrIllegalState if key is already
// registered.
func (p *Pool[K, C, N]) KeyPressed(key K, payload N) (Grant[K, C, N], error) {
	if _, ok := p.active[key]; ok {
		return Grant[K, C, N]{}, fmt.Errorf("key %v pressed twice: %w", key, xentune.ErrIllegalState)
	}
	if p.free.count > 0 {
		return Grant[K, C, N]{Channel: p.insert(key, payload)}, nil
	}
	if p.mode == Block || p.tuned.Len() == 0 {
		return Grant[K, C, N]{}, xentune.ErrPoolExhausted
	}
	oldest := p.tuned.Front().Value.(K)
	switch p.mode {
	case Stop:
		_, evictedPayload, _ := p.KeyReleased(oldest)
		return Grant[K, C, N]{
			Channel:        p.insert(key, payload),
			Evicted:        true,
			EvictedKey:     oldest,
			EvictedPayload: evictedPayload,
		}, nil
	default:
		a := p.active[oldest]
		p.tuned.Remove(a.elem)
		a.elem = nil
		p.active[oldest] = a
		p.free.push(a.channel)
		return Grant[K, C, N]{Channel: p.insert(key, payload)}, nil
	}
}

// KeyReleased unregisters key and frees its channel. ok is false if the key
// is unknown or was orphaned by Ignore mode; an orphaned key is forgotten
// either way.
func (p *Pool[K, C, N]) KeyReleased(key K) (channel C, payload N, ok bool) {
	a, found := p.active[key]
	if !found {
		return channel, payload, false
	}
	delete(p.active, key)
	if a.elem == nil {
		return channel, payload, false
	}
	p.tuned.Remove(a.elem)
	p.free.push(a.channel)
	return a.channel, a.payload, true
}

// FindKey returns the current assignment of a tracked key.
func (p *Pool[K, C, N]) FindKey(key K) (channel C, payload N, ok bool) {
	a, found := p.active[key]
	if !found || a.elem == nil {
		return channel, payload, false
	}
	return a.channel, a.payload, true
}

// Drain releases every tracked key, oldest first, calling yield for each, and
// forgets orphaned keys. Afterwards every channel is free. Stopping early
// leaves the remaining keys registered.
func (p *Pool[K, C, N]) Drain(yield func(K, C, N) bool) {
	for p.tuned.Len() > 0 {
		key := p.tuned.Front().Value.(K)
		c, n, _ := p.KeyReleased(key)
		if !yield(key, c, n) {
			return
		}
	}
	clear(p.active)
}

// Len returns the number of tracked keys.
func (p *Pool[K, C, N]) Len() int {
	return p.tuned.Len()
}

// Free returns the number of free channels.
func (p *Pool[K, C, N]) Free() int {
	return p.free.count
}

func (p *Pool[K, C, N]) Mode() PoolingMode {
	return p.mode
}

func (p *Pool[K, C, N]) insert(key K, payload N) C {
	channel := p.free.pop()
	p.active[key] = assignment[C, N]{
		channel: channel,
		payload: payload,
		elem:    p.tuned.PushBack(key),
	}
	return channel
}

func (q *channelQueue[C]) push(c C) {
	q.buf[(q.head+q.count)%len(q.buf)] = c
	q.count++
}

func (q *channelQueue[C]) pop() C {
	c := q.buf[q.head]
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	return c
}

func (m PoolingMode) String() string {
	switch m {
	case Block:
		return "block"
	case Stop:
		return "stop"
	case Ignore:
		return "ignore"
	}
	return fmt.Sprintf("PoolingMode(%d)", int(m))
}

// ParsePoolingMode parses the names returned by PoolingMode.String.
func ParsePoolingMode(s string) (PoolingMode, error) {
	switch s {
	case "block":
		return Block, nil
	case "stop":
		return Stop, nil
	case "ignore":
		return Ignore, nil
	}
	return Block, fmt.Errorf("unknown pooling mode %q (expected block, stop or ignore)", s)
}
