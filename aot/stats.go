package aot

import (
	"github.com/viterin/vek/vek32"
	"github.com/xentune/xentune"
)

type (
	// Stats summarizes how large the corrections of a partition are.
	Stats struct {
		Channels     []ChannelStats
		Degrees      int
		MeanAbsCents float32
		MaxAbsCents  float32
	}

	ChannelStats struct {
		Channel      int
		Slots        int
		MeanAbsCents float32
		MaxAbsCents  float32
	}
)

// Stats computes correction statistics per channel and over all channels.
func (r *Result) Stats() Stats {
	s := Stats{Degrees: len(r.Degrees)}
	all := make([]float32, 0, len(r.Degrees))
	buf := make([]float32, 0, xentune.NumNotes)
	for ch := range r.Tables {
		buf = buf[:0]
		for slot, used := range r.Tables[ch].Used {
			if used {
				buf = append(buf, float32(r.Tables[ch].Cents[slot]))
			}
		}
		cs := ChannelStats{Channel: ch, Slots: len(buf)}
		if len(buf) > 0 {
			vek32.Abs_Inplace(buf)
			cs.MeanAbsCents = vek32.Mean(buf)
			cs.MaxAbsCents = vek32.Max(buf)
		}
		all = append(all, buf...)
		s.Channels = append(s.Channels, cs)
	}
	if len(all) > 0 {
		s.MeanAbsCents = vek32.Mean(all)
		s.MaxAbsCents = vek32.Max(all)
	}
	return s
}
