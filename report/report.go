// Package report renders how a scale is partitioned onto MIDI channels, using
// text templates.
package report

import (
	"cmp"
	"embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"text/template"

	"github.com/Masterminds/sprig"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/xentune/xentune/aot"
	"github.com/xentune/xentune/config"
	"github.com/xentune/xentune/midiout"
	"github.com/xentune/xentune/tuner"
	"gitlab.com/gomidi/midi/v2"
)

type (
	Reporter struct {
		Template *template.Template
	}

	// Partition is the data the templates are executed with.
	Partition struct {
		Name       string
		State      tuner.State
		Config     *config.Config
		Result     *aot.Result // nil if the scale did not fit
		Overflow   *aot.OverflowError
		Stats      aot.Stats
		Placements []Placement
		Upload     Upload
	}

	Placement struct {
		Degree  int
		Pitch   float64 // Hz
		Channel int
		Note    byte
		Cents   float64
	}

	// Upload counts the MIDI messages that tune the synth.
	Upload struct {
		Messages int
		Bytes    int
	}
)

//go:embed templates/*
var templateFS embed.FS

// New returns a reporter using the built-in templates.
func New() (*Reporter, error) {
	tmpl, err := template.New("base").Funcs(funcMap()).ParseFS(templateFS, "templates/*.*")
	if err != nil {
		return nil, fmt.Errorf(`could not create templates: %v`, err)
	}
	return &Reporter{Template: tmpl}, nil
}

// NewFromTemplates returns a reporter using the templates found in
// templateDirectory. A template named partition.<format> renders that format.
func NewFromTemplates(templateDirectory string) (*Reporter, error) {
	globPtrn := filepath.Join(templateDirectory, "*.*")
	tmpl, err := template.New("base").Funcs(funcMap()).ParseGlob(globPtrn)
	if err != nil {
		return nil, fmt.Errorf(`could not create template based on directory "%v": %v`, templateDirectory, err)
	}
	return &Reporter{Template: tmpl}, nil
}

// Render writes p in the given format, e.g. "txt" or "csv".
func (r *Reporter) Render(w io.Writer, format string, p *Partition) error {
	name := "partition." + format
	if r.Template.Lookup(name) == nil {
		return fmt.Errorf("no template for format %q", format)
	}
	if err := r.Template.ExecuteTemplate(w, name, p); err != nil {
		return fmt.Errorf(`could not execute template "%v": %v`, name, err)
	}
	return nil
}

// Build partitions the scale of c the way a tuner driving a MIDI synth would,
// counting the messages sent to tune the synth. A scale that does not fit is
// not an error; the returned partition has Overflow set.
func Build(name string, c *config.Config, logger *slog.Logger) (*Partition, error) {
	tuning, err := c.Tuning()
	if err != nil {
		return nil, err
	}
	mode, err := c.PoolingMode()
	if err != nil {
		return nil, err
	}
	opts, err := c.SynthOptions()
	if err != nil {
		return nil, err
	}
	p := &Partition{Name: name, Config: c}
	synth, err := midiout.New(func(msg midi.Message) error {
		p.Upload.Messages++
		p.Upload.Bytes += len(msg)
		return nil
	}, opts)
	if err != nil {
		return nil, err
	}
	tn := tuner.New[int](synth, mode, logger)
	err = tn.SetTuning(tuning, c.Degrees)
	p.State = tn.State()
	if !errors.As(err, &p.Overflow) && err != nil {
		return nil, err
	}
	res, ok := tn.Partition()
	if !ok {
		return p, nil
	}
	p.Result = res
	p.Stats = res.Stats()
	for degree, pl := range res.Degrees {
		slot, _ := res.GroupBy.Slot(int(pl.Note))
		pitch, _ := res.PitchOf(degree)
		p.Placements = append(p.Placements, Placement{
			Degree:  degree,
			Pitch:   float64(pitch),
			Channel: pl.Channel,
			Note:    pl.Note,
			Cents:   float64(res.Tables[pl.Channel].Cents[slot]),
		})
	}
	slices.SortFunc(p.Placements, func(a, b Placement) int { return cmp.Compare(a.Degree, b.Degree) })
	return p, nil
}

func funcMap() template.FuncMap {
	m := sprig.TxtFuncMap()
	m["title"] = cases.Title(language.English).String
	return m
}
