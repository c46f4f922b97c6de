package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xentune/xentune/config"
	"github.com/xentune/xentune/midiout"
	"github.com/xentune/xentune/tuner"
	"github.com/xentune/xentune/version"
)

func main() {
	configPath := flag.String("c", "", "Configuration file. By default, 12-EDO on all 16 channels.")
	outPath := flag.String("o", "", "Write the produced MIDI to this standard MIDI file.")
	quiet := flag.Bool("q", false, "Do not print the produced MIDI messages.")
	start := flag.String("s", "aot", "Tuning to start with: aot, jit or none.")
	initSynth := flag.Bool("i", false, "Send the messages that prepare the synth for tuning first.")
	debug := flag.Bool("d", false, "Log what the tuner does to standard error.")
	help := flag.Bool("h", false, "Show help.")
	versionFlag := flag.Bool("v", false, "Print version.")
	flag.Usage = printUsage
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.String(filepath.Base(os.Args[0])))
		os.Exit(0)
	}
	if flag.NArg() != 1 || *help {
		flag.Usage()
		os.Exit(0)
	}
	level := slog.LevelWarn
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	var printTo io.Writer = os.Stdout
	if *quiet {
		printTo = nil
	}
	if err := run(*configPath, flag.Arg(0), *outPath, *start, *initSynth, printTo, logger); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run(configPath, inputPath, outPath, start string, initSynth bool, printTo io.Writer, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	c := config.Default()
	if configPath != "" {
		var err error
		if c, err = config.Load(configPath); err != nil {
			return err
		}
	}
	var script *Script
	var err error
	switch strings.ToLower(filepath.Ext(inputPath)) {
	case ".mid", ".midi", ".smf":
		script, err = loadMIDIFile(inputPath)
	default:
		script, err = loadScript(inputPath)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", inputPath, err)
	}
	tuning, err := c.Tuning()
	if err != nil {
		return err
	}
	mode, err := c.PoolingMode()
	if err != nil {
		return err
	}
	opts, err := c.SynthOptions()
	if err != nil {
		return err
	}
	out := &sink{print: printTo}
	synth, err := midiout.New(out.send, opts)
	if err != nil {
		return err
	}
	if initSynth {
		if err := synth.Init(); err != nil {
			return err
		}
	}
	r := &router{
		tuner:   tuner.New[int](synth, mode, logger),
		tuning:  tuning,
		degrees: c.Degrees,
		sink:    out,
		logger:  logger,
	}
	if err := r.setTuning(start); err != nil {
		return err
	}
	if err := r.play(script); err != nil {
		return fmt.Errorf("%s: %w", inputPath, err)
	}
	if err := r.tuner.Reset(); err != nil {
		return err
	}
	if outPath != "" {
		return out.write(outPath, script.Ticks)
	}
	return nil
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Play a script or a MIDI file through the tuner and show the MIDI it produces.\nUsage: %s [flags] events.yml|song.mid\n", os.Args[0])
	flag.PrintDefaults()
}
