package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/xentune/xentune/config"
	"github.com/xentune/xentune/live"
	"github.com/xentune/xentune/midiout"
	"github.com/xentune/xentune/tuner"
	"github.com/xentune/xentune/version"
)

func main() {
	configPath := flag.String("c", "", "Configuration file. By default, 12-EDO on all 16 channels.")
	inPrefix := flag.String("in", "", "Listen to the first MIDI input whose name starts with this. By default, the first input.")
	outPrefix := flag.String("out", "", "Play to the first MIDI output whose name starts with this. By default, the first output.")
	start := flag.String("s", "aot", "Tuning to start with: aot or jit.")
	initSynth := flag.Bool("i", false, "Send the messages that prepare the synth for tuning first.")
	list := flag.Bool("l", false, "List the MIDI ports and exit.")
	debug := flag.Bool("d", false, "Log what the tuner does to standard error.")
	help := flag.Bool("h", false, "Show help.")
	versionFlag := flag.Bool("v", false, "Print version.")
	flag.Usage = printUsage
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.String(filepath.Base(os.Args[0])))
		os.Exit(0)
	}
	if flag.NArg() != 0 || *help {
		flag.Usage()
		os.Exit(0)
	}
	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	var err error
	if *list {
		err = listPorts()
	} else {
		err = run(*configPath, *inPrefix, *outPrefix, *start, *initSynth, logger)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func listPorts() error {
	drv, err := openDriver()
	if err != nil {
		return err
	}
	defer drv.Close()
	ins, outs, err := live.Names(drv)
	if err != nil {
		return err
	}
	fmt.Println("Inputs:")
	for _, name := range ins {
		fmt.Printf("  %s\n", name)
	}
	fmt.Println("Outputs:")
	for _, name := range outs {
		fmt.Printf("  %s\n", name)
	}
	return nil
}

func run(configPath, inPrefix, outPrefix, start string, initSynth bool, logger *slog.Logger) error {
	c := config.Default()
	if configPath != "" {
		var err error
		if c, err = config.Load(configPath); err != nil {
			return err
		}
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
	if start != "aot" && start != "jit" {
		return fmt.Errorf("unknown tuning %q (expected aot or jit)", start)
	}
	drv, err := openDriver()
	if err != nil {
		return err
	}
	defer drv.Close()
	out, err := live.OpenOut(drv, outPrefix)
	if err != nil {
		return err
	}
	defer out.Close()
	synth, err := midiout.Open(out, opts)
	if err != nil {
		return err
	}
	if initSynth {
		if err := synth.Init(); err != nil {
			return err
		}
	}
	broker := tuner.NewBroker()
	driver := tuner.NewDriver(tuner.New[int](synth, mode, logger), broker, logger)
	go driver.Run()
	defer func() {
		tuner.TrySend(broker.CloseDriver, struct{}{})
		select {
		case <-broker.FinishedDriver:
			// notes orphaned in ignore mode never got a note-off
			if err := synth.AllNotesOff(); err != nil {
				logger.Error("sending all notes off", "err", err)
			}
		case <-time.After(3 * time.Second):
			logger.Error("tuner did not stop in time, notes may be left hanging")
		}
	}()
	router := live.NewRouter(broker, tuning)
	if start == "aot" {
		router.SetTuning(tuning, c.Degrees)
	} else {
		tuner.TrySend[any](broker.ToDriver, tuner.NoTuningMsg{})
	}
	stop, err := live.Listen(drv, inPrefix, router)
	if err != nil {
		return err
	}
	defer stop()
	logger.Info("routing", "out", out.String(), "groupBy", opts.GroupBy, "channels", synth.NumChannels())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	for {
		select {
		case msg := <-broker.ToModel:
			report(logger, msg)
		case <-sigs:
			if n := router.Dropped(); n > 0 {
				logger.Warn("input messages were dropped", "count", n)
			}
			return nil
		}
	}
}

func report(logger *slog.Logger, msg tuner.MsgToModel) {
	alert, ok := msg.Data.(tuner.Alert)
	if !ok {
		logger.Info("tuning changed", "state", msg.State)
		return
	}
	level := slog.LevelInfo
	switch alert.Priority {
	case tuner.Warning:
		level = slog.LevelWarn
	case tuner.Error:
		level = slog.LevelError
	}
	logger.Log(context.Background(), level, alert.Message, "alert", alert.Name, "state", msg.State)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Retune a MIDI input live, spreading its notes over the channels of a MIDI output.\nUsage: %s [flags]\n", os.Args[0])
	flag.PrintDefaults()
}
