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
	"github.com/xentune/xentune/report"
	"github.com/xentune/xentune/version"
)

func main() {
	format := flag.String("f", "txt", "Report format: txt or csv, or the extension of any template given with -t.")
	tmplDir := flag.String("t", "", "Use the templates in this directory instead of the built-in ones. A template named partition.<format> renders that format.")
	outPath := flag.String("o", "", "Write the report to this file instead of standard output.")
	debug := flag.Bool("d", false, "Log what the tuner does to standard error.")
	help := flag.Bool("h", false, "Show help.")
	versionFlag := flag.Bool("v", false, "Print version.")
	flag.Usage = printUsage
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.String(filepath.Base(os.Args[0])))
		os.Exit(0)
	}
	if flag.NArg() == 0 || *help {
		flag.Usage()
		os.Exit(0)
	}
	level := slog.LevelWarn
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	var rep *report.Reporter
	var err error
	if *tmplDir != "" {
		rep, err = report.NewFromTemplates(*tmplDir)
	} else {
		rep, err = report.New()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error creating reporter: %v\n", err)
		os.Exit(1)
	}
	var out io.Writer = os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "could not create output file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}
	retval := 0
	for _, path := range flag.Args() {
		if err := process(rep, out, path, *format, logger); err != nil {
			fmt.Fprintf(os.Stderr, "%v: %v\n", path, err)
			retval = 1
		}
	}
	os.Exit(retval)
}

func process(rep *report.Reporter, out io.Writer, path, format string, logger *slog.Logger) error {
	c, err := config.Load(path)
	if err != nil {
		return err
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	p, err := report.Build(name, c, logger.With("config", name))
	if err != nil {
		return err
	}
	return rep.Render(out, format, p)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Partition scales onto MIDI channels and report the result.\nUsage: %s [flags] [config1.yml config2.yml ...]\n", os.Args[0])
	flag.PrintDefaults()
}
