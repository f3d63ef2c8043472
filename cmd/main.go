// Package cmd implements the lodmap sub-commands.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/b2gm/lodmap"
	"github.com/b2gm/lodmap/config"
	"github.com/b2gm/lodmap/log"
	"github.com/b2gm/lodmap/reader"
	"github.com/b2gm/lodmap/run"
	"github.com/b2gm/lodmap/stats"
)

func PrintCmds() {
	fmt.Fprintf(os.Stderr, "Usage: %s COMMAND [args]\n\n", os.Args[0])
	fmt.Fprintln(os.Stderr, "Available commands:")
	fmt.Fprintln(os.Stderr, "\trun")
	fmt.Fprintln(os.Stderr, "\tcheck")
	fmt.Fprintln(os.Stderr, "\tversion")
}

func Main(usage func()) {
	if len(os.Args) <= 1 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "run":
		opts := config.ParseRun(os.Args[2:])
		os.Exit(runBatches(opts))
	case "check":
		opts := config.ParseCheck(os.Args[2:])
		os.Exit(check(opts))
	case "version":
		fmt.Println(lodmap.Version)
	default:
		usage()
		fmt.Fprintf(os.Stderr, "invalid command: '%s'\n", os.Args[1])
		os.Exit(2)
	}
}

func runBatches(opts *config.RunOptions) int {
	logger := log.New(os.Stderr, opts.MinLevel())
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := stats.New()
	if opts.Httpprofile != "" {
		stats.StartHttpPProf(opts.Httpprofile, s, logger)
	}

	_, err := run.Run(ctx, run.Options{
		MappingFile:      opts.MappingFile,
		Workers:          opts.Workers,
		Overwrite:        opts.Overwrite,
		KeepGoing:        opts.KeepGoing,
		Connection:       opts.Connection,
		MetricsFile:      opts.Metrics,
		Logger:           logger,
		Stats:            s,
		ProgressInterval: 5 * time.Second,
	})
	if err != nil {
		logger.Printf("[error] %v", err)
		return 1
	}
	return 0
}

// check loads the mapping and prints the batches.
func check(opts *config.Base) int {
	m, err := run.Load(run.Options{MappingFile: opts.MappingFile, Connection: opts.Connection})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	for _, b := range m.Batches {
		format := reader.Format(b.Format)
		if format == "" {
			format, _ = reader.DetectFormat(b.Input)
		}
		fmt.Printf("%s: %s (%s) -> %s (%s, storey height %s)\n",
			b.Name, b.Input, format, b.Output, b.MeshFormat, b.StoreyHeight)
	}
	return 0
}
