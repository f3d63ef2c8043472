// Package config parses the command line options of the sub-commands.
package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/b2gm/lodmap/log"
)

// Config is the optional JSON file given with -config. Command line
// flags take precedence.
type Config struct {
	MappingFile string `json:"mapping"`
	Connection  string `json:"connection"`
	Workers     int    `json:"workers"`
	Metrics     string `json:"metrics"`
	LogLevel    string `json:"loglevel"`
	Httpprofile string `json:"httpprofile"`
}

const defaultLogLevel = string(log.LProgress)

type Base struct {
	MappingFile string
	ConfigFile  string
	Connection  string
	Quiet       bool
	LogLevel    string
	Httpprofile string
}

type RunOptions struct {
	Base
	Workers   int
	Overwrite bool
	KeepGoing bool
	Metrics   string
}

// MinLevel returns the lowest log level to print.
func (o *Base) MinLevel() log.Level {
	if o.Quiet {
		return log.LWarn
	}
	lvl, _ := log.ParseLevel(o.LogLevel)
	return lvl
}

func addBaseFlags(o *Base, flags *flag.FlagSet) {
	flags.StringVar(&o.MappingFile, "mapping", "", "mapping file (yaml or json)")
	flags.StringVar(&o.ConfigFile, "config", "", "config (json)")
	flags.StringVar(&o.Connection, "connection", "", "default connection for database outputs")
	flags.BoolVar(&o.Quiet, "quiet", false, "only log warnings and errors")
	flags.StringVar(&o.LogLevel, "loglevel", defaultLogLevel, "lowest log level (debug, progress, step, info, warn, error)")
}

func runFlags(o *RunOptions) *flag.FlagSet {
	flags := flag.NewFlagSet("run", flag.ContinueOnError)
	addBaseFlags(&o.Base, flags)
	flags.StringVar(&o.Httpprofile, "httpprofile", "", "bind address for profile server")
	flags.IntVar(&o.Workers, "workers", 0, "concurrent extrusions (default number of CPUs)")
	flags.BoolVar(&o.Overwrite, "overwrite", false, "replace artifacts of a previous run")
	flags.BoolVar(&o.KeepGoing, "keep-going", false, "continue with the next batch after errors")
	flags.StringVar(&o.Metrics, "metrics", "", "write run statistics to this prometheus textfile")
	return flags
}

func checkFlags(o *Base) *flag.FlagSet {
	flags := flag.NewFlagSet("check", flag.ContinueOnError)
	addBaseFlags(o, flags)
	return flags
}

func (o *Base) updateFromConfig(conf *Config) {
	if o.MappingFile == "" {
		o.MappingFile = conf.MappingFile
	}
	if o.Connection == "" {
		o.Connection = conf.Connection
	}
	if o.LogLevel == defaultLogLevel && conf.LogLevel != "" {
		o.LogLevel = conf.LogLevel
	}
	if o.Httpprofile == "" {
		o.Httpprofile = conf.Httpprofile
	}
}

func (o *RunOptions) updateFromConfig(conf *Config) {
	o.Base.updateFromConfig(conf)
	if o.Workers == 0 {
		o.Workers = conf.Workers
	}
	if o.Metrics == "" {
		o.Metrics = conf.Metrics
	}
}

func loadConfig(filename string) (*Config, error) {
	conf := &Config{}
	if filename == "" {
		return conf, nil
	}
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(conf); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", filename)
	}
	return conf, nil
}

func (o *Base) check() []error {
	errs := []error{}
	if o.MappingFile == "" {
		errs = append(errs, errors.New("missing mapping"))
	}
	if _, ok := log.ParseLevel(o.LogLevel); !ok {
		errs = append(errs, errors.Errorf("unknown loglevel %q", o.LogLevel))
	}
	return errs
}

func (o *RunOptions) check() []error {
	errs := o.Base.check()
	if o.Workers < 0 {
		errs = append(errs, errors.New("-workers must not be negative"))
	}
	return errs
}

// parseRun returns the options and all errors found in args.
func parseRun(args []string, output io.Writer) (*RunOptions, []error) {
	opts := &RunOptions{}
	flags := runFlags(opts)
	flags.SetOutput(output)
	if err := flags.Parse(args); err != nil {
		return nil, []error{err}
	}
	conf, err := loadConfig(opts.ConfigFile)
	if err != nil {
		return nil, []error{err}
	}
	opts.updateFromConfig(conf)
	return opts, opts.check()
}

func parseCheck(args []string, output io.Writer) (*Base, []error) {
	opts := &Base{}
	flags := checkFlags(opts)
	flags.SetOutput(output)
	if err := flags.Parse(args); err != nil {
		return nil, []error{err}
	}
	conf, err := loadConfig(opts.ConfigFile)
	if err != nil {
		return nil, []error{err}
	}
	opts.updateFromConfig(conf)
	return opts, opts.check()
}

func ParseRun(args []string) *RunOptions {
	if len(args) == 0 {
		UsageRun()
	}
	opts, errs := parseRun(args, os.Stderr)
	if len(errs) != 0 {
		reportErrors(errs)
		UsageRun()
	}
	return opts
}

func ParseCheck(args []string) *Base {
	if len(args) == 0 {
		UsageCheck()
	}
	opts, errs := parseCheck(args, os.Stderr)
	if len(errs) != 0 {
		reportErrors(errs)
		UsageCheck()
	}
	return opts
}

func UsageRun() {
	fmt.Fprintf(os.Stderr, "Usage: %s run [args]\n\n", os.Args[0])
	runFlags(&RunOptions{}).PrintDefaults()
	os.Exit(2)
}

func UsageCheck() {
	fmt.Fprintf(os.Stderr, "Usage: %s check [args]\n\n", os.Args[0])
	checkFlags(&Base{}).PrintDefaults()
	os.Exit(2)
}

func reportErrors(errs []error) {
	fmt.Fprintln(os.Stderr, "errors in config/options:")
	for _, err := range errs {
		fmt.Fprintf(os.Stderr, "\t%s\n", err)
	}
}
