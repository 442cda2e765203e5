package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"nevm/vm"
)

// loadSpec pairs one input file with the load cursor it should be read
// into, as produced by walking argv by hand.
type loadSpec struct {
	file   string
	offset uint32
}

// cliOptions are the ambient flags (config file, ceiling override, trace,
// log level) layered on top of the per-file "-l offset" load surface.
type cliOptions struct {
	config   string
	ceiling  uint32
	hasCeil  bool
	trace    bool
	logLevel string
}

// parseArgs walks argv by hand, recognizing a repeatable "-l offset"/"-lN"
// flag that sets the load cursor for the files that follow, "--" to stop
// option parsing, and the ambient "--config=", "--ceiling=", "--trace",
// "--log-level=" long flags. cli.App.SkipFlagParsing is set so this is the
// only parser that ever sees argv — urfave/cli's own parser would otherwise
// reject "-l" as an unregistered short flag.
func parseArgs(args []string) ([]loadSpec, cliOptions, error) {
	opts := cliOptions{}
	var specs []loadSpec
	cursor := uint32(0)
	filesOnly := false

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !filesOnly && len(arg) > 0 && arg[0] == '-' {
			switch {
			case arg == "--":
				filesOnly = true
			case len(arg) >= 2 && arg[1] == 'l' && (len(arg) == 2 || arg[2] != '-'):
				var raw string
				if len(arg) > 2 {
					raw = arg[2:]
				} else {
					i++
					if i >= len(args) {
						return nil, opts, fmt.Errorf("-l requires an offset argument")
					}
					raw = args[i]
				}
				n, err := strconv.ParseUint(raw, 10, 32)
				if err != nil {
					return nil, opts, fmt.Errorf("invalid -l offset %q: %v", raw, err)
				}
				cursor = uint32(n)
			case strings.HasPrefix(arg, "--config="):
				opts.config = strings.TrimPrefix(arg, "--config=")
			case strings.HasPrefix(arg, "--ceiling="):
				n, err := strconv.ParseUint(strings.TrimPrefix(arg, "--ceiling="), 10, 32)
				if err != nil {
					return nil, opts, fmt.Errorf("invalid --ceiling: %v", err)
				}
				opts.ceiling, opts.hasCeil = uint32(n), true
			case arg == "--trace":
				opts.trace = true
			case strings.HasPrefix(arg, "--log-level="):
				opts.logLevel = strings.TrimPrefix(arg, "--log-level=")
			default:
				return nil, opts, fmt.Errorf("unrecognized flag %q", arg)
			}
			continue
		}

		specs = append(specs, loadSpec{file: arg, offset: cursor})
		fi, err := os.Stat(arg)
		if err == nil {
			cursor += uint32(fi.Size())
		}
	}
	return specs, opts, nil
}

func run(c *cli.Context) error {
	specs, opts, err := parseArgs(c.Args())
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	cfg, err := vm.LoadConfig(opts.config)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	log := logrus.StandardLogger()
	level := opts.logLevel
	if level == "" {
		level = cfg.LogLevel
	}
	if lvl, err := logrus.ParseLevel(level); err == nil {
		log.SetLevel(lvl)
	}

	ceiling := cfg.Ceil()
	if opts.hasCeil {
		ceiling = opts.ceiling
	}

	trace := cfg.Trace || opts.trace
	if trace && !log.IsLevelEnabled(logrus.TraceLevel) {
		log.SetLevel(logrus.TraceLevel)
	}

	if len(specs) == 0 {
		cli.ShowAppHelp(c)
		return cli.NewExitError("no input files", 1)
	}

	machine := vm.NewMachine(ceiling)
	machine.Trace = trace
	machine.Log = log

	for _, spec := range specs {
		log.WithFields(logrus.Fields{"file": spec.file, "offset": spec.offset}).Info("loading")
		if _, err := vm.LoadFile(machine.Mem, spec.offset, spec.file); err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
	}

	if err := vm.RunProgram(machine); err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	return nil
}

func main() {
	app := cli.NewApp()
	app.Name = "nevm"
	app.Usage = "byte-addressed virtual machine"
	app.UsageText = "nevm [-l offset] [--config=path] [--ceiling=n] [--trace] file [[-l offset] file] ..."
	// "-l"/"-lN" recurs between file arguments with per-file scope, which
	// urfave/cli's flag parser can't express, so flag parsing is done by
	// hand in parseArgs and cli is used purely for the command scaffold.
	app.SkipFlagParsing = true
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
