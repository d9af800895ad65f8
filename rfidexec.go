package main

import (
	"errors"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"rfidexec/gate"
	"rfidexec/session"
)

var myBuild = "dev"

func newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "rfidexec",
		Short: "Run a shell command when an RFID tag is read",
		Long: `rfidexec attaches to an RFID reader and runs a shell command every time
a tag is read. With --tag only tags starting with the given value run the
command; other tags are logged and ignored.`,
		Version:       myBuild,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts.cfgFile)
			if err != nil {
				return err
			}
			if err := opts.apply(cfg, cmd.Flags().Changed); err != nil {
				return err
			}
			return run(cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.cfgFile, "cfg", "", "Config file")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose logging")
	flags.IntVarP(&opts.serial, "serial-number", "s", 0, "Serial number of the reader to use")
	flags.StringVarP(&opts.tag, "tag", "t", "", "Only act on tags starting with this value")
	flags.StringVarP(&opts.command, "command", "c", "", "Shell command to run for each accepted tag")
	flags.StringVarP(&opts.mode, "mode", "m", "event", "Operating mode: event or poll")
	return cmd
}

func run(cfg *Config) error {
	initLogger(cfg.Verbose)

	scfg, err := cfg.sessionConfig()
	if err != nil {
		return err
	}
	if cfg.Verbose {
		log.Info().Str("build", myBuild).Msg(cfg.summary())
	}

	var stop atomic.Bool
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go stopOnSignal(sigCh, &stop, func() { signal.Stop(sigCh) })

	hw := session.Configured{Reader: cfg.Reader, Indicator: cfg.Indicator}
	s, err := session.Open(scfg, hw, &gate.Shell{})
	if err != nil {
		return err
	}
	defer s.Close()

	return s.Run(&stop)
}

// stopOnSignal raises stop on the first signal, then calls restore so a
// second signal gets the default handling and kills the process.
func stopOnSignal(sigCh <-chan os.Signal, stop *atomic.Bool, restore func()) {
	sig, ok := <-sigCh
	if !ok {
		return
	}
	log.Info().Stringer("signal", sig).Msg("Shutting down, signal again to force exit")
	stop.Store(true)
	restore()
}

func main() {
	initLogger(false)
	if err := newRootCmd().Execute(); err != nil {
		var setupErr *session.SetupError
		var cfgErr *ConfigError
		switch {
		case errors.As(err, &setupErr):
			log.Error().Err(setupErr.Err).Str("step", setupErr.Step).Msg("Setup failed")
		case errors.As(err, &cfgErr):
			log.Error().Err(err).Msg("Invalid configuration")
		default:
			log.Error().Err(err).Msg("rfidexec")
		}
		os.Exit(1)
	}
}
