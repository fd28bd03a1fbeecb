package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/asnlens/asnlens/internal/codec"
	"github.com/asnlens/asnlens/internal/config"
	"github.com/asnlens/asnlens/internal/miniasn"
	"github.com/asnlens/asnlens/internal/registry"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (default: "+config.DefaultPath()+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
}

var rootCmd = &cobra.Command{
	Use:           "asnlens",
	Short:         "asnlens compiles ASN.1 schemas and inspects PER-encoded messages bit by bit",
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

// app wires configuration, logging and the protocol registry for one
// command invocation.
type app struct {
	cfg config.Config
	log zerolog.Logger
	reg *registry.Registry
}

func newApp() (*app, error) {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}

	cfg, err := config.Load(path)
	logger := newLogger(cfg.LogLevel)
	if err != nil {
		logger.Warn().Err(err).Msg("config unreadable, using defaults")
	}

	engine := miniasn.NewEngine(nil)
	reg := registry.New(engine, func() registry.Config {
		current, _ := config.Load(path)
		return toRegistryConfig(current)
	}, logger)

	for name, msg := range reg.LoadAll() {
		logger.Warn().Str("protocol", name).Str("error", msg).Msg("protocol failed to compile")
	}

	return &app{cfg: cfg, log: logger, reg: reg}, nil
}

func newLogger(level string) zerolog.Logger {
	if logLevel != "" {
		level = logLevel
	}
	parsed, err := zerolog.ParseLevel(level)
	if err != nil || parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.Kitchen,
	}
	return zerolog.New(output).Level(parsed).With().Timestamp().Logger()
}

func toRegistryConfig(cfg config.Config) registry.Config {
	return registry.Config{
		Locations:    cfg.SpecLocations,
		Extensions:   cfg.Extensions,
		Rule:         codec.EncodingRule(cfg.EncodingRule),
		PollInterval: cfg.PollInterval,
	}
}

// resolveSpec fetches a compiled protocol and verifies the type exists.
func (a *app) resolveSpec(protocol, typeName string) (codec.Specification, error) {
	spec := a.reg.GetCompiled(protocol)
	if spec == nil {
		return nil, fmt.Errorf("protocol %q not found", protocol)
	}
	if typeName != "" {
		if _, ok := spec.Types()[typeName]; !ok {
			return nil, fmt.Errorf("type %q not found in protocol %q", typeName, protocol)
		}
	}
	return spec, nil
}
