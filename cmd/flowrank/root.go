package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"FlowRank/internal/config"

	"github.com/spf13/cobra"
)

const defaultConfigPath = "configs/config.yaml"

// errViolation ends the process with status 1 once the violation has been printed.
var errViolation = errors.New("bad sequence number")

// options holds the flags shared by every command.
type options struct {
	configPath string
	quiet      bool
	sourceType string
	keys       string
	dumpRadix  bool
	include    []string
	exclude    []string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "flowrank",
		Short: "Rank TCP flows by the span of their sequence numbers",
		Long: `flowrank groups flow records by their endpoint pair, keeps every flow's
first and highest sequence marker, and prints the flows ordered by size.

Records come from text lines "a.b.c.d:port,e.f.g.h:port,seq", from pcap or
pcapng captures, or from a NATS subject fed by "flowrank publish".`,
		Version:       "0.1.0",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.quiet {
				log.SetOutput(io.Discard)
			}
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", defaultConfigPath, "Path to the YAML configuration")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "Suppress log output")
	flags.StringVarP(&opts.sourceType, "source", "s", "", "Record source: text, pcap or nats (default from config, or from the input file extension)")
	flags.StringVarP(&opts.keys, "keys", "k", "", "Key encoding: fixed or variable (default from config)")
	flags.BoolVar(&opts.dumpRadix, "dump-radix", false, "Print the radix index to stderr at the end of a run")
	flags.StringSliceVar(&opts.include, "include", nil, "Keep only records with an endpoint in these CIDR prefixes")
	flags.StringSliceVar(&opts.exclude, "exclude", nil, "Drop records with an endpoint in these CIDR prefixes")

	cmd.AddCommand(newRunCmd(opts), newPublishCmd(opts), newServeCmd(opts), newKeysCmd(opts), newGenerateCmd())
	return cmd
}

func execute() {
	err := newRootCmd().Execute()
	if errors.Is(err, errViolation) {
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration and applies the command line overrides.
// The default config file may be absent; an explicit one may not.
func loadConfig(cmd *cobra.Command, opts *options, args []string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if cmd.Flags().Changed("config") {
		cfg, err = config.LoadConfig(opts.configPath)
	} else {
		cfg, err = config.LoadOrDefault(opts.configPath)
	}
	if err != nil {
		return nil, err
	}

	if len(args) > 0 {
		cfg.Source.Path = args[0]
		if opts.sourceType == "" {
			cfg.Source.Type = sourceTypeFor(args[0])
		}
	}
	if opts.sourceType != "" {
		cfg.Source.Type = opts.sourceType
	}
	if opts.keys != "" {
		cfg.Tracker.KeyEncoding = opts.keys
	}
	if opts.dumpRadix {
		cfg.Tracker.DumpRadix = true
	}
	cfg.Source.Filter.Include = append(cfg.Source.Filter.Include, opts.include...)
	cfg.Source.Filter.Exclude = append(cfg.Source.Filter.Exclude, opts.exclude...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func sourceTypeFor(path string) string {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".pcap") || strings.HasSuffix(lower, ".pcapng") || strings.HasSuffix(lower, ".cap") {
		return "pcap"
	}
	return "text"
}
