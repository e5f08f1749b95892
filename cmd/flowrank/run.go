package main

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"FlowRank/internal/engine/manager"
	"FlowRank/internal/engine/tracker"
	"FlowRank/internal/factory"
	"FlowRank/internal/report"
	"FlowRank/internal/source"

	"github.com/spf13/cobra"
)

func newRunCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run [input]",
		Short: "Rank the flows of one input and print the report",
		Long: `The run command reads every record of the input, then prints one line per
flow from the smallest to the largest:

  Flux 192.168.0.1:40000,8.8.8.8:443 / Taille : 60

A record whose sequence number does not exceed the one already stored for its
flow stops the run: both records are printed and the exit status is 1.

Example:
  flowrank run flows.txt
  flowrank run capture.pcap --keys variable
  cat flows.txt | flowrank run -`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, opts, args)
		},
	}
}

func runRun(cmd *cobra.Command, opts *options, args []string) error {
	cfg, err := loadConfig(cmd, opts, args)
	if err != nil {
		return err
	}
	src, err := source.Open(cfg)
	if err != nil {
		return err
	}

	m := manager.NewManager(cfg, src, factory.NewWriters(cfg))
	defer m.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, err = m.Run(ctx)
	var seqErr *tracker.SequenceError
	if errors.As(err, &seqErr) {
		if err := report.FormatViolation(os.Stdout, seqErr); err != nil {
			return err
		}
		return errViolation
	}
	return err
}
