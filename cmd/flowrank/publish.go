package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"FlowRank/internal/model"
	"FlowRank/internal/probe"
	"FlowRank/internal/source"

	"github.com/spf13/cobra"
)

// recordPublisher is the part of probe.Publisher used by publish.
type recordPublisher interface {
	Publish(rec model.FlowRecord) error
	Flush() error
}

func newPublishCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "publish [input]",
		Short: "Publish the records of an input to NATS",
		Long: `The publish command reads a text or capture input and publishes every
record, in order, to the configured NATS subject. A "flowrank serve" instance
with a nats source ranks them.

Example:
  flowrank publish capture.pcap
  flowrank publish flows.txt --config configs/config.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts, args)
			if err != nil {
				return err
			}
			if cfg.Source.Type == "nats" {
				return errors.New("publish needs a text or pcap input")
			}
			src, err := source.Open(cfg)
			if err != nil {
				return err
			}
			pub, err := probe.NewPublisher(cfg.Probe)
			if err != nil {
				return err
			}
			defer pub.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			n, err := publishAll(ctx, src, pub)
			log.Printf("%d records published to '%s'.", n, cfg.Probe.Subject)
			return err
		},
	}
}

func publishAll(ctx context.Context, src model.Source, pub recordPublisher) (uint64, error) {
	var n uint64
	err := source.Each(ctx, src, func(rec model.FlowRecord) error {
		if err := pub.Publish(rec); err != nil {
			return err
		}
		n++
		if n%1000 == 0 {
			log.Printf("%d records published...", n)
		}
		return nil
	})
	if err != nil {
		return n, err
	}
	return n, pub.Flush()
}
