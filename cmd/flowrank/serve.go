package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"FlowRank/internal/api"
	"FlowRank/internal/engine/manager"
	"FlowRank/internal/engine/tracker"
	"FlowRank/internal/factory"
	"FlowRank/internal/model"
	"FlowRank/internal/report"
	"FlowRank/internal/source"

	"github.com/spf13/cobra"
)

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve [input]",
		Short: "Rank records continuously and serve the ranking over HTTP",
		Long: `The serve command ingests records, usually from NATS, and serves the live
ranking until it receives SIGINT or SIGTERM:

  GET /api/v1/flows?limit=N   flows from the smallest
  GET /api/v1/flows/top?limit=N  flows from the largest
  GET /api/v1/stats           counters
  GET /api/v1/radix           radix index dump
  GET /healthz                503 after a bad sequence number

The gRPC health service turns NOT_SERVING when ingestion stops on a bad
sequence number. The report is written to the configured writers on shutdown.

Example:
  flowrank serve --source nats
  flowrank serve flows.txt`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts, args)
			if err != nil {
				return err
			}
			timeout, err := cfg.ShutdownTimeout()
			if err != nil {
				return err
			}
			src, err := source.Open(cfg)
			if err != nil {
				return err
			}

			m := manager.NewManager(cfg, src, factory.NewWriters(cfg))
			defer m.Close()

			srv := api.NewServer(cfg.API, m)
			if err := srv.Start(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			type result struct {
				report *model.Report
				err    error
			}
			done := make(chan result, 1)
			go func() {
				r, err := m.Run(ctx)
				done <- result{r, err}
			}()

			<-ctx.Done()
			log.Println("Shutdown signal received, stopping...")
			res := <-done

			shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Printf("Server forced to shutdown: %v", err)
			}

			var seqErr *tracker.SequenceError
			if errors.As(res.err, &seqErr) {
				if err := report.FormatViolation(os.Stdout, seqErr); err != nil {
					return err
				}
				return errViolation
			}
			if res.err != nil {
				return res.err
			}
			log.Printf("Ranked %d records into %d flows.", res.report.Records, len(res.report.Flows))
			return nil
		},
	}
}
