package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"FlowRank/internal/model"
	"FlowRank/internal/source"

	"github.com/spf13/cobra"
)

func newKeysCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "keys [input]",
		Short: "Print the index key of every distinct endpoint pair",
		Long: `The keys command prints, for each distinct endpoint pair of the input, the
hexadecimal key it is indexed under. With --keys variable, different pairs can
share a key; such pairs are marked "collides with".

Example:
  flowrank keys flows.txt --keys variable`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts, args)
			if err != nil {
				return err
			}
			src, err := source.Open(cfg)
			if err != nil {
				return err
			}
			collisions, err := printKeys(cmd.Context(), os.Stdout, src, cfg.KeyEncoding())
			if collisions > 0 {
				log.Printf("Warning: %d endpoint pairs share a key with another pair.", collisions)
			}
			return err
		},
	}
}

// printKeys writes "key tuple" for each distinct tuple in input order and
// returns how many tuples collided with an earlier one.
func printKeys(ctx context.Context, w io.Writer, src model.Source, enc model.KeyEncoding) (int, error) {
	bw := bufio.NewWriter(w)
	owners := make(map[string]model.FourTuple)
	seen := make(map[model.FourTuple]struct{})
	collisions := 0

	err := source.Each(ctx, src, func(rec model.FlowRecord) error {
		ft := rec.FourTuple
		if _, ok := seen[ft]; ok {
			return nil
		}
		seen[ft] = struct{}{}

		key := ft.Key(enc)
		owner, taken := owners[key]
		if !taken {
			owners[key] = ft
			_, err := fmt.Fprintf(bw, "%s %s\n", key, ft)
			return err
		}
		collisions++
		_, err := fmt.Fprintf(bw, "%s %s collides with %s\n", key, ft, owner)
		return err
	})
	if flushErr := bw.Flush(); err == nil {
		err = flushErr
	}
	return collisions, err
}
