package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Syrchalis/ProcessorFramework/internal/persistence/indexdb"
)

func newDBCommand() *cobra.Command {
	var dbPath string
	open := func() (*indexdb.SQLiteIndex, error) {
		path := dbPath
		if path == "" {
			path = filepath.Join(worldDir(), "index", "world.sqlite")
		}
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("index %s: %w", path, err)
		}
		return indexdb.OpenSQLite(path)
	}
	query := func(run func(ctx context.Context, idx *indexdb.SQLiteIndex) (any, error)) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			idx, err := open()
			if err != nil {
				return err
			}
			defer idx.Close()
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			v, err := run(ctx, idx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), v)
		}
	}

	cmd := &cobra.Command{
		Use:   "db",
		Short: "Query the sqlite index of a world",
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "sqlite path (default: <data>/worlds/<world>/index/world.sqlite)")

	var limit int
	snapshots := &cobra.Command{
		Use:   "snapshots",
		Short: "Indexed snapshots, newest first",
		Args:  cobra.NoArgs,
		RunE: query(func(ctx context.Context, idx *indexdb.SQLiteIndex) (any, error) {
			return idx.Snapshots(ctx, limit)
		}),
	}
	snapshots.Flags().IntVar(&limit, "limit", 20, "result limit")

	extractions := &cobra.Command{
		Use:   "extractions",
		Short: "Extracted totals by item and quality",
		Args:  cobra.NoArgs,
		RunE: query(func(ctx context.Context, idx *indexdb.SQLiteIndex) (any, error) {
			return idx.ExtractionTotals(ctx)
		}),
	}

	var from, to uint64
	signals := &cobra.Command{
		Use:   "signals",
		Short: "Signal counts by kind in a tick range",
		Args:  cobra.NoArgs,
		RunE: query(func(ctx context.Context, idx *indexdb.SQLiteIndex) (any, error) {
			return idx.SignalCounts(ctx, from, to)
		}),
	}
	signals.Flags().Uint64Var(&from, "from", 0, "first tick (inclusive)")
	signals.Flags().Uint64Var(&to, "to", 0, "last tick (inclusive, 0 = no bound)")

	var tick uint64
	digest := &cobra.Command{
		Use:   "digest",
		Short: "State digest logged for a tick",
		Args:  cobra.NoArgs,
		RunE: query(func(ctx context.Context, idx *indexdb.SQLiteIndex) (any, error) {
			d, err := idx.TickDigest(ctx, tick)
			if err != nil {
				return nil, fmt.Errorf("tick %d: %w", tick, err)
			}
			return map[string]any{"tick": tick, "digest": d}, nil
		}),
	}
	digest.Flags().Uint64Var(&tick, "tick", 0, "tick")

	cmd.AddCommand(snapshots, extractions, signals, digest)
	return cmd
}
