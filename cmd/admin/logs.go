package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	persistlog "github.com/Syrchalis/ProcessorFramework/internal/persistence/log"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/world"
)

type logRange struct {
	since uint64
	to    uint64
	limit int
}

func (r *logRange) bind(cmd *cobra.Command) {
	cmd.Flags().Uint64Var(&r.since, "since", 0, "first tick (inclusive)")
	cmd.Flags().Uint64Var(&r.to, "to", 0, "last tick (inclusive, 0 = no bound)")
	cmd.Flags().IntVar(&r.limit, "limit", 100, "max entries (0 = no limit)")
}

// scan walks every rotated file of prefix in order and calls fn for entries
// inside the range. It stops after limit entries or past the upper bound.
func scan[T any](w io.Writer, dir, prefix string, r logRange, tickOf func(T) uint64, keep func(T) bool) (int, error) {
	files, err := persistlog.Files(dir, prefix)
	if err != nil {
		return 0, err
	}
	if len(files) == 0 {
		return 0, fmt.Errorf("no %s logs under %s", prefix, dir)
	}
	n := 0
	stop := errors.New("stop")
	for _, f := range files {
		err := persistlog.ReadJSONL(f, func(v T) error {
			tick := tickOf(v)
			if tick < r.since {
				return nil
			}
			if r.to != 0 && tick > r.to {
				return stop
			}
			if keep != nil && !keep(v) {
				return nil
			}
			if err := printLine(w, v); err != nil {
				return err
			}
			n++
			if r.limit > 0 && n >= r.limit {
				return stop
			}
			return nil
		})
		if errors.Is(err, stop) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func newLogCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Read tick and audit logs of a world",
	}

	var tr logRange
	ticks := &cobra.Command{
		Use:   "ticks",
		Short: "Print tick log entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := scan(cmd.OutOrStdout(), filepath.Join(worldDir(), "ticks"), "ticks", tr,
				func(e world.TickLogEntry) uint64 { return e.Tick }, nil)
			return err
		},
	}
	tr.bind(ticks)

	var (
		ar        logRange
		action    string
		container string
	)
	audit := &cobra.Command{
		Use:   "audit",
		Short: "Print audit entries, optionally filtered by action or container",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := scan(cmd.OutOrStdout(), filepath.Join(worldDir(), "audit"), "audit", ar,
				func(e world.AuditEntry) uint64 { return e.Tick },
				func(e world.AuditEntry) bool {
					return (action == "" || e.Action == action) && (container == "" || e.Container == container)
				})
			return err
		},
	}
	ar.bind(audit)
	audit.Flags().StringVar(&action, "action", "", "only this action (e.g. EXTRACT)")
	audit.Flags().StringVar(&container, "container", "", "only this container id")

	cmd.AddCommand(ticks, audit)
	return cmd
}
