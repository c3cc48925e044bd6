package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Syrchalis/ProcessorFramework/internal/persistence/snapshot"
)

type snapshotSummary struct {
	Path          string         `json:"path"`
	WorldID       string         `json:"world_id"`
	Tick          uint64         `json:"tick"`
	Seed          int64          `json:"seed"`
	CatalogDigest string         `json:"catalog_digest"`
	Weather       string         `json:"weather"`
	Containers    map[string]int `json:"containers"`
	Processes     map[string]int `json:"processes"`
	Stockpile     map[string]int `json:"stockpile"`
	RebuildOrders int            `json:"rebuild_orders"`
	NextContainer uint64         `json:"next_container"`
	NextEvent     uint64         `json:"next_event"`
}

func summarize(path string, s snapshot.SnapshotV1) snapshotSummary {
	out := snapshotSummary{
		Path:          path,
		WorldID:       s.Header.WorldID,
		Tick:          s.Header.Tick,
		Seed:          s.Seed,
		CatalogDigest: s.CatalogDigest,
		Weather:       s.Weather.Kind,
		Containers:    map[string]int{},
		Processes:     map[string]int{},
		Stockpile:     map[string]int{},
		RebuildOrders: len(s.RebuildOrders),
		NextContainer: s.Counters.NextContainer,
		NextEvent:     s.Counters.NextEvent,
	}
	for _, c := range s.Containers {
		out.Containers[c.Processor]++
		for _, p := range c.Processes {
			out.Processes[p.Process]++
		}
	}
	for _, b := range s.Stockpile {
		key := b.Item
		if b.Quality != "" {
			key += "@" + b.Quality
		}
		out.Stockpile[key] += b.Count
	}
	return out
}

func newSnapshotCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Inspect snapshot files or ask the server for one",
	}

	inspect := &cobra.Command{
		Use:   "inspect [path]",
		Short: "Summarize a snapshot (default: latest of --world)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			} else {
				path = latestSnapshot(worldDir())
			}
			if path == "" {
				return fmt.Errorf("no snapshot found under %s", worldDir())
			}
			snap, err := snapshot.ReadSnapshot(path)
			if err != nil {
				return fmt.Errorf("read snapshot: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), summarize(path, snap))
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List snapshot files of --world, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, p := range snapshotFiles(worldDir()) {
				h, err := snapshot.ReadHeader(p)
				if err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t(unreadable: %v)\n", filepath.Base(p), err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\ttick=%d\tworld=%s\n", filepath.Base(p), h.Tick, h.WorldID)
			}
			return nil
		},
	}

	request := &cobra.Command{
		Use:   "request",
		Short: "Ask the running server to write a snapshot now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return postAdmin(cmd.OutOrStdout(), "/admin/v1/snapshot", nil)
		},
	}

	cmd.AddCommand(inspect, list, request)
	return cmd
}

// snapshotFiles returns <tick>.snap.zst files, highest tick first.
func snapshotFiles(worldDir string) []string {
	dir := filepath.Join(worldDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	type tf struct {
		tick uint64
		path string
	}
	var files []tf
	for _, e := range ents {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		tick, err := strconv.ParseUint(strings.TrimSuffix(name, ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		files = append(files, tf{tick, filepath.Join(dir, name)})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].tick > files[j].tick })
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.path)
	}
	return out
}

func latestSnapshot(worldDir string) string {
	if files := snapshotFiles(worldDir); len(files) > 0 {
		return files[0]
	}
	return ""
}
