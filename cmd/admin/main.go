package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	dataDir string
	worldID string
	baseURL string
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "admin",
		Short: "Inspect and operate a processor world",
		Long: `admin works on the files a server leaves under <data>/worlds/<world>
(snapshots, tick and audit logs, the sqlite index) and talks to a running
server's loopback admin endpoints.

Examples:
  admin worlds
  admin snapshot inspect --world CELLAR
  admin snapshot request
  admin db extractions --world CELLAR
  admin log audit --world CELLAR --action EXTRACT --limit 20
  admin catalog validate --configs ./configs
  admin cmd '{"type":"CMD","protocol_version":"1.0","id":"x","kind":"DEBUG","container":"P000001","debug":"FINISH"}'`,
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	root.PersistentFlags().StringVar(&dataDir, "data", "./data", "runtime data directory")
	root.PersistentFlags().StringVar(&worldID, "world", "CELLAR", "world id")
	root.PersistentFlags().StringVar(&baseURL, "url", "http://127.0.0.1:8080", "server base url")

	root.AddCommand(newWorldsCommand())
	root.AddCommand(newSnapshotCommand())
	root.AddCommand(newDBCommand())
	root.AddCommand(newLogCommand())
	root.AddCommand(newCatalogCommand())
	root.AddCommand(newStateCommand())
	root.AddCommand(newCmdCommand())
	return root
}

func worldDir() string { return filepath.Join(dataDir, "worlds", worldID) }

func newWorldsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "worlds",
		Short: "List worlds in the data directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := os.ReadDir(filepath.Join(dataDir, "worlds"))
			if err != nil {
				return fmt.Errorf("read worlds: %w", err)
			}
			for _, e := range entries {
				if e.IsDir() {
					fmt.Fprintln(cmd.OutOrStdout(), e.Name())
				}
			}
			return nil
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
