package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Syrchalis/ProcessorFramework/internal/sim/catalogs"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/tuning"
)

type catalogReport struct {
	Digest     string   `json:"digest"`
	Processes  int      `json:"processes"`
	Processors int      `json:"processors"`
	Warnings   []string `json:"warnings,omitempty"`
	TuningOK   bool     `json:"tuning_ok"`
	TuningErr  string   `json:"tuning_error,omitempty"`
}

func newCatalogCommand() *cobra.Command {
	var (
		configDir string
		strict    bool
	)
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Work with processor catalogs",
	}
	validate := &cobra.Command{
		Use:   "validate",
		Short: "Load catalogs and tuning the way the server does and report problems",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cats, err := catalogs.Load(configDir)
			if err != nil {
				return fmt.Errorf("load catalogs: %w", err)
			}
			rep := catalogReport{
				Digest:     cats.Digest,
				Processes:  len(cats.Processes.Order),
				Processors: len(cats.Processors.Order),
				Warnings:   cats.Warnings,
				TuningOK:   true,
			}
			if _, err := tuning.Load(filepath.Join(configDir, "tuning.yaml")); err != nil {
				rep.TuningOK, rep.TuningErr = false, err.Error()
			}
			if err := printJSON(cmd.OutOrStdout(), rep); err != nil {
				return err
			}
			if !rep.TuningOK {
				return fmt.Errorf("tuning invalid")
			}
			if strict && len(rep.Warnings) > 0 {
				return fmt.Errorf("%d catalog warnings", len(rep.Warnings))
			}
			return nil
		},
	}
	validate.Flags().StringVar(&configDir, "configs", "./configs", "config directory")
	validate.Flags().BoolVar(&strict, "strict", false, "fail on dropped defs")
	cmd.AddCommand(validate)
	return cmd
}
