package main

import (
	"github.com/TFMV/recon/version"
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "recon",
		Short: "recon reconciles two tabular datasets",
		Long: `recon compares a source and a target dataset keyed by primary key columns.
It reports matched, mismatched, missing and extra records, judges the result
against configurable thresholds, and writes JSON, HTML, Excel and CSV reports.

Sources: csv, excel, parquet, arrow, postgres, mysql, sqlserver, oracle, adbc.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version of recon",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(version.Get().String())
		},
	})
	rootCmd.AddCommand(newCompareCommand())
	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newInspectCommand())

	return rootCmd
}
