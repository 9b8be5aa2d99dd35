package main

import (
	"context"
	"strings"

	"github.com/TFMV/recon/pkg/core"
	"github.com/TFMV/recon/pkg/readers"
	"github.com/spf13/cobra"
)

// InspectOptions represents the options for the inspect command.
type InspectOptions struct {
	Type      string
	Sheet     string
	Delimiter string
	Rows      int
}

func newInspectCommand() *cobra.Command {
	options := &InspectOptions{Rows: 5}

	cmd := &cobra.Command{
		Use:   "inspect FILE",
		Short: "Print the schema and first rows of a file source",
		Long: `The inspect command loads a CSV, Excel, Parquet or Arrow file the same way
compare does and prints the inferred schema, the record count and a sample of rows.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readers.Open(core.SourceConfig{
				Type:      options.Type,
				Path:      args[0],
				SheetName: options.Sheet,
				Delimiter: options.Delimiter,
			})
			if err != nil {
				return err
			}
			defer src.Close()

			ds, err := src.Load(context.Background())
			if err != nil {
				return err
			}
			printDataset(cmd, ds, options.Rows)
			return nil
		},
	}

	cmd.Flags().StringVarP(&options.Type, "type", "t", readers.TypeAuto, "Source type (auto detects from the extension)")
	cmd.Flags().StringVar(&options.Sheet, "sheet", "", "Excel sheet name")
	cmd.Flags().StringVar(&options.Delimiter, "delimiter", "", "CSV delimiter")
	cmd.Flags().IntVarP(&options.Rows, "rows", "n", options.Rows, "Number of rows to print")

	return cmd
}

func printDataset(cmd *cobra.Command, ds *core.Dataset, rows int) {
	cmd.Printf("Dataset: %s\n", ds.Name)
	cmd.Printf("Number of rows: %d\n", ds.Len())
	cmd.Println("\nSchema:")
	for i, col := range ds.Schema.Columns {
		cmd.Printf("  Column %d: %s (%s)\n", i, col.Name, col.Type)
	}

	rows = min(rows, ds.Len())
	if rows <= 0 {
		return
	}
	names := ds.Schema.Names()
	cmd.Printf("\nFirst %d rows:\n", rows)
	cmd.Printf("  %s\n", strings.Join(names, " | "))
	for _, rec := range ds.Records[:rows] {
		values := make([]string, len(names))
		for i, name := range names {
			values[i] = core.FormatValue(rec[name])
		}
		cmd.Println("  " + strings.Join(values, " | "))
	}
}
