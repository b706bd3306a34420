package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kirillkom/frmf-pipeline/internal/bootstrap"
	"github.com/kirillkom/frmf-pipeline/internal/config"
	"github.com/kirillkom/frmf-pipeline/internal/core/domain"
	"github.com/kirillkom/frmf-pipeline/internal/infrastructure/columnar"
)

const emptyMarker = "(empty)"

func newInspectCmd() *cobra.Command {
	var (
		fromFile bool
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "inspect <enriched-key|file>",
		Short: "Print every column of an enriched record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				records []domain.EnrichedRecord
				err     error
			)
			if fromFile {
				records, err = columnar.DecodeFile(args[0])
			} else {
				records, err = loadRecords(cmd, args[0])
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}
			for i, rec := range records {
				if i > 0 {
					fmt.Fprintln(out)
				}
				if err := writeRecord(out, rec); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&fromFile, "file", false, "treat the argument as a local Parquet file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print records as JSON")
	return cmd
}

func loadRecords(cmd *cobra.Command, key string) ([]domain.EnrichedRecord, error) {
	cfg := config.Load()
	_, enriched, err := bootstrap.NewObjectStores(cmd.Context(), cfg)
	if err != nil {
		return nil, err
	}
	data, err := enriched.Get(cmd.Context(), key)
	if err != nil {
		return nil, fmt.Errorf("read %s from %s: %w", key, enriched.Bucket(), err)
	}
	return columnar.Decode(data)
}

// writeRecord prints one column per line in schema order and marks empty
// values so missing enrichment stands out.
func writeRecord(w io.Writer, rec domain.EnrichedRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	var values map[string]any
	if err := json.Unmarshal(raw, &values); err != nil {
		return fmt.Errorf("unmarshal record: %w", err)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	empty := 0
	for _, column := range domain.EnrichedColumns {
		value := fmt.Sprint(values[column])
		if value == "" {
			value = emptyMarker
			empty++
		}
		fmt.Fprintf(tw, "%s\t%s\n", column, value)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%d columns, %d empty\n", len(domain.EnrichedColumns), empty)
	return err
}
