package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/votesquad/voter-cli/internal/report"
)

var exportCmd = &cobra.Command{
	Use:   "export <run-id>",
	Short: "Export a run's voters and block tallies",
	Long:  "Writes the stored voter relation and block tallies of one run as CSV files or a two-sheet XLSX workbook.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		runID := args[0]

		format, _ := cmd.Flags().GetString("format")
		outDir, _ := cmd.Flags().GetString("out")
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return eris.Wrapf(err, "export: create %s", outDir)
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		if _, err := st.GetRun(ctx, runID); err != nil {
			return eris.Wrap(err, "export")
		}
		points, err := st.GetVoterPoints(ctx, runID)
		if err != nil {
			return eris.Wrap(err, "export: voter points")
		}
		tallies, err := st.GetBlockTallies(ctx, runID)
		if err != nil {
			return eris.Wrap(err, "export: block tallies")
		}

		elections := cfg.ElectionSet()

		switch format {
		case "csv":
			votersPath := filepath.Join(outDir, runID+"-voters.csv")
			f, err := os.Create(votersPath)
			if err != nil {
				return eris.Wrapf(err, "export: create %s", votersPath)
			}
			if err := report.WriteVoterCSV(f, elections, points); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return eris.Wrap(err, "export: close voters csv")
			}

			talliesPath := filepath.Join(outDir, runID+"-blocks.csv")
			f, err = os.Create(talliesPath)
			if err != nil {
				return eris.Wrapf(err, "export: create %s", talliesPath)
			}
			if err := report.WriteTallyCSV(f, tallies, nil); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return eris.Wrap(err, "export: close blocks csv")
			}

			fmt.Fprintf(os.Stdout, "wrote %s and %s\n", votersPath, talliesPath)

		case "xlsx":
			path := filepath.Join(outDir, runID+".xlsx")
			if err := report.WriteXLSX(path, elections, points, tallies, nil); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "wrote %s\n", path)

		default:
			return eris.Errorf("unsupported format: %s", format)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().String("format", "csv", "output format: csv or xlsx")
	exportCmd.Flags().String("out", ".", "output directory")
	rootCmd.AddCommand(exportCmd)
}
