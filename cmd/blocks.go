package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/votesquad/voter-cli/internal/report"
)

var blocksCmd = &cobra.Command{
	Use:   "blocks",
	Short: "Fetch county census blocks and attributes",
	Long:  "Downloads the state block shapefile, filters to the configured county, fetches SF1 race composition per block, and optionally writes the combined attributes as CSV.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("blocks"); err != nil {
			return err
		}

		loader := initBlockLoader()
		features, err := loader.Features(ctx, cfg.County.StateFIPS, cfg.County.CountyFIPS)
		if err != nil {
			return eris.Wrap(err, "blocks: features")
		}
		fmt.Fprintf(os.Stdout, "county %s%s: %d blocks\n", cfg.County.StateFIPS, cfg.County.CountyFIPS, len(features))

		attrsOut, _ := cmd.Flags().GetString("attributes-out")
		if attrsOut == "" {
			return nil
		}

		attrs, err := loader.Attributes(ctx, cfg.County.StateFIPS, cfg.County.CountyFIPS)
		if err != nil {
			return eris.Wrap(err, "blocks: attributes")
		}

		f, err := os.Create(attrsOut)
		if err != nil {
			return eris.Wrapf(err, "blocks: create %s", attrsOut)
		}
		defer f.Close() //nolint:errcheck

		if err := report.WriteBlockAttributesCSV(f, attrs); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "wrote %d block attribute rows to %s\n", len(attrs), attrsOut)
		return nil
	},
}

func init() {
	blocksCmd.Flags().String("attributes-out", "", "write combined block attributes CSV to this path")
	rootCmd.AddCommand(blocksCmd)
}
