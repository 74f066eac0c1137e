package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/votesquad/voter-cli/internal/pipeline"
	"github.com/votesquad/voter-cli/internal/sbe"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute the full county pipeline",
	Long:  "Fetches the statewide files, assigns turnout tiers, geocodes every registered voter, joins points to census blocks, and persists the tallies.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("run"); err != nil {
			return err
		}

		county, _ := cmd.Flags().GetString("county")
		if county == "" {
			county = cfg.County.Name
		}
		skipBlocks, _ := cmd.Flags().GetBool("skip-blocks")
		historyFile, _ := cmd.Flags().GetString("history-file")
		if historyFile == "" {
			historyFile = cfg.Data.HistoryFile
		}
		registrationFile, _ := cmd.Flags().GetString("registration-file")
		if registrationFile == "" {
			registrationFile = cfg.Data.RegistrationFile
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		deps := pipeline.Deps{
			Source:   initSource(),
			Geocoder: initGeocoder(st),
			Store:    st,
		}
		if !skipBlocks {
			deps.Blocks = initBlockLoader()
		}

		run, err := pipeline.Run(ctx, pipeline.RunConfig{
			County:           county,
			StateFIPS:        cfg.County.StateFIPS,
			CountyFIPS:       cfg.County.CountyFIPS,
			Elections:        cfg.ElectionSet(),
			Rules:            cfg.RuleSet(),
			Batch:            batchOptions(),
			HistoryFile:      historyFile,
			RegistrationFile: registrationFile,
		}, deps)
		if err != nil {
			return eris.Wrap(err, "run")
		}

		r := run.Result
		fmt.Fprintf(os.Stdout, "Run %s complete for %s County\n", run.ID, sbe.DisplayCounty(run.County))
		fmt.Fprintf(os.Stdout, "  voters tallied:   %d\n", r.VotersTallied)
		fmt.Fprintf(os.Stdout, "  geocoded:         %d\n", r.VotersGeocoded)
		fmt.Fprintf(os.Stdout, "  unmatched:        %d\n", r.VotersUnmatched)
		fmt.Fprintf(os.Stdout, "  excluded rows:    %d\n", r.RowsExcluded)
		fmt.Fprintf(os.Stdout, "  chunks submitted: %d (%d failed)\n", r.ChunksSubmitted, r.ChunksFailed)
		fmt.Fprintf(os.Stdout, "  blocks tallied:   %d\n", r.BlocksTallied)
		fmt.Fprintf(os.Stdout, "  duration:         %.1fs\n", r.DurationSecs)
		return nil
	},
}

func init() {
	runCmd.Flags().String("county", "", "county to process (default from config)")
	runCmd.Flags().String("history-file", "", "use a local history file instead of downloading")
	runCmd.Flags().String("registration-file", "", "use a local registration file instead of downloading")
	runCmd.Flags().Bool("skip-blocks", false, "skip the census block spatial join")
	rootCmd.AddCommand(runCmd)
}
