package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/votesquad/voter-cli/internal/mece"
	"github.com/votesquad/voter-cli/internal/sbe"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Assign turnout tiers from a history file",
	Long:  "Builds the participation matrix for one county and prints the tier distribution, without geocoding or persisting anything.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		county, _ := cmd.Flags().GetString("county")
		if county == "" {
			county = cfg.County.Name
		}
		historyFile, _ := cmd.Flags().GetString("history-file")
		if historyFile == "" {
			historyFile = cfg.Data.HistoryFile
		}
		if historyFile == "" {
			src := initSource()
			var err error
			if historyFile, err = src.FetchHistory(ctx); err != nil {
				return eris.Wrap(err, "score: fetch history")
			}
		}

		records, err := sbe.CountyHistory(ctx, historyFile, county)
		if err != nil {
			return eris.Wrap(err, "score")
		}

		if err := cfg.Validate("base"); err != nil {
			return err
		}
		rules := cfg.RuleSet()
		matrix := mece.Build(records, cfg.ElectionSet())
		tiers := mece.Assign(matrix, rules)

		dist := make(map[int]int)
		for _, tier := range tiers {
			dist[tier]++
		}

		fmt.Fprintf(os.Stdout, "County %s: %d voters with qualifying history\n\n", sbe.NormalizeCounty(county), matrix.Len())
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TIER\tRULE\tVOTERS")
		for i, rule := range rules {
			fmt.Fprintf(tw, "%d\t%s\t%d\n", i+1, rule.Name, dist[i+1])
		}
		fmt.Fprintf(tw, "%d\tcatch_all\t%d\n", rules.CatchAll(), dist[rules.CatchAll()])
		return tw.Flush()
	},
}

func init() {
	scoreCmd.Flags().String("county", "", "county to score (default from config)")
	scoreCmd.Flags().String("history-file", "", "use a local history file instead of downloading")
	rootCmd.AddCommand(scoreCmd)
}
