package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the statewide voter files",
	Long:  "Downloads and extracts the statewide registration and history zips into the data directory. Already-extracted files are reused.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		src := initSource()

		registrationPath, err := src.FetchRegistration(ctx)
		if err != nil {
			return eris.Wrap(err, "fetch registration")
		}
		fmt.Fprintf(os.Stdout, "registration: %s\n", registrationPath)

		historyPath, err := src.FetchHistory(ctx)
		if err != nil {
			return eris.Wrap(err, "fetch history")
		}
		fmt.Fprintf(os.Stdout, "history:      %s\n", historyPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}
