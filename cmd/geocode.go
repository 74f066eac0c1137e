package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/votesquad/voter-cli/pkg/geocode"
)

var geocodeCmd = &cobra.Command{
	Use:   "geocode",
	Short: "Geocode one address",
	Long:  "Sends a single address through the Census geocoder and prints the result as JSON. Useful for spot-checking match behavior.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		street, _ := cmd.Flags().GetString("street")
		city, _ := cmd.Flags().GetString("city")
		state, _ := cmd.Flags().GetString("state")
		zip, _ := cmd.Flags().GetString("zip")

		addr := geocode.AddressInput{Street: street, City: city, State: state, ZipCode: zip}
		if !addr.Complete() {
			return eris.New("street, city, and zip are required")
		}

		client := initGeocoder(nil)
		result, err := client.Geocode(ctx, addr)
		if err != nil {
			return eris.Wrap(err, "geocode")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	geocodeCmd.Flags().String("street", "", "street address")
	geocodeCmd.Flags().String("city", "", "city")
	geocodeCmd.Flags().String("state", "", "state code")
	geocodeCmd.Flags().String("zip", "", "5-digit zip code")
	_ = geocodeCmd.MarkFlagRequired("street")
	rootCmd.AddCommand(geocodeCmd)
}
