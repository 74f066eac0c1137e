package sbe

import (
	"context"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/votesquad/voter-cli/internal/fetcher"
	"github.com/votesquad/voter-cli/internal/model"
)

// RegistrationResult reports a county registration load, including rows
// dropped for incomplete addresses so callers can surface the count.
type RegistrationResult struct {
	Records []model.RegistrationRecord
	Dropped int // rows missing a required address component
}

// CountyRegistration loads the registration rows for one county. Rows
// missing any of street, city, state, or zip are dropped here, before
// any geocoding, and counted in the result. Runs of whitespace in the
// street address collapse to single spaces; the address-points data the
// geocoder normalizes against is single-spaced.
func CountyRegistration(ctx context.Context, path, county string) (*RegistrationResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "sbe: open registration file")
	}
	defer f.Close() //nolint:errcheck

	want := NormalizeCounty(county)
	result := &RegistrationResult{}

	err = fetcher.StreamTSV(ctx, f, func(row fetcher.TSVRow) error {
		if NormalizeCounty(row.Get("county_desc")) != want {
			return nil
		}

		rec := model.RegistrationRecord{
			VoterID:       row.Get("ncid"),
			County:        want,
			StreetAddress: collapseSpaces(row.Get("res_street_address")),
			City:          row.Get("res_city_desc"),
			State:         row.Get("state_cd"),
			ZipCode:       row.Get("zip_code"),
			Precinct:      row.Get("precinct_abbrv"),
			RaceCode:      row.Get("race_code"),
			EthnicCode:    row.Get("ethnic_code"),
			GenderCode:    row.Get("gender_code"),
			BirthAge:      row.Get("birth_age"),
			LastName:      row.Get("last_name"),
			FirstName:     row.Get("first_name"),
		}
		if rec.VoterID == "" {
			return nil
		}
		if !rec.HasFullAddress() {
			result.Dropped++
			return nil
		}

		result.Records = append(result.Records, rec)
		return nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "sbe: stream registration")
	}

	zap.L().Info("registration file scanned",
		zap.String("county", want),
		zap.Int("records", len(result.Records)),
		zap.Int("dropped_incomplete_address", result.Dropped),
	)
	return result, nil
}

// collapseSpaces reduces any whitespace run to a single space.
func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
