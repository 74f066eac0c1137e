package geocode

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeocodeSingleMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/locations/onelineaddress")
		assert.Equal(t, "Public_AR_Current", r.URL.Query().Get("benchmark"))
		fmt.Fprint(w, `{"result":{"addressMatches":[{
			"coordinates":{"x":-78.89,"y":36.0},
			"tigerLine":{"side":"L","tigerLineId":"71662708"},
			"matchedAddress":"123 MAIN ST, DURHAM, NC, 27701"}]}}`)
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	result, err := client.Geocode(context.Background(), AddressInput{
		ID: "v1", Street: "123 Main St", City: "Durham", State: "NC", ZipCode: "27701",
	})
	require.NoError(t, err)

	assert.Equal(t, StatusMatch, result.MatchStatus)
	assert.True(t, result.Matched())
	assert.InDelta(t, 36.0, result.Latitude, 1e-9)
	assert.InDelta(t, -78.89, result.Longitude, 1e-9)
	assert.Equal(t, "123 MAIN ST, DURHAM, NC, 27701", result.MatchedAddress)
	assert.Equal(t, "71662708", result.TigerLineID)
}

func TestGeocodeSingleNoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":{"addressMatches":[]}}`)
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	result, err := client.Geocode(context.Background(), AddressInput{ID: "v1", Street: "nowhere"})
	require.NoError(t, err)
	assert.Equal(t, StatusNoMatch, result.MatchStatus)
	assert.False(t, result.Matched())
	assert.Zero(t, result.Latitude)
}

func TestBatchGeocodeRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Contains(t, r.URL.Path, "/locations/addressbatch")
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "Public_AR_Current", r.FormValue("benchmark"))

		f, _, err := r.FormFile("addressFile")
		require.NoError(t, err)
		defer f.Close()
		payload, err := io.ReadAll(f)
		require.NoError(t, err)
		assert.Contains(t, string(payload), "v1,123 Main St,Durham,NC,27701")

		fmt.Fprint(w, strings.Join([]string{
			`"v1","123 Main St, Durham, NC, 27701","Match","Exact","123 MAIN ST, DURHAM, NC, 27701","-78.89,36.01","71662708","L"`,
			`"v2","9 Nowhere Ln, Durham, NC, 27701","No_Match"`,
			`"v3","5 Twin Ct, Durham, NC, 27701","Tie"`,
		}, "\n"))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	results, err := client.BatchGeocode(context.Background(), []AddressInput{
		{ID: "v1", Street: "123 Main St", City: "Durham", State: "NC", ZipCode: "27701"},
		{ID: "v2", Street: "9 Nowhere Ln", City: "Durham", State: "NC", ZipCode: "27701"},
		{ID: "v3", Street: "5 Twin Ct", City: "Durham", State: "NC", ZipCode: "27701"},
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, StatusMatch, results[0].MatchStatus)
	assert.InDelta(t, 36.01, results[0].Latitude, 1e-9)
	assert.InDelta(t, -78.89, results[0].Longitude, 1e-9)
	assert.Equal(t, "Exact", results[0].MatchType)
	assert.Equal(t, "L", results[0].Side)

	assert.Equal(t, StatusNoMatch, results[1].MatchStatus)
	assert.Equal(t, StatusTie, results[2].MatchStatus)
	assert.False(t, results[2].Matched(), "Tie is not a usable match")
}

func TestBatchGeocodeFillsDroppedRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Service silently drops v2.
		fmt.Fprint(w, `"v1","addr","Match","Exact","ADDR","-78.0,36.0","1","R"`)
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	results, err := client.BatchGeocode(context.Background(), []AddressInput{
		{ID: "v1", Street: "a", City: "c", State: "NC", ZipCode: "27701"},
		{ID: "v2", Street: "b", City: "c", State: "NC", ZipCode: "27701"},
	})
	require.NoError(t, err)
	require.Len(t, results, 2, "one result per submitted row, always")
	assert.Equal(t, StatusMatch, results[0].MatchStatus)
	assert.Equal(t, "v2", results[1].ID)
	assert.Equal(t, StatusNoMatch, results[1].MatchStatus)
}

func TestBatchGeocodeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	_, err := client.BatchGeocode(context.Background(), []AddressInput{
		{ID: "v1", Street: "a", City: "c", State: "NC", ZipCode: "27701"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestBatchGeocodeMalformedCoords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `"v1","addr","Match","Exact","ADDR","not-coords","1","R"`)
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	results, err := client.BatchGeocode(context.Background(), []AddressInput{
		{ID: "v1", Street: "a", City: "c", State: "NC", ZipCode: "27701"},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusNoMatch, results[0].MatchStatus)
}

func TestAddressComplete(t *testing.T) {
	tests := []struct {
		name string
		addr AddressInput
		want bool
	}{
		{"full", AddressInput{Street: "1 Elm St", City: "Durham", State: "NC", ZipCode: "27701"}, true},
		{"state optional", AddressInput{Street: "1 Elm St", City: "Durham", ZipCode: "27701"}, true},
		{"missing zip", AddressInput{Street: "1 Elm St", City: "Durham", State: "NC"}, false},
		{"missing street", AddressInput{City: "Durham", State: "NC", ZipCode: "27701"}, false},
		{"missing city", AddressInput{Street: "1 Elm St", State: "NC", ZipCode: "27701"}, false},
		{"whitespace zip", AddressInput{Street: "1 Elm St", City: "Durham", ZipCode: "  "}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.addr.Complete())
		})
	}
}

func TestFormatOneLine(t *testing.T) {
	assert.Equal(t, "1 Elm St, Durham, 27701",
		formatOneLine(AddressInput{Street: "1 Elm St", City: "Durham", ZipCode: "27701"}))
}
