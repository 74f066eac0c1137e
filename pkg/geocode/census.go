package geocode

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

const (
	censusBaseURL   = "https://geocoding.geo.census.gov/geocoder"
	censusBenchmark = "Public_AR_Current"
)

// censusOneLineResponse is the JSON response from the single-address API.
type censusOneLineResponse struct {
	Result struct {
		AddressMatches []struct {
			Coordinates struct {
				X float64 `json:"x"` // longitude
				Y float64 `json:"y"` // latitude
			} `json:"coordinates"`
			TigerLine struct {
				Side        string `json:"side"`
				TigerLineID string `json:"tigerLineId"`
			} `json:"tigerLine"`
			MatchedAddress string `json:"matchedAddress"`
		} `json:"addressMatches"`
	} `json:"result"`
}

// Geocode geocodes a single address using the one-line locations API.
func (c *censusClient) Geocode(ctx context.Context, addr AddressInput) (*Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: rate limit")
	}

	oneLine := formatOneLine(addr)
	params := url.Values{
		"address":   {oneLine},
		"benchmark": {c.benchmark},
		"format":    {"json"},
	}

	reqURL := c.baseURL + "/locations/onelineaddress?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: build request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: census returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: read body")
	}

	var censusResp censusOneLineResponse
	if err := json.Unmarshal(body, &censusResp); err != nil {
		return nil, eris.Wrap(err, "geocode: parse response")
	}

	out := &Result{ID: addr.ID, InputAddress: oneLine, MatchStatus: StatusNoMatch}
	if len(censusResp.Result.AddressMatches) == 0 {
		return out, nil
	}

	match := censusResp.Result.AddressMatches[0]
	out.MatchStatus = StatusMatch
	out.MatchType = "Exact"
	out.MatchedAddress = match.MatchedAddress
	out.Latitude = match.Coordinates.Y
	out.Longitude = match.Coordinates.X
	out.TigerLineID = match.TigerLine.TigerLineID
	out.Side = match.TigerLine.Side
	return out, nil
}

// BatchGeocode submits up to 10,000 addresses to the addressbatch API as a
// multipart CSV upload and parses the CSV response. Every submitted row
// comes back, matched or not; missing rows are filled in as No_Match.
func (c *censusClient) BatchGeocode(ctx context.Context, addrs []AddressInput) ([]Result, error) {
	if len(addrs) == 0 {
		return nil, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: batch rate limit")
	}

	body, contentType, err := buildBatchRequest(addrs, c.benchmark)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/locations/addressbatch", body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: batch build request")
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: batch request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: census batch returned status %d", resp.StatusCode)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: batch read body")
	}

	return parseBatchResponse(respBody, addrs)
}

// buildBatchRequest encodes the address rows as the CSV payload of a
// multipart form: id,street,city,state,zip per line, no header.
func buildBatchRequest(addrs []AddressInput, benchmark string) (*bytes.Buffer, string, error) {
	var csvBuf bytes.Buffer
	w := csv.NewWriter(&csvBuf)
	for i, addr := range addrs {
		id := addr.ID
		if id == "" {
			id = strconv.Itoa(i)
		}
		if err := w.Write([]string{id, addr.Street, addr.City, addr.State, addr.ZipCode}); err != nil {
			return nil, "", eris.Wrap(err, "geocode: batch write csv row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, "", eris.Wrap(err, "geocode: batch flush csv")
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("benchmark", benchmark); err != nil {
		return nil, "", eris.Wrap(err, "geocode: batch write benchmark")
	}
	part, err := writer.CreateFormFile("addressFile", "addresses.csv")
	if err != nil {
		return nil, "", eris.Wrap(err, "geocode: batch create form file")
	}
	if _, err := part.Write(csvBuf.Bytes()); err != nil {
		return nil, "", eris.Wrap(err, "geocode: batch write csv")
	}
	if err := writer.Close(); err != nil {
		return nil, "", eris.Wrap(err, "geocode: batch close writer")
	}

	return &buf, writer.FormDataContentType(), nil
}

// parseBatchResponse parses the batch CSV response. Row format:
//
//	"id","input address","Match|No_Match|Tie","Exact|Non_Exact","matched address","lon,lat","tigerlineid","side"
//
// Unmatched rows carry fewer fields; rows the service dropped entirely are
// synthesized as No_Match so output stays one Result per submitted address.
func parseBatchResponse(body []byte, addrs []AddressInput) ([]Result, error) {
	results := make([]Result, len(addrs))
	seen := make([]bool, len(addrs))

	idToIdx := make(map[string]int, len(addrs))
	for i, addr := range addrs {
		id := addr.ID
		if id == "" {
			id = strconv.Itoa(i)
		}
		idToIdx[id] = i
	}

	reader := csv.NewReader(bytes.NewReader(body))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	for {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "geocode: batch parse response")
		}
		if len(fields) < 3 {
			continue
		}

		id := strings.TrimSpace(fields[0])
		idx, ok := idToIdx[id]
		if !ok {
			continue
		}
		seen[idx] = true

		r := Result{
			ID:           id,
			InputAddress: strings.TrimSpace(fields[1]),
			MatchStatus:  normalizeStatus(fields[2]),
		}

		if r.MatchStatus == StatusMatch && len(fields) >= 6 {
			r.MatchType = strings.TrimSpace(fields[3])
			r.MatchedAddress = strings.TrimSpace(fields[4])
			lon, lat, coordErr := parseCoords(fields[5])
			if coordErr != nil {
				// Match row with unparseable coordinates: degrade to No_Match
				// rather than fail the whole chunk.
				r = Result{ID: id, InputAddress: r.InputAddress, MatchStatus: StatusNoMatch}
			} else {
				r.Longitude = lon
				r.Latitude = lat
				if len(fields) >= 8 {
					r.TigerLineID = strings.TrimSpace(fields[6])
					r.Side = strings.TrimSpace(fields[7])
				}
			}
		}

		results[idx] = r
	}

	for i, ok := range seen {
		if !ok {
			results[i] = Result{ID: addrs[i].ID, InputAddress: formatOneLine(addrs[i]), MatchStatus: StatusNoMatch}
		}
	}

	return results, nil
}

// normalizeStatus maps raw match-indicator text onto the exported statuses.
func normalizeStatus(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "match":
		return StatusMatch
	case "tie":
		return StatusTie
	default:
		return StatusNoMatch
	}
}

// parseCoords parses a "lon,lat" coordinate pair.
func parseCoords(coords string) (lon, lat float64, err error) {
	parts := strings.SplitN(strings.TrimSpace(coords), ",", 2)
	if len(parts) != 2 {
		return 0, 0, eris.Errorf("geocode: invalid coords %q", coords)
	}
	lon, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, eris.Wrap(err, "geocode: parse lon")
	}
	lat, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, eris.Wrap(err, "geocode: parse lat")
	}
	return lon, lat, nil
}

// formatOneLine joins the non-empty address components into one line.
func formatOneLine(addr AddressInput) string {
	parts := []string{addr.Street, addr.City, addr.State, addr.ZipCode}
	var nonEmpty []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, ", ")
}
