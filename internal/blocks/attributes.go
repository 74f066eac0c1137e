// Package blocks loads census block features and attributes for a county
// and tags geocoded voter points with the block they fall in.
package blocks

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/votesquad/voter-cli/internal/model"
)

const sf1BaseURL = "https://api.census.gov/data/2010/dec/sf1"

// SF1 variables pulled per block:
//
//	P003001 total population, P003003 Black population,
//	P010001 population 18+,  P010004 Black population 18+.
var sf1Variables = []string{"P003001", "P003003", "P010001", "P010004"}

// SF1Client fetches block-level race composition from the Census API.
type SF1Client struct {
	APIKey     string
	BaseURL    string // test override; empty means the public API
	HTTPClient *http.Client
}

// FetchAttributes pulls the SF1 variables for every block in the county
// and derives PctBlack and PctBlack18 (zero when the denominator is zero).
// BlackHH stays zero here; it needs HOUSING10 from the block shapefile
// and is filled in by Combine.
func (c *SF1Client) FetchAttributes(ctx context.Context, stateFIPS, countyFIPS string) (map[string]model.BlockAttributes, error) {
	base := c.BaseURL
	if base == "" {
		base = sf1BaseURL
	}
	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	params := url.Values{
		"get": {"P003001,P003003,P010001,P010004"},
		"for": {"block:*"},
		"in":  {"state:" + stateFIPS + " county:" + countyFIPS},
	}
	if c.APIKey != "" {
		params.Set("key", c.APIKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "blocks: build sf1 request")
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "blocks: sf1 request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("blocks: sf1 returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "blocks: sf1 read body")
	}

	// Response shape: first row is the header, remaining rows are values,
	// everything stringly typed.
	var rows [][]string
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, eris.Wrap(err, "blocks: sf1 parse response")
	}
	if len(rows) < 1 {
		return nil, eris.New("blocks: sf1 response empty")
	}

	col := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		col[name] = i
	}
	for _, name := range append(append([]string{}, sf1Variables...), "state", "county", "tract", "block") {
		if _, ok := col[name]; !ok {
			return nil, eris.Errorf("blocks: sf1 response missing column %s", name)
		}
	}

	attrs := make(map[string]model.BlockAttributes, len(rows)-1)
	for _, row := range rows[1:] {
		geoid := row[col["state"]] + row[col["county"]] + row[col["tract"]] + row[col["block"]]
		a := model.BlockAttributes{
			GEOID:      geoid,
			TotalPop:   atoi(row[col["P003001"]]),
			BlackPop:   atoi(row[col["P003003"]]),
			TotalPop18: atoi(row[col["P010001"]]),
			BlackPop18: atoi(row[col["P010004"]]),
		}
		a.PctBlack = pct(a.BlackPop, a.TotalPop)
		a.PctBlack18 = pct(a.BlackPop18, a.TotalPop18)
		attrs[geoid] = a
	}

	zap.L().Info("sf1 block attributes fetched",
		zap.String("state", stateFIPS),
		zap.String("county", countyFIPS),
		zap.Int("blocks", len(attrs)),
	)
	return attrs, nil
}

// Combine merges shapefile housing counts into the API attributes and
// computes BlackHH = round(housing * pctBlack / 100).
func Combine(features []Block, attrs map[string]model.BlockAttributes) map[string]model.BlockAttributes {
	out := make(map[string]model.BlockAttributes, len(attrs))
	for geoid, a := range attrs {
		out[geoid] = a
	}
	for _, b := range features {
		a := out[b.GEOID]
		a.GEOID = b.GEOID
		a.Housing = b.Housing
		a.BlackHH = int(math.Round(float64(b.Housing) * a.PctBlack / 100))
		out[b.GEOID] = a
	}
	return out
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func pct(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den) * 100
}
