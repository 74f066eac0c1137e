package blocks

import (
	"context"
	"net/http"

	"github.com/rotisserie/eris"

	"github.com/votesquad/voter-cli/internal/model"
)

// Loader fetches county block geometry and census attributes, caching
// downloads under DataDir.
type Loader struct {
	HTTPClient *http.Client
	DataDir    string
	SF1        *SF1Client
}

func (l *Loader) httpClient() *http.Client {
	if l.HTTPClient != nil {
		return l.HTTPClient
	}
	return http.DefaultClient
}

// Features returns the county's block polygons, downloading the state
// shapefile on first use.
func (l *Loader) Features(ctx context.Context, stateFIPS, countyFIPS string) ([]Block, error) {
	return FetchFeatures(ctx, l.httpClient(), stateFIPS, countyFIPS, l.DataDir)
}

// Attributes returns per-block race composition, combining the SF1 API
// counts with housing units from the block shapefile.
func (l *Loader) Attributes(ctx context.Context, stateFIPS, countyFIPS string) (map[string]model.BlockAttributes, error) {
	if l.SF1 == nil {
		return nil, eris.New("blocks: no SF1 client configured")
	}
	features, err := l.Features(ctx, stateFIPS, countyFIPS)
	if err != nil {
		return nil, err
	}
	attrs, err := l.SF1.FetchAttributes(ctx, stateFIPS, countyFIPS)
	if err != nil {
		return nil, err
	}
	return Combine(features, attrs), nil
}
