package blocks

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/votesquad/voter-cli/internal/fetcher"
)

// blockShapefileURL is the 2010 population/housing block shapefile per state.
const blockShapefileURL = "https://www2.census.gov/geo/tiger/TIGER2010BLKPOPHU/tabblock2010_%s_pophu.zip"

// Block is one census block feature: identifier, housing count, and
// polygon geometry in NAD83 lon/lat.
type Block struct {
	GEOID      string // BLOCKID10
	CountyFIPS string // COUNTYFP10
	Housing    int    // HOUSING10
	Pop        int    // POP10
	Geometry   *geom.Polygon
	bounds     *geom.Bounds
}

// FetchFeatures downloads the state block shapefile and returns the
// county's block features. The archive is cached in dataDir between runs.
func FetchFeatures(ctx context.Context, client *http.Client, stateFIPS, countyFIPS, dataDir string) ([]Block, error) {
	url := fmt.Sprintf(blockShapefileURL, stateFIPS)
	extractDir, err := fetcher.DownloadZip(ctx, client, url, dataDir)
	if err != nil {
		return nil, eris.Wrap(err, "blocks: download block shapefile")
	}

	shpPath, err := fetcher.FindFile(extractDir, ".shp")
	if err != nil {
		return nil, eris.Wrap(err, "blocks: find .shp file")
	}

	return ReadFeatures(shpPath, countyFIPS)
}

// ReadFeatures parses a block shapefile and keeps features matching the
// county FIPS code. Records with missing IDs or unusable geometry are
// skipped with a count, not an error.
func ReadFeatures(shpPath, countyFIPS string) ([]Block, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "blocks: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	idIdx := fieldIndex(reader, "BLOCKID10")
	countyIdx := fieldIndex(reader, "COUNTYFP10")
	housingIdx := fieldIndex(reader, "HOUSING10")
	popIdx := fieldIndex(reader, "POP10")
	if idIdx < 0 || countyIdx < 0 {
		return nil, eris.New("blocks: required shapefile fields (BLOCKID10, COUNTYFP10) not found")
	}

	var features []Block
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()

		if strings.TrimSpace(reader.Attribute(countyIdx)) != countyFIPS {
			continue
		}

		geoid := strings.TrimSpace(reader.Attribute(idIdx))
		if geoid == "" {
			skipped++
			continue
		}

		poly, ok := shape.(*shp.Polygon)
		if !ok {
			skipped++
			continue
		}
		g := polygonToGeom(poly)
		if g == nil {
			skipped++
			continue
		}

		b := Block{
			GEOID:      geoid,
			CountyFIPS: countyFIPS,
			Geometry:   g,
			bounds:     g.Bounds(),
		}
		if housingIdx >= 0 {
			b.Housing = atoi(strings.TrimSpace(reader.Attribute(housingIdx)))
		}
		if popIdx >= 0 {
			b.Pop = atoi(strings.TrimSpace(reader.Attribute(popIdx)))
		}
		features = append(features, b)
	}

	if skipped > 0 {
		zap.L().Debug("blocks: skipped shapefile records", zap.Int("skipped", skipped))
	}
	zap.L().Info("block features loaded",
		zap.String("county_fips", countyFIPS),
		zap.Int("blocks", len(features)),
	)
	return features, nil
}

// fieldIndex returns the index of a named attribute field, or -1.
func fieldIndex(reader *shp.Reader, name string) int {
	for i, f := range reader.Fields() {
		if strings.EqualFold(strings.TrimRight(f.String(), "\x00"), name) {
			return i
		}
	}
	return -1
}

// polygonToGeom converts a shapefile polygon to a go-geom polygon, one
// linear ring per part.
func polygonToGeom(p *shp.Polygon) *geom.Polygon {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	poly := geom.NewPolygon(geom.XY)
	for part := 0; part < int(p.NumParts); part++ {
		start := int(p.Parts[part])
		end := len(p.Points)
		if part+1 < int(p.NumParts) {
			end = int(p.Parts[part+1])
		}
		if end <= start {
			continue
		}

		coords := make([]geom.Coord, 0, end-start)
		for _, pt := range p.Points[start:end] {
			coords = append(coords, geom.Coord{pt.X, pt.Y})
		}
		ring := geom.NewLinearRing(geom.XY)
		if _, err := ring.SetCoords(coords); err != nil {
			continue
		}
		if err := poly.Push(ring); err != nil {
			continue
		}
	}

	if poly.NumLinearRings() == 0 {
		return nil
	}
	return poly
}
