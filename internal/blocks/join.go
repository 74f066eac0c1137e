package blocks

import (
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"

	"github.com/votesquad/voter-cli/internal/model"
)

// Index answers point-in-block lookups for one county's block features.
// Lookups prefilter on the polygon bounding box, then run an even-odd
// ring test, so blocks with hole rings resolve correctly.
type Index struct {
	features []Block
}

// NewIndex builds a lookup index over the county block features.
// Features constructed from exported fields carry no cached bounds, so
// any missing ones are computed here.
func NewIndex(features []Block) *Index {
	for i := range features {
		if features[i].bounds == nil && features[i].Geometry != nil {
			features[i].bounds = features[i].Geometry.Bounds()
		}
	}
	return &Index{features: features}
}

// Locate returns the GEOID of the block containing the point, or empty
// when the point falls outside every block.
func (ix *Index) Locate(lon, lat float64) string {
	pt := geom.Coord{lon, lat}
	for i := range ix.features {
		b := &ix.features[i]
		if b.bounds == nil || !b.bounds.OverlapsPoint(geom.XY, pt) {
			continue
		}
		if polygonContains(b.Geometry, pt) {
			return b.GEOID
		}
	}
	return ""
}

// polygonContains applies the even-odd rule across all rings: a point
// inside an odd number of rings is inside the polygon.
func polygonContains(p *geom.Polygon, pt geom.Coord) bool {
	inside := false
	for i := 0; i < p.NumLinearRings(); i++ {
		if xy.IsPointInRing(geom.XY, pt, p.LinearRing(i).FlatCoords()) {
			inside = !inside
		}
	}
	return inside
}

// TagPoints sets BlockID on every matched voter point in place and
// returns the number of points tagged. Unmatched points (no coordinates)
// are left untouched.
func (ix *Index) TagPoints(points []model.VoterPoint) int {
	var tagged, outside int
	for i := range points {
		if !points[i].Matched {
			continue
		}
		geoid := ix.Locate(points[i].Longitude, points[i].Latitude)
		if geoid == "" {
			outside++
			continue
		}
		points[i].BlockID = geoid
		tagged++
	}

	if outside > 0 {
		zap.L().Warn("geocoded points outside every county block",
			zap.Int("count", outside),
		)
	}
	return tagged
}
