package geo

import (
	"math"

	"github.com/mmcloughlin/geohash"

	"github.com/nitesh/nearby_news/pkg/models"
)

const (
	// CellPrecision is the geohash length stored with every record.
	CellPrecision = 12

	// DefaultMaxCells bounds the number of prefixes a single cover may produce.
	DefaultMaxCells = 32

	// finest precision considered for a cover; level 9 cells are ~5 m wide.
	maxCoverPrecision = 9

	// widens the bounding box so points sitting exactly on it are not lost to rounding.
	boxMarginDeg = 1e-9
)

// Cell returns the stored geohash for p. The north pole and the 180th
// meridian are folded into the grid since the encoder is half-open.
func Cell(p models.Location) string {
	lat, lng := p.Latitude, p.Longitude
	if lat >= 90 {
		lat = 90 - 1e-9
	}
	if lng >= 180 {
		lng = -180
	}
	return geohash.EncodeWithPrecision(lat, lng, CellPrecision)
}

// Cover returns geohash prefixes whose cells together contain every point
// within radiusMeters of center. It picks the finest precision that needs at
// most maxCells cells (level 1 is used regardless when even that is too many).
func Cover(center models.Location, radiusMeters float64, maxCells int) []string {
	if maxCells <= 0 {
		maxCells = DefaultMaxCells
	}
	b := capBounds(center, radiusMeters)

	for prec := maxCoverPrecision; prec >= 1; prec-- {
		g := newGrid(prec)
		i0, i1 := g.latRange(b)
		j0, j1, full := g.lngRange(b)
		n := (i1 - i0 + 1) * (j1 - j0 + 1)
		if n > maxCells && prec > 1 {
			continue
		}
		return g.cells(i0, i1, j0, j1, full)
	}
	return nil
}

// bounds is a latitude/longitude box; fullLng means every meridian is covered.
type bounds struct {
	minLat, maxLat float64
	minLng, maxLng float64
	fullLng        bool
}

func capBounds(c models.Location, radiusMeters float64) bounds {
	delta := radiusMeters / EarthRadiusMeters // angular radius
	dLat := toDeg(delta)

	b := bounds{
		minLat: c.Latitude - dLat - boxMarginDeg,
		maxLat: c.Latitude + dLat + boxMarginDeg,
	}
	if b.minLat <= -90 || b.maxLat >= 90 || delta >= math.Pi/2 {
		// the cap touches a pole: all longitudes are reachable
		b.minLat = math.Max(b.minLat, -90)
		b.maxLat = math.Min(b.maxLat, 90)
		b.fullLng = true
		return b
	}

	s := math.Sin(delta) / math.Cos(toRad(c.Latitude))
	if s >= 1 {
		b.fullLng = true
		return b
	}
	dLng := toDeg(math.Asin(s)) + boxMarginDeg
	if dLng >= 180 {
		b.fullLng = true
		return b
	}
	b.minLng = c.Longitude - dLng
	b.maxLng = c.Longitude + dLng
	return b
}

// grid describes the geohash lattice at one precision.
type grid struct {
	prec             int
	latN, lngN       int
	cellLat, cellLng float64
}

func newGrid(prec int) grid {
	bits := 5 * prec
	lngBits := (bits + 1) / 2
	latBits := bits / 2
	g := grid{prec: prec, latN: 1 << latBits, lngN: 1 << lngBits}
	g.cellLat = 180 / float64(g.latN)
	g.cellLng = 360 / float64(g.lngN)
	return g
}

func (g grid) latRange(b bounds) (int, int) {
	i0 := int(math.Floor((b.minLat + 90) / g.cellLat))
	i1 := int(math.Floor((b.maxLat + 90) / g.cellLat))
	return clampIndex(i0, g.latN), clampIndex(i1, g.latN)
}

// lngRange returns an index span that may run past either end of the
// lattice; cells() folds it back across the antimeridian.
func (g grid) lngRange(b bounds) (int, int, bool) {
	if b.fullLng {
		return 0, g.lngN - 1, true
	}
	j0 := int(math.Floor((b.minLng + 180) / g.cellLng))
	j1 := int(math.Floor((b.maxLng + 180) / g.cellLng))
	if j1-j0+1 >= g.lngN {
		return 0, g.lngN - 1, true
	}
	return j0, j1, false
}

func (g grid) cells(i0, i1, j0, j1 int, full bool) []string {
	out := make([]string, 0, (i1-i0+1)*(j1-j0+1))
	seen := make(map[string]struct{}, cap(out))
	for i := i0; i <= i1; i++ {
		lat := -90 + (float64(i)+0.5)*g.cellLat
		for j := j0; j <= j1; j++ {
			jj := j
			if !full {
				jj = ((j % g.lngN) + g.lngN) % g.lngN
			}
			lng := -180 + (float64(jj)+0.5)*g.cellLng
			h := geohash.EncodeWithPrecision(lat, lng, uint(g.prec))
			if _, ok := seen[h]; ok {
				continue
			}
			seen[h] = struct{}{}
			out = append(out, h)
		}
	}
	return out
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
