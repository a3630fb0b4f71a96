package geo

import (
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/nitesh/nearby_news/pkg/models"
)

func loc(lat, lng float64) models.Location {
	return models.Location{Latitude: lat, Longitude: lng}
}

func TestDistance_KnownValues(t *testing.T) {
	tests := []struct {
		name   string
		a, b   models.Location
		wantM  float64
		tolerM float64
	}{
		{"same point", loc(40, -74), loc(40, -74), 0, 1e-9},
		{"short hop", loc(40, -74), loc(40.001, -74.001), 140.07, 0.5},
		{"one degree of latitude", loc(0, 0), loc(1, 0), 111195, 1},
		{"across the antimeridian", loc(0, 179.999), loc(0, -179.999), 222.4, 0.5},
		{"over the north pole", loc(89.999, 0), loc(89.999, 180), 222.4, 0.5},
		{"antipodes", loc(0, 0), loc(0, 180), math.Pi * EarthRadiusMeters, 1e-6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Distance(tt.a, tt.b)
			if math.Abs(got-tt.wantM) > tt.tolerM {
				t.Errorf("Distance = %.3f, want %.3f ± %.3f", got, tt.wantM, tt.tolerM)
			}
		})
	}
}

func TestDistance_Symmetric(t *testing.T) {
	a, b := loc(51.5, -0.12), loc(48.85, 2.35)
	if d1, d2 := Distance(a, b), Distance(b, a); math.Abs(d1-d2) > 1e-9 {
		t.Errorf("Distance not symmetric: %f vs %f", d1, d2)
	}
}

func TestValidRanges(t *testing.T) {
	if !ValidLatitude(90) || !ValidLatitude(-90) || ValidLatitude(90.0001) {
		t.Error("latitude bounds wrong")
	}
	if !ValidLongitude(180) || !ValidLongitude(-180) || ValidLongitude(-180.5) {
		t.Error("longitude bounds wrong")
	}
}

func TestCell_EdgesEncode(t *testing.T) {
	for _, p := range []models.Location{loc(90, 0), loc(-90, 0), loc(0, 180), loc(0, -180)} {
		h := Cell(p)
		if len(h) != CellPrecision {
			t.Errorf("Cell(%v) = %q, want %d chars", p, h, CellPrecision)
		}
	}
	if Cell(loc(10, 180)) != Cell(loc(10, -180)) {
		t.Error("180 and -180 should share a cell")
	}
}

func TestCover_RespectsMaxCells(t *testing.T) {
	for _, r := range []float64{1, 150, 5000, 50000} {
		cells := Cover(loc(40, -74), r, 16)
		if len(cells) == 0 || len(cells) > 16 {
			t.Errorf("radius %v: %d cells", r, len(cells))
		}
	}
}

func covered(cells []string, h string) bool {
	for _, c := range cells {
		if strings.HasPrefix(h, c) {
			return true
		}
	}
	return false
}

// Every point within the radius must fall inside one of the cover cells.
func TestCover_ContainsAllPointsInRadius(t *testing.T) {
	centers := []models.Location{
		loc(40, -74),
		loc(0, 0),
		loc(-33.86, 151.2),
		loc(0.01, 179.995), // antimeridian
		loc(-12, -179.99),  // antimeridian, other side
		loc(89.99, 45),     // near north pole
		loc(-89.95, -120),  // near south pole
		loc(90, 0),         // on the pole
		loc(64.1, -21.9),
	}
	radii := []float64{50, 500, 5000, 50000}
	rng := rand.New(rand.NewSource(7))

	for _, c := range centers {
		for _, r := range radii {
			cells := Cover(c, r, DefaultMaxCells)
			for i := 0; i < 400; i++ {
				p := randomPointWithin(rng, c, r)
				if d := Distance(c, p); d > r {
					continue
				}
				if !covered(cells, Cell(p)) {
					t.Fatalf("center %v radius %v: point %v (cell %s) not covered by %v", c, r, p, Cell(p), cells)
				}
			}
		}
	}
}

// randomPointWithin walks a random bearing for a random fraction of r,
// biased towards the rim where misses would show up.
func randomPointWithin(rng *rand.Rand, c models.Location, r float64) models.Location {
	frac := 1 - rng.Float64()*rng.Float64()
	delta := frac * r / EarthRadiusMeters
	theta := rng.Float64() * 2 * math.Pi

	lat1 := toRad(c.Latitude)
	lng1 := toRad(c.Longitude)
	lat2 := math.Asin(math.Sin(lat1)*math.Cos(delta) + math.Cos(lat1)*math.Sin(delta)*math.Cos(theta))
	lng2 := lng1 + math.Atan2(math.Sin(theta)*math.Sin(delta)*math.Cos(lat1), math.Cos(delta)-math.Sin(lat1)*math.Sin(lat2))

	lng := math.Mod(toDeg(lng2)+540, 360) - 180
	return loc(toDeg(lat2), lng)
}
