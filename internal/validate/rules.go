package validate

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/nitesh/nearby_news/internal/geo"
	"github.com/nitesh/nearby_news/pkg/models"
)

const (
	MaxRadiusMeters  = 50000.0
	MaxContentLength = 500
	MaxLimit         = 100
	DefaultPage      = 1
	DefaultLimit     = 10
)

var v = validator.New()

// RawQuery is a nearby query before coercion.
type RawQuery struct {
	Lat    Number
	Lng    Number
	Radius Number
	Sort   string
	Page   Number
	Limit  Number
}

// ParseQuery coerces and validates a nearby query. Checks run in a fixed
// order and the first failure is returned: presence, numeric type, latitude,
// longitude, radius, page, limit.
func ParseQuery(raw RawQuery) (models.QueryRequest, error) {
	switch {
	case !raw.Lat.Set:
		return models.QueryRequest{}, fail(MissingParameter, "lat", "lat query parameter is required")
	case !raw.Lng.Set:
		return models.QueryRequest{}, fail(MissingParameter, "lng", "lng query parameter is required")
	case !raw.Radius.Set:
		return models.QueryRequest{}, fail(MissingParameter, "radius", "radius query parameter is required")
	}

	lat, ok := raw.Lat.Float()
	if !ok {
		return models.QueryRequest{}, fail(InvalidType, "lat", "lat must be a valid number")
	}
	lng, ok := raw.Lng.Float()
	if !ok {
		return models.QueryRequest{}, fail(InvalidType, "lng", "lng must be a valid number")
	}
	radius, ok := raw.Radius.Float()
	if !ok {
		return models.QueryRequest{}, fail(InvalidType, "radius", "radius must be a valid number")
	}
	page := DefaultPage
	if raw.Page.Set {
		if page, ok = raw.Page.Int(); !ok {
			return models.QueryRequest{}, fail(InvalidType, "page", "page must be an integer")
		}
	}
	limit := DefaultLimit
	if raw.Limit.Set {
		if limit, ok = raw.Limit.Int(); !ok {
			return models.QueryRequest{}, fail(InvalidType, "limit", "limit must be an integer")
		}
	}

	req := models.QueryRequest{
		Point:        models.Location{Latitude: lat, Longitude: lng},
		RadiusMeters: radius,
		Sort:         ParseSort(raw.Sort),
		Page:         page,
		Limit:        limit,
	}
	if err := Query(req); err != nil {
		return models.QueryRequest{}, err
	}
	return req, nil
}

// Query checks an already typed request with the same ordering as ParseQuery.
func Query(req models.QueryRequest) error {
	if !finite(req.Point.Latitude) || !finite(req.Point.Longitude) || !finite(req.RadiusMeters) {
		return fail(InvalidType, "point", "coordinates and radius must be finite numbers")
	}
	if err := checkLocation(req.Point, "lat", "lng"); err != nil {
		return err
	}
	if req.RadiusMeters <= 0 || req.RadiusMeters > MaxRadiusMeters {
		return fail(RadiusOutOfRange, "radius", "radius must be greater than 0 and at most 50000 metres")
	}
	if req.Page < 1 {
		return fail(PageOutOfRange, "page", "page must be 1 or greater")
	}
	if req.Limit < 1 || req.Limit > MaxLimit {
		return fail(LimitOutOfRange, "limit", "limit must be between 1 and 100")
	}
	return nil
}

// ParseSort maps client sort names onto a SortKey. Unknown values sort by
// distance.
func ParseSort(s string) models.SortKey {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "time", "latest", "recency", "recent", "newest":
		return models.SortRecency
	default:
		return models.SortDistance
	}
}

// RawNews is a create-news body before coercion.
type RawNews struct {
	Content   string
	Latitude  Number
	Longitude Number
}

// NewsInput is a validated create-news request.
type NewsInput struct {
	Content  string
	Location models.Location
}

// ParseNews coerces and validates a new item: content, presence, numeric
// type, latitude, longitude, content length.
func ParseNews(raw RawNews) (NewsInput, error) {
	content := strings.TrimSpace(raw.Content)
	if content == "" {
		return NewsInput{}, fail(ContentEmpty, "content", "Content is required")
	}
	loc, err := parseLocation(raw.Latitude, raw.Longitude)
	if err != nil {
		return NewsInput{}, err
	}
	in := NewsInput{Content: content, Location: loc}
	if err := News(in); err != nil {
		return NewsInput{}, err
	}
	return in, nil
}

// News checks a typed item.
func News(in NewsInput) error {
	if strings.TrimSpace(in.Content) == "" {
		return fail(ContentEmpty, "content", "Content is required")
	}
	if !finite(in.Location.Latitude) || !finite(in.Location.Longitude) {
		return fail(InvalidType, "location", "Latitude and Longitude must be numbers")
	}
	if err := checkLocation(in.Location, "latitude", "longitude"); err != nil {
		return err
	}
	if err := v.Var(in.Content, "max=500"); err != nil {
		return fail(ContentTooLong, "content", "Content must be at most 500 characters")
	}
	return nil
}

// RawPing is a location update before coercion.
type RawPing struct {
	Latitude  Number
	Longitude Number
	DeviceID  string
}

// PingInput is a validated location update.
type PingInput struct {
	DeviceID string
	Location models.Location
}

// ParsePing coerces and validates a location update.
func ParsePing(raw RawPing) (PingInput, error) {
	loc, err := parseLocation(raw.Latitude, raw.Longitude)
	if err != nil {
		return PingInput{}, err
	}
	in := PingInput{DeviceID: strings.TrimSpace(raw.DeviceID), Location: loc}
	if err := Ping(in); err != nil {
		return PingInput{}, err
	}
	return in, nil
}

// Ping checks a typed location update.
func Ping(in PingInput) error {
	if !finite(in.Location.Latitude) || !finite(in.Location.Longitude) {
		return fail(InvalidType, "location", "Latitude and Longitude must be numbers")
	}
	if err := checkLocation(in.Location, "latitude", "longitude"); err != nil {
		return err
	}
	if err := v.Var(in.DeviceID, "omitempty,max=64,printascii"); err != nil || strings.ContainsRune(in.DeviceID, ' ') {
		return fail(InvalidDeviceID, "deviceId", "deviceId must be at most 64 printable characters without spaces")
	}
	return nil
}

func parseLocation(latN, lngN Number) (models.Location, error) {
	if !latN.Set || !lngN.Set {
		return models.Location{}, fail(MissingParameter, "location", "Location with latitude and longitude is required")
	}
	lat, okLat := latN.Float()
	lng, okLng := lngN.Float()
	if !okLat || !okLng {
		return models.Location{}, fail(InvalidType, "location", "Latitude and Longitude must be numbers")
	}
	return models.Location{Latitude: lat, Longitude: lng}, nil
}

func checkLocation(p models.Location, latField, lngField string) error {
	if !geo.ValidLatitude(p.Latitude) {
		return fail(LatitudeOutOfRange, latField, "Latitude must be between -90 and 90")
	}
	if !geo.ValidLongitude(p.Longitude) {
		return fail(LongitudeOutOfRange, lngField, "Longitude must be between -180 and 180")
	}
	return nil
}
