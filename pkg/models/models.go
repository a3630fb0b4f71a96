package models

import "time"

// Location is a WGS-84 point.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// NewsItem is a short piece of news posted at a location.
type NewsItem struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Location  Location  `json:"location"`
	ImageRef  string    `json:"imageRef,omitempty"`
	Geohash   string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

// LocationPing is the last reported position of a device. Pings without a
// device id are stored as independent records.
type LocationPing struct {
	ID        string    `json:"id"`
	DeviceID  string    `json:"deviceId,omitempty"`
	Location  Location  `json:"location"`
	Geohash   string    `json:"-"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SortKey orders nearby results.
type SortKey string

const (
	SortDistance SortKey = "distance"
	SortRecency  SortKey = "recency"
)

// QueryRequest is a validated nearby query.
type QueryRequest struct {
	Point        Location
	RadiusMeters float64
	Sort         SortKey
	Page         int
	Limit        int
}

// NearbyNews is the projection returned to clients; it carries no identifiers.
type NearbyNews struct {
	Content    string    `json:"content"`
	DistanceKm float64   `json:"distanceKm"`
	CreatedAt  time.Time `json:"createdAt"`
	ImageRef   string    `json:"imageRef,omitempty"`
}

// QueryResult is one page of a nearby query.
type QueryResult struct {
	TotalMatches int          `json:"totalMatches"`
	Page         int          `json:"page"`
	Limit        int          `json:"limit"`
	TotalPages   int          `json:"totalPages"`
	Count        int          `json:"count"`
	Data         []NearbyNews `json:"data"`

	// ValidUntil is the earliest expiry among all matches, or the expiry of an
	// item created now when nothing matched.
	ValidUntil time.Time `json:"-"`
}
