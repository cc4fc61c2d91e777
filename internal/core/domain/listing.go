package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a listing does not exist in the content source.
	ErrNotFound = errors.New("listing not found")

	// ErrSourceUnavailable wraps failures to reach the content source.
	ErrSourceUnavailable = errors.New("listing source unavailable")
)

// PlaceholderImage is served when a listing has no images.
const PlaceholderImage = "/placeholder-property.jpg"

const sqftToSquareMeters = 0.092903

// ListingType is the commercial kind of a listing.
type ListingType string

const (
	ListingForSale ListingType = "For Sale"
	ListingForRent ListingType = "For Rent"
)

// ParseListingType maps the short page names used by the frontend ("buy",
// "rent") as well as the stored labels onto a ListingType. The empty string and
// "all" return "" meaning no filter.
func ParseListingType(s string) (ListingType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return "", true
	case "buy", "sale", "for sale":
		return ListingForSale, true
	case "rent", "for rent":
		return ListingForRent, true
	}
	return "", false
}

// Listing is a single property shown both as a card and as a map marker.
type Listing struct {
	ID           int64       `json:"id"`
	DocumentID   string      `json:"document_id,omitempty"`
	Slug         string      `json:"slug"`
	Title        string      `json:"title"`
	Description  string      `json:"description,omitempty"`
	Price        float64     `json:"price"`
	Location     string      `json:"location,omitempty"`
	Bedrooms     *int        `json:"bedrooms,omitempty"`
	Bathrooms    *int        `json:"bathrooms,omitempty"`
	AreaSqFt     *float64    `json:"area_sqft,omitempty"`
	Type         ListingType `json:"listing_type,omitempty"`
	Status       string      `json:"status,omitempty"`
	PropertyType string      `json:"property_type,omitempty"`
	Latitude     Coordinate  `json:"latitude"`
	Longitude    Coordinate  `json:"longitude"`
	Images       []Image     `json:"images,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
	PublishedAt  *time.Time  `json:"published_at,omitempty"`
}

// Image is a listing photo with its resolved URLs.
type Image struct {
	ID              int64             `json:"id"`
	Name            string            `json:"name,omitempty"`
	AlternativeText string            `json:"alternative_text,omitempty"`
	URL             string            `json:"url"`
	Formats         map[string]string `json:"formats,omitempty"` // large, medium, small, thumbnail
}

// Position returns the listing's coordinate when both halves are present and finite.
func (l Listing) Position() (GeoPoint, bool) {
	if !l.Latitude.Valid || !l.Longitude.Valid {
		return GeoPoint{}, false
	}
	return GeoPoint{Lat: l.Latitude.Value, Lng: l.Longitude.Value}, true
}

// AreaSquareMeters converts the stored square-foot area, rounded to the nearest m².
func (l Listing) AreaSquareMeters() (int, bool) {
	if l.AreaSqFt == nil || *l.AreaSqFt <= 0 {
		return 0, false
	}
	return int(math.Round(*l.AreaSqFt * sqftToSquareMeters)), true
}

// CoverImage returns the first image URL or the placeholder.
func (l Listing) CoverImage() string {
	if len(l.Images) > 0 && l.Images[0].URL != "" {
		return l.Images[0].URL
	}
	return PlaceholderImage
}

// Label is the badge text shown on cards.
func (l Listing) Label() string {
	if l.Type != "" {
		return string(l.Type)
	}
	return "Available"
}

// Summary is the popup payload anchored on a marker.
type Summary struct {
	ID       int64    `json:"id"`
	Slug     string   `json:"slug"`
	Title    string   `json:"title"`
	Price    float64  `json:"price"`
	Location string   `json:"location,omitempty"`
	Position GeoPoint `json:"position"`
}

// Summarize builds the popup payload for l.
func (l Listing) Summarize() Summary {
	p, _ := l.Position()
	return Summary{
		ID:       l.ID,
		Slug:     l.Slug,
		Title:    l.Title,
		Price:    l.Price,
		Location: l.Location,
		Position: p,
	}
}

// Coordinate is a degree value that the content store may deliver as a JSON
// number, a numeric string, or null. Anything unparseable or non-finite is
// treated as absent rather than as a decoding error.
type Coordinate struct {
	Value float64
	Valid bool
}

// NewCoordinate returns a valid coordinate for v, or an absent one if v is not finite.
func NewCoordinate(v float64) Coordinate {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Coordinate{}
	}
	return Coordinate{Value: v, Valid: true}
}

// ParseCoordinate parses a numeric string.
func ParseCoordinate(s string) Coordinate {
	s = strings.TrimSpace(s)
	if s == "" {
		return Coordinate{}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Coordinate{}
	}
	return NewCoordinate(v)
}

// Ptr returns the value as a pointer, nil when absent. Used for nullable columns.
func (c Coordinate) Ptr() *float64 {
	if !c.Valid {
		return nil
	}
	v := c.Value
	return &v
}

// CoordinateFromPtr is the inverse of Ptr.
func CoordinateFromPtr(p *float64) Coordinate {
	if p == nil {
		return Coordinate{}
	}
	return NewCoordinate(*p)
}

func (c *Coordinate) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*c = Coordinate{}
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			*c = Coordinate{}
			return nil
		}
		*c = ParseCoordinate(s)
		return nil
	}
	*c = ParseCoordinate(string(b))
	return nil
}

func (c Coordinate) MarshalJSON() ([]byte, error) {
	if !c.Valid {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, c.Value, 'f', -1, 64), nil
}
