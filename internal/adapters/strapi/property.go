package strapi

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/samirrijal/casaview/internal/core/domain"
)

type listResponse struct {
	Data []property `json:"data"`
	Meta struct {
		Pagination struct {
			Page      int `json:"page"`
			PageSize  int `json:"pageSize"`
			PageCount int `json:"pageCount"`
			Total     int `json:"total"`
		} `json:"pagination"`
	} `json:"meta"`
}

// property is the Strapi v5 flat document for the property collection.
type property struct {
	ID            int64             `json:"id"`
	DocumentID    string            `json:"documentId"`
	Title         string            `json:"Title"`
	Description   json.RawMessage   `json:"Description"`
	Price         float64           `json:"Price"`
	Location      string            `json:"Location"`
	Bedrooms      *int              `json:"Bedrooms"`
	Bathrooms     *int              `json:"Bathrooms"`
	Area          *float64          `json:"Area"`
	ListingStatus string            `json:"Listing_Status"` // legacy name of Listing_Type
	ListingType   string            `json:"Listing_Type"`
	CurrentStatus string            `json:"Current_Status"`
	Slug          string            `json:"Slug"`
	PropertyType  string            `json:"Property_Type"`
	Latitude      domain.Coordinate `json:"Latitude"`
	Longitude     domain.Coordinate `json:"Longitude"`
	Images        []image           `json:"Images"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
	PublishedAt   *time.Time        `json:"publishedAt"`
}

type image struct {
	ID              int64                     `json:"id"`
	Name            string                    `json:"name"`
	AlternativeText *string                   `json:"alternativeText"`
	URL             string                    `json:"url"`
	Formats         map[string]imageFormatRef `json:"formats"`
}

type imageFormatRef struct {
	URL string `json:"url"`
}

func (p property) toDomain(baseURL string) domain.Listing {
	t := p.ListingType
	if t == "" {
		t = p.ListingStatus
	}

	l := domain.Listing{
		ID:           p.ID,
		DocumentID:   p.DocumentID,
		Slug:         p.Slug,
		Title:        p.Title,
		Description:  plainText(p.Description),
		Price:        p.Price,
		Location:     p.Location,
		Bedrooms:     p.Bedrooms,
		Bathrooms:    p.Bathrooms,
		AreaSqFt:     p.Area,
		Type:         domain.ListingType(t),
		Status:       p.CurrentStatus,
		PropertyType: p.PropertyType,
		Latitude:     p.Latitude,
		Longitude:    p.Longitude,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
		PublishedAt:  p.PublishedAt,
	}

	for _, img := range p.Images {
		out := domain.Image{
			ID:   img.ID,
			Name: img.Name,
			URL:  resolveURL(baseURL, img.URL),
		}
		if img.AlternativeText != nil {
			out.AlternativeText = *img.AlternativeText
		}
		if len(img.Formats) > 0 {
			out.Formats = make(map[string]string, len(img.Formats))
			for name, f := range img.Formats {
				out.Formats[name] = resolveURL(baseURL, f.URL)
			}
		}
		l.Images = append(l.Images, out)
	}
	return l
}

// resolveURL prefixes upload paths with the Strapi host. Absolute URLs, as
// returned by cloud upload providers, are kept.
func resolveURL(baseURL, u string) string {
	if u == "" || strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	if !strings.HasPrefix(u, "/") {
		u = "/" + u
	}
	return baseURL + u
}

// plainText accepts either a plain string or a rich-text blocks document and
// returns the concatenated text.
func plainText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var blocks []struct {
		Children []struct {
			Text string `json:"text"`
		} `json:"children"`
	}
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return ""
	}
	paragraphs := make([]string, 0, len(blocks))
	for _, b := range blocks {
		var sb strings.Builder
		for _, c := range b.Children {
			sb.WriteString(c.Text)
		}
		if sb.Len() > 0 {
			paragraphs = append(paragraphs, sb.String())
		}
	}
	return strings.Join(paragraphs, "\n\n")
}
