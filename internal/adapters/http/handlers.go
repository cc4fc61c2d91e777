package http

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/casaview/internal/core/domain"
	"github.com/samirrijal/casaview/internal/core/usecases"
)

var validate = validator.New()

// viewportQuery is the optional map viewport of a list request. The four
// edges come together or not at all.
type viewportQuery struct {
	North *float64 `query:"north" validate:"required_with=South East West,omitempty,gte=-90,lte=90"`
	South *float64 `query:"south" validate:"required_with=North East West,omitempty,gte=-90,lte=90"`
	East  *float64 `query:"east" validate:"required_with=North South West"`
	West  *float64 `query:"west" validate:"required_with=North South East"`
}

func (q viewportQuery) bounds() *domain.Bounds {
	if q.North == nil {
		return nil
	}
	return &domain.Bounds{North: *q.North, South: *q.South, East: *q.East, West: *q.West}
}

type nearbyQuery struct {
	Lat    *float64 `query:"lat" validate:"required,gte=-90,lte=90"`
	Lon    *float64 `query:"lon" validate:"required,gte=-180,lte=180"`
	Radius float64  `query:"radius" validate:"gte=0,lte=50000"`
	Limit  int      `query:"limit" validate:"gte=0,lte=50"`
}

func parseListingType(c *fiber.Ctx) (domain.ListingType, error) {
	t, ok := domain.ParseListingType(c.Query("type"))
	if !ok {
		return "", fmt.Errorf("unknown listing type %q (want buy, rent or all)", c.Query("type"))
	}
	return t, nil
}

func parseViewport(c *fiber.Ctx) (*domain.Bounds, error) {
	var q viewportQuery
	if err := c.QueryParser(&q); err != nil {
		return nil, fmt.Errorf("bounds must be numbers: %w", err)
	}
	if err := validate.Struct(q); err != nil {
		return nil, fmt.Errorf("north, south, east and west must be given together within range: %w", err)
	}
	return q.bounds(), nil
}

// ListListingsHandler returns the listings of a type that fall inside the
// optional viewport, in source order, paginated.
func ListListingsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		t, err := parseListingType(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		bounds, err := parseViewport(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		visible, total, err := deps.Listings.InViewport(c.UserContext(), t, bounds)
		if err != nil {
			return errFromDomain(c, err)
		}

		offset, limit := parseWindow(c)
		pg := Pagination{Offset: offset, Limit: limit, Total: len(visible)}
		SetLinkHeaders(c, pg)
		return c.JSON(ListingPage{
			PaginatedResponse: PaginatedResponse{Data: window(visible, pg), Pagination: pg},
			TotalUnfiltered:   total,
		})
	}
}

// FrameResponse is the initial framing box for a listing set. Box is null
// when no listing has a position.
type FrameResponse struct {
	Box *domain.Bounds `json:"box"`
	OK  bool           `json:"ok"`
}

// FrameHandler returns the box the map frames on first mount.
func FrameHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		t, err := parseListingType(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		box, ok, err := deps.Listings.Frame(c.UserContext(), t)
		if err != nil {
			return errFromDomain(c, err)
		}
		resp := FrameResponse{OK: ok}
		if ok {
			resp.Box = &box
		}
		return c.JSON(resp)
	}
}

// MarkersHandler returns the marker layer for a listing type, with the
// optional selected listing highlighted.
func MarkersHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		t, err := parseListingType(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		var selected *int64
		if raw := c.Query("selected"); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return errBadRequest(c, "selected must be a listing id")
			}
			selected = &id
		}

		markers, err := deps.Listings.Markers(c.UserContext(), t, selected)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(markers)
	}
}

// NearbyListingsHandler returns positioned listings within a radius of a
// point, closest first.
func NearbyListingsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := nearbyQuery{Radius: 5000, Limit: 20}
		if err := c.QueryParser(&q); err != nil {
			return errBadRequest(c, "lat, lon, radius and limit must be numbers")
		}
		if err := validate.Struct(q); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) && len(verrs) > 0 {
				return errBadRequest(c, fmt.Sprintf("invalid %s", verrs[0].Field()))
			}
			return errBadRequest(c, err.Error())
		}

		nearby, err := deps.Listings.Nearby(c.UserContext(), *q.Lat, *q.Lon, q.Radius, q.Limit)
		if err != nil {
			return errFromDomain(c, err)
		}
		if nearby == nil {
			nearby = []usecases.NearbyListing{}
		}
		return c.JSON(nearby)
	}
}

// GetListingHandler returns a single listing by slug.
func GetListingHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		slug := c.Params("slug")
		if slug == "" {
			return errBadRequest(c, "slug is required")
		}
		l, err := deps.Listings.GetBySlug(c.UserContext(), slug)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(l)
	}
}

// MapConfig is what a client needs to bring up its map engine.
type MapConfig struct {
	Available     bool            `json:"available"`
	AccessToken   string          `json:"access_token,omitempty"`
	Center        domain.GeoPoint `json:"center"`
	Zoom          float64         `json:"zoom"`
	FocusZoom     float64         `json:"focus_zoom"`
	FitPadding    int             `json:"fit_padding"`
	FitDurationMS int64           `json:"fit_duration_ms"`
	FlyDurationMS int64           `json:"fly_duration_ms"`
	InitialFit    bool            `json:"initial_fit"`
}

// MapConfigHandler returns the camera defaults. Available is false when no
// access token is configured and clients should render the list only.
func MapConfigHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		m := deps.Map
		return c.JSON(MapConfig{
			Available:     m.AccessToken != "",
			AccessToken:   m.AccessToken,
			Center:        m.DefaultCenter,
			Zoom:          m.DefaultZoom,
			FocusZoom:     m.FocusZoom,
			FitPadding:    m.Fit.Padding,
			FitDurationMS: m.Fit.Duration.Milliseconds(),
			FlyDurationMS: m.FlyDuration.Milliseconds(),
			InitialFit:    m.InitialFit,
		})
	}
}
