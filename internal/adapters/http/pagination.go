package http

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
)

const (
	defaultPageLimit = 100
	maxPageLimit     = 500
)

// PaginatedResponse wraps list results with pagination metadata.
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Pagination Pagination  `json:"pagination"`
}

// ListingPage is a page of visible listings. Pagination.Total counts the
// listings inside the viewport, TotalUnfiltered the whole set of the type.
type ListingPage struct {
	PaginatedResponse
	TotalUnfiltered int `json:"total_unfiltered"`
}

// Pagination contains offset-based pagination info.
type Pagination struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
	Total  int `json:"total"`
}

// parseWindow reads offset and limit, clamping them to sane values.
func parseWindow(c *fiber.Ctx) (offset, limit int) {
	offset = c.QueryInt("offset", 0)
	limit = c.QueryInt("limit", defaultPageLimit)
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > maxPageLimit {
		limit = defaultPageLimit
	}
	return offset, limit
}

// window slices items to the page described by p. Order is preserved.
func window[T any](items []T, p Pagination) []T {
	if p.Offset >= len(items) {
		return []T{}
	}
	end := p.Offset + p.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[p.Offset:end]
}

// SetLinkHeaders adds RFC 8288 Link headers for paginated responses. Query
// parameters other than offset and limit are carried over, so a page link
// keeps the type filter and viewport of the request.
func SetLinkHeaders(c *fiber.Ctx, p Pagination) {
	base := c.Path()

	var kept []string
	c.Request().URI().QueryArgs().VisitAll(func(k, v []byte) {
		key := string(k)
		if key == "offset" || key == "limit" {
			return
		}
		kept = append(kept, key+"="+string(v))
	})
	extra := ""
	if len(kept) > 0 {
		extra = "&" + strings.Join(kept, "&")
	}

	link := func(offset int, rel string) string {
		return fmt.Sprintf(`<%s?offset=%s&limit=%d%s>; rel="%s"`, base, strconv.Itoa(offset), p.Limit, extra, rel)
	}

	links := []string{link(0, "first")}
	if p.Offset > 0 {
		links = append(links, link(max(p.Offset-p.Limit, 0), "prev"))
	}
	if p.Offset+p.Limit < p.Total {
		links = append(links, link(p.Offset+p.Limit, "next"))
	}
	links = append(links, link(max(p.Total-p.Limit, 0), "last"))

	c.Append(fiber.HeaderLink, strings.Join(links, ", "))
}
