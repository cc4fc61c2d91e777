package strapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/samirrijal/casaview/internal/core/domain"
	"github.com/samirrijal/casaview/internal/pkg/metrics"
	"github.com/samirrijal/casaview/internal/pkg/telemetry"
)

const (
	sourceName      = "strapi"
	defaultPageSize = 100
	maxPages        = 500
)

// Client implements ports.ListingSource against the Strapi REST API.
type Client struct {
	baseURL  string
	token    string
	pageSize int
	http     *http.Client
	breaker  *gobreaker.CircuitBreaker
	backoff  BackoffConfig
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithBackoff replaces the default retry policy.
func WithBackoff(b BackoffConfig) Option {
	return func(c *Client) { c.backoff = b }
}

// New creates a Strapi client. token may be empty for public content.
func New(baseURL, token string, timeout time.Duration, pageSize int, opts ...Option) *Client {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		token:    token,
		pageSize: pageSize,
		http:     &http.Client{Timeout: timeout},
		breaker:  newBreaker(sourceName),
		backoff: BackoffConfig{
			MaxRetries:      3,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// List fetches every published property, following Strapi pagination.
func (c *Client) List(ctx context.Context) ([]domain.Listing, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "strapi.List")
	defer span.End()
	span.SetAttributes(attribute.String(telemetry.AttrSource, sourceName))

	start := time.Now()
	listings, err := c.list(ctx)
	metrics.ObserveSourceFetch(sourceName, start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}
	span.SetAttributes(attribute.Int(telemetry.AttrListingCount, len(listings)))
	return listings, nil
}

func (c *Client) list(ctx context.Context) ([]domain.Listing, error) {
	var out []domain.Listing
	for page := 1; page <= maxPages; page++ {
		q := url.Values{}
		q.Set("populate", "Images")
		q.Set("sort", "id:asc")
		q.Set("pagination[page]", strconv.Itoa(page))
		q.Set("pagination[pageSize]", strconv.Itoa(c.pageSize))

		var body listResponse
		if err := c.getJSON(ctx, "/api/properties", q, &body); err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}
		for _, p := range body.Data {
			out = append(out, p.toDomain(c.baseURL))
		}

		if page >= body.Meta.Pagination.PageCount || len(body.Data) == 0 {
			return out, nil
		}
	}
	return out, nil
}

// GetBySlug fetches a single property by its slug.
func (c *Client) GetBySlug(ctx context.Context, slug string) (*domain.Listing, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "strapi.GetBySlug")
	defer span.End()
	span.SetAttributes(attribute.String(telemetry.AttrListingSlug, slug))

	q := url.Values{}
	q.Set("filters[Slug][$eq]", slug)
	q.Set("populate", "Images")

	start := time.Now()
	var body listResponse
	err := c.getJSON(ctx, "/api/properties", q, &body)
	metrics.ObserveSourceFetch(sourceName, start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}

	if len(body.Data) == 0 {
		return nil, fmt.Errorf("slug %q: %w", slug, domain.ErrNotFound)
	}
	l := body.Data[0].toDomain(c.baseURL)
	return &l, nil
}

// Ping checks that Strapi answers its health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/_health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("strapi health: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, dst any) error {
	u := c.baseURL + path + "?" + q.Encode()

	resp, err := c.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		return req, nil
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
