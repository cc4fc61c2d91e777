package telemetry

// Span attribute keys shared across packages.
const (
	AttrListingType  = "casaview.listing.type"
	AttrListingSlug  = "casaview.listing.slug"
	AttrListingCount = "casaview.listing.count"
	AttrSource       = "casaview.source"
	AttrCacheHit     = "casaview.cache.hit"
)
