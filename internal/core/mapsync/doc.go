// Package mapsync keeps a listing list and an interactive map of the same
// listings consistent: one-shot initial framing, viewport filtering with
// antimeridian wraparound, and selection shared between cards and markers.
//
// Nothing in this package is safe for concurrent use. A Session and its parts
// are driven from a single event loop that also delivers every MapAdapter
// callback.
package mapsync
