package geo

import (
	"fmt"
	"strings"
)

const (
	DefaultMapBaseURL = "https://www.openstreetmap.org"
	mapZoom           = 14
	embedHalfSpan     = 0.02
)

// MapLinker builds OpenStreetMap URLs for a coordinate pair.
type MapLinker struct {
	BaseURL string
}

func (m MapLinker) base() string {
	if m.BaseURL == "" {
		return DefaultMapBaseURL
	}
	return strings.TrimRight(m.BaseURL, "/")
}

// ViewURL opens the interactive map centred on the point.
func (m MapLinker) ViewURL(lat, lon float64) string {
	la, lo := formatCoord(lat), formatCoord(lon)
	return fmt.Sprintf("%s/?mlat=%s&mlon=%s#map=%d/%s/%s", m.base(), la, lo, mapZoom, la, lo)
}

// EmbedURL is an embeddable map of a small box around the point.
func (m MapLinker) EmbedURL(lat, lon float64) string {
	return fmt.Sprintf("%s/export/embed.html?bbox=%s,%s,%s,%s&layer=mapnik&marker=%s,%s",
		m.base(),
		formatCoord(lon-embedHalfSpan),
		formatCoord(lat-embedHalfSpan),
		formatCoord(lon+embedHalfSpan),
		formatCoord(lat+embedHalfSpan),
		formatCoord(lat),
		formatCoord(lon),
	)
}

func ViewURL(lat, lon float64) string { return MapLinker{}.ViewURL(lat, lon) }

func EmbedURL(lat, lon float64) string { return MapLinker{}.EmbedURL(lat, lon) }
