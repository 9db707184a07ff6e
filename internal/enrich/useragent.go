// Package enrich provides the black-box lookups that annotate clicks with
// country, device class, and browser family.
package enrich

import (
	"strings"

	"github.com/mileusna/useragent"
)

// ParseUserAgent returns (device class, browser family) for a raw
// User-Agent string. Unknown inputs map to ("pc", "other").
func ParseUserAgent(raw string) (device, browser string) {
	if raw == "" {
		return "pc", "other"
	}

	ua := useragent.Parse(raw)

	switch {
	case ua.Mobile:
		device = "mobile"
	case ua.Tablet:
		device = "tablet"
	default:
		device = "pc"
	}

	browser = strings.ToLower(ua.Name)
	if browser == "" {
		browser = "other"
	}

	return device, browser
}
