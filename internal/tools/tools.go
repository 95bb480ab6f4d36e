// Package tools implements the functions exposed to agents: capital lookup,
// timezone resolution, current time, weather and web search.
package tools

import (
	"agentdemos/internal/config"
)

// Toolbox bundles the upstream clients used by the tools.
type Toolbox struct {
	TimeZones *TimeZoneResolver
	Clock     *Clock
	Weather   *OpenMeteo
	Search    *DuckDuckGo
}

// New builds a Toolbox from configuration.
func New(cfg config.ToolsConfig) *Toolbox {
	h := newHTTPJSON(cfg.HTTPTimeout, cfg.UserAgent)
	return &Toolbox{
		TimeZones: &TimeZoneResolver{
			Geocoder: NewNominatim(cfg.NominatimURL, h),
			Zones:    &lazyZoneFinder{},
		},
		Clock: &Clock{
			BaseURL:       cfg.WorldTimeURL,
			LocalFallback: cfg.LocalTimeOnFail,
			http:          h,
		},
		Weather: &OpenMeteo{
			ForecastURL:  cfg.OpenMeteoURL,
			GeocodingURL: cfg.GeocodingURL,
			http:         h,
		},
		Search: &DuckDuckGo{
			BaseURL: cfg.DuckDuckGoURL,
			http:    h,
		},
	}
}
