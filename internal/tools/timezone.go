package tools

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/chainguard-dev/clog"
	"github.com/ringsaturn/tzf"
)

// ErrLocationNotFound is returned when a place name cannot be geocoded or
// has no timezone.
var ErrLocationNotFound = errors.New("location not found")

// Coordinates is a geocoded point.
type Coordinates struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Geocoder resolves a free-form place name to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (Coordinates, error)
}

// ZoneFinder maps coordinates to an IANA timezone name.
type ZoneFinder interface {
	GetTimezoneName(lng float64, lat float64) string
}

// Nominatim geocodes against an OpenStreetMap Nominatim endpoint.
type Nominatim struct {
	BaseURL string
	http    httpJSON
}

// NewNominatim returns a geocoder for the Nominatim search API.
func NewNominatim(baseURL string, h httpJSON) *Nominatim {
	return &Nominatim{BaseURL: baseURL, http: h}
}

type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Geocode returns the best match for query.
func (n *Nominatim) Geocode(ctx context.Context, query string) (Coordinates, error) {
	var places []nominatimPlace
	q := url.Values{
		"q":      {query},
		"format": {"json"},
		"limit":  {"1"},
	}
	if err := n.http.get(ctx, n.BaseURL, "/search", q, &places); err != nil {
		return Coordinates{}, fmt.Errorf("geocode %q: %w", query, err)
	}
	if len(places) == 0 {
		return Coordinates{}, fmt.Errorf("%w: no geocoding result for %q", ErrLocationNotFound, query)
	}

	p := places[0]
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return Coordinates{}, fmt.Errorf("parse latitude %q: %w", p.Lat, err)
	}
	lon, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return Coordinates{}, fmt.Errorf("parse longitude %q: %w", p.Lon, err)
	}
	return Coordinates{Name: p.DisplayName, Latitude: lat, Longitude: lon}, nil
}

// lazyZoneFinder loads the tzf polygon data on first use.
type lazyZoneFinder struct {
	once   sync.Once
	finder tzf.F
	err    error
}

func (l *lazyZoneFinder) load() (tzf.F, error) {
	l.once.Do(func() {
		l.finder, l.err = tzf.NewDefaultFinder()
	})
	return l.finder, l.err
}

func (l *lazyZoneFinder) GetTimezoneName(lng float64, lat float64) string {
	f, err := l.load()
	if err != nil {
		return ""
	}
	return f.GetTimezoneName(lng, lat)
}

// TimeZone is the result of a timezone lookup.
type TimeZone struct {
	Location  string  `json:"location"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timezone  string  `json:"timezone"`
}

// TimeZoneResolver combines a geocoder with an offline zone finder.
type TimeZoneResolver struct {
	Geocoder Geocoder
	Zones    ZoneFinder
}

// Resolve geocodes location and returns its IANA timezone.
func (r *TimeZoneResolver) Resolve(ctx context.Context, location string) (TimeZone, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return TimeZone{}, errors.New("parameter 'location' must be a non-empty place name, for example 'Tbilisi, Georgia'")
	}

	coords, err := r.Geocoder.Geocode(ctx, location)
	if err != nil {
		return TimeZone{}, err
	}

	zone := r.Zones.GetTimezoneName(coords.Longitude, coords.Latitude)
	if zone == "" {
		return TimeZone{}, fmt.Errorf("%w: no timezone at %.4f,%.4f for %q",
			ErrLocationNotFound, coords.Latitude, coords.Longitude, location)
	}

	clog.FromContext(ctx).With("location", location).
		With("timezone", zone).
		Info("Resolved timezone")

	return TimeZone{
		Location:  location,
		Latitude:  coords.Latitude,
		Longitude: coords.Longitude,
		Timezone:  zone,
	}, nil
}
