package tools

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/chainguard-dev/clog"
)

// Sources reported in CityTime.Source.
const (
	SourceWorldTimeAPI = "worldtimeapi"
	SourceLocal        = "local"
)

// CityTime is a city name paired with its current time.
type CityTime struct {
	Name   string `json:"name" description:"City name against which time value is set"`
	Time   string `json:"time" description:"Time of the city, e.g. '2025-11-08T10:42:49.247759-06:00'"`
	Source string `json:"source,omitempty"`
}

// Clock fetches current time for IANA timezones from worldtimeapi.
type Clock struct {
	BaseURL string
	// LocalFallback computes the time from the local tz database when the
	// API cannot be reached.
	LocalFallback bool
	Now           func() time.Time

	http httpJSON
}

type worldTimeResponse struct {
	Datetime string `json:"datetime"`
	Timezone string `json:"timezone"`
}

// CurrentTime returns the current time in timezone for city.
func (c *Clock) CurrentTime(ctx context.Context, city, timezone string) (CityTime, error) {
	timezone = strings.TrimSpace(timezone)
	if timezone == "" {
		return CityTime{}, errors.New("parameter 'timezone' must be a non-empty IANA timezone string, " +
			"for example 'Asia/Karachi' or 'Asia/Dubai'")
	}

	// Only names the tz database knows reach the URL path.
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return CityTime{}, fmt.Errorf("unknown IANA timezone %q: %w", timezone, err)
	}

	var resp worldTimeResponse
	err = c.http.get(ctx, c.BaseURL, "/api/timezone/"+escapeSegments(timezone), nil, &resp)
	if err == nil && resp.Datetime != "" {
		return CityTime{Name: city, Time: resp.Datetime, Source: SourceWorldTimeAPI}, nil
	}
	if err == nil {
		err = fmt.Errorf("worldtimeapi returned no datetime for %s", timezone)
	}
	if !c.LocalFallback {
		return CityTime{}, fmt.Errorf("current time for %s: %w", timezone, err)
	}

	clog.FromContext(ctx).With("timezone", timezone).
		With("error", err.Error()).
		Warn("worldtimeapi unavailable, using local timezone data")

	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	return CityTime{
		Name:   city,
		Time:   now().In(loc).Format("2006-01-02T15:04:05.000000-07:00"),
		Source: SourceLocal,
	}, nil
}

func escapeSegments(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
