package tools

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Weather is the current weather for a city.
type Weather struct {
	City          string  `json:"city"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	TemperatureC  float64 `json:"temperature_c"`
	WindSpeedKmh  float64 `json:"wind_speed_kmh"`
	WeatherCode   int     `json:"weather_code"`
	Condition     string  `json:"condition"`
	Precipitating bool    `json:"precipitating"`
	ObservedAt    string  `json:"observed_at"`
}

// OpenMeteo reads current conditions from the Open-Meteo APIs.
type OpenMeteo struct {
	ForecastURL  string
	GeocodingURL string

	http httpJSON
}

type meteoGeocodeResponse struct {
	Results []struct {
		Name      string  `json:"name"`
		Country   string  `json:"country"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"results"`
}

type meteoForecastResponse struct {
	CurrentWeather struct {
		Temperature float64 `json:"temperature"`
		WindSpeed   float64 `json:"windspeed"`
		WeatherCode int     `json:"weathercode"`
		Time        string  `json:"time"`
	} `json:"current_weather"`
}

// Geocode implements Geocoder with the Open-Meteo geocoding API.
func (o *OpenMeteo) Geocode(ctx context.Context, city string) (Coordinates, error) {
	var geo meteoGeocodeResponse
	q := url.Values{"name": {city}, "count": {"1"}, "format": {"json"}}
	if err := o.http.get(ctx, o.GeocodingURL, "/v1/search", q, &geo); err != nil {
		return Coordinates{}, fmt.Errorf("geocode %q: %w", city, err)
	}
	if len(geo.Results) == 0 {
		return Coordinates{}, fmt.Errorf("%w: no geocoding result for %q", ErrLocationNotFound, city)
	}
	r := geo.Results[0]
	name := r.Name
	if r.Country != "" {
		name += ", " + r.Country
	}
	return Coordinates{Name: name, Latitude: r.Latitude, Longitude: r.Longitude}, nil
}

// CurrentWeather returns the current conditions for city.
func (o *OpenMeteo) CurrentWeather(ctx context.Context, city string) (Weather, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return Weather{}, errors.New("parameter 'city' must be a non-empty city name, for example 'New York'")
	}

	coords, err := o.Geocode(ctx, city)
	if err != nil {
		return Weather{}, err
	}

	var fc meteoForecastResponse
	q := url.Values{
		"latitude":        {strconv.FormatFloat(coords.Latitude, 'f', 4, 64)},
		"longitude":       {strconv.FormatFloat(coords.Longitude, 'f', 4, 64)},
		"current_weather": {"true"},
	}
	if err := o.http.get(ctx, o.ForecastURL, "/v1/forecast", q, &fc); err != nil {
		return Weather{}, fmt.Errorf("forecast for %q: %w", city, err)
	}

	cw := fc.CurrentWeather
	return Weather{
		City:          coords.Name,
		Latitude:      coords.Latitude,
		Longitude:     coords.Longitude,
		TemperatureC:  cw.Temperature,
		WindSpeedKmh:  cw.WindSpeed,
		WeatherCode:   cw.WeatherCode,
		Condition:     WeatherCondition(cw.WeatherCode),
		Precipitating: isPrecipitation(cw.WeatherCode),
		ObservedAt:    cw.Time,
	}, nil
}

// WeatherCondition describes a WMO weather interpretation code.
func WeatherCondition(code int) string {
	switch {
	case code == 0:
		return "clear sky"
	case code >= 1 && code <= 3:
		return "partly cloudy"
	case code == 45 || code == 48:
		return "fog"
	case code >= 51 && code <= 57:
		return "drizzle"
	case code >= 61 && code <= 67:
		return "rain"
	case code >= 71 && code <= 77:
		return "snow"
	case code >= 80 && code <= 82:
		return "rain showers"
	case code == 85 || code == 86:
		return "snow showers"
	case code >= 95:
		return "thunderstorm"
	default:
		return "unknown"
	}
}

func isPrecipitation(code int) bool {
	return (code >= 51 && code <= 67) || (code >= 71 && code <= 86) || code >= 95
}
