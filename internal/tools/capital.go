package tools

import (
	"errors"
	"fmt"
	"strings"

	"github.com/biter777/countries"
)

// ErrCapitalNotFound is returned when a country name cannot be resolved.
var ErrCapitalNotFound = errors.New("capital not found")

// CapitalName returns the capital of the given country. The country may be
// a common name or an ISO alpha-2/alpha-3 code.
func CapitalName(country string) (string, error) {
	code := countries.ByName(strings.TrimSpace(country))
	if code == countries.Unknown {
		return "", capitalNotFound(country)
	}
	capital := code.Capital()
	if !capital.IsValid() || capital == countries.CapitalUnknown {
		return "", capitalNotFound(country)
	}
	return capital.String(), nil
}

// CapitalNotFoundError is the message the model sees for an unknown country.
// It matches ErrCapitalNotFound.
type CapitalNotFoundError struct {
	Country string
}

func (e *CapitalNotFoundError) Error() string {
	return fmt.Sprintf("Could not find capital information for '%s'. "+
		"Please check the spelling or try a different country name.", e.Country)
}

// Is reports whether target is ErrCapitalNotFound.
func (e *CapitalNotFoundError) Is(target error) bool {
	return target == ErrCapitalNotFound
}

func capitalNotFound(country string) error {
	return &CapitalNotFoundError{Country: country}
}
