package geocode

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
)

var ErrNotFound = errors.New("geocode not found")

// Unknown is reported for address parts the geocoder could not resolve.
const Unknown = "-"

type Address struct {
	Area     string `json:"area"`
	District string `json:"district"`
	Full     string `json:"address"`
}

type ReverseGeocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (Address, error)
}

func ValidCoordinates(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// cacheKey rounds to ~11m so jittery GPS fixes share a lookup.
func cacheKey(lat, lon float64) string {
	return fmt.Sprintf("%.4f,%.4f", lat, lon)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return Unknown
}
