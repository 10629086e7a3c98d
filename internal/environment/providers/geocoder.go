package providers

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/kelvins/geocoder"
	"github.com/sony/gobreaker"

	"github.com/i474232898/crop-recommendation/internal/environment"
)

// The geocoder package keeps its API key in a package variable.
var geocoderKeyOnce sync.Once

// GoogleGeocoder resolves coordinates into a place name via Google reverse geocoding.
type GoogleGeocoder struct {
	circuit *gobreaker.CircuitBreaker
	reverse func(geocoder.Location) ([]geocoder.Address, error)
}

// NewGoogleGeocoder returns nil when apiKey is empty so callers can pass the
// result straight to environment.NewGateway.
func NewGoogleGeocoder(apiKey string) environment.PlaceResolver {
	if apiKey == "" {
		return nil
	}
	geocoderKeyOnce.Do(func() {
		geocoder.ApiKey = apiKey
	})
	return &GoogleGeocoder{
		circuit: newCircuitBreaker("geocoder"),
		reverse: geocoder.GeocodingReverse,
	}
}

func (g *GoogleGeocoder) ResolvePlace(ctx context.Context, loc environment.Location) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	result, err := g.circuit.Execute(func() (interface{}, error) {
		return g.reverse(geocoder.Location{Latitude: loc.Lat, Longitude: loc.Lon})
	})
	if err != nil {
		return "", fmt.Errorf("reverse geocode %s: %w", loc.Key(), err)
	}

	addresses, _ := result.([]geocoder.Address)
	if len(addresses) == 0 {
		return "", fmt.Errorf("reverse geocode %s: %w", loc.Key(), errNoData)
	}
	return placeName(addresses[0]), nil
}

func placeName(a geocoder.Address) string {
	if a.FormattedAddress != "" {
		return a.FormattedAddress
	}
	var parts []string
	for _, p := range []string{a.City, a.State, a.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}
