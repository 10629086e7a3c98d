package environment

import (
	"fmt"
	"time"

	"github.com/i474232898/crop-recommendation/internal/crop"
)

// Factor names one of the environmental lookups the gateway performs.
type Factor string

const (
	FactorTemperature Factor = "temperature"
	FactorRainfall    Factor = "rainfall"
	FactorSoilPH      Factor = "soilPh"
	FactorAltitude    Factor = "altitude"
)

// Location is a point on the map for which crops are recommended.
type Location struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon float64 `json:"lon" validate:"gte=-180,lte=180"`
}

// Key returns a canonical string key for indexing this location in stores.
// Coordinates are rounded to 4 decimals (about 11 m).
func (l Location) Key() string {
	return fmt.Sprintf("%.4f:%.4f", l.Lat, l.Lon)
}

// Snapshot is the resolved environment for a location at a point in time.
type Snapshot struct {
	ID        string       `json:"id"`
	Location  Location     `json:"location"`
	Place     string       `json:"place,omitempty"`
	Timestamp time.Time    `json:"timestamp"` // always UTC
	Reading   crop.Reading `json:"reading"`

	// Fallbacks lists the factors whose upstream lookup failed and were
	// replaced by configured defaults.
	Fallbacks []Factor `json:"fallbacks,omitempty"`

	// Degraded is set when a configured source failed. Factors without a
	// source fall back on every resolve and do not degrade a snapshot.
	Degraded bool `json:"degraded"`

	// Sources contributing to this snapshot.
	Sources []SourceContribution `json:"sources,omitempty"`
}

// Complete reports whether every configured source answered, which makes the
// snapshot safe to reuse.
func (s Snapshot) Complete() bool {
	return !s.Degraded
}

// SourceContribution describes which upstream produced a factor value.
type SourceContribution struct {
	Factor     Factor `json:"factor"`
	SourceName string `json:"source"`
}

// Recommendation is a ranked crop list together with the environment it was computed from.
type Recommendation struct {
	Snapshot Snapshot          `json:"environment"`
	Crops    []crop.ScoredCrop `json:"crops"`
}
