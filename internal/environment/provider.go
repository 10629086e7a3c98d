package environment

import (
	"context"
	"time"
)

// Source abstracts one upstream lookup (e.g. WeatherAPI temperature, SoilGrids pH).
type Source interface {
	Name() string
	Fetch(ctx context.Context, loc Location) (float64, error)
}

// Sources groups the upstream used for each factor. A nil entry always
// resolves to the factor's fallback value.
type Sources struct {
	Temperature Source
	Rainfall    Source
	SoilPH      Source
	Altitude    Source
}

// PlaceResolver turns coordinates into a human readable place name.
type PlaceResolver interface {
	ResolvePlace(ctx context.Context, loc Location) (string, error)
}

// Store is the contract the in-memory store (and any future persistent store) must satisfy.
type Store interface {
	SaveSnapshot(loc Location, snapshot Snapshot)
	GetLatest(loc Location) (Snapshot, error)
	// GetLatestComplete returns the newest snapshot resolved without fallbacks.
	GetLatestComplete(loc Location) (Snapshot, error)
	GetRange(loc Location, from, to time.Time) ([]Snapshot, error)
}
