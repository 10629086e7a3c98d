package environment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/i474232898/crop-recommendation/internal/crop"
	"github.com/i474232898/crop-recommendation/internal/metrics"
)

// ErrInvalidLocation is returned for coordinates outside the valid lat/lon ranges.
var ErrInvalidLocation = errors.New("invalid location")

var validate = validator.New()

// Validate checks that the coordinates are finite and in range.
func (l Location) Validate() error {
	if math.IsNaN(l.Lat) || math.IsNaN(l.Lon) {
		return fmt.Errorf("%w: coordinates must be numbers", ErrInvalidLocation)
	}
	if err := validate.Struct(l); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLocation, err)
	}
	return nil
}

// Fallbacks are the values substituted when a lookup fails or times out.
type Fallbacks struct {
	Temperature float64
	Rainfall    float64
	SoilPH      float64
	Altitude    float64
}

// DefaultFallbacks returns a neutral environment: mild temperature,
// moderate rainfall, slightly acidic soil at sea level.
func DefaultFallbacks() Fallbacks {
	return Fallbacks{
		Temperature: 20,
		Rainfall:    1000,
		SoilPH:      6.5,
		Altitude:    0,
	}
}

// Gateway resolves a location into the scalar readings the engine consumes.
type Gateway struct {
	sources   Sources
	fallbacks Fallbacks
	places    PlaceResolver
	timeout   time.Duration
}

// NewGateway creates a Gateway. places may be nil; timeout <= 0 means the
// caller's context alone bounds the lookups.
func NewGateway(sources Sources, fallbacks Fallbacks, places PlaceResolver, timeout time.Duration) *Gateway {
	return &Gateway{
		sources:   sources,
		fallbacks: fallbacks,
		places:    places,
		timeout:   timeout,
	}
}

type lookup struct {
	factor   Factor
	source   Source
	fallback float64
	value    float64
	used     bool // value came from the source
}

// Resolve queries the four sources concurrently and joins on all of them.
// A failed, slow or non-finite lookup is replaced by its fallback, so the
// only error Resolve returns is for an invalid location.
func (g *Gateway) Resolve(ctx context.Context, loc Location, now time.Time) (Snapshot, error) {
	if err := loc.Validate(); err != nil {
		return Snapshot{}, err
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	lookups := []*lookup{
		{factor: FactorTemperature, source: g.sources.Temperature, fallback: g.fallbacks.Temperature},
		{factor: FactorRainfall, source: g.sources.Rainfall, fallback: g.fallbacks.Rainfall},
		{factor: FactorSoilPH, source: g.sources.SoilPH, fallback: g.fallbacks.SoilPH},
		{factor: FactorAltitude, source: g.sources.Altitude, fallback: g.fallbacks.Altitude},
	}

	var (
		wg    sync.WaitGroup
		place string
	)

	for _, l := range lookups {
		wg.Add(1)
		go func(l *lookup) {
			defer wg.Done()
			l.value, l.used = fetchOrFallback(ctx, l, loc)
		}(l)
	}

	if g.places != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			name, err := withDeadline(ctx, func(ctx context.Context) (string, error) {
				return g.places.ResolvePlace(ctx, loc)
			})
			if err != nil {
				log.Printf("place lookup failed for %s: %v", loc.Key(), err)
				return
			}
			place = name
		}()
	}

	wg.Wait()

	snap := Snapshot{
		ID:        uuid.NewString(),
		Location:  loc,
		Place:     place,
		Timestamp: now.UTC(),
		Reading: crop.Reading{
			Latitude: loc.Lat,
			Month:    int(now.UTC().Month()),
		},
	}

	for _, l := range lookups {
		switch l.factor {
		case FactorTemperature:
			snap.Reading.Temperature = l.value
		case FactorRainfall:
			snap.Reading.Rainfall = l.value
		case FactorSoilPH:
			snap.Reading.SoilPH = l.value
		case FactorAltitude:
			snap.Reading.Altitude = l.value
		}
		if l.used {
			snap.Sources = append(snap.Sources, SourceContribution{Factor: l.factor, SourceName: l.source.Name()})
		} else {
			snap.Fallbacks = append(snap.Fallbacks, l.factor)
			if l.source != nil {
				snap.Degraded = true
			}
		}
	}

	return snap, nil
}

func fetchOrFallback(ctx context.Context, l *lookup, loc Location) (float64, bool) {
	if l.source == nil {
		metrics.RecordSourceFetch("none", string(l.factor), metrics.OutcomeDisabled, 0)
		metrics.RecordFallback(string(l.factor))
		return l.fallback, false
	}

	start := time.Now()
	v, err := withDeadline(ctx, func(ctx context.Context) (float64, error) {
		return l.source.Fetch(ctx, loc)
	})
	elapsed := time.Since(start)

	outcome := metrics.OutcomeOK
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		outcome = metrics.OutcomeTimeout
	case err != nil:
		outcome = metrics.OutcomeError
	case math.IsNaN(v) || math.IsInf(v, 0):
		outcome = metrics.OutcomeInvalid
		err = fmt.Errorf("non-finite value %v", v)
	}
	metrics.RecordSourceFetch(l.source.Name(), string(l.factor), outcome, elapsed)

	if err != nil {
		log.Printf("source %s %s lookup failed for %s: %v; using fallback %v",
			l.source.Name(), l.factor, loc.Key(), err, l.fallback)
		metrics.RecordFallback(string(l.factor))
		return l.fallback, false
	}
	return v, true
}

// withDeadline runs fn and stops waiting once ctx is done, even if fn does not
// honour cancellation itself.
func withDeadline[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		ch <- result{v, err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
