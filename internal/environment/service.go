package environment

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/i474232898/crop-recommendation/internal/crop"
	"github.com/i474232898/crop-recommendation/internal/metrics"
)

// Resolver turns a location into an environment snapshot.
type Resolver interface {
	Resolve(ctx context.Context, loc Location, now time.Time) (Snapshot, error)
}

// Service ties the gateway, the snapshot store and the crop catalog together.
type Service struct {
	resolver Resolver
	store    Store
	catalog  *crop.Catalog
	maxAge   time.Duration

	group singleflight.Group
	now   func() time.Time
}

// NewService creates a new Service. Snapshots younger than maxAge are reused
// instead of querying upstream again; maxAge <= 0 disables reuse.
func NewService(resolver Resolver, store Store, catalog *crop.Catalog, maxAge time.Duration) *Service {
	return &Service{
		resolver: resolver,
		store:    store,
		catalog:  catalog,
		maxAge:   maxAge,
		now:      time.Now,
	}
}

// Catalog returns the catalog recommendations are computed against.
func (s *Service) Catalog() *crop.Catalog {
	return s.catalog
}

// Recommend returns the ranked crops for a location.
func (s *Service) Recommend(ctx context.Context, loc Location) (Recommendation, error) {
	snap, err := s.snapshot(ctx, loc)
	if err != nil {
		return Recommendation{}, err
	}

	// A cached snapshot may predate a month boundary.
	reading := snap.Reading
	reading.Month = int(s.now().UTC().Month())

	crops, err := crop.Recommend(reading, s.catalog)
	if err != nil {
		return Recommendation{}, fmt.Errorf("recommend for %s: %w", loc.Key(), err)
	}
	metrics.RecordRecommendation(len(crops))

	snap.Reading = reading
	return Recommendation{Snapshot: snap, Crops: crops}, nil
}

func (s *Service) snapshot(ctx context.Context, loc Location) (Snapshot, error) {
	if err := loc.Validate(); err != nil {
		return Snapshot{}, err
	}

	if s.maxAge > 0 {
		if latest, err := s.store.GetLatestComplete(loc); err == nil && s.now().Sub(latest.Timestamp) < s.maxAge {
			metrics.RecordSnapshotCache(true)
			return latest, nil
		}
	}
	metrics.RecordSnapshotCache(false)

	return s.Refresh(ctx, loc)
}

// Refresh resolves the location upstream and stores the snapshot. Concurrent
// refreshes of the same location share one upstream round. The round ignores
// the caller's cancellation; the resolver bounds it with its own timeout.
func (s *Service) Refresh(ctx context.Context, loc Location) (Snapshot, error) {
	shared := context.WithoutCancel(ctx)
	v, err, joined := s.group.Do(loc.Key(), func() (interface{}, error) {
		snap, err := s.resolver.Resolve(shared, loc, s.now())
		if err != nil {
			return Snapshot{}, err
		}
		if !snap.Complete() {
			log.Printf("INFO: %s resolved with failed sources %v; snapshot kept as history only", loc.Key(), snap.Fallbacks)
		}
		s.store.SaveSnapshot(loc, snap)
		return snap, nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	if joined {
		log.Printf("DEBUG: shared upstream resolve for %s", loc.Key())
	}
	return v.(Snapshot), nil
}

// History delegates to the underlying store.
func (s *Service) History(loc Location, from, to time.Time) ([]Snapshot, error) {
	if err := loc.Validate(); err != nil {
		return nil, err
	}
	return s.store.GetRange(loc, from, to)
}

// Latest delegates to the underlying store.
func (s *Service) Latest(loc Location) (Snapshot, error) {
	return s.store.GetLatest(loc)
}
