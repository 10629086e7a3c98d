package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/crop-recommendation/internal/environment"
)

// Refresher re-resolves the environment for a location.
type Refresher interface {
	Refresh(ctx context.Context, loc environment.Location) (environment.Snapshot, error)
}

// Scheduler periodically refreshes environment snapshots for watch locations
// so recommendations for them are served from the store.
type Scheduler struct {
	scheduler *gocron.Scheduler
	service   Refresher
	locations []environment.Location
	interval  time.Duration
	timeout   time.Duration
}

// New creates a new Scheduler.
func New(locations []environment.Location, interval time.Duration, service Refresher) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		service:   service,
		locations: locations,
		interval:  interval,
		timeout:   30 * time.Second,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
// The first run happens immediately.
func (s *Scheduler) Start() error {
	if len(s.locations) == 0 {
		log.Println("scheduler: no watch locations configured; nothing to schedule")
		return nil
	}

	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 30
	}

	_, err := s.scheduler.Every(minutes).Minutes().Do(s.runOnce)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

func (s *Scheduler) runOnce() {
	log.Println("scheduler: running environment refresh job")

	var wg sync.WaitGroup
	for _, loc := range s.locations {
		wg.Add(1)
		go func(loc environment.Location) {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
			defer cancel()

			snap, err := s.service.Refresh(ctx, loc)
			if err != nil {
				log.Printf("scheduler: refresh failed for %s: %v", loc.Key(), err)
				return
			}
			if len(snap.Fallbacks) > 0 {
				log.Printf("scheduler: %s refreshed with fallbacks for %v", loc.Key(), snap.Fallbacks)
			}
		}(loc)
	}
	wg.Wait()
	log.Println("scheduler: completed environment refresh job")
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
