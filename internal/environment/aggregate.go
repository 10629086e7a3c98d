package environment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"sync"
)

// MeanSource queries several sources for the same factor concurrently and
// averages the successful, finite values.
type MeanSource struct {
	sources []Source
}

// MeanOf combines sources. With a single source it returns that source unchanged;
// with none it returns nil.
func MeanOf(sources ...Source) Source {
	var live []Source
	for _, s := range sources {
		if s != nil {
			live = append(live, s)
		}
	}
	switch len(live) {
	case 0:
		return nil
	case 1:
		return live[0]
	}
	return &MeanSource{sources: live}
}

func (m *MeanSource) Name() string {
	names := make([]string, 0, len(m.sources))
	for _, s := range m.sources {
		names = append(names, s.Name())
	}
	return "mean(" + strings.Join(names, ",") + ")"
}

func (m *MeanSource) Fetch(ctx context.Context, loc Location) (float64, error) {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		sum  float64
		n    int
		errs []error
	)

	for _, s := range m.sources {
		wg.Add(1)
		go func(s Source) {
			defer wg.Done()

			v, err := s.Fetch(ctx, loc)
			if err == nil && (math.IsNaN(v) || math.IsInf(v, 0)) {
				err = fmt.Errorf("non-finite value %v", v)
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// Log and continue; we want partial success when possible.
				log.Printf("source %s fetch failed for %s: %v", s.Name(), loc.Key(), err)
				errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
				return
			}
			sum += v
			n++
		}(s)
	}

	wg.Wait()

	if n == 0 {
		return 0, errors.Join(errs...)
	}
	return sum / float64(n), nil
}
