package crop

import (
	"fmt"
	"math"
	"sort"
)

// Score contributions. The out-of-range penalty must outweigh every positive
// contribution combined so that a single hard-gate failure excludes the crop.
const (
	absoluteWeight  = 2
	hardGatePenalty = -100

	plantingBonus   = 34
	harvestingBonus = 34
)

// Optimal-range weights per factor.
const (
	temperatureWeight = 7
	rainfallWeight    = 5
	soilPHWeight      = 7
	latitudeWeight    = 5
	altitudeWeight    = 9
)

type factor struct {
	name      string
	weight    int
	tolerance func(Record) Tolerance
	value     func(Reading) float64
}

var factors = []factor{
	{"temperature", temperatureWeight, func(r Record) Tolerance { return r.Temperature }, func(r Reading) float64 { return r.Temperature }},
	{"rainfall", rainfallWeight, func(r Record) Tolerance { return r.Rainfall }, func(r Reading) float64 { return r.Rainfall }},
	{"soil pH", soilPHWeight, func(r Record) Tolerance { return r.SoilPH }, func(r Reading) float64 { return r.SoilPH }},
	{"latitude", latitudeWeight, func(r Record) Tolerance { return r.Latitude }, func(r Reading) float64 { return r.Latitude }},
	{"altitude", altitudeWeight, func(r Record) Tolerance { return r.Altitude }, func(r Reading) float64 { return r.Altitude }},
}

func factorScore(v float64, t Tolerance, optimalWeight int) int {
	switch {
	case t.Optimal.Contains(v):
		return optimalWeight
	case t.Absolute.Contains(v):
		return absoluteWeight
	default:
		return hardGatePenalty
	}
}

// Validate rejects readings the scoring rule is not defined for.
func (r Reading) Validate() error {
	for _, f := range factors {
		v := f.value(r)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s is %v", ErrInvalidReading, f.name, v)
		}
	}
	if r.Month < 1 || r.Month > 12 {
		return fmt.Errorf("%w: month %d outside 1-12", ErrInvalidReading, r.Month)
	}
	return nil
}

// Score computes the additive suitability score of one crop for a reading.
// The reading is assumed valid.
func Score(rec Record, r Reading) int {
	score := 0
	for _, f := range factors {
		score += factorScore(f.value(r), f.tolerance(rec), f.weight)
	}
	if rec.Planting.Contains(r.Month) {
		score += plantingBonus
	}
	if rec.Harvesting.Contains(r.Month) {
		score += harvestingBonus
	}
	return score
}

// Recommend scores every crop in the catalog and returns those with a
// positive score, best first. Equal scores keep catalog order. An empty
// catalog yields an empty, non-nil list.
func Recommend(r Reading, c *Catalog) ([]ScoredCrop, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	out := make([]ScoredCrop, 0)
	if c == nil {
		return out, nil
	}
	for _, rec := range c.records {
		if s := Score(rec, r); s > 0 {
			out = append(out, ScoredCrop{Crop: rec.Name, Score: s, Image: rec.Image})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out, nil
}
