// Package alerts turns a short-range weather forecast into warnings about
// conditions that harm standing crops.
package alerts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/i474232898/crop-recommendation/internal/common"
)

// Forecast window limits, in days.
const (
	MinDays     = 1
	MaxDays     = 10
	DefaultDays = 3
)

// Thresholds.
const (
	heavyRainDailyMM  = 20.0
	dryDailyMM        = 1.0
	hotMaxTempC       = 30.0
	heavyRainHourlyMM = 10.0
)

// WeatherAPI condition codes for ice pellets and hail showers.
var hailCodes = map[int]bool{1246: true, 1264: true, 1276: true}

// NoThreatsMessage is returned as the only alert when nothing is found.
const NoThreatsMessage = "No significant weather threats detected."

// ErrInvalidDays is returned when the requested window is outside MinDays-MaxDays.
var ErrInvalidDays = errors.New("invalid forecast days")

// Kind classifies an alert.
type Kind string

const (
	KindHeavyRain    Kind = "heavy_rain"
	KindDryHot       Kind = "dry_hot"
	KindHail         Kind = "hail"
	KindSuddenRain   Kind = "sudden_heavy_rain"
	KindThunderstorm Kind = "thunderstorm"
	KindNone         Kind = "none"
)

// Alert is one warning for a day or an hour.
type Alert struct {
	Kind    Kind   `json:"kind"`
	Time    string `json:"time,omitempty"`
	Message string `json:"message"`
}

// Hour is one hourly forecast step.
type Hour struct {
	Time      string
	PrecipMM  float64
	Condition string
}

// Day is one daily forecast entry.
type Day struct {
	Date          string
	MaxTempC      float64
	TotalPrecipMM float64
	Condition     string
	ConditionCode int
	Hours         []Hour
}

// Forecast is a list of days ordered by date.
type Forecast struct {
	Days []Day
}

// ForecastSource abstracts a forecast provider (WeatherAPI).
type ForecastSource interface {
	FetchForecast(ctx context.Context, lat, lon float64, days int) (Forecast, error)
}

// Analyze applies the alert rules to every day and hour of the forecast.
func Analyze(f Forecast) []Alert {
	var out []Alert

	for _, day := range f.Days {
		precip := day.TotalPrecipMM
		switch {
		case precip > heavyRainDailyMM:
			out = append(out, Alert{
				Kind:    KindHeavyRain,
				Time:    day.Date,
				Message: fmt.Sprintf("Alert for %s: Heavy rain expected (%v mm). Take precautions for flooding.", day.Date, precip),
			})
		case precip < dryDailyMM && day.MaxTempC > hotMaxTempC:
			out = append(out, Alert{
				Kind: KindDryHot,
				Time: day.Date,
				Message: fmt.Sprintf("Alert for %s: Dry and hot conditions (Precip: %v mm, Temp: %v°C). Monitor irrigation.",
					day.Date, precip, day.MaxTempC),
			})
		}

		cond := strings.ToLower(day.Condition)
		if common.HasAny(cond, "hail") || hailCodes[day.ConditionCode] {
			out = append(out, Alert{
				Kind:    KindHail,
				Time:    day.Date,
				Message: fmt.Sprintf("Alert for %s: Possible hail (%s). Protect crops with covers.", day.Date, cond),
			})
		}

		for _, h := range day.Hours {
			if h.PrecipMM > heavyRainHourlyMM {
				out = append(out, Alert{
					Kind:    KindSuddenRain,
					Time:    h.Time,
					Message: fmt.Sprintf("Alert for %s: Sudden heavy rain expected (%v mm).", h.Time, h.PrecipMM),
				})
			}
			if common.HasAny(strings.ToLower(h.Condition), "thunderstorm") {
				out = append(out, Alert{
					Kind:    KindThunderstorm,
					Time:    h.Time,
					Message: fmt.Sprintf("Alert for %s: Thunderstorm possible. Secure outdoor equipment.", h.Time),
				})
			}
		}
	}

	if len(out) == 0 {
		return []Alert{{Kind: KindNone, Message: NoThreatsMessage}}
	}
	return out
}

// Service fetches forecasts and analyzes them.
type Service struct {
	source ForecastSource
}

// NewService creates a new Service.
func NewService(source ForecastSource) *Service {
	return &Service{source: source}
}

// Alerts returns the alerts for the next days at the given coordinates.
func (s *Service) Alerts(ctx context.Context, lat, lon float64, days int) ([]Alert, error) {
	if days < MinDays || days > MaxDays {
		return nil, fmt.Errorf("%w: %d not in %d-%d", ErrInvalidDays, days, MinDays, MaxDays)
	}
	if s.source == nil {
		return nil, fmt.Errorf("no forecast source configured")
	}

	f, err := s.source.FetchForecast(ctx, lat, lon, days)
	if err != nil {
		return nil, fmt.Errorf("fetch forecast: %w", err)
	}
	return Analyze(f), nil
}
