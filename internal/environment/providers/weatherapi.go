package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sony/gobreaker"

	"github.com/i474232898/crop-recommendation/internal/alerts"
	"github.com/i474232898/crop-recommendation/internal/environment"
)

// WeatherAPIProvider reads current temperature and daily forecasts from WeatherAPI.com.
type WeatherAPIProvider struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewWeatherAPIProvider(opts Options, apiKey string) *WeatherAPIProvider {
	return &WeatherAPIProvider{
		name:    "weatherapi",
		apiKey:  apiKey,
		baseURL: "https://api.weatherapi.com/v1",
		httpCfg: newHTTPConfig(opts),
		circuit: newCircuitBreaker("weatherapi"),
	}
}

func (p *WeatherAPIProvider) Name() string {
	return p.name
}

func (p *WeatherAPIProvider) get(ctx context.Context, path string, values url.Values, out interface{}) error {
	if p.apiKey == "" {
		return fmt.Errorf("weatherapi api key is not configured")
	}

	buildRequest := func() (*http.Request, error) {
		q := url.Values{}
		for k, v := range values {
			q[k] = v
		}
		q.Set("key", p.apiKey)

		u := fmt.Sprintf("%s/%s?%s", p.baseURL, path, q.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return json.NewDecoder(resp.Body).Decode(out)
}

// WeatherAPI uses "q" for location; it accepts "lat,lon".
func weatherAPIQuery(lat, lon float64) string {
	return fmt.Sprintf("%s,%s", formatCoord(lat), formatCoord(lon))
}

// Fetch returns the current air temperature in °C.
func (p *WeatherAPIProvider) Fetch(ctx context.Context, loc environment.Location) (float64, error) {
	values := url.Values{}
	values.Set("q", weatherAPIQuery(loc.Lat, loc.Lon))

	var payload struct {
		Current *struct {
			TempC float64 `json:"temp_c"`
		} `json:"current"`
	}
	if err := p.get(ctx, "current.json", values, &payload); err != nil {
		return 0, err
	}
	if payload.Current == nil {
		return 0, fmt.Errorf("weatherapi current: %w", errNoData)
	}
	return payload.Current.TempC, nil
}

// FetchForecast returns a per-day forecast with hourly detail.
func (p *WeatherAPIProvider) FetchForecast(ctx context.Context, lat, lon float64, days int) (alerts.Forecast, error) {
	values := url.Values{}
	values.Set("q", weatherAPIQuery(lat, lon))
	values.Set("days", strconv.Itoa(days))

	type condition struct {
		Text string `json:"text"`
		Code int    `json:"code"`
	}
	var payload struct {
		Forecast struct {
			ForecastDay []struct {
				Date string `json:"date"`
				Day  struct {
					MaxTempC      float64   `json:"maxtemp_c"`
					TotalPrecipMM float64   `json:"totalprecip_mm"`
					Condition     condition `json:"condition"`
				} `json:"day"`
				Hour []struct {
					Time      string    `json:"time"`
					PrecipMM  float64   `json:"precip_mm"`
					Condition condition `json:"condition"`
				} `json:"hour"`
			} `json:"forecastday"`
		} `json:"forecast"`
	}
	if err := p.get(ctx, "forecast.json", values, &payload); err != nil {
		return alerts.Forecast{}, err
	}

	fc := alerts.Forecast{Days: make([]alerts.Day, 0, len(payload.Forecast.ForecastDay))}
	for _, fd := range payload.Forecast.ForecastDay {
		day := alerts.Day{
			Date:          fd.Date,
			MaxTempC:      fd.Day.MaxTempC,
			TotalPrecipMM: fd.Day.TotalPrecipMM,
			Condition:     fd.Day.Condition.Text,
			ConditionCode: fd.Day.Condition.Code,
			Hours:         make([]alerts.Hour, 0, len(fd.Hour)),
		}
		for _, h := range fd.Hour {
			day.Hours = append(day.Hours, alerts.Hour{
				Time:      h.Time,
				PrecipMM:  h.PrecipMM,
				Condition: h.Condition.Text,
			})
		}
		fc.Days = append(fc.Days, day)
	}
	return fc, nil
}
