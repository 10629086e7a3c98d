package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kelvins/geocoder"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/crop-recommendation/internal/environment"
)

var kathmandu = environment.Location{Lat: 27.7, Lon: 85.3}

func testOptions(srv *httptest.Server) Options {
	return Options{Client: srv.Client()}
}

func fastBackoff(cfg *HTTPClientConfig) {
	cfg.Backoff.InitialInterval = time.Millisecond
	cfg.Backoff.MaxInterval = 2 * time.Millisecond
}

func TestOpenMeteoRainfallSumsYear(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "27.7000", q.Get("latitude"))
		assert.Equal(t, "precipitation_sum", q.Get("daily"))
		assert.Equal(t, "2025-06-09", q.Get("start_date"))
		assert.Equal(t, "2026-06-08", q.Get("end_date"))
		_, _ = w.Write([]byte(`{"daily":{"time":["a","b","c","d"],"precipitation_sum":[1.5,null,2.5,2]}}`))
	}))
	defer srv.Close()

	p := NewOpenMeteoRainfall(testOptions(srv))
	p.baseURL = srv.URL
	p.now = func() time.Time { return time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC) }

	got, err := p.Fetch(context.Background(), kathmandu)
	require.NoError(t, err)
	// 6 mm over 3 of 4 days, scaled to the full window.
	assert.InDelta(t, 8.0, got, 1e-9)
}

func TestOpenMeteoRainfallNoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"daily":{"time":["a"],"precipitation_sum":[null]}}`))
	}))
	defer srv.Close()

	p := NewOpenMeteoRainfall(testOptions(srv))
	p.baseURL = srv.URL

	_, err := p.Fetch(context.Background(), kathmandu)
	assert.ErrorIs(t, err, errNoData)
}

func TestOpenMeteoElevation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "85.3000", r.URL.Query().Get("longitude"))
		_, _ = w.Write([]byte(`{"elevation":[1337.0]}`))
	}))
	defer srv.Close()

	p := NewOpenMeteoElevation(testOptions(srv))
	p.baseURL = srv.URL

	got, err := p.Fetch(context.Background(), kathmandu)
	require.NoError(t, err)
	assert.Equal(t, 1337.0, got)
}

func TestSoilGridsPH(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "phh2o", r.URL.Query().Get("property"))
		_, _ = w.Write([]byte(`{"properties":{"layers":[{"name":"phh2o","unit_measure":{"d_factor":10},
			"depths":[{"label":"0-5cm","values":{"mean":58}}]}]}}`))
	}))
	defer srv.Close()

	p := NewSoilGridsProvider(testOptions(srv))
	p.baseURL = srv.URL

	got, err := p.Fetch(context.Background(), kathmandu)
	require.NoError(t, err)
	assert.InDelta(t, 5.8, got, 1e-9)
}

func TestSoilGridsNoSoil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"properties":{"layers":[{"name":"phh2o","unit_measure":{"d_factor":10},
			"depths":[{"label":"0-5cm","values":{"mean":null}}]}]}}`))
	}))
	defer srv.Close()

	p := NewSoilGridsProvider(testOptions(srv))
	p.baseURL = srv.URL

	_, err := p.Fetch(context.Background(), kathmandu)
	assert.ErrorIs(t, err, errNoData)
}

func TestWeatherAPITemperature(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/current.json", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("key"))
		assert.Equal(t, "27.7000,85.3000", r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(`{"current":{"temp_c":21.5}}`))
	}))
	defer srv.Close()

	p := NewWeatherAPIProvider(testOptions(srv), "secret")
	p.baseURL = srv.URL

	got, err := p.Fetch(context.Background(), kathmandu)
	require.NoError(t, err)
	assert.Equal(t, 21.5, got)
}

func TestWeatherAPIRequiresKey(t *testing.T) {
	p := NewWeatherAPIProvider(Options{Client: http.DefaultClient}, "")
	_, err := p.Fetch(context.Background(), kathmandu)
	assert.Error(t, err)
}

func TestWeatherAPIForecast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/forecast.json", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("days"))
		_, _ = w.Write([]byte(`{"forecast":{"forecastday":[
			{"date":"2026-06-01","day":{"maxtemp_c":31,"totalprecip_mm":0.1,"condition":{"text":"Sunny","code":1000}},
			 "hour":[{"time":"2026-06-01 00:00","precip_mm":0,"condition":{"text":"Clear"}}]},
			{"date":"2026-06-02","day":{"maxtemp_c":24,"totalprecip_mm":22,"condition":{"text":"Heavy rain","code":1195}},"hour":[]}
		]}}`))
	}))
	defer srv.Close()

	p := NewWeatherAPIProvider(testOptions(srv), "secret")
	p.baseURL = srv.URL

	fc, err := p.FetchForecast(context.Background(), 27.7, 85.3, 2)
	require.NoError(t, err)
	require.Len(t, fc.Days, 2)
	assert.Equal(t, "2026-06-01", fc.Days[0].Date)
	assert.Equal(t, 31.0, fc.Days[0].MaxTempC)
	assert.Equal(t, 1000, fc.Days[0].ConditionCode)
	require.Len(t, fc.Days[0].Hours, 1)
	assert.Equal(t, "Clear", fc.Days[0].Hours[0].Condition)
	assert.Equal(t, 22.0, fc.Days[1].TotalPrecipMM)
}

func TestOpenWeatherTemperature(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "metric", r.URL.Query().Get("units"))
		_, _ = w.Write([]byte(`{"main":{"temp":19.0}}`))
	}))
	defer srv.Close()

	p := NewOpenWeatherProvider(testOptions(srv), "k")
	p.baseURL = srv.URL

	got, err := p.Fetch(context.Background(), kathmandu)
	require.NoError(t, err)
	assert.Equal(t, 19.0, got)
}

func TestResilienceRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"elevation":[10]}`))
	}))
	defer srv.Close()

	p := NewOpenMeteoElevation(testOptions(srv))
	p.baseURL = srv.URL
	fastBackoff(&p.httpCfg)

	got, err := p.Fetch(context.Background(), kathmandu)
	require.NoError(t, err)
	assert.Equal(t, 10.0, got)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestResilienceDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	p := NewOpenMeteoElevation(testOptions(srv))
	p.baseURL = srv.URL
	fastBackoff(&p.httpCfg)

	_, err := p.Fetch(context.Background(), kathmandu)
	assert.ErrorIs(t, err, errUnexpected)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestResilienceGivesUpAfterMaxRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewSoilGridsProvider(testOptions(srv))
	p.baseURL = srv.URL
	fastBackoff(&p.httpCfg)

	_, err := p.Fetch(context.Background(), kathmandu)
	assert.ErrorIs(t, err, errRateLimited)
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
}

func TestBreakerIgnoresCallerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("hang") != "" {
			<-r.Context().Done()
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	cfg := newHTTPConfig(testOptions(srv))
	fastBackoff(&cfg)
	cb := newCircuitBreaker("breaker-test")

	// More than the default five consecutive failures needed to trip.
	for i := 0; i < 8; i++ {
		_, err := doRequestWithResilience(context.Background(), cfg, cb, func() (*http.Request, error) {
			return http.NewRequest(http.MethodGet, srv.URL, nil)
		})
		require.ErrorIs(t, err, errUnexpected)

		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(10*time.Millisecond, cancel)
		_, err = doRequestWithResilience(ctx, cfg, cb, func() (*http.Request, error) {
			return http.NewRequest(http.MethodGet, srv.URL+"?hang=1", nil)
		})
		cancel()
		require.ErrorIs(t, err, context.Canceled)
	}

	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestBreakerCountsServerErrors(t *testing.T) {
	assert.False(t, breakerSuccess(errServerError))
	assert.False(t, breakerSuccess(context.DeadlineExceeded))
	assert.True(t, breakerSuccess(nil))
	assert.True(t, breakerSuccess(fmt.Errorf("%w: %d", errUnexpected, http.StatusNotFound)))
}

func TestRateLimiterConfigured(t *testing.T) {
	cfg := newHTTPConfig(Options{Client: http.DefaultClient, RatePerSecond: 2.5})
	require.NotNil(t, cfg.Limiter)
	assert.Equal(t, 3, cfg.Limiter.Burst())

	cfg = newHTTPConfig(Options{Client: http.DefaultClient})
	assert.Nil(t, cfg.Limiter)
}

func TestGoogleGeocoder(t *testing.T) {
	assert.Nil(t, NewGoogleGeocoder(""))

	g := &GoogleGeocoder{
		circuit: newCircuitBreaker("geocoder-test"),
		reverse: func(loc geocoder.Location) ([]geocoder.Address, error) {
			assert.Equal(t, 27.7, loc.Latitude)
			return []geocoder.Address{{City: "Kathmandu", Country: "Nepal"}}, nil
		},
	}
	got, err := g.ResolvePlace(context.Background(), kathmandu)
	require.NoError(t, err)
	assert.Equal(t, "Kathmandu, Nepal", got)

	g.reverse = func(geocoder.Location) ([]geocoder.Address, error) {
		return []geocoder.Address{{FormattedAddress: "Thamel, Kathmandu 44600, Nepal"}}, nil
	}
	got, err = g.ResolvePlace(context.Background(), kathmandu)
	require.NoError(t, err)
	assert.Equal(t, "Thamel, Kathmandu 44600, Nepal", got)

	boom := errors.New("quota")
	g.reverse = func(geocoder.Location) ([]geocoder.Address, error) { return nil, boom }
	_, err = g.ResolvePlace(context.Background(), kathmandu)
	assert.ErrorIs(t, err, boom)
}
