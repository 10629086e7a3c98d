package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/crop-recommendation/internal/alerts"
	"github.com/i474232898/crop-recommendation/internal/crop"
	"github.com/i474232898/crop-recommendation/internal/environment"
	"github.com/i474232898/crop-recommendation/internal/store"
)

type stubForecast struct {
	err error
}

func (s stubForecast) FetchForecast(context.Context, float64, float64, int) (alerts.Forecast, error) {
	if s.err != nil {
		return alerts.Forecast{}, s.err
	}
	return alerts.Forecast{Days: []alerts.Day{{Date: "2026-06-01", TotalPrecipMM: 30}}}, nil
}

// newTestApp builds an app whose gateway has no upstream sources, so every
// reading comes from fallbacks chosen to sit inside the test crop's optimal ranges.
func newTestApp(t *testing.T, forecast alerts.ForecastSource) *fiber.App {
	t.Helper()

	year := crop.Window{Start: 1, End: 12}
	catalog, err := crop.NewCatalog([]crop.Record{
		{
			Name:        "Rice",
			Temperature: crop.Tolerance{Optimal: crop.Range{Min: 20, Max: 35}, Absolute: crop.Range{Min: 15, Max: 40}},
			Rainfall:    crop.Tolerance{Optimal: crop.Range{Min: 1000, Max: 2500}, Absolute: crop.Range{Min: 800, Max: 3000}},
			SoilPH:      crop.Tolerance{Optimal: crop.Range{Min: 5.5, Max: 7}, Absolute: crop.Range{Min: 5, Max: 7.5}},
			Latitude:    crop.Tolerance{Optimal: crop.Range{Min: -20, Max: 30}, Absolute: crop.Range{Min: -30, Max: 35}},
			Altitude:    crop.Tolerance{Optimal: crop.Range{Min: 0, Max: 500}, Absolute: crop.Range{Min: 0, Max: 1000}},
			Planting:    year,
			Harvesting:  year,
			Image:       "rice.jpg",
		},
		{
			Name:        "Barley",
			Temperature: crop.Tolerance{Optimal: crop.Range{Min: 5, Max: 15}, Absolute: crop.Range{Min: 0, Max: 20}},
			Rainfall:    crop.Tolerance{Optimal: crop.Range{Min: 300, Max: 900}, Absolute: crop.Range{Min: 200, Max: 1200}},
			SoilPH:      crop.Tolerance{Optimal: crop.Range{Min: 6, Max: 8}, Absolute: crop.Range{Min: 5, Max: 8.5}},
			Latitude:    crop.Tolerance{Optimal: crop.Range{Min: 30, Max: 60}, Absolute: crop.Range{Min: 20, Max: 70}},
			Altitude:    crop.Tolerance{Optimal: crop.Range{Min: 0, Max: 3000}, Absolute: crop.Range{Min: 0, Max: 4500}},
			Planting:    year,
			Harvesting:  year,
		},
	})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}

	ferts, err := crop.ParseFertilizers(strings.NewReader(
		"Crop,N_Required_kg_ha,P_Required_kg_ha,K_Required_kg_ha,Fertilizers,Usage_Period\nRice,100,50,50,Urea,Basal\n"))
	if err != nil {
		t.Fatalf("fertilizers: %v", err)
	}

	fb := environment.Fallbacks{Temperature: 25, Rainfall: 1500, SoilPH: 6.2, Altitude: 200}
	gw := environment.NewGateway(environment.Sources{}, fb, nil, time.Second)
	memStore := store.NewMemoryStore(10, time.Hour)
	svc := environment.NewService(gw, memStore, catalog, time.Hour)

	app := fiber.New()
	RegisterRoutes(app, Dependencies{
		Environment: svc,
		Alerts:      alerts.NewService(forecast),
		Fertilizers: ferts,
	})
	return app
}

func doGet(t *testing.T, app *fiber.App, target string) (*http.Response, []byte) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, body
}

// TestRecommendationLocationValidation verifies that lat/lon are required and range checked.
func TestRecommendationLocationValidation(t *testing.T) {
	app := newTestApp(t, stubForecast{})

	for _, target := range []string{
		"/api/v1/crops/recommendation",
		"/api/v1/crops/recommendation?lat=20",
		"/api/v1/crops/recommendation?lat=95&lon=84",
		"/api/v1/crops/recommendation?lat=20&lon=abc",
		"/Crop_recommendation?lat=20&lon=200",
	} {
		resp, _ := doGet(t, app, target)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: expected status %d, got %d", target, http.StatusBadRequest, resp.StatusCode)
		}
	}
}

func TestRecommendation(t *testing.T) {
	app := newTestApp(t, stubForecast{})

	resp, body := doGet(t, app, "/api/v1/crops/recommendation?lat=20&lon=84")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, resp.StatusCode, body)
	}

	var got struct {
		Reading   crop.Reading      `json:"reading"`
		Fallbacks []string          `json:"fallbacks"`
		Crops     []crop.ScoredCrop `json:"crops"`
	}
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}

	want := []crop.ScoredCrop{{Crop: "Rice", Score: 101, Image: "rice.jpg"}}
	if len(got.Crops) != 1 || got.Crops[0] != want[0] {
		t.Fatalf("expected crops %+v, got %+v", want, got.Crops)
	}
	if got.Reading.Latitude != 20 || got.Reading.SoilPH != 6.2 {
		t.Fatalf("unexpected reading %+v", got.Reading)
	}
	if len(got.Fallbacks) != 4 {
		t.Fatalf("expected 4 fallbacks, got %v", got.Fallbacks)
	}
}

// TestLegacyRecommendationShape verifies the bare array with Crop/Score/Image keys.
func TestLegacyRecommendationShape(t *testing.T) {
	app := newTestApp(t, stubForecast{})

	resp, body := doGet(t, app, "/Crop_recommendation?lat=20&lon=84")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	want := `[{"Crop":"Rice","Score":101,"Image":"rice.jpg"}]`
	if string(body) != want {
		t.Fatalf("expected %s, got %s", want, body)
	}
}

func TestCropInfo(t *testing.T) {
	app := newTestApp(t, stubForecast{})

	resp, body := doGet(t, app, "/api/v1/crops/rice")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	var info crop.Info
	if err := json.Unmarshal(body, &info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.Crop != "Rice" || info.Optimal == nil || info.Fertilizer == nil {
		t.Fatalf("unexpected info %+v", info)
	}

	resp, _ = doGet(t, app, "/Crop_info?name=Barley")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	resp, _ = doGet(t, app, "/Crop_info?name=Sweet%20Potato")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, resp.StatusCode)
	}

	resp, _ = doGet(t, app, "/Crop_info")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}
}

// TestAlertsDaysValidation verifies that the alerts endpoint enforces the
// expected 1-10 range for the `days` query parameter.
func TestAlertsDaysValidation(t *testing.T) {
	app := newTestApp(t, stubForecast{})

	for _, days := range []string{"0", "11", "x"} {
		resp, _ := doGet(t, app, "/api/v1/weather/alerts?lat=27.7&lon=85.3&days="+days)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("days=%s: expected status %d, got %d", days, http.StatusBadRequest, resp.StatusCode)
		}
	}

	resp, body := doGet(t, app, "/api/v1/weather/alerts?lat=27.7&lon=85.3")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	var got struct {
		Days   int            `json:"days"`
		Alerts []alerts.Alert `json:"alerts"`
	}
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Days != alerts.DefaultDays || len(got.Alerts) != 1 || got.Alerts[0].Kind != alerts.KindHeavyRain {
		t.Fatalf("unexpected alerts response %+v", got)
	}
}

func TestAlertsUpstreamFailure(t *testing.T) {
	app := newTestApp(t, stubForecast{err: errors.New("down")})

	resp, _ := doGet(t, app, "/api/v1/weather/alerts?lat=27.7&lon=85.3&days=2")
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected status %d, got %d", http.StatusBadGateway, resp.StatusCode)
	}
}

func TestEnvironmentHistory(t *testing.T) {
	app := newTestApp(t, stubForecast{})

	from := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
	to := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	target := "/api/v1/environment/history?lat=20&lon=84&from=" + from + "&to=" + to

	resp, _ := doGet(t, app, target)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected status %d before any recommendation, got %d", http.StatusNotFound, resp.StatusCode)
	}

	doGet(t, app, "/api/v1/crops/recommendation?lat=20&lon=84")

	resp, body := doGet(t, app, target)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, resp.StatusCode, body)
	}

	// to before from
	resp, _ = doGet(t, app, "/api/v1/environment/history?lat=20&lon=84&from=200&to=100")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}
}
