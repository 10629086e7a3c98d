package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/sony/gobreaker"

	"github.com/i474232898/crop-recommendation/internal/environment"
)

// SoilGridsProvider reads topsoil pH (H2O, 0-5 cm, mean) from the ISRIC SoilGrids REST API.
type SoilGridsProvider struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewSoilGridsProvider(opts Options) *SoilGridsProvider {
	return &SoilGridsProvider{
		name:    "soilgrids",
		baseURL: "https://rest.isric.org/soilgrids/v2.0/properties/query",
		httpCfg: newHTTPConfig(opts),
		circuit: newCircuitBreaker("soilgrids"),
	}
}

func (p *SoilGridsProvider) Name() string {
	return p.name
}

func (p *SoilGridsProvider) Fetch(ctx context.Context, loc environment.Location) (float64, error) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("lat", formatCoord(loc.Lat))
		values.Set("lon", formatCoord(loc.Lon))
		values.Set("property", "phh2o")
		values.Set("depth", "0-5cm")
		values.Set("value", "mean")

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var payload struct {
		Properties struct {
			Layers []struct {
				Name        string `json:"name"`
				UnitMeasure struct {
					DFactor float64 `json:"d_factor"`
				} `json:"unit_measure"`
				Depths []struct {
					Label  string `json:"label"`
					Values struct {
						Mean *float64 `json:"mean"`
					} `json:"values"`
				} `json:"depths"`
			} `json:"layers"`
		} `json:"properties"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, err
	}

	for _, layer := range payload.Properties.Layers {
		if layer.Name != "phh2o" {
			continue
		}
		// pH is stored as pH*10 unless the layer says otherwise.
		factor := layer.UnitMeasure.DFactor
		if factor <= 0 {
			factor = 10
		}
		for _, d := range layer.Depths {
			if d.Values.Mean != nil {
				return *d.Values.Mean / factor, nil
			}
		}
	}
	// Water bodies and urban cells have no soil data.
	return 0, fmt.Errorf("soilgrids: %w", errNoData)
}
