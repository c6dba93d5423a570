package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/arthurwhennig/asterix/internal/models"
)

// ElevationClient queries a DEM point-lookup service for ground elevation at
// a coordinate pair.
type ElevationClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewElevationClient(baseURL string, timeout time.Duration) *ElevationClient {
	return &ElevationClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type elevationResponse struct {
	Results []struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Elevation float64 `json:"elevation"`
	} `json:"results"`
}

// ElevationAt returns the DEM elevation in meters at the given point.
func (c *ElevationClient) ElevationAt(ctx context.Context, lat, lon float64) (float64, error) {
	params := url.Values{
		"locations": {fmt.Sprintf("%.6f,%.6f", lat, lon)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return 0, fmt.Errorf("error creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, &models.SourceError{Source: "elevation", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, &models.SourceError{Source: "elevation", Err: fmt.Errorf("unexpected status code: %d - status: %s", resp.StatusCode, resp.Status)}
	}

	var data elevationResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return 0, &models.SourceError{Source: "elevation", Err: fmt.Errorf("error decoding resp.Body: %w", err)}
	}

	if len(data.Results) == 0 {
		return 0, &models.SourceError{Source: "elevation", Err: fmt.Errorf("no elevation result for (%v, %v)", lat, lon)}
	}

	return data.Results[0].Elevation, nil
}
