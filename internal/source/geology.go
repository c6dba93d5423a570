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

// GeologyClient queries a WFS geology service for the surface unit at a
// coordinate pair.
type GeologyClient struct {
	baseURL    string
	layer      string
	httpClient *http.Client
}

func NewGeologyClient(baseURL, layer string, timeout time.Duration) *GeologyClient {
	return &GeologyClient{
		baseURL: baseURL,
		layer:   layer,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// GeologyResult is the raw description of the surface unit at a point.
type GeologyResult struct {
	Description string
	UnitName    string
	AgePeriod   string
}

type wfsResponse struct {
	Features []struct {
		Properties map[string]any `json:"properties"`
	} `json:"features"`
}

// UnitAt queries the WFS GetFeature endpoint with a small bounding box
// around the point and returns the first matching geological unit.
func (c *GeologyClient) UnitAt(ctx context.Context, lat, lon float64) (GeologyResult, error) {
	const bboxSize = 0.001 // degrees
	bbox := fmt.Sprintf("%f,%f,%f,%f", lon-bboxSize, lat-bboxSize, lon+bboxSize, lat+bboxSize)

	params := url.Values{
		"service":      {"WFS"},
		"version":      {"2.0.0"},
		"request":      {"GetFeature"},
		"typeName":     {c.layer},
		"BBOX":         {bbox},
		"outputFormat": {"application/json"},
		"srsName":      {"EPSG:4326"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return GeologyResult{}, fmt.Errorf("error creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return GeologyResult{}, &models.SourceError{Source: "geology", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return GeologyResult{}, &models.SourceError{Source: "geology", Err: fmt.Errorf("unexpected status code: %d - status: %s", resp.StatusCode, resp.Status)}
	}

	var data wfsResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return GeologyResult{}, &models.SourceError{Source: "geology", Err: fmt.Errorf("error decoding resp.Body: %w", err)}
	}

	if len(data.Features) == 0 {
		return GeologyResult{}, &models.SourceError{Source: "geology", Err: fmt.Errorf("no geological unit at (%v, %v)", lat, lon)}
	}

	props := data.Features[0].Properties
	result := GeologyResult{
		Description: firstString(props, "ROCK_D", "DESCRIPTION", "UNIT_DESC", "description"),
		UnitName:    firstString(props, "UNIT_NAME", "unit_name"),
		AgePeriod:   firstString(props, "AGE", "PERIOD", "age"),
	}
	if result.Description == "" {
		result.Description = "Unknown geological unit"
	}
	if result.UnitName == "" {
		result.UnitName = "Unknown"
	}
	return result, nil
}

func firstString(props map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := props[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
