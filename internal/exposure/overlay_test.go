package exposure

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arthurwhennig/asterix/internal/models"
)

func TestOverlay_PopulationScalesWithArea(t *testing.T) {
	site := models.SiteProfile{
		PopulationDensityPerKm2: 100,
	}
	zones := []Zone{
		{Label: "inner", RadiusKm: 1},
		{Label: "outer", RadiusKm: 10},
	}

	out := Overlay(site, zones)
	assert.Len(t, out, 2)

	assert.Equal(t, int64(100*math.Pi*zones[0].RadiusKm*zones[0].RadiusKm), out[0].EstimatedPopulation)
	assert.Equal(t, int64(100*math.Pi*zones[1].RadiusKm*zones[1].RadiusKm), out[1].EstimatedPopulation)
	// A wider zone can never expose fewer people.
	assert.GreaterOrEqual(t, out[1].EstimatedPopulation, out[0].EstimatedPopulation)
}

func TestOverlay_InfrastructureFilteredByRadius(t *testing.T) {
	site := models.SiteProfile{
		Infrastructure: []models.InfrastructureFeature{
			{Name: "central hospital", DistanceKm: 2},
			{Name: "regional airport", DistanceKm: 25},
			{Name: "power plant", DistanceKm: 80},
		},
	}
	zones := []Zone{
		{Label: "severe", RadiusKm: 5},
		{Label: "light", RadiusKm: 50},
	}

	out := Overlay(site, zones)

	assert.Equal(t, []string{"central hospital"}, out[0].Infrastructure)
	assert.Equal(t, []string{"central hospital", "regional airport"}, out[1].Infrastructure)
}

func TestOverlay_ZeroDensity(t *testing.T) {
	site := models.SiteProfile{}
	out := Overlay(site, []Zone{{Label: "any", RadiusKm: 100}})

	assert.Equal(t, int64(0), out[0].EstimatedPopulation)
	assert.Empty(t, out[0].Infrastructure)
}
