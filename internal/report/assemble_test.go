package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthurwhennig/asterix/internal/exposure"
	"github.com/arthurwhennig/asterix/internal/models"
	"github.com/arthurwhennig/asterix/internal/physics"
)

func sampleOutput() *physics.Output {
	return &physics.Output{
		EnergyJoules:     2.27e17,
		EnergyMegatons:   54.25,
		EnergyKilotons:   54250,
		CraterDiameterKm: 1.8,
		CraterDepthKm:    0.45,
		Blast: []physics.BlastRing{
			{PSI: 1.0, RadiusKm: 30},
			{PSI: 2.5, RadiusKm: 18},
			{PSI: 5.0, RadiusKm: 11},
			{PSI: 10.0, RadiusKm: 7},
		},
		FireballRadiusKm: 0.61,
		MomentMagnitude:  5.75,
		RichterMagnitude: 5.55,
		Shaking: []physics.ShakingBand{
			{DistanceKm: 10, Intensity: 3.75},
			{DistanceKm: 100, Intensity: 2.75},
		},
		ThermalRadiusKm:      0.3,
		FireballTemperatureC: 2750,
	}
}

func measuredImpactor() models.ImpactorProfile {
	return models.ImpactorProfile{
		Provenance: map[string]models.Provenance{
			models.FieldDiameter: models.ProvenanceMeasured,
			models.FieldVelocity: models.ProvenanceMeasured,
			models.FieldDensity:  models.ProvenanceMeasured,
		},
	}
}

func measuredSite() models.SiteProfile {
	return models.SiteProfile{
		Latitude:  35.0,
		Longitude: 139.0,
		IsLand:    true,
		Provenance: map[string]models.Provenance{
			models.FieldElevation:      models.ProvenanceMeasured,
			models.FieldGeology:        models.ProvenanceMeasured,
			models.FieldBathymetry:     models.ProvenanceMeasured,
			models.FieldPopulation:     models.ProvenanceMeasured,
			models.FieldInfrastructure: models.ProvenanceMeasured,
		},
	}
}

func TestAssemble_WireKeys(t *testing.T) {
	now := time.Now().UTC()
	r := Assemble(sampleOutput(), nil, measuredImpactor(), measuredSite(), models.ReportSchemaVersion, now)

	assert.Equal(t, "1.0", r.SchemaVersion)
	assert.Equal(t, now, r.CalculatedAt)

	// Overpressure keys keep one decimal; distance bands drop it.
	assert.Equal(t, map[string]float64{
		"1.0_psi": 30,
		"2.5_psi": 18,
		"5.0_psi": 11,
		"10_psi":  7,
	}, r.Airblast.BlastRadiiKm)

	assert.Equal(t, map[string]float64{
		"10_km":  3.75,
		"100_km": 2.75,
	}, r.Earthquake.ShakingIntensities)

	assert.Nil(t, r.Tsunami)
}

func TestAssemble_TsunamiSection(t *testing.T) {
	out := sampleOutput()
	out.Tsunami = &physics.TsunamiOutput{
		InitialWaveHeightM: 12.0,
		WaterDepthM:        4000,
		Waves: []physics.WaveBand{
			{DistanceKm: 10, HeightM: 8.5},
			{DistanceKm: 500, HeightM: 0.1},
		},
	}
	site := measuredSite()
	site.IsLand = false
	site.WaterDepthM = 4000

	r := Assemble(out, nil, measuredImpactor(), site, models.ReportSchemaVersion, time.Now())

	require.NotNil(t, r.Tsunami)
	assert.Equal(t, 12.0, r.Tsunami.InitialWaveHeightM)
	assert.Equal(t, map[string]float64{"10_km": 8.5, "500_km": 0.1}, r.Tsunami.WaveHeights)
	assert.Equal(t, "measured", r.Confidence["tsunami"])
}

func TestAssemble_DamageZones(t *testing.T) {
	zones := []exposure.ZoneExposure{
		{
			Zone:                exposure.Zone{Label: "window_shatter", Description: "Most windows shatter", DamageLevel: "light", RadiusKm: 30},
			EstimatedPopulation: 282743,
			Infrastructure:      []string{"central hospital"},
		},
		{
			Zone:                exposure.Zone{Label: "building_destruction", Description: "Most buildings destroyed", DamageLevel: "severe", RadiusKm: 11},
			EstimatedPopulation: 38013,
		},
	}

	r := Assemble(sampleOutput(), zones, measuredImpactor(), measuredSite(), models.ReportSchemaVersion, time.Now())

	require.Len(t, r.DamageZones, 2)
	zone := r.DamageZones["window_shatter"]
	assert.Equal(t, 30.0, zone.RadiusKm)
	assert.Equal(t, int64(282743), zone.EstimatedExposed)
	assert.Equal(t, []string{"central hospital"}, zone.Infrastructure)

	// Zones without nearby features still carry an empty list, not null.
	assert.NotNil(t, r.DamageZones["building_destruction"].Infrastructure)
}

func TestAssemble_ConfidencePropagation(t *testing.T) {
	imp := measuredImpactor()
	imp.Provenance[models.FieldDensity] = models.ProvenanceDefault

	r := Assemble(sampleOutput(), nil, imp, measuredSite(), models.ReportSchemaVersion, time.Now())

	// Every energy-derived section inherits the defaulted input.
	assert.Equal(t, "default", r.Confidence["impactEnergy"])
	assert.Equal(t, "default", r.Confidence["crater"])
	assert.Equal(t, "default", r.Confidence["airblast"])
	assert.Equal(t, "default", r.Confidence["earthquake"])
	assert.Equal(t, "default", r.Confidence["thermal"])

	r2 := Assemble(sampleOutput(), nil, measuredImpactor(), measuredSite(), models.ReportSchemaVersion, time.Now())
	assert.Equal(t, "measured", r2.Confidence["impactEnergy"])
	assert.Equal(t, "measured", r2.Confidence["crater"])
}

func TestAssemble_GeologyDefaultDegradesCraterOnly(t *testing.T) {
	site := measuredSite()
	site.Provenance[models.FieldGeology] = models.ProvenanceDefault

	r := Assemble(sampleOutput(), nil, measuredImpactor(), site, models.ReportSchemaVersion, time.Now())

	assert.Equal(t, "measured", r.Confidence["impactEnergy"])
	assert.Equal(t, "default", r.Confidence["crater"])
	assert.Equal(t, "measured", r.Confidence["airblast"])
}
