package report

import (
	"fmt"
	"time"

	"github.com/arthurwhennig/asterix/internal/exposure"
	"github.com/arthurwhennig/asterix/internal/models"
	"github.com/arthurwhennig/asterix/internal/physics"
)

// Assemble merges physics output and the exposure overlay into one versioned
// ConsequenceReport. Pure merge, no recomputation: the field layout is
// stable regardless of which upstream fields used fallback defaults, and
// profile provenance propagates into per-section confidence annotations.
func Assemble(
	out *physics.Output,
	zones []exposure.ZoneExposure,
	imp models.ImpactorProfile,
	site models.SiteProfile,
	schemaVersion string,
	calculatedAt time.Time,
) *models.ConsequenceReport {
	r := &models.ConsequenceReport{
		SchemaVersion: schemaVersion,
		ImpactEnergy: models.ImpactEnergy{
			Joules:      out.EnergyJoules,
			MegatonsTnt: out.EnergyMegatons,
			KilotonsTnt: out.EnergyKilotons,
		},
		Crater: models.Crater{
			DiameterKm: out.CraterDiameterKm,
			DepthKm:    out.CraterDepthKm,
		},
		Airblast: models.Airblast{
			BlastRadiiKm:     make(map[string]float64, len(out.Blast)),
			FireballRadiusKm: out.FireballRadiusKm,
		},
		Earthquake: models.Earthquake{
			MomentMagnitude:    out.MomentMagnitude,
			RichterMagnitude:   out.RichterMagnitude,
			ShakingIntensities: make(map[string]float64, len(out.Shaking)),
		},
		Thermal: models.Thermal{
			ThermalRadiusKm:      out.ThermalRadiusKm,
			FireballTemperatureC: out.FireballTemperatureC,
		},
		DamageZones: make(map[string]models.DamageZone, len(zones)),
		Location: models.ImpactLocation{
			Latitude:    site.Latitude,
			Longitude:   site.Longitude,
			ElevationM:  site.ElevationM,
			IsLand:      site.IsLand,
			WaterDepthM: site.WaterDepthM,
		},
		CalculatedAt: calculatedAt,
	}

	for _, ring := range out.Blast {
		r.Airblast.BlastRadiiKm[psiKey(ring.PSI)] = ring.RadiusKm
	}
	for _, band := range out.Shaking {
		r.Earthquake.ShakingIntensities[distKey(band.DistanceKm)] = band.Intensity
	}

	if out.Tsunami != nil {
		t := &models.Tsunami{
			InitialWaveHeightM: out.Tsunami.InitialWaveHeightM,
			WaveHeights:        make(map[string]float64, len(out.Tsunami.Waves)),
			WaterDepthM:        out.Tsunami.WaterDepthM,
		}
		for _, w := range out.Tsunami.Waves {
			t.WaveHeights[distKey(w.DistanceKm)] = w.HeightM
		}
		r.Tsunami = t
	}

	for _, z := range zones {
		infra := z.Infrastructure
		if infra == nil {
			infra = []string{}
		}
		r.DamageZones[z.Label] = models.DamageZone{
			RadiusKm:         z.RadiusKm,
			Description:      z.Description,
			DamageLevel:      z.DamageLevel,
			EstimatedExposed: z.EstimatedPopulation,
			Infrastructure:   infra,
		}
	}

	r.Confidence = confidence(imp, site, out.Tsunami != nil)

	return r
}

// confidence reduces per-field provenance to a per-section annotation: a
// section is "default" when any input feeding it was substituted.
func confidence(imp models.ImpactorProfile, site models.SiteProfile, hasTsunami bool) map[string]string {
	energy := sectionConfidence(
		imp.Provenance[models.FieldDiameter],
		imp.Provenance[models.FieldVelocity],
		imp.Provenance[models.FieldDensity],
	)
	target := sectionConfidence(site.Provenance[models.FieldGeology])

	c := map[string]string{
		"impactEnergy": energy,
		"crater":       sectionConfidence2(energy, target),
		"airblast":     energy,
		"earthquake":   energy,
		"thermal":      energy,
		"damageZones": sectionConfidence2(
			energy,
			sectionConfidence(site.Provenance[models.FieldPopulation], site.Provenance[models.FieldInfrastructure]),
		),
	}
	if hasTsunami {
		c["tsunami"] = sectionConfidence2(energy, sectionConfidence(site.Provenance[models.FieldBathymetry]))
	}
	return c
}

func sectionConfidence(fields ...models.Provenance) string {
	for _, p := range fields {
		if p == models.ProvenanceDefault {
			return string(models.ProvenanceDefault)
		}
	}
	return string(models.ProvenanceMeasured)
}

func sectionConfidence2(a, b string) string {
	if a == string(models.ProvenanceDefault) || b == string(models.ProvenanceDefault) {
		return string(models.ProvenanceDefault)
	}
	return string(models.ProvenanceMeasured)
}

func psiKey(psi float64) string {
	return fmt.Sprintf("%s_psi", trimFloat(psi))
}

func distKey(km float64) string {
	return fmt.Sprintf("%s_km", trimFloat(km))
}

// trimFloat formats thresholds the way the report schema keys them: "1.0"
// and "2.5" keep one decimal, whole bands like "50" drop it.
func trimFloat(v float64) string {
	if v == float64(int64(v)) && v >= 10 {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.1f", v)
}
