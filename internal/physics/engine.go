package physics

import (
	"fmt"
	"math"

	"github.com/arthurwhennig/asterix/internal/models"
)

// Output is the raw result of the consequence pipeline. Bands and rings are
// slices, not maps, so identical inputs always produce identical iteration
// order downstream.
type Output struct {
	EnergyJoules   float64
	EnergyMegatons float64
	EnergyKilotons float64

	CraterDiameterM  float64
	CraterDiameterKm float64
	CraterDepthKm    float64

	Blast            []BlastRing
	FireballRadiusKm float64

	MomentMagnitude  float64
	RichterMagnitude float64
	Shaking          []ShakingBand

	ThermalRadiusKm      float64
	FireballTemperatureC float64

	Tsunami *TsunamiOutput

	// LowConfidence is set when the target density came from the generic
	// default rather than resolved geology.
	LowConfidence bool
}

type BlastRing struct {
	PSI      float64
	RadiusKm float64
}

type ShakingBand struct {
	DistanceKm float64
	Intensity  float64
}

type WaveBand struct {
	DistanceKm float64
	HeightM    float64
}

type TsunamiOutput struct {
	InitialWaveHeightM float64
	Waves              []WaveBand
	WaterDepthM        float64
}

// Compute runs the full consequence pipeline. It is a pure function: no
// I/O, no clock, deterministic for identical inputs.
func Compute(imp models.ImpactorProfile, site models.SiteProfile, p Params) (*Output, error) {
	if imp.DiameterM <= 0 {
		return nil, &models.ValidationError{Field: "diameter_m", Reason: fmt.Sprintf("must be positive, got %v", imp.DiameterM)}
	}
	if imp.VelocityMS <= 0 {
		return nil, &models.ValidationError{Field: "velocity_ms", Reason: fmt.Sprintf("must be positive, got %v", imp.VelocityMS)}
	}
	if imp.DensityKgM3 <= 0 {
		return nil, &models.ValidationError{Field: "density_kg_m3", Reason: fmt.Sprintf("must be positive, got %v", imp.DensityKgM3)}
	}
	if site.TargetDensityKgM3 <= 0 {
		return nil, &models.ValidationError{Field: "target_density_kg_m3", Reason: fmt.Sprintf("must be positive, got %v", site.TargetDensityKgM3)}
	}

	out := &Output{
		LowConfidence: site.Provenance[models.FieldGeology] == models.ProvenanceDefault,
	}

	// Stage 1: kinetic energy.
	radius := imp.DiameterM / 2.0
	volume := (4.0 / 3.0) * math.Pi * radius * radius * radius
	mass := imp.DensityKgM3 * volume
	energy := 0.5 * mass * imp.VelocityMS * imp.VelocityMS
	if !isFinitePositive(energy) {
		return nil, &models.ComputationError{Stage: "energy", Reason: fmt.Sprintf("non-positive or non-finite energy %v", energy)}
	}
	out.EnergyJoules = energy
	out.EnergyMegatons = energy / p.JoulesPerMegaton
	out.EnergyKilotons = out.EnergyMegatons * 1000.0

	// Stage 2: crater dimensions.
	densityRatio := imp.DensityKgM3 / site.TargetDensityKgM3
	energyRatio := energy / (p.TargetMeltEnergyJKg * site.TargetDensityKgM3)
	craterM := p.CraterConstant *
		math.Cbrt(densityRatio) *
		math.Pow(energyRatio, p.CraterEnergyExponent) *
		imp.DiameterM
	if !isFinitePositive(craterM) {
		return nil, &models.ComputationError{Stage: "crater", Reason: fmt.Sprintf("non-positive or non-finite crater diameter %v", craterM)}
	}
	out.CraterDiameterM = craterM
	out.CraterDiameterKm = craterM / 1000.0
	out.CraterDepthKm = out.CraterDiameterKm * p.CraterDepthRatio

	// Stage 3: airblast rings, one per overpressure threshold.
	out.Blast = make([]BlastRing, 0, len(p.BlastThresholdsPSI))
	for _, psi := range p.BlastThresholdsPSI {
		out.Blast = append(out.Blast, BlastRing{
			PSI:      psi,
			RadiusKm: solveOverpressureRadius(energy, psi, p),
		})
	}
	out.FireballRadiusKm = math.Cbrt(energy) / p.FireballDivisor

	// Stage 4: seismic effects.
	out.MomentMagnitude = p.SeismicSlope*math.Log10(energy) + p.SeismicOffset
	out.RichterMagnitude = out.MomentMagnitude + p.RichterDelta
	out.Shaking = make([]ShakingBand, 0, len(p.ShakingDistancesKm))
	for _, dist := range p.ShakingDistancesKm {
		intensity := out.MomentMagnitude - math.Log10(dist) - 1.0
		out.Shaking = append(out.Shaking, ShakingBand{
			DistanceKm: dist,
			Intensity:  clamp(intensity, 1, 12),
		})
	}

	// Stage 5: thermal effects.
	out.ThermalRadiusKm = math.Cbrt(energy) / p.ThermalDivisor
	fireballK := 3000.0 + math.Pow(energy, 0.25)/1000.0
	out.FireballTemperatureC = fireballK - 273.15

	// Stage 6: tsunami, ocean impacts only.
	if !site.IsLand && site.WaterDepthM > 0 {
		out.Tsunami = computeTsunami(out.CraterDiameterKm, site.WaterDepthM, p)
	}

	return out, nil
}

// solveOverpressureRadius inverts the three-term overpressure relation for a
// given threshold using Newton's method, starting at 1 km. Falls back to the
// fireball scaling when the iteration fails to converge.
func solveOverpressureRadius(energy, targetPSI float64, p Params) float64 {
	targetPa := targetPSI * p.PascalsPerPSI

	e13 := math.Cbrt(energy)
	e23 := e13 * e13

	r := 1000.0 // meters
	for i := 0; i < 100; i++ {
		pressure := p.BlastCoeffA*e13/r +
			p.BlastCoeffB*e23/(r*r) +
			p.BlastCoeffC*energy/(r*r*r)

		deriv := -p.BlastCoeffA*e13/(r*r) -
			2*p.BlastCoeffB*e23/(r*r*r) -
			3*p.BlastCoeffC*energy/(r*r*r*r)

		next := r - (pressure-targetPa)/deriv
		if next <= 0 || math.IsNaN(next) || math.IsInf(next, 0) {
			return e13 / p.FireballDivisor
		}
		if math.Abs(next-r) < 1.0 {
			r = next
			break
		}
		r = next
	}

	return r / 1000.0
}

func computeTsunami(craterKm, waterDepthM float64, p Params) *TsunamiOutput {
	depthKm := waterDepthM / 1000.0
	c4 := craterKm * craterKm * craterKm * craterKm

	// Initial height at the impact site, distance term omitted.
	initial := p.TsunamiCoefficient * math.Pow(c4/(depthKm*depthKm), 0.25)

	waves := make([]WaveBand, 0, len(p.TsunamiDistancesKm))
	for _, dist := range p.TsunamiDistancesKm {
		h := p.TsunamiCoefficient * math.Pow(c4/(depthKm*depthKm*dist*dist), 0.25)
		waves = append(waves, WaveBand{
			DistanceKm: dist,
			HeightM:    math.Max(p.TsunamiFloorM, h),
		})
	}

	return &TsunamiOutput{
		InitialWaveHeightM: initial,
		Waves:              waves,
		WaterDepthM:        waterDepthM,
	}
}

func isFinitePositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
