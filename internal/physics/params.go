package physics

// Params holds the calibration constants of the consequence pipeline. The
// empirical coefficients come from published scaling-law reference cases;
// they are configuration, not hard-coded literals, so they can be swapped
// when recalibrating against new data.
type Params struct {
	// Energy conversion. 1 megaton TNT = 4.184e15 J.
	JoulesPerMegaton float64

	// Crater scaling (Holsapple-Schmidt form):
	// D_c = CraterConstant * (rho_i/rho_t)^(1/3) * (E / (MeltEnergy*rho_t))^CraterEnergyExponent * d_i
	CraterConstant       float64
	CraterEnergyExponent float64
	TargetMeltEnergyJKg  float64
	CraterDepthRatio     float64

	// Airblast overpressure at distance r (meters):
	// p(r) = A*E^(1/3)/r + B*E^(2/3)/r^2 + C*E/r^3, in pascals.
	BlastCoeffA        float64
	BlastCoeffB        float64
	BlastCoeffC        float64
	PascalsPerPSI      float64
	BlastThresholdsPSI []float64

	// Fireball and thermal radii: E^(1/3) divided by these, in km.
	FireballDivisor float64
	ThermalDivisor  float64

	// Seismic: Mw = SeismicSlope*log10(E) + SeismicOffset.
	SeismicSlope       float64
	SeismicOffset      float64
	RichterDelta       float64
	ShakingDistancesKm []float64

	// Tsunami: H(r) = TsunamiCoefficient * (D_c^4 / (d_km^2 * r^2))^(1/4).
	TsunamiCoefficient float64
	TsunamiFloorM      float64
	TsunamiDistancesKm []float64
}

// DefaultParams returns the reference calibration validated by the
// example-scenario tests.
func DefaultParams() Params {
	return Params{
		JoulesPerMegaton: 4.184e15,

		CraterConstant:       1.161,
		CraterEnergyExponent: 0.22,
		TargetMeltEnergyJKg:  2.5e6,
		CraterDepthRatio:     0.25,

		BlastCoeffA:        0.85,
		BlastCoeffB:        3.0,
		BlastCoeffC:        7.0,
		PascalsPerPSI:      6894.76,
		BlastThresholdsPSI: []float64{1.0, 2.5, 5.0, 10.0},

		FireballDivisor: 1000.0,
		ThermalDivisor:  2000.0,

		SeismicSlope:       0.67,
		SeismicOffset:      -5.87,
		RichterDelta:       -0.2,
		ShakingDistancesKm: []float64{10, 50, 100, 500, 1000},

		TsunamiCoefficient: 0.15,
		TsunamiFloorM:      0.1,
		TsunamiDistancesKm: []float64{10, 50, 100, 500, 1000},
	}
}

// DamageZoneLabel maps an overpressure threshold to its damage-zone name.
func DamageZoneLabel(psi float64) (label, description, level string) {
	switch {
	case psi <= 1.0:
		return "window_shatter", "Most windows shatter", "light"
	case psi <= 2.5:
		return "residential_damage", "Most residential buildings severely damaged", "moderate"
	case psi <= 5.0:
		return "building_destruction", "Most buildings destroyed", "severe"
	default:
		return "reinforced_damage", "Reinforced concrete buildings severely damaged", "extreme"
	}
}
