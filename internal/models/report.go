package models

import "time"

// ReportSchemaVersion tags the current report shape so older persisted
// reports remain distinguishable.
const ReportSchemaVersion = "1.0"

type ImpactEnergy struct {
	Joules      float64 `json:"joules"`
	MegatonsTnt float64 `json:"megatonsTnt"`
	KilotonsTnt float64 `json:"kilotonsTnt"`
}

type Crater struct {
	DiameterKm float64 `json:"diameterKm"`
	DepthKm    float64 `json:"depthKm"`
}

type Airblast struct {
	// BlastRadiiKm is keyed by overpressure threshold, e.g. "2.5_psi".
	BlastRadiiKm     map[string]float64 `json:"blastRadiiKm"`
	FireballRadiusKm float64            `json:"fireballRadiusKm"`
}

type Earthquake struct {
	MomentMagnitude  float64 `json:"momentMagnitude"`
	RichterMagnitude float64 `json:"richterMagnitude"`
	// ShakingIntensities is keyed by distance band, e.g. "100_km".
	ShakingIntensities map[string]float64 `json:"shakingIntensities"`
}

type Thermal struct {
	ThermalRadiusKm      float64 `json:"thermalRadiusKm"`
	FireballTemperatureC float64 `json:"fireballTemperatureC"`
}

type Tsunami struct {
	InitialWaveHeightM float64            `json:"initialWaveHeightM"`
	WaveHeights        map[string]float64 `json:"waveHeights"` // keyed by distance band
	WaterDepthM        float64            `json:"waterDepthM"`
}

// DamageZone is one effect radius with its exposure overlay.
type DamageZone struct {
	RadiusKm          float64  `json:"radiusKm"`
	Description       string   `json:"description"`
	DamageLevel       string   `json:"damageLevel"`
	EstimatedExposed  int64    `json:"estimatedPopulationExposed"`
	Infrastructure    []string `json:"infrastructure"`
}

type ImpactLocation struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	ElevationM  float64 `json:"elevationM"`
	IsLand      bool    `json:"isLand"`
	WaterDepthM float64 `json:"waterDepthM,omitempty"`
}

// ConsequenceReport is the durable artifact of a completed session.
// Immutable once assembled; Tsunami is present only for ocean impacts.
type ConsequenceReport struct {
	SchemaVersion string         `json:"schemaVersion"`
	ImpactEnergy  ImpactEnergy   `json:"impactEnergy"`
	Crater        Crater         `json:"crater"`
	Airblast      Airblast       `json:"airblast"`
	Earthquake    Earthquake     `json:"earthquake"`
	Thermal       Thermal        `json:"thermal"`
	Tsunami       *Tsunami       `json:"tsunami,omitempty"`
	DamageZones   map[string]DamageZone `json:"damageZones"`
	Location      ImpactLocation `json:"impactLocation"`

	// Confidence carries per-section provenance: "measured" when every input
	// feeding the section was measured, "default" when any used a fallback.
	Confidence map[string]string `json:"confidence"`

	CalculatedAt time.Time `json:"calculatedAt"`
}
