package models

// Provenance marks whether a profile field holds a measured value or a
// documented fallback default.
type Provenance string

const (
	ProvenanceMeasured Provenance = "measured"
	ProvenanceDefault  Provenance = "default"
)

// Field names used as provenance keys.
const (
	FieldDiameter       = "diameter"
	FieldVelocity       = "velocity"
	FieldDensity        = "density"
	FieldElevation      = "elevation"
	FieldGeology        = "geology"
	FieldFault          = "fault"
	FieldBathymetry     = "bathymetry"
	FieldPopulation     = "population"
	FieldInfrastructure = "infrastructure"
)

// CloseApproach is one close-approach record from the small-body catalog.
type CloseApproach struct {
	Date         string  `json:"date"`
	DistanceKm   float64 `json:"distance_km"`
	VelocityKmS  float64 `json:"velocity_km_s"`
	Body         string  `json:"body"`
}

// ImpactorProfile holds the resolved physical and kinematic parameters of
// the impactor, normalized to meters and meters per second. Immutable once
// resolved for a session.
type ImpactorProfile struct {
	Name            string          `json:"name"`
	Designation     string          `json:"designation"`
	DiameterM       float64         `json:"diameter_m"`
	VelocityMS      float64         `json:"velocity_ms"`
	DensityKgM3     float64         `json:"density_kg_m3"`
	MassKg          float64         `json:"mass_kg,omitempty"`
	Composition     string          `json:"composition"`
	Hazardous       bool            `json:"is_potentially_hazardous"`
	CloseApproaches []CloseApproach `json:"close_approach_data,omitempty"`

	Provenance map[string]Provenance `json:"provenance"`
}

// InfrastructureFeature is a named infrastructure point near the impact
// site, with its distance from the query coordinates.
type InfrastructureFeature struct {
	Name       string  `json:"name"`
	Category   string  `json:"category"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	DistanceKm float64 `json:"distance_km"`
}

// SiteProfile holds the resolved properties of the impact site. Every field
// is always populated: failed sub-queries are replaced by documented
// defaults, never left missing, so downstream physics never sees a gap.
// WaterDepthM is set iff IsLand is false.
type SiteProfile struct {
	Latitude          float64 `json:"latitude"`
	Longitude         float64 `json:"longitude"`
	ElevationM        float64 `json:"elevation_m"`
	IsLand            bool    `json:"is_land"`
	TargetDensityKgM3 float64 `json:"target_density_kg_m3"`
	GeologyDescription string `json:"geology_description"`
	MaterialType      string  `json:"material_type"`
	NearestFaultName  string  `json:"nearest_fault_name"`
	NearestFaultKm    float64 `json:"nearest_fault_km"`
	WaterDepthM       float64 `json:"water_depth_m,omitempty"`

	PopulationDensityPerKm2 float64                 `json:"population_density_per_km2"`
	Infrastructure          []InfrastructureFeature `json:"infrastructure"`

	Provenance map[string]Provenance `json:"provenance"`
}
