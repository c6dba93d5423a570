package source

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/arthurwhennig/asterix/internal/models"
)

// Preloaded regional datasets: fault lines, bathymetry, population density,
// and infrastructure. All are GeoJSON feature collections read once at
// startup; lookups are pure in-memory geometry queries.

type geoFeatureCollection struct {
	Features []geoFeature `json:"features"`
}

type geoFeature struct {
	Geometry struct {
		Type        string          `json:"type"`
		Coordinates json.RawMessage `json:"coordinates"`
	} `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

func loadFeatureCollection(path string) (*geoFeatureCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading dataset %s: %w", path, err)
	}
	var fc geoFeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("error parsing dataset %s: %w", path, err)
	}
	return &fc, nil
}

func (f *geoFeature) stringProp(keys ...string) string {
	for _, k := range keys {
		if v, ok := f.Properties[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func (f *geoFeature) floatProp(keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := f.Properties[k].(float64); ok {
			return v, true
		}
	}
	return 0, false
}

// point is a lon/lat pair as GeoJSON orders them.
type point [2]float64

func (f *geoFeature) vertices() []point {
	switch f.Geometry.Type {
	case "Point":
		var p point
		if err := json.Unmarshal(f.Geometry.Coordinates, &p); err != nil {
			return nil
		}
		return []point{p}
	case "LineString":
		var line []point
		if err := json.Unmarshal(f.Geometry.Coordinates, &line); err != nil {
			return nil
		}
		return line
	case "MultiLineString":
		var lines [][]point
		if err := json.Unmarshal(f.Geometry.Coordinates, &lines); err != nil {
			return nil
		}
		var all []point
		for _, line := range lines {
			all = append(all, line...)
		}
		return all
	default:
		return nil
	}
}

// FaultIndex answers nearest-active-fault queries against a preloaded
// fault-line dataset.
type FaultIndex struct {
	faults []faultLine
}

type faultLine struct {
	name     string
	kind     string
	vertices []point
}

// FaultHit is the closest fault feature to a query point.
type FaultHit struct {
	Name       string
	Type       string
	DistanceKm float64
}

func LoadFaultIndex(path string) (*FaultIndex, error) {
	fc, err := loadFeatureCollection(path)
	if err != nil {
		return nil, err
	}
	idx := &FaultIndex{}
	for _, f := range fc.Features {
		verts := f.vertices()
		if len(verts) == 0 {
			continue
		}
		idx.faults = append(idx.faults, faultLine{
			name:     f.stringProp("name", "fault_name", "Fault_Name"),
			kind:     f.stringProp("fault_type", "Fault_Type", "slip_type"),
			vertices: verts,
		})
	}
	return idx, nil
}

// EmptyFaultIndex returns an index with no features; every query misses.
func EmptyFaultIndex() *FaultIndex { return &FaultIndex{} }

// Nearest returns the minimum distance from the query point to any fault
// vertex. ok is false when the dataset is empty.
func (idx *FaultIndex) Nearest(lat, lon float64) (FaultHit, bool) {
	best := FaultHit{DistanceKm: math.Inf(1)}
	for _, fault := range idx.faults {
		for _, v := range fault.vertices {
			d := Haversine(lat, lon, v[1], v[0])
			if d < best.DistanceKm {
				best = FaultHit{Name: fault.name, Type: fault.kind, DistanceKm: d}
			}
		}
	}
	if math.IsInf(best.DistanceKm, 1) {
		return FaultHit{}, false
	}
	if best.Name == "" {
		best.Name = "Unknown"
	}
	return best, true
}

// BathymetryIndex answers seafloor-depth / land-classification queries
// against a preloaded grid-sample dataset. Each feature is a Point with an
// elevation_m property: negative below sea level, positive above.
type BathymetryIndex struct {
	samples []bathySample
	// maxCellKm bounds how far a query may sit from the nearest grid sample
	// before the lookup is treated as a miss.
	maxCellKm float64
}

type bathySample struct {
	lat, lon   float64
	elevationM float64
}

func LoadBathymetryIndex(path string, maxCellKm float64) (*BathymetryIndex, error) {
	fc, err := loadFeatureCollection(path)
	if err != nil {
		return nil, err
	}
	idx := &BathymetryIndex{maxCellKm: maxCellKm}
	for _, f := range fc.Features {
		verts := f.vertices()
		elev, ok := f.floatProp("elevation_m", "elevation", "depth")
		if len(verts) != 1 || !ok {
			continue
		}
		idx.samples = append(idx.samples, bathySample{
			lat: verts[0][1], lon: verts[0][0], elevationM: elev,
		})
	}
	return idx, nil
}

func EmptyBathymetryIndex() *BathymetryIndex { return &BathymetryIndex{} }

// ElevationAt returns the grid elevation at the nearest sample, negative for
// ocean floor. ok is false when no sample lies within the cell tolerance.
func (idx *BathymetryIndex) ElevationAt(lat, lon float64) (float64, bool) {
	bestDist := math.Inf(1)
	var bestElev float64
	for _, s := range idx.samples {
		d := Haversine(lat, lon, s.lat, s.lon)
		if d < bestDist {
			bestDist = d
			bestElev = s.elevationM
		}
	}
	if math.IsInf(bestDist, 1) || (idx.maxCellKm > 0 && bestDist > idx.maxCellKm) {
		return 0, false
	}
	return bestElev, true
}

// RegionalIndex answers population-density and infrastructure queries
// against preloaded point datasets.
type RegionalIndex struct {
	population     []popSample
	infrastructure []infraFeature
	maxCellKm      float64
}

type popSample struct {
	lat, lon      float64
	densityPerKm2 float64
}

type infraFeature struct {
	lat, lon float64
	name     string
	category string
}

func LoadRegionalIndex(populationPath, infrastructurePath string, maxCellKm float64) (*RegionalIndex, error) {
	idx := &RegionalIndex{maxCellKm: maxCellKm}

	popFC, err := loadFeatureCollection(populationPath)
	if err != nil {
		return nil, err
	}
	for _, f := range popFC.Features {
		verts := f.vertices()
		density, ok := f.floatProp("density_per_km2", "population_density", "density")
		if len(verts) != 1 || !ok {
			continue
		}
		idx.population = append(idx.population, popSample{
			lat: verts[0][1], lon: verts[0][0], densityPerKm2: density,
		})
	}

	infraFC, err := loadFeatureCollection(infrastructurePath)
	if err != nil {
		return nil, err
	}
	for _, f := range infraFC.Features {
		verts := f.vertices()
		if len(verts) != 1 {
			continue
		}
		idx.infrastructure = append(idx.infrastructure, infraFeature{
			lat:      verts[0][1],
			lon:      verts[0][0],
			name:     f.stringProp("name", "Name"),
			category: f.stringProp("category", "type", "amenity"),
		})
	}

	return idx, nil
}

func EmptyRegionalIndex() *RegionalIndex { return &RegionalIndex{} }

// PopulationDensityAt returns density at the nearest population sample.
func (idx *RegionalIndex) PopulationDensityAt(lat, lon float64) (float64, bool) {
	bestDist := math.Inf(1)
	var best float64
	for _, s := range idx.population {
		d := Haversine(lat, lon, s.lat, s.lon)
		if d < bestDist {
			bestDist = d
			best = s.densityPerKm2
		}
	}
	if math.IsInf(bestDist, 1) || (idx.maxCellKm > 0 && bestDist > idx.maxCellKm) {
		return 0, false
	}
	return best, true
}

// InfrastructureWithin lists infrastructure features within radiusKm of the
// query point, closest first.
func (idx *RegionalIndex) InfrastructureWithin(lat, lon, radiusKm float64) []models.InfrastructureFeature {
	var out []models.InfrastructureFeature
	for _, f := range idx.infrastructure {
		d := Haversine(lat, lon, f.lat, f.lon)
		if d > radiusKm {
			continue
		}
		out = append(out, models.InfrastructureFeature{
			Name:       f.name,
			Category:   f.category,
			Latitude:   f.lat,
			Longitude:  f.lon,
			DistanceKm: d,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DistanceKm < out[j].DistanceKm })
	return out
}
