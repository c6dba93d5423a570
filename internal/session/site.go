package session

import (
	"context"
	"sync"

	"github.com/arthurwhennig/asterix/internal/models"
	"github.com/arthurwhennig/asterix/internal/source"
)

type settleFunc func(name models.SubQueryName, outcome models.SubQueryOutcome, errMsg string, attempts int)

// siteDraft accumulates the five site sub-query results. Each resolver
// writes a disjoint field set and the caller's WaitGroup is the barrier, so
// no lock is needed.
type siteDraft struct {
	lat, lon float64

	elevationM    float64
	elevationProv models.Provenance

	geologyDesc string
	material    string
	density     float64
	geologyProv models.Provenance

	faultName string
	faultKm   float64
	faultProv models.Provenance

	bathyElevM float64
	bathyOK    bool
	bathyProv  models.Provenance

	popDensity float64
	infra      []models.InfrastructureFeature
	popProv    models.Provenance
}

// resolveSiteSlots fans the five site sub-queries out concurrently. Every
// slot settles exactly once; a failed or empty source settles to its
// documented default so the finished profile never has gaps.
func (o *Orchestrator) resolveSiteSlots(ctx context.Context, draft *siteDraft, settle settleFunc) {
	var wg sync.WaitGroup
	wg.Add(5)

	go func() {
		defer wg.Done()
		o.resolveElevation(ctx, draft, settle)
	}()
	go func() {
		defer wg.Done()
		o.resolveGeology(ctx, draft, settle)
	}()
	go func() {
		defer wg.Done()
		o.resolveFault(draft, settle)
	}()
	go func() {
		defer wg.Done()
		o.resolveBathymetry(draft, settle)
	}()
	go func() {
		defer wg.Done()
		o.resolveRegional(draft, settle)
	}()

	wg.Wait()
}

func (o *Orchestrator) resolveElevation(ctx context.Context, draft *siteDraft, settle settleFunc) {
	var elev float64
	attempts, err := withRetry(ctx, o.opts.Clock, o.opts.RetryCount, o.opts.RetryBackoff, func(ctx context.Context) error {
		v, qErr := o.opts.Elevation.ElevationAt(ctx, draft.lat, draft.lon)
		if qErr != nil {
			return qErr
		}
		elev = v
		return nil
	})
	if attempts > 1 {
		o.opts.Metrics.SubQueryRetries.WithLabelValues(string(models.SubQueryElevation)).Add(float64(attempts - 1))
	}
	if err != nil {
		// Sea-level default.
		draft.elevationM = 0
		draft.elevationProv = models.ProvenanceDefault
		settle(models.SubQueryElevation, models.OutcomeFailed, err.Error(), attempts)
		return
	}
	draft.elevationM = elev
	draft.elevationProv = models.ProvenanceMeasured
	settle(models.SubQueryElevation, models.OutcomeSuccess, "", attempts)
}

func (o *Orchestrator) resolveGeology(ctx context.Context, draft *siteDraft, settle settleFunc) {
	var unit source.GeologyResult
	attempts, err := withRetry(ctx, o.opts.Clock, o.opts.RetryCount, o.opts.RetryBackoff, func(ctx context.Context) error {
		u, qErr := o.opts.Geology.UnitAt(ctx, draft.lat, draft.lon)
		if qErr != nil {
			return qErr
		}
		unit = u
		return nil
	})
	if attempts > 1 {
		o.opts.Metrics.SubQueryRetries.WithLabelValues(string(models.SubQueryGeology)).Add(float64(attempts - 1))
	}
	if err != nil {
		draft.geologyDesc = "Unknown geological unit"
		draft.material = "unknown"
		draft.density = source.DefaultTargetDensityKgM3
		draft.geologyProv = models.ProvenanceDefault
		settle(models.SubQueryGeology, models.OutcomeFailed, err.Error(), attempts)
		return
	}

	material, density, matched := source.MaterialFromDescription(unit.Description)
	draft.geologyDesc = unit.Description
	draft.material = material
	draft.density = density
	if !matched {
		// The unit resolved but its text maps to no known material class.
		draft.geologyProv = models.ProvenanceDefault
		settle(models.SubQueryGeology, models.OutcomeDefault, "", attempts)
		return
	}
	draft.geologyProv = models.ProvenanceMeasured
	settle(models.SubQueryGeology, models.OutcomeSuccess, "", attempts)
}

func (o *Orchestrator) resolveFault(draft *siteDraft, settle settleFunc) {
	hit, ok := o.opts.Faults.Nearest(draft.lat, draft.lon)
	if !ok {
		draft.faultName = "Unknown"
		draft.faultKm = -1 // negative when no fault data covers the site
		draft.faultProv = models.ProvenanceDefault
		settle(models.SubQueryFault, models.OutcomeDefault, "", 1)
		return
	}
	draft.faultName = hit.Name
	draft.faultKm = hit.DistanceKm
	draft.faultProv = models.ProvenanceMeasured
	settle(models.SubQueryFault, models.OutcomeSuccess, "", 1)
}

func (o *Orchestrator) resolveBathymetry(draft *siteDraft, settle settleFunc) {
	elev, ok := o.opts.Bathymetry.ElevationAt(draft.lat, draft.lon)
	if !ok {
		draft.bathyOK = false
		draft.bathyProv = models.ProvenanceDefault
		settle(models.SubQueryBathymetry, models.OutcomeDefault, "", 1)
		return
	}
	draft.bathyElevM = elev
	draft.bathyOK = true
	draft.bathyProv = models.ProvenanceMeasured
	settle(models.SubQueryBathymetry, models.OutcomeSuccess, "", 1)
}

func (o *Orchestrator) resolveRegional(draft *siteDraft, settle settleFunc) {
	draft.infra = o.opts.Regional.InfrastructureWithin(draft.lat, draft.lon, o.opts.AnalysisRadiusKm)

	density, ok := o.opts.Regional.PopulationDensityAt(draft.lat, draft.lon)
	if !ok {
		draft.popDensity = 0 // no data means no estimable exposure
		draft.popProv = models.ProvenanceDefault
		settle(models.SubQueryRegional, models.OutcomeDefault, "", 1)
		return
	}
	draft.popDensity = density
	draft.popProv = models.ProvenanceMeasured
	settle(models.SubQueryRegional, models.OutcomeSuccess, "", 1)
}

// finish merges the settled slots into a fully populated profile. Water
// classification prefers the bathymetry grid and falls back to the DEM
// elevation sign; with neither, the site is treated as land.
func (d *siteDraft) finish() *models.SiteProfile {
	p := &models.SiteProfile{
		Latitude:           d.lat,
		Longitude:          d.lon,
		ElevationM:         d.elevationM,
		TargetDensityKgM3:  d.density,
		GeologyDescription: d.geologyDesc,
		MaterialType:       d.material,
		NearestFaultName:   d.faultName,
		NearestFaultKm:     d.faultKm,

		PopulationDensityPerKm2: d.popDensity,
		Infrastructure:          d.infra,

		Provenance: map[string]models.Provenance{
			models.FieldElevation:      d.elevationProv,
			models.FieldGeology:        d.geologyProv,
			models.FieldFault:          d.faultProv,
			models.FieldBathymetry:     d.bathyProv,
			models.FieldPopulation:     d.popProv,
			models.FieldInfrastructure: d.popProv,
		},
	}
	if p.Infrastructure == nil {
		p.Infrastructure = []models.InfrastructureFeature{}
	}

	switch {
	case d.bathyOK && d.bathyElevM < 0:
		p.IsLand = false
		p.WaterDepthM = -d.bathyElevM
		// Ocean sites override a failed or coarse DEM reading.
		if d.elevationProv == models.ProvenanceDefault {
			p.ElevationM = d.bathyElevM
		}
	case d.bathyOK:
		p.IsLand = true
	case d.elevationProv == models.ProvenanceMeasured && d.elevationM < 0:
		p.IsLand = false
		p.WaterDepthM = -d.elevationM
	default:
		p.IsLand = true
	}

	// Ocean floor is unconsolidated sediment, not the mapped land unit.
	if !p.IsLand && d.geologyProv == models.ProvenanceDefault {
		p.MaterialType = "water"
		p.GeologyDescription = "Ocean water column over seafloor sediment"
	}

	return p
}
