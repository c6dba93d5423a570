package exposure

import (
	"math"

	"github.com/arthurwhennig/asterix/internal/models"
)

// Zone is one effect radius to overlay against the site's population and
// infrastructure data.
type Zone struct {
	Label       string
	Description string
	DamageLevel string
	RadiusKm    float64
}

// ZoneExposure is the population/infrastructure overlay for one zone.
type ZoneExposure struct {
	Zone
	EstimatedPopulation int64
	Infrastructure      []string
}

// Overlay intersects each effect radius with the site's population density
// and infrastructure features. Pure: operates only on the resolved profile.
// Population uses the point-density model: density times the zone area.
func Overlay(site models.SiteProfile, zones []Zone) []ZoneExposure {
	out := make([]ZoneExposure, 0, len(zones))
	for _, z := range zones {
		area := math.Pi * z.RadiusKm * z.RadiusKm
		exp := ZoneExposure{
			Zone:                z,
			EstimatedPopulation: int64(site.PopulationDensityPerKm2 * area),
		}
		for _, f := range site.Infrastructure {
			if f.DistanceKm <= z.RadiusKm {
				exp.Infrastructure = append(exp.Infrastructure, f.Name)
			}
		}
		out = append(out, exp)
	}
	return out
}
