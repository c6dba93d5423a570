package source

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/arthurwhennig/asterix/internal/config"
	"github.com/arthurwhennig/asterix/internal/models"
)

// SBDBClient looks up impactor physical and kinematic parameters in a
// small-body catalog by object designation.
type SBDBClient struct {
	baseURL        string
	velocitySource string
	httpClient     *http.Client
}

func NewSBDBClient(baseURL, velocitySource string, timeout time.Duration) *SBDBClient {
	return &SBDBClient{
		baseURL:        baseURL,
		velocitySource: velocitySource,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type sbdbResponse struct {
	Object  sbdbObject  `json:"object"`
	PhysPar sbdbPhysPar `json:"phys_par"`
	CAData  []sbdbCA    `json:"ca_data"`
	Orbit   sbdbOrbit   `json:"orbit"`
	Message string      `json:"message"`
}

type sbdbObject struct {
	Fullname string `json:"fullname"`
	Des      string `json:"des"`
	PHA      string `json:"pha"`
}

type sbdbPhysPar struct {
	Diameter    string `json:"diameter"`     // km, nominal
	DiameterMin string `json:"diameter_min"` // km
	DiameterMax string `json:"diameter_max"` // km
	Mass        string `json:"mass"`         // kg
	Density     string `json:"density"`      // g/cm3
	SpecB       string `json:"spec_B"`
}

type sbdbCA struct {
	Date string `json:"cd"`
	Dist string `json:"dist"`  // au
	VRel string `json:"v_rel"` // km/s
	Body string `json:"body"`
}

type sbdbOrbit struct {
	Epoch string `json:"epoch"`
	// StateVect is [x, y, z, vx, vy, vz]; velocity components in km/s.
	StateVect []string `json:"state_vect"`
}

// Lookup resolves an ImpactorProfile for the given designation, normalizing
// units to meters and meters/second. Returns models.ErrNotFound when the
// catalog has neither diameter nor kinematic data for the identifier.
func (c *SBDBClient) Lookup(ctx context.Context, designation string) (*models.ImpactorProfile, error) {
	params := url.Values{
		"sstr":     {designation},
		"phys-par": {"1"},
		"ca-data":  {"1"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &models.SourceError{Source: "sbdb", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, models.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &models.SourceError{Source: "sbdb", Err: fmt.Errorf("unexpected status code: %d - status: %s", resp.StatusCode, resp.Status)}
	}

	var data sbdbResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, &models.SourceError{Source: "sbdb", Err: fmt.Errorf("error decoding resp.Body: %w", err)}
	}

	if data.Object.Des == "" && data.Object.Fullname == "" {
		return nil, models.ErrNotFound
	}

	return c.buildProfile(designation, &data)
}

func (c *SBDBClient) buildProfile(designation string, data *sbdbResponse) (*models.ImpactorProfile, error) {
	profile := &models.ImpactorProfile{
		Name:        designation,
		Designation: data.Object.Des,
		Composition: "Unknown",
		Hazardous:   data.Object.PHA == "Y",
		Provenance:  make(map[string]models.Provenance),
	}
	if profile.Designation == "" {
		profile.Designation = designation
	}

	diameterKm, diameterOK := parseDiameterKm(data.PhysPar)
	velocityKmS, velocityProv, velocityOK := c.pickVelocityKmS(data)

	// Nothing usable at all is the only fatal resolution outcome.
	if !diameterOK && !velocityOK {
		return nil, models.ErrNotFound
	}
	if !diameterOK {
		return nil, fmt.Errorf("%w: diameter missing for %s", models.ErrNotFound, designation)
	}
	if !velocityOK {
		return nil, fmt.Errorf("%w: kinematic data missing for %s", models.ErrNotFound, designation)
	}

	// km -> m, km/s -> m/s. Conversions are exact by construction.
	profile.DiameterM = diameterKm * 1000.0
	profile.Provenance[models.FieldDiameter] = models.ProvenanceMeasured
	profile.VelocityMS = velocityKmS * 1000.0
	profile.Provenance[models.FieldVelocity] = velocityProv

	if density, err := strconv.ParseFloat(data.PhysPar.Density, 64); err == nil && density > 0 {
		profile.DensityKgM3 = density * 1000.0 // g/cm3 -> kg/m3
		profile.Provenance[models.FieldDensity] = models.ProvenanceMeasured
	} else {
		profile.DensityKgM3 = DefaultImpactorDensityKgM3
		profile.Provenance[models.FieldDensity] = models.ProvenanceDefault
	}

	if mass, err := strconv.ParseFloat(data.PhysPar.Mass, 64); err == nil && mass > 0 {
		profile.MassKg = mass
	}
	if data.PhysPar.SpecB != "" {
		profile.Composition = data.PhysPar.SpecB
	}

	for i, ca := range data.CAData {
		if i >= 5 {
			break
		}
		vrel, _ := strconv.ParseFloat(ca.VRel, 64)
		distAu, _ := strconv.ParseFloat(ca.Dist, 64)
		profile.CloseApproaches = append(profile.CloseApproaches, models.CloseApproach{
			Date:        ca.Date,
			DistanceKm:  distAu * 1.495978707e8,
			VelocityKmS: vrel,
			Body:        ca.Body,
		})
	}

	return profile, nil
}

func parseDiameterKm(pp sbdbPhysPar) (float64, bool) {
	if d, err := strconv.ParseFloat(pp.Diameter, 64); err == nil && d > 0 {
		return d, true
	}
	// A range without a nominal value resolves to the mean.
	dMin, errMin := strconv.ParseFloat(pp.DiameterMin, 64)
	dMax, errMax := strconv.ParseFloat(pp.DiameterMax, 64)
	if errMin == nil && errMax == nil && dMin > 0 && dMax > 0 {
		return (dMin + dMax) / 2.0, true
	}
	return 0, false
}

// pickVelocityKmS reads the configured kinematic channel first and falls
// back to the other only when the configured one is absent, flagging the
// fallback with default provenance.
func (c *SBDBClient) pickVelocityKmS(data *sbdbResponse) (float64, models.Provenance, bool) {
	ca, caOK := closeApproachVelocity(data.CAData)
	epoch, epochOK := epochVelocity(data.Orbit)

	if c.velocitySource == config.VelocitySourceEpoch {
		if epochOK {
			return epoch, models.ProvenanceMeasured, true
		}
		if caOK {
			return ca, models.ProvenanceDefault, true
		}
		return 0, "", false
	}

	if caOK {
		return ca, models.ProvenanceMeasured, true
	}
	if epochOK {
		return epoch, models.ProvenanceDefault, true
	}
	return 0, "", false
}

func closeApproachVelocity(cas []sbdbCA) (float64, bool) {
	if len(cas) == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(cas[0].VRel, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

func epochVelocity(orbit sbdbOrbit) (float64, bool) {
	if len(orbit.StateVect) != 6 {
		return 0, false
	}
	var sum float64
	for _, s := range orbit.StateVect[3:] {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		sum += v * v
	}
	mag := math.Sqrt(sum)
	if mag <= 0 {
		return 0, false
	}
	return mag, true
}
