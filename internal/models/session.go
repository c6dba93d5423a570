package models

import "time"

type SessionStatus string

const (
	StatusPending   SessionStatus = "pending"
	StatusFetching  SessionStatus = "fetching"
	StatusPartial   SessionStatus = "partial"
	StatusCompleted SessionStatus = "completed"
	StatusFailed    SessionStatus = "failed"
	StatusCancelled SessionStatus = "cancelled"
)

// statusRank orders statuses so transitions only ever move forward.
var statusRank = map[SessionStatus]int{
	StatusPending:   0,
	StatusFetching:  1,
	StatusPartial:   2,
	StatusCompleted: 3,
	StatusFailed:    3,
	StatusCancelled: 3,
}

// Terminal reports whether a status permits no further transitions.
func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// CanTransition reports whether moving from s to next respects the
// forward-only state machine.
func (s SessionStatus) CanTransition(next SessionStatus) bool {
	if s.Terminal() {
		return false
	}
	return statusRank[next] > statusRank[s]
}

// SubQueryName identifies one named sub-query slot of a session.
type SubQueryName string

const (
	SubQueryImpactor   SubQueryName = "impactor"
	SubQueryElevation  SubQueryName = "elevation"
	SubQueryGeology    SubQueryName = "geology"
	SubQueryFault      SubQueryName = "fault"
	SubQueryBathymetry SubQueryName = "bathymetry"
	SubQueryRegional   SubQueryName = "regional"
)

// AllSubQueries lists the fixed slot set in presentation order.
var AllSubQueries = []SubQueryName{
	SubQueryImpactor,
	SubQueryElevation,
	SubQueryGeology,
	SubQueryFault,
	SubQueryBathymetry,
	SubQueryRegional,
}

// SubQueryOutcome is the tagged result variant of a settled slot.
type SubQueryOutcome string

const (
	OutcomePending SubQueryOutcome = "pending"
	OutcomeSuccess SubQueryOutcome = "success"
	OutcomeDefault SubQueryOutcome = "default"
	OutcomeFailed  SubQueryOutcome = "failed"
)

// Settled reports whether the slot has reached a final outcome.
func (o SubQueryOutcome) Settled() bool { return o != OutcomePending }

// SubQueryState tracks one slot's progress within a session.
type SubQueryState struct {
	Name      SubQueryName    `json:"name"`
	Outcome   SubQueryOutcome `json:"outcome"`
	Error     string          `json:"error,omitempty"`
	Attempts  int             `json:"attempts"`
	SettledAt time.Time       `json:"settled_at,omitzero"`
}

// ExtractionRequest is the caller's submission. Either AsteroidName or
// Impactor must be set; when Impactor is set the catalog lookup is skipped.
type ExtractionRequest struct {
	AsteroidName string           `json:"asteroid_identifier"`
	Impactor     *ImpactorParams  `json:"impactor,omitempty"`
	Latitude     float64          `json:"impact_latitude"`
	Longitude    float64          `json:"impact_longitude"`
	AltitudeM    *float64         `json:"impact_altitude,omitempty"`
}

// ImpactorParams carries direct impactor parameters bypassing the catalog.
type ImpactorParams struct {
	DiameterM   float64 `json:"diameter_m"`
	VelocityMS  float64 `json:"velocity_ms"`
	DensityKgM3 float64 `json:"density_kg_m3"`
}

// Session is an extraction session record. It is owned exclusively by the
// orchestrator's store; callers only ever see snapshots.
type Session struct {
	ID           string                          `json:"extraction_id"`
	AsteroidName string                          `json:"asteroid_identifier"`
	Latitude     float64                         `json:"impact_latitude"`
	Longitude    float64                         `json:"impact_longitude"`
	AltitudeM    *float64                        `json:"impact_altitude,omitempty"`
	Status       SessionStatus                   `json:"status"`
	Progress     float64                         `json:"progress_percentage"`
	CurrentStep  string                          `json:"current_step"`
	SubQueries   map[SubQueryName]*SubQueryState `json:"sub_queries"`
	Impactor     *ImpactorProfile                `json:"impactor_profile,omitempty"`
	Site         *SiteProfile                    `json:"site_profile,omitempty"`
	Report       *ConsequenceReport              `json:"report,omitempty"`
	Error        string                          `json:"error,omitempty"`
	CreatedAt    time.Time                       `json:"created_at"`
	UpdatedAt    time.Time                       `json:"updated_at"`
}

// Degraded reports whether any settled sub-query fell back from a clean
// success, which marks the session partial before completion.
func (s *Session) Degraded() bool {
	for _, sq := range s.SubQueries {
		if sq.Outcome.Settled() && sq.Outcome != OutcomeSuccess {
			return true
		}
	}
	return false
}

// Snapshot returns a deep copy safe to hand outside the store lock.
func (s *Session) Snapshot() *Session {
	cp := *s
	cp.SubQueries = make(map[SubQueryName]*SubQueryState, len(s.SubQueries))
	for name, sq := range s.SubQueries {
		sqCopy := *sq
		cp.SubQueries[name] = &sqCopy
	}
	if s.AltitudeM != nil {
		alt := *s.AltitudeM
		cp.AltitudeM = &alt
	}
	return &cp
}
