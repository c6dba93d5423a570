package session

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/arthurwhennig/asterix/internal/models"
)

// Store owns the live session records. All mutation goes through the store
// lock; callers only ever receive snapshots, never the tracked structs.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
	cancels  map[string]context.CancelFunc
	clock    clockwork.Clock
}

func NewStore(clock clockwork.Clock) *Store {
	return &Store{
		sessions: make(map[string]*models.Session),
		cancels:  make(map[string]context.CancelFunc),
		clock:    clock,
	}
}

// Create registers a new pending session with all sub-query slots open.
func (st *Store) Create(req *models.ExtractionRequest) *models.Session {
	now := st.clock.Now().UTC()
	sess := &models.Session{
		ID:           uuid.NewString(),
		AsteroidName: req.AsteroidName,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		AltitudeM:    req.AltitudeM,
		Status:       models.StatusPending,
		CurrentStep:  "queued",
		SubQueries:   make(map[models.SubQueryName]*models.SubQueryState, len(models.AllSubQueries)),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for _, name := range models.AllSubQueries {
		sess.SubQueries[name] = &models.SubQueryState{Name: name, Outcome: models.OutcomePending}
	}

	st.mu.Lock()
	st.sessions[sess.ID] = sess
	st.mu.Unlock()

	return sess.Snapshot()
}

// Snapshot returns a deep copy of the session, or ErrSessionNotFound.
func (st *Store) Snapshot(id string) (*models.Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	sess, ok := st.sessions[id]
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	return sess.Snapshot(), nil
}

// Transition moves the session forward in the status machine. Backward and
// out-of-terminal moves are silently refused so late goroutines can never
// resurrect a finished session.
func (st *Store) Transition(id string, next models.SessionStatus) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	sess, ok := st.sessions[id]
	if !ok || !sess.Status.CanTransition(next) {
		return false
	}
	sess.Status = next
	sess.UpdatedAt = st.clock.Now().UTC()
	return true
}

// SettleSlot records a sub-query's final outcome exactly once and recomputes
// session progress. Returns the updated progress percentage; a second settle
// of the same slot is a no-op.
func (st *Store) SettleSlot(id string, name models.SubQueryName, outcome models.SubQueryOutcome, errMsg string, attempts int) (float64, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	sess, ok := st.sessions[id]
	if !ok {
		return 0, false
	}
	slot, ok := sess.SubQueries[name]
	if !ok || slot.Outcome.Settled() {
		return sess.Progress, false
	}

	slot.Outcome = outcome
	slot.Error = errMsg
	slot.Attempts = attempts
	slot.SettledAt = st.clock.Now().UTC()

	settled := 0
	for _, sq := range sess.SubQueries {
		if sq.Outcome.Settled() {
			settled++
		}
	}
	sess.Progress = float64(settled) / float64(len(sess.SubQueries)) * 100.0
	sess.CurrentStep = "resolving " + string(name)
	sess.UpdatedAt = st.clock.Now().UTC()
	return sess.Progress, true
}

func (st *Store) SetStep(id, step string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if sess, ok := st.sessions[id]; ok {
		sess.CurrentStep = step
		sess.UpdatedAt = st.clock.Now().UTC()
	}
}

func (st *Store) SetImpactor(id string, p *models.ImpactorProfile) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if sess, ok := st.sessions[id]; ok {
		sess.Impactor = p
		sess.UpdatedAt = st.clock.Now().UTC()
	}
}

func (st *Store) SetSite(id string, p *models.SiteProfile) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if sess, ok := st.sessions[id]; ok {
		sess.Site = p
		sess.UpdatedAt = st.clock.Now().UTC()
	}
}

func (st *Store) SetReport(id string, r *models.ConsequenceReport) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if sess, ok := st.sessions[id]; ok {
		sess.Report = r
		sess.Progress = 100.0
		sess.CurrentStep = "done"
		sess.UpdatedAt = st.clock.Now().UTC()
	}
}

func (st *Store) SetError(id, msg string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if sess, ok := st.sessions[id]; ok {
		sess.Error = msg
		sess.UpdatedAt = st.clock.Now().UTC()
	}
}

// RegisterCancel stores the session's cancel func so a user cancellation can
// interrupt in-flight sub-queries.
func (st *Store) RegisterCancel(id string, cancel context.CancelFunc) {
	st.mu.Lock()
	st.cancels[id] = cancel
	st.mu.Unlock()
}

func (st *Store) DropCancel(id string) {
	st.mu.Lock()
	delete(st.cancels, id)
	st.mu.Unlock()
}

// Cancel moves a non-terminal session to cancelled and fires its cancel
// func. Returns ErrSessionNotFound for unknown ids and false for sessions
// already in a terminal state.
func (st *Store) Cancel(id string) (bool, error) {
	st.mu.Lock()
	sess, ok := st.sessions[id]
	if !ok {
		st.mu.Unlock()
		return false, models.ErrSessionNotFound
	}
	if sess.Status.Terminal() {
		st.mu.Unlock()
		return false, nil
	}
	sess.Status = models.StatusCancelled
	sess.CurrentStep = "cancelled"
	sess.UpdatedAt = st.clock.Now().UTC()
	cancel := st.cancels[id]
	delete(st.cancels, id)
	st.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return true, nil
}
