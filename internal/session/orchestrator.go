package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/arthurwhennig/asterix/internal/exposure"
	"github.com/arthurwhennig/asterix/internal/models"
	"github.com/arthurwhennig/asterix/internal/observability"
	"github.com/arthurwhennig/asterix/internal/physics"
	"github.com/arthurwhennig/asterix/internal/report"
	"github.com/arthurwhennig/asterix/internal/repository"
	"github.com/arthurwhennig/asterix/internal/source"
	"github.com/arthurwhennig/asterix/internal/worker"
)

// ErrBusy is returned when the async queue cannot accept another session.
var ErrBusy = errors.New("extraction queue is full")

// ErrNotReady is returned when results are requested before the session
// reaches a terminal completed state.
var ErrNotReady = errors.New("extraction not completed")

type ImpactorCatalog interface {
	Lookup(ctx context.Context, designation string) (*models.ImpactorProfile, error)
}

type ElevationSource interface {
	ElevationAt(ctx context.Context, lat, lon float64) (float64, error)
}

type GeologySource interface {
	UnitAt(ctx context.Context, lat, lon float64) (source.GeologyResult, error)
}

type Repository interface {
	repository.SessionRepository
	repository.ReportRepository
}

type Options struct {
	Catalog    ImpactorCatalog
	Elevation  ElevationSource
	Geology    GeologySource
	Faults     *source.FaultIndex
	Bathymetry *source.BathymetryIndex
	Regional   *source.RegionalIndex

	Repo    Repository
	Metrics *observability.Metrics
	Clock   clockwork.Clock
	Params  physics.Params

	RetryCount       int
	RetryBackoff     time.Duration
	AnalysisRadiusKm float64
	Workers          int
	QueueSize        int
}

// Orchestrator runs extraction sessions: it fans the six sub-queries out
// concurrently, settles each exactly once, and chains the consequence
// pipeline over the resolved profiles.
type Orchestrator struct {
	opts        Options
	store       *Store
	pool        *worker.Pool
	broadcaster *Broadcaster
}

func New(opts Options) *Orchestrator {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Workers < 1 {
		opts.Workers = 4
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = 64
	}
	if opts.Faults == nil {
		opts.Faults = source.EmptyFaultIndex()
	}
	if opts.Bathymetry == nil {
		opts.Bathymetry = source.EmptyBathymetryIndex()
	}
	if opts.Regional == nil {
		opts.Regional = source.EmptyRegionalIndex()
	}
	return &Orchestrator{
		opts:        opts,
		store:       NewStore(opts.Clock),
		pool:        worker.NewPool(opts.Workers, opts.QueueSize),
		broadcaster: NewBroadcaster(),
	}
}

func (o *Orchestrator) Start(ctx context.Context) {
	o.pool.Start(ctx)
}

func (o *Orchestrator) Stop() {
	o.pool.Stop()
	o.broadcaster.Close()
	slog.Info("orchestrator stopped")
}

// Subscribe registers a progress watcher for all sessions.
func (o *Orchestrator) Subscribe() (uint64, chan ProgressEvent) {
	return o.broadcaster.Subscribe()
}

func (o *Orchestrator) Unsubscribe(id uint64) {
	o.broadcaster.Unsubscribe(id)
}

// StartAsync queues a session for background execution and returns its
// initial pending snapshot immediately.
func (o *Orchestrator) StartAsync(req *models.ExtractionRequest) (*models.Session, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	sess := o.store.Create(req)
	o.persist(sess)

	accepted := o.pool.TrySubmit(func(ctx context.Context) {
		o.run(ctx, sess.ID, req)
	})
	if !accepted {
		o.store.SetError(sess.ID, ErrBusy.Error())
		o.store.Transition(sess.ID, models.StatusFailed)
		if snap, err := o.store.Snapshot(sess.ID); err == nil {
			o.persist(snap)
		}
		return nil, ErrBusy
	}

	slog.Info("queued extraction session", "id", sess.ID, "asteroid", req.AsteroidName)
	return sess, nil
}

// Resolve runs a session synchronously on the caller's context and returns
// the terminal snapshot.
func (o *Orchestrator) Resolve(ctx context.Context, req *models.ExtractionRequest) (*models.Session, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	sess := o.store.Create(req)
	o.persist(sess)
	o.run(ctx, sess.ID, req)

	return o.store.Snapshot(sess.ID)
}

// Status returns the session snapshot, consulting the repository for
// sessions that predate the current process.
func (o *Orchestrator) Status(ctx context.Context, id string) (*models.Session, error) {
	sess, err := o.store.Snapshot(id)
	if err == nil {
		return sess, nil
	}
	return o.opts.Repo.GetSession(ctx, id)
}

// Result returns the durable report of a completed session. ErrNotReady is
// returned while the session is still in flight or ended without a report.
func (o *Orchestrator) Result(ctx context.Context, id string) (*models.ConsequenceReport, error) {
	sess, err := o.Status(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Status != models.StatusCompleted {
		return nil, fmt.Errorf("%w: session is %s", ErrNotReady, sess.Status)
	}
	if sess.Report != nil {
		return sess.Report, nil
	}
	return o.opts.Repo.GetReport(ctx, id)
}

// Cancel stops a non-terminal session. Cancelling a terminal session is a
// no-op, not an error.
func (o *Orchestrator) Cancel(id string) error {
	cancelled, err := o.store.Cancel(id)
	if err != nil {
		return err
	}
	if !cancelled {
		return nil
	}

	snap, err := o.store.Snapshot(id)
	if err == nil {
		o.persist(snap)
		o.broadcastStatus(snap)
	}
	o.opts.Metrics.SessionsFinished.WithLabelValues(string(models.StatusCancelled)).Inc()
	slog.Info("cancelled extraction session", "id", id)
	return nil
}

// ResolveImpactor looks up a single impactor profile with the session retry
// policy, outside any session.
func (o *Orchestrator) ResolveImpactor(ctx context.Context, designation string) (*models.ImpactorProfile, error) {
	var prof *models.ImpactorProfile
	_, err := withRetry(ctx, o.opts.Clock, o.opts.RetryCount, o.opts.RetryBackoff, func(ctx context.Context) error {
		p, err := o.opts.Catalog.Lookup(ctx, designation)
		if err != nil {
			return err
		}
		prof = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return prof, nil
}

// ResolveSite resolves a standalone site profile without session
// bookkeeping. Failed sources settle to their documented defaults.
func (o *Orchestrator) ResolveSite(ctx context.Context, lat, lon float64) (*models.SiteProfile, error) {
	if !source.ValidCoordinates(lat, lon) {
		return nil, &models.ValidationError{Field: "coordinates", Reason: fmt.Sprintf("(%v, %v) out of range", lat, lon)}
	}
	draft := &siteDraft{lat: lat, lon: lon}
	o.resolveSiteSlots(ctx, draft, func(models.SubQueryName, models.SubQueryOutcome, string, int) {})
	return draft.finish(), nil
}

func validateRequest(req *models.ExtractionRequest) error {
	if !source.ValidCoordinates(req.Latitude, req.Longitude) {
		return &models.ValidationError{Field: "coordinates", Reason: fmt.Sprintf("(%v, %v) out of range", req.Latitude, req.Longitude)}
	}
	if req.AsteroidName == "" && req.Impactor == nil {
		return &models.ValidationError{Field: "asteroid_identifier", Reason: "either an identifier or direct impactor parameters are required"}
	}
	if p := req.Impactor; p != nil {
		if p.DiameterM <= 0 {
			return &models.ValidationError{Field: "diameter_m", Reason: "must be positive"}
		}
		if p.VelocityMS <= 0 {
			return &models.ValidationError{Field: "velocity_ms", Reason: "must be positive"}
		}
		if p.DensityKgM3 <= 0 {
			return &models.ValidationError{Field: "density_kg_m3", Reason: "must be positive"}
		}
	}
	return nil
}

// run executes a session to its terminal state. The impactor and the five
// site sub-queries resolve concurrently; an unknown impactor identifier is
// the only fatal sub-query outcome and interrupts the rest.
func (o *Orchestrator) run(ctx context.Context, id string, req *models.ExtractionRequest) {
	runCtx, cancel := context.WithCancel(ctx)
	o.store.RegisterCancel(id, cancel)
	defer cancel()
	defer o.store.DropCancel(id)

	o.opts.Metrics.ActiveSessions.Inc()
	defer o.opts.Metrics.ActiveSessions.Dec()

	o.store.Transition(id, models.StatusFetching)
	o.store.SetStep(id, "resolving sub-queries")
	if snap, err := o.store.Snapshot(id); err == nil {
		o.broadcastStatus(snap)
	}

	start := o.opts.Clock.Now()

	settle := func(name models.SubQueryName, outcome models.SubQueryOutcome, errMsg string, attempts int) {
		o.settleSlot(id, name, outcome, errMsg, attempts)
	}

	var (
		impactor *models.ImpactorProfile
		impErr   error
	)
	draft := &siteDraft{lat: req.Latitude, lon: req.Longitude}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		impactor, impErr = o.resolveImpactorSlot(runCtx, req, settle)
		if impErr != nil {
			cancel() // no profile, no session; stop the site queries
		}
	}()
	go func() {
		defer wg.Done()
		o.resolveSiteSlots(runCtx, draft, settle)
	}()
	wg.Wait()

	o.opts.Metrics.ResolutionDuration.Observe(o.opts.Clock.Since(start).Seconds())

	snap, err := o.store.Snapshot(id)
	if err != nil {
		return
	}
	if snap.Status == models.StatusCancelled {
		o.persist(snap)
		return
	}

	if impErr != nil {
		o.fail(id, fmt.Errorf("impactor resolution: %w", impErr))
		return
	}
	if runCtx.Err() != nil {
		o.fail(id, runCtx.Err())
		return
	}

	site := draft.finish()
	o.store.SetImpactor(id, impactor)
	o.store.SetSite(id, site)

	if snap.Degraded() {
		o.store.Transition(id, models.StatusPartial)
		if s, err := o.store.Snapshot(id); err == nil {
			o.broadcastStatus(s)
		}
	}

	o.complete(id, impactor, site)
}

func (o *Orchestrator) complete(id string, imp *models.ImpactorProfile, site *models.SiteProfile) {
	o.store.SetStep(id, "computing consequences")

	start := o.opts.Clock.Now()
	out, err := physics.Compute(*imp, *site, o.opts.Params)
	o.opts.Metrics.PhysicsDuration.Observe(o.opts.Clock.Since(start).Seconds())
	if err != nil {
		o.fail(id, err)
		return
	}

	zones := make([]exposure.Zone, 0, len(out.Blast))
	for _, ring := range out.Blast {
		label, description, level := physics.DamageZoneLabel(ring.PSI)
		zones = append(zones, exposure.Zone{
			Label:       label,
			Description: description,
			DamageLevel: level,
			RadiusKm:    ring.RadiusKm,
		})
	}
	exposures := exposure.Overlay(*site, zones)

	rep := report.Assemble(out, exposures, *imp, *site, models.ReportSchemaVersion, o.opts.Clock.Now().UTC())

	o.store.SetReport(id, rep)
	o.store.Transition(id, models.StatusCompleted)

	snap, err := o.store.Snapshot(id)
	if err != nil {
		return
	}
	o.persist(snap)
	o.persistReport(id, rep)

	o.opts.Metrics.SessionsFinished.WithLabelValues(string(models.StatusCompleted)).Inc()
	o.broadcastStatus(snap)
	slog.Info("completed extraction session", "id", id, "megatons", rep.ImpactEnergy.MegatonsTnt, "status", snap.Status)
}

func (o *Orchestrator) fail(id string, cause error) {
	o.store.SetError(id, cause.Error())
	o.store.Transition(id, models.StatusFailed)
	if snap, err := o.store.Snapshot(id); err == nil {
		o.persist(snap)
		o.broadcastStatus(snap)
	}
	o.opts.Metrics.SessionsFinished.WithLabelValues(string(models.StatusFailed)).Inc()
	slog.Warn("failed extraction session", "id", id, "error", cause)
}

func (o *Orchestrator) resolveImpactorSlot(ctx context.Context, req *models.ExtractionRequest, settle settleFunc) (*models.ImpactorProfile, error) {
	if req.Impactor != nil {
		settle(models.SubQueryImpactor, models.OutcomeSuccess, "", 1)
		return profileFromParams(req.Impactor), nil
	}

	var prof *models.ImpactorProfile
	attempts, err := withRetry(ctx, o.opts.Clock, o.opts.RetryCount, o.opts.RetryBackoff, func(ctx context.Context) error {
		p, lookupErr := o.opts.Catalog.Lookup(ctx, req.AsteroidName)
		if lookupErr != nil {
			return lookupErr
		}
		prof = p
		return nil
	})
	if attempts > 1 {
		o.opts.Metrics.SubQueryRetries.WithLabelValues(string(models.SubQueryImpactor)).Add(float64(attempts - 1))
	}
	if err != nil {
		settle(models.SubQueryImpactor, models.OutcomeFailed, err.Error(), attempts)
		return nil, err
	}
	settle(models.SubQueryImpactor, models.OutcomeSuccess, "", attempts)
	return prof, nil
}

func profileFromParams(p *models.ImpactorParams) *models.ImpactorProfile {
	return &models.ImpactorProfile{
		Name:        "custom",
		Designation: "custom",
		DiameterM:   p.DiameterM,
		VelocityMS:  p.VelocityMS,
		DensityKgM3: p.DensityKgM3,
		Composition: "Unknown",
		Provenance: map[string]models.Provenance{
			models.FieldDiameter: models.ProvenanceMeasured,
			models.FieldVelocity: models.ProvenanceMeasured,
			models.FieldDensity:  models.ProvenanceMeasured,
		},
	}
}

func (o *Orchestrator) settleSlot(id string, name models.SubQueryName, outcome models.SubQueryOutcome, errMsg string, attempts int) {
	progress, ok := o.store.SettleSlot(id, name, outcome, errMsg, attempts)
	if !ok {
		return
	}
	o.opts.Metrics.SubQueries.WithLabelValues(string(name), string(outcome)).Inc()

	if snap, err := o.store.Snapshot(id); err == nil {
		o.broadcaster.Broadcast(ProgressEvent{
			SessionID: id,
			Status:    snap.Status,
			Progress:  progress,
			Step:      snap.CurrentStep,
			SubQuery:  name,
			Outcome:   outcome,
		})
	}
}

func (o *Orchestrator) broadcastStatus(sess *models.Session) {
	o.broadcaster.Broadcast(ProgressEvent{
		SessionID: sess.ID,
		Status:    sess.Status,
		Progress:  sess.Progress,
		Step:      sess.CurrentStep,
	})
}

func (o *Orchestrator) persist(sess *models.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.opts.Repo.SaveSession(ctx, sess); err != nil {
		slog.Error("error persisting session", "id", sess.ID, "error", err)
	}
}

func (o *Orchestrator) persistReport(id string, rep *models.ConsequenceReport) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.opts.Repo.SaveReport(ctx, id, rep); err != nil {
		slog.Error("error persisting report", "id", id, "error", err)
	}
}
