package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/arthurwhennig/asterix/internal/models"
	"github.com/arthurwhennig/asterix/internal/observability"
	"github.com/arthurwhennig/asterix/internal/physics"
	"github.com/arthurwhennig/asterix/internal/repository"
	"github.com/arthurwhennig/asterix/internal/source"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type mockCatalog struct {
	profile  *models.ImpactorProfile
	err      error
	failures int // transient failures before success
	calls    atomic.Int64
}

func (m *mockCatalog) Lookup(ctx context.Context, designation string) (*models.ImpactorProfile, error) {
	n := m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	if int(n) <= m.failures {
		return nil, &models.SourceError{Source: "sbdb", Err: errors.New("transient")}
	}
	p := *m.profile
	return &p, nil
}

type mockElevation struct {
	elevation float64
	err       error
	block     bool // block until the context is cancelled
	calls     atomic.Int64
}

func (m *mockElevation) ElevationAt(ctx context.Context, lat, lon float64) (float64, error) {
	m.calls.Add(1)
	if m.block {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	if m.err != nil {
		return 0, m.err
	}
	return m.elevation, nil
}

type mockGeology struct {
	unit source.GeologyResult
	err  error
}

func (m *mockGeology) UnitAt(ctx context.Context, lat, lon float64) (source.GeologyResult, error) {
	if m.err != nil {
		return source.GeologyResult{}, m.err
	}
	return m.unit, nil
}

type mockRepo struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
	reports  map[string]*models.ConsequenceReport
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		sessions: make(map[string]*models.Session),
		reports:  make(map[string]*models.ConsequenceReport),
	}
}

func (m *mockRepo) SaveSession(ctx context.Context, s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s.Snapshot()
	return nil
}

func (m *mockRepo) GetSession(ctx context.Context, id string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	return s.Snapshot(), nil
}

func (m *mockRepo) SessionExists(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[id]
	return ok, nil
}

func (m *mockRepo) ListSessions(ctx context.Context, opts repository.Filter) ([]models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Session
	for _, s := range m.sessions {
		out = append(out, *s.Snapshot())
	}
	return out, nil
}

func (m *mockRepo) SaveReport(ctx context.Context, id string, r *models.ConsequenceReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports[id] = r
	return nil
}

func (m *mockRepo) GetReport(ctx context.Context, id string) (*models.ConsequenceReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return r, nil
}

func catalogProfile() *models.ImpactorProfile {
	return &models.ImpactorProfile{
		Name:        "Apophis",
		Designation: "99942",
		DiameterM:   340,
		VelocityMS:  7420,
		DensityKgM3: 3200,
		Provenance: map[string]models.Provenance{
			models.FieldDiameter: models.ProvenanceMeasured,
			models.FieldVelocity: models.ProvenanceMeasured,
			models.FieldDensity:  models.ProvenanceMeasured,
		},
	}
}

type testDeps struct {
	catalog   *mockCatalog
	elevation *mockElevation
	geology   *mockGeology
	repo      *mockRepo
}

func newTestOrchestrator(t *testing.T, mutate func(*testDeps)) (*Orchestrator, *testDeps) {
	t.Helper()
	deps := &testDeps{
		catalog:   &mockCatalog{profile: catalogProfile()},
		elevation: &mockElevation{elevation: 250},
		geology:   &mockGeology{unit: source.GeologyResult{Description: "Biotite granite", UnitName: "Pikes Peak"}},
		repo:      newMockRepo(),
	}
	if mutate != nil {
		mutate(deps)
	}

	return New(Options{
		Catalog:   deps.catalog,
		Elevation: deps.elevation,
		Geology:   deps.geology,

		Repo:    deps.repo,
		Metrics: observability.NewMetricsForTesting(),
		Clock:   clockwork.NewRealClock(),
		Params:  physics.DefaultParams(),

		RetryCount:       2,
		RetryBackoff:     time.Millisecond,
		AnalysisRadiusKm: 100,
		Workers:          2,
		QueueSize:        8,
	}), deps
}

func extractionRequest() *models.ExtractionRequest {
	return &models.ExtractionRequest{
		AsteroidName: "Apophis",
		Latitude:     38.84,
		Longitude:    -105.04,
	}
}

func TestOrchestrator_Resolve_Completes(t *testing.T) {
	orch, deps := newTestOrchestrator(t, nil)

	sess, err := orch.Resolve(context.Background(), extractionRequest())
	require.NoError(t, err)

	assert.Equal(t, models.StatusCompleted, sess.Status)
	assert.Equal(t, 100.0, sess.Progress)
	require.NotNil(t, sess.Report)
	assert.Greater(t, sess.Report.ImpactEnergy.Joules, 0.0)
	assert.Equal(t, models.ReportSchemaVersion, sess.Report.SchemaVersion)

	// Every slot settled.
	for _, name := range models.AllSubQueries {
		assert.True(t, sess.SubQueries[name].Outcome.Settled(), "slot %s must settle", name)
	}
	assert.Equal(t, models.OutcomeSuccess, sess.SubQueries[models.SubQueryImpactor].Outcome)
	assert.Equal(t, models.OutcomeSuccess, sess.SubQueries[models.SubQueryElevation].Outcome)
	assert.Equal(t, models.OutcomeSuccess, sess.SubQueries[models.SubQueryGeology].Outcome)

	// Empty regional datasets settle to defaults, not failures.
	assert.Equal(t, models.OutcomeDefault, sess.SubQueries[models.SubQueryFault].Outcome)
	assert.Equal(t, models.OutcomeDefault, sess.SubQueries[models.SubQueryBathymetry].Outcome)

	require.NotNil(t, sess.Impactor)
	assert.Equal(t, 340.0, sess.Impactor.DiameterM)
	require.NotNil(t, sess.Site)
	assert.Equal(t, 250.0, sess.Site.ElevationM)
	assert.Equal(t, "granite", sess.Site.MaterialType)
	assert.Equal(t, 2750.0, sess.Site.TargetDensityKgM3)
	assert.True(t, sess.Site.IsLand)

	// Session and report were persisted.
	persisted, err := deps.repo.GetSession(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, persisted.Status)
	_, err = deps.repo.GetReport(context.Background(), sess.ID)
	assert.NoError(t, err)
}

func TestOrchestrator_Resolve_ImpactorNotFoundFailsSession(t *testing.T) {
	orch, deps := newTestOrchestrator(t, func(d *testDeps) {
		d.catalog.err = models.ErrNotFound
	})

	sess, err := orch.Resolve(context.Background(), extractionRequest())
	require.NoError(t, err)

	assert.Equal(t, models.StatusFailed, sess.Status)
	assert.NotEmpty(t, sess.Error)
	assert.Nil(t, sess.Report)
	assert.Equal(t, models.OutcomeFailed, sess.SubQueries[models.SubQueryImpactor].Outcome)

	// A missing object is never retried.
	assert.Equal(t, int64(1), deps.catalog.calls.Load())

	_, err = deps.repo.GetReport(context.Background(), sess.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestOrchestrator_Resolve_SourceFailuresFallBack(t *testing.T) {
	orch, deps := newTestOrchestrator(t, func(d *testDeps) {
		d.elevation.err = &models.SourceError{Source: "elevation", Err: errors.New("timeout")}
		d.geology.err = &models.SourceError{Source: "geology", Err: errors.New("unreachable")}
	})

	sess, err := orch.Resolve(context.Background(), extractionRequest())
	require.NoError(t, err)

	// Site failures degrade, they never fail the session.
	assert.Equal(t, models.StatusCompleted, sess.Status)
	require.NotNil(t, sess.Report)

	assert.Equal(t, models.OutcomeFailed, sess.SubQueries[models.SubQueryElevation].Outcome)
	assert.Equal(t, models.OutcomeFailed, sess.SubQueries[models.SubQueryGeology].Outcome)
	assert.NotEmpty(t, sess.SubQueries[models.SubQueryElevation].Error)

	require.NotNil(t, sess.Site)
	assert.Equal(t, 0.0, sess.Site.ElevationM)
	assert.Equal(t, source.DefaultTargetDensityKgM3, sess.Site.TargetDensityKgM3)
	assert.Equal(t, models.ProvenanceDefault, sess.Site.Provenance[models.FieldElevation])
	assert.Equal(t, models.ProvenanceDefault, sess.Site.Provenance[models.FieldGeology])

	// Defaulted geology flows into report confidence.
	assert.Equal(t, string(models.ProvenanceDefault), sess.Report.Confidence["crater"])

	// Transient failures were retried: 1 + 2 retries.
	assert.Equal(t, int64(3), deps.elevation.calls.Load())
}

func TestOrchestrator_Resolve_TransientCatalogFailureRecovers(t *testing.T) {
	orch, deps := newTestOrchestrator(t, func(d *testDeps) {
		d.catalog.failures = 1
	})

	sess, err := orch.Resolve(context.Background(), extractionRequest())
	require.NoError(t, err)

	assert.Equal(t, models.StatusCompleted, sess.Status)
	assert.Equal(t, models.OutcomeSuccess, sess.SubQueries[models.SubQueryImpactor].Outcome)
	assert.Equal(t, 2, sess.SubQueries[models.SubQueryImpactor].Attempts)
	assert.Equal(t, int64(2), deps.catalog.calls.Load())
}

func TestOrchestrator_Resolve_DirectImpactorParams(t *testing.T) {
	orch, deps := newTestOrchestrator(t, nil)

	req := extractionRequest()
	req.AsteroidName = ""
	req.Impactor = &models.ImpactorParams{DiameterM: 100, VelocityMS: 17000, DensityKgM3: 3000}

	sess, err := orch.Resolve(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, models.StatusCompleted, sess.Status)
	assert.Equal(t, int64(0), deps.catalog.calls.Load(), "catalog must be skipped")
	require.NotNil(t, sess.Impactor)
	assert.Equal(t, 100.0, sess.Impactor.DiameterM)
	// ~54 Mt reference case.
	assert.InDelta(t, 54.25, sess.Report.ImpactEnergy.MegatonsTnt, 0.1)
}

func TestOrchestrator_Resolve_Validation(t *testing.T) {
	orch, _ := newTestOrchestrator(t, nil)

	cases := []struct {
		name string
		req  *models.ExtractionRequest
	}{
		{"latitude out of range", &models.ExtractionRequest{AsteroidName: "x", Latitude: 91, Longitude: 0}},
		{"longitude out of range", &models.ExtractionRequest{AsteroidName: "x", Latitude: 0, Longitude: -181}},
		{"no identifier or params", &models.ExtractionRequest{Latitude: 0, Longitude: 0}},
		{"bad direct diameter", &models.ExtractionRequest{Impactor: &models.ImpactorParams{DiameterM: 0, VelocityMS: 1, DensityKgM3: 1}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := orch.Resolve(context.Background(), tc.req)
			var vErr *models.ValidationError
			assert.ErrorAs(t, err, &vErr)
		})
	}
}

func TestOrchestrator_AsyncLifecycle(t *testing.T) {
	orch, _ := newTestOrchestrator(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	orch.Start(ctx)
	defer orch.Stop()

	sess, err := orch.StartAsync(extractionRequest())
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, sess.Status)

	final := waitForTerminal(t, orch, sess.ID)
	assert.Equal(t, models.StatusCompleted, final.Status)

	rep, err := orch.Result(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportSchemaVersion, rep.SchemaVersion)
}

func TestOrchestrator_Cancel(t *testing.T) {
	orch, _ := newTestOrchestrator(t, func(d *testDeps) {
		d.elevation.block = true
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	orch.Start(ctx)
	defer orch.Stop()

	sess, err := orch.StartAsync(extractionRequest())
	require.NoError(t, err)

	// Wait until the session is actually in flight.
	require.Eventually(t, func() bool {
		snap, err := orch.Status(context.Background(), sess.ID)
		return err == nil && snap.Status == models.StatusFetching
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, orch.Cancel(sess.ID))

	final := waitForTerminal(t, orch, sess.ID)
	assert.Equal(t, models.StatusCancelled, final.Status)

	_, err = orch.Result(context.Background(), sess.ID)
	assert.ErrorIs(t, err, ErrNotReady)

	// Cancel on a terminal session stays a no-op.
	assert.NoError(t, orch.Cancel(sess.ID))
	// Unknown ids are reported.
	assert.ErrorIs(t, orch.Cancel("nope"), models.ErrSessionNotFound)
}

func TestOrchestrator_ProgressEvents(t *testing.T) {
	orch, _ := newTestOrchestrator(t, nil)

	subID, events := orch.Subscribe()
	defer orch.Unsubscribe(subID)

	sess, err := orch.Resolve(context.Background(), extractionRequest())
	require.NoError(t, err)

	var sawCompleted bool
	var settled int
	for {
		select {
		case ev := <-events:
			if ev.SessionID != sess.ID {
				continue
			}
			if ev.SubQuery != "" {
				settled++
			}
			if ev.Status == models.StatusCompleted {
				sawCompleted = true
			}
		default:
			assert.True(t, sawCompleted, "expected a completed event")
			assert.Equal(t, len(models.AllSubQueries), settled, "expected one settlement event per slot")
			return
		}
	}
}

func TestOrchestrator_ResolveImpactor(t *testing.T) {
	orch, deps := newTestOrchestrator(t, nil)

	p, err := orch.ResolveImpactor(context.Background(), "Apophis")
	require.NoError(t, err)
	assert.Equal(t, 340.0, p.DiameterM)
	assert.Equal(t, int64(1), deps.catalog.calls.Load())

	deps.catalog.err = models.ErrNotFound
	_, err = orch.ResolveImpactor(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestOrchestrator_ResolveSite(t *testing.T) {
	orch, _ := newTestOrchestrator(t, nil)

	p, err := orch.ResolveSite(context.Background(), 38.84, -105.04)
	require.NoError(t, err)
	assert.Equal(t, 250.0, p.ElevationM)
	assert.Equal(t, "granite", p.MaterialType)
	assert.NotNil(t, p.Infrastructure)

	_, err = orch.ResolveSite(context.Background(), 95, 0)
	var vErr *models.ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestOrchestrator_OceanImpactProducesTsunami(t *testing.T) {
	bathyPath := filepath.Join(t.TempDir(), "bathy.geojson")
	require.NoError(t, os.WriteFile(bathyPath, []byte(`{
		"features": [{"geometry": {"type": "Point", "coordinates": [-30.0, 40.0]}, "properties": {"elevation_m": -4000}}]
	}`), 0o644))
	bathy, err := source.LoadBathymetryIndex(bathyPath, 200)
	require.NoError(t, err)

	orch := New(Options{
		Catalog:    &mockCatalog{profile: catalogProfile()},
		Elevation:  &mockElevation{elevation: -3950},
		Geology:    &mockGeology{err: &models.SourceError{Source: "geology", Err: errors.New("no marine coverage")}},
		Bathymetry: bathy,

		Repo:    newMockRepo(),
		Metrics: observability.NewMetricsForTesting(),
		Clock:   clockwork.NewRealClock(),
		Params:  physics.DefaultParams(),

		RetryCount:       0,
		RetryBackoff:     time.Millisecond,
		AnalysisRadiusKm: 100,
	})

	req := extractionRequest()
	req.Latitude, req.Longitude = 40.0, -30.0

	sess, err := orch.Resolve(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, models.StatusCompleted, sess.Status)
	require.NotNil(t, sess.Site)
	assert.False(t, sess.Site.IsLand)
	assert.Equal(t, 4000.0, sess.Site.WaterDepthM)
	assert.Equal(t, "water", sess.Site.MaterialType)

	require.NotNil(t, sess.Report)
	require.NotNil(t, sess.Report.Tsunami, "ocean impacts must carry a tsunami section")
	assert.Greater(t, sess.Report.Tsunami.InitialWaveHeightM, 0.0)
}

func waitForTerminal(t *testing.T, orch *Orchestrator, id string) *models.Session {
	t.Helper()
	var final *models.Session
	require.Eventually(t, func() bool {
		snap, err := orch.Status(context.Background(), id)
		if err != nil {
			return false
		}
		if snap.Status.Terminal() {
			final = snap
			return true
		}
		return false
	}, 5*time.Second, 5*time.Millisecond)
	return final
}
