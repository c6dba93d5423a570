package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	"github.com/arthurwhennig/asterix/internal/api"
	"github.com/arthurwhennig/asterix/internal/config"
	"github.com/arthurwhennig/asterix/internal/logging"
	"github.com/arthurwhennig/asterix/internal/observability"
	"github.com/arthurwhennig/asterix/internal/physics"
	"github.com/arthurwhennig/asterix/internal/repository"
	"github.com/arthurwhennig/asterix/internal/session"
	"github.com/arthurwhennig/asterix/internal/source"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup(cfg.Logging.Level)

	slog.Info("Server starting", "host", cfg.Server.Host, "port", cfg.Server.Port)

	db, err := repository.NewSQLiteDB(cfg.DB.Path)
	if err != nil {
		logging.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	orch := session.New(session.Options{
		Catalog:    source.NewSBDBClient(cfg.Sources.SBDBURL, cfg.Sources.VelocitySource, cfg.Sources.SBDBTimeout),
		Elevation:  source.NewElevationClient(cfg.Sources.ElevationURL, cfg.Sources.ElevationTimeout),
		Geology:    source.NewGeologyClient(cfg.Sources.GeologyURL, cfg.Sources.GeologyLayer, cfg.Sources.GeologyTimeout),
		Faults:     loadFaults(cfg.Datasets.FaultsPath),
		Bathymetry: loadBathymetry(cfg.Datasets.BathymetryPath, cfg.Datasets.AnalysisRadiusKm),
		Regional:   loadRegional(cfg.Datasets.PopulationPath, cfg.Datasets.InfrastructurePath, cfg.Datasets.AnalysisRadiusKm),

		Repo:    db,
		Metrics: observability.NewMetrics(),
		Clock:   clockwork.NewRealClock(),
		Params:  buildParams(cfg.Physics),

		RetryCount:       cfg.Sources.RetryCount,
		RetryBackoff:     cfg.Sources.RetryBackoff,
		AnalysisRadiusKm: cfg.Datasets.AnalysisRadiusKm,
		Workers:          cfg.Worker.Count,
		QueueSize:        cfg.Worker.BufferSize,
	})
	orch.Start(ctx)

	// Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false, // Set to false when using wildcard origins
	}))
	router.Use(api.RateLimitMiddleware(10)) // 10 req/s global limit

	handler := api.NewHandler(orch, db)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down...")

	cancel()
	orch.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
}

// Missing regional datasets degrade to empty indexes: the engine still runs,
// the affected sub-queries settle to defaults.

func loadFaults(path string) *source.FaultIndex {
	idx, err := source.LoadFaultIndex(path)
	if err != nil {
		slog.Warn("fault dataset unavailable, queries will default", "path", path, "error", err)
		return source.EmptyFaultIndex()
	}
	return idx
}

func loadBathymetry(path string, maxCellKm float64) *source.BathymetryIndex {
	idx, err := source.LoadBathymetryIndex(path, maxCellKm)
	if err != nil {
		slog.Warn("bathymetry dataset unavailable, queries will default", "path", path, "error", err)
		return source.EmptyBathymetryIndex()
	}
	return idx
}

func loadRegional(populationPath, infrastructurePath string, maxCellKm float64) *source.RegionalIndex {
	idx, err := source.LoadRegionalIndex(populationPath, infrastructurePath, maxCellKm)
	if err != nil {
		slog.Warn("regional datasets unavailable, queries will default", "population", populationPath, "infrastructure", infrastructurePath, "error", err)
		return source.EmptyRegionalIndex()
	}
	return idx
}

// buildParams overlays configured calibration constants onto the reference
// parameter set.
func buildParams(pc config.PhysicsConfig) physics.Params {
	p := physics.DefaultParams()
	if pc.CraterConstant > 0 {
		p.CraterConstant = pc.CraterConstant
	}
	if pc.CraterEnergyExponent > 0 {
		p.CraterEnergyExponent = pc.CraterEnergyExponent
	}
	if pc.CraterDepthRatio > 0 {
		p.CraterDepthRatio = pc.CraterDepthRatio
	}
	if pc.TsunamiCoefficient > 0 {
		p.TsunamiCoefficient = pc.TsunamiCoefficient
	}
	if len(pc.BlastThresholdsPSI) > 0 {
		p.BlastThresholdsPSI = pc.BlastThresholdsPSI
	}
	return p
}
