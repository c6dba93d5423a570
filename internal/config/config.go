package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Sources  SourcesConfig
	Datasets DatasetsConfig
	Physics  PhysicsConfig
	Worker   WorkerConfig
	DB       DatabaseConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Host string
	Port int
}

// VelocitySource selects which kinematic channel is authoritative when the
// catalog returns both close-approach data and an epoch state vector.
const (
	VelocitySourceCloseApproach = "close_approach"
	VelocitySourceEpoch         = "epoch"
)

type SourcesConfig struct {
	SBDBURL          string
	SBDBTimeout      time.Duration
	ElevationURL     string
	ElevationTimeout time.Duration
	GeologyURL       string
	GeologyLayer     string
	GeologyTimeout   time.Duration

	VelocitySource string

	RetryCount   int
	RetryBackoff time.Duration
}

type DatasetsConfig struct {
	FaultsPath         string
	BathymetryPath     string
	PopulationPath     string
	InfrastructurePath string
	AnalysisRadiusKm   float64
}

// PhysicsConfig overrides the calibration constants of the consequence
// pipeline. Zero values fall back to the built-in reference parameters.
type PhysicsConfig struct {
	CraterConstant       float64
	CraterEnergyExponent float64
	CraterDepthRatio     float64
	TsunamiCoefficient   float64
	BlastThresholdsPSI   []float64
}

type WorkerConfig struct {
	Count      int
	BufferSize int
}

type DatabaseConfig struct {
	Path string
}

type LoggingConfig struct {
	Level string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "localhost"),
			Port: getEnvInt("SERVER_PORT", 8080),
		},
		Sources: SourcesConfig{
			SBDBURL:          getEnv("SBDB_URL", "https://ssd-api.jpl.nasa.gov/sbdb.api"),
			SBDBTimeout:      getEnvDuration("SBDB_TIMEOUT", 30*time.Second),
			ElevationURL:     getEnv("ELEVATION_URL", "https://api.open-elevation.com/api/v1/lookup"),
			ElevationTimeout: getEnvDuration("ELEVATION_TIMEOUT", 15*time.Second),
			GeologyURL:       getEnv("GEOLOGY_WFS_URL", "https://mrdata.usgs.gov/services/wfs/geology"),
			GeologyLayer:     getEnv("GEOLOGY_WFS_LAYER", "usgeol"),
			GeologyTimeout:   getEnvDuration("GEOLOGY_TIMEOUT", 20*time.Second),
			VelocitySource:   getEnv("IMPACTOR_VELOCITY_SOURCE", VelocitySourceCloseApproach),
			RetryCount:       getEnvInt("SOURCE_RETRY_COUNT", 2),
			RetryBackoff:     getEnvDuration("SOURCE_RETRY_BACKOFF", 2*time.Second),
		},
		Datasets: DatasetsConfig{
			FaultsPath:         getEnv("FAULTS_PATH", "./data/faults/global_active_faults.geojson"),
			BathymetryPath:     getEnv("BATHYMETRY_PATH", "./data/bathymetry/gebco_points.geojson"),
			PopulationPath:     getEnv("POPULATION_PATH", "./data/population/density_points.geojson"),
			InfrastructurePath: getEnv("INFRASTRUCTURE_PATH", "./data/infrastructure/features.geojson"),
			AnalysisRadiusKm:   getEnvFloat("ANALYSIS_RADIUS_KM", 100.0),
		},
		Physics: PhysicsConfig{
			CraterConstant:       getEnvFloat("PHYSICS_CRATER_CONSTANT", 0),
			CraterEnergyExponent: getEnvFloat("PHYSICS_CRATER_ENERGY_EXPONENT", 0),
			CraterDepthRatio:     getEnvFloat("PHYSICS_CRATER_DEPTH_RATIO", 0),
			TsunamiCoefficient:   getEnvFloat("PHYSICS_TSUNAMI_COEFFICIENT", 0),
			BlastThresholdsPSI:   getEnvFloatList("PHYSICS_BLAST_THRESHOLDS_PSI", nil),
		},
		Worker: WorkerConfig{
			Count:      getEnvInt("WORKER_COUNT", 4),
			BufferSize: getEnvInt("WORKER_BUFFER_SIZE", 64),
		},
		DB: DatabaseConfig{
			Path: getEnv("DB_PATH", "./data/impact-engine.db"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Sources.VelocitySource != VelocitySourceCloseApproach && c.Sources.VelocitySource != VelocitySourceEpoch {
		return fmt.Errorf("invalid velocity source: %s", c.Sources.VelocitySource)
	}
	if c.Sources.RetryCount < 0 {
		return fmt.Errorf("retry count must not be negative")
	}
	if c.Sources.RetryBackoff <= 0 {
		return fmt.Errorf("retry backoff must be positive")
	}

	if c.Worker.Count < 1 {
		return fmt.Errorf("worker count must be positive")
	}
	if c.Worker.BufferSize < 1 {
		return fmt.Errorf("worker buffer size must be positive")
	}

	if c.Datasets.AnalysisRadiusKm <= 0 {
		return fmt.Errorf("analysis radius must be positive")
	}

	for _, psi := range c.Physics.BlastThresholdsPSI {
		if psi <= 0 {
			return fmt.Errorf("blast threshold must be positive, got %v", psi)
		}
	}

	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvFloatList(key string, fallback []float64) []float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parts := strings.Split(val, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return fallback
		}
		out = append(out, f)
	}
	return out
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
