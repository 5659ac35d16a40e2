package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	NATS     NATSConfig     `yaml:"nats"`
	MinIO    MinIOConfig    `yaml:"minio"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Intake   IntakeConfig   `yaml:"intake"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
	// WriteTimeout bounds a whole HTTP capture, pipeline included. Defaults
	// to CaptureBudget(analysis.timeout).
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// BudgetFaces is the face count the default write timeout is sized for.
// A capture past it can outlive the response; its pipeline still finishes.
const BudgetFaces = 10

// CaptureBudget is the worst-case duration of one pipeline run over a photo
// with BudgetFaces faces: detect, crop, annotate and one embed per face,
// each taking the full analysis timeout, plus slack for storage.
func CaptureBudget(analysisTimeout time.Duration) time.Duration {
	return time.Duration(3+BudgetFaces)*analysisTimeout + 30*time.Second
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// NATSConfig is optional: an empty URL disables the capture consumer and
// status publishing.
type NATSConfig struct {
	URL string `yaml:"url"`
}

type MinIOConfig struct {
	Endpoint     string `yaml:"endpoint"`
	AccessKey    string `yaml:"access_key"`
	SecretKey    string `yaml:"secret_key"`
	UseSSL       bool   `yaml:"use_ssl"`
	PhotosBucket string `yaml:"photos_bucket"`
	CropsBucket  string `yaml:"crops_bucket"`
	// PublicURL is the base under which stored objects are resolvable,
	// e.g. https://cdn.example.com. Defaults to the endpoint itself.
	PublicURL string `yaml:"public_url"`
}

type AnalysisConfig struct {
	URL             string        `yaml:"url"`
	Timeout         time.Duration `yaml:"timeout"`
	RecheckInterval time.Duration `yaml:"recheck_interval"`
	EmbeddingDim    int           `yaml:"embedding_dim"`
}

type IntakeConfig struct {
	WorkerCount     int    `yaml:"worker_count"`
	CaptureConsumer string `yaml:"capture_consumer"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from a YAML file and applies environment variable overrides.
// A .env file in the working directory is loaded first when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.MinIO.PhotosBucket == "" {
		cfg.MinIO.PhotosBucket = "photos"
	}
	if cfg.MinIO.CropsBucket == "" {
		cfg.MinIO.CropsBucket = "face-crops"
	}
	if cfg.MinIO.PublicURL == "" && cfg.MinIO.Endpoint != "" {
		scheme := "http"
		if cfg.MinIO.UseSSL {
			scheme = "https"
		}
		cfg.MinIO.PublicURL = scheme + "://" + cfg.MinIO.Endpoint
	}
	if cfg.Analysis.URL == "" {
		cfg.Analysis.URL = "http://localhost:5000"
	}
	if cfg.Analysis.Timeout == 0 {
		cfg.Analysis.Timeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = CaptureBudget(cfg.Analysis.Timeout)
	}
	if cfg.Analysis.EmbeddingDim == 0 {
		cfg.Analysis.EmbeddingDim = 128
	}
	if cfg.Intake.WorkerCount == 0 {
		cfg.Intake.WorkerCount = 4
	}
	if cfg.Intake.CaptureConsumer == "" {
		cfg.Intake.CaptureConsumer = "facevault-intake"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FACEVAULT_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("FACEVAULT_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("FACEVAULT_SERVER_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}
	if v := os.Getenv("FACEVAULT_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("FACEVAULT_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("FACEVAULT_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("FACEVAULT_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("FACEVAULT_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("FACEVAULT_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("FACEVAULT_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("FACEVAULT_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("FACEVAULT_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("FACEVAULT_MINIO_PUBLIC_URL"); v != "" {
		cfg.MinIO.PublicURL = v
	}
	if v := os.Getenv("FACEVAULT_ANALYSIS_URL"); v != "" {
		cfg.Analysis.URL = v
	}
	if v := os.Getenv("FACEVAULT_ANALYSIS_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Analysis.Timeout = d
		}
	}
	if v := os.Getenv("FACEVAULT_INTAKE_WORKER_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Intake.WorkerCount = n
		}
	}
	if v := os.Getenv("FACEVAULT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
