package common

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Database DatabaseConfig `yaml:"database"`
	OCR      OCRConfig      `yaml:"ocr"`
	Slides   SlidesConfig   `yaml:"slides"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Sink     SinkConfig     `yaml:"sink"`
	Inbox    InboxConfig    `yaml:"inbox"`
	LogLevel string         `yaml:"log_level"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr       string   `yaml:"http_addr"`
	GRPCAddr       string   `yaml:"grpc_addr"`
	CORSOrigins    []string `yaml:"cors_origins"`
	MaxUploadFiles int      `yaml:"max_upload_files"`
	MaxUploadBytes int64    `yaml:"max_upload_bytes"`
}

// StorageConfig holds on-disk locations and the record store selection
type StorageConfig struct {
	UploadDir  string `yaml:"upload_dir"`
	PDFDir     string `yaml:"pdf_dir"`
	WorkDir    string `yaml:"work_dir"`
	Driver     string `yaml:"driver"` // memory | sqlite | postgres
	SQLitePath string `yaml:"sqlite_path"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string        `yaml:"dsn"`
	MaxConns         int32         `yaml:"max_conns"`
	MinConns         int32         `yaml:"min_conns"`
	MaxConnLifetime  time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `yaml:"max_conn_idle_time"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Tesseract   string `yaml:"tesseract"`
	Pdftoppm    string `yaml:"pdftoppm"`
	Language    string `yaml:"language"`
	TessdataDir string `yaml:"tessdata_dir"`
	DPI         int    `yaml:"dpi"`
	PSM         int    `yaml:"psm"`
	// TSVConfidence runs a second tesseract pass to report mean word confidence.
	TSVConfidence bool `yaml:"tsv_confidence"`
}

// SlidesConfig holds slide-deck conversion configuration
type SlidesConfig struct {
	Soffice string `yaml:"soffice"`
}

// PipelineConfig holds orchestrator tuning
type PipelineConfig struct {
	Workers        int           `yaml:"workers"`
	StepTimeout    time.Duration `yaml:"step_timeout"`
	FileTimeout    time.Duration `yaml:"file_timeout"` // whole-file bound, spans every step
	MinIndexLength int           `yaml:"min_index_length"`
}

// SinkConfig holds indexing sink configuration
type SinkConfig struct {
	Kind       string        `yaml:"kind"` // none | http | command
	URL        string        `yaml:"url"`
	PythonBin  string        `yaml:"python_bin"`
	ScriptPath string        `yaml:"script_path"`
	Retries    int           `yaml:"retries"`
	Backoff    time.Duration `yaml:"backoff"`
	RatePerSec float64       `yaml:"rate_per_sec"`
	QueueSize  int           `yaml:"queue_size"`
	Workers    int           `yaml:"workers"`
	Timeout    time.Duration `yaml:"timeout"`
}

// InboxConfig holds the optional watched drop directory
type InboxConfig struct {
	Dir         string        `yaml:"dir"`
	Debounce    time.Duration `yaml:"debounce"`
	InitialScan bool          `yaml:"initial_scan"`
}

// LoadConfig loads configuration from an optional .env file, an optional YAML
// file named by DOCFORGE_CONFIG, and environment variables, in that order of
// increasing precedence.
func LoadConfig() *Config {
	if os.Getenv("DOCFORGE_ENV") != "test" {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			slog.Warn("failed to load .env file", "error", err)
		}
	}

	cfg := defaultConfig()
	if path := os.Getenv("DOCFORGE_CONFIG"); path != "" {
		if err := cfg.mergeYAMLFile(path); err != nil {
			slog.Warn("failed to read config file", "path", path, "error", err)
		}
	}
	cfg.applyEnv()
	return cfg
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr:       ":5000",
			GRPCAddr:       ":8081",
			CORSOrigins:    []string{"*"},
			MaxUploadFiles: 50,
			MaxUploadBytes: 100 << 20,
		},
		Storage: StorageConfig{
			UploadDir:  "./uploads",
			PDFDir:     "./uploads/pdfs",
			WorkDir:    "./uploads/temp",
			Driver:     "memory",
			SQLitePath: "./data/docforge.db",
		},
		Database: DatabaseConfig{
			MaxConns:        20,
			MinConns:        5,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
		},
		OCR: OCRConfig{
			Tesseract: "tesseract",
			Pdftoppm:  "pdftoppm",
			Language:  "eng",
			DPI:       300,
			PSM:       3,
		},
		Slides: SlidesConfig{
			Soffice: "soffice",
		},
		Pipeline: PipelineConfig{
			Workers:        runtime.NumCPU(),
			StepTimeout:    3 * time.Minute,
			FileTimeout:    10 * time.Minute,
			MinIndexLength: 10,
		},
		Sink: SinkConfig{
			Kind:       "none",
			PythonBin:  "python",
			Retries:    3,
			Backoff:    2 * time.Second,
			RatePerSec: 5,
			QueueSize:  256,
			Workers:    2,
			Timeout:    2 * time.Minute,
		},
		Inbox: InboxConfig{
			Debounce: 500 * time.Millisecond,
		},
		LogLevel: "info",
	}
}

func (c *Config) mergeYAMLFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.HTTPAddr = getEnv("HTTP_ADDR", c.Server.HTTPAddr)
	c.Server.GRPCAddr = getEnv("GRPC_ADDR", c.Server.GRPCAddr)
	c.Server.CORSOrigins = getEnvAsList("CORS_ORIGINS", c.Server.CORSOrigins)
	c.Server.MaxUploadFiles = getEnvAsInt("MAX_UPLOAD_FILES", c.Server.MaxUploadFiles)
	c.Server.MaxUploadBytes = getEnvAsInt64("MAX_UPLOAD_BYTES", c.Server.MaxUploadBytes)

	c.Storage.UploadDir = getEnv("UPLOAD_DIR", c.Storage.UploadDir)
	c.Storage.PDFDir = getEnv("PDF_DIR", c.Storage.PDFDir)
	c.Storage.WorkDir = getEnv("WORK_DIR", c.Storage.WorkDir)
	c.Storage.Driver = getEnv("STORE_DRIVER", c.Storage.Driver)
	c.Storage.SQLitePath = getEnv("SQLITE_PATH", c.Storage.SQLitePath)

	c.Database.DSN = getEnv("DB_URL", c.Database.DSN)
	c.Database.MaxConns = getEnvAsInt32("DB_MAX_CONNS", c.Database.MaxConns)
	c.Database.MinConns = getEnvAsInt32("DB_MIN_CONNS", c.Database.MinConns)
	c.Database.MaxConnLifetime = getEnvAsDuration("DB_MAX_CONN_LIFETIME", c.Database.MaxConnLifetime)
	c.Database.MaxConnIdleTime = getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", c.Database.MaxConnIdleTime)
	c.Database.DialTimeout = getEnvAsDuration("DB_DIAL_TIMEOUT", c.Database.DialTimeout)
	c.Database.StatementTimeout = getEnvAsDuration("DB_STATEMENT_TIMEOUT", c.Database.StatementTimeout)

	c.OCR.Tesseract = getEnv("TESSERACT_BIN", c.OCR.Tesseract)
	c.OCR.Pdftoppm = getEnv("PDFTOPPM_BIN", c.OCR.Pdftoppm)
	c.OCR.Language = getEnv("OCR_LANG", c.OCR.Language)
	c.OCR.TessdataDir = getEnv("TESSDATA_PREFIX", c.OCR.TessdataDir)
	c.OCR.DPI = getEnvAsInt("OCR_DPI", c.OCR.DPI)
	c.OCR.PSM = getEnvAsInt("OCR_PSM", c.OCR.PSM)
	c.OCR.TSVConfidence = getEnvAsBool("OCR_TSV_CONFIDENCE", c.OCR.TSVConfidence)

	c.Slides.Soffice = getEnv("SOFFICE_BIN", c.Slides.Soffice)

	c.Pipeline.Workers = getEnvAsInt("PIPELINE_WORKERS", c.Pipeline.Workers)
	c.Pipeline.StepTimeout = getEnvAsDuration("STEP_TIMEOUT", c.Pipeline.StepTimeout)
	c.Pipeline.FileTimeout = getEnvAsDuration("PIPELINE_FILE_TIMEOUT", c.Pipeline.FileTimeout)
	c.Pipeline.MinIndexLength = getEnvAsInt("MIN_INDEX_LENGTH", c.Pipeline.MinIndexLength)

	c.Sink.Kind = getEnv("SINK_KIND", c.Sink.Kind)
	c.Sink.URL = getEnv("SINK_URL", c.Sink.URL)
	c.Sink.PythonBin = getEnv("PYTHON_BIN", c.Sink.PythonBin)
	c.Sink.ScriptPath = getEnv("SINK_SCRIPT", c.Sink.ScriptPath)
	c.Sink.Retries = getEnvAsInt("SINK_RETRIES", c.Sink.Retries)
	c.Sink.Backoff = getEnvAsDuration("SINK_BACKOFF", c.Sink.Backoff)
	c.Sink.RatePerSec = getEnvAsFloat64("SINK_RATE_PER_SEC", c.Sink.RatePerSec)
	c.Sink.QueueSize = getEnvAsInt("SINK_QUEUE_SIZE", c.Sink.QueueSize)
	c.Sink.Workers = getEnvAsInt("SINK_WORKERS", c.Sink.Workers)
	c.Sink.Timeout = getEnvAsDuration("SINK_TIMEOUT", c.Sink.Timeout)

	c.Inbox.Dir = getEnv("INBOX_DIR", c.Inbox.Dir)
	c.Inbox.Debounce = getEnvAsDuration("INBOX_DEBOUNCE", c.Inbox.Debounce)
	c.Inbox.InitialScan = getEnvAsBool("INBOX_INITIAL_SCAN", c.Inbox.InitialScan)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
}

// SlogLevel converts LogLevel into a slog.Level, defaulting to Info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	err := validation.Errors{
		"server": validation.ValidateStruct(&c.Server,
			validation.Field(&c.Server.HTTPAddr, validation.Required),
			validation.Field(&c.Server.MaxUploadFiles, validation.Min(1)),
			validation.Field(&c.Server.MaxUploadBytes, validation.Min(int64(1))),
		),
		"storage": validation.ValidateStruct(&c.Storage,
			validation.Field(&c.Storage.UploadDir, validation.Required),
			validation.Field(&c.Storage.PDFDir, validation.Required),
			validation.Field(&c.Storage.WorkDir, validation.Required),
			validation.Field(&c.Storage.Driver, validation.Required, validation.In("memory", "sqlite", "postgres")),
			validation.Field(&c.Storage.SQLitePath, validation.When(c.Storage.Driver == "sqlite", validation.Required)),
		),
		"database": validation.ValidateStruct(&c.Database,
			validation.Field(&c.Database.DSN, validation.When(c.Storage.Driver == "postgres", validation.Required)),
		),
		"pipeline": validation.ValidateStruct(&c.Pipeline,
			validation.Field(&c.Pipeline.Workers, validation.Min(1)),
			validation.Field(&c.Pipeline.StepTimeout, validation.Min(time.Second)),
			validation.Field(&c.Pipeline.FileTimeout, validation.Min(c.Pipeline.StepTimeout)),
		),
		"sink": validation.ValidateStruct(&c.Sink,
			validation.Field(&c.Sink.Kind, validation.In("none", "http", "command")),
			validation.Field(&c.Sink.URL, validation.When(c.Sink.Kind == "http", validation.Required)),
			validation.Field(&c.Sink.ScriptPath, validation.When(c.Sink.Kind == "command", validation.Required)),
			validation.Field(&c.Sink.Retries, validation.Min(0)),
		),
	}.Filter()
	if err != nil {
		return NewAppError("CONFIG_ERROR", err.Error(), ErrInvalidInput)
	}
	return nil
}
