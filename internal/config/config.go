package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/lintora/lintora/internal/domain/audits"
)

type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"server"`

	Upload struct {
		MaxUploadSizeBytes    int64 `yaml:"maxUploadSizeBytes"`
		MaxFilesInArchive     int   `yaml:"maxFilesInArchive"`
		MaxExtractedSizeBytes int64 `yaml:"maxExtractedSizeBytes"`
	} `yaml:"upload"`

	Analysis struct {
		Workers                int                   `yaml:"workers"`
		QueueSize              int                   `yaml:"queueSize"`
		ProducerTimeoutSeconds int                   `yaml:"producerTimeoutSeconds"`
		Risk                   audits.RiskThresholds `yaml:"risk"`
	} `yaml:"analysis"`

	Groq struct {
		APIKey         string `yaml:"apiKey"`
		Model          string `yaml:"model"`
		BaseURL        string `yaml:"baseURL"`
		TimeoutSeconds int    `yaml:"timeoutSeconds"`
		MaxTokens      int    `yaml:"maxTokens"`
		MaxRetries     int    `yaml:"maxRetries"`
	} `yaml:"groq"`

	Mythril struct {
		Enabled          bool   `yaml:"enabled"`
		Bin              string `yaml:"bin"`
		ExecutionTimeout int    `yaml:"executionTimeout"`
		MaxDepth         int    `yaml:"maxDepth"`
	} `yaml:"mythril"`

	Slither struct {
		Enabled bool   `yaml:"enabled"`
		Bin     string `yaml:"bin"`
	} `yaml:"slither"`

	Storage struct {
		Driver  string `yaml:"driver"` // file | mysql | postgres
		JobsDir string `yaml:"jobsDir"`

		Database struct {
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			User     string `yaml:"user"`
			Password string `yaml:"password"`
			Name     string `yaml:"name"`
			SSLMode  string `yaml:"sslMode"`
		} `yaml:"database"`
	} `yaml:"storage"`

	Minio struct {
		Enabled    bool   `yaml:"enabled"`
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	RateLimit struct {
		Enabled    bool `yaml:"enabled"`
		Capacity   int  `yaml:"capacity"`
		RefillRate int  `yaml:"refillRate"`
	} `yaml:"rateLimit"`
}

// Load baca config.yaml, lalu apply env overrides dan defaults.
// A missing file is fine: the service can run on env + defaults alone.
func Load(path string) (*Config, error) {
	var cfg Config
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg, nil
}

// applyEnv: secrets and deployment knobs are late-bound via environment,
// everything else lives in the YAML file.
func (c *Config) applyEnv() {
	envStr("HOST", &c.Server.Host)
	envInt("PORT", &c.Server.Port)
	envInt("WORKERS", &c.Analysis.Workers)
	envInt64("MAX_UPLOAD_SIZE_BYTES", &c.Upload.MaxUploadSizeBytes)
	envInt("MAX_FILES_IN_ARCHIVE", &c.Upload.MaxFilesInArchive)
	envInt64("MAX_EXTRACTED_SIZE_BYTES", &c.Upload.MaxExtractedSizeBytes)
	envStr("GROQ_API_KEY", &c.Groq.APIKey)
	envStr("GROQ_MODEL", &c.Groq.Model)
	envInt("GROQ_TIMEOUT_SECONDS", &c.Groq.TimeoutSeconds)
	envInt("GROQ_MAX_TOKENS", &c.Groq.MaxTokens)
	envBool("MYTHRIL_ENABLED", &c.Mythril.Enabled)
	envInt("MYTHRIL_EXECUTION_TIMEOUT", &c.Mythril.ExecutionTimeout)
	envInt("MYTHRIL_MAX_DEPTH", &c.Mythril.MaxDepth)
	envBool("SLITHER_ENABLED", &c.Slither.Enabled)
	envStr("JOBS_DIR", &c.Storage.JobsDir)
	envStr("APP_NAME_PUBLIC", &c.App.Name)
	envStr("VERSION_PUBLIC", &c.App.Version)
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "Lintora"
	}
	if c.App.Version == "" {
		c.App.Version = "1.0.0"
	}
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Upload.MaxUploadSizeBytes == 0 {
		c.Upload.MaxUploadSizeBytes = 50 * 1024 * 1024
	}
	if c.Upload.MaxFilesInArchive == 0 {
		c.Upload.MaxFilesInArchive = 500
	}
	if c.Upload.MaxExtractedSizeBytes == 0 {
		c.Upload.MaxExtractedSizeBytes = 200 * 1024 * 1024
	}
	if c.Analysis.Workers == 0 {
		c.Analysis.Workers = 2
	}
	if c.Analysis.QueueSize == 0 {
		c.Analysis.QueueSize = 64
	}
	if c.Analysis.ProducerTimeoutSeconds == 0 {
		c.Analysis.ProducerTimeoutSeconds = 360
	}
	if c.Analysis.Risk == (audits.RiskThresholds{}) {
		c.Analysis.Risk = audits.DefaultRiskThresholds()
	}
	if c.Groq.Model == "" {
		c.Groq.Model = "llama-3.3-70b-versatile"
	}
	if c.Groq.BaseURL == "" {
		c.Groq.BaseURL = "https://api.groq.com/openai/v1"
	}
	if c.Groq.TimeoutSeconds == 0 {
		c.Groq.TimeoutSeconds = 120
	}
	if c.Groq.MaxTokens == 0 {
		c.Groq.MaxTokens = 4096
	}
	if c.Groq.MaxRetries == 0 {
		c.Groq.MaxRetries = 2
	}
	if c.Mythril.Bin == "" {
		c.Mythril.Bin = "myth"
	}
	if c.Mythril.ExecutionTimeout == 0 {
		c.Mythril.ExecutionTimeout = 120
	}
	if c.Mythril.MaxDepth == 0 {
		c.Mythril.MaxDepth = 22
	}
	if c.Slither.Bin == "" {
		c.Slither.Bin = "slither"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "file"
	}
	if c.Storage.JobsDir == "" {
		c.Storage.JobsDir = "data/jobs"
	}
	if c.Storage.Database.SSLMode == "" {
		c.Storage.Database.SSLMode = "disable"
	}
	if c.RateLimit.Capacity == 0 {
		c.RateLimit.Capacity = 10
	}
	if c.RateLimit.RefillRate == 0 {
		c.RateLimit.RefillRate = 1
	}
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	d := c.Storage.Database
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// Helper untuk build DSN Postgres
func (c *Config) PostgresDSN() string {
	d := c.Storage.Database
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

func envStr(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envInt64(key string, dst *int64) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
