package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"lab-report-access/internal/reportapi"
)

const (
	defaultHTTPPort           = "8080"
	defaultTemporalAddress    = "localhost:7233"
	defaultTemporalNS         = "default"
	defaultTaskQueue          = "report-delivery-task-queue"
	defaultWorkflowIDPrefix   = "report-delivery"
	defaultReportHTTPTimeout  = 30 * time.Second
	defaultReportMaxBytes     = 50 << 20
	defaultArtifactKind       = "test-report"
	defaultViewRevokeDelay    = time.Second
	defaultPrintGraceDelay    = time.Second
	defaultPrintLoadTimeout   = 30 * time.Second
	defaultDownloadDir        = "."
	defaultPrintCommand       = "lp"
	defaultBlobBackend        = BlobBackendMemory
	defaultMinioEndpoint      = "localhost:9000"
	defaultMinioBucket        = "report-blobs"
	defaultMinioPresignExpiry = 5 * time.Minute
	defaultSweepMaxAge        = 15 * time.Minute
	defaultSweepInterval      = 5 * time.Minute
	defaultLogLevel           = "info"
	defaultLogFormat          = "json"
)

const (
	BlobBackendMemory = "memory"
	BlobBackendMinio  = "minio"
)

type Config struct {
	HTTPPort string `mapstructure:"HTTP_PORT"`

	ReportAPIBaseURL   string        `mapstructure:"REPORT_API_BASE_URL"`
	ReportTokenFile    string        `mapstructure:"REPORT_TOKEN_FILE"`
	ReportTokenEnv     string        `mapstructure:"REPORT_TOKEN_ENV"`
	ReportHTTPTimeout  time.Duration `mapstructure:"REPORT_HTTP_TIMEOUT"`
	ReportMaxBytes     int64         `mapstructure:"REPORT_MAX_BYTES"`
	ReportArtifactKind string        `mapstructure:"REPORT_ARTIFACT_KIND"`

	ViewRevokeDelay  time.Duration `mapstructure:"VIEW_REVOKE_DELAY"`
	PrintGraceDelay  time.Duration `mapstructure:"PRINT_GRACE_DELAY"`
	PrintLoadTimeout time.Duration `mapstructure:"PRINT_LOAD_TIMEOUT"`
	DownloadDir      string        `mapstructure:"DOWNLOAD_DIR"`
	PrintCommand     string        `mapstructure:"PRINT_COMMAND"`

	BlobBackend        string        `mapstructure:"BLOB_BACKEND"`
	BlobPublicBaseURL  string        `mapstructure:"BLOB_PUBLIC_BASE_URL"`
	MinioEndpoint      string        `mapstructure:"MINIO_ENDPOINT"`
	MinioAccessKey     string        `mapstructure:"MINIO_ACCESS_KEY"`
	MinioSecretKey     string        `mapstructure:"MINIO_SECRET_KEY"`
	MinioBucket        string        `mapstructure:"MINIO_BUCKET"`
	MinioUseSSL        bool          `mapstructure:"MINIO_USE_SSL"`
	MinioPresignExpiry time.Duration `mapstructure:"MINIO_PRESIGN_EXPIRY"`
	SweepMaxAge        time.Duration `mapstructure:"SWEEP_MAX_AGE"`
	SweepInterval      time.Duration `mapstructure:"SWEEP_INTERVAL"`

	TemporalAddress   string `mapstructure:"TEMPORAL_ADDRESS"`
	TemporalNamespace string `mapstructure:"TEMPORAL_NAMESPACE"`
	TemporalTaskQueue string `mapstructure:"TEMPORAL_TASK_QUEUE"`
	WorkflowIDPrefix  string `mapstructure:"WORKFLOW_ID_PREFIX"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`
}

var defaults = map[string]any{
	"HTTP_PORT":            defaultHTTPPort,
	"REPORT_HTTP_TIMEOUT":  defaultReportHTTPTimeout,
	"REPORT_MAX_BYTES":     defaultReportMaxBytes,
	"REPORT_ARTIFACT_KIND": defaultArtifactKind,
	"VIEW_REVOKE_DELAY":    defaultViewRevokeDelay,
	"PRINT_GRACE_DELAY":    defaultPrintGraceDelay,
	"PRINT_LOAD_TIMEOUT":   defaultPrintLoadTimeout,
	"DOWNLOAD_DIR":         defaultDownloadDir,
	"PRINT_COMMAND":        defaultPrintCommand,
	"BLOB_BACKEND":         defaultBlobBackend,
	"MINIO_ENDPOINT":       defaultMinioEndpoint,
	"MINIO_BUCKET":         defaultMinioBucket,
	"MINIO_USE_SSL":        false,
	"MINIO_PRESIGN_EXPIRY": defaultMinioPresignExpiry,
	"SWEEP_MAX_AGE":        defaultSweepMaxAge,
	"SWEEP_INTERVAL":       defaultSweepInterval,
	"TEMPORAL_ADDRESS":     defaultTemporalAddress,
	"TEMPORAL_NAMESPACE":   defaultTemporalNS,
	"TEMPORAL_TASK_QUEUE":  defaultTaskQueue,
	"WORKFLOW_ID_PREFIX":   defaultWorkflowIDPrefix,
	"LOG_LEVEL":            defaultLogLevel,
	"LOG_FORMAT":           defaultLogFormat,
}

var unsetByDefault = []string{
	"REPORT_API_BASE_URL",
	"REPORT_TOKEN_FILE",
	"REPORT_TOKEN_ENV",
	"BLOB_PUBLIC_BASE_URL",
	"MINIO_ACCESS_KEY",
	"MINIO_SECRET_KEY",
}

// Load reads configuration from the environment and an optional .env file in
// the working directory.
func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
		_ = v.BindEnv(key)
	}
	for _, key := range unsetByDefault {
		_ = v.BindEnv(key)
	}
	_ = v.ReadInConfig()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.BlobBackend = strings.ToLower(strings.TrimSpace(cfg.BlobBackend))
	cfg.ReportAPIBaseURL = strings.TrimRight(strings.TrimSpace(cfg.ReportAPIBaseURL), "/")
	if cfg.BlobPublicBaseURL == "" {
		cfg.BlobPublicBaseURL = "http://localhost:" + cfg.HTTPPort
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.ReportAPIBaseURL == "" {
		return fmt.Errorf("REPORT_API_BASE_URL is required")
	}
	switch c.BlobBackend {
	case BlobBackendMemory:
	case BlobBackendMinio:
		if c.MinioEndpoint == "" || c.MinioBucket == "" {
			return fmt.Errorf("MINIO_ENDPOINT and MINIO_BUCKET are required for the minio blob backend")
		}
	default:
		return fmt.Errorf("BLOB_BACKEND must be %q or %q, got %q", BlobBackendMemory, BlobBackendMinio, c.BlobBackend)
	}
	if c.ReportHTTPTimeout <= 0 {
		return fmt.Errorf("REPORT_HTTP_TIMEOUT must be positive")
	}
	if c.ReportMaxBytes <= 0 {
		return fmt.Errorf("REPORT_MAX_BYTES must be positive")
	}
	if c.ViewRevokeDelay < 0 || c.PrintGraceDelay < 0 || c.PrintLoadTimeout < 0 {
		return fmt.Errorf("revoke delays must not be negative")
	}
	return nil
}

// Credentials picks the bearer token source: a named environment variable
// when REPORT_TOKEN_ENV is set, otherwise the token file.
func (c Config) Credentials() (reportapi.CredentialStore, error) {
	if c.ReportTokenEnv != "" {
		return reportapi.EnvCredentials{Key: c.ReportTokenEnv}, nil
	}
	path := c.ReportTokenFile
	if path == "" {
		p, err := reportapi.DefaultTokenPath()
		if err != nil {
			return nil, fmt.Errorf("resolve token path: %w", err)
		}
		path = p
	}
	return reportapi.FileCredentials{Path: path}, nil
}
