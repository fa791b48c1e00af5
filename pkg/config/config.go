package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Config holds process configuration for the engine's outer services
// (archive, export sinks, telemetry, CLI). Nothing here reaches the
// arithmetic kernel.
type Config struct {
	LogLevel      string
	DataDir       string
	ArchiveDriver string
	ArchiveDSN    string
	ExportStore   string
	S3Bucket      string
	S3Region      string
	S3Endpoint    string
	S3Prefix      string
	GCSBucket     string
	GCSPrefix     string
	OTLPEndpoint  string
	OTLPInsecure  bool
}

// Load loads configuration from environment variables.
func Load() *Config {
	logLevel := os.Getenv("QFS_LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	dataDir := os.Getenv("QFS_DATA_DIR")
	if dataDir == "" {
		dataDir = "./data"
	}

	driver := strings.ToLower(os.Getenv("QFS_ARCHIVE_DRIVER"))
	if driver == "" {
		driver = "sqlite"
	}

	dsn := os.Getenv("QFS_ARCHIVE_DSN")
	if dsn == "" && driver == "sqlite" {
		dsn = filepath.Join(dataDir, "archive.db")
	}

	exportStore := strings.ToLower(os.Getenv("QFS_EXPORT_STORE"))
	if exportStore == "" {
		exportStore = "fs"
	}

	return &Config{
		LogLevel:      logLevel,
		DataDir:       dataDir,
		ArchiveDriver: driver,
		ArchiveDSN:    dsn,
		ExportStore:   exportStore,
		S3Bucket:      os.Getenv("QFS_S3_BUCKET"),
		S3Region:      os.Getenv("QFS_S3_REGION"),
		S3Endpoint:    os.Getenv("QFS_S3_ENDPOINT"),
		S3Prefix:      os.Getenv("QFS_S3_PREFIX"),
		GCSBucket:     os.Getenv("QFS_GCS_BUCKET"),
		GCSPrefix:     os.Getenv("QFS_GCS_PREFIX"),
		OTLPEndpoint:  os.Getenv("QFS_OTLP_ENDPOINT"),
		OTLPInsecure:  os.Getenv("QFS_OTLP_INSECURE") == "true",
	}
}

// SlogLevel maps LogLevel onto slog. Unknown names fall back to INFO.
func (c *Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// Validate rejects combinations the services cannot start with.
func (c *Config) Validate() error {
	switch c.ArchiveDriver {
	case "sqlite", "postgres", "memory":
	default:
		return fmt.Errorf("config: unknown archive driver %q", c.ArchiveDriver)
	}
	if c.ArchiveDriver == "postgres" && c.ArchiveDSN == "" {
		return fmt.Errorf("config: QFS_ARCHIVE_DSN is required for postgres")
	}
	switch c.ExportStore {
	case "fs", "none":
	case "s3":
		if c.S3Bucket == "" {
			return fmt.Errorf("config: QFS_S3_BUCKET is required for the s3 export store")
		}
	case "gcs":
		if c.GCSBucket == "" {
			return fmt.Errorf("config: QFS_GCS_BUCKET is required for the gcs export store")
		}
	default:
		return fmt.Errorf("config: unknown export store %q", c.ExportStore)
	}
	return nil
}
