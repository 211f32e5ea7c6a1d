/*
Package configs is responsible for loading and parsing the application's configuration settings.

Settings come from environment variables: the running environment, port, CORS
allowed origins, database DSN, the room deletion grace period and the optional
S3 transcript archive.
*/
package configs

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultRoomGracePeriod is how long an empty room survives before deletion.
const DefaultRoomGracePeriod = 60 * time.Second

// AppConfig contains all configuration parameters required for the application to run.
type AppConfig struct {
	// General Server Settings
	Environment string
	Port        int

	// Security Settings
	AllowedOrigins []string

	// Database Settings. An empty DSN selects the in-memory store (development only).
	DatabaseDSN string

	// Room lifecycle
	RoomGracePeriod time.Duration

	// S3 transcript archive. Archiving is disabled when S3BucketName is empty.
	S3BucketName      string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
}

// IsDevelopment reports whether the server runs in the development environment.
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// ArchiveEnabled reports whether deleted rooms are archived to S3.
func (c *AppConfig) ArchiveEnabled() bool {
	return c.S3BucketName != ""
}

// LoadConfig reads and validates the configuration from environment variables.
func LoadConfig() (*AppConfig, error) {
	cfg := &AppConfig{}

	// --- General Server Settings ---
	cfg.Environment = os.Getenv("ENVIRONMENT")
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	portStr := os.Getenv("PORT")
	if portStr == "" {
		portStr = "5000"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT environment variable: %w", err)
	}
	if port < 1024 || port > 65535 {
		return nil, fmt.Errorf("port number %d is outside the allowed range (%d-%d)", port, 1024, 65535)
	}
	cfg.Port = port

	// --- Security Settings ---
	cfg.AllowedOrigins = []string{}
	for _, origin := range strings.Split(os.Getenv("ALLOWED_ORIGINS"), ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
		}
	}

	// --- Database Settings ---
	cfg.DatabaseDSN = os.Getenv("DATABASE_URL")
	if cfg.DatabaseDSN == "" && !cfg.IsDevelopment() {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required in %s environment", cfg.Environment)
	}

	// --- Room lifecycle ---
	cfg.RoomGracePeriod = DefaultRoomGracePeriod
	if graceStr := os.Getenv("ROOM_GRACE_PERIOD"); graceStr != "" {
		grace, err := time.ParseDuration(graceStr)
		if err != nil {
			return nil, fmt.Errorf("invalid ROOM_GRACE_PERIOD environment variable: %w", err)
		}
		if grace <= 0 {
			return nil, fmt.Errorf("ROOM_GRACE_PERIOD must be positive, got %s", grace)
		}
		cfg.RoomGracePeriod = grace
	}

	// --- S3 Archive Settings ---
	cfg.S3BucketName = os.Getenv("S3_BUCKET_NAME")
	if cfg.ArchiveEnabled() {
		cfg.S3Endpoint = os.Getenv("S3_ENDPOINT")
		cfg.S3AccessKeyID = os.Getenv("S3_ACCESS_KEY_ID")
		cfg.S3SecretAccessKey = os.Getenv("S3_SECRET_ACCESS_KEY")

		for name, value := range map[string]string{
			"S3_ENDPOINT":          cfg.S3Endpoint,
			"S3_ACCESS_KEY_ID":     cfg.S3AccessKeyID,
			"S3_SECRET_ACCESS_KEY": cfg.S3SecretAccessKey,
		} {
			if value == "" {
				return nil, fmt.Errorf("%s environment variable is required when S3_BUCKET_NAME is set", name)
			}
		}
	}

	return cfg, nil
}
