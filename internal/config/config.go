package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	DatabaseURL string // GRAPHSYNC_DATABASE_URL (required by commands that touch the cache or graph)
	HTTPAddr    string // GRAPHSYNC_HTTP_ADDR (default ":8080")
	NATSURL     string // GRAPHSYNC_NATS_URL (optional, empty = no events)
	ConfigFile  string // GRAPHSYNC_CONFIG (optional TOML file)

	// Issue tracker
	TrackerURL   string   // GRAPHSYNC_TRACKER_URL
	TrackerUser  string   // GRAPHSYNC_TRACKER_USER (basic auth when set, bearer otherwise)
	TrackerToken string   // GRAPHSYNC_TRACKER_TOKEN
	Projects     []string // GRAPHSYNC_PROJECTS (comma separated, order preserved)
	CustomFields []string // GRAPHSYNC_CUSTOM_FIELDS (comma separated ids or names)

	// Organization directory
	DirectoryURL   string // GRAPHSYNC_DIRECTORY_URL (default "https://api.github.com")
	DirectoryToken string // GRAPHSYNC_DIRECTORY_TOKEN
	Organization   string // GRAPHSYNC_ORGANIZATION
	InstallationID string // GRAPHSYNC_INSTALLATION_ID (must be numeric when set)

	// Scheduler
	Collections  []string      // GRAPHSYNC_COLLECTIONS (default "issues")
	SyncInterval time.Duration // GRAPHSYNC_SYNC_INTERVAL (default 1h; 0 = run once)

	// Export
	ExportS3Bucket   string // GRAPHSYNC_EXPORT_S3_BUCKET (enables S3 export when set)
	ExportS3Endpoint string // GRAPHSYNC_EXPORT_S3_ENDPOINT (custom endpoint for MinIO)
	ExportS3Region   string // GRAPHSYNC_EXPORT_S3_REGION (default "us-east-1")
	ExportS3Key      string // GRAPHSYNC_EXPORT_S3_KEY (default "graphsync/graph.jsonl")
}

// File is the optional TOML configuration. Values set in the environment
// take precedence over the file.
type File struct {
	Projects     []string `toml:"projects"`
	CustomFields []string `toml:"custom_fields"`
	Collections  []string `toml:"collections"`
	Organization string   `toml:"organization"`
}

func Load() (*Config, error) {
	c := &Config{
		DatabaseURL:      os.Getenv("GRAPHSYNC_DATABASE_URL"),
		HTTPAddr:         envOrDefault("GRAPHSYNC_HTTP_ADDR", ":8080"),
		NATSURL:          os.Getenv("GRAPHSYNC_NATS_URL"),
		ConfigFile:       os.Getenv("GRAPHSYNC_CONFIG"),
		TrackerURL:       os.Getenv("GRAPHSYNC_TRACKER_URL"),
		TrackerUser:      os.Getenv("GRAPHSYNC_TRACKER_USER"),
		TrackerToken:     os.Getenv("GRAPHSYNC_TRACKER_TOKEN"),
		DirectoryURL:     envOrDefault("GRAPHSYNC_DIRECTORY_URL", "https://api.github.com"),
		DirectoryToken:   os.Getenv("GRAPHSYNC_DIRECTORY_TOKEN"),
		Organization:     os.Getenv("GRAPHSYNC_ORGANIZATION"),
		InstallationID:   os.Getenv("GRAPHSYNC_INSTALLATION_ID"),
		ExportS3Bucket:   os.Getenv("GRAPHSYNC_EXPORT_S3_BUCKET"),
		ExportS3Endpoint: os.Getenv("GRAPHSYNC_EXPORT_S3_ENDPOINT"),
		ExportS3Region:   envOrDefault("GRAPHSYNC_EXPORT_S3_REGION", "us-east-1"),
		ExportS3Key:      envOrDefault("GRAPHSYNC_EXPORT_S3_KEY", "graphsync/graph.jsonl"),
	}

	if c.ConfigFile != "" {
		var f File
		if _, err := toml.DecodeFile(c.ConfigFile, &f); err != nil {
			return nil, fmt.Errorf("GRAPHSYNC_CONFIG %s: %w", c.ConfigFile, err)
		}
		c.Projects = f.Projects
		c.CustomFields = f.CustomFields
		c.Collections = f.Collections
		if c.Organization == "" {
			c.Organization = f.Organization
		}
	}

	if v := os.Getenv("GRAPHSYNC_PROJECTS"); v != "" {
		c.Projects = splitList(v)
	}
	if v := os.Getenv("GRAPHSYNC_CUSTOM_FIELDS"); v != "" {
		c.CustomFields = splitList(v)
	}
	if v := os.Getenv("GRAPHSYNC_COLLECTIONS"); v != "" {
		c.Collections = splitList(v)
	}
	if len(c.Collections) == 0 {
		c.Collections = []string{"issues"}
	}

	intervalStr := envOrDefault("GRAPHSYNC_SYNC_INTERVAL", "1h")
	d, err := time.ParseDuration(intervalStr)
	if err != nil {
		return nil, fmt.Errorf("GRAPHSYNC_SYNC_INTERVAL: %w", err)
	}
	c.SyncInterval = d

	return c, nil
}

// splitList splits a comma separated value, dropping blanks and
// surrounding whitespace.
func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
