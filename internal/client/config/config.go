package config

import "time"

// BackupConfig locates the S3 bucket for snapshots. Backups are disabled
// while Bucket is empty.
type BackupConfig struct {
	Bucket    string
	Region    string
	Endpoint  string
	Prefix    string
	AccessKey string
	SecretKey string
	// Schedule is a cron spec such as "@every 1h". Empty means manual only.
	Schedule string
}

// Config holds runtime settings for the lifekeeper client.
//
// Fields:
//   - ServerURL: base URL of the REST API.
//   - DatabasePath: SQLite file holding caches, queues and the session.
//   - OnlineCheckInterval: how often the client probes server reachability.
//   - SyncDebounce: quiet period after a mutation before a sync starts.
//   - RequestTimeout, RequestsPerSecond: per-request limits of the REST client.
//   - MaxAttempts: passes a retryable queued operation survives.
//   - HealthCheck: "http" probes ServerURL, "grpc" probes GRPCHealthAddr.
//   - MetricsAddr: listen address of the Prometheus endpoint, empty to disable.
type Config struct {
	ServerURL           string
	DatabasePath        string
	OnlineCheckInterval time.Duration
	SyncDebounce        time.Duration
	RequestTimeout      time.Duration
	RequestsPerSecond   float64
	MaxAttempts         int
	HealthCheck         string
	GRPCHealthAddr      string
	LogLevel            string
	LogFile             string
	MetricsAddr         string
	Backup              BackupConfig
}

// Health check modes.
const (
	HealthCheckHTTP = "http"
	HealthCheckGRPC = "grpc"
)

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8000/api"
	c.DatabasePath = "lifekeeper.db"
	c.OnlineCheckInterval = 3 * time.Second
	c.SyncDebounce = time.Second
	c.RequestTimeout = 15 * time.Second
	c.RequestsPerSecond = 10
	c.MaxAttempts = 5
	c.HealthCheck = HealthCheckHTTP
	c.LogLevel = "info"
	c.Backup.Region = "us-east-1"
	c.Backup.Prefix = "lifekeeper"
}

// BackupEnabled reports whether a bucket is configured.
func (c *Config) BackupEnabled() bool {
	return c.Backup.Bucket != ""
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
