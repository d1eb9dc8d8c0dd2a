package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/lifekeeper/internal/flagx"
	"github.com/dmitrijs2005/lifekeeper/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Pointer and
// zero-valued fields mean "not set" and keep the earlier value. Durations use
// timex.Duration, so they may be strings like "3s" or integer nanoseconds.
type JsonConfig struct {
	ServerURL           string          `json:"server_url"`
	DatabasePath        string          `json:"database_path"`
	OnlineCheckInterval *timex.Duration `json:"online_check_interval"`
	SyncDebounce        *timex.Duration `json:"sync_debounce"`
	RequestTimeout      *timex.Duration `json:"request_timeout"`
	RequestsPerSecond   *float64        `json:"requests_per_second"`
	MaxAttempts         *int            `json:"max_attempts"`
	HealthCheck         string          `json:"health_check"`
	GRPCHealthAddr      string          `json:"grpc_health_addr"`
	LogLevel            string          `json:"log_level"`
	LogFile             string          `json:"log_file"`
	MetricsAddr         string          `json:"metrics_addr"`
	Backup              *JsonBackup     `json:"backup"`
}

type JsonBackup struct {
	Bucket    string `json:"bucket"`
	Region    string `json:"region"`
	Endpoint  string `json:"endpoint"`
	Prefix    string `json:"prefix"`
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
	Schedule  string `json:"schedule"`
}

// parseJson overlays Config with values loaded from a JSON file.
//
// The file path comes from -c/-config or LIFEKEEPER_CONFIG (see
// flagx.ConfigPath). Without a path nothing is loaded. Read or unmarshal
// errors panic.
func parseJson(cfg *Config) {
	path := flagx.ConfigPath()
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	jc.apply(cfg)
}

func (jc *JsonConfig) apply(cfg *Config) {
	setString(&cfg.ServerURL, jc.ServerURL)
	setString(&cfg.DatabasePath, jc.DatabasePath)
	setString(&cfg.HealthCheck, jc.HealthCheck)
	setString(&cfg.GRPCHealthAddr, jc.GRPCHealthAddr)
	setString(&cfg.LogLevel, jc.LogLevel)
	setString(&cfg.LogFile, jc.LogFile)
	setString(&cfg.MetricsAddr, jc.MetricsAddr)

	if jc.OnlineCheckInterval != nil {
		cfg.OnlineCheckInterval = jc.OnlineCheckInterval.Duration
	}
	if jc.SyncDebounce != nil {
		cfg.SyncDebounce = jc.SyncDebounce.Duration
	}
	if jc.RequestTimeout != nil {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	if jc.RequestsPerSecond != nil {
		cfg.RequestsPerSecond = *jc.RequestsPerSecond
	}
	if jc.MaxAttempts != nil {
		cfg.MaxAttempts = *jc.MaxAttempts
	}

	if b := jc.Backup; b != nil {
		setString(&cfg.Backup.Bucket, b.Bucket)
		setString(&cfg.Backup.Region, b.Region)
		setString(&cfg.Backup.Endpoint, b.Endpoint)
		setString(&cfg.Backup.Prefix, b.Prefix)
		setString(&cfg.Backup.AccessKey, b.AccessKey)
		setString(&cfg.Backup.SecretKey, b.SecretKey)
		setString(&cfg.Backup.Schedule, b.Schedule)
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
