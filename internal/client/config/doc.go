// Package config loads runtime configuration for the lifekeeper client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c/-config or LIFEKEEPER_CONFIG.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the REST API
//	-d string   path of the local SQLite database
//	-i int      online status check interval (seconds)
//
// # JSON schema
//
// Intervals use timex.Duration, so values can be strings like "3s" or
// integer nanoseconds. Missing keys keep their defaults:
//
//	{
//	  "server_url": "https://api.example.com/api",
//	  "database_path": "/var/lib/lifekeeper/client.db",
//	  "online_check_interval": "3s",
//	  "sync_debounce": "1s",
//	  "request_timeout": "15s",
//	  "requests_per_second": 10,
//	  "max_attempts": 5,
//	  "health_check": "grpc",
//	  "grpc_health_addr": "api.example.com:9090",
//	  "log_level": "debug",
//	  "log_file": "/var/log/lifekeeper.log",
//	  "metrics_addr": "127.0.0.1:9102",
//	  "backup": {
//	    "bucket": "lifekeeper-backups",
//	    "region": "eu-central-1",
//	    "endpoint": "http://127.0.0.1:9000",
//	    "prefix": "laptop",
//	    "schedule": "@every 6h"
//	  }
//	}
package config
