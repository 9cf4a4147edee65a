// Package config handles configuration loading for the wallboard server.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from WALLBOARD_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/wallboard/wallboard.yaml
//  3. ~/.config/wallboard/wallboard.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	database:
//	  path: "${WALLBOARD_DB_PATH}"
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	sessions:
//	  heartbeat_interval: "25s"
//	  heartbeat_timeout: "60s"
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:3001"
//
// Database:
//
//	database:
//	  path: "/var/lib/wallboard/wallboard.db"
//
// Sessions:
//
//	sessions:
//	  heartbeat_interval: "25s"
//	  heartbeat_timeout: "60s"
//	  duplicate_policy: "supersede"  # or "reject"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
package config
