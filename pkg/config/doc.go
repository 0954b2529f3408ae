// Package config provides YAML-based configuration for the Beacon service.
//
// Configuration is loaded from a single file, filled with defaults, overridden
// by BEACON_* environment variables, and validated before any component
// starts. Validation failures are fatal at startup so a misconfigured service
// never serves decisions.
package config
