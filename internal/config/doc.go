// Package config loads, normalizes, and validates the TOML configuration
// for the encoding service daemon and CLI.
package config
