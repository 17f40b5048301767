// Package api exposes the daemon's HTTP admin surface: job inspection,
// manual retry and cancel actions, aggregate stats, and a health probe.
// It also provides the typed client the CLI uses to talk to a running
// daemon.
package api
