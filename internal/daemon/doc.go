// Package daemon ties the worker pool, sweeper, and admin API into a single
// lifecycle with flock-based locking to prevent multiple daemon instances
// from sharing one job database.
package daemon
