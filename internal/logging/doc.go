// Package logging configures structured slog output for the encoding
// service and provides typed attribute helpers shared across components.
package logging
