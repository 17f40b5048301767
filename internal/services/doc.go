// Package services holds cross-cutting helpers shared by the encoding
// pipeline: the error taxonomy used for failure classification and
// context annotation for correlation of log records.
package services
