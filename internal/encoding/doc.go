// Package encoding orchestrates the per-job pipeline: download the source,
// encode every rendition, capture thumbnails, upload artifacts, settle the
// job, and publish the completion event. A single failure boundary maps any
// stage error onto the failed state so the job never wedges mid-flight.
package encoding
