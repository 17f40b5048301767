// Package queue persists encoding jobs in SQLite and implements the
// guarded status transitions that make up the job lifecycle. Every
// transition is a single conditional UPDATE so concurrent workers cannot
// move a job through an illegal edge.
package queue
