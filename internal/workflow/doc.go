// Package workflow wires the durable task queue to the encoder. An asynq
// server consumes upload intake events and encode dispatches; a background
// sweep fails processing jobs whose worker heartbeats expired and re-queues
// them while retry budget remains.
package workflow
