package main

import (
	"testing"

	"clipstream/internal/logging"
	"clipstream/internal/testsupport"
)

func TestBootstrapWiresDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	d, cleanup, err := bootstrap(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	defer cleanup()
	defer d.Close() //nolint:errcheck

	if d.Running() {
		t.Fatal("daemon should not be running before Start")
	}
}
