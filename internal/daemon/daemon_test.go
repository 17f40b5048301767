package daemon

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/gofrs/flock"

	"clipstream/internal/logging"
	"clipstream/internal/testsupport"
	"clipstream/internal/workflow"
)

func TestNewRequiresDependencies(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := New(cfg, nil, nil, nil, logging.NewNop()); err == nil {
		t.Fatal("expected error for missing dependencies")
	}
}

func TestStartRefusesWhenLockHeld(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	lockPath := filepath.Join(cfg.Paths.LogDir, "clipstreamd.lock")
	holder := flock.New(lockPath)
	locked, err := holder.TryLock()
	if err != nil || !locked {
		t.Fatalf("acquire test lock: locked=%v err=%v", locked, err)
	}
	defer holder.Unlock() //nolint:errcheck

	wf := workflow.NewManager(cfg, store, nil, nil, nil, logging.NewNop())
	d, err := New(cfg, store, wf, nil, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := d.Start(context.Background()); err == nil {
		d.Stop()
		t.Fatal("expected start to fail while lock is held")
	}
	if d.Running() {
		t.Fatal("daemon should not report running")
	}
}
