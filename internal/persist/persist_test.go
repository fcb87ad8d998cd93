package persist

import (
	"context"
	"path/filepath"
	"testing"
)

func TestPidKeyDefaultsNetwork(t *testing.T) {
	if PidKey("") != "previous_cardano_pid" {
		t.Fatalf("unexpected default key: %s", PidKey(""))
	}
	if PidKey("mainnet") != "previous_mainnet_pid" {
		t.Fatalf("unexpected key: %s", PidKey("mainnet"))
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, ok, err := s.GetInt(ctx, "k"); err != nil || ok {
		t.Fatalf("expected unset key, got ok=%v err=%v", ok, err)
	}
	if err := s.SetInt(ctx, "k", 42); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, ok, err := s.GetInt(ctx, "k")
	if err != nil || !ok || v != 42 {
		t.Fatalf("expected (42, true, nil), got (%d, %v, %v)", v, ok, err)
	}
	if err := s.SetInt(ctx, "k", 99); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	v, _, _ = s.GetInt(ctx, "k")
	if v != 99 {
		t.Fatalf("expected last-writer-wins value 99, got %d", v)
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := OpenSQLiteStore(ctx, filepath.Join(dir, "state.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	if _, ok, err := store.GetInt(ctx, "previous_preprod_pid"); err != nil || ok {
		t.Fatalf("expected unset key, got ok=%v err=%v", ok, err)
	}
	if err := store.SetInt(ctx, "previous_preprod_pid", 4242); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, ok, err := store.GetInt(ctx, "previous_preprod_pid")
	if err != nil || !ok || v != 4242 {
		t.Fatalf("expected (4242, true, nil), got (%d, %v, %v)", v, ok, err)
	}
	if err := store.SetInt(ctx, "previous_preprod_pid", 7); err != nil {
		t.Fatalf("update: %v", err)
	}
	v, _, _ = store.GetInt(ctx, "previous_preprod_pid")
	if v != 7 {
		t.Fatalf("expected updated value 7, got %d", v)
	}
}
