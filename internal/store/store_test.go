package store

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "relay.db")
	s, err := Open(dsn, DriverSQLite)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func TestStoreInvocations(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	first := &Invocation{
		Tool:      "add",
		Input:     map[string]interface{}{"a": 2.5, "b": 3.5},
		Result:    "2.5 + 3.5 = 6",
		Status:    "success",
		EventID:   "evt-1",
		Delivered: 3,
	}
	if err := s.AppendInvocation(ctx, first); err != nil {
		t.Fatalf("AppendInvocation: %v", err)
	}
	if first.ID == "" || first.CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp to be set: %+v", first)
	}

	if err := s.AppendInvocation(ctx, &Invocation{
		Tool:   "get-alerts",
		Status: "failed",
		Error:  "weather service returned 502",
	}); err != nil {
		t.Fatalf("AppendInvocation: %v", err)
	}

	all, err := s.ListInvocations(ctx, "", 10)
	if err != nil {
		t.Fatalf("ListInvocations: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 invocations got %d", len(all))
	}
	if all[0].Tool != "get-alerts" {
		t.Fatalf("expected newest first, got %s", all[0].Tool)
	}

	adds, err := s.ListInvocations(ctx, "add", 10)
	if err != nil {
		t.Fatalf("ListInvocations: %v", err)
	}
	if len(adds) != 1 {
		t.Fatalf("expected 1 add invocation got %d", len(adds))
	}
	got := adds[0]
	if got.Result != "2.5 + 3.5 = 6" || got.Delivered != 3 || got.EventID != "evt-1" {
		t.Fatalf("unexpected record: %+v", got)
	}
	if got.Input["a"] != 2.5 {
		t.Fatalf("input not round-tripped: %+v", got.Input)
	}

	limited, err := s.ListInvocations(ctx, "", 1)
	if err != nil {
		t.Fatalf("ListInvocations: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected limit to apply, got %d", len(limited))
	}
}

func TestOpenDrivers(t *testing.T) {
	t.Parallel()

	s, err := Open("", DriverNone)
	if err != nil || s != nil {
		t.Fatalf("expected nil store for none driver, got %v %v", s, err)
	}
	if _, err := Open("x", "mysql"); err == nil {
		t.Fatalf("expected unsupported driver error")
	}
	if _, err := Open("", DriverSQLite); err == nil {
		t.Fatalf("expected missing DSN error")
	}
}

func TestRebind(t *testing.T) {
	t.Parallel()

	pg := &Store{driver: DriverPostgres}
	if got := pg.rebind("SELECT ? , ?"); got != "SELECT $1 , $2" {
		t.Fatalf("unexpected rebind: %s", got)
	}
	lite := &Store{driver: DriverSQLite}
	if got := lite.rebind("SELECT ?"); got != "SELECT ?" {
		t.Fatalf("sqlite query should be unchanged: %s", got)
	}
}

func TestAppendRequiresTool(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	if err := s.AppendInvocation(context.Background(), &Invocation{Status: "success"}); err == nil {
		t.Fatalf("expected error for missing tool")
	}
}
