package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"testing"

	"clinicore/internal/infra/persistence/memory"
	"clinicore/internal/infra/persistence/postgres/testutil"
	"clinicore/pkg/domain"
)

func openStubStore(t *testing.T) (*Store, *testutil.StubConn) {
	t.Helper()
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	t.Cleanup(restore)

	store, err := NewStore("")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store, conn
}

func TestNewStoreEnsuresStateTable(t *testing.T) {
	_, conn := openStubStore(t)
	sawDDL := false
	for _, stmt := range conn.Execs {
		if strings.Contains(strings.ToUpper(stmt), "CREATE TABLE") {
			sawDDL = true
			break
		}
	}
	if !sawDDL {
		t.Fatalf("expected state-table DDL, got execs: %v", conn.Execs)
	}
}

func TestWritesSnapshotBuckets(t *testing.T) {
	ctx := context.Background()
	store, conn := openStubStore(t)

	created, err := store.CreateValidation(ctx, domain.Validation{AnalysisID: "an-1", ValidatorID: "val-1"})
	if err != nil {
		t.Fatalf("create validation: %v", err)
	}

	payload, ok := conn.Buckets["validations"]
	if !ok {
		t.Fatalf("validations bucket not written, buckets: %v", bucketNames(conn))
	}
	var validations map[string]domain.Validation
	if err := json.Unmarshal(payload, &validations); err != nil {
		t.Fatalf("decode validations bucket: %v", err)
	}
	if _, ok := validations[created.ID]; !ok {
		t.Fatalf("created validation missing from snapshot")
	}
	for _, bucket := range []string{"rules", "results", "quality_metrics"} {
		if _, ok := conn.Buckets[bucket]; !ok {
			t.Fatalf("bucket %s not written", bucket)
		}
	}
}

func TestLoadsSeededSnapshot(t *testing.T) {
	ctx := context.Background()
	db, conn := testutil.NewStubDB()

	seed := memory.NewStore()
	created, err := seed.CreateValidation(ctx, domain.Validation{AnalysisID: "an-1", ValidatorID: "val-1"})
	if err != nil {
		t.Fatalf("seed create: %v", err)
	}
	snapshot := seed.ExportState()
	payload, err := json.Marshal(snapshot.Validations)
	if err != nil {
		t.Fatalf("marshal seed: %v", err)
	}
	conn.Seed("validations", payload)

	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	store, err := NewStore("")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	fetched, err := store.GetValidation(ctx, created.ID)
	if err != nil {
		t.Fatalf("get after hydrate: %v", err)
	}
	if fetched.AnalysisID != "an-1" {
		t.Fatalf("restored analysis id = %s", fetched.AnalysisID)
	}

	// Uniqueness index must be rebuilt from the snapshot.
	_, err = store.CreateValidation(ctx, domain.Validation{AnalysisID: "an-1", ValidatorID: "val-2"})
	if !domain.IsConflict(err) {
		t.Fatalf("expected ConflictError after hydrate, got %v", err)
	}
}

func TestNewStoreFailsOnPing(t *testing.T) {
	db, conn := testutil.NewStubDB()
	conn.FailPing = true
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	if _, err := NewStore(""); err == nil {
		t.Fatalf("expected ping failure to surface")
	}
}

func TestCompleteValidationSnapshotsTerminalState(t *testing.T) {
	ctx := context.Background()
	store, conn := openStubStore(t)

	created, err := store.CreateValidation(ctx, domain.Validation{AnalysisID: "an-1", ValidatorID: "val-1"})
	if err != nil {
		t.Fatalf("create validation: %v", err)
	}
	if _, err := store.CompleteValidation(ctx, created.ID, func(v *domain.Validation) error {
		v.Status = domain.StatusRejected
		return nil
	}); err != nil {
		t.Fatalf("complete validation: %v", err)
	}

	var validations map[string]domain.Validation
	if err := json.Unmarshal(conn.Buckets["validations"], &validations); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if validations[created.ID].Status != domain.StatusRejected {
		t.Fatalf("snapshot status = %s, want rejected", validations[created.ID].Status)
	}
}

func bucketNames(conn *testutil.StubConn) []string {
	names := make([]string, 0, len(conn.Buckets))
	for name := range conn.Buckets {
		names = append(names, name)
	}
	return names
}
