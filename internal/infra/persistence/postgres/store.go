// Package postgres provides a Postgres-backed persistent store that mirrors
// the in-memory semantics and snapshots state to a JSONB table after every
// successful write.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"clinicore/internal/infra/persistence/memory"
	"clinicore/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.Store = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/clinicore?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store persists state to Postgres while reusing the in-memory implementation
// for workflow semantics.
type Store struct {
	*memory.Store
	db *sql.DB
	mu sync.Mutex
}

// NewStore opens a Postgres-backed store using the provided DSN (falls back
// to defaultDSN), ensures the snapshot table exists, and hydrates the
// in-memory store from any existing snapshot.
func NewStore(dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := ensureStateTable(ctx, db); err != nil {
		return nil, err
	}
	snapshot, err := loadSnapshot(ctx, db)
	if err != nil {
		return nil, err
	}
	mem := memory.NewStore()
	mem.ImportState(snapshot)
	return &Store{Store: mem, db: db}, nil
}

var postgresBuckets = []string{"validations", "rules", "results", "quality_metrics"}

func ensureStateTable(ctx context.Context, db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload JSONB NOT NULL
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure state table: %w", err)
	}
	return nil
}

func loadSnapshot(ctx context.Context, db *sql.DB) (memory.Snapshot, error) {
	rows, err := db.QueryContext(ctx, `SELECT bucket, payload FROM state`)
	if err != nil {
		return memory.Snapshot{}, fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var snapshot memory.Snapshot
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return memory.Snapshot{}, fmt.Errorf("scan state: %w", err)
		}
		if len(payload) == 0 {
			continue
		}
		var target any
		switch bucket {
		case "validations":
			target = &snapshot.Validations
		case "rules":
			target = &snapshot.Rules
		case "results":
			target = &snapshot.Results
		case "quality_metrics":
			target = &snapshot.Metrics
		default:
			continue
		}
		if err := json.Unmarshal(payload, target); err != nil {
			return memory.Snapshot{}, fmt.Errorf("decode %s: %w", bucket, err)
		}
	}
	if err := rows.Err(); err != nil {
		return memory.Snapshot{}, fmt.Errorf("iterate state: %w", err)
	}
	return snapshot, nil
}

func (s *Store) persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.ExportState()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	for _, bucket := range postgresBuckets {
		var data []byte
		switch bucket {
		case "validations":
			data, err = json.Marshal(snapshot.Validations)
		case "rules":
			data, err = json.Marshal(snapshot.Rules)
		case "results":
			data, err = json.Marshal(snapshot.Results)
		case "quality_metrics":
			data, err = json.Marshal(snapshot.Metrics)
		}
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO state(bucket,payload) VALUES($1,$2) ON CONFLICT(bucket) DO UPDATE SET payload=EXCLUDED.payload`, bucket, data); err != nil {
			return fmt.Errorf("upsert %s: %w", bucket, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// CreateValidation persists a new pending validation and snapshots state.
func (s *Store) CreateValidation(ctx context.Context, validation domain.Validation) (domain.Validation, error) {
	created, err := s.Store.CreateValidation(ctx, validation)
	if err != nil {
		return created, err
	}
	if pErr := s.persist(ctx); pErr != nil {
		return created, pErr
	}
	return created, nil
}

// CompleteValidation applies the mutator and snapshots state on success.
func (s *Store) CompleteValidation(ctx context.Context, id string, mutate func(*domain.Validation) error) (domain.Validation, error) {
	updated, err := s.Store.CompleteValidation(ctx, id, mutate)
	if err != nil {
		return updated, err
	}
	if pErr := s.persist(ctx); pErr != nil {
		return updated, pErr
	}
	return updated, nil
}

// PutRule upserts a rule definition and snapshots state.
func (s *Store) PutRule(ctx context.Context, rule domain.ValidationRule) (domain.ValidationRule, error) {
	stored, err := s.Store.PutRule(ctx, rule)
	if err != nil {
		return stored, err
	}
	if pErr := s.persist(ctx); pErr != nil {
		return stored, pErr
	}
	return stored, nil
}

// AppendResult persists a rule evaluation result and snapshots state.
func (s *Store) AppendResult(ctx context.Context, result domain.ValidationResult) (domain.ValidationResult, error) {
	stored, err := s.Store.AppendResult(ctx, result)
	if err != nil {
		return stored, err
	}
	if pErr := s.persist(ctx); pErr != nil {
		return stored, pErr
	}
	return stored, nil
}

// AppendQualityMetric persists a quality metric and snapshots state.
func (s *Store) AppendQualityMetric(ctx context.Context, metric domain.QualityMetric) (domain.QualityMetric, error) {
	stored, err := s.Store.AppendQualityMetric(ctx, metric)
	if err != nil {
		return stored, err
	}
	if pErr := s.persist(ctx); pErr != nil {
		return stored, pErr
	}
	return stored, nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
