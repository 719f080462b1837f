// Package testutil provides a stub database for postgres store tests. It
// understands only the snapshot statements the store issues: the state-table
// DDL, bucket upserts, and the state select.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

// StubConn records statements and bucket payloads written by the store.
type StubConn struct {
	mu       sync.Mutex
	Execs    []string
	Buckets  map[string][]byte
	FailPing bool
	FailExec bool
}

// NewStubDB registers a sql.DB backed by an in-memory stub connection.
func NewStubDB() (*sql.DB, *StubConn) {
	conn := &StubConn{Buckets: make(map[string][]byte)}
	name := fmt.Sprintf("stubpg%d", time.Now().UnixNano())
	sql.Register(name, &stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	return db, conn
}

// Seed installs a bucket payload before the store loads its snapshot.
func (c *StubConn) Seed(bucket string, payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Buckets[bucket] = payload
}

type stubDriver struct {
	conn *StubConn
}

func (d *stubDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

// Prepare implements driver.Conn.
func (c *StubConn) Prepare(string) (driver.Stmt, error) { return nil, fmt.Errorf("not implemented") }

// Close implements driver.Conn.
func (c *StubConn) Close() error { return nil }

// Begin implements driver.Conn.
func (c *StubConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// Ping implements driver.Pinger.
func (c *StubConn) Ping(context.Context) error {
	if c.FailPing {
		return fmt.Errorf("ping fail")
	}
	return nil
}

// BeginTx implements driver.ConnBeginTx.
func (c *StubConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	return stubTx{}, nil
}

type stubTx struct{}

func (stubTx) Commit() error   { return nil }
func (stubTx) Rollback() error { return nil }

// ExecContext implements driver.ExecerContext.
func (c *StubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Execs = append(c.Execs, query)
	if c.FailExec {
		return nil, fmt.Errorf("exec fail")
	}
	upper := strings.ToUpper(strings.TrimSpace(query))
	switch {
	case strings.HasPrefix(upper, "CREATE TABLE"):
		return driver.RowsAffected(0), nil
	case strings.HasPrefix(upper, "INSERT INTO STATE"):
		if len(args) != 2 {
			return nil, fmt.Errorf("state upsert expects 2 args, got %d", len(args))
		}
		bucket, ok := args[0].Value.(string)
		if !ok {
			return nil, fmt.Errorf("bucket arg is %T, want string", args[0].Value)
		}
		payload, ok := args[1].Value.([]byte)
		if !ok {
			return nil, fmt.Errorf("payload arg is %T, want []byte", args[1].Value)
		}
		cp := make([]byte, len(payload))
		copy(cp, payload)
		c.Buckets[bucket] = cp
		return driver.RowsAffected(1), nil
	default:
		return nil, fmt.Errorf("unexpected exec %q", query)
	}
}

// QueryContext implements driver.QueryerContext.
func (c *StubConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !strings.Contains(strings.ToUpper(query), "FROM STATE") {
		return nil, fmt.Errorf("unexpected query %q", query)
	}
	buckets := make([]string, 0, len(c.Buckets))
	for bucket := range c.Buckets {
		buckets = append(buckets, bucket)
	}
	sort.Strings(buckets)
	rows := &stateRows{}
	for _, bucket := range buckets {
		payload := make([]byte, len(c.Buckets[bucket]))
		copy(payload, c.Buckets[bucket])
		rows.rows = append(rows.rows, stateRow{bucket: bucket, payload: payload})
	}
	return rows, nil
}

type stateRow struct {
	bucket  string
	payload []byte
}

type stateRows struct {
	rows []stateRow
	idx  int
}

func (r *stateRows) Columns() []string { return []string{"bucket", "payload"} }
func (r *stateRows) Close() error      { return nil }

func (r *stateRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		return io.EOF
	}
	row := r.rows[r.idx]
	r.idx++
	dest[0] = row.bucket
	dest[1] = row.payload
	return nil
}
