// Package testutil provides a stub database/sql driver that emulates the
// postgres state table: one JSON payload per bucket.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync/atomic"
)

var stubSeq atomic.Int64

// StubConn records statements and holds the state table in memory.
type StubConn struct {
	Execs []string
	// State maps bucket to the last upserted payload.
	State map[string][]byte

	FailPing   bool
	FailExec   bool
	FailBegin  bool
	FailCommit bool
	FailQuery  bool
	RowsErr    error
	Rollbacks  int
}

// NewStubDB registers a fresh driver and opens a sql.DB on it.
func NewStubDB() (*sql.DB, *StubConn) {
	conn := &StubConn{State: make(map[string][]byte)}
	name := fmt.Sprintf("curetrack-stubpg-%d", stubSeq.Add(1))
	sql.Register(name, stubDriver{conn: conn})
	db, err := sql.Open(name, "")
	if err != nil {
		panic(err)
	}
	return db, conn
}

// Buckets lists stored buckets in sorted order.
func (c *StubConn) Buckets() []string {
	out := make([]string, 0, len(c.State))
	for b := range c.State {
		out = append(out, b)
	}
	sort.Strings(out)
	return out
}

type stubDriver struct{ conn *StubConn }

func (d stubDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

type statement int

const (
	stmtUnknown statement = iota
	stmtCreate
	stmtUpsert
	stmtSelect
	stmtDelete
)

func classify(query string) statement {
	q := strings.ToUpper(strings.Join(strings.Fields(query), " "))
	switch {
	case strings.HasPrefix(q, "CREATE TABLE IF NOT EXISTS STATE"):
		return stmtCreate
	case strings.HasPrefix(q, "INSERT INTO STATE(BUCKET,PAYLOAD)") && strings.Contains(q, "ON CONFLICT(BUCKET)"):
		return stmtUpsert
	case q == "SELECT BUCKET, PAYLOAD FROM STATE":
		return stmtSelect
	case strings.HasPrefix(q, "DELETE FROM STATE WHERE BUCKET ="):
		return stmtDelete
	}
	return stmtUnknown
}

// Prepare implements driver.Conn. Only the context-aware fast paths are supported.
func (c *StubConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("stubpg: prepared statements unsupported")
}

// Close implements driver.Conn.
func (c *StubConn) Close() error { return nil }

// Begin implements driver.Conn.
func (c *StubConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// Ping implements driver.Pinger.
func (c *StubConn) Ping(context.Context) error {
	if c.FailPing {
		return errors.New("stubpg: connection refused")
	}
	return nil
}

// BeginTx implements driver.ConnBeginTx.
func (c *StubConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	if c.FailBegin {
		return nil, errors.New("stubpg: begin failed")
	}
	return stubTx{conn: c}, nil
}

// ExecContext implements driver.ExecerContext.
func (c *StubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.Execs = append(c.Execs, query)
	if c.FailExec {
		return nil, errors.New("stubpg: exec failed")
	}
	switch classify(query) {
	case stmtCreate:
		return driver.RowsAffected(0), nil
	case stmtUpsert:
		if len(args) != 2 {
			return nil, fmt.Errorf("stubpg: upsert wants 2 args, got %d", len(args))
		}
		bucket, _ := args[0].Value.(string)
		payload, _ := args[1].Value.([]byte)
		c.State[bucket] = append([]byte(nil), payload...)
		return driver.RowsAffected(1), nil
	case stmtDelete:
		if len(args) != 1 {
			return nil, fmt.Errorf("stubpg: delete wants 1 arg, got %d", len(args))
		}
		bucket, _ := args[0].Value.(string)
		if _, ok := c.State[bucket]; !ok {
			return driver.RowsAffected(0), nil
		}
		delete(c.State, bucket)
		return driver.RowsAffected(1), nil
	}
	return nil, fmt.Errorf("stubpg: unsupported statement %q", query)
}

// QueryContext implements driver.QueryerContext.
func (c *StubConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	if classify(query) != stmtSelect {
		return nil, fmt.Errorf("stubpg: unsupported query %q", query)
	}
	if c.FailQuery {
		return nil, errors.New("stubpg: query failed")
	}
	rows := &stubRows{err: c.RowsErr}
	for _, b := range c.Buckets() {
		rows.rows = append(rows.rows, []driver.Value{b, c.State[b]})
	}
	return rows, nil
}

// stubTx applies statements as they execute; Commit only reports failure.
type stubTx struct{ conn *StubConn }

func (t stubTx) Commit() error {
	if t.conn.FailCommit {
		return errors.New("stubpg: commit failed")
	}
	return nil
}

func (t stubTx) Rollback() error {
	t.conn.Rollbacks++
	return nil
}

type stubRows struct {
	rows [][]driver.Value
	idx  int
	err  error
}

func (r *stubRows) Columns() []string { return []string{"bucket", "payload"} }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		if r.err != nil {
			return r.err
		}
		return io.EOF
	}
	copy(dest, r.rows[r.idx])
	r.idx++
	return nil
}
