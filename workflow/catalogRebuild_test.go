package workflow

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NOTE: These tests are intentionally DB-free. A minimal database/sql driver
// answers advisory-lock queries, serves canned order rows and records the
// statement stream, so we can assert on transaction boundaries that a live
// MySQL would hide (GET_LOCK is connection-scoped and survives COMMIT).
//
// Full DB integration tests live in models (docker-gated).

// failingProductId poisons INSERTs so a single line item fails while the
// surrounding transaction stays usable.
const failingProductId = 4242

type rebuildRecorder struct {
	mu         sync.Mutex
	eventLog   []string
	orderRows  [][]driver.Value
	detailRows [][]driver.Value
	nextId     int64
}

func (r *rebuildRecorder) add(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.eventLog = append(r.eventLog, event)
}

func (r *rebuildRecorder) events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.eventLog...)
}

type rebuildRows struct {
	columns []string
	values  [][]driver.Value
	pos     int
}

func (r *rebuildRows) Columns() []string { return r.columns }
func (r *rebuildRows) Close() error      { return nil }

func (r *rebuildRows) Next(dest []driver.Value) error {
	if r.pos >= len(r.values) {
		return io.EOF
	}
	copy(dest, r.values[r.pos])
	r.pos++
	return nil
}

type rebuildResult struct {
	lastId int64
	rows   int64
}

func (r rebuildResult) LastInsertId() (int64, error) { return r.lastId, nil }
func (r rebuildResult) RowsAffected() (int64, error) { return r.rows, nil }

type rebuildConn struct {
	rec *rebuildRecorder
}

func (c *rebuildConn) Prepare(query string) (driver.Stmt, error) {
	return nil, errors.New("prepared statements are not supported")
}

func (c *rebuildConn) Close() error { return nil }

func (c *rebuildConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *rebuildConn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	c.rec.add("BEGIN")
	return &rebuildTx{rec: c.rec}, nil
}

func (c *rebuildConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	switch {
	case strings.Contains(query, "GET_LOCK"):
		c.rec.add("GET_LOCK")
		return &rebuildRows{columns: []string{"GET_LOCK"}, values: [][]driver.Value{{int64(1)}}}, nil
	case strings.Contains(query, "RELEASE_LOCK"):
		c.rec.add("RELEASE_LOCK")
		return &rebuildRows{columns: []string{"RELEASE_LOCK"}, values: [][]driver.Value{{int64(1)}}}, nil
	case strings.Contains(query, "purchase_order_details"):
		return &rebuildRows{
			columns: []string{"id", "purchase_order_id", "product_id", "name", "unit", "detail_qty", "detail_unit_rate"},
			values:  c.rec.detailRows,
		}, nil
	case strings.Contains(query, "purchase_orders"):
		return &rebuildRows{
			columns: []string{"id", "business_id", "supplier_id", "order_number", "currency_code", "order_date", "current_status"},
			values:  c.rec.orderRows,
		}, nil
	default:
		// catalog lookups and pluck batches see an empty table
		return &rebuildRows{columns: []string{"id"}}, nil
	}
}

func (c *rebuildConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	if strings.HasPrefix(query, "INSERT") {
		for _, arg := range args {
			if v, ok := arg.Value.(int64); ok && v == failingProductId {
				return nil, errors.New("column constraint violated")
			}
		}
		c.rec.add("INSERT")
		c.rec.mu.Lock()
		c.rec.nextId++
		id := c.rec.nextId
		c.rec.mu.Unlock()
		return rebuildResult{lastId: id, rows: 1}, nil
	}
	return rebuildResult{rows: 0}, nil
}

type rebuildTx struct {
	rec *rebuildRecorder
}

func (t *rebuildTx) Commit() error {
	t.rec.add("COMMIT")
	return nil
}

func (t *rebuildTx) Rollback() error {
	t.rec.add("ROLLBACK")
	return nil
}

type rebuildConnector struct {
	conn *rebuildConn
}

func (c rebuildConnector) Connect(context.Context) (driver.Conn, error) { return c.conn, nil }
func (c rebuildConnector) Driver() driver.Driver                       { return rebuildDriver{} }

type rebuildDriver struct{}

func (rebuildDriver) Open(string) (driver.Conn, error) {
	return nil, errors.New("open through the connector")
}

func newRebuildTestDB(t *testing.T, rec *rebuildRecorder) *gorm.DB {
	t.Helper()

	sqlDB := sql.OpenDB(rebuildConnector{conn: &rebuildConn{rec: rec}})
	// single connection, so the recorded statement order is the real order
	sqlDB.SetMaxOpenConns(1)

	db, err := gorm.Open(gormmysql.New(gormmysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	return db
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func eventIndex(events []string, name string) int {
	for i, e := range events {
		if e == name {
			return i
		}
	}
	return -1
}

func TestRebuildCatalog_ReleasesPostingLockBeforeCommit(t *testing.T) {
	rec := &rebuildRecorder{}
	db := newRebuildTestDB(t, rec)

	summary, err := rebuildCatalogLocked(quietLogger(), db, "biz-1", 0)
	if err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}
	if summary == nil {
		t.Fatal("expected a summary")
	}

	events := rec.events()
	acquired := eventIndex(events, "GET_LOCK")
	released := eventIndex(events, "RELEASE_LOCK")
	committed := eventIndex(events, "COMMIT")

	if acquired < 0 || released < 0 || committed < 0 {
		t.Fatalf("missing lock or commit events: %v", events)
	}
	// RELEASE_LOCK after COMMIT would run on a finished *sql.Tx, never reach
	// the connection and leave the advisory lock held by the pooled session.
	if !(acquired < released && released < committed) {
		t.Fatalf("posting lock must be released inside the transaction, got %v", events)
	}
}

func TestRebuildCatalog_SkipsFailingLineItems(t *testing.T) {
	rec := &rebuildRecorder{
		orderRows: [][]driver.Value{
			{int64(1), "biz-1", int64(7), "PO-0001", "EUR", time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), "Confirmed"},
		},
		detailRows: [][]driver.Value{
			{int64(10), int64(1), int64(failingProductId), "Wheat Flour", "kg", "3", "12.5000"},
			{int64(11), int64(1), int64(101), "Cane Sugar", "kg", "2", "8.0000"},
		},
	}
	db := newRebuildTestDB(t, rec)

	summary, err := rebuildCatalogLocked(quietLogger(), db, "biz-1", 0)
	if err != nil {
		t.Fatalf("a single bad line must not abort the rebuild: %v", err)
	}

	if summary.LineItemErrors != 1 {
		t.Fatalf("expected 1 line item error, got %d", summary.LineItemErrors)
	}
	if summary.EntriesCreated != 1 {
		t.Fatalf("expected the healthy line to create 1 entry, got %d", summary.EntriesCreated)
	}
	if summary.OrdersProcessed != 1 {
		t.Fatalf("expected 1 order processed, got %d", summary.OrdersProcessed)
	}
	if summary.SuppliersTouched != 1 {
		t.Fatalf("expected 1 supplier touched, got %d", summary.SuppliersTouched)
	}

	events := rec.events()
	if eventIndex(events, "COMMIT") < 0 {
		t.Fatalf("rebuild must commit despite the skipped line, got %v", events)
	}
	if eventIndex(events, "ROLLBACK") >= 0 {
		t.Fatalf("rebuild must not roll back on a per-line failure, got %v", events)
	}
}
