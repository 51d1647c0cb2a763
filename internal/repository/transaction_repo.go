package repository

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	"compliance-agent/internal/metrics"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Driver selects the transaction store backend
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Row maps column names to values of one result row
type Row map[string]interface{}

// ResultSet is a fully materialized query result
type ResultSet struct {
	Columns []string
	Rows    []Row
}

// Empty reports whether the result holds no rows
func (rs ResultSet) Empty() bool {
	return len(rs.Rows) == 0
}

// HasColumn reports whether the query returned the named column
func (rs ResultSet) HasColumn(name string) bool {
	for _, c := range rs.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// TransactionRepository runs generated queries against the transaction store.
// Every query gets its own connection, closed before the call returns.
type TransactionRepository struct {
	driver  Driver
	dsn     string
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewTransactionRepository creates a repository for an SQLite path or a PostgreSQL URL
func NewTransactionRepository(driver Driver, dsn string, m *metrics.Metrics, logger *zap.Logger) (*TransactionRepository, error) {
	switch driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database type %q", driver)
	}

	if dsn == "" {
		return nil, fmt.Errorf("database path is required")
	}

	if m == nil {
		m = metrics.New(nil)
	}

	logger.Info("Transaction repository initialized",
		zap.String("driver", string(driver)))

	return &TransactionRepository{
		driver:  driver,
		dsn:     dsn,
		logger:  logger.Named("executor"),
		metrics: m,
	}, nil
}

// ExecuteQuery runs an untrusted SELECT and returns its rows.
// Failures are logged and reported as an empty result.
func (r *TransactionRepository) ExecuteQuery(ctx context.Context, query string) ResultSet {
	if !isReadOnlyStatement(query) {
		r.metrics.QueryErrors.WithLabelValues("rejected").Inc()
		r.logger.Warn("Refusing non-SELECT statement",
			zap.String("sql", query))
		return ResultSet{}
	}

	rs, err := r.query(ctx, query)
	if err != nil {
		r.metrics.QueryErrors.WithLabelValues("failed").Inc()
		r.logger.Warn("SQL error, treating as empty result",
			zap.String("sql", query),
			zap.Error(err))
		return ResultSet{}
	}

	r.logger.Debug("Query executed",
		zap.Int("rows", len(rs.Rows)),
		zap.Strings("columns", rs.Columns))

	return rs
}

func (r *TransactionRepository) query(ctx context.Context, query string) (ResultSet, error) {
	db, err := sqlx.Open(string(r.driver), r.readOnlyDSN())
	if err != nil {
		return ResultSet{}, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	var q sqlx.QueryerContext = db
	if r.driver == DriverPostgres {
		tx, err := db.BeginTxx(ctx, &sql.TxOptions{ReadOnly: true})
		if err != nil {
			return ResultSet{}, fmt.Errorf("failed to begin read-only transaction: %w", err)
		}
		defer tx.Rollback()
		q = tx
	}

	rows, err := q.QueryxContext(ctx, query)
	if err != nil {
		return ResultSet{}, fmt.Errorf("failed to run query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return ResultSet{}, fmt.Errorf("failed to read columns: %w", err)
	}

	rs := ResultSet{Columns: columns}
	for rows.Next() {
		row := make(map[string]interface{}, len(columns))
		if err := rows.MapScan(row); err != nil {
			return ResultSet{}, fmt.Errorf("failed to scan row: %w", err)
		}
		rs.Rows = append(rs.Rows, normalize(row))
	}

	if err := rows.Err(); err != nil {
		return ResultSet{}, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return rs, nil
}

// readOnlyDSN opens SQLite files read-only; PostgreSQL relies on a read-only transaction
func (r *TransactionRepository) readOnlyDSN() string {
	if r.driver != DriverSQLite {
		return r.dsn
	}

	dsn := r.dsn
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + escapePath(dsn)
	}

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "mode=ro&_pragma=query_only(1)"
}

func normalize(m map[string]interface{}) Row {
	row := make(Row, len(m))
	for k, v := range m {
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		row[k] = v
	}
	return row
}

// escapePath makes a plain file path safe inside a file: URI so '?', '#'
// and '%' in directory or file names are not read as URI syntax
func escapePath(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// isReadOnlyStatement accepts SELECT and WITH queries only. Leading
// comments and opening parentheses are skipped before the keyword check.
func isReadOnlyStatement(query string) bool {
	q := strings.ToUpper(stripLeadingNoise(query))
	return strings.HasPrefix(q, "SELECT") || strings.HasPrefix(q, "WITH")
}

func stripLeadingNoise(q string) string {
	for {
		q = strings.TrimLeft(q, " \t\r\n(")
		switch {
		case strings.HasPrefix(q, "--"):
			_, rest, ok := strings.Cut(q, "\n")
			if !ok {
				return ""
			}
			q = rest
		case strings.HasPrefix(q, "/*"):
			_, rest, ok := strings.Cut(q[2:], "*/")
			if !ok {
				return ""
			}
			q = rest
		default:
			return q
		}
	}
}
