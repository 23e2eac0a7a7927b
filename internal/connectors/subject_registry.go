// Package connectors integrates external dealer systems. The subject
// registry looks up human-readable labels for the subject ids processes are
// tracked against, typically a vehicle table in the dealer's DMS database.
package connectors

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"dealerflow/internal/config"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// SQLSubjectRegistry resolves subject ids against an external SQL table with
// `id` and `label` columns. With no DSN configured it resolves nothing and
// every lookup returns an empty map.
type SQLSubjectRegistry struct {
	db     *sql.DB
	table  string
	dbType string
	logger *zap.Logger
}

func NewSQLSubjectRegistry(cfg *config.Config, logger *zap.Logger) (*SQLSubjectRegistry, error) {
	r := &SQLSubjectRegistry{
		table:  cfg.SubjectDBTable,
		dbType: cfg.SubjectDBType,
		logger: logger,
	}

	if cfg.SubjectDBDSN == "" {
		logger.Info("Subject registry disabled, no DSN configured")
		return r, nil
	}

	driver := cfg.SubjectDBType
	if driver == "postgresql" {
		driver = "postgres"
	}

	db, err := sql.Open(driver, cfg.SubjectDBDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open subject database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	r.db = db
	logger.Info("Subject registry connected",
		zap.String("driver", driver),
		zap.String("table", cfg.SubjectDBTable))
	return r, nil
}

// Resolve maps ids to labels. Missing ids are simply absent from the result.
func (r *SQLSubjectRegistry) Resolve(ctx context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	if r.db == nil || len(ids) == 0 {
		return out, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		if r.dbType == "mysql" {
			placeholders[i] = "?"
		} else {
			placeholders[i] = fmt.Sprintf("$%d", i+1)
		}
		args[i] = id
	}

	query := fmt.Sprintf("SELECT id, label FROM %s WHERE id IN (%s)",
		r.table, strings.Join(placeholders, ", "))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("subject lookup failed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, label string
		if err := rows.Scan(&id, &label); err != nil {
			return nil, err
		}
		out[id] = label
	}
	return out, rows.Err()
}

// Close releases the database connection, if one was opened.
func (r *SQLSubjectRegistry) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}
