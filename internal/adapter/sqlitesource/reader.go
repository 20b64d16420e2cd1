// Package sqlitesource reads sample rows from a SQLite table.
package sqlitesource

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/couchcryptid/ocean-contour-service/internal/domain"
	_ "modernc.org/sqlite"
)

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Reader loads every row of one table as raw records.
// It implements pipeline.SampleSource.
type Reader struct {
	path   string
	table  string
	logger *slog.Logger
}

// NewReader creates a reader for table in the database file at path.
func NewReader(path, table string, logger *slog.Logger) (*Reader, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if !identifierRe.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Reader{path: filepath.Clean(path), table: table, logger: logger}, nil
}

// Records opens the database and returns the table's rows. NULL
// cells are omitted from the record so they surface as missing values.
func (r *Reader) Records(ctx context.Context) ([]domain.RawRecord, error) {
	db, err := sql.Open("sqlite", r.path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT * FROM "+r.table)
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}
	for i, c := range cols {
		cols[i] = strings.ToLower(strings.TrimSpace(c))
	}

	var records []domain.RawRecord
	values := make([]sql.NullString, len(cols))
	dest := make([]any, len(cols))
	for i := range values {
		dest[i] = &values[i]
	}

	line := 0
	for rows.Next() {
		line++
		if err := rows.Scan(dest...); err != nil {
			r.logger.Debug("sqlite row skipped", "row", line, "error", err)
			continue
		}
		fields := make(map[string]string, len(cols))
		for i, c := range cols {
			if values[i].Valid {
				fields[c] = values[i].String
			}
		}
		records = append(records, domain.RawRecord{Line: line, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate samples: %w", err)
	}

	r.logger.Info("sqlite samples read", "table", r.table, "rows", len(records))
	return records, nil
}
