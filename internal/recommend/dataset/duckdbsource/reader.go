// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

// Package duckdbsource reads interactions through DuckDB.
//
// The relation can be a table of a DuckDB database file or any table
// function DuckDB understands, which makes Parquet and CSV files queryable
// without a separate loader:
//
//	r, err := duckdbsource.Open(duckdbsource.Config{
//	    Relation: "read_parquet('events/*.parquet')",
//	})
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//	ds, err := dataset.Load(ctx, r, opts)
package duckdbsource

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	// DuckDB driver
	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tomtom215/cclsrec/internal/recommend/dataset"
)

// Config selects the database and relation to read.
type Config struct {
	// Path is the DuckDB database file. Empty opens an in-memory database.
	Path string `koanf:"path" json:"path"`

	// Relation is a table name or a table function call.
	Relation string `koanf:"relation" json:"relation"`

	// Fields names the user, item and timestamp columns.
	Fields dataset.Fields `koanf:"fields" json:"fields"`

	// TimestampIsTime converts a TIMESTAMP column to epoch seconds.
	TimestampIsTime bool `koanf:"timestamp_is_time" json:"timestamp_is_time"`
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Reader is a dataset.Source backed by DuckDB.
type Reader struct {
	db  *sql.DB
	cfg Config
}

// Open connects to DuckDB and checks that the relation is readable.
func Open(cfg Config) (*Reader, error) {
	if strings.TrimSpace(cfg.Relation) == "" {
		return nil, fmt.Errorf("duckdb relation is required")
	}
	if cfg.Fields == (dataset.Fields{}) {
		cfg.Fields = dataset.DefaultFields()
	}
	db, err := sql.Open("duckdb", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	r := &Reader{db: db, cfg: cfg}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close() //nolint:errcheck // best-effort cleanup on error path
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}
	return r, nil
}

// Close closes the database connection.
func (r *Reader) Close() error {
	return r.db.Close()
}

// relation returns the FROM clause, quoting plain identifiers.
func (r *Reader) relation() string {
	rel := strings.TrimSpace(r.cfg.Relation)
	if !identifier.MatchString(rel) {
		return rel
	}
	parts := strings.Split(rel, ".")
	for i, p := range parts {
		parts[i] = quoteIdent(p)
	}
	return strings.Join(parts, ".")
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Count returns the number of rows in the relation.
func (r *Reader) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+r.relation()).Scan(&count); err != nil {
		return 0, fmt.Errorf("count interactions: %w", err)
	}
	return count, nil
}

// Read returns every interaction with a non-null user, item and timestamp.
func (r *Reader) Read(ctx context.Context) ([]dataset.Interaction, error) {
	f := r.cfg.Fields
	ts := fmt.Sprintf("CAST(%s AS DOUBLE)", quoteIdent(f.Timestamp))
	if r.cfg.TimestampIsTime {
		ts = fmt.Sprintf("CAST(epoch(%s) AS DOUBLE)", quoteIdent(f.Timestamp))
	}
	query := fmt.Sprintf(`
		SELECT
			CAST(%[1]s AS VARCHAR),
			CAST(%[2]s AS VARCHAR),
			%[3]s
		FROM %[4]s
		WHERE %[1]s IS NOT NULL AND %[2]s IS NOT NULL AND %[5]s IS NOT NULL
	`, quoteIdent(f.User), quoteIdent(f.Item), ts, r.relation(), quoteIdent(f.Timestamp))

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query interactions: %w", err)
	}
	defer rows.Close()

	var out []dataset.Interaction
	for rows.Next() {
		var in dataset.Interaction
		if err := rows.Scan(&in.UserID, &in.ItemID, &in.Timestamp); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		out = append(out, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate interactions: %w", err)
	}
	return out, nil
}

var _ dataset.Source = (*Reader)(nil)
