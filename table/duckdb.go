// Copyright 2025 The GeoMDC Authors
// SPDX-License-Identifier: Apache-2.0

package table

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/geomdc/geomdc/consensus"
)

// stagingTable receives the per-record results before they are joined back
// to the source rows.
const stagingTable = "geomdc_staging"

// SchemaColumn is a column of a DuckDB table.
type SchemaColumn struct {
	Name string
	Type string
}

// Store reads datasets from and writes results to a DuckDB database.
type Store struct {
	db *sql.DB

	// Logf receives warnings about unusable cells. Defaults to log.Printf.
	Logf func(format string, args ...any)
}

// NewStore wraps an open DuckDB connection.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, Logf: log.Printf}
}

// DB returns the underlying database connection.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Import materializes a CSV or Parquet file as a table, replacing any table
// of the same name.
func (s *Store) Import(path, table string) error {
	var reader string

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".tsv", ".txt":
		reader = "read_csv_auto"
	case ".parquet":
		reader = "read_parquet"
	default:
		return consensus.InvalidInput("unsupported input format %q", filepath.Ext(path))
	}

	query := fmt.Sprintf(`CREATE OR REPLACE TABLE %s AS SELECT * FROM %s(%s)`,
		quoteIdent(table), reader, quoteLiteral(path))
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("import %s: %w", path, err)
	}

	return nil
}

// Schema returns the columns of a table of the current schema in declaration
// order. Table names match case-insensitively, as DuckDB identifiers do.
func (s *Store) Schema(table string) ([]SchemaColumn, error) {
	rows, err := s.db.Query(`
		SELECT column_name, data_type
		FROM information_schema.columns
		WHERE lower(table_name) = lower(?)
			AND table_catalog = current_database()
			AND table_schema = current_schema()
		ORDER BY ordinal_position
	`, table)
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", table, err)
	}
	defer rows.Close()

	var cols []SchemaColumn

	for rows.Next() {
		var c SchemaColumn
		if err := rows.Scan(&c.Name, &c.Type); err != nil {
			return nil, err
		}

		cols = append(cols, c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(cols) == 0 {
		return nil, consensus.InvalidInput("table %q not found", table)
	}

	return cols, nil
}

// checkColumns fails when a mapped column is absent or an address column is
// not textual. Names compare case-insensitively.
func checkColumns(schema []SchemaColumn, m ColumnMapping) error {
	types := make(map[string]string, len(schema))
	for _, c := range schema {
		types[strings.ToLower(c.Name)] = c.Type
	}

	for _, col := range m.Columns() {
		if _, ok := types[strings.ToLower(col)]; !ok {
			return consensus.InvalidInput("column %q not found", col)
		}
	}

	for _, col := range m.AddressColumns() {
		if t := types[strings.ToLower(col)]; t != "VARCHAR" {
			return consensus.InvalidInput("address column %q must be text, found %s", col, t)
		}
	}

	return nil
}

// LoadRecords reads every row of a table. The row id becomes the record
// index.
func (s *Store) LoadRecords(table string, m ColumnMapping) ([]consensus.Record, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	schema, err := s.Schema(table)
	if err != nil {
		return nil, err
	}

	if err := checkColumns(schema, m); err != nil {
		return nil, err
	}

	cols := m.Columns()
	exprs := make([]string, len(cols))

	for i, c := range cols {
		exprs[i] = fmt.Sprintf("CAST(%s AS VARCHAR)", quoteIdent(c))
	}

	query := fmt.Sprintf(`SELECT rowid, %s FROM %s ORDER BY rowid`,
		strings.Join(exprs, ", "), quoteIdent(table))

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	defer rows.Close()

	var (
		records []consensus.Record
		stats   = coordStats{}
		cells   = make([]sql.NullString, len(cols))
		dest    = make([]any, len(cols)+1)
		rowID   int64
	)

	dest[0] = &rowID
	for i := range cells {
		dest[i+1] = &cells[i]
	}

	n := consensus.NumServices

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}

		r := consensus.Record{Index: int(rowID), InputAddress: cells[0].String}
		for i := range n {
			r.Candidates[i] = consensus.Candidate{
				Address: cells[1+i].String,
				Point: stats.point(
					m.Latitudes[i], m.Longitudes[i],
					cells[1+n+i].String, cells[1+2*n+i].String,
				),
			}
		}

		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	stats.log(s.Logf)

	return records, nil
}

// SaveResults writes the source rows followed by the output columns into
// dest, replacing it. Source columns that share a name with an output column
// are dropped, ignoring case, so a results table can be processed again.
func (s *Store) SaveResults(source, dest string, results []consensus.Result, opts consensus.Options) error {
	if source == dest {
		return consensus.InvalidInput("results table must differ from the source table %q", source)
	}

	schema, err := s.Schema(source)
	if err != nil {
		return err
	}

	defer func() {
		if _, err := s.db.Exec(`DROP TABLE IF EXISTS ` + stagingTable); err != nil {
			s.Logf("drop %s: %v", stagingTable, err)
		}
	}()

	outCols := OutputColumns(opts)
	if err := s.stage(outCols, results, opts); err != nil {
		return err
	}

	replaced := make(map[string]bool, len(outCols))
	for _, c := range outCols {
		replaced[strings.ToLower(c.Name)] = true
	}

	var sel []string

	for _, c := range schema {
		if !replaced[strings.ToLower(c.Name)] {
			sel = append(sel, "s."+quoteIdent(c.Name))
		}
	}

	for _, c := range outCols {
		sel = append(sel, "r."+quoteIdent(c.Name))
	}

	query := fmt.Sprintf(`
		CREATE OR REPLACE TABLE %s AS
		SELECT %s
		FROM %s s
		LEFT JOIN %s r ON s.rowid = r.row_idx
		ORDER BY s.rowid
	`, quoteIdent(dest), strings.Join(sel, ", "), quoteIdent(source), stagingTable)

	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}

	return nil
}

func (s *Store) stage(cols []Column, results []consensus.Result, opts consensus.Options) error {
	defs := make([]string, 0, len(cols)+1)
	defs = append(defs, "row_idx BIGINT")

	for _, c := range cols {
		defs = append(defs, quoteIdent(c.Name)+" "+c.Type)
	}

	ddl := fmt.Sprintf(`CREATE OR REPLACE TABLE %s (%s)`, stagingTable, strings.Join(defs, ", "))
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("create %s: %w", stagingTable, err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(defs)), ", ")

	stmt, err := tx.Prepare(fmt.Sprintf(`INSERT INTO %s VALUES (%s)`, stagingTable, placeholders))
	if err != nil {
		if rErr := tx.Rollback(); rErr != nil {
			err = errors.Join(err, rErr)
		}

		return err
	}
	defer stmt.Close()

	for i := range results {
		args := append([]any{int64(results[i].Index)}, OutputValues(&results[i], opts)...)

		if _, err := stmt.Exec(args...); err != nil {
			if rErr := tx.Rollback(); rErr != nil {
				err = errors.Join(err, rErr)
			}

			return fmt.Errorf("insert record %d: %w", results[i].Index, err)
		}
	}

	return tx.Commit()
}

// SaveRanking writes the dataset-wide totals and ranks, replacing the table.
func (s *Store) SaveRanking(table string, ranking consensus.Ranking) error {
	_, err := s.db.Exec(fmt.Sprintf(`
		CREATE OR REPLACE TABLE %s (
			service INTEGER NOT NULL,
			mdc_total INTEGER NOT NULL,
			service_rank INTEGER NOT NULL
		)
	`, quoteIdent(table)))
	if err != nil {
		return fmt.Errorf("create %s: %w", table, err)
	}

	for i, svc := range consensus.Services {
		_, err := s.db.Exec(fmt.Sprintf(`INSERT INTO %s VALUES (?, ?, ?)`, quoteIdent(table)),
			int(svc), ranking.Totals[i], int(ranking.Rank(svc)))
		if err != nil {
			return fmt.Errorf("insert %s: %w", table, err)
		}
	}

	return nil
}

// Export copies a table to a CSV or Parquet file chosen by extension.
func (s *Store) Export(table, path string) error {
	var format string

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		format = "FORMAT CSV, HEADER"
	case ".tsv":
		format = "FORMAT CSV, HEADER, DELIMITER '\t'"
	case ".parquet":
		format = "FORMAT PARQUET"
	default:
		return consensus.InvalidInput("unsupported output format %q", filepath.Ext(path))
	}

	query := fmt.Sprintf(`COPY (SELECT * FROM %s) TO %s (%s)`, quoteIdent(table), quoteLiteral(path), format)
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("export %s: %w", path, err)
	}

	return nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteLiteral(val string) string {
	return `'` + strings.ReplaceAll(val, `'`, `''`) + `'`
}
