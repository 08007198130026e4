package dbsync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

const beginDumpFormat = `
--
-- PostgreSQL database dump
--

\connect %s
\set AUTOCOMMIT off

BEGIN;

SET statement_timeout = 0;
SET lock_timeout = 0;
SET client_encoding = 'UTF8';
SET standard_conforming_strings = on;
SET check_function_bodies = false;
SET client_min_messages = warning;

SET search_path = public, pg_catalog;
`

const endDump = `
COMMIT;

--
-- PostgreSQL database dump complete
--
`

const beginTableDumpFormat = `
--
-- Data for Name: %s; Type: TABLE DATA
--

COPY public.%q (%s) FROM STDIN;
`

const endTableDump = `\.
`

// rowSource is the subset of pgx.Rows the insert writer needs. Keeping it
// narrow lets tests feed rows without a server.
type rowSource interface {
	Next() bool
	Values() ([]interface{}, error)
	Err() error
	Close()
}

// dumpTable writes one table's data section. Full tables stream through COPY,
// sampled tables are emitted as a single multi-row INSERT so the row limit
// applies. Sampled tables record the ids of the rows they dumped.
func (s *Syncer) dumpTable(ctx context.Context, out io.Writer, t *Table) error {
	columns, err := s.tableColumns(t)
	if err != nil {
		return err
	}

	if t.Limit == 0 {
		return s.copyTable(ctx, out, t, columns)
	}

	return s.selectAndInsert(ctx, out, t, columns)
}

func (s *Syncer) copyTable(ctx context.Context, out io.Writer, t *Table, columns []Column) error {
	columnList := quotedColumnList(columns)

	if _, err := fmt.Fprintf(out, beginTableDumpFormat, t.Name, t.Name, columnList); err != nil {
		return err
	}

	query := fmt.Sprintf("COPY (SELECT %s FROM public.%q %s) TO STDOUT", columnList, t.Name, t.whereClause())
	if err := s.copyTo(ctx, out, query); err != nil {
		return fmt.Errorf("unable to copy table %s: %w", t.Name, err)
	}

	_, err := io.WriteString(out, endTableDump)

	return err
}

func (s *Syncer) selectAndInsert(ctx context.Context, out io.Writer, t *Table, columns []Column) error {
	columnList := quotedColumnList(columns)

	rows, err := s.query(ctx, fmt.Sprintf("SELECT %s FROM public.%q LIMIT %d", columnList, t.Name, t.Limit))
	if err != nil {
		return fmt.Errorf("unable to select from table %s: %w", t.Name, err)
	}
	defer rows.Close()

	idIndex := t.idIndex()

	var literals []string

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return fmt.Errorf("unable to read row of table %s: %w", t.Name, err)
		}

		literal, err := formatRow(values, columns)
		if err != nil {
			return fmt.Errorf("unable to format row of table %s: %w", t.Name, err)
		}

		literals = append(literals, literal)

		if idIndex < len(values) {
			id, err := formatValue(values[idIndex], columns[idIndex].Type)
			if err != nil {
				return fmt.Errorf("unable to format id of table %s: %w", t.Name, err)
			}

			t.ids = append(t.ids, id)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("unable to read table %s: %w", t.Name, err)
	}

	if len(literals) == 0 {
		return nil
	}

	if _, err := fmt.Fprintf(out, "INSERT INTO %s (%s) VALUES \n", t.Name, columnList); err != nil {
		return err
	}

	if _, err := fmt.Fprintf(out, "%s;\n\n", strings.Join(literals, ",\n")); err != nil {
		return err
	}

	return nil
}

func formatRow(values []interface{}, columns []Column) (string, error) {
	literals := make([]string, len(values))

	for i, value := range values {
		coltype := ""
		if i < len(columns) {
			coltype = columns[i].Type
		}

		literal, err := formatValue(value, coltype)
		if err != nil {
			return "", err
		}

		literals[i] = literal
	}

	return "(" + strings.Join(literals, ",") + ")", nil
}

// formatValue renders one value as a SQL literal based on the column's
// reported type. Textual, geography and json values are quoted, timestamps
// are quoted in ISO form, everything else is written as-is.
func formatValue(value interface{}, coltype string) (string, error) {
	if value == nil {
		return "NULL", nil
	}

	switch {
	case strings.HasPrefix(coltype, "json"):
		encoded, err := json.Marshal(value)
		if err != nil {
			return "", err
		}

		return quoteLiteral(string(encoded)), nil
	case strings.HasPrefix(coltype, "timestamp"):
		t, ok := value.(time.Time)
		if !ok {
			return "", fmt.Errorf("expected time.Time for %s column, got %T", coltype, value)
		}

		return quoteLiteral(t.Format("2006-01-02T15:04:05.999999-07:00")), nil
	case strings.HasPrefix(coltype, "character"),
		strings.HasPrefix(coltype, "text"),
		strings.HasPrefix(coltype, "geography"),
		coltype == "uuid":
		return quoteLiteral(stringValue(value)), nil
	default:
		return fmt.Sprintf("%v", value), nil
	}
}

func stringValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case [16]byte:
		// pgx reports uuid values as raw bytes.
		return fmt.Sprintf("%x-%x-%x-%x-%x", v[0:4], v[4:6], v[6:8], v[8:10], v[10:16])
	default:
		return fmt.Sprintf("%v", v)
	}
}

func quoteLiteral(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}
