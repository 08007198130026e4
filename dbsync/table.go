package dbsync

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
)

const (
	listTablesSQL = `SELECT table_name
FROM information_schema.tables
WHERE table_catalog = ?
AND table_schema = 'public'
AND table_type = 'BASE TABLE'
AND table_name NOT IN (?)`

	getColumnsSQL = `SELECT a.attname AS colname, format_type(a.atttypid, a.atttypmod) AS coltype
FROM pg_catalog.pg_attribute a
WHERE attrelid = $1::regclass
AND attnum > 0
AND attisdropped = FALSE
ORDER BY attnum`

	getFkConstraintsSQL = `SELECT conname, pg_catalog.pg_get_constraintdef(r.oid, true) AS condef
FROM pg_catalog.pg_constraint r
WHERE r.conrelid = $1::regclass AND r.contype = 'f'`
)

// Column is one attribute of a table as reported by the catalog.
type Column struct {
	Name string `db:"colname"`
	Type string `db:"coltype"`
}

// FkConstraint is a foreign key constraint on a table. Constraints are
// dropped before the data load and recreated afterwards so tables can be
// loaded in any order.
type FkConstraint struct {
	Table string
	Name  string `db:"conname"`
	Def   string `db:"condef"`
}

// DropStatement returns the statement removing the constraint.
func (fk FkConstraint) DropStatement() string {
	return fmt.Sprintf("ALTER TABLE ONLY public.%q DROP CONSTRAINT IF EXISTS %s;\n", fk.Table, fk.Name)
}

// CreateStatement returns the statement restoring the constraint.
func (fk FkConstraint) CreateStatement() string {
	return fmt.Sprintf("ALTER TABLE ONLY public.%q ADD CONSTRAINT %s %s;\n", fk.Table, fk.Name, fk.Def)
}

// Table is one source table to dump. A table with a non-zero limit is
// "sampled": only the first limit rows are copied, and the ids of those rows
// restrict any referencing table.
type Table struct {
	Name  string
	Limit int

	// ids of the dumped rows, populated for sampled tables only.
	ids []string

	// foreignTables restricts this table's dump to rows whose
	// <name>_id column is among the given ids.
	foreignTables map[string][]string

	columns     []Column
	constraints []FkConstraint
	loaded      bool
	fkLoaded    bool
}

// Columns returns the table's columns in attribute order, loading them from
// the catalog on first use.
func (t *Table) Columns(db *sqlx.DB) ([]Column, error) {
	if !t.loaded {
		if err := db.Select(&t.columns, getColumnsSQL, t.Name); err != nil {
			return nil, fmt.Errorf("unable to list columns of %s: %w", t.Name, err)
		}

		t.loaded = true
	}

	return t.columns, nil
}

// FkConstraints returns the table's foreign key constraints, loading them
// from the catalog on first use.
func (t *Table) FkConstraints(db *sqlx.DB) ([]FkConstraint, error) {
	if !t.fkLoaded {
		var constraints []FkConstraint
		if err := db.Select(&constraints, getFkConstraintsSQL, t.Name); err != nil {
			return nil, fmt.Errorf("unable to list constraints of %s: %w", t.Name, err)
		}

		for _, c := range constraints {
			c.Table = t.Name
			t.constraints = append(t.constraints, c)
		}

		t.fkLoaded = true
	}

	return t.constraints, nil
}

// AddForeignTable restricts this table's dump to rows referencing the given
// ids of a sampled table.
func (t *Table) AddForeignTable(name string, ids []string) error {
	if t.foreignTables == nil {
		t.foreignTables = make(map[string][]string)
	}

	if _, exists := t.foreignTables[name]; exists {
		return fmt.Errorf("table %s already restricted by %s", t.Name, name)
	}

	t.foreignTables[name] = ids

	return nil
}

// idIndex returns the position of the id column, or the column count when
// there is none, which makes id collection a no-op for such tables.
func (t *Table) idIndex() int {
	for i, c := range t.columns {
		if c.Name == "id" {
			return i
		}
	}

	return len(t.columns)
}

func (t *Table) whereClause() string {
	if len(t.foreignTables) == 0 {
		return ""
	}

	foreignTables := make([]string, 0, len(t.foreignTables))
	for name := range t.foreignTables {
		foreignTables = append(foreignTables, name)
	}

	sort.Strings(foreignTables)

	conditions := make([]string, 0, len(t.foreignTables))

	for _, foreignTable := range foreignTables {
		ids := t.foreignTables[foreignTable]
		// An empty id set must match nothing, not produce "in ()".
		idList := "NULL"
		if len(ids) > 0 {
			idList = strings.Join(ids, ", ")
		}

		conditions = append(conditions, fmt.Sprintf("%s_id in (%s)", foreignTable, idList))
	}

	return "WHERE " + strings.Join(conditions, " AND ")
}

func quotedColumnList(columns []Column) string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = fmt.Sprintf("%q", c.Name)
	}

	return strings.Join(names, ",")
}

// listTables returns every public base table of the source database except
// the skipped ones.
func listTables(db *sqlx.DB, dbname string, skipped []string) ([]string, error) {
	// The IN clause must never be empty, and a skipped table should not be
	// reported even when it does not exist.
	if len(skipped) == 0 {
		skipped = []string{""}
	}

	query, args, err := sqlx.In(listTablesSQL, dbname, skipped)
	if err != nil {
		return nil, err
	}

	var names []string
	if err := db.Select(&names, db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("unable to list tables: %w", err)
	}

	return names, nil
}
