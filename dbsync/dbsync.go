// Package dbsync copies a source PostgreSQL database into the local test
// database. The schema travels through pg_dump and psql; data is written as a
// SQL dump with full tables streamed via COPY and sampled tables cut down to
// a row limit, with foreign key constraints dropped up front and restored at
// the end so load order never matters.
package dbsync

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"

	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/jfyne/pgbox/internal/log"
)

// Syncer holds the connections to the source database and produces the dump.
type Syncer struct {
	cfg     Config
	catalog *sqlx.DB
	conn    *pgx.Conn

	// Indirected for tests; when nil the real source database is used.
	copyTo      func(ctx context.Context, out io.Writer, query string) error
	query       func(ctx context.Context, query string) (rowSource, error)
	schemaSync  func(ctx context.Context) error
	dbName      func(ctx context.Context) (string, error)
	tableNames  func(dbname string, excluded []string) ([]string, error)
	columns     func(t *Table) ([]Column, error)
	constraints func(t *Table) ([]FkConstraint, error)
}

// New connects to the source database described by the config.
func New(ctx context.Context, cfg Config) (*Syncer, error) {
	catalog, err := sqlx.ConnectContext(ctx, "pgx", cfg.SourceDB)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to source database: %w", err)
	}

	conn, err := pgx.Connect(ctx, cfg.SourceDB)
	if err != nil {
		_ = catalog.Close()
		return nil, fmt.Errorf("unable to connect to source database: %w", err)
	}

	s := &Syncer{
		cfg:     cfg,
		catalog: catalog,
		conn:    conn,
	}

	s.copyTo = func(ctx context.Context, out io.Writer, query string) error {
		_, err := s.conn.PgConn().CopyTo(ctx, out, query)
		return err
	}

	s.query = func(ctx context.Context, query string) (rowSource, error) {
		rows, err := s.conn.Query(ctx, query)
		if err != nil {
			return nil, err
		}
		return rows, nil
	}

	return s, nil
}

// Close releases the source database connections.
func (s *Syncer) Close(ctx context.Context) error {
	err := s.conn.Close(ctx)

	if closeErr := s.catalog.Close(); closeErr != nil && err == nil {
		err = closeErr
	}

	return err
}

// Run syncs the schema into the target database and writes the data dump to
// out. The dump connects to the target's database name and loads inside one
// transaction.
func (s *Syncer) Run(ctx context.Context, out io.Writer) error {
	log.Logger.Info("syncing schema into target database")

	if err := s.syncSchemaStep(ctx); err != nil {
		return err
	}

	dbname, err := s.sourceDBName(ctx)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(out, beginDumpFormat, dbname); err != nil {
		return err
	}

	fullTables, sampledTables, err := s.collectTables(dbname)
	if err != nil {
		return err
	}

	allTables := append(append([]*Table{}, fullTables...), sampledTables...)

	for _, t := range allTables {
		if err := s.writeFkDrops(out, t); err != nil {
			return err
		}
	}

	for _, t := range sampledTables {
		log.Logger.Info("dumping sampled table %s (limit %d)", t.Name, t.Limit)

		if err := s.dumpTable(ctx, out, t); err != nil {
			return err
		}
	}

	if err := s.propagateSampledIDs(sampledTables, fullTables); err != nil {
		return err
	}

	for _, t := range fullTables {
		log.Logger.Info("dumping table %s", t.Name)

		if err := s.dumpTable(ctx, out, t); err != nil {
			return err
		}
	}

	for _, t := range allTables {
		if err := s.writeFkCreates(out, t); err != nil {
			return err
		}
	}

	_, err = io.WriteString(out, endDump)

	return err
}

// collectTables splits the source's public tables into fully copied and
// sampled ones. Skipped tables are left out entirely; sampled tables are
// excluded from the full list and given the row limit.
func (s *Syncer) collectTables(dbname string) ([]*Table, []*Table, error) {
	excluded := append(append([]string{}, s.cfg.SkippedTables...), s.cfg.SampledTables...)

	names, err := s.sourceTableNames(dbname, excluded)
	if err != nil {
		return nil, nil, err
	}

	fullTables := make([]*Table, 0, len(names))
	for _, name := range names {
		fullTables = append(fullTables, &Table{Name: name})
	}

	sampledTables := make([]*Table, 0, len(s.cfg.SampledTables))
	for _, name := range s.cfg.SampledTables {
		sampledTables = append(sampledTables, &Table{Name: name, Limit: s.cfg.RowLimit})
	}

	return fullTables, sampledTables, nil
}

// propagateSampledIDs finds tables holding a foreign key column to a sampled
// table and restricts their dump to the rows that were actually sampled.
func (s *Syncer) propagateSampledIDs(sampledTables, fullTables []*Table) error {
	for _, sampled := range sampledTables {
		fkeyColumn := sampled.Name + "_id"

		for _, t := range fullTables {
			columns, err := s.tableColumns(t)
			if err != nil {
				return err
			}

			for _, c := range columns {
				if c.Name == fkeyColumn {
					if err := t.AddForeignTable(sampled.Name, sampled.ids); err != nil {
						return err
					}

					break
				}
			}
		}
	}

	return nil
}

// Per-step helpers falling back from the test indirection fields to the real
// source database.

func (s *Syncer) syncSchemaStep(ctx context.Context) error {
	if s.schemaSync != nil {
		return s.schemaSync(ctx)
	}

	return syncSchema(ctx, s.cfg.SourceDB, s.cfg.TargetDB)
}

func (s *Syncer) sourceDBName(ctx context.Context) (string, error) {
	if s.dbName != nil {
		return s.dbName(ctx)
	}

	var dbname string
	if err := s.catalog.GetContext(ctx, &dbname, "SELECT current_database()"); err != nil {
		return "", fmt.Errorf("unable to determine source database name: %w", err)
	}

	return dbname, nil
}

func (s *Syncer) sourceTableNames(dbname string, excluded []string) ([]string, error) {
	if s.tableNames != nil {
		return s.tableNames(dbname, excluded)
	}

	return listTables(s.catalog, dbname, excluded)
}

func (s *Syncer) tableColumns(t *Table) ([]Column, error) {
	if s.columns != nil {
		return s.columns(t)
	}

	return t.Columns(s.catalog)
}

func (s *Syncer) tableConstraints(t *Table) ([]FkConstraint, error) {
	if s.constraints != nil {
		return s.constraints(t)
	}

	return t.FkConstraints(s.catalog)
}

func (s *Syncer) writeFkDrops(out io.Writer, t *Table) error {
	constraints, err := s.tableConstraints(t)
	if err != nil {
		return err
	}

	for _, fk := range constraints {
		if _, err := io.WriteString(out, fk.DropStatement()); err != nil {
			return err
		}
	}

	_, err = io.WriteString(out, "\n")

	return err
}

func (s *Syncer) writeFkCreates(out io.Writer, t *Table) error {
	constraints, err := s.tableConstraints(t)
	if err != nil {
		return err
	}

	for _, fk := range constraints {
		if _, err := io.WriteString(out, fk.CreateStatement()); err != nil {
			return err
		}
	}

	_, err = io.WriteString(out, "\n")

	return err
}

// syncSchema recreates the source schema in the target database by piping
// pg_dump straight into psql.
func syncSchema(ctx context.Context, sourceDB, targetDB string) error {
	dump := exec.CommandContext(ctx, "pg_dump",
		"--clean", "--create", "--no-owner", "--no-acl",
		"--format=p", "--schema-only", sourceDB)
	load := exec.CommandContext(ctx, "psql", "-q", targetDB)

	var stderr bytes.Buffer

	dump.Stderr = &stderr
	load.Stderr = &stderr

	pipe, err := dump.StdoutPipe()
	if err != nil {
		return err
	}

	load.Stdin = pipe

	if err := load.Start(); err != nil {
		return fmt.Errorf("unable to start psql: %w", err)
	}

	if err := dump.Run(); err != nil {
		_ = load.Wait()
		return fmt.Errorf("pg_dump failed: %w\n%s", err, stderr.String())
	}

	if err := load.Wait(); err != nil {
		return fmt.Errorf("psql failed: %w\n%s", err, stderr.String())
	}

	return nil
}
