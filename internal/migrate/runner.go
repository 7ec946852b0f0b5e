package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	migrationsTable = "schema_migrations"
	seedsTable      = "schema_seeds"

	upSuffix   = ".up.sql"
	downSuffix = ".down.sql"
)

// Runner applies SQL migration and seed files stored on disk. Each applied
// file is recorded by name so reruns are no-ops.
type Runner struct {
	db            *sql.DB
	migrationsDir string
	seedsDir      string
}

// NewRunner constructs a Runner over the given directories.
func NewRunner(db *sql.DB, migrationsDir, seedsDir string) *Runner {
	return &Runner{
		db:            db,
		migrationsDir: migrationsDir,
		seedsDir:      seedsDir,
	}
}

// Up applies all pending migrations in lexical order.
func (r *Runner) Up(ctx context.Context) error {
	if err := r.ensureTables(ctx); err != nil {
		return err
	}
	applied, err := r.appliedSet(ctx, migrationsTable)
	if err != nil {
		return err
	}
	files, err := collectSQL(r.migrationsDir, upSuffix)
	if err != nil {
		return err
	}
	for _, f := range files {
		if applied[f.name] {
			continue
		}
		if err := r.execFile(ctx, f.path); err != nil {
			return fmt.Errorf("apply migration %s: %w", f.name, err)
		}
		if err := r.markApplied(ctx, migrationsTable, f.name); err != nil {
			return err
		}
	}
	return nil
}

// Down rolls back the most recently applied migration.
func (r *Runner) Down(ctx context.Context) error {
	if err := r.ensureTables(ctx); err != nil {
		return err
	}
	history, err := r.appliedOrdered(ctx, migrationsTable)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		return errors.New("nothing to roll back")
	}
	last := history[len(history)-1]
	downPath := strings.TrimSuffix(filepath.Join(r.migrationsDir, last), upSuffix) + downSuffix
	if _, err := os.Stat(downPath); err != nil {
		return fmt.Errorf("missing down migration for %s", last)
	}
	if err := r.execFile(ctx, downPath); err != nil {
		return fmt.Errorf("rollback migration %s: %w", last, err)
	}
	_, err = r.db.ExecContext(ctx, fmt.Sprintf(`delete from %s where name = $1`, migrationsTable), last)
	return err
}

// Status returns applied migrations in application order.
func (r *Runner) Status(ctx context.Context) ([]string, error) {
	if err := r.ensureTables(ctx); err != nil {
		return nil, err
	}
	return r.appliedOrdered(ctx, migrationsTable)
}

// Pending lists migrations present on disk but not yet applied.
func (r *Runner) Pending(ctx context.Context) ([]string, error) {
	if err := r.ensureTables(ctx); err != nil {
		return nil, err
	}
	applied, err := r.appliedSet(ctx, migrationsTable)
	if err != nil {
		return nil, err
	}
	files, err := collectSQL(r.migrationsDir, upSuffix)
	if err != nil {
		return nil, err
	}
	var pending []string
	for _, f := range files {
		if !applied[f.name] {
			pending = append(pending, f.name)
		}
	}
	return pending, nil
}

// Seed applies seed files once each.
func (r *Runner) Seed(ctx context.Context) error {
	if err := r.ensureTables(ctx); err != nil {
		return err
	}
	applied, err := r.appliedSet(ctx, seedsTable)
	if err != nil {
		return err
	}
	files, err := collectSQL(r.seedsDir, ".sql")
	if err != nil {
		return err
	}
	for _, f := range files {
		if applied[f.name] {
			continue
		}
		if err := r.execFile(ctx, f.path); err != nil {
			return fmt.Errorf("apply seed %s: %w", f.name, err)
		}
		if err := r.markApplied(ctx, seedsTable, f.name); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) ensureTables(ctx context.Context) error {
	for _, table := range []string{migrationsTable, seedsTable} {
		ddl := fmt.Sprintf(`
			create table if not exists %s (
				name text primary key,
				applied_at timestamptz not null default now()
			);`, table)
		if _, err := r.db.ExecContext(ctx, ddl); err != nil {
			return err
		}
	}
	return nil
}

// execFile runs every statement of one file inside a single transaction.
func (r *Runner) execFile(ctx context.Context, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, stmt := range splitStatements(string(raw)) {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *Runner) markApplied(ctx context.Context, table, name string) error {
	_, err := r.db.ExecContext(ctx,
		fmt.Sprintf(`insert into %s(name, applied_at) values ($1, $2)`, table),
		name, time.Now().UTC())
	return err
}

func (r *Runner) appliedSet(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`select name from %s`, table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out[name] = true
	}
	return out, rows.Err()
}

func (r *Runner) appliedOrdered(ctx context.Context, table string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`select name from %s order by applied_at asc`, table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

type sqlFile struct {
	name string
	path string
}

func collectSQL(dir, suffix string) ([]sqlFile, error) {
	if dir == "" {
		return nil, nil
	}
	var files []sqlFile
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(d.Name(), suffix) {
			files = append(files, sqlFile{name: d.Name(), path: path})
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].name < files[j].name })
	return files, nil
}

// splitStatements splits a file into statements on semicolons outside of
// single-quoted strings. Files must not use dollar-quoted bodies.
func splitStatements(src string) []string {
	var stmts []string
	var current strings.Builder
	var inString bool
	for _, r := range src {
		switch r {
		case '\'':
			current.WriteRune(r)
			inString = !inString
		case ';':
			current.WriteRune(r)
			if !inString {
				stmts = append(stmts, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(r)
		}
	}
	if strings.TrimSpace(current.String()) != "" {
		stmts = append(stmts, current.String())
	}
	return stmts
}
