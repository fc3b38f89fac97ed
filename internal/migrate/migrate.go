// AngelaMos | 2026
// migrate.go

package migrate

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed sql/*.sql
var files embed.FS

const dir = "sql"

// Runner applies the embedded DDL to a PostgreSQL database.
type Runner struct {
	m      *migrate.Migrate
	logger *slog.Logger
}

func New(db *sql.DB, logger *slog.Logger) (*Runner, error) {
	src, err := iofs.New(files, dir)
	if err != nil {
		return nil, fmt.Errorf("open migration source: %w", err)
	}

	driver, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	if err != nil {
		return nil, fmt.Errorf("open migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	m.Log = &logAdapter{logger: logger}

	return &Runner{m: m, logger: logger}, nil
}

// Up applies every pending migration. An up-to-date database is not an
// error.
func (r *Runner) Up() error {
	return r.run("up", r.m.Up)
}

// Down reverts every migration.
func (r *Runner) Down() error {
	return r.run("down", r.m.Down)
}

// Steps applies n migrations, or reverts -n when n is negative.
func (r *Runner) Steps(n int) error {
	return r.run("steps "+strconv.Itoa(n), func() error { return r.m.Steps(n) })
}

func (r *Runner) Version() (uint, bool, error) {
	v, dirty, err := r.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read version: %w", err)
	}
	return v, dirty, nil
}

// Force sets the recorded version without running anything, clearing the
// dirty flag after a failed run.
func (r *Runner) Force(version int) error {
	if err := r.m.Force(version); err != nil {
		return fmt.Errorf("force version %d: %w", version, err)
	}
	r.logger.Warn("migration version forced", "version", version)
	return nil
}

func (r *Runner) Close() error {
	srcErr, dbErr := r.m.Close()
	return errors.Join(srcErr, dbErr)
}

func (r *Runner) run(op string, fn func() error) error {
	err := fn()
	if errors.Is(err, migrate.ErrNoChange) {
		r.logger.Info("migrations already current", "op", op)
		return nil
	}
	if err != nil {
		return fmt.Errorf("migrate %s: %w", op, err)
	}

	if v, dirty, verr := r.Version(); verr == nil {
		r.logger.Info("migrations applied", "op", op, "version", v, "dirty", dirty)
	}
	return nil
}

type logAdapter struct {
	logger *slog.Logger
}

func (l *logAdapter) Printf(format string, v ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l *logAdapter) Verbose() bool {
	return false
}

// File is one embedded migration script.
type File struct {
	Version   uint
	Name      string
	Direction string
	SQL       string
}

// Files lists the embedded scripts ordered by version, up before down.
func Files() ([]File, error) {
	entries, err := fs.ReadDir(files, dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	out := make([]File, 0, len(entries))
	for _, e := range entries {
		f, err := parseName(e.Name())
		if err != nil {
			return nil, err
		}

		body, err := fs.ReadFile(files, dir+"/"+e.Name())
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		f.SQL = string(body)
		out = append(out, f)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Version != out[j].Version {
			return out[i].Version < out[j].Version
		}
		return out[i].Direction == "up"
	})
	return out, nil
}

func parseName(name string) (File, error) {
	base, ok := strings.CutSuffix(name, ".sql")
	if !ok {
		return File{}, fmt.Errorf("migration %s: not an .sql file", name)
	}

	base, direction, ok := cutLast(base, ".")
	if !ok || (direction != "up" && direction != "down") {
		return File{}, fmt.Errorf("migration %s: missing up/down suffix", name)
	}

	num, label, ok := strings.Cut(base, "_")
	if !ok {
		return File{}, fmt.Errorf("migration %s: missing name", name)
	}

	v, err := strconv.ParseUint(num, 10, 32)
	if err != nil {
		return File{}, fmt.Errorf("migration %s: version: %w", name, err)
	}

	return File{Version: uint(v), Name: label, Direction: direction}, nil
}

func cutLast(s, sep string) (string, string, bool) {
	i := strings.LastIndex(s, sep)
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+len(sep):], true
}
