// Package schema manages versions of the database schema.
//
// A schema repository is a directory containing sub-directories named with version numbers
// (`1`, `2`, ...). Each of them has `.sql` files, applied in lexical order.
package schema

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	kpool "github.com/opst/drydock/pkg/conn/postgres/pool"
	xe "github.com/opst/drydock/pkg/errors"
)

type Schema interface {
	// Version returns the current schema version in the database. 0 means "no schema".
	Version(ctx context.Context) (int, error)

	// Upgrade applies all versions newer than the current one, in a transaction.
	Upgrade(ctx context.Context) error

	// Context returns a context which is canceled when the schema in the database gets outdated.
	Context(ctx context.Context) (context.Context, context.CancelFunc)
}

type pgSchema struct {
	pool       kpool.Pool
	repository string
}

// New creates a new Schema.
//
// # Args
//
// - pool: connection to the database.
//
// - repository: The path to the schema repository directory.
func New(pool kpool.Pool, repository string) Schema {
	return &pgSchema{pool: pool, repository: repository}
}

type version struct {
	Version int
	Root    string
}

func (v version) apply(ctx context.Context, q kpool.Queryer) error {
	return filepath.WalkDir(v.Root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".sql") {
			return nil
		}

		query, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if _, err := q.Exec(ctx, string(query)); err != nil {
			return xe.WrapWithNote(path, err)
		}
		return nil
	})
}

func (s *pgSchema) Version(ctx context.Context) (int, error) {
	return currentVersion(ctx, s.pool)
}

func currentVersion(ctx context.Context, q kpool.Queryer) (int, error) {
	var v *int
	if err := q.QueryRow(
		ctx, `select max("version") from "schema_version"`,
	).Scan(&v); err != nil {
		if pgerr := new(pgconn.PgError); errors.As(err, &pgerr) && pgerr.Code == pgerrcode.UndefinedTable {
			return 0, nil
		}
		return -1, err
	}
	if v == nil {
		return 0, nil
	}
	return *v, nil
}

func (s *pgSchema) Upgrade(ctx context.Context) error {
	versions, err := s.versions()
	if err != nil {
		return err
	}

	return kpool.InTx(ctx, s.pool, func(tx kpool.Tx) error {
		current, err := currentVersion(ctx, tx)
		if err != nil {
			return err
		}

		for _, v := range versions {
			if v.Version <= current {
				continue
			}
			if err := v.apply(ctx, tx); err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, `delete from "schema_version"`); err != nil {
				return err
			}
			if _, err := tx.Exec(
				ctx, `insert into "schema_version" ("version") values ($1)`, v.Version,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *pgSchema) Context(ctx context.Context) (context.Context, context.CancelFunc) {
	cctx, cancel := context.WithCancelCause(ctx)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		cancel(err)
		return cctx, func() {}
	}
	if err := w.Add(s.repository); err != nil {
		w.Close()
		cancel(err)
		return cctx, func() {}
	}

	checkVersion := func() {
		vs, err := s.versions()
		if err != nil {
			cancel(fmt.Errorf("failed to read schema repository: %w", err))
			return
		}
		current, err := s.Version(ctx)
		if err != nil {
			cancel(fmt.Errorf("failed to get current schema version: %w", err))
			return
		}
		if len(vs) == 0 {
			return
		}
		if latest := vs[len(vs)-1].Version; current < latest {
			cancel(fmt.Errorf(
				"schema is outdated: %d (in db) < %d (in repository)", current, latest,
			))
		}
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-cctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) {
					continue
				}
				checkVersion()
			}
		}
	}()

	checkVersion()
	return cctx, func() { cancel(nil) }
}

// versions lookup the schema repository, sorted by version number.
func (s *pgSchema) versions() ([]version, error) {
	dir, err := os.ReadDir(s.repository)
	if err != nil {
		return nil, err
	}

	vs := make([]version, 0, len(dir))
	for _, entry := range dir {
		if !entry.IsDir() {
			continue
		}
		v, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		vs = append(vs, version{Version: v, Root: filepath.Join(s.repository, entry.Name())})
	}
	slices.SortFunc(vs, func(a, b version) int { return cmp.Compare(a.Version, b.Version) })
	return vs, nil
}

// Null returns Schema which does nothing. Use it when no schema repository is given.
func Null() Schema {
	return nullSchema{}
}

type nullSchema struct{}

func (nullSchema) Upgrade(context.Context) error {
	return errors.New("no schema repository available")
}

func (nullSchema) Version(context.Context) (int, error) {
	return -1, nil
}

func (nullSchema) Context(ctx context.Context) (context.Context, context.CancelFunc) {
	return ctx, func() {}
}
