// Package schema upgrades the database schema to the one this build expects.
//
// Schema versions are directories "sql/<version>" embedded in the binary.
// Files of a version are applied in name order, in one transaction with the others.
package schema

import (
	"cmp"
	"context"
	"embed"
	"errors"
	"io/fs"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	kpool "github.com/opst/pht-central/pkg/db/postgres/pool"
	xe "github.com/opst/pht-central/pkg/errors"
)

//go:embed sql
var repository embed.FS

type pgSchema struct {
	pool       kpool.Pool
	repository fs.FS
}

// New creates a new Schema with embedded schema versions.
func New(pool kpool.Pool) *pgSchema {
	sub, err := fs.Sub(repository, "sql")
	if err != nil {
		panic(err) // embedded directory should exist
	}
	return WithRepository(pool, sub)
}

// WithRepository creates a new Schema reading versions from repository.
func WithRepository(pool kpool.Pool, repository fs.FS) *pgSchema {
	return &pgSchema{pool: pool, repository: repository}
}

type Version struct {
	Version int
	Files   []string
}

func (v Version) apply(ctx context.Context, repository fs.FS, conn kpool.Queryer) error {
	for _, f := range v.Files {
		query, err := fs.ReadFile(repository, f)
		if err != nil {
			return err
		}
		if _, err := conn.Exec(ctx, string(query)); err != nil {
			return xe.WrapWithNote(f, err)
		}
	}
	return nil
}

// Version returns the version of the schema in the database. 0 means empty.
func (s *pgSchema) Version(ctx context.Context) (int, error) {
	return version(ctx, s.pool)
}

func version(ctx context.Context, conn kpool.Queryer) (int, error) {
	var v *int
	if err := conn.QueryRow(
		ctx, `SELECT max("version") FROM "schema_version"`,
	).Scan(&v); err != nil {
		if pgerr := new(pgconn.PgError); errors.As(err, &pgerr) {
			if pgerr.Code == pgerrcode.UndefinedTable {
				return 0, nil
			}
		}
		return -1, err
	}
	if v == nil {
		return 0, nil
	}
	return *v, nil
}

// Upgrade applies versions newer than the one in the database.
//
// Either all of them are applied or none.
func (s *pgSchema) Upgrade(ctx context.Context) error {
	versions, err := Versions(s.repository)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	current, err := version(ctx, tx)
	if err != nil {
		return err
	}

	for _, v := range versions {
		if v.Version <= current {
			continue
		}
		if err := v.apply(ctx, s.repository, tx); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM "schema_version"`); err != nil {
			return err
		}
		if _, err := tx.Exec(
			ctx, `INSERT INTO "schema_version" ("version") VALUES ($1)`, v.Version,
		); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// Versions lookup the schema versions from the repository.
//
// # Returns
//
// - []Version: The list of schema versions, sorted by version number.
// Directories not named by number are ignored.
//
// - error
func Versions(repository fs.FS) ([]Version, error) {
	dir, err := fs.ReadDir(repository, ".")
	if err != nil {
		return nil, err
	}

	versions := make([]Version, 0, len(dir))
	for _, entry := range dir {
		if !entry.IsDir() {
			continue
		}
		v, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}

		files, err := fs.ReadDir(repository, entry.Name())
		if err != nil {
			return nil, err
		}
		sqls := []string{}
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), ".sql") {
				continue
			}
			sqls = append(sqls, path.Join(entry.Name(), f.Name()))
		}
		slices.Sort(sqls)
		versions = append(versions, Version{Version: v, Files: sqls})
	}
	slices.SortFunc(versions, func(i, j Version) int { return cmp.Compare(i.Version, j.Version) })

	return versions, nil
}
