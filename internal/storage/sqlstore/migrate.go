package sqlstore

import (
	"context"
	"embed"
	"io/fs"

	pkgerrors "github.com/pkg/errors"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/postgres/*.sql migrations/mysql/*.sql
var migrations embed.FS

// MigrationsFS returns the migration files of dialect.
func MigrationsFS(d Dialect) (fs.FS, error) {
	return fs.Sub(migrations, "migrations/"+string(d))
}

// Migrate applies pending schema migrations and returns the versions applied.
func (s *Store) Migrate(ctx context.Context) ([]int64, error) {
	fsys, err := MigrationsFS(s.dialect)
	if err != nil {
		return nil, err
	}
	gd := goose.DialectPostgres
	if s.dialect == DialectMySQL {
		gd = goose.DialectMySQL
	}
	p, err := goose.NewProvider(gd, s.db, fsys)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to build migration provider")
	}
	results, err := p.Up(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to apply migrations")
	}
	applied := make([]int64, 0, len(results))
	for _, r := range results {
		applied = append(applied, r.Source.Version)
	}
	return applied, nil
}
