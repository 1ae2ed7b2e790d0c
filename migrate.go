package main

import (
	"errors"
	"fmt"

	"ladder/internal/config"
	"ladder/internal/obslog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

func migrateDB(conf *config.Config) (err error) {
	m, err := migrate.New(conf.Database.Migrations, "sqlite3://"+conf.Database.DSN)
	if err != nil {
		return fmt.Errorf("unable to load migrations: %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); err == nil {
			if srcErr != nil {
				err = srcErr
			} else if dbErr != nil {
				err = dbErr
			}
		}
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("unable to migrate: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return err
	}

	obslog.S().Infow("database migrated", "dsn", conf.Database.DSN, "version", version, "dirty", dirty)

	return nil
}
