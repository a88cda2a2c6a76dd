package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	auditdomain "github.com/smallbiznis/docledger/internal/audit/domain"
	directorydomain "github.com/smallbiznis/docledger/internal/directory/domain"
	documentdomain "github.com/smallbiznis/docledger/internal/document/domain"
	numberingdomain "github.com/smallbiznis/docledger/internal/numbering/domain"
	officialcopydomain "github.com/smallbiznis/docledger/internal/officialcopy/domain"
	paymentdomain "github.com/smallbiznis/docledger/internal/payment/domain"
	"gorm.io/gorm"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Models lists every table the engine owns, in dependency order.
func Models() []any {
	return []any{
		&directorydomain.Client{},
		&directorydomain.Project{},
		&directorydomain.TaxRate{},
		&documentdomain.Document{},
		&documentdomain.LineItem{},
		&paymentdomain.Payment{},
		&numberingdomain.NumberSequence{},
		&officialcopydomain.Artifact{},
		&officialcopydomain.OfficialCopy{},
		&auditdomain.AuditLog{},
	}
}

// Run applies the versioned SQL migrations on postgres. Other dialects are
// local setups and get the schema from the models.
func Run(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	if conn.Dialector.Name() != "postgres" {
		if err := conn.AutoMigrate(Models()...); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return RunMigrations(sqlDB)
}

// RunMigrations applies the embedded SQL migrations to a postgres database.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Closing the migrator would close the shared *sql.DB.

	return nil
}
