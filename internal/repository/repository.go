// Package repository provides methods to work with DB
package repository

import (
	"context"
	"database/sql"
	"log"
	"path/filepath"
	"time"

	"github.com/UnendingLoop/FloorPlanIngest/internal/model"
	"github.com/UnendingLoop/FloorPlanIngest/internal/repository/pgledger"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"
)

// Ledger - запись о факте обработки. Ошибка чтения/записи - это отказ базы,
// сервис НЕ имеет права трактовать ее как "не обработано".
type Ledger interface {
	IsProcessed(ctx context.Context, key model.WorkKey) (bool, error)
	MarkProcessed(ctx context.Context, key model.WorkKey) error
}

// ManifestStore - очередь готовых результатов на выдачу, по одному списку на арендатора
type ManifestStore interface {
	Append(ctx context.Context, m *model.Manifest) error
	Drain(ctx context.Context, tenant string) ([]model.Manifest, error)
	TenantsWithPending(ctx context.Context) ([]string, error)
}

func NewPostgresRepo(dbconn *dbpg.DB) pgledger.PostgresRepo {
	return pgledger.PostgresRepo{DB: dbconn}
}

func ConnectWithRetries(appConfig *config.Config, retryCount int, idleTime time.Duration) *dbpg.DB {
	dbOptions := dbpg.Options{
		MaxOpenConns:    5,
		MaxIdleConns:    5,
		ConnMaxLifetime: 10 * time.Minute,
	}
	dsnLink := appConfig.GetString("POSTGRES_DSN")
	var dbConn *dbpg.DB
	var err error

	for range retryCount {
		dbConn, err = dbpg.New(dsnLink, nil, &dbOptions)
		if err == nil {
			break
		}
		log.Printf("Failed to connect to PGDB: %s\nWaiting %v before next retry...", err, idleTime)
		time.Sleep(idleTime)
	}

	if err != nil {
		log.Fatal("Failed to connect to DB. Exiting the app...")
	}

	return dbConn
}

func MigrateWithRetries(db *sql.DB, migrationsPath string, retries int, idle time.Duration) {
	var err error
	for i := range retries {
		log.Printf("Migration try #%d...", i)
		err = runMigrate(db, migrationsPath)
		if err == nil {
			return
		}
		log.Printf("Migration try #%d was unsuccessful: %v\nWaiting %v before next try...", i, err, idle)
		time.Sleep(idle)
	}
	// стартовать на ненакатанной схеме нельзя
	log.Fatalf("Out of migration retries, last error: %v\nExiting...", err)
}

func runMigrate(db *sql.DB, migrationsPath string) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return err
	}

	absPath, err := filepath.Abs(migrationsPath)
	if err != nil {
		return err
	}

	sourceURL := "file://" + absPath
	log.Println("Running migrations from:", sourceURL)

	m, err := migrate.NewWithDatabaseInstance(
		sourceURL,
		"postgres",
		driver,
	)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}

	log.Println("Database migrations applied successfully")
	return nil
}
