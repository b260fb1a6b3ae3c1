// Package integration holds end-to-end tests for the stock movement
// workflow. Tests run against a real PostgreSQL instance started through
// testcontainers, with the production migrations applied.
package integration

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	mpg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	sharedContainer    testcontainers.Container
	sharedContainerDSN string
	sharedContainerMu  sync.Mutex
)

// TestDB is a migrated PostgreSQL database for one test.
type TestDB struct {
	DB        *gorm.DB
	SqlDB     *sql.DB
	Container testcontainers.Container
	DSN       string
	t         *testing.T
}

// NewTestDB starts a dedicated PostgreSQL container, applies all
// migrations, and tears everything down when the test finishes. Use it
// for tests that mutate state heavily; prefer NewSharedTestDB otherwise.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	container, dsn := startPostgres(t, "gestock_test")

	db, sqlDB := openGorm(t, dsn)
	applyMigrations(t, sqlDB)

	tdb := &TestDB{DB: db, SqlDB: sqlDB, Container: container, DSN: dsn, t: t}
	t.Cleanup(tdb.Close)
	return tdb
}

// NewSharedTestDB reuses a package-wide container, starting it and
// migrating once on first use. Callers get their own connection; the
// container itself is torn down via CleanupSharedContainer in TestMain.
func NewSharedTestDB(t *testing.T) *TestDB {
	t.Helper()

	sharedContainerMu.Lock()
	defer sharedContainerMu.Unlock()

	if sharedContainer == nil {
		container, dsn := startPostgres(t, "gestock_shared_test")

		_, sqlDB := openGorm(t, dsn)
		applyMigrations(t, sqlDB)
		_ = sqlDB.Close()

		sharedContainer = container
		sharedContainerDSN = dsn
	}

	db, sqlDB := openGorm(t, sharedContainerDSN)
	tdb := &TestDB{DB: db, SqlDB: sqlDB, Container: sharedContainer, DSN: sharedContainerDSN, t: t}

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return tdb
}

// Close closes the connection and, for dedicated containers, terminates
// the container.
func (tdb *TestDB) Close() {
	if tdb.SqlDB != nil {
		_ = tdb.SqlDB.Close()
	}
	if tdb.Container != nil && tdb.Container != sharedContainer {
		if err := tdb.Container.Terminate(context.Background()); err != nil {
			tdb.t.Logf("terminate container: %v", err)
		}
	}
}

// CleanTables truncates every table except schema_migrations. Shared-DB
// tests call this between scenarios instead of re-migrating.
func (tdb *TestDB) CleanTables() {
	tdb.t.Helper()

	var tables []string
	err := tdb.DB.Raw(`
		SELECT tablename FROM pg_tables
		WHERE schemaname = 'public'
		AND tablename != 'schema_migrations'
	`).Scan(&tables).Error
	require.NoError(tdb.t, err, "list tables")

	for _, table := range tables {
		if err := tdb.DB.Exec(fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)).Error; err != nil {
			tdb.t.Logf("truncate %s: %v", table, err)
		}
	}
}

// WithTransaction runs fn inside a transaction that is always rolled
// back, isolating the test without truncation.
func (tdb *TestDB) WithTransaction(fn func(tx *gorm.DB)) {
	tdb.t.Helper()

	tx := tdb.DB.Begin()
	require.NoError(tdb.t, tx.Error, "begin transaction")
	defer tx.Rollback()

	fn(tx)
}

// CleanupSharedContainer terminates the shared container. Call from
// TestMain after m.Run when the package uses NewSharedTestDB.
func CleanupSharedContainer() {
	sharedContainerMu.Lock()
	defer sharedContainerMu.Unlock()

	if sharedContainer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = sharedContainer.Terminate(ctx)
	sharedContainer = nil
	sharedContainerDSN = ""
}

func startPostgres(t *testing.T, dbName string) (testcontainers.Container, string) {
	t.Helper()

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase(dbName),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("admin123"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "start PostgreSQL container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "container connection string")

	return container, dsn
}

func openGorm(t *testing.T, dsn string) (*gorm.DB, *sql.DB) {
	t.Helper()

	logLevel := logger.Silent
	if os.Getenv("TEST_DB_DEBUG") != "" {
		logLevel = logger.Info
	}

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	require.NoError(t, err, "connect to test database")

	sqlDB, err := db.DB()
	require.NoError(t, err, "unwrap sql.DB")

	sqlDB.SetMaxOpenConns(5)
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	return db, sqlDB
}

func applyMigrations(t *testing.T, sqlDB *sql.DB) {
	t.Helper()

	migrationsPath := findMigrationsPath()
	require.NotEmpty(t, migrationsPath, "migrations directory not found")

	driver, err := mpg.WithInstance(sqlDB, &mpg.Config{})
	require.NoError(t, err, "create migration driver")

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "postgres", driver)
	require.NoError(t, err, "create migrate instance")

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		require.NoError(t, err, "apply migrations")
	}
}

// findMigrationsPath walks up from this file looking for the migrations
// directory, falling back to paths relative to the working directory.
func findMigrationsPath() string {
	_, filename, _, ok := runtime.Caller(0)
	if ok {
		dir := filepath.Dir(filename)
		for range 5 {
			candidate := filepath.Join(dir, "migrations")
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
			dir = filepath.Dir(dir)
		}
	}

	if wd, err := os.Getwd(); err == nil {
		for _, p := range []string{
			filepath.Join(wd, "migrations"),
			filepath.Join(wd, "..", "..", "migrations"),
		} {
			if _, err := os.Stat(p); err == nil {
				return p
			}
		}
	}
	return ""
}

// CreateTestStockLot inserts a stock lot for a product held by a service.
// Quantities are seeded directly so workflow tests can exercise inventory
// selection and transfer without going through a receiving flow.
func (tdb *TestDB) CreateTestStockLot(lotID, tenantID, productID, serviceID fmt.Stringer, quantity int64) {
	tdb.t.Helper()

	batch := fmt.Sprintf("BATCH_%s", lotID.String()[:8])

	err := tdb.DB.Exec(`
		INSERT INTO stock_lots (id, tenant_id, version, product_id, service_id, quantity, total_units, batch_number, created_at, updated_at)
		VALUES (?, ?, 1, ?, ?, ?, ?, ?, NOW(), NOW())
		ON CONFLICT (id) DO NOTHING
	`, lotID.String(), tenantID.String(), productID.String(), serviceID.String(), quantity, quantity, batch).Error
	require.NoError(tdb.t, err, "seed stock lot")
}

// LotQuantity returns the current quantity of a stock lot.
func (tdb *TestDB) LotQuantity(lotID fmt.Stringer) decimal.Decimal {
	tdb.t.Helper()

	var quantity decimal.Decimal
	err := tdb.DB.Raw(`SELECT quantity FROM stock_lots WHERE id = ?`, lotID.String()).Row().Scan(&quantity)
	require.NoError(tdb.t, err, "read lot quantity")
	return quantity
}

// SetLotQuantity overwrites a lot's quantity directly, bypassing the domain.
// Used to simulate stock changing underneath an in-flight workflow.
func (tdb *TestDB) SetLotQuantity(lotID fmt.Stringer, quantity int64) {
	tdb.t.Helper()

	err := tdb.DB.Exec(`UPDATE stock_lots SET quantity = ?, updated_at = NOW() WHERE id = ?`,
		quantity, lotID.String()).Error
	require.NoError(tdb.t, err, "set lot quantity")
}

// CountServiceLots returns how many stock lots a service holds for a product.
func (tdb *TestDB) CountServiceLots(tenantID, serviceID, productID fmt.Stringer) int64 {
	tdb.t.Helper()

	var count int64
	err := tdb.DB.Raw(`
		SELECT COUNT(*) FROM stock_lots
		WHERE tenant_id = ? AND service_id = ? AND product_id = ?
	`, tenantID.String(), serviceID.String(), productID.String()).Scan(&count).Error
	require.NoError(tdb.t, err, "count service lots")
	return count
}

// ServiceProductQuantity sums a service's stock of one product across lots.
func (tdb *TestDB) ServiceProductQuantity(tenantID, serviceID, productID fmt.Stringer) decimal.Decimal {
	tdb.t.Helper()

	var quantity decimal.Decimal
	err := tdb.DB.Raw(`
		SELECT COALESCE(SUM(quantity), 0) FROM stock_lots
		WHERE tenant_id = ? AND service_id = ? AND product_id = ?
	`, tenantID.String(), serviceID.String(), productID.String()).Row().Scan(&quantity)
	require.NoError(tdb.t, err, "sum service product quantity")
	return quantity
}
