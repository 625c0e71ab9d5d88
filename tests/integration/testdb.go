//go:build integration

// Package integration runs the repositories and services against a real
// PostgreSQL started with testcontainers.
package integration

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/velaro/ordersync/internal/infrastructure/migration"
	"github.com/velaro/ordersync/internal/infrastructure/persistence/models"
	"github.com/velaro/ordersync/tests/testutil"
)

var (
	// Shared container for all tests in the package
	sharedContainer    testcontainers.Container
	sharedContainerMu  sync.Mutex
	sharedContainerDSN string
)

// TestDB represents a test database connection
type TestDB struct {
	DB    *gorm.DB
	SqlDB *sql.DB
	DSN   string
	t     *testing.T
}

// NewTestDB returns a connection to the shared PostgreSQL container with an
// empty, migrated schema. The container is started on first use.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	sharedContainerMu.Lock()
	defer sharedContainerMu.Unlock()

	ctx := context.Background()
	if sharedContainer == nil {
		container, err := tcpostgres.Run(ctx,
			"postgres:16-alpine",
			tcpostgres.WithDatabase("ordersync_test"),
			tcpostgres.WithUsername("postgres"),
			tcpostgres.WithPassword("ordersync"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second)),
		)
		require.NoError(t, err, "Failed to start PostgreSQL container")

		dsn, err := container.ConnectionString(ctx, "sslmode=disable")
		require.NoError(t, err, "Failed to get connection string")

		sharedContainer = container
		sharedContainerDSN = dsn

		_, sqlDB := connectToDatabase(t, dsn)
		runMigrations(t, sqlDB)
		sqlDB.Close()
	}

	db, sqlDB := connectToDatabase(t, sharedContainerDSN)
	testDB := &TestDB{DB: db, SqlDB: sqlDB, DSN: sharedContainerDSN, t: t}
	testDB.CleanTables()

	t.Cleanup(func() {
		sqlDB.Close()
	})
	return testDB
}

// TestMain terminates the shared container after the package has run
func TestMain(m *testing.M) {
	code := m.Run()
	CleanupSharedContainer()
	os.Exit(code)
}

// CleanTables truncates every application table
func (tdb *TestDB) CleanTables() {
	tdb.t.Helper()

	var tables []string
	err := tdb.DB.Raw(`
		SELECT tablename FROM pg_tables
		WHERE schemaname = 'public'
		AND tablename != 'schema_migrations'
	`).Scan(&tables).Error
	require.NoError(tdb.t, err, "Failed to get table names")

	for _, table := range tables {
		err := tdb.DB.Exec(fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)).Error
		require.NoError(tdb.t, err, "Failed to truncate table %s", table)
	}
}

// SeedStorefront creates the store, landing page and products the fixture
// orders refer to. The landing page carries its own pixel.
func (tdb *TestDB) SeedStorefront() {
	tdb.t.Helper()

	now := time.Now().UTC()
	store := models.StoreModel{
		BaseModel:        models.BaseModel{ID: testutil.StoreID(), CreatedAt: now, UpdatedAt: now},
		Name:             "Velaro RO",
		URL:              "https://velaro.ro",
		PixelID:          "STORE-PIXEL",
		PixelAccessToken: "store-token",
	}
	require.NoError(tdb.t, tdb.DB.Create(&store).Error)

	page := models.LandingPageModel{
		BaseModel:          models.BaseModel{ID: testutil.NewTestUUID("test-page"), CreatedAt: now, UpdatedAt: now},
		Slug:               testutil.LandingPageSlug,
		StoreID:            store.ID,
		URL:                "https://velaro.ro/serum",
		PixelID:            "PAGE-PIXEL",
		PixelAccessToken:   "page-token",
		PixelTestEventCode: "TEST123",
	}
	require.NoError(tdb.t, tdb.DB.Create(&page).Error)

	products := []models.ProductModel{
		{
			BaseModel: models.BaseModel{ID: testutil.NewTestUUID("product-main"), CreatedAt: now, UpdatedAt: now},
			SKU:       testutil.ProductSKU,
			Name:      "Ser facial 30ml",
			Price:     decimal.RequireFromString("149.00"),
		},
		{
			BaseModel: models.BaseModel{ID: testutil.NewTestUUID("product-upsell"), CreatedAt: now, UpdatedAt: now},
			SKU:       testutil.UpsellSKU,
			Name:      "Crema 50ml",
			Price:     decimal.RequireFromString("40.00"),
		},
	}
	require.NoError(tdb.t, tdb.DB.Create(&products).Error)
}

// connectToDatabase establishes a GORM connection configured like the service's
func connectToDatabase(t *testing.T, dsn string) (*gorm.DB, *sql.DB) {
	t.Helper()

	gormConfig := &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
		TranslateError:         true,
	}
	if os.Getenv("TEST_DB_DEBUG") != "" {
		gormConfig.Logger = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(gormpostgres.Open(dsn), gormConfig)
	require.NoError(t, err, "Failed to connect to database")

	sqlDB, err := db.DB()
	require.NoError(t, err, "Failed to get underlying SQL DB")

	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	return db, sqlDB
}

// runMigrations applies the embedded migrations
func runMigrations(t *testing.T, sqlDB *sql.DB) {
	t.Helper()

	m, err := migration.New(sqlDB, zap.NewNop())
	require.NoError(t, err, "Failed to create migrator")
	require.NoError(t, m.Up(), "Failed to run migrations")
}

// CleanupSharedContainer terminates the shared container.
func CleanupSharedContainer() {
	sharedContainerMu.Lock()
	defer sharedContainerMu.Unlock()

	if sharedContainer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = sharedContainer.Terminate(ctx)
		sharedContainer = nil
		sharedContainerDSN = ""
	}
}
