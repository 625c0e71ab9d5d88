package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velaro/ordersync/internal/domain/shared"
	"github.com/velaro/ordersync/internal/infrastructure/persistence/models"
)

func TestGormStorefrontRepositories(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	store := models.StoreModel{
		BaseModel:        models.NewBaseModel(now),
		Name:             "Velaro",
		URL:              "https://velaro.ro",
		PixelID:          "STORE-PIXEL",
		PixelAccessToken: "store-token",
	}
	page := models.LandingPageModel{
		BaseModel:          models.NewBaseModel(now),
		Slug:               "serum-lp",
		StoreID:            store.ID,
		URL:                "https://velaro.ro/serum",
		PixelID:            "LP-PIXEL",
		PixelTestEventCode: "TEST1",
	}
	products := []models.ProductModel{
		{BaseModel: models.NewBaseModel(now), SKU: "SKU1", Name: "Serum", Price: decimal.NewFromInt(50)},
		{BaseModel: models.NewBaseModel(now), SKU: "UP1", Name: "Cream", Price: decimal.RequireFromString("19.99")},
	}
	require.NoError(t, db.Create(&store).Error)
	require.NoError(t, db.Create(&page).Error)
	require.NoError(t, db.Create(&products).Error)

	t.Run("catalog resolves known SKUs", func(t *testing.T) {
		catalog := NewGormProductCatalog(db)
		found, err := catalog.FindBySKUs(ctx, []string{"SKU1", "UP1", "UNKNOWN"})
		require.NoError(t, err)
		require.Len(t, found, 2)
		assert.Equal(t, "Serum", found["SKU1"].Name)
		assert.True(t, decimal.RequireFromString("19.99").Equal(found["UP1"].Price))
		_, ok := found["UNKNOWN"]
		assert.False(t, ok)

		empty, err := catalog.FindBySKUs(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("landing page by slug", func(t *testing.T) {
		repo := NewGormLandingPageRepository(db)
		found, err := repo.FindBySlug(ctx, "serum-lp")
		require.NoError(t, err)
		assert.Equal(t, store.ID, found.StoreID)
		assert.Equal(t, "LP-PIXEL", found.Pixel.PixelID)
		assert.False(t, found.Pixel.IsComplete())

		_, err = repo.FindBySlug(ctx, "missing")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("store by id", func(t *testing.T) {
		repo := NewGormStoreRepository(db)
		found, err := repo.FindByID(ctx, store.ID)
		require.NoError(t, err)
		assert.Equal(t, "Velaro", found.Name)
		assert.True(t, found.Pixel.IsComplete())

		_, err = repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}
