package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/velaro/ordersync/internal/domain/shared"
	"github.com/velaro/ordersync/internal/domain/storefront"
	"github.com/velaro/ordersync/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormProductCatalog implements storefront.ProductCatalog using GORM
type GormProductCatalog struct {
	db *gorm.DB
}

// NewGormProductCatalog creates a new GormProductCatalog
func NewGormProductCatalog(db *gorm.DB) *GormProductCatalog {
	return &GormProductCatalog{db: db}
}

// FindBySKUs returns the products found, keyed by SKU
func (r *GormProductCatalog) FindBySKUs(ctx context.Context, skus []string) (map[string]storefront.Product, error) {
	products := make(map[string]storefront.Product, len(skus))
	if len(skus) == 0 {
		return products, nil
	}

	var rows []models.ProductModel
	if err := r.db.WithContext(ctx).Where("sku IN ?", skus).Find(&rows).Error; err != nil {
		return nil, err
	}
	for i := range rows {
		products[rows[i].SKU] = rows[i].ToDomain()
	}
	return products, nil
}

// GormLandingPageRepository implements storefront.LandingPageRepository using GORM
type GormLandingPageRepository struct {
	db *gorm.DB
}

// NewGormLandingPageRepository creates a new GormLandingPageRepository
func NewGormLandingPageRepository(db *gorm.DB) *GormLandingPageRepository {
	return &GormLandingPageRepository{db: db}
}

// FindBySlug finds a landing page by its slug
func (r *GormLandingPageRepository) FindBySlug(ctx context.Context, slug string) (*storefront.LandingPage, error) {
	var model models.LandingPageModel
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// GormStoreRepository implements storefront.StoreRepository using GORM
type GormStoreRepository struct {
	db *gorm.DB
}

// NewGormStoreRepository creates a new GormStoreRepository
func NewGormStoreRepository(db *gorm.DB) *GormStoreRepository {
	return &GormStoreRepository{db: db}
}

// FindByID finds a store by its ID
func (r *GormStoreRepository) FindByID(ctx context.Context, id uuid.UUID) (*storefront.Store, error) {
	var model models.StoreModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

var (
	_ storefront.ProductCatalog        = (*GormProductCatalog)(nil)
	_ storefront.LandingPageRepository = (*GormLandingPageRepository)(nil)
	_ storefront.StoreRepository       = (*GormStoreRepository)(nil)
)
