package conversion

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/velaro/ordersync/internal/domain/conversion"
	"github.com/velaro/ordersync/internal/domain/shared"
	"github.com/velaro/ordersync/internal/domain/storefront"
)

// ReasonCredentialsMissing is recorded when neither the landing page nor the
// store has a pixel id and token
const ReasonCredentialsMissing = "conversion credentials not configured"

// ResolvedCredentials are the pixel credentials of an order together with the
// page the order came from
type ResolvedCredentials struct {
	Pixel     storefront.PixelCredentials
	Ref       conversion.CredentialRef
	SourceURL string
}

// CredentialResolver finds the pixel credentials of a landing page, falling
// back to its store
type CredentialResolver struct {
	landingPages storefront.LandingPageRepository
	stores       storefront.StoreRepository
}

// NewCredentialResolver creates a new CredentialResolver
func NewCredentialResolver(landingPages storefront.LandingPageRepository, stores storefront.StoreRepository) *CredentialResolver {
	return &CredentialResolver{landingPages: landingPages, stores: stores}
}

// Resolve looks up the credentials behind ref. ok is false when neither
// source is configured; err is only set for lookup failures other than
// not found.
func (r *CredentialResolver) Resolve(ctx context.Context, ref conversion.CredentialRef) (creds ResolvedCredentials, ok bool, err error) {
	creds.Ref = ref

	var page *storefront.LandingPage
	if ref.LandingPageSlug != "" {
		page, err = r.landingPages.FindBySlug(ctx, ref.LandingPageSlug)
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			return creds, false, err
		}
	}

	storeID := uuid.Nil
	if ref.StoreID != "" {
		if id, perr := uuid.Parse(ref.StoreID); perr == nil {
			storeID = id
		}
	}
	if storeID == uuid.Nil && page != nil {
		storeID = page.StoreID
	}

	var store *storefront.Store
	if storeID != uuid.Nil {
		store, err = r.stores.FindByID(ctx, storeID)
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			return creds, false, err
		}
	}

	switch {
	case page != nil && page.URL != "":
		creds.SourceURL = page.URL
	case store != nil:
		creds.SourceURL = store.URL
	}

	creds.Pixel, ok = storefront.ResolvePixel(page, store)
	return creds, ok, nil
}
