package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/archive-assistant/internal/core/domain"
	"github.com/kirillkom/archive-assistant/internal/core/ports"
)

// ReferenceVault maps opaque tokens to storage locations so clients never
// learn real paths or original filenames. Tokens are minted fresh per
// citation per query and never reused; a leaked token self-invalidates at
// expiry.
type ReferenceVault struct {
	store   ports.TokenStore
	storage ports.ObjectStorage

	tokenTTL time.Duration
	urlTTL   time.Duration
	now      func() time.Time
}

func NewReferenceVault(store ports.TokenStore, storage ports.ObjectStorage, tokenTTL, urlTTL time.Duration) *ReferenceVault {
	if tokenTTL <= 0 {
		tokenTTL = time.Hour
	}
	if urlTTL <= 0 {
		urlTTL = 5 * time.Minute
	}
	return &ReferenceVault{
		store:    store,
		storage:  storage,
		tokenTTL: tokenTTL,
		urlTTL:   urlTTL,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Mint issues a fresh token for the storage location. Two mints for the same
// location return different tokens, each with its own expiry.
func (v *ReferenceVault) Mint(ctx context.Context, storageLocation string) (string, error) {
	if storageLocation == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "mint reference", fmt.Errorf("storage location is empty"))
	}

	createdAt := v.now()
	token := domain.ReferenceToken{
		TokenID:         uuid.NewString(),
		StorageLocation: storageLocation,
		CreatedAt:       createdAt,
		ExpiresAt:       createdAt.Add(v.tokenTTL),
	}
	if err := v.store.Put(ctx, token); err != nil {
		return "", fmt.Errorf("persist reference token: %w", err)
	}
	return token.TokenID, nil
}

// Resolve exchanges a token for a short-lived direct access URL. A token is
// rejected strictly after its expiry instant.
func (v *ReferenceVault) Resolve(ctx context.Context, tokenID string) (string, error) {
	token, err := v.store.Get(ctx, tokenID)
	if err != nil {
		return "", err
	}
	if v.now().After(token.ExpiresAt) {
		return "", domain.WrapError(domain.ErrReferenceExpired, "resolve reference", fmt.Errorf("token expired at %s", token.ExpiresAt.Format(time.RFC3339)))
	}

	url, err := v.storage.SignedReadURL(token.StorageLocation, v.urlTTL)
	if err != nil {
		return "", fmt.Errorf("issue signed url: %w", err)
	}
	return url, nil
}
