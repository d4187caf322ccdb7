package repository

import (
	"context"
	"errors"

	"encore.app/billing/models"
	"encore.dev/rlog"
	"encore.dev/storage/cache"
)

// KnownBillNumbers caches bill numbers that are already stored, mapped to the bill id.
// *cache.IntKeyspace[string] satisfies it.
type KnownBillNumbers interface {
	Get(ctx context.Context, key string) (int64, error)
	Set(ctx context.Context, key string, val int64) error
}

// CachedRepository answers the duplicate pre-check from a cache before hitting SQL.
// Bills are never deleted, so a cached bill number always exists.
type CachedRepository struct {
	Repository
	known KnownBillNumbers
}

func NewCachedRepository(next Repository, known KnownBillNumbers) *CachedRepository {
	return &CachedRepository{Repository: next, known: known}
}

func (r *CachedRepository) ExistsByBillNumber(ctx context.Context, billNumber string) (bool, error) {
	log := rlog.With("module", "billing_repository").With("bill_number", billNumber)

	_, err := r.known.Get(ctx, billNumber)
	switch {
	case err == nil:
		log.Debug("bill number found in cache")
		return true, nil
	case errors.Is(err, cache.Miss):
	default:
		log.Warn("bill number cache unavailable, falling back to database", "error", err)
	}

	return r.Repository.ExistsByBillNumber(ctx, billNumber)
}

func (r *CachedRepository) CreateInTransaction(ctx context.Context, bill *models.Bill) (*models.Bill, error) {
	persisted, err := r.Repository.CreateInTransaction(ctx, bill)
	if err != nil {
		return nil, err
	}

	if err := r.known.Set(ctx, persisted.BillNumber, persisted.ID); err != nil {
		rlog.With("module", "billing_repository").With("bill_number", persisted.BillNumber).
			Warn("failed to cache bill number", "error", err)
	}
	return persisted, nil
}
