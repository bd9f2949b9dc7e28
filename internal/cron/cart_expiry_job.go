package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const defaultCartSweepBatch = 200

type CartExpiryJobParams struct {
	Logger     *logger.Logger
	Repository expiredCartDeleter
	BatchSize  int
}

type expiredCartDeleter interface {
	DeleteExpired(ctx context.Context, now time.Time, limit int) (int64, error)
}

// NewCartExpiryJob removes guest carts past their expiration in batches.
func NewCartExpiryJob(params CartExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultCartSweepBatch
	}
	return &cartExpiryJob{
		logg:  params.Logger,
		repo:  params.Repository,
		batch: batch,
		now:   time.Now,
	}, nil
}

type cartExpiryJob struct {
	logg  *logger.Logger
	repo  expiredCartDeleter
	batch int
	now   func() time.Time
}

func (j *cartExpiryJob) Name() string { return "cart-expiry" }

func (j *cartExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC()
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		deleted, err := j.repo.DeleteExpired(ctx, cutoff, j.batch)
		if err != nil {
			return fmt.Errorf("delete expired carts: %w", err)
		}
		total += deleted
		if deleted < int64(j.batch) {
			break
		}
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":        cutoff,
		"carts_deleted": total,
	}), "expired guest carts swept")
	return nil
}
