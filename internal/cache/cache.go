package cache

import (
	"context"
	"time"

	"liquorpos/backend/internal/domain"
)

// ProductCache holds the catalog listing between writes. A committed sale or
// void changes stock, so callers invalidate after every commit.
type ProductCache interface {
	GetProducts(ctx context.Context) ([]domain.Product, bool, error)
	SetProducts(ctx context.Context, products []domain.Product, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}

type NoopProductCache struct{}

func (NoopProductCache) GetProducts(_ context.Context) ([]domain.Product, bool, error) {
	return nil, false, nil
}

func (NoopProductCache) SetProducts(_ context.Context, _ []domain.Product, _ time.Duration) error {
	return nil
}

func (NoopProductCache) Invalidate(_ context.Context) error {
	return nil
}
