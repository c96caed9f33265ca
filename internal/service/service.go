package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"liquorpos/backend/internal/cache"
	"liquorpos/backend/internal/domain"
	"liquorpos/backend/internal/stock"
	"liquorpos/backend/internal/store"
	"liquorpos/backend/internal/validation"
	"liquorpos/backend/internal/xid"
)

const (
	opCompleteSale  = "complete_sale"
	opVoidSale      = "void_sale"
	opCreateProduct = "create_product"
)

var DefaultTaxRate = decimal.RequireFromString("0.15")

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Options struct {
	// TaxRate is the fraction applied to the subtotal when a sale does not
	// carry its own rate. Nil selects DefaultTaxRate; zero means tax exempt.
	TaxRate *decimal.Decimal
	// MaxAttempts bounds how many times a conflicting transaction is rerun.
	MaxAttempts int
	CatalogTTL  time.Duration
	// RetryInterval is the first backoff delay between conflicting attempts.
	RetryInterval time.Duration
	Now           func() time.Time
}

type Service struct {
	repo          store.Repository
	catalog       cache.ProductCache
	taxRate       decimal.Decimal
	maxAttempts   uint
	catalogTTL    time.Duration
	retryInterval time.Duration

	// catalogMu orders cache fills against invalidations; catalogGen counts
	// invalidations so a fill that raced a commit is dropped.
	catalogMu  sync.Mutex
	catalogGen uint64

	now           func() time.Time
	logger        zerolog.Logger
}

func New(repo store.Repository, catalog cache.ProductCache, opts Options) *Service {
	if catalog == nil {
		catalog = cache.NoopProductCache{}
	}
	taxRate := DefaultTaxRate
	if opts.TaxRate != nil {
		taxRate = *opts.TaxRate
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 5
	}
	if opts.CatalogTTL <= 0 {
		opts.CatalogTTL = 30 * time.Second
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 20 * time.Millisecond
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Service{
		repo:          repo,
		catalog:       catalog,
		taxRate:       taxRate,
		maxAttempts:   uint(opts.MaxAttempts),
		catalogTTL:    opts.CatalogTTL,
		retryInterval: opts.RetryInterval,
		now:           opts.Now,
		logger:        log.With().Str("component", "service").Logger(),
	}
}

// AuthorizeAdministrator returns the calling actor once the role registry
// confirms administrator privilege. The role claim on the actor is not trusted.
func (s *Service) AuthorizeAdministrator(ctx context.Context) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.UID == "" {
		return domain.Actor{}, ErrNotAuthenticated
	}
	admin, err := s.repo.IsAdministrator(ctx, actor.UID)
	if err != nil {
		return domain.Actor{}, fmt.Errorf("check role registry: %w", err)
	}
	if !admin {
		return domain.Actor{}, fmt.Errorf("%w: %s is not an administrator", ErrNotAuthorized, actor.UID)
	}
	return actor, nil
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	gen := s.catalogGeneration()
	cached, ok, err := s.catalog.GetProducts(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("catalog cache read failed")
	}
	if ok {
		return cached, nil
	}

	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	s.fillCatalog(ctx, gen, products)
	return products, nil
}

func (s *Service) catalogGeneration() uint64 {
	s.catalogMu.Lock()
	defer s.catalogMu.Unlock()
	return s.catalogGen
}

// fillCatalog stores products unless an invalidation ran after gen was taken.
func (s *Service) fillCatalog(ctx context.Context, gen uint64, products []domain.Product) {
	s.catalogMu.Lock()
	defer s.catalogMu.Unlock()
	if s.catalogGen != gen {
		s.logger.Debug().Msg("catalog changed during read, skipping cache fill")
		return
	}
	if err := s.catalog.SetProducts(ctx, products, s.catalogTTL); err != nil {
		s.logger.Warn().Err(err).Msg("catalog cache write failed")
	}
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	p, err := s.repo.GetProduct(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, id)
		}
		return domain.Product{}, err
	}
	return *p, nil
}

// CreateProduct adds a catalog record. A packaging variant must name an
// existing base product; its opening stock is derived from the base so the
// family starts out consistent.
func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	if _, err := s.AuthorizeAdministrator(ctx); err != nil {
		return domain.Product{}, err
	}

	req.SKU = strings.ToUpper(strings.TrimSpace(req.SKU))
	req.BaseProductSKU = strings.ToUpper(strings.TrimSpace(req.BaseProductSKU))
	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)
	if err := validation.Struct(req); err != nil {
		return domain.Product{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	isVariant := req.BaseProductSKU != "" && req.BaseProductSKU != req.SKU
	lookup := []string{req.SKU}
	if isVariant {
		lookup = append(lookup, req.BaseProductSKU)
	}
	productID := xid.New("prod")

	var created domain.Product
	err := s.runTransaction(ctx, opCreateProduct, func(ctx context.Context, tx store.Tx) error {
		existing, err := tx.FindProductsBySKUs(ctx, lookup)
		if err != nil {
			return err
		}
		for _, p := range existing {
			if p.SKU == req.SKU {
				return fmt.Errorf("%w: sku %s already exists", ErrInvalidRequest, req.SKU)
			}
		}

		p := domain.Product{
			ID:          productID,
			SKU:         req.SKU,
			Name:        req.Name,
			Category:    req.Category,
			Description: strings.TrimSpace(req.Description),
			PriceCents:  req.PriceCents,
			Threshold:   req.Threshold,
		}
		if isVariant {
			rs, err := stock.NewReadSet([]string{req.BaseProductSKU}, existing)
			if err != nil {
				return err
			}
			family, _ := rs.Family(req.BaseProductSKU)
			p.BaseProductSKU = req.BaseProductSKU
			p.ContainedUnits = max(req.ContainedUnits, 1)
			p.Stock = max(family.Base.Stock, 0) / p.ContainedUnits
		} else {
			p.BaseProductSKU = p.SKU
			p.ContainedUnits = 1
			p.Stock = req.Stock
		}
		p.Status = stock.DeriveStatus(p.Stock, p.Threshold)
		p.CreatedAt = s.now().UTC()

		if err := tx.CreateProduct(ctx, p); err != nil {
			return err
		}
		created = p
		return nil
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.invalidateCatalog(ctx)
	s.logger.Info().Str("sku", created.SKU).Str("base_sku", created.BaseProductSKU).Int("stock", created.Stock).Msg("product created")
	return created, nil
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	sale, err := s.repo.GetSale(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Sale{}, fmt.Errorf("%w: %s", ErrSaleNotFound, id)
		}
		return domain.Sale{}, err
	}
	return *sale, nil
}

func (s *Service) ListSales(ctx context.Context, limit int) ([]domain.Sale, error) {
	if limit < 1 || limit > 500 {
		limit = 50
	}
	return s.repo.ListSales(ctx, limit)
}

func (s *Service) invalidateCatalog(ctx context.Context) {
	s.catalogMu.Lock()
	s.catalogGen++
	s.catalogMu.Unlock()
	if err := s.catalog.Invalidate(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("catalog cache invalidation failed")
	}
}
