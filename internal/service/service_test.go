package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquorpos/backend/internal/domain"
	"liquorpos/backend/internal/stock"
	"liquorpos/backend/internal/store"
	"liquorpos/backend/internal/store/memory"
)

var fixedNow = time.Date(2026, 4, 18, 19, 30, 0, 0, time.UTC)

var (
	salesActor = domain.Actor{UID: "user-sales", Name: "Front Counter", Email: "sales@example.com", Role: domain.RoleSales}
	adminActor = domain.Actor{UID: "user-admin", Name: "Store Admin", Email: "admin@example.com", Role: domain.RoleAdministrator}
)

func newTestRepo(t *testing.T) *memory.Store {
	t.Helper()
	repo := memory.New()
	repo.SeedProducts(
		domain.Product{ID: "prod-b1", SKU: "B1", Name: "Beer-Single", Category: "beer", PriceCents: 250, BaseProductSKU: "B1", ContainedUnits: 1, Stock: 100, Threshold: 10},
		domain.Product{ID: "prod-b6", SKU: "B6", Name: "Beer-SixPack", Category: "beer", PriceCents: 1350, BaseProductSKU: "B1", ContainedUnits: 6, Stock: 16, Threshold: 2},
		domain.Product{ID: "prod-v1", SKU: "V1", Name: "Vodka 1L", Category: "spirits", PriceCents: 2999, BaseProductSKU: "V1", ContainedUnits: 1, Stock: 12, Threshold: 4},
	)

	ctx := context.Background()
	require.NoError(t, repo.CreateUser(ctx, domain.UserAccount{ID: adminActor.UID, Email: adminActor.Email, DisplayName: adminActor.Name, PasswordHash: "$2a$test", Role: domain.RoleAdministrator, Active: true}))
	require.NoError(t, repo.CreateUser(ctx, domain.UserAccount{ID: salesActor.UID, Email: salesActor.Email, DisplayName: salesActor.Name, PasswordHash: "$2a$test", Role: domain.RoleSales, Active: true}))
	require.NoError(t, repo.SetAdministrator(ctx, adminActor.UID, true))
	return repo
}

func newTestService(t *testing.T, repo store.Repository) *Service {
	t.Helper()
	return New(repo, nil, Options{
		RetryInterval: time.Millisecond,
		Now:           func() time.Time { return fixedNow },
	})
}

func salesCtx() context.Context {
	return WithActor(context.Background(), salesActor)
}

func adminCtx() context.Context {
	return WithActor(context.Background(), adminActor)
}

func cardSale(lines ...domain.CartItem) domain.CompleteSaleRequest {
	return domain.CompleteSaleRequest{
		Items:   lines,
		Payment: domain.PaymentDetails{Method: domain.PaymentCard},
	}
}

func requireStock(t *testing.T, repo store.Repository, id string, want int, status domain.StockStatus) {
	t.Helper()
	p, err := repo.GetProduct(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, want, p.Stock, "stock of %s", p.SKU)
	assert.Equal(t, status, p.Status, "status of %s", p.SKU)
}

func TestCompleteSaleSixPackDrawsFromBase(t *testing.T) {
	repo := newTestRepo(t)
	svc := newTestService(t, repo)

	sale, err := svc.CompleteSale(salesCtx(), cardSale(domain.CartItem{ProductID: "prod-b6", Quantity: 2}))
	require.NoError(t, err)

	requireStock(t, repo, "prod-b1", 88, domain.StatusInStock)
	requireStock(t, repo, "prod-b6", 14, domain.StatusInStock)

	assert.Equal(t, int64(2700), sale.SubtotalCents)
	assert.Equal(t, int64(405), sale.TaxCents)
	assert.Equal(t, int64(3105), sale.TotalCents)
	assert.Equal(t, sale.TotalCents, sale.AmountPaidCents)
	assert.Zero(t, sale.ChangeDueCents)
	assert.Equal(t, domain.SaleStatusCompleted, sale.Status)
	assert.Equal(t, salesActor.UID, sale.SalespersonID)
	assert.Equal(t, salesActor.Name, sale.SalespersonName)
	assert.True(t, fixedNow.Equal(sale.CreatedAt))
	require.Len(t, sale.Items, 1)
	assert.Equal(t, "Beer-SixPack", sale.Items[0].ProductName)
	assert.Equal(t, 2, sale.Items[0].Quantity)

	stored, err := svc.GetSale(context.Background(), sale.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Items, 1)
}

func TestCompleteSaleDegradesStatusPerOwnThreshold(t *testing.T) {
	repo := newTestRepo(t)
	svc := newTestService(t, repo)

	_, err := svc.CompleteSale(salesCtx(), cardSale(
		domain.CartItem{ProductID: "prod-b6", Quantity: 15},
		domain.CartItem{ProductID: "prod-b1", Quantity: 2},
	))
	require.NoError(t, err)

	requireStock(t, repo, "prod-b1", 8, domain.StatusLowStock)
	requireStock(t, repo, "prod-b6", 1, domain.StatusLowStock)
}

func TestCompleteSaleInsufficientStockWritesNothing(t *testing.T) {
	repo := newTestRepo(t)
	svc := newTestService(t, repo)

	_, err := svc.CompleteSale(salesCtx(), cardSale(
		domain.CartItem{ProductID: "prod-v1", Quantity: 1},
		domain.CartItem{ProductID: "prod-b1", Quantity: 101},
	))
	require.Error(t, err)
	assert.Equal(t, KindInsufficientStock, ErrorKind(err))

	var insufficient *stock.InsufficientStockError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, "B1", insufficient.BaseSKU)
	assert.Equal(t, 1, insufficient.Shortfall())

	requireStock(t, repo, "prod-b1", 100, domain.StatusInStock)
	requireStock(t, repo, "prod-b6", 16, domain.StatusInStock)
	requireStock(t, repo, "prod-v1", 12, domain.StatusInStock)

	sales, err := svc.ListSales(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, sales)
}

func TestVoidSaleRestoresStockOnce(t *testing.T) {
	repo := newTestRepo(t)
	svc := newTestService(t, repo)

	sale, err := svc.CompleteSale(salesCtx(), cardSale(domain.CartItem{ProductID: "prod-b6", Quantity: 2}))
	require.NoError(t, err)
	requireStock(t, repo, "prod-b1", 88, domain.StatusInStock)

	voided, err := svc.VoidSale(adminCtx(), sale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SaleStatusVoided, voided.Status)
	require.NotNil(t, voided.VoidedAt)
	assert.True(t, fixedNow.Equal(*voided.VoidedAt))
	require.NotNil(t, voided.VoidedBy)
	assert.Equal(t, domain.VoidedBy{UID: adminActor.UID, Name: adminActor.Name}, *voided.VoidedBy)
	assert.Equal(t, sale.TotalCents, voided.TotalCents)

	requireStock(t, repo, "prod-b1", 100, domain.StatusInStock)
	requireStock(t, repo, "prod-b6", 16, domain.StatusInStock)

	_, err = svc.VoidSale(adminCtx(), sale.ID)
	require.ErrorIs(t, err, ErrAlreadyVoided)
	assert.Equal(t, KindAlreadyVoided, ErrorKind(err))
	requireStock(t, repo, "prod-b1", 100, domain.StatusInStock)

	stored, err := svc.GetSale(context.Background(), sale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SaleStatusVoided, stored.Status)
}

// interferingRepo commits a competing sale between the first attempt's
// reads and its commit.
type interferingRepo struct {
	store.Repository
	attempts  int
	fired     bool
	interfere func(ctx context.Context) error
}

func (r *interferingRepo) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	r.attempts++
	return r.Repository.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := fn(ctx, tx); err != nil {
			return err
		}
		if r.fired {
			return nil
		}
		r.fired = true
		return r.interfere(ctx)
	})
}

func TestConcurrentSalesOnSameBaseAreSerialized(t *testing.T) {
	repo := newTestRepo(t)
	competitor := newTestService(t, repo)

	wrapped := &interferingRepo{
		Repository: repo,
		interfere: func(ctx context.Context) error {
			_, err := competitor.CompleteSale(salesCtx(), cardSale(domain.CartItem{ProductID: "prod-b6", Quantity: 2}))
			return err
		},
	}
	svc := newTestService(t, wrapped)

	_, err := svc.CompleteSale(salesCtx(), cardSale(domain.CartItem{ProductID: "prod-b6", Quantity: 2}))
	require.NoError(t, err)
	assert.Equal(t, 2, wrapped.attempts, "first attempt must conflict and rerun")

	requireStock(t, repo, "prod-b1", 76, domain.StatusInStock)
	requireStock(t, repo, "prod-b6", 12, domain.StatusInStock)

	sales, err := svc.ListSales(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, sales, 2)
}

type conflictingRepo struct {
	store.Repository
	attempts int
}

func (r *conflictingRepo) RunTransaction(_ context.Context, _ func(ctx context.Context, tx store.Tx) error) error {
	r.attempts++
	return fmt.Errorf("%w: simulated", store.ErrConflict)
}

func TestConflictRetriesAreBounded(t *testing.T) {
	repo := &conflictingRepo{Repository: newTestRepo(t)}
	svc := New(repo, nil, Options{MaxAttempts: 3, RetryInterval: time.Millisecond})

	_, err := svc.CompleteSale(salesCtx(), cardSale(domain.CartItem{ProductID: "prod-b1", Quantity: 1}))
	require.ErrorIs(t, err, ErrTransactionConflict)
	assert.Equal(t, KindTransactionConflict, ErrorKind(err))
	assert.Equal(t, 3, repo.attempts)
}

func TestCompleteSaleRequiresActor(t *testing.T) {
	svc := newTestService(t, newTestRepo(t))

	_, err := svc.CompleteSale(context.Background(), cardSale(domain.CartItem{ProductID: "prod-b1", Quantity: 1}))
	require.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Equal(t, KindNotAuthenticated, ErrorKind(err))
}

func TestCompleteSaleRejectsInvalidCarts(t *testing.T) {
	svc := newTestService(t, newTestRepo(t))

	_, err := svc.CompleteSale(salesCtx(), cardSale())
	require.ErrorIs(t, err, ErrInvalidRequest)

	_, err = svc.CompleteSale(salesCtx(), cardSale(domain.CartItem{ProductID: "prod-b1", Quantity: -1}))
	require.ErrorIs(t, err, ErrInvalidRequest)

	_, err = svc.CompleteSale(salesCtx(), domain.CompleteSaleRequest{
		Items:   []domain.CartItem{{ProductID: "prod-b1", Quantity: 1}},
		Payment: domain.PaymentDetails{Method: "voucher"},
	})
	require.ErrorIs(t, err, ErrInvalidRequest)

	_, err = svc.CompleteSale(salesCtx(), cardSale(domain.CartItem{ProductID: "prod-missing", Quantity: 1}))
	require.ErrorIs(t, err, ErrProductNotFound)
	assert.Equal(t, KindProductNotFound, ErrorKind(err))
}

func TestCompleteSaleCashPayment(t *testing.T) {
	repo := newTestRepo(t)
	svc := newTestService(t, repo)

	underpaid := domain.CompleteSaleRequest{
		Items:   []domain.CartItem{{ProductID: "prod-v1", Quantity: 1}},
		Payment: domain.PaymentDetails{Method: "CASH", AmountPaidCents: 3000},
	}
	_, err := svc.CompleteSale(salesCtx(), underpaid)
	require.ErrorIs(t, err, ErrInvalidRequest)
	requireStock(t, repo, "prod-v1", 12, domain.StatusInStock)

	underpaid.Payment.AmountPaidCents = 4000
	sale, err := svc.CompleteSale(salesCtx(), underpaid)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentCash, sale.PaymentMethod)
	assert.Equal(t, int64(2999), sale.SubtotalCents)
	assert.Equal(t, int64(450), sale.TaxCents)
	assert.Equal(t, int64(3449), sale.TotalCents)
	assert.Equal(t, int64(4000), sale.AmountPaidCents)
	assert.Equal(t, int64(551), sale.ChangeDueCents)
	requireStock(t, repo, "prod-v1", 11, domain.StatusInStock)
}

func TestCompleteSaleChargesCatalogPrice(t *testing.T) {
	svc := newTestService(t, newTestRepo(t))

	sale, err := svc.CompleteSale(salesCtx(), cardSale(domain.CartItem{ProductID: "prod-b1", Quantity: 4, PriceCents: 1}))
	require.NoError(t, err)
	assert.Equal(t, int64(250), sale.Items[0].PriceCents)
	assert.Equal(t, int64(1000), sale.SubtotalCents)
}

func TestCompleteSaleTaxRateOverride(t *testing.T) {
	svc := newTestService(t, newTestRepo(t))

	zero := decimal.Zero
	req := cardSale(domain.CartItem{ProductID: "prod-b1", Quantity: 4})
	req.Payment.TaxRate = &zero
	sale, err := svc.CompleteSale(salesCtx(), req)
	require.NoError(t, err)
	assert.Zero(t, sale.TaxCents)
	assert.Equal(t, sale.SubtotalCents, sale.TotalCents)

	bad := decimal.NewFromInt(2)
	req.Payment.TaxRate = &bad
	_, err = svc.CompleteSale(salesCtx(), req)
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestCompleteSaleMissingBaseProductAborts(t *testing.T) {
	repo := newTestRepo(t)
	repo.SeedProducts(domain.Product{ID: "prod-g6", SKU: "G6", Name: "Gin Six", BaseProductSKU: "G1", ContainedUnits: 6, Stock: 3, Threshold: 1})
	svc := newTestService(t, repo)

	_, err := svc.CompleteSale(salesCtx(), cardSale(
		domain.CartItem{ProductID: "prod-b1", Quantity: 1},
		domain.CartItem{ProductID: "prod-g6", Quantity: 1},
	))
	require.ErrorIs(t, err, stock.ErrBaseProductNotFound)
	assert.Equal(t, KindBaseProductNotFound, ErrorKind(err))
	requireStock(t, repo, "prod-b1", 100, domain.StatusInStock)
	requireStock(t, repo, "prod-g6", 3, domain.StatusInStock)
}

func TestVoidSaleChecksRoleRegistry(t *testing.T) {
	repo := newTestRepo(t)
	svc := newTestService(t, repo)

	sale, err := svc.CompleteSale(salesCtx(), cardSale(domain.CartItem{ProductID: "prod-b1", Quantity: 5}))
	require.NoError(t, err)

	impostor := salesActor
	impostor.Role = domain.RoleAdministrator
	_, err = svc.VoidSale(WithActor(context.Background(), impostor), sale.ID)
	require.ErrorIs(t, err, ErrNotAuthorized)
	assert.Equal(t, KindNotAuthorized, ErrorKind(err))

	_, err = svc.VoidSale(context.Background(), sale.ID)
	require.ErrorIs(t, err, ErrNotAuthenticated)

	requireStock(t, repo, "prod-b1", 95, domain.StatusInStock)
	stored, err := svc.GetSale(context.Background(), sale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SaleStatusCompleted, stored.Status)
}

func TestVoidSaleUnknownSale(t *testing.T) {
	svc := newTestService(t, newTestRepo(t))

	_, err := svc.VoidSale(adminCtx(), "sale_missing")
	require.ErrorIs(t, err, ErrSaleNotFound)
	assert.Equal(t, KindSaleNotFound, ErrorKind(err))
}

type spyCache struct {
	products    []domain.Product
	hits        int
	invalidated int
}

func (c *spyCache) GetProducts(_ context.Context) ([]domain.Product, bool, error) {
	if c.products == nil {
		return nil, false, nil
	}
	c.hits++
	return c.products, true, nil
}

func (c *spyCache) SetProducts(_ context.Context, products []domain.Product, _ time.Duration) error {
	c.products = products
	return nil
}

func (c *spyCache) Invalidate(_ context.Context) error {
	c.invalidated++
	c.products = nil
	return nil
}

func TestCatalogCacheInvalidatedAfterCommit(t *testing.T) {
	catalog := &spyCache{}
	svc := New(newTestRepo(t), catalog, Options{RetryInterval: time.Millisecond})

	products, err := svc.ListProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 3)
	_, err = svc.ListProducts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, catalog.hits)

	_, err = svc.CompleteSale(salesCtx(), cardSale(domain.CartItem{ProductID: "prod-b1", Quantity: 101}))
	require.Error(t, err)
	assert.Zero(t, catalog.invalidated, "failed sale must not touch the cache")

	_, err = svc.CompleteSale(salesCtx(), cardSale(domain.CartItem{ProductID: "prod-b1", Quantity: 1}))
	require.NoError(t, err)
	assert.Equal(t, 1, catalog.invalidated)

	products, err = svc.ListProducts(context.Background())
	require.NoError(t, err)
	for _, p := range products {
		if p.SKU == "B1" {
			assert.Equal(t, 99, p.Stock)
		}
	}
}

// commitDuringListRepo commits a sale while a catalog listing is in flight.
type commitDuringListRepo struct {
	*memory.Store
	svc *Service
}

func (r *commitDuringListRepo) ListProducts(ctx context.Context) ([]domain.Product, error) {
	products, err := r.Store.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := r.svc.CompleteSale(salesCtx(), cardSale(domain.CartItem{ProductID: "prod-b1", Quantity: 1})); err != nil {
		return nil, err
	}
	return products, nil
}

func TestCatalogCacheSkipsFillAfterConcurrentCommit(t *testing.T) {
	catalog := &spyCache{}
	repo := &commitDuringListRepo{Store: newTestRepo(t)}
	svc := New(repo, catalog, Options{RetryInterval: time.Millisecond})
	repo.svc = svc

	stale, err := svc.ListProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, stale, 3)
	assert.Equal(t, 1, catalog.invalidated)
	assert.Nil(t, catalog.products, "listing read before the commit must not be cached")

	_, ok, err := catalog.GetProducts(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCreateProductVariantDerivesStockFromBase(t *testing.T) {
	repo := newTestRepo(t)
	svc := newTestService(t, repo)

	created, err := svc.CreateProduct(adminCtx(), domain.ProductCreateRequest{
		SKU: "b24", Name: "Beer-Case", Category: "beer", PriceCents: 4800,
		BaseProductSKU: "b1", ContainedUnits: 24, Stock: 999, Threshold: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, "B24", created.SKU)
	assert.Equal(t, "B1", created.BaseProductSKU)
	assert.Equal(t, 4, created.Stock)
	assert.Equal(t, domain.StatusInStock, created.Status)

	_, err = svc.CompleteSale(salesCtx(), cardSale(domain.CartItem{ProductID: created.ID, Quantity: 1}))
	require.NoError(t, err)
	requireStock(t, repo, "prod-b1", 76, domain.StatusInStock)
	requireStock(t, repo, "prod-b6", 12, domain.StatusInStock)
	requireStock(t, repo, created.ID, 3, domain.StatusInStock)
}

func TestCreateProductValidation(t *testing.T) {
	svc := newTestService(t, newTestRepo(t))

	_, err := svc.CreateProduct(adminCtx(), domain.ProductCreateRequest{
		SKU: "G6", Name: "Gin Six", Category: "spirits", PriceCents: 9000, BaseProductSKU: "G1", ContainedUnits: 6,
	})
	require.ErrorIs(t, err, stock.ErrBaseProductNotFound)

	_, err = svc.CreateProduct(adminCtx(), domain.ProductCreateRequest{
		SKU: "B1", Name: "Dup", Category: "beer", PriceCents: 100,
	})
	require.ErrorIs(t, err, ErrInvalidRequest)

	_, err = svc.CreateProduct(salesCtx(), domain.ProductCreateRequest{
		SKU: "R1", Name: "Rum", Category: "spirits", PriceCents: 2500, Stock: 10,
	})
	require.ErrorIs(t, err, ErrNotAuthorized)

	base, err := svc.CreateProduct(adminCtx(), domain.ProductCreateRequest{
		SKU: "R1", Name: "Rum", Category: "spirits", PriceCents: 2500, Stock: 3, Threshold: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, "R1", base.BaseProductSKU)
	assert.Equal(t, 1, base.ContainedUnits)
	assert.Equal(t, domain.StatusLowStock, base.Status)
}

func TestErrorKindMapping(t *testing.T) {
	cases := map[error]string{
		&stock.InsufficientStockError{BaseSKU: "B1"}:   KindInsufficientStock,
		&stock.BaseProductNotFoundError{BaseSKU: "B1"}: KindBaseProductNotFound,
		fmt.Errorf("wrap: %w", ErrSaleNotFound):        KindSaleNotFound,
		ErrAlreadyVoided:                               KindAlreadyVoided,
		ErrNotAuthorized:                               KindNotAuthorized,
		ErrNotAuthenticated:                            KindNotAuthenticated,
		fmt.Errorf("%w: x", store.ErrConflict):         KindTransactionConflict,
		fmt.Errorf("%w: bad", ErrInvalidRequest):       KindInvalidRequest,
		store.ErrNotFound:                              KindNotFound,
		errors.New("disk on fire"):                     KindInternal,
	}
	for err, want := range cases {
		assert.Equal(t, want, ErrorKind(err), err.Error())
	}
	assert.Empty(t, ErrorKind(nil))
}

func TestCompleteSaleRejectsOversizedQuantity(t *testing.T) {
	repo := newTestRepo(t)
	svc := newTestService(t, repo)

	_, err := svc.CompleteSale(salesCtx(), cardSale(domain.CartItem{ProductID: "prod-b6", Quantity: 3074457345618258602}))
	require.ErrorIs(t, err, ErrInvalidRequest)
	assert.Equal(t, KindInvalidRequest, ErrorKind(err))

	_, err = svc.CompleteSale(salesCtx(), cardSale(domain.CartItem{ProductID: "prod-b6", Quantity: 100001}))
	require.ErrorIs(t, err, ErrInvalidRequest)

	requireStock(t, repo, "prod-b1", 100, domain.StatusInStock)
	requireStock(t, repo, "prod-b6", 16, domain.StatusInStock)
	sales, err := svc.ListSales(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, sales)
}

func TestComputeTotalsRejectsOverflow(t *testing.T) {
	pricey := domain.Product{SKU: "X1", PriceCents: math.MaxInt64 / 2}
	_, err := computeTotals([]stock.Line{{Product: pricey, Quantity: 3}}, DefaultTaxRate, domain.PaymentDetails{Method: domain.PaymentCard})
	require.ErrorIs(t, err, ErrInvalidRequest)

	_, err = computeTotals([]stock.Line{{Product: pricey, Quantity: 1}, {Product: pricey, Quantity: 1}}, DefaultTaxRate, domain.PaymentDetails{Method: domain.PaymentCard})
	require.ErrorIs(t, err, ErrInvalidRequest)

	t1, err := computeTotals([]stock.Line{{Product: domain.Product{SKU: "B1", PriceCents: 250}, Quantity: 4}}, DefaultTaxRate, domain.PaymentDetails{Method: domain.PaymentCard})
	require.NoError(t, err)
	assert.Equal(t, int64(1150), t1.total)
}

func TestZeroTaxRateIsHonoured(t *testing.T) {
	exempt := decimal.Zero
	svc := New(newTestRepo(t), nil, Options{TaxRate: &exempt, RetryInterval: time.Millisecond})

	sale, err := svc.CompleteSale(salesCtx(), cardSale(domain.CartItem{ProductID: "prod-b1", Quantity: 4}))
	require.NoError(t, err)
	assert.Equal(t, int64(1000), sale.SubtotalCents)
	assert.Zero(t, sale.TaxCents)
	assert.Equal(t, int64(1000), sale.TotalCents)

	defaulted := New(newTestRepo(t), nil, Options{RetryInterval: time.Millisecond})
	sale, err = defaulted.CompleteSale(salesCtx(), cardSale(domain.CartItem{ProductID: "prod-b1", Quantity: 4}))
	require.NoError(t, err)
	assert.Equal(t, int64(150), sale.TaxCents)
}
