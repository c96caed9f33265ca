package store

import (
	"context"
	"errors"
	"time"

	"liquorpos/backend/internal/domain"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("transaction conflict")
	ErrReadAfterWrite     = errors.New("read issued after a write in the same transaction")
	ErrInvalidTransaction = errors.New("invalid transaction")
)

// Tx is a single atomic unit of work. Every read must be issued before the
// first write; implementations reject a later read with ErrReadAfterWrite.
// A commit that observes a concurrent change to any document read inside the
// transaction fails with ErrConflict.
type Tx interface {
	GetProducts(ctx context.Context, ids []string) ([]domain.Product, error)
	FindProductsBySKUs(ctx context.Context, skus []string) ([]domain.Product, error)
	FindProductsByBaseSKUs(ctx context.Context, baseSKUs []string) ([]domain.Product, error)
	GetSale(ctx context.Context, id string) (*domain.Sale, error)
	ListSaleItems(ctx context.Context, saleID string) ([]domain.SaleItem, error)

	CreateProduct(ctx context.Context, product domain.Product) error
	UpdateProductStock(ctx context.Context, id string, stock int, status domain.StockStatus) error
	CreateSale(ctx context.Context, sale domain.Sale) error
	MarkSaleVoided(ctx context.Context, id string, at time.Time, by domain.VoidedBy) error
}

type Repository interface {
	// RunTransaction runs fn inside one transaction and commits when fn
	// returns nil. It does not retry.
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetSale(ctx context.Context, id string) (*domain.Sale, error)
	ListSales(ctx context.Context, limit int) ([]domain.Sale, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	GetUser(ctx context.Context, id string) (*domain.UserAccount, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.UserAccount, error)
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUser(ctx context.Context, user domain.UserAccount) error
	DeleteUser(ctx context.Context, id string) error

	// IsAdministrator consults the server-side role registry, independent of
	// any role claim carried by a token.
	IsAdministrator(ctx context.Context, uid string) (bool, error)
	SetAdministrator(ctx context.Context, uid string, admin bool) error
}
