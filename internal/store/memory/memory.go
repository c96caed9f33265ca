package memory

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"liquorpos/backend/internal/domain"
	"liquorpos/backend/internal/stock"
	"liquorpos/backend/internal/store"
	"liquorpos/backend/internal/xid"
)

const (
	kindProduct = "product"
	kindSale    = "sale"
)

type docKey struct {
	kind string
	id   string
}

// Store keeps every document in process memory. Each product and sale carries
// a version that changes on every committed write, which is what transactions
// validate against at commit time.
type Store struct {
	mu        sync.RWMutex
	products  map[string]domain.Product
	sales     map[string]domain.Sale
	saleItems map[string][]domain.SaleItem
	users     map[string]domain.UserAccount
	admins    map[string]time.Time
	versions  map[docKey]uint64
	seq       uint64
}

func New() *Store {
	return &Store{
		products:  make(map[string]domain.Product),
		sales:     make(map[string]domain.Sale),
		saleItems: make(map[string][]domain.SaleItem),
		users:     make(map[string]domain.UserAccount),
		admins:    make(map[string]time.Time),
		versions:  make(map[docKey]uint64),
	}
}

// NewSeeded returns a store with a small demo catalog and two accounts.
// Seed passwords come from SEED_ADMIN_PASSWORD and SEED_SALES_PASSWORD; the
// dev defaults are only used when those are unset.
func NewSeeded() *Store {
	s := New()
	s.SeedProducts(
		domain.Product{ID: "prod-b1", SKU: "B1", Name: "Beer-Single", Category: "beer", PriceCents: 250, BaseProductSKU: "B1", ContainedUnits: 1, Stock: 100, Threshold: 10},
		domain.Product{ID: "prod-b6", SKU: "B6", Name: "Beer-SixPack", Category: "beer", PriceCents: 1350, BaseProductSKU: "B1", ContainedUnits: 6, Stock: 16, Threshold: 2},
		domain.Product{ID: "prod-b24", SKU: "B24", Name: "Beer-Case", Category: "beer", PriceCents: 4800, BaseProductSKU: "B1", ContainedUnits: 24, Stock: 4, Threshold: 1},
		domain.Product{ID: "prod-w1", SKU: "W1", Name: "Red Wine 750ml", Category: "wine", PriceCents: 1899, BaseProductSKU: "W1", ContainedUnits: 1, Stock: 36, Threshold: 6},
		domain.Product{ID: "prod-w12", SKU: "W12", Name: "Red Wine Case", Category: "wine", PriceCents: 19900, BaseProductSKU: "W1", ContainedUnits: 12, Stock: 3, Threshold: 1},
		domain.Product{ID: "prod-v1", SKU: "V1", Name: "Vodka 1L", Category: "spirits", PriceCents: 2999, BaseProductSKU: "V1", ContainedUnits: 1, Stock: 12, Threshold: 4},
	)

	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	salesPwd := envOr("SEED_SALES_PASSWORD", "sales123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_SALES_PASSWORD") == "" {
		log.Warn().Str("component", "memory-store").Msg("using default dev credentials; set SEED_ADMIN_PASSWORD and SEED_SALES_PASSWORD to override")
	}

	for _, u := range []struct {
		id       string
		email    string
		name     string
		password string
		role     string
	}{
		{"user-admin", "admin@liquorpos.local", "Store Admin", adminPwd, domain.RoleAdministrator},
		{"user-sales", "sales@liquorpos.local", "Front Counter", salesPwd, domain.RoleSales},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatal().Err(err).Str("user", u.email).Msg("failed to hash seed password")
		}
		now := time.Now().UTC()
		s.users[u.id] = domain.UserAccount{
			ID:           u.id,
			Email:        u.email,
			DisplayName:  u.name,
			PasswordHash: string(hash),
			Role:         u.role,
			Active:       true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if u.role == domain.RoleAdministrator {
			s.admins[u.id] = now
		}
	}
	return s
}

// SeedProducts writes catalog records directly, bypassing transactions.
// Missing IDs are generated and the status is derived from stock.
func (s *Store) SeedProducts(products ...domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for _, p := range products {
		if p.ID == "" {
			p.ID = xid.New("prod")
		}
		p.Status = stock.DeriveStatus(p.Stock, p.Threshold)
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		p.UpdatedAt = now
		s.products[p.ID] = p
		s.bump(docKey{kindProduct, p.ID})
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (s *Store) bump(key docKey) {
	s.seq++
	s.versions[key] = s.seq
}

func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := &txn{
		store:       s,
		reads:       make(map[docKey]uint64),
		pendingSKUs: make(map[string]struct{}),
	}
	defer func() { t.closed = true }()

	if err := fn(ctx, t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.commit()
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		if c := cmpString(a.Category, b.Category); c != 0 {
			return c
		}
		return cmpString(a.Name, b.Name)
	})
	return products, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) GetSale(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.sales[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	sale.Items = slices.Clone(s.saleItems[id])
	return &sale, nil
}

func (s *Store) ListSales(_ context.Context, limit int) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0, len(s.sales))
	for _, sale := range s.sales {
		sales = append(sales, sale)
	}
	slices.SortFunc(sales, func(a, b domain.Sale) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmpString(a.ID, b.ID)
	})
	if limit > 0 && len(sales) > limit {
		sales = sales[:limit]
	}
	return sales, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	user.Email = normalizeEmail(user.Email)
	if user.Email == "" || user.PasswordHash == "" {
		return store.ErrInvalidTransaction
	}
	if user.ID == "" {
		user.ID = xid.New("user")
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.ID]; exists {
		return store.ErrInvalidTransaction
	}
	for _, existing := range s.users {
		if existing.Email == user.Email {
			return store.ErrInvalidTransaction
		}
	}
	s.users[user.ID] = user
	return nil
}

func (s *Store) GetUser(_ context.Context, id string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &user, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*domain.UserAccount, error) {
	email = normalizeEmail(email)

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.Email == email {
			return &user, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Email, b.Email)
	})
	return users, nil
}

func (s *Store) UpdateUser(_ context.Context, user domain.UserAccount) error {
	user.Email = normalizeEmail(user.Email)

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[user.ID]
	if !ok {
		return store.ErrNotFound
	}
	for id, other := range s.users {
		if id != user.ID && other.Email == user.Email {
			return store.ErrInvalidTransaction
		}
	}
	user.CreatedAt = existing.CreatedAt
	user.UpdatedAt = time.Now().UTC()
	if user.PasswordHash == "" {
		user.PasswordHash = existing.PasswordHash
	}
	s.users[user.ID] = user
	return nil
}

func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.users, id)
	delete(s.admins, id)
	return nil
}

func (s *Store) IsAdministrator(_ context.Context, uid string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.admins[uid]
	return ok, nil
}

func (s *Store) SetAdministrator(_ context.Context, uid string, admin bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !admin {
		delete(s.admins, uid)
		return nil
	}
	if _, ok := s.users[uid]; !ok {
		return store.ErrNotFound
	}
	if _, ok := s.admins[uid]; !ok {
		s.admins[uid] = time.Now().UTC()
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func cmpString(a string, b string) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

func notFound(kind string, id string) error {
	return fmt.Errorf("%w: %s %s", store.ErrNotFound, kind, id)
}
