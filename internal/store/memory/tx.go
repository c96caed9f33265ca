package memory

import (
	"context"
	"fmt"
	"slices"
	"time"

	"liquorpos/backend/internal/domain"
	"liquorpos/backend/internal/store"
)

// txn buffers writes until commit. Reads go straight to the committed state
// and remember the version they saw; commit fails with store.ErrConflict if
// any of those versions moved in the meantime.
type txn struct {
	store       *Store
	reads       map[docKey]uint64
	writes      []pendingWrite
	pendingSKUs map[string]struct{}
	closed      bool
}

type pendingWrite struct {
	key   docKey
	check func(s *Store) error
	apply func(s *Store, now time.Time)
}

func (t *txn) beginRead() error {
	if t.closed {
		return store.ErrInvalidTransaction
	}
	if len(t.writes) > 0 {
		return store.ErrReadAfterWrite
	}
	return nil
}

func (t *txn) beginWrite() error {
	if t.closed {
		return store.ErrInvalidTransaction
	}
	return nil
}

// observe must be called with the store lock held.
func (t *txn) observe(key docKey) {
	if _, seen := t.reads[key]; seen {
		return
	}
	t.reads[key] = t.store.versions[key]
}

func (t *txn) commit() error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, seen := range t.reads {
		if s.versions[key] != seen {
			return fmt.Errorf("%w: %s %s changed since it was read", store.ErrConflict, key.kind, key.id)
		}
	}
	for _, w := range t.writes {
		if w.check == nil {
			continue
		}
		if err := w.check(s); err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	for _, w := range t.writes {
		w.apply(s, now)
		s.bump(w.key)
	}
	return nil
}

func (t *txn) GetProducts(ctx context.Context, ids []string) ([]domain.Product, error) {
	if err := t.beginRead(); err != nil {
		return nil, err
	}
	s := t.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(ids))
	for _, id := range ids {
		t.observe(docKey{kindProduct, id})
		p, ok := s.products[id]
		if !ok {
			return nil, notFound(kindProduct, id)
		}
		products = append(products, p)
	}
	return products, nil
}

func (t *txn) FindProductsBySKUs(ctx context.Context, skus []string) ([]domain.Product, error) {
	return t.findProducts(func(p domain.Product) bool {
		return slices.Contains(skus, p.SKU)
	})
}

func (t *txn) FindProductsByBaseSKUs(ctx context.Context, baseSKUs []string) ([]domain.Product, error) {
	return t.findProducts(func(p domain.Product) bool {
		return slices.Contains(baseSKUs, p.BaseSKU())
	})
}

func (t *txn) findProducts(match func(domain.Product) bool) ([]domain.Product, error) {
	if err := t.beginRead(); err != nil {
		return nil, err
	}
	s := t.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, 8)
	for id, p := range s.products {
		if !match(p) {
			continue
		}
		t.observe(docKey{kindProduct, id})
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		return cmpString(a.SKU, b.SKU)
	})
	return products, nil
}

func (t *txn) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	if err := t.beginRead(); err != nil {
		return nil, err
	}
	s := t.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	t.observe(docKey{kindSale, id})
	sale, ok := s.sales[id]
	if !ok {
		return nil, notFound(kindSale, id)
	}
	return &sale, nil
}

func (t *txn) ListSaleItems(ctx context.Context, saleID string) ([]domain.SaleItem, error) {
	if err := t.beginRead(); err != nil {
		return nil, err
	}
	s := t.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.saleItems[saleID]), nil
}

func (t *txn) CreateProduct(ctx context.Context, product domain.Product) error {
	if err := t.beginWrite(); err != nil {
		return err
	}
	if product.ID == "" || product.SKU == "" {
		return store.ErrInvalidTransaction
	}
	if _, dup := t.pendingSKUs[product.SKU]; dup {
		return store.ErrInvalidTransaction
	}
	t.pendingSKUs[product.SKU] = struct{}{}

	t.writes = append(t.writes, pendingWrite{
		key: docKey{kindProduct, product.ID},
		check: func(s *Store) error {
			if _, exists := s.products[product.ID]; exists {
				return store.ErrInvalidTransaction
			}
			for _, p := range s.products {
				if p.SKU == product.SKU {
					return fmt.Errorf("%w: sku %s already exists", store.ErrInvalidTransaction, product.SKU)
				}
			}
			return nil
		},
		apply: func(s *Store, now time.Time) {
			p := product
			if p.CreatedAt.IsZero() {
				p.CreatedAt = now
			}
			p.UpdatedAt = now
			s.products[p.ID] = p
		},
	})
	return nil
}

func (t *txn) UpdateProductStock(ctx context.Context, id string, qty int, status domain.StockStatus) error {
	if err := t.beginWrite(); err != nil {
		return err
	}
	t.writes = append(t.writes, pendingWrite{
		key: docKey{kindProduct, id},
		check: func(s *Store) error {
			if _, ok := s.products[id]; !ok {
				return notFound(kindProduct, id)
			}
			return nil
		},
		apply: func(s *Store, now time.Time) {
			p := s.products[id]
			p.Stock = qty
			p.Status = status
			p.UpdatedAt = now
			s.products[id] = p
		},
	})
	return nil
}

func (t *txn) CreateSale(ctx context.Context, sale domain.Sale) error {
	if err := t.beginWrite(); err != nil {
		return err
	}
	if sale.ID == "" {
		return store.ErrInvalidTransaction
	}
	items := slices.Clone(sale.Items)
	sale.Items = nil

	t.writes = append(t.writes, pendingWrite{
		key: docKey{kindSale, sale.ID},
		check: func(s *Store) error {
			if _, exists := s.sales[sale.ID]; exists {
				return fmt.Errorf("%w: sale %s already exists", store.ErrInvalidTransaction, sale.ID)
			}
			return nil
		},
		apply: func(s *Store, _ time.Time) {
			s.sales[sale.ID] = sale
			s.saleItems[sale.ID] = items
		},
	})
	return nil
}

func (t *txn) MarkSaleVoided(ctx context.Context, id string, at time.Time, by domain.VoidedBy) error {
	if err := t.beginWrite(); err != nil {
		return err
	}
	t.writes = append(t.writes, pendingWrite{
		key: docKey{kindSale, id},
		check: func(s *Store) error {
			sale, ok := s.sales[id]
			if !ok {
				return notFound(kindSale, id)
			}
			if sale.Status != domain.SaleStatusCompleted {
				return fmt.Errorf("%w: sale %s is %s", store.ErrInvalidTransaction, id, sale.Status)
			}
			return nil
		},
		apply: func(s *Store, _ time.Time) {
			sale := s.sales[id]
			voidedAt := at
			voidedBy := by
			sale.Status = domain.SaleStatusVoided
			sale.VoidedAt = &voidedAt
			sale.VoidedBy = &voidedBy
			s.sales[id] = sale
		},
	})
	return nil
}
