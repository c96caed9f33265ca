package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"liquorpos/backend/internal/domain"
	"liquorpos/backend/internal/store"
)

// txn adapts *sql.Tx to store.Tx. Rows read here are locked FOR UPDATE so
// concurrent writers to the same family queue behind the lock instead of
// failing at commit.
type txn struct {
	tx    *sql.Tx
	wrote bool
}

func (t *txn) beginRead() error {
	if t.wrote {
		return store.ErrReadAfterWrite
	}
	return nil
}

func (t *txn) GetProducts(ctx context.Context, ids []string) ([]domain.Product, error) {
	if err := t.beginRead(); err != nil {
		return nil, err
	}
	products, err := queryProducts(ctx, t.tx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	ordered := make([]domain.Product, 0, len(ids))
	for _, id := range ids {
		p, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, id)
		}
		ordered = append(ordered, p)
	}
	return ordered, nil
}

func (t *txn) FindProductsBySKUs(ctx context.Context, skus []string) ([]domain.Product, error) {
	if err := t.beginRead(); err != nil {
		return nil, err
	}
	return queryProducts(ctx, t.tx, `
		SELECT `+productColumns+`
		FROM products
		WHERE sku = ANY($1)
		ORDER BY sku
		FOR UPDATE
	`, skus)
}

func (t *txn) FindProductsByBaseSKUs(ctx context.Context, baseSKUs []string) ([]domain.Product, error) {
	if err := t.beginRead(); err != nil {
		return nil, err
	}
	return queryProducts(ctx, t.tx, `
		SELECT `+productColumns+`
		FROM products
		WHERE base_product_sku = ANY($1)
			OR (base_product_sku = '' AND sku = ANY($1))
		ORDER BY sku
		FOR UPDATE
	`, baseSKUs)
}

func (t *txn) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	if err := t.beginRead(); err != nil {
		return nil, err
	}
	sale, err := scanSale(t.tx.QueryRowContext(ctx, `
		SELECT `+saleColumns+`
		FROM sales
		WHERE id = $1
		FOR UPDATE
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: sale %s", store.ErrNotFound, id)
		}
		return nil, err
	}
	return &sale, nil
}

func (t *txn) ListSaleItems(ctx context.Context, saleID string) ([]domain.SaleItem, error) {
	if err := t.beginRead(); err != nil {
		return nil, err
	}
	return querySaleItems(ctx, t.tx, saleID)
}

func (t *txn) CreateProduct(ctx context.Context, p domain.Product) error {
	t.wrote = true
	if p.ID == "" || p.SKU == "" {
		return store.ErrInvalidTransaction
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, p.ID, p.SKU, p.Name, p.Category, p.Description, p.PriceCents, p.BaseProductSKU,
		p.ContainedUnits, p.Stock, p.Threshold, string(p.Status), p.CreatedAt, now)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: sku %s already exists", store.ErrInvalidTransaction, p.SKU)
		}
		return err
	}
	return nil
}

func (t *txn) UpdateProductStock(ctx context.Context, id string, qty int, status domain.StockStatus) error {
	t.wrote = true
	res, err := t.tx.ExecContext(ctx, `
		UPDATE products
		SET stock = $2, status = $3, updated_at = now()
		WHERE id = $1
	`, id, qty, string(status))
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (t *txn) CreateSale(ctx context.Context, sale domain.Sale) error {
	t.wrote = true
	if sale.ID == "" {
		return store.ErrInvalidTransaction
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO sales (
			id, subtotal_cents, tax_cents, total_cents, amount_paid_cents, change_due_cents,
			payment_method, salesperson_id, salesperson_name, status, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, sale.ID, sale.SubtotalCents, sale.TaxCents, sale.TotalCents, sale.AmountPaidCents, sale.ChangeDueCents,
		sale.PaymentMethod, sale.SalespersonID, sale.SalespersonName, sale.Status, sale.CreatedAt)
	if err != nil {
		return err
	}

	for i, item := range sale.Items {
		_, err := t.tx.ExecContext(ctx, `
			INSERT INTO sale_items (id, sale_id, position, product_id, product_name, quantity, price_cents, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, item.ID, sale.ID, i, item.ProductID, item.ProductName, item.Quantity, item.PriceCents, item.CreatedAt)
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *txn) MarkSaleVoided(ctx context.Context, id string, at time.Time, by domain.VoidedBy) error {
	t.wrote = true
	res, err := t.tx.ExecContext(ctx, `
		UPDATE sales
		SET status = $2, voided_at = $3, voided_by_uid = $4, voided_by_name = $5
		WHERE id = $1 AND status = $6
	`, id, domain.SaleStatusVoided, at, by.UID, nullIfEmpty(by.Name), domain.SaleStatusCompleted)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: sale %s is not completed", store.ErrInvalidTransaction, id)
	}
	return nil
}
