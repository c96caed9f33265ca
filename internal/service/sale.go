package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"liquorpos/backend/internal/domain"
	"liquorpos/backend/internal/stock"
	"liquorpos/backend/internal/store"
	"liquorpos/backend/internal/validation"
	"liquorpos/backend/internal/xid"
)

type totals struct {
	subtotal int64
	tax      int64
	total    int64
	paid     int64
	change   int64
}

// CompleteSale records a sale and removes its units from stock in one
// transaction. Prices and product names are taken from the catalog as read
// inside the transaction; the cart's prices are advisory.
func (s *Service) CompleteSale(ctx context.Context, req domain.CompleteSaleRequest) (result domain.Sale, err error) {
	ctx, span := tracer.Start(ctx, "Service.CompleteSale", trace.WithAttributes(
		attribute.Int("cart.lines", len(req.Items)),
		attribute.String("payment.method", req.Payment.Method),
	))
	defer span.End()
	startedAt := time.Now()
	defer func() { s.finish(span, opCompleteSale, startedAt, err) }()

	actor, ok := ActorFromContext(ctx)
	if !ok || actor.UID == "" {
		return domain.Sale{}, ErrNotAuthenticated
	}

	req.Payment.Method = strings.ToLower(strings.TrimSpace(req.Payment.Method))
	for i := range req.Items {
		req.Items[i].ProductID = strings.TrimSpace(req.Items[i].ProductID)
	}
	if err := validation.Struct(req); err != nil {
		return domain.Sale{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	rate, err := s.resolveTaxRate(req.Payment.TaxRate)
	if err != nil {
		return domain.Sale{}, err
	}
	productIDs := uniqueProductIDs(req.Items)

	var committed domain.Sale
	err = s.runTransaction(ctx, opCompleteSale, func(ctx context.Context, tx store.Tx) error {
		products, err := tx.GetProducts(ctx, productIDs)
		if err != nil {
			return productLookupError(err)
		}
		byID := make(map[string]domain.Product, len(products))
		for _, p := range products {
			byID[p.ID] = p
		}

		lines := make([]stock.Line, 0, len(req.Items))
		for _, item := range req.Items {
			lines = append(lines, stock.Line{Product: byID[item.ProductID], Quantity: item.Quantity})
		}
		rs, demand, err := readFamilies(ctx, tx, lines)
		if err != nil {
			return err
		}

		plan, err := rs.Plan(demand, stock.Remove)
		if err != nil {
			return err
		}
		t, err := computeTotals(lines, rate, req.Payment)
		if err != nil {
			return err
		}

		if err := applyStockWrites(ctx, tx, plan); err != nil {
			return err
		}

		now := s.now().UTC()
		sale := domain.Sale{
			ID:              xid.New("sale"),
			SubtotalCents:   t.subtotal,
			TaxCents:        t.tax,
			TotalCents:      t.total,
			AmountPaidCents: t.paid,
			ChangeDueCents:  t.change,
			PaymentMethod:   req.Payment.Method,
			SalespersonID:   actor.UID,
			SalespersonName: actor.DisplayName(),
			Status:          domain.SaleStatusCompleted,
			CreatedAt:       now,
			Items:           make([]domain.SaleItem, 0, len(lines)),
		}
		for _, line := range lines {
			sale.Items = append(sale.Items, domain.SaleItem{
				ID:          xid.New("item"),
				SaleID:      sale.ID,
				ProductID:   line.Product.ID,
				ProductName: line.Product.Name,
				Quantity:    line.Quantity,
				PriceCents:  line.Product.PriceCents,
				CreatedAt:   now,
			})
		}
		if err := tx.CreateSale(ctx, sale); err != nil {
			return err
		}
		committed = sale
		return nil
	})
	if err != nil {
		return domain.Sale{}, err
	}

	s.invalidateCatalog(ctx)
	salesCompletedTotal.WithLabelValues(committed.PaymentMethod).Inc()
	span.SetAttributes(attribute.String("sale.id", committed.ID), attribute.Int64("sale.total_cents", committed.TotalCents))
	s.logger.Info().
		Str("sale_id", committed.ID).
		Str("salesperson_id", committed.SalespersonID).
		Int64("total_cents", committed.TotalCents).
		Int("lines", len(committed.Items)).
		Msg("sale completed")
	return committed, nil
}

// readFamilies is the read phase shared by sale and void: it loads the base
// product and every linked variant for each base SKU the lines touch.
func readFamilies(ctx context.Context, tx store.Tx, lines []stock.Line) (*stock.ReadSet, stock.Demand, error) {
	demand, err := stock.NewDemand(lines)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	baseSKUs := demand.BaseSKUs()
	if len(baseSKUs) == 0 {
		rs, err := stock.NewReadSet(nil, nil)
		return rs, demand, err
	}

	bases, err := tx.FindProductsBySKUs(ctx, baseSKUs)
	if err != nil {
		return nil, nil, err
	}
	members, err := tx.FindProductsByBaseSKUs(ctx, baseSKUs)
	if err != nil {
		return nil, nil, err
	}
	rs, err := stock.NewReadSet(baseSKUs, append(bases, members...))
	if err != nil {
		return nil, nil, err
	}
	return rs, demand, nil
}

func applyStockWrites(ctx context.Context, tx store.Tx, plan stock.WriteSet) error {
	for _, w := range plan.Writes {
		if err := tx.UpdateProductStock(ctx, w.ProductID, w.Stock, w.Status); err != nil {
			return fmt.Errorf("update stock for %s: %w", w.SKU, err)
		}
	}
	return nil
}

func computeTotals(lines []stock.Line, rate decimal.Decimal, payment domain.PaymentDetails) (totals, error) {
	var t totals
	for _, line := range lines {
		qty := int64(line.Quantity)
		if line.Product.PriceCents < 0 || (qty > 0 && line.Product.PriceCents > (math.MaxInt64-t.subtotal)/qty) {
			return totals{}, fmt.Errorf("%w: subtotal overflows at %s", ErrInvalidRequest, line.Product.SKU)
		}
		t.subtotal += line.Product.PriceCents * qty
	}
	t.tax = decimal.NewFromInt(t.subtotal).Mul(rate).Round(0).IntPart()
	if t.tax > math.MaxInt64-t.subtotal {
		return totals{}, fmt.Errorf("%w: total overflows", ErrInvalidRequest)
	}
	t.total = t.subtotal + t.tax

	switch payment.Method {
	case domain.PaymentCash:
		if payment.AmountPaidCents < t.total {
			return totals{}, fmt.Errorf("%w: amount paid %d is less than total %d", ErrInvalidRequest, payment.AmountPaidCents, t.total)
		}
		t.paid = payment.AmountPaidCents
		t.change = t.paid - t.total
	case domain.PaymentCard:
		t.paid = t.total
	default:
		return totals{}, fmt.Errorf("%w: unsupported payment method %q", ErrInvalidRequest, payment.Method)
	}
	return t, nil
}

func (s *Service) resolveTaxRate(override *decimal.Decimal) (decimal.Decimal, error) {
	if override == nil {
		return s.taxRate, nil
	}
	if err := domain.ValidateTaxRate(*override); err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return *override, nil
}

func uniqueProductIDs(items []domain.CartItem) []string {
	seen := make(map[string]struct{}, len(items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return ids
}

func productLookupError(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrProductNotFound, err)
	}
	return err
}
