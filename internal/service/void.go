package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"liquorpos/backend/internal/domain"
	"liquorpos/backend/internal/stock"
	"liquorpos/backend/internal/store"
)

// VoidSale marks a completed sale voided and returns its units to stock in
// one transaction. Only actors listed in the role registry may void.
func (s *Service) VoidSale(ctx context.Context, saleID string) (result domain.Sale, err error) {
	saleID = strings.TrimSpace(saleID)
	ctx, span := tracer.Start(ctx, "Service.VoidSale", trace.WithAttributes(attribute.String("sale.id", saleID)))
	defer span.End()
	startedAt := time.Now()
	defer func() { s.finish(span, opVoidSale, startedAt, err) }()

	actor, err := s.AuthorizeAdministrator(ctx)
	if err != nil {
		return domain.Sale{}, err
	}
	if saleID == "" {
		return domain.Sale{}, fmt.Errorf("%w: sale id is required", ErrInvalidRequest)
	}

	var voided domain.Sale
	err = s.runTransaction(ctx, opVoidSale, func(ctx context.Context, tx store.Tx) error {
		sale, err := tx.GetSale(ctx, saleID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("%w: %s", ErrSaleNotFound, saleID)
			}
			return err
		}
		if sale.Status == domain.SaleStatusVoided {
			return fmt.Errorf("%w: %s", ErrAlreadyVoided, saleID)
		}

		items, err := tx.ListSaleItems(ctx, saleID)
		if err != nil {
			return err
		}

		ids := make([]string, 0, len(items))
		seen := make(map[string]struct{}, len(items))
		for _, item := range items {
			if _, ok := seen[item.ProductID]; ok {
				continue
			}
			seen[item.ProductID] = struct{}{}
			ids = append(ids, item.ProductID)
		}

		lines := make([]stock.Line, 0, len(items))
		if len(ids) > 0 {
			products, err := tx.GetProducts(ctx, ids)
			if err != nil {
				return productLookupError(err)
			}
			byID := make(map[string]domain.Product, len(products))
			for _, p := range products {
				byID[p.ID] = p
			}
			for _, item := range items {
				lines = append(lines, stock.Line{Product: byID[item.ProductID], Quantity: item.Quantity})
			}
		}

		rs, demand, err := readFamilies(ctx, tx, lines)
		if err != nil {
			return err
		}
		plan, err := rs.Plan(demand, stock.Restore)
		if err != nil {
			return err
		}

		if err := applyStockWrites(ctx, tx, plan); err != nil {
			return err
		}
		now := s.now().UTC()
		by := domain.VoidedBy{UID: actor.UID, Name: actor.DisplayName()}
		if err := tx.MarkSaleVoided(ctx, saleID, now, by); err != nil {
			return err
		}

		voided = *sale
		voided.Status = domain.SaleStatusVoided
		voided.VoidedAt = &now
		voided.VoidedBy = &by
		voided.Items = items
		return nil
	})
	if err != nil {
		return domain.Sale{}, err
	}

	s.invalidateCatalog(ctx)
	salesVoidedTotal.Inc()
	s.logger.Info().
		Str("sale_id", voided.ID).
		Str("voided_by", actor.UID).
		Int64("total_cents", voided.TotalCents).
		Msg("sale voided")
	return voided, nil
}
