// Package stock reconciles on-hand quantities across a base product and its
// packaging variants. It performs no I/O: callers read products into a ReadSet
// and apply the WriteSet that Plan returns.
package stock

import (
	"fmt"
	"math"
	"sort"

	"liquorpos/backend/internal/domain"
)

type Direction int

const (
	// Remove takes units out of stock (a sale).
	Remove Direction = iota
	// Restore returns units to stock (a void).
	Restore
)

func (d Direction) String() string {
	if d == Restore {
		return "restore"
	}
	return "remove"
}

func DeriveStatus(stock int, threshold int) domain.StockStatus {
	switch {
	case stock <= 0:
		return domain.StatusOutOfStock
	case stock <= threshold:
		return domain.StatusLowStock
	default:
		return domain.StatusInStock
	}
}

// Line is one product quantity taking part in a reconciliation.
type Line struct {
	Product  domain.Product
	Quantity int
}

// Demand maps a base SKU to the number of base units moving in or out.
type Demand map[string]int

func NewDemand(lines []Line) (Demand, error) {
	demand := make(Demand, len(lines))
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: %s has quantity %d", ErrInvalidQuantity, line.Product.SKU, line.Quantity)
		}
		units := line.Product.Units()
		if line.Quantity > math.MaxInt/units {
			return nil, fmt.Errorf("%w: %s quantity %d overflows base units", ErrInvalidQuantity, line.Product.SKU, line.Quantity)
		}
		base := line.Product.BaseSKU()
		moved := units * line.Quantity
		if demand[base] > math.MaxInt-moved {
			return nil, fmt.Errorf("%w: demand for %s overflows base units", ErrInvalidQuantity, base)
		}
		demand[base] += moved
	}
	return demand, nil
}

// BaseSKUs returns the affected base SKUs in sorted order.
func (d Demand) BaseSKUs() []string {
	skus := make([]string, 0, len(d))
	for sku := range d {
		skus = append(skus, sku)
	}
	sort.Strings(skus)
	return skus
}

// Family is a base product together with every product denominated in it.
// Members always includes Base.
type Family struct {
	Base    domain.Product
	Members []domain.Product
}

// ReadSet holds the families read inside a transaction. It is the only input
// Plan accepts, so every document a write depends on has been read first.
type ReadSet struct {
	families map[string]Family
}

// NewReadSet groups fetched products into families for the given base SKUs.
// Products may be passed more than once; duplicates are collapsed by ID.
func NewReadSet(baseSKUs []string, products []domain.Product) (*ReadSet, error) {
	byID := make(map[string]domain.Product, len(products))
	ordered := make([]domain.Product, 0, len(products))
	for _, p := range products {
		key := p.ID
		if key == "" {
			key = "sku:" + p.SKU
		}
		if _, seen := byID[key]; seen {
			continue
		}
		byID[key] = p
		ordered = append(ordered, p)
	}

	families := make(map[string]Family, len(baseSKUs))
	for _, baseSKU := range baseSKUs {
		if _, done := families[baseSKU]; done {
			continue
		}
		family := Family{}
		found := false
		for _, p := range ordered {
			if p.SKU == baseSKU && p.IsBase() {
				family.Base = p
				found = true
				break
			}
		}
		if !found {
			return nil, &BaseProductNotFoundError{BaseSKU: baseSKU}
		}

		family.Members = append(family.Members, family.Base)
		for _, p := range ordered {
			if p.SKU == baseSKU || p.BaseSKU() != baseSKU {
				continue
			}
			family.Members = append(family.Members, p)
		}
		sort.Slice(family.Members, func(i, j int) bool {
			return family.Members[i].SKU < family.Members[j].SKU
		})
		families[baseSKU] = family
	}

	return &ReadSet{families: families}, nil
}

func (rs *ReadSet) Family(baseSKU string) (Family, bool) {
	family, ok := rs.families[baseSKU]
	return family, ok
}

// StockWrite is the new stock and status for one product.
type StockWrite struct {
	ProductID     string             `json:"product_id"`
	SKU           string             `json:"sku"`
	BaseSKU       string             `json:"base_sku"`
	PreviousStock int                `json:"previous_stock"`
	Stock         int                `json:"stock"`
	Status        domain.StockStatus `json:"status"`
}

type WriteSet struct {
	Direction Direction
	Writes    []StockWrite
}

// Plan computes the stock writes that move demand out of (Remove) or back
// into (Restore) each family. A Remove that would take a base product below
// zero fails with *InsufficientStockError and yields no writes.
func (rs *ReadSet) Plan(demand Demand, direction Direction) (WriteSet, error) {
	plan := WriteSet{Direction: direction}
	for _, baseSKU := range demand.BaseSKUs() {
		family, ok := rs.families[baseSKU]
		if !ok {
			return WriteSet{}, &BaseProductNotFoundError{BaseSKU: baseSKU}
		}

		units := demand[baseSKU]
		newBase := family.Base.Stock + units
		if direction == Remove {
			newBase = family.Base.Stock - units
			if newBase < 0 {
				return WriteSet{}, &InsufficientStockError{
					BaseSKU:   baseSKU,
					Requested: units,
					Available: family.Base.Stock,
				}
			}
		}

		for _, member := range family.Members {
			next := newBase
			if member.SKU != family.Base.SKU {
				next = floorDiv(newBase, member.Units())
			}
			plan.Writes = append(plan.Writes, StockWrite{
				ProductID:     member.ID,
				SKU:           member.SKU,
				BaseSKU:       baseSKU,
				PreviousStock: member.Stock,
				Stock:         next,
				Status:        DeriveStatus(next, member.Threshold),
			})
		}
	}
	return plan, nil
}

func floorDiv(a int, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
