package stock

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrBaseProductNotFound = errors.New("base product not found")
	ErrInvalidQuantity     = errors.New("invalid quantity")
)

// InsufficientStockError reports a sale that would drive a base SKU below zero.
// Requested and Available are both expressed in base units.
type InsufficientStockError struct {
	BaseSKU   string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("not enough stock for %s: required %d base units, available %d", e.BaseSKU, e.Requested, e.Available)
}

func (e *InsufficientStockError) Shortfall() int {
	return e.Requested - e.Available
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

type BaseProductNotFoundError struct {
	BaseSKU string
}

func (e *BaseProductNotFoundError) Error() string {
	return fmt.Sprintf("base product %q not found", e.BaseSKU)
}

func (e *BaseProductNotFoundError) Is(target error) bool {
	return target == ErrBaseProductNotFound
}
