package service

import (
	"errors"

	"liquorpos/backend/internal/stock"
	"liquorpos/backend/internal/store"
)

var (
	ErrNotAuthenticated    = errors.New("not authenticated")
	ErrNotAuthorized       = errors.New("not authorized")
	ErrSaleNotFound        = errors.New("sale not found")
	ErrAlreadyVoided       = errors.New("sale already voided")
	ErrProductNotFound     = errors.New("product not found")
	ErrTransactionConflict = errors.New("transaction conflict, retries exhausted")
	ErrInvalidRequest      = errors.New("invalid request")
)

const (
	KindInsufficientStock   = "InsufficientStock"
	KindBaseProductNotFound = "BaseProductNotFound"
	KindSaleNotFound        = "SaleNotFound"
	KindAlreadyVoided       = "AlreadyVoided"
	KindNotAuthorized       = "NotAuthorized"
	KindNotAuthenticated    = "NotAuthenticated"
	KindTransactionConflict = "TransactionConflict"
	KindProductNotFound     = "ProductNotFound"
	KindInvalidRequest      = "InvalidRequest"
	KindNotFound            = "NotFound"
	KindInternal            = "Internal"
)

// ErrorKind names the failure category callers receive alongside the message.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, stock.ErrInsufficientStock):
		return KindInsufficientStock
	case errors.Is(err, stock.ErrBaseProductNotFound):
		return KindBaseProductNotFound
	case errors.Is(err, ErrSaleNotFound):
		return KindSaleNotFound
	case errors.Is(err, ErrAlreadyVoided):
		return KindAlreadyVoided
	case errors.Is(err, ErrNotAuthorized):
		return KindNotAuthorized
	case errors.Is(err, ErrNotAuthenticated):
		return KindNotAuthenticated
	case errors.Is(err, ErrTransactionConflict), errors.Is(err, store.ErrConflict):
		return KindTransactionConflict
	case errors.Is(err, ErrProductNotFound):
		return KindProductNotFound
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, store.ErrInvalidTransaction), errors.Is(err, stock.ErrInvalidQuantity):
		return KindInvalidRequest
	case errors.Is(err, store.ErrNotFound):
		return KindNotFound
	default:
		return KindInternal
	}
}
