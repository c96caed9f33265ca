package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type StockStatus string

const (
	StatusInStock    StockStatus = "In Stock"
	StatusLowStock   StockStatus = "Low Stock"
	StatusOutOfStock StockStatus = "Out of Stock"
)

const (
	RoleAdministrator = "administrator"
	RoleSales         = "sales"
)

const (
	PaymentCash = "cash"
	PaymentCard = "card"
)

const (
	SaleStatusCompleted = "completed"
	SaleStatusVoided    = "voided"
)

// Product is a catalog record. Stock is denominated in units of the product's
// own SKU; a packaging variant points at its single-unit base through
// BaseProductSKU and ContainedUnits.
type Product struct {
	ID             string      `json:"id"`
	SKU            string      `json:"sku"`
	Name           string      `json:"name"`
	Category       string      `json:"category"`
	Description    string      `json:"description,omitempty"`
	PriceCents     int64       `json:"price_cents"`
	BaseProductSKU string      `json:"base_product_sku"`
	ContainedUnits int         `json:"contained_units"`
	Stock          int         `json:"stock"`
	Threshold      int         `json:"threshold"`
	Status         StockStatus `json:"status"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// BaseSKU returns the SKU this product's stock is reconciled against.
func (p Product) BaseSKU() string {
	if p.BaseProductSKU == "" {
		return p.SKU
	}
	return p.BaseProductSKU
}

// Units returns how many base units one unit of this product holds.
func (p Product) Units() int {
	if p.ContainedUnits < 1 {
		return 1
	}
	return p.ContainedUnits
}

func (p Product) IsBase() bool {
	return p.BaseSKU() == p.SKU
}

type ProductCreateRequest struct {
	SKU            string `json:"sku" validate:"required,max=64"`
	Name           string `json:"name" validate:"required,max=160"`
	Category       string `json:"category" validate:"required,max=80"`
	Description    string `json:"description" validate:"max=1000"`
	PriceCents     int64  `json:"price_cents" validate:"gte=1"`
	BaseProductSKU string `json:"base_product_sku" validate:"max=64"`
	ContainedUnits int    `json:"contained_units" validate:"gte=0"`
	Stock          int    `json:"stock" validate:"gte=0"`
	Threshold      int    `json:"threshold" validate:"gte=0"`
}

type CartItem struct {
	ProductID  string `json:"product_id" validate:"required"`
	Quantity   int    `json:"quantity" validate:"gte=1,lte=100000"`
	PriceCents int64  `json:"price_cents" validate:"gte=0"`
}

type PaymentDetails struct {
	Method          string           `json:"method" validate:"required,oneof=cash card"`
	AmountPaidCents int64            `json:"amount_paid_cents" validate:"gte=0"`
	TaxRate         *decimal.Decimal `json:"tax_rate,omitempty"`
}

type CompleteSaleRequest struct {
	Items   []CartItem     `json:"items" validate:"required,min=1,dive"`
	Payment PaymentDetails `json:"payment"`
}

type CompleteSaleResponse struct {
	SaleID string     `json:"sale_id"`
	Items  []SaleItem `json:"items"`
	Sale   Sale       `json:"sale"`
}

type VoidSaleResponse struct {
	OK   bool `json:"ok"`
	Sale Sale `json:"sale"`
}

type VoidedBy struct {
	UID  string `json:"uid"`
	Name string `json:"name"`
}

// Sale holds the totals captured at checkout. Financial fields are never
// recomputed after creation.
type Sale struct {
	ID              string     `json:"id"`
	SubtotalCents   int64      `json:"subtotal_cents"`
	TaxCents        int64      `json:"tax_cents"`
	TotalCents      int64      `json:"total_cents"`
	AmountPaidCents int64      `json:"amount_paid_cents"`
	ChangeDueCents  int64      `json:"change_due_cents"`
	PaymentMethod   string     `json:"payment_method"`
	SalespersonID   string     `json:"salesperson_id"`
	SalespersonName string     `json:"salesperson_name"`
	Status          string     `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	VoidedAt        *time.Time `json:"voided_at,omitempty"`
	VoidedBy        *VoidedBy  `json:"voided_by,omitempty"`
	Items           []SaleItem `json:"items,omitempty"`
}

type SaleItem struct {
	ID          string    `json:"id"`
	SaleID      string    `json:"sale_id"`
	ProductID   string    `json:"product_id"`
	ProductName string    `json:"product_name"`
	Quantity    int       `json:"quantity"`
	PriceCents  int64     `json:"price_cents"`
	CreatedAt   time.Time `json:"created_at"`
}

type Actor struct {
	UID   string `json:"uid"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// DisplayName falls back to the email when no name is on record.
func (a Actor) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.Email
}

type UserAccount struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type UserCreateRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
	DisplayName string `json:"display_name" validate:"required,max=120"`
	Role        string `json:"role" validate:"required,oneof=administrator sales"`
}

type UserUpdateRequest struct {
	DisplayName *string `json:"display_name,omitempty" validate:"omitempty,max=120"`
	Role        *string `json:"role,omitempty" validate:"omitempty,oneof=administrator sales"`
	Active      *bool   `json:"active,omitempty"`
	Password    *string `json:"password,omitempty" validate:"omitempty,min=8,max=72"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	UID         string `json:"uid"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

// ValidateTaxRate accepts fractions in [0, 1).
func ValidateTaxRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("tax rate %s must be in [0, 1)", rate.String())
	}
	return nil
}
