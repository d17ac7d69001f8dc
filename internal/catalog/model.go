package catalog

import (
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-sewa/internal/pricing"
)

// Product is a rentable listing. QtyOnHand is the size of its reservation
// pool unless variants carve out sub-pools of their own.
type Product struct {
	ID              uuid.UUID         `json:"id"`
	Slug            string            `json:"slug"`
	Title           string            `json:"title"`
	Description     string            `json:"description,omitempty"`
	Rates           pricing.RateTable `json:"rates"`
	SecurityDeposit pricing.Money     `json:"securityDeposit"`
	QtyOnHand       int               `json:"qtyOnHand"`
	Active          bool              `json:"active"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// Variant is a sub-pool of a product (a size, a model year). An empty rate
// table inherits the parent product's rates and deposit.
type Variant struct {
	ID        uuid.UUID         `json:"id"`
	ProductID uuid.UUID         `json:"productId"`
	SKU       string            `json:"sku,omitempty"`
	Title     string            `json:"title"`
	Rates     pricing.RateTable `json:"rates,omitempty"`
	QtyOnHand int               `json:"qtyOnHand"`
	Active    bool              `json:"active"`
}

// RentalTerms is the pricing view of a reservation subject: the rate table
// and deposit that apply when this subject is added to a cart.
type RentalTerms struct {
	SubjectID       uuid.UUID         `json:"subjectId"`
	ProductID       uuid.UUID         `json:"productId"`
	Title           string            `json:"title"`
	Slug            string            `json:"slug"`
	Rates           pricing.RateTable `json:"rates"`
	SecurityDeposit pricing.Money     `json:"securityDeposit"`
}
