package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"storefront/pkg/pricing"
)

// Order status values written by the checkout flow. Status is free text, these
// are just the ones the store itself produces.
const (
	OrderStatusPending = "pending"
	OrderStatusPaid    = "paid"
)

func init() {
	// Money goes over the wire as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// DefaultCurrency is used when an incoming order carries no currency.
const DefaultCurrency = "eur"

// LineItem represents a single product/size/quantity/price tuple within an order.
type LineItem struct {
	Name     string          `json:"name" validate:"required"`
	Size     string          `json:"size"`
	Quantity int             `json:"quantity" validate:"gte=1"`
	Price    decimal.Decimal `json:"price" validate:"gte=0"` // unit price
}

// Address is a postal address attached to an order.
type Address struct {
	Name       string  `json:"name"`
	Line1      string  `json:"line1"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city"`
	State      string  `json:"state,omitempty"`
	PostalCode string  `json:"postalCode"`
	Country    string  `json:"country"`
}

// PaymentDetail is a snapshot of what the payment processor reported.
type PaymentDetail struct {
	PaymentIntentID string `json:"paymentIntentId,omitempty"`
	CustomerID      string `json:"customerId,omitempty"`
	PaymentMethodID string `json:"paymentMethodId,omitempty"`
	Fingerprint     string `json:"fingerprint,omitempty"`
	RiskScore       *int   `json:"riskScore,omitempty" validate:"omitempty,gte=0,lte=100"`
	RiskLevel       string `json:"riskLevel,omitempty"`
}

// Order represents one completed or pending purchase. Items, addresses and the
// payment snapshot are stored as JSON documents next to the scalar columns.
type Order struct {
	ID               string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	PaymentSessionID string          `json:"paymentSessionId" gorm:"uniqueIndex;type:varchar(255)" validate:"required"`
	Amount           decimal.Decimal `json:"amount" gorm:"type:decimal(12,2)"`
	Currency         string          `json:"currency" gorm:"type:varchar(8)"`
	Status           string          `json:"status" gorm:"type:varchar(32);index"`
	ShippingType     *string         `json:"shippingType,omitempty" gorm:"type:varchar(100)"`
	Fulfilled        bool            `json:"fulfilled" gorm:"not null;default:false;index"`
	Items            []LineItem      `json:"items" gorm:"serializer:json;type:text" validate:"required,min=1,dive"`
	ShippingAddress  *Address        `json:"shippingAddress,omitempty" gorm:"serializer:json;type:text"`
	BillingAddress   *Address        `json:"billingAddress,omitempty" gorm:"serializer:json;type:text"`
	PaymentDetail    *PaymentDetail  `json:"paymentDetail,omitempty" gorm:"serializer:json;type:text"`
	CreatedAt        time.Time       `json:"createdAt" gorm:"index"`
	UpdatedAt        time.Time       `json:"updatedAt"`

	// Derived on read, never stored.
	Subtotal     decimal.Decimal `json:"subtotal" gorm:"-"`
	ShippingCost decimal.Decimal `json:"shippingCost" gorm:"-"`
}

// OrderFilter narrows ListOrders. Zero values mean "no constraint".
type OrderFilter struct {
	Fulfilled *bool
	Status    string
	Since     time.Time // strictly after
	Limit     int
}

// PricingItems converts the line items for the pricing calculator.
func (o *Order) PricingItems() []pricing.Item {
	items := make([]pricing.Item, len(o.Items))
	for i, li := range o.Items {
		items[i] = pricing.Item{Quantity: li.Quantity, UnitPrice: li.Price}
	}
	return items
}

// Totals prices the order from its line items and shipping type.
func (o *Order) Totals() pricing.Totals {
	return pricing.Calculate(o.PricingItems(), o.ShippingType)
}

// ApplyTotals fills the derived Subtotal and ShippingCost fields.
func (o *Order) ApplyTotals() pricing.Totals {
	t := o.Totals()
	o.Subtotal = t.Subtotal
	o.ShippingCost = t.ShippingCost
	return t
}

// Summary is the one-line description used in notifications,
// e.g. "Hoodie + 2 others - Totaling €45.00".
func (o *Order) Summary() string {
	total := pricing.FormatEUR(o.Totals().Total)
	switch len(o.Items) {
	case 0:
		return fmt.Sprintf("New order - Totaling %s", total)
	case 1:
		return fmt.Sprintf("%s - Totaling %s", o.Items[0].Name, total)
	default:
		return fmt.Sprintf("%s + %d others - Totaling %s", o.Items[0].Name, len(o.Items)-1, total)
	}
}
