package quotes

import (
	"github.com/shopspring/decimal"
)

// Payload is the quote body as the UI submits it. The sync engine never
// inspects it; validation happens once at the API boundary and the
// bytes travel opaque from then on.
type Payload struct {
	CustomerRef string          `json:"customer_ref" validate:"required"`
	Items       []LineItem      `json:"items" validate:"required,min=1,dive"`
	DiscountPct decimal.Decimal `json:"discount_pct"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Total       decimal.Decimal `json:"total"`
	Notes       string          `json:"notes,omitempty"`
}

// LineItem is one priced position on a quote.
type LineItem struct {
	ProductRef  string          `json:"product_ref" validate:"required"`
	Description string          `json:"description,omitempty"`
	Quantity    int             `json:"quantity" validate:"min=1"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}
