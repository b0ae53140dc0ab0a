package orders

import "time"

// OrderStatus tracks fulfilment progress. Transitions are one-way:
// pending -> paid -> packing -> packed -> shipped -> delivered, with
// cancellation possible only from pending or paid.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusPaid      OrderStatus = "paid"
	StatusPacking   OrderStatus = "packing"
	StatusPacked    OrderStatus = "packed"
	StatusShipped   OrderStatus = "shipped"
	StatusDelivered OrderStatus = "delivered"
	StatusCancelled OrderStatus = "cancelled"
)

// PaymentStatus summarises the payment side on the order row.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

var statusRank = map[OrderStatus]int{
	StatusPending:   0,
	StatusPaid:      1,
	StatusPacking:   2,
	StatusPacked:    3,
	StatusShipped:   4,
	StatusDelivered: 5,
}

// CanTransition reports whether from may advance directly to to.
func CanTransition(from, to OrderStatus) bool {
	if to == StatusCancelled {
		return from == StatusPending || from == StatusPaid
	}
	fromRank, ok := statusRank[from]
	if !ok {
		return false
	}
	toRank, ok := statusRank[to]
	if !ok {
		return false
	}
	return toRank == fromRank+1
}

// Order is a durable, priced purchase. Money invariant:
// TotalAmount == SubtotalExclVAT + TotalVAT - DiscountAmount + ShippingCost
// at two decimals. Orders are never deleted; cancellation is a status.
type Order struct {
	ID               int64         `json:"id"`
	OrderNumber      string        `json:"order_number"`
	UserID           *int64        `json:"user_id,omitempty"`
	GuestName        *string       `json:"guest_name,omitempty"`
	GuestEmail       *string       `json:"guest_email,omitempty"`
	GuestPhone       *string       `json:"guest_phone,omitempty"`
	ShippingAddress  string        `json:"shipping_address"`
	ShippingProvince string        `json:"shipping_province"`
	ShippingPostcode string        `json:"shipping_postcode"`
	SubtotalExclVAT  float64       `json:"subtotal_excl_vat"`
	TotalVAT         float64       `json:"total_vat"`
	DiscountAmount   float64       `json:"discount_amount"`
	ShippingCost     float64       `json:"shipping_cost"`
	TotalAmount      float64       `json:"total_amount"`
	VoucherCode      *string       `json:"voucher_code,omitempty"`
	Status           OrderStatus   `json:"status"`
	PaymentStatus    PaymentStatus `json:"payment_status"`
	TrackingNumber   *string       `json:"tracking_number,omitempty"`
	PackingMediaPath *string       `json:"packing_media_path,omitempty"`
	CancelledAt      *time.Time    `json:"cancelled_at,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
	Items            []OrderItem   `json:"items,omitempty"`
}

// OrderItem is an immutable snapshot of product pricing at order time,
// decoupled from later product edits. Invariants:
// UnitPriceInclVAT == UnitPriceExclVAT + UnitVATAmount and
// LineTotalInclVAT == UnitPriceInclVAT * Quantity, both at two decimals.
type OrderItem struct {
	ID               int64   `json:"id"`
	OrderID          int64   `json:"order_id"`
	ProductID        int64   `json:"product_id"`
	ProductName      string  `json:"product_name"`
	SKU              string  `json:"sku"`
	Quantity         int     `json:"quantity"`
	UnitPriceExclVAT float64 `json:"unit_price_excl_vat"`
	VATRate          float64 `json:"vat_rate"`
	UnitVATAmount    float64 `json:"unit_vat_amount"`
	UnitPriceInclVAT float64 `json:"unit_price_incl_vat"`
	LineTotalInclVAT float64 `json:"line_total_incl_vat"`
}
