package orders

// CheckoutRequest turns a priced cart into an order.
type CheckoutRequest struct {
	CartID           int64   `json:"cart_id" validate:"required,gt=0"`
	UserID           *int64  `json:"user_id,omitempty" validate:"omitempty,gt=0"`
	GuestName        *string `json:"guest_name,omitempty" validate:"omitempty,max=120"`
	GuestEmail       *string `json:"guest_email,omitempty" validate:"omitempty,email"`
	GuestPhone       *string `json:"guest_phone,omitempty" validate:"omitempty,max=20"`
	ShippingAddress  string  `json:"shipping_address" validate:"required,max=500"`
	ShippingProvince string  `json:"shipping_province" validate:"required,max=100"`
	ShippingPostcode string  `json:"shipping_postcode" validate:"required,max=10"`
	// ShippingCost overrides the configured flat fee when set.
	ShippingCost *float64 `json:"shipping_cost,omitempty" validate:"omitempty,gte=0"`
}

// DirectItemRequest is one line of a staff-entered order.
type DirectItemRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gt=0"`
}

// DirectOrderRequest creates an order from an explicit item list, pricing
// the lines from the current product rows.
type DirectOrderRequest struct {
	Items            []DirectItemRequest `json:"items" validate:"required,min=1,dive"`
	UserID           *int64              `json:"user_id,omitempty" validate:"omitempty,gt=0"`
	GuestName        *string             `json:"guest_name,omitempty" validate:"omitempty,max=120"`
	GuestEmail       *string             `json:"guest_email,omitempty" validate:"omitempty,email"`
	GuestPhone       *string             `json:"guest_phone,omitempty" validate:"omitempty,max=20"`
	ShippingAddress  string              `json:"shipping_address" validate:"required,max=500"`
	ShippingProvince string              `json:"shipping_province" validate:"required,max=100"`
	ShippingPostcode string              `json:"shipping_postcode" validate:"required,max=10"`
	ShippingCost     *float64            `json:"shipping_cost,omitempty" validate:"omitempty,gte=0"`
	VoucherCode      *string             `json:"voucher_code,omitempty" validate:"omitempty,max=40"`
	ActorID          int64               `json:"actor_id" validate:"required,gt=0"`
}

// UpdateStatusRequest advances the fulfilment status.
type UpdateStatusRequest struct {
	Status           OrderStatus `json:"status" validate:"required,oneof=paid packing packed shipped delivered"`
	TrackingNumber   *string     `json:"tracking_number,omitempty" validate:"omitempty,max=60"`
	PackingMediaPath *string     `json:"packing_media_path,omitempty" validate:"omitempty,max=255"`
}

// CancelRequest cancels an order and restores its stock.
type CancelRequest struct {
	ActorID int64  `json:"actor_id" validate:"required,gt=0"`
	Reason  string `json:"reason" validate:"omitempty,max=500"`
}

// ListOrdersRequest filters the order listing.
type ListOrdersRequest struct {
	Status        *OrderStatus   `json:"status,omitempty"`
	PaymentStatus *PaymentStatus `json:"payment_status,omitempty"`
	UserID        *int64         `json:"user_id,omitempty"`
	Limit         int            `json:"limit" validate:"gte=0,lte=1000"`
	Offset        int            `json:"offset" validate:"gte=0"`
}
