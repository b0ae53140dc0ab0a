package payments

import "time"

// UploadSlipRequest attaches a transfer slip to an order. Re-uploading on an
// existing pending or failed payment replaces the slip in place.
type UploadSlipRequest struct {
	OrderID       int64   `json:"order_id" validate:"required,gt=0"`
	Amount        float64 `json:"amount" validate:"required,gt=0"`
	SlipImagePath string  `json:"slip_image_path" validate:"required,max=255"`
}

// ManualPaymentRequest records a payment staff verified out of band. The
// payment is confirmed in the same operation.
type ManualPaymentRequest struct {
	OrderID      int64      `json:"order_id" validate:"required,gt=0"`
	Amount       float64    `json:"amount" validate:"required,gt=0"`
	Method       Method     `json:"method" validate:"required,oneof=bank_transfer cash"`
	TransferDate *time.Time `json:"transfer_date,omitempty"`
	ActorID      int64      `json:"actor_id" validate:"required,gt=0"`
}
