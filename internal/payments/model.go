package payments

import (
	"encoding/json"
	"time"
)

// Status tracks payment verification. verified is terminal-success and
// failed is terminal-failure, though staff may re-enter pending by
// re-uploading a slip.
type Status string

const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusFailed   Status = "failed"
)

// Method identifies how the customer paid.
type Method string

const (
	MethodBankTransfer Method = "bank_transfer"
	MethodCash         Method = "cash"
)

// Payment records one payment attempt against an order. The most recent
// row per order is authoritative. Rows are never deleted outside an
// explicit admin purge.
type Payment struct {
	ID                 int64           `json:"id"`
	OrderID            int64           `json:"order_id"`
	Method             Method          `json:"method"`
	Amount             float64         `json:"amount"`
	SlipImagePath      *string         `json:"slip_image_path,omitempty"`
	Status             Status          `json:"status"`
	VerifiedAmount     *float64        `json:"verified_amount,omitempty"`
	TransferDate       *time.Time      `json:"transfer_date,omitempty"`
	VerificationRaw    json.RawMessage `json:"verification_raw,omitempty"`
	PaymentDate        *time.Time      `json:"payment_date,omitempty"`
	ReceiptNumber      *string         `json:"receipt_number,omitempty"`
	ReceiptGeneratedAt *time.Time      `json:"receipt_generated_at,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}
