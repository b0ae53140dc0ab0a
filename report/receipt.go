package report

import (
	"bytes"
	"html/template"
	"time"

	"github.com/orbitshop/orbitshop/internal/orders"
	"github.com/orbitshop/orbitshop/internal/payments"
)

// ReceiptData feeds the receipt template.
type ReceiptData struct {
	ReceiptNumber string
	OrderNumber   string
	IssuedAt      time.Time
	CustomerName  string
	Items         []orders.OrderItem
	Subtotal      float64
	VAT           float64
	Discount      float64
	Shipping      float64
	Total         float64
	PaymentMethod payments.Method
}

var receiptTemplate = template.Must(template.New("receipt").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
body { font-family: sans-serif; font-size: 12px; margin: 40px; }
h1 { font-size: 18px; }
table { width: 100%; border-collapse: collapse; margin-top: 16px; }
th, td { border-bottom: 1px solid #ccc; padding: 6px; text-align: left; }
td.num, th.num { text-align: right; }
.totals { margin-top: 16px; width: 40%; margin-left: auto; }
.totals td { border: none; padding: 2px 6px; }
</style>
</head>
<body>
<h1>Receipt {{.ReceiptNumber}}</h1>
<p>Order {{.OrderNumber}}<br>
Issued {{.IssuedAt.Format "2 Jan 2006 15:04"}}<br>
{{if .CustomerName}}Customer: {{.CustomerName}}<br>{{end}}
Payment method: {{.PaymentMethod}}</p>
<table>
<tr><th>Item</th><th>SKU</th><th class="num">Qty</th><th class="num">Unit (incl. VAT)</th><th class="num">Line total</th></tr>
{{range .Items}}
<tr><td>{{.ProductName}}</td><td>{{.SKU}}</td><td class="num">{{.Quantity}}</td><td class="num">{{printf "%.2f" .UnitPriceInclVAT}}</td><td class="num">{{printf "%.2f" .LineTotalInclVAT}}</td></tr>
{{end}}
</table>
<table class="totals">
<tr><td>Subtotal (excl. VAT)</td><td class="num">{{printf "%.2f" .Subtotal}}</td></tr>
<tr><td>VAT</td><td class="num">{{printf "%.2f" .VAT}}</td></tr>
{{if gt .Discount 0.0}}<tr><td>Discount</td><td class="num">-{{printf "%.2f" .Discount}}</td></tr>{{end}}
<tr><td>Shipping</td><td class="num">{{printf "%.2f" .Shipping}}</td></tr>
<tr><td><strong>Total</strong></td><td class="num"><strong>{{printf "%.2f" .Total}}</strong></td></tr>
</table>
</body>
</html>`))

// BuildReceiptHTML renders the receipt document for a confirmed payment.
func BuildReceiptHTML(order *orders.Order, payment *payments.Payment) (string, error) {
	data := ReceiptData{
		OrderNumber:   order.OrderNumber,
		Items:         order.Items,
		Subtotal:      order.SubtotalExclVAT,
		VAT:           order.TotalVAT,
		Discount:      order.DiscountAmount,
		Shipping:      order.ShippingCost,
		Total:         order.TotalAmount,
		PaymentMethod: payment.Method,
		IssuedAt:      time.Now().UTC(),
	}
	if payment.ReceiptNumber != nil {
		data.ReceiptNumber = *payment.ReceiptNumber
	}
	if payment.PaymentDate != nil {
		data.IssuedAt = *payment.PaymentDate
	}
	if order.GuestName != nil {
		data.CustomerName = *order.GuestName
	}

	var buf bytes.Buffer
	if err := receiptTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
