package notify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"text/template"
	"time"

	"techcart/internal/domain"

	"github.com/shopspring/decimal"
)

const receiptText = `TechCart Receipt
Order: {{.ID}}
Date:  {{.CreatedAt.Format "2006-01-02 15:04"}}

Customer
  Name:     {{.Customer.Name}}
  Email:    {{.Customer.Email}}
  Address:  {{.Customer.Address}}
  Contact:  {{.Customer.Contact}}
  Birthday: {{birthday .Customer.Birthday}}
  Gender:   {{.Customer.Gender}}

{{printf "%-32s %5s %12s %12s" "Product" "Qty" "Price" "Total"}}
{{range .Items}}{{printf "%-32.32s %5d %12s %12s" .ProductTitle .Quantity (money .Price) (money .LineTotal)}}
{{end}}
{{printf "%-51s %12s" "TOTAL" (money .Total)}}
`

const receiptHTML = `<h2>Thank you for your order</h2>
<p>Order <strong>{{.ID}}</strong> placed on {{.CreatedAt.Format "2006-01-02 15:04"}}.</p>
<table>
<tr><th align="left">Product</th><th>Qty</th><th align="right">Price</th><th align="right">Total</th></tr>
{{range .Items}}<tr><td>{{.ProductTitle}}</td><td align="center">{{.Quantity}}</td><td align="right">{{money .Price}}</td><td align="right">{{money .LineTotal}}</td></tr>
{{end}}<tr><td colspan="3"><strong>Total</strong></td><td align="right"><strong>{{money .Total}}</strong></td></tr>
</table>
<p>Shipping to {{.Customer.Name}}, {{.Customer.Address}}</p>
`

var funcs = map[string]any{
	"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
	"birthday": func(b *time.Time) string {
		if b == nil {
			return "-"
		}
		return b.Format(domain.BirthdayLayout)
	},
}

var (
	textTmpl = template.Must(template.New("receipt").Funcs(funcs).Parse(receiptText))
	htmlTmpl = htmltemplate.Must(htmltemplate.New("receipt").Funcs(funcs).Parse(receiptHTML))
)

// RenderReceipt renders the printable plain-text receipt of an order
func RenderReceipt(order *domain.Order) (string, error) {
	var buf bytes.Buffer
	if err := textTmpl.Execute(&buf, order); err != nil {
		return "", fmt.Errorf("failed to render receipt: %w", err)
	}
	return buf.String(), nil
}

func renderHTML(order *domain.Order) (string, error) {
	var buf bytes.Buffer
	if err := htmlTmpl.Execute(&buf, order); err != nil {
		return "", fmt.Errorf("failed to render receipt: %w", err)
	}
	return buf.String(), nil
}
