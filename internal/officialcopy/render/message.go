package render

import (
	"bytes"
	"html/template"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/docledger/internal/money"
	"github.com/smallbiznis/docledger/internal/officialcopy/domain"
)

const messageHTMLTemplate = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>{{title .Document.Type}} {{.Document.Number}}</title>
  <style>
    body { margin: 0; padding: 32px; font-family: -apple-system, "Segoe UI", Roboto, Helvetica, Arial, sans-serif; color: #1a1f36; }
    .card { max-width: 640px; margin: 0 auto; }
    .label { font-size: 11px; text-transform: uppercase; color: #8792a2; font-weight: 600; }
    table { width: 100%; border-collapse: collapse; margin-top: 24px; }
    th, td { padding: 8px 0; border-bottom: 1px solid #e3e8ee; font-size: 13px; text-align: left; }
    .right { text-align: right; }
    .total { font-weight: 700; }
  </style>
</head>
<body>
  <div class="card">
    {{if .Message}}<p>{{.Message}}</p>{{end}}
    <div class="label">{{title .Document.Type}} number</div>
    <h2>{{.Document.Number}}</h2>
    <div class="label">Bill to</div>
    <p>{{.Document.ClientName}}{{if .Document.ClientEmail}}<br>{{.Document.ClientEmail}}{{end}}</p>
    <div class="label">Issued</div>
    <p>{{formatDate .Document.IssueDate}}</p>
    {{if .Document.DueDate}}<div class="label">Due</div><p>{{formatDate .Document.DueDate}}</p>{{end}}
    {{if .Document.ExpiryDate}}<div class="label">Valid until</div><p>{{formatDate .Document.ExpiryDate}}</p>{{end}}
    <table>
      <thead>
        <tr><th>Description</th><th class="right">Qty</th><th class="right">Unit price</th><th class="right">Tax</th><th class="right">Amount</th></tr>
      </thead>
      <tbody>
        {{range .Document.Lines}}
        <tr>
          <td>{{.Description}}</td>
          <td class="right">{{formatQuantity .Quantity}}</td>
          <td class="right">{{formatMoney .UnitPriceCents $.Document.Currency}}</td>
          <td class="right">{{formatQuantity .TaxRatePercent}}%</td>
          <td class="right">{{formatMoney .LineTotalCents $.Document.Currency}}</td>
        </tr>
        {{end}}
      </tbody>
    </table>
    <table>
      <tr><td>Subtotal</td><td class="right">{{formatMoney .Document.SubtotalCents .Document.Currency}}</td></tr>
      <tr><td>Tax</td><td class="right">{{formatMoney .Document.TaxTotalCents .Document.Currency}}</td></tr>
      <tr class="total"><td>Total</td><td class="right">{{formatMoney .Document.TotalCents .Document.Currency}}</td></tr>
    </table>
  </div>
</body>
</html>
`

type MessageInput struct {
	Document domain.DocumentView
	Message  string
}

type MessageRenderer interface {
	RenderMessage(input MessageInput) (string, error)
}

type HTMLRenderer struct {
	tpl *template.Template
}

func NewRenderer() MessageRenderer {
	funcs := template.FuncMap{
		"formatMoney":    money.Format,
		"formatDate":     formatDate,
		"formatQuantity": formatQuantity,
		"title":          title,
	}
	return &HTMLRenderer{
		tpl: template.Must(template.New("message").Funcs(funcs).Parse(messageHTMLTemplate)),
	}
}

func (r *HTMLRenderer) RenderMessage(input MessageInput) (string, error) {
	var buf bytes.Buffer
	if err := r.tpl.Execute(&buf, input); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func formatDate(value *time.Time) string {
	if value == nil || value.IsZero() {
		return "-"
	}
	return value.UTC().Format(time.DateOnly)
}

func formatQuantity(value decimal.Decimal) string {
	return value.String()
}

func title(docType string) string {
	if docType == "" {
		return ""
	}
	return strings.ToUpper(docType[:1]) + docType[1:]
}
