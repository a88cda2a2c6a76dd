package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
)

type hashedLine struct {
	Position       int    `json:"position"`
	Description    string `json:"description"`
	Quantity       string `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	TaxRatePercent string `json:"tax_rate_percent"`
	LineTotalCents int64  `json:"line_total_cents"`
	LineTaxCents   int64  `json:"line_tax_cents"`
}

type hashedDocument struct {
	Type          string       `json:"type"`
	Number        string       `json:"number"`
	Currency      string       `json:"currency"`
	ClientID      string       `json:"client_id"`
	ProjectID     string       `json:"project_id"`
	IssueDate     string       `json:"issue_date"`
	DueDate       string       `json:"due_date"`
	ExpiryDate    string       `json:"expiry_date"`
	SubtotalCents int64        `json:"subtotal_cents"`
	TaxTotalCents int64        `json:"tax_total_cents"`
	TotalCents    int64        `json:"total_cents"`
	Lines         []hashedLine `json:"lines"`
}

// ContentHash is the hex sha256 of the financial content of v. Payment
// progress and notes are left out, so recording a payment never reads as a
// content change.
func ContentHash(v DocumentView) string {
	doc := hashedDocument{
		Type:          v.Type,
		Number:        v.Number,
		Currency:      v.Currency,
		ClientID:      idString(v.ClientID),
		ProjectID:     idString(v.ProjectID),
		IssueDate:     dateString(v.IssueDate),
		DueDate:       dateString(v.DueDate),
		ExpiryDate:    dateString(v.ExpiryDate),
		SubtotalCents: v.SubtotalCents,
		TaxTotalCents: v.TaxTotalCents,
		TotalCents:    v.TotalCents,
		Lines:         make([]hashedLine, 0, len(v.Lines)),
	}
	for _, line := range v.Lines {
		doc.Lines = append(doc.Lines, hashedLine{
			Position:       line.Position,
			Description:    line.Description,
			Quantity:       line.Quantity.String(),
			UnitPriceCents: line.UnitPriceCents,
			TaxRatePercent: line.TaxRatePercent.String(),
			LineTotalCents: line.LineTotalCents,
			LineTaxCents:   line.LineTaxCents,
		})
	}

	// Marshal of a fixed struct cannot fail.
	raw, _ := json.Marshal(doc)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func idString(id snowflake.ID) string {
	if id == 0 {
		return ""
	}
	return id.String()
}

func dateString(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.DateOnly)
}
