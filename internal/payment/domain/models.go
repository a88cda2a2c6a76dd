package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Method string

const (
	MethodBankTransfer Method = "bank_transfer"
	MethodCard         Method = "card"
	MethodCash         Method = "cash"
	MethodCheck        Method = "check"
	MethodOther        Method = "other"
)

func (m Method) Valid() bool {
	switch m {
	case MethodBankTransfer, MethodCard, MethodCash, MethodCheck, MethodOther:
		return true
	}
	return false
}

// Payment is money received against one invoice. Payments are never edited;
// the invoice's amount_paid_cents is always their sum.
type Payment struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID    snowflake.ID `gorm:"not null;index" json:"tenant_id"`
	DocumentID  snowflake.ID `gorm:"not null;index:idx_payments_document_paid_on,priority:1" json:"document_id"`
	AmountCents int64        `gorm:"not null" json:"amount_cents"`
	PaidOn      time.Time    `gorm:"type:date;not null;index:idx_payments_document_paid_on,priority:2" json:"paid_on"`
	Method      Method       `gorm:"type:text;not null" json:"method"`
	Reference   string       `gorm:"type:text" json:"reference,omitempty"`
	CreatedAt   time.Time    `gorm:"not null" json:"created_at"`
}

func (Payment) TableName() string { return "payments" }
