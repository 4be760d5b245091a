package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

/************************************************
/**** MARK: GRANT STATUS ****/
/************************************************/
const GRANT_STATUS_ACTIVE = "active"
const GRANT_STATUS_REVOKED = "revoked"

// AccessGrant registra que um email pagou por um plano.
// Nunca é apagado: só muda de status (active -> revoked), formando um log de auditoria.
// Regra: no máximo 1 grant ativo por (email, plan_code), garantido pelo índice ux_access_grants_active.
type AccessGrant struct {
	ID          int64           `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	Email       string          `gorm:"not null;index" json:"email"`
	PlanCode    string          `gorm:"column:plan_code;not null;index" json:"plan_code"`
	PlanName    string          `gorm:"column:plan_name" json:"plan_name"`
	ProductCode string          `gorm:"column:product_code" json:"product_code"` // id do produto ou o próprio plan_code
	SaleAmount  decimal.Decimal `gorm:"column:sale_amount;type:decimal(10,2);not null;default:0" json:"sale_amount"`
	PaymentRef  string          `gorm:"column:payment_ref;index" json:"payment_ref"`
	Status      string          `gorm:"not null;default:'active';index" json:"status"`
	CreatedAt   *time.Time      `json:"created_at"`
	UpdatedAt   *time.Time      `json:"updated_at"`
}

func (g AccessGrant) IsActive() bool {
	return g.Status == GRANT_STATUS_ACTIVE
}

func (g AccessGrant) MissingFields() string {
	if strings.TrimSpace(g.Email) == "" {
		return "email"
	} else if strings.TrimSpace(g.PlanCode) == "" {
		return "plan_code"
	}
	return ""
}
