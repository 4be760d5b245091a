package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

/************************************************
/**** MARK: PRODUCT CATEGORY ****/
/************************************************/
const PRODUCT_CATEGORY_DEFAULT = "meus_produtos"

// PRODUCT_CATEGORY_OWNED é o bucket para onde vão as cópias dos produtos que o usuário possui.
const PRODUCT_CATEGORY_OWNED = "meus_produtos"

// Product representa um item do catálogo.
// Os três slots de plano são um conjunto: um acesso casa com o produto se o código for igual a qualquer slot preenchido.
type Product struct {
	ID          int64           `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	Name        string          `gorm:"not null" json:"name" form:"name"`
	Description string          `gorm:"type:text" json:"description" form:"description"`
	BannerURL   string          `gorm:"column:banner_url" json:"banner_url" form:"banner_url"`
	MediaURL    string          `gorm:"column:media_url" json:"media_url" form:"media_url"`
	AccessURL   string          `gorm:"column:access_url" json:"access_url" form:"access_url"`
	PurchaseURL string          `gorm:"column:purchase_url" json:"purchase_url" form:"purchase_url"`
	Price       decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"price" form:"price"`
	Category    string          `gorm:"not null;default:'meus_produtos'" json:"category" form:"category"`
	Plan1       *string         `gorm:"column:plan_1;index" json:"plan_1" form:"plan_1"`
	Plan2       *string         `gorm:"column:plan_2;index" json:"plan_2" form:"plan_2"`
	Plan3       *string         `gorm:"column:plan_3;index" json:"plan_3" form:"plan_3"`
	Gallery     []MediaItem     `gorm:"foreignkey:ProductID" json:"gallery"`
	CreatedAt   *time.Time      `json:"created_at"`
	UpdatedAt   *time.Time      `json:"updated_at"`
}

// Normalize aplica os defaults e limpa slots de plano vazios.
func (p *Product) Normalize() {
	p.Name = strings.TrimSpace(p.Name)
	if strings.TrimSpace(p.Category) == "" {
		p.Category = PRODUCT_CATEGORY_DEFAULT
	}
	p.Plan1 = cleanPlan(p.Plan1)
	p.Plan2 = cleanPlan(p.Plan2)
	p.Plan3 = cleanPlan(p.Plan3)
	if p.Gallery == nil {
		p.Gallery = []MediaItem{}
	}
}

func (p Product) MissingFields() string {
	if strings.TrimSpace(p.Name) == "" {
		return "name"
	} else if p.Price.IsNegative() {
		return "price"
	}
	for _, m := range p.Gallery {
		if missing := m.MissingFields(); missing != "" {
			return "gallery." + missing
		}
	}
	return ""
}

// PlanCodes devolve os códigos de plano preenchidos, na ordem dos slots.
func (p Product) PlanCodes() []string {
	var out []string
	for _, s := range p.slots() {
		if s.code != "" {
			out = append(out, s.code)
		}
	}
	return out
}

type planSlot struct {
	name string
	code string
}

func (p Product) slots() [3]planSlot {
	return [3]planSlot{
		{PLAN_SLOT_1, deref(p.Plan1)},
		{PLAN_SLOT_2, deref(p.Plan2)},
		{PLAN_SLOT_3, deref(p.Plan3)},
	}
}

func cleanPlan(v *string) *string {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return nil
	}
	return &s
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// PlanPtr is a helper for building products in code and tests.
func PlanPtr(code string) *string {
	return &code
}
