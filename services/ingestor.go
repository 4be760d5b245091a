package services

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"strings"

	"vitrine/apperrors"
	"vitrine/logging"
	"vitrine/models"
	"vitrine/store"
	"vitrine/tools"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// SALE_STATUS_APPROVED is the only sale status that grants access.
const SALE_STATUS_APPROVED = "approved"

var errNotObject = errors.New("payload is not a JSON object")

// PaymentEvent is a payment notification after extraction and normalization.
type PaymentEvent struct {
	Status     *string // nil quando o provedor não mandou status
	Email      string
	PlanCode   string
	PlanName   string
	PaymentRef string
	SaleAmount decimal.Decimal

	// rawAmount guarda o sale_amount recebido quando ele não pôde ser lido como número.
	rawAmount string
}

// IngestResult is the outcome of a processed event.
type IngestResult struct {
	Ignored bool // status presente e diferente de approved
	Created bool // false em reentregas: o grant já existia
	Grant   *models.AccessGrant
	Event   PaymentEvent
	Message string
}

// WebhookIngestor turns payment notifications into access grants.
type WebhookIngestor struct {
	catalog store.CatalogStore
	guard   *IdempotencyGuard
}

func NewWebhookIngestor(catalog store.CatalogStore, guard *IdempotencyGuard) *WebhookIngestor {
	return &WebhookIngestor{catalog: catalog, guard: guard}
}

// flexString accepts a JSON string or number (some providers send numeric payment codes).
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

type webhookPayload struct {
	SaleStatus *string `json:"sale_status_enum_key"`
	Customer   *struct {
		Email flexString `json:"email"`
	} `json:"customer"`
	Email flexString `json:"email"`
	Plan  *struct {
		Code flexString `json:"code"`
		Name flexString `json:"name"`
	} `json:"plan"`
	PlanCode   flexString `json:"plan_code"`
	PlanName   flexString `json:"plan_name"`
	SaleAmount flexString `json:"sale_amount"`
	Code       flexString `json:"code"`
}

// ParseEvent decodes a raw webhook body. Anything that is not a JSON object is a
// MalformedPayload error.
func ParseEvent(body []byte) (PaymentEvent, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return PaymentEvent{}, apperrors.MalformedPayload("parse_event", errNotObject)
	}

	var p webhookPayload
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return PaymentEvent{}, apperrors.MalformedPayload("parse_event", err)
	}

	ev := PaymentEvent{
		Status:     p.SaleStatus,
		Email:      string(p.Email),
		PlanCode:   string(p.PlanCode),
		PlanName:   string(p.PlanName),
		PaymentRef: strings.TrimSpace(string(p.Code)),
	}
	ev.SaleAmount, ev.rawAmount = parseAmount(p.SaleAmount)
	if p.Customer != nil && strings.TrimSpace(string(p.Customer.Email)) != "" {
		ev.Email = string(p.Customer.Email)
	}
	if p.Plan != nil {
		if strings.TrimSpace(string(p.Plan.Code)) != "" {
			ev.PlanCode = string(p.Plan.Code)
		}
		if strings.TrimSpace(string(p.Plan.Name)) != "" {
			ev.PlanName = string(p.Plan.Name)
		}
	}
	ev.Email = tools.NormalizeEmail(ev.Email)
	ev.PlanCode = tools.NormalizePlanCode(ev.PlanCode)
	ev.PlanName = strings.TrimSpace(ev.PlanName)
	return ev, nil
}

// parseAmount reads sale_amount leniently: blank is zero, and anything that is not a
// number is zero plus the raw text, so the caller can log it.
func parseAmount(raw flexString) (decimal.Decimal, string) {
	s := strings.TrimSpace(string(raw))
	if s == "" {
		return decimal.Zero, ""
	}
	d, err := decimal.NewFromString(strings.Replace(s, ",", ".", 1))
	if err != nil {
		return decimal.Zero, s
	}
	return d, ""
}

// Ingest parses body and processes the event.
func (w *WebhookIngestor) Ingest(ctx context.Context, body []byte) (IngestResult, error) {
	ev, err := ParseEvent(body)
	if err != nil {
		return IngestResult{}, err
	}
	return w.Process(ctx, ev)
}

// Process applies an already-parsed event: non-approved events are acknowledged without a
// grant, approved ones resolve the plan and go through the IdempotencyGuard.
func (w *WebhookIngestor) Process(ctx context.Context, ev PaymentEvent) (IngestResult, error) {
	logger := logging.FromContext(ctx)

	if ev.Status != nil && !strings.EqualFold(strings.TrimSpace(*ev.Status), SALE_STATUS_APPROVED) {
		logger.Info().
			Str("status", *ev.Status).
			Str("email", ev.Email).
			Str("plan_code", ev.PlanCode).
			Msg("webhook: non-approved sale ignored")
		return IngestResult{
			Ignored: true,
			Event:   ev,
			Message: "Evento ignorado: status " + *ev.Status,
		}, nil
	}

	if ev.Email == "" {
		return IngestResult{}, apperrors.Validation("ingest", "email é obrigatório")
	}
	if ev.PlanCode == "" {
		return IngestResult{}, apperrors.Validation("ingest", "plan_code é obrigatório")
	}
	if ev.rawAmount != "" {
		logger.Warn().Str("sale_amount", ev.rawAmount).Str("email", ev.Email).Msg("webhook: sale_amount inválido, gravando 0")
	}
	if !tools.ValidateEmail(ev.Email) {
		logger.Warn().Str("email", ev.Email).Msg("webhook: email fora do padrão, concedendo mesmo assim")
	}

	productCode := ev.PlanCode
	product, err := w.catalog.FindProductByPlan(ctx, ev.PlanCode)
	if err != nil {
		return IngestResult{}, err
	}
	if product != nil {
		productCode = strconv.FormatInt(product.ID, 10)
		slot, _ := models.ProductMatchesPlan(*product, ev.PlanCode)
		logger.Debug().
			Int64("product_id", product.ID).
			Str("slot", slot).
			Str("plan_code", ev.PlanCode).
			Msg("webhook: plan resolved to product")
	} else {
		logger.Info().Str("plan_code", ev.PlanCode).Msg("webhook: no product declares this plan, granting by plan code")
	}

	planName := ev.PlanName
	if planName == "" {
		planName = ev.PlanCode
	}

	grant, created, err := w.guard.EnsureGrant(ctx, GrantRequest{
		Email:       ev.Email,
		PlanCode:    ev.PlanCode,
		PlanName:    planName,
		ProductCode: productCode,
		SaleAmount:  ev.SaleAmount,
		PaymentRef:  ev.PaymentRef,
	})
	if err != nil {
		return IngestResult{}, err
	}

	msg := "Acesso liberado com sucesso"
	if !created {
		msg = "Acesso já existente"
	}
	logger.Info().
		Int64("grant_id", grant.ID).
		Bool("created", created).
		Str("email", ev.Email).
		Str("plan_code", ev.PlanCode).
		Str("payment_ref", ev.PaymentRef).
		Msg("webhook: grant ensured")

	return IngestResult{Created: created, Grant: grant, Event: ev, Message: msg}, nil
}
