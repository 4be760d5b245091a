package services

import (
	"context"
	"errors"

	"vitrine/apperrors"
	"vitrine/models"
	"vitrine/store"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// GrantRequest carries the fields of a grant to create.
type GrantRequest struct {
	Email       string
	PlanCode    string
	PlanName    string
	ProductCode string
	SaleAmount  decimal.Decimal
	PaymentRef  string
}

// IdempotencyGuard makes repeated approved payments for the same (email, plan_code) a no-op.
type IdempotencyGuard struct {
	grants store.GrantStore
}

func NewIdempotencyGuard(grants store.GrantStore) *IdempotencyGuard {
	return &IdempotencyGuard{grants: grants}
}

// EnsureGrant returns the active grant for the pair, creating it when none exists.
// created is false when an existing grant was returned unchanged.
//
// The lookup and the insert share one store transaction; the unique index on active grants
// catches the concurrent delivery that slips between them, in which case the winner's grant
// is returned.
func (g *IdempotencyGuard) EnsureGrant(ctx context.Context, req GrantRequest) (grant *models.AccessGrant, created bool, err error) {
	candidate := models.AccessGrant{
		Email:       req.Email,
		PlanCode:    req.PlanCode,
		PlanName:    req.PlanName,
		ProductCode: req.ProductCode,
		SaleAmount:  req.SaleAmount,
		PaymentRef:  req.PaymentRef,
		Status:      models.GRANT_STATUS_ACTIVE,
	}
	if missing := candidate.MissingFields(); missing != "" {
		return nil, false, apperrors.Validation("ensure_grant", missing+" é obrigatório")
	}

	err = g.grants.WithinTx(ctx, func(tx store.GrantStore) error {
		existing, err := tx.FindActiveGrant(ctx, req.Email, req.PlanCode)
		if err != nil {
			return err
		}
		if existing != nil {
			grant = existing
			return nil
		}

		ng := candidate
		if err := tx.InsertGrant(ctx, &ng); err != nil {
			return err
		}
		grant, created = &ng, true
		return nil
	})

	if errors.Is(err, store.ErrActiveGrantExists) {
		log.Info().
			Str("email", req.Email).
			Str("plan_code", req.PlanCode).
			Msg("concurrent delivery already granted access, returning existing grant")

		existing, ferr := g.grants.FindActiveGrant(ctx, req.Email, req.PlanCode)
		if ferr != nil {
			return nil, false, ferr
		}
		if existing == nil {
			return nil, false, apperrors.Store("ensure_grant", err)
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return grant, created, nil
}
