package store

import (
	"context"
	"time"

	"vitrine/apperrors"
	"vitrine/models"

	"github.com/jinzhu/gorm"
)

// GrantStore gives durable access to access-grant records.
type GrantStore interface {
	// FindActiveGrant returns the most recent active grant for the pair, or nil.
	FindActiveGrant(ctx context.Context, email, planCode string) (*models.AccessGrant, error)
	// InsertGrant inserts g as a new row; ErrActiveGrantExists when the pair already has an active grant.
	InsertGrant(ctx context.Context, g *models.AccessGrant) error
	// ListActiveGrants returns every active grant for email, newest first.
	ListActiveGrants(ctx context.Context, email string) ([]models.AccessGrant, error)
	// RevokeGrant moves an active grant to revoked.
	RevokeGrant(ctx context.Context, id int64) (*models.AccessGrant, error)
	// CountActiveByPlan returns the number of active grants per plan code.
	CountActiveByPlan(ctx context.Context) (map[string]int64, error)
	// WithinTx runs fn against a store bound to a single database transaction.
	// fn's error rolls the transaction back.
	WithinTx(ctx context.Context, fn func(tx GrantStore) error) error
}

type grantStore struct {
	base
}

// NewGrantStore creates a GrantStore over db. Every call is bounded by timeout (0 = no limit).
func NewGrantStore(db *gorm.DB, timeout time.Duration) GrantStore {
	return &grantStore{base{db: db, timeout: timeout}}
}

func (s *grantStore) FindActiveGrant(ctx context.Context, email, planCode string) (*models.AccessGrant, error) {
	var grants []models.AccessGrant
	err := s.run(ctx, "find_active_grant", func(db *gorm.DB) error {
		return db.
			Where("email = ? AND plan_code = ? AND status = ?", email, planCode, models.GRANT_STATUS_ACTIVE).
			Order("id desc").
			Limit(1).
			Find(&grants).Error
	})
	if err != nil {
		return nil, err
	}
	if len(grants) == 0 {
		return nil, nil
	}
	return &grants[0], nil
}

func (s *grantStore) InsertGrant(ctx context.Context, g *models.AccessGrant) error {
	if g == nil {
		return apperrors.Validation("insert_grant", "grant é obrigatório")
	}
	if missing := g.MissingFields(); missing != "" {
		return apperrors.Validation("insert_grant", missing+" é obrigatório")
	}
	if g.Status == "" {
		g.Status = models.GRANT_STATUS_ACTIVE
	}

	return s.run(ctx, "insert_grant", func(db *gorm.DB) error {
		if err := db.Create(g).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrActiveGrantExists
			}
			return err
		}
		return nil
	})
}

func (s *grantStore) ListActiveGrants(ctx context.Context, email string) ([]models.AccessGrant, error) {
	grants := []models.AccessGrant{}
	err := s.run(ctx, "list_active_grants", func(db *gorm.DB) error {
		return db.
			Where("email = ? AND status = ?", email, models.GRANT_STATUS_ACTIVE).
			Order("created_at desc, id desc").
			Find(&grants).Error
	})
	if err != nil {
		return nil, err
	}
	return grants, nil
}

func (s *grantStore) RevokeGrant(ctx context.Context, id int64) (*models.AccessGrant, error) {
	var grant models.AccessGrant
	var found bool
	err := s.run(ctx, "revoke_grant", func(db *gorm.DB) error {
		if err := db.First(&grant, id).Error; err != nil {
			if gorm.IsRecordNotFoundError(err) {
				return nil
			}
			return err
		}
		found = true
		if grant.Status == models.GRANT_STATUS_REVOKED {
			return nil
		}
		return db.Model(&grant).Update("status", models.GRANT_STATUS_REVOKED).Error
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperrors.NotFound("revoke_grant", "grant não encontrado")
	}
	return &grant, nil
}

func (s *grantStore) CountActiveByPlan(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		PlanCode string
		Total    int64
	}
	err := s.run(ctx, "count_active_by_plan", func(db *gorm.DB) error {
		return db.Model(&models.AccessGrant{}).
			Select("plan_code, count(*) as total").
			Where("status = ?", models.GRANT_STATUS_ACTIVE).
			Group("plan_code").
			Scan(&rows).Error
	})
	if err != nil {
		return nil, err
	}

	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.PlanCode] = r.Total
	}
	return out, nil
}

func (s *grantStore) WithinTx(ctx context.Context, fn func(tx GrantStore) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.run(ctx, "grant_tx", func(db *gorm.DB) error {
		tx := db.Begin()
		if tx.Error != nil {
			return tx.Error
		}
		// as chamadas dentro da transação já estão sob o timeout desta
		txStore := &grantStore{base{db: tx}}
		if err := fn(txStore); err != nil {
			tx.Rollback()
			return err
		}
		if err := ctx.Err(); err != nil {
			tx.Rollback()
			return ctxError("grant_tx", err)
		}
		return tx.Commit().Error
	})
}
