package services

import (
	"context"
	"sort"
	"time"

	"vitrine/apperrors"
	"vitrine/metrics"
	"vitrine/models"
	"vitrine/store"
	"vitrine/tools"

	"golang.org/x/sync/errgroup"
)

// AccessCheck answers "does this email hold this plan".
type AccessCheck struct {
	HasAccess bool
	Grant     *models.AccessGrant
	Message   string
}

// ProductAccess is a catalog product annotated for one user.
type ProductAccess struct {
	models.Product
	HasAccess   bool   `json:"has_access"`
	MatchedPlan string `json:"matched_plan,omitempty"` // plan_1, plan_2 ou plan_3
}

// Reconciliation is the full catalog seen by one email.
type Reconciliation struct {
	Email         string
	AllProducts   []ProductAccess
	OwnedProducts []ProductAccess
	ActivePlans   []string
	Grants        []models.AccessGrant
}

// AccessService answers entitlement queries. It never writes.
type AccessService struct {
	catalog store.CatalogStore
	grants  store.GrantStore
}

func NewAccessService(catalog store.CatalogStore, grants store.GrantStore) *AccessService {
	return &AccessService{catalog: catalog, grants: grants}
}

// CheckAccess reports whether an active grant exists for exactly (email, planCode).
func (s *AccessService) CheckAccess(ctx context.Context, email, planCode string) (AccessCheck, error) {
	metrics.AccessQueriesTotal.WithLabelValues("check").Inc()

	email = tools.NormalizeEmail(email)
	planCode = tools.NormalizePlanCode(planCode)
	if email == "" {
		return AccessCheck{}, apperrors.Validation("check_access", "email é obrigatório")
	}
	if planCode == "" {
		return AccessCheck{}, apperrors.Validation("check_access", "plan_code é obrigatório")
	}

	grant, err := s.grants.FindActiveGrant(ctx, email, planCode)
	if err != nil {
		return AccessCheck{}, err
	}
	if grant == nil {
		return AccessCheck{Message: "Usuário não possui acesso a este plano"}, nil
	}
	return AccessCheck{HasAccess: true, Grant: grant, Message: "Usuário possui acesso"}, nil
}

// Reconcile annotates every catalog product with the email's access. A blank email is not an
// error: the catalog comes back with nothing owned.
func (s *AccessService) Reconcile(ctx context.Context, email string) (Reconciliation, error) {
	metrics.AccessQueriesTotal.WithLabelValues("reconcile").Inc()

	email = tools.NormalizeEmail(email)
	out := Reconciliation{
		Email:         email,
		AllProducts:   []ProductAccess{},
		OwnedProducts: []ProductAccess{},
		ActivePlans:   []string{},
		Grants:        []models.AccessGrant{},
	}

	var products []models.Product
	g, gctx := errgroup.WithContext(ctx)
	if email != "" {
		g.Go(func() error {
			grants, err := s.grants.ListActiveGrants(gctx, email)
			if err != nil {
				return err
			}
			out.Grants = grants
			return nil
		})
	}
	g.Go(func() error {
		var err error
		products, err = s.catalog.ListProducts(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Reconciliation{}, err
	}

	granted := make(map[string]bool, len(out.Grants))
	for _, gr := range out.Grants {
		// a store pode devolver revogados se a consulta mudar; só ativos contam
		if !gr.IsActive() {
			continue
		}
		if !granted[gr.PlanCode] {
			granted[gr.PlanCode] = true
			out.ActivePlans = append(out.ActivePlans, gr.PlanCode)
		}
	}
	sort.Strings(out.ActivePlans)

	sortProducts(products)
	isGranted := func(code string) bool { return granted[code] }

	for _, p := range products {
		pa := ProductAccess{Product: p}
		if slot, ok := models.MatchPlan(p, isGranted); ok {
			pa.HasAccess = true
			pa.MatchedPlan = slot
		}
		out.AllProducts = append(out.AllProducts, pa)

		if pa.HasAccess {
			owned := pa
			owned.Category = models.PRODUCT_CATEGORY_OWNED
			out.OwnedProducts = append(out.OwnedProducts, owned)
		}
	}
	return out, nil
}

// sortProducts orders by updated_at desc, created_at desc, id desc.
func sortProducts(products []models.Product) {
	ts := func(t *time.Time) time.Time {
		if t == nil {
			return time.Time{}
		}
		return *t
	}
	sort.SliceStable(products, func(i, j int) bool {
		ui, uj := ts(products[i].UpdatedAt), ts(products[j].UpdatedAt)
		if !ui.Equal(uj) {
			return ui.After(uj)
		}
		ci, cj := ts(products[i].CreatedAt), ts(products[j].CreatedAt)
		if !ci.Equal(cj) {
			return ci.After(cj)
		}
		return products[i].ID > products[j].ID
	})
}
