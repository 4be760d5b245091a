package services

import (
	"context"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"vitrine/apperrors"
	"vitrine/db"
	"vitrine/models"
	"vitrine/store"

	"github.com/jinzhu/gorm"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) (*Engine, *gorm.DB) {
	t.Helper()
	conn, err := db.OpenSQLite(filepath.Join(t.TempDir(), "engine.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, db.Migrate(conn))

	timeout := 10 * time.Second
	return NewEngine(store.NewCatalogStore(conn, timeout), store.NewGrantStore(conn, timeout)), conn
}

func countGrants(t *testing.T, conn *gorm.DB, email, planCode string) int {
	t.Helper()
	var n int
	require.NoError(t, conn.Model(&models.AccessGrant{}).
		Where("email = ? AND plan_code = ?", email, planCode).
		Count(&n).Error)
	return n
}

func saveProduct(t *testing.T, e *Engine, name string, p1, p2, p3 string) *models.Product {
	t.Helper()
	p := &models.Product{Name: name, Price: decimal.RequireFromString("10")}
	if p1 != "" {
		p.Plan1 = models.PlanPtr(p1)
	}
	if p2 != "" {
		p.Plan2 = models.PlanPtr(p2)
	}
	if p3 != "" {
		p.Plan3 = models.PlanPtr(p3)
	}
	require.NoError(t, e.Catalog.SaveProduct(context.Background(), p))
	return p
}

const approvedGold = `{"sale_status_enum_key":"approved","customer":{"email":"a@b.com"},"plan":{"code":"P1","name":"Gold"},"sale_amount":99.9,"code":"PAY-1"}`

func TestParseEvent(t *testing.T) {
	ev, err := ParseEvent([]byte(approvedGold))
	require.NoError(t, err)
	require.NotNil(t, ev.Status)
	assert.Equal(t, "approved", *ev.Status)
	assert.Equal(t, "a@b.com", ev.Email)
	assert.Equal(t, "P1", ev.PlanCode)
	assert.Equal(t, "Gold", ev.PlanName)
	assert.Equal(t, "PAY-1", ev.PaymentRef)
	assert.True(t, decimal.RequireFromString("99.9").Equal(ev.SaleAmount))
}

func TestParseEventFlatFieldsAndNumericCode(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"email":"  X@Y.com ","plan_code":" P2 ","plan_name":"Silver","code":12345}`))
	require.NoError(t, err)
	assert.Nil(t, ev.Status)
	assert.Equal(t, "x@y.com", ev.Email)
	assert.Equal(t, "P2", ev.PlanCode)
	assert.Equal(t, "Silver", ev.PlanName)
	assert.Equal(t, "12345", ev.PaymentRef)
}

func TestParseEventMalformed(t *testing.T) {
	for _, body := range []string{"", "not json", "[1,2]", `"str"`, `{"email":`} {
		_, err := ParseEvent([]byte(body))
		assert.ErrorIs(t, err, apperrors.ErrMalformedPayload, body)
	}
}

func TestParseEventLenientSaleAmount(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		want   string
		raw    string
	}{
		{"empty string", `""`, "0", ""},
		{"null", `null`, "0", ""},
		{"quoted number", `"99.90"`, "99.90", ""},
		{"decimal comma", `"49,50"`, "49.50", ""},
		{"number", `12`, "12", ""},
		{"garbage", `"R$ abc"`, "0", "R$ abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := `{"sale_status_enum_key":"approved","email":"a@b.com","plan_code":"P1","sale_amount":` + tt.amount + `}`
			ev, err := ParseEvent([]byte(body))
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(ev.SaleAmount), ev.SaleAmount.String())
			assert.Equal(t, tt.raw, ev.rawAmount)
		})
	}
}

func TestIngestBlankSaleAmountStillGrants(t *testing.T) {
	e, conn := newTestEngine(t)

	for _, amount := range []string{`""`, `"abc"`} {
		body := `{"sale_status_enum_key":"approved","email":"a@b.com","plan_code":"P1","sale_amount":` + amount + `}`
		res, err := e.Ingestor.Ingest(context.Background(), []byte(body))
		require.NoError(t, err, amount)
		require.NotNil(t, res.Grant)
		assert.True(t, res.Grant.SaleAmount.IsZero())
	}
	assert.Equal(t, 1, countGrants(t, conn, "a@b.com", "P1"))
}

func TestIngestCreatesGrant(t *testing.T) {
	e, conn := newTestEngine(t)
	ctx := context.Background()
	product := saveProduct(t, e, "Curso", "P1", "", "")

	res, err := e.Ingestor.Ingest(ctx, []byte(approvedGold))
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.False(t, res.Ignored)
	require.NotNil(t, res.Grant)
	assert.Equal(t, "a@b.com", res.Grant.Email)
	assert.Equal(t, "P1", res.Grant.PlanCode)
	assert.Equal(t, "Gold", res.Grant.PlanName)
	assert.Equal(t, models.GRANT_STATUS_ACTIVE, res.Grant.Status)
	assert.Equal(t, "Acesso liberado com sucesso", res.Message)
	assert.Equal(t, 1, countGrants(t, conn, "a@b.com", "P1"))

	// product_code aponta para o produto que declara o plano
	assert.Equal(t, strconv.FormatInt(product.ID, 10), res.Grant.ProductCode)

	check, err := e.Access.CheckAccess(ctx, "a@b.com", "P1")
	require.NoError(t, err)
	assert.True(t, check.HasAccess)
	assert.Equal(t, res.Grant.ID, check.Grant.ID)
}

func TestIngestSequentialReplays(t *testing.T) {
	e, conn := newTestEngine(t)
	ctx := context.Background()

	first, err := e.Ingestor.Ingest(ctx, []byte(approvedGold))
	require.NoError(t, err)
	require.True(t, first.Created)

	for i := 0; i < 5; i++ {
		res, err := e.Ingestor.Ingest(ctx, []byte(approvedGold))
		require.NoError(t, err)
		assert.False(t, res.Created)
		assert.Equal(t, first.Grant.ID, res.Grant.ID)
		assert.Equal(t, "Acesso já existente", res.Message)
	}
	assert.Equal(t, 1, countGrants(t, conn, "a@b.com", "P1"))
}

func TestIngestConcurrentReplays(t *testing.T) {
	e, conn := newTestEngine(t)
	ctx := context.Background()

	const deliveries = 10
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		ids     = map[int64]bool{}
		errs    []error
	)
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := e.Ingestor.Ingest(ctx, []byte(approvedGold))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			if res.Created {
				created++
			}
			ids[res.Grant.ID] = true
		}()
	}
	wg.Wait()

	assert.Empty(t, errs)
	assert.Equal(t, 1, created)
	assert.Len(t, ids, 1)
	assert.Equal(t, 1, countGrants(t, conn, "a@b.com", "P1"))
}

func TestIngestNonApprovedIsIgnored(t *testing.T) {
	e, conn := newTestEngine(t)
	ctx := context.Background()

	for _, status := range []string{"pending", "declined", "refunded"} {
		body := `{"sale_status_enum_key":"` + status + `","customer":{"email":"a@b.com"},"plan":{"code":"P1"}}`
		res, err := e.Ingestor.Ingest(ctx, []byte(body))
		require.NoError(t, err)
		assert.True(t, res.Ignored)
		assert.Nil(t, res.Grant)
		assert.Contains(t, res.Message, status)
	}
	assert.Equal(t, 0, countGrants(t, conn, "a@b.com", "P1"))
}

func TestIngestWithoutStatusGrants(t *testing.T) {
	e, _ := newTestEngine(t)

	res, err := e.Ingestor.Ingest(context.Background(), []byte(`{"email":"a@b.com","plan_code":"P1"}`))
	require.NoError(t, err)
	assert.True(t, res.Created)
	// sem plan_name, o nome cai para o código
	assert.Equal(t, "P1", res.Grant.PlanName)
}

func TestIngestMissingFields(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.Ingestor.Ingest(ctx, []byte(`{"sale_status_enum_key":"approved","plan":{"code":"P1"}}`))
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = e.Ingestor.Ingest(ctx, []byte(`{"sale_status_enum_key":"approved","customer":{"email":"a@b.com"}}`))
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestIngestOrphanPlanUsesPlanCode(t *testing.T) {
	e, _ := newTestEngine(t)

	res, err := e.Ingestor.Ingest(context.Background(), []byte(approvedGold))
	require.NoError(t, err)
	assert.Equal(t, "P1", res.Grant.ProductCode)
}

func TestEnsureGrantAfterRevoke(t *testing.T) {
	e, conn := newTestEngine(t)
	ctx := context.Background()
	req := GrantRequest{Email: "a@b.com", PlanCode: "P1", PlanName: "Gold", ProductCode: "P1"}

	g1, created, err := e.Guard.EnsureGrant(ctx, req)
	require.NoError(t, err)
	require.True(t, created)

	_, err = e.Grants.RevokeGrant(ctx, g1.ID)
	require.NoError(t, err)

	check, err := e.Access.CheckAccess(ctx, "a@b.com", "P1")
	require.NoError(t, err)
	assert.False(t, check.HasAccess)

	g2, created, err := e.Guard.EnsureGrant(ctx, req)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, g1.ID, g2.ID)
	assert.Equal(t, 2, countGrants(t, conn, "a@b.com", "P1"))
}

func TestEnsureGrantValidation(t *testing.T) {
	e, _ := newTestEngine(t)

	_, _, err := e.Guard.EnsureGrant(context.Background(), GrantRequest{PlanCode: "P1"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestCheckAccessValidation(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.Access.CheckAccess(ctx, " ", "P1")
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = e.Access.CheckAccess(ctx, "a@b.com", "")
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	check, err := e.Access.CheckAccess(ctx, "a@b.com", "P1")
	require.NoError(t, err)
	assert.False(t, check.HasAccess)
	assert.Nil(t, check.Grant)
}

func TestCheckAccessNormalizesEmail(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.Ingestor.Ingest(ctx, []byte(approvedGold))
	require.NoError(t, err)

	check, err := e.Access.CheckAccess(ctx, "  A@B.COM ", "P1")
	require.NoError(t, err)
	assert.True(t, check.HasAccess)
}

func TestReconcileMatchesAnySlot(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	owned := saveProduct(t, e, "Mentoria", "X", "P2", "")
	other := saveProduct(t, e, "Ebook", "P9", "", "")

	_, _, err := e.Guard.EnsureGrant(ctx, GrantRequest{Email: "a@b.com", PlanCode: "P2", PlanName: "Silver", ProductCode: "P2"})
	require.NoError(t, err)

	rec, err := e.Access.Reconcile(ctx, "a@b.com")
	require.NoError(t, err)
	require.Len(t, rec.AllProducts, 2)
	require.Len(t, rec.OwnedProducts, 1)
	assert.Equal(t, []string{"P2"}, rec.ActivePlans)
	require.Len(t, rec.Grants, 1)

	byID := map[int64]ProductAccess{}
	for _, pa := range rec.AllProducts {
		byID[pa.ID] = pa
	}
	assert.True(t, byID[owned.ID].HasAccess)
	assert.Equal(t, models.PLAN_SLOT_2, byID[owned.ID].MatchedPlan)
	assert.False(t, byID[other.ID].HasAccess)
	assert.Empty(t, byID[other.ID].MatchedPlan)

	assert.Equal(t, owned.ID, rec.OwnedProducts[0].ID)
	assert.Equal(t, models.PRODUCT_CATEGORY_OWNED, rec.OwnedProducts[0].Category)
}

func TestReconcileOrdering(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	a := saveProduct(t, e, "A", "P1", "", "")
	b := saveProduct(t, e, "B", "P1", "", "")
	c := saveProduct(t, e, "C", "P1", "", "")

	a.Description = "nova versão"
	require.NoError(t, e.Catalog.SaveProduct(ctx, a))

	rec, err := e.Access.Reconcile(ctx, "")
	require.NoError(t, err)
	require.Len(t, rec.AllProducts, 3)
	assert.Equal(t, []int64{a.ID, c.ID, b.ID}, []int64{rec.AllProducts[0].ID, rec.AllProducts[1].ID, rec.AllProducts[2].ID})
}

func TestReconcileBlankEmail(t *testing.T) {
	e, _ := newTestEngine(t)
	saveProduct(t, e, "A", "P1", "", "")

	rec, err := e.Access.Reconcile(context.Background(), "  ")
	require.NoError(t, err)
	assert.Len(t, rec.AllProducts, 1)
	assert.False(t, rec.AllProducts[0].HasAccess)
	assert.NotNil(t, rec.OwnedProducts)
	assert.Empty(t, rec.OwnedProducts)
	assert.NotNil(t, rec.ActivePlans)
	assert.Empty(t, rec.ActivePlans)
	assert.NotNil(t, rec.Grants)
	assert.Empty(t, rec.Grants)
}

func TestReconcileOrphanGrantCountsAsActivePlan(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	saveProduct(t, e, "A", "P1", "", "")

	_, err := e.Ingestor.Ingest(ctx, []byte(`{"sale_status_enum_key":"approved","email":"a@b.com","plan_code":"ORPHAN"}`))
	require.NoError(t, err)

	rec, err := e.Access.Reconcile(ctx, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"ORPHAN"}, rec.ActivePlans)
	assert.Empty(t, rec.OwnedProducts)

	// produto cadastrado depois passa a casar pelo código do plano
	later := saveProduct(t, e, "B", "", "", "ORPHAN")
	rec, err = e.Access.Reconcile(ctx, "a@b.com")
	require.NoError(t, err)
	require.Len(t, rec.OwnedProducts, 1)
	assert.Equal(t, later.ID, rec.OwnedProducts[0].ID)
	assert.Equal(t, models.PLAN_SLOT_3, rec.OwnedProducts[0].MatchedPlan)
}

func TestReconcileIgnoresRevoked(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	saveProduct(t, e, "A", "P1", "", "")

	res, err := e.Ingestor.Ingest(ctx, []byte(approvedGold))
	require.NoError(t, err)
	_, err = e.Grants.RevokeGrant(ctx, res.Grant.ID)
	require.NoError(t, err)

	rec, err := e.Access.Reconcile(ctx, "a@b.com")
	require.NoError(t, err)
	assert.Empty(t, rec.OwnedProducts)
	assert.Empty(t, rec.ActivePlans)
}

func TestSortProductsHandlesMissingTimestamps(t *testing.T) {
	now := time.Now()
	earlier := now.Add(-time.Hour)
	products := []models.Product{
		{ID: 1},
		{ID: 2, UpdatedAt: &earlier},
		{ID: 3, UpdatedAt: &now},
		{ID: 4},
	}
	sortProducts(products)
	assert.Equal(t, []int64{3, 2, 4, 1}, []int64{products[0].ID, products[1].ID, products[2].ID, products[3].ID})
}
