package services

import "vitrine/store"

// Engine bundles the entitlement components over one pair of stores.
// It holds no state of its own between calls.
type Engine struct {
	Catalog  store.CatalogStore
	Grants   store.GrantStore
	Guard    *IdempotencyGuard
	Ingestor *WebhookIngestor
	Access   *AccessService
}

func NewEngine(catalog store.CatalogStore, grants store.GrantStore) *Engine {
	guard := NewIdempotencyGuard(grants)
	return &Engine{
		Catalog:  catalog,
		Grants:   grants,
		Guard:    guard,
		Ingestor: NewWebhookIngestor(catalog, guard),
		Access:   NewAccessService(catalog, grants),
	}
}
