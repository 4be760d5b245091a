// Package seed loads a product catalog from a YAML file into the CatalogStore.
package seed

import (
	"context"
	"fmt"
	"os"
	"strings"

	"vitrine/models"
	"vitrine/store"

	"github.com/goccy/go-yaml"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// File is the YAML layout:
//
//	products:
//	  - name: Curso
//	    price: "99.90"
//	    plans: [P1, P2]
//	    gallery:
//	      - {kind: image, url: https://..., ordinal: 0}
type File struct {
	Products []Product `yaml:"products"`
}

type Product struct {
	ID          int64    `yaml:"id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	BannerURL   string   `yaml:"banner_url"`
	MediaURL    string   `yaml:"media_url"`
	AccessURL   string   `yaml:"access_url"`
	PurchaseURL string   `yaml:"purchase_url"`
	Price       string   `yaml:"price"`
	Category    string   `yaml:"category"`
	Plans       []string `yaml:"plans"`
	Gallery     []Media  `yaml:"gallery"`
}

type Media struct {
	Kind    string `yaml:"kind"`
	URL     string `yaml:"url"`
	Ordinal int    `yaml:"ordinal"`
}

// Parse decodes a seed document into catalog products.
func Parse(b []byte) ([]models.Product, error) {
	var f File
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}

	out := make([]models.Product, 0, len(f.Products))
	for i, sp := range f.Products {
		p, err := sp.toModel()
		if err != nil {
			return nil, fmt.Errorf("products[%d]: %w", i, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// LoadFile reads and parses a seed file.
func LoadFile(path string) ([]models.Product, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed %s: %w", path, err)
	}
	return Parse(b)
}

// Apply saves every product; the first failure stops the run.
func Apply(ctx context.Context, catalog store.CatalogStore, products []models.Product) (int, error) {
	for i := range products {
		if err := catalog.SaveProduct(ctx, &products[i]); err != nil {
			return i, fmt.Errorf("save %q: %w", products[i].Name, err)
		}
		log.Info().
			Int64("id", products[i].ID).
			Str("name", products[i].Name).
			Strs("plans", products[i].PlanCodes()).
			Int("gallery", len(products[i].Gallery)).
			Msg("seed: product saved")
	}
	return len(products), nil
}

func (sp Product) toModel() (models.Product, error) {
	p := models.Product{
		ID:          sp.ID,
		Name:        sp.Name,
		Description: sp.Description,
		BannerURL:   sp.BannerURL,
		MediaURL:    sp.MediaURL,
		AccessURL:   sp.AccessURL,
		PurchaseURL: sp.PurchaseURL,
		Category:    sp.Category,
		Gallery:     make([]models.MediaItem, 0, len(sp.Gallery)),
	}

	if s := strings.TrimSpace(sp.Price); s != "" {
		price, err := decimal.NewFromString(s)
		if err != nil {
			return p, fmt.Errorf("price %q: %w", sp.Price, err)
		}
		p.Price = price
	}

	if len(sp.Plans) > 3 {
		return p, fmt.Errorf("at most 3 plans per product, got %d", len(sp.Plans))
	}
	slots := []**string{&p.Plan1, &p.Plan2, &p.Plan3}
	for i, code := range sp.Plans {
		*slots[i] = models.PlanPtr(code)
	}

	for _, m := range sp.Gallery {
		p.Gallery = append(p.Gallery, models.MediaItem{Kind: m.Kind, URL: m.URL, Ordinal: m.Ordinal})
	}
	p.Normalize()
	return p, nil
}
