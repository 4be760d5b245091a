package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"vitrine/apperrors"
	"vitrine/gallery"
	"vitrine/models"

	"github.com/jinzhu/gorm"
)

// CatalogStore gives read/write access to products and their ordered galleries.
type CatalogStore interface {
	// FindProductByPlan returns the lowest-id product declaring code in any plan slot, or nil.
	FindProductByPlan(ctx context.Context, code string) (*models.Product, error)
	// ListProducts returns every product with its gallery, most recently updated first.
	ListProducts(ctx context.Context) ([]models.Product, error)
	// GetProduct returns a NotFound error for unknown ids.
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	SaveProduct(ctx context.Context, p *models.Product) error
	DeleteProduct(ctx context.Context, id int64) error
}

type catalogStore struct {
	base
}

// NewCatalogStore creates a CatalogStore over db. Every call is bounded by timeout (0 = no limit).
func NewCatalogStore(db *gorm.DB, timeout time.Duration) CatalogStore {
	return &catalogStore{base{db: db, timeout: timeout}}
}

// productRow is a product plus its media aggregated by the database into one string.
type productRow struct {
	models.Product
	GalleryRaw string `gorm:"column:gallery_raw"`
}

const productQuery = `SELECT p.*, COALESCE(g.gallery_raw, '') AS gallery_raw
FROM products p
LEFT JOIN (
	SELECT m.product_id, %s AS gallery_raw
	FROM media_items m
	GROUP BY m.product_id
) g ON g.product_id = p.id`

func (s *catalogStore) selectProducts(db *gorm.DB, where string) string {
	agg := `group_concat(json_object('kind', m.kind, 'url', m.url, 'ordinal', m.ordinal), ',')`
	if db.Dialect().GetName() == "postgres" {
		agg = `string_agg(json_build_object('kind', m.kind, 'url', m.url, 'ordinal', m.ordinal)::text, ',')`
	}
	q := fmt.Sprintf(productQuery, agg)
	if where != "" {
		q += " WHERE " + where
	}
	return q
}

func (s *catalogStore) FindProductByPlan(ctx context.Context, code string) (*models.Product, error) {
	if code == "" {
		return nil, nil
	}
	var rows []productRow
	err := s.run(ctx, "find_product_by_plan", func(db *gorm.DB) error {
		q := s.selectProducts(db, "p.plan_1 = ? OR p.plan_2 = ? OR p.plan_3 = ?") + " ORDER BY p.id ASC LIMIT 1"
		return db.Raw(q, code, code, code).Scan(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	p := rows[0].assemble()
	return &p, nil
}

func (s *catalogStore) ListProducts(ctx context.Context) ([]models.Product, error) {
	var rows []productRow
	err := s.run(ctx, "list_products", func(db *gorm.DB) error {
		q := s.selectProducts(db, "") + " ORDER BY p.updated_at DESC, p.created_at DESC, p.id DESC"
		return db.Raw(q).Scan(&rows).Error
	})
	if err != nil {
		return nil, err
	}

	products := make([]models.Product, 0, len(rows))
	for _, r := range rows {
		products = append(products, r.assemble())
	}
	return products, nil
}

func (s *catalogStore) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	var rows []productRow
	err := s.run(ctx, "get_product", func(db *gorm.DB) error {
		return db.Raw(s.selectProducts(db, "p.id = ?"), id).Scan(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperrors.NotFound("get_product", "produto não encontrado")
	}
	p := rows[0].assemble()
	return &p, nil
}

// SaveProduct creates or updates p and replaces its gallery wholesale.
func (s *catalogStore) SaveProduct(ctx context.Context, p *models.Product) error {
	if p == nil {
		return apperrors.Validation("save_product", "produto é obrigatório")
	}
	p.Normalize()
	if missing := p.MissingFields(); missing != "" {
		return apperrors.Validation("save_product", "Faltando campo "+missing)
	}

	media := make([]models.MediaItem, len(p.Gallery))
	copy(media, p.Gallery)

	err := s.run(ctx, "save_product", func(db *gorm.DB) error {
		tx := db.Begin()
		noAssoc := tx.Set("gorm:save_associations", false)

		var err error
		if p.ID == 0 {
			err = noAssoc.Create(p).Error
		} else {
			err = noAssoc.Save(p).Error
		}
		if err != nil {
			tx.Rollback()
			return err
		}

		if err := tx.Where("product_id = ?", p.ID).Delete(&models.MediaItem{}).Error; err != nil {
			tx.Rollback()
			return err
		}
		for i := range media {
			media[i].ID = 0
			media[i].ProductID = p.ID
			if err := tx.Create(&media[i]).Error; err != nil {
				tx.Rollback()
				return err
			}
		}

		return tx.Commit().Error
	})
	if err != nil {
		return err
	}

	sort.SliceStable(media, func(i, j int) bool { return media[i].Ordinal < media[j].Ordinal })
	p.Gallery = media
	return nil
}

// DeleteProduct removes a product and its media.
func (s *catalogStore) DeleteProduct(ctx context.Context, id int64) error {
	var affected int64
	err := s.run(ctx, "delete_product", func(db *gorm.DB) error {
		tx := db.Begin()
		if err := tx.Where("product_id = ?", id).Delete(&models.MediaItem{}).Error; err != nil {
			tx.Rollback()
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.Product{})
		if res.Error != nil {
			tx.Rollback()
			return res.Error
		}
		affected = res.RowsAffected
		return tx.Commit().Error
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperrors.NotFound("delete_product", "produto não encontrado")
	}
	return nil
}

func (r productRow) assemble() models.Product {
	p := r.Product
	p.Gallery = gallery.Assemble(r.GalleryRaw)
	p.Normalize()
	return p
}
