package models

import (
	"strings"
	"time"
)

/************************************************
/**** MARK: MEDIA KINDS ****/
/************************************************/
const MEDIA_KIND_IMAGE = "image"
const MEDIA_KIND_VIDEO = "video"

// MediaItem é um item da galeria de um produto. Pertence a exatamente um produto
// e é recriado por inteiro sempre que a galeria é editada.
type MediaItem struct {
	ID        int64      `gorm:"primary_key;AUTO_INCREMENT" json:"-"`
	ProductID int64      `gorm:"not null;index" json:"-"`
	Kind      string     `gorm:"not null" json:"kind"`
	URL       string     `gorm:"column:url;type:text;not null" json:"url"`
	Ordinal   int        `gorm:"not null;default:0" json:"ordinal"`
	CreatedAt *time.Time `json:"-"`
}

func IsValidMediaKind(kind string) bool {
	return kind == MEDIA_KIND_IMAGE || kind == MEDIA_KIND_VIDEO
}

func (m MediaItem) MissingFields() string {
	if !IsValidMediaKind(m.Kind) {
		return "kind"
	} else if strings.TrimSpace(m.URL) == "" {
		return "url"
	} else if m.Ordinal < 0 {
		return "ordinal"
	}
	return ""
}
