package models

import "time"

// CatalogLink binds a product name that never resolved on its own to a
// catalog entry chosen by an operator. NameKey is the normalized name.
type CatalogLink struct {
	ID             int       `gorm:"primary_key" json:"id"`
	NameKey        string    `gorm:"size:150;not null;uniqueIndex" json:"name_key"`
	OriginalName   string    `gorm:"size:150;not null" json:"original_name"`
	Category       Category  `gorm:"size:32;not null" json:"category"`
	CatalogEntryId int       `gorm:"not null" json:"catalog_entry_id"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (CatalogLink) TableName() string {
	return "catalog_links"
}

func (l *CatalogLink) Clone() *CatalogLink {
	if l == nil {
		return nil
	}
	c := *l
	return &c
}
