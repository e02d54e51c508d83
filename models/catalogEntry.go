package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CatalogEntry is a stocked product row. The same struct backs all nine
// category tables; Category selects the table and is not persisted.
type CatalogEntry struct {
	ID                int             `gorm:"primary_key" json:"id"`
	Category          Category        `gorm:"-" json:"category"`
	Name              string          `gorm:"size:150;not null;index" json:"name"`
	Stock             int             `gorm:"not null;default:0" json:"stock"`
	AvailableForOrder *bool           `gorm:"not null;default:true" json:"available_for_order"`
	Weight            decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"weight"`
	Price             decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"price"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCatalogEntry struct {
	Name         string   `json:"name" binding:"required" validate:"required,max=150"`
	Category     Category `json:"category" binding:"required" validate:"required"`
	InitialStock int      `json:"initial_stock"`
}

func (e *CatalogEntry) Clone() *CatalogEntry {
	if e == nil {
		return nil
	}
	c := *e
	if e.AvailableForOrder != nil {
		b := *e.AvailableForOrder
		c.AvailableForOrder = &b
	}
	return &c
}
