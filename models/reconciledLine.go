package models

import "time"

// ReconciledLine marks a (conference, product) pair whose ledger row was
// finalized. FinalReceived is the quantity already applied to stock, so a
// later pass over the same conference computes its delta from it.
// Unique constraint: (conference_id, product_name).
type ReconciledLine struct {
	ID              int       `gorm:"primary_key" json:"id"`
	ConferenceId    int       `gorm:"not null;index:uniq_reconciled_line,unique" json:"conference_id"`
	ProductName     string    `gorm:"size:150;not null;index:uniq_reconciled_line,unique" json:"product_name"`
	Category        Category  `gorm:"size:32;not null" json:"category"`
	CatalogEntryId  int       `gorm:"not null" json:"catalog_entry_id"`
	QuantityOrdered int       `gorm:"not null;default:0" json:"quantity_ordered"`
	FinalReceived   int       `gorm:"not null;default:0" json:"final_received"`
	ClosedAt        time.Time `gorm:"not null" json:"closed_at"`
}

func (ReconciledLine) TableName() string {
	return "reconciled_lines"
}

func (r *ReconciledLine) Clone() *ReconciledLine {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}
