package models

import "time"

// StockLedger is the per-(conference, product) bookkeeping row ("stock history").
// A row exists only while the line is still short of its ordered quantity.
type StockLedger struct {
	ID                         int       `gorm:"primary_key" json:"id"`
	ConferenceId               int       `gorm:"not null;index:uniq_ledger_line,unique" json:"conference_id"`
	ProductName                string    `gorm:"size:150;not null;index:uniq_ledger_line,unique" json:"product_name"`
	Category                   Category  `gorm:"size:32;not null" json:"category"`
	CatalogEntryId             int       `gorm:"not null;index" json:"catalog_entry_id"`
	QuantityOrdered            int       `gorm:"not null;default:0" json:"quantity_ordered"`
	QuantityPreviouslyReceived int       `gorm:"not null;default:0" json:"quantity_previously_received"`
	QuantityReceived           int       `gorm:"not null;default:0" json:"quantity_received"`
	QuantityDelta              int       `gorm:"not null;default:0" json:"quantity_delta"`
	StockSnapshot              int       `gorm:"not null;default:0" json:"stock_snapshot"`
	CreatedAt                  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt                  time.Time `json:"updated_at"`
}

func (StockLedger) TableName() string {
	return "stock_history"
}

// Outstanding is the quantity still missing from the order.
func (l *StockLedger) Outstanding() int {
	return l.QuantityOrdered - l.QuantityReceived
}

func (l *StockLedger) Clone() *StockLedger {
	if l == nil {
		return nil
	}
	c := *l
	return &c
}
