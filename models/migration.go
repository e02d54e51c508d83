package models

import (
	"gorm.io/gorm"
)

// MigrateTable creates the nine catalog tables and the reconciliation tables.
func MigrateTable(db *gorm.DB) error {
	for _, category := range Categories() {
		if err := db.Table(category.TableName()).AutoMigrate(&CatalogEntry{}); err != nil {
			return err
		}
	}
	return db.AutoMigrate(
		&Conference{},
		&StockLedger{},
		&ReconciledLine{},
		&CatalogLink{},
	)
}
