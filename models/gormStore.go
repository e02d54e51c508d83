package models

import (
	"context"
	"errors"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/mmdatafocus/gelato_backoffice/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore implements Store on MySQL through gorm.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

func (s *GormStore) ListCatalogEntries(ctx context.Context, category Category) ([]*CatalogEntry, error) {
	if !category.IsValid() {
		return nil, ErrUnknownCategory
	}
	var entries []*CatalogEntry
	if err := s.db.WithContext(ctx).Table(category.TableName()).Order("id").Find(&entries).Error; err != nil {
		return nil, err
	}
	for _, e := range entries {
		e.Category = category
	}
	return entries, nil
}

func (s *GormStore) GetCatalogEntry(ctx context.Context, category Category, id int) (*CatalogEntry, error) {
	if !category.IsValid() {
		return nil, ErrUnknownCategory
	}
	var entry CatalogEntry
	err := s.db.WithContext(ctx).Table(category.TableName()).Where("id = ?", id).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	entry.Category = category
	return &entry, nil
}

func (s *GormStore) CreateCatalogEntry(ctx context.Context, entry *CatalogEntry) error {
	if !entry.Category.IsValid() {
		return ErrUnknownCategory
	}
	if entry.AvailableForOrder == nil {
		entry.AvailableForOrder = utils.NewTrue()
	}
	return s.db.WithContext(ctx).Table(entry.Category.TableName()).Create(entry).Error
}

func (s *GormStore) AddStock(ctx context.Context, category Category, id int, delta int) (int, error) {
	if !category.IsValid() {
		return 0, ErrUnknownCategory
	}
	db := s.db.WithContext(ctx)
	res := db.Table(category.TableName()).Where("id = ?", id).UpdateColumns(map[string]interface{}{
		"stock":      gorm.Expr("stock + ?", delta),
		"updated_at": time.Now(),
	})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, utils.ErrorRecordNotFound
	}
	var stocks []int
	if err := db.Table(category.TableName()).Where("id = ?", id).Pluck("stock", &stocks).Error; err != nil {
		return 0, err
	}
	if len(stocks) == 0 {
		return 0, utils.ErrorRecordNotFound
	}
	return stocks[0], nil
}

func (s *GormStore) ListConferences(ctx context.Context) ([]*Conference, error) {
	var conferences []*Conference
	if err := s.db.WithContext(ctx).Order("date, id").Find(&conferences).Error; err != nil {
		return nil, err
	}
	return conferences, nil
}

func (s *GormStore) GetConferences(ctx context.Context, ids []int) ([]*Conference, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var conferences []*Conference
	if err := s.db.WithContext(ctx).Where("id IN ?", utils.UniqueSlice(ids)).Order("date, id").Find(&conferences).Error; err != nil {
		return nil, err
	}
	return conferences, nil
}

func (s *GormStore) FindLedger(ctx context.Context, conferenceId int, productName string) (*StockLedger, error) {
	var rows []*StockLedger
	if err := s.db.WithContext(ctx).
		Where("conference_id = ? AND product_name = ?", conferenceId, productName).
		Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (s *GormStore) FindLedgerByConference(ctx context.Context, conferenceId int) (*StockLedger, error) {
	var rows []*StockLedger
	if err := s.db.WithContext(ctx).
		Where("conference_id = ?", conferenceId).
		Order("updated_at DESC, id DESC").
		Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (s *GormStore) ListLedgers(ctx context.Context) ([]*StockLedger, error) {
	var rows []*StockLedger
	if err := s.db.WithContext(ctx).Order("conference_id, id").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *GormStore) SaveLedger(ctx context.Context, ledger *StockLedger) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "conference_id"}, {Name: "product_name"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"category", "catalog_entry_id", "quantity_ordered", "quantity_previously_received",
			"quantity_received", "quantity_delta", "stock_snapshot", "updated_at",
		}),
	}).Create(ledger).Error
}

func (s *GormStore) DeleteLedger(ctx context.Context, conferenceId int, productName string) error {
	return s.db.WithContext(ctx).
		Where("conference_id = ? AND product_name = ?", conferenceId, productName).
		Delete(&StockLedger{}).Error
}

func (s *GormStore) FindReconciledLine(ctx context.Context, conferenceId int, productName string) (*ReconciledLine, error) {
	var rows []*ReconciledLine
	if err := s.db.WithContext(ctx).
		Where("conference_id = ? AND product_name = ?", conferenceId, productName).
		Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// SaveReconciledLine inserts the marker; an existing marker for the same line is overwritten.
func (s *GormStore) SaveReconciledLine(ctx context.Context, line *ReconciledLine) error {
	db := s.db.WithContext(ctx)
	err := db.Create(line).Error
	if err == nil || !isDuplicateKeyErr(err) {
		return err
	}
	return db.Model(&ReconciledLine{}).
		Where("conference_id = ? AND product_name = ?", line.ConferenceId, line.ProductName).
		Updates(map[string]interface{}{
			"category":         line.Category,
			"catalog_entry_id": line.CatalogEntryId,
			"quantity_ordered": line.QuantityOrdered,
			"final_received":   line.FinalReceived,
			"closed_at":        line.ClosedAt,
		}).Error
}

func (s *GormStore) DeleteReconciledLine(ctx context.Context, conferenceId int, productName string) error {
	return s.db.WithContext(ctx).
		Where("conference_id = ? AND product_name = ?", conferenceId, productName).
		Delete(&ReconciledLine{}).Error
}

func (s *GormStore) FindCatalogLink(ctx context.Context, nameKey string) (*CatalogLink, error) {
	var rows []*CatalogLink
	if err := s.db.WithContext(ctx).Where("name_key = ?", nameKey).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (s *GormStore) SaveCatalogLink(ctx context.Context, link *CatalogLink) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"original_name", "category", "catalog_entry_id", "updated_at"}),
	}).Create(link).Error
}

func (s *GormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}
