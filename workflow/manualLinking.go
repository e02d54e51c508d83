package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mmdatafocus/gelato_backoffice/models"
	"github.com/mmdatafocus/gelato_backoffice/utils"
	"github.com/sirupsen/logrus"
)

// LinkProduct binds originalName to an existing catalog entry and reconciles
// the most recent conference line carrying that name which is not yet closed.
// The link is stored so later runs resolve the name without operator help.
// Calling it again for an already reconciled line changes nothing.
func (w *ReconciliationWorkflow) LinkProduct(ctx context.Context, originalName string, catalogId int, category models.Category) (*StockDelta, error) {
	name := strings.TrimSpace(originalName)
	if name == "" {
		return nil, ErrEmptyProductName
	}
	if !category.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}

	unlock, err := w.opts.Locker.Lock(ctx, w.opts.StoreId)
	if err != nil {
		return nil, err
	}
	defer unlock()

	entry, err := w.store.GetCatalogEntry(ctx, category, catalogId)
	if errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, fmt.Errorf("%w: %s #%d", ErrCatalogEntryNotFound, category, catalogId)
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog entry %s #%d: %w", category, catalogId, err)
	}
	entry.Category = category

	key := NormalizeName(name)
	conferenceId, line, closed, err := w.latestOpenLine(ctx, key)
	if err != nil {
		return nil, err
	}
	link := &models.CatalogLink{
		NameKey:        key,
		OriginalName:   name,
		Category:       category,
		CatalogEntryId: catalogId,
	}

	if conferenceId == 0 {
		if !closed {
			return nil, fmt.Errorf("%w: %q", ErrNoPendingConference, name)
		}
		// every line with the name is already reconciled
		if err := w.store.SaveCatalogLink(ctx, link); err != nil {
			return nil, fmt.Errorf("save catalog link %q: %w", key, err)
		}
		return &StockDelta{ProductName: name, Category: category, CatalogEntryId: catalogId, Stock: entry.Stock}, nil
	}

	var result *StockDelta
	err = w.store.Transaction(ctx, func(tx models.Store) error {
		delta, err := w.ledger.ReconcileLine(ctx, tx, conferenceId, line, entry)
		if err != nil {
			return err
		}
		if err := tx.SaveCatalogLink(ctx, link); err != nil {
			return fmt.Errorf("save catalog link %q: %w", key, err)
		}
		result = delta
		return nil
	})
	if err != nil {
		return nil, err
	}

	w.logger.WithFields(logrus.Fields{
		"field":            "LinkProduct",
		"store_id":         w.opts.StoreId,
		"product_name":     name,
		"conference_id":    conferenceId,
		"category":         category,
		"catalog_entry_id": catalogId,
		"delta":            result.Delta,
	}).Info("product linked")
	return result, nil
}

// latestOpenLine finds the newest conference with a line whose normalized name
// is key and which has no closing record. closed reports whether a matching
// line exists but every such line is closed.
func (w *ReconciliationWorkflow) latestOpenLine(ctx context.Context, key string) (int, models.LineItem, bool, error) {
	conferences, err := w.store.ListConferences(ctx)
	if err != nil {
		return 0, models.LineItem{}, false, fmt.Errorf("list conferences: %w", err)
	}
	closed := false
	for i := len(conferences) - 1; i >= 0; i-- {
		conf := conferences[i]
		lines, err := conf.LineItems()
		if err != nil {
			continue
		}
		for _, line := range mergeDuplicateLines(lines) {
			if NormalizeName(line.ProductName) != key {
				continue
			}
			closing, err := w.store.FindReconciledLine(ctx, conf.ID, line.ProductName)
			if err != nil {
				return 0, models.LineItem{}, false, fmt.Errorf("read closing of conference %d %q: %w", conf.ID, line.ProductName, err)
			}
			if closing != nil && closing.FinalReceived == line.QuantityReceived {
				closed = true
				continue
			}
			return conf.ID, line, false, nil
		}
	}
	return 0, models.LineItem{}, closed, nil
}

// RegisterCatalogEntry creates a catalog entry for a product that has none.
// Open ledger rows carrying its name that are not bound to any entry, such as
// rows imported without a catalog id, are bound to the new entry with its
// stock as snapshot. Rows already bound elsewhere keep their entry. Deltas
// already recorded are not replayed against the new entry.
func (w *ReconciliationWorkflow) RegisterCatalogEntry(ctx context.Context, name string, category models.Category, initialStock int) (*models.CatalogEntry, error) {
	input := models.NewCatalogEntry{
		Name:         strings.TrimSpace(name),
		Category:     category,
		InitialStock: initialStock,
	}
	if input.Name == "" {
		return nil, ErrEmptyProductName
	}
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if !category.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}

	unlock, err := w.opts.Locker.Lock(ctx, w.opts.StoreId)
	if err != nil {
		return nil, err
	}
	defer unlock()

	key := NormalizeName(input.Name)
	existing, err := w.store.ListCatalogEntries(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", category, err)
	}
	for _, e := range existing {
		if NormalizeName(e.Name) == key {
			return nil, fmt.Errorf("%w: %q in %s", ErrDuplicateCatalogEntry, input.Name, category)
		}
	}

	entry := &models.CatalogEntry{
		Category:          category,
		Name:              input.Name,
		Stock:             input.InitialStock,
		AvailableForOrder: utils.NewTrue(),
	}
	if err := w.store.CreateCatalogEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("create %s entry %q: %w", category, input.Name, err)
	}

	logger := w.logger.WithFields(logrus.Fields{
		"field":            "RegisterCatalogEntry",
		"store_id":         w.opts.StoreId,
		"category":         category,
		"catalog_entry_id": entry.ID,
		"product_name":     entry.Name,
	})
	ledgers, err := w.store.ListLedgers(ctx)
	if err != nil {
		logger.Warn("catalog entry created; ledger snapshots not refreshed: " + err.Error())
		return entry, nil
	}
	refreshed := 0
	for _, l := range ledgers {
		if NormalizeName(l.ProductName) != key || l.CatalogEntryId != 0 {
			continue
		}
		l.Category = category
		l.CatalogEntryId = entry.ID
		l.StockSnapshot = entry.Stock
		l.UpdatedAt = w.now()
		if err := w.store.SaveLedger(ctx, l); err != nil {
			logger.WithField("conference_id", l.ConferenceId).Warn("ledger snapshot not refreshed: " + err.Error())
			continue
		}
		refreshed++
	}
	logger.WithField("refreshed_ledgers", refreshed).Info("catalog entry registered")
	return entry, nil
}
