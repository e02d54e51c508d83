package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/gelato_backoffice/models"
	"github.com/mmdatafocus/gelato_backoffice/utils"
)

// StockApplier writes stock deltas to catalog entries and closes fully
// received ledger lines.
type StockApplier struct{}

func NewStockApplier() *StockApplier {
	return &StockApplier{}
}

// ApplyDelta adds delta to the entry's stock and returns the new stock.
// A zero delta performs no write and returns the stock as currently stored.
// Stock is not clamped at zero.
func (a *StockApplier) ApplyDelta(ctx context.Context, store models.Store, entry *models.CatalogEntry, delta int) (int, error) {
	if delta == 0 {
		current, err := store.GetCatalogEntry(ctx, entry.Category, entry.ID)
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return 0, fmt.Errorf("%w: %s #%d", ErrCatalogEntryNotFound, entry.Category, entry.ID)
		}
		if err != nil {
			return 0, fmt.Errorf("read stock of %s #%d: %w", entry.Category, entry.ID, err)
		}
		entry.Stock = current.Stock
		return current.Stock, nil
	}
	newStock, err := store.AddStock(ctx, entry.Category, entry.ID, delta)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return 0, fmt.Errorf("%w: %s #%d", ErrCatalogEntryNotFound, entry.Category, entry.ID)
		}
		return 0, fmt.Errorf("apply delta %d to %s #%d: %w", delta, entry.Category, entry.ID, err)
	}
	entry.Stock = newStock
	return newStock, nil
}

// FinalizeLine deletes the line's ledger row and records the received
// quantity as applied, so re-reading the conference yields a zero delta.
func (a *StockApplier) FinalizeLine(ctx context.Context, store models.Store, conferenceId int, line models.LineItem, entry *models.CatalogEntry, closedAt time.Time) error {
	if err := store.DeleteLedger(ctx, conferenceId, line.ProductName); err != nil {
		return fmt.Errorf("delete ledger of conference %d %q: %w", conferenceId, line.ProductName, err)
	}
	err := store.SaveReconciledLine(ctx, &models.ReconciledLine{
		ConferenceId:    conferenceId,
		ProductName:     line.ProductName,
		Category:        entry.Category,
		CatalogEntryId:  entry.ID,
		QuantityOrdered: line.QuantityOrdered,
		FinalReceived:   line.QuantityReceived,
		ClosedAt:        closedAt,
	})
	if err != nil {
		return fmt.Errorf("close conference %d %q: %w", conferenceId, line.ProductName, err)
	}
	return nil
}
