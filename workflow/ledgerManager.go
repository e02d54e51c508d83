package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/mmdatafocus/gelato_backoffice/models"
)

// LedgerScope selects how the previously received quantity of a line is found.
type LedgerScope string

const (
	// LedgerScopeProduct reads the ledger row of the (conference, product) pair.
	LedgerScopeProduct LedgerScope = "product"
	// LedgerScopeConference reads the most recent ledger row of the conference,
	// whatever its product. Lines of one conference then share a baseline, so
	// runs using it must process lines one at a time.
	LedgerScopeConference LedgerScope = "conference"
)

func ParseLedgerScope(s string) LedgerScope {
	if LedgerScope(s) == LedgerScopeConference {
		return LedgerScopeConference
	}
	return LedgerScopeProduct
}

// StockDelta is the outcome of reconciling one line.
type StockDelta struct {
	ConferenceId       int             `json:"conference_id"`
	ProductName        string          `json:"product_name"`
	Category           models.Category `json:"category"`
	CatalogEntryId     int             `json:"catalog_entry_id"`
	PreviouslyReceived int             `json:"previously_received"`
	Received           int             `json:"received"`
	Delta              int             `json:"delta"`
	Stock              int             `json:"stock"`
	Finalized          bool            `json:"finalized"`
	Reopened           bool            `json:"reopened"`
}

// LedgerManager keeps the per-line bookkeeping that makes repeated passes over
// the same conference idempotent.
type LedgerManager struct {
	scope   LedgerScope
	applier *StockApplier
	now     func() time.Time
}

func NewLedgerManager(scope LedgerScope, applier *StockApplier) *LedgerManager {
	if applier == nil {
		applier = NewStockApplier()
	}
	return &LedgerManager{scope: ParseLedgerScope(string(scope)), applier: applier, now: time.Now}
}

func (m *LedgerManager) Scope() LedgerScope {
	return m.scope
}

// ReconcileLine applies received - previously_received to entry and updates
// the ledger. store should be a transaction so the stock write and the
// bookkeeping land together.
func (m *LedgerManager) ReconcileLine(ctx context.Context, store models.Store, conferenceId int, line models.LineItem, entry *models.CatalogEntry) (*StockDelta, error) {
	existing, err := m.previousLedger(ctx, store, conferenceId, line.ProductName)
	if err != nil {
		return nil, err
	}
	closing, err := store.FindReconciledLine(ctx, conferenceId, line.ProductName)
	if err != nil {
		return nil, fmt.Errorf("read closing of conference %d %q: %w", conferenceId, line.ProductName, err)
	}

	previously := 0
	switch {
	case existing != nil:
		previously = existing.QuantityReceived
	case closing != nil:
		previously = closing.FinalReceived
	}
	delta := line.QuantityReceived - previously

	result := &StockDelta{
		ConferenceId:       conferenceId,
		ProductName:        line.ProductName,
		Category:           entry.Category,
		CatalogEntryId:     entry.ID,
		PreviouslyReceived: previously,
		Received:           line.QuantityReceived,
		Delta:              delta,
	}

	stock, err := m.applier.ApplyDelta(ctx, store, entry, delta)
	if err != nil {
		return nil, err
	}
	result.Stock = stock
	now := m.now()

	if line.FullyReceived() {
		if delta == 0 && closing != nil && !ownsLedger(existing, line.ProductName) {
			return result, nil
		}
		if err := m.applier.FinalizeLine(ctx, store, conferenceId, line, entry, now); err != nil {
			return nil, err
		}
		result.Finalized = true
		return result, nil
	}

	if closing != nil {
		// received went back below ordered after the line was closed
		if err := store.DeleteReconciledLine(ctx, conferenceId, line.ProductName); err != nil {
			return nil, fmt.Errorf("reopen conference %d %q: %w", conferenceId, line.ProductName, err)
		}
		result.Reopened = true
	}

	if delta == 0 && ownsLedger(existing, line.ProductName) && existing.QuantityOrdered == line.QuantityOrdered && !result.Reopened {
		result.Stock = existing.StockSnapshot
		return result, nil
	}

	err = store.SaveLedger(ctx, &models.StockLedger{
		ConferenceId:               conferenceId,
		ProductName:                line.ProductName,
		Category:                   entry.Category,
		CatalogEntryId:             entry.ID,
		QuantityOrdered:            line.QuantityOrdered,
		QuantityPreviouslyReceived: previously,
		QuantityReceived:           line.QuantityReceived,
		QuantityDelta:              delta,
		StockSnapshot:              stock,
		UpdatedAt:                  now,
	})
	if err != nil {
		return nil, fmt.Errorf("save ledger of conference %d %q: %w", conferenceId, line.ProductName, err)
	}
	return result, nil
}

func (m *LedgerManager) previousLedger(ctx context.Context, store models.Store, conferenceId int, productName string) (*models.StockLedger, error) {
	var (
		l   *models.StockLedger
		err error
	)
	if m.scope == LedgerScopeConference {
		l, err = store.FindLedgerByConference(ctx, conferenceId)
	} else {
		l, err = store.FindLedger(ctx, conferenceId, productName)
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger of conference %d %q: %w", conferenceId, productName, err)
	}
	return l, nil
}

func ownsLedger(l *models.StockLedger, productName string) bool {
	return l != nil && l.ProductName == productName
}
