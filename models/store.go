package models

import "context"

// Store is the tabular persistence the reconciliation workflow runs against.
// Find* methods return (nil, nil) when the row does not exist; Get* methods
// return utils.ErrorRecordNotFound.
type Store interface {
	ListCatalogEntries(ctx context.Context, category Category) ([]*CatalogEntry, error)
	GetCatalogEntry(ctx context.Context, category Category, id int) (*CatalogEntry, error)
	CreateCatalogEntry(ctx context.Context, entry *CatalogEntry) error
	// AddStock applies stock = stock + delta in a single statement and returns the new stock.
	AddStock(ctx context.Context, category Category, id int, delta int) (int, error)

	// ListConferences returns conferences ordered by date, then id.
	ListConferences(ctx context.Context) ([]*Conference, error)
	GetConferences(ctx context.Context, ids []int) ([]*Conference, error)

	FindLedger(ctx context.Context, conferenceId int, productName string) (*StockLedger, error)
	// FindLedgerByConference returns the most recently updated ledger row of the conference.
	FindLedgerByConference(ctx context.Context, conferenceId int) (*StockLedger, error)
	ListLedgers(ctx context.Context) ([]*StockLedger, error)
	// SaveLedger upserts by (conference_id, product_name).
	SaveLedger(ctx context.Context, ledger *StockLedger) error
	DeleteLedger(ctx context.Context, conferenceId int, productName string) error

	FindReconciledLine(ctx context.Context, conferenceId int, productName string) (*ReconciledLine, error)
	SaveReconciledLine(ctx context.Context, line *ReconciledLine) error
	DeleteReconciledLine(ctx context.Context, conferenceId int, productName string) error

	FindCatalogLink(ctx context.Context, nameKey string) (*CatalogLink, error)
	SaveCatalogLink(ctx context.Context, link *CatalogLink) error

	// Transaction runs fn atomically; fn must only use the Store it receives.
	Transaction(ctx context.Context, fn func(tx Store) error) error
}
