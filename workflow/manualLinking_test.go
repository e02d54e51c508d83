package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/mmdatafocus/gelato_backoffice/models"
	"github.com/mmdatafocus/gelato_backoffice/models/modelstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinkProduct_ReconcilesLatestOpenConference(t *testing.T) {
	ctx := context.Background()
	store := modelstest.NewMemoryStore()
	tapioca := store.SeedCatalogEntry(models.CategoryAccompaniments, "Tapioca", 2)
	older := putConference(t, store, 0, day(1), line("Tapioca Recheada", 5, 5))
	newer := putConference(t, store, 0, day(3), line("Tapioca Recheada", 10, 10))
	w := newTestWorkflow(store, LedgerScopeProduct)

	d, err := w.LinkProduct(ctx, "Tapioca Recheada", tapioca.ID, models.CategoryAccompaniments)
	require.NoError(t, err)
	assert.Equal(t, newer.ID, d.ConferenceId)
	assert.Equal(t, 10, d.Delta)
	assert.True(t, d.Finalized)
	assert.Equal(t, 12, stockOf(t, store, models.CategoryAccompaniments, tapioca.ID))

	link, err := store.FindCatalogLink(ctx, "tapioca recheada")
	require.NoError(t, err)
	require.NotNil(t, link)
	assert.Equal(t, tapioca.ID, link.CatalogEntryId)
	assert.Equal(t, models.CategoryAccompaniments, link.Category)

	// the older conference resolves through the stored link on the next run
	report, err := w.Reconcile(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, report.UnresolvedProducts)
	assert.Equal(t, []string{"Tapioca Recheada"}, report.UpdatedProducts)
	assert.Equal(t, 17, stockOf(t, store, models.CategoryAccompaniments, tapioca.ID))
	closing, err := store.FindReconciledLine(ctx, older.ID, "Tapioca Recheada")
	require.NoError(t, err)
	assert.NotNil(t, closing)
}

func TestLinkProduct_RepeatIsNoOp(t *testing.T) {
	ctx := context.Background()
	store := modelstest.NewMemoryStore()
	tapioca := store.SeedCatalogEntry(models.CategoryAccompaniments, "Tapioca", 0)
	putConference(t, store, 0, day(1), line("Tapioca Recheada", 8, 8))
	w := newTestWorkflow(store, LedgerScopeProduct)

	_, err := w.LinkProduct(ctx, "Tapioca Recheada", tapioca.ID, models.CategoryAccompaniments)
	require.NoError(t, err)
	d, err := w.LinkProduct(ctx, "tapioca recheada", tapioca.ID, models.CategoryAccompaniments)
	require.NoError(t, err)
	assert.Equal(t, 0, d.Delta)
	assert.Equal(t, 8, stockOf(t, store, models.CategoryAccompaniments, tapioca.ID))
}

func TestLinkProduct_PartialReceiptKeepsLedger(t *testing.T) {
	ctx := context.Background()
	store := modelstest.NewMemoryStore()
	entry := store.SeedCatalogEntry(models.CategorySeasonal, "Ovo de Páscoa Gelado", 0)
	conf := putConference(t, store, 0, day(1), line("Ovo Pascoa Gelado", 30, 12))
	w := newTestWorkflow(store, LedgerScopeProduct)

	_, err := w.LinkProduct(ctx, "Ovo Pascoa Gelado", entry.ID, models.CategorySeasonal)
	require.NoError(t, err)
	_, err = w.LinkProduct(ctx, "Ovo Pascoa Gelado", entry.ID, models.CategorySeasonal)
	require.NoError(t, err)
	assert.Equal(t, 12, stockOf(t, store, models.CategorySeasonal, entry.ID))

	l, err := store.FindLedger(ctx, conf.ID, "Ovo Pascoa Gelado")
	require.NoError(t, err)
	require.NotNil(t, l)
	assert.Equal(t, 12, l.QuantityReceived)
}

func TestLinkProduct_Errors(t *testing.T) {
	ctx := context.Background()
	store := modelstest.NewMemoryStore()
	tapioca := store.SeedCatalogEntry(models.CategoryAccompaniments, "Tapioca", 0)
	putConference(t, store, 0, day(1), line("Tapioca Recheada", 8, 8))
	w := newTestWorkflow(store, LedgerScopeProduct)

	_, err := w.LinkProduct(ctx, "  ", tapioca.ID, models.CategoryAccompaniments)
	assert.ErrorIs(t, err, ErrEmptyProductName)

	_, err = w.LinkProduct(ctx, "Tapioca Recheada", tapioca.ID, models.Category("toppings"))
	assert.ErrorIs(t, err, ErrUnknownCategory)

	_, err = w.LinkProduct(ctx, "Tapioca Recheada", 999, models.CategoryAccompaniments)
	assert.ErrorIs(t, err, ErrCatalogEntryNotFound)

	_, err = w.LinkProduct(ctx, "Cuscuz", tapioca.ID, models.CategoryAccompaniments)
	assert.ErrorIs(t, err, ErrNoPendingConference)

	assert.Equal(t, 0, stockOf(t, store, models.CategoryAccompaniments, tapioca.ID))
}

func TestLinkProduct_FailedApplyStoresNoLink(t *testing.T) {
	ctx := context.Background()
	store := modelstest.NewMemoryStore()
	tapioca := store.SeedCatalogEntry(models.CategoryAccompaniments, "Tapioca", 0)
	putConference(t, store, 0, day(1), line("Tapioca Recheada", 8, 8))
	store.InjectFailure("AddStock", errors.New("deadlock"))
	w := newTestWorkflow(store, LedgerScopeProduct)

	_, err := w.LinkProduct(ctx, "Tapioca Recheada", tapioca.ID, models.CategoryAccompaniments)
	require.Error(t, err)

	link, err := store.FindCatalogLink(ctx, "tapioca recheada")
	require.NoError(t, err)
	assert.Nil(t, link)
}

func TestRegisterCatalogEntry(t *testing.T) {
	ctx := context.Background()
	store := modelstest.NewMemoryStore()
	w := newTestWorkflow(store, LedgerScopeProduct)

	entry, err := w.RegisterCatalogEntry(ctx, "Tapioca", models.CategoryAccompaniments, 40)
	require.NoError(t, err)
	assert.NotZero(t, entry.ID)
	assert.Equal(t, 40, entry.Stock)
	assert.Equal(t, 40, stockOf(t, store, models.CategoryAccompaniments, entry.ID))

	resolver := NewCatalogResolver(store, NewMatchCache())
	found, ok, err := resolver.Resolve(ctx, models.CategoryAccompaniments, "TAPIOCÁ")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, entry.ID, found.ID)

	_, err = w.RegisterCatalogEntry(ctx, " tapioca ", models.CategoryAccompaniments, 1)
	assert.ErrorIs(t, err, ErrDuplicateCatalogEntry)

	// the same name may live in another category
	_, err = w.RegisterCatalogEntry(ctx, "Tapioca", models.CategoryCampaigns, 0)
	assert.NoError(t, err)

	_, err = w.RegisterCatalogEntry(ctx, "", models.CategoryAccompaniments, 1)
	assert.ErrorIs(t, err, ErrEmptyProductName)

	_, err = w.RegisterCatalogEntry(ctx, "Granola", models.Category("toppings"), 1)
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestRegisterCatalogEntry_KeepsLedgerRowsBoundElsewhere(t *testing.T) {
	ctx := context.Background()
	store := modelstest.NewMemoryStore()
	tapioca := store.SeedCatalogEntry(models.CategoryAccompaniments, "Tapioca", 3)
	conf := putConference(t, store, 0, day(2), line("Tapioca", 20, 10))
	w := newTestWorkflow(store, LedgerScopeProduct)

	_, err := w.Reconcile(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 13, stockOf(t, store, models.CategoryAccompaniments, tapioca.ID))

	campaign, err := w.RegisterCatalogEntry(ctx, "Tapioca", models.CategoryCampaigns, 999)
	require.NoError(t, err)

	l, err := store.FindLedger(ctx, conf.ID, "Tapioca")
	require.NoError(t, err)
	require.NotNil(t, l)
	assert.Equal(t, models.CategoryAccompaniments, l.Category)
	assert.Equal(t, tapioca.ID, l.CatalogEntryId)
	assert.Equal(t, 13, l.StockSnapshot)

	// the line keeps reconciling against the entry it started on
	putConference(t, store, conf.ID, day(2), line("Tapioca", 20, 14))
	_, err = w.Reconcile(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 17, stockOf(t, store, models.CategoryAccompaniments, tapioca.ID))
	assert.Equal(t, 999, stockOf(t, store, models.CategoryCampaigns, campaign.ID))
}

func TestRegisterCatalogEntry_BindsImportedLedgerRows(t *testing.T) {
	ctx := context.Background()
	store := modelstest.NewMemoryStore()
	// rows imported from the previous system carry no catalog id
	require.NoError(t, store.SaveLedger(ctx, &models.StockLedger{
		ConferenceId:     4,
		ProductName:      "Cuscuz Gelado",
		QuantityOrdered:  10,
		QuantityReceived: 6,
		StockSnapshot:    6,
	}))
	w := newTestWorkflow(store, LedgerScopeProduct)

	entry, err := w.RegisterCatalogEntry(ctx, "cuscuz gelado", models.CategoryFrozen, 40)
	require.NoError(t, err)

	l, err := store.FindLedger(ctx, 4, "Cuscuz Gelado")
	require.NoError(t, err)
	assert.Equal(t, models.CategoryFrozen, l.Category)
	assert.Equal(t, entry.ID, l.CatalogEntryId)
	assert.Equal(t, 40, l.StockSnapshot)
	assert.Equal(t, 6, l.QuantityReceived)
}

func TestRegisterCatalogEntry_LedgerFailureIsTolerated(t *testing.T) {
	store := modelstest.NewMemoryStore()
	store.InjectFailure("ListLedgers", errors.New("timeout"))
	w := newTestWorkflow(store, LedgerScopeProduct)

	entry, err := w.RegisterCatalogEntry(context.Background(), "Tapioca", models.CategoryAccompaniments, 40)
	require.NoError(t, err)
	assert.Equal(t, 40, stockOf(t, store, models.CategoryAccompaniments, entry.ID))
}

func TestLinkedLineStaysOnItsEntryAfterRegistration(t *testing.T) {
	ctx := context.Background()
	store := modelstest.NewMemoryStore()
	tapioca := store.SeedCatalogEntry(models.CategoryAccompaniments, "Tapioca", 0)
	conf := putConference(t, store, 0, day(1), line("Tapioca Recheada", 20, 10))
	w := newTestWorkflow(store, LedgerScopeProduct)

	_, err := w.LinkProduct(ctx, "Tapioca Recheada", tapioca.ID, models.CategoryAccompaniments)
	require.NoError(t, err)
	frozen, err := w.RegisterCatalogEntry(ctx, "Tapioca Recheada", models.CategoryFrozen, 0)
	require.NoError(t, err)

	// the open line is bound to the linked entry through its ledger row
	putConference(t, store, conf.ID, day(1), line("Tapioca Recheada", 20, 15))
	report, err := w.Reconcile(ctx, false)
	require.NoError(t, err)
	require.Len(t, report.Deltas, 1)
	assert.Equal(t, 5, report.Deltas[0].Delta)
	assert.Equal(t, 15, stockOf(t, store, models.CategoryAccompaniments, tapioca.ID))
	assert.Equal(t, 0, stockOf(t, store, models.CategoryFrozen, frozen.ID))

	// an unseen line with the linked name follows the link over the exact match
	putConference(t, store, 0, day(2), line("Tapioca Recheada", 4, 4))
	_, err = w.Reconcile(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 19, stockOf(t, store, models.CategoryAccompaniments, tapioca.ID))
	assert.Equal(t, 0, stockOf(t, store, models.CategoryFrozen, frozen.ID))
}
