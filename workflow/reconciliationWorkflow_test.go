package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/mmdatafocus/gelato_backoffice/models"
	"github.com/mmdatafocus/gelato_backoffice/models/modelstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu      sync.Mutex
	reports []*Report
	err     error
}

func (p *recordingPublisher) Publish(ctx context.Context, report *Report) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reports = append(p.reports, report)
	return p.err
}

func TestReconcile_FullyReceivedOnFirstPass(t *testing.T) {
	ctx := context.Background()
	store := modelstest.NewMemoryStore()
	acai := store.SeedCatalogEntry(models.CategoryAcai, "Açaí - Tradicional", 5)
	c1 := putConference(t, store, 0, day(1), line("Açaí - Tradicional", 30, 30))

	report, err := newTestWorkflow(store, LedgerScopeProduct).Reconcile(ctx, false)
	require.NoError(t, err)

	assert.Equal(t, []string{"Açaí - Tradicional"}, report.UpdatedProducts)
	assert.Empty(t, report.UnresolvedProducts)
	assert.Empty(t, report.FailedProducts)
	assert.False(t, report.Cancelled)
	require.Len(t, report.Deltas, 1)
	assert.Equal(t, 30, report.Deltas[0].Delta)
	assert.Equal(t, 35, stockOf(t, store, models.CategoryAcai, acai.ID))

	l, err := store.FindLedger(ctx, c1.ID, "Açaí - Tradicional")
	require.NoError(t, err)
	assert.Nil(t, l)
}

func TestReconcile_SecondRunIsNoOp(t *testing.T) {
	ctx := context.Background()
	store := modelstest.NewMemoryStore()
	massa := store.SeedCatalogEntry(models.CategoryIceCream, "Massa Baunilha 5L", 1)
	copo := store.SeedCatalogEntry(models.CategoryContainers, "Copo 300ml", 0)
	putConference(t, store, 0, day(1), line("massa baunilha 5l", 6, 4), line("Copo 300ml", 500, 500))
	w := newTestWorkflow(store, LedgerScopeProduct)

	first, err := w.Reconcile(ctx, false)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"massa baunilha 5l", "Copo 300ml"}, first.UpdatedProducts)

	second, err := w.Reconcile(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, second.UpdatedProducts)
	assert.NotEqual(t, first.RunId, second.RunId)
	for _, d := range second.Deltas {
		assert.Equal(t, 0, d.Delta)
	}
	assert.Equal(t, 5, stockOf(t, store, models.CategoryIceCream, massa.ID))
	assert.Equal(t, 500, stockOf(t, store, models.CategoryContainers, copo.ID))
}

func TestReconcile_EditedConferenceAppliesOnlyTheDifference(t *testing.T) {
	ctx := context.Background()
	store := modelstest.NewMemoryStore()
	granola := store.SeedCatalogEntry(models.CategoryAccompaniments, "Granola", 0)
	conf := putConference(t, store, 0, day(2), line("Granola", 20, 10))
	w := newTestWorkflow(store, LedgerScopeProduct)

	_, err := w.Reconcile(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 10, stockOf(t, store, models.CategoryAccompaniments, granola.ID))

	putConference(t, store, conf.ID, day(2), line("Granola", 20, 15))
	report, err := w.Reconcile(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"Granola"}, report.UpdatedProducts)
	assert.Equal(t, 15, stockOf(t, store, models.CategoryAccompaniments, granola.ID))

	putConference(t, store, conf.ID, day(2), line("Granola", 20, 20))
	_, err = w.Reconcile(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 20, stockOf(t, store, models.CategoryAccompaniments, granola.ID))

	l, err := store.FindLedger(ctx, conf.ID, "Granola")
	require.NoError(t, err)
	assert.Nil(t, l)

	// a full run over the closed line adds nothing
	_, err = w.Reconcile(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 20, stockOf(t, store, models.CategoryAccompaniments, granola.ID))
}

func TestReconcile_PendingOnlyVisitsOpenLedgerLines(t *testing.T) {
	ctx := context.Background()
	store := modelstest.NewMemoryStore()
	morango := store.SeedCatalogEntry(models.CategoryIceCream, "Morango", 0)
	coco := store.SeedCatalogEntry(models.CategoryIceCream, "Coco", 0)
	c1 := putConference(t, store, 0, day(1), line("Morango", 10, 5), line("Coco", 4, 4))
	w := newTestWorkflow(store, LedgerScopeProduct)

	_, err := w.Reconcile(ctx, false)
	require.NoError(t, err)

	putConference(t, store, c1.ID, day(1), line("Morango", 10, 8), line("Coco", 4, 4))
	putConference(t, store, 0, day(2), line("Coco", 6, 6))

	report, err := w.Reconcile(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"Morango"}, report.UpdatedProducts)
	require.Len(t, report.Deltas, 1)
	assert.Equal(t, c1.ID, report.Deltas[0].ConferenceId)
	assert.Equal(t, 8, stockOf(t, store, models.CategoryIceCream, morango.ID))
	// the newer conference has no ledger row yet
	assert.Equal(t, 4, stockOf(t, store, models.CategoryIceCream, coco.ID))

	_, err = w.Reconcile(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 10, stockOf(t, store, models.CategoryIceCream, coco.ID))
}

func TestReconcile_PendingOnlyWithNothingOpen(t *testing.T) {
	store := modelstest.NewMemoryStore()
	store.SeedCatalogEntry(models.CategoryIceCream, "Morango", 0)
	putConference(t, store, 0, day(1), line("Morango", 3, 3))

	report, err := newTestWorkflow(store, LedgerScopeProduct).Reconcile(context.Background(), true)
	require.NoError(t, err)
	assert.Empty(t, report.Deltas)
	assert.Empty(t, report.UpdatedProducts)
}

func TestReconcile_UnresolvedProductsCarrySuggestions(t *testing.T) {
	store := modelstest.NewMemoryStore()
	store.SeedCatalogEntry(models.CategoryIceCream, "Sorvete Chocolate Belga", 10)
	store.SeedCatalogEntry(models.CategoryIceCream, "Sorvete Morango", 10)
	putConference(t, store, 0, day(1), line("Sorvete de Chocolate", 5, 3))
	putConference(t, store, 0, day(2), line("sorvete de chocolate", 5, 2), line("Tapioca", 10, 10))

	report, err := newTestWorkflow(store, LedgerScopeProduct).Reconcile(context.Background(), false)
	require.NoError(t, err)

	require.Len(t, report.UnresolvedProducts, 2)
	choc := report.UnresolvedProducts[0]
	assert.Equal(t, "Sorvete de Chocolate", choc.Name)
	assert.Equal(t, 5, choc.PendingQuantity)
	assert.Len(t, choc.ConferenceIds, 2)
	require.Len(t, choc.Suggestions, 1)
	assert.Equal(t, "Sorvete Chocolate Belga", choc.Suggestions[0].Name)
	assert.Equal(t, 0.5, choc.Suggestions[0].Similarity)

	tapioca := report.UnresolvedProducts[1]
	assert.Equal(t, "Tapioca", tapioca.Name)
	assert.Equal(t, 10, tapioca.PendingQuantity)
	assert.NotNil(t, tapioca.Suggestions)
	assert.Empty(t, tapioca.Suggestions)
	assert.Equal(t, []string{"Sorvete de Chocolate", "Tapioca"}, report.UnresolvedNames())
}

func TestReconcile_LineFailuresDoNotAbortTheRun(t *testing.T) {
	store := modelstest.NewMemoryStore()
	morango := store.SeedCatalogEntry(models.CategoryIceCream, "Morango", 0)
	polpa := store.SeedCatalogEntry(models.CategoryFrozen, "Polpa de Açaí", 0)
	colher := store.SeedCatalogEntry(models.CategoryUtensils, "Colher", 0)
	putConference(t, store, 0, day(1),
		line("Morango", 5, 5),
		line("Polpa de Açaí", 5, 5),
		line("Colher", 50, 50),
	)
	store.InjectFailure("AddStock:frozen", errors.New("lock wait timeout"))

	report, err := newTestWorkflow(store, LedgerScopeProduct).Reconcile(context.Background(), false)
	require.NoError(t, err)

	require.Len(t, report.FailedProducts, 1)
	assert.Equal(t, "Polpa de Açaí", report.FailedProducts[0].Name)
	assert.Equal(t, stageApply, report.FailedProducts[0].Stage)
	assert.Contains(t, report.FailedProducts[0].Error, "lock wait timeout")
	assert.ElementsMatch(t, []string{"Morango", "Colher"}, report.UpdatedProducts)
	assert.Equal(t, 5, stockOf(t, store, models.CategoryIceCream, morango.ID))
	assert.Equal(t, 0, stockOf(t, store, models.CategoryFrozen, polpa.ID))
	assert.Equal(t, 50, stockOf(t, store, models.CategoryUtensils, colher.ID))

	// the failed line left no bookkeeping and is retried by the next run
	store.InjectFailure("AddStock:frozen", nil)
	report, err = newTestWorkflow(store, LedgerScopeProduct).Reconcile(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"Polpa de Açaí"}, report.UpdatedProducts)
	assert.Equal(t, 5, stockOf(t, store, models.CategoryFrozen, polpa.ID))
}

func TestReconcile_ResolveTransportErrorFailsOnlyThatLine(t *testing.T) {
	store := modelstest.NewMemoryStore()
	morango := store.SeedCatalogEntry(models.CategoryIceCream, "Morango", 0)
	store.SeedCatalogEntry(models.CategoryAcai, "Açaí Zero", 0)
	putConference(t, store, 0, day(1), line("Morango", 2, 2), line("Açaí Zero", 3, 3))
	store.InjectFailure("ListCatalogEntries:acai", errors.New("connection refused"))

	report, err := newTestWorkflow(store, LedgerScopeProduct).Reconcile(context.Background(), false)
	require.NoError(t, err)

	require.Len(t, report.FailedProducts, 1)
	assert.Equal(t, "Açaí Zero", report.FailedProducts[0].Name)
	assert.Equal(t, stageResolve, report.FailedProducts[0].Stage)
	assert.Empty(t, report.UnresolvedProducts)
	assert.Equal(t, 2, stockOf(t, store, models.CategoryIceCream, morango.ID))
}

func TestReconcile_MalformedConferenceIsSkipped(t *testing.T) {
	store := modelstest.NewMemoryStore()
	coco := store.SeedCatalogEntry(models.CategoryIceCream, "Coco", 0)
	bad := store.PutConference(&models.Conference{Date: day(1), Products: "{not json"})
	putConference(t, store, 0, day(2), line("Coco", 3, 3))

	report, err := newTestWorkflow(store, LedgerScopeProduct).Reconcile(context.Background(), false)
	require.NoError(t, err)

	require.Len(t, report.SkippedConferences, 1)
	assert.Equal(t, bad.ID, report.SkippedConferences[0].ConferenceId)
	assert.Equal(t, 3, stockOf(t, store, models.CategoryIceCream, coco.ID))
}

func TestReconcile_DuplicateLinesAreMerged(t *testing.T) {
	ctx := context.Background()
	store := modelstest.NewMemoryStore()
	casquinha := store.SeedCatalogEntry(models.CategoryContainers, "Casquinha", 0)
	conf := putConference(t, store, 0, day(1), line("Casquinha", 100, 40), line("Casquinha", 50, 30))

	_, err := newTestWorkflow(store, LedgerScopeProduct).Reconcile(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 70, stockOf(t, store, models.CategoryContainers, casquinha.ID))

	l, err := store.FindLedger(ctx, conf.ID, "Casquinha")
	require.NoError(t, err)
	require.NotNil(t, l)
	assert.Equal(t, 150, l.QuantityOrdered)
	assert.Equal(t, 70, l.QuantityReceived)
}

func TestReconcile_CancelledContext(t *testing.T) {
	store := modelstest.NewMemoryStore()
	coco := store.SeedCatalogEntry(models.CategoryIceCream, "Coco", 0)
	putConference(t, store, 0, day(1), line("Coco", 3, 3))
	publisher := &recordingPublisher{}
	w := newTestWorkflow(store, LedgerScopeProduct)
	w.opts.Publisher = publisher

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := w.Reconcile(ctx, false)
	require.NoError(t, err)

	assert.True(t, report.Cancelled)
	assert.Empty(t, report.Deltas)
	assert.Equal(t, 0, stockOf(t, store, models.CategoryIceCream, coco.ID))
	require.Len(t, publisher.reports, 1)
	assert.True(t, publisher.reports[0].Cancelled)
}

func TestReconcile_ListConferencesFailureFailsTheRun(t *testing.T) {
	store := modelstest.NewMemoryStore()
	boom := errors.New("db down")
	store.InjectFailure("ListConferences", boom)

	report, err := newTestWorkflow(store, LedgerScopeProduct).Reconcile(context.Background(), false)
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, report)
}

func TestReconcile_RunLockHeld(t *testing.T) {
	store := modelstest.NewMemoryStore()
	w := newTestWorkflow(store, LedgerScopeProduct)
	unlock, err := w.opts.Locker.Lock(context.Background(), "test-store")
	require.NoError(t, err)
	defer unlock()

	_, err = w.Reconcile(context.Background(), false)
	assert.ErrorIs(t, err, ErrRunInProgress)
}

func TestReconcile_PublisherErrorDoesNotFailRun(t *testing.T) {
	store := modelstest.NewMemoryStore()
	store.SeedCatalogEntry(models.CategoryIceCream, "Coco", 0)
	putConference(t, store, 0, day(1), line("Coco", 3, 3))
	publisher := &recordingPublisher{err: errors.New("topic not found")}
	w := newTestWorkflow(store, LedgerScopeProduct)
	w.opts.Publisher = ReportPublishers{publisher, nil}

	report, err := w.Reconcile(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"Coco"}, report.UpdatedProducts)
	require.Len(t, publisher.reports, 1)
	assert.Equal(t, report.RunId, publisher.reports[0].RunId)
	assert.Equal(t, "test-store", publisher.reports[0].StoreId)
}

func TestReconcile_ConferenceScopeRunsSingleWorker(t *testing.T) {
	store := modelstest.NewMemoryStore()
	morango := store.SeedCatalogEntry(models.CategoryIceCream, "Morango", 0)
	limao := store.SeedCatalogEntry(models.CategoryIceCream, "Limão", 0)
	putConference(t, store, 0, day(1), line("Morango", 10, 4), line("Limão", 10, 6))

	w := newTestWorkflow(store, LedgerScopeConference)
	assert.Equal(t, 1, w.opts.CategoryWorkers)

	report, err := w.Reconcile(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, LedgerScopeConference, report.LedgerScope)
	assert.Equal(t, 4, stockOf(t, store, models.CategoryIceCream, morango.ID))
	assert.Equal(t, 2, stockOf(t, store, models.CategoryIceCream, limao.ID))
}

func TestReconcile_ManyCategoriesConcurrently(t *testing.T) {
	store := modelstest.NewMemoryStore()
	var items []models.LineItem
	ids := map[models.Category]int{}
	for _, category := range models.Categories() {
		name := "Produto " + category.String()
		ids[category] = store.SeedCatalogEntry(category, name, 0).ID
		items = append(items, line(name, 2, 1))
	}
	for i := 1; i <= 5; i++ {
		putConference(t, store, 0, day(i), items...)
	}

	report, err := newTestWorkflow(store, LedgerScopeProduct).Reconcile(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, report.Deltas, 5*len(models.Categories()))
	for category, id := range ids {
		assert.Equal(t, 5, stockOf(t, store, category, id), "stock of %s", category)
	}
}

func TestReconcile_ZeroDeltaSnapshotSeesEarlierLinesOfTheRun(t *testing.T) {
	ctx := context.Background()
	store := modelstest.NewMemoryStore()
	flocos := store.SeedCatalogEntry(models.CategoryIceCream, "Sorvete Flocos", 2)
	putConference(t, store, 0, day(1), line("Sorvete Flocos", 10, 10))
	late := putConference(t, store, 0, day(2), line("Sorvete Flocos", 5, 0))
	w := newTestWorkflow(store, LedgerScopeProduct)

	_, err := w.Reconcile(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 12, stockOf(t, store, models.CategoryIceCream, flocos.ID))

	l, err := store.FindLedger(ctx, late.ID, "Sorvete Flocos")
	require.NoError(t, err)
	require.NotNil(t, l)
	assert.Equal(t, 0, l.QuantityDelta)
	assert.Equal(t, 12, l.StockSnapshot)
}
