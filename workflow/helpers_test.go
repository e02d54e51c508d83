package workflow

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/mmdatafocus/gelato_backoffice/models"
	"github.com/mmdatafocus/gelato_backoffice/models/modelstest"
	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestWorkflow(store models.Store, scope LedgerScope) *ReconciliationWorkflow {
	return NewReconciliationWorkflow(store, Options{
		StoreId:         "test-store",
		Scope:           scope,
		CategoryWorkers: 3,
		Logger:          quietLogger(),
		Locker:          NewLocalRunLocker(),
	})
}

func putConference(t *testing.T, store *modelstest.MemoryStore, id int, date time.Time, items ...models.LineItem) *models.Conference {
	t.Helper()
	conf := &models.Conference{ID: id, Date: date}
	if err := conf.SetLineItems(items); err != nil {
		t.Fatalf("SetLineItems: %v", err)
	}
	return store.PutConference(conf)
}

func line(name string, ordered, received int) models.LineItem {
	return models.LineItem{ProductName: name, QuantityOrdered: ordered, QuantityReceived: received}
}

func stockOf(t *testing.T, store models.Store, category models.Category, id int) int {
	t.Helper()
	e, err := store.GetCatalogEntry(context.Background(), category, id)
	if err != nil {
		t.Fatalf("GetCatalogEntry(%s, %d): %v", category, id, err)
	}
	return e.Stock
}

func day(n int) time.Time {
	return time.Date(2024, time.March, n, 0, 0, 0, 0, time.UTC)
}
