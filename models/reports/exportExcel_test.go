package reports

import (
	"bytes"
	"testing"

	"github.com/mmdatafocus/gelato_backoffice/models"
	"github.com/mmdatafocus/gelato_backoffice/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestReconciliationWorkbook(t *testing.T) {
	report := &workflow.Report{
		RunId: "run-1",
		Deltas: []workflow.StockDelta{
			{ConferenceId: 1, ProductName: "Açaí - Tradicional", Category: models.CategoryAcai, CatalogEntryId: 3, Received: 30, Delta: 30, Stock: 35, Finalized: true},
			{ConferenceId: 1, ProductName: "Granola", Category: models.CategoryAccompaniments, CatalogEntryId: 4, PreviouslyReceived: 10, Received: 10},
		},
		UnresolvedProducts: []workflow.UnresolvedProduct{{
			Name:            "Sorvete de Chocolate",
			PendingQuantity: 5,
			ConferenceIds:   []int{1, 2},
			Suggestions: []workflow.Suggestion{
				{CatalogId: 9, Name: "Sorvete Chocolate Belga", Category: models.CategoryIceCream, Similarity: 0.5},
			},
		}},
		FailedProducts:     []workflow.FailedProduct{{ConferenceId: 2, Name: "Colher", Stage: "apply", Error: "timeout"}},
		SkippedConferences: []workflow.SkippedConference{{ConferenceId: 7, Reason: "malformed conference products"}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteReconciliationExcel(&buf, report))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetUpdated, SheetUnresolved, SheetFailed, SheetSkipped}, f.GetSheetList())

	updated, err := f.GetRows(SheetUpdated)
	require.NoError(t, err)
	require.Len(t, updated, 2)
	assert.Equal(t, "Açaí - Tradicional", updated[1][1])
	assert.Equal(t, "30", updated[1][6])

	unresolved, err := f.GetRows(SheetUnresolved)
	require.NoError(t, err)
	require.Len(t, unresolved, 2)
	assert.Equal(t, "1,2", unresolved[1][2])
	assert.Equal(t, "Sorvete Chocolate Belga (ice_cream #9, 0.50)", unresolved[1][3])

	failed, err := f.GetRows(SheetFailed)
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "Colher", "apply", "timeout"}, failed[1])

	skipped, err := f.GetRows(SheetSkipped)
	require.NoError(t, err)
	assert.Equal(t, "7", skipped[1][0])
}
