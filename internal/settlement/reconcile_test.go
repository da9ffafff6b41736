package settlement

import (
	"testing"

	"fulfillment-backend/internal/assembly"
	"fulfillment-backend/internal/fulfillment"
	"fulfillment-backend/internal/models"
	"fulfillment-backend/internal/stock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uintPtr(v uint) *uint { return &v }

func printItem(id uint, status models.LineItemStatus) models.LineItem {
	return models.LineItem{
		ID: id, Name: "Tee", Quantity: 1, Status: status, RequiresShipping: true,
		ProductVariantID: uintPtr(3),
		ProductVariant: &models.ProductVariant{
			ID: 3, BlankVariantID: uintPtr(7),
			BlankVariant: &models.BlankVariant{ID: 7, Blank: &models.Blank{ID: 1}},
			Product:      &models.Product{ID: 1, Name: "Tee", Prints: []models.Print{{ID: 1}}},
		},
	}
}

func blankSnapshot(lineItemIDs ...uint) Snapshot {
	refs := []stock.LineRef{}
	for _, id := range lineItemIDs {
		refs = append(refs, stock.LineRef{LineItemID: id, Quantity: 1})
	}
	return NewSnapshot([]stock.BlankStockItem{{BlankVariantID: 7, LineItems: refs}}, nil)
}

func usage(lineItemID uint, change int) models.InventoryTransaction {
	return models.InventoryTransaction{BlankVariantID: uintPtr(7), LineItemID: &lineItemID, ChangeAmount: change, Reason: models.ReasonAssemblyUsage}
}

func TestReconcilePrintedItemMatches(t *testing.T) {
	items := []models.LineItem{printItem(1, models.StatusPrinted)}
	line := assembly.Build(items, nil)

	out := Reconcile(line, items, []models.InventoryTransaction{usage(1, -1)}, blankSnapshot(1))
	require.Len(t, out, 1)
	it := out[0]
	assert.Equal(t, fulfillment.KindPrint, it.ExpectedFulfillment)
	require.NotNil(t, it.InventoryTarget)
	assert.Equal(t, models.BlankTarget(7), *it.InventoryTarget)
	assert.Equal(t, -1, it.ExpectedChange)
	assert.Equal(t, -1, it.ActualInventoryChange)
	assert.False(t, it.HasInventoryMismatch)
	assert.False(t, it.HasStatusMismatch)
	assert.Len(t, it.Transactions, 1)
}

func TestReconcileFlagsMismatches(t *testing.T) {
	notPrinted := printItem(1, models.StatusNotPrinted)
	doubleDebit := printItem(2, models.StatusPrinted)
	skipped := printItem(3, models.StatusSkipped)
	otherTarget := models.InventoryTransaction{ProductVariantID: uintPtr(3), LineItemID: uintPtr(2), ChangeAmount: -5}

	items := []models.LineItem{notPrinted, doubleDebit, skipped}
	txs := []models.InventoryTransaction{usage(2, -1), usage(2, -1), otherTarget}
	out := Reconcile(assembly.Build(items, nil), items, txs, blankSnapshot(1, 2, 3))
	require.Len(t, out, 3)

	byID := map[uint]Item{}
	for _, it := range out {
		byID[it.LineItemID] = it
	}

	assert.True(t, byID[1].HasStatusMismatch)
	assert.True(t, byID[1].HasInventoryMismatch)
	assert.Equal(t, 0, byID[1].ActualInventoryChange)

	assert.Equal(t, -2, byID[2].ActualInventoryChange, "only rows on the expected target count")
	assert.True(t, byID[2].HasInventoryMismatch)
	assert.False(t, byID[2].HasStatusMismatch)

	assert.Equal(t, 0, byID[3].ExpectedChange)
	assert.False(t, byID[3].HasInventoryMismatch)
	assert.False(t, byID[3].HasStatusMismatch)

	sum := Summarize(out)
	assert.Equal(t, Summary{Items: 3, InventoryMismatches: 2, StatusMismatches: 1}, sum)
}

func TestReconcileBlackLabelAndFallback(t *testing.T) {
	blackLabel := models.LineItem{
		ID: 1, Name: "Collab", Quantity: 2, Status: models.StatusInStock, RequiresShipping: true,
		ProductVariantID: uintPtr(9),
		ProductVariant:   &models.ProductVariant{ID: 9, Product: &models.Product{ID: 2, IsBlackLabel: true}},
	}
	premade := models.LineItem{
		ID: 2, Name: "Tote", Quantity: 1, Status: models.StatusNotPrinted, RequiresShipping: true,
		ProductVariantID: uintPtr(10),
		ProductVariant:   &models.ProductVariant{ID: 10, IsPremade: true, Product: &models.Product{ID: 3}},
	}
	items := []models.LineItem{blackLabel, premade}
	out := Reconcile(assembly.Build(items, nil), items, nil, Snapshot{})

	byID := map[uint]Item{}
	for _, it := range out {
		byID[it.LineItemID] = it
	}
	assert.Equal(t, fulfillment.KindBlackLabel, byID[1].ExpectedFulfillment)
	assert.Nil(t, byID[1].InventoryTarget)
	assert.False(t, byID[1].HasInventoryMismatch)
	assert.False(t, byID[1].HasStatusMismatch)

	assert.Equal(t, fulfillment.KindStock, byID[2].ExpectedFulfillment)
	assert.Equal(t, models.ProductTarget(10), *byID[2].InventoryTarget)
	assert.Equal(t, -1, byID[2].ExpectedChange)
	assert.True(t, byID[2].HasInventoryMismatch)
	assert.True(t, byID[2].HasStatusMismatch)
}

func TestAcknowledgeIsPure(t *testing.T) {
	items := []Item{
		{LineItemID: 1, HasInventoryMismatch: true},
		{LineItemID: 2, HasStatusMismatch: true},
		{LineItemID: 3},
	}
	out := Acknowledge(items, []uint{1, 3})

	assert.True(t, out[0].Acknowledged)
	assert.False(t, out[0].HasInventoryMismatch)
	assert.True(t, out[1].HasStatusMismatch)
	assert.False(t, out[2].Acknowledged, "nothing to acknowledge")

	assert.True(t, items[0].HasInventoryMismatch, "input is left alone")
	assert.False(t, items[0].Acknowledged)
	assert.Equal(t, 1, Summarize(out).Acknowledged)
}
