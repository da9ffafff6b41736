package assembly

import (
	"context"
	"testing"

	"fulfillment-backend/internal/fulfillment"
	"fulfillment-backend/internal/models"
	"fulfillment-backend/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(id uint, name string, unfulfilled int) models.LineItem {
	return models.LineItem{ID: id, Name: name, Quantity: 1, RequiresShipping: true, UnfulfilledQuantity: unfulfilled, Status: models.StatusNotPrinted}
}

func ids(line []Item) []uint {
	out := make([]uint, len(line))
	for i, it := range line {
		out[i] = it.LineItemID
	}
	return out
}

func TestBuildOrdering(t *testing.T) {
	noShip := item(6, "Aardvark Tee", 1)
	noShip.RequiresShipping = false
	ignored := item(7, "Able Tee", 1)
	ignored.Status = models.StatusIgnore

	items := []models.LineItem{
		item(1, "zebra tee", 1),
		item(2, "Apple Tee", 0),
		item(3, "Mango Tee", 1),
		item(4, "apple tee", 1),
		item(5, "Apple Tee", 1),
		noShip,
		ignored,
	}

	line := Build(items, nil)
	assert.Equal(t, []uint{4, 5, 3, 1, 2}, ids(line))
	for i, it := range line {
		assert.Equal(t, i, it.Position)
	}

	// same membership, different input order
	reversed := make([]models.LineItem, len(items))
	for i := range items {
		reversed[len(items)-1-i] = items[i]
	}
	assert.Equal(t, ids(line), ids(Build(reversed, nil)))
}

func TestBuildKeepsItemsWithWarnings(t *testing.T) {
	li := item(1, "Unsynced", 1)
	li.ProductVariantID = testutil.UintPtr(3)
	li.ProductVariant = &models.ProductVariant{ID: 3, Product: &models.Product{ID: 1, Name: "Unsynced"}}

	line := Build([]models.LineItem{li}, nil)
	require.Len(t, line, 1)
	assert.Equal(t, []string{fulfillment.WarningNoSyncedPrints, fulfillment.WarningNoSyncedBlank}, line[0].Warnings)
}

func TestPosition(t *testing.T) {
	line := Build([]models.LineItem{item(1, "a", 1), item(2, "b", 1), item(3, "c", 1)}, nil)

	nav, err := Position(line, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, nav.Position)
	assert.Equal(t, 3, nav.Total)
	require.NotNil(t, nav.PrevLineItemID)
	require.NotNil(t, nav.NextLineItemID)
	assert.Equal(t, uint(1), *nav.PrevLineItemID)
	assert.Equal(t, uint(3), *nav.NextLineItemID)

	first, err := Position(line, 1)
	require.NoError(t, err)
	assert.Nil(t, first.PrevLineItemID)

	last, err := Position(line, 3)
	require.NoError(t, err)
	assert.Nil(t, last.NextLineItemID)

	_, err = Position(line, 99)
	assert.ErrorIs(t, err, ErrNotOnAssemblyLine)
}

func TestServiceLineShowsActivePrints(t *testing.T) {
	db := testutil.NewDB(t)
	fx := testutil.NewFixtures(t, db)
	bv := fx.BlankVariant("Gildan", "tee", "black", "m", 5)
	p := fx.Product("Two Sided", 2, false)
	o := fx.Order("1001")
	li := fx.LineItem(o, fx.Variant(p, "M", bv, false, 0), "Two Sided", 1)
	fx.LineItem(fx.Order("1002"), nil, "Not in batch", 1)
	b := fx.Batch("Monday", o)

	require.NoError(t, db.Create(&models.PrintLog{LineItemID: li.ID, PrintID: p.Prints[0].ID, Active: true}).Error)
	require.NoError(t, db.Create(&models.PrintLog{LineItemID: li.ID, PrintID: p.Prints[1].ID, Active: true}).Error)
	require.NoError(t, db.Create(&models.PrintLog{LineItemID: li.ID, PrintID: p.Prints[1].ID, Active: false}).Error)

	svc := NewService(db)
	line, err := svc.Line(context.Background(), b.ID)
	require.NoError(t, err)
	require.Len(t, line, 1)
	it := line[0]
	assert.Equal(t, "1001", it.OrderNumber)
	require.NotNil(t, it.Blank)
	assert.Equal(t, "black", it.Blank.Color)
	require.Len(t, it.Prints, 2)
	assert.True(t, it.Prints[0].Active)
	assert.False(t, it.Prints[1].Active)
	assert.Empty(t, it.Warnings)

	nav, err := svc.Position(context.Background(), b.ID, li.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, nav.Position)
}
