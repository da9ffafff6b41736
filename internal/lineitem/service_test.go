package lineitem

import (
	"context"
	"testing"

	"fulfillment-backend/internal/ledger"
	"fulfillment-backend/internal/models"
	"fulfillment-backend/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type env struct {
	db  *gorm.DB
	fx  *testutil.Fixtures
	svc *Service
}

func newEnv(t *testing.T) *env {
	db := testutil.NewDB(t)
	log := testutil.Logger()
	return &env{db: db, fx: testutil.NewFixtures(t, db), svc: NewService(db, ledger.New(db, log), log)}
}

func (e *env) transactions(t *testing.T, li *models.LineItem) []models.InventoryTransaction {
	rows, err := ledger.List(e.db, ledger.Filter{LineItemID: &li.ID})
	require.NoError(t, err)
	return rows
}

func TestPrintLogsDriveStatusAndDebitBlank(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	bv := e.fx.BlankVariant("Gildan", "tee", "black", "m", 5)
	p := e.fx.Product("Two Sided Tee", 2, false)
	v := e.fx.Variant(p, "Black / M", bv, false, 0)
	o := e.fx.Order("1001")
	li := e.fx.LineItem(o, v, "Two Sided Tee", 2)
	b := e.fx.Batch("Monday", o)

	res, err := e.svc.SetPrintActive(ctx, li.ID, p.Prints[0].ID, true, testutil.Actor, Options{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPartiallyPrinted, res.Status)
	assert.Empty(t, res.Transactions)

	res, err = e.svc.SetPrintActive(ctx, li.ID, p.Prints[1].ID, true, testutil.Actor, Options{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPrinted, res.Status)
	require.Len(t, res.Transactions, 1)
	tx := res.Transactions[0]
	assert.Equal(t, models.ReasonAssemblyUsage, tx.Reason)
	assert.Equal(t, -2, tx.ChangeAmount)
	require.NotNil(t, tx.BatchID)
	assert.Equal(t, b.ID, *tx.BatchID)
	assert.NotNil(t, tx.LogID)
	assert.Equal(t, 3, e.fx.BlankQuantity(bv))

	// toggling a print off drops back to partial without crediting stock
	res, err = e.svc.SetPrintActive(ctx, li.ID, p.Prints[1].ID, false, testutil.Actor, Options{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPartiallyPrinted, res.Status)
	assert.Equal(t, 3, e.fx.BlankQuantity(bv))
	assert.Len(t, e.transactions(t, li), 1)

	// back on: printed again, the blank is already debited
	res, err = e.svc.SetPrintActive(ctx, li.ID, p.Prints[1].ID, true, testutil.Actor, Options{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPrinted, res.Status)
	assert.Empty(t, res.Transactions)
	assert.Equal(t, 3, e.fx.BlankQuantity(bv))
	assert.Len(t, e.transactions(t, li), 1)
}

func TestInStockAfterPrintingDoesNotDebitTwice(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	bv := e.fx.BlankVariant("Gildan", "tee", "black", "m", 5)
	p := e.fx.Product("Tee", 1, false)
	v := e.fx.Variant(p, "M", bv, false, 0)
	li := e.fx.LineItem(e.fx.Order("1101"), v, "Tee", 1)

	_, err := e.svc.SetPrintActive(ctx, li.ID, p.Prints[0].ID, true, testutil.Actor, Options{})
	require.NoError(t, err)
	assert.Equal(t, 4, e.fx.BlankQuantity(bv))

	res, err := e.svc.Transition(ctx, li.ID, models.StatusInStock, testutil.Actor, Options{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusInStock, res.Status)
	assert.Empty(t, res.Transactions)
	assert.Equal(t, 4, e.fx.BlankQuantity(bv))
	assert.Len(t, e.transactions(t, li), 1)

	// once reversed, the next fulfillment debits again
	_, err = e.svc.ReverseInventory(ctx, li.ID, testutil.Actor, Options{})
	require.NoError(t, err)
	_, err = e.svc.Reset(ctx, li.ID, testutil.Actor, Options{})
	require.NoError(t, err)
	res, err = e.svc.Transition(ctx, li.ID, models.StatusInStock, testutil.Actor, Options{})
	require.NoError(t, err)
	require.Len(t, res.Transactions, 1)
	assert.Equal(t, -1, res.Transactions[0].ChangeAmount)
	assert.Equal(t, 4, e.fx.BlankQuantity(bv))
}

func TestSetPrintActiveRejectsForeignPrint(t *testing.T) {
	e := newEnv(t)
	bv := e.fx.BlankVariant("Gildan", "tee", "black", "m", 5)
	p := e.fx.Product("Tee", 1, false)
	other := e.fx.Product("Other", 1, false)
	v := e.fx.Variant(p, "M", bv, false, 0)
	li := e.fx.LineItem(e.fx.Order("1"), v, "Tee", 1)

	_, err := e.svc.SetPrintActive(context.Background(), li.ID, other.Prints[0].ID, true, testutil.Actor, Options{})
	assert.ErrorIs(t, err, ErrPrintNotOnProduct)
}

func TestPrintedGuard(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	bv := e.fx.BlankVariant("Gildan", "tee", "black", "m", 5)

	noPrints := e.fx.Product("Unsynced", 0, false)
	li := e.fx.LineItem(e.fx.Order("1"), e.fx.Variant(noPrints, "M", bv, false, 0), "Unsynced", 1)
	_, err := e.svc.Transition(ctx, li.ID, models.StatusPrinted, testutil.Actor, Options{})
	assert.ErrorIs(t, err, ErrStatusGuardViolation)
	assert.Equal(t, models.StatusNotPrinted, e.fx.Status(li))

	withPrints := e.fx.Product("Synced", 1, false)
	li2 := e.fx.LineItem(e.fx.Order("2"), e.fx.Variant(withPrints, "M", bv, false, 0), "Synced", 1)
	_, err = e.svc.Transition(ctx, li2.ID, models.StatusPrinted, testutil.Actor, Options{})
	assert.ErrorIs(t, err, ErrStatusGuardViolation, "no active prints")
	assert.Equal(t, 5, e.fx.BlankQuantity(bv))

	twoPrints := e.fx.Product("Two Sided", 2, false)
	li4 := e.fx.LineItem(e.fx.Order("4"), e.fx.Variant(twoPrints, "M", bv, false, 0), "Two Sided", 1)
	_, err = e.svc.SetPrintActive(ctx, li4.ID, twoPrints.Prints[0].ID, true, testutil.Actor, Options{})
	require.NoError(t, err)
	_, err = e.svc.Transition(ctx, li4.ID, models.StatusPrinted, testutil.Actor, Options{})
	assert.ErrorIs(t, err, ErrStatusGuardViolation, "one of two prints active")
	assert.Equal(t, models.StatusPartiallyPrinted, e.fx.Status(li4))
	assert.Equal(t, 5, e.fx.BlankQuantity(bv))

	blackLabel := e.fx.Product("Black Label", 0, true)
	li3 := e.fx.LineItem(e.fx.Order("3"), e.fx.Variant(blackLabel, "M", nil, false, 0), "Black Label", 1)
	res, err := e.svc.Transition(ctx, li3.ID, models.StatusPrinted, testutil.Actor, Options{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPrinted, res.Status)
	assert.Empty(t, res.Transactions)
}

func TestInStockDebitsPremadeAndCascades(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	bv := e.fx.BlankVariant("Gildan", "tee", "black", "m", 5)
	premade := e.fx.Product("Premade Cap", 0, false)
	pv := e.fx.Variant(premade, "OS", nil, true, 4)
	tee := e.fx.Product("Tee", 1, false)
	tv := e.fx.Variant(tee, "M", bv, false, 0)

	o := e.fx.Order("2001")
	capItem := e.fx.LineItem(o, pv, "Premade Cap", 2)
	waiting := e.fx.LineItem(o, tv, "Tee", 1)
	done := e.fx.LineItem(o, tv, "Tee again", 1)
	require.NoError(t, e.db.Model(done).Update("status", models.StatusPrinted).Error)

	res, err := e.svc.Transition(ctx, capItem.ID, models.StatusInStock, testutil.Actor, Options{Notes: "pulled from shelf"})
	require.NoError(t, err)
	require.Len(t, res.Transactions, 1)
	assert.Equal(t, models.ReasonManualPrint, res.Transactions[0].Reason)
	assert.Equal(t, 2, e.fx.WarehouseInventory(pv))
	assert.Equal(t, []uint{waiting.ID}, res.Skipped)

	assert.Equal(t, models.StatusSkipped, e.fx.Status(waiting))
	assert.Equal(t, models.StatusPrinted, e.fx.Status(done))
	assert.Empty(t, e.transactions(t, waiting))
	assert.Equal(t, 5, e.fx.BlankQuantity(bv))
}

func TestOOSBlankCascadeWritesNoLedgerEntries(t *testing.T) {
	e := newEnv(t)
	bv := e.fx.BlankVariant("Gildan", "tee", "black", "m", 0)
	p := e.fx.Product("Tee", 1, false)
	v := e.fx.Variant(p, "M", bv, false, 0)
	o := e.fx.Order("3001")
	trigger := e.fx.LineItem(o, v, "Tee", 1)
	sib1 := e.fx.LineItem(o, v, "Tee 2", 1)
	sib2 := e.fx.LineItem(o, v, "Tee 3", 3)
	other := e.fx.LineItem(e.fx.Order("3002"), v, "Unrelated", 1)

	res, err := e.svc.Transition(context.Background(), trigger.ID, models.StatusOOSBlank, testutil.Actor, Options{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{sib1.ID, sib2.ID}, res.Skipped)

	for _, li := range []*models.LineItem{sib1, sib2} {
		assert.Equal(t, models.StatusSkipped, e.fx.Status(li))
	}
	assert.Equal(t, models.StatusNotPrinted, e.fx.Status(other))

	var count int64
	require.NoError(t, e.db.Model(&models.InventoryTransaction{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestResetKeepsDebitUntilReversed(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	bv := e.fx.BlankVariant("Gildan", "tee", "black", "m", 5)
	p := e.fx.Product("Tee", 1, false)
	v := e.fx.Variant(p, "M", bv, false, 0)
	li := e.fx.LineItem(e.fx.Order("4001"), v, "Tee", 2)

	_, err := e.svc.SetPrintActive(ctx, li.ID, p.Prints[0].ID, true, testutil.Actor, Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, e.fx.BlankQuantity(bv))

	for _, from := range []models.LineItemStatus{models.StatusPrinted, models.StatusSkipped, models.StatusIgnore} {
		require.NoError(t, e.db.Model(&models.LineItem{}).Where("id = ?", li.ID).Update("status", from).Error)
		res, err := e.svc.Reset(ctx, li.ID, testutil.Actor, Options{})
		require.NoError(t, err)
		assert.Equal(t, models.StatusNotPrinted, res.Status)
		assert.Empty(t, res.Transactions)
	}
	assert.Equal(t, 3, e.fx.BlankQuantity(bv))

	reversed, err := e.svc.ReverseInventory(ctx, li.ID, testutil.Actor, Options{Notes: "reprint"})
	require.NoError(t, err)
	require.Len(t, reversed, 1)
	assert.Equal(t, models.ReasonCorrection, reversed[0].Reason)
	assert.Equal(t, 2, reversed[0].ChangeAmount)
	assert.Equal(t, 5, e.fx.BlankQuantity(bv))

	// nothing left to reverse
	again, err := e.svc.ReverseInventory(ctx, li.ID, testutil.Actor, Options{})
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestTransitionUnknownLineItem(t *testing.T) {
	e := newEnv(t)
	_, err := e.svc.Transition(context.Background(), 42, models.StatusSkipped, testutil.Actor, Options{})
	assert.ErrorIs(t, err, ErrLineItemNotFound)
}

func TestBatchForOrderPrefersUnsettled(t *testing.T) {
	e := newEnv(t)
	o := e.fx.Order("5001")
	current := e.fx.Batch("current", o)
	settled := e.fx.Batch("settled", o)
	require.NoError(t, e.db.Model(settled).Update("settled_at", gorm.Expr("CURRENT_TIMESTAMP")).Error)

	id, err := BatchForOrder(e.db, o.ID)
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, current.ID, *id)

	none, err := BatchForOrder(e.db, 999)
	require.NoError(t, err)
	assert.Nil(t, none)
}
