package lineitem

import (
	"testing"

	"fulfillment-backend/internal/fulfillment"
	"fulfillment-backend/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestDerivedStatus(t *testing.T) {
	assert.Equal(t, models.StatusNotPrinted, DerivedStatus(PrintState{Declared: 2, Active: 0}))
	assert.Equal(t, models.StatusPartiallyPrinted, DerivedStatus(PrintState{Declared: 2, Active: 1}))
	assert.Equal(t, models.StatusPrinted, DerivedStatus(PrintState{Declared: 2, Active: 2}))
	assert.Equal(t, models.StatusNotPrinted, DerivedStatus(PrintState{Declared: 0, Active: 0}))
}

func TestCheckGuard(t *testing.T) {
	assert.ErrorIs(t, CheckGuard(models.StatusPrinted, PrintState{}), ErrStatusGuardViolation)
	assert.ErrorIs(t, CheckGuard(models.StatusPrinted, PrintState{Declared: 1}), ErrStatusGuardViolation)
	assert.ErrorIs(t, CheckGuard(models.StatusPartiallyPrinted, PrintState{BlackLabel: true}), ErrStatusGuardViolation)
	assert.ErrorIs(t, CheckGuard(models.StatusPrinted, PrintState{Declared: 2, Active: 1}), ErrStatusGuardViolation)
	assert.ErrorIs(t, CheckGuard(models.StatusPartiallyPrinted, PrintState{Declared: 2, Active: 2}), ErrStatusGuardViolation)
	assert.ErrorIs(t, CheckGuard(models.StatusPartiallyPrinted, PrintState{Declared: 1, Active: 1, BlackLabel: true}), ErrStatusGuardViolation)
	assert.NoError(t, CheckGuard(models.StatusPrinted, PrintState{Declared: 1, Active: 1}))
	assert.NoError(t, CheckGuard(models.StatusPartiallyPrinted, PrintState{Declared: 2, Active: 1}))
	assert.NoError(t, CheckGuard(models.StatusPartiallyPrinted, PrintState{Declared: 2, BlackLabel: true}))
	assert.NoError(t, CheckGuard(models.StatusPrinted, PrintState{BlackLabel: true}))

	for _, s := range []models.LineItemStatus{models.StatusNotPrinted, models.StatusInStock, models.StatusOOSBlank, models.StatusSkipped, models.StatusIgnore} {
		assert.NoError(t, CheckGuard(s, PrintState{}), s)
	}
	assert.ErrorIs(t, CheckGuard("shipped", PrintState{}), ErrInvalidStatus)
}

func TestLedgerEffect(t *testing.T) {
	blank := models.BlankTarget(4)
	product := models.ProductTarget(9)
	printed := fulfillment.Plan{Kind: fulfillment.KindPrint, Target: &blank, Quantity: 2}
	stock := fulfillment.Plan{Kind: fulfillment.KindStock, Target: &product, Quantity: 1}
	blackLabel := fulfillment.Plan{Kind: fulfillment.KindBlackLabel, Quantity: 1}

	eff := LedgerEffect(models.StatusPartiallyPrinted, models.StatusPrinted, printed)
	if assert.NotNil(t, eff) {
		assert.Equal(t, Effect{Target: blank, Change: -2, Reason: models.ReasonAssemblyUsage}, *eff)
	}

	eff = LedgerEffect(models.StatusNotPrinted, models.StatusInStock, stock)
	if assert.NotNil(t, eff) {
		assert.Equal(t, Effect{Target: product, Change: -1, Reason: models.ReasonManualPrint}, *eff)
	}

	assert.Nil(t, LedgerEffect(models.StatusPrinted, models.StatusPrinted, printed))
	assert.Nil(t, LedgerEffect(models.StatusNotPrinted, models.StatusPrinted, stock))
	assert.Nil(t, LedgerEffect(models.StatusNotPrinted, models.StatusInStock, blackLabel))
	assert.Nil(t, LedgerEffect(models.StatusPrinted, models.StatusNotPrinted, printed))
	assert.Nil(t, LedgerEffect(models.StatusNotPrinted, models.StatusOOSBlank, printed))
	assert.Nil(t, LedgerEffect(models.StatusNotPrinted, models.StatusSkipped, printed))
}

func TestOutstanding(t *testing.T) {
	blank := models.BlankTarget(4)
	eff := &Effect{Target: blank, Change: -2, Reason: models.ReasonAssemblyUsage}

	assert.Equal(t, eff, Outstanding(eff, 0))
	assert.Equal(t, eff, Outstanding(eff, 3))
	assert.Nil(t, Outstanding(eff, -2))
	assert.Nil(t, Outstanding(eff, -5))
	assert.Nil(t, Outstanding(nil, 0))

	rest := Outstanding(eff, -1)
	if assert.NotNil(t, rest) {
		assert.Equal(t, -1, rest.Change)
		assert.Equal(t, blank, rest.Target)
	}
	assert.Equal(t, -2, eff.Change)
}

func TestCascadeSkips(t *testing.T) {
	siblings := []models.LineItem{
		{ID: 1, Status: models.StatusOOSBlank},
		{ID: 2, Status: models.StatusNotPrinted},
		{ID: 3, Status: models.StatusPartiallyPrinted},
		{ID: 4, Status: models.StatusPrinted},
		{ID: 5, Status: models.StatusIgnore},
	}
	assert.Equal(t, []uint{2, 3}, CascadeSkips(1, siblings))
	assert.Empty(t, CascadeSkips(1, siblings[:1]))
}
