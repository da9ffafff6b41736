package stock

import (
	"bytes"
	"context"
	"testing"

	"fulfillment-backend/internal/apperror"
	"fulfillment-backend/internal/batch"
	"fulfillment-backend/internal/ledger"
	"fulfillment-backend/internal/models"
	"fulfillment-backend/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestVerifyBlankShortageThenRestock(t *testing.T) {
	db := testutil.NewDB(t)
	fx := testutil.NewFixtures(t, db)
	log := testutil.Logger()
	svc := NewService(db, log)
	l := ledger.New(db, log)
	ctx := context.Background()

	bv := fx.BlankVariant("Gildan", "tee", "black", "m", 0)
	p := fx.Product("Logo Tee", 1, false)
	o := fx.Order("1001")
	fx.LineItem(o, fx.Variant(p, "M", bv, false, 0), "Logo Tee", 1)
	b := fx.Batch("Monday", o)

	req, err := svc.Requirements(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, req.Blanks, 1)
	assert.Equal(t, 1, req.Blanks[0].ToPick)
	assert.True(t, req.Blanks[0].Shortage)

	_, err = svc.VerifyBlank(ctx, b.ID, testutil.Actor)
	require.ErrorIs(t, err, ErrShortageBlocksVerification)
	appErr := apperror.FromError(err)
	assert.Equal(t, apperror.CodeShortageBlocks, appErr.Code)
	shortages, ok := appErr.Data.([]BlankStockItem)
	require.True(t, ok)
	assert.Len(t, shortages, 1)

	unchanged, err := batch.Load(db, b.ID, false)
	require.NoError(t, err)
	assert.Nil(t, unchanged.BlankStockVerifiedAt)
	assert.False(t, hasSnapshot(unchanged.BlankStockRequirementsJSON))

	restock, err := l.RecordChange(ctx, models.BlankTarget(bv.ID), 1, models.ReasonRestock, ledger.Context{ProfileID: 1, BatchID: &b.ID})
	require.NoError(t, err)
	assert.Equal(t, 0, restock.PreviousQuantity)
	assert.Equal(t, 1, restock.NewQuantity)

	req, err = svc.Requirements(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, req.Blanks[0].Shortage)
	assert.Len(t, req.Blanks[0].Transactions, 1)

	verified, err := svc.VerifyBlank(ctx, b.ID, testutil.Actor)
	require.NoError(t, err)
	assert.NotNil(t, verified.BlankStockVerifiedAt)

	snap, err := DecodeBlankSnapshot(verified.BlankStockRequirementsJSON)
	require.NoError(t, err)
	require.Len(t, snap, 1)
	assert.Equal(t, bv.ID, snap[0].BlankVariantID)
	assert.Equal(t, 1, snap[0].RequiredQuantity)
	require.Len(t, snap[0].LineItems, 1)

	_, err = svc.VerifyBlank(ctx, b.ID, testutil.Actor)
	assert.ErrorIs(t, err, ErrAlreadyVerified)
}

func TestVerifyAfterReset(t *testing.T) {
	db := testutil.NewDB(t)
	fx := testutil.NewFixtures(t, db)
	log := testutil.Logger()
	svc := NewService(db, log)
	mgr := batch.NewManager(db, log)
	ctx := context.Background()

	bv := fx.BlankVariant("Gildan", "tee", "black", "m", 5)
	p := fx.Product("Logo Tee", 1, false)
	o := fx.Order("1001")
	fx.LineItem(o, fx.Variant(p, "M", bv, false, 0), "Logo Tee", 1)
	b := fx.Batch("Monday", o)

	_, err := svc.VerifyBlank(ctx, b.ID, testutil.Actor)
	require.NoError(t, err)

	_, err = mgr.ResetVerification(ctx, b.ID, batch.KindBlank, testutil.Actor)
	require.NoError(t, err)

	again, err := svc.VerifyBlank(ctx, b.ID, testutil.Actor)
	require.NoError(t, err)
	assert.NotNil(t, again.BlankStockVerifiedAt)
}

func TestVerifyPremadeIgnoresBlackLabel(t *testing.T) {
	db := testutil.NewDB(t)
	fx := testutil.NewFixtures(t, db)
	svc := NewService(db, testutil.Logger())
	ctx := context.Background()

	blackLabel := fx.Product("Collab Tee", 0, true)
	premade := fx.Product("Tote", 0, false)
	o := fx.Order("1001")
	fx.LineItem(o, fx.Variant(blackLabel, "L", nil, false, 0), "Collab Tee", 4)
	tote := fx.Variant(premade, "OS", nil, true, 1)
	fx.LineItem(o, tote, "Tote", 2)
	b := fx.Batch("Monday", o)

	_, err := svc.VerifyPremade(ctx, b.ID, testutil.Actor)
	require.ErrorIs(t, err, ErrShortageBlocksVerification)
	shortages := apperror.FromError(err).Data.([]PremadeStockItem)
	require.Len(t, shortages, 1)
	assert.Equal(t, tote.ID, shortages[0].ProductVariantID)

	fx.DB.Model(&models.LineItem{}).Where("product_variant_id = ?", tote.ID).Update("quantity", 1)

	verified, err := svc.VerifyPremade(ctx, b.ID, testutil.Actor)
	require.NoError(t, err)
	assert.NotNil(t, verified.PremadeStockVerifiedAt)
	snap, err := DecodePremadeSnapshot(verified.PremadeStockRequirementsJSON)
	require.NoError(t, err)
	assert.Len(t, snap, 2)
}

func TestVerifySettledBatch(t *testing.T) {
	db := testutil.NewDB(t)
	fx := testutil.NewFixtures(t, db)
	log := testutil.Logger()
	svc := NewService(db, log)
	b := fx.Batch("Old")

	_, err := batch.NewManager(db, log).Settle(context.Background(), b.ID, testutil.Actor)
	require.NoError(t, err)

	_, err = svc.VerifyBlank(context.Background(), b.ID, testutil.Actor)
	assert.ErrorIs(t, err, batch.ErrBatchSettled)

	_, err = svc.Requirements(context.Background(), 999)
	assert.ErrorIs(t, err, batch.ErrBatchNotFound)
}

func TestWritePickingList(t *testing.T) {
	onHand := 2
	req := &Requirements{
		Blanks: []BlankStockItem{
			{Color: "black", GarmentType: "tee", Company: "Gildan", Size: "m", RequiredQuantity: 3, OnHand: 1, ToPick: 2, Shortage: true},
		},
		Premade: []PremadeStockItem{
			{ProductName: "Tote", VariantTitle: "OS", RequiredQuantity: 1, OnHand: &onHand},
			{ProductName: "Collab Tee", VariantTitle: "L", IsBlackLabel: true, RequiredQuantity: 4, ToPick: 4},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WritePickingList(&buf, req))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	blanks, err := f.GetRows(blankSheet)
	require.NoError(t, err)
	require.Len(t, blanks, 2)
	assert.Equal(t, "Color", blanks[0][0])
	assert.Equal(t, []string{"black", "tee", "Gildan", "m", "3", "1", "2", "yes"}, blanks[1])

	premade, err := f.GetRows(premadeSheet)
	require.NoError(t, err)
	require.Len(t, premade, 3)
	assert.Equal(t, "n/a", premade[2][4])
}
