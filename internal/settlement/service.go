package settlement

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"fulfillment-backend/internal/apperror"
	"fulfillment-backend/internal/assembly"
	"fulfillment-backend/internal/auth"
	"fulfillment-backend/internal/batch"
	"fulfillment-backend/internal/ledger"
	"fulfillment-backend/internal/lineitem"
	"fulfillment-backend/internal/metrics"
	"fulfillment-backend/internal/models"
	"fulfillment-backend/internal/stock"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrNotInBatch = errors.New("line item is not part of this batch")

func init() {
	apperror.Register(ErrNotInBatch, apperror.CodeNotFound, http.StatusNotFound)
}

type Service struct {
	db        *gorm.DB
	ledger    *ledger.Ledger
	lineItems *lineitem.Service
	log       *zap.Logger
}

func NewService(db *gorm.DB, l *ledger.Ledger, lineItems *lineitem.Service, log *zap.Logger) *Service {
	return &Service{db: db, ledger: l, lineItems: lineItems, log: log}
}

// Data computes the settlement rows for a batch. Read only.
func (s *Service) Data(ctx context.Context, batchID uint) ([]Item, error) {
	db := s.db.WithContext(ctx)
	b, err := batch.Load(db, batchID, false)
	if err != nil {
		return nil, err
	}
	items, err := batch.LineItems(db, batchID)
	if err != nil {
		return nil, err
	}
	line, err := assembly.BuildForBatch(db, batchID)
	if err != nil {
		return nil, err
	}

	ids := make([]uint, len(items))
	for i, li := range items {
		ids[i] = li.ID
	}
	var txs []models.InventoryTransaction
	if len(ids) > 0 {
		if txs, err = ledger.List(db, ledger.Filter{LineItemIDs: ids}); err != nil {
			return nil, fmt.Errorf("load line item transactions: %w", err)
		}
	}

	blanks, err := stock.DecodeBlankSnapshot(b.BlankStockRequirementsJSON)
	if err != nil {
		return nil, err
	}
	premade, err := stock.DecodePremadeSnapshot(b.PremadeStockRequirementsJSON)
	if err != nil {
		return nil, err
	}

	out := Reconcile(line, items, txs, NewSnapshot(blanks, premade))
	sum := Summarize(out)
	label := strconv.FormatUint(uint64(batchID), 10)
	metrics.SettlementMismatches.WithLabelValues(label, "inventory").Set(float64(sum.InventoryMismatches))
	metrics.SettlementMismatches.WithLabelValues(label, "status").Set(float64(sum.StatusMismatches))
	return out, nil
}

// UpdateLineItemStatus is the status correction: a normal guarded transition
// tagged with the batch.
func (s *Service) UpdateLineItemStatus(ctx context.Context, batchID, lineItemID uint, status models.LineItemStatus, notes string, actor auth.Actor) (*lineitem.Result, error) {
	if err := s.checkMembership(ctx, batchID, lineItemID); err != nil {
		return nil, err
	}
	return s.lineItems.Transition(ctx, lineItemID, status, actor, lineitem.Options{BatchID: &batchID, Notes: notes})
}

// AdjustInventory writes a correction entry for a line item. With a nil
// changeAmount it closes the current gap between expected and actual on the
// item's expected target, and writes nothing when there is none. A nil
// changeAmount against any other target is rejected.
func (s *Service) AdjustInventory(ctx context.Context, batchID uint, target models.InventoryTarget, changeAmount *int, lineItemID uint, notes string, actor auth.Actor) (*models.InventoryTransaction, error) {
	if err := s.checkMembership(ctx, batchID, lineItemID); err != nil {
		return nil, err
	}

	change := 0
	if changeAmount != nil {
		change = *changeAmount
	} else {
		data, err := s.Data(ctx, batchID)
		if err != nil {
			return nil, err
		}
		matched := false
		for _, it := range data {
			if it.LineItemID == lineItemID && it.InventoryTarget != nil && *it.InventoryTarget == target {
				change = it.ExpectedChange - it.ActualInventoryChange
				matched = true
			}
		}
		if !matched {
			return nil, apperror.Validation("validation failed", map[string]string{
				"change_amount": "required when target is not the line item's expected target",
			})
		}
	}
	if change == 0 {
		return nil, nil
	}

	return s.ledger.RecordChange(ctx, target, change, models.ReasonCorrection, ledger.Context{
		LineItemID: &lineItemID,
		BatchID:    &batchID,
		ProfileID:  actor.ID,
		UserName:   actor.Name,
		Notes:      notes,
		Narrative:  fmt.Sprintf("settlement correction %+d on %s for line item %d", change, target, lineItemID),
	})
}

// Reverse backs out everything the ledger holds against a line item.
func (s *Service) Reverse(ctx context.Context, batchID, lineItemID uint, notes string, actor auth.Actor) ([]models.InventoryTransaction, error) {
	if err := s.checkMembership(ctx, batchID, lineItemID); err != nil {
		return nil, err
	}
	return s.lineItems.ReverseInventory(ctx, lineItemID, actor, lineitem.Options{BatchID: &batchID, Notes: notes})
}

func (s *Service) checkMembership(ctx context.Context, batchID, lineItemID uint) error {
	db := s.db.WithContext(ctx)
	b, err := batch.Load(db, batchID, false)
	if err != nil {
		return err
	}
	if b.IsSettled() {
		return batch.ErrBatchSettled
	}

	var count int64
	err = db.Model(&models.LineItem{}).
		Joins("JOIN batch_orders ON batch_orders.order_id = line_items.order_id").
		Where("line_items.id = ? AND batch_orders.batch_id = ?", lineItemID, batchID).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("check batch membership: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("%w: line item %d, batch %d", ErrNotInBatch, lineItemID, batchID)
	}
	return nil
}
