package lineitem

import (
	"context"
	"errors"
	"fmt"

	"fulfillment-backend/internal/audit"
	"fulfillment-backend/internal/auth"
	"fulfillment-backend/internal/fulfillment"
	"fulfillment-backend/internal/ledger"
	"fulfillment-backend/internal/metrics"
	"fulfillment-backend/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Service struct {
	db     *gorm.DB
	ledger *ledger.Ledger
	log    *zap.Logger
}

func NewService(db *gorm.DB, l *ledger.Ledger, log *zap.Logger) *Service {
	return &Service{db: db, ledger: l, log: log}
}

// Options carries the optional context of a status change. BatchID defaults
// to the newest unsettled batch holding the item's order.
type Options struct {
	BatchID *uint
	Notes   string
}

type Result struct {
	Item           models.LineItem               `json:"-"`
	PreviousStatus models.LineItemStatus         `json:"previous_status"`
	Status         models.LineItemStatus         `json:"status"`
	Transactions   []models.InventoryTransaction `json:"-"`
	Skipped        []uint                        `json:"skipped_line_item_ids"`
}

// Transition moves a line item to status, writing any ledger debit and
// cascade in one transaction.
func (s *Service) Transition(ctx context.Context, lineItemID uint, to models.LineItemStatus, actor auth.Actor, opts Options) (*Result, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, to)
	}

	var res *Result
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := loadLocked(tx, lineItemID)
		if err != nil {
			return err
		}
		ps, err := printState(tx, item)
		if err != nil {
			return err
		}
		if err := CheckGuard(to, ps); err != nil {
			return err
		}
		res, err = s.apply(tx, item, to, actor, opts)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Reset returns an item to not_printed. Stock already debited stays debited;
// use ReverseInventory for that.
func (s *Service) Reset(ctx context.Context, lineItemID uint, actor auth.Actor, opts Options) (*Result, error) {
	return s.Transition(ctx, lineItemID, models.StatusNotPrinted, actor, opts)
}

// SetPrintActive appends a print log and, while the item is on the print
// track, moves it to the status the logs now imply.
func (s *Service) SetPrintActive(ctx context.Context, lineItemID, printID uint, active bool, actor auth.Actor, opts Options) (*Result, error) {
	var res *Result
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := loadLocked(tx, lineItemID)
		if err != nil {
			return err
		}
		if !declaresPrint(item, printID) {
			return fmt.Errorf("%w: print %d", ErrPrintNotOnProduct, printID)
		}

		entry := models.PrintLog{LineItemID: item.ID, PrintID: printID, Active: active, ActorID: actor.ID}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("insert print log: %w", err)
		}

		ps, err := printState(tx, item)
		if err != nil {
			return err
		}
		to := DerivedStatus(ps)
		if !onPrintTrack(item.Status) || to == item.Status {
			res = &Result{Item: *item, PreviousStatus: item.Status, Status: item.Status, Skipped: []uint{}}
			return nil
		}
		res, err = s.apply(tx, item, to, actor, opts)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// apply writes the status, ledger effect, cascade and narrative through tx.
// Guards are the caller's job.
func (s *Service) apply(tx *gorm.DB, item *models.LineItem, to models.LineItemStatus, actor auth.Actor, opts Options) (*Result, error) {
	from := item.Status
	res := &Result{PreviousStatus: from, Status: to, Skipped: []uint{}}
	if from == to {
		res.Item = *item
		return res, nil
	}

	batchID := opts.BatchID
	if batchID == nil {
		var err error
		if batchID, err = BatchForOrder(tx, item.OrderID); err != nil {
			return nil, err
		}
	}

	if err := tx.Model(&models.LineItem{}).Where("id = ?", item.ID).Update("status", to).Error; err != nil {
		return nil, fmt.Errorf("update line item status: %w", err)
	}
	item.Status = to

	entry, err := audit.WriteLog(tx, audit.LogOptions{
		UserID:      actor.ID,
		UserName:    actor.Name,
		EntityType:  "line_item",
		EntityID:    item.ID,
		BatchID:     batchID,
		Action:      models.AuditActionStatusChange,
		Description: describe(item, from, to, opts.Notes),
		Before:      map[string]any{"status": from},
		After:       map[string]any{"status": to},
	})
	if err != nil {
		return nil, err
	}

	if plan, err := fulfillment.Classify(item); err == nil {
		eff := LedgerEffect(from, to, plan)
		if eff != nil {
			history, err := ledger.List(tx, ledger.Filter{Target: &eff.Target, LineItemID: &item.ID})
			if err != nil {
				return nil, fmt.Errorf("load line item transactions: %w", err)
			}
			eff = Outstanding(eff, ledger.NetChange(history)[eff.Target])
		}
		if eff != nil {
			row, err := s.ledger.Record(tx, eff.Target, eff.Change, eff.Reason, ledger.Context{
				LineItemID: &item.ID,
				BatchID:    batchID,
				ProfileID:  actor.ID,
				UserName:   actor.Name,
				LogID:      &entry.ID,
				Notes:      opts.Notes,
			})
			if err != nil {
				return nil, err
			}
			res.Transactions = append(res.Transactions, *row)
		}
	} else {
		var malformed *fulfillment.MalformedError
		if !errors.As(err, &malformed) {
			return nil, err
		}
		s.log.Info("status change without ledger effect",
			zap.Uint("line_item_id", item.ID), zap.String("reason", malformed.Reason))
	}

	if TriggersCascade(to) {
		skipped, err := s.ApplyCascade(tx, item.OrderID, item.ID, actor, batchID)
		if err != nil {
			return nil, err
		}
		res.Skipped = skipped
	}

	metrics.StatusTransitions.WithLabelValues(string(to)).Inc()
	res.Item = *item
	return res, nil
}

// ApplyCascade skips the remaining print-track items of orderID after trigger
// entered a cascading status. It writes no ledger entries.
func (s *Service) ApplyCascade(tx *gorm.DB, orderID, triggerID uint, actor auth.Actor, batchID *uint) ([]uint, error) {
	var siblings []models.LineItem
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("order_id = ? AND id <> ?", orderID, triggerID).
		Order("id ASC").
		Find(&siblings).Error; err != nil {
		return nil, fmt.Errorf("load order siblings: %w", err)
	}

	ids := CascadeSkips(triggerID, siblings)
	if len(ids) == 0 {
		return ids, nil
	}
	if err := tx.Model(&models.LineItem{}).Where("id IN ?", ids).Update("status", models.StatusSkipped).Error; err != nil {
		return nil, fmt.Errorf("skip order siblings: %w", err)
	}

	for _, sib := range siblings {
		if !containsID(ids, sib.ID) {
			continue
		}
		if _, err := audit.WriteLog(tx, audit.LogOptions{
			UserID:      actor.ID,
			UserName:    actor.Name,
			EntityType:  "line_item",
			EntityID:    sib.ID,
			BatchID:     batchID,
			Action:      models.AuditActionStatusChange,
			Description: fmt.Sprintf("%s skipped because line item %d left the print queue", sib.Name, triggerID),
			Before:      map[string]any{"status": sib.Status},
			After:       map[string]any{"status": models.StatusSkipped},
		}); err != nil {
			return nil, err
		}
		metrics.StatusTransitions.WithLabelValues(string(models.StatusSkipped)).Inc()
	}
	return ids, nil
}

// ReverseInventory credits back whatever the ledger has net debited for a
// line item, one correction per target.
func (s *Service) ReverseInventory(ctx context.Context, lineItemID uint, actor auth.Actor, opts Options) ([]models.InventoryTransaction, error) {
	out := []models.InventoryTransaction{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := loadLocked(tx, lineItemID)
		if err != nil {
			return err
		}
		history, err := ledger.List(tx, ledger.Filter{LineItemID: &item.ID})
		if err != nil {
			return fmt.Errorf("load line item transactions: %w", err)
		}

		batchID := opts.BatchID
		if batchID == nil {
			if batchID, err = BatchForOrder(tx, item.OrderID); err != nil {
				return err
			}
		}

		net := ledger.NetChange(history)
		for _, t := range orderedTargets(history) {
			amount := net[t]
			if amount == 0 {
				continue
			}
			row, err := s.ledger.Record(tx, t, -amount, models.ReasonCorrection, ledger.Context{
				LineItemID: &item.ID,
				BatchID:    batchID,
				ProfileID:  actor.ID,
				UserName:   actor.Name,
				Notes:      opts.Notes,
				Narrative:  fmt.Sprintf("reversed %+d on %s for %s", amount, t, item.Name),
			})
			if err != nil {
				return err
			}
			out = append(out, *row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// BatchForOrder finds the batch new ledger rows for an order belong to:
// unsettled batches first, newest first.
func BatchForOrder(tx *gorm.DB, orderID uint) (*uint, error) {
	var ids []uint
	err := tx.Table("batch_orders").
		Joins("JOIN batches ON batches.id = batch_orders.batch_id").
		Where("batch_orders.order_id = ?", orderID).
		Order("batches.settled_at IS NOT NULL, batches.id DESC").
		Limit(1).
		Pluck("batch_orders.batch_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("find batch for order: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return &ids[0], nil
}

func loadLocked(tx *gorm.DB, id uint) (*models.LineItem, error) {
	var item models.LineItem
	err := fulfillment.Preload(tx.Clauses(clause.Locking{Strength: "UPDATE"})).First(&item, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrLineItemNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load line item: %w", err)
	}
	return &item, nil
}

// printState reads the latest log for each declared print.
func printState(tx *gorm.DB, item *models.LineItem) (PrintState, error) {
	var ps PrintState
	if item.ProductVariant == nil || item.ProductVariant.Product == nil {
		return ps, nil
	}
	product := item.ProductVariant.Product
	ps.BlackLabel = product.IsBlackLabel
	ps.Declared = len(product.Prints)
	if ps.Declared == 0 {
		return ps, nil
	}

	var logs []models.PrintLog
	if err := tx.Where("line_item_id = ?", item.ID).Order("id ASC").Find(&logs).Error; err != nil {
		return ps, fmt.Errorf("load print logs: %w", err)
	}
	latest := make(map[uint]bool, len(logs))
	for _, l := range logs {
		latest[l.PrintID] = l.Active
	}
	for _, p := range product.Prints {
		if latest[p.ID] {
			ps.Active++
		}
	}
	return ps, nil
}

func declaresPrint(item *models.LineItem, printID uint) bool {
	if item.ProductVariant == nil || item.ProductVariant.Product == nil {
		return false
	}
	for _, p := range item.ProductVariant.Product.Prints {
		if p.ID == printID {
			return true
		}
	}
	return false
}

func orderedTargets(txs []models.InventoryTransaction) []models.InventoryTarget {
	seen := map[models.InventoryTarget]bool{}
	out := []models.InventoryTarget{}
	for _, t := range txs {
		target := t.Target()
		if !seen[target] {
			seen[target] = true
			out = append(out, target)
		}
	}
	return out
}

func containsID(ids []uint, id uint) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func describe(item *models.LineItem, from, to models.LineItemStatus, notes string) string {
	d := fmt.Sprintf("%s: %s -> %s", item.Name, from, to)
	if notes != "" {
		d += " (" + notes + ")"
	}
	return d
}
