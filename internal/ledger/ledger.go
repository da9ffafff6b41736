// Package ledger is the append-only record of every inventory quantity change.
// It is the only code allowed to write BlankVariant.Quantity and
// ProductVariant.WarehouseInventory.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"fulfillment-backend/internal/apperror"
	"fulfillment-backend/internal/audit"
	"fulfillment-backend/internal/metrics"
	"fulfillment-backend/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrTargetNotFound         = errors.New("inventory target not found")
	ErrConcurrentModification = errors.New("on-hand quantity changed concurrently, re-fetch and retry")
	ErrInvalidTarget          = errors.New("target must be a blank or product variant")
	ErrInvalidReason          = errors.New("unknown inventory reason")
)

func init() {
	apperror.Register(ErrTargetNotFound, apperror.CodeTargetNotFound, http.StatusNotFound)
	apperror.Register(ErrConcurrentModification, apperror.CodeConcurrentModification, http.StatusConflict)
	apperror.Register(ErrInvalidTarget, apperror.CodeValidationError, http.StatusBadRequest)
	apperror.Register(ErrInvalidReason, apperror.CodeValidationError, http.StatusBadRequest)
}

// Context links a change to the line item, batch and actor behind it.
type Context struct {
	LineItemID *uint
	BatchID    *uint
	ProfileID  uint
	UserName   string
	LogID      *uint
	Notes      string
	// Narrative, when set and LogID is nil, is written as an audit log and
	// cross referenced from the transaction.
	Narrative string
}

type Ledger struct {
	db  *gorm.DB
	log *zap.Logger
}

func New(db *gorm.DB, log *zap.Logger) *Ledger {
	return &Ledger{db: db, log: log}
}

// RecordChange applies changeAmount to target in its own transaction.
func (l *Ledger) RecordChange(ctx context.Context, target models.InventoryTarget, changeAmount int, reason models.InventoryReason, rc Context) (*models.InventoryTransaction, error) {
	var out *models.InventoryTransaction
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		out, err = l.Record(tx, target, changeAmount, reason, rc)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RecordStockTake records the difference between counted and the stored
// quantity, read inside the same transaction.
func (l *Ledger) RecordStockTake(ctx context.Context, target models.InventoryTarget, counted int, rc Context) (*models.InventoryTransaction, error) {
	var out *models.InventoryTransaction
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := l.onHand(tx, target)
		if err != nil {
			return err
		}
		change := counted - current
		rc.Narrative = fmt.Sprintf("stock take on %s: counted %d, stored %d", target, counted, current)
		out, err = l.Record(tx, target, change, models.ReasonStockTake, rc)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Record reads the on-hand quantity under a row lock, writes the new value and
// appends the transaction row, all through tx. Callers that need the change to
// commit with other writes pass their own transaction.
func (l *Ledger) Record(tx *gorm.DB, target models.InventoryTarget, changeAmount int, reason models.InventoryReason, rc Context) (*models.InventoryTransaction, error) {
	if !reason.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidReason, reason)
	}

	previous, err := l.onHand(tx, target)
	if err != nil {
		return nil, err
	}
	newQuantity := previous + changeAmount

	if err := compareAndSet(tx, target, previous, newQuantity); err != nil {
		if errors.Is(err, ErrConcurrentModification) {
			metrics.LedgerConflicts.Inc()
		}
		return nil, err
	}

	logID := rc.LogID
	if logID == nil && rc.Narrative != "" {
		entry, err := audit.WriteLog(tx, audit.LogOptions{
			UserID:      rc.ProfileID,
			UserName:    rc.UserName,
			EntityType:  entityType(target),
			EntityID:    target.ID,
			BatchID:     rc.BatchID,
			Action:      models.AuditActionInventoryChange,
			Description: rc.Narrative,
			Before:      map[string]int{"quantity": previous},
			After:       map[string]int{"quantity": newQuantity},
		})
		if err != nil {
			return nil, err
		}
		logID = &entry.ID
	}

	row := models.NewTransactionFor(target)
	row.ChangeAmount = changeAmount
	row.PreviousQuantity = previous
	row.NewQuantity = newQuantity
	row.Reason = reason
	row.LineItemID = rc.LineItemID
	row.BatchID = rc.BatchID
	row.LogID = logID
	row.ProfileID = rc.ProfileID
	row.Notes = rc.Notes

	if err := tx.Create(&row).Error; err != nil {
		return nil, fmt.Errorf("insert inventory transaction: %w", err)
	}

	metrics.LedgerTransactions.WithLabelValues(string(reason), string(target.Kind)).Inc()
	fields := []zap.Field{
		zap.String("target", target.String()),
		zap.Int("change", changeAmount),
		zap.Int("previous", previous),
		zap.Int("new", newQuantity),
		zap.String("reason", string(reason)),
		zap.Uint("actor", rc.ProfileID),
	}
	if newQuantity < 0 {
		l.log.Warn("inventory went negative", fields...)
	} else {
		l.log.Info("inventory changed", fields...)
	}

	return &row, nil
}

// OnHand returns the stored quantity for target.
func (l *Ledger) OnHand(ctx context.Context, target models.InventoryTarget) (int, error) {
	return l.onHand(l.db.WithContext(ctx), target)
}

func (l *Ledger) onHand(tx *gorm.DB, target models.InventoryTarget) (int, error) {
	locked := tx.Clauses(clause.Locking{Strength: "UPDATE"})
	switch target.Kind {
	case models.TargetBlank:
		var v models.BlankVariant
		if err := locked.Select("id", "quantity").First(&v, target.ID).Error; err != nil {
			return 0, notFound(err, target)
		}
		return v.Quantity, nil
	case models.TargetProduct:
		var v models.ProductVariant
		if err := locked.Select("id", "warehouse_inventory").First(&v, target.ID).Error; err != nil {
			return 0, notFound(err, target)
		}
		return v.WarehouseInventory, nil
	default:
		return 0, ErrInvalidTarget
	}
}

// compareAndSet only writes when the stored value still equals previous, so a
// racing writer surfaces instead of being overwritten.
func compareAndSet(tx *gorm.DB, target models.InventoryTarget, previous, next int) error {
	var res *gorm.DB
	switch target.Kind {
	case models.TargetBlank:
		res = tx.Model(&models.BlankVariant{}).
			Where("id = ? AND quantity = ?", target.ID, previous).
			Update("quantity", next)
	case models.TargetProduct:
		res = tx.Model(&models.ProductVariant{}).
			Where("id = ? AND warehouse_inventory = ?", target.ID, previous).
			Update("warehouse_inventory", next)
	default:
		return ErrInvalidTarget
	}
	if res.Error != nil {
		return fmt.Errorf("update on-hand for %s: %w", target, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConcurrentModification
	}
	return nil
}

func notFound(err error, target models.InventoryTarget) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrTargetNotFound, target)
	}
	return fmt.Errorf("read on-hand for %s: %w", target, err)
}

func entityType(t models.InventoryTarget) string {
	if t.Kind == models.TargetBlank {
		return "blank_variant"
	}
	return "product_variant"
}
