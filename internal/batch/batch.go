// Package batch manages batches and the orders attached to them.
package batch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"fulfillment-backend/internal/apperror"
	"fulfillment-backend/internal/audit"
	"fulfillment-backend/internal/auth"
	"fulfillment-backend/internal/fulfillment"
	"fulfillment-backend/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrBatchNotFound      = errors.New("batch not found")
	ErrBatchAlreadyActive = errors.New("another batch is already active")
	ErrBatchSettled       = errors.New("batch is settled")
	ErrOrderNotFound      = errors.New("order not found")
	ErrUnknownKind        = errors.New("unknown verification kind")
)

func init() {
	apperror.Register(ErrBatchNotFound, apperror.CodeNotFound, http.StatusNotFound)
	apperror.Register(ErrBatchAlreadyActive, apperror.CodeBatchAlreadyActive, http.StatusConflict)
	apperror.Register(ErrBatchSettled, apperror.CodeBatchSettled, http.StatusConflict)
	apperror.Register(ErrOrderNotFound, apperror.CodeNotFound, http.StatusNotFound)
	apperror.Register(ErrUnknownKind, apperror.CodeValidationError, http.StatusBadRequest)
}

// VerificationKind names one of the four batch checkpoints.
type VerificationKind string

const (
	KindBlank     VerificationKind = "blank"
	KindPremade   VerificationKind = "premade"
	KindItemSync  VerificationKind = "item_sync"
	KindShipments VerificationKind = "shipments"
)

// Load reads a batch, taking a row lock when lock is set.
func Load(tx *gorm.DB, id uint, lock bool) (*models.Batch, error) {
	q := tx
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var b models.Batch
	err := q.First(&b, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrBatchNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load batch: %w", err)
	}
	return &b, nil
}

// LineItems loads every line item on the batch's orders with the order, its
// holds and the product linkage, ordered by id.
func LineItems(tx *gorm.DB, batchID uint) ([]models.LineItem, error) {
	orderIDs := tx.Table("batch_orders").Select("order_id").Where("batch_id = ?", batchID)

	var items []models.LineItem
	err := fulfillment.Preload(tx).
		Preload("Order.Holds").
		Where("order_id IN (?)", orderIDs).
		Order("id ASC").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("load batch line items: %w", err)
	}
	return items, nil
}

// IsHeld reports whether the order has an unresolved hold.
func IsHeld(o *models.Order) bool {
	if o == nil {
		return false
	}
	for _, h := range o.Holds {
		if h.ResolvedAt == nil {
			return true
		}
	}
	return false
}

type Manager struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewManager(db *gorm.DB, log *zap.Logger) *Manager {
	return &Manager{db: db, log: log}
}

func (m *Manager) Create(ctx context.Context, name string, actor auth.Actor) (*models.Batch, error) {
	b := models.Batch{Name: name, CreatedByID: actor.ID}
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&b).Error; err != nil {
			return fmt.Errorf("create batch: %w", err)
		}
		_, err := audit.WriteLog(tx, audit.LogOptions{
			UserID:      actor.ID,
			UserName:    actor.Name,
			EntityType:  "batch",
			EntityID:    b.ID,
			BatchID:     &b.ID,
			Action:      models.AuditActionCreate,
			Description: "batch created: " + name,
			After:       b,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (m *Manager) Get(ctx context.Context, id uint) (*models.Batch, error) {
	var b models.Batch
	err := m.db.WithContext(ctx).Preload("Orders", func(db *gorm.DB) *gorm.DB {
		return db.Order("orders.id ASC")
	}).First(&b, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrBatchNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load batch: %w", err)
	}
	return &b, nil
}

// List returns batches newest first. activeOnly limits it to the active one.
func (m *Manager) List(ctx context.Context, activeOnly bool) ([]models.Batch, error) {
	q := m.db.WithContext(ctx).Model(&models.Batch{})
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	var out []models.Batch
	if err := q.Order("id DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	return out, nil
}

// Activate makes id the one active batch. The partial unique index is the
// final word; the pre-check only gives a clearer error.
func (m *Manager) Activate(ctx context.Context, id uint, actor auth.Actor) (*models.Batch, error) {
	var out *models.Batch
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		b, err := Load(tx, id, true)
		if err != nil {
			return err
		}
		if b.IsSettled() {
			return ErrBatchSettled
		}
		if b.Active {
			out = b
			return nil
		}

		var others int64
		if err := tx.Model(&models.Batch{}).Where("active = ? AND id <> ?", true, id).Count(&others).Error; err != nil {
			return fmt.Errorf("check active batch: %w", err)
		}
		if others > 0 {
			return ErrBatchAlreadyActive
		}

		if err := tx.Model(b).Update("active", true).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrBatchAlreadyActive
			}
			return fmt.Errorf("activate batch: %w", err)
		}
		b.Active = true
		out = b
		return m.logStatus(tx, b, actor, "batch activated", map[string]bool{"active": false}, map[string]bool{"active": true})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (m *Manager) Deactivate(ctx context.Context, id uint, actor auth.Actor) (*models.Batch, error) {
	var out *models.Batch
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		b, err := Load(tx, id, true)
		if err != nil {
			return err
		}
		out = b
		if !b.Active {
			return nil
		}
		if err := tx.Model(b).Update("active", false).Error; err != nil {
			return fmt.Errorf("deactivate batch: %w", err)
		}
		b.Active = false
		return m.logStatus(tx, b, actor, "batch deactivated", map[string]bool{"active": true}, map[string]bool{"active": false})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (m *Manager) AttachOrders(ctx context.Context, id uint, orderIDs []uint, actor auth.Actor) (*models.Batch, error) {
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		b, err := Load(tx, id, true)
		if err != nil {
			return err
		}
		if b.IsSettled() {
			return ErrBatchSettled
		}

		var orders []models.Order
		if err := tx.Where("id IN ?", orderIDs).Find(&orders).Error; err != nil {
			return fmt.Errorf("load orders: %w", err)
		}
		if len(orders) != len(uniq(orderIDs)) {
			return fmt.Errorf("%w: some of %v do not exist", ErrOrderNotFound, orderIDs)
		}
		if err := tx.Model(b).Association("Orders").Append(&orders); err != nil {
			return fmt.Errorf("attach orders: %w", err)
		}
		_, err = audit.WriteLog(tx, audit.LogOptions{
			UserID:      actor.ID,
			UserName:    actor.Name,
			EntityType:  "batch",
			EntityID:    b.ID,
			BatchID:     &b.ID,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("%d orders attached", len(orders)),
			After:       map[string][]uint{"order_ids": orderIDs},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return m.Get(ctx, id)
}

func (m *Manager) DetachOrder(ctx context.Context, id, orderID uint, actor auth.Actor) (*models.Batch, error) {
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		b, err := Load(tx, id, true)
		if err != nil {
			return err
		}
		if b.IsSettled() {
			return ErrBatchSettled
		}
		if err := tx.Model(b).Association("Orders").Delete(&models.Order{ID: orderID}); err != nil {
			return fmt.Errorf("detach order: %w", err)
		}
		_, err = audit.WriteLog(tx, audit.LogOptions{
			UserID:      actor.ID,
			UserName:    actor.Name,
			EntityType:  "batch",
			EntityID:    b.ID,
			BatchID:     &b.ID,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("order %d detached", orderID),
			Before:      map[string]uint{"order_id": orderID},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return m.Get(ctx, id)
}

// MarkVerified stamps the item sync or shipments checkpoint. Stock
// checkpoints go through the stock gate instead.
func (m *Manager) MarkVerified(ctx context.Context, id uint, kind VerificationKind, actor auth.Actor) (*models.Batch, error) {
	var column string
	switch kind {
	case KindItemSync:
		column = "item_sync_verified_at"
	case KindShipments:
		column = "shipments_verified_at"
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	var out *models.Batch
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		b, err := Load(tx, id, true)
		if err != nil {
			return err
		}
		if b.IsSettled() {
			return ErrBatchSettled
		}
		now := time.Now()
		if err := tx.Model(b).Update(column, now).Error; err != nil {
			return fmt.Errorf("stamp %s: %w", column, err)
		}
		if out, err = Load(tx, id, false); err != nil {
			return err
		}
		return m.logStatus(tx, out, actor, string(kind)+" verified", nil, map[string]time.Time{column: now})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ResetVerification clears a checkpoint; for stock checkpoints the stored
// snapshot goes too, which re-opens the gate.
func (m *Manager) ResetVerification(ctx context.Context, id uint, kind VerificationKind, actor auth.Actor) (*models.Batch, error) {
	updates := map[string]any{}
	switch kind {
	case KindBlank:
		updates["blank_stock_verified_at"] = nil
		updates["blank_stock_requirements_json"] = nil
	case KindPremade:
		updates["premade_stock_verified_at"] = nil
		updates["premade_stock_requirements_json"] = nil
	case KindItemSync:
		updates["item_sync_verified_at"] = nil
	case KindShipments:
		updates["shipments_verified_at"] = nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	var out *models.Batch
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		b, err := Load(tx, id, true)
		if err != nil {
			return err
		}
		if b.IsSettled() {
			return ErrBatchSettled
		}
		if err := tx.Model(b).Updates(updates).Error; err != nil {
			return fmt.Errorf("reset %s verification: %w", kind, err)
		}
		if out, err = Load(tx, id, false); err != nil {
			return err
		}
		return m.logStatus(tx, out, actor, string(kind)+" verification reset", nil, nil)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Settle closes the batch. A settled batch is read only.
func (m *Manager) Settle(ctx context.Context, id uint, actor auth.Actor) (*models.Batch, error) {
	var out *models.Batch
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		b, err := Load(tx, id, true)
		if err != nil {
			return err
		}
		if b.IsSettled() {
			return ErrBatchSettled
		}
		now := time.Now()
		if err := tx.Model(b).Updates(map[string]any{"settled_at": now, "active": false}).Error; err != nil {
			return fmt.Errorf("settle batch: %w", err)
		}
		if out, err = Load(tx, id, false); err != nil {
			return err
		}
		return m.logStatus(tx, out, actor, "batch settled", nil, map[string]time.Time{"settled_at": now})
	})
	if err != nil {
		return nil, err
	}
	m.log.Info("batch settled", zap.Uint("batch_id", id), zap.Uint("actor", actor.ID))
	return out, nil
}

func (m *Manager) logStatus(tx *gorm.DB, b *models.Batch, actor auth.Actor, desc string, before, after any) error {
	_, err := audit.WriteLog(tx, audit.LogOptions{
		UserID:      actor.ID,
		UserName:    actor.Name,
		EntityType:  "batch",
		EntityID:    b.ID,
		BatchID:     &b.ID,
		Action:      models.AuditActionStatusChange,
		Description: desc,
		Before:      before,
		After:       after,
	})
	return err
}

func uniq(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
