package ledger

import (
	"context"

	"fulfillment-backend/internal/models"

	"gorm.io/gorm"
)

type Filter struct {
	Target      *models.InventoryTarget
	BatchID     *uint
	LineItemID  *uint
	LineItemIDs []uint
	Limit       int
}

// List returns matching transactions oldest first.
func (l *Ledger) List(ctx context.Context, f Filter) ([]models.InventoryTransaction, error) {
	return List(l.db.WithContext(ctx), f)
}

func List(db *gorm.DB, f Filter) ([]models.InventoryTransaction, error) {
	q := db.Model(&models.InventoryTransaction{})
	if f.Target != nil {
		q = whereTarget(q, *f.Target)
	}
	if f.BatchID != nil {
		q = q.Where("batch_id = ?", *f.BatchID)
	}
	if f.LineItemID != nil {
		q = q.Where("line_item_id = ?", *f.LineItemID)
	}
	if len(f.LineItemIDs) > 0 {
		q = q.Where("line_item_id IN ?", f.LineItemIDs)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var rows []models.InventoryTransaction
	if err := q.Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func whereTarget(q *gorm.DB, t models.InventoryTarget) *gorm.DB {
	if t.Kind == models.TargetBlank {
		return q.Where("blank_variant_id = ?", t.ID)
	}
	return q.Where("product_variant_id = ?", t.ID)
}

// NetChange sums ChangeAmount per target over txs.
func NetChange(txs []models.InventoryTransaction) map[models.InventoryTarget]int {
	out := make(map[models.InventoryTarget]int)
	for _, t := range txs {
		out[t.Target()] += t.ChangeAmount
	}
	return out
}
