package models

import (
	"time"

	"gorm.io/datatypes"
)

// Batch groups orders that go through the print floor together. At most one
// batch is active, enforced by idx_batches_single_active.
type Batch struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Name        string     `gorm:"size:100" json:"name"`
	Active      bool       `gorm:"not null;default:false" json:"active"`
	CreatedByID uint       `json:"created_by_id"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	SettledAt   *time.Time `json:"settled_at"`

	PremadeStockVerifiedAt *time.Time `json:"premade_stock_verified_at"`
	BlankStockVerifiedAt   *time.Time `json:"blank_stock_verified_at"`
	ItemSyncVerifiedAt     *time.Time `json:"item_sync_verified_at"`
	ShipmentsVerifiedAt    *time.Time `json:"shipments_verified_at"`

	// Picking lists as they were when the stock was verified.
	PremadeStockRequirementsJSON datatypes.JSON `json:"premade_stock_requirements_json"`
	BlankStockRequirementsJSON   datatypes.JSON `json:"blank_stock_requirements_json"`

	Orders []Order `gorm:"many2many:batch_orders;" json:"orders"`
}

func (b *Batch) IsSettled() bool {
	return b.SettledAt != nil
}
