package models

import "time"

type AuditAction string

const (
	AuditActionCreate          AuditAction = "create"
	AuditActionUpdate          AuditAction = "update"
	AuditActionDelete          AuditAction = "delete"
	AuditActionStatusChange    AuditAction = "status_change"
	AuditActionInventoryChange AuditAction = "inventory_change"
)

// AuditLog is the human readable narrative of an action. Ledger entries
// point back at it through InventoryTransaction.LogID.
type AuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	UserID   uint   `gorm:"index" json:"user_id"`
	UserName string `gorm:"size:100" json:"user_name"`

	// "line_item", "blank_variant", "product_variant", "batch", ...
	EntityType string `gorm:"size:50;index" json:"entity_type"`
	EntityID   uint   `gorm:"index" json:"entity_id"`

	BatchID *uint `gorm:"index" json:"batch_id"`

	Action      AuditAction `gorm:"size:30" json:"action"`
	Description string      `gorm:"size:255" json:"description"`

	BeforeData string `gorm:"type:jsonb" json:"before_data"`
	AfterData  string `gorm:"type:jsonb" json:"after_data"`
}
