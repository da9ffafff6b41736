package models

import (
	"fmt"
	"time"
)

type InventoryReason string

const (
	ReasonManualAdjustment InventoryReason = "manual_adjustment"
	ReasonAssemblyUsage    InventoryReason = "assembly_usage"
	ReasonRestock          InventoryReason = "restock"
	ReasonReturn           InventoryReason = "return"
	ReasonStockTake        InventoryReason = "stock_take"
	ReasonCorrection       InventoryReason = "correction"
	ReasonManualPrint      InventoryReason = "manual_print"
	ReasonDefectedItem     InventoryReason = "defected_item"
	ReasonMisprint         InventoryReason = "misprint"
)

var InventoryReasons = []InventoryReason{
	ReasonManualAdjustment, ReasonAssemblyUsage, ReasonRestock, ReasonReturn,
	ReasonStockTake, ReasonCorrection, ReasonManualPrint, ReasonDefectedItem, ReasonMisprint,
}

func (r InventoryReason) Valid() bool {
	for _, v := range InventoryReasons {
		if v == r {
			return true
		}
	}
	return false
}

type TargetKind string

const (
	TargetBlank   TargetKind = "blank"
	TargetProduct TargetKind = "product"
)

// InventoryTarget is either a blank variant or a product variant, never both.
type InventoryTarget struct {
	Kind TargetKind `json:"kind"`
	ID   uint       `json:"id"`
}

func BlankTarget(id uint) InventoryTarget   { return InventoryTarget{Kind: TargetBlank, ID: id} }
func ProductTarget(id uint) InventoryTarget { return InventoryTarget{Kind: TargetProduct, ID: id} }

func (t InventoryTarget) String() string {
	return fmt.Sprintf("%s:%d", t.Kind, t.ID)
}

// InventoryTransaction is an immutable ledger row.
// NewQuantity == PreviousQuantity + ChangeAmount always holds.
type InventoryTransaction struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	BlankVariantID   *uint           `gorm:"index;check:chk_inventory_transactions_target,(blank_variant_id IS NULL) <> (product_variant_id IS NULL)" json:"blank_variant_id"`
	ProductVariantID *uint           `gorm:"index" json:"product_variant_id"`
	ChangeAmount     int             `gorm:"not null" json:"change_amount"`
	PreviousQuantity int             `gorm:"not null" json:"previous_quantity"`
	NewQuantity      int             `gorm:"not null" json:"new_quantity"`
	Reason           InventoryReason `gorm:"size:30;not null;index" json:"reason"`
	LineItemID       *uint           `gorm:"index" json:"line_item_id"`
	LogID            *uint           `json:"log_id"`
	BatchID          *uint           `gorm:"index" json:"batch_id"`
	ProfileID        uint            `json:"profile_id"`
	Notes            string          `gorm:"size:255" json:"notes"`
	CreatedAt        time.Time       `json:"created_at"`
}

func NewTransactionFor(t InventoryTarget) InventoryTransaction {
	var tx InventoryTransaction
	id := t.ID
	switch t.Kind {
	case TargetBlank:
		tx.BlankVariantID = &id
	case TargetProduct:
		tx.ProductVariantID = &id
	}
	return tx
}

func (t InventoryTransaction) Target() InventoryTarget {
	if t.BlankVariantID != nil {
		return BlankTarget(*t.BlankVariantID)
	}
	if t.ProductVariantID != nil {
		return ProductTarget(*t.ProductVariantID)
	}
	return InventoryTarget{}
}
