// Package fulfillment decides how a line item is fulfilled: printed on a
// blank, pulled from premade stock, or shipped as black label.
package fulfillment

import (
	"fulfillment-backend/internal/models"

	"gorm.io/gorm"
)

type Kind string

const (
	KindPrint      Kind = "print"
	KindStock      Kind = "stock"
	KindBlackLabel Kind = "black_label"
)

const (
	WarningNoSyncedPrints = "no synced prints"
	WarningNoSyncedBlank  = "no synced blank"
)

// Plan is how one line item consumes inventory. Target is nil for black label.
type Plan struct {
	Kind     Kind
	Target   *models.InventoryTarget
	Quantity int
}

// MalformedError explains why an item's product linkage cannot be used.
type MalformedError struct {
	Reason string
}

func (e *MalformedError) Error() string { return e.Reason }

// Classify expects ProductVariant.Product and ProductVariant.BlankVariant.Blank
// to be loaded (see Preload).
func Classify(li *models.LineItem) (Plan, error) {
	pv := li.ProductVariant
	if li.ProductVariantID == nil || pv == nil {
		return Plan{}, &MalformedError{Reason: "line item is not linked to a product variant"}
	}
	if pv.Product == nil {
		return Plan{}, &MalformedError{Reason: "product variant has no product"}
	}

	if pv.Product.IsBlackLabel {
		return Plan{Kind: KindBlackLabel, Quantity: li.Quantity}, nil
	}
	if pv.IsPremade {
		t := models.ProductTarget(pv.ID)
		return Plan{Kind: KindStock, Target: &t, Quantity: li.Quantity}, nil
	}

	if pv.BlankVariantID == nil {
		return Plan{}, &MalformedError{Reason: WarningNoSyncedBlank}
	}
	if pv.BlankVariant == nil || pv.BlankVariant.ID != *pv.BlankVariantID {
		return Plan{}, &MalformedError{Reason: "synced blank variant does not exist"}
	}
	if pv.BlankVariant.Blank == nil {
		return Plan{}, &MalformedError{Reason: "blank variant is not attached to a blank"}
	}
	t := models.BlankTarget(pv.BlankVariant.ID)
	return Plan{Kind: KindPrint, Target: &t, Quantity: li.Quantity}, nil
}

// Warnings lists the linkage problems shown next to an item on the print floor.
func Warnings(li *models.LineItem) []string {
	warnings := []string{}
	pv := li.ProductVariant
	if pv == nil || pv.Product == nil {
		return append(warnings, WarningNoSyncedPrints, WarningNoSyncedBlank)
	}
	if pv.Product.IsBlackLabel {
		return warnings
	}
	if len(pv.Product.Prints) == 0 {
		warnings = append(warnings, WarningNoSyncedPrints)
	}
	if !pv.IsPremade && (pv.BlankVariantID == nil || pv.BlankVariant == nil) {
		warnings = append(warnings, WarningNoSyncedBlank)
	}
	return warnings
}

// Preload loads everything Classify and Warnings look at.
func Preload(db *gorm.DB) *gorm.DB {
	return db.
		Preload("ProductVariant.Product.Prints", func(db *gorm.DB) *gorm.DB {
			return db.Order("prints.id ASC")
		}).
		Preload("ProductVariant.BlankVariant.Blank")
}
