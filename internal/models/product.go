package models

import "time"

// Product is a sellable design. Black label products are finished goods
// whose stock lives in the storefront, not in this warehouse.
type Product struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"size:200;not null;index" json:"name"`
	IsBlackLabel bool      `gorm:"not null;default:false" json:"is_black_label"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	Prints   []Print          `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"prints"`
	Variants []ProductVariant `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"variants"`
}

// ProductVariant is a SKU. BlankVariantID is the sync to the garment it is
// printed on; premade variants are pulled from WarehouseInventory instead.
type ProductVariant struct {
	ID                 uint          `gorm:"primaryKey" json:"id"`
	ProductID          uint          `gorm:"index;not null" json:"product_id"`
	Product            *Product      `json:"product"`
	Title              string        `gorm:"size:200" json:"title"`
	SKU                string        `gorm:"size:100;index" json:"sku"`
	BlankVariantID     *uint         `gorm:"index" json:"blank_variant_id"`
	BlankVariant       *BlankVariant `json:"blank_variant"`
	IsPremade          bool          `gorm:"not null;default:false" json:"is_premade"`
	WarehouseInventory int           `gorm:"not null;default:0" json:"warehouse_inventory"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// Print is one decoration a product needs (front, back, sleeve...).
type Print struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	ProductID        uint      `gorm:"index;not null" json:"product_id"`
	Location         string    `gorm:"size:50;not null" json:"location"`
	HeatTransferCode *string   `gorm:"size:50" json:"heat_transfer_code"`
	FilePath         string    `gorm:"size:500" json:"file_path"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// PrintLog is appended every time a print is toggled for a line item. Only the
// latest log per (line item, print) counts.
type PrintLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	LineItemID uint      `gorm:"index:idx_print_logs_item_print;not null" json:"line_item_id"`
	PrintID    uint      `gorm:"index:idx_print_logs_item_print;not null" json:"print_id"`
	Active     bool      `gorm:"not null" json:"active"`
	ActorID    uint      `json:"actor_id"`
	CreatedAt  time.Time `json:"created_at"`
}
