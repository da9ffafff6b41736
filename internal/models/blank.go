package models

import "time"

// Blank is an undecorated garment line from a supplier.
type Blank struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Company     string    `gorm:"size:100;not null" json:"company"`
	GarmentType string    `gorm:"size:100;not null" json:"garment_type"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Variants []BlankVariant `gorm:"foreignKey:BlankID;constraint:OnDelete:CASCADE" json:"variants"`
}

// BlankVariant holds on-hand quantity. Only the ledger writes Quantity.
type BlankVariant struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	BlankID   uint      `gorm:"index;not null" json:"blank_id"`
	Blank     *Blank    `json:"blank"`
	Color     string    `gorm:"size:50;not null" json:"color"`
	Size      string    `gorm:"size:10;not null" json:"size"`
	Quantity  int       `gorm:"not null;default:0" json:"quantity"`
	WeightOz  float64   `gorm:"not null;default:0" json:"weight_oz"`
	VolumeIn3 float64   `gorm:"not null;default:0" json:"volume_in3"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
