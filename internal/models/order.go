package models

import "time"

type Order struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	OrderNumber  string    `gorm:"size:50;uniqueIndex;not null" json:"order_number"`
	CustomerName string    `gorm:"size:200" json:"customer_name"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	LineItems []LineItem  `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"line_items"`
	Holds     []OrderHold `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"holds"`
}

type HoldCause string

const (
	HoldCauseStockShortage   HoldCause = "stock_shortage"
	HoldCauseAddressIssue    HoldCause = "address_issue"
	HoldCauseCustomerRequest HoldCause = "customer_request"
	HoldCauseOther           HoldCause = "other"
)

// OrderHold blocks an order until ResolvedAt is set.
type OrderHold struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	OrderID    uint       `gorm:"index;not null" json:"order_id"`
	Cause      HoldCause  `gorm:"size:30;not null" json:"cause"`
	Notes      string     `gorm:"size:255" json:"notes"`
	ResolvedAt *time.Time `json:"resolved_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

type LineItemStatus string

const (
	StatusNotPrinted       LineItemStatus = "not_printed"
	StatusPartiallyPrinted LineItemStatus = "partially_printed"
	StatusPrinted          LineItemStatus = "printed"
	StatusInStock          LineItemStatus = "in_stock"
	StatusOOSBlank         LineItemStatus = "oos_blank"
	StatusSkipped          LineItemStatus = "skipped"
	StatusIgnore           LineItemStatus = "ignore"
)

var LineItemStatuses = []LineItemStatus{
	StatusNotPrinted, StatusPartiallyPrinted, StatusPrinted, StatusInStock,
	StatusOOSBlank, StatusSkipped, StatusIgnore,
}

func (s LineItemStatus) Valid() bool {
	for _, v := range LineItemStatuses {
		if v == s {
			return true
		}
	}
	return false
}

type LineItem struct {
	ID                  uint            `gorm:"primaryKey" json:"id"`
	OrderID             uint            `gorm:"index;not null" json:"order_id"`
	Order               *Order          `json:"order"`
	ProductVariantID    *uint           `gorm:"index" json:"product_variant_id"`
	ProductVariant      *ProductVariant `json:"product_variant"`
	Name                string          `gorm:"size:255;not null" json:"name"`
	Quantity            int             `gorm:"not null" json:"quantity"`
	Status              LineItemStatus  `gorm:"size:30;not null;default:not_printed;index" json:"status"`
	MarkedAsPackaged    bool            `gorm:"not null;default:false" json:"marked_as_packaged"`
	RequiresShipping    bool            `gorm:"not null" json:"requires_shipping"`
	UnfulfilledQuantity int             `gorm:"not null;default:0" json:"unfulfilled_quantity"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}
