// Package stock computes what a batch needs from the shelves and gates
// the batch on there being enough of it.
package stock

import (
	"errors"
	"sort"
	"strings"

	"fulfillment-backend/internal/batch"
	"fulfillment-backend/internal/fulfillment"
	"fulfillment-backend/internal/ledger"
	"fulfillment-backend/internal/models"
)

// LineRef is one line item contributing to a requirement row.
type LineRef struct {
	LineItemID  uint   `json:"line_item_id"`
	OrderID     uint   `json:"order_id"`
	OrderNumber string `json:"order_number"`
	Name        string `json:"name"`
	Quantity    int    `json:"quantity"`
}

type BlankStockItem struct {
	BlankVariantID   uint                         `json:"blank_variant_id"`
	BlankID          uint                         `json:"blank_id"`
	Company          string                       `json:"company"`
	GarmentType      string                       `json:"garment_type"`
	Color            string                       `json:"color"`
	Size             string                       `json:"size"`
	RequiredQuantity int                          `json:"required_quantity"`
	OnHand           int                          `json:"on_hand"`
	ToPick           int                          `json:"to_pick"`
	Shortage         bool                         `json:"shortage"`
	LineItems        []LineRef                    `json:"line_items"`
	Transactions     []ledger.TransactionResponse `json:"transactions"`
}

// PremadeStockItem covers premade variants and black label products. Black
// label stock is managed by the storefront, so OnHand is nil and the row
// never blocks verification.
type PremadeStockItem struct {
	ProductVariantID uint                         `json:"product_variant_id"`
	ProductID        uint                         `json:"product_id"`
	ProductName      string                       `json:"product_name"`
	VariantTitle     string                       `json:"variant_title"`
	IsBlackLabel     bool                         `json:"is_black_label"`
	RequiredQuantity int                          `json:"required_quantity"`
	OnHand           *int                         `json:"on_hand"`
	ToPick           int                          `json:"to_pick"`
	Shortage         bool                         `json:"shortage"`
	LineItems        []LineRef                    `json:"line_items"`
	Transactions     []ledger.TransactionResponse `json:"transactions"`
}

// ExcludedItem is a line item left out of the requirement, with why.
type ExcludedItem struct {
	LineItemID  uint                  `json:"line_item_id"`
	OrderID     uint                  `json:"order_id"`
	OrderNumber string                `json:"order_number"`
	Name        string                `json:"name"`
	Quantity    int                   `json:"quantity"`
	Status      models.LineItemStatus `json:"status"`
	Reason      string                `json:"reason"`
}

type Requirements struct {
	BatchID        uint               `json:"batch_id"`
	Blanks         []BlankStockItem   `json:"blanks"`
	Premade        []PremadeStockItem `json:"premade"`
	FilteredItems  []ExcludedItem     `json:"filtered_items"`
	MalformedItems []ExcludedItem     `json:"malformed_items"`
	HeldItems      []ExcludedItem     `json:"held_items"`
}

func (r *Requirements) BlankShortages() []BlankStockItem {
	out := []BlankStockItem{}
	for _, b := range r.Blanks {
		if b.Shortage {
			out = append(out, b)
		}
	}
	return out
}

// PremadeShortages skips black label rows.
func (r *Requirements) PremadeShortages() []PremadeStockItem {
	out := []PremadeStockItem{}
	for _, p := range r.Premade {
		if p.Shortage && !p.IsBlackLabel {
			out = append(out, p)
		}
	}
	return out
}

// Build aggregates items into picking rows. items need the order with holds
// and the product linkage loaded; txs are the batch's ledger rows.
func Build(batchID uint, items []models.LineItem, txs []models.InventoryTransaction) *Requirements {
	req := &Requirements{
		BatchID:        batchID,
		Blanks:         []BlankStockItem{},
		Premade:        []PremadeStockItem{},
		FilteredItems:  []ExcludedItem{},
		MalformedItems: []ExcludedItem{},
		HeldItems:      []ExcludedItem{},
	}

	blanks := map[uint]*BlankStockItem{}
	premade := map[uint]*PremadeStockItem{}

	for i := range items {
		li := &items[i]

		if batch.IsHeld(li.Order) {
			req.HeldItems = append(req.HeldItems, excluded(li, "order is on hold"))
			continue
		}
		plan, err := fulfillment.Classify(li)
		if err != nil {
			var malformed *fulfillment.MalformedError
			reason := err.Error()
			if errors.As(err, &malformed) {
				reason = malformed.Reason
			}
			req.MalformedItems = append(req.MalformedItems, excluded(li, reason))
			continue
		}
		if reason := filterReason(li); reason != "" {
			req.FilteredItems = append(req.FilteredItems, excluded(li, reason))
			continue
		}

		ref := lineRef(li)
		pv := li.ProductVariant
		switch plan.Kind {
		case fulfillment.KindPrint:
			bv := pv.BlankVariant
			row, ok := blanks[bv.ID]
			if !ok {
				row = &BlankStockItem{
					BlankVariantID: bv.ID,
					BlankID:        bv.BlankID,
					Company:        bv.Blank.Company,
					GarmentType:    bv.Blank.GarmentType,
					Color:          bv.Color,
					Size:           bv.Size,
					OnHand:         bv.Quantity,
					LineItems:      []LineRef{},
				}
				blanks[bv.ID] = row
			}
			row.RequiredQuantity += li.Quantity
			row.LineItems = append(row.LineItems, ref)
		case fulfillment.KindStock, fulfillment.KindBlackLabel:
			row, ok := premade[pv.ID]
			if !ok {
				row = &PremadeStockItem{
					ProductVariantID: pv.ID,
					ProductID:        pv.ProductID,
					ProductName:      pv.Product.Name,
					VariantTitle:     pv.Title,
					IsBlackLabel:     plan.Kind == fulfillment.KindBlackLabel,
					LineItems:        []LineRef{},
				}
				if !row.IsBlackLabel {
					onHand := pv.WarehouseInventory
					row.OnHand = &onHand
				}
				premade[pv.ID] = row
			}
			row.RequiredQuantity += li.Quantity
			row.LineItems = append(row.LineItems, ref)
		}
	}

	byTarget := map[models.InventoryTarget][]models.InventoryTransaction{}
	for _, t := range txs {
		byTarget[t.Target()] = append(byTarget[t.Target()], t)
	}

	for _, row := range blanks {
		row.ToPick = max(0, row.RequiredQuantity-row.OnHand)
		row.Shortage = row.OnHand < row.RequiredQuantity
		row.Transactions = ledger.ToResponses(byTarget[models.BlankTarget(row.BlankVariantID)])
		req.Blanks = append(req.Blanks, *row)
	}
	for _, row := range premade {
		if row.OnHand == nil {
			row.ToPick = row.RequiredQuantity
		} else {
			row.ToPick = max(0, row.RequiredQuantity-*row.OnHand)
			row.Shortage = *row.OnHand < row.RequiredQuantity
		}
		row.Transactions = ledger.ToResponses(byTarget[models.ProductTarget(row.ProductVariantID)])
		req.Premade = append(req.Premade, *row)
	}

	SortBlanks(req.Blanks)
	SortPremade(req.Premade)
	return req
}

func filterReason(li *models.LineItem) string {
	switch {
	case !li.RequiresShipping:
		return "does not require shipping"
	case li.Quantity <= 0:
		return "quantity is zero"
	case li.Status == models.StatusIgnore:
		return "status is ignore"
	case li.Status == models.StatusSkipped:
		return "status is skipped"
	}
	return ""
}

func excluded(li *models.LineItem, reason string) ExcludedItem {
	e := ExcludedItem{
		LineItemID: li.ID,
		OrderID:    li.OrderID,
		Name:       li.Name,
		Quantity:   li.Quantity,
		Status:     li.Status,
		Reason:     reason,
	}
	if li.Order != nil {
		e.OrderNumber = li.Order.OrderNumber
	}
	return e
}

func lineRef(li *models.LineItem) LineRef {
	r := LineRef{LineItemID: li.ID, OrderID: li.OrderID, Name: li.Name, Quantity: li.Quantity}
	if li.Order != nil {
		r.OrderNumber = li.Order.OrderNumber
	}
	return r
}

var sizeOrder = map[string]int{
	"xs": 0, "s": 1, "m": 2, "l": 3, "xl": 4,
	"2xl": 5, "3xl": 6, "4xl": 7, "5xl": 8, "os": 9,
}

func sizeRank(size string) int {
	if r, ok := sizeOrder[strings.ToLower(strings.TrimSpace(size))]; ok {
		return r
	}
	return len(sizeOrder)
}

func colorRank(color string) int {
	switch strings.ToLower(strings.TrimSpace(color)) {
	case "black":
		return 0
	case "white":
		return 1
	}
	return 2
}

// SortBlanks orders rows the way pickers walk the shelves: black, white, then
// other colors alphabetically, then garment type, blank, and size.
func SortBlanks(rows []BlankStockItem) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if ra, rb := colorRank(a.Color), colorRank(b.Color); ra != rb {
			return ra < rb
		}
		if ca, cb := strings.ToLower(a.Color), strings.ToLower(b.Color); ca != cb {
			return ca < cb
		}
		if ga, gb := strings.ToLower(a.GarmentType), strings.ToLower(b.GarmentType); ga != gb {
			return ga < gb
		}
		if ca, cb := strings.ToLower(a.Company), strings.ToLower(b.Company); ca != cb {
			return ca < cb
		}
		if sa, sb := sizeRank(a.Size), sizeRank(b.Size); sa != sb {
			return sa < sb
		}
		if a.Size != b.Size {
			return a.Size < b.Size
		}
		return a.BlankVariantID < b.BlankVariantID
	})
}

func SortPremade(rows []PremadeStockItem) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if na, nb := strings.ToLower(a.ProductName), strings.ToLower(b.ProductName); na != nb {
			return na < nb
		}
		if a.VariantTitle != b.VariantTitle {
			return a.VariantTitle < b.VariantTitle
		}
		return a.ProductVariantID < b.ProductVariantID
	})
}
