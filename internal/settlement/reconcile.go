// Package settlement compares what a batch should have consumed with what
// the ledger says it did, and offers the corrections.
package settlement

import (
	"fulfillment-backend/internal/assembly"
	"fulfillment-backend/internal/fulfillment"
	"fulfillment-backend/internal/ledger"
	"fulfillment-backend/internal/models"
	"fulfillment-backend/internal/stock"
)

type Item struct {
	Position              int                          `json:"position"`
	LineItemID            uint                         `json:"line_item_id"`
	OrderID               uint                         `json:"order_id"`
	OrderNumber           string                       `json:"order_number"`
	Name                  string                       `json:"name"`
	Quantity              int                          `json:"quantity"`
	Status                models.LineItemStatus        `json:"status"`
	ExpectedFulfillment   fulfillment.Kind             `json:"expected_fulfillment"`
	InventoryTarget       *models.InventoryTarget      `json:"inventory_target"`
	ExpectedChange        int                          `json:"expected_change"`
	ActualInventoryChange int                          `json:"actual_inventory_change"`
	HasInventoryMismatch  bool                         `json:"has_inventory_mismatch"`
	HasStatusMismatch     bool                         `json:"has_status_mismatch"`
	Acknowledged          bool                         `json:"acknowledged"`
	Transactions          []ledger.TransactionResponse `json:"transactions"`
}

type Summary struct {
	Items               int `json:"items"`
	InventoryMismatches int `json:"inventory_mismatches"`
	StatusMismatches    int `json:"status_mismatches"`
	Acknowledged        int `json:"acknowledged"`
}

// Snapshot is the expected side: which line items each verified picking
// list row covered.
type Snapshot struct {
	Blank   map[uint]snapshotRef
	Premade map[uint]snapshotRef
}

type snapshotRef struct {
	Target   models.InventoryTarget
	Quantity int
}

func NewSnapshot(blanks []stock.BlankStockItem, premade []stock.PremadeStockItem) Snapshot {
	s := Snapshot{Blank: map[uint]snapshotRef{}, Premade: map[uint]snapshotRef{}}
	for _, row := range blanks {
		for _, ref := range row.LineItems {
			s.Blank[ref.LineItemID] = snapshotRef{Target: models.BlankTarget(row.BlankVariantID), Quantity: ref.Quantity}
		}
	}
	for _, row := range premade {
		if row.IsBlackLabel {
			continue
		}
		for _, ref := range row.LineItems {
			s.Premade[ref.LineItemID] = snapshotRef{Target: models.ProductTarget(row.ProductVariantID), Quantity: ref.Quantity}
		}
	}
	return s
}

// Reconcile builds one settlement row per item on the assembly line, in line
// order. items must carry the product linkage; txs are the ledger rows of
// those line items. It reads nothing else, so equal inputs give equal output.
func Reconcile(line []assembly.Item, items []models.LineItem, txs []models.InventoryTransaction, snap Snapshot) []Item {
	byID := make(map[uint]*models.LineItem, len(items))
	for i := range items {
		byID[items[i].ID] = &items[i]
	}
	byLine := map[uint][]models.InventoryTransaction{}
	for _, t := range txs {
		if t.LineItemID != nil {
			byLine[*t.LineItemID] = append(byLine[*t.LineItemID], t)
		}
	}

	out := make([]Item, 0, len(line))
	for _, entry := range line {
		li, ok := byID[entry.LineItemID]
		if !ok {
			continue
		}
		out = append(out, reconcileOne(entry.Position, li, byLine[li.ID], snap))
	}
	return out
}

func reconcileOne(position int, li *models.LineItem, txs []models.InventoryTransaction, snap Snapshot) Item {
	it := Item{
		Position:     position,
		LineItemID:   li.ID,
		OrderID:      li.OrderID,
		Name:         li.Name,
		Quantity:     li.Quantity,
		Status:       li.Status,
		Transactions: ledger.ToResponses(txs),
	}
	if li.Order != nil {
		it.OrderNumber = li.Order.OrderNumber
	}

	plan, planErr := fulfillment.Classify(li)
	quantity := li.Quantity
	switch {
	case planErr == nil && plan.Kind == fulfillment.KindBlackLabel:
		it.ExpectedFulfillment = fulfillment.KindBlackLabel
	case hasRef(snap.Blank, li.ID):
		ref := snap.Blank[li.ID]
		it.ExpectedFulfillment = fulfillment.KindPrint
		it.InventoryTarget = &ref.Target
		quantity = ref.Quantity
	case hasRef(snap.Premade, li.ID):
		ref := snap.Premade[li.ID]
		it.ExpectedFulfillment = fulfillment.KindStock
		it.InventoryTarget = &ref.Target
		quantity = ref.Quantity
	case planErr == nil:
		// not in any verified list, judge by the current catalog
		it.ExpectedFulfillment = plan.Kind
		it.InventoryTarget = plan.Target
	default:
		it.ExpectedFulfillment = fulfillment.KindStock
	}

	leftFloor := li.Status == models.StatusSkipped || li.Status == models.StatusOOSBlank
	if it.InventoryTarget != nil {
		if !leftFloor {
			it.ExpectedChange = -quantity
		}
		for _, t := range txs {
			if t.Target() == *it.InventoryTarget {
				it.ActualInventoryChange += t.ChangeAmount
			}
		}
		it.HasInventoryMismatch = it.ActualInventoryChange != it.ExpectedChange
	}
	if !leftFloor {
		it.HasStatusMismatch = !statusMatches(it.ExpectedFulfillment, li.Status)
	}
	return it
}

func hasRef(m map[uint]snapshotRef, id uint) bool {
	_, ok := m[id]
	return ok
}

func statusMatches(kind fulfillment.Kind, status models.LineItemStatus) bool {
	switch kind {
	case fulfillment.KindPrint:
		return status == models.StatusPrinted
	case fulfillment.KindStock:
		return status == models.StatusInStock
	case fulfillment.KindBlackLabel:
		return status == models.StatusPrinted || status == models.StatusInStock
	}
	return false
}

// Acknowledge suppresses the mismatch flags of the given line items for one
// review. It returns a copy and touches nothing persisted.
func Acknowledge(items []Item, lineItemIDs []uint) []Item {
	ack := make(map[uint]bool, len(lineItemIDs))
	for _, id := range lineItemIDs {
		ack[id] = true
	}
	out := make([]Item, len(items))
	for i, it := range items {
		if ack[it.LineItemID] && (it.HasInventoryMismatch || it.HasStatusMismatch) {
			it.Acknowledged = true
			it.HasInventoryMismatch = false
			it.HasStatusMismatch = false
		}
		out[i] = it
	}
	return out
}

func Summarize(items []Item) Summary {
	s := Summary{Items: len(items)}
	for _, it := range items {
		if it.HasInventoryMismatch {
			s.InventoryMismatches++
		}
		if it.HasStatusMismatch {
			s.StatusMismatches++
		}
		if it.Acknowledged {
			s.Acknowledged++
		}
	}
	return s
}
