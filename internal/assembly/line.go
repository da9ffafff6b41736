// Package assembly builds the print floor order of a batch's line items.
package assembly

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"fulfillment-backend/internal/apperror"
	"fulfillment-backend/internal/fulfillment"
	"fulfillment-backend/internal/models"
)

var ErrNotOnAssemblyLine = errors.New("line item is not on the batch's assembly line")

func init() {
	apperror.Register(ErrNotOnAssemblyLine, apperror.CodeNotFound, http.StatusNotFound)
}

type PrintView struct {
	ID               uint    `json:"id"`
	Location         string  `json:"location"`
	HeatTransferCode *string `json:"heat_transfer_code"`
	FilePath         string  `json:"file_path"`
	Active           bool    `json:"active"`
}

type BlankView struct {
	BlankVariantID uint   `json:"blank_variant_id"`
	Company        string `json:"company"`
	GarmentType    string `json:"garment_type"`
	Color          string `json:"color"`
	Size           string `json:"size"`
}

type Item struct {
	Position         int                   `json:"item_position"`
	LineItemID       uint                  `json:"line_item_id"`
	OrderID          uint                  `json:"order_id"`
	OrderNumber      string                `json:"order_number"`
	Name             string                `json:"name"`
	Quantity         int                   `json:"quantity"`
	Status           models.LineItemStatus `json:"status"`
	Fulfilled        bool                  `json:"fulfilled"`
	MarkedAsPackaged bool                  `json:"marked_as_packaged"`
	ProductName      string                `json:"product_name"`
	VariantTitle     string                `json:"variant_title"`
	IsBlackLabel     bool                  `json:"is_black_label"`
	IsPremade        bool                  `json:"is_premade"`
	Blank            *BlankView            `json:"blank"`
	Prints           []PrintView           `json:"prints"`
	Warnings         []string              `json:"warnings"`
}

// Nav is where one item sits on the line and what comes either side.
type Nav struct {
	Position       int   `json:"position"`
	PrevLineItemID *uint `json:"prev_line_item_id"`
	NextLineItemID *uint `json:"next_line_item_id"`
	Total          int   `json:"total"`
}

// Build orders items still awaiting storefront fulfillment first, then by
// name, with the line item id breaking ties. Items that do not ship or are
// ignored never reach the floor. printLogs maps line item -> print -> active
// for the latest log of each print.
func Build(items []models.LineItem, printLogs map[uint]map[uint]bool) []Item {
	line := make([]Item, 0, len(items))
	for i := range items {
		li := &items[i]
		if !li.RequiresShipping || li.Status == models.StatusIgnore {
			continue
		}
		line = append(line, toItem(li, printLogs[li.ID]))
	}

	sort.SliceStable(line, func(i, j int) bool {
		a, b := line[i], line[j]
		if a.Fulfilled != b.Fulfilled {
			return !a.Fulfilled
		}
		if na, nb := strings.ToLower(a.Name), strings.ToLower(b.Name); na != nb {
			return na < nb
		}
		return a.LineItemID < b.LineItemID
	})

	for i := range line {
		line[i].Position = i
	}
	return line
}

// Position locates lineItemID on a built line. Navigation is derived per
// request rather than held anywhere.
func Position(line []Item, lineItemID uint) (Nav, error) {
	for i, it := range line {
		if it.LineItemID != lineItemID {
			continue
		}
		nav := Nav{Position: it.Position, Total: len(line)}
		if i > 0 {
			prev := line[i-1].LineItemID
			nav.PrevLineItemID = &prev
		}
		if i < len(line)-1 {
			next := line[i+1].LineItemID
			nav.NextLineItemID = &next
		}
		return nav, nil
	}
	return Nav{}, fmt.Errorf("%w: %d", ErrNotOnAssemblyLine, lineItemID)
}

func toItem(li *models.LineItem, active map[uint]bool) Item {
	it := Item{
		LineItemID:       li.ID,
		OrderID:          li.OrderID,
		Name:             li.Name,
		Quantity:         li.Quantity,
		Status:           li.Status,
		Fulfilled:        li.UnfulfilledQuantity <= 0,
		MarkedAsPackaged: li.MarkedAsPackaged,
		Prints:           []PrintView{},
		Warnings:         fulfillment.Warnings(li),
	}
	if li.Order != nil {
		it.OrderNumber = li.Order.OrderNumber
	}

	pv := li.ProductVariant
	if pv == nil {
		return it
	}
	it.VariantTitle = pv.Title
	it.IsPremade = pv.IsPremade
	if pv.Product != nil {
		it.ProductName = pv.Product.Name
		it.IsBlackLabel = pv.Product.IsBlackLabel
		for _, p := range pv.Product.Prints {
			it.Prints = append(it.Prints, PrintView{
				ID:               p.ID,
				Location:         p.Location,
				HeatTransferCode: p.HeatTransferCode,
				FilePath:         p.FilePath,
				Active:           active[p.ID],
			})
		}
	}
	if bv := pv.BlankVariant; bv != nil {
		view := &BlankView{BlankVariantID: bv.ID, Color: bv.Color, Size: bv.Size}
		if bv.Blank != nil {
			view.Company = bv.Blank.Company
			view.GarmentType = bv.Blank.GarmentType
		}
		it.Blank = view
	}
	return it
}
