package catalog

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"fulfillment-backend/internal/apperror"
	"fulfillment-backend/internal/auth"
	"fulfillment-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// ImportRow is one line of an order sheet. Columns, in order: order number,
// customer name, sku, item name, quantity, requires shipping (optional).
type ImportRow struct {
	Row              int
	OrderNumber      string
	CustomerName     string
	SKU              string
	Name             string
	Quantity         int
	RequiresShipping bool
}

type ImportResult struct {
	Created         []string `json:"created"`
	SkippedExisting []string `json:"skipped_existing"`
	UnmatchedSKUs   []string `json:"unmatched_skus"`
	Problems        []string `json:"problems"`
}

// ParseOrderSheet reads the first sheet of an xlsx workbook. A first row whose
// first cell mentions "order" is taken as a header. Bad rows are reported in
// problems and left out.
func ParseOrderSheet(r io.Reader) ([]ImportRow, []string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}

	start := 0
	if len(rows) > 0 && len(rows[0]) > 0 && strings.Contains(strings.ToLower(rows[0][0]), "order") {
		start = 1
	}

	var out []ImportRow
	var problems []string
	for i := start; i < len(rows); i++ {
		cells := rows[i]
		cell := func(n int) string {
			if n < len(cells) {
				return strings.TrimSpace(cells[n])
			}
			return ""
		}
		if cell(0) == "" {
			continue
		}

		row := ImportRow{
			Row:              i + 1,
			OrderNumber:      cell(0),
			CustomerName:     cell(1),
			SKU:              cell(2),
			Name:             cell(3),
			RequiresShipping: true,
		}
		if row.Name == "" {
			problems = append(problems, fmt.Sprintf("row %d: item name is empty", row.Row))
			continue
		}
		qty, err := strconv.Atoi(cell(4))
		if err != nil || qty < 0 {
			problems = append(problems, fmt.Sprintf("row %d: invalid quantity %q", row.Row, cell(4)))
			continue
		}
		row.Quantity = qty
		switch strings.ToLower(cell(5)) {
		case "no", "false", "0", "n":
			row.RequiresShipping = false
		}
		out = append(out, row)
	}
	return out, problems, nil
}

// POST /api/orders/import  (multipart, field "file")
// Existing order numbers are left alone. Rows whose sku matches no variant
// still become line items, without a variant, so they surface as malformed.
func ImportOrdersHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.ActorFrom(c)
		if err != nil {
			return err
		}
		fileHeader, err := c.FormFile("file")
		if err != nil {
			return apperror.BadRequest("file is required")
		}
		if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".xlsx") {
			return apperror.BadRequest("only .xlsx files can be imported")
		}
		file, err := fileHeader.Open()
		if err != nil {
			return apperror.Internal("could not open upload", err)
		}
		defer file.Close()

		rows, problems, err := ParseOrderSheet(file)
		if err != nil {
			return apperror.BadRequest(err.Error())
		}

		var result ImportResult
		err = db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
			r, err := importOrders(tx, rows, actor)
			result = r
			return err
		})
		if err != nil {
			return saveError("order", err)
		}
		result.Problems = append(problems, result.Problems...)
		return c.JSON(result)
	}
}

func importOrders(tx *gorm.DB, rows []ImportRow, actor auth.Actor) (ImportResult, error) {
	res := ImportResult{Created: []string{}, SkippedExisting: []string{}, UnmatchedSKUs: []string{}, Problems: []string{}}

	var numbers []string
	grouped := map[string][]ImportRow{}
	for _, r := range rows {
		if _, ok := grouped[r.OrderNumber]; !ok {
			numbers = append(numbers, r.OrderNumber)
		}
		grouped[r.OrderNumber] = append(grouped[r.OrderNumber], r)
	}
	if len(numbers) == 0 {
		return res, nil
	}

	var existing []string
	if err := tx.Model(&models.Order{}).Where("order_number IN ?", numbers).Pluck("order_number", &existing).Error; err != nil {
		return res, err
	}
	skip := map[string]bool{}
	for _, n := range existing {
		skip[n] = true
	}

	variants, err := variantsBySKU(tx, rows)
	if err != nil {
		return res, err
	}
	unmatched := map[string]bool{}

	for _, number := range numbers {
		if skip[number] {
			res.SkippedExisting = append(res.SkippedExisting, number)
			continue
		}
		group := grouped[number]
		order := models.Order{OrderNumber: number, CustomerName: group[0].CustomerName}
		for _, r := range group {
			li := newLineItem(LineItemRequest{Name: r.Name, Quantity: r.Quantity, RequiresShipping: &r.RequiresShipping})
			if r.SKU != "" {
				if id, ok := variants[strings.ToLower(r.SKU)]; ok {
					li.ProductVariantID = &id
				} else if !unmatched[r.SKU] {
					unmatched[r.SKU] = true
					res.UnmatchedSKUs = append(res.UnmatchedSKUs, r.SKU)
				}
			}
			order.LineItems = append(order.LineItems, li)
		}
		if err := tx.Create(&order).Error; err != nil {
			return res, err
		}
		if err := writeLog(tx, actor, "order", order.ID, models.AuditActionCreate,
			fmt.Sprintf("order %s imported with %d line items", order.OrderNumber, len(order.LineItems)), nil, order); err != nil {
			return res, err
		}
		res.Created = append(res.Created, number)
	}
	return res, nil
}

// variantsBySKU maps lowercased sku to variant id for every sku in rows.
func variantsBySKU(tx *gorm.DB, rows []ImportRow) (map[string]uint, error) {
	var skus []string
	for _, r := range rows {
		if r.SKU != "" {
			skus = append(skus, r.SKU)
		}
	}
	out := map[string]uint{}
	if len(skus) == 0 {
		return out, nil
	}
	var variants []models.ProductVariant
	if err := tx.Where("sku IN ?", skus).Find(&variants).Error; err != nil {
		return nil, err
	}
	for _, v := range variants {
		out[strings.ToLower(v.SKU)] = v.ID
	}
	return out, nil
}
