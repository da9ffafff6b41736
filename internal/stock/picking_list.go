package stock

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const (
	blankSheet   = "Blanks"
	premadeSheet = "Premade"
)

// WritePickingList renders both picking lists as an xlsx workbook, one sheet
// each, in picking order.
func WritePickingList(w io.Writer, req *Requirements) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(f.GetActiveSheetIndex()), blankSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(premadeSheet); err != nil {
		return fmt.Errorf("add sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	blankHeader := []interface{}{"Color", "Garment", "Company", "Size", "Required", "On hand", "To pick", "Shortage"}
	blankRows := make([][]interface{}, 0, len(req.Blanks))
	for _, b := range req.Blanks {
		blankRows = append(blankRows, []interface{}{
			b.Color, b.GarmentType, b.Company, b.Size,
			b.RequiredQuantity, b.OnHand, b.ToPick, yesNo(b.Shortage),
		})
	}
	if err := writeSheet(f, blankSheet, bold, blankHeader, blankRows); err != nil {
		return err
	}

	premadeHeader := []interface{}{"Product", "Variant", "Black label", "Required", "On hand", "To pick", "Shortage"}
	premadeRows := make([][]interface{}, 0, len(req.Premade))
	for _, p := range req.Premade {
		var onHand interface{} = "n/a"
		if p.OnHand != nil {
			onHand = *p.OnHand
		}
		premadeRows = append(premadeRows, []interface{}{
			p.ProductName, p.VariantTitle, yesNo(p.IsBlackLabel),
			p.RequiredQuantity, onHand, p.ToPick, yesNo(p.Shortage),
		})
	}
	if err := writeSheet(f, premadeSheet, bold, premadeHeader, premadeRows); err != nil {
		return err
	}

	return f.Write(w)
}

func writeSheet(f *excelize.File, sheet string, headerStyle int, header []interface{}, rows [][]interface{}) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("%s header: %w", sheet, err)
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("%s header style: %w", sheet, err)
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := r
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("%s row %d: %w", sheet, i+2, err)
		}
	}
	return nil
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
