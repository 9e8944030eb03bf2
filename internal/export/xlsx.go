package export

import (
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"orderdesk/internal"
	"orderdesk/internal/util"
)

// OrderXLSX writes one order as a spreadsheet, one row per line item, with
// the runner-up match alongside the primary for review workflows.
func OrderXLSX(order internal.SalesOrder, outputPath string) error {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	headers := []string{
		"request_item", "matched_product", "match_score",
		"quantity", "unit_price", "total",
		"alternate_match", "alternate_score", "status",
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, item := range order.LineItems {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}

		set(1, item.RequestItem)
		set(2, derefString(item.MatchedItem))
		set(3, derefFloat(item.MatchScore))
		set(4, util.FormatScalar(item.Quantity))
		set(5, util.FormatScalar(item.UnitPrice))
		set(6, util.FormatScalar(item.Total))
		if len(item.AlternateMatches) > 0 {
			set(7, item.AlternateMatches[0].Match)
			set(8, item.AlternateMatches[0].Score)
		}
		set(9, order.Status)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func derefFloat(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}
