package export

import (
	"fmt"
	"strings"

	"orderdesk/internal"
	"orderdesk/internal/util"
)

const csvHeader = "Request Item,Matched Product,Quantity,Unit Price,Total"

// OrderCSV renders one order as CSV text, one data row per line item in
// order. The format is pinned to the legacy export: money columns get two
// decimals when the value coerces, its raw form otherwise; text columns are
// quoted only when they contain a comma or a double quote; absent values
// render empty. Rows end in \n with no trailing blank line.
func OrderCSV(order internal.SalesOrder) string {
	var b strings.Builder
	b.WriteString(csvHeader)
	b.WriteByte('\n')

	for _, item := range order.LineItems {
		matched := ""
		if item.MatchedItem != nil {
			matched = *item.MatchedItem
		}

		b.WriteString(escapeField(item.RequestItem))
		b.WriteByte(',')
		b.WriteString(escapeField(matched))
		b.WriteByte(',')
		b.WriteString(escapeField(util.FormatScalar(quantityValue(item))))
		b.WriteByte(',')
		b.WriteString(escapeField(formatMoney(item.UnitPrice)))
		b.WriteByte(',')
		b.WriteString(escapeField(formatMoney(item.Total)))
		b.WriteByte('\n')
	}
	return b.String()
}

// quantityValue resolves the quantity column: the canonical field first,
// then the legacy Qty alias some stored orders still carry, then Amount.
func quantityValue(item internal.LineItem) any {
	if item.Quantity != nil {
		return item.Quantity
	}
	if qty, ok := item.Extra["Qty"]; ok && qty != nil {
		return qty
	}
	return item.Amount
}

func formatMoney(v any) string {
	if v == nil {
		return ""
	}
	if f, ok := util.ToFloat(v); ok {
		return fmt.Sprintf("%.2f", f)
	}
	return util.FormatScalar(v)
}

func escapeField(value string) string {
	if !strings.ContainsAny(value, ",\"") {
		return value
	}
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}
