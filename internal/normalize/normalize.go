package normalize

import (
	"orderdesk/internal"
	"orderdesk/internal/util"
)

// Record is one loosely-typed key/value row as returned by the extraction
// service. Raw records are the only place open-ended maps are allowed;
// everything downstream works on the canonical internal.LineItem shape.
type Record = map[string]any

var (
	descriptionKeys = []string{internal.KeyRequestItem, "Item Description", "Description"}
	quantityKeys    = []string{internal.KeyQuantity, "Qty"}
	unitPriceKeys   = []string{internal.KeyUnitPrice, "Price", "Unit Cost"}
)

// Records reconciles field naming across extraction sources and derives
// missing numeric fields. One output record per input record, same order,
// never fails: data-quality problems degrade to absent fields.
func Records(raw []Record) []Record {
	out := make([]Record, 0, len(raw))
	for _, item := range raw {
		out = append(out, normalizeRecord(item))
	}
	return out
}

func normalizeRecord(item Record) Record {
	out := Record{}

	for _, key := range descriptionKeys {
		if v, ok := item[key]; ok {
			out[internal.KeyRequestItem] = v
			break
		}
	}
	for _, key := range quantityKeys {
		if v, ok := item[key]; ok {
			out[internal.KeyQuantity] = v
			break
		}
	}
	for _, key := range unitPriceKeys {
		if v, ok := item[key]; ok {
			out[internal.KeyUnitPrice] = v
			break
		}
	}

	if v, ok := item[internal.KeyTotal]; ok {
		out[internal.KeyTotal] = v
	} else if amountRaw, ok := item[internal.KeyAmount]; ok {
		// The Amount column is overloaded: some sources mean "line total",
		// others mean "quantity". Treat it as a total only when it exceeds
		// the quantity; kept bug-compatible with the legacy mapper even
		// though a genuine total <= quantity is misclassified.
		amount, amountOK := util.ToFloat(amountRaw)
		qty, qtyOK := util.ToFloat(out[internal.KeyQuantity])
		if amountOK && qtyOK && amount > qty {
			out[internal.KeyTotal] = amountRaw
		}
	}

	deriveMissing(out)

	// matched_item / match_score are always present so callers can rely on
	// the keys existing, even before any matching has run.
	out[internal.KeyMatchedItem] = item[internal.KeyMatchedItem]
	out[internal.KeyMatchScore] = item[internal.KeyMatchScore]

	for key, value := range item {
		if _, assigned := out[key]; assigned {
			continue
		}
		out[key] = value
	}

	return out
}

// deriveMissing computes at most one of Total / Unit Price per pass.
// Non-numeric operands and zero quantities leave the field absent.
func deriveMissing(out Record) {
	qty, qtyOK := util.ToFloat(out[internal.KeyQuantity])
	if !qtyOK {
		return
	}

	_, hasTotal := out[internal.KeyTotal]
	_, hasPrice := out[internal.KeyUnitPrice]

	if !hasTotal && hasPrice {
		if price, ok := util.ToFloat(out[internal.KeyUnitPrice]); ok {
			out[internal.KeyTotal] = qty * price
		}
		return
	}
	if !hasPrice && hasTotal && qty > 0 {
		if total, ok := util.ToFloat(out[internal.KeyTotal]); ok {
			out[internal.KeyUnitPrice] = total / qty
		}
	}
}

// ToLineItems converts normalized records into canonical line items,
// skipping records that never resolved a description.
func ToLineItems(records []Record) []internal.LineItem {
	out := make([]internal.LineItem, 0, len(records))
	for _, record := range records {
		desc, ok := record[internal.KeyRequestItem].(string)
		if !ok || desc == "" {
			continue
		}
		out = append(out, internal.LineItemFromRecord(record))
	}
	return out
}
