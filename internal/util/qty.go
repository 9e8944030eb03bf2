package util

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	unitPattern   = regexp.MustCompile(`(?i)\b(pcs|pc|ea|each|units?|box(?:es)?|packs?|m|ft|kg|lbs?)\b`)
	numberPattern = regexp.MustCompile(`(?:^|[^0-9.,])(\d{1,3}(?:,\d{3})+|\d+(?:\.\d+)?)`)
	withUnit      = regexp.MustCompile(`(?i)(?:^|[^0-9.,])(\d{1,3}(?:,\d{3})+|\d+(?:\.\d+)?)\s*(pcs|pc|ea|each|units?|box(?:es)?|packs?|m|ft|kg|lbs?)\b`)
)

type ParsedQty struct {
	Qty    *float64
	Unit   *string
	QtyRaw *string
}

// ParseQty pulls a trailing quantity token out of a free-text line. A number
// next to a unit wins; otherwise the last bare number on the line is taken.
func ParseQty(input string) ParsedQty {
	line := strings.ReplaceAll(input, " ", " ")

	qtyRaw := ""
	qtyToken := ""

	if wm := withUnit.FindAllStringSubmatch(line, -1); len(wm) > 0 {
		last := wm[len(wm)-1]
		qtyRaw = strings.TrimSpace(last[1] + " " + last[2])
		qtyToken = strings.TrimSpace(last[1])
	} else if nm := numberPattern.FindAllStringSubmatch(line, -1); len(nm) > 0 {
		last := nm[len(nm)-1]
		qtyRaw = strings.TrimSpace(last[1])
		qtyToken = qtyRaw
	}

	var qtyPtr *float64
	if qtyToken != "" {
		compact := strings.ReplaceAll(qtyToken, ",", "")
		if parsed, err := strconv.ParseFloat(compact, 64); err == nil {
			qtyPtr = FloatPtr(parsed)
		}
	}

	var unitPtr *string
	if um := unitPattern.FindStringSubmatch(line); len(um) > 1 {
		u := normalizeUnit(um[1])
		unitPtr = &u
	}

	var qtyRawPtr *string
	if qtyRaw != "" {
		qtyRawPtr = &qtyRaw
	}

	return ParsedQty{Qty: qtyPtr, Unit: unitPtr, QtyRaw: qtyRawPtr}
}

func normalizeUnit(unit string) string {
	u := strings.ToLower(strings.TrimSpace(unit))
	switch u {
	case "pc", "pcs", "ea", "each", "unit", "units":
		return "pcs"
	case "box", "boxes":
		return "box"
	case "pack", "packs":
		return "pack"
	case "lb", "lbs":
		return "lb"
	default:
		return u
	}
}
