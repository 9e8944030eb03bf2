package internal

import (
	"encoding/json"
	"time"
)

// Canonical line-item keys. Extraction sources use wildly different field
// names; normalize reduces every row to this closed set.
const (
	KeyRequestItem = "Request Item"
	KeyQuantity    = "Quantity"
	KeyAmount      = "Amount"
	KeyUnitPrice   = "Unit Price"
	KeyTotal       = "Total"
	KeyMatchedItem = "matched_item"
	KeyMatchScore  = "match_score"
	KeyAlternates  = "alternate_matches"
)

type AltMatch struct {
	Match string  `json:"match"`
	Score float64 `json:"score"`
}

// LineItem is one requested product row of a sales order. The scalar fields
// hold whatever the source document carried; numeric coercion happens at the
// point of use so a malformed value degrades to its raw form instead of
// being dropped. Extra carries source keys outside the canonical set.
type LineItem struct {
	RequestItem      string
	Quantity         any
	Amount           any
	UnitPrice        any
	Total            any
	MatchedItem      *string
	MatchScore       *float64
	AlternateMatches []AltMatch
	Extra            map[string]any
}

// MarshalJSON keeps the persisted representation compatible with the legacy
// store: canonical keys by their display names, matched_item/match_score
// always present (explicit null when absent), extras flattened alongside.
func (li LineItem) MarshalJSON() ([]byte, error) {
	doc := map[string]any{
		KeyRequestItem: li.RequestItem,
		KeyMatchedItem: li.MatchedItem,
		KeyMatchScore:  li.MatchScore,
	}
	if li.Quantity != nil {
		doc[KeyQuantity] = li.Quantity
	}
	if li.Amount != nil {
		doc[KeyAmount] = li.Amount
	}
	if li.UnitPrice != nil {
		doc[KeyUnitPrice] = li.UnitPrice
	}
	if li.Total != nil {
		doc[KeyTotal] = li.Total
	}
	alternates := li.AlternateMatches
	if alternates == nil {
		alternates = []AltMatch{}
	}
	doc[KeyAlternates] = alternates

	for key, value := range li.Extra {
		if _, taken := doc[key]; taken {
			continue
		}
		doc[key] = value
	}
	return json.Marshal(doc)
}

func (li *LineItem) UnmarshalJSON(data []byte) error {
	raw := map[string]any{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*li = LineItemFromRecord(raw)
	return nil
}

// LineItemFromRecord builds the canonical line item from a normalized raw
// record. Keys outside the canonical set are kept in Extra.
func LineItemFromRecord(record map[string]any) LineItem {
	li := LineItem{}
	if v, ok := record[KeyRequestItem].(string); ok {
		li.RequestItem = v
	}
	li.Quantity = record[KeyQuantity]
	li.Amount = record[KeyAmount]
	li.UnitPrice = record[KeyUnitPrice]
	li.Total = record[KeyTotal]

	if v, ok := record[KeyMatchedItem].(string); ok {
		li.MatchedItem = &v
	}
	switch v := record[KeyMatchScore].(type) {
	case float64:
		li.MatchScore = &v
	case int:
		f := float64(v)
		li.MatchScore = &f
	case json.Number:
		if f, err := v.Float64(); err == nil {
			li.MatchScore = &f
		}
	}
	li.AlternateMatches = ToAltMatches(record[KeyAlternates])

	for key, value := range record {
		switch key {
		case KeyRequestItem, KeyQuantity, KeyAmount, KeyUnitPrice, KeyTotal,
			KeyMatchedItem, KeyMatchScore, KeyAlternates:
			continue
		}
		if li.Extra == nil {
			li.Extra = map[string]any{}
		}
		li.Extra[key] = value
	}
	return li
}

func ToAltMatches(v any) []AltMatch {
	switch t := v.(type) {
	case []AltMatch:
		return t
	case []any:
		out := make([]AltMatch, 0, len(t))
		for _, entry := range t {
			m, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			alt := AltMatch{}
			if s, ok := m["match"].(string); ok {
				alt.Match = s
			}
			switch score := m["score"].(type) {
			case float64:
				alt.Score = score
			case json.Number:
				alt.Score, _ = score.Float64()
			}
			out = append(out, alt)
		}
		return out
	default:
		return nil
	}
}

func (li LineItem) Clone() LineItem {
	out := li
	if li.MatchedItem != nil {
		v := *li.MatchedItem
		out.MatchedItem = &v
	}
	if li.MatchScore != nil {
		v := *li.MatchScore
		out.MatchScore = &v
	}
	if li.AlternateMatches != nil {
		out.AlternateMatches = append([]AltMatch(nil), li.AlternateMatches...)
	}
	if li.Extra != nil {
		out.Extra = make(map[string]any, len(li.Extra))
		for k, v := range li.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// SalesOrder is one processed document. Timestamps serialize as RFC 3339.
type SalesOrder struct {
	ID           string     `json:"_id"`
	OrderNumber  *string    `json:"order_number,omitempty"`
	CustomerName *string    `json:"customer_name,omitempty"`
	OrderDate    *string    `json:"order_date,omitempty"`
	FileName     string     `json:"file_name"`
	LineItems    []LineItem `json:"line_items"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	Status       string     `json:"status"`
}

func (o SalesOrder) Clone() SalesOrder {
	out := o
	if o.OrderNumber != nil {
		v := *o.OrderNumber
		out.OrderNumber = &v
	}
	if o.CustomerName != nil {
		v := *o.CustomerName
		out.CustomerName = &v
	}
	if o.OrderDate != nil {
		v := *o.OrderDate
		out.OrderDate = &v
	}
	out.LineItems = CloneLineItems(o.LineItems)
	return out
}

func CloneLineItems(items []LineItem) []LineItem {
	if items == nil {
		return nil
	}
	out := make([]LineItem, len(items))
	for i, li := range items {
		out[i] = li.Clone()
	}
	return out
}

// OrderPatch describes an order-level partial update. Nil fields are left
// untouched; a non-nil LineItems replaces the whole sequence.
type OrderPatch struct {
	FileName     *string
	OrderNumber  *string
	CustomerName *string
	OrderDate    *string
	Status       *string
	LineItems    []LineItem
}

func (o *SalesOrder) ApplyPatch(p OrderPatch) {
	if p.FileName != nil {
		o.FileName = *p.FileName
	}
	if p.OrderNumber != nil {
		o.OrderNumber = p.OrderNumber
	}
	if p.CustomerName != nil {
		o.CustomerName = p.CustomerName
	}
	if p.OrderDate != nil {
		o.OrderDate = p.OrderDate
	}
	if p.Status != nil {
		o.Status = *p.Status
	}
	if p.LineItems != nil {
		o.LineItems = CloneLineItems(p.LineItems)
	}
}

// LineItemPatch describes a single-line-item partial update. ClearMatch
// resets matched_item, match_score and alternate_matches together so the
// three can never drift apart through a patch.
type LineItemPatch struct {
	RequestItem      *string
	Quantity         any
	Amount           any
	UnitPrice        any
	Total            any
	MatchedItem      *string
	MatchScore       *float64
	AlternateMatches []AltMatch
	ClearMatch       bool
}

func (li *LineItem) ApplyPatch(p LineItemPatch) {
	if p.RequestItem != nil {
		li.RequestItem = *p.RequestItem
	}
	if p.Quantity != nil {
		li.Quantity = p.Quantity
	}
	if p.Amount != nil {
		li.Amount = p.Amount
	}
	if p.UnitPrice != nil {
		li.UnitPrice = p.UnitPrice
	}
	if p.Total != nil {
		li.Total = p.Total
	}
	if p.ClearMatch {
		li.MatchedItem = nil
		li.MatchScore = nil
		li.AlternateMatches = []AltMatch{}
		return
	}
	if p.MatchedItem != nil {
		li.MatchedItem = p.MatchedItem
	}
	if p.MatchScore != nil {
		li.MatchScore = p.MatchScore
	}
	if p.AlternateMatches != nil {
		li.AlternateMatches = append([]AltMatch(nil), p.AlternateMatches...)
	}
}
