package export

import (
	"strings"
	"testing"

	"orderdesk/internal"
	"orderdesk/internal/util"
)

func TestOrderCSVBasicRow(t *testing.T) {
	order := internal.SalesOrder{
		LineItems: []internal.LineItem{
			{
				RequestItem: "Hex Bolt M8",
				MatchedItem: util.StringPtr("Hex Bolt M8 Zinc"),
				Quantity:    10.0,
				UnitPrice:   1.5,
				Total:       15.0,
			},
		},
	}

	got := OrderCSV(order)
	want := "Request Item,Matched Product,Quantity,Unit Price,Total\n" +
		"Hex Bolt M8,Hex Bolt M8 Zinc,10,1.50,15.00\n"
	if got != want {
		t.Fatalf("got:\n%q\nwant:\n%q", got, want)
	}
}

func TestOrderCSVHeaderOnly(t *testing.T) {
	got := OrderCSV(internal.SalesOrder{})
	if got != "Request Item,Matched Product,Quantity,Unit Price,Total\n" {
		t.Fatalf("got %q", got)
	}
	if strings.HasSuffix(got, "\n\n") {
		t.Fatal("trailing blank line")
	}
}

func TestOrderCSVQuoting(t *testing.T) {
	order := internal.SalesOrder{
		LineItems: []internal.LineItem{
			{RequestItem: `Brass, 1"`},
		},
	}
	got := OrderCSV(order)
	lines := strings.Split(strings.TrimSuffix(got, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines=%v", lines)
	}
	if lines[1] != `"Brass, 1""",,,,` {
		t.Fatalf("row=%q", lines[1])
	}
}

func TestOrderCSVQuantityFallback(t *testing.T) {
	cases := []struct {
		name string
		item internal.LineItem
		want string
	}{
		{name: "canonical quantity", item: internal.LineItem{RequestItem: "A", Quantity: 4.0}, want: "4"},
		{name: "qty alias", item: internal.LineItem{RequestItem: "A", Extra: map[string]any{"Qty": 7.0}}, want: "7"},
		{name: "amount fallback", item: internal.LineItem{RequestItem: "A", Amount: 9.0}, want: "9"},
		{name: "quantity wins over alias", item: internal.LineItem{RequestItem: "A", Quantity: 4.0, Extra: map[string]any{"Qty": 7.0}}, want: "4"},
		{name: "all absent", item: internal.LineItem{RequestItem: "A"}, want: ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := OrderCSV(internal.SalesOrder{LineItems: []internal.LineItem{tc.item}})
			row := strings.Split(got, "\n")[1]
			cols := strings.Split(row, ",")
			if cols[2] != tc.want {
				t.Fatalf("quantity column=%q want %q (row %q)", cols[2], tc.want, row)
			}
		})
	}
}

func TestOrderCSVMoneyFormatting(t *testing.T) {
	order := internal.SalesOrder{
		LineItems: []internal.LineItem{
			{RequestItem: "A", UnitPrice: 2.0, Total: 19.5},
			{RequestItem: "B", UnitPrice: "2,50", Total: nil},
			{RequestItem: "C", UnitPrice: "3.5", Total: 7.0},
		},
	}

	got := strings.Split(strings.TrimSuffix(OrderCSV(order), "\n"), "\n")
	if got[1] != "A,,,2.00,19.50" {
		t.Fatalf("row A=%q", got[1])
	}
	// Malformed numerics fall back to the raw text, never an error.
	if got[2] != `B,,,"2,50",` {
		t.Fatalf("row B=%q", got[2])
	}
	if got[3] != "C,,,3.50,7.00" {
		t.Fatalf("row C=%q", got[3])
	}
}
