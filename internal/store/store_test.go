package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"orderdesk/internal"
	"orderdesk/internal/util"
)

// withBackends runs the same contract test against both store
// implementations.
func withBackends(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Helper()

	t.Run("json", func(t *testing.T) {
		s, err := OpenJSON(t.TempDir())
		if err != nil {
			t.Fatal(err)
		}
		defer s.Close()
		fn(t, s)
	})

	t.Run("sqlite", func(t *testing.T) {
		s, err := OpenSQLite(filepath.Join(t.TempDir(), "orders.db"))
		if err != nil {
			t.Fatal(err)
		}
		defer s.Close()
		fn(t, s)
	})
}

func sampleItems() []internal.LineItem {
	return []internal.LineItem{
		{RequestItem: "Hex Bolt M8", Quantity: 10.0, UnitPrice: 1.5, Total: 15.0},
		{RequestItem: "Washer", Quantity: 100.0},
	}
}

func TestCreateAndGet(t *testing.T) {
	withBackends(t, func(t *testing.T, s Store) {
		created, err := s.Create("order.pdf", sampleItems())
		if err != nil {
			t.Fatal(err)
		}
		if created.ID == "" {
			t.Fatal("empty id")
		}
		if created.Status != "pending" {
			t.Fatalf("status=%q", created.Status)
		}
		if !created.CreatedAt.Equal(created.UpdatedAt) {
			t.Fatalf("created_at %v != updated_at %v", created.CreatedAt, created.UpdatedAt)
		}

		got, err := s.Get(created.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got == nil {
			t.Fatal("order not found after create")
		}
		if got.FileName != "order.pdf" || len(got.LineItems) != 2 {
			t.Fatalf("got %+v", got)
		}
		if got.LineItems[0].RequestItem != "Hex Bolt M8" {
			t.Fatalf("first item=%+v", got.LineItems[0])
		}
		if qty, ok := util.ToFloat(got.LineItems[0].Quantity); !ok || qty != 10 {
			t.Fatalf("quantity=%v", got.LineItems[0].Quantity)
		}
	})
}

func TestCreateNilItems(t *testing.T) {
	withBackends(t, func(t *testing.T, s Store) {
		created, err := s.Create("empty.pdf", nil)
		if err != nil {
			t.Fatal(err)
		}
		if created.LineItems == nil || len(created.LineItems) != 0 {
			t.Fatalf("line items=%v, want empty slice", created.LineItems)
		}
	})
}

func TestGetMissing(t *testing.T) {
	withBackends(t, func(t *testing.T, s Store) {
		got, err := s.Get("no-such-id")
		if err != nil {
			t.Fatal(err)
		}
		if got != nil {
			t.Fatalf("got %+v, want nil", got)
		}
	})
}

func TestListPreservesInsertionOrder(t *testing.T) {
	withBackends(t, func(t *testing.T, s Store) {
		first, _ := s.Create("a.pdf", nil)
		second, _ := s.Create("b.pdf", nil)

		orders, err := s.List()
		if err != nil {
			t.Fatal(err)
		}
		if len(orders) != 2 {
			t.Fatalf("len=%d", len(orders))
		}
		if orders[0].ID != first.ID || orders[1].ID != second.ID {
			t.Fatalf("order ids %s,%s want %s,%s", orders[0].ID, orders[1].ID, first.ID, second.ID)
		}
	})
}

func TestUpdate(t *testing.T) {
	withBackends(t, func(t *testing.T, s Store) {
		created, _ := s.Create("order.pdf", sampleItems())

		time.Sleep(5 * time.Millisecond)
		updated, err := s.Update(created.ID, internal.OrderPatch{
			Status:       util.StringPtr("reviewed"),
			CustomerName: util.StringPtr("ACME Corp"),
		})
		if err != nil {
			t.Fatal(err)
		}
		if updated.Status != "reviewed" {
			t.Fatalf("status=%q", updated.Status)
		}
		if updated.CustomerName == nil || *updated.CustomerName != "ACME Corp" {
			t.Fatalf("customer=%v", updated.CustomerName)
		}
		if updated.FileName != "order.pdf" {
			t.Fatalf("file name clobbered: %q", updated.FileName)
		}
		if !updated.UpdatedAt.After(created.CreatedAt) {
			t.Fatalf("updated_at %v not after %v", updated.UpdatedAt, created.CreatedAt)
		}

		got, _ := s.Get(created.ID)
		if got.Status != "reviewed" {
			t.Fatalf("persisted status=%q", got.Status)
		}
	})
}

func TestUpdateMissing(t *testing.T) {
	withBackends(t, func(t *testing.T, s Store) {
		_, err := s.Update("no-such-id", internal.OrderPatch{Status: util.StringPtr("x")})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("err=%v", err)
		}
	})
}

func TestUpdateLineItem(t *testing.T) {
	withBackends(t, func(t *testing.T, s Store) {
		created, _ := s.Create("order.pdf", sampleItems())

		updated, err := s.UpdateLineItem(created.ID, 1, internal.LineItemPatch{
			MatchedItem: util.StringPtr("Flat Washer M8"),
			MatchScore:  util.FloatPtr(92),
		})
		if err != nil {
			t.Fatal(err)
		}
		item := updated.LineItems[1]
		if item.MatchedItem == nil || *item.MatchedItem != "Flat Washer M8" {
			t.Fatalf("matched=%v", item.MatchedItem)
		}
		if item.MatchScore == nil || *item.MatchScore != 92 {
			t.Fatalf("score=%v", item.MatchScore)
		}
		if updated.LineItems[0].MatchedItem != nil {
			t.Fatal("sibling line item touched")
		}
	})
}

func TestUpdateLineItemClearMatch(t *testing.T) {
	withBackends(t, func(t *testing.T, s Store) {
		items := sampleItems()
		items[0].MatchedItem = util.StringPtr("Hex Bolt M8 Zinc")
		items[0].MatchScore = util.FloatPtr(88)
		items[0].AlternateMatches = []internal.AltMatch{{Match: "Carriage Bolt", Score: 60}}
		created, _ := s.Create("order.pdf", items)

		updated, err := s.UpdateLineItem(created.ID, 0, internal.LineItemPatch{ClearMatch: true})
		if err != nil {
			t.Fatal(err)
		}
		item := updated.LineItems[0]
		if item.MatchedItem != nil || item.MatchScore != nil || len(item.AlternateMatches) != 0 {
			t.Fatalf("match fields not cleared: %+v", item)
		}
	})
}

func TestUpdateLineItemInvalidIndex(t *testing.T) {
	withBackends(t, func(t *testing.T, s Store) {
		created, _ := s.Create("order.pdf", sampleItems())

		for _, index := range []int{-1, len(created.LineItems)} {
			_, err := s.UpdateLineItem(created.ID, index, internal.LineItemPatch{
				RequestItem: util.StringPtr("changed"),
			})
			if !errors.Is(err, ErrInvalidIndex) {
				t.Fatalf("index %d: err=%v", index, err)
			}
		}

		// The failed update must leave the order untouched.
		got, _ := s.Get(created.ID)
		if !got.UpdatedAt.Equal(created.UpdatedAt) {
			t.Fatal("updated_at advanced by a rejected update")
		}
		for i, item := range got.LineItems {
			if item.RequestItem == "changed" {
				t.Fatalf("line item %d mutated", i)
			}
		}
	})
}

func TestUpdateLineItemMissingOrder(t *testing.T) {
	withBackends(t, func(t *testing.T, s Store) {
		_, err := s.UpdateLineItem("no-such-id", 0, internal.LineItemPatch{})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("err=%v", err)
		}
	})
}

func TestDelete(t *testing.T) {
	withBackends(t, func(t *testing.T, s Store) {
		created, _ := s.Create("order.pdf", nil)

		removed, err := s.Delete(created.ID)
		if err != nil {
			t.Fatal(err)
		}
		if !removed {
			t.Fatal("removed=false for existing order")
		}

		got, _ := s.Get(created.ID)
		if got != nil {
			t.Fatal("order still present after delete")
		}

		removed, err = s.Delete(created.ID)
		if err != nil {
			t.Fatal(err)
		}
		if removed {
			t.Fatal("removed=true for missing order")
		}
	})
}

func TestReturnedOrdersAreDetached(t *testing.T) {
	withBackends(t, func(t *testing.T, s Store) {
		created, _ := s.Create("order.pdf", sampleItems())

		got, _ := s.Get(created.ID)
		got.LineItems[0].RequestItem = "tampered"
		got.Status = "tampered"

		fresh, _ := s.Get(created.ID)
		if fresh.LineItems[0].RequestItem == "tampered" || fresh.Status == "tampered" {
			t.Fatal("mutating a returned order changed stored state")
		}
	})
}
