package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"orderdesk/internal"
	"orderdesk/internal/config"
	"orderdesk/internal/matchsvc"
	"orderdesk/internal/metrics"
	"orderdesk/internal/normalize"
	"orderdesk/internal/pipeline"
	"orderdesk/internal/store"
)

type stubExtractor struct {
	records []normalize.Record
	err     error
}

func (s *stubExtractor) Extract(ctx context.Context, fileName string, content []byte) ([]normalize.Record, error) {
	return s.records, s.err
}

type stubMatcher struct {
	batch  map[string][]matchsvc.Candidate
	single []matchsvc.Candidate
	err    error
}

func (s *stubMatcher) MatchBatch(ctx context.Context, queries []string, limit int) (map[string][]matchsvc.Candidate, error) {
	return s.batch, s.err
}

func (s *stubMatcher) MatchSingle(ctx context.Context, query string, limit int) ([]matchsvc.Candidate, error) {
	return s.single, s.err
}

func newTestHandler(t *testing.T, matcher pipeline.Matcher) (http.Handler, store.Store) {
	t.Helper()
	st, err := store.OpenJSON(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = st.Close() })
	svc := pipeline.NewService(config.Config{MatchLimit: 5}, st, &stubExtractor{}, matcher, nil)
	return New(svc, metrics.NewRegistry()).Handler(), st
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	doc := map[string]any{}
	_ = json.Unmarshal(rec.Body.Bytes(), &doc)
	return rec, doc
}

func createOrder(t *testing.T, st store.Store, items ...internal.LineItem) internal.SalesOrder {
	t.Helper()
	order, err := st.Create("order.pdf", items)
	if err != nil {
		t.Fatal(err)
	}
	return order
}

func TestGetOrder(t *testing.T) {
	h, st := newTestHandler(t, &stubMatcher{})
	order := createOrder(t, st, internal.LineItem{RequestItem: "Bolt"})

	rec, doc := doJSON(t, h, http.MethodGet, "/sales-orders/"+order.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
	}
	if doc["_id"] != order.ID {
		t.Fatalf("body=%v", doc)
	}
}

func TestGetOrderNotFound(t *testing.T) {
	h, _ := newTestHandler(t, &stubMatcher{})

	rec, doc := doJSON(t, h, http.MethodGet, "/sales-orders/no-such-id", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d", rec.Code)
	}
	if doc["detail"] == "" {
		t.Fatalf("body=%v", doc)
	}
}

func TestUpdateLineItemErrors(t *testing.T) {
	h, st := newTestHandler(t, &stubMatcher{})
	order := createOrder(t, st, internal.LineItem{RequestItem: "Bolt"})

	rec, _ := doJSON(t, h, http.MethodPatch, "/sales-orders/"+order.ID+"/line-items/5", `{"Quantity": 2}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("out-of-range index: status=%d", rec.Code)
	}

	rec, _ = doJSON(t, h, http.MethodPatch, "/sales-orders/no-such-id/line-items/0", `{"Quantity": 2}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing order: status=%d", rec.Code)
	}
}

func TestUpdateLineItemNullMatchedItemClearsMatch(t *testing.T) {
	h, st := newTestHandler(t, &stubMatcher{})
	matched := "Hex Bolt"
	score := 90.0
	order := createOrder(t, st, internal.LineItem{
		RequestItem:      "Bolt",
		MatchedItem:      &matched,
		MatchScore:       &score,
		AlternateMatches: []internal.AltMatch{{Match: "X", Score: 1}},
	})

	rec, _ := doJSON(t, h, http.MethodPatch, "/sales-orders/"+order.ID+"/line-items/0", `{"matched_item": null}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
	}

	stored, _ := st.Get(order.ID)
	item := stored.LineItems[0]
	if item.MatchedItem != nil || item.MatchScore != nil || len(item.AlternateMatches) != 0 {
		t.Fatalf("match not cleared: %+v", item)
	}
}

func TestMatchEndpointUpstreamFailure(t *testing.T) {
	h, st := newTestHandler(t, &stubMatcher{err: matchsvc.ErrUnavailable})
	order := createOrder(t, st, internal.LineItem{RequestItem: "Bolt"})

	rec, _ := doJSON(t, h, http.MethodPost, "/sales-orders/"+order.ID+"/match", "")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status=%d", rec.Code)
	}

	stored, _ := st.Get(order.ID)
	if stored.Status != "pending" {
		t.Fatalf("stored status=%q, order was touched", stored.Status)
	}
}

func TestMatchEndpoint(t *testing.T) {
	h, st := newTestHandler(t, &stubMatcher{batch: map[string][]matchsvc.Candidate{
		"Bolt": {{Match: "Hex Bolt", Score: 95}},
	}})
	order := createOrder(t, st, internal.LineItem{RequestItem: "Bolt"})

	rec, doc := doJSON(t, h, http.MethodPost, "/sales-orders/"+order.ID+"/match?limit=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
	}
	if doc["status"] != "matched" {
		t.Fatalf("body=%v", doc)
	}
}

func TestCSVEndpoint(t *testing.T) {
	h, st := newTestHandler(t, &stubMatcher{})
	order := createOrder(t, st, internal.LineItem{RequestItem: "Bolt", Quantity: 2.0, UnitPrice: 1.5, Total: 3.0})

	req := httptest.NewRequest(http.MethodGet, "/sales-orders/"+order.ID+"/csv", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "text/csv" {
		t.Fatalf("content-type=%q", got)
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), order.ID) {
		t.Fatalf("disposition=%q", rec.Header().Get("Content-Disposition"))
	}
	want := "Request Item,Matched Product,Quantity,Unit Price,Total\nBolt,,2,1.50,3.00\n"
	if rec.Body.String() != want {
		t.Fatalf("body=%q", rec.Body.String())
	}
}

func TestDeleteEndpoint(t *testing.T) {
	h, st := newTestHandler(t, &stubMatcher{})
	order := createOrder(t, st)

	rec, doc := doJSON(t, h, http.MethodDelete, "/sales-orders/"+order.ID, "")
	if rec.Code != http.StatusOK || doc["success"] != true {
		t.Fatalf("status=%d body=%v", rec.Code, doc)
	}

	rec, doc = doJSON(t, h, http.MethodDelete, "/sales-orders/"+order.ID, "")
	if rec.Code != http.StatusOK || doc["success"] != false {
		t.Fatalf("second delete: status=%d body=%v", rec.Code, doc)
	}
}

func TestCreateEndpoint(t *testing.T) {
	h, st := newTestHandler(t, &stubMatcher{})

	body := "file_name=order.pdf&line_items=" +
		`[{"Item Description":"Bolt","Qty":4,"Price":2.5}]`
	req := httptest.NewRequest(http.MethodPost, "/sales-orders", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
	}
	doc := map[string]any{}
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatal(err)
	}
	id, _ := doc["sales_order_id"].(string)
	if doc["success"] != true || id == "" {
		t.Fatalf("body=%v", doc)
	}

	stored, _ := st.Get(id)
	if stored == nil || len(stored.LineItems) != 1 {
		t.Fatalf("stored=%+v", stored)
	}
	if stored.LineItems[0].RequestItem != "Bolt" || stored.LineItems[0].Total != 10.0 {
		t.Fatalf("item=%+v", stored.LineItems[0])
	}
}

func TestCORSPreflight(t *testing.T) {
	h, _ := newTestHandler(t, &stubMatcher{})

	req := httptest.NewRequest(http.MethodOptions, "/sales-orders", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status=%d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("headers=%v", rec.Header())
	}
}
