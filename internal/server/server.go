package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"

	"orderdesk/internal"
	"orderdesk/internal/extract"
	"orderdesk/internal/matchsvc"
	"orderdesk/internal/metrics"
	"orderdesk/internal/normalize"
	"orderdesk/internal/pipeline"
	"orderdesk/internal/store"
)

const maxUploadBytes = 32 << 20

// Server is the thin request layer over the pipeline service: routing,
// decoding, CORS and the mapping from named failures to status codes. No
// business logic lives here.
type Server struct {
	svc *pipeline.Service
	m   *metrics.Registry
}

func New(svc *pipeline.Service, m *metrics.Registry) *Server {
	return &Server{svc: svc, m: m}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /extract", s.handleExtract)
	mux.HandleFunc("POST /sales-orders", s.handleCreate)
	mux.HandleFunc("GET /sales-orders", s.handleList)
	mux.HandleFunc("GET /sales-orders/{id}", s.handleGet)
	mux.HandleFunc("PATCH /sales-orders/{id}", s.handleUpdate)
	mux.HandleFunc("DELETE /sales-orders/{id}", s.handleDelete)
	mux.HandleFunc("POST /sales-orders/{id}/match", s.handleMatch)
	mux.HandleFunc("GET /sales-orders/{id}/match-item", s.handleMatchItem)
	mux.HandleFunc("PATCH /sales-orders/{id}/line-items/{index}", s.handleUpdateLineItem)
	mux.HandleFunc("GET /sales-orders/{id}/csv", s.handleCSV)
	mux.Handle("GET /metrics", s.m.Handler())

	return withCORS(mux)
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid multipart form: %w", err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("missing file field"))
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	records, fell, err := s.svc.ExtractDocument(r.Context(), header.Filename, content)
	if err != nil {
		s.m.UpstreamFailures.Inc()
		s.writeFailure(w, err)
		return
	}
	if fell {
		s.m.ExtractionFallbacks.Inc()
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid form: %w", err))
		return
	}

	fileName := r.FormValue("file_name")
	if fileName == "" {
		writeError(w, http.StatusBadRequest, errors.New("file_name is required"))
		return
	}

	var records []normalize.Record
	if raw := r.FormValue("line_items"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &records); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid line_items: %w", err))
			return
		}
	}

	order, err := s.svc.CreateOrder(fileName, records)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.m.OrdersCreated.Inc()
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "sales_order_id": order.ID})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	orders, err := s.svc.Store().List()
	if err != nil {
		// The contract says "no data" is never an error; reply empty.
		writeJSON(w, http.StatusOK, []internal.SalesOrder{})
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	order, err := s.svc.Store().Get(r.PathValue("id"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	if order == nil {
		writeError(w, http.StatusNotFound, errors.New("sales order not found"))
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		FileName     *string             `json:"file_name"`
		OrderNumber  *string             `json:"order_number"`
		CustomerName *string             `json:"customer_name"`
		OrderDate    *string             `json:"order_date"`
		Status       *string             `json:"status"`
		LineItems    []internal.LineItem `json:"line_items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		return
	}

	order, err := s.svc.Store().Update(r.PathValue("id"), internal.OrderPatch{
		FileName:     body.FileName,
		OrderNumber:  body.OrderNumber,
		CustomerName: body.CustomerName,
		OrderDate:    body.OrderDate,
		Status:       body.Status,
		LineItems:    body.LineItems,
	})
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleUpdateLineItem(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("line item index must be an integer"))
		return
	}

	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		return
	}

	order, err := s.svc.Store().UpdateLineItem(r.PathValue("id"), index, lineItemPatchFromMap(body))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// lineItemPatchFromMap builds the typed patch from a request body, keeping
// "key absent" distinct from "key set to null". A null matched_item clears
// the whole match triple.
func lineItemPatchFromMap(body map[string]any) internal.LineItemPatch {
	p := internal.LineItemPatch{}
	if v, ok := body[internal.KeyRequestItem].(string); ok {
		p.RequestItem = &v
	}
	if v, ok := body[internal.KeyQuantity]; ok {
		p.Quantity = v
	}
	if v, ok := body[internal.KeyAmount]; ok {
		p.Amount = v
	}
	if v, ok := body[internal.KeyUnitPrice]; ok {
		p.UnitPrice = v
	}
	if v, ok := body[internal.KeyTotal]; ok {
		p.Total = v
	}
	if v, ok := body[internal.KeyMatchedItem]; ok {
		if v == nil {
			p.ClearMatch = true
		} else if s, isStr := v.(string); isStr {
			p.MatchedItem = &s
		}
	}
	if v, ok := body[internal.KeyMatchScore].(float64); ok {
		p.MatchScore = &v
	}
	if v, ok := body[internal.KeyAlternates]; ok {
		p.AlternateMatches = internal.ToAltMatches(v)
	}
	return p
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	removed, err := s.svc.Store().Delete(r.PathValue("id"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	if removed {
		s.m.OrdersDeleted.Inc()
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": removed})
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}
	order, err := s.svc.MatchOrder(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.m.OrdersMatched.Inc()
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleMatchItem(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("item_name")
	if query == "" {
		writeError(w, http.StatusBadRequest, errors.New("item_name is required"))
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	candidates, err := s.svc.MatchItem(r.Context(), query, limit)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, candidates)
}

func (s *Server) handleCSV(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	csv, err := s.svc.OrderCSV(id)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.m.CSVExports.Inc()

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=sales_order_%s.csv", id))
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(csv))
}

// writeFailure maps named failures onto status codes: missing orders are
// 404, bad indexes 400, upstream collaborator outages 502, the rest 500.
func (s *Server) writeFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, store.ErrInvalidIndex):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, matchsvc.ErrUnavailable), errors.Is(err, extract.ErrUnavailable):
		s.m.UpstreamFailures.Inc()
		writeError(w, http.StatusBadGateway, err)
	default:
		log.Printf("internal error: %v", err)
		writeError(w, http.StatusInternalServerError, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"detail": err.Error()})
}
