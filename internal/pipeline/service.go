package pipeline

import (
	"context"
	"fmt"

	"orderdesk/internal"
	"orderdesk/internal/config"
	"orderdesk/internal/export"
	"orderdesk/internal/extract"
	"orderdesk/internal/matchsvc"
	"orderdesk/internal/normalize"
	"orderdesk/internal/store"
	"orderdesk/internal/util"
)

type Extractor interface {
	Extract(ctx context.Context, fileName string, content []byte) ([]normalize.Record, error)
}

type Matcher interface {
	MatchBatch(ctx context.Context, queries []string, limit int) (map[string][]matchsvc.Candidate, error)
	MatchSingle(ctx context.Context, query string, limit int) ([]matchsvc.Candidate, error)
}

type Enricher interface {
	Normalize(ctx context.Context, items []normalize.Record) []normalize.Record
}

// Service wires the document flow together: extraction, field
// normalization, order persistence, batch matching and export. All state
// lives in the store; the service itself is stateless.
type Service struct {
	cfg       config.Config
	store     store.Store
	extractor Extractor
	matcher   Matcher
	enricher  Enricher
}

func NewService(cfg config.Config, st store.Store, extractor Extractor, matcher Matcher, enricher Enricher) *Service {
	return &Service{cfg: cfg, store: st, extractor: extractor, matcher: matcher, enricher: enricher}
}

func (s *Service) Store() store.Store { return s.store }

// ExtractDocument returns normalized line-item records for a document. The
// extraction service is tried first; if it is unreachable the local parsers
// take over, so a service outage degrades extraction quality instead of
// failing the request outright. Fell reports whether the fallback ran.
func (s *Service) ExtractDocument(ctx context.Context, fileName string, content []byte) (records []normalize.Record, fell bool, err error) {
	raw, err := s.extractor.Extract(ctx, fileName, content)
	if err != nil {
		raw, err = extract.Local(fileName, content)
		if err != nil {
			return nil, true, err
		}
		fell = true
	}

	if s.enricher != nil {
		return s.enricher.Normalize(ctx, raw), fell, nil
	}
	return normalize.Records(raw), fell, nil
}

// CreateOrder normalizes the given raw records and persists a new pending
// order. Records that never resolve a description are skipped, mirroring
// the legacy intake.
func (s *Service) CreateOrder(fileName string, records []normalize.Record) (internal.SalesOrder, error) {
	items := normalize.ToLineItems(normalize.Records(records))
	return s.store.Create(fileName, items)
}

// IngestDocument is the full intake path: extract, normalize, persist.
func (s *Service) IngestDocument(ctx context.Context, fileName string, content []byte) (internal.SalesOrder, error) {
	records, _, err := s.ExtractDocument(ctx, fileName, content)
	if err != nil {
		return internal.SalesOrder{}, err
	}
	return s.CreateOrder(fileName, records)
}

// MatchOrder runs batch matching over every line item of an order and
// stores the merged result in one update. If the matching service fails the
// stored order is left exactly as it was.
func (s *Service) MatchOrder(ctx context.Context, id string, limit int) (internal.SalesOrder, error) {
	order, err := s.store.Get(id)
	if err != nil {
		return internal.SalesOrder{}, err
	}
	if order == nil {
		return internal.SalesOrder{}, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}

	if limit <= 0 {
		limit = s.cfg.MatchLimit
	}

	queries := make([]string, 0, len(order.LineItems))
	for _, item := range order.LineItems {
		queries = append(queries, item.RequestItem)
	}

	results, err := s.matcher.MatchBatch(ctx, queries, limit)
	if err != nil {
		return internal.SalesOrder{}, err
	}

	updated := ApplyMatches(order.LineItems, results)
	return s.store.Update(id, internal.OrderPatch{
		LineItems: updated,
		Status:    util.StringPtr("matched"),
	})
}

// MatchItem is the ad-hoc single-description lookup.
func (s *Service) MatchItem(ctx context.Context, query string, limit int) ([]matchsvc.Candidate, error) {
	if limit <= 0 {
		limit = s.cfg.MatchLimit
	}
	return s.matcher.MatchSingle(ctx, query, limit)
}

func (s *Service) OrderCSV(id string) (string, error) {
	order, err := s.store.Get(id)
	if err != nil {
		return "", err
	}
	if order == nil {
		return "", fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	return export.OrderCSV(*order), nil
}

func (s *Service) OrderXLSX(id string, outputPath string) error {
	order, err := s.store.Get(id)
	if err != nil {
		return err
	}
	if order == nil {
		return fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	return export.OrderXLSX(*order, outputPath)
}
