package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg *prometheus.Registry

	OrdersCreated       prometheus.Counter
	OrdersMatched       prometheus.Counter
	OrdersDeleted       prometheus.Counter
	CSVExports          prometheus.Counter
	ExtractionFallbacks prometheus.Counter
	UpstreamFailures    prometheus.Counter
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	created := prometheus.NewCounter(prometheus.CounterOpts{Name: "orderdesk_orders_created_total"})
	matched := prometheus.NewCounter(prometheus.CounterOpts{Name: "orderdesk_orders_matched_total"})
	deleted := prometheus.NewCounter(prometheus.CounterOpts{Name: "orderdesk_orders_deleted_total"})
	csvExports := prometheus.NewCounter(prometheus.CounterOpts{Name: "orderdesk_csv_exports_total"})
	fallbacks := prometheus.NewCounter(prometheus.CounterOpts{Name: "orderdesk_extraction_fallbacks_total"})
	upstream := prometheus.NewCounter(prometheus.CounterOpts{Name: "orderdesk_upstream_failures_total"})

	r.MustRegister(created, matched, deleted, csvExports, fallbacks, upstream)
	return &Registry{
		reg:                 r,
		OrdersCreated:       created,
		OrdersMatched:       matched,
		OrdersDeleted:       deleted,
		CSVExports:          csvExports,
		ExtractionFallbacks: fallbacks,
		UpstreamFailures:    upstream,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
