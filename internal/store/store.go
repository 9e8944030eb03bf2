package store

import (
	"errors"
	"fmt"

	"orderdesk/internal"
	"orderdesk/internal/config"
)

var (
	// ErrNotFound signals that an update targeted an id that is not in the
	// store. Get and Delete report absence through their return values
	// instead.
	ErrNotFound = errors.New("sales order not found")

	// ErrInvalidIndex signals a line-item index outside the order's range.
	ErrInvalidIndex = errors.New("invalid line item index")
)

// Store owns the persisted collection of sales orders. Every method returns
// detached copies; mutating a returned order never changes stored state.
// Mutations are observably atomic: a concurrent Get or List sees either the
// fully-old or fully-new version of an order.
type Store interface {
	Create(fileName string, items []internal.LineItem) (internal.SalesOrder, error)
	List() ([]internal.SalesOrder, error)
	Get(id string) (*internal.SalesOrder, error)
	Update(id string, patch internal.OrderPatch) (internal.SalesOrder, error)
	UpdateLineItem(id string, index int, patch internal.LineItemPatch) (internal.SalesOrder, error)
	Delete(id string) (bool, error)
	Close() error
}

// Open picks the backend from configuration: "sqlite" for the database
// backend, anything else falls back to the single-file JSON store.
func Open(cfg config.Config) (Store, error) {
	switch cfg.StorageBackend {
	case "sqlite":
		return OpenSQLite(cfg.DBPath)
	case "json", "":
		return OpenJSON(cfg.DataDir)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.StorageBackend)
	}
}
