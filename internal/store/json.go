package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"orderdesk/internal"
)

const ordersFileName = "sales_orders.json"

// JSONStore keeps the whole collection in one JSON array file. Every
// mutation is a read-modify-write of the full file under a single mutex,
// published with a temp-file rename so readers never observe a half-written
// collection.
type JSONStore struct {
	mu  sync.Mutex
	dir string
}

func OpenJSON(dir string) (*JSONStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &JSONStore{dir: dir}, nil
}

func (s *JSONStore) Close() error { return nil }

func (s *JSONStore) path() string { return filepath.Join(s.dir, ordersFileName) }

// load returns the stored collection, or an empty one when the file is
// missing or unreadable. "No data" is never an error here.
func (s *JSONStore) load() []internal.SalesOrder {
	blob, err := os.ReadFile(s.path())
	if err != nil {
		return []internal.SalesOrder{}
	}
	var orders []internal.SalesOrder
	if err := json.Unmarshal(blob, &orders); err != nil {
		return []internal.SalesOrder{}
	}
	return orders
}

func (s *JSONStore) save(orders []internal.SalesOrder) error {
	blob, err := json.MarshalIndent(orders, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, ordersFileName+".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(blob); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path())
}

func (s *JSONStore) Create(fileName string, items []internal.LineItem) (internal.SalesOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	order := internal.SalesOrder{
		ID:        uuid.NewString(),
		FileName:  fileName,
		LineItems: internal.CloneLineItems(items),
		CreatedAt: now,
		UpdatedAt: now,
		Status:    "pending",
	}
	if order.LineItems == nil {
		order.LineItems = []internal.LineItem{}
	}

	orders := s.load()
	orders = append(orders, order)
	if err := s.save(orders); err != nil {
		return internal.SalesOrder{}, err
	}
	return order.Clone(), nil
}

func (s *JSONStore) List() ([]internal.SalesOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(), nil
}

func (s *JSONStore) Get(id string) (*internal.SalesOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, order := range s.load() {
		if order.ID == id {
			found := order.Clone()
			return &found, nil
		}
	}
	return nil, nil
}

func (s *JSONStore) Update(id string, patch internal.OrderPatch) (internal.SalesOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	orders := s.load()
	for i := range orders {
		if orders[i].ID != id {
			continue
		}
		orders[i].ApplyPatch(patch)
		orders[i].UpdatedAt = time.Now().UTC()
		if err := s.save(orders); err != nil {
			return internal.SalesOrder{}, err
		}
		return orders[i].Clone(), nil
	}
	return internal.SalesOrder{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

func (s *JSONStore) UpdateLineItem(id string, index int, patch internal.LineItemPatch) (internal.SalesOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	orders := s.load()
	for i := range orders {
		if orders[i].ID != id {
			continue
		}
		if index < 0 || index >= len(orders[i].LineItems) {
			return internal.SalesOrder{}, fmt.Errorf("%w: %d", ErrInvalidIndex, index)
		}
		orders[i].LineItems[index].ApplyPatch(patch)
		orders[i].UpdatedAt = time.Now().UTC()
		if err := s.save(orders); err != nil {
			return internal.SalesOrder{}, err
		}
		return orders[i].Clone(), nil
	}
	return internal.SalesOrder{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

func (s *JSONStore) Delete(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	orders := s.load()
	for i := range orders {
		if orders[i].ID != id {
			continue
		}
		orders = append(orders[:i], orders[i+1:]...)
		if err := s.save(orders); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}
