package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"orderdesk/internal"
)

// SQLiteStore keeps one row per order with the line items as a JSON column.
// Mutations run inside a transaction keyed by id, so concurrent writers
// serialize at the database instead of racing on a shared file.
type SQLiteStore struct {
	conn *sql.DB
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	s := &SQLiteStore{conn: conn}
	if err := s.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Close() error { return s.conn.Close() }

func (s *SQLiteStore) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS sales_orders (
  id TEXT PRIMARY KEY,
  fileName TEXT NOT NULL,
  orderNumber TEXT,
  customerName TEXT,
  orderDate TEXT,
  status TEXT NOT NULL,
  lineItems TEXT NOT NULL,
  createdAt TEXT NOT NULL,
  updatedAt TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sales_orders_status ON sales_orders(status);
`
	_, err := s.conn.Exec(schema)
	return err
}

func (s *SQLiteStore) Create(fileName string, items []internal.LineItem) (internal.SalesOrder, error) {
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

	itemsJSON, err := json.Marshal(order.LineItems)
	if err != nil {
		return internal.SalesOrder{}, err
	}

	_, err = s.conn.Exec(`
INSERT INTO sales_orders (id, fileName, orderNumber, customerName, orderDate, status, lineItems, createdAt, updatedAt)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`, order.ID, order.FileName, order.OrderNumber, order.CustomerName, order.OrderDate, order.Status,
		string(itemsJSON), order.CreatedAt.Format(time.RFC3339Nano), order.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return internal.SalesOrder{}, err
	}
	return order.Clone(), nil
}

func (s *SQLiteStore) List() ([]internal.SalesOrder, error) {
	rows, err := s.conn.Query(`
SELECT id, fileName, orderNumber, customerName, orderDate, status, lineItems, createdAt, updatedAt
FROM sales_orders ORDER BY rowid ASC`)
	if err != nil {
		return []internal.SalesOrder{}, nil
	}
	defer rows.Close()

	out := []internal.SalesOrder{}
	for rows.Next() {
		order, err := scanOrder(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, order)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Get(id string) (*internal.SalesOrder, error) {
	row := s.conn.QueryRow(`
SELECT id, fileName, orderNumber, customerName, orderDate, status, lineItems, createdAt, updatedAt
FROM sales_orders WHERE id = ?`, id)

	order, err := scanOrder(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *SQLiteStore) Update(id string, patch internal.OrderPatch) (internal.SalesOrder, error) {
	return s.mutate(id, func(order *internal.SalesOrder) error {
		order.ApplyPatch(patch)
		return nil
	})
}

func (s *SQLiteStore) UpdateLineItem(id string, index int, patch internal.LineItemPatch) (internal.SalesOrder, error) {
	return s.mutate(id, func(order *internal.SalesOrder) error {
		if index < 0 || index >= len(order.LineItems) {
			return fmt.Errorf("%w: %d", ErrInvalidIndex, index)
		}
		order.LineItems[index].ApplyPatch(patch)
		return nil
	})
}

// mutate runs a read-modify-write cycle for one order inside a transaction.
func (s *SQLiteStore) mutate(id string, apply func(*internal.SalesOrder) error) (internal.SalesOrder, error) {
	tx, err := s.conn.Begin()
	if err != nil {
		return internal.SalesOrder{}, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRow(`
SELECT id, fileName, orderNumber, customerName, orderDate, status, lineItems, createdAt, updatedAt
FROM sales_orders WHERE id = ?`, id)

	order, err := scanOrder(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return internal.SalesOrder{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return internal.SalesOrder{}, err
	}

	if err := apply(&order); err != nil {
		return internal.SalesOrder{}, err
	}
	order.UpdatedAt = time.Now().UTC()

	itemsJSON, err := json.Marshal(order.LineItems)
	if err != nil {
		return internal.SalesOrder{}, err
	}

	_, err = tx.Exec(`
UPDATE sales_orders
SET fileName = ?, orderNumber = ?, customerName = ?, orderDate = ?, status = ?, lineItems = ?, updatedAt = ?
WHERE id = ?
`, order.FileName, order.OrderNumber, order.CustomerName, order.OrderDate, order.Status,
		string(itemsJSON), order.UpdatedAt.Format(time.RFC3339Nano), id)
	if err != nil {
		return internal.SalesOrder{}, err
	}

	if err := tx.Commit(); err != nil {
		return internal.SalesOrder{}, err
	}
	return order, nil
}

func (s *SQLiteStore) Delete(id string) (bool, error) {
	result, err := s.conn.Exec(`DELETE FROM sales_orders WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func scanOrder(scan func(...any) error) (internal.SalesOrder, error) {
	var order internal.SalesOrder
	var itemsJSON, createdAt, updatedAt string

	if err := scan(
		&order.ID, &order.FileName, &order.OrderNumber, &order.CustomerName, &order.OrderDate,
		&order.Status, &itemsJSON, &createdAt, &updatedAt,
	); err != nil {
		return internal.SalesOrder{}, err
	}

	if err := json.Unmarshal([]byte(itemsJSON), &order.LineItems); err != nil {
		return internal.SalesOrder{}, err
	}
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		order.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		order.UpdatedAt = t
	}
	return order, nil
}
