package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"customerterm/internal/customers"
)

const (
	driverName = "sqlite3"
	timeLayout = time.RFC3339Nano
)

// Store wraps the SQLite database and implements customers.DataSource.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

var _ customers.DataSource = (*Store)(nil)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrInvalidCustomer indicates a customer is missing required fields.
	ErrInvalidCustomer = errors.New("invalid customer")
)

// Open bootstraps the SQLite store at path, or at the default location when
// path is empty.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	} else if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open(driverName, fmt.Sprintf("file:%s?_busy_timeout=5000", path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, path: path, now: time.Now}, nil
}

// Close releases DB resources.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// DefaultPath resolves the database file under the user config directory.
func DefaultPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil || base == "" {
		base = os.Getenv("HOME")
		if base == "" {
			return "", fmt.Errorf("cannot resolve data dir: %w", err)
		}
	}
	dir := filepath.Join(base, "customerterm")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create db dir: %w", err)
	}
	return filepath.Join(dir, "customers.db"), nil
}

const selectColumns = `SELECT id, display_name, phone, email, company, address, photo_url, creator, created_at, updated_at FROM customers`

// GetItems returns up to limit customers starting at offset, ordered by name.
func (s *Store) GetItems(ctx context.Context, offset, limit int) ([]customers.Customer, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		return []customers.Customer{}, nil
	}
	rows, err := s.db.QueryContext(ctx, selectColumns+` ORDER BY display_name COLLATE NOCASE, id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query customers: %w", err)
	}
	return collect(rows)
}

func collect(rows *sql.Rows) ([]customers.Customer, error) {
	defer rows.Close()
	list := []customers.Customer{}
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		list = append(list, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("customer rows: %w", err)
	}
	return list, nil
}

// CustomerByID retrieves a customer by its identifier.
func (s *Store) CustomerByID(ctx context.Context, id string) (*customers.Customer, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	c, err := scanCustomer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get customer: %w", err)
	}
	return &c, nil
}

// SaveItem inserts c or updates the row with the same ID. The creation time
// of an existing row is preserved; c is refreshed from the stored row.
func (s *Store) SaveItem(ctx context.Context, c *customers.Customer) error {
	if c == nil {
		return fmt.Errorf("nil customer: %w", ErrInvalidCustomer)
	}
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("customer id required: %w", ErrInvalidCustomer)
	}
	if strings.TrimSpace(c.DisplayName) == "" {
		return fmt.Errorf("display name required: %w", ErrInvalidCustomer)
	}
	now := s.now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO customers (id, display_name, phone, email, company, address, photo_url, creator, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            display_name = excluded.display_name,
            phone = excluded.phone,
            email = excluded.email,
            company = excluded.company,
            address = excluded.address,
            photo_url = excluded.photo_url,
            updated_at = excluded.updated_at`,
		c.ID, strings.TrimSpace(c.DisplayName), nullString(c.Phone), nullString(c.Email), nullString(c.Company),
		nullString(c.Address), nullString(c.PhotoURL), c.Creator,
		c.CreatedAt.UTC().Format(timeLayout), now.Format(timeLayout))
	if err != nil {
		return fmt.Errorf("upsert customer: %w", err)
	}
	stored, err := s.CustomerByID(ctx, c.ID)
	if err != nil {
		return err
	}
	*c = *stored
	return nil
}

// DeleteItem removes the customer with the given id.
func (s *Store) DeleteItem(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM customers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCustomer(rs rowScanner) (customers.Customer, error) {
	var c customers.Customer
	var phone, email, company, address, photo sql.NullString
	var created, updated string
	if err := rs.Scan(&c.ID, &c.DisplayName, &phone, &email, &company, &address, &photo, &c.Creator, &created, &updated); err != nil {
		return customers.Customer{}, err
	}
	c.Phone = phone.String
	c.Email = email.String
	c.Company = company.String
	c.Address = address.String
	c.PhotoURL = photo.String
	if t, err := time.Parse(timeLayout, created); err == nil {
		c.CreatedAt = t
	}
	if t, err := time.Parse(timeLayout, updated); err == nil {
		c.UpdatedAt = t
	}
	return c, nil
}

func nullString(s string) interface{} {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return s
}
