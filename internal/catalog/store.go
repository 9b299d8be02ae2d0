package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	skerrors "github.com/skuseek/skuseek/internal/errors"
)

// Store mirrors the catalog into SQLite so fused search results can be
// enriched with full product details without holding the whole catalog
// in memory.
type Store struct {
	mu     sync.RWMutex
	db     *sql.DB
	closed bool
}

const storeSchema = `
CREATE TABLE IF NOT EXISTS products (
	code        TEXT PRIMARY KEY,
	description TEXT NOT NULL,
	base_price  REAL NOT NULL,
	categories  TEXT NOT NULL DEFAULT '[]',
	series      TEXT NOT NULL DEFAULT '',
	features    TEXT NOT NULL DEFAULT '',
	height      REAL NOT NULL DEFAULT 0,
	width       REAL NOT NULL DEFAULT 0,
	depth       REAL NOT NULL DEFAULT 0,
	weight      REAL NOT NULL DEFAULT 0,
	volume      REAL NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_products_series ON products(series);
`

// OpenStore opens (or creates) the product store at path.
// An empty path opens an in-memory store for testing.
func OpenStore(path string) (*Store, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, skerrors.New(skerrors.ErrCodeCatalogStore,
				fmt.Sprintf("failed to create store directory for %s", path), err)
		}
		// WAL mode for concurrent readers, busy timeout for lock contention
		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, skerrors.New(skerrors.ErrCodeCatalogStore, "failed to open product store", err)
	}

	// Single writer to prevent lock contention
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(storeSchema); err != nil {
		_ = db.Close()
		return nil, skerrors.New(skerrors.ErrCodeCatalogStore, "failed to initialize product store schema", err)
	}

	return &Store{db: db}, nil
}

// ReplaceAll atomically replaces the store contents with products.
func (s *Store) ReplaceAll(ctx context.Context, products []Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return skerrors.New(skerrors.ErrCodeCatalogStore, "product store is closed", nil)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return skerrors.New(skerrors.ErrCodeCatalogStore, "failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM products"); err != nil {
		return skerrors.New(skerrors.ErrCodeCatalogStore, "failed to clear products", err)
	}

	for _, p := range products {
		if err := upsertTx(ctx, tx, p); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return skerrors.New(skerrors.ErrCodeCatalogStore, "failed to commit catalog replace", err)
	}
	return nil
}

// Upsert inserts or replaces a single product.
func (s *Store) Upsert(ctx context.Context, p Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return skerrors.New(skerrors.ErrCodeCatalogStore, "product store is closed", nil)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return skerrors.New(skerrors.ErrCodeCatalogStore, "failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := upsertTx(ctx, tx, p); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return skerrors.New(skerrors.ErrCodeCatalogStore, "failed to commit upsert", err)
	}
	return nil
}

func upsertTx(ctx context.Context, tx *sql.Tx, p Product) error {
	cats, err := json.Marshal(p.Categories)
	if err != nil {
		return skerrors.New(skerrors.ErrCodeCatalogStore,
			fmt.Sprintf("failed to encode categories for %s", p.Code), err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO products (code, description, base_price, categories, series, features, height, width, depth, weight, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			description = excluded.description,
			base_price  = excluded.base_price,
			categories  = excluded.categories,
			series      = excluded.series,
			features    = excluded.features,
			height      = excluded.height,
			width       = excluded.width,
			depth       = excluded.depth,
			weight      = excluded.weight,
			volume      = excluded.volume`,
		p.Code, p.Description, p.BasePrice, string(cats), p.Series, p.Features,
		p.Height, p.Width, p.Depth, p.Weight, p.Volume)
	if err != nil {
		return skerrors.New(skerrors.ErrCodeCatalogStore,
			fmt.Sprintf("failed to upsert product %s", p.Code), err)
	}
	return nil
}

// Get returns one product by code. Missing products return sql.ErrNoRows
// wrapped in a store error.
func (s *Store) Get(ctx context.Context, code string) (Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT code, description, base_price, categories, series, features, height, width, depth, weight, volume
		FROM products WHERE code = ?`, code)

	p, err := scanProduct(row.Scan)
	if err != nil {
		return Product{}, skerrors.New(skerrors.ErrCodeCatalogStore,
			fmt.Sprintf("failed to load product %s", code), err)
	}
	return p, nil
}

// GetBatch returns the products for codes, keyed by code. Codes with no
// stored product are simply absent from the result.
func (s *Store) GetBatch(ctx context.Context, codes []string) (map[string]Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]Product, len(codes))
	if len(codes) == 0 {
		return result, nil
	}

	placeholders := strings.Repeat("?,", len(codes))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(codes))
	for i, c := range codes {
		args[i] = c
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT code, description, base_price, categories, series, features, height, width, depth, weight, volume
		FROM products WHERE code IN (%s)`, placeholders), args...)
	if err != nil {
		return nil, skerrors.New(skerrors.ErrCodeCatalogStore, "failed to query product batch", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		p, err := scanProduct(rows.Scan)
		if err != nil {
			return nil, skerrors.New(skerrors.ErrCodeCatalogStore, "failed to scan product row", err)
		}
		result[p.Code] = p
	}
	if err := rows.Err(); err != nil {
		return nil, skerrors.New(skerrors.ErrCodeCatalogStore, "failed to iterate product batch", err)
	}
	return result, nil
}

// All returns every stored product, ordered by code.
func (s *Store) All(ctx context.Context) ([]Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT code, description, base_price, categories, series, features, height, width, depth, weight, volume
		FROM products ORDER BY code`)
	if err != nil {
		return nil, skerrors.New(skerrors.ErrCodeCatalogStore, "failed to query products", err)
	}
	defer func() { _ = rows.Close() }()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows.Scan)
		if err != nil {
			return nil, skerrors.New(skerrors.ErrCodeCatalogStore, "failed to scan product row", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, skerrors.New(skerrors.ErrCodeCatalogStore, "failed to iterate products", err)
	}
	return products, nil
}

// Count returns the number of stored products.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products").Scan(&n); err != nil {
		return 0, skerrors.New(skerrors.ErrCodeCatalogStore, "failed to count products", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func scanProduct(scan func(dest ...any) error) (Product, error) {
	var p Product
	var cats string
	if err := scan(&p.Code, &p.Description, &p.BasePrice, &cats, &p.Series, &p.Features,
		&p.Height, &p.Width, &p.Depth, &p.Weight, &p.Volume); err != nil {
		return Product{}, err
	}
	if err := json.Unmarshal([]byte(cats), &p.Categories); err != nil {
		return Product{}, fmt.Errorf("failed to decode categories for %s: %w", p.Code, err)
	}
	return p, nil
}
