package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/joao-fontenele/luvoir-pos/internal/domain"
)

// PostgresLoader reads products from an external product database. It never
// writes: stock reserved at the till is not persisted back.
type PostgresLoader struct {
	db    *sql.DB
	table string
}

// NewPostgresLoader reads from the products table in schema, or from the
// connection's search_path when schema is empty.
func NewPostgresLoader(db *sql.DB, schema string) *PostgresLoader {
	table := pq.QuoteIdentifier("products")
	if schema != "" {
		table = pq.QuoteIdentifier(schema) + "." + table
	}
	return &PostgresLoader{db: db, table: table}
}

// LoadProducts returns the products with the given ids, or every product
// when no ids are given.
func (l *PostgresLoader) LoadProducts(ctx context.Context, ids ...string) ([]domain.Product, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if len(ids) == 0 {
		rows, err = l.db.QueryContext(ctx, `
			SELECT id, description, unit_price, stock_quantity, image_url
			FROM `+l.table+`
			ORDER BY id
		`)
	} else {
		rows, err = l.db.QueryContext(ctx, `
			SELECT id, description, unit_price, stock_quantity, image_url
			FROM `+l.table+`
			WHERE id = ANY($1)
			ORDER BY id
		`, pq.Array(ids))
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var products []domain.Product
	for rows.Next() {
		var (
			product  domain.Product
			imageURL sql.NullString
		)
		if err := rows.Scan(&product.ID, &product.Description, &product.UnitPrice, &product.StockQuantity, &imageURL); err != nil {
			return nil, err
		}
		product.ImageURL = imageURL.String
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

// Seed copies the loaded products into store and returns how many were copied.
func (l *PostgresLoader) Seed(ctx context.Context, store Store, ids ...string) (int, error) {
	products, err := l.LoadProducts(ctx, ids...)
	if err != nil {
		return 0, fmt.Errorf("load products: %w", err)
	}

	for _, product := range products {
		if err := store.Upsert(ctx, product); err != nil {
			return 0, fmt.Errorf("seed product %s: %w", product.ID, err)
		}
	}

	return len(products), nil
}
