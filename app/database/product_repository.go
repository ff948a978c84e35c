package database

import (
	"fmt"
)

var _ ProductRepository = (*ProductRepo)(nil)

// ProductRepo handles database operations for extracted products
type ProductRepo struct {
	db *DB
}

// NewProductRepository creates a new product repository
func NewProductRepository(db *DB) *ProductRepo {
	return &ProductRepo{db: db}
}

// InsertProduct persists one extracted product. A retried flyer run may
// offer the same (flyer_id, product_id) pair again; the conflict clause
// ignores it, and the returned bool reports whether a row was written.
func (r *ProductRepo) InsertProduct(product Product) (bool, error) {
	if product.Price <= 0 {
		return false, fmt.Errorf("refusing to insert product %q with non-positive price %.2f",
			product.ProductName, product.Price)
	}

	unit := product.Unit
	if unit == "" {
		unit = "each"
	}

	result, err := r.db.Exec(`
		INSERT INTO products (flyer_id, product_id, product_name, price, unit, url, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (flyer_id, product_id) DO NOTHING
	`, product.FlyerID, product.ProductID, product.ProductName, product.Price,
		unit, product.URL, product.ImageURL)

	if err != nil {
		return false, fmt.Errorf("failed to insert product: %w", err)
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to count inserted products: %w", err)
	}

	return inserted > 0, nil
}

// GetProducts returns all products extracted from one flyer
func (r *ProductRepo) GetProducts(flyerID int64) ([]Product, error) {
	rows, err := r.db.Query(`
		SELECT id, flyer_id, product_id, product_name, price, unit, url, image_url, created_at
		FROM products
		WHERE flyer_id = $1
		ORDER BY created_at
	`, flyerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var product Product
		err := rows.Scan(
			&product.ID, &product.FlyerID, &product.ProductID, &product.ProductName,
			&product.Price, &product.Unit, &product.URL, &product.ImageURL,
			&product.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product row: %w", err)
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating product rows: %w", err)
	}

	return products, nil
}

// GetProductCount returns the number of products persisted for a flyer
func (r *ProductRepo) GetProductCount(flyerID int64) (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM products WHERE flyer_id = $1", flyerID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get product count: %w", err)
	}
	return count, nil
}
