package store

import (
	"github.com/marilagman/petalsandcrumbs/internal/models"
)

func (s *Store) CreateProduct(p *models.Product) error {
	res, err := s.DB.Exec(`
		INSERT INTO products (title, description, price, category, image_url, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)`,
		p.Title, p.Description, p.Price, p.Category, p.ImageURL, p.Status)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = int(id)
	return nil
}

func (s *Store) GetAllProducts() ([]models.Product, error) {
	query := `SELECT id, title, COALESCE(description, ''), price, COALESCE(category, 'flowers'), COALESCE(image_url, ''), COALESCE(status, 'available'), created_at
		FROM products ORDER BY created_at DESC`
	return s.queryProducts(query)
}

// GetPublicProducts returns the storefront catalogue: archived products
// stay hidden, out-of-stock still shows.
func (s *Store) GetPublicProducts() ([]models.Product, error) {
	query := `SELECT id, title, COALESCE(description, ''), price, COALESCE(category, 'flowers'), COALESCE(image_url, ''), COALESCE(status, 'available'), created_at
		FROM products WHERE COALESCE(status, 'available') != 'archived' ORDER BY category, created_at DESC`
	return s.queryProducts(query)
}

func (s *Store) queryProducts(query string, args ...any) ([]models.Product, error) {
	rows, err := s.DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.Title, &p.Description, &p.Price, &p.Category, &p.ImageURL, &p.Status, &p.CreatedAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *Store) GetProductByID(id int) (*models.Product, error) {
	query := `SELECT id, title, COALESCE(description, ''), price, COALESCE(category, 'flowers'), COALESCE(image_url, ''), COALESCE(status, 'available'), created_at
		FROM products WHERE id = ?`
	row := s.DB.QueryRow(query, id)

	var p models.Product
	if err := row.Scan(&p.ID, &p.Title, &p.Description, &p.Price, &p.Category, &p.ImageURL, &p.Status, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) UpdateProduct(p *models.Product) error {
	query := `UPDATE products SET title = ?, description = ?, price = ?, category = ?, image_url = ?, status = ? WHERE id = ?`
	_, err := s.DB.Exec(query, p.Title, p.Description, p.Price, p.Category, p.ImageURL, p.Status, p.ID)
	return err
}

func (s *Store) DeleteProduct(id int) error {
	query := `DELETE FROM products WHERE id = ?`
	_, err := s.DB.Exec(query, id)
	return err
}
