package mysql

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"storefront-notify/internal/domain"

	_ "github.com/go-sql-driver/mysql"
)

// Schema creates the tables the repository reads and writes.
//
//go:embed schema.sql
var Schema string

type MySQLItemRepository struct {
	db *sql.DB
}

func NewMySQLItemRepository(db *sql.DB) *MySQLItemRepository {
	return &MySQLItemRepository{db: db}
}

const selectItem = `
        SELECT id, name, description, price, quantity, brand_id, category_id
        FROM items WHERE id = ?
    `

const decrementStock = `UPDATE items SET quantity = quantity - ? WHERE id = ?`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanItem(row rowScanner) (*domain.Item, error) {
	var item domain.Item
	err := row.Scan(&item.ID, &item.Name, &item.Description, &item.Price,
		&item.Quantity, &item.BrandID, &item.CategoryID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrItemNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *MySQLItemRepository) GetItem(ctx context.Context, itemID int64) (*domain.Item, error) {
	return scanItem(r.db.QueryRowContext(ctx, selectItem, itemID))
}

// Purchase locks the item row, checks stock and decrements it in one transaction.
func (r *MySQLItemRepository) Purchase(ctx context.Context, username string, itemID int64, quantity int) (*domain.Item, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin purchase: %w", err)
	}
	defer tx.Rollback()

	item, err := scanItem(tx.QueryRowContext(ctx, selectItem+" FOR UPDATE", itemID))
	if err != nil {
		return nil, err
	}
	if item.Quantity < quantity {
		return nil, domain.ErrInsufficientStock
	}

	if _, err := tx.ExecContext(ctx, decrementStock, quantity, itemID); err != nil {
		return nil, fmt.Errorf("update stock: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit purchase: %w", err)
	}

	item.Quantity -= quantity
	return item, nil
}
