package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"medicore.org/internal/ids"
	"medicore.org/internal/inventory"
)

var _ inventory.Service = (*Store)(nil)

const inventoryColumns = `
	id, item_name, item_type, coalesce(category,''), quantity,
	coalesce(unit,''), reorder_level, coalesce(supplier,''),
	coalesce(location,''), coalesce(notes,''),
	coalesce(last_restocked, to_timestamp(0)), created_at`

func (s *Store) CreateItem(ctx context.Context, item inventory.Item) (inventory.Item, error) {
	if item.Name == "" {
		return inventory.Item{}, fmt.Errorf("%w: item_name is required", inventory.ErrInvalidInput)
	}
	if !inventory.ValidType(item.Type) {
		return inventory.Item{}, fmt.Errorf("%w: unknown item_type %q", inventory.ErrInvalidInput, item.Type)
	}
	if item.Quantity < 0 || item.ReorderLevel < 0 {
		return inventory.Item{}, fmt.Errorf("%w: quantity and reorder_level must be >= 0", inventory.ErrInvalidInput)
	}

	item.ID = ids.New()
	err := s.db.QueryRowContext(ctx, `
		insert into inventory (id, item_name, item_type, category, quantity, unit,
			reorder_level, supplier, location, notes)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		returning created_at
	`, item.ID, item.Name, item.Type, nullIfEmpty(item.Category), item.Quantity,
		nullIfEmpty(item.Unit), item.ReorderLevel, nullIfEmpty(item.Supplier),
		nullIfEmpty(item.Location), nullIfEmpty(item.Notes)).Scan(&item.CreatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return inventory.Item{}, fmt.Errorf("%w: item already exists", inventory.ErrInvalidInput)
		}
		return inventory.Item{}, err
	}
	return item, nil
}

func (s *Store) GetItem(ctx context.Context, id string) (inventory.Item, error) {
	row := s.db.QueryRowContext(ctx, `select `+inventoryColumns+` from inventory where id=$1`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return inventory.Item{}, inventory.ErrNotFound
	}
	return item, err
}

func (s *Store) ListItems(ctx context.Context, itemType string) ([]inventory.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+inventoryColumns+`
		from inventory
		where $1 = '' or item_type = $1
		order by item_type, item_name
	`, itemType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectItems(rows)
}

func (s *Store) ListLowStock(ctx context.Context) ([]inventory.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+inventoryColumns+`
		from inventory
		where quantity <= reorder_level
		order by quantity
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectItems(rows)
}

// Adjust applies the signed delta with a single conditional update so that
// two concurrent removals cannot both pass a pre-check and drive the
// quantity negative. The transaction row is appended in the same DB
// transaction.
func (s *Store) Adjust(ctx context.Context, itemID string, delta int64, staffID, notes string) (int64, error) {
	if delta == 0 {
		return 0, fmt.Errorf("%w: adjustment must be non-zero", inventory.ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var newQuantity int64
	err = tx.QueryRowContext(ctx, `
		update inventory
		set quantity = quantity + $2, last_restocked = now()
		where id = $1 and quantity + $2 >= 0
		returning quantity
	`, itemID, delta).Scan(&newQuantity)
	if errors.Is(err, sql.ErrNoRows) {
		// Either the item is missing or the guard rejected the delta.
		var exists int
		if lookupErr := tx.QueryRowContext(ctx, `select 1 from inventory where id=$1`, itemID).Scan(&exists); lookupErr != nil {
			if errors.Is(lookupErr, sql.ErrNoRows) {
				return 0, inventory.ErrNotFound
			}
			return 0, lookupErr
		}
		return 0, inventory.ErrInsufficientStock
	}
	if err != nil {
		return 0, err
	}

	direction := inventory.DirectionAdd
	magnitude := delta
	if delta < 0 {
		direction = inventory.DirectionRemove
		magnitude = -delta
	}
	if _, err := tx.ExecContext(ctx, `
		insert into inventory_transactions (id, inventory_id, transaction_type, quantity, staff_id, notes)
		values ($1,$2,$3,$4,$5,$6)
	`, ids.New(), itemID, direction, magnitude, nullIfEmpty(staffID), nullIfEmpty(notes)); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return newQuantity, nil
}

func (s *Store) Transactions(ctx context.Context, itemID string) ([]inventory.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, inventory_id, transaction_type, quantity,
			coalesce(staff_id,''), coalesce(notes,''), transaction_date
		from inventory_transactions
		where $1 = '' or inventory_id = $1
		order by transaction_date desc
	`, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []inventory.Transaction
	for rows.Next() {
		var t inventory.Transaction
		if err := rows.Scan(&t.ID, &t.ItemID, &t.Direction, &t.Quantity, &t.StaffID, &t.Notes, &t.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (inventory.Item, error) {
	var (
		item          inventory.Item
		lastRestocked time.Time
	)
	err := row.Scan(&item.ID, &item.Name, &item.Type, &item.Category, &item.Quantity,
		&item.Unit, &item.ReorderLevel, &item.Supplier, &item.Location, &item.Notes,
		&lastRestocked, &item.CreatedAt)
	if err != nil {
		return inventory.Item{}, err
	}
	if lastRestocked.Unix() != 0 {
		item.LastRestocked = lastRestocked
	}
	return item, nil
}

func collectItems(rows *sql.Rows) ([]inventory.Item, error) {
	var result []inventory.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
