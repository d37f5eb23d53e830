package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/pharmstock/pharmstock/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const stockCols = `id, drug_id, department, total_qty, reserved_qty, minimum_stock,
	total_value::text, last_updated, created_at`

func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	var value string
	err := row.Scan(&rec.ID, &rec.DrugID, &rec.Department, &rec.TotalQty,
		&rec.ReservedQty, &rec.MinimumStock, &value, &rec.LastUpdated, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	rec.TotalValue, err = decimal.NewFromString(value)
	if err != nil {
		return nil, fmt.Errorf("parse stored value %q: %w", value, err)
	}
	return &rec, nil
}

func (r *repoPG) Create(ctx context.Context, rec *Record) error {
	rec.ID = uuid.New()
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO stock (id, drug_id, department, total_qty, minimum_stock, total_value)
		VALUES ($1,$2,$3,$4,$5,$6::numeric)
		RETURNING last_updated, created_at`,
		rec.ID, rec.DrugID, rec.Department, rec.TotalQty, rec.MinimumStock,
		rec.TotalValue.StringFixed(2))
	return row.Scan(&rec.LastUpdated, &rec.CreatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	rec, err := scanRecord(r.conn(ctx).QueryRow(ctx,
		`SELECT `+stockCols+` FROM stock WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

func (r *repoPG) GetByDrugAndDepartment(ctx context.Context, drugID uuid.UUID, department string) (*Record, error) {
	rec, err := scanRecord(r.conn(ctx).QueryRow(ctx,
		`SELECT `+stockCols+` FROM stock WHERE drug_id = $1 AND department = $2`,
		drugID, department))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

func (r *repoPG) UpdateQuantity(ctx context.Context, rec *Record) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE stock SET total_qty = $2, total_value = $3::numeric, last_updated = NOW()
		WHERE id = $1`,
		rec.ID, rec.TotalQty, rec.TotalValue.StringFixed(2))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, department string, lowOnly bool, limit, offset int) ([]*Record, int, error) {
	// Records of deactivated drug variants stay in the table for the
	// ledger but drop out of listings.
	from := `FROM stock s JOIN drug d ON d.id = s.drug_id AND d.is_active
		WHERE s.department = $1`
	if lowOnly {
		from += ` AND s.minimum_stock > 0 AND s.total_qty <= s.minimum_stock`
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) `+from, department).Scan(&total); err != nil {
		return nil, 0, err
	}

	cols := `s.id, s.drug_id, s.department, s.total_qty, s.reserved_qty, s.minimum_stock,
		s.total_value::text, s.last_updated, s.created_at`
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+cols+` `+from+` ORDER BY s.last_updated DESC LIMIT $2 OFFSET $3`,
		department, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, rec)
	}
	return out, total, rows.Err()
}

type txRepoPG struct{ pool *pgxpool.Pool }

func NewTransactionRepoPG(pool *pgxpool.Pool) TransactionRepository {
	return &txRepoPG{pool: pool}
}

func (r *txRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const txCols = `id, stock_id, user_id, tx_type, quantity, before_qty, after_qty,
	unit_price::text, reference, note, created_at`

func scanTransaction(row pgx.Row) (*Transaction, error) {
	var t Transaction
	var price string
	err := row.Scan(&t.ID, &t.StockID, &t.UserID, &t.Type, &t.Quantity,
		&t.BeforeQty, &t.AfterQty, &price, &t.Reference, &t.Note, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	t.UnitPrice, err = decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("parse stored price %q: %w", price, err)
	}
	return &t, nil
}

func (r *txRepoPG) Create(ctx context.Context, t *Transaction) error {
	t.ID = uuid.New()
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO stock_transaction (id, stock_id, user_id, tx_type, quantity,
			before_qty, after_qty, unit_price, reference, note)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8::numeric,$9,$10)
		RETURNING created_at`,
		t.ID, t.StockID, t.UserID, t.Type, t.Quantity, t.BeforeQty, t.AfterQty,
		t.UnitPrice.StringFixed(2), t.Reference, t.Note)
	return row.Scan(&t.CreatedAt)
}

func (r *txRepoPG) ListByStock(ctx context.Context, stockID uuid.UUID, limit, offset int) ([]*Transaction, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM stock_transaction WHERE stock_id = $1`, stockID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+txCols+` FROM stock_transaction WHERE stock_id = $1
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, stockID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []*Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	return out, total, rows.Err()
}
