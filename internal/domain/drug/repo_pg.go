package drug

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

// price_per_box is selected as text so decimals round-trip without a
// float conversion.
const drugCols = `id, hospital_drug_code, name, generic_name, dosage_form, strength, unit,
	package_size, price_per_box::text, category, notes, is_active, created_at, updated_at`

func scanVariant(row pgx.Row) (*Variant, error) {
	var v Variant
	var price string
	err := row.Scan(&v.ID, &v.HospitalDrugCode, &v.Name, &v.GenericName, &v.DosageForm,
		&v.Strength, &v.Unit, &v.PackageSize, &price, &v.Category, &v.Notes,
		&v.IsActive, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, err
	}
	v.PricePerBox, err = decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("parse stored price %q: %w", price, err)
	}
	return &v, nil
}

func collectVariants(rows pgx.Rows) ([]*Variant, error) {
	defer rows.Close()
	var out []*Variant
	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// translateErr maps constraint failures onto the domain error types so
// callers do not read pg error codes.
func translateErr(op string, v *Variant, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			if v != nil {
				return &ConflictError{Code: v.HospitalDrugCode, Price: v.PricePerBox}
			}
			return &StorageError{Op: op, Err: err}
		case pgForeignKeyViolation:
			if pgErr.ConstraintName == "stock_transaction_user_id_fkey" ||
				pgErr.ConstraintName == "drug_created_by_fkey" {
				return &StorageError{Op: op, ActorReference: true, Err: err}
			}
		}
	}
	return &StorageError{Op: op, Err: err}
}

func (r *repoPG) FindVariantsByCode(ctx context.Context, code string) ([]*Variant, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+drugCols+` FROM drug
		WHERE hospital_drug_code = $1 AND is_active
		ORDER BY price_per_box ASC, created_at ASC`, code)
	if err != nil {
		return nil, &StorageError{Op: "find variants", Err: err}
	}
	return collectVariants(rows)
}

func (r *repoPG) FindSimilarCodes(ctx context.Context, prefix, exclude string, limit int) ([]CodeSuggestion, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT hospital_drug_code, name, price_per_box::text FROM drug
		WHERE hospital_drug_code ILIKE $1 || '%'
		  AND hospital_drug_code <> $2
		  AND is_active
		ORDER BY hospital_drug_code ASC, price_per_box ASC
		LIMIT $3`, prefix, exclude, limit)
	if err != nil {
		return nil, &StorageError{Op: "find similar codes", Err: err}
	}
	defer rows.Close()
	var out []CodeSuggestion
	for rows.Next() {
		var s CodeSuggestion
		var price string
		if err := rows.Scan(&s.Code, &s.Name, &price); err != nil {
			return nil, err
		}
		if s.PricePerBox, err = decimal.NewFromString(price); err != nil {
			return nil, &StorageError{Op: "find similar codes", Err: err}
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *repoPG) FindByCodeAndPrice(ctx context.Context, code string, price decimal.Decimal, excludeID *uuid.UUID) (*Variant, error) {
	q := `SELECT ` + drugCols + ` FROM drug
		WHERE hospital_drug_code = $1 AND price_per_box = $2::numeric AND is_active`
	args := []interface{}{code, price.StringFixed(2)}
	if excludeID != nil {
		q += ` AND id <> $3`
		args = append(args, *excludeID)
	}
	v, err := scanVariant(r.conn(ctx).QueryRow(ctx, q, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &StorageError{Op: "find by code and price", Err: err}
	}
	return v, nil
}

func (r *repoPG) CountActiveByCode(ctx context.Context, code string) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM drug WHERE hospital_drug_code = $1 AND is_active`, code).Scan(&n)
	if err != nil {
		return 0, &StorageError{Op: "count variants", Err: err}
	}
	return n, nil
}

func (r *repoPG) Create(ctx context.Context, v *Variant) error {
	v.ID = uuid.New()
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO drug (id, hospital_drug_code, name, generic_name, dosage_form, strength,
			unit, package_size, price_per_box, category, notes, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9::numeric,$10,$11,TRUE)
		RETURNING created_at, updated_at`,
		v.ID, v.HospitalDrugCode, v.Name, v.GenericName, v.DosageForm, v.Strength,
		v.Unit, v.PackageSize, v.PricePerBox.StringFixed(2), v.Category, v.Notes)
	if err := row.Scan(&v.CreatedAt, &v.UpdatedAt); err != nil {
		return translateErr("create drug", v, err)
	}
	v.IsActive = true
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Variant, error) {
	v, err := scanVariant(r.conn(ctx).QueryRow(ctx,
		`SELECT `+drugCols+` FROM drug WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &StorageError{Op: "get drug", Err: err}
	}
	return v, nil
}

func (r *repoPG) Update(ctx context.Context, v *Variant) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE drug SET name=$2, generic_name=$3, dosage_form=$4, strength=$5, unit=$6,
			package_size=$7, price_per_box=$8::numeric, category=$9, notes=$10, updated_at=NOW()
		WHERE id = $1 AND is_active`,
		v.ID, v.Name, v.GenericName, v.DosageForm, v.Strength, v.Unit,
		v.PackageSize, v.PricePerBox.StringFixed(2), v.Category, v.Notes)
	if err != nil {
		return translateErr("update drug", v, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Deactivate(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE drug SET is_active = FALSE, updated_at = NOW() WHERE id = $1 AND is_active`, id)
	if err != nil {
		return &StorageError{Op: "deactivate drug", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Search(ctx context.Context, query, category string, limit, offset int) ([]*Variant, int, error) {
	where := `WHERE is_active`
	args := []interface{}{}
	n := 0
	if query != "" {
		n++
		where += fmt.Sprintf(` AND (hospital_drug_code ILIKE '%%' || $%d || '%%'
			OR name ILIKE '%%' || $%d || '%%'
			OR generic_name ILIKE '%%' || $%d || '%%')`, n, n, n)
		args = append(args, query)
	}
	if category != "" {
		n++
		where += fmt.Sprintf(` AND category = $%d`, n)
		args = append(args, category)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM drug `+where, args...).Scan(&total); err != nil {
		return nil, 0, &StorageError{Op: "search drugs", Err: err}
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx, fmt.Sprintf(
		`SELECT %s FROM drug %s ORDER BY hospital_drug_code ASC, price_per_box ASC LIMIT $%d OFFSET $%d`,
		drugCols, where, n+1, n+2), args...)
	if err != nil {
		return nil, 0, &StorageError{Op: "search drugs", Err: err}
	}
	items, err := collectVariants(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
