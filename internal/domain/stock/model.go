package stock

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TxType classifies a stock transaction.
type TxType string

const (
	TxTransferIn  TxType = "TRANSFER_IN"
	TxTransferOut TxType = "TRANSFER_OUT"
	TxAdjustment  TxType = "ADJUSTMENT"
)

func (t TxType) Valid() bool {
	switch t {
	case TxTransferIn, TxTransferOut, TxAdjustment:
		return true
	}
	return false
}

// Record is the per-department on-hand quantity for one drug variant.
// Every variant owns exactly one record per department.
type Record struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	DrugID       uuid.UUID       `db:"drug_id" json:"drugId"`
	Department   string          `db:"department" json:"department"`
	TotalQty     int             `db:"total_qty" json:"totalQty"`
	ReservedQty  int             `db:"reserved_qty" json:"reservedQty"`
	MinimumStock int             `db:"minimum_stock" json:"minimumStock"`
	TotalValue   decimal.Decimal `db:"total_value" json:"totalValue"`
	LastUpdated  time.Time       `db:"last_updated" json:"lastUpdated"`
	CreatedAt    time.Time       `db:"created_at" json:"createdAt"`
}

// LowStock reports whether the on-hand quantity has fallen to or below
// the minimum threshold.
func (r *Record) LowStock() bool {
	return r.MinimumStock > 0 && r.TotalQty <= r.MinimumStock
}

// Available is the on-hand quantity not held by reservations.
func (r *Record) Available() int {
	return r.TotalQty - r.ReservedQty
}

// Transaction is one append-only movement against a stock record.
// BeforeQty and AfterQty pin the record's quantity around the movement
// so the ledger can be audited without replay.
type Transaction struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	StockID   uuid.UUID       `db:"stock_id" json:"stockId"`
	UserID    uuid.UUID       `db:"user_id" json:"userId"`
	Type      TxType          `db:"tx_type" json:"type"`
	Quantity  int             `db:"quantity" json:"quantity"`
	BeforeQty int             `db:"before_qty" json:"beforeQty"`
	AfterQty  int             `db:"after_qty" json:"afterQty"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unitPrice"`
	Reference string          `db:"reference" json:"reference"`
	Note      *string         `db:"note" json:"note,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"createdAt"`
}

// AdjustRequest applies a signed quantity delta to the stock record of
// one (drug, department) pair, creating the record on first movement.
type AdjustRequest struct {
	DrugID     uuid.UUID `json:"drugId" validate:"required"`
	Department string    `json:"department" validate:"required,oneof=PHARMACY OPD"`
	Quantity   int       `json:"quantity" validate:"required"`
	Type       TxType    `json:"type" validate:"required,oneof=TRANSFER_IN TRANSFER_OUT ADJUSTMENT"`
	Reference  string    `json:"reference,omitempty" validate:"omitempty,max=100"`
	Note       *string   `json:"note,omitempty" validate:"omitempty,max=500"`
}
