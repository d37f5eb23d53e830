package stock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/pharmstock/pharmstock/internal/platform/db"
)

// defaultMinimumStock seeds records created implicitly by a movement
// against a (drug, department) pair that has no row yet.
const defaultMinimumStock = 10

type Service struct {
	repo   Repository
	txRepo TransactionRepository
	tx     db.Transactor
	logger zerolog.Logger
}

func NewService(repo Repository, txRepo TransactionRepository, tx db.Transactor, logger zerolog.Logger) *Service {
	return &Service{repo: repo, txRepo: txRepo, tx: tx, logger: logger}
}

func (s *Service) GetRecord(ctx context.Context, id uuid.UUID) (*Record, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListRecords(ctx context.Context, department string, lowOnly bool, limit, offset int) ([]*Record, int, error) {
	return s.repo.List(ctx, department, lowOnly, limit, offset)
}

func (s *Service) ListTransactions(ctx context.Context, stockID uuid.UUID, limit, offset int) ([]*Transaction, int, error) {
	if _, err := s.repo.GetByID(ctx, stockID); err != nil {
		return nil, 0, err
	}
	return s.txRepo.ListByStock(ctx, stockID, limit, offset)
}

// Adjust applies a signed quantity delta to the record for the given
// (drug, department), creating the record when none exists, and appends
// a ledger entry. The update and the entry commit or roll back together.
// Deltas that would take the quantity negative are clamped to zero.
func (s *Service) Adjust(ctx context.Context, actorID uuid.UUID, req *AdjustRequest) (*Record, error) {
	var rec *Record
	var before, newQty int
	var reference string

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		rec, err = s.repo.GetByDrugAndDepartment(ctx, req.DrugID, req.Department)
		if errors.Is(err, ErrNotFound) {
			rec = &Record{
				DrugID:       req.DrugID,
				Department:   req.Department,
				MinimumStock: defaultMinimumStock,
				TotalValue:   decimal.Zero,
			}
			err = s.repo.Create(ctx, rec)
		}
		if err != nil {
			return err
		}

		before = rec.TotalQty
		newQty = before + req.Quantity
		if newQty < 0 {
			newQty = 0
		}

		// Keep value consistent with the per-unit price implied by the
		// current record. An empty record adjusts at zero value.
		unitPrice := decimal.Zero
		if before > 0 {
			unitPrice = rec.TotalValue.Div(decimal.NewFromInt(int64(before))).Round(2)
		}
		rec.TotalQty = newQty
		rec.TotalValue = unitPrice.Mul(decimal.NewFromInt(int64(newQty))).Round(2)
		if err := s.repo.UpdateQuantity(ctx, rec); err != nil {
			return err
		}

		reference = req.Reference
		if reference == "" {
			reference = fmt.Sprintf("ADJ_%d", time.Now().Unix())
		}
		note := req.Note
		if note == nil || strings.TrimSpace(*note) == "" {
			manual := "Manual adjustment"
			note = &manual
		}

		qty := req.Quantity
		if qty < 0 {
			qty = -qty
		}
		entry := &Transaction{
			StockID:   rec.ID,
			UserID:    actorID,
			Type:      req.Type,
			Quantity:  qty,
			BeforeQty: before,
			AfterQty:  newQty,
			UnitPrice: unitPrice,
			Reference: reference,
			Note:      note,
		}
		return s.txRepo.Create(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("stock_id", rec.ID.String()).
		Str("tx_type", string(req.Type)).
		Int("before_qty", before).
		Int("after_qty", newQty).
		Str("reference", reference).
		Msg("stock adjusted")

	if rec.LowStock() {
		s.logger.Warn().
			Str("stock_id", rec.ID.String()).
			Int("total_qty", rec.TotalQty).
			Int("minimum_stock", rec.MinimumStock).
			Msg("stock at or below minimum")
	}
	return rec, nil
}
