package drug

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/pharmstock/pharmstock/internal/domain/stock"
	"github.com/pharmstock/pharmstock/internal/platform/db"
)

const (
	// maxSuggestions caps the similar-code hints returned on a resolve.
	maxSuggestions = 5
	// suggestionPrefixLen is how many leading characters feed the
	// similar-code lookup.
	suggestionPrefixLen = 3
	// defaultMinimumStock applies when a creation omits the threshold.
	defaultMinimumStock = 10
)

// maxPricePerBox is the numeric(8,2) ceiling of the price column.
var maxPricePerBox = decimal.RequireFromString("999999.99")

type Service struct {
	repo      Repository
	stockRepo stock.Repository
	txRepo    stock.TransactionRepository
	tx        db.Transactor
	logger    zerolog.Logger
}

func NewService(repo Repository, stockRepo stock.Repository, txRepo stock.TransactionRepository, tx db.Transactor, logger zerolog.Logger) *Service {
	return &Service{repo: repo, stockRepo: stockRepo, txRepo: txRepo, tx: tx, logger: logger}
}

func validateCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "", &ValidationError{Fields: []FieldError{{Field: "code", Message: "code is required"}}}
	}
	if len(code) > 50 {
		return "", &ValidationError{Fields: []FieldError{{Field: "code", Message: "code must be at most 50 characters"}}}
	}
	return code, nil
}

// similarCodes looks up advisory hints for codes near the one typed.
// A lookup miss is logged and swallowed, hints never fail a resolve.
func (s *Service) similarCodes(ctx context.Context, code string) []CodeSuggestion {
	prefix := code
	if len(prefix) > suggestionPrefixLen {
		prefix = prefix[:suggestionPrefixLen]
	}
	suggestions, err := s.repo.FindSimilarCodes(ctx, prefix, code, maxSuggestions)
	if err != nil {
		s.logger.Warn().Err(err).Str("code", code).Msg("similar code lookup failed")
		return nil
	}
	return suggestions
}

// Resolve answers what a hospital drug code currently means: whether it
// exists, which price variants it carries, and what a new entry under
// the same code could look like. Available is always true because an
// occupied code is a variant opportunity, not an error.
func (s *Service) Resolve(ctx context.Context, code string) (*Resolution, error) {
	code, err := validateCode(code)
	if err != nil {
		return nil, err
	}

	variants, err := s.repo.FindVariantsByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	res := &Resolution{
		Code:        code,
		Available:   true,
		Exists:      len(variants) > 0,
		Drugs:       make([]VariantSummary, 0, len(variants)),
		Suggestions: s.similarCodes(ctx, code),
	}
	res.CanCreateVariant = res.Exists

	if len(variants) == 0 {
		res.Message = "code is unused"
		return res, nil
	}

	min, max := variants[0].PricePerBox, variants[0].PricePerBox
	for _, v := range variants {
		res.Drugs = append(res.Drugs, v.Summary())
		if v.PricePerBox.LessThan(min) {
			min = v.PricePerBox
		}
		if v.PricePerBox.GreaterThan(max) {
			max = v.PricePerBox
		}
	}

	// Variants arrive cheapest first, so the head is the template.
	template := variants[0].Summary()
	res.TemplateDrug = &template
	res.PriceRange = &PriceRange{Min: min, Max: max, Count: len(variants)}
	res.Message = fmt.Sprintf("code has %d active price variant(s)", len(variants))
	return res, nil
}

// CheckCode verifies that (code, price) is free among active variants.
// A non-nil excludeID makes the check usable for edits, where the row
// must not collide with itself.
func (s *Service) CheckCode(ctx context.Context, code string, price decimal.Decimal, excludeID *uuid.UUID) error {
	code = strings.ToUpper(strings.TrimSpace(code))
	existing, err := s.repo.FindByCodeAndPrice(ctx, code, price, excludeID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return &ConflictError{Code: existing.HospitalDrugCode, Price: existing.PricePerBox}
}

// ResolveBulk resolves a batch of codes. Validation is all-or-nothing:
// one malformed code rejects the whole batch with a ValidationError
// naming every offender, and no per-code results are produced.
func (s *Service) ResolveBulk(ctx context.Context, req *BulkCheckRequest) (*BulkCheckResult, error) {
	verr := &ValidationError{}
	codes := make([]string, len(req.Codes))
	for i, raw := range req.Codes {
		code, err := validateCode(raw)
		if err != nil {
			verr.Add(fmt.Sprintf("codes[%d]", i), "must be 1 to 50 characters")
			continue
		}
		codes[i] = code
	}
	if verr.HasErrors() {
		return nil, verr
	}

	result := &BulkCheckResult{Success: true, Results: make([]BulkCodeResult, 0, len(codes))}
	for _, code := range codes {
		variants, err := s.repo.FindVariantsByCode(ctx, code)
		if err != nil {
			return nil, err
		}

		entry := BulkCodeResult{
			Code:         code,
			Available:    true,
			Exists:       len(variants) > 0,
			VariantCount: len(variants),
			Drugs:        make([]VariantSummary, 0, len(variants)),
		}
		entry.CanCreateVariant = entry.Exists
		for _, v := range variants {
			entry.Drugs = append(entry.Drugs, v.Summary())
		}
		if len(variants) > 0 {
			min, max := variants[0].PricePerBox, variants[0].PricePerBox
			for _, v := range variants {
				if v.PricePerBox.LessThan(min) {
					min = v.PricePerBox
				}
				if v.PricePerBox.GreaterThan(max) {
					max = v.PricePerBox
				}
			}
			entry.PriceRange = &PriceRange{Min: min, Max: max, Count: len(variants)}
			result.Summary.ExistingCodes++
			result.Summary.TotalVariants += len(variants)
		} else {
			result.Summary.NewCodes++
		}
		result.Results = append(result.Results, entry)
	}
	result.Summary.Total = len(result.Results)
	return result, nil
}

func (s *Service) validateCreate(req *CreateRequest) (decimal.Decimal, Department, error) {
	verr := &ValidationError{}

	code := strings.ToUpper(strings.TrimSpace(req.HospitalDrugCode))
	if code == "" {
		verr.Add("hospitalDrugCode", "code is required")
	} else if len(code) > 50 {
		verr.Add("hospitalDrugCode", "code must be at most 50 characters")
	}
	if strings.TrimSpace(req.Name) == "" {
		verr.Add("name", "name is required")
	}
	if !ValidDosageForm(req.DosageForm) {
		verr.Add("dosageForm", fmt.Sprintf("unknown dosage form %q", req.DosageForm))
	}
	if !ValidCategory(req.Category) {
		verr.Add("category", fmt.Sprintf("unknown category %q", req.Category))
	}
	if strings.TrimSpace(req.Unit) == "" {
		verr.Add("unit", "unit is required")
	}

	price, err := decimal.NewFromString(req.PricePerBox)
	if err != nil {
		verr.Add("pricePerBox", "must be a decimal number")
	} else if price.IsNegative() {
		verr.Add("pricePerBox", "must not be negative")
	} else if price.GreaterThan(maxPricePerBox) {
		verr.Add("pricePerBox", "must not exceed 999999.99")
	} else if price.Exponent() < -2 {
		verr.Add("pricePerBox", "at most two decimal places")
	}

	dept := Department(req.Department)
	if !dept.Valid() {
		verr.Add("department", fmt.Sprintf("unknown department %q", req.Department))
	}
	if req.InitialQuantity < 0 {
		verr.Add("initialQuantity", "must not be negative")
	}
	if req.MinimumStock == nil {
		min := defaultMinimumStock
		req.MinimumStock = &min
	} else if *req.MinimumStock < 0 {
		verr.Add("minimumStock", "must not be negative")
	}

	req.Notes = normalizeNotes(req.Notes)
	if req.Notes != nil && len(*req.Notes) > 1000 {
		verr.Add("notes", "at most 1000 characters")
	}

	if verr.HasErrors() {
		return decimal.Zero, "", verr
	}
	req.HospitalDrugCode = code
	return price, dept, nil
}

// normalizeNotes trims free-text notes and coerces blanks to nil.
func normalizeNotes(notes *string) *string {
	if notes == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*notes)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// Create registers a new drug variant atomically: the conflict check is
// re-run inside the transaction, the drug row is inserted, a stock
// record is opened in the requesting department carrying the initial
// quantity, a zeroed record is opened in the counterpart department,
// and a TRANSFER_IN ledger entry records any non-zero initial intake.
func (s *Service) Create(ctx context.Context, actorID uuid.UUID, req *CreateRequest) (*CreateResult, error) {
	price, dept, err := s.validateCreate(req)
	if err != nil {
		return nil, err
	}

	var result *CreateResult
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.CheckCode(ctx, req.HospitalDrugCode, price, nil); err != nil {
			return err
		}
		siblings, err := s.repo.CountActiveByCode(ctx, req.HospitalDrugCode)
		if err != nil {
			return err
		}

		v := &Variant{
			HospitalDrugCode: req.HospitalDrugCode,
			Name:             strings.TrimSpace(req.Name),
			GenericName:      req.GenericName,
			DosageForm:       req.DosageForm,
			Strength:         req.Strength,
			Unit:             strings.TrimSpace(req.Unit),
			PackageSize:      req.PackageSize,
			PricePerBox:      price,
			Category:         req.Category,
			Notes:            req.Notes,
		}
		if err := s.repo.Create(ctx, v); err != nil {
			return err
		}

		qty := req.InitialQuantity
		primary := &stock.Record{
			DrugID:       v.ID,
			Department:   string(dept),
			TotalQty:     qty,
			MinimumStock: *req.MinimumStock,
			TotalValue:   price.Mul(decimal.NewFromInt(int64(qty))).Round(2),
		}
		if err := s.stockRepo.Create(ctx, primary); err != nil {
			return translateErr("create stock", v, err)
		}

		// The counterpart department starts fully zeroed; its threshold
		// is configured when stock actually moves there.
		secondary := &stock.Record{
			DrugID:       v.ID,
			Department:   string(dept.Other()),
			TotalQty:     0,
			MinimumStock: 0,
			TotalValue:   decimal.Zero,
		}
		if err := s.stockRepo.Create(ctx, secondary); err != nil {
			return translateErr("create stock", v, err)
		}

		if qty > 0 {
			note := fmt.Sprintf("Initial stock - %s", v.Name)
			if siblings > 0 {
				note = fmt.Sprintf("Initial stock - %s (price %s)", v.Name, price.StringFixed(2))
			}
			entry := &stock.Transaction{
				StockID:   primary.ID,
				UserID:    actorID,
				Type:      stock.TxTransferIn,
				Quantity:  qty,
				BeforeQty: 0,
				AfterQty:  qty,
				UnitPrice: price,
				Reference: fmt.Sprintf("INITIAL_%s_%s", v.HospitalDrugCode, v.ID),
				Note:      &note,
			}
			if err := s.txRepo.Create(ctx, entry); err != nil {
				return translateErr("record initial intake", v, err)
			}
		}

		result = &CreateResult{
			ID:            primary.ID,
			DrugID:        v.ID,
			Department:    dept,
			TotalQuantity: primary.TotalQty,
			MinimumStock:  primary.MinimumStock,
			TotalValue:    primary.TotalValue,
			LastUpdated:   primary.LastUpdated,
			Drug:          v,
			IsVariant:     siblings > 0,
			VariantCount:  siblings + 1,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("drug_id", result.Drug.ID.String()).
		Str("code", result.Drug.HospitalDrugCode).
		Str("price", result.Drug.PricePerBox.StringFixed(2)).
		Int("variant_count", result.VariantCount).
		Msg("drug variant created")
	return result, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Variant, error) {
	return s.repo.GetByID(ctx, id)
}

// Update edits a variant. A price change re-runs the conflict check
// excluding the variant's own row.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req *UpdateRequest) (*Variant, error) {
	v, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !v.IsActive {
		return nil, ErrNotFound
	}

	verr := &ValidationError{}
	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			verr.Add("name", "name must not be empty")
		} else {
			v.Name = strings.TrimSpace(*req.Name)
		}
	}
	if req.GenericName != nil {
		v.GenericName = req.GenericName
	}
	if req.DosageForm != nil {
		if !ValidDosageForm(*req.DosageForm) {
			verr.Add("dosageForm", fmt.Sprintf("unknown dosage form %q", *req.DosageForm))
		} else {
			v.DosageForm = *req.DosageForm
		}
	}
	if req.Strength != nil {
		v.Strength = req.Strength
	}
	if req.Unit != nil {
		if strings.TrimSpace(*req.Unit) == "" {
			verr.Add("unit", "unit must not be empty")
		} else {
			v.Unit = strings.TrimSpace(*req.Unit)
		}
	}
	if req.PackageSize != nil {
		v.PackageSize = req.PackageSize
	}
	if req.Category != nil {
		if !ValidCategory(*req.Category) {
			verr.Add("category", fmt.Sprintf("unknown category %q", *req.Category))
		} else {
			v.Category = *req.Category
		}
	}
	if req.Notes != nil {
		v.Notes = normalizeNotes(req.Notes)
		if v.Notes != nil && len(*v.Notes) > 1000 {
			verr.Add("notes", "at most 1000 characters")
		}
	}

	priceChanged := false
	if req.PricePerBox != nil {
		price, err := decimal.NewFromString(*req.PricePerBox)
		switch {
		case err != nil:
			verr.Add("pricePerBox", "must be a decimal number")
		case price.IsNegative():
			verr.Add("pricePerBox", "must not be negative")
		case price.GreaterThan(maxPricePerBox):
			verr.Add("pricePerBox", "must not exceed 999999.99")
		case price.Exponent() < -2:
			verr.Add("pricePerBox", "at most two decimal places")
		default:
			priceChanged = !price.Equal(v.PricePerBox)
			v.PricePerBox = price
		}
	}
	if verr.HasErrors() {
		return nil, verr
	}

	if priceChanged {
		if err := s.CheckCode(ctx, v.HospitalDrugCode, v.PricePerBox, &v.ID); err != nil {
			return nil, err
		}
	}
	if err := s.repo.Update(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// Deactivate soft-deletes a variant, freeing its (code, price) slot.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("drug_id", id.String()).Msg("drug variant deactivated")
	return nil
}

func (s *Service) Search(ctx context.Context, query, category string, limit, offset int) ([]*Variant, int, error) {
	return s.repo.Search(ctx, query, category, limit, offset)
}
