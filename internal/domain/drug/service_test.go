package drug

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/pharmstock/pharmstock/internal/domain/stock"
)

// -- Mock Repositories --

type mockRepo struct {
	variants map[uuid.UUID]*Variant
}

func newMockRepo() *mockRepo {
	return &mockRepo{variants: make(map[uuid.UUID]*Variant)}
}

func (m *mockRepo) add(code string, price string) *Variant {
	v := &Variant{
		ID:               uuid.New(),
		HospitalDrugCode: code,
		Name:             "Paracetamol 500mg",
		DosageForm:       "TAB",
		Unit:             "box",
		PricePerBox:      decimal.RequireFromString(price),
		Category:         "GENERAL",
		IsActive:         true,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}
	m.variants[v.ID] = v
	return v
}

func (m *mockRepo) FindVariantsByCode(_ context.Context, code string) ([]*Variant, error) {
	var out []*Variant
	for _, v := range m.variants {
		if v.HospitalDrugCode == code && v.IsActive {
			out = append(out, v)
		}
	}
	// cheapest first, as the real repo orders
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].PricePerBox.LessThan(out[i].PricePerBox) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (m *mockRepo) FindSimilarCodes(_ context.Context, prefix, exclude string, limit int) ([]CodeSuggestion, error) {
	var out []CodeSuggestion
	for _, v := range m.variants {
		if !v.IsActive || v.HospitalDrugCode == exclude {
			continue
		}
		if strings.HasPrefix(v.HospitalDrugCode, prefix) {
			out = append(out, CodeSuggestion{
				Code:        v.HospitalDrugCode,
				Name:        v.Name,
				PricePerBox: v.PricePerBox,
			})
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *mockRepo) FindByCodeAndPrice(_ context.Context, code string, price decimal.Decimal, excludeID *uuid.UUID) (*Variant, error) {
	for _, v := range m.variants {
		if excludeID != nil && v.ID == *excludeID {
			continue
		}
		if v.IsActive && v.HospitalDrugCode == code && v.PricePerBox.Equal(price) {
			return v, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepo) CountActiveByCode(_ context.Context, code string) (int, error) {
	n := 0
	for _, v := range m.variants {
		if v.IsActive && v.HospitalDrugCode == code {
			n++
		}
	}
	return n, nil
}

func (m *mockRepo) Create(_ context.Context, v *Variant) error {
	for _, existing := range m.variants {
		if existing.IsActive && existing.HospitalDrugCode == v.HospitalDrugCode &&
			existing.PricePerBox.Equal(v.PricePerBox) {
			return &ConflictError{Code: v.HospitalDrugCode, Price: v.PricePerBox}
		}
	}
	v.ID = uuid.New()
	v.IsActive = true
	v.CreatedAt = time.Now()
	v.UpdatedAt = time.Now()
	m.variants[v.ID] = v
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Variant, error) {
	v, ok := m.variants[id]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func (m *mockRepo) Update(_ context.Context, v *Variant) error {
	if _, ok := m.variants[v.ID]; !ok {
		return ErrNotFound
	}
	m.variants[v.ID] = v
	return nil
}

func (m *mockRepo) Deactivate(_ context.Context, id uuid.UUID) error {
	v, ok := m.variants[id]
	if !ok || !v.IsActive {
		return ErrNotFound
	}
	v.IsActive = false
	return nil
}

func (m *mockRepo) Search(_ context.Context, query, category string, limit, offset int) ([]*Variant, int, error) {
	var out []*Variant
	for _, v := range m.variants {
		if v.IsActive {
			out = append(out, v)
		}
	}
	return out, len(out), nil
}

type mockStockRepo struct {
	records map[uuid.UUID]*stock.Record
	failOn  string
}

func newMockStockRepo() *mockStockRepo {
	return &mockStockRepo{records: make(map[uuid.UUID]*stock.Record)}
}

func (m *mockStockRepo) Create(_ context.Context, rec *stock.Record) error {
	if m.failOn == rec.Department {
		return errors.New("insert failed")
	}
	rec.ID = uuid.New()
	rec.CreatedAt = time.Now()
	rec.LastUpdated = time.Now()
	m.records[rec.ID] = rec
	return nil
}

func (m *mockStockRepo) GetByID(_ context.Context, id uuid.UUID) (*stock.Record, error) {
	rec, ok := m.records[id]
	if !ok {
		return nil, stock.ErrNotFound
	}
	return rec, nil
}

func (m *mockStockRepo) GetByDrugAndDepartment(_ context.Context, drugID uuid.UUID, department string) (*stock.Record, error) {
	for _, rec := range m.records {
		if rec.DrugID == drugID && rec.Department == department {
			return rec, nil
		}
	}
	return nil, stock.ErrNotFound
}

func (m *mockStockRepo) UpdateQuantity(_ context.Context, rec *stock.Record) error {
	if _, ok := m.records[rec.ID]; !ok {
		return stock.ErrNotFound
	}
	m.records[rec.ID] = rec
	return nil
}

func (m *mockStockRepo) List(_ context.Context, department string, lowOnly bool, limit, offset int) ([]*stock.Record, int, error) {
	var out []*stock.Record
	for _, rec := range m.records {
		if rec.Department == department {
			out = append(out, rec)
		}
	}
	return out, len(out), nil
}

type mockTxRepo struct {
	entries []*stock.Transaction
}

func (m *mockTxRepo) Create(_ context.Context, t *stock.Transaction) error {
	t.ID = uuid.New()
	t.CreatedAt = time.Now()
	m.entries = append(m.entries, t)
	return nil
}

func (m *mockTxRepo) ListByStock(_ context.Context, stockID uuid.UUID, limit, offset int) ([]*stock.Transaction, int, error) {
	var out []*stock.Transaction
	for _, t := range m.entries {
		if t.StockID == stockID {
			out = append(out, t)
		}
	}
	return out, len(out), nil
}

// passTransactor runs the function directly; rollback is simulated by
// the caller inspecting the returned error.
type passTransactor struct{ calls int }

func (t *passTransactor) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	return fn(ctx)
}

func newTestService() (*Service, *mockRepo, *mockStockRepo, *mockTxRepo, *passTransactor) {
	repo := newMockRepo()
	stockRepo := newMockStockRepo()
	txRepo := &mockTxRepo{}
	tx := &passTransactor{}
	svc := NewService(repo, stockRepo, txRepo, tx, zerolog.Nop())
	return svc, repo, stockRepo, txRepo, tx
}

func intPtr(n int) *int { return &n }

func validCreateRequest() *CreateRequest {
	return &CreateRequest{
		HospitalDrugCode: "TAB001",
		Name:             "Paracetamol 500mg",
		DosageForm:       "TAB",
		Unit:             "box",
		PricePerBox:      "120.50",
		Category:         "GENERAL",
		InitialQuantity:  10,
		MinimumStock:     intPtr(5),
		Department:       "PHARMACY",
	}
}

// -- Resolve --

func TestResolveUnusedCode(t *testing.T) {
	svc, repo, _, _, _ := newTestService()
	repo.add("TAB002", "50.00")
	repo.add("TAB003", "60.00")
	repo.add("CAP001", "70.00")

	res, err := svc.Resolve(context.Background(), "tab001")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Code != "TAB001" {
		t.Errorf("Code = %q, want normalized TAB001", res.Code)
	}
	if !res.Available || res.Exists {
		t.Errorf("flags = available=%v exists=%v", res.Available, res.Exists)
	}
	if res.CanCreateVariant {
		t.Error("CanCreateVariant = true for an unused code")
	}
	if len(res.Drugs) != 0 {
		t.Errorf("Drugs = %d, want 0", len(res.Drugs))
	}
	if len(res.Suggestions) != 2 {
		t.Fatalf("Suggestions = %v, want the two TAB variants", res.Suggestions)
	}
	for _, s := range res.Suggestions {
		if s.Code == "TAB001" {
			t.Error("suggestions must exclude the queried code")
		}
		if !strings.HasPrefix(s.Code, "TAB") {
			t.Errorf("suggestion %q does not share the prefix", s.Code)
		}
		if s.Name == "" || s.PricePerBox.IsZero() {
			t.Errorf("suggestion %+v is missing name or price", s)
		}
	}
}

func TestResolveExistingCode(t *testing.T) {
	svc, repo, _, _, _ := newTestService()
	repo.add("TAB001", "200.00")
	repo.add("TAB001", "120.50")
	repo.add("TAB001", "150.00")
	repo.add("TAB999", "10.00")

	res, err := svc.Resolve(context.Background(), "TAB001")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.Exists {
		t.Fatal("Exists = false for occupied code")
	}
	if !res.Available || !res.CanCreateVariant {
		t.Error("occupied code must still be available for a new variant")
	}
	if len(res.Drugs) != 3 {
		t.Fatalf("Drugs = %d, want 3", len(res.Drugs))
	}
	if res.TemplateDrug == nil {
		t.Fatal("TemplateDrug is nil")
	}
	if !res.TemplateDrug.PricePerBox.Equal(decimal.RequireFromString("120.50")) {
		t.Errorf("template price = %s, want the cheapest 120.50", res.TemplateDrug.PricePerBox)
	}
	if res.PriceRange == nil {
		t.Fatal("PriceRange is nil")
	}
	if !res.PriceRange.Min.Equal(decimal.RequireFromString("120.50")) ||
		!res.PriceRange.Max.Equal(decimal.RequireFromString("200.00")) ||
		res.PriceRange.Count != 3 {
		t.Errorf("PriceRange = %+v", res.PriceRange)
	}
	// Hints come back for occupied codes too.
	if len(res.Suggestions) != 1 || res.Suggestions[0].Code != "TAB999" {
		t.Errorf("Suggestions = %v, want just TAB999", res.Suggestions)
	}
}

func TestResolveEmptyCode(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	_, err := svc.Resolve(context.Background(), "   ")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestResolveOversizedCode(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	_, err := svc.Resolve(context.Background(), strings.Repeat("A", 51))
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestResolveDeactivatedVariantsInvisible(t *testing.T) {
	svc, repo, _, _, _ := newTestService()
	v := repo.add("TAB001", "120.50")
	v.IsActive = false

	res, err := svc.Resolve(context.Background(), "TAB001")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Exists {
		t.Error("deactivated variants must not count as existing")
	}
}

// -- CheckCode --

func TestCheckCodeConflict(t *testing.T) {
	svc, repo, _, _, _ := newTestService()
	repo.add("TAB001", "120.50")

	err := svc.CheckCode(context.Background(), "TAB001", decimal.RequireFromString("120.50"), nil)
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("err = %v, want ConflictError", err)
	}
	if conflict.Code != "TAB001" {
		t.Errorf("conflict code = %q", conflict.Code)
	}

	if err := svc.CheckCode(context.Background(), "TAB001", decimal.RequireFromString("130.00"), nil); err != nil {
		t.Errorf("distinct price should pass: %v", err)
	}
}

func TestCheckCodeExcludesOwnRow(t *testing.T) {
	svc, repo, _, _, _ := newTestService()
	v := repo.add("TAB001", "120.50")

	// Editing the variant back to its own price must not self-conflict.
	if err := svc.CheckCode(context.Background(), "TAB001", v.PricePerBox, &v.ID); err != nil {
		t.Errorf("self-exclusion failed: %v", err)
	}
}

// -- ResolveBulk --

func TestResolveBulkWholeBatchValidation(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	req := &BulkCheckRequest{Codes: []string{
		"TAB001",
		"",
		strings.Repeat("X", 51),
	}}

	_, err := svc.ResolveBulk(context.Background(), req)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	// One malformed code fails the batch; no per-code results come back.
	if len(verr.Fields) != 2 {
		t.Errorf("Fields = %+v, want the empty and oversized codes", verr.Fields)
	}
}

func TestResolveBulkSummary(t *testing.T) {
	svc, repo, _, _, _ := newTestService()
	repo.add("TAB001", "120.50")
	repo.add("TAB001", "150.00")
	repo.add("CAP001", "70.00")

	req := &BulkCheckRequest{Codes: []string{"tab001", "CAP001", "NEW001"}}
	res, err := svc.ResolveBulk(context.Background(), req)
	if err != nil {
		t.Fatalf("ResolveBulk: %v", err)
	}
	if !res.Success {
		t.Error("Success = false")
	}
	if len(res.Results) != 3 {
		t.Fatalf("Results = %d, want 3", len(res.Results))
	}

	first := res.Results[0]
	if first.Code != "TAB001" || !first.Exists || !first.CanCreateVariant || first.VariantCount != 2 {
		t.Errorf("TAB001 result = %+v", first)
	}
	if first.PriceRange == nil || !first.PriceRange.Min.Equal(decimal.RequireFromString("120.50")) ||
		!first.PriceRange.Max.Equal(decimal.RequireFromString("150.00")) {
		t.Errorf("TAB001 price range = %+v", first.PriceRange)
	}
	if len(first.Drugs) != 2 {
		t.Errorf("TAB001 drugs = %d, want 2", len(first.Drugs))
	}

	fresh := res.Results[2]
	if fresh.Code != "NEW001" || fresh.Exists || fresh.CanCreateVariant || fresh.VariantCount != 0 {
		t.Errorf("NEW001 result = %+v", fresh)
	}
	if !fresh.Available {
		t.Error("new codes stay available")
	}
	if fresh.PriceRange != nil {
		t.Errorf("NEW001 price range = %+v, want nil", fresh.PriceRange)
	}

	want := BulkSummary{Total: 3, NewCodes: 1, ExistingCodes: 2, TotalVariants: 3}
	if res.Summary != want {
		t.Errorf("Summary = %+v, want %+v", res.Summary, want)
	}
}

// -- Create --

func TestCreateFirstVariant(t *testing.T) {
	svc, repo, stockRepo, txRepo, tx := newTestService()
	actor := uuid.New()

	result, err := svc.Create(context.Background(), actor, validCreateRequest())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if tx.calls != 1 {
		t.Errorf("transactor calls = %d, want 1", tx.calls)
	}
	if result.IsVariant {
		t.Error("IsVariant = true for a fresh code")
	}
	if result.VariantCount != 1 {
		t.Errorf("VariantCount = %d, want 1", result.VariantCount)
	}
	if result.Drug.HospitalDrugCode != "TAB001" {
		t.Errorf("code = %q", result.Drug.HospitalDrugCode)
	}
	if result.DrugID != result.Drug.ID {
		t.Error("DrugID does not match the created drug")
	}
	if result.Department != DepartmentPharmacy {
		t.Errorf("department = %s", result.Department)
	}
	if len(repo.variants) != 1 {
		t.Fatalf("variants stored = %d", len(repo.variants))
	}

	// Both departments get a record; the requested one carries the
	// initial quantity and value, the other is zeroed.
	primary, err := stockRepo.GetByDrugAndDepartment(context.Background(), result.Drug.ID, "PHARMACY")
	if err != nil {
		t.Fatalf("primary stock: %v", err)
	}
	if primary.TotalQty != 10 {
		t.Errorf("primary qty = %d, want 10", primary.TotalQty)
	}
	if primary.MinimumStock != 5 {
		t.Errorf("primary minimum = %d, want 5", primary.MinimumStock)
	}
	if !primary.TotalValue.Equal(decimal.RequireFromString("1205.00")) {
		t.Errorf("primary value = %s, want 1205.00", primary.TotalValue)
	}
	if primary.ID != result.ID {
		t.Error("result id does not match the primary stock record")
	}
	if result.TotalQuantity != 10 || !result.TotalValue.Equal(primary.TotalValue) {
		t.Errorf("result stock view = qty %d value %s", result.TotalQuantity, result.TotalValue)
	}
	secondary, err := stockRepo.GetByDrugAndDepartment(context.Background(), result.Drug.ID, "OPD")
	if err != nil {
		t.Fatalf("secondary stock: %v", err)
	}
	if secondary.TotalQty != 0 || !secondary.TotalValue.IsZero() {
		t.Errorf("secondary = qty %d value %s, want zeroed", secondary.TotalQty, secondary.TotalValue)
	}
	if secondary.MinimumStock != 0 {
		t.Errorf("secondary minimum = %d, want 0", secondary.MinimumStock)
	}

	// The intake is on the ledger with the generated reference.
	if len(txRepo.entries) != 1 {
		t.Fatalf("ledger entries = %d, want 1", len(txRepo.entries))
	}
	entry := txRepo.entries[0]
	if entry.Type != stock.TxTransferIn {
		t.Errorf("entry type = %s", entry.Type)
	}
	if entry.BeforeQty != 0 || entry.AfterQty != 10 || entry.Quantity != 10 {
		t.Errorf("entry quantities = %+v", entry)
	}
	if entry.UserID != actor {
		t.Error("entry actor mismatch")
	}
	wantRef := "INITIAL_TAB001_" + result.Drug.ID.String()
	if entry.Reference != wantRef {
		t.Errorf("reference = %q, want %q", entry.Reference, wantRef)
	}
	if entry.Note == nil {
		t.Fatal("initial intake entry carries no note")
	}
	// A first variant is noted without a price, only siblings need the
	// disambiguation.
	if strings.Contains(*entry.Note, "price") {
		t.Errorf("note = %q, want no price mention for a first variant", *entry.Note)
	}
}

func TestCreateZeroQuantitySkipsLedger(t *testing.T) {
	svc, _, stockRepo, txRepo, _ := newTestService()
	req := validCreateRequest()
	req.InitialQuantity = 0

	result, err := svc.Create(context.Background(), uuid.New(), req)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(txRepo.entries) != 0 {
		t.Errorf("ledger entries = %d, want 0 for zero intake", len(txRepo.entries))
	}
	primary, _ := stockRepo.GetByID(context.Background(), result.ID)
	if primary.TotalQty != 0 || !primary.TotalValue.IsZero() {
		t.Errorf("primary = %+v, want zeroed", primary)
	}
}

func TestCreateSecondVariantSameCode(t *testing.T) {
	svc, repo, _, txRepo, _ := newTestService()
	repo.add("TAB001", "120.50")

	req := validCreateRequest()
	req.PricePerBox = "150.00"
	result, err := svc.Create(context.Background(), uuid.New(), req)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !result.IsVariant {
		t.Error("IsVariant = false with an existing sibling")
	}
	if result.VariantCount != 2 {
		t.Errorf("VariantCount = %d, want 2", result.VariantCount)
	}
	// The intake note names the price so siblings stay tellable apart.
	entry := txRepo.entries[0]
	if entry.Note == nil || !strings.Contains(*entry.Note, "150.00") {
		t.Errorf("note = %v, want the variant price named", entry.Note)
	}
}

func TestCreateDefaultsMinimumStock(t *testing.T) {
	svc, _, stockRepo, _, _ := newTestService()
	req := validCreateRequest()
	req.MinimumStock = nil

	result, err := svc.Create(context.Background(), uuid.New(), req)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if result.MinimumStock != 10 {
		t.Errorf("minimum stock = %d, want the default 10", result.MinimumStock)
	}
	primary, _ := stockRepo.GetByID(context.Background(), result.ID)
	if primary.MinimumStock != 10 {
		t.Errorf("primary minimum = %d, want 10", primary.MinimumStock)
	}
}

func TestCreatePriceTooLarge(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	req := validCreateRequest()
	req.PricePerBox = "1000000.00"

	_, err := svc.Create(context.Background(), uuid.New(), req)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if len(verr.Fields) != 1 || verr.Fields[0].Field != "pricePerBox" {
		t.Errorf("fields = %+v", verr.Fields)
	}
}

func TestCreateNormalizesNotes(t *testing.T) {
	svc, repo, _, _, _ := newTestService()
	req := validCreateRequest()
	blank := "   "
	req.Notes = &blank

	result, err := svc.Create(context.Background(), uuid.New(), req)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if result.Drug.Notes != nil {
		t.Errorf("notes = %q, want blank coerced to nil", *result.Drug.Notes)
	}

	req = validCreateRequest()
	req.PricePerBox = "130.00"
	padded := "  keep refrigerated  "
	req.Notes = &padded
	result, err = svc.Create(context.Background(), uuid.New(), req)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	stored, _ := repo.GetByID(context.Background(), result.Drug.ID)
	if stored.Notes == nil || *stored.Notes != "keep refrigerated" {
		t.Errorf("notes = %v, want trimmed", stored.Notes)
	}
}

func TestCreateConflict(t *testing.T) {
	svc, repo, stockRepo, txRepo, _ := newTestService()
	repo.add("TAB001", "120.50")

	_, err := svc.Create(context.Background(), uuid.New(), validCreateRequest())
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("err = %v, want ConflictError", err)
	}
	if len(stockRepo.records) != 0 || len(txRepo.entries) != 0 {
		t.Error("conflicting create must not touch stock")
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _, _, _, tx := newTestService()

	req := validCreateRequest()
	req.HospitalDrugCode = " "
	req.DosageForm = "NOPE"
	req.Category = "NOPE"
	req.PricePerBox = "12.345"
	req.Department = "WAREHOUSE"

	_, err := svc.Create(context.Background(), uuid.New(), req)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if len(verr.Fields) != 5 {
		t.Errorf("Fields = %+v, want 5 problems", verr.Fields)
	}
	if tx.calls != 0 {
		t.Error("validation failure must not open a transaction")
	}
}

func TestCreateNegativePrice(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	req := validCreateRequest()
	req.PricePerBox = "-1.00"
	_, err := svc.Create(context.Background(), uuid.New(), req)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestCreateStockFailureSurfaces(t *testing.T) {
	svc, _, stockRepo, _, _ := newTestService()
	stockRepo.failOn = "OPD"

	_, err := svc.Create(context.Background(), uuid.New(), validCreateRequest())
	var serr *StorageError
	if !errors.As(err, &serr) {
		t.Fatalf("err = %v, want StorageError", err)
	}
}

// -- Update --

func TestUpdatePriceChangeExcludesSelf(t *testing.T) {
	svc, repo, _, _, _ := newTestService()
	v := repo.add("TAB001", "120.50")

	// Writing the unchanged price back must not conflict with itself.
	price := "120.50"
	updated, err := svc.Update(context.Background(), v.ID, &UpdateRequest{PricePerBox: &price})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !updated.PricePerBox.Equal(decimal.RequireFromString("120.50")) {
		t.Errorf("price = %s", updated.PricePerBox)
	}
}

func TestUpdatePriceCollision(t *testing.T) {
	svc, repo, _, _, _ := newTestService()
	repo.add("TAB001", "120.50")
	v := repo.add("TAB001", "150.00")

	price := "120.50"
	_, err := svc.Update(context.Background(), v.ID, &UpdateRequest{PricePerBox: &price})
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("err = %v, want ConflictError", err)
	}
}

func TestUpdateFields(t *testing.T) {
	svc, repo, _, _, _ := newTestService()
	v := repo.add("TAB001", "120.50")

	name := "Paracetamol 500mg (new pack)"
	form := "CAP"
	updated, err := svc.Update(context.Background(), v.ID, &UpdateRequest{Name: &name, DosageForm: &form})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Name != name || updated.DosageForm != "CAP" {
		t.Errorf("updated = %+v", updated)
	}
}

func TestUpdatePriceTooLarge(t *testing.T) {
	svc, repo, _, _, _ := newTestService()
	v := repo.add("TAB001", "120.50")

	price := "1000000.00"
	_, err := svc.Update(context.Background(), v.ID, &UpdateRequest{PricePerBox: &price})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestUpdateNormalizesNotes(t *testing.T) {
	svc, repo, _, _, _ := newTestService()
	v := repo.add("TAB001", "120.50")
	existing := "old note"
	v.Notes = &existing

	blank := "   "
	updated, err := svc.Update(context.Background(), v.ID, &UpdateRequest{Notes: &blank})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Notes != nil {
		t.Errorf("notes = %q, want blank coerced to nil", *updated.Notes)
	}
}

func TestUpdateInvalidDosageForm(t *testing.T) {
	svc, repo, _, _, _ := newTestService()
	v := repo.add("TAB001", "120.50")

	form := "XYZ"
	_, err := svc.Update(context.Background(), v.ID, &UpdateRequest{DosageForm: &form})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

// -- Deactivate --

func TestDeactivateFreesSlot(t *testing.T) {
	svc, repo, _, _, _ := newTestService()
	v := repo.add("TAB001", "120.50")

	if err := svc.Deactivate(context.Background(), v.ID); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}

	// The (code, price) slot is reusable after the soft delete.
	if err := svc.CheckCode(context.Background(), "TAB001", decimal.RequireFromString("120.50"), nil); err != nil {
		t.Errorf("slot still occupied after deactivate: %v", err)
	}
	if err := svc.Deactivate(context.Background(), v.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second deactivate = %v, want ErrNotFound", err)
	}
}
