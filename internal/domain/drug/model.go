package drug

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Department identifies a stock-holding location in the hospital.
type Department string

const (
	DepartmentPharmacy Department = "PHARMACY"
	DepartmentOPD      Department = "OPD"
)

// Other returns the counterpart department. Every drug carries a stock
// record in both departments, so creating stock in one implies a zeroed
// record in the other.
func (d Department) Other() Department {
	if d == DepartmentPharmacy {
		return DepartmentOPD
	}
	return DepartmentPharmacy
}

func (d Department) Valid() bool {
	return d == DepartmentPharmacy || d == DepartmentOPD
}

// DosageForms lists the accepted dosage form codes.
var DosageForms = []string{
	"TAB", "CAP", "SYR", "SUS", "INJ", "SOL", "OIN", "GEL", "LOT", "SPR",
	"SUP", "ENE", "POW", "PWD", "CR", "BAG", "APP", "LVP", "MDI", "NAS",
	"SAC", "LIQ", "MIX",
}

// Categories lists the accepted drug category codes.
var Categories = []string{
	"GENERAL", "TABLET", "SYRUP", "INJECTION", "EXTEMP", "HAD", "NARCOTIC",
	"PSYCHIATRIC", "REFRIGERATED", "FLUID", "REFER", "ALERT", "CANCELLED",
}

var (
	dosageFormSet = toSet(DosageForms)
	categorySet   = toSet(Categories)
)

func toSet(vals []string) map[string]bool {
	m := make(map[string]bool, len(vals))
	for _, v := range vals {
		m[v] = true
	}
	return m
}

func ValidDosageForm(v string) bool { return dosageFormSet[v] }
func ValidCategory(v string) bool   { return categorySet[v] }

// Variant is one (code, price) pairing in the drug registry. The hospital
// drug code alone is not unique: the same code may appear at several
// prices, each row an independent variant. Among active rows the
// (code, price) pair is unique.
type Variant struct {
	ID               uuid.UUID       `db:"id" json:"id"`
	HospitalDrugCode string          `db:"hospital_drug_code" json:"hospitalDrugCode"`
	Name             string          `db:"name" json:"name"`
	GenericName      *string         `db:"generic_name" json:"genericName,omitempty"`
	DosageForm       string          `db:"dosage_form" json:"dosageForm"`
	Strength         *string         `db:"strength" json:"strength,omitempty"`
	Unit             string          `db:"unit" json:"unit"`
	PackageSize      *string         `db:"package_size" json:"packageSize,omitempty"`
	PricePerBox      decimal.Decimal `db:"price_per_box" json:"pricePerBox"`
	Category         string          `db:"category" json:"category"`
	Notes            *string         `db:"notes" json:"notes,omitempty"`
	IsActive         bool            `db:"is_active" json:"isActive"`
	CreatedAt        time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updatedAt"`
}

// VariantSummary is the trimmed shape returned to the client when
// resolving a code, enough to render a variant picker row.
type VariantSummary struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	GenericName *string         `json:"genericName,omitempty"`
	DosageForm  string          `json:"dosageForm"`
	Strength    *string         `json:"strength,omitempty"`
	Unit        string          `json:"unit"`
	PackageSize *string         `json:"packageSize,omitempty"`
	PricePerBox decimal.Decimal `json:"pricePerBox"`
	Category    string          `json:"category"`
}

func (v *Variant) Summary() VariantSummary {
	return VariantSummary{
		ID:          v.ID,
		Name:        v.Name,
		GenericName: v.GenericName,
		DosageForm:  v.DosageForm,
		Strength:    v.Strength,
		Unit:        v.Unit,
		PackageSize: v.PackageSize,
		PricePerBox: v.PricePerBox,
		Category:    v.Category,
	}
}

// PriceRange summarizes the price spread across the active variants of
// one code.
type PriceRange struct {
	Min   decimal.Decimal `json:"min"`
	Max   decimal.Decimal `json:"max"`
	Count int             `json:"count"`
}

// CodeSuggestion is an advisory hint for codes similar to the one the
// user typed.
type CodeSuggestion struct {
	Code        string          `json:"hospitalDrugCode"`
	Name        string          `json:"name"`
	PricePerBox decimal.Decimal `json:"pricePerBox"`
}

// Resolution is the answer to "what does this code mean right now".
// Available is always true: an existing code is not an error, it means
// the caller may be adding a price variant. CanCreateVariant mirrors
// Exists, the occupied case is exactly the variant-creation flow.
type Resolution struct {
	Code             string           `json:"code"`
	Available        bool             `json:"available"`
	Exists           bool             `json:"exists"`
	CanCreateVariant bool             `json:"canCreateVariant"`
	Drugs            []VariantSummary `json:"drugs"`
	TemplateDrug     *VariantSummary  `json:"templateDrug"`
	PriceRange       *PriceRange      `json:"priceRange"`
	Suggestions      []CodeSuggestion `json:"suggestions"`
	Message          string           `json:"message,omitempty"`
	// ExactConflict is set only when the caller supplied a price to
	// check, the edit path's pre-flight.
	ExactConflict *bool `json:"exactConflict,omitempty"`
}

// CreateRequest carries the payload for registering a new drug variant.
type CreateRequest struct {
	HospitalDrugCode string  `json:"hospitalDrugCode" validate:"required,min=1,max=50"`
	Name             string  `json:"name" validate:"required,min=1,max=255"`
	GenericName      *string `json:"genericName,omitempty" validate:"omitempty,max=255"`
	DosageForm       string  `json:"dosageForm" validate:"required"`
	Strength         *string `json:"strength,omitempty" validate:"omitempty,max=100"`
	Unit             string  `json:"unit" validate:"required,max=50"`
	PackageSize      *string `json:"packageSize,omitempty" validate:"omitempty,max=100"`
	PricePerBox      string  `json:"pricePerBox" validate:"required"`
	Category         string  `json:"category" validate:"required"`
	Notes            *string `json:"notes,omitempty" validate:"omitempty,max=1000"`
	InitialQuantity  int     `json:"initialQuantity" validate:"gte=0"`
	MinimumStock     *int    `json:"minimumStock,omitempty" validate:"omitempty,gte=0"`
	Department       string  `json:"department" validate:"required"`
}

// UpdateRequest carries editable fields for an existing variant.
type UpdateRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	GenericName *string `json:"genericName,omitempty" validate:"omitempty,max=255"`
	DosageForm  *string `json:"dosageForm,omitempty"`
	Strength    *string `json:"strength,omitempty" validate:"omitempty,max=100"`
	Unit        *string `json:"unit,omitempty" validate:"omitempty,max=50"`
	PackageSize *string `json:"packageSize,omitempty" validate:"omitempty,max=100"`
	PricePerBox *string `json:"pricePerBox,omitempty"`
	Category    *string `json:"category,omitempty"`
	Notes       *string `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

// BulkCheckRequest resolves a batch of codes in one round trip, used by
// import flows. The whole batch is rejected if any code is malformed.
type BulkCheckRequest struct {
	Codes []string `json:"codes" validate:"required,min=1,max=100,dive,min=1,max=50"`
}

// BulkCodeResult is the per-code slice of a bulk check.
type BulkCodeResult struct {
	Code             string           `json:"code"`
	Available        bool             `json:"available"`
	Exists           bool             `json:"exists"`
	CanCreateVariant bool             `json:"canCreateVariant"`
	VariantCount     int              `json:"variantCount"`
	Drugs            []VariantSummary `json:"drugs"`
	PriceRange       *PriceRange      `json:"priceRange"`
}

// BulkSummary aggregates a bulk check.
type BulkSummary struct {
	Total         int `json:"total"`
	NewCodes      int `json:"newCodes"`
	ExistingCodes int `json:"existingCodes"`
	TotalVariants int `json:"totalVariants"`
}

// BulkCheckResult reports per-code outcomes plus an aggregate summary.
type BulkCheckResult struct {
	Success bool             `json:"success"`
	Results []BulkCodeResult `json:"results"`
	Summary BulkSummary      `json:"summary"`
}

// CreateResult is returned after a successful creation transaction: the
// primary stock record joined with its drug, plus variant bookkeeping.
type CreateResult struct {
	ID            uuid.UUID       `json:"id"`
	DrugID        uuid.UUID       `json:"drugId"`
	Department    Department      `json:"department"`
	TotalQuantity int             `json:"totalQuantity"`
	ReservedQty   int             `json:"reservedQty"`
	MinimumStock  int             `json:"minimumStock"`
	TotalValue    decimal.Decimal `json:"totalValue"`
	LastUpdated   time.Time       `json:"lastUpdated"`
	Drug          *Variant        `json:"drug"`
	IsVariant     bool            `json:"isVariant"`
	VariantCount  int             `json:"variantCount"`
}
