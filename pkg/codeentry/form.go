package codeentry

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Mode tracks how the entry form relates to an applied template.
type Mode string

const (
	// ModeNewEntry is a form the user filled from scratch.
	ModeNewEntry Mode = "NEW_ENTRY"
	// ModeTemplateApplied is a form auto-filled from an existing
	// variant, pending a distinct price.
	ModeTemplateApplied Mode = "TEMPLATE_APPLIED"
	// ModeManualOverride is a template form the user has since edited.
	ModeManualOverride Mode = "MANUAL_OVERRIDE"
)

// suggestedPriceFactor marks a new variant up from its template.
var suggestedPriceFactor = decimal.RequireFromString("1.05")

// Fields holds the drug identity portion of the entry form.
type Fields struct {
	Name        string
	GenericName string
	DosageForm  string
	Strength    string
	Unit        string
	PackageSize string
	Category    string
	PricePerBox decimal.Decimal
	Notes       string
}

// Form is the entry form state machine. Applying a template backs up
// the user's fields so a restore can undo the auto-fill.
type Form struct {
	mode   Mode
	fields Fields
	backup *Fields
}

func NewForm() *Form {
	return &Form{mode: ModeNewEntry}
}

func (f *Form) Mode() Mode     { return f.mode }
func (f *Form) Fields() Fields { return f.fields }

// SuggestPrice proposes a price for a new variant of the template,
// nudged above the template price so the two rows stay distinct.
func SuggestPrice(template decimal.Decimal) decimal.Decimal {
	return template.Mul(suggestedPriceFactor).Round(2)
}

// ApplyTemplate fills the form from an existing variant. The current
// fields are backed up once, the identity fields are copied, notes are
// cleared because they belong to the source row, and the price is set
// to the suggested markup.
func (f *Form) ApplyTemplate(t *Template) {
	if t == nil {
		return
	}
	if f.backup == nil {
		saved := f.fields
		f.backup = &saved
	}
	f.fields = Fields{
		Name:        t.Name,
		GenericName: t.GenericName,
		DosageForm:  t.DosageForm,
		Strength:    t.Strength,
		Unit:        t.Unit,
		PackageSize: t.PackageSize,
		Category:    t.Category,
		PricePerBox: SuggestPrice(t.PricePerBox),
	}
	f.mode = ModeTemplateApplied
}

// RestoreBackup undoes a template application, returning the form to
// the fields the user had typed before.
func (f *Form) RestoreBackup() bool {
	if f.backup == nil {
		return false
	}
	f.fields = *f.backup
	f.backup = nil
	f.mode = ModeNewEntry
	return true
}

func (a Fields) equal(b Fields) bool {
	return a.Name == b.Name &&
		a.GenericName == b.GenericName &&
		a.DosageForm == b.DosageForm &&
		a.Strength == b.Strength &&
		a.Unit == b.Unit &&
		a.PackageSize == b.PackageSize &&
		a.Category == b.Category &&
		a.Notes == b.Notes &&
		a.PricePerBox.Equal(b.PricePerBox)
}

// SetFields replaces the form fields. Editing a template-applied form
// moves it to manual override; the backup stays available.
func (f *Form) SetFields(fields Fields) {
	if f.mode == ModeTemplateApplied && !fields.equal(f.fields) {
		f.mode = ModeManualOverride
	}
	f.fields = fields
}

// SetPrice changes only the price. A price edit on a template form is
// expected and does not count as an override.
func (f *Form) SetPrice(p decimal.Decimal) {
	f.fields.PricePerBox = p
}

// CheckPriceAgainstSiblings verifies the chosen price differs from
// every existing variant of the code before submit.
func CheckPriceAgainstSiblings(price decimal.Decimal, siblings []decimal.Decimal) error {
	for _, s := range siblings {
		if price.Equal(s) {
			return fmt.Errorf("price %s already exists for this code", price.StringFixed(2))
		}
	}
	return nil
}
