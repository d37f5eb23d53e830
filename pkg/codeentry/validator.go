// Package codeentry drives the client side of drug code entry: a
// debounced validator that resolves codes against the registry as the
// user types, and a form state machine that applies price-variant
// templates. It is transport-agnostic: callers supply a CheckFunc that
// performs the actual lookup.
package codeentry

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// State is the observable phase of the code validator.
type State string

const (
	StateEmpty       State = "EMPTY"
	StateChecking    State = "CHECKING"
	StateAvailable   State = "AVAILABLE"
	StateHasVariants State = "HAS_VARIANTS"
	StateError       State = "ERROR"
)

// Template is the cheapest existing variant of a code, offered as the
// starting point for a new price variant.
type Template struct {
	Name        string
	GenericName string
	DosageForm  string
	Strength    string
	Unit        string
	PackageSize string
	Category    string
	PricePerBox decimal.Decimal
}

// PriceRange summarizes the price spread across a code's variants.
type PriceRange struct {
	Min   decimal.Decimal
	Max   decimal.Decimal
	Count int
}

// CheckResult is the registry's answer for one code.
type CheckResult struct {
	Code        string
	Exists      bool
	Template    *Template
	PriceRange  *PriceRange
	SiblingsAt  []decimal.Decimal
	Suggestions []string
}

// CheckFunc resolves a code against the registry.
type CheckFunc func(ctx context.Context, code string) (*CheckResult, error)

// Snapshot is the validator's state at one point in time.
type Snapshot struct {
	Code   string
	State  State
	Result *CheckResult
	Err    error
}

const DefaultDebounce = 600 * time.Millisecond

// Validator debounces keystrokes and resolves the settled code. Rapid
// edits collapse into one lookup, and a response that arrives after the
// code has changed again is discarded.
type Validator struct {
	check    CheckFunc
	debounce time.Duration
	onChange func(Snapshot)

	mu     sync.Mutex
	code   string
	state  State
	result *CheckResult
	err    error
	seq    uint64
	timer  *time.Timer
	closed bool
}

// Option configures a Validator.
type Option func(*Validator)

// WithDebounce overrides the settle delay before a lookup fires.
func WithDebounce(d time.Duration) Option {
	return func(v *Validator) { v.debounce = d }
}

// WithOnChange registers a callback invoked after every state change.
// It runs on the validator's goroutine and must not call back in.
func WithOnChange(fn func(Snapshot)) Option {
	return func(v *Validator) { v.onChange = fn }
}

func NewValidator(check CheckFunc, opts ...Option) *Validator {
	v := &Validator{
		check:    check,
		debounce: DefaultDebounce,
		state:    StateEmpty,
	}
	for _, o := range opts {
		o(v)
	}
	return v
}

// UpdateCode records a keystroke. The lookup fires only after the code
// has been stable for the debounce window; each edit restarts the
// window and invalidates any in-flight lookup.
func (v *Validator) UpdateCode(code string) {
	code = strings.ToUpper(strings.TrimSpace(code))

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}

	v.seq++
	v.code = code
	if v.timer != nil {
		v.timer.Stop()
		v.timer = nil
	}

	if code == "" {
		v.setLocked(StateEmpty, nil, nil)
		return
	}

	seq := v.seq
	v.setLocked(StateChecking, nil, nil)
	v.timer = time.AfterFunc(v.debounce, func() {
		v.fire(seq, code)
	})
}

// ManualCheck skips the debounce and resolves the current code now.
func (v *Validator) ManualCheck() {
	v.mu.Lock()
	if v.closed || v.code == "" {
		v.mu.Unlock()
		return
	}
	v.seq++
	seq, code := v.seq, v.code
	if v.timer != nil {
		v.timer.Stop()
		v.timer = nil
	}
	v.setLocked(StateChecking, nil, nil)
	v.mu.Unlock()

	v.fire(seq, code)
}

func (v *Validator) fire(seq uint64, code string) {
	result, err := v.check(context.Background(), code)

	v.mu.Lock()
	defer v.mu.Unlock()
	// A newer edit supersedes this lookup. Drop the response.
	if v.closed || seq != v.seq {
		return
	}
	switch {
	case err != nil:
		v.setLocked(StateError, nil, err)
	case result.Exists:
		v.setLocked(StateHasVariants, result, nil)
	default:
		v.setLocked(StateAvailable, result, nil)
	}
}

func (v *Validator) setLocked(s State, r *CheckResult, err error) {
	v.state, v.result, v.err = s, r, err
	if v.onChange != nil {
		v.onChange(Snapshot{Code: v.code, State: s, Result: r, Err: err})
	}
}

// Snapshot returns the current state.
func (v *Validator) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return Snapshot{Code: v.code, State: v.state, Result: v.result, Err: v.err}
}

// Close stops the pending timer and ignores all further input.
func (v *Validator) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	if v.timer != nil {
		v.timer.Stop()
		v.timer = nil
	}
}
