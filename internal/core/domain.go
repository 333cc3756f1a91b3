package core

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	ModeToday     DateFilterMode = "today"
	ModeYesterday DateFilterMode = "yesterday"
	ModeCustom    DateFilterMode = "custom"
)

const maxTitleLength = 200

type (
	// DateFilterMode selects which single day a view is focused on.
	DateFilterMode string

	Money struct {
		Rupiah int64
	}

	Expense struct {
		ID        string // Assigned by the store; empty until persisted
		Title     string
		Amount    Money
		Category  string // Category name, not enforced against the category list
		Date      time.Time
		Icon      string // Snapshot of the category icon at write time
		CreatedAt time.Time
		UpdatedAt time.Time

		// DateCoerced is set when the stored date could not be read and
		// was replaced with the read time.
		DateCoerced bool
	}

	Category struct {
		ID        string
		Name      string
		Icon      string
		Color     string
		IconColor string
	}

	// ExpenseDraft is the raw input of the expense form before validation.
	ExpenseDraft struct {
		Title      string
		AmountText string
		Category   string
		Date       time.Time
	}
)

var (
	ErrEmptyAmount      = errors.New("please enter an amount")
	ErrInvalidAmount    = errors.New("please enter a valid amount")
	ErrEmptyTitle       = errors.New("please enter a description")
	ErrTitleTooLong     = errors.New("description too long (max 200 characters)")
	ErrNoCategory       = errors.New("please select a category")
	ErrUnknownCategory  = errors.New("unknown category")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidMode      = errors.New("invalid date filter mode")
	ErrMissingExpenseID = errors.New("missing expense id")
)

// IsValid reports whether m is one of the known filter modes.
func (m DateFilterMode) IsValid() bool {
	switch m {
	case ModeToday, ModeYesterday, ModeCustom:
		return true
	default:
		return false
	}
}

func (m DateFilterMode) String() string {
	return string(m)
}

func (m Money) Validate() error {
	if m.Rupiah <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (e Expense) Validate() error {
	title := strings.TrimSpace(e.Title)
	if title == "" {
		return ErrEmptyTitle
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return ErrTitleTooLong
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrNoCategory
	}
	if e.Date.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Validate checks the draft in the order the form reports problems:
// amount presence, description, category, then amount value.
func (d ExpenseDraft) Validate() error {
	if strings.TrimSpace(d.AmountText) == "" {
		return ErrEmptyAmount
	}
	title := strings.TrimSpace(d.Title)
	if title == "" {
		return ErrEmptyTitle
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return ErrTitleTooLong
	}
	if strings.TrimSpace(d.Category) == "" {
		return ErrNoCategory
	}
	if _, err := ParseRupiah(d.AmountText); err != nil {
		return err
	}
	if d.Date.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Build turns a validated draft into an Expense, copying the icon from
// the category. Later changes to the category do not touch the record.
func (d ExpenseDraft) Build(c Category) (Expense, error) {
	if err := d.Validate(); err != nil {
		return Expense{}, err
	}
	if !strings.EqualFold(strings.TrimSpace(d.Category), c.Name) {
		return Expense{}, ErrUnknownCategory
	}
	amount, err := ParseRupiah(d.AmountText)
	if err != nil {
		return Expense{}, err
	}
	return Expense{
		Title:    strings.TrimSpace(d.Title),
		Amount:   Money{Rupiah: amount},
		Category: c.Name,
		Date:     d.Date,
		Icon:     c.Icon,
	}, nil
}

// IsValidationError reports whether err is one of the input validation
// errors above.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrEmptyAmount, ErrInvalidAmount, ErrEmptyTitle, ErrTitleTooLong,
		ErrNoCategory, ErrUnknownCategory, ErrInvalidDate, ErrInvalidMode,
		ErrMissingExpenseID,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
