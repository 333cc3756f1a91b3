// Package core provides money parsing and handling utilities.
//
// Amounts are whole Rupiah. The expense form lets users type grouping
// separators ("85.000"), so parsing keeps digits only.
package core

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var idPrinter = message.NewPrinter(language.Indonesian)

// ParseRupiah converts user input to a positive whole Rupiah amount.
//
// Every non-digit character is discarded before parsing, so "Rp 85.000",
// "85,000" and "85000" all yield 85000. Input without any digit, zero, or a
// value that overflows int64 returns ErrInvalidAmount.
//
// Examples:
//
//	ParseRupiah("85.000")    -> 85000, nil
//	ParseRupiah("Rp 1.500")  -> 1500, nil
//	ParseRupiah("abc")       -> 0, ErrInvalidAmount
func ParseRupiah(s string) (int64, error) {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) && r < unicode.MaxASCII {
			return r
		}
		return -1
	}, s)
	if digits == "" {
		return 0, ErrInvalidAmount
	}
	v, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if v <= 0 {
		return 0, ErrInvalidAmount
	}
	return v, nil
}

// FormatRupiah renders an amount with Indonesian digit grouping, e.g. "Rp 85.000".
func FormatRupiah(rupiah int64) string {
	if rupiah < 0 {
		return "-Rp " + idPrinter.Sprintf("%d", -rupiah)
	}
	return "Rp " + idPrinter.Sprintf("%d", rupiah)
}

// String implements fmt.Stringer.
func (m Money) String() string {
	return FormatRupiah(m.Rupiah)
}
