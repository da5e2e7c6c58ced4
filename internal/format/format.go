// Package format renders derived amounts for display. Currency, conversion
// rate and language are passed in explicitly; nothing here is global.
package format

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"lifedash/internal/core"
)

type Formatter struct {
	Currency currency.Unit
	Rate     float64
	Language language.Tag

	printer *message.Printer
}

// New builds a formatter from an ISO 4217 code, a conversion rate applied to
// stored amounts, and a BCP 47 language tag.
func New(code string, rate float64, lang string) (*Formatter, error) {
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return nil, fmt.Errorf("invalid currency %q: %w", code, err)
	}
	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return nil, fmt.Errorf("invalid currency rate %v", rate)
	}
	tag, err := language.Parse(strings.TrimSpace(lang))
	if err != nil {
		return nil, fmt.Errorf("invalid language %q: %w", lang, err)
	}
	return &Formatter{
		Currency: unit,
		Rate:     rate,
		Language: tag,
		printer:  message.NewPrinter(tag),
	}, nil
}

// Convert applies the rate to an amount held in cents.
func (f *Formatter) Convert(m core.Money) float64 {
	return m.Units() * f.Rate
}

// Money renders m with the currency symbol, e.g. "$ 12.34".
func (f *Formatter) Money(m core.Money) string {
	return f.printer.Sprint(currency.Symbol(f.Currency.Amount(f.Convert(m))))
}

// Number renders m converted, with two decimals and locale grouping.
func (f *Formatter) Number(m core.Money) string {
	return f.printer.Sprint(number.Decimal(f.Convert(m), number.Scale(2)))
}

// Percent renders a 0..100 percentage.
func (f *Formatter) Percent(p float64) string {
	return f.printer.Sprint(number.Percent(p/100, number.MaxFractionDigits(0)))
}

// Label title-cases a free-text label such as a category name.
func (f *Formatter) Label(s string) string {
	// Casers keep state, so one is built per call.
	return cases.Title(f.Language).String(strings.TrimSpace(s))
}
