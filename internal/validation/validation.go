// Package validation sanitizes and bounds inbound answer text before it
// reaches the evaluation pipeline.
package validation

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/answerlab/go-grader/internal/domain"
)

// ErrTextTooLong is returned when a text exceeds the configured length
// limit. It wraps the invalid-request sentinel so callers can treat it
// as a client error.
var ErrTextTooLong = fmt.Errorf("%w: text too long", domain.ErrInvalidRequest)

// Validator cleans and bounds answer text. It is stateless and safe for
// concurrent use.
type Validator struct {
	maxLength int
}

// New returns a Validator limiting texts to maxLength characters.
func New(maxLength int) *Validator {
	return &Validator{maxLength: maxLength}
}

// Sanitize folds the text to NFKC and strips control characters other
// than newline, carriage return and tab.
func (v *Validator) Sanitize(text string) string {
	folded := norm.NFKC.String(text)
	return strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', '\t':
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, folded)
}

// Check verifies the text fits the length limit. Length is counted in
// characters, not bytes.
func (v *Validator) Check(text string) error {
	if n := utf8.RuneCountInString(text); n > v.maxLength {
		return fmt.Errorf("%w: %d characters exceeds limit of %d", ErrTextTooLong, n, v.maxLength)
	}
	return nil
}

// Process sanitizes the text and verifies its bounds, returning the
// cleaned text.
func (v *Validator) Process(text string) (string, error) {
	clean := v.Sanitize(text)
	if err := v.Check(clean); err != nil {
		return "", err
	}
	return clean, nil
}
