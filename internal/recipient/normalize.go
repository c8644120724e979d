// Package recipient turns raw sheet records into ready-to-send recipients.
package recipient

import (
	"fmt"
	"strings"

	"github.com/jmehdipour/wa-notifier/internal/model"
	"github.com/jmehdipour/wa-notifier/internal/util"
)

const (
	DefaultCountryCode = "92"
	DefaultTemplate    = "Hello {name}, congratulations! Your registration is confirmed."
)

// ValidationError reports a record that must not be sent.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Normalizer holds the policy knobs; the zero value is not usable, use New.
type Normalizer struct {
	countryCode   string
	template      string
	strictNumbers bool
}

func New(countryCode, template string, strictNumbers bool) *Normalizer {
	if countryCode == "" {
		countryCode = DefaultCountryCode
	}
	if template == "" {
		template = DefaultTemplate
	}
	return &Normalizer{countryCode: countryCode, template: template, strictNumbers: strictNumbers}
}

// Normalize validates rec and builds its Recipient. It performs no I/O.
func (n *Normalizer) Normalize(rec model.RecipientRecord) (model.Recipient, error) {
	name := strings.TrimSpace(rec.Name)
	if name == "" {
		return model.Recipient{}, &ValidationError{Field: "Name", Reason: "missing"}
	}

	number := strings.TrimSpace(rec.RawNumber)
	if number == "" {
		return model.Recipient{}, &ValidationError{Field: "WhatsAppNumber", Reason: "missing"}
	}
	if n.strictNumbers && !util.IsDigits(number) {
		return model.Recipient{}, &ValidationError{Field: "WhatsAppNumber", Reason: fmt.Sprintf("%q is not a digit string", number)}
	}

	return model.Recipient{
		DisplayName: name,
		Address:     util.ApplyCountryCode(number, n.countryCode),
		Message:     strings.ReplaceAll(n.template, "{name}", name),
	}, nil
}
