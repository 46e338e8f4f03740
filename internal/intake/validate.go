package intake

import (
	"strings"

	"github.com/MikeSquared-Agency/intake/internal/catalog"
)

const (
	ReasonName    = "Customer name is required"
	ReasonEmail   = "Valid email address is required"
	ReasonPhone   = "Phone number is required"
	ReasonAddress = "Physical address is required"
	ReasonIssue   = "Issue description is required"
	ReasonPrice   = "Valid service price is required"
	ReasonCatalog = "Issue and price must match a supported service"
)

// Values an LLM tends to fill in when it has nothing real. Compared
// case-insensitively after trimming.
var placeholders = map[string]bool{
	"":             true,
	"unknown":      true,
	"n/a":          true,
	"none":         true,
	"not provided": true,
}

// ValidationError lists every field that failed, in field order.
type ValidationError struct {
	Reasons []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Reasons, ", ")
}

// Validator re-checks a candidate before it reaches the store. Extraction can
// be wrong, and the dialogue driver may pass values it never heard.
type Validator struct {
	// StrictCatalog additionally requires Issue/Price to be an exact catalog pair.
	StrictCatalog bool
}

// Validate returns nil or a *ValidationError carrying all failures.
func (v Validator) Validate(c Candidate) error {
	var reasons []string
	if !ValidName(c.Name) {
		reasons = append(reasons, ReasonName)
	}
	if !ValidEmail(c.Email) {
		reasons = append(reasons, ReasonEmail)
	}
	if isPlaceholder(c.Phone) {
		reasons = append(reasons, ReasonPhone)
	}
	if isPlaceholder(c.Address) {
		reasons = append(reasons, ReasonAddress)
	}
	if isPlaceholder(c.Issue) {
		reasons = append(reasons, ReasonIssue)
	}
	if c.Price <= 0 {
		reasons = append(reasons, ReasonPrice)
	}
	if v.StrictCatalog && !isPlaceholder(c.Issue) && c.Price > 0 && !catalog.Matches(c.Issue, c.Price) {
		reasons = append(reasons, ReasonCatalog)
	}
	if len(reasons) > 0 {
		return &ValidationError{Reasons: reasons}
	}
	return nil
}

// ValidName is the rule applied to names at creation and on update.
func ValidName(name string) bool {
	return !isPlaceholder(name)
}

// ValidEmail is the rule applied to emails at creation and on update.
func ValidEmail(email string) bool {
	return !isPlaceholder(email) && strings.Contains(email, "@")
}

func isPlaceholder(s string) bool {
	return placeholders[strings.ToLower(strings.TrimSpace(s))]
}
