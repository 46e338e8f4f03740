package intake

import "github.com/MikeSquared-Agency/intake/internal/extractor"

// Human-readable field names, in the order MissingFields reports them.
const (
	FieldName    = "customer name"
	FieldEmail   = "email address"
	FieldPhone   = "phone number"
	FieldAddress = "address"
	FieldIssue   = "issue description"
	FieldPrice   = "service price"
)

// MissingFields lists the ticket fields the conversation still lacks. An
// empty result means a ticket can be attempted.
func MissingFields(state *extractor.State) []string {
	c := state.Collected
	missing := []string{}
	if absent(c.Name) {
		missing = append(missing, FieldName)
	}
	if absent(c.Email) {
		missing = append(missing, FieldEmail)
	}
	if absent(c.Phone) {
		missing = append(missing, FieldPhone)
	}
	if absent(c.Address) {
		missing = append(missing, FieldAddress)
	}
	if absent(c.Issue) {
		missing = append(missing, FieldIssue)
	}
	if c.Price == nil || *c.Price <= 0 {
		missing = append(missing, FieldPrice)
	}
	return missing
}

func absent(p *string) bool {
	return p == nil || *p == ""
}
