package catalog

import "strings"

// UnknownIssue is returned by Classify when no catalog keyword matches.
const UnknownIssue = "Unknown issue"

// Entry is one supported service with its fixed price.
type Entry struct {
	Key         string   `json:"key"`
	Keywords    []string `json:"keywords"`
	Description string   `json:"description"`
	Price       float64  `json:"price"`
}

// entries is ordered. Classification walks it top to bottom and the first
// keyword hit wins, so moving an entry changes outcomes.
var entries = []Entry{
	{
		Key:         "wifi",
		Keywords:    []string{"wifi", "wi-fi", "wi fi", "wireless", "internet", "router", "network"},
		Description: "Wi-Fi not working",
		Price:       20,
	},
	{
		Key:         "email",
		Keywords:    []string{"password", "login", "log in", "log into", "sign in", "locked out", "email login", "email account"},
		Description: "Email login issues - password reset",
		Price:       15,
	},
	{
		Key:         "laptop",
		Keywords:    []string{"slow", "laptop", "sluggish", "cpu", "freezing", "performance"},
		Description: "Slow laptop performance - CPU change",
		Price:       25,
	},
	{
		Key:         "printer",
		Keywords:    []string{"printer", "printing", "print"},
		Description: "Printer problems - power plug change",
		Price:       10,
	},
}

// Entries returns a copy of the catalog in classification order.
func Entries() []Entry {
	out := make([]Entry, len(entries))
	for i, e := range entries {
		e.Keywords = append([]string(nil), e.Keywords...)
		out[i] = e
	}
	return out
}

// Classify maps free text to a catalog description and price. It returns
// (UnknownIssue, 0) when nothing matches.
func Classify(text string) (string, float64) {
	lower := strings.ToLower(text)
	for _, e := range entries {
		for _, kw := range e.Keywords {
			if strings.Contains(lower, kw) {
				return e.Description, e.Price
			}
		}
	}
	return UnknownIssue, 0
}

// Lookup finds the entry with exactly the given description.
func Lookup(description string) (Entry, bool) {
	for _, e := range entries {
		if e.Description == description {
			return e, true
		}
	}
	return Entry{}, false
}

// Matches reports whether description is a catalog entry priced at price.
func Matches(description string, price float64) bool {
	e, ok := Lookup(description)
	return ok && e.Price == price
}
