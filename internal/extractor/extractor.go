package extractor

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/MikeSquared-Agency/intake/internal/catalog"
)

var (
	emailRe = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	phoneRe = regexp.MustCompile(`(?:\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`)

	// Tried in order. "name is" is explicit enough to take any casing; the
	// other cues show up in ordinary speech ("I'm calling about..."), so they
	// only capture capitalised words. Group 1 is the first name, group 2 an
	// optional second word.
	namePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bname is\s+([a-z][a-z'-]*)(?:\s+([a-z][a-z'-]*))?`),
		regexp.MustCompile(`(?i:\bi'm)\s+([A-Z][a-z'-]*)(?:\s+([A-Z][a-z'-]*))?`),
		regexp.MustCompile(`(?i:\bi am)\s+([A-Z][a-z'-]*)(?:\s+([A-Z][a-z'-]*))?`),
		regexp.MustCompile(`(?i:\bthis is)\s+([A-Z][a-z'-]*)(?:\s+([A-Z][a-z'-]*))?`),
	}

	phoneCues   = []string{"phone", "number", "call", "reach"}
	nameCues    = []string{"name is", "i'm", "i am", "this is"}
	addressCues = []string{"address", "live at", "street", "city", "state"}

	// Words that follow a name in speech but are never part of one.
	nameFunctionWords = map[string]bool{
		"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
		"so": true, "my": true, "i": true, "i'm": true, "is": true, "it": true,
		"from": true, "calling": true, "speaking": true, "here": true, "about": true,
		"at": true, "in": true, "on": true, "with": true, "to": true, "for": true,
		"of": true, "again": true, "also": true, "please": true, "thanks": true,
		"email": true, "phone": true, "number": true, "address": true, "live": true,
	}

	liveAtRe = regexp.MustCompile(`(?is)live at(.*)`)

	titleCaser = cases.Title(language.English)
)

// Extract pulls whatever fields it can out of one utterance and writes them
// into state. Fields that are already set are left alone. It never fails;
// an utterance with nothing recognisable is a no-op.
func Extract(text string, state *State) {
	lower := strings.ToLower(text)
	c := &state.Collected

	if c.Email == nil && strings.Contains(text, "@") {
		if m := emailRe.FindString(text); m != "" {
			c.Email = &m
		}
	}

	if c.Phone == nil && containsAny(lower, phoneCues) {
		if m := phoneRe.FindString(text); m != "" {
			c.Phone = &m
		}
	}

	if c.Name == nil && containsAny(lower, nameCues) {
		if name, ok := extractName(text); ok {
			c.Name = &name
		}
	}

	if c.Address == nil && containsAny(lower, addressCues) {
		if addr, ok := extractAddress(text); ok {
			c.Address = &addr
		}
	}

	if c.Issue == nil {
		if desc, price := catalog.Classify(text); price > 0 {
			c.Issue = &desc
			c.Price = &price
		}
	}
}

func extractName(text string) (string, bool) {
	for _, re := range namePatterns {
		m := re.FindStringSubmatch(text)
		if len(m) < 3 || m[1] == "" || nameFunctionWords[strings.ToLower(m[1])] {
			continue
		}
		words := m[1]
		if m[2] != "" && !nameFunctionWords[strings.ToLower(m[2])] {
			words += " " + m[2]
		}
		name := strings.TrimSpace(titleCaser.String(words))
		if len(name) <= 1 {
			continue
		}
		return name, true
	}
	return "", false
}

// Only "live at" is actionable; the other address cues just say the caller
// is talking about where they are.
func extractAddress(text string) (string, bool) {
	m := liveAtRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	addr := strings.TrimRight(strings.TrimSpace(m[1]), ".!?")
	if len(addr) <= 5 {
		return "", false
	}
	return addr, true
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
