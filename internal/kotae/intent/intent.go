// Package intent classifies inbound chat text into a small set of intents
// using an ordered keyword rule table.
//
// Matching is plain substring containment over the lowercased, trimmed text.
// There is no stemming and no tokenisation: "website details" contains "ai"
// and is treated as such. The first rule whose predicate matches wins; text
// that matches nothing is Unclear.
package intent

import "strings"

// Intent is the category a message is classified into.
type Intent string

const (
	// None is the zero Intent. A fresh conversation has no last intent.
	None      Intent = ""
	Quote     Intent = "quote"
	WebsiteAI Intent = "website_ai"
	Welcome   Intent = "welcome"
	Services  Intent = "services"
	Pricing   Intent = "pricing"
	Education Intent = "education"
	// Unclear is returned when no rule matches.
	Unclear Intent = "unclear"
)

// All lists every intent a Matcher built from DefaultRules can return, in
// rule order.
var All = []Intent{Quote, WebsiteAI, Welcome, Services, Pricing, Education, Unclear}

func (i Intent) String() string {
	if i == None {
		return "none"
	}
	return string(i)
}

// Normalize lowercases raw and trims surrounding whitespace. It is the only
// preprocessing applied before matching.
func Normalize(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// ContainsAny reports whether text contains at least one of the words.
func ContainsAny(text string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

// EqualsAny reports whether text is exactly one of the words.
func EqualsAny(text string, words ...string) bool {
	for _, w := range words {
		if text == w {
			return true
		}
	}
	return false
}
