package intent

// Matcher maps normalized text to an intent. It is the seam for swapping
// keyword matching for a different strategy without touching memory or
// reply selection. Implementations must return Unclear rather than None
// when nothing matches, and must be safe for concurrent use.
type Matcher interface {
	Match(text string) Intent
}

// MatcherFunc adapts a plain function to the Matcher interface.
type MatcherFunc func(text string) Intent

// Match calls f(text).
func (f MatcherFunc) Match(text string) Intent { return f(text) }

// KeywordMatcher evaluates rules in order; the first match wins.
type KeywordMatcher struct {
	rules []Rule
}

// NewKeywordMatcher returns a matcher over rules. With no rules it returns
// a matcher over DefaultRules. Rules with a nil predicate are skipped.
func NewKeywordMatcher(rules ...Rule) *KeywordMatcher {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	kept := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if r.Match != nil {
			kept = append(kept, r)
		}
	}
	return &KeywordMatcher{rules: kept}
}

// Match returns the intent of the first matching rule, or Unclear. text is
// normalized again so callers may pass raw input.
func (m *KeywordMatcher) Match(text string) Intent {
	text = Normalize(text)
	for _, r := range m.rules {
		if r.Match(text) {
			return r.Intent
		}
	}
	return Unclear
}

// Rules returns a copy of the rule table in evaluation order.
func (m *KeywordMatcher) Rules() []Rule {
	out := make([]Rule, len(m.rules))
	copy(out, m.rules)
	return out
}
