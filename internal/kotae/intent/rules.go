package intent

import "strings"

// Rule pairs an intent with a predicate over normalized text.
type Rule struct {
	Intent Intent
	Match  func(text string) bool
}

// Keyword sets for the default rules.
var (
	quoteWords     = []string{"quote"}
	websiteAIWords = []string{"website with ai", "ai integration"}
	welcomeWords   = []string{"hi", "hello", "start"}
	servicesWords  = []string{"services", "what do you do", "tell me about"}
	pricingWords   = []string{"how much", "cost", "price", "pricing"}
	educationWords = []string{"teaching", "school", "education", "tuition"}
)

// DefaultRules returns the production rule table. Order is significant:
//
//  1. Quote      "quote"
//  2. WebsiteAI  "website" and "ai", "website with ai", "ai integration"
//  3. Welcome    exactly "hi", "hello" or "start"
//  4. Services   "services", "what do you do", "tell me about"
//  5. Pricing    "how much", "cost", "price", "pricing"
//  6. Education  "teaching", "school", "education", "tuition"
//
// Pricing is checked once, before Education, so "school fees price" is a
// pricing question.
func DefaultRules() []Rule {
	return []Rule{
		{Intent: Quote, Match: func(t string) bool { return ContainsAny(t, quoteWords...) }},
		{Intent: WebsiteAI, Match: isWebsiteAI},
		{Intent: Welcome, Match: func(t string) bool { return EqualsAny(t, welcomeWords...) }},
		{Intent: Services, Match: func(t string) bool { return ContainsAny(t, servicesWords...) }},
		{Intent: Pricing, Match: func(t string) bool { return ContainsAny(t, pricingWords...) }},
		{Intent: Education, Match: func(t string) bool { return ContainsAny(t, educationWords...) }},
	}
}

func isWebsiteAI(t string) bool {
	if strings.Contains(t, "website") && strings.Contains(t, "ai") {
		return true
	}
	return ContainsAny(t, websiteAIWords...)
}
