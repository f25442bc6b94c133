package responder

import (
	"github.com/bdobrica/kotae/internal/kotae/intent"
	"github.com/bdobrica/kotae/internal/kotae/memory"
	"github.com/bdobrica/kotae/internal/kotae/replies"
)

// handlerFunc applies the memory mutation for one intent and returns the
// reply key to send. text is already normalized. It runs with the sender's
// record locked.
type handlerFunc func(text string, rec *memory.Record) string

// handlers maps every intent the default matcher produces to its handler.
var handlers = map[intent.Intent]handlerFunc{
	intent.Quote:     handleQuote,
	intent.WebsiteAI: handleWebsiteAI,
	intent.Welcome:   simple(intent.Welcome, replies.KeyWelcome),
	intent.Services:  simple(intent.Services, replies.KeyServices),
	intent.Pricing:   simple(intent.Pricing, replies.KeyPricing),
	intent.Education: handleEducation,
	intent.Unclear:   handleUnclear,
}

// simple returns a handler that only records the intent.
func simple(in intent.Intent, key string) handlerFunc {
	return func(_ string, rec *memory.Record) string {
		rec.LastIntent = in
		return key
	}
}

func handleQuote(text string, rec *memory.Record) string {
	rec.LastIntent = intent.Quote
	if intent.ContainsAny(text, "education", "school") {
		return replies.KeyQuoteEducation
	}
	return replies.KeyQuote
}

func handleWebsiteAI(text string, rec *memory.Record) string {
	rec.LastIntent = intent.WebsiteAI
	rec.AddTopic(intent.WebsiteAI)
	if intent.ContainsAny(text, "school", "teaching") || rec.BusinessType == memory.BusinessEducation {
		return replies.KeyWebsiteAIEducation
	}
	return replies.KeyWebsiteAI
}

// handleEducation sends the full pitch once; a second education message in a
// row gets the shorter next-steps reply instead.
func handleEducation(_ string, rec *memory.Record) string {
	repeat := rec.LastIntent == intent.Education
	rec.LastIntent = intent.Education
	if repeat {
		return replies.KeyEducationNextSteps
	}
	rec.BusinessType = memory.BusinessEducation
	rec.AddTopic(intent.Education)
	return replies.KeyEducation
}

// handleUnclear asks for clarification once, then hands over to a human.
func handleUnclear(_ string, rec *memory.Record) string {
	repeat := rec.LastIntent == intent.Unclear
	rec.LastIntent = intent.Unclear
	if repeat {
		return replies.KeyUnclearHandoff
	}
	return replies.KeyUnclear
}
