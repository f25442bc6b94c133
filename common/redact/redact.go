// Package redact strips sensitive values from log output and stored records.
//
// Two kinds of data need masking in Kotae: secrets (webhook HMAC keys,
// Matrix access tokens) and sender identifiers, which are usually phone
// numbers. Redaction is best-effort and string based; it does not replace
// keeping secrets away from log call-sites.
package redact

import (
	"strings"
	"unicode"
)

const placeholder = "[REDACTED]"

// visibleDigits is how many trailing digits of a sender ID stay readable.
const visibleDigits = 4

// String replaces every occurrence of each sensitive value in s with
// [REDACTED]. Values shorter than 4 characters are skipped to avoid
// spurious redaction of common substrings.
//
//	safe := redact.String(line, webhookSecret, matrixToken)
func String(s string, sensitiveValues ...string) string {
	for _, v := range sensitiveValues {
		if len(v) < 4 {
			continue
		}
		s = strings.ReplaceAll(s, v, placeholder)
	}
	return s
}

// Sender masks every digit of a sender identifier except the last four, so
// "+15551234567" becomes "+*******4567" and a bridged Matrix ID such as
// "@whatsapp_15551234567:example.org" keeps its shape. IDs with four digits
// or fewer are returned unchanged.
func Sender(id string) string {
	total := 0
	for _, r := range id {
		if unicode.IsDigit(r) {
			total++
		}
	}
	if total <= visibleDigits {
		return id
	}

	var b strings.Builder
	b.Grow(len(id))
	seen := 0
	for _, r := range id {
		if unicode.IsDigit(r) {
			seen++
			if seen <= total-visibleDigits {
				b.WriteByte('*')
				continue
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Map returns a shallow copy of m with string values replaced by [REDACTED]
// for every key whose name suggests it holds a secret.
func Map(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if isSensitiveKey(k) {
			if str, ok := v.(string); ok && str != "" {
				out[k] = placeholder
				continue
			}
		}
		out[k] = v
	}
	return out
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, word := range []string{"password", "passwd", "token", "secret", "key", "credential", "auth", "signature"} {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}
