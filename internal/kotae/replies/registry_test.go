package replies

import (
	"errors"
	"strings"
	"testing"
	"testing/fstest"
)

var allKeys = []string{
	KeyWelcome, KeyServices, KeyPricing,
	KeyEducation, KeyEducationNextSteps,
	KeyWebsiteAI, KeyWebsiteAIEducation,
	KeyQuote, KeyQuoteEducation,
	KeyUnclear, KeyUnclearHandoff,
}

func TestDefault_HasEveryKey(t *testing.T) {
	reg := Default()
	for _, k := range allKeys {
		text, ok := reg.Lookup(k)
		if !ok {
			t.Errorf("missing key %q", k)
			continue
		}
		if strings.TrimSpace(text) == "" {
			t.Errorf("key %q has empty text", k)
		}
	}
	if got := len(reg.Keys()); got != len(allKeys) {
		t.Errorf("expected %d keys, got %d: %v", len(allKeys), got, reg.Keys())
	}
}

func TestDefault_VariantsDiffer(t *testing.T) {
	reg := Default()
	pairs := [][2]string{
		{KeyEducation, KeyEducationNextSteps},
		{KeyWebsiteAI, KeyWebsiteAIEducation},
		{KeyQuote, KeyQuoteEducation},
		{KeyUnclear, KeyUnclearHandoff},
	}
	for _, p := range pairs {
		if reg.Text(p[0]) == reg.Text(p[1]) {
			t.Errorf("%q and %q should have different texts", p[0], p[1])
		}
	}
}

func TestDefault_PricingMentionsPrices(t *testing.T) {
	if !strings.Contains(Default().Text(KeyPricing), "$3K") {
		t.Error("pricing guide should mention $3K")
	}
}

func TestText_FallsBack(t *testing.T) {
	reg := Default()
	if got := reg.Text("no.such.key"); got != reg.Text(KeyUnclear) {
		t.Errorf("unknown key should fall back to unclear reply, got %q", got)
	}

	var empty *Registry
	if got := empty.Text(KeyPricing); got != fallbackText {
		t.Errorf("nil registry should return built-in fallback, got %q", got)
	}
}

func TestMustLookup(t *testing.T) {
	reg := Default()
	if _, err := reg.MustLookup(KeyWelcome); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := reg.MustLookup("missing")
	if !errors.Is(err, ErrMissingKey) {
		t.Fatalf("expected ErrMissingKey, got %v", err)
	}
}

func TestLoad_CustomPack(t *testing.T) {
	raw, err := embedded.ReadFile(FileName)
	if err != nil {
		t.Fatal(err)
	}
	custom := strings.Replace(string(raw), "Investment guide", "Price list", 1)
	fsys := fstest.MapFS{FileName: {Data: []byte(custom)}}

	reg, err := Load(fsys, FileName)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !strings.Contains(reg.Text(KeyPricing), "Price list") {
		t.Errorf("expected custom pricing text, got %q", reg.Text(KeyPricing))
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(fstest.MapFS{}, FileName); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty document", ""},
		{"not yaml", "replies: [unclosed"},
		{"missing replies", "other: {}"},
		{"missing required key", "replies:\n  welcome: hi\n"},
		{"empty text", completePack(map[string]string{KeyPricing: `""`})},
		{"non-string text", completePack(map[string]string{KeyPricing: "[1, 2]"})},
		{"unknown top-level", completePack(nil) + "extra: true\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Validate([]byte(tt.yaml)); err == nil {
				t.Fatalf("expected validation error for:\n%s", tt.yaml)
			}
		})
	}
}

func TestValidate_AcceptsCompletePack(t *testing.T) {
	if err := Validate([]byte(completePack(nil))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// completePack renders a minimal valid pack, with overrides substituted as
// raw YAML values.
func completePack(overrides map[string]string) string {
	var b strings.Builder
	b.WriteString("replies:\n")
	for _, k := range allKeys {
		v := "text for " + k
		if o, ok := overrides[k]; ok {
			v = o
		}
		b.WriteString("  " + k + ": " + v + "\n")
	}
	return b.String()
}
