// Package replies loads the canned reply texts the responder sends.
//
// Replies are configuration, not code: they live in a YAML document keyed by
// reply key and are validated against an embedded JSON schema on load. A
// default pack is compiled into the binary; operators can point Kotae at a
// directory holding their own replies.yaml.
//
//	reg, err := replies.Load(os.DirFS("/etc/kotae"), replies.FileName)
//	text := reg.Text(replies.KeyPricing)
package replies

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// FileName is the conventional name of a reply pack.
const FileName = "replies.yaml"

// Reply keys. A key names an intent, optionally followed by a variant.
const (
	KeyWelcome            = "welcome"
	KeyServices           = "services"
	KeyPricing            = "pricing"
	KeyEducation          = "education"
	KeyEducationNextSteps = "education.next_steps"
	KeyWebsiteAI          = "website_ai"
	KeyWebsiteAIEducation = "website_ai.education"
	KeyQuote              = "quote"
	KeyQuoteEducation     = "quote.education"
	KeyUnclear            = "unclear"
	KeyUnclearHandoff     = "unclear.handoff"
)

// fallbackText is returned by Text when even the unclear reply is missing.
const fallbackText = "Sorry, I didn't catch that. A member of our team will get back to you shortly."

// ErrMissingKey is returned by MustLookup for an unknown key.
var ErrMissingKey = errors.New("replies: missing key")

//go:embed replies.yaml schema.json
var embedded embed.FS

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error

	defaultOnce sync.Once
	defaultReg  *Registry
)

// Registry is an immutable set of reply texts. It is safe for concurrent use.
type Registry struct {
	texts map[string]string
}

type document struct {
	Replies map[string]string `yaml:"replies"`
}

// Default returns the embedded reply pack. It panics if the embedded pack is
// invalid, which the package tests guard against.
func Default() *Registry {
	defaultOnce.Do(func() {
		reg, err := Load(embedded, FileName)
		if err != nil {
			panic(fmt.Sprintf("replies: embedded pack is invalid: %v", err))
		}
		defaultReg = reg
	})
	return defaultReg
}

// Load reads and validates the reply pack called name from fsys.
func Load(fsys fs.FS, name string) (*Registry, error) {
	raw, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("reply pack %q: %w", name, err)
	}
	reg, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("reply pack %q: %w", name, err)
	}
	return reg, nil
}

// Parse validates a YAML reply pack and builds a Registry from it.
func Parse(raw []byte) (*Registry, error) {
	if err := Validate(raw); err != nil {
		return nil, err
	}

	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	texts := make(map[string]string, len(doc.Replies))
	for k, v := range doc.Replies {
		texts[k] = v
	}
	return &Registry{texts: texts}, nil
}

// Validate checks raw YAML against the reply pack schema.
func Validate(raw []byte) error {
	sch, err := compiledSchema()
	if err != nil {
		return err
	}

	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	if doc == nil {
		return fmt.Errorf("validate: empty document")
	}

	// jsonschema works on JSON values; round-trip to normalise YAML scalars.
	buf, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("convert to json: %w", err)
	}
	var jsonDoc any
	if err := json.Unmarshal(buf, &jsonDoc); err != nil {
		return fmt.Errorf("convert to json: %w", err)
	}

	if err := sch.Validate(jsonDoc); err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	return nil
}

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		raw, err := embedded.ReadFile("schema.json")
		if err != nil {
			schemaErr = fmt.Errorf("read schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource("schema.json", bytes.NewReader(raw)); err != nil {
			schemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		schema, schemaErr = c.Compile("schema.json")
	})
	return schema, schemaErr
}

// Lookup returns the text for key.
func (r *Registry) Lookup(key string) (string, bool) {
	if r == nil {
		return "", false
	}
	text, ok := r.texts[key]
	return text, ok
}

// MustLookup is Lookup with an error for unknown keys.
func (r *Registry) MustLookup(key string) (string, error) {
	text, ok := r.Lookup(key)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrMissingKey, key)
	}
	return text, nil
}

// Text returns the text for key, falling back to the unclear reply and then
// to a built-in sentence, so it never returns an empty string.
func (r *Registry) Text(key string) string {
	if text, ok := r.Lookup(key); ok && text != "" {
		return text
	}
	if text, ok := r.Lookup(KeyUnclear); ok && text != "" {
		return text
	}
	return fallbackText
}

// Keys returns every reply key in sorted order.
func (r *Registry) Keys() []string {
	if r == nil {
		return nil
	}
	keys := make([]string, 0, len(r.texts))
	for k := range r.texts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
