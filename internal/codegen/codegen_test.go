package codegen

import (
	"errors"
	"regexp"
	"testing"

	"github.com/google/uuid"
)

func TestGenerate_Patterns(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		re      string
	}{
		{name: "numeric and alpha", pattern: "{NUMERIC:4}-{ALPHA:2}", re: `^\d{4}-[A-Za-z]{2}$`},
		{name: "random with prefix", pattern: "SUMMER-{RANDOM:6}", re: `^SUMMER-[A-Za-z0-9]{6}$`},
		{name: "default lengths", pattern: "{RANDOM}{NUMERIC}{ALPHA}", re: `^[A-Za-z0-9]{8}\d{6}[A-Za-z]{8}$`},
		{name: "invalid length falls back", pattern: "{NUMERIC:x}", re: `^\d{6}$`},
		{name: "lowercase placeholder", pattern: "{numeric:3}", re: `^\d{3}$`},
		{name: "unknown placeholder kept", pattern: "{FOO:3}-{NUMERIC:2}", re: `^\{FOO:3\}-\d{2}$`},
		{name: "uuid placeholder", pattern: "X-{UUID}", re: `^X-[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`},
		{name: "literal only", pattern: "STATIC", re: `^STATIC$`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			re := regexp.MustCompile(tt.re)
			for i := 0; i < 20; i++ {
				code, err := Generate(tt.pattern)
				if err != nil {
					t.Fatalf("Generate(%q) failed: %v", tt.pattern, err)
				}
				if !re.MatchString(code) {
					t.Fatalf("Generate(%q) = %q, does not match %s", tt.pattern, code, tt.re)
				}
			}
		})
	}
}

func TestGenerate_EmptyPatternIsUUID(t *testing.T) {
	code, err := Generate("")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if _, err := uuid.Parse(code); err != nil {
		t.Errorf("expected a UUID, got %q", code)
	}
}

func TestGenerateBatch_Distinct(t *testing.T) {
	codes, err := GenerateBatch("{NUMERIC:4}-{ALPHA:2}", 5)
	if err != nil {
		t.Fatalf("GenerateBatch failed: %v", err)
	}
	if len(codes) != 5 {
		t.Fatalf("expected 5 codes, got %d", len(codes))
	}

	re := regexp.MustCompile(`^\d{4}-[A-Za-z]{2}$`)
	seen := map[string]bool{}
	for _, c := range codes {
		if !re.MatchString(c) {
			t.Errorf("code %q does not match pattern", c)
		}
		if seen[c] {
			t.Errorf("duplicate code %q", c)
		}
		seen[c] = true
	}
}

func TestGenerateBatch_SpaceExhausted(t *testing.T) {
	// a single digit has only 10 possible values
	_, err := GenerateBatch("{NUMERIC:1}", 11)
	if !errors.Is(err, ErrSpaceExhausted) {
		t.Fatalf("expected ErrSpaceExhausted, got %v", err)
	}
}

func TestGenerate_UsesWholeAlphabet(t *testing.T) {
	seen := map[rune]bool{}
	for i := 0; i < 200; i++ {
		code, err := Generate("{NUMERIC:10}")
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		for _, r := range code {
			seen[r] = true
		}
	}
	if len(seen) != 10 {
		t.Errorf("expected all 10 digits over 2000 draws, saw %d", len(seen))
	}
}
