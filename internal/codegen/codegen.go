// Package codegen turns a code pattern into concrete coupon codes.
//
// A pattern is a template with placeholders:
//
//	{RANDOM:n}  n characters from [A-Za-z0-9]   (default n = 8)
//	{NUMERIC:n} n digits                        (default n = 6)
//	{ALPHA:n}   n letters from [A-Za-z]         (default n = 8)
//	{UUID}      a random UUID
//
// Unknown placeholders are copied verbatim. An empty pattern yields a UUID.
package codegen

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const (
	numericChars      = "0123456789"
	alphaChars        = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	alphanumericChars = alphaChars + numericChars
)

var placeholderRe = regexp.MustCompile(`\{([^}]+)\}`)

// Generate produces a single code for pattern.
func Generate(pattern string) (string, error) {
	if pattern == "" {
		return uuid.NewString(), nil
	}

	var genErr error
	code := placeholderRe.ReplaceAllStringFunc(pattern, func(match string) string {
		if genErr != nil {
			return match
		}
		kind, n := parsePlaceholder(match[1 : len(match)-1])

		var (
			s   string
			err error
		)
		switch kind {
		case "RANDOM":
			s, err = randomString(length(n, 8), alphanumericChars)
		case "NUMERIC":
			s, err = randomString(length(n, 6), numericChars)
		case "ALPHA":
			s, err = randomString(length(n, 8), alphaChars)
		case "UUID":
			s = uuid.NewString()
		default:
			return match
		}
		if err != nil {
			genErr = err
			return match
		}
		return s
	})
	if genErr != nil {
		return "", genErr
	}
	return code, nil
}

// GenerateBatch produces n codes that are distinct from each other. It gives up
// with ErrSpaceExhausted when the pattern cannot yield n distinct values in a
// bounded number of draws. Uniqueness against codes already stored is left to
// the store's unique index.
func GenerateBatch(pattern string, n int) ([]string, error) {
	codes := make([]string, 0, n)
	seen := make(map[string]struct{}, n)
	maxDraws := n*10 + 10

	for draws := 0; len(codes) < n; draws++ {
		if draws >= maxDraws {
			return nil, ErrSpaceExhausted
		}
		code, err := Generate(pattern)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes, nil
}

// ErrSpaceExhausted is returned when a pattern's code space is too small for the batch.
var ErrSpaceExhausted = fmt.Errorf("codegen: pattern cannot produce enough distinct codes")

func parsePlaceholder(body string) (string, string) {
	kind, n, _ := strings.Cut(body, ":")
	return strings.ToUpper(strings.TrimSpace(kind)), strings.TrimSpace(n)
}

func length(raw string, fallback int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func randomString(n int, chars string) (string, error) {
	max := big.NewInt(int64(len(chars)))
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("codegen: read random: %w", err)
		}
		b.WriteByte(chars[idx.Int64()])
	}
	return b.String(), nil
}
