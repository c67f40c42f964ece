package slug_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/pgmodel/pkg/slug"
)

func TestMake(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		opts     []slug.Option
		expected string
	}{
		{
			name:     "simple text",
			input:    "Hello World",
			expected: "hello-world",
		},
		{
			name:     "with punctuation",
			input:    "Hello, World!",
			expected: "hello-world",
		},
		{
			name:     "with numbers",
			input:    "Product 123",
			expected: "product-123",
		},
		{
			name:     "multiple spaces collapse",
			input:    "Too    Many     Spaces",
			expected: "too-many-spaces",
		},
		{
			name:     "leading and trailing junk",
			input:    "  Trim Me!  ",
			expected: "trim-me",
		},
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
		{
			name:     "only special characters",
			input:    "!@#$%^&*()",
			expected: "",
		},
		{
			name:     "unicode diacritics",
			input:    "Café résumé naïve",
			expected: "cafe-resume-naive",
		},
		{
			name:     "lowercase disabled",
			input:    "Hello World",
			opts:     []slug.Option{slug.Lowercase(false)},
			expected: "Hello-World",
		},
		{
			name:     "custom separator",
			input:    "Hello World",
			opts:     []slug.Option{slug.Separator("_")},
			expected: "hello_world",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, slug.Make(tt.input, tt.opts...))
		})
	}
}

func TestTruncateWords(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxLen   int
		expected string
	}{
		{
			name:     "fits untouched",
			input:    "on-stock",
			maxLen:   8,
			expected: "on-stock",
		},
		{
			name:     "drops trailing word",
			input:    "on-stock-virtual",
			maxLen:   8,
			expected: "on-stock",
		},
		{
			name:     "drops several words",
			input:    "a-very-long-product-name",
			maxLen:   6,
			expected: "a-very",
		},
		{
			name:     "single overlong word cut hard",
			input:    "supercalifragilistic",
			maxLen:   5,
			expected: "super",
		},
		{
			name:     "no limit",
			input:    "anything-goes-here",
			maxLen:   0,
			expected: "anything-goes-here",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, slug.TruncateWords(tt.input, tt.maxLen))
		})
	}
}

func TestNumberSuffix(t *testing.T) {
	tests := []struct {
		name     string
		base     string
		n        int
		maxLen   int
		expected string
	}{
		{
			name:     "fits without truncation",
			base:     "on-sto",
			n:        1,
			maxLen:   8,
			expected: "on-sto-1",
		},
		{
			name:     "base truncated to make room",
			base:     "on-stock",
			n:        1,
			maxLen:   8,
			expected: "on-sto-1",
		},
		{
			name:     "two digit counter eats more base",
			base:     "on-stock",
			n:        12,
			maxLen:   8,
			expected: "on-st-12",
		},
		{
			name:     "no limit",
			base:     "on-stock",
			n:        3,
			maxLen:   0,
			expected: "on-stock-3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, slug.NumberSuffix(tt.base, tt.n, tt.maxLen))
		})
	}
}
