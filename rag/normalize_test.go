package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"common escapes", `line1\nline2\tcell\r`, "line1\nline2\tcell"},
		{"quotes slash and unicode", `\"quoted\" and \\ slash and \u2192`, "\"quoted\" and \\ slash and →"},
		{"unrecognized escape kept", `\x1b[31mRed`, `\x1b[31mRed`},
		{"raw escape byte stripped", "before\x1b[31mred", "before[31mred"},
		{"raw controls stripped", "a\x01b\x7fc", "abc"},
		{"c1 controls stripped", "a\u0085b\u009fc", "abc"},
		{"surrogate stays literal", `pair \ud83d\ude00`, `pair \ud83d\ude00`},
		{"trims whitespace", "  body  \n", "body"},
		{"single quote", `it\'s`, "it's"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		`line1\nline2\tcell\r`,
		`\\\\r`,
		`\\n`,
		`\\\n`,
		`\n`,
		`\\r`,
		`\u000dA`,
		`\ud800 and \x00`,
		"\x1b\\n\x1b",
		`<Record content='[source: a.pdf | hitChunk: 1 | score: 0.9]\nBody'>`,
		"plain text",
		`\`,
		`\\`,
		`\u12`,
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}
