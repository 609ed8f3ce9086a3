package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnwrapRecordContent(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`<Record content='body'>`, "body"},
		{`<Record content="body">`, "body"},
		{`<Record content='body' >`, "body"},
		{`<Record content='mismatched">`, `'mismatched"`},
		{`<Record content=bare>`, "bare"},
		{"no marker here", "no marker here"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, UnwrapRecordContent(tt.input), "input %q", tt.input)
	}
}

func TestDedupeRemovesDuplicateContexts(t *testing.T) {
	items := []ContextItem{
		{Content: `<Record content='[source: a.pdf | hitChunk: 1 | score: 0.9]\nBody'>`},
		{Content: `[source: a.pdf | hitChunk: 1 | score: 0.9]\nBody`},
		{Content: `<Record content='[source: b.pdf | hitChunk: 3 | score: 0.8]\nBody'>`},
	}

	removed, kept := Dedupe(items)
	assert.Equal(t, 1, removed)
	require.Len(t, kept, 2)
	assert.Equal(t, items[0], kept[0])
	assert.Equal(t, items[2], kept[1])
}

func TestDedupeRemovesIdenticalWrappedDuplicates(t *testing.T) {
	wrapped := ContextItem{Content: `<Record content='[source: a.pdf | hitChunk: 2 | score: 0.7]\nBody'>`}

	removed, kept := Dedupe([]ContextItem{wrapped, wrapped})
	assert.Equal(t, 1, removed)
	assert.Len(t, kept, 1)
}

func TestDedupeEmpty(t *testing.T) {
	removed, kept := Dedupe(nil)
	assert.Zero(t, removed)
	assert.Empty(t, kept)
}
