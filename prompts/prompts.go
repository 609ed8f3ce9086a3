package prompts

import (
	_ "embed"
	"strings"
)

// Embedded prompt files

//go:embed graphrag_system.txt
var graphRAGSystem string

//go:embed graphrag_qa.txt
var graphRAGQA string

//go:embed citation_query.txt
var citationQuery string

//go:embed entity_extraction.txt
var entityExtraction string

func GraphRAGSystem() string   { return strings.TrimSpace(graphRAGSystem) }
func GraphRAGQA() string       { return graphRAGQA }
func EntityExtraction() string { return entityExtraction }

// CitationQuery wraps a user question with the five-bullet, cite-every-bullet
// instructions used for retrieval answers.
func CitationQuery(question string) string {
	return strings.Replace(strings.TrimRight(citationQuery, "\n"), "{question}", question, 1)
}

// Fill substitutes {name} placeholders in template. Unknown placeholders are
// left as they are.
func Fill(template string, values map[string]string) string {
	pairs := make([]string, 0, len(values)*2)
	for k, v := range values {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
