package format

import (
	"regexp"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"
)

var (
	numberedListItem = regexp.MustCompile(`^\d+\.\s`)
	htmlPolicy       = bluemonday.UGCPolicy()
)

// AnswerToHTML renders a markdown answer as HTML. Raw HTML in the answer is
// dropped and the output is sanitized, since answers echo document text.
func AnswerToHTML(text string) string {
	text = PreprocessAssistantText(text)
	if strings.TrimSpace(text) == "" {
		return ""
	}

	// Normalize markdown - ensure lists have blank lines before them
	text = normalizeMarkdownLists(text)

	p := parser.NewWithExtensions(parser.CommonExtensions)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.SkipHTML})
	return string(htmlPolicy.SanitizeBytes(markdown.ToHTML([]byte(text), p, renderer)))
}

// PreprocessAssistantText replaces curly quotes with plain ones.
func PreprocessAssistantText(text string) string {
	if text == "" {
		return text
	}
	return strings.NewReplacer(
		"“", "\"",
		"”", "\"",
		"‘", "'",
		"’", "'",
	).Replace(text)
}

func isListItem(line string) bool {
	return strings.HasPrefix(line, "- ") ||
		strings.HasPrefix(line, "* ") ||
		strings.HasPrefix(line, "+ ") ||
		numberedListItem.MatchString(line)
}

// normalizeMarkdownLists ensures list items have proper spacing for markdown parsing.
// Markdown requires a blank line before lists, but LLMs often forget this.
func normalizeMarkdownLists(text string) string {
	lines := strings.Split(text, "\n")
	result := make([]string, 0, len(lines))

	for i, line := range lines {
		if i > 0 && isListItem(strings.TrimSpace(line)) {
			prevLine := strings.TrimSpace(lines[i-1])
			if prevLine != "" && !isListItem(prevLine) {
				result = append(result, "")
			}
		}
		result = append(result, line)
	}

	return strings.Join(result, "\n")
}
