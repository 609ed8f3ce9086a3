package rag

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	escapeToken   = regexp.MustCompile(`\\(?:[nrt\\"']|u[0-9a-fA-F]{4})`)
	unicodeEscape = regexp.MustCompile(`\\u([0-9a-fA-F]{4})`)
)

// escapeOrder is applied sequentially, not as a single-pass replacer.
var escapeOrder = [][2]string{
	{`\r`, "\r"},
	{`\n`, "\n"},
	{`\t`, "\t"},
	{`\\`, `\`},
	{`\"`, `"`},
	{`\'`, `'`},
}

// Normalize decodes literal escape sequences in stored text, strips control
// characters and trims the result. Unrecognized escapes such as \x1b are kept
// as text. \uXXXX escapes in the surrogate range stay literal.
//
// Normalize is idempotent: the cleaning pass is repeated until the text stops
// changing, and every pass that changes the text shortens it.
func Normalize(text string) string {
	out := normalizePass(text)
	for out != text {
		text = out
		out = normalizePass(text)
	}
	return out
}

func normalizePass(text string) string {
	if strings.ContainsRune(text, '\\') && escapeToken.MatchString(text) {
		text = decodeEscapes(text)
	}
	return strings.TrimSpace(stripControl(text))
}

func decodeEscapes(text string) string {
	for _, pair := range escapeOrder {
		text = strings.ReplaceAll(text, pair[0], pair[1])
	}
	return unicodeEscape.ReplaceAllStringFunc(text, func(tok string) string {
		code, err := strconv.ParseUint(tok[2:], 16, 32)
		if err != nil || (code >= 0xD800 && code <= 0xDFFF) {
			return tok
		}
		return string(rune(code))
	})
}

func isStrippedControl(r rune) bool {
	switch {
	case r <= 0x08:
		return true
	case r >= 0x0B && r <= 0x1F:
		return true
	case r >= 0x7F && r <= 0x9F:
		return true
	}
	return false
}

func stripControl(text string) string {
	if strings.IndexFunc(text, isStrippedControl) < 0 {
		return text
	}
	return strings.Map(func(r rune) rune {
		if isStrippedControl(r) {
			return -1
		}
		return r
	}, text)
}
