package rag

import "strings"

const recordContentMarker = "content="

// UnwrapRecordContent recovers the content field from a printed record such
// as <Record content='...'>. Text without the marker is returned unchanged.
// Structured callers should read ContextItem.Content directly; this exists for
// items that arrive as record reprs from older exports.
func UnwrapRecordContent(value string) string {
	_, after, found := strings.Cut(value, recordContentMarker)
	if !found {
		return value
	}

	s := strings.TrimSpace(after)
	if strings.HasSuffix(s, ">") {
		s = strings.TrimRightFunc(s[:len(s)-1], isSpace)
	}

	if s != "" {
		first, last := s[0], s[len(s)-1]
		if (first == '\'' || first == '"') && first == last {
			if len(s) == 1 {
				return ""
			}
			s = s[1 : len(s)-1]
		}
	}
	return s
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f'
}
