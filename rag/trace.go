package rag

import "regexp"

var traceHeader = regexp.MustCompile(`^\[source: (?P<source>.+?) \| hitChunk: (?P<hit_chunk>\d+) \|`)

// ExtractTraces returns "<source>#chunk<index>" for every item whose content
// starts with a provenance header. Items without one are skipped. The result
// holds each trace once, in first-seen order.
func ExtractTraces(items []ContextItem) []string {
	sourceIdx := traceHeader.SubexpIndex("source")
	chunkIdx := traceHeader.SubexpIndex("hit_chunk")

	var traces []string
	seen := make(map[string]struct{})
	for _, item := range items {
		text := Normalize(UnwrapRecordContent(item.Content))
		m := traceHeader.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		trace := m[sourceIdx] + "#chunk" + m[chunkIdx]
		if _, dup := seen[trace]; dup {
			continue
		}
		seen[trace] = struct{}{}
		traces = append(traces, trace)
	}
	return traces
}
