package rag

import (
	"strconv"
	"strings"
)

const (
	unknownSource = "<unknown>"
	unknownIndex  = "unknown"
	unknownScore  = "n/a"
)

// ContextItem is one formatted retrieval hit. The first line of Content is
// always the provenance header.
type ContextItem struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

// FormatContext renders a record as a provenance header followed by its
// neighbour window:
//
//	[source: <path> | hitChunk: <index> | score: <score>]
//	[prev chunk: <i>]        (only with a predecessor)
//	hit window (chunk <index> | score: <score>)
//	[next chunk: <i>]        (only with a successor)
func FormatContext(rec RecordSource) ContextItem {
	path, hasPath := rec.SourcePath()
	index, hasIndex := rec.HitIndex()
	score, hasScore := rec.Score()

	pathText := unknownSource
	if hasPath {
		pathText = path
	}
	indexText := unknownIndex
	if hasIndex {
		indexText = strconv.Itoa(index)
	}
	scoreText := unknownScore
	if hasScore {
		scoreText = FormatScore(score)
	}

	var b strings.Builder
	b.WriteString("[source: " + pathText + " | hitChunk: " + indexText + " | score: " + scoreText + "]\n")

	if prevIdx, prevText, ok := rec.Prev(); ok {
		b.WriteString("[prev chunk: " + strconv.Itoa(prevIdx) + "]\n")
		b.WriteString(prevText)
		b.WriteString("\n\n")
	}

	b.WriteString("hit window (chunk " + indexText + " | score: " + scoreText + ")\n")
	b.WriteString(rec.HitText())

	if nextIdx, nextText, ok := rec.Next(); ok {
		b.WriteString("\n\n[next chunk: " + strconv.Itoa(nextIdx) + "]\n")
		b.WriteString(nextText)
	}

	metadata := map[string]any{
		"score":       nil,
		"source_path": nil,
		"hit_index":   nil,
	}
	if hasScore {
		metadata["score"] = score
	}
	if hasPath {
		metadata["source_path"] = path
	}
	if hasIndex {
		metadata["hit_index"] = index
	}

	return ContextItem{Content: b.String(), Metadata: metadata}
}

// FormatScore prints the shortest decimal that round-trips to score.
func FormatScore(score float64) string {
	return strconv.FormatFloat(score, 'g', -1, 64)
}
