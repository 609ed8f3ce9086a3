package ingest

import (
	"fmt"
	"unicode"

	apperrors "power-atlas/errors"
)

// TextChunk is one piece of a document's text. Index is zero-based.
type TextChunk struct {
	Text     string
	Index    int
	UID      string
	Metadata map[string]any
}

// FixedSizeSplitter cuts text into chunks of ChunkSize characters, each
// starting ChunkOverlap characters before the previous one ended. With
// Approximate set, chunk edges are moved back to whitespace so words are not
// split.
type FixedSizeSplitter struct {
	ChunkSize    int
	ChunkOverlap int
	Approximate  bool
}

func NewFixedSizeSplitter(chunkSize, chunkOverlap int, approximate bool) (*FixedSizeSplitter, error) {
	if chunkSize <= 0 {
		return nil, apperrors.WrapErrorf(apperrors.ErrInvalidInput, "chunk_size must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, apperrors.WrapErrorf(apperrors.ErrInvalidInput,
			"chunk_overlap must be non-negative and less than chunk_size (%d), got %d", chunkSize, chunkOverlap)
	}
	return &FixedSizeSplitter{ChunkSize: chunkSize, ChunkOverlap: chunkOverlap, Approximate: approximate}, nil
}

// Split returns the chunks of text in order.
func (s *FixedSizeSplitter) Split(text string) ([]TextChunk, error) {
	if s.ChunkSize <= 0 || s.ChunkOverlap < 0 || s.ChunkOverlap >= s.ChunkSize {
		return nil, apperrors.WrapError(apperrors.ErrInvalidInput, fmt.Sprintf("invalid splitter sizes %d/%d", s.ChunkSize, s.ChunkOverlap))
	}

	runes := []rune(text)
	var pieces []string
	if s.Approximate {
		pieces = s.splitApproximate(runes)
	} else {
		pieces = s.splitExact(runes)
	}

	chunks := make([]TextChunk, len(pieces))
	for i, p := range pieces {
		chunks[i] = TextChunk{Text: p, Index: i}
	}
	return chunks, nil
}

func (s *FixedSizeSplitter) splitExact(runes []rune) []string {
	var out []string
	step := s.ChunkSize - s.ChunkOverlap
	for start := 0; start < len(runes); start += step {
		end := min(start+s.ChunkSize, len(runes))
		out = append(out, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return out
}

func (s *FixedSizeSplitter) splitApproximate(runes []rune) []string {
	var out []string
	n := len(runes)
	i := 0
	prevStart := -1
	for i < n {
		start := 0
		if i > 0 {
			start = adjustChunkStart(runes, i)
			if start <= prevStart {
				// a word longer than the chunk; cut it rather than repeat
				start = i
			}
		}
		prevStart = start
		end := adjustChunkEnd(runes, start, start+s.ChunkSize)
		out = append(out, string(runes[start:end]))
		if end >= n {
			break
		}
		next := end - s.ChunkOverlap
		if next <= start {
			// the overlap would stall the window
			next = end
		}
		i = next
	}
	return out
}

// adjustChunkStart moves start back to the beginning of the word it falls in.
// If the walk reaches the start of the text, the original position is kept.
func adjustChunkStart(runes []rune, start int) int {
	pos := start
	for pos > 0 && !unicode.IsSpace(runes[pos-1]) {
		pos--
	}
	if pos == 0 && !unicode.IsSpace(runes[0]) {
		return start
	}
	return pos
}

// adjustChunkEnd moves end back so it does not cut through a word. If no
// whitespace exists between start and end, end is kept.
func adjustChunkEnd(runes []rune, start, end int) int {
	if end >= len(runes) {
		return len(runes)
	}
	pos := end
	for pos > start && !unicode.IsSpace(runes[pos]) && !unicode.IsSpace(runes[pos-1]) {
		pos--
	}
	if pos == start {
		return end
	}
	return pos
}
