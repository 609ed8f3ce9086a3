package ingest

import (
	"fmt"
	"path/filepath"

	"power-atlas/graph"
)

// Document is one file to ingest together with its metadata.
type Document struct {
	FilePath string
	Metadata map[string]any
}

// DefaultDocuments returns the demo corpus under dataDir with absolute paths.
func DefaultDocuments(dataDir string) ([]Document, error) {
	abs, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("resolve data dir %s: %w", dataDir, err)
	}
	return []Document{
		{
			FilePath: filepath.Join(abs, "power_atlas_factsheet.pdf"),
			Metadata: map[string]any{"corpus": "power_atlas_demo", "doc_type": "facts"},
		},
		{
			FilePath: filepath.Join(abs, "power_atlas_analyst_note.pdf"),
			Metadata: map[string]any{"corpus": "power_atlas_demo", "doc_type": "narrative"},
		},
	}, nil
}

// Info builds the DocumentInfo for d. Path and UID are the slash-separated
// file path.
func (d Document) Info() graph.DocumentInfo {
	path := filepath.ToSlash(d.FilePath)
	docType, _ := d.Metadata["doc_type"].(string)
	return graph.DocumentInfo{
		Path:         path,
		UID:          path,
		Metadata:     d.Metadata,
		DocumentType: docType,
	}
}

// ChunkID is the deterministic id of a document's chunk.
func ChunkID(documentUID string, index int) string {
	return fmt.Sprintf("%s:%d", documentUID, index)
}

// PrepareChunks gives every chunk a deterministic uid and provenance
// metadata (chunk id, document path, document metadata), so the entity pass
// can find chunks again without rebuilding the lexical graph.
func PrepareChunks(chunks []TextChunk, doc graph.DocumentInfo) []TextChunk {
	prepared := make([]TextChunk, 0, len(chunks))
	for _, chunk := range chunks {
		id := ChunkID(doc.UID, chunk.Index)
		metadata := make(map[string]any, len(chunk.Metadata)+len(doc.Metadata)+2)
		for k, v := range chunk.Metadata {
			metadata[k] = v
		}
		for k, v := range doc.Metadata {
			metadata[k] = v
		}
		metadata[graph.ChunkIDProperty] = id
		metadata[graph.DocumentPathProperty] = doc.Path
		prepared = append(prepared, TextChunk{
			Text:     chunk.Text,
			Index:    chunk.Index,
			UID:      id,
			Metadata: metadata,
		})
	}
	return prepared
}
