package graph

import (
	"strings"

	"github.com/google/uuid"
)

// Property keys shared between the lexical store and the entity graph.
const (
	DocumentPathProperty = "document_path"
	ChunkIDProperty      = "chunk_id"
	DocTypeProperty      = "doc_type"
	IDProperty           = "id"
)

// Lexical labels. Nodes carrying them are never given entity provenance.
const (
	DocumentLabel = "Document"
	ChunkLabel    = "Chunk"
)

// FromChunkRelationship links an entity to the chunk it was extracted from.
const FromChunkRelationship = "FROM_CHUNK"

// Node is an extracted entity.
type Node struct {
	ID         string         `json:"id"`
	Label      string         `json:"label"`
	Properties map[string]any `json:"properties"`
}

// Relationship connects two nodes of the same extraction by id.
type Relationship struct {
	StartNodeID string         `json:"start_node_id"`
	EndNodeID   string         `json:"end_node_id"`
	Type        string         `json:"type"`
	Properties  map[string]any `json:"properties"`
}

// Graph is the extraction result for one chunk.
type Graph struct {
	Nodes         []Node         `json:"nodes"`
	Relationships []Relationship `json:"relationships"`
}

// Name returns the node's name property, or "" when missing.
func (n Node) Name() string {
	s, _ := n.Properties["name"].(string)
	return s
}

var entityNamespace = uuid.MustParse("6f0d9a7e-3c1b-4a51-9a0f-0c5d2b7e8a41")

// EntityID derives a stable id from label and name so the same entity
// extracted from several chunks maps to one graph node.
func EntityID(label, name string) string {
	key := strings.ToLower(strings.TrimSpace(label)) + "|" + strings.ToLower(strings.Join(strings.Fields(name), " "))
	return uuid.NewSHA1(entityNamespace, []byte(key)).String()
}
