package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// CypherExecutor runs parameterized Cypher. *database.AGEHelper satisfies it.
type CypherExecutor interface {
	ExecuteCypher(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)
}

// ChunkRef identifies the stored chunk an extraction came from.
type ChunkRef struct {
	ID           string
	DocumentPath string
	Index        int
}

// WriteCounts reports what one WriteChunkGraph call stored.
type WriteCounts struct {
	Nodes         int
	Relationships int
}

// EntityResetCounts reports what ResetDocumentEntityGraph removed.
type EntityResetCounts struct {
	NodesDeleted         int
	RelationshipsDeleted int
}

// Writer stores extracted graphs in the AGE entity graph. Each entity is
// linked to a Chunk node mirroring the lexical store through FROM_CHUNK.
type Writer struct {
	exec   CypherExecutor
	logger *zap.Logger
}

func NewWriter(exec CypherExecutor, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{exec: exec, logger: logger}
}

var identifierRegex = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// sanitizeIdentifier makes s usable as a label, relationship type or
// property key in a Cypher string.
func sanitizeIdentifier(s, fallback string) string {
	clean := identifierRegex.ReplaceAllString(strings.TrimSpace(s), "_")
	if clean == "" || (clean[0] >= '0' && clean[0] <= '9') {
		return fallback
	}
	return clean
}

// setClause builds "SET v.k1 = $p0, v.k2 = $p1" with values added to params.
// Keys are sorted so the generated query is stable.
func setClause(variable string, props map[string]any, params map[string]any) string {
	keys := make([]string, 0, len(props))
	for k, v := range props {
		if v == nil || k == IDProperty {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for i, k := range keys {
		name := fmt.Sprintf("p%d", i)
		params[name] = props[k]
		parts = append(parts, fmt.Sprintf("%s.%s = $%s", variable, sanitizeIdentifier(k, "prop"), name))
	}
	if len(parts) == 0 {
		return ""
	}
	return " SET " + strings.Join(parts, ", ")
}

// WriteChunkGraph merges g's nodes and relationships into the graph and links
// every node to the chunk.
func (w *Writer) WriteChunkGraph(ctx context.Context, chunk ChunkRef, g *Graph) (WriteCounts, error) {
	var counts WriteCounts

	_, err := w.exec.ExecuteCypher(ctx,
		`MERGE (c:Chunk {id: $chunk_id}) SET c.document_path = $document_path, c.index = $index`,
		map[string]any{"chunk_id": chunk.ID, "document_path": chunk.DocumentPath, "index": chunk.Index},
	)
	if err != nil {
		return counts, fmt.Errorf("merge chunk %s: %w", chunk.ID, err)
	}

	for _, node := range g.Nodes {
		label := sanitizeIdentifier(node.Label, "Entity")
		params := map[string]any{"id": node.ID}
		query := fmt.Sprintf(`MERGE (n:%s {id: $id})%s`, label, setClause("n", node.Properties, params))
		if _, err := w.exec.ExecuteCypher(ctx, query, params); err != nil {
			return counts, fmt.Errorf("merge node %s: %w", node.ID, err)
		}

		link := fmt.Sprintf(`MATCH (n:%s {id: $id}), (c:Chunk {id: $chunk_id}) MERGE (n)-[:%s]->(c)`, label, FromChunkRelationship)
		if _, err := w.exec.ExecuteCypher(ctx, link, map[string]any{"id": node.ID, "chunk_id": chunk.ID}); err != nil {
			return counts, fmt.Errorf("link node %s to chunk: %w", node.ID, err)
		}
		counts.Nodes++
	}

	for _, rel := range g.Relationships {
		relType := sanitizeIdentifier(rel.Type, relatedTo)
		params := map[string]any{"start": rel.StartNodeID, "end": rel.EndNodeID}
		query := fmt.Sprintf(`MATCH (a {id: $start}), (b {id: $end}) MERGE (a)-[r:%s]->(b)%s`,
			relType, setClause("r", rel.Properties, params))
		if _, err := w.exec.ExecuteCypher(ctx, query, params); err != nil {
			return counts, fmt.Errorf("merge relationship %s: %w", relType, err)
		}
		counts.Relationships++
	}

	w.logger.Debug("Wrote chunk entity graph",
		zap.String("chunk_id", chunk.ID),
		zap.Int("nodes", counts.Nodes),
		zap.Int("relationships", counts.Relationships))
	return counts, nil
}

// ResetDocumentEntityGraph removes the FROM_CHUNK links of a document's
// chunks and deletes entities left without any chunk. Entities also
// extracted from other documents survive.
func (w *Writer) ResetDocumentEntityGraph(ctx context.Context, documentPath string) (EntityResetCounts, error) {
	var counts EntityResetCounts
	pathParam := map[string]any{"path": documentPath}

	rows, err := w.exec.ExecuteCypher(ctx,
		`MATCH (n)-[:FROM_CHUNK]->(c:Chunk {document_path: $path}) RETURN DISTINCT n.id`, pathParam)
	if err != nil {
		return counts, fmt.Errorf("find entities of %s: %w", documentPath, err)
	}
	var candidates []string
	for _, row := range rows {
		if id, ok := agtypeString(row["result"]); ok {
			candidates = append(candidates, id)
		}
	}

	rows, err = w.exec.ExecuteCypher(ctx,
		`MATCH ()-[r:FROM_CHUNK]->(c:Chunk {document_path: $path}) DELETE r RETURN 1`, pathParam)
	if err != nil {
		return counts, fmt.Errorf("unlink entities of %s: %w", documentPath, err)
	}
	counts.RelationshipsDeleted = len(rows)

	for _, id := range candidates {
		rows, err := w.exec.ExecuteCypher(ctx,
			`MATCH (n {id: $id}) WHERE NOT exists((n)-[:FROM_CHUNK]->()) DETACH DELETE n RETURN 1`,
			map[string]any{"id": id})
		if err != nil {
			return counts, fmt.Errorf("delete entity %s: %w", id, err)
		}
		counts.NodesDeleted += len(rows)
	}

	w.logger.Info("Entity graph removed for document",
		zap.String("path", documentPath),
		zap.Int("nodes_deleted", counts.NodesDeleted),
		zap.Int("rels_deleted", counts.RelationshipsDeleted))
	return counts, nil
}

// agtypeString decodes an agtype string scalar such as "\"abc\"".
func agtypeString(v any) (string, bool) {
	raw, ok := v.(string)
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return "", false
	}
	return s, true
}
