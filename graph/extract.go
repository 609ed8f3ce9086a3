package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jdkato/prose/v2"
	"go.uber.org/zap"

	"power-atlas/llmclient"
	"power-atlas/prompts"
)

const relatedTo = "RELATED_TO"

// Extractor pulls entities and relationships out of one chunk of text.
type Extractor interface {
	Extract(ctx context.Context, text string, schema Schema) (*Graph, error)
}

// ChatModel is the completion interface the LLM extractor needs.
type ChatModel interface {
	Chat(ctx context.Context, messages []llmclient.Message, opts llmclient.ChatOptions) (string, error)
}

// LLMExtractor asks a chat model for a JSON graph guided by the schema.
// Replies that are not valid JSON yield an empty graph.
type LLMExtractor struct {
	llm    ChatModel
	logger *zap.Logger
}

func NewLLMExtractor(llm ChatModel, logger *zap.Logger) *LLMExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMExtractor{llm: llm, logger: logger}
}

type rawNode struct {
	ID         any            `json:"id"`
	Label      string         `json:"label"`
	Properties map[string]any `json:"properties"`
}

type rawRelationship struct {
	Type        string         `json:"type"`
	StartNodeID any            `json:"start_node_id"`
	EndNodeID   any            `json:"end_node_id"`
	Properties  map[string]any `json:"properties"`
}

type rawGraph struct {
	Nodes         []rawNode         `json:"nodes"`
	Relationships []rawRelationship `json:"relationships"`
}

func (e *LLMExtractor) Extract(ctx context.Context, text string, schema Schema) (*Graph, error) {
	prompt := prompts.Fill(prompts.EntityExtraction(), map[string]string{
		"schema": schema.Describe(),
		"text":   text,
	})

	temperature := 0.0
	reply, err := e.llm.Chat(ctx, []llmclient.Message{{Role: "user", Content: prompt}}, llmclient.ChatOptions{
		Temperature: &temperature,
		MaxTokens:   2000,
		JSONObject:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("entity extraction: %w", err)
	}

	var raw rawGraph
	if err := json.Unmarshal([]byte(stripCodeFence(reply)), &raw); err != nil {
		e.logger.Warn("LLM returned invalid JSON for entity extraction, skipping chunk", zap.Error(err))
		return &Graph{}, nil
	}
	return schema.Prune(resolveIDs(raw)), nil
}

// resolveIDs replaces the model's local node ids with stable entity ids.
func resolveIDs(raw rawGraph) *Graph {
	g := &Graph{}
	ids := make(map[string]string, len(raw.Nodes))
	for _, rn := range raw.Nodes {
		label := strings.TrimSpace(rn.Label)
		if label == "" {
			continue
		}
		node := Node{Label: label, Properties: rn.Properties}
		if node.Properties == nil {
			node.Properties = map[string]any{}
		}
		if name := node.Name(); name != "" {
			node.ID = EntityID(label, name)
		} else {
			node.ID = uuid.NewString()
		}
		ids[fmt.Sprint(rn.ID)] = node.ID
		g.Nodes = append(g.Nodes, node)
	}
	for _, rr := range raw.Relationships {
		start, ok1 := ids[fmt.Sprint(rr.StartNodeID)]
		end, ok2 := ids[fmt.Sprint(rr.EndNodeID)]
		if !ok1 || !ok2 || strings.TrimSpace(rr.Type) == "" {
			continue
		}
		g.Relationships = append(g.Relationships, Relationship{
			StartNodeID: start,
			EndNodeID:   end,
			Type:        strings.TrimSpace(rr.Type),
			Properties:  rr.Properties,
		})
	}
	return g
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// proseLabels maps prose's NER tags onto schema labels.
var proseLabels = map[string]string{
	"PERSON": "Person",
	"ORG":    "Organization",
	"GPE":    "Location",
}

// ProseExtractor is an offline extractor built on prose's named-entity
// model. Entities found in the same sentence are linked with RELATED_TO
// when the schema allows it.
type ProseExtractor struct {
	logger *zap.Logger
}

func NewProseExtractor(logger *zap.Logger) *ProseExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProseExtractor{logger: logger}
}

func (e *ProseExtractor) Extract(ctx context.Context, text string, schema Schema) (*Graph, error) {
	doc, err := prose.NewDocument(text, prose.WithTagging(false), prose.WithExtraction(false))
	if err != nil {
		return nil, fmt.Errorf("segment text: %w", err)
	}

	g := &Graph{}
	seen := make(map[string]bool)
	linked := make(map[string]bool)

	for _, sent := range doc.Sentences() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sentDoc, err := prose.NewDocument(sent.Text, prose.WithSegmentation(false))
		if err != nil {
			e.logger.Debug("Skipping sentence prose could not parse", zap.Error(err))
			continue
		}

		var inSentence []Node
		for _, ent := range sentDoc.Entities() {
			label, ok := proseLabels[ent.Label]
			if !ok {
				continue
			}
			name := strings.Join(strings.Fields(ent.Text), " ")
			node := Node{ID: EntityID(label, name), Label: label, Properties: map[string]any{"name": name}}
			inSentence = append(inSentence, node)
			if !seen[node.ID] {
				seen[node.ID] = true
				g.Nodes = append(g.Nodes, node)
			}
		}

		for i := 0; i < len(inSentence); i++ {
			for j := i + 1; j < len(inSentence); j++ {
				a, b := inSentence[i], inSentence[j]
				if a.ID == b.ID {
					continue
				}
				if !schema.Allows(a.Label, relatedTo, b.Label) {
					if !schema.Allows(b.Label, relatedTo, a.Label) {
						continue
					}
					a, b = b, a
				}
				key := a.ID + ">" + b.ID
				if linked[key] {
					continue
				}
				linked[key] = true
				g.Relationships = append(g.Relationships, Relationship{
					StartNodeID: a.ID,
					EndNodeID:   b.ID,
					Type:        relatedTo,
					Properties:  map[string]any{"evidence": strings.TrimSpace(sent.Text)},
				})
			}
		}
	}
	return schema.Prune(g), nil
}
