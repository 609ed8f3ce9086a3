package graph

import (
	"fmt"
	"strings"
)

// PropertyType describes one node or relationship property.
type PropertyType struct {
	Name        string
	Type        string
	Description string
	Required    bool
}

// NodeType is an entity label the extractor may produce.
type NodeType struct {
	Label                string
	Description          string
	Properties           []PropertyType
	AdditionalProperties bool
}

// RelationshipType is a relationship label the extractor may produce.
type RelationshipType struct {
	Label                string
	Description          string
	Properties           []PropertyType
	AdditionalProperties bool
}

// Pattern allows Relationship between nodes labelled Source and Target.
type Pattern struct {
	Source       string
	Relationship string
	Target       string
}

// Schema guides extraction and filters its output.
type Schema struct {
	NodeTypes                   []NodeType
	RelationshipTypes           []RelationshipType
	Patterns                    []Pattern
	AdditionalNodeTypes         bool
	AdditionalRelationshipTypes bool
	AdditionalPatterns          bool
}

func requiredName(description string) []PropertyType {
	return []PropertyType{{Name: "name", Type: "STRING", Description: description, Required: true}}
}

// DefaultSchema is the Person/Organization/Event schema used for the demo
// corpus. Additional types and patterns are allowed.
func DefaultSchema() Schema {
	return Schema{
		NodeTypes: []NodeType{
			{
				Label:                "Person",
				Description:          "A named individual mentioned in the document.",
				Properties:           requiredName("Full name of the person."),
				AdditionalProperties: true,
			},
			{
				Label:                "Organization",
				Description:          "An organization, company, or institution.",
				Properties:           requiredName("Official organization name."),
				AdditionalProperties: true,
			},
			{
				Label:                "Event",
				Description:          "A notable event referenced in the document.",
				Properties:           requiredName("Canonical event name."),
				AdditionalProperties: true,
			},
		},
		RelationshipTypes: []RelationshipType{
			{
				Label:                "RELATED_TO",
				Description:          "General relationship between extracted entities.",
				AdditionalProperties: true,
			},
		},
		Patterns: []Pattern{
			{Source: "Person", Relationship: "RELATED_TO", Target: "Person"},
			{Source: "Person", Relationship: "RELATED_TO", Target: "Organization"},
			{Source: "Person", Relationship: "RELATED_TO", Target: "Event"},
			{Source: "Organization", Relationship: "RELATED_TO", Target: "Organization"},
			{Source: "Organization", Relationship: "RELATED_TO", Target: "Event"},
		},
		AdditionalNodeTypes:         true,
		AdditionalRelationshipTypes: true,
		AdditionalPatterns:          true,
	}
}

func (s Schema) nodeType(label string) (NodeType, bool) {
	for _, nt := range s.NodeTypes {
		if nt.Label == label {
			return nt, true
		}
	}
	return NodeType{}, false
}

func (s Schema) hasRelationshipType(label string) bool {
	for _, rt := range s.RelationshipTypes {
		if rt.Label == label {
			return true
		}
	}
	return false
}

// Allows reports whether a relationship between the given labels fits the
// schema's patterns.
func (s Schema) Allows(source, relationship, target string) bool {
	for _, p := range s.Patterns {
		if p.Source == source && p.Relationship == relationship && p.Target == target {
			return true
		}
	}
	return s.AdditionalPatterns
}

// Describe renders the schema for an extraction prompt.
func (s Schema) Describe() string {
	var b strings.Builder
	b.WriteString("Node types:\n")
	for _, nt := range s.NodeTypes {
		fmt.Fprintf(&b, "- %s: %s", nt.Label, nt.Description)
		for _, p := range nt.Properties {
			req := ""
			if p.Required {
				req = ", required"
			}
			fmt.Fprintf(&b, " [%s %s%s]", p.Name, p.Type, req)
		}
		b.WriteString("\n")
	}
	b.WriteString("Relationship types:\n")
	for _, rt := range s.RelationshipTypes {
		fmt.Fprintf(&b, "- %s: %s\n", rt.Label, rt.Description)
	}
	b.WriteString("Patterns:\n")
	for _, p := range s.Patterns {
		fmt.Fprintf(&b, "- (%s)-[:%s]->(%s)\n", p.Source, p.Relationship, p.Target)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Prune drops nodes the schema does not accept (unknown labels when
// additional types are off, or missing required properties) and
// relationships that no longer connect two kept nodes or break the patterns.
func (s Schema) Prune(g *Graph) *Graph {
	out := &Graph{}
	labels := make(map[string]string, len(g.Nodes))

	for _, n := range g.Nodes {
		nt, known := s.nodeType(n.Label)
		if !known && !s.AdditionalNodeTypes {
			continue
		}
		if known && !hasRequired(n.Properties, nt.Properties) {
			continue
		}
		labels[n.ID] = n.Label
		out.Nodes = append(out.Nodes, n)
	}

	for _, r := range g.Relationships {
		src, ok1 := labels[r.StartNodeID]
		dst, ok2 := labels[r.EndNodeID]
		if !ok1 || !ok2 {
			continue
		}
		if !s.hasRelationshipType(r.Type) && !s.AdditionalRelationshipTypes {
			continue
		}
		if !s.Allows(src, r.Type, dst) {
			continue
		}
		out.Relationships = append(out.Relationships, r)
	}
	return out
}

func hasRequired(props map[string]any, want []PropertyType) bool {
	for _, p := range want {
		if !p.Required {
			continue
		}
		v, ok := props[p.Name]
		if !ok || v == nil {
			return false
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			return false
		}
	}
	return true
}
