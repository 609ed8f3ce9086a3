package rag

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"power-atlas/llmclient"
	"power-atlas/prompts"
)

// ChatModel is the answer-generation side of GraphRAG.
type ChatModel interface {
	Chat(ctx context.Context, messages []llmclient.Message, opts llmclient.ChatOptions) (string, error)
}

// ContextSearcher produces formatted context items for a query.
type ContextSearcher interface {
	Search(ctx context.Context, queryText string, topK int, filters FilterSpec) (*RetrieverResult, error)
}

// Answer is a generated response and the evidence it was built from.
type Answer struct {
	Question          string
	QueryText         string
	Text              string
	Traces            []string
	DuplicatesRemoved int
	Items             []ContextItem
	Retrieval         *RetrieverResult
}

// GraphRAG answers questions from retrieved context, forcing every bullet
// to cite a provenance header.
type GraphRAG struct {
	retriever ContextSearcher
	llm       ChatModel
	examples  string
	logger    *zap.Logger
}

func NewGraphRAG(retriever ContextSearcher, llm ChatModel, logger *zap.Logger) *GraphRAG {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GraphRAG{retriever: retriever, llm: llm, logger: logger}
}

// SetExamples sets the few-shot examples block of the QA prompt.
func (g *GraphRAG) SetExamples(examples string) {
	g.examples = examples
}

// DefaultQuestion is asked when the caller supplies none.
const DefaultQuestion = "Summarize the document in 5 bullets."

// Search retrieves context for question, removes duplicate items and asks
// the LLM for a cited answer. LLM and retrieval errors are returned wrapped.
func (g *GraphRAG) Search(ctx context.Context, question string, topK int, filters FilterSpec) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		question = DefaultQuestion
	}
	queryText := prompts.CitationQuery(question)

	result, err := g.retriever.Search(ctx, queryText, topK, filters)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}

	removed, kept := Dedupe(result.Items)
	if removed > 0 {
		g.logger.Info("Removed duplicate context items", zap.Int("removed", removed))
	}
	traces := ExtractTraces(kept)

	prompt := prompts.Fill(prompts.GraphRAGQA(), map[string]string{
		"context":    BuildContext(kept),
		"examples":   g.examples,
		"query_text": queryText,
	})

	temperature := 0.0
	text, err := g.llm.Chat(ctx, []llmclient.Message{
		{Role: "system", Content: prompts.GraphRAGSystem()},
		{Role: "user", Content: prompt},
	}, llmclient.ChatOptions{Temperature: &temperature})
	if err != nil {
		g.logger.Error("Answer generation failed", zap.Error(err))
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	return &Answer{
		Question:          question,
		QueryText:         queryText,
		Text:              strings.TrimSpace(text),
		Traces:            traces,
		DuplicatesRemoved: removed,
		Items:             kept,
		Retrieval:         result,
	}, nil
}

// BuildContext joins item contents, one item per block.
func BuildContext(items []ContextItem) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, Normalize(UnwrapRecordContent(item.Content)))
	}
	return strings.Join(parts, "\n")
}
