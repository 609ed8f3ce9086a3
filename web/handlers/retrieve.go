package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "power-atlas/errors"
	"power-atlas/rag"
	"power-atlas/web/format"
)

const previewWidth = 400

// AnswerService answers a question from retrieved context.
type AnswerService interface {
	Search(ctx context.Context, question string, topK int, filters rag.FilterSpec) (*rag.Answer, error)
}

// RetrieveRequest is the body of POST /retrieve.
type RetrieveRequest struct {
	Query        string `json:"query"`
	Corpus       string `json:"corpus"`
	DocType      string `json:"doc_type"`
	DocumentPath string `json:"document_path"`
	TopK         int    `json:"top_k"`
}

// ContextPreview is a shortened context item for display.
type ContextPreview struct {
	Preview  string         `json:"preview"`
	Metadata map[string]any `json:"metadata"`
}

// RetrieveResponse is the body returned by POST /retrieve.
type RetrieveResponse struct {
	Question          string           `json:"question"`
	Answer            string           `json:"answer"`
	AnswerHTML        string           `json:"answer_html"`
	Traces            []string         `json:"traces"`
	DuplicatesRemoved int              `json:"duplicates_removed"`
	Filters           map[string]any   `json:"filters"`
	Contexts          []ContextPreview `json:"contexts"`
}

type RetrieveHandler struct {
	answers     AnswerService
	defaultTopK int
	logger      *zap.Logger
}

// NewRetrieveHandler builds the retrieval endpoint. answers may be nil, in
// which case the endpoint answers 503.
func NewRetrieveHandler(answers AnswerService, defaultTopK int, logger *zap.Logger) *RetrieveHandler {
	if defaultTopK <= 0 {
		defaultTopK = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetrieveHandler{answers: answers, defaultTopK: defaultTopK, logger: logger}
}

// Retrieve answers the question in the request body with cited context.
func (h *RetrieveHandler) Retrieve(c *gin.Context) {
	if h.answers == nil {
		respondWithClientError(c, http.StatusServiceUnavailable, "Retrieval service is not configured")
		return
	}

	var req RetrieveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithClientError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	filters, err := rag.BuildQueryParams(req.Corpus, req.DocType, req.DocumentPath)
	if err != nil {
		if invalid, ok := apperrors.IsInvalidFilterValue(err); ok {
			respondWithClientError(c, http.StatusBadRequest, invalid.Error())
			return
		}
		respondWithClientError(c, http.StatusBadRequest, "Invalid filters")
		return
	}

	topK := req.TopK
	if topK <= 0 {
		topK = h.defaultTopK
	}

	answer, err := h.answers.Search(c.Request.Context(), req.Query, topK, filters)
	if err != nil {
		respondWithError(c, statusForError(err, http.StatusBadGateway), err, "Failed to generate answer", h.logger,
			zap.String("question", req.Query))
		return
	}

	contexts := make([]ContextPreview, 0, len(answer.Items))
	for _, item := range answer.Items {
		contexts = append(contexts, ContextPreview{
			Preview:  rag.Preview(item.Content, previewWidth),
			Metadata: item.Metadata,
		})
	}
	traces := answer.Traces
	if traces == nil {
		traces = []string{}
	}

	c.JSON(http.StatusOK, RetrieveResponse{
		Question:          answer.Question,
		Answer:            answer.Text,
		AnswerHTML:        format.AnswerToHTML(answer.Text),
		Traces:            traces,
		DuplicatesRemoved: answer.DuplicatesRemoved,
		Filters:           filters.QueryParams(),
		Contexts:          contexts,
	})
}
