package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"power-atlas/database"
)

// GraphService runs Cypher against the AGE graph.
type GraphService interface {
	ExecuteCypher(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)
	SeedDemoGraph(ctx context.Context) (*database.SeedResult, error)
}

// CypherRequest is the body of POST /cypher.
type CypherRequest struct {
	Query  string         `json:"query"`
	Params map[string]any `json:"params,omitempty"`
}

type GraphHandler struct {
	graph  GraphService
	logger *zap.Logger
}

// NewGraphHandler builds the graph endpoints. graph may be nil when the
// database is unavailable; the endpoints then answer 503.
func NewGraphHandler(graph GraphService, logger *zap.Logger) *GraphHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GraphHandler{graph: graph, logger: logger}
}

// Cypher executes the query in the request body.
func (h *GraphHandler) Cypher(c *gin.Context) {
	if h.graph == nil {
		respondWithClientError(c, http.StatusServiceUnavailable, "Graph query service is not configured")
		return
	}

	var req CypherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithClientError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		respondWithClientError(c, http.StatusBadRequest, "Query cannot be empty")
		return
	}

	results, err := h.graph.ExecuteCypher(c.Request.Context(), req.Query, req.Params)
	if err != nil {
		respondWithError(c, statusForError(err, http.StatusInternalServerError), err,
			"Failed to execute query", h.logger, zap.String("query", req.Query))
		return
	}
	if results == nil {
		results = []map[string]any{}
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// Seed replaces the graph contents with the demo data set.
func (h *GraphHandler) Seed(c *gin.Context) {
	if h.graph == nil {
		respondWithClientError(c, http.StatusServiceUnavailable, "Graph seed service is not configured")
		return
	}

	result, err := h.graph.SeedDemoGraph(c.Request.Context())
	if err != nil {
		respondWithError(c, http.StatusInternalServerError, err, "Failed to seed demo graph", h.logger)
		return
	}
	c.JSON(http.StatusOK, result)
}
