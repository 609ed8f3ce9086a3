package database

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/lib/pq"
	"go.uber.org/zap"

	apperrors "power-atlas/errors"
)

// DefaultGraphName is used when AGEOptions.GraphName is empty.
const DefaultGraphName = "power_atlas_graph"

var graphNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// AGEOptions configures an AGEHelper.
type AGEOptions struct {
	ConnString string
	GraphName  string
	MinConns   int32
	MaxConns   int32
}

// AGEHelper runs Cypher against an Apache AGE graph through a pool.
type AGEHelper struct {
	pool      DBPool
	graphName string
	logger    *zap.Logger
}

// ValidateGraphName rejects names that are not plain SQL identifiers. The
// graph name is interpolated into SQL, so only identifiers are allowed.
func ValidateGraphName(name string) error {
	if !graphNamePattern.MatchString(name) {
		return apperrors.WrapErrorf(apperrors.ErrInvalidInput, "invalid graph name %q: must be a valid identifier", name)
	}
	return nil
}

// NewAGEHelper opens a pool with AGE loaded on every connection and makes
// sure the graph exists.
func NewAGEHelper(ctx context.Context, opts AGEOptions, logger *zap.Logger) (*AGEHelper, error) {
	graphName := opts.GraphName
	if graphName == "" {
		graphName = DefaultGraphName
	}
	if err := ValidateGraphName(graphName); err != nil {
		return nil, err
	}

	pool, err := NewPool(ctx, PoolOptions{
		ConnString: opts.ConnString,
		MinConns:   opts.MinConns,
		MaxConns:   opts.MaxConns,
		LoadAGE:    true,
	})
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	h := &AGEHelper{pool: pool, graphName: graphName, logger: logger}
	if err := h.EnsureGraph(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return h, nil
}

// NewAGEHelperWithPool wraps an existing pool. The pool's connections must
// already have AGE loaded.
func NewAGEHelperWithPool(pool DBPool, graphName string, logger *zap.Logger) (*AGEHelper, error) {
	if graphName == "" {
		graphName = DefaultGraphName
	}
	if err := ValidateGraphName(graphName); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AGEHelper{pool: pool, graphName: graphName, logger: logger}, nil
}

// GraphName returns the graph this helper targets.
func (h *AGEHelper) GraphName() string {
	return h.graphName
}

// EnsureGraph creates the graph when it is not yet registered in ag_catalog.
func (h *AGEHelper) EnsureGraph(ctx context.Context) error {
	var exists bool
	err := h.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM ag_catalog.ag_graph WHERE name = $1)`,
		h.graphName,
	).Scan(&exists)
	if err != nil {
		h.logger.Error("Error ensuring graph exists", zap.String("graph", h.graphName), zap.Error(err))
		return fmt.Errorf("%w: check graph %s: %w", apperrors.ErrDatabaseOperation, h.graphName, err)
	}

	if exists {
		h.logger.Info("Graph already exists", zap.String("graph", h.graphName))
		return nil
	}

	if _, err := h.pool.Exec(ctx, `SELECT ag_catalog.create_graph(`+pq.QuoteLiteral(h.graphName)+`)`); err != nil {
		h.logger.Error("Error creating graph", zap.String("graph", h.graphName), zap.Error(err))
		return fmt.Errorf("%w: create graph %s: %w", apperrors.ErrDatabaseOperation, h.graphName, err)
	}
	h.logger.Info("Created graph", zap.String("graph", h.graphName))
	return nil
}

// cypherSQL wraps a Cypher query in AGE's cypher() table function. When
// withParams is set the query can reference $name parameters bound through $1.
func (h *AGEHelper) cypherSQL(query string, withParams bool) string {
	var b strings.Builder
	b.WriteString("SELECT * FROM cypher(")
	b.WriteString(pq.QuoteLiteral(h.graphName))
	b.WriteString(", $$ ")
	b.WriteString(strings.TrimSpace(query))
	b.WriteString(" $$")
	if withParams {
		b.WriteString(", $1")
	}
	b.WriteString(") AS (result agtype)")
	return b.String()
}

// ExecuteCypher runs query and returns one {"result": <agtype text>} map per
// non-null row. Queries must return a single column.
func (h *AGEHelper) ExecuteCypher(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperrors.WrapError(apperrors.ErrInvalidInput, "cypher query is empty")
	}
	if strings.Contains(query, "$$") {
		return nil, apperrors.WrapError(apperrors.ErrInvalidInput, "cypher query must not contain $$")
	}

	var args []any
	if len(params) > 0 {
		encoded, err := json.Marshal(params)
		if err != nil {
			return nil, apperrors.WrapErrorf(apperrors.ErrInvalidInput, "encode cypher params: %v", err)
		}
		args = append(args, string(encoded))
	}

	sql := h.cypherSQL(query, len(args) > 0)
	h.logger.Debug("Executing cypher", zap.String("graph", h.graphName), zap.String("sql", sql))

	rows, err := h.pool.Query(ctx, sql, args...)
	if err != nil {
		h.logger.Error("Error executing Cypher query", zap.Error(err))
		return nil, fmt.Errorf("execute cypher: %w", err)
	}
	defer rows.Close()

	results := make([]map[string]any, 0)
	for rows.Next() {
		var value *string
		if err := rows.Scan(&value); err != nil {
			return nil, fmt.Errorf("scan cypher row: %w", err)
		}
		if value == nil {
			continue
		}
		results = append(results, map[string]any{"result": *value})
	}
	if err := rows.Err(); err != nil {
		h.logger.Error("Error executing Cypher query", zap.Error(err))
		return nil, fmt.Errorf("execute cypher: %w", err)
	}
	return results, nil
}

// SeedResult reports the outcome of SeedDemoGraph.
type SeedResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

var demoSeedQueries = []string{
	`CREATE (:Person {name: 'Alice', age: 30})`,
	`CREATE (:Person {name: 'Bob', age: 35})`,
	`CREATE (:Person {name: 'Charlie', age: 28})`,
	`MATCH (a:Person {name: 'Alice'}), (b:Person {name: 'Bob'})
	CREATE (a)-[:KNOWS {since: 2020}]->(b)`,
	`MATCH (b:Person {name: 'Bob'}), (c:Person {name: 'Charlie'})
	CREATE (b)-[:KNOWS {since: 2021}]->(c)`,
}

// SeedDemoGraph clears the graph and loads three people and two KNOWS edges.
func (h *AGEHelper) SeedDemoGraph(ctx context.Context) (*SeedResult, error) {
	if _, err := h.ExecuteCypher(ctx, "MATCH (n) DETACH DELETE n", nil); err != nil {
		h.logger.Error("Error seeding demo graph", zap.Error(err))
		return nil, fmt.Errorf("clear graph: %w", err)
	}

	for _, q := range demoSeedQueries {
		if _, err := h.ExecuteCypher(ctx, q, nil); err != nil {
			h.logger.Error("Error seeding demo graph", zap.Error(err))
			return nil, fmt.Errorf("seed graph: %w", err)
		}
	}

	h.logger.Info("Demo graph seeded successfully", zap.String("graph", h.graphName))
	return &SeedResult{
		Status:  "success",
		Message: "Demo graph created with 3 persons and 2 relationships",
	}, nil
}

// Close releases the pool.
func (h *AGEHelper) Close() {
	if h.pool != nil {
		h.pool.Close()
		h.logger.Info("Connection pool closed")
	}
}
