package database

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "power-atlas/errors"
)

func strPtr(s string) *string { return &s }

func TestValidateGraphName(t *testing.T) {
	for _, name := range []string{"power_atlas_graph", "_g", "G1"} {
		assert.NoError(t, ValidateGraphName(name), name)
	}
	for _, name := range []string{"", "1graph", "graph-name", "g; DROP TABLE x", "g'"} {
		err := ValidateGraphName(name)
		assert.Error(t, err, name)
		assert.True(t, apperrors.IsInvalidInput(err), name)
	}
}

func TestNewAGEHelperWithPoolRejectsInvalidName(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewAGEHelperWithPool(mock, "bad-name", nil)
	assert.True(t, apperrors.IsInvalidInput(err))

	h, err := NewAGEHelperWithPool(mock, "", nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultGraphName, h.GraphName())
}

func TestEnsureGraphCreatesMissingGraph(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	h, err := NewAGEHelperWithPool(mock, "power_atlas_graph", nil)
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM ag_catalog.ag_graph WHERE name = $1)")).
		WithArgs("power_atlas_graph").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(regexp.QuoteMeta("SELECT ag_catalog.create_graph('power_atlas_graph')")).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))

	require.NoError(t, h.EnsureGraph(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureGraphSkipsExistingGraph(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	h, err := NewAGEHelperWithPool(mock, "power_atlas_graph", nil)
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("FROM ag_catalog.ag_graph")).
		WithArgs("power_atlas_graph").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	require.NoError(t, h.EnsureGraph(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureGraphPropagatesDatabaseError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	h, err := NewAGEHelperWithPool(mock, "power_atlas_graph", nil)
	require.NoError(t, err)

	dbErr := errors.New("connection refused")
	mock.ExpectQuery(regexp.QuoteMeta("FROM ag_catalog.ag_graph")).
		WithArgs("power_atlas_graph").
		WillReturnError(dbErr)

	err = h.EnsureGraph(context.Background())
	assert.ErrorIs(t, err, dbErr)
	assert.ErrorIs(t, err, apperrors.ErrDatabaseOperation)
}

func TestExecuteCypherSkipsNullRows(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	h, err := NewAGEHelperWithPool(mock, "power_atlas_graph", nil)
	require.NoError(t, err)

	rows := pgxmock.NewRows([]string{"result"}).
		AddRow(strPtr(`{"id": 1, "label": "Person", "properties": {"name": "Alice"}}::vertex`)).
		AddRow(nil).
		AddRow(strPtr(`"Bob"`))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM cypher('power_atlas_graph', $$ MATCH (n) RETURN n $$) AS (result agtype)")).
		WillReturnRows(rows)

	results, err := h.ExecuteCypher(context.Background(), "  MATCH (n) RETURN n\n", nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, `"Bob"`, results[1]["result"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteCypherBindsParams(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	h, err := NewAGEHelperWithPool(mock, "power_atlas_graph", nil)
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("$$ MATCH (n {name: $name}) RETURN n $$, $1) AS (result agtype)")).
		WithArgs(`{"name":"Alice"}`).
		WillReturnRows(pgxmock.NewRows([]string{"result"}))

	results, err := h.ExecuteCypher(context.Background(), "MATCH (n {name: $name}) RETURN n", map[string]any{"name": "Alice"})
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.NotNil(t, results)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteCypherRejectsBadQueries(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	h, err := NewAGEHelperWithPool(mock, "power_atlas_graph", nil)
	require.NoError(t, err)

	_, err = h.ExecuteCypher(context.Background(), "   ", nil)
	assert.True(t, apperrors.IsInvalidInput(err))

	_, err = h.ExecuteCypher(context.Background(), "RETURN 1 $$) AS (x agtype); DROP TABLE t; --", nil)
	assert.True(t, apperrors.IsInvalidInput(err))
}

func TestSeedDemoGraph(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	h, err := NewAGEHelperWithPool(mock, "power_atlas_graph", nil)
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("$$ MATCH (n) DETACH DELETE n $$")).
		WillReturnRows(pgxmock.NewRows([]string{"result"}))
	for _, q := range []string{
		"CREATE (:Person {name: 'Alice', age: 30})",
		"CREATE (:Person {name: 'Bob', age: 35})",
		"CREATE (:Person {name: 'Charlie', age: 28})",
		"CREATE (a)-[:KNOWS {since: 2020}]->(b)",
		"CREATE (b)-[:KNOWS {since: 2021}]->(c)",
	} {
		mock.ExpectQuery(regexp.QuoteMeta(q)).WillReturnRows(pgxmock.NewRows([]string{"result"}))
	}

	result, err := h.SeedDemoGraph(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "success", result.Status)
	assert.Equal(t, "Demo graph created with 3 persons and 2 relationships", result.Message)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeedDemoGraphStopsOnError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	h, err := NewAGEHelperWithPool(mock, "power_atlas_graph", nil)
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("DETACH DELETE")).WillReturnError(errors.New("graph is locked"))

	result, err := h.SeedDemoGraph(context.Background())
	assert.Nil(t, result)
	assert.ErrorContains(t, err, "graph is locked")
	assert.NoError(t, mock.ExpectationsWereMet())
}
