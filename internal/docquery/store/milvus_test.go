package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocExpr(t *testing.T) {
	expr := docExpr("p1", "doc-a")
	assert.Equal(t, `project_id == "p1" && document_id == "doc-a"`, expr)
}

func TestScopeExprWholeProject(t *testing.T) {
	expr := scopeExpr(Scope{ProjectID: "p1"})
	assert.Equal(t, `project_id == "p1"`, expr)
}

func TestScopeExprExplicitDocuments(t *testing.T) {
	expr := scopeExpr(Scope{ProjectID: "p1", DocumentIDs: []string{"a", "b"}})
	assert.Equal(t, `project_id == "p1" && document_id in ["a", "b"]`, expr)
}

func TestQuoteExprEscapes(t *testing.T) {
	assert.Equal(t, `"a\"b"`, quoteExpr(`a"b`))
	assert.Equal(t, `"a\\b"`, quoteExpr(`a\b`))
}
