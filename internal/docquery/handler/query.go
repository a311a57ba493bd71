package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/kart-io/docquery/internal/model"
	errno "github.com/kart-io/docquery/pkg/errors"
)

// Query modes.
const (
	ModeChat  = "chat"
	ModeTable = "table"
)

// QueryRequest represents a query in either chat or table mode.
type QueryRequest struct {
	// Mode is "chat" (default) or "table".
	Mode        string   `json:"mode"`
	Question    string   `json:"question"`
	DocumentIDs []string `json:"document_ids"`
	TopK        int      `json:"top_k"`

	// Columns is required in table mode; one table column per entry.
	Columns []model.TableColumn `json:"columns"`
}

// Query answers a question over the project's documents. Chat mode returns
// a free-text answer with sources; table mode returns one row per document
// and one cell per column prompt.
func (h *Handler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	projectID := c.Param("project")
	switch req.Mode {
	case "", ModeChat:
		if req.Question == "" {
			respondError(c, errno.ErrInvalidParam.WithMessage("question is required in chat mode"))
			return
		}
		result, err := h.service.Query(c.Request.Context(), projectID, req.Question, req.DocumentIDs, req.TopK)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, result)

	case ModeTable:
		if len(req.Columns) == 0 {
			respondError(c, errno.ErrInvalidParam.WithMessage("columns are required in table mode"))
			return
		}
		resp, err := h.service.QueryTable(c.Request.Context(), projectID, req.Columns, req.DocumentIDs)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, resp)

	default:
		respondError(c, errno.ErrInvalidParam.WithMessagef("unknown query mode %q", req.Mode))
	}
}
