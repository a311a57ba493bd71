package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/kart-io/docquery/internal/pkg/eval"
	errno "github.com/kart-io/docquery/pkg/errors"
)

// EvaluateRequest represents an offline evaluation request.
type EvaluateRequest struct {
	// Scorer is "overlap" (default) or "model".
	Scorer   string         `json:"scorer"`
	Examples []eval.Example `json:"examples" binding:"required,min=1"`
}

// Evaluate runs the evaluation harness over labeled examples.
func (h *Handler) Evaluate(c *gin.Context) {
	var req EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	projectID := c.Param("project")
	for i := range req.Examples {
		if req.Examples[i].ProjectID == "" {
			req.Examples[i].ProjectID = projectID
		}
	}

	var scorer eval.Scorer
	switch req.Scorer {
	case "", "overlap":
		scorer = eval.NewOverlapScorer()
	case "model":
		scorer = eval.NewModelScorer(h.chatProvider)
	default:
		respondError(c, errno.ErrInvalidParam.WithMessagef("unknown scorer %q", req.Scorer))
		return
	}

	report, err := h.service.Evaluate(c.Request.Context(), req.Examples, scorer)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, report)
}
