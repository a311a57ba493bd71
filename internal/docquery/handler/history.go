package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const defaultHistoryLimit = 20

// GetTableHistory returns a single table history entry by ID.
func (h *Handler) GetTableHistory(c *gin.Context) {
	entry, err := h.service.GetTableHistory(c.Request.Context(), c.Param("project"), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, entry)
}

// ListTableHistory returns table history entries of a project, optionally
// filtered by document. When a prompt query parameter is given the single
// entry for (document_id, prompt) is returned instead.
func (h *Handler) ListTableHistory(c *gin.Context) {
	if prompt := c.Query("prompt"); prompt != "" {
		entry, err := h.service.FindTableHistory(
			c.Request.Context(), c.Param("project"), c.Query("document_id"), prompt)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, entry)
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultHistoryLimit)))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}

	entries, err := h.service.ListTableHistory(
		c.Request.Context(),
		c.Param("project"),
		c.Query("document_id"),
		limit, offset,
	)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, entries)
}
