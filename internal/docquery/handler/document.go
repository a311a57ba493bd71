package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/kart-io/docquery/internal/docquery/biz"
)

// IngestDocumentRequest represents a single document ingestion request.
// Content is base64-encoded in JSON.
type IngestDocumentRequest struct {
	DocumentID string `json:"document_id"`
	Name       string `json:"name" binding:"required"`
	MediaType  string `json:"media_type" binding:"required"`
	Content    []byte `json:"content" binding:"required"`
}

func (r *IngestDocumentRequest) toBizRequest(projectID string) *biz.IngestRequest {
	return &biz.IngestRequest{
		ProjectID:  projectID,
		DocumentID: r.DocumentID,
		Name:       r.Name,
		MediaType:  r.MediaType,
		Data:       r.Content,
	}
}

// Ingest indexes a single document.
func (h *Handler) Ingest(c *gin.Context) {
	var req IngestDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	result, err := h.service.Ingest(c.Request.Context(), req.toBizRequest(c.Param("project")))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, result)
}

// BatchIngestRequest represents a batch ingestion request.
type BatchIngestRequest struct {
	Documents []IngestDocumentRequest `json:"documents" binding:"required,min=1,dive"`
}

// IngestBatch indexes multiple documents concurrently. A failed document
// never fails the batch; the per-item results carry the detail.
func (h *Handler) IngestBatch(c *gin.Context) {
	var req BatchIngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	projectID := c.Param("project")
	reqs := make([]*biz.IngestRequest, len(req.Documents))
	for i := range req.Documents {
		reqs[i] = req.Documents[i].toBizRequest(projectID)
	}

	batch, err := h.service.IngestBatch(c.Request.Context(), reqs)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, batch)
}

// ListDocuments returns all documents of a project.
func (h *Handler) ListDocuments(c *gin.Context) {
	docs, err := h.service.ListDocuments(c.Request.Context(), c.Param("project"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, docs)
}

// DeleteDocument removes a document from the vector index and the
// relational store, including its table history.
func (h *Handler) DeleteDocument(c *gin.Context) {
	err := h.service.DeleteDocument(c.Request.Context(), c.Param("project"), c.Param("document"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, nil)
}

// Stats returns service statistics for a project.
func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context(), c.Param("project"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, stats)
}
