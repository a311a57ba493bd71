// Package handler provides HTTP handlers for the docquery service.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/docquery/internal/docquery/biz"
	errno "github.com/kart-io/docquery/pkg/errors"
	"github.com/kart-io/docquery/pkg/llm"
)

// Handler handles docquery HTTP requests.
type Handler struct {
	service      biz.Service
	chatProvider llm.ChatProvider
}

// NewHandler creates a new Handler. chatProvider is used by the
// model-graded evaluation scorer.
func NewHandler(service biz.Service, chatProvider llm.ChatProvider) *Handler {
	return &Handler{
		service:      service,
		chatProvider: chatProvider,
	}
}

// SuccessResponse is a standard success response.
type SuccessResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, SuccessResponse{Code: 0, Message: "success", Data: data})
}

func respondError(c *gin.Context, err error) {
	e := errno.FromError(err)
	c.JSON(e.HTTPStatus(), ErrorResponse{Code: e.Code, Message: e.MessageEN})
}

func respondBadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Code:    errno.ErrInvalidParam.Code,
		Message: err.Error(),
	})
}

// Healthz reports liveness.
func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
