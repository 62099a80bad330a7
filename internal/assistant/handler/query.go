// Package handler provides HTTP handlers for the study assistant service.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/studyrag/internal/assistant/biz"
)

// 同步查询的最长处理时间，覆盖意图解析与回答生成两次 LLM 调用。
const queryTimeout = 60 * time.Second

// QueryHandler handles study-assistant HTTP requests.
type QueryHandler struct {
	service *biz.Service
}

// NewQueryHandler creates a new QueryHandler.
func NewQueryHandler(service *biz.Service) *QueryHandler {
	return &QueryHandler{service: service}
}

// SuccessResponse is a standard success response.
type SuccessResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// QueryRequest represents a query request.
type QueryRequest struct {
	Query string `json:"query" binding:"required"`
}

// statusFor 将业务错误映射为 HTTP 状态码。
func statusFor(err error) int {
	switch {
	case errors.Is(err, biz.ErrEmptyQuery):
		return http.StatusBadRequest
	case biz.IsIntentParseError(err):
		return http.StatusUnprocessableEntity
	case biz.IsTransientError(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Query performs a synchronous study-assistant query.
func (h *QueryHandler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: 400, Message: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	resp, err := h.service.Query(ctx, req.Query)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			c.JSON(http.StatusRequestTimeout, ErrorResponse{
				Code:    408,
				Message: "Query timeout: the request took too long to process. Please try again or simplify your question.",
			})
			return
		}
		status := statusFor(err)
		c.JSON(status, ErrorResponse{Code: status, Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Code: 0, Message: "success", Data: resp})
}

// QueryStream performs a query and streams stage events over SSE.
// 事件流以 complete 或 error 事件结束，之后连接关闭。
func (h *QueryHandler) QueryStream(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: 400, Message: err.Error()})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	for ev := range h.service.QueryStream(ctx, req.Query) {
		data := ev.Data
		if data == nil {
			// 纯阶段事件没有负载，SSE data 行仍需存在
			data = ""
		}
		c.SSEvent(string(ev.Name), data)
		c.Writer.Flush()
	}
}

// Stats returns service statistics.
func (h *QueryHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: 500, Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Code: 0, Message: "success", Data: stats})
}

// ClearCache drops all cached query responses.
func (h *QueryHandler) ClearCache(c *gin.Context) {
	if err := h.service.ClearCache(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: 500, Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Code: 0, Message: "cache cleared"})
}

// Vocabulary returns the subject/topic vocabulary.
func (h *QueryHandler) Vocabulary(c *gin.Context) {
	c.JSON(http.StatusOK, SuccessResponse{Code: 0, Message: "success", Data: h.service.Vocabulary()})
}

// Healthz is a liveness probe.
func (h *QueryHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
