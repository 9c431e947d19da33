package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/derslik/tutor/internal/common"
	"github.com/derslik/tutor/internal/httpapi/middleware"
	"github.com/derslik/tutor/internal/turn"
)

type askReq struct {
	Message string `json:"message"`
}

// Ask runs one synchronous chat turn for the resolved identity and returns
// the answer together with best-effort audio.
func (h *Handler) Ask(c *gin.Context) {
	ident, ok := middleware.FromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req askReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	res, err := h.Orc.Run(c.Request.Context(), ident, req.Message)
	switch {
	case err == nil:
	case errors.Is(err, turn.ErrEmptyMessage):
		common.Fail(c, http.StatusBadRequest, 10002, "message must not be empty")
		return
	case errors.Is(err, turn.ErrQuotaExhausted):
		common.Fail(c, http.StatusForbidden, 40302, "demo quota exhausted")
		return
	case errors.Is(err, turn.ErrCompletion):
		log.Printf("[Ask] completion failed identity=%s err=%v", ident.Key(), err)
		common.Fail(c, http.StatusBadGateway, 50201, "completion provider failed")
		return
	default:
		log.Printf("[Ask] turn failed identity=%s err=%v", ident.Key(), err)
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	common.OK(c, gin.H{
		"answer":       res.Answer,
		"audio_base64": res.AudioBase64,
	})
}

// History returns the identity's most recent turns, oldest first.
func (h *Handler) History(c *gin.Context) {
	ident, ok := middleware.FromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	turns, err := h.Store.Recent(c.Request.Context(), ident, limit)
	if err != nil {
		log.Printf("[History] read failed identity=%s err=%v", ident.Key(), err)
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to load history")
		return
	}

	common.OK(c, gin.H{"turns": turns})
}
