package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/derslik/tutor/internal/common"
	"github.com/derslik/tutor/internal/httpapi/middleware"
	"github.com/derslik/tutor/internal/identity"
	"github.com/derslik/tutor/internal/turn"
)

// AskAsync enqueues a chat turn for background processing. Registered
// users only; the worker runs the same orchestrator without speech.
func (h *Handler) AskAsync(c *gin.Context) {
	ident, ok := middleware.FromContext(c)
	if !ok || ident.Kind != identity.KindUser {
		common.Fail(c, http.StatusUnauthorized, 40103, "login required")
		return
	}
	if h.Rabbit == nil {
		common.Fail(c, http.StatusServiceUnavailable, 50301, "async processing disabled")
		return
	}

	var req askReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "message must not be empty")
		return
	}

	idempoKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	if len(idempoKey) > 128 {
		common.Fail(c, http.StatusBadRequest, 10003, "idempotency key too long")
		return
	}
	var idempoKeyPtr *string
	if idempoKey != "" {
		idempoKeyPtr = &idempoKey
	}

	jobID, err := common.NewULID()
	if err != nil {
		log.Printf("[AskAsync] ulid failed uid=%d err=%v", ident.UserID, err)
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	j := &turn.AskJob{
		ID:             jobID,
		UserID:         ident.UserID,
		Prompt:         req.Message,
		IdempotencyKey: idempoKeyPtr,
		Status:         turn.JobQueued,
	}

	j, created, err := h.Jobs.CreateOrGetExisting(c.Request.Context(), j)
	if err != nil {
		log.Printf("[AskAsync] create job failed uid=%d err=%v", ident.UserID, err)
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	// enqueue only when a new job was created
	if created {
		if err := h.Rabbit.PublishJob(c.Request.Context(), j.ID); err != nil {
			log.Printf("[AskAsync] publish failed uid=%d job_id=%s err=%v", ident.UserID, j.ID, err)
			common.Fail(c, http.StatusInternalServerError, 50002, "enqueue failed")
			return
		}
	}

	common.OK(c, gin.H{"job_id": j.ID})
}

func (h *Handler) GetJob(c *gin.Context) {
	ident, ok := middleware.FromContext(c)
	if !ok || ident.Kind != identity.KindUser {
		common.Fail(c, http.StatusUnauthorized, 40103, "login required")
		return
	}

	jobID := c.Param("job_id")
	if jobID == "" {
		common.Fail(c, http.StatusBadRequest, 10006, "job_id required")
		return
	}

	j, err := h.Jobs.GetByID(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40402, "job not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	if j.UserID != ident.UserID {
		// hide existence
		common.Fail(c, http.StatusNotFound, 40402, "job not found")
		return
	}

	common.OK(c, gin.H{
		"job": gin.H{
			"id":             j.ID,
			"status":         j.Status,
			"result_turn_id": j.ResultTurnID,
			"error":          j.Error,
			"created_at":     j.CreatedAt,
			"updated_at":     j.UpdatedAt,
		},
	})
}
