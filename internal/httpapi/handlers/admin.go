package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/derslik/tutor/internal/auth"
	"github.com/derslik/tutor/internal/common"
	"github.com/derslik/tutor/internal/models"
)

type adminLoginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AdminLogin exchanges the injected admin credentials for a one-hour
// admin token.
func (h *Handler) AdminLogin(c *gin.Context) {
	if h.Cfg.AdminPasswordHash == "" {
		common.Fail(c, http.StatusForbidden, 40303, "admin login disabled")
		return
	}

	var req adminLoginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if req.Username != h.Cfg.AdminUsername || !auth.CheckPassword(h.Cfg.AdminPasswordHash, req.Password) {
		common.Fail(c, http.StatusUnauthorized, 40104, "invalid credentials")
		return
	}

	token, err := auth.SignAdminToken(req.Username, h.Cfg.JWTSecret)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20003, "failed to sign token")
		return
	}

	common.OK(c, gin.H{
		"token":      token,
		"expires_in": int(auth.AdminTokenTTL.Seconds()),
	})
}

type setTierReq struct {
	Tier string `json:"tier"`
}

// SetUserTier flips a user's membership tier through the quota ledger.
func (h *Handler) SetUserTier(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10004, "invalid user id")
		return
	}

	var req setTierReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	tier := strings.ToLower(strings.TrimSpace(req.Tier))
	if tier != models.TierDemo && tier != models.TierActive {
		common.Fail(c, http.StatusBadRequest, 10005, "tier must be demo or active")
		return
	}

	if err := h.Ledger.SetTier(c.Request.Context(), id, tier); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40401, "user not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}

	var user models.User
	if err := h.DB.WithContext(c.Request.Context()).First(&user, id).Error; err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}

	common.OK(c, gin.H{
		"id":              user.ID,
		"tier":            user.Tier,
		"remaining_turns": user.RemainingTurns,
	})
}

// AdminGetUser returns a user's profile and quota standing.
func (h *Handler) AdminGetUser(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10004, "invalid user id")
		return
	}

	var user models.User
	if err := h.DB.WithContext(c.Request.Context()).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40401, "user not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}

	common.OK(c, gin.H{
		"id":              user.ID,
		"username":        user.Username,
		"email":           user.Email,
		"name":            user.Name,
		"grade":           user.Grade,
		"tier":            user.Tier,
		"remaining_turns": user.RemainingTurns,
		"created_at":      user.CreatedAt,
	})
}
