package handlers

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/derslik/tutor/internal/common"
	"github.com/derslik/tutor/internal/config"
	"github.com/derslik/tutor/internal/conversation"
	"github.com/derslik/tutor/internal/quota"
	"github.com/derslik/tutor/internal/store/rabbitmq"
	"github.com/derslik/tutor/internal/turn"
)

type Handler struct {
	DB     *gorm.DB
	Cfg    config.Config
	Orc    *turn.Orchestrator
	Store  *conversation.Router
	Ledger *quota.Ledger
	Jobs   *turn.JobRepo
	Rabbit *rabbitmq.Publisher // nil when the async path is disabled
}

func NewHandler(db *gorm.DB, cfg config.Config, orc *turn.Orchestrator, store *conversation.Router, ledger *quota.Ledger, jobs *turn.JobRepo, rabbit *rabbitmq.Publisher) *Handler {
	return &Handler{
		DB:     db,
		Cfg:    cfg,
		Orc:    orc,
		Store:  store,
		Ledger: ledger,
		Jobs:   jobs,
		Rabbit: rabbit,
	}
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}
