package models

import (
	"github.com/gin-gonic/gin"

	"github.com/taole4114/2.-Script-YTB/api/handlers/common"
	"github.com/taole4114/2.-Script-YTB/internal/ai"
)

// Handler 模型目录
type Handler struct {
	registry *ai.Registry
}

// NewHandler 创建 Handler
func NewHandler(registry *ai.Registry) *Handler {
	return &Handler{registry: registry}
}

// ListModels 查询各提供商可选模型
// @Summary 模型目录
// @Tags Models
// @Produce json
// @Success 200 {object} common.APIResponse
// @Router /api/models [get]
func (h *Handler) ListModels(c *gin.Context) {
	common.ResponseSuccess(c, h.registry.Catalog())
}
