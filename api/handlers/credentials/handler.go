package credentials

import (
	"github.com/gin-gonic/gin"

	"github.com/taole4114/2.-Script-YTB/api/handlers/common"
	"github.com/taole4114/2.-Script-YTB/internal/credential"
)

// ListResponse Key 列表与配置状态
type ListResponse struct {
	Configured bool                 `json:"configured"`
	Reset      bool                 `json:"reset,omitempty"` // 存储的快照已损坏并被清空
	Keys       []credential.KeyView `json:"keys"`
}

// Handler API Key 管理
type Handler struct {
	service *credential.Service
}

// NewHandler 创建 Handler
func NewHandler(service *credential.Service) *Handler {
	return &Handler{service: service}
}

// List 查询 Key 列表（脱敏）
// @Summary 查询 API Key
// @Tags Credentials
// @Produce json
// @Success 200 {object} common.APIResponse
// @Router /api/credentials [get]
func (h *Handler) List(c *gin.Context) {
	ctx := c.Request.Context()
	status, err := h.service.Status(ctx)
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}
	keys, err := h.service.ListKeys(ctx)
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}
	common.ResponseSuccess(c, ListResponse{
		Configured: status.Configured,
		Reset:      status.Reset,
		Keys:       keys,
	})
}

// Submit 整体替换 Key
// @Summary 提交 API Key
// @Description 每个提供商一行一个 Key，提交后替换全部已有 Key
// @Tags Credentials
// @Accept json
// @Produce json
// @Param request body credential.SubmitKeysRequest true "Key 列表"
// @Success 200 {object} common.APIResponse
// @Failure 400 {object} common.APIResponse
// @Router /api/credentials [put]
func (h *Handler) Submit(c *gin.Context) {
	var req credential.SubmitKeysRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	if _, err := h.service.SubmitKeys(ctx, req); err != nil {
		common.ResponseFromError(c, err)
		return
	}
	keys, err := h.service.ListKeys(ctx)
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}
	common.ResponseSuccess(c, ListResponse{Configured: len(keys) > 0, Keys: keys})
}
