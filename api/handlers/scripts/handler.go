package scripts

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/taole4114/2.-Script-YTB/api/handlers/common"
	"github.com/taole4114/2.-Script-YTB/internal/credential"
	"github.com/taole4114/2.-Script-YTB/internal/script"
)

// Handler 大纲、分段生成与导出
type Handler struct {
	service *script.Service
	jobs    *script.JobService
}

// NewHandler 创建 Handler，jobs 可为空
func NewHandler(service *script.Service, jobs *script.JobService) *Handler {
	return &Handler{service: service, jobs: jobs}
}

// GenerateOutline 生成大纲
// @Summary 生成纪录片大纲
// @Tags Scripts
// @Accept json
// @Produce json
// @Param request body OutlineRequest true "标题与提供商"
// @Success 200 {object} common.APIResponse
// @Failure 400 {object} common.APIResponse
// @Failure 412 {object} common.APIResponse
// @Failure 502 {object} common.APIResponse
// @Router /api/outline [post]
func (h *Handler) GenerateOutline(c *gin.Context) {
	var req OutlineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "请求参数错误: "+err.Error())
		return
	}
	provider, err := credential.ParseProvider(req.Provider)
	if err != nil {
		common.ResponseBadRequest(c, err.Error())
		return
	}

	outline, err := h.service.GenerateOutline(c.Request.Context(), req.Title, provider, req.Model)
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}
	common.ResponseSuccess(c, OutlineResponse{Outline: outline})
}

// GenerateScriptPart 生成单个分段
// @Summary 生成脚本分段
// @Tags Scripts
// @Accept json
// @Produce json
// @Param request body PartRequest true "大纲、已生成分段与序号"
// @Success 200 {object} common.APIResponse
// @Failure 400 {object} common.APIResponse
// @Failure 412 {object} common.APIResponse
// @Failure 502 {object} common.APIResponse
// @Router /api/script-parts [post]
func (h *Handler) GenerateScriptPart(c *gin.Context) {
	var req PartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "请求参数错误: "+err.Error())
		return
	}
	provider, err := credential.ParseProvider(req.Provider)
	if err != nil {
		common.ResponseBadRequest(c, err.Error())
		return
	}

	content, err := h.service.GenerateScriptPart(c.Request.Context(), script.PartRequest{
		Title:     req.Title,
		Outline:   req.Outline,
		Parts:     req.Parts,
		PartIndex: *req.PartIndex,
		Provider:  provider,
		Model:     req.Model,
	})
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}
	common.ResponseSuccess(c, PartResponse{PartIndex: *req.PartIndex, Content: content})
}

// Export 下载完整脚本
// @Summary 导出脚本
// @Tags Scripts
// @Accept json
// @Produce plain
// @Param request body ExportRequest true "标题与分段"
// @Success 200 {string} string
// @Router /api/script/export [post]
func (h *Handler) Export(c *gin.Context) {
	var req ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "请求参数错误: "+err.Error())
		return
	}
	filename := script.ExportFilename(req.Title)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(script.JoinParts(req.Parts)))
}

// CreateJob 创建批量生成任务
// @Summary 批量生成剩余分段
// @Tags Scripts
// @Accept json
// @Produce json
// @Param request body CreateJobRequest true "任务参数"
// @Success 201 {object} common.APIResponse
// @Failure 503 {object} common.APIResponse
// @Router /api/script-jobs [post]
func (h *Handler) CreateJob(c *gin.Context) {
	if !h.jobsEnabled() {
		common.ResponseError(c, common.CodeServiceUnavailable, "批量生成未启用")
		return
	}
	var req CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "请求参数错误: "+err.Error())
		return
	}
	provider, err := credential.ParseProvider(req.Provider)
	if err != nil {
		common.ResponseBadRequest(c, err.Error())
		return
	}

	job, err := h.jobs.Create(c.Request.Context(), script.CreateJobRequest{
		Title:    req.Title,
		Outline:  req.Outline,
		Parts:    req.Parts,
		Provider: provider,
		Model:    req.Model,
	})
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}
	common.ResponseCreated(c, job)
}

// GetJob 查询批量生成任务
// @Summary 查询批量生成任务
// @Tags Scripts
// @Produce json
// @Param id path string true "任务ID"
// @Success 200 {object} common.APIResponse
// @Failure 404 {object} common.APIResponse
// @Router /api/script-jobs/{id} [get]
func (h *Handler) GetJob(c *gin.Context) {
	if h.jobs == nil {
		common.ResponseError(c, common.CodeServiceUnavailable, "批量生成未启用")
		return
	}
	job, err := h.jobs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}
	common.ResponseSuccess(c, job)
}

func (h *Handler) jobsEnabled() bool {
	return h.jobs != nil && h.jobs.Enabled()
}
