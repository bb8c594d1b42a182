package handler

import (
	"github.com/bitfantasy/nimo-bom/internal/plm/bomtree"
	"github.com/bitfantasy/nimo-bom/internal/plm/service"
	"github.com/gin-gonic/gin"
)

// TemplateHandler 模板处理器
type TemplateHandler struct {
	svc *service.TemplateService
}

// NewTemplateHandler 创建模板处理器
func NewTemplateHandler(svc *service.TemplateService) *TemplateHandler {
	return &TemplateHandler{svc: svc}
}

// List 获取模板列表
// GET /api/v1/bom-templates
func (h *TemplateHandler) List(c *gin.Context) {
	templates, err := h.svc.List(c.Request.Context())
	if err != nil {
		InternalError(c, "Failed to list templates")
		return
	}
	Success(c, gin.H{"items": templates, "total": len(templates)})
}

// Get 获取模板详情
// GET /api/v1/bom-templates/:id
func (h *TemplateHandler) Get(c *gin.Context) {
	tpl, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, tpl)
}

// Flat 模板的扁平行
// GET /api/v1/bom-templates/:id/flat
func (h *TemplateHandler) Flat(c *gin.Context) {
	roots, err := h.svc.Tree(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	rows := bomtree.Flatten(roots)
	Success(c, gin.H{"items": rowViews(rows), "total": len(rows)})
}
