package handler

import (
	"net/http"
	"net/url"

	"github.com/bitfantasy/nimo-bom/internal/plm/bomio"
	"github.com/bitfantasy/nimo-bom/internal/plm/bomtree"
	"github.com/bitfantasy/nimo-bom/internal/plm/entity"
	"github.com/bitfantasy/nimo-bom/internal/plm/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// BOMTreeHandler BOM树文档处理器
type BOMTreeHandler struct {
	svc           *service.BOMTreeService
	maxUploadSize int64
	logger        *zap.Logger
}

// NewBOMTreeHandler 创建BOM树文档处理器
func NewBOMTreeHandler(svc *service.BOMTreeService, maxUploadSize int64, logger *zap.Logger) *BOMTreeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BOMTreeHandler{svc: svc, maxUploadSize: maxUploadSize, logger: logger}
}

// CreateBOMRequest 从模板创建文档请求
type CreateBOMRequest struct {
	Name       string `json:"name"`
	TemplateID string `json:"template_id" binding:"required"`
}

// EditPrimaryRequest 编辑主料请求
type EditPrimaryRequest struct {
	PartID    string   `json:"part_id"`
	Quantity  *float64 `json:"quantity"`
	Unit      string   `json:"unit"`
	Lifecycle string   `json:"lifecycle"`
}

// RowView 扁平行，字段与树节点一致
type RowView struct {
	Key           string        `json:"key"`
	ParentKey     string        `json:"parentKey,omitempty"`
	Level         entity.Level  `json:"level"`
	LevelCode     string        `json:"levelCode"`
	LevelName     string        `json:"levelName"`
	Title         string        `json:"title"`
	PartID        string        `json:"partId,omitempty"`
	Position      string        `json:"position,omitempty"`
	Quantity      *float64      `json:"quantity,omitempty"`
	Unit          string        `json:"unit,omitempty"`
	Cost          *float64      `json:"cost,omitempty"`
	Supplier      string        `json:"supplier,omitempty"`
	Lifecycle     string        `json:"lifecycle,omitempty"`
	Status        entity.Status `json:"status,omitempty"`
	ParentStatus  entity.Status `json:"parentStatus,omitempty"`
	Usage         string        `json:"usage,omitempty"`
	IsAlternative bool          `json:"isAlternative,omitempty"`
	HasChildren   bool          `json:"hasChildren"`
}

func newRowView(r bomtree.FlatRow) RowView {
	n := r.Node
	return RowView{
		Key:           n.Key,
		ParentKey:     r.ParentKey,
		Level:         r.Level,
		LevelCode:     r.Level.Code(),
		LevelName:     r.Level.Name(),
		Title:         n.Title,
		PartID:        n.PartID,
		Position:      n.Position,
		Quantity:      n.Quantity,
		Unit:          n.Unit,
		Cost:          n.Cost,
		Supplier:      n.Supplier,
		Lifecycle:     string(n.Lifecycle),
		Status:        n.Status,
		ParentStatus:  r.ParentStatus,
		Usage:         n.Usage(),
		IsAlternative: n.IsAlternative,
		HasChildren:   r.HasChildren,
	}
}

func rowViews(rows []bomtree.FlatRow) []RowView {
	out := make([]RowView, 0, len(rows))
	for _, r := range rows {
		out = append(out, newRowView(r))
	}
	return out
}

// CostLineView 成本明细行
type CostLineView struct {
	Key          string       `json:"key"`
	PartID       string       `json:"partId"`
	Title        string       `json:"title"`
	Level        entity.Level `json:"level"`
	Cost         float64      `json:"cost"`
	Quantity     float64      `json:"quantity"`
	LineCost     float64      `json:"lineCost"`
	SharePercent float64      `json:"sharePercent"`
}

// Create 从模板创建文档
// POST /api/v1/boms
func (h *BOMTreeHandler) Create(c *gin.Context) {
	var req CreateBOMRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	doc, err := h.svc.CreateFromTemplate(c.Request.Context(), req.Name, req.TemplateID, GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	Created(c, doc)
}

// Import 导入 xlsx/csv 文件创建文档
// POST /api/v1/boms/import (multipart: file, name, encoding)
func (h *BOMTreeHandler) Import(c *gin.Context) {
	if h.maxUploadSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize)
	}
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		BadRequest(c, "请上传BOM文件: "+err.Error())
		return
	}
	defer file.Close()

	doc, stats, err := h.svc.Import(c.Request.Context(), service.ImportInput{
		Name:     c.PostForm("name"),
		Filename: header.Filename,
		Encoding: c.PostForm("encoding"),
		UserID:   GetUserID(c),
		Reader:   file,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	Created(c, gin.H{"document": doc, "stats": stats})
}

// List 文档列表
// GET /api/v1/boms
func (h *BOMTreeHandler) List(c *gin.Context) {
	docs, err := h.svc.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, gin.H{"items": docs, "total": len(docs)})
}

// Get 文档详情（含树）
// GET /api/v1/boms/:id
func (h *BOMTreeHandler) Get(c *gin.Context) {
	doc, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, doc)
}

// Delete 删除文档
// DELETE /api/v1/boms/:id
func (h *BOMTreeHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	Success(c, gin.H{"deleted": true})
}

// Rows 扁平行
// GET /api/v1/boms/:id/rows
func (h *BOMTreeHandler) Rows(c *gin.Context) {
	rows, err := h.svc.Rows(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, gin.H{"items": rowViews(rows), "total": len(rows)})
}

// Toggle 切换主料状态
// POST /api/v1/boms/:id/nodes/:key/toggle
func (h *BOMTreeHandler) Toggle(c *gin.Context) {
	res, err := h.svc.Toggle(c.Request.Context(), c.Param("id"), c.Param("key"))
	h.respondMutation(c, res, err)
}

// Replace 用替代料替换主料
// POST /api/v1/boms/:id/nodes/:key/replace
func (h *BOMTreeHandler) Replace(c *gin.Context) {
	res, err := h.svc.Replace(c.Request.Context(), c.Param("id"), c.Param("key"))
	h.respondMutation(c, res, err)
}

// DeleteSubstitute 删除替代料
// DELETE /api/v1/boms/:id/nodes/:key
func (h *BOMTreeHandler) DeleteSubstitute(c *gin.Context) {
	res, err := h.svc.DeleteSubstitute(c.Request.Context(), c.Param("id"), c.Param("key"))
	h.respondMutation(c, res, err)
}

// EditPrimary 编辑主料
// PUT /api/v1/boms/:id/nodes/:key
func (h *BOMTreeHandler) EditPrimary(c *gin.Context) {
	var req EditPrimaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	if req.Quantity != nil && *req.Quantity < 0 {
		BadRequest(c, "数量不能为负数")
		return
	}
	fields := bomtree.EditFields{
		PartID:   req.PartID,
		Quantity: req.Quantity,
		Unit:     req.Unit,
	}
	if req.Lifecycle != "" {
		fields.Lifecycle = entity.ParseLifecycle(req.Lifecycle)
	}
	res, err := h.svc.EditPrimary(c.Request.Context(), c.Param("id"), c.Param("key"), fields)
	h.respondMutation(c, res, err)
}

func (h *BOMTreeHandler) respondMutation(c *gin.Context, res *service.MutationResult, err error) {
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, gin.H{
		"document":   res.Document,
		"total_cost": res.TotalCost.InexactFloat64(),
	})
}

// Cost 成本汇总与明细
// GET /api/v1/boms/:id/cost
func (h *BOMTreeHandler) Cost(c *gin.Context) {
	summary, err := h.svc.Cost(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	lines := make([]CostLineView, 0, len(summary.Lines))
	for _, l := range summary.Lines {
		lines = append(lines, CostLineView{
			Key:          l.Key,
			PartID:       l.PartID,
			Title:        l.Title,
			Level:        l.Level,
			Cost:         l.UnitCost.InexactFloat64(),
			Quantity:     l.Quantity.InexactFloat64(),
			LineCost:     l.LineCost.InexactFloat64(),
			SharePercent: l.SharePercent,
		})
	}
	Success(c, gin.H{
		"doc_id":     summary.DocID,
		"revision":   summary.Revision,
		"total_cost": summary.TotalCost.InexactFloat64(),
		"lines":      lines,
	})
}

// Compliance 合规报告
// GET /api/v1/boms/:id/compliance
func (h *BOMTreeHandler) Compliance(c *gin.Context) {
	summary, err := h.svc.Compliance(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, gin.H{
		"doc_id":     summary.DocID,
		"revision":   summary.Revision,
		"total_cost": summary.TotalCost.InexactFloat64(),
		"report":     summary.Report,
	})
}

// Export 导出文件
// GET /api/v1/boms/:id/export?format=xlsx|csv
func (h *BOMTreeHandler) Export(c *gin.Context) {
	format, err := bomio.ParseFormat(c.DefaultQuery("format", string(bomio.FormatXLSX)))
	if err != nil {
		BadRequest(c, err.Error())
		return
	}
	file, err := h.svc.Export(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename=\""+file.Filename+"\"; filename*=UTF-8''"+url.PathEscape(file.Filename))
	c.Header("Content-Transfer-Encoding", "binary")
	if file.ArchivePath != "" {
		c.Header("X-Archive-Path", file.ArchivePath)
	}
	c.Data(http.StatusOK, file.ContentType, file.Data)
}
