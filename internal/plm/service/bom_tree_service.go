package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bitfantasy/nimo-bom/internal/metrics"
	"github.com/bitfantasy/nimo-bom/internal/plm/bomio"
	"github.com/bitfantasy/nimo-bom/internal/plm/bomtree"
	"github.com/bitfantasy/nimo-bom/internal/plm/entity"
	"github.com/bitfantasy/nimo-bom/internal/plm/repository"
	"github.com/bitfantasy/nimo-bom/internal/plm/sse"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// 变更操作名，用于日志、指标和事件
const (
	OpToggle           = "toggle"
	OpReplace          = "replace"
	OpDeleteSubstitute = "delete_substitute"
	OpEditPrimary      = "edit_primary"
)

const (
	summaryKindCost       = "cost"
	summaryKindCompliance = "compliance"
)

// BOMTreeService BOM树文档服务。同一文档的变更通过文档锁串行执行
type BOMTreeService struct {
	docs       repository.DocumentStore
	templates  *TemplateService
	compliance *ComplianceService
	cache      repository.SummaryCache
	archiver   ExportArchiver
	events     EventPublisher
	logger     *zap.Logger

	locks sync.Map
}

// NewBOMTreeService 创建BOM树文档服务
func NewBOMTreeService(docs repository.DocumentStore, templates *TemplateService, compliance *ComplianceService, logger *zap.Logger) *BOMTreeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BOMTreeService{
		docs:       docs,
		templates:  templates,
		compliance: compliance,
		cache:      repository.NopSummaryCache{},
		logger:     logger,
	}
}

// SetSummaryCache 设置汇总缓存
func (s *BOMTreeService) SetSummaryCache(cache repository.SummaryCache) {
	s.cache = cache
}

// SetArchiver 设置导出归档
func (s *BOMTreeService) SetArchiver(archiver ExportArchiver) {
	s.archiver = archiver
}

// SetEventPublisher 设置变更通知
func (s *BOMTreeService) SetEventPublisher(events EventPublisher) {
	s.events = events
}

func (s *BOMTreeService) lock(docID string) func() {
	v, _ := s.locks.LoadOrStore(docID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// ==================== 文档 ====================

// CreateFromTemplate 以模板树创建文档
func (s *BOMTreeService) CreateFromTemplate(ctx context.Context, name, templateID, userID string) (*entity.BOMDocument, error) {
	tpl, err := s.templates.Get(ctx, templateID)
	if err != nil {
		return nil, err
	}
	roots, err := tpl.Nodes()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		name = tpl.Name
	}
	doc := &entity.BOMDocument{
		Name:       name,
		TemplateID: tpl.ID,
		Source:     entity.DocumentSourceTemplate,
		CreatedBy:  userID,
	}
	if err := s.create(ctx, doc, bomtree.Normalize(roots)); err != nil {
		return nil, err
	}
	s.logger.Info("BOM document created from template",
		zap.String("doc_id", doc.ID),
		zap.String("template_id", tpl.ID),
		zap.Int("nodes", doc.NodeCount),
	)
	return doc, nil
}

// ImportInput 导入参数
type ImportInput struct {
	Name     string
	Filename string
	Encoding string
	UserID   string
	Reader   io.Reader
}

// Import 从 xlsx/csv 文件重建树并创建文档
func (s *BOMTreeService) Import(ctx context.Context, in ImportInput) (*entity.BOMDocument, bomtree.ImportStats, error) {
	format, err := bomio.DetectFormat(in.Filename)
	if err != nil {
		return nil, bomtree.ImportStats{}, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	rows, err := bomio.Read(in.Reader, format, bomio.Options{Encoding: in.Encoding})
	if err != nil {
		return nil, bomtree.ImportStats{}, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	roots, stats := bomtree.FromRows(rows)
	metrics.ImportedRowsTotal.WithLabelValues(string(format)).Add(float64(stats.Rows))
	if stats.Nodes == 0 {
		return nil, stats, fmt.Errorf("%w: no bom rows in %s", ErrInvalidFormat, in.Filename)
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = strings.TrimSuffix(in.Filename, "."+string(format))
	}
	doc := &entity.BOMDocument{
		Name:      name,
		Source:    entity.DocumentSourceImport,
		CreatedBy: in.UserID,
	}
	if err := s.create(ctx, doc, roots); err != nil {
		return nil, stats, err
	}
	s.logger.Info("BOM document imported",
		zap.String("doc_id", doc.ID),
		zap.String("format", string(format)),
		zap.Int("rows", stats.Rows),
		zap.Int("nodes", stats.Nodes),
		zap.Int("relevelled", stats.Relevelled),
		zap.Int("dropped_substitutes", stats.DroppedSubstitutes),
	)
	return doc, stats, nil
}

func (s *BOMTreeService) create(ctx context.Context, doc *entity.BOMDocument, roots []*entity.BOMNode) error {
	doc.ID = newID()
	doc.Revision = 1
	doc.TotalCost = bomtree.TotalCost(roots).InexactFloat64()
	if err := doc.SetNodes(roots); err != nil {
		return err
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	metrics.TreeNodes.Observe(float64(doc.NodeCount))
	return nil
}

// Get 获取文档
func (s *BOMTreeService) Get(ctx context.Context, id string) (*entity.BOMDocument, error) {
	doc, err := s.docs.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load document %s: %w", id, err)
	}
	return doc, nil
}

// List 文档列表（不含树快照）
func (s *BOMTreeService) List(ctx context.Context) ([]entity.BOMDocument, error) {
	return s.docs.List(ctx)
}

// Delete 删除文档
func (s *BOMTreeService) Delete(ctx context.Context, id string) error {
	unlock := s.lock(id)
	defer unlock()
	if err := s.docs.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	s.locks.Delete(id)
	s.logger.Info("BOM document deleted", zap.String("doc_id", id))
	return nil
}

func (s *BOMTreeService) load(ctx context.Context, id string) (*entity.BOMDocument, []*entity.BOMNode, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	roots, err := doc.Nodes()
	if err != nil {
		return nil, nil, err
	}
	return doc, roots, nil
}

// Rows 文档的扁平行
func (s *BOMTreeService) Rows(ctx context.Context, id string) ([]bomtree.FlatRow, error) {
	_, roots, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return bomtree.Flatten(roots), nil
}

// ==================== 变更 ====================

// MutationResult 变更后的文档与成本
type MutationResult struct {
	Document  *entity.BOMDocument
	Roots     []*entity.BOMNode
	TotalCost decimal.Decimal
}

// Toggle 切换主料启用状态，替代料随之反转
func (s *BOMTreeService) Toggle(ctx context.Context, docID, key string) (*MutationResult, error) {
	return s.mutate(ctx, docID, key, OpToggle, entity.LevelPart, func(roots []*entity.BOMNode) ([]*entity.BOMNode, error) {
		return bomtree.ToggleL6Status(roots, key), nil
	})
}

// Replace 用替代料替换主料
func (s *BOMTreeService) Replace(ctx context.Context, docID, key string) (*MutationResult, error) {
	return s.mutate(ctx, docID, key, OpReplace, entity.LevelSubstitute, func(roots []*entity.BOMNode) ([]*entity.BOMNode, error) {
		res, err := bomtree.Replace(roots, key)
		return res.Roots, err
	})
}

// DeleteSubstitute 删除替代料
func (s *BOMTreeService) DeleteSubstitute(ctx context.Context, docID, key string) (*MutationResult, error) {
	return s.mutate(ctx, docID, key, OpDeleteSubstitute, entity.LevelSubstitute, func(roots []*entity.BOMNode) ([]*entity.BOMNode, error) {
		return bomtree.DeleteSubstitute(roots, key).Roots, nil
	})
}

// EditPrimary 编辑主料，更换料号时从模板目录带出名称和成本
func (s *BOMTreeService) EditPrimary(ctx context.Context, docID, key string, fields bomtree.EditFields) (*MutationResult, error) {
	catalog, err := s.templates.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, docID, key, OpEditPrimary, entity.LevelPart, func(roots []*entity.BOMNode) ([]*entity.BOMNode, error) {
		return bomtree.EditL6(roots, key, fields, catalog)
	})
}

func (s *BOMTreeService) mutate(ctx context.Context, docID, key, op string, level entity.Level, apply func([]*entity.BOMNode) ([]*entity.BOMNode, error)) (*MutationResult, error) {
	unlock := s.lock(docID)
	defer unlock()

	doc, roots, err := s.load(ctx, docID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			metrics.RecordMutation(op, metrics.ResultNotFound)
		} else {
			metrics.RecordMutation(op, metrics.ResultError)
		}
		return nil, err
	}

	node, _ := bomtree.Find(roots, key)
	if node == nil {
		metrics.RecordMutation(op, metrics.ResultNotFound)
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, key)
	}
	if node.Level != level {
		metrics.RecordMutation(op, metrics.ResultRejected)
		return nil, fmt.Errorf("%w: %s is %s, %s needs %s", ErrLevelMismatch, key, node.Level.Code(), op, level.Code())
	}

	next, err := apply(roots)
	if err != nil {
		var mismatch *bomtree.CategoryMismatchError
		if errors.As(err, &mismatch) {
			metrics.RecordMutation(op, metrics.ResultRejected)
			s.logger.Warn("BOM mutation rejected",
				zap.String("doc_id", docID),
				zap.String("key", key),
				zap.String("op", op),
				zap.String("source_category", mismatch.Source),
				zap.String("target_category", mismatch.Target),
			)
		} else {
			metrics.RecordMutation(op, metrics.ResultError)
		}
		return nil, err
	}

	total := bomtree.TotalCost(next)
	doc.Revision++
	doc.TotalCost = total.InexactFloat64()
	if err := doc.SetNodes(next); err != nil {
		metrics.RecordMutation(op, metrics.ResultError)
		return nil, err
	}
	if err := s.docs.Update(ctx, doc); err != nil {
		metrics.RecordMutation(op, metrics.ResultError)
		return nil, fmt.Errorf("save document %s: %w", docID, err)
	}

	metrics.RecordMutation(op, metrics.ResultOK)
	metrics.TreeNodes.Observe(float64(doc.NodeCount))
	if s.events != nil {
		s.events.PublishBOMUpdate(sse.BOMUpdate{
			DocID:     doc.ID,
			Key:       key,
			Action:    op,
			Revision:  doc.Revision,
			TotalCost: doc.TotalCost,
		})
	}
	s.logger.Info("BOM tree updated",
		zap.String("doc_id", docID),
		zap.String("key", key),
		zap.String("op", op),
		zap.Int("revision", doc.Revision),
		zap.String("total_cost", total.StringFixed(2)),
	)
	return &MutationResult{Document: doc, Roots: next, TotalCost: total}, nil
}

// ==================== 汇总 ====================

// CostSummary 成本汇总
type CostSummary struct {
	DocID     string             `json:"doc_id"`
	Revision  int                `json:"revision"`
	TotalCost decimal.Decimal    `json:"total_cost"`
	Lines     []bomtree.CostLine `json:"lines"`
}

// Cost 计算文档成本明细，按文档版本缓存
func (s *BOMTreeService) Cost(ctx context.Context, docID string) (*CostSummary, error) {
	doc, roots, err := s.load(ctx, docID)
	if err != nil {
		return nil, err
	}

	var cached CostSummary
	if s.cachedSummary(ctx, doc, summaryKindCost, &cached) {
		return &cached, nil
	}

	lines, total := bomtree.Breakdown(roots)
	summary := &CostSummary{DocID: doc.ID, Revision: doc.Revision, TotalCost: total, Lines: lines}
	s.storeSummary(ctx, doc, summaryKindCost, summary)
	return summary, nil
}

// ComplianceSummary 合规报告，附带文档总成本
type ComplianceSummary struct {
	DocID     string                   `json:"doc_id"`
	Revision  int                      `json:"revision"`
	TotalCost decimal.Decimal          `json:"total_cost"`
	Report    bomtree.ComplianceReport `json:"report"`
}

// Compliance 计算文档合规报告
func (s *BOMTreeService) Compliance(ctx context.Context, docID string) (*ComplianceSummary, error) {
	doc, roots, err := s.load(ctx, docID)
	if err != nil {
		return nil, err
	}

	var cached ComplianceSummary
	if s.cachedSummary(ctx, doc, summaryKindCompliance, &cached) {
		return &cached, nil
	}

	report, err := s.compliance.Report(ctx, roots)
	if err != nil {
		return nil, err
	}
	summary := &ComplianceSummary{
		DocID:     doc.ID,
		Revision:  doc.Revision,
		TotalCost: bomtree.TotalCost(roots),
		Report:    report,
	}
	s.storeSummary(ctx, doc, summaryKindCompliance, summary)
	return summary, nil
}

func (s *BOMTreeService) cachedSummary(ctx context.Context, doc *entity.BOMDocument, kind string, dest interface{}) bool {
	hit, err := s.cache.Get(ctx, doc.ID, doc.Revision, kind, dest)
	if err != nil {
		s.logger.Warn("Summary cache read failed", zap.String("doc_id", doc.ID), zap.String("kind", kind), zap.Error(err))
		hit = false
	}
	metrics.RecordCache(kind, hit)
	return hit
}

func (s *BOMTreeService) storeSummary(ctx context.Context, doc *entity.BOMDocument, kind string, value interface{}) {
	if err := s.cache.Set(ctx, doc.ID, doc.Revision, kind, value); err != nil {
		s.logger.Warn("Summary cache write failed", zap.String("doc_id", doc.ID), zap.String("kind", kind), zap.Error(err))
	}
}

// ==================== 导出 ====================

// ExportFile 导出结果
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
	// ArchivePath 归档对象路径，未归档为空
	ArchivePath string
}

// Export 导出文档为 xlsx/csv，配置了归档时同时上传
func (s *BOMTreeService) Export(ctx context.Context, docID string, format bomio.Format) (*ExportFile, error) {
	doc, roots, err := s.load(ctx, docID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var buf bytes.Buffer
	summary := &bomio.Summary{
		Name:       doc.Name,
		TotalCost:  bomtree.TotalCost(roots).InexactFloat64(),
		NodeCount:  doc.NodeCount,
		ExportedAt: now,
	}
	if err := bomio.Write(&buf, format, bomtree.ToRows(roots), summary); err != nil {
		return nil, fmt.Errorf("export document %s: %w", docID, err)
	}

	file := &ExportFile{
		Filename:    exportFilename(doc, format),
		ContentType: format.ContentType(),
		Data:        buf.Bytes(),
	}

	if s.archiver != nil {
		path, err := s.archiver.Archive(ctx, file.Filename, file.Data, file.ContentType)
		if err != nil {
			s.logger.Warn("Export archive failed", zap.String("doc_id", docID), zap.Error(err))
		} else {
			file.ArchivePath = path
		}
	}
	metrics.ExportsTotal.WithLabelValues(string(format), strconv.FormatBool(file.ArchivePath != "")).Inc()

	s.logger.Info("BOM document exported",
		zap.String("doc_id", docID),
		zap.String("format", string(format)),
		zap.Int("bytes", len(file.Data)),
		zap.String("archive", file.ArchivePath),
	)
	return file, nil
}

func exportFilename(doc *entity.BOMDocument, format bomio.Format) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', '"', ':', '*', '?', '<', '>', '|':
			return '_'
		}
		return r
	}, strings.TrimSpace(doc.Name))
	if name == "" {
		name = doc.ID
	}
	return fmt.Sprintf("%s_r%d.%s", name, doc.Revision, format)
}
