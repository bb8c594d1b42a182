package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/bitfantasy/nimo-bom/internal/plm/entity"
	"github.com/bitfantasy/nimo-bom/internal/plm/repository"
	"github.com/bitfantasy/nimo-bom/internal/plm/sse"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// 错误定义
var (
	ErrNodeNotFound  = errors.New("node not found")
	ErrLevelMismatch = errors.New("node level does not allow this operation")
	ErrInvalidFormat = errors.New("invalid bom file")
)

// EventPublisher 文档变更通知
type EventPublisher interface {
	PublishBOMUpdate(update sse.BOMUpdate)
}

// Services 服务集合
type Services struct {
	Template   *TemplateService
	Compliance *ComplianceService
	BOM        *BOMTreeService
}

// NewServices 创建服务集合，cache/archiver/events 可为 nil
func NewServices(repos *repository.Repositories, cache repository.SummaryCache, archiver ExportArchiver, events EventPublisher, logger *zap.Logger) *Services {
	if logger == nil {
		logger = zap.NewNop()
	}
	templateSvc := NewTemplateService(repos.Template, logger)
	complianceSvc := NewComplianceService(repos.Compliance)

	bomSvc := NewBOMTreeService(repos.Document, templateSvc, complianceSvc, logger)
	if cache != nil {
		bomSvc.SetSummaryCache(cache)
	}
	if archiver != nil {
		bomSvc.SetArchiver(archiver)
	}
	if events != nil {
		bomSvc.SetEventPublisher(events)
	}

	return &Services{
		Template:   templateSvc,
		Compliance: complianceSvc,
		BOM:        bomSvc,
	}
}

// SeedData 目录种子文件内容
type SeedData struct {
	Templates  []TemplateSeed   `json:"templates"`
	Compliance []ComplianceSeed `json:"compliance"`
}

// TemplateSeed 模板种子
type TemplateSeed struct {
	Code        string            `json:"code"`
	Name        string            `json:"name"`
	ProductType string            `json:"product_type"`
	Description string            `json:"description"`
	Tree        []*entity.BOMNode `json:"tree"`
}

// ComplianceSeed 合规记录种子
type ComplianceSeed struct {
	PartID  string                 `json:"part_id"`
	Status  string                 `json:"status"`
	Missing []entity.Certification `json:"missing"`
}

// LoadSeedFile 读取种子文件并写入模板与合规记录，文件不存在时跳过
func (s *Services) LoadSeedFile(ctx context.Context, path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		s.BOM.logger.Warn("Catalog seed file not found, skipping", zap.String("path", path))
		return nil
	}
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	var seed SeedData
	if err := json.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("decode seed file %s: %w", path, err)
	}
	return s.Seed(ctx, seed)
}

// Seed 写入种子数据，已存在的模板编码保持不变
func (s *Services) Seed(ctx context.Context, seed SeedData) error {
	created, err := s.Template.Seed(ctx, seed.Templates)
	if err != nil {
		return err
	}
	for _, c := range seed.Compliance {
		if err := s.Compliance.Record(ctx, c.PartID, entity.ComplianceStatus(c.Status), c.Missing); err != nil {
			return err
		}
	}
	s.BOM.logger.Info("Catalog seeded",
		zap.Int("templates", created),
		zap.Int("compliance_records", len(seed.Compliance)),
	)
	return nil
}

func newID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:32]
}
