package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/bitfantasy/nimo-bom/internal/plm/bomtree"
	"github.com/bitfantasy/nimo-bom/internal/plm/entity"
	"github.com/bitfantasy/nimo-bom/internal/plm/repository"
	"go.uber.org/zap"
)

// TemplateService 产品BOM模板服务，模板是只读目录，同时充当物料目录
type TemplateService struct {
	repo   repository.TemplateStore
	logger *zap.Logger

	mu      sync.RWMutex
	catalog *bomtree.TreeCatalog
}

// NewTemplateService 创建模板服务
func NewTemplateService(repo repository.TemplateStore, logger *zap.Logger) *TemplateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TemplateService{repo: repo, logger: logger}
}

// List 获取启用的模板列表
func (s *TemplateService) List(ctx context.Context) ([]entity.BOMTemplate, error) {
	return s.repo.List(ctx, true)
}

// Get 获取模板详情
func (s *TemplateService) Get(ctx context.Context, id string) (*entity.BOMTemplate, error) {
	tpl, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load template %s: %w", id, err)
	}
	return tpl, nil
}

// Tree 模板的规范化树
func (s *TemplateService) Tree(ctx context.Context, id string) ([]*entity.BOMNode, error) {
	tpl, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	roots, err := tpl.Nodes()
	if err != nil {
		return nil, err
	}
	return bomtree.Normalize(roots), nil
}

// Catalog 以全部启用模板构建物料目录，按模板编码顺序查找
func (s *TemplateService) Catalog(ctx context.Context) (bomtree.PartCatalog, error) {
	s.mu.RLock()
	cached := s.catalog
	s.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	tpls, err := s.repo.List(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	trees := make([][]*entity.BOMNode, 0, len(tpls))
	for i := range tpls {
		roots, err := tpls[i].Nodes()
		if err != nil {
			s.logger.Warn("Skipping unreadable template", zap.String("template_id", tpls[i].ID), zap.Error(err))
			continue
		}
		trees = append(trees, roots)
	}
	catalog := bomtree.NewTreeCatalog(trees...)

	s.mu.Lock()
	s.catalog = catalog
	s.mu.Unlock()
	return catalog, nil
}

// Seed 写入模板种子，编码已存在的跳过，返回新建数量
func (s *TemplateService) Seed(ctx context.Context, seeds []TemplateSeed) (int, error) {
	existing, err := s.repo.List(ctx, false)
	if err != nil {
		return 0, fmt.Errorf("list templates: %w", err)
	}
	codes := make(map[string]bool, len(existing))
	for _, tpl := range existing {
		codes[tpl.Code] = true
	}

	created := 0
	for _, seed := range seeds {
		if seed.Code == "" || codes[seed.Code] {
			continue
		}
		roots := bomtree.Normalize(seed.Tree)
		if err := bomtree.Check(roots); err != nil {
			return created, fmt.Errorf("template %s: %w", seed.Code, err)
		}
		tpl := &entity.BOMTemplate{
			ID:          newID(),
			Code:        seed.Code,
			Name:        seed.Name,
			ProductType: seed.ProductType,
			Description: seed.Description,
			IsActive:    true,
		}
		if err := tpl.SetNodes(roots); err != nil {
			return created, err
		}
		if err := s.repo.Create(ctx, tpl); err != nil {
			return created, fmt.Errorf("create template %s: %w", seed.Code, err)
		}
		codes[seed.Code] = true
		created++
	}

	if created > 0 {
		s.mu.Lock()
		s.catalog = nil
		s.mu.Unlock()
	}
	return created, nil
}
