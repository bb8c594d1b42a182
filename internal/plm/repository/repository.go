package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/nimo-bom/internal/plm/entity"
	"gorm.io/gorm"
)

// 错误定义
var (
	ErrNotFound = errors.New("record not found")
)

// DocumentStore BOM文档存储
type DocumentStore interface {
	Create(ctx context.Context, doc *entity.BOMDocument) error
	FindByID(ctx context.Context, id string) (*entity.BOMDocument, error)
	List(ctx context.Context) ([]entity.BOMDocument, error)
	Update(ctx context.Context, doc *entity.BOMDocument) error
	Delete(ctx context.Context, id string) error
}

// TemplateStore BOM模板存储
type TemplateStore interface {
	Create(ctx context.Context, tpl *entity.BOMTemplate) error
	FindByID(ctx context.Context, id string) (*entity.BOMTemplate, error)
	List(ctx context.Context, activeOnly bool) ([]entity.BOMTemplate, error)
	Count(ctx context.Context) (int64, error)
}

// ComplianceStore 物料合规记录存储
type ComplianceStore interface {
	Upsert(ctx context.Context, rec *entity.PartCompliance) error
	FindByPartIDs(ctx context.Context, partIDs []string) (map[string]entity.PartCompliance, error)
}

// Repositories 仓库集合
type Repositories struct {
	Document   DocumentStore
	Template   TemplateStore
	Compliance ComplianceStore
}

// NewRepositories 创建基于数据库的仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Document:   NewBOMDocumentRepository(db),
		Template:   NewBOMTemplateRepository(db),
		Compliance: NewPartComplianceRepository(db),
	}
}

// NewMemoryRepositories 创建内存仓库集合（storage.driver=memory 及测试使用）
func NewMemoryRepositories() *Repositories {
	return &Repositories{
		Document:   NewMemoryDocumentRepository(),
		Template:   NewMemoryTemplateRepository(),
		Compliance: NewMemoryComplianceRepository(),
	}
}

// AutoMigrate 迁移BOM相关表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&entity.BOMDocument{},
		&entity.BOMTemplate{},
		&entity.PartCompliance{},
	)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
