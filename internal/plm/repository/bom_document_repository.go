package repository

import (
	"context"

	"github.com/bitfantasy/nimo-bom/internal/plm/entity"
	"gorm.io/gorm"
)

type BOMDocumentRepository struct {
	db *gorm.DB
}

func NewBOMDocumentRepository(db *gorm.DB) *BOMDocumentRepository {
	return &BOMDocumentRepository{db: db}
}

func (r *BOMDocumentRepository) DB() *gorm.DB {
	return r.db
}

// Create 创建文档
func (r *BOMDocumentRepository) Create(ctx context.Context, doc *entity.BOMDocument) error {
	return r.db.WithContext(ctx).Create(doc).Error
}

// FindByID 根据ID查找文档
func (r *BOMDocumentRepository) FindByID(ctx context.Context, id string) (*entity.BOMDocument, error) {
	var doc entity.BOMDocument
	if err := r.db.WithContext(ctx).First(&doc, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &doc, nil
}

// List 文档列表（不含树快照）
func (r *BOMDocumentRepository) List(ctx context.Context) ([]entity.BOMDocument, error) {
	var docs []entity.BOMDocument
	err := r.db.WithContext(ctx).
		Omit("tree").
		Order("updated_at DESC").
		Find(&docs).Error
	return docs, err
}

// Update 保存文档
func (r *BOMDocumentRepository) Update(ctx context.Context, doc *entity.BOMDocument) error {
	return r.db.WithContext(ctx).Save(doc).Error
}

// Delete 删除文档
func (r *BOMDocumentRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&entity.BOMDocument{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
