package repository

import (
	"context"

	"github.com/bitfantasy/nimo-bom/internal/plm/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BOMTemplateRepository struct {
	db *gorm.DB
}

func NewBOMTemplateRepository(db *gorm.DB) *BOMTemplateRepository {
	return &BOMTemplateRepository{db: db}
}

// Create 创建模板，code 冲突时忽略
func (r *BOMTemplateRepository) Create(ctx context.Context, tpl *entity.BOMTemplate) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "code"}}, DoNothing: true}).
		Create(tpl).Error
}

// FindByID 根据ID查找模板
func (r *BOMTemplateRepository) FindByID(ctx context.Context, id string) (*entity.BOMTemplate, error) {
	var tpl entity.BOMTemplate
	if err := r.db.WithContext(ctx).First(&tpl, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &tpl, nil
}

// List 模板列表
func (r *BOMTemplateRepository) List(ctx context.Context, activeOnly bool) ([]entity.BOMTemplate, error) {
	var tpls []entity.BOMTemplate
	query := r.db.WithContext(ctx)
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	err := query.Order("code ASC").Find(&tpls).Error
	return tpls, err
}

// Count 模板数量
func (r *BOMTemplateRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&entity.BOMTemplate{}).Count(&n).Error
	return n, err
}
