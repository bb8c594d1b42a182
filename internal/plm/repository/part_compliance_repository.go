package repository

import (
	"context"
	"time"

	"github.com/bitfantasy/nimo-bom/internal/plm/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PartComplianceRepository struct {
	db *gorm.DB
}

func NewPartComplianceRepository(db *gorm.DB) *PartComplianceRepository {
	return &PartComplianceRepository{db: db}
}

// Upsert 写入或更新合规记录
func (r *PartComplianceRepository) Upsert(ctx context.Context, rec *entity.PartCompliance) error {
	if rec.CheckedAt.IsZero() {
		rec.CheckedAt = time.Now()
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "part_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "missing_certs", "checked_at", "updated_at"}),
		}).
		Create(rec).Error
}

// FindByPartIDs 批量查询合规记录
func (r *PartComplianceRepository) FindByPartIDs(ctx context.Context, partIDs []string) (map[string]entity.PartCompliance, error) {
	out := make(map[string]entity.PartCompliance, len(partIDs))
	if len(partIDs) == 0 {
		return out, nil
	}
	var recs []entity.PartCompliance
	if err := r.db.WithContext(ctx).Where("part_id IN ?", partIDs).Find(&recs).Error; err != nil {
		return nil, err
	}
	for _, rec := range recs {
		out[rec.PartID] = rec
	}
	return out, nil
}
