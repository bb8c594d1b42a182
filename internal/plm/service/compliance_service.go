package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bitfantasy/nimo-bom/internal/plm/bomtree"
	"github.com/bitfantasy/nimo-bom/internal/plm/entity"
	"github.com/bitfantasy/nimo-bom/internal/plm/repository"
)

// ComplianceService 物料合规记录服务
type ComplianceService struct {
	repo repository.ComplianceStore
}

func NewComplianceService(repo repository.ComplianceStore) *ComplianceService {
	return &ComplianceService{repo: repo}
}

// Record 写入一条合规结论
func (s *ComplianceService) Record(ctx context.Context, partID string, status entity.ComplianceStatus, missing []entity.Certification) error {
	partID = strings.TrimSpace(partID)
	if partID == "" {
		return fmt.Errorf("compliance record without part id")
	}
	if status != entity.ComplianceFail {
		status = entity.CompliancePass
	}
	rec := &entity.PartCompliance{PartID: partID, Status: status}
	rec.SetMissing(missing)
	if err := s.repo.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("save compliance %s: %w", partID, err)
	}
	return nil
}

// Lookup 批量加载树中主料的合规记录
func (s *ComplianceService) Lookup(ctx context.Context, roots []*entity.BOMNode) (bomtree.ComplianceLookup, error) {
	primaries := bomtree.PrimaryNodes(roots)
	ids := make([]string, 0, len(primaries))
	for _, n := range primaries {
		if n.PartID != "" {
			ids = append(ids, n.PartID)
		}
	}
	recs, err := s.repo.FindByPartIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load compliance records: %w", err)
	}
	return recordLookup(recs), nil
}

// Report 计算树的合规报告
func (s *ComplianceService) Report(ctx context.Context, roots []*entity.BOMNode) (bomtree.ComplianceReport, error) {
	lookup, err := s.Lookup(ctx, roots)
	if err != nil {
		return bomtree.ComplianceReport{}, err
	}
	return bomtree.ComputeCompliance(bomtree.ClassifyPrimaries(roots, lookup)), nil
}

// recordLookup 无记录的物料视为通过
type recordLookup map[string]entity.PartCompliance

func (l recordLookup) Classify(partID string) (entity.ComplianceStatus, []entity.Certification) {
	rec, ok := l[partID]
	if !ok || rec.Status != entity.ComplianceFail {
		return entity.CompliancePass, nil
	}
	return entity.ComplianceFail, rec.Missing()
}
