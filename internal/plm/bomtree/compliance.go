package bomtree

import (
	"slices"

	"github.com/bitfantasy/nimo-bom/internal/plm/entity"
)

// PrimaryCompliance L6 主料及其外部提供的合规判定
type PrimaryCompliance struct {
	Node    *entity.BOMNode
	Status  entity.ComplianceStatus
	Missing []entity.Certification
}

// ComplianceLookup 按物料编码查询合规状态，未登记的物料视为通过
type ComplianceLookup interface {
	Classify(partID string) (entity.ComplianceStatus, []entity.Certification)
}

// ClassifyPrimaries 为树中每个 L6 主料附上合规判定
func ClassifyPrimaries(roots []*entity.BOMNode, lookup ComplianceLookup) []PrimaryCompliance {
	primaries := PrimaryNodes(roots)
	out := make([]PrimaryCompliance, 0, len(primaries))
	for _, n := range primaries {
		pc := PrimaryCompliance{Node: n, Status: entity.CompliancePass}
		if lookup != nil {
			pc.Status, pc.Missing = lookup.Classify(n.PartID)
		}
		out = append(out, pc)
	}
	return out
}

// NonCompliantPart 不合规主料
type NonCompliantPart struct {
	Key     string                 `json:"key"`
	PartID  string                 `json:"partId"`
	Title   string                 `json:"title"`
	Missing []entity.Certification `json:"missing"`
}

// ComplianceReport 主料合规汇总
// CertificationRates 以 Certification.ReportKey 为键
type ComplianceReport struct {
	TotalChecked       int                  `json:"totalChecked"`
	NonCompliantCount  int                  `json:"nonCompliantCount"`
	ComplianceRate     float64              `json:"complianceRate"`
	CertificationRates map[string]float64   `json:"certificationRates"`
	OverallStatus      entity.OverallStatus `json:"overallStatus"`
	NonCompliant       []NonCompliantPart   `json:"nonCompliant"`
}

// ComputeCompliance 统计通过/失败数量及各认证通过率
// 没有任何失败物料缺失的认证，通过率取整体合规率
func ComputeCompliance(primaries []PrimaryCompliance) ComplianceReport {
	report := ComplianceReport{
		TotalChecked:       len(primaries),
		CertificationRates: make(map[string]float64, len(entity.Certifications)),
		OverallStatus:      entity.OverallPass,
		NonCompliant:       []NonCompliantPart{},
	}

	citing := make(map[entity.Certification]int, len(entity.Certifications))
	for _, p := range primaries {
		if p.Status != entity.ComplianceFail {
			continue
		}
		report.NonCompliantCount++
		part := NonCompliantPart{Missing: slices.Clone(p.Missing)}
		if p.Node != nil {
			part.Key, part.PartID, part.Title = p.Node.Key, p.Node.PartID, p.Node.Title
		}
		report.NonCompliant = append(report.NonCompliant, part)

		seen := make(map[entity.Certification]bool, len(p.Missing))
		for _, c := range p.Missing {
			if !seen[c] {
				seen[c] = true
				citing[c]++
			}
		}
	}

	report.ComplianceRate = rate(report.TotalChecked, report.NonCompliantCount)
	for _, c := range entity.Certifications {
		r := report.ComplianceRate
		if n := citing[c]; n > 0 {
			r = rate(report.TotalChecked, n)
		}
		report.CertificationRates[c.ReportKey()] = r
	}
	if report.NonCompliantCount > 0 {
		report.OverallStatus = entity.OverallWarning
	}
	return report
}

func rate(total, failed int) float64 {
	if total == 0 {
		return 0
	}
	return float64(total-failed) * 100 / float64(total)
}
