package entity

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Certification 认证项
type Certification string

const (
	CertRoHS       Certification = "RoHS"
	CertCE         Certification = "CE"
	CertFCC        Certification = "FCC"
	CertEnergyStar Certification = "EnergyStar"
)

// Certifications 固定认证词表，顺序即报表顺序
var Certifications = []Certification{CertRoHS, CertCE, CertFCC, CertEnergyStar}

// ReportKey 报表中使用的键名
func (c Certification) ReportKey() string {
	switch c {
	case CertRoHS:
		return "rohs"
	case CertCE:
		return "ce"
	case CertFCC:
		return "fcc"
	case CertEnergyStar:
		return "energyStar"
	}
	return string(c)
}

// ComplianceStatus 单个主料的合规结论
type ComplianceStatus string

const (
	CompliancePass ComplianceStatus = "Pass"
	ComplianceFail ComplianceStatus = "Fail"
)

// OverallStatus 整体合规结论
type OverallStatus string

const (
	OverallPass    OverallStatus = "Pass"
	OverallWarning OverallStatus = "Warning"
)

// PartCompliance 物料合规记录，由外部合规查询维护
type PartCompliance struct {
	PartID       string           `json:"part_id" gorm:"primaryKey;size:64"`
	Status       ComplianceStatus `json:"status" gorm:"size:10;not null;default:'Pass'"`
	MissingCerts datatypes.JSON   `json:"missing_certs" gorm:"type:jsonb"`
	CheckedAt    time.Time        `json:"checked_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

func (PartCompliance) TableName() string {
	return "part_compliances"
}

// Missing 缺失的认证项
func (p *PartCompliance) Missing() []Certification {
	if len(p.MissingCerts) == 0 {
		return nil
	}
	var certs []Certification
	if err := json.Unmarshal(p.MissingCerts, &certs); err != nil {
		return nil
	}
	return certs
}

func (p *PartCompliance) SetMissing(certs []Certification) {
	if len(certs) == 0 {
		p.MissingCerts = nil
		return
	}
	data, _ := json.Marshal(certs)
	p.MissingCerts = datatypes.JSON(data)
}
