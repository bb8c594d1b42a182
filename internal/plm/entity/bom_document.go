package entity

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// 文档来源
const (
	DocumentSourceTemplate = "template"
	DocumentSourceImport   = "import"
)

// BOMDocument BOM树文档，一个文档对应一次编辑会话的当前树快照
type BOMDocument struct {
	ID         string         `json:"id" gorm:"primaryKey;size:32"`
	Name       string         `json:"name" gorm:"size:200;not null"`
	TemplateID string         `json:"template_id" gorm:"size:32;index"`
	Source     string         `json:"source" gorm:"size:20;not null;default:'template'"`
	Revision   int            `json:"revision" gorm:"not null;default:1"`
	NodeCount  int            `json:"node_count" gorm:"default:0"`
	TotalCost  float64        `json:"total_cost" gorm:"type:numeric(15,4);default:0"`
	Tree       datatypes.JSON `json:"tree" gorm:"type:jsonb"`
	CreatedBy  string         `json:"created_by" gorm:"size:64"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

func (BOMDocument) TableName() string {
	return "bom_documents"
}

// Nodes 反序列化树快照
func (d *BOMDocument) Nodes() ([]*BOMNode, error) {
	return decodeTree(d.Tree)
}

// SetNodes 写入树快照
func (d *BOMDocument) SetNodes(roots []*BOMNode) error {
	data, err := encodeTree(roots)
	if err != nil {
		return err
	}
	d.Tree = data
	d.NodeCount = countNodes(roots)
	return nil
}

// BOMTemplate 产品BOM模板（只读目录）
type BOMTemplate struct {
	ID          string         `json:"id" gorm:"primaryKey;size:32"`
	Code        string         `json:"code" gorm:"uniqueIndex;size:50;not null"`
	Name        string         `json:"name" gorm:"size:200;not null"`
	ProductType string         `json:"product_type" gorm:"size:50"`
	Description string         `json:"description" gorm:"type:text"`
	Tree        datatypes.JSON `json:"tree" gorm:"type:jsonb"`
	IsActive    bool           `json:"is_active" gorm:"default:true"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func (BOMTemplate) TableName() string {
	return "bom_templates"
}

func (t *BOMTemplate) Nodes() ([]*BOMNode, error) {
	return decodeTree(t.Tree)
}

func (t *BOMTemplate) SetNodes(roots []*BOMNode) error {
	data, err := encodeTree(roots)
	if err != nil {
		return err
	}
	t.Tree = data
	return nil
}

func decodeTree(data datatypes.JSON) ([]*BOMNode, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var roots []*BOMNode
	if err := json.Unmarshal(data, &roots); err != nil {
		return nil, fmt.Errorf("decode bom tree: %w", err)
	}
	return roots, nil
}

func encodeTree(roots []*BOMNode) (datatypes.JSON, error) {
	if roots == nil {
		roots = []*BOMNode{}
	}
	data, err := json.Marshal(roots)
	if err != nil {
		return nil, fmt.Errorf("encode bom tree: %w", err)
	}
	return datatypes.JSON(data), nil
}

func countNodes(nodes []*BOMNode) int {
	n := 0
	for _, node := range nodes {
		n += 1 + countNodes(node.Children)
	}
	return n
}
