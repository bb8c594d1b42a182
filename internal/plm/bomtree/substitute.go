package bomtree

import (
	"fmt"
	"slices"

	"github.com/bitfantasy/nimo-bom/internal/plm/entity"
	"github.com/shopspring/decimal"
)

// CategoryMismatchError 物料类别不一致，拒绝替换，树保持不变
type CategoryMismatchError struct {
	Source string
	Target string
}

func (e *CategoryMismatchError) Error() string {
	return fmt.Sprintf("category mismatch: %q cannot be replaced by %q", e.Source, e.Target)
}

// Result 变更后的树及重新计算的总成本
type Result struct {
	Roots     []*entity.BOMNode
	TotalCost decimal.Decimal
}

func resultOf(roots []*entity.BOMNode) Result {
	return Result{Roots: roots, TotalCost: TotalCost(roots)}
}

// Replace 用替代料属性覆盖其 L6 主料，主料保留 key、层级和子节点
func Replace(roots []*entity.BOMNode, l7Key string) (Result, error) {
	sub, parent := Find(roots, l7Key)
	if sub == nil || parent == nil || sub.Level != entity.LevelSubstitute {
		return resultOf(roots), nil
	}
	if err := checkCategory(parent.PartID, sub.PartID); err != nil {
		return resultOf(roots), err
	}
	next, _ := updateAt(roots, parent.Key, func(n *entity.BOMNode) *entity.BOMNode {
		p := *n
		p.PartID = sub.PartID
		p.Title = sub.Title
		p.Cost = sub.Cost
		p.Quantity = sub.Quantity
		p.Unit = sub.Unit
		p.Supplier = sub.Supplier
		p.Lifecycle = sub.Lifecycle
		return &p
	})
	return resultOf(next), nil
}

// DeleteSubstitute 删除替代料
func DeleteSubstitute(roots []*entity.BOMNode, l7Key string) Result {
	sub, parent := Find(roots, l7Key)
	if sub == nil || parent == nil || sub.Level != entity.LevelSubstitute {
		return resultOf(roots)
	}
	next, _ := updateAt(roots, parent.Key, func(n *entity.BOMNode) *entity.BOMNode {
		p := *n
		p.Children = slices.DeleteFunc(slices.Clone(n.Children), func(c *entity.BOMNode) bool {
			return c == sub
		})
		if len(p.Children) == 0 {
			p.Children = nil
		}
		return &p
	})
	return resultOf(next)
}

// PartInfo 物料目录中的标准名称和单价
type PartInfo struct {
	Title string
	Cost  *float64
}

// PartCatalog 物料目录
type PartCatalog interface {
	Lookup(partID string) (PartInfo, bool)
}

// EditFields L6 主料可编辑字段
// PartID 为空时保留原物料；nil 或空值不修改对应属性
type EditFields struct {
	PartID    string
	Quantity  *float64
	Unit      string
	Lifecycle entity.Lifecycle
}

// EditL6 编辑 L6 主料
// 更换物料编码时与 Replace 一样校验类别；物料变化且目录中存在时同时采用目录的名称和单价
func EditL6(roots []*entity.BOMNode, l6Key string, fields EditFields, catalog PartCatalog) ([]*entity.BOMNode, error) {
	node, _ := Find(roots, l6Key)
	if node == nil || node.Level != entity.LevelPart {
		return roots, nil
	}
	partID := fields.PartID
	if partID == "" {
		partID = node.PartID
	}
	if err := checkCategory(node.PartID, partID); err != nil {
		return roots, err
	}

	var (
		info  PartInfo
		found bool
	)
	if catalog != nil && partID != "" && partID != node.PartID {
		info, found = catalog.Lookup(partID)
	}

	next, _ := updateAt(roots, l6Key, func(n *entity.BOMNode) *entity.BOMNode {
		p := *n
		p.PartID = partID
		if found {
			p.Title = info.Title
			p.Cost = info.Cost
		}
		if fields.Quantity != nil {
			p.Quantity = entity.Float(*fields.Quantity)
		}
		if fields.Unit != "" {
			p.Unit = fields.Unit
		}
		if fields.Lifecycle != "" {
			p.Lifecycle = fields.Lifecycle
		}
		return &p
	})
	return next, nil
}

func checkCategory(source, target string) error {
	sc, tc := Category(source), Category(target)
	if sc != tc {
		return &CategoryMismatchError{Source: sc, Target: tc}
	}
	return nil
}

// TreeCatalog 基于模板树的物料目录，按模板顺序返回第一个匹配的节点
type TreeCatalog struct {
	trees [][]*entity.BOMNode
}

func NewTreeCatalog(trees ...[]*entity.BOMNode) *TreeCatalog {
	return &TreeCatalog{trees: trees}
}

func (c *TreeCatalog) Lookup(partID string) (PartInfo, bool) {
	if partID == "" {
		return PartInfo{}, false
	}
	for _, roots := range c.trees {
		var hit *entity.BOMNode
		walk(roots, nil, func(n, _ *entity.BOMNode) bool {
			if n.PartID == partID {
				hit = n
				return false
			}
			return true
		})
		if hit != nil {
			return PartInfo{Title: hit.Title, Cost: hit.Cost}, true
		}
	}
	return PartInfo{}, false
}
