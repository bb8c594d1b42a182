package bomtree

import (
	"iter"
	"slices"

	"github.com/bitfantasy/nimo-bom/internal/plm/entity"
)

// FlatRow 按展示顺序排列的一行
// Level 取遍历深度，规范化后的树上与节点存储的层级一致
type FlatRow struct {
	Node         *entity.BOMNode
	ParentKey    string
	Level        entity.Level
	HasChildren  bool
	ParentStatus entity.Status // L7 rows only, taken from the owning L6
}

func (r FlatRow) Key() string { return r.Node.Key }

// Rows 先序遍历产出扁平行，每次迭代都从头遍历
func Rows(roots []*entity.BOMNode) iter.Seq[FlatRow] {
	return func(yield func(FlatRow) bool) {
		emitRows(roots, nil, 0, yield)
	}
}

func emitRows(nodes []*entity.BOMNode, parent *entity.BOMNode, depth entity.Level, yield func(FlatRow) bool) bool {
	for _, n := range nodes {
		if n == nil {
			continue
		}
		row := FlatRow{
			Node:        n,
			Level:       depth,
			HasChildren: n.HasChildren(),
		}
		if parent != nil {
			row.ParentKey = parent.Key
			if depth == entity.LevelSubstitute {
				row.ParentStatus = parent.Status
			}
		}
		if !yield(row) {
			return false
		}
		if !emitRows(n.Children, n, depth+1, yield) {
			return false
		}
	}
	return true
}

// Flatten 收集 Rows 的全部行
func Flatten(roots []*entity.BOMNode) []FlatRow {
	return slices.Collect(Rows(roots))
}
