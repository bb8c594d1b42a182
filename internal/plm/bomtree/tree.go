// Package bomtree implements the seven-level BOM tree: flattening, L6/L7 status
// propagation, substitution, cost roll-up and compliance aggregation.
//
// Every mutation is persistent. The input tree is never modified; the result
// shares every subtree that is not on the path from a root to the target node.
// A key that does not resolve to a node of the expected level leaves the tree
// unchanged and the same slice is returned.
package bomtree

import (
	"slices"
	"strconv"
	"strings"

	"github.com/bitfantasy/nimo-bom/internal/plm/entity"
)

// Category 物料类别，即第一个 "-" 之前的前缀
func Category(partID string) string {
	prefix, _, _ := strings.Cut(partID, "-")
	return prefix
}

// Find 先序查找节点及其父节点（根节点的父节点为 nil）
func Find(roots []*entity.BOMNode, key string) (node, parent *entity.BOMNode) {
	walk(roots, nil, func(n, p *entity.BOMNode) bool {
		if n.Key == key {
			node, parent = n, p
			return false
		}
		return true
	})
	return node, parent
}

// PrimaryNodes 先序收集全部 L6 主料
func PrimaryNodes(roots []*entity.BOMNode) []*entity.BOMNode {
	var out []*entity.BOMNode
	walk(roots, nil, func(n, _ *entity.BOMNode) bool {
		if n.Level == entity.LevelPart {
			out = append(out, n)
		}
		return true
	})
	return out
}

// Count 节点总数
func Count(roots []*entity.BOMNode) int {
	n := 0
	walk(roots, nil, func(*entity.BOMNode, *entity.BOMNode) bool {
		n++
		return true
	})
	return n
}

// walk visits nodes in pre-order until fn returns false.
func walk(nodes []*entity.BOMNode, parent *entity.BOMNode, fn func(n, parent *entity.BOMNode) bool) bool {
	for _, n := range nodes {
		if n == nil {
			continue
		}
		if !fn(n, parent) {
			return false
		}
		if !walk(n.Children, n, fn) {
			return false
		}
	}
	return true
}

// updateAt rebuilds the path from the roots to the first node keyed key and
// puts fn's result in its place. Siblings and untouched subtrees are shared
// with the input. When the key is absent the input slice is returned as is.
func updateAt(nodes []*entity.BOMNode, key string, fn func(*entity.BOMNode) *entity.BOMNode) ([]*entity.BOMNode, bool) {
	for i, n := range nodes {
		if n == nil {
			continue
		}
		if n.Key == key {
			out := slices.Clone(nodes)
			out[i] = fn(n)
			return out, true
		}
		children, ok := updateAt(n.Children, key, fn)
		if !ok {
			continue
		}
		next := *n
		next.Children = children
		out := slices.Clone(nodes)
		out[i] = &next
		return out, true
	}
	return nodes, false
}

// childKey builds the path-qualified key of the i-th child.
func childKey(parentKey string, i int) string {
	if parentKey == "" {
		return strconv.Itoa(i)
	}
	return parentKey + "-" + strconv.Itoa(i)
}
