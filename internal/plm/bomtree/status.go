package bomtree

import "github.com/bitfantasy/nimo-bom/internal/plm/entity"

// ToggleL6Status 切换 L6 主料状态，替代料取反并同步 parentStatus
func ToggleL6Status(roots []*entity.BOMNode, key string) []*entity.BOMNode {
	node, _ := Find(roots, key)
	if node == nil || node.Level != entity.LevelPart {
		return roots
	}
	next, _ := updateAt(roots, key, func(n *entity.BOMNode) *entity.BOMNode {
		return withPrimaryStatus(n, n.Status.Inverse())
	})
	return next
}

// withPrimaryStatus copies an L6 node and its direct children with the
// primary status applied and the substitute status inverted.
func withPrimaryStatus(n *entity.BOMNode, status entity.Status) *entity.BOMNode {
	next := *n
	next.Status = status
	if len(n.Children) == 0 {
		return &next
	}
	next.Children = make([]*entity.BOMNode, len(n.Children))
	for i, child := range n.Children {
		c := *child
		c.ParentStatus = status
		c.Status = entity.SubstituteStatusFor(status)
		next.Children[i] = &c
	}
	return &next
}
