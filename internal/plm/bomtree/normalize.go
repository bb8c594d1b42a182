package bomtree

import (
	"errors"
	"fmt"

	"github.com/bitfantasy/nimo-bom/internal/plm/entity"
)

// Normalize 返回满足结构约束的树副本：
//   - 层级等于深度，超过 L7 的节点丢弃
//   - L6 只保留第一个替代料
//   - L7 的 parentStatus 取父节点状态，并标记为替代料
//   - L6 缺省状态为 Active，L7 缺省为父节点状态取反
//   - 没有 key 的节点按路径生成 key
func Normalize(roots []*entity.BOMNode) []*entity.BOMNode {
	return normalizeLevel(roots, "", entity.LevelUnit, nil)
}

func normalizeLevel(nodes []*entity.BOMNode, parentKey string, level entity.Level, parent *entity.BOMNode) []*entity.BOMNode {
	if len(nodes) == 0 || !level.Valid() {
		return nil
	}
	out := make([]*entity.BOMNode, 0, len(nodes))
	for i, n := range nodes {
		if n == nil {
			continue
		}
		if level == entity.LevelSubstitute && len(out) == 1 {
			break
		}
		next := *n
		next.Level = level
		if next.Key == "" {
			next.Key = childKey(parentKey, i)
		}
		next.ParentStatus = ""
		next.IsAlternative = false
		switch level {
		case entity.LevelPart:
			if next.Status == "" {
				next.Status = entity.StatusActive
			}
		case entity.LevelSubstitute:
			next.IsAlternative = true
			next.ParentStatus = parent.Status
			if next.Status == "" {
				next.Status = entity.SubstituteStatusFor(parent.Status)
			}
		}
		next.Children = normalizeLevel(n.Children, next.Key, level+1, &next)
		out = append(out, &next)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Check 返回树违反的全部结构约束，没有则为 nil
func Check(roots []*entity.BOMNode) error {
	var errs []error
	keys := make(map[string]bool)
	var visit func(nodes []*entity.BOMNode, parent *entity.BOMNode, depth entity.Level)
	visit = func(nodes []*entity.BOMNode, parent *entity.BOMNode, depth entity.Level) {
		for _, n := range nodes {
			if n == nil {
				continue
			}
			if keys[n.Key] {
				errs = append(errs, fmt.Errorf("node %q: duplicate key", n.Key))
			}
			keys[n.Key] = true
			if !depth.Valid() {
				errs = append(errs, fmt.Errorf("node %q: deeper than %s", n.Key, entity.LevelSubstitute.Code()))
				continue
			}
			if n.Level != depth {
				errs = append(errs, fmt.Errorf("node %q: level %d at depth %d", n.Key, n.Level, depth))
			}
			if depth == entity.LevelPart && len(n.Children) > 1 {
				errs = append(errs, fmt.Errorf("node %q: %d substitutes", n.Key, len(n.Children)))
			}
			if depth == entity.LevelSubstitute && n.ParentStatus != parent.Status {
				errs = append(errs, fmt.Errorf("node %q: parentStatus %q, parent is %q", n.Key, n.ParentStatus, parent.Status))
			}
			visit(n.Children, n, depth+1)
		}
	}
	visit(roots, nil, entity.LevelUnit)
	return errors.Join(errs...)
}
