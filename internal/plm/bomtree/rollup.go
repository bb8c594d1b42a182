package bomtree

import (
	"github.com/bitfantasy/nimo-bom/internal/plm/entity"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// LineCost 节点自身成本：生效的 L6/L7 为单价×数量，其余为 0
func LineCost(n *entity.BOMNode) decimal.Decimal {
	if n.Level < entity.LevelPart || !n.Status.IsActive() {
		return decimal.Zero
	}
	return decimal.NewFromFloat(n.CostOrZero()).Mul(decimal.NewFromFloat(n.QuantityOrDefault()))
}

// SubtreeCost 节点及其子孙的成本合计
func SubtreeCost(n *entity.BOMNode) decimal.Decimal {
	total := LineCost(n)
	for _, c := range n.Children {
		if c != nil {
			total = total.Add(SubtreeCost(c))
		}
	}
	return total
}

// TotalCost 汇总树中全部生效的 L6/L7 成本
func TotalCost(roots []*entity.BOMNode) decimal.Decimal {
	total := decimal.Zero
	for _, n := range roots {
		if n != nil {
			total = total.Add(SubtreeCost(n))
		}
	}
	return total
}

// SharePercent 占比百分数，保留两位小数；总额为 0 时返回 0
func SharePercent(part, total decimal.Decimal) float64 {
	if total.IsZero() {
		return 0
	}
	return part.Mul(hundred).Div(total).Round(2).InexactFloat64()
}

// CostLine 成本明细行
type CostLine struct {
	Key          string          `json:"key"`
	PartID       string          `json:"partId"`
	Title        string          `json:"title"`
	Level        entity.Level    `json:"level"`
	UnitCost     decimal.Decimal `json:"cost"`
	Quantity     decimal.Decimal `json:"quantity"`
	LineCost     decimal.Decimal `json:"lineCost"`
	SharePercent float64         `json:"sharePercent"`
}

// Breakdown 按展示顺序列出生效的 L6/L7 明细及占比，并返回总额
func Breakdown(roots []*entity.BOMNode) ([]CostLine, decimal.Decimal) {
	total := TotalCost(roots)
	var lines []CostLine
	for row := range Rows(roots) {
		n := row.Node
		if n.Level < entity.LevelPart || !n.Status.IsActive() {
			continue
		}
		cost := LineCost(n)
		lines = append(lines, CostLine{
			Key:          n.Key,
			PartID:       n.PartID,
			Title:        n.Title,
			Level:        n.Level,
			UnitCost:     decimal.NewFromFloat(n.CostOrZero()),
			Quantity:     decimal.NewFromFloat(n.QuantityOrDefault()),
			LineCost:     cost,
			SharePercent: SharePercent(cost, total),
		})
	}
	return lines, total
}
