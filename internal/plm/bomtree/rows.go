package bomtree

import (
	"math"
	"strconv"
	"strings"

	"github.com/bitfantasy/nimo-bom/internal/plm/entity"
)

// Columns 表格格式的列顺序
var Columns = []string{
	"Level", "LevelName", "PartId", "Position", "Quantity", "Unit",
	"Cost", "Supplier", "Lifecycle", "Status", "Type",
}

// DefaultUnit 物料行缺省单位
const DefaultUnit = "piece"

// Type 列取值
const (
	RowTypeStructure  = "Structure"
	RowTypePrimary    = "Primary"
	RowTypeSubstitute = "Substitute"
)

// Row 表格中的一行，保留单元格原文
type Row struct {
	Level     string
	LevelName string
	PartID    string
	Position  string
	Quantity  string
	Unit      string
	Cost      string
	Supplier  string
	Lifecycle string
	Status    string
	Type      string
}

// Values 按列顺序返回单元格
func (r Row) Values() []string {
	return []string{
		r.Level, r.LevelName, r.PartID, r.Position, r.Quantity, r.Unit,
		r.Cost, r.Supplier, r.Lifecycle, r.Status, r.Type,
	}
}

// RowFromValues 按列顺序映射单元格，缺少的列留空，多余的列忽略
func RowFromValues(values []string) Row {
	cell := func(i int) string {
		if i < len(values) {
			return strings.TrimSpace(values[i])
		}
		return ""
	}
	return Row{
		Level: cell(0), LevelName: cell(1), PartID: cell(2), Position: cell(3),
		Quantity: cell(4), Unit: cell(5), Cost: cell(6), Supplier: cell(7),
		Lifecycle: cell(8), Status: cell(9), Type: cell(10),
	}
}

func (r Row) blank() bool {
	for _, v := range r.Values() {
		if v != "" {
			return false
		}
	}
	return true
}

// ImportStats 导入时的修补统计
type ImportStats struct {
	Rows               int `json:"rows"`
	Nodes              int `json:"nodes"`
	MissingLevel       int `json:"missing_level"`
	Relevelled         int `json:"relevelled"`
	DefaultedFields    int `json:"defaulted_fields"`
	DroppedSubstitutes int `json:"dropped_substitutes"`
}

// FromRows 从先序排列的行重建树
// 父节点取最近出现的上一层级行；层级无法解析的行沿用上一行层级，
// 跳级的行挂到当前最深的祖先下。结果已规范化
func FromRows(rows []Row) ([]*entity.BOMNode, ImportStats) {
	var (
		stats    ImportStats
		roots    []*entity.BOMNode
		lastSeen [entity.LevelCount]*entity.BOMNode
		prev     = entity.Level(-1)
	)

	for _, row := range rows {
		if row.blank() {
			continue
		}
		stats.Rows++

		level, ok := entity.ParseLevelCode(row.Level)
		if !ok {
			stats.MissingLevel++
			level = max(prev, entity.LevelUnit)
		}
		declared := level
		for level > entity.LevelUnit && lastSeen[level-1] == nil {
			level--
		}
		if level != declared {
			stats.Relevelled++
		}

		n, defaulted := nodeFromRow(row, level)
		stats.DefaultedFields += defaulted
		if level == entity.LevelUnit {
			roots = append(roots, n)
		} else {
			p := lastSeen[level-1]
			p.Children = append(p.Children, n)
		}
		lastSeen[level] = n
		for l := int(level) + 1; l < entity.LevelCount; l++ {
			lastSeen[l] = nil
		}
		prev = level
	}

	for _, p := range PrimaryNodes(roots) {
		if len(p.Children) > 1 {
			stats.DroppedSubstitutes += len(p.Children) - 1
		}
	}
	out := Normalize(roots)
	stats.Nodes = Count(out)
	return out, stats
}

// nodeFromRow builds a node and reports how many part fields fell back to
// their defaults.
func nodeFromRow(row Row, level entity.Level) (*entity.BOMNode, int) {
	n := &entity.BOMNode{
		Level:     level,
		Title:     row.LevelName,
		PartID:    row.PartID,
		Position:  row.Position,
		Unit:      row.Unit,
		Supplier:  row.Supplier,
		Lifecycle: entity.ParseLifecycle(row.Lifecycle),
		Status:    entity.ParseStatus(row.Status),
	}
	if n.Title == "" {
		n.Title = row.PartID
	}

	defaulted := 0
	qty, qtyOK := parseNumber(row.Quantity)
	cost, costOK := parseNumber(row.Cost)
	if level < entity.LevelPart {
		if qtyOK {
			n.Quantity = entity.Float(qty)
		}
		if costOK {
			n.Cost = entity.Float(cost)
		}
		return n, 0
	}

	if !qtyOK {
		qty = 1
		defaulted++
	}
	if !costOK {
		cost = 0
		defaulted++
	}
	if n.Unit == "" {
		n.Unit = DefaultUnit
		defaulted++
	}
	n.Quantity = entity.Float(qty)
	n.Cost = entity.Float(cost)
	return n, defaulted
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// ToRows 先序输出行，Level 列按深度生成
func ToRows(roots []*entity.BOMNode) []Row {
	var rows []Row
	for r := range Rows(roots) {
		n := r.Node
		row := Row{
			Level:     r.Level.Code(),
			LevelName: n.Title,
			PartID:    n.PartID,
			Position:  n.Position,
			Quantity:  formatNumber(n.Quantity),
			Unit:      n.Unit,
			Cost:      formatNumber(n.Cost),
			Supplier:  n.Supplier,
			Lifecycle: string(n.Lifecycle),
			Status:    string(n.Status),
			Type:      RowTypeStructure,
		}
		switch r.Level {
		case entity.LevelPart:
			row.Type = RowTypePrimary
		case entity.LevelSubstitute:
			row.Type = RowTypeSubstitute
		}
		rows = append(rows, row)
	}
	return rows
}

func formatNumber(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
