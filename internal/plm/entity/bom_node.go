package entity

import (
	"strconv"
	"strings"
)

// Level BOM层级，0..6 对应 L1..L7
type Level int

const (
	LevelUnit       Level = iota // L1 整机
	LevelModule                  // L2 模块
	LevelAssembly                // L3 组件
	LevelFamily                  // L4 物料族
	LevelGroup                   // L5 物料组
	LevelPart                    // L6 主料
	LevelSubstitute              // L7 替代料
)

// LevelCount 层级总数
const LevelCount = int(LevelSubstitute) + 1

// LevelInfo 层级展示信息
type LevelInfo struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

var levelInfos = [LevelCount]LevelInfo{
	{Code: "L1", Name: "unit", Color: "magenta"},
	{Code: "L2", Name: "module", Color: "red"},
	{Code: "L3", Name: "assembly", Color: "volcano"},
	{Code: "L4", Name: "family", Color: "orange"},
	{Code: "L5", Name: "group", Color: "gold"},
	{Code: "L6", Name: "part", Color: "green"},
	{Code: "L7", Name: "substitute", Color: "cyan"},
}

// Levels 返回全部层级信息
func Levels() []LevelInfo {
	out := make([]LevelInfo, LevelCount)
	copy(out, levelInfos[:])
	return out
}

func (l Level) Valid() bool {
	return l >= LevelUnit && l <= LevelSubstitute
}

// Info 层级信息，越界返回空值
func (l Level) Info() LevelInfo {
	if !l.Valid() {
		return LevelInfo{}
	}
	return levelInfos[l]
}

func (l Level) Code() string  { return l.Info().Code }
func (l Level) Name() string  { return l.Info().Name }
func (l Level) Color() string { return l.Info().Color }

// ParseLevelCode 解析 "L1".."L7"（不区分大小写，允许纯数字）
func ParseLevelCode(s string) (Level, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "L"), "l")
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	level := Level(n - 1)
	if !level.Valid() {
		return 0, false
	}
	return level, true
}

// Status 节点状态
type Status string

const (
	StatusActive   Status = "Active"
	StatusInactive Status = "Inactive"
)

func (s Status) IsActive() bool {
	return s == StatusActive
}

// Inverse Inactive 变为 Active，其余（包括空值）变为 Inactive
func (s Status) Inverse() Status {
	if s == StatusInactive {
		return StatusActive
	}
	return StatusInactive
}

// ParseStatus 宽松解析状态，无法识别时返回空
func ParseStatus(s string) Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "active", "启用", "在用":
		return StatusActive
	case "inactive", "停用", "禁用":
		return StatusInactive
	}
	return ""
}

// PrimaryUsage L6 主料的使用状态
type PrimaryUsage string

const (
	PrimaryInUse   PrimaryUsage = "InUse"
	PrimaryRetired PrimaryUsage = "Retired"
)

// SubstituteUsage L7 替代料相对主料的状态
type SubstituteUsage string

const (
	SubstituteEffective SubstituteUsage = "Effective"
	SubstituteStandby   SubstituteUsage = "Standby"
)

// SubstituteStatusFor 主料状态为 primary 时替代料应处的状态
func SubstituteStatusFor(primary Status) Status {
	return primary.Inverse()
}

// Lifecycle 物料生命周期
type Lifecycle string

const (
	LifecycleMassProduction Lifecycle = "MassProduction"
	LifecycleDiscontinued   Lifecycle = "Discontinued"
	LifecycleRnD            Lifecycle = "R&D"
	LifecyclePhaseOut       Lifecycle = "PhaseOut"
)

// ParseLifecycle 解析生命周期，未知值原样保留
func ParseLifecycle(s string) Lifecycle {
	s = strings.TrimSpace(s)
	switch strings.ToLower(strings.ReplaceAll(s, " ", "")) {
	case "massproduction", "量产":
		return LifecycleMassProduction
	case "discontinued", "停产":
		return LifecycleDiscontinued
	case "r&d", "rnd", "研发":
		return LifecycleRnD
	case "phaseout", "逐步淘汰":
		return LifecyclePhaseOut
	}
	return Lifecycle(s)
}

// BOMNode BOM树节点
// JSON 字段沿用前端树结构的驼峰命名
type BOMNode struct {
	Key           string     `json:"key"`
	Level         Level      `json:"level"`
	Title         string     `json:"title"`
	PartID        string     `json:"partId,omitempty"`
	Position      string     `json:"position,omitempty"`
	Quantity      *float64   `json:"quantity,omitempty"`
	Unit          string     `json:"unit,omitempty"`
	Cost          *float64   `json:"cost,omitempty"`
	Supplier      string     `json:"supplier,omitempty"`
	Lifecycle     Lifecycle  `json:"lifecycle,omitempty"`
	Status        Status     `json:"status,omitempty"`
	ParentStatus  Status     `json:"parentStatus,omitempty"`
	IsAlternative bool       `json:"isAlternative,omitempty"`
	Children      []*BOMNode `json:"children,omitempty"`
}

// Float 返回浮点数指针
func Float(v float64) *float64 {
	return &v
}

func (n *BOMNode) IsPrimary() bool    { return n.Level == LevelPart }
func (n *BOMNode) IsSubstitute() bool { return n.Level == LevelSubstitute }
func (n *BOMNode) HasChildren() bool  { return len(n.Children) > 0 }

// QuantityOrDefault 未填数量按 1 计
func (n *BOMNode) QuantityOrDefault() float64 {
	if n.Quantity == nil {
		return 1
	}
	return *n.Quantity
}

// CostOrZero 未填单价按 0 计
func (n *BOMNode) CostOrZero() float64 {
	if n.Cost == nil {
		return 0
	}
	return *n.Cost
}

// PrimaryUsage 主料视角下的状态
func (n *BOMNode) PrimaryUsage() PrimaryUsage {
	if n.Status.IsActive() {
		return PrimaryInUse
	}
	return PrimaryRetired
}

// SubstituteUsage 替代料视角下的状态
func (n *BOMNode) SubstituteUsage() SubstituteUsage {
	if n.Status.IsActive() {
		return SubstituteEffective
	}
	return SubstituteStandby
}

// Usage 按层级返回主料或替代料状态，其他层级返回空
func (n *BOMNode) Usage() string {
	switch n.Level {
	case LevelPart:
		return string(n.PrimaryUsage())
	case LevelSubstitute:
		return string(n.SubstituteUsage())
	}
	return ""
}
