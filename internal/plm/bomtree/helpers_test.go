package bomtree

import (
	"encoding/json"
	"testing"

	"github.com/bitfantasy/nimo-bom/internal/plm/entity"
	"github.com/shopspring/decimal"
)

func primary(key, partID string, cost, qty float64, status entity.Status, subs ...*entity.BOMNode) *entity.BOMNode {
	return &entity.BOMNode{
		Key: key, Level: entity.LevelPart, Title: partID, PartID: partID,
		Cost: entity.Float(cost), Quantity: entity.Float(qty), Unit: "piece",
		Supplier: "Acme", Lifecycle: entity.LifecycleMassProduction,
		Status: status, Children: subs,
	}
}

func substitute(key, partID string, cost, qty float64, status, parentStatus entity.Status) *entity.BOMNode {
	return &entity.BOMNode{
		Key: key, Level: entity.LevelSubstitute, Title: partID, PartID: partID,
		Cost: entity.Float(cost), Quantity: entity.Float(qty), Unit: "piece",
		Supplier: "Globex", Lifecycle: entity.LifecycleRnD,
		Status: status, ParentStatus: parentStatus, IsAlternative: true,
	}
}

func structural(key string, level entity.Level, title string, children ...*entity.BOMNode) *entity.BOMNode {
	return &entity.BOMNode{Key: key, Level: level, Title: title, Children: children}
}

// laptop builds L1..L5 above the given L5 groups.
func laptop(groups ...*entity.BOMNode) []*entity.BOMNode {
	return []*entity.BOMNode{
		structural("0", entity.LevelUnit, "Laptop",
			structural("0-0", entity.LevelModule, "Mainboard",
				structural("0-0-0", entity.LevelAssembly, "Compute",
					structural("0-0-0-0", entity.LevelFamily, "Silicon", groups...),
				),
			),
		),
	}
}

func group(key, title string, parts ...*entity.BOMNode) *entity.BOMNode {
	return structural(key, entity.LevelGroup, title, parts...)
}

// scenarioA is one L5 with one L6 (100 x 2, Active) and one L7 (80 x 2, Inactive).
func scenarioA() []*entity.BOMNode {
	return laptop(group("g", "Processor",
		primary("cpu", "CPU-001", 100, 2, entity.StatusActive,
			substitute("cpu-alt", "CPU-002", 80, 2, entity.StatusInactive, entity.StatusActive),
		),
	))
}

func mustFind(t *testing.T, roots []*entity.BOMNode, key string) *entity.BOMNode {
	t.Helper()
	n, _ := Find(roots, key)
	if n == nil {
		t.Fatalf("Expected node %q to exist", key)
	}
	return n
}

func mustJSON(t *testing.T, v interface{}) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(data)
}

func sameSlice(a, b []*entity.BOMNode) bool {
	if len(a) != len(b) {
		return false
	}
	return len(a) == 0 || &a[0] == &b[0]
}

func assertDecimal(t *testing.T, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Errorf("Expected %s, got %s", want, got)
	}
}
