package bomtree

import (
	"encoding/json"
	"testing"

	"github.com/bitfantasy/nimo-bom/internal/plm/entity"
	"github.com/shopspring/decimal"
)

func TestTotalCost(t *testing.T) {
	costly := group("g2", "Memory",
		primary("ram", "RAM-001", 45.5, 2, entity.StatusActive),
		primary("ram2", "RAM-002", 999, 1, entity.StatusInactive),
	)
	costly.Cost = entity.Float(10000) // structural nodes carry no cost of their own

	noQty := primary("ssd", "SSD-001", 60, 0, entity.StatusActive)
	noQty.Quantity = nil
	noCost := primary("fan", "FAN-001", 0, 4, entity.StatusActive)
	noCost.Cost = nil

	tree := laptop(
		group("g1", "Processor",
			primary("cpu", "CPU-001", 100, 2, entity.StatusActive,
				substitute("cpu-alt", "CPU-002", 80, 2, entity.StatusInactive, entity.StatusActive),
			),
		),
		costly,
		group("g3", "Storage", noQty, noCost),
		group("g4", "Empty"),
	)
	// 200 + 91 + 60 + 0
	assertDecimal(t, TotalCost(tree), "351")
	assertDecimal(t, SubtreeCost(mustFind(t, tree, "g2")), "91")
	assertDecimal(t, LineCost(mustFind(t, tree, "g2")), "0")
	assertDecimal(t, TotalCost(nil), "0")
}

func TestTotalCostCountsActiveSubstituteUnderInactivePrimary(t *testing.T) {
	tree := laptop(group("g", "Processor",
		primary("cpu", "CPU-001", 100, 2, entity.StatusInactive,
			substitute("cpu-alt", "CPU-002", 80, 2, entity.StatusActive, entity.StatusInactive),
		),
	))
	assertDecimal(t, TotalCost(tree), "160")
}

func TestSharePercent(t *testing.T) {
	if got := SharePercent(decimal.NewFromInt(5), decimal.Zero); got != 0 {
		t.Errorf("Expected 0 for zero total, got %v", got)
	}
	if got := SharePercent(decimal.NewFromInt(1), decimal.NewFromInt(3)); got != 33.33 {
		t.Errorf("Expected 33.33, got %v", got)
	}
	if got := SharePercent(decimal.NewFromInt(50), decimal.NewFromInt(200)); got != 25 {
		t.Errorf("Expected 25, got %v", got)
	}
}

func TestBreakdown(t *testing.T) {
	tree := laptop(
		group("g1", "Processor",
			primary("cpu", "CPU-001", 100, 3, entity.StatusActive,
				substitute("cpu-alt", "CPU-002", 80, 3, entity.StatusInactive, entity.StatusActive),
			),
		),
		group("g2", "Memory", primary("ram", "RAM-001", 50, 2, entity.StatusActive)),
	)
	lines, total := Breakdown(tree)
	assertDecimal(t, total, "400")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 active lines, got %d", len(lines))
	}
	if lines[0].Key != "cpu" || lines[1].Key != "ram" {
		t.Errorf("Expected display order cpu, ram; got %s, %s", lines[0].Key, lines[1].Key)
	}
	assertDecimal(t, lines[0].LineCost, "300")
	if lines[0].SharePercent != 75 || lines[1].SharePercent != 25 {
		t.Errorf("Expected 75/25, got %v/%v", lines[0].SharePercent, lines[1].SharePercent)
	}

	zero := laptop(group("g", "Processor", primary("cpu", "CPU-001", 0, 1, entity.StatusActive)))
	lines, total = Breakdown(zero)
	if !total.IsZero() || len(lines) != 1 || lines[0].SharePercent != 0 {
		t.Errorf("Expected a single 0%% line on a zero total, got %+v", lines)
	}
}

func TestCostLineJSON(t *testing.T) {
	lines, _ := Breakdown(scenarioA())
	if len(lines) != 1 {
		t.Fatalf("Expected 1 line, got %d", len(lines))
	}
	raw, err := json.Marshal(lines[0])
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got map[string]interface{}
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["partId"] != "CPU-001" || got["cost"] != "100" || got["lineCost"] != "200" || got["sharePercent"] != float64(100) {
		t.Errorf("Unexpected cost line JSON %s", raw)
	}
	if _, ok := got["PartID"]; ok {
		t.Errorf("Expected camelCase keys, got %s", raw)
	}

	var back CostLine
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal CostLine: %v", err)
	}
	assertDecimal(t, back.LineCost, "200")
}
