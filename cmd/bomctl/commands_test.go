package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bitfantasy/nimo-bom/internal/plm/bomtree"
	"github.com/bitfantasy/nimo-bom/internal/plm/entity"
)

const sampleTree = `[
  {"title": "Laptop", "children": [
    {"title": "Mainboard", "children": [
      {"title": "Compute", "children": [
        {"title": "Silicon", "children": [
          {"title": "Processor", "children": [
            {"title": "Processor 8C", "partId": "CPU-001", "cost": 100, "quantity": 2, "unit": "piece", "children": [
              {"title": "Processor 6C", "partId": "CPU-002", "cost": 80, "quantity": 2, "unit": "piece"}
            ]},
            {"title": "DDR5 16G", "partId": "MEM-001", "cost": 25, "quantity": 2, "unit": "piece", "children": [
              {"title": "NVMe 512G", "partId": "SSD-002", "cost": 40, "quantity": 1, "unit": "piece"}
            ]}
          ]}
        ]}
      ]}
    ]}
  ]}
]`

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "laptop.json")
	if err := os.WriteFile(path, []byte(sampleTree), 0o644); err != nil {
		t.Fatalf("write sample: %v", err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestTreeCommand(t *testing.T) {
	out, err := run(t, "tree", writeSample(t))
	if err != nil {
		t.Fatalf("tree: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 9 {
		t.Fatalf("Expected 9 lines, got %d:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[0], "[L1]") || !strings.Contains(lines[0], "Laptop") {
		t.Errorf("Unexpected first line %q", lines[0])
	}
	if !strings.Contains(lines[6], "[L7]") || !strings.Contains(lines[6], "Standby") {
		t.Errorf("Expected standby substitute on line 7, got %q", lines[6])
	}
}

func TestCostCommand(t *testing.T) {
	out, err := run(t, "cost", writeSample(t), "--breakdown")
	if err != nil {
		t.Fatalf("cost: %v", err)
	}
	if !strings.Contains(out, "Total cost: 250.00") {
		t.Errorf("Expected total 250.00, got:\n%s", out)
	}
	if !strings.Contains(out, "CPU-001") || strings.Contains(out, "CPU-002") {
		t.Errorf("Expected only active lines in breakdown, got:\n%s", out)
	}
}

func TestToggleCommandWritesFile(t *testing.T) {
	in := writeSample(t)
	out := filepath.Join(t.TempDir(), "toggled.json")
	if _, err := run(t, "toggle", in, "0-0-0-0-0-0", "-o", out); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	var roots []*entity.BOMNode
	if err := json.Unmarshal(data, &roots); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	cpu, _ := bomtree.Find(roots, "0-0-0-0-0-0")
	if cpu == nil || cpu.Status != entity.StatusInactive {
		t.Fatalf("Expected CPU inactive, got %+v", cpu)
	}
	if got := bomtree.TotalCost(roots).String(); got != "210" {
		t.Errorf("Expected 210, got %s", got)
	}
}

func TestReplaceCommandRejectsCategoryMismatch(t *testing.T) {
	_, err := run(t, "replace", writeSample(t), "0-0-0-0-0-1-0")
	var mismatch *bomtree.CategoryMismatchError
	if !errors.As(err, &mismatch) {
		t.Errorf("Expected CategoryMismatchError, got %v", err)
	}
}

func TestMutationCommandUnknownKey(t *testing.T) {
	_, err := run(t, "delete-substitute", writeSample(t), "7-7")
	if !errors.Is(err, errNodeNotFound) {
		t.Errorf("Expected errNodeNotFound, got %v", err)
	}
	_, err = run(t, "delete-substitute", writeSample(t), "0-0-0-0-0-0")
	if err == nil || !strings.Contains(err.Error(), "needs L7") {
		t.Errorf("Expected level error, got %v", err)
	}
}

func TestConvertRoundTrip(t *testing.T) {
	dir := t.TempDir()
	in := writeSample(t)
	xlsx := filepath.Join(dir, "laptop.xlsx")
	csv := filepath.Join(dir, "laptop.csv")

	if _, err := run(t, "convert", in, xlsx); err != nil {
		t.Fatalf("convert to xlsx: %v", err)
	}
	if _, err := run(t, "convert", xlsx, csv); err != nil {
		t.Fatalf("convert to csv: %v", err)
	}
	out, err := run(t, "cost", csv)
	if err != nil {
		t.Fatalf("cost: %v", err)
	}
	if !strings.Contains(out, "Total cost: 250.00") {
		t.Errorf("Expected cost to survive conversion, got %s", out)
	}
}
