package service

import (
	"context"
	"testing"

	"github.com/bitfantasy/nimo-bom/internal/plm/bomtree"
	"github.com/bitfantasy/nimo-bom/internal/plm/repository"
)

func TestLoadSeedFile(t *testing.T) {
	svc := NewServices(repository.NewMemoryRepositories(), nil, nil, nil, nil)
	ctx := context.Background()
	if err := svc.LoadSeedFile(ctx, "../../../configs/templates.json"); err != nil {
		t.Fatalf("load seed: %v", err)
	}

	tpls, err := svc.Template.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tpls) != 2 {
		t.Fatalf("Expected 2 shipped templates, got %d", len(tpls))
	}
	for _, tpl := range tpls {
		roots, err := tpl.Nodes()
		if err != nil {
			t.Fatalf("%s: %v", tpl.Code, err)
		}
		if err := bomtree.Check(roots); err != nil {
			t.Errorf("%s violates tree invariants: %v", tpl.Code, err)
		}
	}

	doc, err := svc.BOM.CreateFromTemplate(ctx, "", tpls[0].ID, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if tpls[0].Code != "LAPTOP-14" || doc.TotalCost != 315 {
		t.Errorf("Expected LAPTOP-14 at 315, got %s at %v", tpls[0].Code, doc.TotalCost)
	}
	report, err := svc.BOM.Compliance(ctx, doc.ID)
	if err != nil {
		t.Fatalf("compliance: %v", err)
	}
	if report.Report.NonCompliantCount != 2 || report.Report.CertificationRates["rohs"] != 60 {
		t.Errorf("Unexpected laptop compliance %+v", report.Report)
	}

	catalog, err := svc.Template.Catalog(ctx)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	if info, ok := catalog.Lookup("OLED-002"); !ok || info.Title != "6.1in OLED" {
		t.Errorf("Expected OLED-002 from the phone template, got %+v %v", info, ok)
	}
}

func TestLoadSeedFileMissingIsSkipped(t *testing.T) {
	svc := NewServices(repository.NewMemoryRepositories(), nil, nil, nil, nil)
	if err := svc.LoadSeedFile(context.Background(), "does-not-exist.json"); err != nil {
		t.Errorf("Expected missing seed file to be skipped, got %v", err)
	}
}
