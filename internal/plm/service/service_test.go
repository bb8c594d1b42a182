package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/bitfantasy/nimo-bom/internal/plm/bomio"
	"github.com/bitfantasy/nimo-bom/internal/plm/bomtree"
	"github.com/bitfantasy/nimo-bom/internal/plm/entity"
	"github.com/bitfantasy/nimo-bom/internal/plm/repository"
	"github.com/bitfantasy/nimo-bom/internal/plm/sse"
)

const (
	cpuKey    = "0-0-0-0-0-0"
	cpuAltKey = "0-0-0-0-0-0-0"
	memKey    = "0-0-0-0-0-1"
	memAltKey = "0-0-0-0-0-1-0"
)

type recordingPublisher struct {
	mu      sync.Mutex
	updates []sse.BOMUpdate
}

func (p *recordingPublisher) PublishBOMUpdate(u sse.BOMUpdate) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updates = append(p.updates, u)
}

type memoryArchiver struct {
	objects map[string][]byte
}

func (a *memoryArchiver) Archive(_ context.Context, name string, data []byte, _ string) (string, error) {
	path := "bom-exports/" + name
	a.objects[path] = data
	return path, nil
}

type mapCache struct {
	mu    sync.Mutex
	items map[string][]byte
}

func (c *mapCache) key(docID string, revision int, kind string) string {
	return fmt.Sprintf("%s:%s:%d", kind, docID, revision)
}

func (c *mapCache) Get(_ context.Context, docID string, revision int, kind string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.items[c.key(docID, revision, kind)]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, dest)
}

func (c *mapCache) Set(_ context.Context, docID string, revision int, kind string, value interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.items[c.key(docID, revision, kind)] = data
	return nil
}

func part(partID, title string, cost, qty float64, children ...*entity.BOMNode) *entity.BOMNode {
	return &entity.BOMNode{
		Title: title, PartID: partID, Cost: entity.Float(cost), Quantity: entity.Float(qty),
		Unit: "piece", Supplier: "Acme", Lifecycle: entity.LifecycleMassProduction,
		Children: children,
	}
}

func chain(titles []string, leaf ...*entity.BOMNode) []*entity.BOMNode {
	children := leaf
	for i := len(titles) - 1; i >= 0; i-- {
		children = []*entity.BOMNode{{Title: titles[i], Children: children}}
	}
	return children
}

func testSeed() SeedData {
	return SeedData{
		Templates: []TemplateSeed{
			{
				Code: "LAPTOP-14", Name: "Laptop 14", ProductType: "laptop",
				Tree: chain([]string{"Laptop", "Mainboard", "Compute", "Silicon", "Processor"},
					part("CPU-001", "Processor 8C", 100, 2,
						part("CPU-002", "Processor 6C", 80, 2)),
					part("MEM-001", "DDR5 16G", 25, 2,
						part("SSD-002", "NVMe 512G", 40, 1)),
				),
			},
			{
				Code: "WORKSTATION", Name: "Workstation", ProductType: "desktop",
				Tree: chain([]string{"Workstation", "Board", "Compute", "Silicon", "Processor"},
					part("CPU-900", "Processor 16C", 150, 1),
				),
			},
		},
		Compliance: []ComplianceSeed{
			{PartID: "MEM-001", Status: "Fail", Missing: []entity.Certification{entity.CertRoHS}},
		},
	}
}

type fixture struct {
	svc      *Services
	events   *recordingPublisher
	archiver *memoryArchiver
	cache    *mapCache
	laptopID string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		events:   &recordingPublisher{},
		archiver: &memoryArchiver{objects: map[string][]byte{}},
		cache:    &mapCache{items: map[string][]byte{}},
	}
	f.svc = NewServices(repository.NewMemoryRepositories(), f.cache, f.archiver, f.events, nil)
	ctx := context.Background()
	if err := f.svc.Seed(ctx, testSeed()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	tpls, err := f.svc.Template.List(ctx)
	if err != nil {
		t.Fatalf("list templates: %v", err)
	}
	for _, tpl := range tpls {
		if tpl.Code == "LAPTOP-14" {
			f.laptopID = tpl.ID
		}
	}
	if f.laptopID == "" {
		t.Fatal("Expected LAPTOP-14 template to be seeded")
	}
	return f
}

func (f *fixture) newDoc(t *testing.T) *entity.BOMDocument {
	t.Helper()
	doc, err := f.svc.BOM.CreateFromTemplate(context.Background(), "EVT build", f.laptopID, "u-001")
	if err != nil {
		t.Fatalf("create document: %v", err)
	}
	return doc
}

func nodeAt(t *testing.T, roots []*entity.BOMNode, key string) *entity.BOMNode {
	t.Helper()
	n, _ := bomtree.Find(roots, key)
	if n == nil {
		t.Fatalf("Expected node %s", key)
	}
	return n
}

func TestSeedIsIdempotent(t *testing.T) {
	f := newFixture(t)
	if err := f.svc.Seed(context.Background(), testSeed()); err != nil {
		t.Fatalf("reseed: %v", err)
	}
	tpls, _ := f.svc.Template.List(context.Background())
	if len(tpls) != 2 {
		t.Errorf("Expected 2 templates after reseed, got %d", len(tpls))
	}
}

func TestCreateFromTemplate(t *testing.T) {
	f := newFixture(t)
	doc := f.newDoc(t)

	if doc.Revision != 1 {
		t.Errorf("Expected revision 1, got %d", doc.Revision)
	}
	if doc.NodeCount != 9 {
		t.Errorf("Expected 9 nodes, got %d", doc.NodeCount)
	}
	if doc.TotalCost != 250 {
		t.Errorf("Expected total cost 250, got %v", doc.TotalCost)
	}

	roots, err := doc.Nodes()
	if err != nil {
		t.Fatalf("nodes: %v", err)
	}
	alt := nodeAt(t, roots, cpuAltKey)
	if alt.Level != entity.LevelSubstitute || alt.Status != entity.StatusInactive || !alt.IsAlternative {
		t.Errorf("Expected normalized inactive substitute, got %+v", alt)
	}

	_, err = f.svc.BOM.CreateFromTemplate(context.Background(), "", "missing", "")
	if !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown template, got %v", err)
	}
}

func TestToggle(t *testing.T) {
	f := newFixture(t)
	doc := f.newDoc(t)

	res, err := f.svc.BOM.Toggle(context.Background(), doc.ID, cpuKey)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if res.Document.Revision != 2 {
		t.Errorf("Expected revision 2, got %d", res.Document.Revision)
	}
	if res.TotalCost.String() != "210" {
		t.Errorf("Expected total 210, got %s", res.TotalCost)
	}
	if cpu := nodeAt(t, res.Roots, cpuKey); cpu.Status != entity.StatusInactive {
		t.Errorf("Expected CPU inactive, got %s", cpu.Status)
	}
	alt := nodeAt(t, res.Roots, cpuAltKey)
	if alt.Status != entity.StatusActive || alt.ParentStatus != entity.StatusInactive {
		t.Errorf("Expected substitute active under inactive parent, got %+v", alt)
	}

	stored, err := f.svc.BOM.Get(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Revision != 2 || stored.TotalCost != 210 {
		t.Errorf("Expected stored revision 2 and cost 210, got %d / %v", stored.Revision, stored.TotalCost)
	}

	if len(f.events.updates) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(f.events.updates))
	}
	if ev := f.events.updates[0]; ev.Action != OpToggle || ev.Key != cpuKey || ev.Revision != 2 {
		t.Errorf("Unexpected event %+v", ev)
	}
}

func TestMutationErrors(t *testing.T) {
	f := newFixture(t)
	doc := f.newDoc(t)
	ctx := context.Background()

	if _, err := f.svc.BOM.Toggle(ctx, doc.ID, "9-9"); !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("Expected ErrNodeNotFound, got %v", err)
	}
	if _, err := f.svc.BOM.Toggle(ctx, doc.ID, cpuAltKey); !errors.Is(err, ErrLevelMismatch) {
		t.Errorf("Expected ErrLevelMismatch toggling a substitute, got %v", err)
	}
	if _, err := f.svc.BOM.Replace(ctx, doc.ID, cpuKey); !errors.Is(err, ErrLevelMismatch) {
		t.Errorf("Expected ErrLevelMismatch replacing with a primary, got %v", err)
	}
	if _, err := f.svc.BOM.Toggle(ctx, "nope", cpuKey); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown document, got %v", err)
	}

	stored, _ := f.svc.BOM.Get(ctx, doc.ID)
	if stored.Revision != 1 {
		t.Errorf("Expected failed mutations to leave revision 1, got %d", stored.Revision)
	}
	if len(f.events.updates) != 0 {
		t.Errorf("Expected no events, got %d", len(f.events.updates))
	}
}

func TestReplace(t *testing.T) {
	f := newFixture(t)
	doc := f.newDoc(t)
	ctx := context.Background()

	res, err := f.svc.BOM.Replace(ctx, doc.ID, cpuAltKey)
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	cpu := nodeAt(t, res.Roots, cpuKey)
	if cpu.PartID != "CPU-002" || cpu.CostOrZero() != 80 {
		t.Errorf("Expected CPU-002 at 80 on the primary, got %s at %v", cpu.PartID, cpu.CostOrZero())
	}
	if res.Document.TotalCost != 210 {
		t.Errorf("Expected total 210, got %v", res.Document.TotalCost)
	}

	_, err = f.svc.BOM.Replace(ctx, doc.ID, memAltKey)
	var mismatch *bomtree.CategoryMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("Expected CategoryMismatchError, got %v", err)
	}
	if mismatch.Source != "MEM" || mismatch.Target != "SSD" {
		t.Errorf("Unexpected categories %+v", mismatch)
	}
	stored, _ := f.svc.BOM.Get(ctx, doc.ID)
	if stored.Revision != 2 {
		t.Errorf("Expected rejected replace to keep revision 2, got %d", stored.Revision)
	}
}

func TestDeleteSubstitute(t *testing.T) {
	f := newFixture(t)
	doc := f.newDoc(t)

	res, err := f.svc.BOM.DeleteSubstitute(context.Background(), doc.ID, cpuAltKey)
	if err != nil {
		t.Fatalf("delete substitute: %v", err)
	}
	if cpu := nodeAt(t, res.Roots, cpuKey); len(cpu.Children) != 0 {
		t.Errorf("Expected no substitutes left, got %d", len(cpu.Children))
	}
	if res.Document.NodeCount != 8 {
		t.Errorf("Expected 8 nodes, got %d", res.Document.NodeCount)
	}
	if res.Document.TotalCost != 250 {
		t.Errorf("Expected total unchanged at 250, got %v", res.Document.TotalCost)
	}
}

func TestEditPrimaryUsesTemplateCatalog(t *testing.T) {
	f := newFixture(t)
	doc := f.newDoc(t)
	ctx := context.Background()

	res, err := f.svc.BOM.EditPrimary(ctx, doc.ID, cpuKey, bomtree.EditFields{PartID: "CPU-900", Quantity: entity.Float(1)})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	cpu := nodeAt(t, res.Roots, cpuKey)
	if cpu.Title != "Processor 16C" || cpu.CostOrZero() != 150 || cpu.QuantityOrDefault() != 1 {
		t.Errorf("Expected catalog data for CPU-900, got %+v", cpu)
	}
	if res.Document.TotalCost != 200 {
		t.Errorf("Expected total 200, got %v", res.Document.TotalCost)
	}

	_, err = f.svc.BOM.EditPrimary(ctx, doc.ID, cpuKey, bomtree.EditFields{PartID: "GPU-001"})
	var mismatch *bomtree.CategoryMismatchError
	if !errors.As(err, &mismatch) {
		t.Errorf("Expected CategoryMismatchError, got %v", err)
	}
}

func TestCostIsCachedPerRevision(t *testing.T) {
	f := newFixture(t)
	doc := f.newDoc(t)
	ctx := context.Background()

	first, err := f.svc.BOM.Cost(ctx, doc.ID)
	if err != nil {
		t.Fatalf("cost: %v", err)
	}
	if first.TotalCost.String() != "250" || len(first.Lines) != 2 {
		t.Fatalf("Expected 250 over 2 lines, got %s over %d", first.TotalCost, len(first.Lines))
	}
	if first.Lines[0].SharePercent != 80 || first.Lines[1].SharePercent != 20 {
		t.Errorf("Expected shares 80/20, got %v/%v", first.Lines[0].SharePercent, first.Lines[1].SharePercent)
	}
	if _, ok := f.cache.items[f.cache.key(doc.ID, 1, summaryKindCost)]; !ok {
		t.Error("Expected revision 1 cost summary to be cached")
	}

	if _, err := f.svc.BOM.Toggle(ctx, doc.ID, memKey); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	second, err := f.svc.BOM.Cost(ctx, doc.ID)
	if err != nil {
		t.Fatalf("cost: %v", err)
	}
	if second.Revision != 2 || second.TotalCost.String() != "240" {
		t.Errorf("Expected revision 2 total 240, got %d / %s", second.Revision, second.TotalCost)
	}
}

func TestCompliance(t *testing.T) {
	f := newFixture(t)
	doc := f.newDoc(t)

	summary, err := f.svc.BOM.Compliance(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("compliance: %v", err)
	}
	r := summary.Report
	if r.TotalChecked != 2 || r.NonCompliantCount != 1 || r.ComplianceRate != 50 {
		t.Errorf("Unexpected report %+v", r)
	}
	if r.OverallStatus != entity.OverallWarning {
		t.Errorf("Expected Warning, got %s", r.OverallStatus)
	}
	if r.CertificationRates["rohs"] != 50 || r.CertificationRates["ce"] != 50 {
		t.Errorf("Unexpected certification rates %v", r.CertificationRates)
	}
	if summary.TotalCost.String() != "250" {
		t.Errorf("Expected attached total 250, got %s", summary.TotalCost)
	}
}

func TestImportCSV(t *testing.T) {
	f := newFixture(t)
	rows := []bomtree.Row{
		{Level: "L1", LevelName: "Phone"},
		{Level: "L2", LevelName: "Board"},
		{Level: "L3", LevelName: "Core"},
		{Level: "L4", LevelName: "SoC"},
		{Level: "L5", LevelName: "Processor"},
		{Level: "L6", LevelName: "Application Processor", PartID: "SOC-001", Quantity: "1", Cost: "120", Status: "Active", Type: "Primary"},
		{Level: "L7", LevelName: "Alt Processor", PartID: "SOC-002", Cost: "100", Type: "Substitute"},
		{Level: "L6", LevelName: "PMIC", PartID: "PMU-001", Quantity: "2", Cost: "3.5", Type: "Primary"},
	}
	var buf bytes.Buffer
	if err := bomio.WriteCSV(&buf, rows); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	doc, stats, err := f.svc.BOM.Import(context.Background(), ImportInput{Filename: "phone.csv", Reader: &buf})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if doc.Name != "phone" || doc.Source != entity.DocumentSourceImport {
		t.Errorf("Unexpected document %s / %s", doc.Name, doc.Source)
	}
	if stats.Nodes != 8 || doc.NodeCount != 8 {
		t.Errorf("Expected 8 nodes, got stats %d doc %d", stats.Nodes, doc.NodeCount)
	}
	if doc.TotalCost != 127 {
		t.Errorf("Expected total 127, got %v", doc.TotalCost)
	}

	_, _, err = f.svc.BOM.Import(context.Background(), ImportInput{Filename: "phone.pdf", Reader: strings.NewReader("x")})
	if !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("Expected ErrInvalidFormat for pdf, got %v", err)
	}
	_, _, err = f.svc.BOM.Import(context.Background(), ImportInput{Filename: "empty.csv", Reader: strings.NewReader("")})
	if !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("Expected ErrInvalidFormat for empty file, got %v", err)
	}
}

func TestExportArchivesFile(t *testing.T) {
	f := newFixture(t)
	doc := f.newDoc(t)

	file, err := f.svc.BOM.Export(context.Background(), doc.ID, bomio.FormatCSV)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if file.Filename != "EVT build_r1.csv" {
		t.Errorf("Unexpected filename %s", file.Filename)
	}
	if !strings.HasPrefix(string(file.Data), "Level,LevelName,PartId") {
		t.Errorf("Expected csv header, got %.40q", file.Data)
	}
	if _, ok := f.archiver.objects[file.ArchivePath]; !ok {
		t.Errorf("Expected archived object at %q", file.ArchivePath)
	}

	rows, err := bomio.ReadCSV(bytes.NewReader(file.Data), "")
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(rows) != 9 {
		t.Errorf("Expected 9 exported rows, got %d", len(rows))
	}
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	doc := f.newDoc(t)
	ctx := context.Background()

	if err := f.svc.BOM.Delete(ctx, doc.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.svc.BOM.Get(ctx, doc.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
	if err := f.svc.BOM.Delete(ctx, doc.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("Expected ErrNotFound deleting twice, got %v", err)
	}
}

func TestConcurrentTogglesAreSerialized(t *testing.T) {
	f := newFixture(t)
	doc := f.newDoc(t)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.BOM.Toggle(context.Background(), doc.ID, cpuKey); err != nil {
				t.Errorf("toggle: %v", err)
			}
		}()
	}
	wg.Wait()

	stored, err := f.svc.BOM.Get(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Revision != n+1 {
		t.Errorf("Expected revision %d, got %d", n+1, stored.Revision)
	}
	roots, _ := stored.Nodes()
	if cpu := nodeAt(t, roots, cpuKey); cpu.Status != entity.StatusActive {
		t.Errorf("Expected an even number of toggles to restore Active, got %s", cpu.Status)
	}
	if stored.TotalCost != 250 {
		t.Errorf("Expected total 250, got %v", stored.TotalCost)
	}
}
