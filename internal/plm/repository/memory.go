package repository

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/bitfantasy/nimo-bom/internal/plm/entity"
)

// MemoryDocumentRepository 内存文档仓库
type MemoryDocumentRepository struct {
	mu   sync.RWMutex
	docs map[string]entity.BOMDocument
}

func NewMemoryDocumentRepository() *MemoryDocumentRepository {
	return &MemoryDocumentRepository{docs: make(map[string]entity.BOMDocument)}
}

func copyDocument(doc entity.BOMDocument) entity.BOMDocument {
	doc.Tree = slices.Clone(doc.Tree)
	return doc
}

func (r *MemoryDocumentRepository) Create(_ context.Context, doc *entity.BOMDocument) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	r.docs[doc.ID] = copyDocument(*doc)
	return nil
}

func (r *MemoryDocumentRepository) FindByID(_ context.Context, id string) (*entity.BOMDocument, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := copyDocument(doc)
	return &out, nil
}

func (r *MemoryDocumentRepository) List(_ context.Context) ([]entity.BOMDocument, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]entity.BOMDocument, 0, len(r.docs))
	for _, doc := range r.docs {
		doc.Tree = nil
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (r *MemoryDocumentRepository) Update(_ context.Context, doc *entity.BOMDocument) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[doc.ID]; !ok {
		return ErrNotFound
	}
	doc.UpdatedAt = time.Now()
	r.docs[doc.ID] = copyDocument(*doc)
	return nil
}

func (r *MemoryDocumentRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[id]; !ok {
		return ErrNotFound
	}
	delete(r.docs, id)
	return nil
}

// MemoryTemplateRepository 内存模板仓库
type MemoryTemplateRepository struct {
	mu   sync.RWMutex
	tpls map[string]entity.BOMTemplate
}

func NewMemoryTemplateRepository() *MemoryTemplateRepository {
	return &MemoryTemplateRepository{tpls: make(map[string]entity.BOMTemplate)}
}

func (r *MemoryTemplateRepository) Create(_ context.Context, tpl *entity.BOMTemplate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.tpls {
		if existing.Code == tpl.Code {
			return nil
		}
	}
	now := time.Now()
	tpl.CreatedAt, tpl.UpdatedAt = now, now
	stored := *tpl
	stored.Tree = slices.Clone(tpl.Tree)
	r.tpls[tpl.ID] = stored
	return nil
}

func (r *MemoryTemplateRepository) FindByID(_ context.Context, id string) (*entity.BOMTemplate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tpl, ok := r.tpls[id]
	if !ok {
		return nil, ErrNotFound
	}
	tpl.Tree = slices.Clone(tpl.Tree)
	return &tpl, nil
}

func (r *MemoryTemplateRepository) List(_ context.Context, activeOnly bool) ([]entity.BOMTemplate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]entity.BOMTemplate, 0, len(r.tpls))
	for _, tpl := range r.tpls {
		if activeOnly && !tpl.IsActive {
			continue
		}
		tpl.Tree = slices.Clone(tpl.Tree)
		out = append(out, tpl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r *MemoryTemplateRepository) Count(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.tpls)), nil
}

// MemoryComplianceRepository 内存合规记录仓库
type MemoryComplianceRepository struct {
	mu   sync.RWMutex
	recs map[string]entity.PartCompliance
}

func NewMemoryComplianceRepository() *MemoryComplianceRepository {
	return &MemoryComplianceRepository{recs: make(map[string]entity.PartCompliance)}
}

func (r *MemoryComplianceRepository) Upsert(_ context.Context, rec *entity.PartCompliance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	if rec.CheckedAt.IsZero() {
		rec.CheckedAt = now
	}
	rec.UpdatedAt = now
	stored := *rec
	stored.MissingCerts = slices.Clone(rec.MissingCerts)
	r.recs[rec.PartID] = stored
	return nil
}

func (r *MemoryComplianceRepository) FindByPartIDs(_ context.Context, partIDs []string) (map[string]entity.PartCompliance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]entity.PartCompliance, len(partIDs))
	for _, id := range partIDs {
		if rec, ok := r.recs[id]; ok {
			out[id] = rec
		}
	}
	return out, nil
}
