package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bitfantasy/nimo-bom/internal/plm/bomio"
	"github.com/bitfantasy/nimo-bom/internal/plm/bomtree"
	"github.com/bitfantasy/nimo-bom/internal/plm/entity"
)

// loadTree reads a tree from .json (node tree) or .xlsx/.csv (row format).
func loadTree(path, encoding string) ([]*entity.BOMNode, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".json") {
		var roots []*entity.BOMNode
		if err := json.NewDecoder(f).Decode(&roots); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		return bomtree.Normalize(roots), nil
	}

	format, err := bomio.DetectFormat(path)
	if err != nil {
		return nil, err
	}
	rows, err := bomio.Read(f, format, bomio.Options{Encoding: encoding})
	if err != nil {
		return nil, err
	}
	roots, _ := bomtree.FromRows(rows)
	return roots, nil
}

// writeTree writes roots to path, choosing the format by extension. An empty
// path or "-" writes JSON to w.
func writeTree(w io.Writer, path string, roots []*entity.BOMNode) error {
	if path == "" || path == "-" {
		return writeJSON(w, roots)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".json") {
		return writeJSON(f, roots)
	}
	format, err := bomio.DetectFormat(path)
	if err != nil {
		return err
	}
	summary := &bomio.Summary{
		Name:      strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		TotalCost: bomtree.TotalCost(roots).InexactFloat64(),
		NodeCount: bomtree.Count(roots),
	}
	return bomio.Write(f, format, bomtree.ToRows(roots), summary)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
