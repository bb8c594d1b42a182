// Package bomio reads and writes the tabular BOM format as xlsx and csv files.
package bomio

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/bitfantasy/nimo-bom/internal/plm/bomtree"
)

// Format 文件格式
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// ContentType 下载时使用的 MIME 类型
func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	}
	return "application/octet-stream"
}

// ErrUnsupportedFormat 不支持的文件格式
var ErrUnsupportedFormat = errors.New("unsupported file format")

// ParseFormat 解析格式名，允许带点的扩展名
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "xlsx":
		return FormatXLSX, nil
	case "csv":
		return FormatCSV, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// DetectFormat 根据文件名判断格式
func DetectFormat(filename string) (Format, error) {
	return ParseFormat(filepath.Ext(filename))
}

// Options 读取选项
type Options struct {
	// Encoding csv 文件编码，"gbk" 或空（UTF-8）
	Encoding string
	// Sheet xlsx 工作表名，空则取第一个
	Sheet string
}

// Read 按格式读取行
func Read(r io.Reader, format Format, opts Options) ([]bomtree.Row, error) {
	switch format {
	case FormatXLSX:
		return ReadXLSX(r, opts.Sheet)
	case FormatCSV:
		return ReadCSV(r, opts.Encoding)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

// Write 按格式写出行
func Write(w io.Writer, format Format, rows []bomtree.Row, summary *Summary) error {
	switch format {
	case FormatXLSX:
		return WriteXLSX(w, rows, summary)
	case FormatCSV:
		return WriteCSV(w, rows)
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

// columnIndex maps header cells onto column positions. It returns nil when
// the first line is not a header.
func columnIndex(header []string) []int {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[normalizeHeader(h)] = i
	}
	if _, ok := pos[normalizeHeader(bomtree.Columns[0])]; !ok {
		return nil
	}
	idx := make([]int, len(bomtree.Columns))
	for i, c := range bomtree.Columns {
		if p, ok := pos[normalizeHeader(c)]; ok {
			idx[i] = p
		} else {
			idx[i] = -1
		}
	}
	return idx
}

func normalizeHeader(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	return strings.ToLower(strings.NewReplacer(" ", "", "_", "").Replace(strings.TrimSpace(s)))
}

// toRows turns raw records into rows, honoring a header line when present.
func toRows(records [][]string) []bomtree.Row {
	if len(records) == 0 {
		return nil
	}
	idx := columnIndex(records[0])
	if idx != nil {
		records = records[1:]
	}
	rows := make([]bomtree.Row, 0, len(records))
	for _, rec := range records {
		if idx == nil {
			rows = append(rows, bomtree.RowFromValues(rec))
			continue
		}
		values := make([]string, len(idx))
		for i, p := range idx {
			if p >= 0 && p < len(rec) {
				values[i] = rec[p]
			}
		}
		rows = append(rows, bomtree.RowFromValues(values))
	}
	return rows
}
