package bomio

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/bitfantasy/nimo-bom/internal/plm/bomtree"
	"github.com/xuri/excelize/v2"
)

const (
	bomSheet     = "BOM"
	summarySheet = "Summary"
)

var columnWidths = []float64{8, 28, 18, 12, 10, 8, 12, 20, 16, 10, 12}

// Summary 导出汇总信息，写入单独的工作表
type Summary struct {
	Name       string
	TotalCost  float64
	NodeCount  int
	ExportedAt time.Time
}

// NewWorkbook 生成BOM工作簿
func NewWorkbook(rows []bomtree.Row, summary *Summary) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", bomSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	// 表头样式: 加粗
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	// 替代料行: 灰色斜体
	substituteStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Italic: true, Color: "808080"},
	})

	for i, h := range bomtree.Columns {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		f.SetCellValue(bomSheet, cell, h)
		f.SetCellStyle(bomSheet, cell, cell, headerStyle)
		if i < len(columnWidths) {
			f.SetColWidth(bomSheet, col, col, columnWidths[i])
		}
	}

	lastCol, _ := excelize.ColumnNumberToName(len(bomtree.Columns))
	for rowIdx, row := range rows {
		line := rowIdx + 2
		for i, v := range row.Values() {
			col, _ := excelize.ColumnNumberToName(i + 1)
			cell := fmt.Sprintf("%s%d", col, line)
			if i == 4 || i == 6 { // Quantity, Cost
				if num, err := strconv.ParseFloat(v, 64); err == nil {
					f.SetCellValue(bomSheet, cell, num)
					continue
				}
			}
			f.SetCellValue(bomSheet, cell, v)
		}
		if row.Type == bomtree.RowTypeSubstitute {
			f.SetCellStyle(bomSheet, fmt.Sprintf("A%d", line), fmt.Sprintf("%s%d", lastCol, line), substituteStyle)
		}
	}
	f.SetPanes(bomSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	if summary != nil {
		if _, err := f.NewSheet(summarySheet); err != nil {
			f.Close()
			return nil, fmt.Errorf("create summary sheet: %w", err)
		}
		exportedAt := summary.ExportedAt
		if exportedAt.IsZero() {
			exportedAt = time.Now()
		}
		f.SetCellValue(summarySheet, "A1", "Name")
		f.SetCellValue(summarySheet, "B1", summary.Name)
		f.SetCellValue(summarySheet, "A2", "TotalCost")
		f.SetCellValue(summarySheet, "B2", summary.TotalCost)
		f.SetCellValue(summarySheet, "A3", "Nodes")
		f.SetCellValue(summarySheet, "B3", summary.NodeCount)
		f.SetCellValue(summarySheet, "A4", "ExportedAt")
		f.SetCellValue(summarySheet, "B4", exportedAt.Format("2006-01-02 15:04:05"))
		f.SetColWidth(summarySheet, "A", "A", 14)
		f.SetColWidth(summarySheet, "B", "B", 32)
	}
	f.SetActiveSheet(0)
	return f, nil
}

// WriteXLSX 写出 xlsx
func WriteXLSX(w io.Writer, rows []bomtree.Row, summary *Summary) error {
	f, err := NewWorkbook(rows, summary)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

// ReadXLSX 读取 xlsx，sheet 为空时读取第一个工作表
func ReadXLSX(r io.Reader, sheet string) ([]bomtree.Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	records, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	return toRows(records), nil
}
