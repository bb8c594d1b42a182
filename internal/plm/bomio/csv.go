package bomio

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/bitfantasy/nimo-bom/internal/plm/bomtree"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

// ReadCSV 读取 csv，encoding 为 gbk/gb18030 时先转为 UTF-8
func ReadCSV(r io.Reader, encoding string) ([]bomtree.Row, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "utf8", "utf-8":
	case "gbk":
		r = transform.NewReader(r, simplifiedchinese.GBK.NewDecoder())
	case "gb18030":
		r = transform.NewReader(r, simplifiedchinese.GB18030.NewDecoder())
	default:
		return nil, fmt.Errorf("unsupported encoding %q", encoding)
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return toRows(records), nil
}

// WriteCSV 写出 csv（UTF-8，带表头）
func WriteCSV(w io.Writer, rows []bomtree.Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(bomtree.Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range rows {
		if err := cw.Write(row.Values()); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
