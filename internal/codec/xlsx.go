package codec

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/masterfile/internal/core"
)

// defaultSheet is the sheet name new workbooks are written with.
const defaultSheet = "Sheet1"

// XLSX reads and writes Office Open XML workbooks. The first row is the
// header; every following row is data.
type XLSX struct {
	Options
}

func (XLSX) ContentType() string { return ContentTypeXLSX }

// Decode reads the configured sheet. Numeric cells become numbers, every
// other cell type becomes text, and blank cells become empty values.
func (c XLSX) Decode(data []byte) (*core.Snapshot, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode xlsx: %w", err)
	}
	defer f.Close()

	sheet := c.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("decode xlsx: workbook has no sheets")
		}
		sheet = sheets[0]
	}

	grid, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("decode xlsx: sheet %q: %w", sheet, err)
	}
	if len(grid) == 0 {
		return core.NewSnapshot(nil, nil), nil
	}

	columns := grid[0]
	rows := make([][]core.Value, 0, len(grid)-1)
	for r, raw := range grid[1:] {
		row := make([]core.Value, len(columns))
		for j := 0; j < len(columns) && j < len(raw); j++ {
			v, err := c.cellValue(f, sheet, j, r+2, raw[j])
			if err != nil {
				return nil, fmt.Errorf("decode xlsx: %w", err)
			}
			row[j] = v
		}
		rows = append(rows, row)
	}

	return core.NewSnapshot(columns, rows), nil
}

// cellValue types one raw cell. col is zero-based, row is the 1-based sheet row.
func (c XLSX) cellValue(f *excelize.File, sheet string, col, row int, raw string) (core.Value, error) {
	if raw == "" {
		return core.Empty(), nil
	}
	if c.isText(col) {
		return core.Text(raw), nil
	}

	cell, err := excelize.CoordinatesToCellName(col+1, row)
	if err != nil {
		return core.Value{}, err
	}
	typ, err := f.GetCellType(sheet, cell)
	if err != nil {
		return core.Value{}, err
	}

	switch typ {
	case excelize.CellTypeUnset, excelize.CellTypeNumber:
		if n, err := strconv.ParseFloat(raw, 64); err == nil {
			return core.Number(n), nil
		}
		return core.Text(raw), nil
	case excelize.CellTypeBool:
		return core.Text(strconv.FormatBool(raw == "1")), nil
	default:
		return core.Text(raw), nil
	}
}

// Encode writes the snapshot to a single-sheet workbook.
func (c XLSX) Encode(s *core.Snapshot) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := c.Sheet
	if sheet == "" {
		sheet = defaultSheet
	} else if err := f.SetSheetName(defaultSheet, sheet); err != nil {
		return nil, fmt.Errorf("encode xlsx: %w", err)
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return nil, fmt.Errorf("encode xlsx: %w", err)
	}

	header := make([]interface{}, s.Width())
	for j, name := range s.Columns() {
		header[j] = name
	}
	if err := sw.SetRow("A1", header); err != nil {
		return nil, fmt.Errorf("encode xlsx: header: %w", err)
	}

	for i := 0; i < s.Len(); i++ {
		cells := make([]interface{}, s.Width())
		for j, v := range s.Row(i) {
			switch v.Kind {
			case core.KindText:
				cells[j] = v.Text
			case core.KindNumber:
				cells[j] = v.Num
			default:
				cells[j] = nil
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("encode xlsx: %w", err)
		}
		if err := sw.SetRow(cell, cells); err != nil {
			return nil, fmt.Errorf("encode xlsx: row %d: %w", i+1, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return nil, fmt.Errorf("encode xlsx: %w", err)
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("encode xlsx: %w", err)
	}
	return buf.Bytes(), nil
}
