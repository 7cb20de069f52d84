package codec

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/JonMunkholm/masterfile/internal/core"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSV reads and writes comma separated files with a header row.
// CSV carries no cell types, so every non-blank cell decodes as text and
// normalization decides numeric equivalence.
type CSV struct {
	Options
	Comma rune // Field delimiter (default ',')
}

func (CSV) ContentType() string { return ContentTypeCSV }

func (c CSV) comma() rune {
	if c.Comma == 0 {
		return ','
	}
	return c.Comma
}

// Decode strips a UTF-8 BOM and replaces invalid UTF-8 before parsing.
func (c CSV) Decode(data []byte) (*core.Snapshot, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	text := strings.ToValidUTF8(string(data), "�")

	r := csv.NewReader(strings.NewReader(text))
	r.Comma = c.comma()
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("decode csv: %w", err)
	}
	if len(records) == 0 {
		return core.NewSnapshot(nil, nil), nil
	}

	columns := records[0]
	rows := make([][]core.Value, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make([]core.Value, len(columns))
		for j := 0; j < len(columns) && j < len(rec); j++ {
			if rec[j] != "" {
				row[j] = core.Text(rec[j])
			}
		}
		rows = append(rows, row)
	}
	return core.NewSnapshot(columns, rows), nil
}

func (c CSV) Encode(s *core.Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = c.comma()

	if err := w.Write(s.Columns()); err != nil {
		return nil, fmt.Errorf("encode csv: %w", err)
	}
	for i := 0; i < s.Len(); i++ {
		rec := make([]string, s.Width())
		for j, v := range s.Row(i) {
			if v.Kind == core.KindNumber {
				rec[j] = strconv.FormatFloat(v.Num, 'f', -1, 64)
				continue
			}
			rec[j] = v.Text
		}
		if err := w.Write(rec); err != nil {
			return nil, fmt.Errorf("encode csv: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("encode csv: %w", err)
	}
	return buf.Bytes(), nil
}
