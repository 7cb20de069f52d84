// Package codec converts masterfile artifacts to and from core snapshots.
package codec

import (
	"fmt"
	"path"
	"strings"

	"github.com/JonMunkholm/masterfile/internal/core"
)

// ContentType values for the supported formats.
const (
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypeCSV  = "text/csv"
)

// Options tune how artifacts are decoded.
type Options struct {
	// Sheet to read from workbooks. Empty means the first sheet.
	Sheet string

	// TextColumns are zero-based column positions always decoded as text,
	// so identifiers like "00123" keep their leading zeros.
	TextColumns []int
}

func (o Options) isText(col int) bool {
	for _, c := range o.TextColumns {
		if c == col {
			return true
		}
	}
	return false
}

// ForFile returns the codec matching the extension of name.
func ForFile(name string, opts Options) (core.TabularCodec, error) {
	switch strings.ToLower(path.Ext(name)) {
	case ".xlsx", ".xlsm":
		return XLSX{Options: opts}, nil
	case ".csv":
		return CSV{Options: opts}, nil
	default:
		return nil, fmt.Errorf("no codec for %q", name)
	}
}
