package table

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is matched by every UnsupportedFormatError.
var ErrUnsupportedFormat = errors.New("unsupported file type")

// UnsupportedFormatError reports a file extension Load cannot dispatch.
type UnsupportedFormatError struct {
	Ext string
}

func (e *UnsupportedFormatError) Error() string {
	if e.Ext == "" {
		return "unsupported file type: (no extension)"
	}
	return "unsupported file type: " + e.Ext
}

// Is lets errors.Is(err, ErrUnsupportedFormat) match.
func (e *UnsupportedFormatError) Is(target error) bool {
	return target == ErrUnsupportedFormat
}

// Format is the loader family an extension dispatches to.
type Format string

const (
	FormatDelimited   Format = "delimited"
	FormatSpreadsheet Format = "spreadsheet"
)

// formats maps lowercase extensions to their loader.
var formats = map[string]Format{
	".csv":  FormatDelimited,
	".tsv":  FormatDelimited,
	".txt":  FormatDelimited,
	".xlsx": FormatSpreadsheet,
	".xlsm": FormatSpreadsheet,
	".xltx": FormatSpreadsheet,
	".xltm": FormatSpreadsheet,
	".xls":  FormatSpreadsheet,
}

// SupportedExtensions returns the extensions Load accepts.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(formats))
	for ext := range formats {
		exts = append(exts, ext)
	}
	return exts
}

// Loaded is the result of ingesting one file.
type Loaded struct {
	Table     Table  `json:"table"`
	Name      string `json:"filename"`
	Ext       string `json:"extension"`
	Format    Format `json:"format"`
	Encoding  string `json:"encoding,omitempty"`
	Delimiter string `json:"delimiter,omitempty"`
	Sheet     string `json:"sheet,omitempty"`
	Lossy     bool   `json:"lossy,omitempty"`
}

// Load ingests data according to the extension of filename.
//
// Delimited text goes through Decode and Parse. Spreadsheets are read with
// excelize, every cell coerced to its displayed text, and then pass through the
// same header repair as text files. Any other extension fails with an
// *UnsupportedFormatError.
func Load(data []byte, filename string) (*Loaded, error) {
	name := filepath.Base(filename)
	ext := strings.ToLower(filepath.Ext(name))

	format, ok := formats[ext]
	if !ok {
		return nil, &UnsupportedFormatError{Ext: ext}
	}

	loaded := &Loaded{Name: name, Ext: ext, Format: format}

	switch format {
	case FormatSpreadsheet:
		grid, sheet, err := readWorkbook(data)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", name, err)
		}
		loaded.Table = FromRecords(grid)
		loaded.Sheet = sheet

	default:
		text, info := Decode(data)
		if info.Lossy {
			slog.Warn("decode exhausted, fell back to lossy decoding",
				"file", name,
				"encoding", info.Encoding,
				"bytes", len(data),
			)
		}
		delim := DetectDelimiter(text)
		loaded.Table = ParseWith(text, delim)
		loaded.Encoding = info.Encoding
		loaded.Lossy = info.Lossy
		loaded.Delimiter = string(delim)
	}

	return loaded, nil
}
