package store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/kjk/devrecords/atomicfile"
	"github.com/kjk/devrecords/u"
)

// ErrNotStorable is returned by Append when a value can't be stored
// unchanged in the backing file
var ErrNotStorable = errors.New("value can't be stored unchanged")

// xlsxBackend keeps records in the first sheet of a workbook.
// A spreadsheet can't be appended to in place so every append
// rewrites the whole file.
type xlsxBackend struct{}

func toCells(row []string) []any {
	res := make([]any, len(row))
	for i, s := range row {
		res[i] = s
	}
	return res
}

// isXMLChar reports if r is allowed in XML 1.0 text
func isXMLChar(r rune) bool {
	switch {
	case r == 0x09 || r == 0x0A || r == 0x0D:
		return true
	case r >= 0x20 && r <= 0xD7FF:
		return true
	case r >= 0xE000 && r <= 0xFFFD:
		return true
	case r >= 0x10000 && r <= 0x10FFFF:
		return true
	}
	return false
}

// checkCell returns an error if excelize would truncate or rewrite s
func checkCell(s string) error {
	if !utf8.ValidString(s) {
		return fmt.Errorf("%w: invalid utf-8", ErrNotStorable)
	}
	if n := utf8.RuneCountInString(s); n > excelize.TotalCellChars {
		return fmt.Errorf("%w: %d characters, a spreadsheet cell holds at most %d", ErrNotStorable, n, excelize.TotalCellChars)
	}
	for i, r := range s {
		if !isXMLChar(r) {
			return fmt.Errorf("%w: character %U at offset %d", ErrNotStorable, r, i)
		}
	}
	return nil
}

func checkRow(row []string) error {
	for i, v := range row {
		if err := checkCell(v); err != nil {
			return fmt.Errorf("column '%s': %w", Columns[i], err)
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, rowNo int, row []string) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNo)
	if err != nil {
		return err
	}
	cells := toCells(row)
	return f.SetSheetRow(sheet, cell, &cells)
}

func saveWorkbook(f *excelize.File, path string) error {
	return atomicfile.WriteFrom(path, func(w io.Writer) error {
		return f.Write(w)
	})
}

func newWorkbook() (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	if err := setRow(f, sheet, 1, Columns); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func (xlsxBackend) create(path string) error {
	f, err := newWorkbook()
	if err != nil {
		return err
	}
	defer f.Close()
	return saveWorkbook(f, path)
}

// openWorkbook opens path, a missing or empty file is a new workbook
func openWorkbook(path string) (*excelize.File, error) {
	st, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) || (err == nil && st.Size() == 0) {
		return newWorkbook()
	}
	if err != nil {
		return nil, err
	}
	return excelize.OpenFile(path)
}

func (xlsxBackend) append(path string, rec *Record) error {
	row := rec.row()
	if err := checkRow(row); err != nil {
		return err
	}
	f, err := openWorkbook(path)
	if err != nil {
		return err
	}
	defer u.CloseNoError(f)

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return err
	}
	n := len(rows)
	if n == 0 {
		if err = setRow(f, sheet, 1, Columns); err != nil {
			return err
		}
		n = 1
	}
	if err = setRow(f, sheet, n+1, row); err != nil {
		return err
	}
	return saveWorkbook(f, path)
}

func (xlsxBackend) readAll(path string, fn func(*Record)) error {
	// truncated to nothing, same as an empty csv file
	if u.FileSize(path) == 0 {
		return nil
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return err
	}
	defer u.CloseNoError(f)

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	idx := columnIndexes(rows[0])
	for _, row := range rows[1:] {
		if len(row) == 0 {
			continue
		}
		fn(recordFromRow(row, idx))
	}
	return nil
}
