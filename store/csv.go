package store

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/kjk/devrecords/atomicfile"
)

type csvBackend struct{}

func writeCSVRows(w io.Writer, rows ...[]string) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

func (csvBackend) create(path string) error {
	return atomicfile.WriteFrom(path, func(w io.Writer) error {
		return writeCSVRows(w, Columns)
	})
}

// append writes the row with a single write followed by fsync.
// If the file is empty (e.g. deleted while we were running)
// the header goes first.
func (csvBackend) append(path string, rec *Record) error {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return err
	}
	st, err := file.Stat()
	if err != nil {
		file.Close()
		return err
	}
	var buf bytes.Buffer
	if st.Size() == 0 {
		err = writeCSVRows(&buf, Columns, rec.row())
	} else {
		err = writeCSVRows(&buf, rec.row())
	}
	if err != nil {
		file.Close()
		return err
	}
	_, err = file.Write(buf.Bytes())
	if err != nil {
		file.Close()
		return err
	}
	err = file.Sync()
	if err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// columnIndexes maps our columns to their position in header, -1 if missing
func columnIndexes(header []string) []int {
	res := make([]int, len(Columns))
	for i, col := range Columns {
		res[i] = -1
		for j, h := range header {
			if h == col {
				res[i] = j
				break
			}
		}
	}
	return res
}

func recordFromRow(row []string, idx []int) *Record {
	get := func(i int) string {
		n := idx[i]
		if n < 0 || n >= len(row) {
			return ""
		}
		return row[n]
	}
	return &Record{
		DeviceID:      get(0),
		UpdateContent: get(1),
		UpdateTime:    get(2),
	}
}

func (csvBackend) readAll(path string, fn func(*Record)) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	r := csv.NewReader(file)
	// tolerate short rows, missing fields are empty
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(header) > 0 {
		// files saved by Excel start with a BOM
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	idx := columnIndexes(header)
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		fn(recordFromRow(row, idx))
	}
}
