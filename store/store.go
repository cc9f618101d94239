package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	ColDeviceID      = "device_id"
	ColUpdateContent = "update_content"
	ColUpdateTime    = "update_time"

	// TimeLayout is the format of Record.UpdateTime (local time, no zone)
	TimeLayout = "2006-01-02 15:04:05"

	DefaultFileName = "device_records.csv"
)

// Columns is the schema of the backing file, in order
var Columns = []string{ColDeviceID, ColUpdateContent, ColUpdateTime}

type Record struct {
	DeviceID      string `json:"device_id"`
	UpdateContent string `json:"update_content"`
	UpdateTime    string `json:"update_time"`
}

func (r *Record) row() []string {
	return []string{r.DeviceID, r.UpdateContent, r.UpdateTime}
}

// backend reads and writes one file format
type backend interface {
	create(path string) error
	append(path string, rec *Record) error
	// readAll calls fn for every record, in file order
	readAll(path string, fn func(*Record)) error
}

type Store struct {
	DataDir  string
	FileName string

	// Now returns the time stamped on appended records.
	// time.Now if not set.
	Now func() time.Time

	path    string
	backend backend
	mu      sync.RWMutex
}

// Path returns absolute path of the backing file
func (s *Store) Path() string {
	return s.path
}

func backendForFile(name string) (backend, error) {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".csv":
		return csvBackend{}, nil
	case ".xlsx":
		return xlsxBackend{}, nil
	}
	return nil, fmt.Errorf("unsupported file type '%s' of '%s', must be .csv or .xlsx", ext, name)
}

// OpenStore creates the backing file with a header if it doesn't exist yet
func OpenStore(s *Store) error {
	if s.DataDir == "" {
		return fmt.Errorf("data directory is not set. For current directory, use '.'")
	}
	if s.FileName == "" {
		s.FileName = DefaultFileName
	}
	if s.Now == nil {
		s.Now = time.Now
	}

	var err error
	s.backend, err = backendForFile(s.FileName)
	if err != nil {
		return err
	}
	s.path, err = filepath.Abs(filepath.Join(s.DataDir, s.FileName))
	if err != nil {
		return fmt.Errorf("failed to get absolute path for '%s': %w", s.FileName, err)
	}

	err = os.MkdirAll(s.DataDir, 0755)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = os.Stat(s.path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return err
	}
	if err = s.backend.create(s.path); err != nil {
		return fmt.Errorf("failed to create '%s': %w", s.path, err)
	}
	return nil
}

// Append stamps the record with current time and appends it to the file
func (s *Store) Append(deviceID string, updateContent string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := &Record{
		DeviceID:      deviceID,
		UpdateContent: updateContent,
		UpdateTime:    s.Now().Format(TimeLayout),
	}
	if err := s.backend.append(s.path, rec); err != nil {
		return nil, fmt.Errorf("failed to append record to '%s': %w", s.path, err)
	}
	return rec, nil
}

// ReadAll returns records whose device id equals filterDeviceID.
// Empty filterDeviceID returns all records.
// Returns no records and no error if the file doesn't exist.
func (s *Store) ReadAll(filterDeviceID string) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var res []*Record
	err := s.backend.readAll(s.path, func(rec *Record) {
		if filterDeviceID == "" || rec.DeviceID == filterDeviceID {
			res = append(res, rec)
		}
	})
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read records from '%s': %w", s.path, err)
	}
	return res, nil
}
