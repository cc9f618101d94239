// Package query answers "which updates did device X get" over a store.
package query

import (
	"net/http"
	"strings"

	"github.com/kjk/devrecords/store"
)

const ParamDeviceID = "device_id"

// Reader is implemented by *store.Store
type Reader interface {
	ReadAll(filterDeviceID string) ([]*store.Record, error)
}

type Service struct {
	Store Reader
	// if true, leading and trailing whitespace is removed from the
	// device id before matching. Matching itself is always exact.
	TrimSpace bool
}

func New(s Reader, trimSpace bool) *Service {
	return &Service{
		Store:     s,
		TrimSpace: trimSpace,
	}
}

// Query returns records of a given device in insertion order.
// Empty deviceID means all records.
func (s *Service) Query(deviceID string) ([]*store.Record, error) {
	if s.TrimSpace {
		deviceID = strings.TrimSpace(deviceID)
	}
	return s.Store.ReadAll(deviceID)
}

// FilterFromRequest returns device_id from url query.
// Missing or unparsable query means no filter.
func FilterFromRequest(r *http.Request) string {
	if r == nil || r.URL == nil {
		return ""
	}
	// Query() silently drops malformed pairs
	return r.URL.Query().Get(ParamDeviceID)
}
