// Package store keeps device update records in a single flat file.
//
// The backing file is either CSV or an .xlsx spreadsheet, picked by the
// file extension. Both hold exactly three named columns:
//
//	device_id,update_content,update_time
//
// Records are only ever appended. Row order is insertion order.
//
// # Basic Usage
//
//	s := &store.Store{
//	    DataDir:  "./data",
//	    FileName: "device_records.csv",
//	}
//	err := store.OpenStore(s)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	rec, err := s.Append("dev-1", "firmware v2")
//
//	// all records of dev-1, in insertion order
//	recs, err := s.ReadAll("dev-1")
//
// # Reads
//
// ReadAll re-reads the whole file on every call and filters by exact
// device id. There is no index.
//
// # Thread Safety
//
// A Store is safe for concurrent use within one process: appends are
// serialized and never interleave with reads. Nothing guards the file
// against other processes.
package store
