// Package render turns device update records into HTML pages or JSON
package render

import (
	"bytes"
	"embed"
	"encoding/json"
	"html/template"
	"io"
	"io/fs"

	"github.com/tidwall/pretty"

	"github.com/kjk/devrecords/store"
	"github.com/kjk/devrecords/u"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static
var StaticFS embed.FS

const (
	PageIndex   = "index.html"
	PageAdd     = "add.html"
	PageRecords = "records.html"
)

var pages = map[string]*template.Template{}

func init() {
	for _, name := range []string{PageIndex, PageAdd, PageRecords} {
		pages[name] = template.Must(template.ParseFS(templatesFS, "templates/base.html", "templates/"+name))
	}
}

// Static returns embedded static files rooted at "static"
func Static() fs.FS {
	sub, err := fs.Sub(StaticFS, "static")
	u.Must(err)
	return sub
}

// html executes a page into a buffer so that a template error
// doesn't leave a half-written response
func html(page string, data any) ([]byte, error) {
	t := pages[page]
	u.PanicIf(t == nil, "unknown page '%s'", page)
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base", data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Index is the landing page with a search form and a link to the add form
func Index() ([]byte, error) {
	return html(PageIndex, nil)
}

func AddForm() ([]byte, error) {
	return html(PageAdd, nil)
}

type recordsPage struct {
	DeviceID string
	Records  []*store.Record
}

// Records renders query results. deviceID is the filter shown in the
// heading, empty for all records.
func Records(recs []*store.Record, deviceID string) ([]byte, error) {
	v := recordsPage{
		DeviceID: deviceID,
		Records:  recs,
	}
	return html(PageRecords, v)
}

// JSON writes records as an array of objects with device_id,
// update_content and update_time keys. No records is [], not null.
func JSON(w io.Writer, recs []*store.Record, prettyPrint bool) error {
	if recs == nil {
		recs = []*store.Record{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	// content is free-form text, don't mangle < > &
	enc.SetEscapeHTML(false)
	if err := enc.Encode(recs); err != nil {
		return err
	}
	d := buf.Bytes()
	if prettyPrint {
		d = pretty.Pretty(d)
	}
	_, err := w.Write(d)
	return err
}
