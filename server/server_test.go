package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alecthomas/assert"
	"github.com/carlmjohnson/requests"

	"github.com/kjk/devrecords/query"
	"github.com/kjk/devrecords/store"
)

func ctx() context.Context {
	return context.Background()
}

var noFollowClient = &http.Client{
	CheckRedirect: requests.NoFollow,
}

func newTestServer(t *testing.T) (*httptest.Server, *store.Store) {
	st := &store.Store{
		DataDir: t.TempDir(),
		Now: func() time.Time {
			return time.Date(2024, 3, 5, 14, 7, 9, 0, time.Local)
		},
	}
	assert.NoError(t, store.OpenStore(st))
	ts := httptest.NewServer(New(st, query.New(st, false)))
	t.Cleanup(ts.Close)
	return ts, st
}

func addRecord(t *testing.T, ts *httptest.Server, deviceID, content string) {
	err := requests.
		URL(ts.URL + "/add_record").
		Client(noFollowClient).
		BodyForm(url.Values{
			"device_id":      {deviceID},
			"update_content": {content},
		}).
		CheckStatus(http.StatusSeeOther).
		Fetch(ctx())
	assert.NoError(t, err)
}

func queryJSON(t *testing.T, ts *httptest.Server, deviceID string) []store.Record {
	var recs []store.Record
	rb := requests.URL(ts.URL + "/api/query")
	if deviceID != "" {
		rb = rb.Param("device_id", deviceID)
	}
	err := rb.ToJSON(&recs).Fetch(ctx())
	assert.NoError(t, err)
	return recs
}

func countRecords(t *testing.T, st *store.Store) int {
	recs, err := st.ReadAll("")
	assert.NoError(t, err)
	return len(recs)
}

func TestPagesAlwaysOK(t *testing.T) {
	ts, _ := newTestServer(t)
	for _, uri := range []string{"/", "/add", "/add_record", "/query", "/query?device_id=nope"} {
		var s string
		var h http.Header = http.Header{}
		err := requests.URL(ts.URL + uri).
			CopyHeaders(h).
			ToString(&s).
			Fetch(ctx())
		assert.NoError(t, err, "%s", uri)
		assert.True(t, strings.HasPrefix(s, "<!DOCTYPE html>"), "%s", uri)
		assert.Equal(t, "text/html; charset=utf-8", h.Get("Content-Type"), "%s", uri)
	}
}

func TestAddThenQuery(t *testing.T) {
	ts, _ := newTestServer(t)
	addRecord(t, ts, "dev-1", "firmware v2")
	addRecord(t, ts, "dev-2", "config reset")

	recs := queryJSON(t, ts, "dev-1")
	assert.Equal(t, []store.Record{
		{DeviceID: "dev-1", UpdateContent: "firmware v2", UpdateTime: "2024-03-05 14:07:09"},
	}, recs)

	recs = queryJSON(t, ts, "")
	assert.Equal(t, 2, len(recs))
	assert.Equal(t, "firmware v2", recs[0].UpdateContent)
	assert.Equal(t, "config reset", recs[1].UpdateContent)

	recs = queryJSON(t, ts, "dev-3")
	assert.Equal(t, 0, len(recs))

	var s string
	err := requests.URL(ts.URL + "/query").Param("device_id", "dev-2").ToString(&s).Fetch(ctx())
	assert.NoError(t, err)
	assert.Equal(t, 1, strings.Count(s, `class="record-card"`))
	assert.Contains(t, s, "config reset")
	assert.False(t, strings.Contains(s, "firmware v2"))
}

func TestAddRecordRedirects(t *testing.T) {
	ts, st := newTestServer(t)
	form := url.Values{
		"device_id":      {"dev-1"},
		"update_content": {"firmware v2"},
	}
	resp, err := noFollowClient.PostForm(ts.URL+"/add_record", form)
	assert.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
	assert.Equal(t, 1, countRecords(t, st))

	// following the redirect lands on the index page
	var s string
	err = requests.URL(ts.URL + "/add_record").BodyForm(form).ToString(&s).Fetch(ctx())
	assert.NoError(t, err)
	assert.Contains(t, s, `action="/query"`)
	assert.Equal(t, 2, countRecords(t, st))
}

func TestAddRecordMissingField(t *testing.T) {
	ts, st := newTestServer(t)
	forms := []url.Values{
		{"update_content": {"firmware v2"}},
		{"device_id": {"dev-1"}},
		{},
	}
	for _, form := range forms {
		err := requests.URL(ts.URL + "/add_record").
			Client(noFollowClient).
			BodyForm(form).
			Fetch(ctx())
		assert.True(t, requests.HasStatusErr(err, http.StatusBadRequest), "%v", form)
	}
	assert.Equal(t, 0, countRecords(t, st))

	// fields in the url don't count, only the body
	err := requests.URL(ts.URL+"/add_record").
		Client(noFollowClient).
		Param("device_id", "dev-1").
		Param("update_content", "firmware v2").
		Method(http.MethodPost).
		Fetch(ctx())
	assert.True(t, requests.HasStatusErr(err, http.StatusBadRequest))
	assert.Equal(t, 0, countRecords(t, st))
}

func TestEmptyValuesAreAccepted(t *testing.T) {
	ts, st := newTestServer(t)
	addRecord(t, ts, "dev-1", "")
	assert.Equal(t, 1, countRecords(t, st))
}

func TestUnknownPath(t *testing.T) {
	ts, st := newTestServer(t)
	addRecord(t, ts, "dev-1", "firmware v2")
	for _, uri := range []string{"/nope", "/index.html", "/query/", "/static/nope.css", "/api"} {
		err := requests.URL(ts.URL + uri).Fetch(ctx())
		assert.True(t, requests.HasStatusErr(err, http.StatusNotFound), "%s", uri)
		err = requests.URL(ts.URL + uri).BodyForm(url.Values{"device_id": {"x"}, "update_content": {"y"}}).Fetch(ctx())
		assert.True(t, requests.HasStatusErr(err, http.StatusNotFound), "%s", uri)
	}
	assert.Equal(t, 1, countRecords(t, st))
}

func TestMethodNotAllowed(t *testing.T) {
	ts, st := newTestServer(t)
	err := requests.URL(ts.URL + "/query").Method(http.MethodDelete).Fetch(ctx())
	assert.True(t, requests.HasStatusErr(err, http.StatusMethodNotAllowed))
	err = requests.URL(ts.URL + "/").BodyForm(url.Values{"device_id": {"x"}, "update_content": {"y"}}).Fetch(ctx())
	assert.True(t, requests.HasStatusErr(err, http.StatusMethodNotAllowed))
	assert.Equal(t, 0, countRecords(t, st))

	err = requests.URL(ts.URL + "/").Head().Fetch(ctx())
	assert.NoError(t, err)
}

func TestQueryJSON(t *testing.T) {
	ts, _ := newTestServer(t)

	var s string
	err := requests.URL(ts.URL + "/api/query").ToString(&s).Fetch(ctx())
	assert.NoError(t, err)
	assert.Equal(t, "[]\n", s)

	addRecord(t, ts, "dev-1", "firmware v2")

	var recs []store.Record
	err = requests.URL(ts.URL+"/query").Param("format", "json").ToJSON(&recs).Fetch(ctx())
	assert.NoError(t, err)
	assert.Equal(t, 1, len(recs))

	recs = nil
	var h http.Header = http.Header{}
	err = requests.URL(ts.URL+"/query").
		Accept("application/json").
		CopyHeaders(h).
		ToJSON(&recs).
		Fetch(ctx())
	assert.NoError(t, err)
	assert.Equal(t, 1, len(recs))
	assert.Equal(t, "application/json; charset=utf-8", h.Get("Content-Type"))

	err = requests.URL(ts.URL+"/api/query").Param("pretty", "1").ToString(&s).Fetch(ctx())
	assert.NoError(t, err)
	assert.Contains(t, s, `  "device_id": "dev-1"`)
}

func TestStaticCSS(t *testing.T) {
	ts, _ := newTestServer(t)
	var s string
	var h http.Header = http.Header{}
	err := requests.URL(ts.URL + "/static/app.css").CopyHeaders(h).ToString(&s).Fetch(ctx())
	assert.NoError(t, err)
	assert.Contains(t, s, ".record-card")
	assert.Equal(t, "text/css; charset=utf-8", h.Get("Content-Type"))
}

type failingStore struct{}

func (failingStore) Append(deviceID string, updateContent string) (*store.Record, error) {
	return nil, errors.New("disk full")
}

func (failingStore) ReadAll(filterDeviceID string) ([]*store.Record, error) {
	return nil, errors.New("disk on fire")
}

func TestStoreErrors(t *testing.T) {
	var fs failingStore
	ts := httptest.NewServer(New(fs, query.New(fs, false)))
	defer ts.Close()

	err := requests.URL(ts.URL + "/add_record").
		Client(noFollowClient).
		BodyForm(url.Values{"device_id": {"dev-1"}, "update_content": {"x"}}).
		Fetch(ctx())
	assert.True(t, requests.HasStatusErr(err, http.StatusInternalServerError))

	for _, uri := range []string{"/query", "/api/query"} {
		err = requests.URL(ts.URL + uri).Fetch(ctx())
		assert.True(t, requests.HasStatusErr(err, http.StatusInternalServerError), "%s", uri)
	}

	// pages that don't touch the store still work
	err = requests.URL(ts.URL + "/").Fetch(ctx())
	assert.NoError(t, err)
}

func TestURLS(t *testing.T) {
	var fs failingStore
	srv := New(fs, query.New(fs, false))
	exp := []string{"/", "/add", "/add_record", "/api/query", "/query", "/static/app.css"}
	assert.Equal(t, exp, srv.URLS())
}

func TestAddRecordNotStorable(t *testing.T) {
	st := &store.Store{
		DataDir:  t.TempDir(),
		FileName: "device_records.xlsx",
	}
	assert.NoError(t, store.OpenStore(st))
	ts := httptest.NewServer(New(st, query.New(st, false)))
	defer ts.Close()

	err := requests.URL(ts.URL + "/add_record").
		Client(noFollowClient).
		BodyForm(url.Values{"device_id": {"dev-1"}, "update_content": {"bell\x07"}}).
		Fetch(ctx())
	assert.True(t, requests.HasStatusErr(err, http.StatusBadRequest))
	assert.Equal(t, 0, countRecords(t, st))

	addRecord(t, ts, "dev-1", "firmware v2")
	assert.Equal(t, 1, countRecords(t, st))
}
