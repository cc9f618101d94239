package httputil

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alecthomas/assert"
)

func TestWantsJSON(t *testing.T) {
	tests := []struct {
		uri    string
		accept string
		exp    bool
	}{
		{"/query", "", false},
		{"/query", "text/html,application/xhtml+xml,*/*;q=0.8", false},
		{"/query", "application/json", true},
		{"/query", "text/html, application/json;q=0.9", true},
		{"/query?format=json", "", true},
		{"/query?format=JSON", "text/html", true},
		{"/query?format=html", "", false},
	}
	for _, test := range tests {
		r := httptest.NewRequest("GET", test.uri, nil)
		if test.accept != "" {
			r.Header.Set("Accept", test.accept)
		}
		assert.Equal(t, test.exp, WantsJSON(r), "%s %s", test.uri, test.accept)
	}
}

func TestIsTruthy(t *testing.T) {
	for _, s := range []string{"1", "true", "TRUE", "yes", "on"} {
		assert.True(t, IsTruthy(s), "%s", s)
	}
	for _, s := range []string{"", "0", "false", "no", "nope"} {
		assert.False(t, IsTruthy(s), "%s", s)
	}
}

func TestRedirectSeeOther(t *testing.T) {
	r := httptest.NewRequest("POST", "/add_record", nil)
	w := httptest.NewRecorder()
	RedirectSeeOther(w, r, "/")
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
}

func TestLogRequests(t *testing.T) {
	var gotCode int
	var gotSize int64
	var gotPath string
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("hello"))
	})
	logged := LogRequests(h, func(r *http.Request, code int, size int64, dur time.Duration) {
		gotPath = r.URL.Path
		gotCode = code
		gotSize = size
	})

	w := httptest.NewRecorder()
	logged.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, "/", gotPath)
	assert.Equal(t, 200, gotCode)
	assert.Equal(t, int64(5), gotSize)

	w = httptest.NewRecorder()
	logged.ServeHTTP(w, httptest.NewRequest("GET", "/missing", nil))
	assert.Equal(t, 404, gotCode)
	assert.Equal(t, 404, w.Code)
}

func TestRunServer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	chAddr := make(chan string, 1)
	chDone := make(chan error, 1)
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	go func() {
		chDone <- RunServer(ctx, ServerOptions{
			Addr:        "127.0.0.1:0",
			Handler:     h,
			OnListening: func(addr string) { chAddr <- addr },
		})
	}()
	addr := <-chAddr

	resp, err := NewDefaultTimeoutClient().Get("http://" + addr + "/")
	assert.NoError(t, err)
	d, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.NoError(t, err)
	assert.Equal(t, "ok", string(d))

	cancel()
	select {
	case err = <-chDone:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server didn't shut down")
	}
}

func TestRunServerBadOptions(t *testing.T) {
	err := RunServer(context.Background(), ServerOptions{})
	assert.Error(t, err)
}
