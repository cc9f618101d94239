package httputil

import (
	"context"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"
)

// NewTimeoutClient returns a client with connect and read/write timeouts.
// A deadline is set once per connection so create a new client for
// each batch of requests.
func NewTimeoutClient(connectTimeout time.Duration, readWriteTimeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout: connectTimeout,
	}
	dial := func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := dialer.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		conn.SetDeadline(time.Now().Add(readWriteTimeout))
		return conn, nil
	}
	return &http.Client{
		Transport: &http.Transport{
			DialContext: dial,
			Proxy:       http.ProxyFromEnvironment,
		},
	}
}

func NewDefaultTimeoutClient() *http.Client {
	return NewTimeoutClient(time.Second*30, time.Second*60)
}

// RedirectSeeOther redirects after a POST so that reloading the
// target page doesn't re-submit the form
func RedirectSeeOther(w http.ResponseWriter, r *http.Request, uri string) {
	http.Redirect(w, r, uri, http.StatusSeeOther) // 303
}

// WantsJSON returns true if client asked for JSON either with
// ?format=json or with Accept: application/json
func WantsJSON(r *http.Request) bool {
	if strings.EqualFold(r.URL.Query().Get("format"), "json") {
		return true
	}
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mt, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err == nil && mt == "application/json" {
			return true
		}
	}
	return false
}

// IsTruthy returns true for query values like "1", "true", "yes"
func IsTruthy(s string) bool {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
