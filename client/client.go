// Package client talks to a running devrecords server
package client

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/carlmjohnson/requests"

	"github.com/kjk/devrecords/httputil"
	"github.com/kjk/devrecords/store"
)

type Client struct {
	BaseURL string
	// used for all requests, never follows redirects
	HTTPClient *http.Client
}

func New(baseURL string) *Client {
	hc := httputil.NewDefaultTimeoutClient()
	hc.CheckRedirect = requests.NoFollow
	return &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HTTPClient: hc,
	}
}

// Add records an update for deviceID, the same way the add form does
func (c *Client) Add(ctx context.Context, deviceID string, updateContent string) error {
	form := url.Values{}
	form.Set(store.ColDeviceID, deviceID)
	form.Set(store.ColUpdateContent, updateContent)
	return requests.
		URL(c.BaseURL + "/add_record").
		Client(c.HTTPClient).
		BodyForm(form).
		CheckStatus(http.StatusSeeOther).
		Fetch(ctx)
}

// Query returns records for deviceID, all records if deviceID is empty
func (c *Client) Query(ctx context.Context, deviceID string) ([]store.Record, error) {
	var res []store.Record
	rb := requests.
		URL(c.BaseURL + "/api/query").
		Client(c.HTTPClient)
	if deviceID != "" {
		rb = rb.Param(store.ColDeviceID, deviceID)
	}
	err := rb.ToJSON(&res).Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return res, nil
}
