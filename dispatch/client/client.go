// Package client talks to a running host selection service over its admin
// HTTP endpoints.
package client

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"github.com/sethgrid/pester"
	log "github.com/sirupsen/logrus"

	"github.com/twitter/dispatch/dispatch/host"
	"github.com/twitter/dispatch/dispatch/service"
)

const DefaultHttpTries = 5

func MakePesterClient() *pester.Client {
	client := pester.New()
	client.Backoff = pester.ExponentialBackoff
	client.MaxRetries = DefaultHttpTries
	client.LogHook = func(e pester.ErrEntry) {
		log.Errorf("Retrying after failed attempt: %+v", e)
	}
	return client
}

type Doer interface {
	Do(req *http.Request) (resp *http.Response, err error)
}

type Client struct {
	rootURI string
	client  Doer
}

// NewClient talks to the service at addr, a host:port or a URL.
func NewClient(addr string, client Doer) *Client {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	if client == nil {
		client = MakePesterClient()
	}
	return &Client{rootURI: strings.TrimSuffix(addr, "/"), client: client}
}

// Select asks the service for a host of workerGroup. The bool is false when
// the group has no eligible host.
func (c *Client) Select(workerGroup string) (host.Host, bool, error) {
	var h service.HostJSON
	found, err := c.get("/select?group="+url.QueryEscape(workerGroup), &h)
	if err != nil || !found {
		return host.Host{}, false, err
	}
	return host.Host{Address: h.Address, WorkerGroup: h.WorkerGroup}, true, nil
}

// Hosts returns the service's live weight table.
func (c *Client) Hosts() (service.HostsJSON, error) {
	var hosts service.HostsJSON
	found, err := c.get("/hosts", &hosts)
	if err == nil && !found {
		err = fmt.Errorf("%s/hosts not found", c.rootURI)
	}
	return hosts, err
}

func (c *Client) get(path string, v interface{}) (bool, error) {
	uri := c.rootURI + path
	req, err := http.NewRequest("GET", uri, nil)
	if err != nil {
		return false, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false, errors.Wrapf(err, "GET %s", uri)
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			return false, errors.Wrapf(err, "decoding %s", uri)
		}
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		data, _ := ioutil.ReadAll(resp.Body)
		return false, fmt.Errorf("GET %s: %s: %s", uri, resp.Status, strings.TrimSpace(string(data)))
	}
}
