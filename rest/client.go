// Copyright 2026 The Arkvisor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use file except in compliance with the License.
// You may obtain a copy of the license at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package rest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/context"
)

// Client talks to an arkvisord control interface.  It caches the last
// status snapshot and logs it fetched, so that Watch calls can use
// conditional requests.
type Client struct {
	user      string // HTTP Basic-Auth
	pass      string
	base      string // URI to root of tree on server
	auth      bool
	client    *http.Client
	transport *http.Transport

	// Cached data
	status *StatusInfo
	logs   map[string]*LogInfo
	lock   sync.Mutex
}

func (c *Client) SetAuth(user string, pass string) {
	c.user = user
	c.pass = pass
	c.auth = true
}

func (c *Client) url(name string) string {
	if name == "" {
		return c.base + "/maps"
	}
	return c.base + "/maps/" + url.PathEscape(name)
}

func (c *Client) newRequest(ctx context.Context, method string, url string) (*http.Request, error) {
	req, e := http.NewRequestWithContext(ctx, method, url, nil)
	if e != nil {
		return nil, e
	}
	if c.auth {
		req.SetBasicAuth(c.user, c.pass)
	}
	return req, nil
}

// decodeError turns a failed response into an *Error, using the body if
// the server sent one.
func decodeError(res *http.Response) error {
	e := &Error{}
	body, _ := io.ReadAll(res.Body)
	if json.Unmarshal(body, e) != nil || e.Message == "" {
		e.Message = res.Status
	}
	e.Code = res.StatusCode
	return e
}

// poll issues a GET against the URL.  If etag is not empty the request is
// conditional, and if wait is also positive the server is asked to hold
// the request until the value changes.  The return values are the new
// Etag and any error.  If the value did not change, then the returned
// etag will be "", but the error will be nil.
func (c *Client) poll(ctx context.Context, url string, etag string, wait int, v interface{}) (string, error) {

	req, e := c.newRequest(ctx, "GET", url)
	if e != nil {
		return "", e
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
		if wait > 0 {
			req.Header.Set(PollTimeHeader, strconv.Itoa(wait))
		}
	}

	res, e := c.client.Do(req)
	if e != nil {
		return "", e
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotModified {
		return "", nil
	}
	if res.StatusCode != http.StatusOK {
		return "", decodeError(res)
	}
	if e := json.NewDecoder(res.Body).Decode(v); e != nil {
		return "", e
	}
	return res.Header.Get("Etag"), nil
}

func (c *Client) post(ctx context.Context, url string, v interface{}) error {
	req, e := c.newRequest(ctx, "POST", url)
	if e != nil {
		return e
	}
	req.Header.Set("Content-Type", "text/plain") // we don't really care
	res, e := c.client.Do(req)
	if e != nil {
		return e
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return decodeError(res)
	}
	return json.NewDecoder(res.Body).Decode(v)
}

func (c *Client) pollStatus(ctx context.Context, secs int) (*StatusInfo, error) {
	c.lock.Lock()
	old := c.status
	c.lock.Unlock()

	otag := ""
	if old != nil && secs > 0 {
		otag = old.etag
	}

	v := &StatusInfo{}
	etag, e := c.poll(ctx, c.url(""), otag, secs, v)
	if e != nil {
		return nil, e
	}
	if etag == "" && otag != "" {
		return old, nil
	}
	v.etag = etag
	c.lock.Lock()
	c.status = v
	c.lock.Unlock()
	return v, nil
}

// Status returns the current state of every map.
func (c *Client) Status() (*StatusInfo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.pollStatus(ctx, 0)
}

// Watch waits for the status to differ from the last snapshot this
// client fetched, for up to five minutes, and returns the new snapshot.
// If nothing has been fetched yet it returns immediately.
func (c *Client) Watch(ctx context.Context) (*StatusInfo, error) {
	return c.pollStatus(ctx, maxPollTime)
}

// GetMap returns the state of one map.
func (c *Client) GetMap(name string) (*MapInfo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	v := &MapInfo{}
	if _, e := c.poll(ctx, c.url(name), "", 0, v); e != nil {
		return nil, e
	}
	return v, nil
}

// GetInfo returns information about the supervisor itself.
func (c *Client) GetInfo() (*SupervisorInfo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	v := &SupervisorInfo{}
	if _, e := c.poll(ctx, c.base+"/info", "", 0, v); e != nil {
		return nil, e
	}
	return v, nil
}

func (c *Client) postMap(name string, action string) (*ActionResult, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	v := &ActionResult{}
	if e := c.post(ctx, c.url(name)+"/"+action, v); e != nil {
		return nil, e
	}
	return v, nil
}

// StartMap asks the supervisor to start the named map.  A refusal is
// returned as an *Error whose Maps field holds the status at the time.
func (c *Client) StartMap(name string) (*ActionResult, error) {
	return c.postMap(name, "start")
}

// StopMap asks the supervisor to stop the named map.  The map may still
// be reported as running for a short while afterwards.
func (c *Client) StopMap(name string) (*ActionResult, error) {
	return c.postMap(name, "stop")
}

func (c *Client) pollLog(ctx context.Context, name string, secs int, last *LogInfo) (*LogInfo, error) {

	v := &LogInfo{name: name}

	c.lock.Lock()
	cached, ok := c.logs[name]
	c.lock.Unlock()

	otag := ""
	if last == nil {
		secs = 0
	} else if ok && last.etag != cached.etag {
		// The cache is newer than what the caller has seen.
		return cached, nil
	} else {
		otag = last.etag
	}

	url := c.url(name) + "/log"
	if name == "" {
		url = c.base + "/log"
	}

	etag, e := c.poll(ctx, url, otag, secs, &v.Records)
	if e != nil {
		c.lock.Lock()
		delete(c.logs, name)
		c.lock.Unlock()
		return nil, e
	}
	if etag == "" {
		return last, nil
	}
	v.etag = etag
	c.lock.Lock()
	c.logs[name] = v
	c.lock.Unlock()

	return v, nil
}

// WatchLog waits for the log to move past last, for up to five minutes.
// An empty name selects the consolidated log.
func (c *Client) WatchLog(ctx context.Context, name string, last *LogInfo) (*LogInfo, error) {
	return c.pollLog(ctx, name, maxPollTime, last)
}

// GetLog returns the log for the named map, or the consolidated log if
// name is empty.
func (c *Client) GetLog(name string) (*LogInfo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.pollLog(ctx, name, 0, nil)
}

// NewClient returns a Client handle.  The transport may be nil to use a
// default transport, but it may also be adjusted to support additional
// options such as TLS.  baseURI is the base URL to use.
func NewClient(t *http.Transport, baseURI string) *Client {
	if t == nil {
		t = &http.Transport{}
	}
	c := &Client{
		transport: t,
		base:      strings.TrimRight(baseURI, "/"),
		client:    &http.Client{Transport: t},
		logs:      make(map[string]*LogInfo),
	}
	return c
}
