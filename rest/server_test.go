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
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	. "github.com/smartystreets/goconvey/convey"
	"golang.org/x/crypto/bcrypt"

	"github.com/arkvisor/arkvisor"
)

type fakeHandle struct {
	pid    int
	exited bool
	sync.Mutex
}

func (h *fakeHandle) Pid() int {
	return h.pid
}

func (h *fakeHandle) Poll() (bool, int) {
	h.Lock()
	defer h.Unlock()
	return h.exited, 0
}

func (h *fakeHandle) Terminate() error {
	h.Lock()
	h.exited = true
	h.Unlock()
	return nil
}

type fakeLauncher struct {
	pid  int
	fail bool
	sync.Mutex
}

func (l *fakeLauncher) Launch(id arkvisor.InstanceID, spec *arkvisor.LaunchSpec) (arkvisor.Handle, error) {
	l.Lock()
	defer l.Unlock()
	if l.fail {
		return nil, errors.New("exec format error")
	}
	l.pid++
	return &fakeHandle{pid: l.pid}, nil
}

var testMaps = []arkvisor.InstanceID{"Aberration", "TheIsland", "ScorchedEarth"}

type testServer struct {
	s       *arkvisor.Supervisor
	l       *fakeLauncher
	log     *arkvisor.Log
	h       *Handler
	srv     *httptest.Server
	metrics *arkvisor.PrometheusMetricsCollector
}

func (ts *testServer) Close() {
	ts.srv.Close()
	ts.s.Shutdown()
}

func newTestServer(t *testing.T) *testServer {
	cs := arkvisor.ClusterSettings{Executable: "ShooterGameServer"}
	for _, id := range testMaps {
		cs.Instances = append(cs.Instances, arkvisor.InstanceSettings{Name: id})
	}
	r, e := arkvisor.NewRegistry(testMaps, cs)
	if e != nil {
		t.Fatalf("registry: %v", e)
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	// Info, so that the access log does not move the log Etag.
	logger.SetLevel(logrus.InfoLevel)
	log := arkvisor.NewLog(100)
	logger.AddHook(log)

	ts := &testServer{l: &fakeLauncher{pid: 100}, log: log}
	ts.metrics = arkvisor.NewPrometheusMetricsCollector("arkvisor")
	ts.s, e = arkvisor.NewSupervisor(r,
		arkvisor.WithName("rest-test"),
		arkvisor.WithLauncher(ts.l),
		arkvisor.WithLogger(logger),
		arkvisor.WithMaxRunning(2),
		arkvisor.WithMonitorInterval(0),
		arkvisor.WithMetricsCollector(ts.metrics))
	if e != nil {
		t.Fatalf("supervisor: %v", e)
	}
	ts.h = NewHandler(ts.s, log)
	ts.h.SetLogger(logger)
	ts.h.SetMetrics(ts.metrics.Handler())
	ts.srv = httptest.NewServer(ts.h)
	return ts
}

func do(method string, url string, hdrs map[string]string) (*http.Response, []byte) {
	req, _ := http.NewRequest(method, url, nil)
	for k, v := range hdrs {
		req.Header.Set(k, v)
	}
	res, e := http.DefaultClient.Do(req)
	So(e, ShouldBeNil)
	defer res.Body.Close()
	body, _ := io.ReadAll(res.Body)
	return res, body
}

func TestServerMaps(t *testing.T) {
	Convey("Given a control server", t, func() {
		ts := newTestServer(t)
		defer ts.Close()
		base := ts.srv.URL

		Convey("All maps are listed in order, stopped", func() {
			res, body := do("GET", base+"/maps", nil)
			So(res.StatusCode, ShouldEqual, http.StatusOK)
			So(res.Header.Get("Content-Type"), ShouldStartWith, "application/json")
			So(res.Header.Get("Etag"), ShouldNotBeEmpty)

			var st StatusInfo
			So(json.Unmarshal(body, &st), ShouldBeNil)
			So(len(st.Maps), ShouldEqual, 3)
			for i, m := range st.Maps {
				So(m.Name, ShouldEqual, string(testMaps[i]))
				So(m.State, ShouldEqual, arkvisor.Stopped)
				So(m.Running, ShouldBeFalse)
			}
			So(string(body), ShouldContainSubstring, `"state":"Stopped"`)
		})

		Convey("The root lists maps too", func() {
			res, _ := do("GET", base+"/", nil)
			So(res.StatusCode, ShouldEqual, http.StatusOK)
		})

		Convey("Starting a map", func() {
			res, body := do("POST", base+"/maps/theisland/start", nil)
			So(res.StatusCode, ShouldEqual, http.StatusOK)
			var ar ActionResult
			So(json.Unmarshal(body, &ar), ShouldBeNil)
			So(ar.Message, ShouldEqual, "OK")
			So(ar.Maps[1].Running, ShouldBeTrue)
			So(ar.Maps[1].Pid, ShouldEqual, 101)

			Convey("Shows it running", func() {
				res, body := do("GET", base+"/maps/TheIsland", nil)
				So(res.StatusCode, ShouldEqual, http.StatusOK)
				var mi MapInfo
				So(json.Unmarshal(body, &mi), ShouldBeNil)
				So(mi.Name, ShouldEqual, "TheIsland")
				So(mi.State, ShouldEqual, arkvisor.Running)
			})

			Convey("A second start conflicts", func() {
				res, body := do("POST", base+"/maps/TheIsland/start", nil)
				So(res.StatusCode, ShouldEqual, http.StatusConflict)
				var e Error
				So(json.Unmarshal(body, &e), ShouldBeNil)
				So(e.Code, ShouldEqual, http.StatusConflict)
				So(e.Message, ShouldEqual, arkvisor.ErrAlreadyRunning.Error())
				So(len(e.Maps), ShouldEqual, 3)
			})

			Convey("Stopping it succeeds", func() {
				res, _ := do("POST", base+"/maps/TheIsland/stop", nil)
				So(res.StatusCode, ShouldEqual, http.StatusOK)
			})
		})

		Convey("The cap is reported as a conflict with the status", func() {
			do("POST", base+"/maps/Aberration/start", nil)
			do("POST", base+"/maps/TheIsland/start", nil)
			res, body := do("POST", base+"/maps/ScorchedEarth/start", nil)
			So(res.StatusCode, ShouldEqual, http.StatusConflict)
			var e Error
			So(json.Unmarshal(body, &e), ShouldBeNil)
			So(e.Message, ShouldEqual, "Too many maps running")
			running := 0
			for _, m := range e.Maps {
				if m.Running {
					running++
				}
			}
			So(running, ShouldEqual, 2)
		})

		Convey("Stopping a stopped map conflicts", func() {
			res, _ := do("POST", base+"/maps/Aberration/stop", nil)
			So(res.StatusCode, ShouldEqual, http.StatusConflict)
		})

		Convey("A launch failure is a server error", func() {
			ts.l.fail = true
			res, body := do("POST", base+"/maps/Aberration/start", nil)
			So(res.StatusCode, ShouldEqual, http.StatusInternalServerError)
			So(string(body), ShouldContainSubstring, "exec format error")
		})

		Convey("Unknown maps are not found", func() {
			res, _ := do("GET", base+"/maps/Fjordur", nil)
			So(res.StatusCode, ShouldEqual, http.StatusNotFound)
			res, _ = do("POST", base+"/maps/Fjordur/start", nil)
			So(res.StatusCode, ShouldEqual, http.StatusNotFound)
		})

		Convey("The short routes work with GET", func() {
			res, _ := do("GET", base+"/start/Aberration", nil)
			So(res.StatusCode, ShouldEqual, http.StatusOK)
			res, _ = do("GET", base+"/stop/Aberration", nil)
			So(res.StatusCode, ShouldEqual, http.StatusOK)
		})

		Convey("Only POST may start on the long route", func() {
			res, _ := do("GET", base+"/maps/Aberration/start", nil)
			So(res.StatusCode, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestServerPolling(t *testing.T) {
	Convey("Given a control server", t, func() {
		ts := newTestServer(t)
		defer ts.Close()
		base := ts.srv.URL

		res, _ := do("GET", base+"/maps", nil)
		etag := res.Header.Get("Etag")

		Convey("An unchanged status is not modified", func() {
			res, body := do("GET", base+"/maps", map[string]string{"If-None-Match": etag})
			So(res.StatusCode, ShouldEqual, http.StatusNotModified)
			So(body, ShouldBeEmpty)
		})

		Convey("A change makes the status modified", func() {
			So(ts.s.Start("Aberration"), ShouldBeNil)
			res, _ := do("GET", base+"/maps", map[string]string{"If-None-Match": etag})
			So(res.StatusCode, ShouldEqual, http.StatusOK)
			So(res.Header.Get("Etag"), ShouldNotEqual, etag)
		})

		Convey("A long poll returns when something changes", func() {
			go func() {
				time.Sleep(20 * time.Millisecond)
				ts.s.Start("TheIsland")
			}()
			start := time.Now()
			res, body := do("GET", base+"/maps", map[string]string{
				"If-None-Match": etag,
				PollTimeHeader:  "30",
			})
			So(res.StatusCode, ShouldEqual, http.StatusOK)
			So(time.Since(start), ShouldBeLessThan, 10*time.Second)
			var st StatusInfo
			So(json.Unmarshal(body, &st), ShouldBeNil)
			So(st.Find("theisland").Running, ShouldBeTrue)
		})

		Convey("A long poll times out as not modified", func() {
			res, _ := do("GET", base+"/maps", map[string]string{
				"If-None-Match": etag,
				PollTimeHeader:  "1",
			})
			So(res.StatusCode, ShouldEqual, http.StatusNotModified)
		})
	})
}

// startingCollector starts a map the first time a status command
// completes, after the supervisor has released its command lock.
type startingCollector struct {
	arkvisor.MetricsCollector
	s    *arkvisor.Supervisor
	id   arkvisor.InstanceID
	once sync.Once
}

func (c *startingCollector) CommandCompleted(command string, result string, d time.Duration) {
	if command == "status" && c.s != nil {
		c.once.Do(func() { c.s.Start(c.id) })
	}
}

func TestServerSnapshotEtag(t *testing.T) {
	Convey("Given a start that lands right after a status snapshot", t, func() {
		cs := arkvisor.ClusterSettings{Executable: "ShooterGameServer"}
		for _, id := range testMaps {
			cs.Instances = append(cs.Instances, arkvisor.InstanceSettings{Name: id})
		}
		r, e := arkvisor.NewRegistry(testMaps, cs)
		So(e, ShouldBeNil)

		logger := logrus.New()
		logger.SetOutput(io.Discard)
		mc := &startingCollector{
			MetricsCollector: arkvisor.NewNoopMetricsCollector(),
			id:               "Aberration",
		}
		s, e := arkvisor.NewSupervisor(r,
			arkvisor.WithLauncher(&fakeLauncher{pid: 100}),
			arkvisor.WithLogger(logger),
			arkvisor.WithMonitorInterval(0),
			arkvisor.WithMetricsCollector(mc))
		So(e, ShouldBeNil)
		defer s.Shutdown()
		mc.s = s

		srv := httptest.NewServer(NewHandler(s, arkvisor.NewLog(10)))
		defer srv.Close()

		res, body := do("GET", srv.URL+"/maps", nil)
		So(res.StatusCode, ShouldEqual, http.StatusOK)
		var st StatusInfo
		So(json.Unmarshal(body, &st), ShouldBeNil)
		So(st.Maps[0].Running, ShouldBeFalse)
		etag := res.Header.Get("Etag")
		So(etag, ShouldEqual, formatEtag(st.Serial))

		Convey("The Etag describes the snapshot, not the later start", func() {
			So(s.Serial(), ShouldNotEqual, st.Serial)

			res, body := do("GET", srv.URL+"/maps", map[string]string{"If-None-Match": etag})
			So(res.StatusCode, ShouldEqual, http.StatusOK)
			var st2 StatusInfo
			So(json.Unmarshal(body, &st2), ShouldBeNil)
			So(st2.Maps[0].Name, ShouldEqual, "Aberration")
			So(st2.Maps[0].Running, ShouldBeTrue)
		})
	})
}

func TestServerInfoLogMetrics(t *testing.T) {
	Convey("Given a control server", t, func() {
		ts := newTestServer(t)
		defer ts.Close()
		base := ts.srv.URL

		Convey("Info describes the supervisor", func() {
			res, body := do("GET", base+"/info", nil)
			So(res.StatusCode, ShouldEqual, http.StatusOK)
			var si SupervisorInfo
			So(json.Unmarshal(body, &si), ShouldBeNil)
			So(si.Name, ShouldEqual, "rest-test")
			So(si.MaxRunning, ShouldEqual, 2)
			So(si.Maps, ShouldEqual, 3)
		})

		Convey("The log records commands", func() {
			do("POST", base+"/maps/TheIsland/start", nil)
			do("POST", base+"/maps/Aberration/start", nil)

			res, body := do("GET", base+"/log", nil)
			So(res.StatusCode, ShouldEqual, http.StatusOK)
			var recs []LogRecord
			So(json.Unmarshal(body, &recs), ShouldBeNil)
			So(len(recs), ShouldBeGreaterThan, 0)

			res, body = do("GET", base+"/maps/TheIsland/log", nil)
			So(res.StatusCode, ShouldEqual, http.StatusOK)
			recs = nil
			So(json.Unmarshal(body, &recs), ShouldBeNil)
			So(len(recs), ShouldBeGreaterThan, 0)
			for _, r := range recs {
				So(r.Instance, ShouldEqual, arkvisor.InstanceID("TheIsland"))
			}

			Convey("And honors the Etag", func() {
				etag := res.Header.Get("Etag")
				res, _ := do("GET", base+"/log", map[string]string{"If-None-Match": etag})
				So(res.StatusCode, ShouldEqual, http.StatusNotModified)
			})
		})

		Convey("Metrics are exposed", func() {
			do("POST", base+"/maps/TheIsland/start", nil)
			res, body := do("GET", base+"/metrics", nil)
			So(res.StatusCode, ShouldEqual, http.StatusOK)
			So(string(body), ShouldContainSubstring, `arkvisor_commands_total{command="start",result="ok"} 1`)
			So(string(body), ShouldContainSubstring, "arkvisor_running_instances 1")
		})
	})
}

func TestServerAuth(t *testing.T) {
	Convey("Given a server requiring authentication", t, func() {
		ts := newTestServer(t)
		defer ts.Close()
		hash, e := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
		So(e, ShouldBeNil)
		ts.h.SetAuth("admin", string(hash))

		Convey("Anonymous requests are refused", func() {
			res, _ := do("GET", ts.srv.URL+"/maps", nil)
			So(res.StatusCode, ShouldEqual, http.StatusUnauthorized)
			So(res.Header.Get("WWW-Authenticate"), ShouldStartWith, "Basic")
		})

		Convey("The wrong password is refused", func() {
			req, _ := http.NewRequest("GET", ts.srv.URL+"/maps", nil)
			req.SetBasicAuth("admin", "hunter3")
			res, e := http.DefaultClient.Do(req)
			So(e, ShouldBeNil)
			res.Body.Close()
			So(res.StatusCode, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("The client can authenticate", func() {
			c := NewClient(nil, ts.srv.URL)
			_, e := c.Status()
			So(e, ShouldNotBeNil)
			var re *Error
			So(errors.As(e, &re), ShouldBeTrue)
			So(re.Code, ShouldEqual, http.StatusUnauthorized)

			c.SetAuth("admin", "hunter2")
			st, e := c.Status()
			So(e, ShouldBeNil)
			So(len(st.Maps), ShouldEqual, 3)
		})
	})
}

func TestServerRateLimit(t *testing.T) {
	Convey("Requests beyond the rate limit are refused", t, func() {
		ts := newTestServer(t)
		defer ts.Close()
		ts.h.SetRateLimit(0.001, 2)

		codes := []int{}
		for i := 0; i < 3; i++ {
			res, _ := do("GET", ts.srv.URL+"/maps", nil)
			codes = append(codes, res.StatusCode)
		}
		So(codes, ShouldResemble, []int{200, 200, http.StatusTooManyRequests})

		Convey("Removing the limit lets them through", func() {
			ts.h.SetRateLimit(0, 0)
			res, _ := do("GET", ts.srv.URL+"/maps", nil)
			So(res.StatusCode, ShouldEqual, http.StatusOK)
		})
	})
}

func TestEtags(t *testing.T) {
	Convey("Etags round trip", t, func() {
		v, ok := parseEtag(formatEtag(1234))
		So(ok, ShouldBeTrue)
		So(v, ShouldEqual, 1234)

		v, ok = parseEtag(`W/"99"`)
		So(ok, ShouldBeTrue)
		So(v, ShouldEqual, 99)

		_, ok = parseEtag("")
		So(ok, ShouldBeFalse)
		_, ok = parseEtag(`"abc"`)
		So(ok, ShouldBeFalse)
		So(strings.HasPrefix(formatEtag(1), `"`), ShouldBeTrue)
	})
}
