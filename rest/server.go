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
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"github.com/arkvisor/arkvisor"
)

// Handler wraps a Supervisor, adding http.Handler functionality.  Many
// requests may be served at once; the Supervisor serializes the commands
// they turn into.
type Handler struct {
	s       *arkvisor.Supervisor
	log     *arkvisor.Log
	r       *mux.Router
	logger  logrus.FieldLogger
	metrics http.Handler
	user    string
	hash    []byte
	limiter *rate.Limiter
}

// statusWriter remembers the status code, for the access log.
type statusWriter struct {
	code int
	http.ResponseWriter
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.code = code
	sw.ResponseWriter.WriteHeader(code)
}

func (h *Handler) internalError(w http.ResponseWriter, e error) {
	http.Error(w, e.Error(), http.StatusInternalServerError)
}

func (h *Handler) writeJson(w http.ResponseWriter, v interface{}) {
	h.writeJsonCode(w, http.StatusOK, v)
}

func (h *Handler) writeJsonCode(w http.ResponseWriter, code int, v interface{}) {
	if b, e := json.Marshal(v); e != nil {
		h.internalError(w, e)
	} else {
		w.Header().Set("Content-Type", mimeJson)
		w.WriteHeader(code)
		w.Write(b)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, e *Error) {
	h.writeJsonCode(w, e.Code, e)
}

// statusCode maps a supervisor error onto the HTTP status reported to
// the caller.
func statusCode(e error) int {
	switch arkvisor.Kind(e) {
	case nil:
		return http.StatusOK
	case arkvisor.ErrCapacityExceeded,
		arkvisor.ErrAlreadyRunning,
		arkvisor.ErrAlreadyStopped:
		return http.StatusConflict
	case arkvisor.ErrUnknownInstance:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (h *Handler) findMap(r *http.Request) (arkvisor.InstanceID, *Error) {
	name := mux.Vars(r)["map"]
	id, e := h.s.Lookup(name)
	if e != nil {
		return "", &Error{Code: http.StatusNotFound, Message: e.Error()}
	}
	return id, nil
}

// pollTime returns how long the caller is willing to wait for a change.
func pollTime(r *http.Request) time.Duration {
	secs, e := strconv.Atoi(r.Header.Get(PollTimeHeader))
	if e != nil || secs <= 0 {
		return 0
	}
	if secs > maxPollTime {
		secs = maxPollTime
	}
	return time.Duration(secs) * time.Second
}

func (h *Handler) listMaps(w http.ResponseWriter, r *http.Request) {
	maps, serial := h.s.StatusSerial()

	if old, ok := parseEtag(r.Header.Get("If-None-Match")); ok && old == serial {
		if d := pollTime(r); d > 0 {
			if serial = h.s.WatchSerial(old, d); serial != old {
				maps, serial = h.s.StatusSerial()
			}
		}
		if serial == old {
			w.Header().Set("Etag", formatEtag(serial))
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}

	w.Header().Set("Etag", formatEtag(serial))
	h.writeJson(w, &StatusInfo{Serial: serial, Maps: mapInfos(maps)})
}

func (h *Handler) getMap(w http.ResponseWriter, r *http.Request) {
	id, e := h.findMap(r)
	if e != nil {
		h.writeError(w, e)
		return
	}
	st, err := h.s.InstanceStatus(id)
	if err != nil {
		h.writeError(w, &Error{Code: statusCode(err), Message: err.Error()})
		return
	}
	h.writeJson(w, mapInfo(st))
}

func (h *Handler) doAction(w http.ResponseWriter, r *http.Request, action string, fn func(arkvisor.InstanceID) error) {
	id, e := h.findMap(r)
	if e != nil {
		h.writeError(w, e)
		return
	}
	err := fn(id)
	maps := mapInfos(h.s.Status())
	if err != nil {
		code := statusCode(err)
		fields := logrus.Fields{"instance": id, "action": action, "code": code}
		if code >= http.StatusInternalServerError {
			h.logger.WithFields(fields).WithError(err).Error("Control request failed")
		} else {
			h.logger.WithFields(fields).WithError(err).Info("Control request refused")
		}
		h.writeError(w, &Error{Code: code, Message: err.Error(), Maps: maps})
		return
	}
	h.writeJson(w, &ActionResult{Message: "OK", Maps: maps})
}

func (h *Handler) startMap(w http.ResponseWriter, r *http.Request) {
	h.doAction(w, r, "start", h.s.Start)
}

func (h *Handler) stopMap(w http.ResponseWriter, r *http.Request) {
	h.doAction(w, r, "stop", h.s.Stop)
}

func (h *Handler) getInfo(w http.ResponseWriter, r *http.Request) {
	i := h.s.GetInfo()
	h.writeJson(w, &SupervisorInfo{
		Name:       i.Name,
		Serial:     i.Serial,
		MaxRunning: i.MaxRunning,
		Maps:       i.Instances,
		CreateTime: i.CreateTime,
		UpdateTime: i.UpdateTime,
	})
}

func (h *Handler) serveLog(w http.ResponseWriter, r *http.Request, inst arkvisor.InstanceID) {
	if h.log == nil {
		h.writeError(w, &Error{Code: http.StatusNotFound, Message: "No log available"})
		return
	}
	last := int64(0)
	if old, ok := parseEtag(r.Header.Get("If-None-Match")); ok {
		last = old
		if d := pollTime(r); d > 0 {
			h.log.Watch(old, d)
		}
	}
	recs, id := h.log.GetRecords(last, inst)
	w.Header().Set("Etag", formatEtag(id))
	if id == last {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	if recs == nil {
		recs = []arkvisor.LogRecord{}
	}
	h.writeJson(w, recs)
}

func (h *Handler) getLog(w http.ResponseWriter, r *http.Request) {
	h.serveLog(w, r, "")
}

func (h *Handler) getMapLog(w http.ResponseWriter, r *http.Request) {
	id, e := h.findMap(r)
	if e != nil {
		h.writeError(w, e)
		return
	}
	h.serveLog(w, r, id)
}

func (h *Handler) getMetrics(w http.ResponseWriter, r *http.Request) {
	if h.metrics == nil {
		h.writeError(w, &Error{Code: http.StatusNotFound, Message: "Metrics not enabled"})
		return
	}
	h.metrics.ServeHTTP(w, r)
}

func (h *Handler) authorized(r *http.Request) bool {
	if h.user == "" {
		return true
	}
	user, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}
	userOk := subtle.ConstantTimeCompare([]byte(user), []byte(h.user)) == 1
	passOk := bcrypt.CompareHashAndPassword(h.hash, []byte(pass)) == nil
	return userOk && passOk
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	sw := &statusWriter{code: http.StatusOK, ResponseWriter: w}
	start := time.Now()

	switch {
	case h.limiter != nil && !h.limiter.Allow():
		h.writeError(sw, &Error{Code: http.StatusTooManyRequests, Message: "Too many requests"})
	case !h.authorized(req):
		sw.Header().Set("WWW-Authenticate", `Basic realm="arkvisor"`)
		h.writeError(sw, &Error{Code: http.StatusUnauthorized, Message: "Unauthorized"})
	default:
		h.r.ServeHTTP(sw, req)
	}

	h.logger.WithFields(logrus.Fields{
		"method":   req.Method,
		"path":     req.URL.Path,
		"code":     sw.code,
		"duration": time.Since(start),
	}).Debug("Served request")
}

// SetLogger sets the logger used for the access log and for failed
// control requests.
func (h *Handler) SetLogger(l logrus.FieldLogger) {
	h.logger = l
}

// SetAuth requires HTTP basic authentication.  The password is checked
// against passwordHash, which must be a bcrypt hash.  An empty user turns
// authentication off.
func (h *Handler) SetAuth(user string, passwordHash string) {
	h.user = user
	h.hash = []byte(passwordHash)
}

// SetRateLimit limits the rate of requests served, across all callers.
// A rate of zero removes the limit.
func (h *Handler) SetRateLimit(rps float64, burst int) {
	if rps <= 0 {
		h.limiter = nil
		return
	}
	if burst < 1 {
		burst = 1
	}
	h.limiter = rate.NewLimiter(rate.Limit(rps), burst)
}

// SetMetrics installs the handler served on /metrics.
func (h *Handler) SetMetrics(m http.Handler) {
	h.metrics = m
}

// NewHandler returns a Handler for s.  The log may be nil, in which case
// the log endpoints report 404.
func NewHandler(s *arkvisor.Supervisor, log *arkvisor.Log) *Handler {
	r := mux.NewRouter()
	h := &Handler{s: s, log: log, r: r, logger: logrus.StandardLogger()}
	r.HandleFunc("/", h.listMaps).Methods("GET")
	r.HandleFunc("/maps", h.listMaps).Methods("GET")
	r.HandleFunc("/maps/{map}", h.getMap).Methods("GET")
	r.HandleFunc("/maps/{map}/start", h.startMap).Methods("POST")
	r.HandleFunc("/maps/{map}/stop", h.stopMap).Methods("POST")
	r.HandleFunc("/maps/{map}/log", h.getMapLog).Methods("GET")
	r.HandleFunc("/start/{map}", h.startMap).Methods("GET", "POST")
	r.HandleFunc("/stop/{map}", h.stopMap).Methods("GET", "POST")
	r.HandleFunc("/info", h.getInfo).Methods("GET")
	r.HandleFunc("/log", h.getLog).Methods("GET")
	r.HandleFunc("/metrics", h.getMetrics).Methods("GET")
	return h
}
