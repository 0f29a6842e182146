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

package arkvisor

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	MaxLogRecords = 1000
)

// LogRecord is one retained log message.
type LogRecord struct {
	Id       int64      `json:"id,string"`
	Time     time.Time  `json:"time"`
	Level    string     `json:"level"`
	Instance InstanceID `json:"instance,omitempty"`
	Text     string     `json:"text"`
}

// Log keeps the most recent log messages in memory, so that they can be
// served to remote clients.  It is installed as a logrus hook.  Record ids
// increase monotonically, and the last id doubles as an Etag.
type Log struct {
	records    []LogRecord
	numRecords int
	maxRecords int
	id         int64
	cvs        map[*sync.Cond]bool
	mx         sync.Mutex
}

func (log *Log) lock() {
	log.mx.Lock()
}

func (log *Log) unlock() {
	log.mx.Unlock()
}

// Levels implements logrus.Hook.
func (log *Log) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire implements logrus.Hook.  Fields other than instance are folded
// into the text, sorted by key.
func (log *Log) Fire(e *logrus.Entry) error {
	var inst InstanceID
	keys := make([]string, 0, len(e.Data))
	for k, v := range e.Data {
		if k == "instance" {
			inst = InstanceID(fmt.Sprint(v))
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	text := e.Message
	for _, k := range keys {
		text += fmt.Sprintf(" %s=%v", k, e.Data[k])
	}
	log.add(e.Time, e.Level.String(), inst, text)
	return nil
}

func (log *Log) add(t time.Time, level string, inst InstanceID, text string) {
	if t.IsZero() {
		t = time.Now()
	}
	log.lock()
	for _, line := range strings.Split(strings.Trim(text, "\n"), "\n") {
		idx := log.numRecords % log.maxRecords
		log.id++
		log.records[idx] = LogRecord{
			Id:       log.id,
			Time:     t,
			Level:    level,
			Instance: inst,
			Text:     line,
		}
		// NB: numRecords may exceed maxRecords once we have wrapped;
		// it is really the index of the next slot.
		log.numRecords++
	}
	for cv := range log.cvs {
		cv.Broadcast()
	}
	log.unlock()
}

// Clear discards all records.
func (log *Log) Clear() {
	log.lock()
	log.numRecords = 0
	// We presume records are not added faster than one per nanosecond.
	log.id = time.Now().UnixNano()
	for cv := range log.cvs {
		cv.Broadcast()
	}
	log.unlock()
}

// GetRecords returns the retained records, oldest first, and the id of
// the most recent one.  If last matches that id, nothing has changed and
// nil is returned.  A non-empty inst restricts the result to records for
// that instance.
func (log *Log) GetRecords(last int64, inst InstanceID) ([]LogRecord, int64) {
	log.lock()
	defer log.unlock()
	if log.id == last {
		return nil, last
	}
	cnt := log.numRecords
	if cnt > log.maxRecords {
		cnt = log.maxRecords
	}
	recs := make([]LogRecord, 0, cnt)
	index := log.numRecords - cnt
	for j := 0; j < cnt; j++ {
		r := log.records[index%log.maxRecords]
		index++
		if inst != "" && r.Instance != inst {
			continue
		}
		recs = append(recs, r)
	}
	return recs, log.id
}

// Watch waits up to expire for the log to move past last, and returns
// the current id.
func (log *Log) Watch(last int64, expire time.Duration) int64 {
	expired := false
	var timer *time.Timer
	cv := sync.NewCond(&log.mx)
	if expire > 0 {
		timer = time.AfterFunc(expire, func() {
			log.lock()
			expired = true
			cv.Broadcast()
			log.unlock()
		})
	} else {
		expired = true
	}

	log.lock()
	log.cvs[cv] = true
	for log.id == last && !expired {
		cv.Wait()
	}
	delete(log.cvs, cv)
	last = log.id
	log.unlock()
	if timer != nil {
		timer.Stop()
	}
	return last
}

// NewLog returns a Log retaining up to max records.  If max is not
// positive, MaxLogRecords is used.
func NewLog(max int) *Log {
	if max <= 0 {
		max = MaxLogRecords
	}
	return &Log{
		records:    make([]LogRecord, max),
		maxRecords: max,
		id:         time.Now().UnixNano(),
		cvs:        make(map[*sync.Cond]bool),
	}
}
