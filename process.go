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
	"bytes"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Handle is a reference to a spawned process.  Poll must not block, and
// must keep reporting exit once it has reported it.  Terminate only asks
// the process to go away; it does not wait for it.
type Handle interface {
	Pid() int
	Poll() (exited bool, code int)
	Terminate() error
}

// Launcher spawns the process for an instance.
type Launcher interface {
	Launch(id InstanceID, spec *LaunchSpec) (Handle, error)
}

// maximum buffered partial line before we give up waiting for a newline
const maxLineLen = 4096

// lineWriter breaks process output into lines and logs each one.
type lineWriter struct {
	log logrus.FieldLogger
	buf []byte
	mx  sync.Mutex
}

func (w *lineWriter) Write(b []byte) (int, error) {
	w.mx.Lock()
	defer w.mx.Unlock()
	w.buf = append(w.buf, b...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.emit(w.buf[:i])
		w.buf = w.buf[i+1:]
	}
	if len(w.buf) > maxLineLen {
		w.emit(w.buf)
		w.buf = nil
	}
	return len(b), nil
}

func (w *lineWriter) emit(b []byte) {
	if line := strings.TrimRight(string(b), "\r"); line != "" {
		w.log.Info(line)
	}
}

func (w *lineWriter) flush() {
	w.mx.Lock()
	if len(w.buf) != 0 {
		w.emit(w.buf)
		w.buf = nil
	}
	w.mx.Unlock()
}

// Process is a Handle for an operating system process.  A background
// goroutine waits for the process, so Poll is just a check of whether
// that wait has completed.
type Process struct {
	id     InstanceID
	cmd    *exec.Cmd
	done   chan struct{}
	code   int
	err    error
	stdout *lineWriter
	stderr *lineWriter
}

func (p *Process) doWait() {
	e := p.cmd.Wait()
	p.err = e
	if ps := p.cmd.ProcessState; ps != nil {
		p.code = ps.ExitCode()
	} else {
		p.code = -1
	}
	if p.stdout != nil {
		p.stdout.flush()
	}
	if p.stderr != nil {
		p.stderr.flush()
	}
	close(p.done)
}

func (p *Process) Pid() int {
	if proc := p.cmd.Process; proc != nil {
		return proc.Pid
	}
	return 0
}

func (p *Process) Poll() (bool, int) {
	select {
	case <-p.done:
		return true, p.code
	default:
		return false, 0
	}
}

// Terminate requests a graceful shutdown.  If the process has already
// been waited for, os.ErrProcessDone is returned.
func (p *Process) Terminate() error {
	select {
	case <-p.done:
		return os.ErrProcessDone
	default:
	}
	return terminate(p.cmd.Process)
}

// Wait blocks until the process has exited, returning the error from
// exec.Cmd.Wait.  It is mostly useful for tests.
func (p *Process) Wait() error {
	<-p.done
	return p.err
}

// ExecLauncher starts instances as child processes of the supervisor.
type ExecLauncher struct {
	// Logger receives child output when LogOutput is set.
	Logger    logrus.FieldLogger
	LogOutput bool
	// WaitDelay bounds how long reaping waits for output copying after
	// the process itself has exited.
	WaitDelay time.Duration
}

func (l *ExecLauncher) Launch(id InstanceID, spec *LaunchSpec) (Handle, error) {
	cmd := spec.Command()
	p := &Process{id: id, cmd: cmd, done: make(chan struct{})}

	if l.LogOutput && l.Logger != nil {
		p.stdout = &lineWriter{log: l.Logger.WithFields(logrus.Fields{
			"instance": id,
			"stream":   "stdout",
		})}
		p.stderr = &lineWriter{log: l.Logger.WithFields(logrus.Fields{
			"instance": id,
			"stream":   "stderr",
		})}
		cmd.Stdout = p.stdout
		cmd.Stderr = p.stderr
	}
	cmd.WaitDelay = l.WaitDelay
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = time.Second
	}

	if e := cmd.Start(); e != nil {
		return nil, e
	}
	go p.doWait()
	return p, nil
}
