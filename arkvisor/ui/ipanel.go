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

package ui

import (
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/gdamore/tcell/v2/views"

	"github.com/arkvisor/arkvisor/arkvisor/util"
)

// InfoPanel shows details about the supervisor and, if one is named, a
// single map.
type InfoPanel struct {
	text *views.TextArea
	name string // map name, may be empty

	Panel
}

func NewInfoPanel(app *App) *InfoPanel {
	p := &InfoPanel{}
	p.Panel.Init(app)

	p.text = views.NewTextArea()
	p.text.EnableCursor(false)
	p.text.SetStyle(StyleNormal)
	p.SetContent(p.text)

	return p
}

func (p *InfoPanel) SetName(name string) {
	p.name = name
}

func (p *InfoPanel) Draw() {
	p.update()
	p.Panel.Draw()
}

func (p *InfoPanel) HandleEvent(ev tcell.Event) bool {
	app := p.App()
	m, _ := app.GetMap(p.name)
	if ev, ok := ev.(*tcell.EventKey); ok && ev.Key() == tcell.KeyRune && m != nil {
		switch ev.Rune() {
		case 'L', 'l':
			app.ShowLog(m.Name)
			return true
		case 'S', 's':
			if !m.Running {
				app.StartMap(m.Name)
				return true
			}
		case 'T', 't':
			if m.Running {
				app.StopMap(m.Name)
				return true
			}
		}
	}
	return p.handleCommon(ev)
}

// update runs on the event loop.
func (p *InfoPanel) update() {
	app := p.App()
	lines := []string{}
	words := []string{"[ESC] Main", "[H] Help"}

	if si := app.GetSupervisorInfo(); si != nil {
		lines = append(lines,
			fmt.Sprintf("Supervisor:   %s", si.Name),
			fmt.Sprintf("Maps:         %d", si.Maps),
			fmt.Sprintf("Limit:        %d running", si.MaxRunning),
			fmt.Sprintf("Up:           %s", util.FormatDuration(time.Since(si.CreateTime))),
			fmt.Sprintf("Last change:  %s ago", util.FormatDuration(time.Since(si.UpdateTime))),
			"")
	}

	if p.name == "" {
		p.SetTitle("Supervisor")
		p.SetStatus("")
		p.SetNormal()
	} else if m, e := app.GetMap(p.name); e != nil {
		p.SetTitle(p.name)
		p.SetStatus(fmt.Sprintf("No data: %v", e))
		p.SetError()
	} else {
		p.SetTitle(m.Name)
		lines = append(lines,
			fmt.Sprintf("Map:          %s", m.Name),
			fmt.Sprintf("State:        %s", util.Status(m)),
			fmt.Sprintf("Pid:          %s", util.Pid(m)))
		words = append(words, "[L] Log")
		if m.Running {
			p.SetGood()
			words = append(words, "[T] Stop")
		} else {
			p.SetNormal()
			words = append(words, "[S] Start")
		}
		result, _ := app.Result()
		p.SetStatus(result)
	}
	p.text.SetLines(lines)
	p.SetKeys(words)
}
