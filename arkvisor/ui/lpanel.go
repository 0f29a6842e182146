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
)

type LogPanel struct {
	text *views.TextArea
	name string // map name, "" for the consolidated log

	Panel
}

func NewLogPanel(app *App) *LogPanel {
	p := &LogPanel{}

	p.Panel.Init(app)

	p.text = views.NewTextArea()
	p.text.EnableCursor(false)
	p.text.SetStyle(StyleNormal)
	p.SetContent(p.text)

	return p
}

func (p *LogPanel) Draw() {
	p.update()
	p.Panel.Draw()
}

func (p *LogPanel) HandleEvent(ev tcell.Event) bool {
	app := p.App()
	m, _ := app.GetMap(p.name)
	if ev, ok := ev.(*tcell.EventKey); ok && ev.Key() == tcell.KeyRune && m != nil {
		switch ev.Rune() {
		case 'I', 'i':
			app.ShowInfo(m.Name)
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

func (p *LogPanel) SetName(name string) {
	p.SetTitle("Loading")
	p.text.SetLines(nil)
	p.name = name
}

// update runs on the event loop.
func (p *LogPanel) update() {

	app := p.App()
	m, _ := app.GetMap(p.name)
	loginfo, e := app.GetLog(p.name)

	words := []string{"[ESC] Main", "[H] Help"}

	if p.name == "" {
		p.SetTitle("Consolidated Log")
	} else {
		p.SetTitle("Log for " + p.name)
	}

	if loginfo == nil {
		if e != nil {
			p.SetStatus(fmt.Sprintf("No data: %v", e))
			p.SetError()
		} else {
			p.SetStatus("Loading ...")
			p.SetNormal()
		}
		p.text.SetLines([]string{""})
		p.SetKeys(words)
		return
	}

	p.SetStatus(fmt.Sprintf("%d records", len(loginfo.Records)))
	p.SetNormal()
	if m != nil {
		words = append(words, "[I] Info")
		if m.Running {
			p.SetGood()
			words = append(words, "[T] Stop")
		} else {
			words = append(words, "[S] Start")
		}
	}

	lines := make([]string, 0, len(loginfo.Records))
	for _, r := range loginfo.Records {
		line := fmt.Sprintf("%s %-5s %s",
			r.Time.Format(time.StampMilli), r.Level, r.Text)
		lines = append(lines, line)
	}
	p.text.SetLines(lines)
	p.SetKeys(words)
}
