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
	"errors"
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/gdamore/tcell/v2/views"

	"github.com/arkvisor/arkvisor/arkvisor/util"
	"github.com/arkvisor/arkvisor/rest"
)

var (
	StyleNormal = tcell.StyleDefault.
			Foreground(tcell.ColorSilver).
			Background(tcell.ColorBlack)
	StyleGood = tcell.StyleDefault.
			Foreground(tcell.ColorGreen).
			Background(tcell.ColorBlack)
	StyleWarn = tcell.StyleDefault.
			Foreground(tcell.ColorYellow).
			Background(tcell.ColorBlack)
	StyleError = tcell.StyleDefault.
			Foreground(tcell.ColorMaroon).
			Background(tcell.ColorBlack)
)

// MainPanel lists every map with its state, in configuration order, and
// lets the user start and stop the selected one.
type MainPanel struct {
	content  *views.CellView
	selected string // name of the selected map, "" for none
	nrunning int
	nstopped int
	width    int
	height   int
	curx     int
	cury     int
	lines    []string
	styles   []tcell.Style
	items    []rest.MapInfo

	Panel
}

// mainModel provides the model for a CellView.
type mainModel struct {
	m *MainPanel
}

func NewMainPanel(app *App, server string) *MainPanel {
	m := &MainPanel{}

	m.Panel.Init(app)
	m.content = views.NewCellView()
	m.SetContent(m.content)

	m.content.SetModel(&mainModel{m})
	m.content.SetStyle(StyleNormal)

	m.SetTitle(server)
	m.SetKeys([]string{"[Q] Quit"})

	return m
}

func (m *MainPanel) Draw() {
	m.update()
	m.Panel.Draw()
}

func (m *MainPanel) selectedItem() *rest.MapInfo {
	if m.selected == "" {
		return nil
	}
	for i := range m.items {
		if m.items[i].Name == m.selected {
			return &m.items[i]
		}
	}
	return nil
}

func (m *MainPanel) HandleEvent(ev tcell.Event) bool {
	sel := m.selectedItem()
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEsc:
			m.unselect()
			return true
		case tcell.KeyF1:
			m.App().ShowHelp()
			return true
		case tcell.KeyEnter:
			if sel != nil {
				m.App().ShowInfo(sel.Name)
				return true
			}
		case tcell.KeyRune:
			switch ev.Rune() {
			case 'Q', 'q':
				m.App().Quit()
				return true
			case 'H', 'h':
				m.App().ShowHelp()
				return true
			case 'I', 'i':
				if sel != nil {
					m.App().ShowInfo(sel.Name)
				} else {
					m.App().ShowInfo("")
				}
				return true
			case 'L', 'l':
				if sel != nil {
					m.App().ShowLog(sel.Name)
				} else {
					m.App().ShowLog("")
				}
				return true
			case 'S', 's':
				if sel != nil && !sel.Running {
					m.App().StartMap(sel.Name)
					return true
				}
			case 'T', 't':
				if sel != nil && sel.Running {
					m.App().StopMap(sel.Name)
					return true
				}
			}
		}
	}
	return m.Panel.HandleEvent(ev)
}

// Model items
func (model *mainModel) GetCell(x, y int) (rune, tcell.Style, []rune, int) {
	var ch rune
	var style tcell.Style

	m := model.m

	if y < 0 || y >= len(m.lines) {
		return ch, StyleNormal, nil, 1
	}

	if x >= 0 && x < len(m.lines[y]) {
		ch = rune(m.lines[y][x])
	} else {
		ch = ' '
	}
	style = m.styles[y]
	if m.selected != "" && m.items[y].Name == m.selected {
		style = style.Reverse(true)
	}
	return ch, style, nil, 1
}

func (model *mainModel) GetBounds() (int, int) {
	// This assumes that all content is displayable runes of width 1.
	m := model.m
	y := len(m.lines)
	x := 0
	for _, l := range m.lines {
		if x < len(l) {
			x = len(l)
		}
	}
	return x, y
}

func (model *mainModel) GetCursor() (int, int, bool, bool) {
	m := model.m
	return m.curx, m.cury, true, false
}

func (model *mainModel) MoveCursor(offx, offy int) {

	m := model.m
	m.curx += offx
	m.cury += offy
	m.updateCursor(true)
}

func (model *mainModel) SetCursor(x, y int) {
	m := model.m
	m.curx = x
	m.cury = y
	m.updateCursor(true)
}

func (m *MainPanel) unselect() {
	m.cury = 0
	m.curx = 0
	m.updateCursor(false)
}

func (m *MainPanel) updateCursor(selected bool) {
	if m.curx > m.width-1 {
		m.curx = m.width - 1
	}
	if m.cury > m.height-1 {
		m.cury = m.height - 1
	}
	if m.curx < 0 {
		m.curx = 0
	}
	if m.cury < 0 {
		m.cury = 0
	}
	if selected && m.height > 0 {
		if m.selected == "" {
			m.curx = 0
			m.cury = 0
		}
		m.selected = m.items[m.cury].Name
	} else {
		m.selected = ""
	}
}

// update is called to update content, e.g. in response to Draw() or
// as part of another update.  It runs on the event loop.
func (m *MainPanel) update() {

	st, err := m.App().GetStatus()
	if err != nil {
		var re *rest.Error
		if errors.As(err, &re) && re.Code == 401 {
			m.App().ShowAuth()
			return
		}
		m.SetError()
		m.SetStatus(fmt.Sprintf("Cannot load maps: %v", err))
		m.items = nil
		m.lines = []string{}
		m.styles = []tcell.Style{}
		m.height = 0
		return
	}
	if st == nil {
		m.SetNormal()
		m.SetStatus("Loading ...")
		return
	}
	m.items = st.Maps

	// keep the cursor on the selected map
	if m.selected != "" {
		found := false
		for i, item := range m.items {
			if item.Name == m.selected {
				m.cury = i
				found = true
			}
		}
		if !found {
			m.selected = ""
		}
	}

	lines := make([]string, 0, len(m.items))
	styles := make([]tcell.Style, 0, len(m.items))

	m.nstopped = 0
	m.nrunning = 0
	m.height = 0
	m.width = 0

	for i := range m.items {
		info := &m.items[i]
		line := util.FormatMap(info)

		if len(line) > m.width {
			m.width = len(line)
		}
		m.height++

		lines = append(lines, line)
		if info.Running {
			styles = append(styles, StyleGood)
			m.nrunning++
		} else {
			styles = append(styles, StyleNormal)
			m.nstopped++
		}
	}

	m.lines = lines
	m.styles = styles

	limit := 0
	if si := m.App().GetSupervisorInfo(); si != nil {
		limit = si.MaxRunning
	}
	status := util.Summary(m.items, limit)
	result, refused := m.App().Result()
	if result != "" {
		status = status + "   " + result
	}
	m.SetStatus(status)

	switch {
	case refused:
		m.SetError()
	case limit > 0 && m.nrunning >= limit:
		m.SetWarn()
	case m.nrunning > 0:
		m.SetGood()
	default:
		m.SetNormal()
	}

	words := []string{"[Q] Quit", "[H] Help", "[I] Info", "[L] Log"}

	if item := m.selectedItem(); item != nil {
		if item.Running {
			words = append(words, "[T] Stop")
		} else {
			words = append(words, "[S] Start")
		}
	}
	m.SetKeys(words)
}
