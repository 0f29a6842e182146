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
	"github.com/gdamore/tcell/v2"
	"github.com/gdamore/tcell/v2/views"
)

const authFieldLen = 16

var (
	authFocus = tcell.StyleDefault.
			Foreground(tcell.ColorWhite).Background(tcell.ColorNavy)
	authIdle = StyleNormal
)

// AuthPanel asks for the basic auth credentials when the server answers
// 401.
type AuthPanel struct {
	hlayout    *views.BoxLayout
	left       *views.BoxLayout
	right      *views.BoxLayout
	uprompt    *views.Text
	pprompt    *views.Text
	ufield     *views.Text
	pfield     *views.Text
	passactive bool
	username   []rune
	password   []rune

	Panel
}

func NewAuthPanel(app *App, server string) *AuthPanel {
	a := &AuthPanel{}
	a.Panel.Init(app)

	a.username = make([]rune, 0, 128)
	a.password = make([]rune, 0, 128)

	a.hlayout = views.NewBoxLayout(views.Horizontal)
	a.left = views.NewBoxLayout(views.Vertical)
	a.right = views.NewBoxLayout(views.Vertical)
	a.uprompt = views.NewText()
	a.pprompt = views.NewText()
	a.ufield = views.NewText()
	a.pfield = views.NewText()
	a.uprompt.SetText("Username: ")
	a.pprompt.SetText("Password: ")

	for _, t := range []*views.Text{a.uprompt, a.pprompt, a.ufield, a.pfield} {
		t.SetStyle(authIdle)
	}
	for _, l := range []*views.BoxLayout{a.hlayout, a.left, a.right} {
		l.SetStyle(authIdle)
	}

	a.left.AddWidget(views.NewSpacer(), 1.0)
	a.left.AddWidget(a.uprompt, 0.0)
	a.left.AddWidget(a.pprompt, 0.0)
	a.left.AddWidget(views.NewSpacer(), 1.0)

	a.right.AddWidget(views.NewSpacer(), 1.0)
	a.right.AddWidget(a.ufield, 0.0)
	a.right.AddWidget(a.pfield, 0.0)
	a.right.AddWidget(views.NewSpacer(), 1.0)

	a.hlayout.AddWidget(views.NewSpacer(), 1.0)
	a.hlayout.AddWidget(a.left, 0.0)
	a.hlayout.AddWidget(a.right, 0.0)
	a.hlayout.AddWidget(views.NewSpacer(), 1.0)

	a.SetTitle(server)
	a.SetStatus("Authentication Required")
	a.SetKeys([]string{"[ESC] Quit", "[TAB] Next"})
	a.SetContent(a.hlayout)
	a.update()

	return a
}

func (a *AuthPanel) ResetFields() {
	a.passactive = false
	a.username = a.username[:0]
	a.password = a.password[:0]
}

func (a *AuthPanel) Draw() {
	a.update()
	a.Panel.Draw()
}

// field returns the rune buffer that currently has focus.
func (a *AuthPanel) field() *[]rune {
	if a.passactive {
		return &a.password
	}
	return &a.username
}

func (a *AuthPanel) HandleEvent(ev tcell.Event) bool {
	ke, ok := ev.(*tcell.EventKey)
	if !ok {
		return a.Panel.HandleEvent(ev)
	}
	f := a.field()
	switch ke.Key() {
	case tcell.KeyEsc:
		a.App().Quit()
	case tcell.KeyTab, tcell.KeyEnter:
		if a.passactive {
			a.App().SetUserPassword(string(a.username),
				string(a.password))
			a.App().ShowMain()
		} else {
			a.passactive = true
		}
	case tcell.KeyBacktab:
		a.passactive = false
	case tcell.KeyCtrlU, tcell.KeyCtrlW:
		*f = (*f)[:0]
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		if len(*f) > 0 {
			*f = (*f)[:len(*f)-1]
		}
	case tcell.KeyRune:
		if len(*f) < 256 {
			*f = append(*f, ke.Rune())
		}
	default:
		return false
	}
	return true
}

// pad fits the field text into the visible width, marking truncation
// with '<'.
func pad(r []rune) string {
	if len(r) > authFieldLen {
		r = append([]rune{}, r[len(r)-authFieldLen:]...)
		r[0] = '<'
	}
	for len(r) < authFieldLen {
		r = append(r, ' ')
	}
	return string(r)
}

// update runs on the event loop.
func (a *AuthPanel) update() {

	a.Panel.SetError()

	var passprompt []rune
	userprompt := append([]rune{}, a.username...)

	for range a.password {
		passprompt = append(passprompt, '*')
	}
	if !a.passactive {
		userprompt = append(userprompt, '_')
	} else {
		passprompt = append(passprompt, '_')
	}

	a.ufield.SetText(pad(userprompt))
	a.pfield.SetText(pad(passprompt))

	if a.passactive {
		a.pfield.SetStyle(authFocus)
		a.ufield.SetStyle(authIdle)
	} else {
		a.ufield.SetStyle(authFocus)
		a.pfield.SetStyle(authIdle)
	}
}
