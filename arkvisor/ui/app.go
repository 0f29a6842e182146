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

// Package ui implements the interactive arkvisor console on tcell views.
package ui

import (
	"errors"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/gdamore/tcell/v2/views"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"

	"github.com/arkvisor/arkvisor/rest"
)

type App struct {
	app       *views.Application
	view      views.View
	panel     views.Widget
	help      *HelpPanel
	info      *InfoPanel
	log       *LogPanel
	main      *MainPanel
	auth      *AuthPanel
	client    *rest.Client
	logger    logrus.FieldLogger
	err       error
	status    *rest.StatusInfo
	sinfo     *rest.SupervisorInfo
	result    string // outcome of the last start or stop
	resultErr bool
	logName   string
	logInfo   *rest.LogInfo
	logErr    error
	logCtx    context.Context
	logCancel context.CancelFunc

	views.WidgetWatchers
}

func (a *App) show(w views.Widget) {
	if w != a.panel {
		a.panel.SetView(nil)
		a.panel = w
	}
	a.panel.SetView(a.view)
	a.panel.Resize()
	a.app.Refresh()
}

func (a *App) ShowHelp() {
	a.show(a.help)
}

func (a *App) ShowInfo(name string) {
	a.info.SetName(name)
	a.show(a.info)
}

func (a *App) ShowAuth() {
	a.auth.ResetFields()
	a.show(a.auth)
}

func (a *App) ShowLog(name string) {
	if a.logCancel != nil {
		a.logCancel()
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
	a.logInfo = nil
	a.logErr = nil
	a.logName = name
	a.logCtx = ctx
	a.logCancel = cancel
	a.log.SetName(name)
	go a.refreshLog(ctx, name)

	a.show(a.log)
}

func (a *App) ShowMain() {
	a.show(a.main)
}

// command runs a start or stop off the event loop, and posts the result
// back to it when the server answers.
func (a *App) command(verb string, name string, fn func(string) (*rest.ActionResult, error)) {
	a.result = fmt.Sprintf("%s %s ...", verb, name)
	a.resultErr = false
	go func() {
		r, e := fn(name)
		a.app.PostFunc(func() {
			var re *rest.Error
			switch {
			case errors.As(e, &re):
				a.result = fmt.Sprintf("%s %s: %s", verb, name, re.Message)
				a.resultErr = true
				if len(re.Maps) != 0 && a.status != nil {
					a.status.Maps = re.Maps
				}
			case e != nil:
				a.result = fmt.Sprintf("%s %s: %v", verb, name, e)
				a.resultErr = true
			default:
				a.result = fmt.Sprintf("%s %s: %s", verb, name, r.Message)
				if a.status != nil {
					a.status.Maps = r.Maps
				}
			}
			a.logger.Debug(a.result)
			a.app.Update()
		})
	}()
}

func (a *App) StartMap(name string) {
	a.command("Start", name, a.client.StartMap)
}

func (a *App) StopMap(name string) {
	a.command("Stop", name, a.client.StopMap)
}

// Result returns the outcome of the last start or stop, and whether it
// was refused.
func (a *App) Result() (string, bool) {
	return a.result, a.resultErr
}

func (a *App) SetUserPassword(user string, pass string) {
	a.client.SetAuth(user, pass)
	a.err = nil
}

func (a *App) Quit() {
	a.app.Quit()
}

func (a *App) SetLogger(logger logrus.FieldLogger) {
	a.logger = logger
}

func (a *App) HandleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch ev.Key() {
		// Intercept a few control keys up front, for global handling.
		case tcell.KeyCtrlC:
			a.Quit()
			return true
		case tcell.KeyCtrlL:
			a.app.Refresh()
			return true
		}
	}

	if a.panel != nil {
		return a.panel.HandleEvent(ev)
	}
	return false
}

func (a *App) Draw() {
	if a.panel != nil {
		a.panel.Draw()
	}
}

func (a *App) Resize() {
	if a.panel != nil {
		a.panel.Resize()
	}
}

func (a *App) SetView(view views.View) {
	a.view = view
	if a.panel != nil {
		a.panel.SetView(view)
	}
}

func (a *App) Size() (int, int) {
	if a.panel != nil {
		return a.panel.Size()
	}
	return 0, 0
}

func (a *App) GetClient() *rest.Client {
	return a.client
}

func (a *App) GetAppName() string {
	return "Arkvisor v1.0"
}

// refresh keeps the status current, long-polling the server for changes.
func (a *App) refresh() {
	client := a.client
	st, e := client.Status()
	for {
		si, _ := client.GetInfo()
		a.app.PostFunc(func() {
			if e == nil {
				a.status = st
			}
			if si != nil {
				a.sinfo = si
			}
			a.err = e
			a.app.Update()
		})
		if e != nil {
			time.Sleep(2 * time.Second)
			st, e = client.Status()
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
		st, e = client.Watch(ctx)
		cancel()
	}
}

func (a *App) refreshLog(ctx context.Context, name string) {
	info, e := a.client.GetLog(name)

	for {
		a.app.PostFunc(func() {
			if a.logName == name {
				a.logInfo = info
				a.logErr = e
				a.app.Update()
			}
		})
		select {
		case <-ctx.Done():
			return
		default:
		}
		if e != nil {
			time.Sleep(2 * time.Second)
			info, e = a.client.GetLog(name)
			continue
		}
		info, e = a.client.WatchLog(ctx, name, info)
	}
}

// GetStatus returns the last snapshot, in configuration order.
func (a *App) GetStatus() (*rest.StatusInfo, error) {
	return a.status, a.err
}

// GetSupervisorInfo returns the last supervisor information fetched.
func (a *App) GetSupervisorInfo() *rest.SupervisorInfo {
	return a.sinfo
}

func (a *App) GetMap(name string) (*rest.MapInfo, error) {
	if a.err != nil {
		return nil, a.err
	}
	if a.status != nil {
		if m := a.status.Find(name); m != nil {
			return m, nil
		}
	}
	return nil, errors.New("Map not found")
}

func (a *App) GetLog(name string) (*rest.LogInfo, error) {
	if a.logName == name {
		return a.logInfo, a.logErr
	}
	return nil, nil
}

// Run takes over the terminal until the user quits.
func (a *App) Run() error {
	a.logger.Debug("Starting up user interface")
	a.app.SetRootWidget(a)
	a.ShowMain()
	go a.refresh()
	go func() {
		// Give us periodic updates
		for {
			a.app.Update()
			time.Sleep(time.Second)
		}
	}()
	return a.app.Run()
}

func NewApp(client *rest.Client, url string) *App {

	app := &App{}
	app.app = &views.Application{}
	app.client = client
	app.logger = logrus.StandardLogger()
	app.help = NewHelpPanel(app)
	app.info = NewInfoPanel(app)
	app.log = NewLogPanel(app)
	app.auth = NewAuthPanel(app, url)
	app.main = NewMainPanel(app, url)
	app.panel = app.main

	return app
}
