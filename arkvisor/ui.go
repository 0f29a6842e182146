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

package main

import (
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/arkvisor/arkvisor/arkvisor/ui"
)

func runUI(cmd *cobra.Command, args []string) error {
	// Anything written to stderr would tear the screen.
	if !verbose {
		logrus.SetOutput(io.Discard)
	}
	app := ui.NewApp(client, addr)
	app.SetLogger(logrus.StandardLogger())
	return app.Run()
}
