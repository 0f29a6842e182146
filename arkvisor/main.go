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

// Command arkvisor is a client for arkvisord.  It uses subcommands.
//
// The flags are
//
//	-a <address>	- select the server address, default is
//			  http://127.0.0.1:7776
//	-u <user:pass>	- user name & password for basic auth
//
// Subcommands are
//
//	status [<map> ...]  - show status for the named maps (or all)
//	info                - show supervisor information
//	start <map>         - start the named map
//	stop <map>          - stop the named map
//	log [<map>]         - show the log for the named map (or all)
//	ui                  - run the interactive console (the default)
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/arkvisor/arkvisor/rest"
)

var (
	addr    = "http://127.0.0.1:7776"
	auth    = ""
	verbose = false
	client  *rest.Client
)

var rootCmd = &cobra.Command{
	Use:          "arkvisor",
	Short:        "Control an arkvisord map supervisor",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			logrus.SetLevel(logrus.DebugLevel)
		}
		client = rest.NewClient(nil, addr)
		if auth != "" {
			a := strings.SplitN(auth, ":", 2)
			if len(a) != 2 {
				return fmt.Errorf("bad user:pass supplied")
			}
			client.SetAuth(a[0], a[1])
		}
		return nil
	},
	RunE: runUI,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&addr, "addr", "a", addr, "arkvisord address")
	rootCmd.PersistentFlags().StringVarP(&auth, "user", "u", auth, "user:pass authentication")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", verbose, "verbose logging")
}

func main() {
	if e := rootCmd.Execute(); e != nil {
		os.Exit(1)
	}
}
