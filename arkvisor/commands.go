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
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/arkvisor/arkvisor/arkvisor/util"
	"github.com/arkvisor/arkvisor/rest"
)

var sortStatus = false

var statusCmd = &cobra.Command{
	Use:   "status [MAP ...]",
	Short: "Show map status",
	RunE:  runStatus,
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show supervisor information",
	Args:  cobra.NoArgs,
	RunE:  runInfo,
}

var startCmd = &cobra.Command{
	Use:   "start MAP",
	Short: "Start a map server",
	Args:  cobra.ExactArgs(1),
	RunE:  runStart,
}

var stopCmd = &cobra.Command{
	Use:   "stop MAP",
	Short: "Stop a map server",
	Args:  cobra.ExactArgs(1),
	RunE:  runStop,
}

var logCmd = &cobra.Command{
	Use:   "log [MAP]",
	Short: "Show the supervisor log",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLog,
}

var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Run the interactive console",
	Args:  cobra.NoArgs,
	RunE:  runUI,
}

func init() {
	statusCmd.Flags().BoolVarP(&sortStatus, "sort", "s", sortStatus, "list running maps first")
	rootCmd.AddCommand(statusCmd, infoCmd, startCmd, stopCmd, logCmd, uiCmd)
}

func showMaps(maps []rest.MapInfo) {
	for i := range maps {
		fmt.Println(util.FormatMap(&maps[i]))
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	st, e := client.Status()
	if e != nil {
		return e
	}
	maps := st.Maps
	if len(args) != 0 {
		maps = make([]rest.MapInfo, 0, len(args))
		for _, n := range args {
			if m := st.Find(n); m != nil {
				maps = append(maps, *m)
			} else {
				logrus.Warnf("Unknown map: %s", n)
			}
		}
	}
	if sortStatus {
		util.SortMaps(maps)
	}
	showMaps(maps)
	return nil
}

func runInfo(cmd *cobra.Command, args []string) error {
	i, e := client.GetInfo()
	if e != nil {
		return e
	}
	fmt.Printf("Name:      %s\n", i.Name)
	fmt.Printf("Maps:      %d\n", i.Maps)
	fmt.Printf("Limit:     %d\n", i.MaxRunning)
	fmt.Printf("Serial:    %d\n", i.Serial)
	fmt.Printf("Up:        %s\n", util.FormatDuration(time.Since(i.CreateTime)))
	fmt.Printf("Changed:   %s ago\n", util.FormatDuration(time.Since(i.UpdateTime)))
	return nil
}

// report prints the outcome of a start or stop.  A refusal still carries
// the status snapshot, which is printed before the error is returned.
func report(r *rest.ActionResult, e error) error {
	var re *rest.Error
	if errors.As(e, &re) {
		fmt.Fprintln(os.Stderr, re.Message)
		showMaps(re.Maps)
		return re
	}
	if e != nil {
		return e
	}
	fmt.Println(r.Message)
	showMaps(r.Maps)
	return nil
}

func runStart(cmd *cobra.Command, args []string) error {
	return report(client.StartMap(args[0]))
}

func runStop(cmd *cobra.Command, args []string) error {
	return report(client.StopMap(args[0]))
}

func runLog(cmd *cobra.Command, args []string) error {
	name := ""
	if len(args) == 1 {
		name = args[0]
	}
	info, e := client.GetLog(name)
	if e != nil {
		return e
	}
	for _, r := range info.Records {
		fmt.Printf("%s %-5s %s\n", r.Time.Format(time.StampMilli),
			r.Level, r.Text)
	}
	return nil
}
