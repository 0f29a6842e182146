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

// Command arkvisord supervises ARK map server processes on this host and
// serves the control interface used by the arkvisor client.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/arkvisor/arkvisor"
	"github.com/arkvisor/arkvisor/config"
	"github.com/arkvisor/arkvisor/rest"
)

var (
	cfgFile     = "arkvisor.yaml"
	printConfig = false
)

var rootCmd = &cobra.Command{
	Use:          "arkvisord",
	Short:        "Supervise ARK map server processes",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runServe,
}

var hashCmd = &cobra.Command{
	Use:   "hash-password [PASSWORD]",
	Short: "Print a bcrypt hash for auth.password_hash",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHash,
}

func init() {
	rootCmd.Flags().StringVarP(&cfgFile, "config", "c", cfgFile, "configuration file")
	rootCmd.Flags().StringP("listen", "a", "", "listen address (overrides config)")
	rootCmd.Flags().BoolVar(&printConfig, "print-config", printConfig, "print the effective configuration and exit")
	rootCmd.AddCommand(hashCmd)
}

func setupLogging(cfg *config.Config, hook logrus.Hook) {
	lvl, e := logrus.ParseLevel(cfg.Logging.Level)
	if e != nil {
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
	if cfg.Logging.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	logrus.AddHook(hook)
}

func runServe(cmd *cobra.Command, args []string) error {
	v := config.New(cfgFile)
	if e := v.BindPFlag("listen", cmd.Flags().Lookup("listen")); e != nil {
		return e
	}
	if e := v.ReadInConfig(); e != nil {
		return fmt.Errorf("failed to read config: %w", e)
	}
	cfg, e := config.Load(v)
	if e != nil {
		return e
	}
	if printConfig {
		return cfg.Dump(os.Stdout)
	}

	log := arkvisor.NewLog(cfg.Logging.Records)
	setupLogging(cfg, log)
	logger := logrus.WithField("supervisor", cfg.Name)

	reg, e := arkvisor.NewRegistry(cfg.Known(), cfg.Cluster())
	if e != nil {
		logrus.WithError(e).Fatal("Bad instance configuration")
	}

	metrics := arkvisor.NewPrometheusMetricsCollector("arkvisor")
	s, e := arkvisor.NewSupervisor(reg,
		arkvisor.WithName(cfg.Name),
		arkvisor.WithMaxRunning(cfg.MaxRunning),
		arkvisor.WithLogger(logger),
		arkvisor.WithMetricsCollector(metrics),
		arkvisor.WithMonitorInterval(cfg.MonitorInterval()),
		arkvisor.WithStopOnExit(cfg.StopOnExit),
		arkvisor.WithLauncher(&arkvisor.ExecLauncher{
			Logger:    logger,
			LogOutput: cfg.LogOutput,
		}))
	if e != nil {
		logrus.WithError(e).Fatal("Cannot create supervisor")
	}
	if cfg.MonitorIntervalMs > 0 {
		s.StartMonitoring()
	}

	h := rest.NewHandler(s, log)
	h.SetLogger(logger)
	h.SetMetrics(metrics.Handler())
	if cfg.Auth.User != "" {
		h.SetAuth(cfg.Auth.User, cfg.Auth.PasswordHash)
	}
	if cfg.RateLimit.RequestsPerSecond > 0 {
		h.SetRateLimit(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	}

	ln, e := net.Listen("tcp", cfg.Listen)
	if e != nil {
		s.Shutdown()
		return fmt.Errorf("cannot listen on %s: %w", cfg.Listen, e)
	}
	logger.WithFields(logrus.Fields{
		"listen":      ln.Addr().String(),
		"maps":        reg.Len(),
		"max_running": s.MaxRunning(),
	}).Info("Control interface listening")

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	e = serve(srv, ln, sigs, logger)
	s.Shutdown()
	return e
}

// serve runs srv on ln until a signal arrives or the server fails, then
// closes it.  A server failure is returned.
func serve(srv *http.Server, ln net.Listener, sigs <-chan os.Signal, logger logrus.FieldLogger) error {
	errc := make(chan error, 1)
	go func() {
		errc <- srv.Serve(ln)
	}()

	var rv error
	select {
	case sig := <-sigs:
		logger.WithField("signal", sig).Info("Shutting down")
	case e := <-errc:
		if !errors.Is(e, http.ErrServerClosed) {
			logger.WithError(e).Error("Control interface failed")
			rv = fmt.Errorf("control interface failed: %w", e)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if e := srv.Shutdown(ctx); e != nil {
		logger.WithError(e).Warn("Control interface did not close cleanly")
	}
	return rv
}

func runHash(cmd *cobra.Command, args []string) error {
	var pass string
	if len(args) == 1 {
		pass = args[0]
	} else {
		line, e := bufio.NewReader(os.Stdin).ReadString('\n')
		if e != nil && line == "" {
			return e
		}
		pass = strings.TrimRight(line, "\r\n")
	}
	b, e := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.DefaultCost)
	if e != nil {
		return e
	}
	fmt.Println(string(b))
	return nil
}

func main() {
	if e := rootCmd.Execute(); e != nil {
		os.Exit(1)
	}
}
