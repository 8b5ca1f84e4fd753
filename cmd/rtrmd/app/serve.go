/*
Copyright 2022 The Koordinator Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/pietruzzo/barberque-allocation-sub003/pkg/api"
	"github.com/pietruzzo/barberque-allocation-sub003/pkg/rtrmconfig"
	"github.com/pietruzzo/barberque-allocation-sub003/pkg/scheduler"
)

func newServeCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler, control surface and metrics endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	addConfigFlag(cmd.Flags(), &configPath)
	return cmd
}

func runServe(ctx context.Context, configPath string) error {
	watcher, err := rtrmconfig.NewWatcher(configPath)
	if err != nil {
		return fmt.Errorf("app: load config: %w", err)
	}
	defer watcher.Close()
	cfg := watcher.Current()

	rt, err := buildRuntime(cfg)
	if err != nil {
		return err
	}

	server := api.NewServer(rt.Registry, rt.Catalogues, rt.Scheduler, rt.Accountant)

	apiSrv := &http.Server{Addr: cfg.APIAddr, Handler: server.Handler()}
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux}

	go func() {
		klog.Infof("app: control surface listening on %s", cfg.APIAddr)
		if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			klog.Errorf("app: control surface stopped: %v", err)
		}
	}()
	go func() {
		klog.Infof("app: metrics listening on %s", cfg.MetricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			klog.Errorf("app: metrics server stopped: %v", err)
		}
	}()

	retrier := scheduler.NewRetrier(rt.Scheduler)

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(cfg.CycleBudget())
	defer ticker.Stop()

	klog.Infof("app: scheduling cycle trigger every %s", cfg.CycleBudget())
	for {
		select {
		case <-sigCtx.Done():
			klog.Infof("app: shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = apiSrv.Shutdown(shutdownCtx)
			_ = metricsSrv.Shutdown(shutdownCtx)
			return nil
		case <-ticker.C:
			_, code, err := retrier.Trigger(sigCtx)
			if err != nil && code != scheduler.Ok {
				klog.V(2).Infof("app: cycle finished with %s: %v", code, err)
			}
			if code == scheduler.Crit {
				klog.Errorf("app: accountant invariant audit failed, refusing further cycles")
				return fmt.Errorf("app: fatal accountant state")
			}
		}
	}
}
