/*
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

// Command controller is the control plane process entrypoint:
// parses flags/env, dials the store, serves the HTTP surface, and shuts
// down cleanly on SIGINT/SIGTERM. It wires a cobra root command over a
// plain net/http.Server rather than a controller-runtime manager, since
// this control plane has no Kubernetes API server to reconcile against.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gmnkube/control-plane/pkg/api"
	"github.com/gmnkube/control-plane/pkg/log"
	"github.com/gmnkube/control-plane/pkg/options"
	"github.com/gmnkube/control-plane/pkg/store"
)

const storeDialTimeout = 5 * time.Second

func main() {
	os.Exit(run())
}

// run returns the process exit code: 0 clean shutdown, 1 fatal
// configuration error, 2 store unreachable at startup.
func run() int {
	opts := options.Default()

	cmd := &cobra.Command{
		Use:           "controller",
		Short:         "gmnkube control plane",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.Flags().StringVar(&opts.Bind, "bind", opts.Bind, "HTTP bind address (env APP_BIND)")
	cmd.Flags().StringVar(&opts.StoreAddr, "store-addr", opts.StoreAddr, "store endpoint (env STORE_ADDR)")
	cmd.Flags().BoolVar(&opts.Development, "development", opts.Development, "enable human-readable logging")

	exitCode := 0
	cmd.RunE = func(_ *cobra.Command, _ []string) error {
		code, err := serve(opts)
		exitCode = code
		return err
	}

	if err := cmd.Execute(); err != nil {
		if exitCode == 0 {
			exitCode = 1
		}
		fmt.Fprintln(os.Stderr, err)
	}
	return exitCode
}

func serve(opts options.Options) (int, error) {
	zapLogger, err := log.NewProduction(opts.Development)
	if err != nil {
		return 1, fmt.Errorf("building logger: %w", err)
	}
	defer zapLogger.Sync() //nolint:errcheck
	sugar := zapLogger.Sugar()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = log.Into(ctx, sugar)

	dialCtx, dialCancel := context.WithTimeout(ctx, storeDialTimeout)
	defer dialCancel()
	st, err := dialStore(dialCtx, opts.StoreAddr)
	if err != nil {
		sugar.Errorw("store unreachable at startup", "addr", opts.StoreAddr, "error", err)
		return 2, err
	}
	defer st.Close()

	srv := api.NewServer(st, time.Now().UnixNano())
	httpServer := &http.Server{
		Addr:    opts.Bind,
		Handler: srv.NewRouter(),
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		sugar.Infow("control plane listening", "addr", opts.Bind)
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return 1, err
		}
	case <-sigCtx.Done():
		sugar.Infow("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return 1, err
		}
	}
	return 0, nil
}

// dialStore connects to the etcd-compatible store named by addr.
// "memory://" swaps in the in-memory double for local/dev runs.
func dialStore(ctx context.Context, addr string) (store.Interface, error) {
	if addr == "memory://" {
		return store.NewMemoryStore(), nil
	}
	st, err := store.NewEtcdStore([]string{addr}, storeDialTimeout)
	if err != nil {
		return nil, err
	}
	probeCtx, cancel := context.WithTimeout(ctx, storeDialTimeout)
	defer cancel()
	if _, _, err := st.Get(probeCtx, "nodes/"); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}
