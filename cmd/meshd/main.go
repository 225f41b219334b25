// Command meshd is the mesh provisioning daemon: it serves the §6.1 HTTP
// API and the audit websocket stream over one persisted state document
// and one runtime adapter, the way the teacher's cmd/controller serves
// pkg/api over one node store.
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

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/meshwire/wgmesh/pkg/httpapi"
	"github.com/meshwire/wgmesh/pkg/keys"
	"github.com/meshwire/wgmesh/pkg/provisioning"
	"github.com/meshwire/wgmesh/pkg/runtime"
	"github.com/meshwire/wgmesh/pkg/state"
	"github.com/meshwire/wgmesh/pkg/streaming"
	"github.com/meshwire/wgmesh/pkg/wlog"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "meshd",
		Short: "WireGuard mesh provisioning daemon",
		RunE:  runDaemon,
	}

	cmd.Flags().String("listen", ":8787", "HTTP listen address")
	cmd.Flags().String("state-file", "/etc/wireguard/wg-mesh-state.json", "persisted state document path")
	cmd.Flags().String("lock-file", "", "lock file path (defaults to <state-file>.lock)")
	cmd.Flags().String("runtime", "cli", "runtime adapter: cli|wgctrl")
	cmd.Flags().String("psk-strategy", "random", "default preshared key strategy: deterministic|random|hkdf")
	cmd.Flags().String("log-level", "info", "log level: debug|info|warn|error")
	cmd.Flags().Bool("log-json", false, "emit structured JSON logs instead of console format")

	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())
	v.SetEnvPrefix("WG")
	v.AutomaticEnv()
	_ = v.BindEnv("state-file", "WG_STATE_FILE")
	_ = v.BindEnv("lock-file", "WG_LOCK_FILE")

	cmd.SetContext(context.WithValue(context.Background(), viperKey, v))
	return cmd
}

type contextKey string

const viperKey contextKey = "viper"

func runDaemon(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		preLog := wlog.Component("meshd")
		preLog.Warn().Err(err).Msg("failed to load .env file")
	}

	v, _ := cmd.Context().Value(viperKey).(*viper.Viper)
	if v == nil {
		v = viper.New()
		_ = v.BindPFlags(cmd.Flags())
	}

	wlog.Init(wlog.Config{
		Level:      wlog.Level(v.GetString("log-level")),
		JSONOutput: v.GetBool("log-json"),
	})
	log := wlog.Component("meshd")

	statePath := v.GetString("state-file")
	lockPath := v.GetString("lock-file")
	if lockPath != "" {
		_ = os.Setenv("WG_LOCK_FILE", lockPath)
	}

	store := state.NewStore(statePath)

	adapter, closeAdapter, err := buildAdapter(v.GetString("runtime"))
	if err != nil {
		return fmt.Errorf("build runtime adapter: %w", err)
	}
	if closeAdapter != nil {
		defer closeAdapter()
	}

	psk, err := buildPSKStrategy(v.GetString("psk-strategy"))
	if err != nil {
		return fmt.Errorf("build psk strategy: %w", err)
	}

	svc := provisioning.New(store, adapter)
	hub := streaming.NewHub()
	svc.Subscribe(hub.Broadcast)

	srv := httpapi.NewServer(svc, psk)
	mux := http.NewServeMux()
	srv.Routes(mux)
	mux.HandleFunc("/api/audit/stream", hub.HandleAuditStream)

	httpServer := &http.Server{
		Addr:              v.GetString("listen"),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", httpServer.Addr).Str("state_file", statePath).Msg("meshd listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
	}
	return nil
}

func buildAdapter(kind string) (runtime.Adapter, func(), error) {
	switch kind {
	case "wgctrl":
		a, err := runtime.NewWgctrlAdapter()
		if err != nil {
			return nil, nil, err
		}
		return a, func() { _ = a.Close() }, nil
	case "cli", "":
		return runtime.NewCLIAdapter(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown runtime adapter %q", kind)
	}
}

func buildPSKStrategy(kind string) (keys.PSKStrategy, error) {
	switch kind {
	case "deterministic":
		return keys.DeterministicPSK{}, nil
	case "random", "":
		return keys.NewRandomPSK(), nil
	case "hkdf":
		return keys.NewHKDFPSK(nil)
	default:
		return nil, fmt.Errorf("unknown psk strategy %q", kind)
	}
}
