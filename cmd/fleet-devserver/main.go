// Command fleet-devserver levanta un config server en memoria que atiende la
// API de usuario sobre HTTP + protobuf. Sirve para desarrollo y tests
// manuales de fleetctl.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/fleetconsole/internal/config"
	"github.com/dropDatabas3/fleetconsole/internal/devserver"
	"github.com/dropDatabas3/fleetconsole/internal/metrics"
	"github.com/dropDatabas3/fleetconsole/internal/observability/logger"
	"github.com/dropDatabas3/fleetconsole/internal/wire/schema"
)

func main() {
	_ = godotenv.Load()

	var (
		cfgPath      string
		addr         string
		seedPath     string
		doubleEncode bool
	)
	root := &cobra.Command{
		Use:           "fleet-devserver",
		Short:         "Config server en memoria para desarrollo",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cfgPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.DevServer.Addr = addr
			}
			if cmd.Flags().Changed("double-encode") {
				cfg.DevServer.DoubleEncodeText = doubleEncode
			}
			return serve(cmd.Context(), cfg, seedPath)
		},
	}
	root.Flags().StringVar(&cfgPath, "config", os.Getenv("FLEET_CONFIG"), "Archivo YAML de configuración (env FLEET_CONFIG)")
	root.Flags().StringVar(&addr, "addr", "", "Dirección de escucha (pisa devserver.addr)")
	root.Flags().StringVar(&seedPath, "seed", os.Getenv("DEVSERVER_SEED"), "YAML con grupos, configs y agentes iniciales (env DEVSERVER_SEED)")
	root.Flags().BoolVar(&doubleEncode, "double-encode", false, "Codificar en base64 el texto de las respuestas")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err.Error())
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default()
	}
	return config.Load(path)
}

func serve(ctx context.Context, cfg *config.Config, seedPath string) error {
	logger.Init(logger.Config{Env: cfg.Log.Env, Level: cfg.Log.Level, ServiceName: "fleet-devserver"})
	defer func() { _ = logger.Sync() }()
	log := logger.Named("devserver-main")

	reg, err := schema.NewRegistry(cfg.Normalize.OpaqueFields...)
	if err != nil {
		return err
	}

	store := devserver.NewStore()
	if seedPath != "" {
		sd, err := devserver.LoadSeed(seedPath)
		if err != nil {
			return err
		}
		if err := store.ApplySeed(sd); err != nil {
			return err
		}
		log.Info("seed loaded",
			logger.String("path", seedPath),
			logger.Int("groups", len(sd.Groups)),
			logger.Int("configs", len(sd.Configs)),
			logger.Int("agents", len(sd.Agents)),
		)
	}

	promReg := prometheus.NewRegistry()
	if err := metrics.Register(promReg); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	opts := devserver.Options{
		BasePath:         cfg.Server.BasePath,
		EntityKind:       cfg.Server.EntityKind,
		DoubleEncodeText: cfg.DevServer.DoubleEncodeText,
		Store:            store,
		Registry:         reg,
		Logger:           log,
	}
	// Sin metrics.addr, /metrics cuelga del mismo router.
	var metricsSrv *http.Server
	if cfg.Metrics.Addr == "" {
		opts.Metrics = promReg
	} else {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(promReg))
		metricsSrv = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	}
	srv := devserver.New(opts)

	httpSrv := &http.Server{
		Addr:              cfg.DevServer.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	errCh := make(chan error, 2)
	if metricsSrv != nil {
		go func() {
			log.Info("metrics listening", logger.String("addr", metricsSrv.Addr))
			errCh <- metricsSrv.ListenAndServe()
		}()
	}
	go func() {
		log.Info("devserver listening",
			logger.String("addr", httpSrv.Addr),
			logger.Bool("double_encode_text", cfg.DevServer.DoubleEncodeText),
		)
		logger.S().Infof("user API at POST %s/%s/<Action>", strings.TrimRight("/"+strings.Trim(cfg.Server.BasePath, "/"), "/"), cfg.Server.EntityKind)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutdown failed", logger.Err(err))
		return err
	}
	return nil
}
