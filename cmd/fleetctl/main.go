package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dropDatabas3/fleetconsole/internal/config"
	"github.com/dropDatabas3/fleetconsole/internal/fleet"
	"github.com/dropDatabas3/fleetconsole/internal/observability/logger"
)

// app es el estado compartido por todos los subcomandos. Se arma en
// PersistentPreRunE, después de parsear flags.
type app struct {
	cfgPath string
	baseURL string
	out     string // "json" | "text"

	cfg *config.Config
	log *zap.Logger
	fc  *fleet.Client

	warnings *fleet.Warnings
}

func (a *app) init(ctx context.Context) error {
	var (
		cfg *config.Config
		err error
	)
	if a.cfgPath != "" {
		cfg, err = config.Load(a.cfgPath)
	} else {
		cfg, err = config.Default()
	}
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if a.baseURL != "" {
		cfg.Server.BaseURL = a.baseURL
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	if a.out != "json" && a.out != "text" {
		return fmt.Errorf("--out must be json or text, got %q", a.out)
	}

	a.cfg = cfg
	a.log = logger.New(logger.Config{Env: cfg.Log.Env, Level: cfg.Log.Level, ServiceName: "fleetctl"})
	a.fc, err = fleet.NewFromConfig(ctx, cfg, a.log)
	return err
}

// printWarnings escribe en w las advertencias que dejaron las llamadas del
// comando, una por línea.
func (a *app) printWarnings(w io.Writer) {
	for _, msg := range a.warnings.List() {
		fmt.Fprintln(w, "warning:", msg)
	}
}

func (a *app) close() {
	if a.fc != nil {
		_ = a.fc.Close()
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
}

func newRootCmd(a *app) *cobra.Command {
	a.out = envOr("FLEET_OUT", "text")

	root := &cobra.Command{
		Use:           "fleetctl",
		Short:         "Consola de la API de usuario del config server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.init(cmd.Context()); err != nil {
				return err
			}
			ctx, w := fleet.CollectWarnings(cmd.Context())
			a.warnings = w
			cmd.SetContext(logger.ToContext(ctx, a.log.With(logger.Op(cmd.CommandPath()))))
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.cfgPath, "config-file", os.Getenv("FLEET_CONFIG"), "Archivo YAML de configuración (env FLEET_CONFIG)")
	root.PersistentFlags().StringVar(&a.baseURL, "base-url", "", "URL base del config server (pisa server.base_url)")
	root.PersistentFlags().StringVar(&a.out, "out", a.out, "Formato de salida: json|text (env FLEET_OUT)")

	root.AddCommand(
		groupsCmd(a),
		configsCmd(a),
		agentsCmd(a),
		applyCmd(a),
		removeCmd(a),
		appliedCmd(a),
		assocCmd(a),
		rawCmd(a),
	)
	return root
}

func main() {
	// .env es opcional
	_ = godotenv.Load()

	a := &app{}
	err := newRootCmd(a).ExecuteContext(context.Background())
	a.printWarnings(os.Stderr)
	a.close()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err.Error())
		os.Exit(1)
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
