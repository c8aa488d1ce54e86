package logger

import (
	"io"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config configura el logger.
type Config struct {
	// Env define el entorno: "dev" (consola con colores), "prod" (JSON)
	// o "silent" (descarta todo, usado por tests).
	// Default: "dev"
	Env string

	// Level define el nivel mínimo de log: "debug", "info", "warn", "error".
	// Default: "info"
	Level string

	// ServiceName se agrega como campo "service" en cada entrada.
	// Opcional.
	ServiceName string

	// Output redirige la salida. Si es nil se usa stderr.
	Output io.Writer
}

// build construye el logger según la configuración.
func build(cfg Config) *zap.Logger {
	level := parseLevel(cfg.Level)

	var l *zap.Logger
	var err error

	switch strings.ToLower(strings.TrimSpace(cfg.Env)) {
	case "silent":
		return zap.NewNop()
	case "prod":
		l, err = buildProd(level, cfg)
	default:
		l, err = buildDev(level, cfg)
	}

	if err != nil {
		// Fallback a un logger básico si falla
		l, _ = zap.NewProduction()
	}

	if cfg.ServiceName != "" {
		l = l.With(zap.String("service", cfg.ServiceName))
	}
	return l
}

// buildDev construye un logger de consola con colores.
// El console imprime resultados por stdout, así que los logs van a stderr.
func buildDev(level zapcore.Level, cfg Config) (*zap.Logger, error) {
	ecfg := zap.NewDevelopmentEncoderConfig()
	ecfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	ecfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	ecfg.EncodeCaller = zapcore.ShortCallerEncoder

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(ecfg), sink(cfg), zap.NewAtomicLevelAt(level))
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)), nil
}

// buildProd construye un logger JSON.
func buildProd(level zapcore.Level, cfg Config) (*zap.Logger, error) {
	ecfg := zap.NewProductionEncoderConfig()
	ecfg.EncodeTime = zapcore.ISO8601TimeEncoder
	ecfg.EncodeCaller = zapcore.ShortCallerEncoder

	core := zapcore.NewCore(zapcore.NewJSONEncoder(ecfg), sink(cfg), zap.NewAtomicLevelAt(level))
	return zap.New(core,
		zap.AddCaller(),
		zap.AddCallerSkip(1),
		zap.AddStacktrace(zapcore.ErrorLevel),
	), nil
}

func sink(cfg Config) zapcore.WriteSyncer {
	if cfg.Output != nil {
		return zapcore.AddSync(cfg.Output)
	}
	return zapcore.Lock(zapcore.AddSync(stderr))
}

// parseLevel convierte un string a zapcore.Level.
func parseLevel(lvl string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
