// Package logger provee un logger Zap singleton con scoping por contexto
// para el console y el dev server de fleet.
//
// # Decisiones
//
//   - Singleton: una sola instancia global inicializada con Init().
//   - Scoping por contexto: cada operación del console (una llamada al
//     transporte, un Open del editor de asociaciones) puede llevar su propio
//     logger con campos (action, request_id, group_name) sin crear otro core.
//   - Entornos: "dev" usa consola con colores, "prod" usa JSON.
//   - Niveles: debug, info, warn, error (configurable via LOG_LEVEL).
//
// # Uso
//
// Inicialización (una vez en main.go):
//
//	logger.Init(logger.Config{
//	    Env:   cfg.Log.Env,
//	    Level: cfg.Log.Level,
//	})
//	defer logger.Sync()
//
// En componentes:
//
//	log := logger.From(ctx).With(logger.Component("transport"), logger.Action(action))
//	log.Warn("correlation mismatch", logger.RequestID(token))
package logger
