package logger

import (
	"os"
	"sync"

	"go.uber.org/zap"
)

var (
	once     sync.Once
	instance *zap.Logger

	stderr = os.Stderr
)

// Init inicializa el logger singleton con la configuración dada.
// Es idempotente: solo la primera llamada tiene efecto.
func Init(cfg Config) {
	once.Do(func() {
		instance = build(cfg)
	})
}

// New construye un logger independiente del singleton.
// Lo usan tests y componentes que quieren su propio sink.
func New(cfg Config) *zap.Logger {
	return build(cfg)
}

// L retorna el logger singleton.
// Si Init() no fue llamado, crea un logger por defecto (dev, info).
func L() *zap.Logger {
	Init(Config{Env: "dev", Level: "info"})
	return instance
}

// Named retorna un logger con un nombre de componente.
func Named(name string) *zap.Logger {
	return L().Named(name)
}

// Sync flushea cualquier buffer pendiente.
// Debe llamarse con defer en main.go.
func Sync() error {
	if instance != nil {
		return instance.Sync()
	}
	return nil
}
