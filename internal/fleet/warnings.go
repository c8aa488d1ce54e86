package fleet

import (
	"context"
	"sync"
)

// Warnings acumula las advertencias (p.ej. requestId que no coincide) de
// las llamadas hechas con un contexto. Una lectura compartida entre lectores
// concurrentes (GetConfig, GetAgentGroup) las registra solo en el contexto
// del lector que la inició. Es seguro para uso concurrente.
type Warnings struct {
	mu    sync.Mutex
	items []string
}

type warningsKey struct{}

// CollectWarnings retorna un contexto cuyas llamadas a través de Client
// registran sus advertencias en el Warnings retornado.
func CollectWarnings(ctx context.Context) (context.Context, *Warnings) {
	w := &Warnings{}
	return context.WithValue(ctx, warningsKey{}, w), w
}

// List retorna las advertencias como "<Action>: <warning>", en orden de llegada.
func (w *Warnings) List() []string {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.items...)
}

func (w *Warnings) add(action string, warnings []string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, msg := range warnings {
		w.items = append(w.items, action+": "+msg)
	}
}

func recordWarnings(ctx context.Context, action string, warnings []string) {
	if len(warnings) == 0 {
		return
	}
	if w, ok := ctx.Value(warningsKey{}).(*Warnings); ok {
		w.add(action, warnings)
	}
}
