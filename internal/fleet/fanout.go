package fleet

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Outcome es el resultado de una llamada dentro de un batch.
type Outcome struct {
	Key string
	Err error
}

// Batch conserva la correspondencia por índice entre las keys de entrada y
// sus resultados.
type Batch struct {
	Outcomes []Outcome
}

// FirstError retorna el primer error por índice, o nil.
func (b Batch) FirstError() error {
	for _, o := range b.Outcomes {
		if o.Err != nil {
			return o.Err
		}
	}
	return nil
}

// Failed retorna las keys que fallaron, en orden de entrada.
func (b Batch) Failed() []string {
	var out []string
	for _, o := range b.Outcomes {
		if o.Err != nil {
			out = append(out, o.Key)
		}
	}
	return out
}

// Succeeded retorna las keys que no fallaron, en orden de entrada.
func (b Batch) Succeeded() []string {
	var out []string
	for _, o := range b.Outcomes {
		if o.Err == nil {
			out = append(out, o.Key)
		}
	}
	return out
}

// FanOut ejecuta fn una vez por key, concurrentemente, y espera a todas.
// Una falla no cancela a las demás.
func FanOut(ctx context.Context, keys []string, fn func(ctx context.Context, key string) error) Batch {
	out := make([]Outcome, len(keys))
	var g errgroup.Group
	for i, k := range keys {
		g.Go(func() error {
			out[i] = Outcome{Key: k, Err: fn(ctx, k)}
			return nil
		})
	}
	_ = g.Wait()
	return Batch{Outcomes: out}
}
