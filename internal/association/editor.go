// Package association implementa el editor de asociaciones config <-> agent
// group: abre las asociaciones vigentes de un ancla como tabs, acumula
// remociones pendientes y las confirma en un solo commit.
//
// Todas las transiciones reemplazan el estado completo bajo un mutex y
// Snapshot devuelve una copia profunda. Cada Open o Discard avanza una
// generación; los resultados remotos de una generación vieja se descartan
// con ErrSuperseded.
package association

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/dropDatabas3/fleetconsole/internal/fleet"
	"github.com/dropDatabas3/fleetconsole/internal/metrics"
	"github.com/dropDatabas3/fleetconsole/internal/observability/logger"
	"github.com/dropDatabas3/fleetconsole/internal/transport"
)

var (
	ErrPendingChanges = errors.New("commit or discard pending changes first")
	ErrUnknownTab     = errors.New("association: unknown tab")
	ErrSuperseded     = errors.New("association: result superseded by a newer operation")
	ErrNotOpen        = errors.New("association: editor is not open")
)

// Action es el tipo de edición de Edit.
type Action int

const (
	ActionRemove Action = iota
	ActionAdd
)

func (a Action) String() string {
	switch a {
	case ActionRemove:
		return "remove"
	case ActionAdd:
		return "add"
	default:
		return "unknown"
	}
}

// Association es un miembro asociado al ancla. Detail es nil si no se pudo
// traer.
type Association struct {
	Member string
	Target string
	Detail transport.Record
}

// StagedEditSet es la vista local, sin confirmar, del editor.
// PendingRemovals y OpenTabs nunca comparten keys.
type StagedEditSet struct {
	ActiveKey       string
	OpenTabs        []Association
	PendingRemovals []string
}

// Candidate es un miembro que se puede agregar. Applied indica que ya está
// asociado.
type Candidate struct {
	Name    string
	Applied bool
}

// Editor es seguro para uso concurrente.
type Editor struct {
	rel Relation
	log *zap.Logger

	mu       sync.Mutex
	gen      uint64
	open     bool
	state    StagedEditSet
	warnings []string
}

// NewEditor crea un editor cerrado para rel.
func NewEditor(rel Relation, log *zap.Logger) *Editor {
	if log == nil {
		log = logger.L()
	}
	return &Editor{
		rel: rel,
		log: log.With(logger.Component("association"), logger.Anchor(rel.Anchor()), logger.String("relation", rel.Kind())),
	}
}

// Open trae las asociaciones vigentes: lista los miembros y luego el detalle
// de cada uno en paralelo. Un miembro cuyo detalle falla queda abierto con
// Detail nil y se retorna la primera falla.
func (e *Editor) Open(ctx context.Context) error {
	ctx, w := fleet.CollectWarnings(ctx)
	return e.load(ctx, w)
}

// load es Open con un colector de advertencias ya instalado en ctx.
func (e *Editor) load(ctx context.Context, w *fleet.Warnings) error {
	gen := e.advance()
	log := e.log.With(logger.Op("open"), logger.Generation(gen))

	names, err := e.rel.Members(ctx)
	if err != nil {
		log.Warn("list members failed", logger.Err(err))
		return err
	}

	details := make(map[string]transport.Record, len(names))
	var mu sync.Mutex
	batch := fleet.FanOut(ctx, names, func(ctx context.Context, name string) error {
		d, err := e.rel.Detail(ctx, name)
		if err != nil {
			return err
		}
		mu.Lock()
		details[name] = d
		mu.Unlock()
		return nil
	})

	tabs := make([]Association, 0, len(names))
	for _, name := range names {
		tabs = append(tabs, Association{Member: name, Target: e.rel.Anchor(), Detail: details[name]})
	}
	next := StagedEditSet{OpenTabs: tabs}
	if len(tabs) > 0 {
		next.ActiveKey = tabs[0].Member
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gen != gen {
		log.Debug("open result dropped")
		return ErrSuperseded
	}
	e.state = next
	e.open = true
	e.warnings = w.List()

	if err := batch.FirstError(); err != nil {
		log.Warn("detail fetch failed", logger.Count(len(batch.Failed())), logger.Err(err))
		return err
	}
	log.Debug("opened", logger.Count(len(tabs)))
	return nil
}

// Switch cambia el tab activo. No hace llamadas.
func (e *Editor) Switch(key string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.open {
		return ErrNotOpen
	}
	if indexOf(e.state.OpenTabs, key) < 0 {
		return ErrUnknownTab
	}
	next := e.state.clone()
	next.ActiveKey = key
	e.state = next
	return nil
}

// Edit despacha una edición. Para ActionAdd key se ignora y se retornan
// los candidatos; para ActionRemove se retorna nil.
func (e *Editor) Edit(ctx context.Context, action Action, key string) ([]Candidate, error) {
	switch action {
	case ActionRemove:
		return nil, e.StageRemove(key)
	case ActionAdd:
		return e.StageAdd(ctx)
	default:
		return nil, errors.New("association: unknown action " + action.String())
	}
}

// StageRemove pasa key de los tabs abiertos a las remociones pendientes. Si
// era el tab activo, el foco va al vecino izquierdo, si no hay al primero
// que quede, y si no quedan tabs a ninguno.
func (e *Editor) StageRemove(key string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.open {
		return ErrNotOpen
	}
	i := indexOf(e.state.OpenTabs, key)
	if i < 0 {
		return ErrUnknownTab
	}

	next := e.state.clone()
	next.OpenTabs = append(next.OpenTabs[:i:i], next.OpenTabs[i+1:]...)
	next.PendingRemovals = append(next.PendingRemovals, key)
	if next.ActiveKey == key {
		switch {
		case i > 0:
			next.ActiveKey = next.OpenTabs[i-1].Member
		case len(next.OpenTabs) > 0:
			next.ActiveKey = next.OpenTabs[0].Member
		default:
			next.ActiveKey = ""
		}
	}
	e.state = next
	e.log.Debug("removal staged", logger.Member(key), logger.Count(len(next.PendingRemovals)))
	return nil
}

// StageAdd retorna todos los miembros conocidos marcando los ya asociados.
// Se rechaza con ErrPendingChanges mientras haya remociones pendientes.
func (e *Editor) StageAdd(ctx context.Context) ([]Candidate, error) {
	e.mu.Lock()
	if !e.open {
		e.mu.Unlock()
		return nil, ErrNotOpen
	}
	if len(e.state.PendingRemovals) > 0 {
		e.mu.Unlock()
		e.log.Warn("add rejected", logger.Err(ErrPendingChanges))
		return nil, ErrPendingChanges
	}
	applied := make(map[string]bool, len(e.state.OpenTabs))
	for _, t := range e.state.OpenTabs {
		applied[t.Member] = true
	}
	e.mu.Unlock()

	known, err := e.rel.Known(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Candidate, 0, len(known))
	for _, name := range known {
		out = append(out, Candidate{Name: name, Applied: applied[name]})
	}
	return out, nil
}

// ApplySelected asocia names en paralelo. Si todas las llamadas salen bien
// vuelve a abrir el editor; si no, retorna la primera falla por índice.
func (e *Editor) ApplySelected(ctx context.Context, names []string) (fleet.Batch, error) {
	e.mu.Lock()
	if !e.open {
		e.mu.Unlock()
		return fleet.Batch{}, ErrNotOpen
	}
	if len(e.state.PendingRemovals) > 0 {
		e.mu.Unlock()
		return fleet.Batch{}, ErrPendingChanges
	}
	gen := e.gen
	e.mu.Unlock()

	log := e.log.With(logger.Op("apply"), logger.Generation(gen))
	if len(names) == 0 {
		return fleet.Batch{}, nil
	}

	ctx, w := fleet.CollectWarnings(ctx)
	batch := fleet.FanOut(ctx, names, e.rel.Apply)
	if err := batch.FirstError(); err != nil {
		log.Warn("apply failed", logger.Count(len(batch.Failed())), logger.Err(err))
		e.setWarnings(gen, w)
		return batch, err
	}
	if e.generation() != gen {
		return batch, ErrSuperseded
	}
	return batch, e.load(ctx, w)
}

// Commit confirma las remociones pendientes: una llamada por key, todas en
// paralelo. Si todas salen bien el estado se descarta y se vuelve a abrir.
// Si alguna falla se retorna la primera por índice y el estado queda como
// estaba; las remociones que sí se aplicaron no se revierten.
//
// Las remociones agregadas mientras el commit estaba en curso quedan
// pendientes para el próximo Commit; en ese caso no se vuelve a abrir.
func (e *Editor) Commit(ctx context.Context) (fleet.Batch, error) {
	e.mu.Lock()
	if !e.open {
		e.mu.Unlock()
		return fleet.Batch{}, ErrNotOpen
	}
	pending := append([]string(nil), e.state.PendingRemovals...)
	gen := e.gen
	e.mu.Unlock()

	if len(pending) == 0 {
		return fleet.Batch{}, nil
	}
	log := e.log.With(logger.Op("commit"), logger.Generation(gen))

	ctx, w := fleet.CollectWarnings(ctx)
	batch := fleet.FanOut(ctx, pending, e.rel.Remove)
	if err := batch.FirstError(); err != nil {
		e.setWarnings(gen, w)
		metrics.EditorCommit("failed")
		log.Warn("commit failed",
			logger.Count(len(batch.Failed())),
			logger.Any("succeeded", batch.Succeeded()),
			logger.Err(err),
		)
		return batch, err
	}

	e.mu.Lock()
	if e.gen != gen {
		e.mu.Unlock()
		metrics.EditorCommit("superseded")
		return batch, ErrSuperseded
	}
	if rest := without(e.state.PendingRemovals, pending); len(rest) > 0 {
		next := e.state.clone()
		next.PendingRemovals = rest
		e.state = next
		e.warnings = w.List()
		e.mu.Unlock()

		metrics.EditorCommit("ok")
		log.Info("commit ok", logger.Count(len(pending)), logger.Int("still_pending", len(rest)))
		return batch, nil
	}
	e.state = StagedEditSet{}
	e.mu.Unlock()

	metrics.EditorCommit("ok")
	log.Info("commit ok", logger.Count(len(pending)))
	return batch, e.load(ctx, w)
}

// Discard descarta el estado sin hacer llamadas y cierra el editor.
func (e *Editor) Discard() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gen++
	e.open = false
	e.state = StagedEditSet{}
	e.warnings = nil
}

// Warnings retorna las advertencias de la última operación remota terminada
// (Open, Commit o ApplySelected), como "<Action>: <warning>".
func (e *Editor) Warnings() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.warnings...)
}

func (e *Editor) setWarnings(gen uint64, w *fleet.Warnings) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gen == gen {
		e.warnings = w.List()
	}
}

// IsOpen reporta si el editor tiene estado cargado.
func (e *Editor) IsOpen() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.open
}

// Snapshot retorna una copia profunda del estado.
func (e *Editor) Snapshot() StagedEditSet {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.state.clone()
	for i := range s.OpenTabs {
		s.OpenTabs[i].Detail = cloneRecord(s.OpenTabs[i].Detail)
	}
	return s
}

func (e *Editor) advance() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gen++
	return e.gen
}

func (e *Editor) generation() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gen
}

// clone copia los slices; los Detail se comparten.
func (s StagedEditSet) clone() StagedEditSet {
	return StagedEditSet{
		ActiveKey:       s.ActiveKey,
		OpenTabs:        append([]Association(nil), s.OpenTabs...),
		PendingRemovals: append([]string(nil), s.PendingRemovals...),
	}
}

// without retorna keys sin los elementos de drop, conservando el orden.
func without(keys, drop []string) []string {
	skip := make(map[string]bool, len(drop))
	for _, k := range drop {
		skip[k] = true
	}
	var out []string
	for _, k := range keys {
		if !skip[k] {
			out = append(out, k)
		}
	}
	return out
}

func indexOf(tabs []Association, key string) int {
	for i, t := range tabs {
		if t.Member == key {
			return i
		}
	}
	return -1
}

func cloneRecord(r transport.Record) transport.Record {
	if r == nil {
		return nil
	}
	return transport.Record(cloneValue(map[string]any(r)).(map[string]any))
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[k] = cloneValue(child)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = cloneValue(child)
		}
		return out
	case []byte:
		return append([]byte(nil), t...)
	default:
		return v
	}
}
