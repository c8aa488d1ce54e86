// Package devserver es un config server en memoria que habla la API de
// usuario por HTTP con bodies protobuf. Sirve para desarrollo local del
// console y como contraparte de los tests de integración.
//
// Semántica de las acciones:
//   - crear un grupo o config existente falla; recrear un config borrado
//     continúa su numeración de versiones
//   - update incrementa la versión del config
//   - no se puede borrar un config o grupo con asociaciones vigentes
//   - el grupo "default" no se puede borrar y lista a todos los agentes
//   - aplicar dos veces, o remover algo no aplicado, falla
//
// Con DoubleEncodeText los campos de texto no opacos de la respuesta salen
// codificados en base64, como lo hacen algunos backends reales.
package devserver

import (
	"encoding/base64"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/dropDatabas3/fleetconsole/internal/metrics"
	"github.com/dropDatabas3/fleetconsole/internal/observability/logger"
	"github.com/dropDatabas3/fleetconsole/internal/wire/correlation"
	"github.com/dropDatabas3/fleetconsole/internal/wire/schema"
)

const (
	contentType            = "application/x-protobuf"
	defaultMaxRequestBytes = 1 << 20
)

// Options configura el servidor.
type Options struct {
	BasePath         string
	EntityKind       string // default "User"
	DoubleEncodeText bool
	MaxRequestBytes  int64

	Store    *Store              // default NewStore()
	Registry *schema.Registry    // default schema.Default()
	Logger   *zap.Logger         // default logger.L()
	Metrics  prometheus.Gatherer // si no es nil se expone GET /metrics
}

type opFunc func(req map[string]any) (map[string]any, error)

// Server atiende la API de usuario.
type Server struct {
	opts   Options
	store  *Store
	reg    *schema.Registry
	log    *zap.Logger
	opaque map[string]bool
	ops    map[string]opFunc
}

// New construye el servidor.
func New(opts Options) *Server {
	s := &Server{
		opts:   opts,
		store:  opts.Store,
		reg:    opts.Registry,
		log:    opts.Logger,
		opaque: make(map[string]bool),
	}
	if s.store == nil {
		s.store = NewStore()
	}
	if s.reg == nil {
		s.reg = schema.Default()
	}
	if s.log == nil {
		s.log = logger.L()
	}
	s.log = s.log.With(logger.Component("devserver"))
	if s.opts.EntityKind == "" {
		s.opts.EntityKind = schema.EntityKind
	}
	if s.opts.MaxRequestBytes <= 0 {
		s.opts.MaxRequestBytes = defaultMaxRequestBytes
	}
	for _, f := range s.reg.OpaqueFields() {
		s.opaque[f] = true
	}
	s.ops = s.routes()
	return s
}

// Store retorna el estado del servidor.
func (s *Server) Store() *Store { return s.store }

// Handler retorna el router HTTP.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.withRecover)

	if s.opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(s.opts.Metrics))
	}

	pattern := "/" + s.opts.EntityKind + "/{action}"
	if base := "/" + strings.Trim(s.opts.BasePath, "/"); base != "/" {
		r.Route(base, func(r chi.Router) {
			r.Post(pattern, s.handle)
		})
	} else {
		r.Post(pattern, s.handle)
	}
	return r
}

func (s *Server) withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error("panic recovered", logger.Op("recover"), logger.Any("panic", rec))
				w.WriteHeader(http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	action := chi.URLParam(r, "action")
	log := s.log.With(logger.Action(action), logger.Endpoint(r.URL.Path))

	op, ok := s.ops[action]
	if !ok {
		log.Debug("unknown action")
		metrics.ServerRequest(action, http.StatusNotFound)
		w.WriteHeader(http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, s.opts.MaxRequestBytes))
	if err != nil {
		s.reply(w, log, action, nil, nil, fail(StatusInvalidParameter, "reading request: %v", err))
		return
	}
	req, err := s.reg.Decode(schema.RequestType(action), body)
	if err != nil {
		s.reply(w, log, action, nil, nil, fail(StatusInvalidParameter, "malformed request: %v", err))
		return
	}

	payload, err := op(req)
	s.reply(w, log, action, req[correlation.Field], payload, err)
}

func (s *Server) reply(w http.ResponseWriter, log *zap.Logger, action string, requestID any, payload map[string]any, err error) {
	status := StatusOK
	msg := ""
	if err != nil {
		status = StatusInternal
		msg = err.Error()
		if oe, ok := err.(*opError); ok {
			status = oe.status
		}
		payload = nil
	}

	resp := map[string]any{
		"commonResponse": map[string]any{"status": status, "errorMessage": []byte(msg)},
	}
	if requestID != nil {
		resp[correlation.Field] = requestID
	}
	if s.opts.DoubleEncodeText {
		payload = s.encodeText(payload)
	}
	for k, v := range payload {
		resp[k] = v
	}

	out, encErr := s.reg.Encode(schema.ResponseType(action), resp)
	if encErr != nil {
		log.Error("encode response failed", logger.Err(encErr))
		metrics.ServerRequest(action, http.StatusInternalServerError)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	code := httpStatus(status)
	log.Debug("request served", logger.Status(code), logger.AppStatus(status))
	metrics.ServerRequest(action, code)

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(code)
	_, _ = w.Write(out)
}

func httpStatus(app int32) int {
	switch app {
	case StatusOK:
		return http.StatusOK
	case StatusInvalidParameter:
		return http.StatusBadRequest
	case StatusNotFound:
		return http.StatusNotFound
	case StatusAlreadyExists:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// encodeText codifica en base64 los strings no opacos del payload.
func (s *Server) encodeText(v map[string]any) map[string]any {
	if v == nil {
		return nil
	}
	out := make(map[string]any, len(v))
	for k, child := range v {
		if s.opaque[k] {
			out[k] = child
			continue
		}
		out[k] = s.encodeValue(child)
	}
	return out
}

func (s *Server) encodeValue(v any) any {
	switch t := v.(type) {
	case string:
		return base64.StdEncoding.EncodeToString([]byte(t))
	case map[string]any:
		return s.encodeText(t)
	case []any:
		out := make([]any, len(t))
		for i, it := range t {
			out[i] = s.encodeValue(it)
		}
		return out
	default:
		return v
	}
}
