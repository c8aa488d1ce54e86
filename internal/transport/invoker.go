// Package transport arma, envía y decodifica las llamadas a la API de
// usuario del config server.
//
// Una llamada nunca retorna error fuera de banda: todo queda en el Result,
// incluidas las fallas de encoding. Result.Error convierte un resultado
// fallido en un *CallError listo para mostrar.
package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/fleetconsole/internal/metrics"
	"github.com/dropDatabas3/fleetconsole/internal/observability/logger"
	"github.com/dropDatabas3/fleetconsole/internal/wire/correlation"
	"github.com/dropDatabas3/fleetconsole/internal/wire/normalize"
	"github.com/dropDatabas3/fleetconsole/internal/wire/schema"
)

// WarnCorrelationMismatch se agrega a Result.Warnings cuando el requestId
// de la respuesta no es el emitido.
const WarnCorrelationMismatch = "response requestId does not match the issued token"

// Result es el resultado de una llamada.
type Result struct {
	Action     string
	OK         bool
	StatusCode int // 0 si no hubo respuesta
	StatusText string
	Data       Record // nil si no hubo body decodificable
	Warnings   []string
	Err        error
}

// Error retorna nil si la llamada fue exitosa y un *CallError si no.
func (r *Result) Error() error {
	if r.OK {
		return nil
	}
	ce := &CallError{
		Action:     r.Action,
		StatusCode: r.StatusCode,
		StatusText: r.StatusText,
		Err:        r.Err,
	}
	if r.Data != nil {
		ce.AppStatus = r.Data.AppStatus()
		ce.Message = r.Data.ErrorMessage()
	}
	if ce.Err == nil {
		ce.Err = ErrApplication
	}
	return ce
}

// Message retorna el errorMessage extraído, o "" si no hay.
func (r *Result) Message() string {
	if r.Data == nil {
		return ""
	}
	return r.Data.ErrorMessage()
}

// Options configura un Invoker.
type Options struct {
	Registry   *schema.Registry      // default schema.Default()
	Normalizer *normalize.Normalizer // default: opacos del registry
	Sender     Sender                // requerido
	Logger     *zap.Logger           // default logger.L()
}

// Invoker ejecuta llamadas. Es seguro para uso concurrente.
type Invoker struct {
	reg    *schema.Registry
	norm   *normalize.Normalizer
	sender Sender
	log    *zap.Logger

	// issue es reemplazable en tests.
	issue func() correlation.Token
}

// NewInvoker construye un Invoker.
func NewInvoker(opts Options) (*Invoker, error) {
	if opts.Sender == nil {
		return nil, errors.New("transport: sender is required")
	}
	inv := &Invoker{
		reg:    opts.Registry,
		norm:   opts.Normalizer,
		sender: opts.Sender,
		log:    opts.Logger,
		issue:  correlation.Issue,
	}
	if inv.log == nil {
		inv.log = logger.L()
	}
	if inv.reg == nil {
		inv.reg = schema.Default()
	}
	if inv.norm == nil {
		inv.norm = normalize.New(normalize.Options{Opaque: inv.reg.OpaqueFields(), Logger: inv.log})
	}
	return inv, nil
}

// Registry retorna el registro de schema en uso.
func (inv *Invoker) Registry() *schema.Registry { return inv.reg }

// Call envía fields como requestType a endpoint y decodifica la respuesta
// como responseType. fields no se modifica.
func (inv *Invoker) Call(ctx context.Context, endpoint, requestType, responseType string, fields map[string]any) *Result {
	start := time.Now()
	res := &Result{Action: endpoint}
	tok := inv.issue()

	log := logger.FromOr(ctx, inv.log).With(
		logger.Layer("transport"),
		logger.Action(endpoint),
		logger.RequestID(string(tok)),
	)

	payload, err := inv.reg.Encode(requestType, correlation.Inject(fields, tok))
	if err != nil {
		res.Err = fmt.Errorf("%w: %w", ErrEncode, err)
		return inv.finish(log, res, "encode_error", start)
	}

	reply, err := inv.sender.Send(ctx, endpoint, payload)
	if err != nil {
		res.Err = fmt.Errorf("%w: %w", ErrTransport, err)
		return inv.finish(log, res, "transport_error", start)
	}
	res.StatusCode = reply.StatusCode
	res.StatusText = reply.StatusText
	log.Debug("reply received", logger.Status(reply.StatusCode), logger.Bytes(len(reply.Body)))
	success := reply.StatusCode >= 200 && reply.StatusCode < 300

	if !success && len(reply.Body) == 0 {
		res.Err = fmt.Errorf("%w: HTTP %d with empty body", ErrTransport, reply.StatusCode)
		return inv.finish(log, res, "transport_error", start)
	}

	raw, err := inv.reg.Decode(responseType, reply.Body)
	if err != nil {
		res.Err = fmt.Errorf("%w: %w", ErrDecode, err)
		return inv.finish(log, res, "decode_error", start)
	}
	data, _ := inv.norm.Normalize(raw).(map[string]any)
	res.Data = Record(data)

	if !correlation.Verify(tok, data) {
		echoed, _ := correlation.Echoed(data)
		log.Warn("correlation mismatch", logger.String("echoed", echoed))
		metrics.CorrelationMismatch(endpoint)
		res.Warnings = append(res.Warnings, WarnCorrelationMismatch)
	}

	res.OK = success && res.Data.AppStatus() == 0
	if !res.OK {
		res.Err = ErrApplication
		return inv.finish(log, res, "app_error", start)
	}
	return inv.finish(log, res, "ok", start)
}

func (inv *Invoker) finish(log *zap.Logger, res *Result, outcome string, start time.Time) *Result {
	d := time.Since(start)
	metrics.ObserveCall(res.Action, outcome, d)

	if res.OK {
		log.Debug("call ok", logger.Status(res.StatusCode), logger.Duration(d))
		return res
	}
	fields := []zap.Field{logger.Status(res.StatusCode), logger.Duration(d), logger.String("outcome", outcome)}
	if res.Data != nil {
		fields = append(fields, logger.AppStatus(res.Data.AppStatus()), logger.String("message", res.Data.ErrorMessage()))
	}
	if res.Err != nil && !errors.Is(res.Err, ErrApplication) {
		fields = append(fields, logger.Err(res.Err))
	}
	log.Warn("call failed", fields...)
	return res
}
