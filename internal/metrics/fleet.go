package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Métricas del console. Viven en un paquete propio para que transport,
// normalize y association puedan reportar sin importarse entre sí.

var (
	CallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_calls_total",
		Help: "Llamadas a la API de usuario por acción y resultado",
	}, []string{"action", "result"}) // result: ok|app_error|transport_error|decode_error|encode_error

	CallDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fleet_call_duration_seconds",
		Help:    "Latencia de las llamadas a la API de usuario",
		Buckets: prometheus.DefBuckets,
	}, []string{"action"})

	CorrelationMismatches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_correlation_mismatches_total",
		Help: "Respuestas cuyo requestId no coincide con el emitido",
	}, []string{"action"})

	NormalizeFallbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_normalize_fallbacks_total",
		Help: "Hojas base64-plausibles que se conservaron sin decodificar",
	}, []string{"reason"}) // reason: decode_error|not_text

	EditorCommits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_editor_commits_total",
		Help: "Commits del editor de asociaciones por resultado",
	}, []string{"result"}) // result: ok|failed|superseded

	ServerRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_devserver_requests_total",
		Help: "Requests atendidos por el servidor de desarrollo por acción y status HTTP",
	}, []string{"action", "code"})
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{CallsTotal, CallDuration, CorrelationMismatches, NormalizeFallbacks, EditorCommits, ServerRequests}
}

// Register registra las métricas en el registry dado (o el default si es nil).
// Registrar dos veces en el mismo registry no es error.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}

// Handler retorna el handler de /metrics para el gatherer dado (o el default).
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// ObserveCall registra una llamada terminada.
func ObserveCall(action, result string, d time.Duration) {
	CallsTotal.WithLabelValues(action, result).Inc()
	CallDuration.WithLabelValues(action).Observe(d.Seconds())
}

// CorrelationMismatch cuenta un requestId que no coincide.
func CorrelationMismatch(action string) {
	CorrelationMismatches.WithLabelValues(action).Inc()
}

// NormalizeFallback cuenta una hoja que se conservó sin decodificar.
func NormalizeFallback(reason string) {
	NormalizeFallbacks.WithLabelValues(reason).Inc()
}

// EditorCommit cuenta el resultado de un commit del editor.
func EditorCommit(result string) {
	EditorCommits.WithLabelValues(result).Inc()
}

// ServerRequest cuenta un request atendido por el servidor de desarrollo.
func ServerRequest(action string, code int) {
	ServerRequests.WithLabelValues(action, strconv.Itoa(code)).Inc()
}
