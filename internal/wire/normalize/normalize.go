// Package normalize convierte los valores ambiguos de un árbol de respuesta
// decodificado (bytes crudos, texto posiblemente codificado en base64) en
// texto plano, sin conocer el schema del mensaje.
//
// Reglas por hoja:
//
//   - []byte: se decodifica como UTF-8 siempre (secuencias inválidas se
//     reemplazan por U+FFFD).
//   - string: si pasa el test de plausibilidad base64 y el campo no está
//     marcado como opaco, se decodifica; si el resultado no es texto
//     imprimible se conserva el original.
//   - Text: ya normalizado, no se toca. Esto hace Normalize idempotente.
//   - Cualquier otro escalar se retorna igual.
//
// Limitación conocida: un campo de texto plano no marcado cuyo valor es, por
// casualidad, base64 válido de texto imprimible se decodifica igual. La
// forma de evitarlo es agregar el campo al set de opacos.
package normalize

import (
	"encoding/base64"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/dropDatabas3/fleetconsole/internal/metrics"
	"github.com/dropDatabas3/fleetconsole/internal/observability/logger"
)

// Text es una hoja ya normalizada.
type Text string

// String implementa fmt.Stringer.
func (t Text) String() string { return string(t) }

// Options configura un Normalizer.
type Options struct {
	// Opaque son los campos que nunca se decodifican como base64: nombre
	// simple ("detail") o path con puntos desde la raíz ("configDetail.detail").
	Opaque []string

	// DisableHeuristic apaga la detección base64 para todo el árbol.
	DisableHeuristic bool

	Logger *zap.Logger
}

// Normalizer recorre árboles de respuesta. Es seguro para uso concurrente.
type Normalizer struct {
	opaque    map[string]struct{}
	heuristic bool
	log       *zap.Logger
}

// New construye un Normalizer.
func New(opts Options) *Normalizer {
	n := &Normalizer{
		opaque:    make(map[string]struct{}, len(opts.Opaque)),
		heuristic: !opts.DisableHeuristic,
		log:       opts.Logger,
	}
	for _, f := range opts.Opaque {
		n.opaque[f] = struct{}{}
	}
	if n.log == nil {
		n.log = logger.L()
	}
	n.log = n.log.With(logger.Component("normalize"))
	return n
}

// Normalize retorna una copia normalizada de v. Nunca falla: cualquier hoja
// que no se pueda decodificar se conserva.
func (n *Normalizer) Normalize(v any) any {
	return n.walk(v, "", false)
}

// walk recorre v. opaque se hereda: todo lo que cuelga de un campo opaco
// también es opaco.
func (n *Normalizer) walk(v any, path string, opaque bool) any {
	switch t := v.(type) {
	case nil:
		return nil
	case Text:
		return t
	case []byte:
		return Text(decodeUTF8(t))
	case string:
		return Text(n.text(t, path, opaque))
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			childPath := join(path, k)
			out[k] = n.walk(child, childPath, opaque || n.isOpaque(k, childPath))
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = n.walk(child, path, opaque)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = n.walk(child, path, opaque)
		}
		return out
	case [][]byte:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = n.walk(child, path, opaque)
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = n.walk(child, path, opaque)
		}
		return out
	default:
		return v
	}
}

func (n *Normalizer) text(s, path string, opaque bool) string {
	if !n.heuristic || opaque || !LooksBase64(s) {
		return s
	}
	decoded, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		n.log.Debug("base64 decode failed, keeping original", logger.Field(path), logger.Err(err))
		metrics.NormalizeFallback("decode_error")
		return s
	}
	if !printable(decoded) {
		metrics.NormalizeFallback("not_text")
		return s
	}
	return string(decoded)
}

func (n *Normalizer) isOpaque(name, path string) bool {
	if _, ok := n.opaque[name]; ok {
		return true
	}
	_, ok := n.opaque[path]
	return ok
}

// LooksBase64 es el test de plausibilidad: alfabeto estándar, largo múltiplo
// de 4 y padding '=' solo al final (máximo dos).
func LooksBase64(s string) bool {
	if s == "" || len(s)%4 != 0 {
		return false
	}
	body := strings.TrimRight(s, "=")
	if len(s)-len(body) > 2 {
		return false
	}
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '+', c == '/':
		default:
			return false
		}
	}
	return true
}

func decodeUTF8(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return strings.ToValidUTF8(string(b), "\uFFFD")
}

// printable reporta si b es UTF-8 válido sin caracteres de control salvo
// tab, CR y LF.
func printable(b []byte) bool {
	if !utf8.Valid(b) {
		return false
	}
	for _, r := range string(b) {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return false
		}
	}
	return true
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
