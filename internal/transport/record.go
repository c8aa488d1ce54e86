package transport

import (
	"fmt"
	"sort"
)

// Record es un árbol de respuesta normalizado. Las hojas de texto son
// normalize.Text; los accesores las devuelven como string.
type Record map[string]any

// String retorna el campo como texto. Campos ausentes o no textuales dan "".
func (r Record) String(key string) string {
	return asString(r[key])
}

// Strings retorna un campo repeated de texto.
func (r Record) Strings(key string) []string {
	items, _ := r[key].([]any)
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, asString(it))
	}
	return out
}

// Record retorna un sub-mensaje. Nil si no está seteado.
func (r Record) Record(key string) Record {
	m, ok := r[key].(map[string]any)
	if !ok {
		return nil
	}
	return Record(m)
}

// List retorna un campo repeated de mensajes.
func (r Record) List(key string) []Record {
	items, _ := r[key].([]any)
	out := make([]Record, 0, len(items))
	for _, it := range items {
		if m, ok := it.(map[string]any); ok {
			out = append(out, Record(m))
		}
	}
	return out
}

// Map retorna un campo map<string, texto>. Keys da el orden estable.
func (r Record) Map(key string) map[string]string {
	m, _ := r[key].(map[string]any)
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = asString(v)
	}
	return out
}

// Int retorna un campo numérico como int64.
func (r Record) Int(key string) int64 {
	switch v := r[key].(type) {
	case int32:
		return int64(v)
	case int64:
		return v
	case uint32:
		return int64(v)
	case uint64:
		return int64(v)
	case int:
		return int64(v)
	default:
		return 0
	}
}

// Uint retorna un campo numérico sin signo.
func (r Record) Uint(key string) uint64 {
	switch v := r[key].(type) {
	case uint64:
		return v
	case uint32:
		return uint64(v)
	default:
		n := r.Int(key)
		if n < 0 {
			return 0
		}
		return uint64(n)
	}
}

// AppStatus retorna commonResponse.status (0 si no vino).
func (r Record) AppStatus() int32 {
	return int32(r.Record("commonResponse").Int("status"))
}

// ErrorMessage retorna commonResponse.errorMessage ya normalizado.
func (r Record) ErrorMessage() string {
	return r.Record("commonResponse").String("errorMessage")
}

// Keys retorna las claves ordenadas.
func Keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case fmt.Stringer:
		return t.String()
	default:
		return ""
	}
}
