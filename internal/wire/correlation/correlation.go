// Package correlation emite y verifica los tokens requestId que viajan en
// cada request y que el servidor devuelve en la respuesta.
package correlation

import (
	"fmt"

	"github.com/google/uuid"
)

// Field es el nombre del campo de correlación en requests y responses.
const Field = "requestId"

// Token es un identificador de request. Nunca se reutiliza.
type Token string

// Issue genera un token nuevo (UUIDv4).
func Issue() Token {
	return Token(uuid.NewString())
}

// Inject copia fields agregando el token en requestId. No modifica el map
// recibido.
func Inject(fields map[string]any, tok Token) map[string]any {
	out := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out[Field] = []byte(tok)
	return out
}

// Echoed extrae el requestId de un árbol de respuesta (normalizado o crudo).
func Echoed(resp map[string]any) (string, bool) {
	switch v := resp[Field].(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	case fmt.Stringer:
		return v.String(), true
	default:
		return "", false
	}
}

// Verify reporta si la respuesta trae el mismo token que se emitió.
func Verify(tok Token, resp map[string]any) bool {
	got, ok := Echoed(resp)
	return ok && got == string(tok)
}
