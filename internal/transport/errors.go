package transport

import (
	"errors"
	"fmt"
)

// Categorías de falla de una llamada. Se comparan con errors.Is contra un
// *CallError o contra Result.Err.
var (
	ErrTransport   = errors.New("transport failure")
	ErrEncode      = errors.New("request encode failure")
	ErrDecode      = errors.New("response decode failure")
	ErrApplication = errors.New("application failure")
)

// CallError describe una llamada fallida tal como se le muestra al operador:
// status HTTP, status de aplicación y el errorMessage extraído de la respuesta.
type CallError struct {
	Action     string
	StatusCode int // 0 si no hubo respuesta
	StatusText string
	AppStatus  int32  // commonResponse.status
	Message    string // commonResponse.errorMessage
	Err        error  // causa, una de las categorías de arriba envuelta
}

// Error implementa la interfaz error
func (e *CallError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s", e.Action, msg)
	}
	if e.AppStatus != 0 {
		return fmt.Sprintf("%s: %d %s (status %d): %s", e.Action, e.StatusCode, e.StatusText, e.AppStatus, msg)
	}
	return fmt.Sprintf("%s: %d %s: %s", e.Action, e.StatusCode, e.StatusText, msg)
}

// Unwrap permite acceder a la causa
func (e *CallError) Unwrap() error {
	return e.Err
}

// WithCause devuelve una COPIA del error con otra causa.
func (e *CallError) WithCause(err error) *CallError {
	c := *e
	c.Err = err
	return &c
}

// WithMessage devuelve una COPIA del error con otro mensaje.
func (e *CallError) WithMessage(msg string) *CallError {
	c := *e
	c.Message = msg
	return &c
}

// AsCallError extrae el *CallError de una cadena de errores.
func AsCallError(err error) (*CallError, bool) {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
